package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	z "github.com/Oudwins/zog"
	"github.com/Oudwins/zog/zhttp"

	"liyu1981.xyz/safety-inspection-service/pkg/auth"
	"liyu1981.xyz/safety-inspection-service/pkg/inspection"
	"liyu1981.xyz/safety-inspection-service/pkg/models"
)

type AssignInspectionRequest struct {
	DeviceID      int       `json:"deviceId"`
	ManagerID     int       `json:"managerId"`
	ScheduledDate time.Time `json:"scheduledDate"`
}

var assignInspectionRequestSchema = z.Struct(z.Shape{
	"DeviceID":      z.Int().GT(0).Required(),
	"ManagerID":     z.Int().GT(0).Required(),
	"ScheduledDate": z.Time().Required(),
})

func (rs *RestfulServer) AssignInspection(c *gin.Context) {
	actor := auth.CurrentActor(c)

	if !rs.CheckUserLimiter(actor.ID) {
		c.Status(http.StatusTooManyRequests)
		return
	}

	var req AssignInspectionRequest
	if err := assignInspectionRequestSchema.Parse(zhttp.Request(c.Request), &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err})
		return
	}

	result, err := rs.Core.Lifecycle.Assign(uint(req.DeviceID), uint(req.ManagerID), req.ScheduledDate)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Inspection assigned successfully", "inspection": result})
}

type ReassignInspectionRequest struct {
	InspectionID int `json:"inspectionId"`
	InspectorID  int `json:"inspectorId"`
}

var reassignInspectionRequestSchema = z.Struct(z.Shape{
	"InspectionID": z.Int().GT(0).Required(),
	"InspectorID":  z.Int().GT(0).Required(),
})

func (rs *RestfulServer) ReassignInspection(c *gin.Context) {
	var req ReassignInspectionRequest
	if err := reassignInspectionRequestSchema.Parse(zhttp.Request(c.Request), &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err})
		return
	}

	result, err := rs.Core.Lifecycle.Reassign(uint(req.InspectionID), uint(req.InspectorID))
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Inspection assigned successfully", "inspection": result})
}

func (rs *RestfulServer) GetManagers(c *gin.Context) {
	managers, err := rs.Core.User.ListManagers()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, managers)
}

// canReadInspection mirrors the read matrix: admin, the assigned
// inspector, or the owning customer.
func (rs *RestfulServer) canReadInspection(actor inspection.Actor, insp *models.Inspection) bool {
	switch actor.Role {
	case models.RoleAdmin:
		return true
	case models.RoleInspectionManager:
		return insp.InspectorID == actor.ID
	case models.RoleCustomer:
		return insp.Device != nil && insp.Device.CustomerID == actor.ID
	}
	return false
}

func (rs *RestfulServer) GetCustomerInspectionDetails(c *gin.Context) {
	inspectionID, ok := uintParam(c, "id")
	if !ok {
		return
	}

	detail, err := rs.Core.Lifecycle.Detail(inspectionID)
	if err != nil {
		fail(c, err)
		return
	}

	if !rs.canReadInspection(auth.CurrentActor(c), detail) {
		fail(c, inspection.NewError(inspection.KindForbidden, "Not authorized"))
		return
	}

	c.JSON(http.StatusOK, inspectionDetailResponse(detail))
}

func (rs *RestfulServer) serveAttachment(c *gin.Context, kind models.AttachmentKind, attachmentParam string, disposition string) {
	inspectionID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	attachmentID, ok := uintParam(c, attachmentParam)
	if !ok {
		return
	}

	detail, err := rs.Core.Lifecycle.Detail(inspectionID)
	if err != nil {
		fail(c, err)
		return
	}

	if !rs.canReadInspection(auth.CurrentActor(c), detail) {
		fail(c, inspection.NewError(inspection.KindForbidden, "Not authorized"))
		return
	}

	var attachment *models.Attachment
	for i := range detail.Attachments {
		if detail.Attachments[i].ID == attachmentID && detail.Attachments[i].Kind == kind {
			attachment = &detail.Attachments[i]
			break
		}
	}
	if attachment == nil {
		fail(c, inspection.NewError(inspection.KindNotFound, "Attachment not found"))
		return
	}

	reader, err := rs.Core.Store.Open(attachment.Filename)
	if err != nil {
		fail(c, inspection.NewError(inspection.KindNotFound, "File not found"))
		return
	}
	defer reader.Close()

	name := attachment.OriginalName
	if name == "" {
		name = attachment.Filename
	}
	c.DataFromReader(http.StatusOK, attachment.Size, attachment.ContentType, reader, map[string]string{
		"Content-Disposition": fmt.Sprintf(`%s; filename="%s"`, disposition, name),
	})
}

func (rs *RestfulServer) ServeDocument(c *gin.Context) {
	rs.serveAttachment(c, models.AttachmentKindDocument, "docId", "attachment")
}

func (rs *RestfulServer) ServeImage(c *gin.Context) {
	rs.serveAttachment(c, models.AttachmentKindPhoto, "imageId", "inline")
}
