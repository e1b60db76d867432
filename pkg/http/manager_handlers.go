package http

import (
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"liyu1981.xyz/safety-inspection-service/pkg/auth"
	"liyu1981.xyz/safety-inspection-service/pkg/inspection"
	"liyu1981.xyz/safety-inspection-service/pkg/models"
)

func (rs *RestfulServer) GetAssignedInspections(c *gin.Context) {
	actor := auth.CurrentActor(c)
	inspections, err := rs.Core.Lifecycle.AssignedTo(actor.ID, true)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, inspections)
}

func (rs *RestfulServer) GetManagerInspections(c *gin.Context) {
	actor := auth.CurrentActor(c)
	inspections, err := rs.Core.Lifecycle.AssignedTo(actor.ID, false)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, inspections)
}

func (rs *RestfulServer) GetManagerAnalytics(c *gin.Context) {
	actor := auth.CurrentActor(c)
	analytics, err := rs.Core.Lifecycle.ManagerAnalytics(actor.ID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, analytics)
}

func (rs *RestfulServer) StartInspection(c *gin.Context) {
	actor := auth.CurrentActor(c)

	if !rs.CheckUserLimiter(actor.ID) {
		c.Status(http.StatusTooManyRequests)
		return
	}

	inspectionID, ok := uintParam(c, "id")
	if !ok {
		return
	}

	result, err := rs.Core.Lifecycle.Start(inspectionID, actor.ID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func uploadFromHeader(fh *multipart.FileHeader) inspection.UploadFile {
	return inspection.UploadFile{
		OriginalName: fh.Filename,
		ContentType:  fh.Header.Get("Content-Type"),
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

func (rs *RestfulServer) CompleteInspection(c *gin.Context) {
	actor := auth.CurrentActor(c)

	if !rs.CheckUserLimiter(actor.ID) {
		c.Status(http.StatusTooManyRequests)
		return
	}

	inspectionID, ok := uintParam(c, "id")
	if !ok {
		return
	}

	input := &inspection.CompleteInput{
		Result:       models.InspectionResult(c.PostForm("result")),
		Comments:     c.PostForm("comments"),
		ChecklistRaw: c.PostForm("checklist"),
	}

	// photos/documents come in as multipart file fields; the form is
	// optional because a completion may carry no attachments at all
	if form, err := c.MultipartForm(); err == nil && form != nil {
		for _, fh := range form.File["photos"] {
			input.Photos = append(input.Photos, uploadFromHeader(fh))
		}
		for _, fh := range form.File["documents"] {
			input.Documents = append(input.Documents, uploadFromHeader(fh))
		}
	}

	result, err := rs.Core.Lifecycle.Complete(inspectionID, actor.ID, input)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Inspection completed successfully", "inspection": result})
}

func (rs *RestfulServer) GetManagerInspectionDetails(c *gin.Context) {
	inspectionID, ok := uintParam(c, "id")
	if !ok {
		return
	}

	detail, err := rs.Core.Lifecycle.Detail(inspectionID)
	if err != nil {
		fail(c, err)
		return
	}

	actor := auth.CurrentActor(c)
	if detail.InspectorID != actor.ID {
		fail(c, inspection.NewError(inspection.KindForbidden, "Not authorized"))
		return
	}

	c.JSON(http.StatusOK, inspectionDetailResponse(detail))
}

func (rs *RestfulServer) GetInspectionImages(c *gin.Context) {
	inspectionID, ok := uintParam(c, "id")
	if !ok {
		return
	}

	detail, err := rs.Core.Lifecycle.Detail(inspectionID)
	if err != nil {
		fail(c, err)
		return
	}

	actor := auth.CurrentActor(c)
	if detail.InspectorID != actor.ID {
		fail(c, inspection.NewError(inspection.KindForbidden, "Not authorized"))
		return
	}

	c.JSON(http.StatusOK, detail.Photos())
}

// inspectionDetailResponse flattens the attachment rows back into the
// photos/documents shape the clients expect.
func inspectionDetailResponse(detail *models.Inspection) gin.H {
	return gin.H{
		"inspection": detail,
		"checklist":  detail.Checklist,
		"photos":     detail.Photos(),
		"documents":  detail.Documents(),
	}
}
