package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	z "github.com/Oudwins/zog"
	"github.com/Oudwins/zog/zhttp"

	"liyu1981.xyz/safety-inspection-service/pkg/auth"
	"liyu1981.xyz/safety-inspection-service/pkg/inspection"
	"liyu1981.xyz/safety-inspection-service/pkg/models"
)

type DeviceRequest struct {
	SerialNumber     string    `json:"serialNumber"`
	Type             string    `json:"type"`
	Location         string    `json:"location"`
	InstallationDate time.Time `json:"installationDate"`
}

var deviceRequestSchema = z.Struct(z.Shape{
	"SerialNumber":     z.String().Required(),
	"Type":             z.String().Required(),
	"Location":         z.String().Required(),
	"InstallationDate": z.Time().Required(),
})

func (rs *RestfulServer) PostDevice(c *gin.Context) {
	actor := auth.CurrentActor(c)

	if !rs.CheckUserLimiter(actor.ID) {
		c.Status(http.StatusTooManyRequests)
		return
	}

	var req DeviceRequest
	if err := deviceRequestSchema.Parse(zhttp.Request(c.Request), &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err})
		return
	}

	device, err := rs.Core.Device.RegisterDevice(actor.ID, req.SerialNumber, models.DeviceType(req.Type), req.Location, req.InstallationDate)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, device)
}

func (rs *RestfulServer) GetCustomerDevices(c *gin.Context) {
	actor := auth.CurrentActor(c)
	devices, err := rs.Core.Device.ListCustomerDevices(actor.ID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, devices)
}

func (rs *RestfulServer) GetAllDevices(c *gin.Context) {
	devices, err := rs.Core.Device.ListAllDevices()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, devices)
}

func (rs *RestfulServer) GetDevice(c *gin.Context) {
	deviceID, ok := uintParam(c, "id")
	if !ok {
		return
	}

	device, err := rs.Core.Device.GetDevice(deviceID, auth.CurrentActor(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, device)
}

type DeviceUpdateRequest struct {
	SerialNumber       *string    `json:"serialNumber"`
	Location           *string    `json:"location"`
	InstallationDate   *time.Time `json:"installationDate"`
	NextInspectionDate *time.Time `json:"nextInspectionDate"`
}

var deviceUpdateRequestSchema = z.Struct(z.Shape{
	"SerialNumber":       z.Ptr(z.String()),
	"Location":           z.Ptr(z.String()),
	"InstallationDate":   z.Ptr(z.Time()),
	"NextInspectionDate": z.Ptr(z.Time()),
})

func (rs *RestfulServer) PutDevice(c *gin.Context) {
	deviceID, ok := uintParam(c, "id")
	if !ok {
		return
	}

	var req DeviceUpdateRequest
	if err := deviceUpdateRequestSchema.Parse(zhttp.Request(c.Request), &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err})
		return
	}

	actor := auth.CurrentActor(c)
	device, err := rs.Core.Device.UpdateDevice(deviceID, actor.ID, inspection.DevicePatch{
		SerialNumber:       req.SerialNumber,
		Location:           req.Location,
		InstallationDate:   req.InstallationDate,
		NextInspectionDate: req.NextInspectionDate,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, device)
}

func (rs *RestfulServer) DeleteDevice(c *gin.Context) {
	deviceID, ok := uintParam(c, "id")
	if !ok {
		return
	}

	actor := auth.CurrentActor(c)
	if err := rs.Core.Device.DeleteDevice(deviceID, actor.ID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Device deleted successfully"})
}

func (rs *RestfulServer) GetCustomerAnalytics(c *gin.Context) {
	actor := auth.CurrentActor(c)
	analytics, err := rs.Core.Dashboard.CustomerAnalytics(actor.ID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, analytics)
}

func (rs *RestfulServer) GetCustomerCompletedInspections(c *gin.Context) {
	actor := auth.CurrentActor(c)
	inspections, err := rs.Core.Lifecycle.CompletedForCustomer(actor.ID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, inspections)
}

func (rs *RestfulServer) GetDeviceInspections(c *gin.Context) {
	deviceID, ok := uintParam(c, "deviceId")
	if !ok {
		return
	}

	// scope check: the device must belong to the caller
	if _, err := rs.Core.Device.GetDevice(deviceID, auth.CurrentActor(c)); err != nil {
		fail(c, err)
		return
	}

	inspections, err := rs.Core.Lifecycle.LatestForDevice(deviceID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, inspections)
}
