package inspection

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"liyu1981.xyz/safety-inspection-service/pkg/common"
	"liyu1981.xyz/safety-inspection-service/pkg/models"
)

type qrPayload struct {
	ID               uint              `json:"id"`
	SerialNumber     string            `json:"serialNumber"`
	Type             models.DeviceType `json:"type"`
	LastInspectionID *uint             `json:"lastInspectionId,omitempty"`
}

// EncodeQRPayload builds the compact payload a QR renderer turns into
// an image. Rendering itself happens client side.
func EncodeQRPayload(d *models.Device) string {
	raw, err := json.Marshal(qrPayload{
		ID:               d.ID,
		SerialNumber:     d.SerialNumber,
		Type:             d.Type,
		LastInspectionID: d.LastInspectionID,
	})
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

func (c *Core) registerDevice(customerID uint, serialNumber string, deviceType models.DeviceType, location string, installationDate time.Time) (*models.Device, error) {
	logger := common.GetLoggerWith(
		common.LoggerNameInspectionCore,
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryDevice),
	)

	if !deviceType.Valid() {
		return nil, NewError(KindInvalidArgument, "Invalid device type")
	}

	var count int64
	if err := c.Db.Conn.Model(&models.Device{}).Where("serial_number = ?", serialNumber).Count(&count).Error; err != nil {
		return nil, WrapInternal("check serial number", err)
	}
	if count > 0 {
		return nil, NewError(KindConflict, "Device serial number already exists")
	}

	device := models.Device{
		SerialNumber:     serialNumber,
		Type:             deviceType,
		Location:         location,
		InstallationDate: installationDate,
		CustomerID:       customerID,
		Status:           models.DeviceStatusApproved,
	}

	// the payload embeds the generated id, so create first and fill it
	// in within the same transaction
	err := c.Db.Conn.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&device).Error; err != nil {
			return err
		}
		device.QRPayload = EncodeQRPayload(&device)
		return tx.Model(&device).Update("qr_payload", device.QRPayload).Error
	})
	if err != nil {
		return nil, WrapInternal("register device", err)
	}

	logger.Info("Registered device", zap.Uint("device_id", device.ID), zap.String("serial_number", device.SerialNumber))
	return &device, nil
}

func (c *Core) getDevice(deviceID uint, requester Actor) (*models.Device, error) {
	var device models.Device
	if err := c.Db.Conn.First(&device, deviceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewError(KindNotFound, "Device not found")
		}
		return nil, WrapInternal("load device", err)
	}

	// customers see only their own devices; admin bypasses
	if requester.Role == models.RoleCustomer && device.CustomerID != requester.ID {
		return nil, NewError(KindForbidden, "Not authorized to access this device")
	}
	return &device, nil
}

func (c *Core) listCustomerDevices(customerID uint) ([]models.Device, error) {
	var devices []models.Device
	if err := c.Db.Conn.Where("customer_id = ?", customerID).Find(&devices).Error; err != nil {
		return nil, WrapInternal("list customer devices", err)
	}
	return devices, nil
}

func (c *Core) listAllDevices() ([]models.Device, error) {
	var devices []models.Device
	if err := c.Db.Conn.Preload("Customer").Find(&devices).Error; err != nil {
		return nil, WrapInternal("list devices", err)
	}
	return devices, nil
}

func (c *Core) updateDevice(deviceID, customerID uint, patch DevicePatch) (*models.Device, error) {
	var device models.Device
	// ownership is part of the lookup so a foreign id reads as absent
	if err := c.Db.Conn.Where("id = ? AND customer_id = ?", deviceID, customerID).First(&device).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewError(KindNotFound, "Device not found")
		}
		return nil, WrapInternal("load device", err)
	}

	updates := map[string]interface{}{}
	serialChanged := false
	if patch.SerialNumber != nil && *patch.SerialNumber != device.SerialNumber {
		var count int64
		if err := c.Db.Conn.Model(&models.Device{}).Where("serial_number = ? AND id != ?", *patch.SerialNumber, deviceID).Count(&count).Error; err != nil {
			return nil, WrapInternal("check serial number", err)
		}
		if count > 0 {
			return nil, NewError(KindConflict, "Device serial number already exists")
		}
		updates["serial_number"] = *patch.SerialNumber
		device.SerialNumber = *patch.SerialNumber
		serialChanged = true
	}
	if patch.Location != nil {
		updates["location"] = *patch.Location
	}
	if patch.InstallationDate != nil {
		updates["installation_date"] = *patch.InstallationDate
	}
	if patch.NextInspectionDate != nil {
		updates["next_inspection_date"] = *patch.NextInspectionDate
	}
	if serialChanged {
		updates["qr_payload"] = EncodeQRPayload(&device)
	}
	if len(updates) == 0 {
		return &device, nil
	}

	if err := c.Db.Conn.Model(&device).Updates(updates).Error; err != nil {
		return nil, WrapInternal("update device", err)
	}

	if err := c.Db.Conn.First(&device, deviceID).Error; err != nil {
		return nil, WrapInternal("reload device", err)
	}
	return &device, nil
}

func (c *Core) deleteDevice(deviceID, customerID uint) error {
	res := c.Db.Conn.Where("id = ? AND customer_id = ?", deviceID, customerID).Delete(&models.Device{})
	if res.Error != nil {
		return WrapInternal("delete device", res.Error)
	}
	if res.RowsAffected == 0 {
		return NewError(KindNotFound, "Device not found")
	}
	return nil
}

// applyInspectionResult mutates the device as a side effect of a
// completed inspection. Runs only inside a lifecycle transaction.
func applyInspectionResult(tx *gorm.DB, device *models.Device, result models.InspectionResult, inspectionID uint, now time.Time) error {
	device.Status = models.DeviceStatus(result)
	device.LastInspectionDate = &now
	device.LastInspectionID = &inspectionID
	device.QRPayload = EncodeQRPayload(device)
	return tx.Model(device).Updates(map[string]interface{}{
		"status":               device.Status,
		"last_inspection_date": device.LastInspectionDate,
		"last_inspection_id":   device.LastInspectionID,
		"qr_payload":           device.QRPayload,
	}).Error
}

type IDeviceImpl struct {
	core *Core
}

func (id *IDeviceImpl) RegisterDevice(customerID uint, serialNumber string, deviceType models.DeviceType, location string, installationDate time.Time) (*models.Device, error) {
	return id.core.registerDevice(customerID, serialNumber, deviceType, location, installationDate)
}

func (id *IDeviceImpl) GetDevice(deviceID uint, requester Actor) (*models.Device, error) {
	return id.core.getDevice(deviceID, requester)
}

func (id *IDeviceImpl) ListCustomerDevices(customerID uint) ([]models.Device, error) {
	return id.core.listCustomerDevices(customerID)
}

func (id *IDeviceImpl) ListAllDevices() ([]models.Device, error) {
	return id.core.listAllDevices()
}

func (id *IDeviceImpl) UpdateDevice(deviceID, customerID uint, patch DevicePatch) (*models.Device, error) {
	return id.core.updateDevice(deviceID, customerID, patch)
}

func (id *IDeviceImpl) DeleteDevice(deviceID, customerID uint) error {
	return id.core.deleteDevice(deviceID, customerID)
}

func (c *Core) GetIDevice() IDevice {
	return &IDeviceImpl{core: c}
}
