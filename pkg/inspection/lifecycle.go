package inspection

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"liyu1981.xyz/safety-inspection-service/pkg/common"
	"liyu1981.xyz/safety-inspection-service/pkg/models"
)

const (
	MaxPhotoCount    = 5
	MaxDocumentCount = 5
)

// errStateGuard signals that the in-transaction state re-check lost a
// race: another writer moved the inspection first.
var errStateGuard = errors.New("inspection state changed concurrently")

func lifecycleLogger() *zap.Logger {
	return common.GetLoggerWith(
		common.LoggerNameInspectionCore,
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryLifecycle),
	)
}

func (c *Core) loadInspection(inspectionID uint) (*models.Inspection, error) {
	var inspection models.Inspection
	if err := c.Db.Conn.First(&inspection, inspectionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewError(KindNotFound, "Inspection not found")
		}
		return nil, WrapInternal("load inspection", err)
	}
	return &inspection, nil
}

// assign creates a Scheduled inspection, notifies the inspector and
// flips the device status, all in one transaction.
func (c *Core) assign(deviceID, inspectorID uint, scheduledDate time.Time) (*models.Inspection, error) {
	logger := lifecycleLogger()

	var device models.Device
	if err := c.Db.Conn.First(&device, deviceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewError(KindNotFound, "Device not found")
		}
		return nil, WrapInternal("load device", err)
	}

	var inspector models.User
	if err := c.Db.Conn.First(&inspector, inspectorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewError(KindInvalidArgument, "Invalid manager selected")
		}
		return nil, WrapInternal("load inspector", err)
	}
	if inspector.Role != models.RoleInspectionManager {
		return nil, NewError(KindInvalidArgument, "Invalid manager selected")
	}

	inspection := models.Inspection{
		DeviceID:      deviceID,
		InspectorID:   inspectorID,
		Status:        models.InspectionStatusScheduled,
		ScheduledDate: scheduledDate,
	}

	err := c.Db.Conn.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&inspection).Error; err != nil {
			return err
		}
		if err := c.Notification.Notify(tx, &models.Notification{
			RecipientID:  inspectorID,
			Message:      fmt.Sprintf("New inspection assigned for device %s", device.SerialNumber),
			Type:         models.NotificationTypeInspectionAssigned,
			InspectionID: &inspection.ID,
			DeviceID:     &device.ID,
		}); err != nil {
			return err
		}
		return tx.Model(&models.Device{}).
			Where("id = ?", device.ID).
			Update("status", models.DeviceStatusInspectionScheduled).Error
	})
	if err != nil {
		return nil, WrapInternal("assign inspection", err)
	}

	logger.Info("Assigned inspection",
		zap.Uint("inspection_id", inspection.ID),
		zap.Uint("device_id", deviceID),
		zap.Uint("inspector_id", inspectorID))
	return &inspection, nil
}

func (c *Core) start(inspectionID, byUserID uint) (*models.Inspection, error) {
	inspection, err := c.loadInspection(inspectionID)
	if err != nil {
		return nil, err
	}
	if inspection.InspectorID != byUserID {
		return nil, NewError(KindForbidden, "Not authorized")
	}
	if inspection.Status != models.InspectionStatusScheduled {
		return nil, NewError(KindInvalidState, "Inspection cannot be started")
	}

	// guard on the current state so a racing writer loses cleanly
	res := c.Db.Conn.Model(&models.Inspection{}).
		Where("id = ? AND status = ?", inspectionID, models.InspectionStatusScheduled).
		Update("status", models.InspectionStatusInProgress)
	if res.Error != nil {
		return nil, WrapInternal("start inspection", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, NewError(KindInvalidState, "Inspection cannot be started")
	}

	lifecycleLogger().Info("Started inspection", zap.Uint("inspection_id", inspectionID))
	return c.loadInspection(inspectionID)
}

// parseChecklist is deliberately lenient: malformed input degrades to
// an empty checklist instead of failing the completion.
func parseChecklist(raw string) models.Checklist {
	if raw == "" {
		return models.Checklist{}
	}
	var checklist models.Checklist
	if err := json.Unmarshal([]byte(raw), &checklist); err != nil {
		lifecycleLogger().Warn("Failed to parse checklist, substituting empty list", zap.Error(err))
		return models.Checklist{}
	}
	return checklist
}

func (c *Core) storeUploads(kind models.AttachmentKind, files []UploadFile) ([]models.Attachment, error) {
	stored := []models.Attachment{}
	for _, file := range files {
		r, err := file.Open()
		if err != nil {
			return stored, err
		}
		meta, err := c.Store.Save(kind, file.OriginalName, file.ContentType, r)
		r.Close()
		if err != nil {
			return stored, err
		}
		stored = append(stored, *meta)
	}
	return stored, nil
}

func storedFilenames(stored []models.Attachment) []string {
	return common.Mapper(stored, func(a models.Attachment) string { return a.Filename })
}

// complete is the critical multi-entity transaction: inspection update,
// attachment rows, device mutation and owner notification commit as one
// unit. Blobs written to the attachment store before the transaction
// are removed again if it aborts.
func (c *Core) complete(inspectionID, byUserID uint, input *CompleteInput) (*models.Inspection, error) {
	logger := lifecycleLogger()

	inspection, err := c.loadInspection(inspectionID)
	if err != nil {
		return nil, err
	}
	if inspection.InspectorID != byUserID {
		return nil, NewError(KindForbidden, "Not authorized")
	}
	if inspection.Status != models.InspectionStatusInProgress {
		return nil, NewError(KindInvalidState, "Inspection cannot be completed")
	}
	if !input.Result.Valid() {
		return nil, NewError(KindInvalidArgument, "Invalid inspection result")
	}
	if len(input.Photos) > MaxPhotoCount {
		return nil, NewError(KindInvalidArgument, fmt.Sprintf("Too many photos (max %d)", MaxPhotoCount))
	}
	if len(input.Documents) > MaxDocumentCount {
		return nil, NewError(KindInvalidArgument, fmt.Sprintf("Too many documents (max %d)", MaxDocumentCount))
	}

	checklist := parseChecklist(input.ChecklistRaw)

	stored, err := c.storeUploads(models.AttachmentKindPhoto, input.Photos)
	if err != nil {
		c.Store.Remove(storedFilenames(stored)...)
		return nil, WrapInternal("store photos", err)
	}
	documents, err := c.storeUploads(models.AttachmentKindDocument, input.Documents)
	stored = append(stored, documents...)
	if err != nil {
		c.Store.Remove(storedFilenames(stored)...)
		return nil, WrapInternal("store documents", err)
	}

	now := time.Now()

	err = c.Db.Conn.Transaction(func(tx *gorm.DB) error {
		// re-check the precondition inside the transaction; first
		// committer wins, the loser sees zero affected rows
		res := tx.Model(&models.Inspection{}).
			Where("id = ? AND status = ?", inspectionID, models.InspectionStatusInProgress).
			Updates(map[string]interface{}{
				"status":         models.InspectionStatusCompleted,
				"completed_date": now,
				"result":         input.Result,
				"comments":       input.Comments,
				"checklist":      checklist,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errStateGuard
		}

		for i := range stored {
			stored[i].InspectionID = inspectionID
			if err := tx.Create(&stored[i]).Error; err != nil {
				return err
			}
		}

		var device models.Device
		if err := tx.First(&device, inspection.DeviceID).Error; err != nil {
			return err
		}
		if err := applyInspectionResult(tx, &device, input.Result, inspectionID, now); err != nil {
			return err
		}

		return c.Notification.Notify(tx, &models.Notification{
			RecipientID:  device.CustomerID,
			Message:      fmt.Sprintf("Inspection completed for device %s. Result: %s", device.SerialNumber, input.Result),
			Type:         models.NotificationTypeInspectionCompleted,
			InspectionID: &inspectionID,
			DeviceID:     &device.ID,
		})
	})
	if err != nil {
		// compensate: the blobs are outside the db transaction
		c.Store.Remove(storedFilenames(stored)...)
		if errors.Is(err, errStateGuard) {
			return nil, NewError(KindInvalidState, "Inspection cannot be completed")
		}
		return nil, WrapInternal("complete inspection", err)
	}

	logger.Info("Completed inspection",
		zap.Uint("inspection_id", inspectionID),
		zap.String("result", string(input.Result)))
	return c.detail(inspectionID)
}

// reassign changes the inspector on a Scheduled inspection. Later
// states refuse: silently resetting a completed inspection would strand
// its device-status side effects.
func (c *Core) reassign(inspectionID, newInspectorID uint) (*models.Inspection, error) {
	inspection, err := c.loadInspection(inspectionID)
	if err != nil {
		return nil, err
	}
	if inspection.Status != models.InspectionStatusScheduled {
		return nil, NewError(KindInvalidState, "Inspection cannot be reassigned")
	}

	var inspector models.User
	if err := c.Db.Conn.First(&inspector, newInspectorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewError(KindInvalidArgument, "Invalid inspector")
		}
		return nil, WrapInternal("load inspector", err)
	}
	if inspector.Role != models.RoleInspectionManager {
		return nil, NewError(KindInvalidArgument, "Invalid inspector")
	}

	var device models.Device
	if err := c.Db.Conn.First(&device, inspection.DeviceID).Error; err != nil {
		return nil, WrapInternal("load device", err)
	}

	err = c.Db.Conn.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Inspection{}).
			Where("id = ? AND status = ?", inspectionID, models.InspectionStatusScheduled).
			Update("inspector_id", newInspectorID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errStateGuard
		}
		return c.Notification.Notify(tx, &models.Notification{
			RecipientID:  newInspectorID,
			Message:      fmt.Sprintf("New inspection assigned for device %s", device.SerialNumber),
			Type:         models.NotificationTypeInspectionAssigned,
			InspectionID: &inspectionID,
			DeviceID:     &device.ID,
		})
	})
	if err != nil {
		if errors.Is(err, errStateGuard) {
			return nil, NewError(KindInvalidState, "Inspection cannot be reassigned")
		}
		return nil, WrapInternal("reassign inspection", err)
	}

	return c.loadInspection(inspectionID)
}

func (c *Core) assignedTo(inspectorID uint, activeOnly bool) ([]models.Inspection, error) {
	q := c.Db.Conn.Preload("Device").Where("inspector_id = ?", inspectorID)
	if activeOnly {
		q = q.Where("status IN ?", []models.InspectionStatus{
			models.InspectionStatusScheduled,
			models.InspectionStatusInProgress,
		})
	}
	var inspections []models.Inspection
	if err := q.Order("scheduled_date asc").Find(&inspections).Error; err != nil {
		return nil, WrapInternal("list assigned inspections", err)
	}
	return inspections, nil
}

func (c *Core) detail(inspectionID uint) (*models.Inspection, error) {
	var inspection models.Inspection
	err := c.Db.Conn.
		Preload("Device").
		Preload("Inspector").
		Preload("Attachments").
		First(&inspection, inspectionID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewError(KindNotFound, "Inspection not found")
		}
		return nil, WrapInternal("load inspection detail", err)
	}
	return &inspection, nil
}

func (c *Core) listAll() ([]models.Inspection, error) {
	var inspections []models.Inspection
	err := c.Db.Conn.
		Preload("Device").
		Preload("Inspector").
		Order("scheduled_date asc").
		Find(&inspections).Error
	if err != nil {
		return nil, WrapInternal("list inspections", err)
	}
	return inspections, nil
}

func (c *Core) managerAnalytics(inspectorID uint) (*ManagerAnalytics, error) {
	var analytics ManagerAnalytics
	err := c.Db.Conn.Model(&models.Inspection{}).
		Where("inspector_id = ? AND status = ?", inspectorID, models.InspectionStatusCompleted).
		Count(&analytics.Completed).Error
	if err != nil {
		return nil, WrapInternal("count completed inspections", err)
	}
	err = c.Db.Conn.Model(&models.Inspection{}).
		Where("inspector_id = ? AND status IN ?", inspectorID, []models.InspectionStatus{
			models.InspectionStatusScheduled,
			models.InspectionStatusInProgress,
		}).
		Count(&analytics.Assigned).Error
	if err != nil {
		return nil, WrapInternal("count assigned inspections", err)
	}
	return &analytics, nil
}

func (c *Core) latestForDevice(deviceID uint) ([]models.Inspection, error) {
	var inspections []models.Inspection
	err := c.Db.Conn.
		Where("device_id = ?", deviceID).
		Order("completed_date desc").
		Limit(1).
		Find(&inspections).Error
	if err != nil {
		return nil, WrapInternal("load latest device inspection", err)
	}
	return inspections, nil
}

func (c *Core) completedForCustomer(customerID uint) ([]models.Inspection, error) {
	var inspections []models.Inspection
	err := c.Db.Conn.
		Preload("Device").
		Joins("JOIN devices ON devices.id = inspections.device_id").
		Where("devices.customer_id = ? AND inspections.status = ?", customerID, models.InspectionStatusCompleted).
		Order("inspections.completed_date desc").
		Find(&inspections).Error
	if err != nil {
		return nil, WrapInternal("list completed inspections", err)
	}
	return inspections, nil
}

type ILifecycleImpl struct {
	core *Core
}

func (il *ILifecycleImpl) Assign(deviceID, inspectorID uint, scheduledDate time.Time) (*models.Inspection, error) {
	return il.core.assign(deviceID, inspectorID, scheduledDate)
}

func (il *ILifecycleImpl) Start(inspectionID, byUserID uint) (*models.Inspection, error) {
	return il.core.start(inspectionID, byUserID)
}

func (il *ILifecycleImpl) Complete(inspectionID, byUserID uint, input *CompleteInput) (*models.Inspection, error) {
	return il.core.complete(inspectionID, byUserID, input)
}

func (il *ILifecycleImpl) Reassign(inspectionID, newInspectorID uint) (*models.Inspection, error) {
	return il.core.reassign(inspectionID, newInspectorID)
}

func (il *ILifecycleImpl) AssignedTo(inspectorID uint, activeOnly bool) ([]models.Inspection, error) {
	return il.core.assignedTo(inspectorID, activeOnly)
}

func (il *ILifecycleImpl) Detail(inspectionID uint) (*models.Inspection, error) {
	return il.core.detail(inspectionID)
}

func (il *ILifecycleImpl) ListAll() ([]models.Inspection, error) {
	return il.core.listAll()
}

func (il *ILifecycleImpl) ManagerAnalytics(inspectorID uint) (*ManagerAnalytics, error) {
	return il.core.managerAnalytics(inspectorID)
}

func (il *ILifecycleImpl) LatestForDevice(deviceID uint) ([]models.Inspection, error) {
	return il.core.latestForDevice(deviceID)
}

func (il *ILifecycleImpl) CompletedForCustomer(customerID uint) ([]models.Inspection, error) {
	return il.core.completedForCustomer(customerID)
}

func (c *Core) GetILifecycle() ILifecycle {
	return &ILifecycleImpl{core: c}
}
