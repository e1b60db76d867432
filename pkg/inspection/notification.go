package inspection

import (
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"liyu1981.xyz/safety-inspection-service/pkg/common"
	"liyu1981.xyz/safety-inspection-service/pkg/models"
)

func (c *Core) notify(tx *gorm.DB, n *models.Notification) error {
	logger := common.GetLoggerWith(
		common.LoggerNameInspectionCore,
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryNotification),
	)

	if err := tx.Create(n).Error; err != nil {
		return err
	}

	logger.Info("Notification created",
		zap.Uint("notification_id", n.ID),
		zap.Uint("recipient_id", n.RecipientID),
		zap.String("type", string(n.Type)))
	return nil
}

func (c *Core) listUnread(recipientID uint, limit int) ([]models.Notification, error) {
	var notifications []models.Notification
	err := c.Db.Conn.
		Where("recipient_id = ? AND read = ?", recipientID, false).
		Order("created_at desc").
		Limit(limit).
		Find(&notifications).Error
	if err != nil {
		return nil, WrapInternal("list notifications", err)
	}
	return notifications, nil
}

func (c *Core) markRead(notificationID, recipientID uint) (*models.Notification, error) {
	var notification models.Notification
	// recipient is part of the lookup so someone else's notification
	// reads as absent
	err := c.Db.Conn.
		Where("id = ? AND recipient_id = ?", notificationID, recipientID).
		First(&notification).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewError(KindNotFound, "Notification not found")
		}
		return nil, WrapInternal("load notification", err)
	}

	if err := c.Db.Conn.Model(&notification).Update("read", true).Error; err != nil {
		return nil, WrapInternal("mark notification read", err)
	}
	notification.Read = true
	return &notification, nil
}

func (c *Core) clearAll(recipientID uint) error {
	if err := c.Db.Conn.Where("recipient_id = ?", recipientID).Delete(&models.Notification{}).Error; err != nil {
		return WrapInternal("clear notifications", err)
	}
	return nil
}

type INotificationImpl struct {
	core *Core
}

func (in *INotificationImpl) Notify(tx *gorm.DB, n *models.Notification) error {
	return in.core.notify(tx, n)
}

func (in *INotificationImpl) ListUnread(recipientID uint, limit int) ([]models.Notification, error) {
	return in.core.listUnread(recipientID, limit)
}

func (in *INotificationImpl) MarkRead(notificationID, recipientID uint) (*models.Notification, error) {
	return in.core.markRead(notificationID, recipientID)
}

func (in *INotificationImpl) ClearAll(recipientID uint) error {
	return in.core.clearAll(recipientID)
}

func (c *Core) GetINotification() INotification {
	return &INotificationImpl{core: c}
}
