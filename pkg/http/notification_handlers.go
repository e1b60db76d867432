package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"liyu1981.xyz/safety-inspection-service/pkg/auth"
)

// unreadNotificationLimit caps the unread feed so stale accounts do not
// drag the whole backlog over the wire.
const unreadNotificationLimit = 20

func (rs *RestfulServer) GetUnreadNotifications(c *gin.Context) {
	actor := auth.CurrentActor(c)
	notifications, err := rs.Core.Notification.ListUnread(actor.ID, unreadNotificationLimit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, notifications)
}

func (rs *RestfulServer) MarkNotificationRead(c *gin.Context) {
	notificationID, ok := uintParam(c, "id")
	if !ok {
		return
	}

	actor := auth.CurrentActor(c)
	notification, err := rs.Core.Notification.MarkRead(notificationID, actor.ID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, notification)
}

func (rs *RestfulServer) ClearNotifications(c *gin.Context) {
	actor := auth.CurrentActor(c)
	if err := rs.Core.Notification.ClearAll(actor.ID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notifications cleared"})
}
