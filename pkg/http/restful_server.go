package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"liyu1981.xyz/safety-inspection-service/pkg/auth"
	"liyu1981.xyz/safety-inspection-service/pkg/common"
	"liyu1981.xyz/safety-inspection-service/pkg/inspection"
	"liyu1981.xyz/safety-inspection-service/pkg/models"
)

type RestfulServer struct {
	Server           *gin.Engine
	Core             *inspection.Core
	Auth             *auth.Service
	RateLimiterStore *inspection.RateLimiterStore
}

func (rs *RestfulServer) GetLimiter(userID uint) *rate.Limiter {
	if rs.RateLimiterStore == nil {
		return nil
	} else {
		return rs.RateLimiterStore.GetLimiter(userID)
	}
}

func (rs *RestfulServer) CheckUserLimiter(userID uint) bool {
	limiter := rs.GetLimiter(userID)
	if limiter == nil {
		return true
	}
	return limiter.Allow()
}

func (rs *RestfulServer) SetLimiter(userID uint, userRate float64, userBurst int) {
	if rs.RateLimiterStore == nil {
		return
	}
	rs.RateLimiterStore.SetLimiter(userID, rate.Limit(userRate), userBurst)
}

func statusOf(kind inspection.ErrorKind) int {
	switch kind {
	case inspection.KindUnauthorized:
		return http.StatusUnauthorized
	case inspection.KindForbidden:
		return http.StatusForbidden
	case inspection.KindNotFound:
		return http.StatusNotFound
	case inspection.KindInvalidArgument, inspection.KindInvalidState:
		return http.StatusBadRequest
	case inspection.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// fail writes the stable error kind and message; internal causes go to
// the log, never to the caller.
func fail(c *gin.Context, err error) {
	kind := inspection.KindOf(err)
	if kind == inspection.KindInternal {
		common.GetLoggerWith(common.LoggerNameRestfulServer).Error("Request failed", zap.Error(err))
	}
	c.JSON(statusOf(kind), gin.H{
		"error":   string(kind),
		"message": inspection.MessageOf(err),
	})
}

func uintParam(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		fail(c, inspection.NewError(inspection.KindInvalidArgument, "Invalid "+name))
		return 0, false
	}
	return uint(v), true
}

func (rs *RestfulServer) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (rs *RestfulServer) Setup() {
	rs.Server.GET("/healthz", rs.HealthCheck)

	api := rs.Server.Group("/api")

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", rs.Register)
		authGroup.POST("/login", rs.Login)
		authGroup.GET("/user", rs.Auth.RequireAuth(), rs.GetCurrentUser)
		authGroup.PUT("/user", rs.Auth.RequireAuth(), rs.UpdateCurrentUser)
	}

	devices := api.Group("/devices", rs.Auth.RequireAuth())
	{
		devices.POST("", auth.RequireRoles(models.RoleCustomer), rs.PostDevice)
		devices.GET("", auth.RequireRoles(models.RoleCustomer), rs.GetCustomerDevices)
		devices.GET("/all", auth.RequireRoles(models.RoleAdmin), rs.GetAllDevices)
		devices.GET("/analytics", auth.RequireRoles(models.RoleCustomer), rs.GetCustomerAnalytics)
		devices.GET("/:id", rs.GetDevice)
		devices.PUT("/:id", auth.RequireRoles(models.RoleCustomer), rs.PutDevice)
		devices.DELETE("/:id", auth.RequireRoles(models.RoleCustomer), rs.DeleteDevice)
	}

	inspections := api.Group("/inspections", rs.Auth.RequireAuth())
	{
		inspections.POST("/assign", auth.RequireRoles(models.RoleAdmin), rs.AssignInspection)
		inspections.POST("/reassign", auth.RequireRoles(models.RoleAdmin), rs.ReassignInspection)
		inspections.GET("/managers", auth.RequireRoles(models.RoleAdmin), rs.GetManagers)
		inspections.GET("/:id/documents/:docId", rs.ServeDocument)
		inspections.GET("/:id/images/:imageId", rs.ServeImage)
	}

	manager := api.Group("/manager", rs.Auth.RequireAuth(), auth.RequireRoles(models.RoleInspectionManager))
	{
		manager.GET("/assigned", rs.GetAssignedInspections)
		manager.GET("/inspections", rs.GetManagerInspections)
		manager.GET("/analytics", rs.GetManagerAnalytics)
		manager.POST("/start-inspection/:id", rs.StartInspection)
		manager.POST("/complete-inspection/:id", rs.CompleteInspection)
		manager.GET("/inspection-details/:id", rs.GetManagerInspectionDetails)
		manager.GET("/inspection-images/:id", rs.GetInspectionImages)
		manager.GET("/notifications", rs.GetUnreadNotifications)
		manager.DELETE("/notifications", rs.ClearNotifications)
	}

	customer := api.Group("/customer", rs.Auth.RequireAuth(), auth.RequireRoles(models.RoleCustomer))
	{
		customer.GET("/customer-notifications", rs.GetUnreadNotifications)
		customer.PATCH("/customer-notifications/:id", rs.MarkNotificationRead)
		customer.DELETE("/customer-notifications", rs.ClearNotifications)
		customer.GET("/analytics", rs.GetCustomerAnalytics)
		customer.GET("/completed-inspections", rs.GetCustomerCompletedInspections)
		customer.GET("/device-inspections/:deviceId", rs.GetDeviceInspections)
		customer.GET("/inspection-details/:id", rs.GetCustomerInspectionDetails)
	}

	admin := api.Group("/admin", rs.Auth.RequireAuth(), auth.RequireRoles(models.RoleAdmin))
	{
		admin.GET("/dashboard-stats", rs.GetDashboardStats)
		admin.GET("/recent-completed-inspections", rs.GetRecentCompletedInspections)
		admin.GET("/all-inspections", rs.GetAllInspections)
		admin.GET("/all-devices", rs.GetAllDevices)
		admin.GET("/inspection-details/:id", rs.GetAdminInspectionDetails)

		admin.GET("/users", rs.GetUsers)
		admin.POST("/users", rs.PostUser)
		admin.PUT("/users/:id", rs.PutUser)
		admin.PUT("/users/:id/role", rs.PutUserRole)
		admin.DELETE("/users/:id", rs.DeleteUser)

		admin.GET("/notifications", rs.GetUnreadNotifications)
		admin.PUT("/notifications/:id/read", rs.MarkNotificationRead)
		admin.DELETE("/notifications", rs.ClearNotifications)

		admin.POST("/limiter", rs.PostLimiter)
	}
}
