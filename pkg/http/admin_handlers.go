package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	z "github.com/Oudwins/zog"
	"github.com/Oudwins/zog/zhttp"

	"liyu1981.xyz/safety-inspection-service/pkg/models"
)

func (rs *RestfulServer) GetDashboardStats(c *gin.Context) {
	stats, err := rs.Core.Dashboard.Stats()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (rs *RestfulServer) GetRecentCompletedInspections(c *gin.Context) {
	recent, err := rs.Core.Dashboard.RecentCompleted()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, recent)
}

func (rs *RestfulServer) GetAllInspections(c *gin.Context) {
	inspections, err := rs.Core.Lifecycle.ListAll()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, inspections)
}

func (rs *RestfulServer) GetAdminInspectionDetails(c *gin.Context) {
	inspectionID, ok := uintParam(c, "id")
	if !ok {
		return
	}

	detail, err := rs.Core.Lifecycle.Detail(inspectionID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, inspectionDetailResponse(detail))
}

func (rs *RestfulServer) GetUsers(c *gin.Context) {
	users, err := rs.Core.User.ListUsers()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (rs *RestfulServer) PostUser(c *gin.Context) {
	var req RegisterRequest
	if err := registerRequestSchema.Parse(zhttp.Request(c.Request), &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err})
		return
	}

	user, err := rs.Core.User.Register(req.Name, req.Email, req.Password, models.Role(req.Role))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (rs *RestfulServer) PutUser(c *gin.Context) {
	userID, ok := uintParam(c, "id")
	if !ok {
		return
	}

	var req UpdateUserRequest
	if err := updateUserRequestSchema.Parse(zhttp.Request(c.Request), &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err})
		return
	}

	user, err := rs.Core.User.UpdateUser(userID, req.Name, req.Email)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

type UpdateUserRoleRequest struct {
	Role string `json:"role"`
}

var updateUserRoleRequestSchema = z.Struct(z.Shape{
	"Role": z.String().Required(),
})

func (rs *RestfulServer) PutUserRole(c *gin.Context) {
	userID, ok := uintParam(c, "id")
	if !ok {
		return
	}

	var req UpdateUserRoleRequest
	if err := updateUserRoleRequestSchema.Parse(zhttp.Request(c.Request), &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err})
		return
	}

	user, err := rs.Core.User.UpdateUserRole(userID, models.Role(req.Role))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (rs *RestfulServer) DeleteUser(c *gin.Context) {
	userID, ok := uintParam(c, "id")
	if !ok {
		return
	}

	if err := rs.Core.User.DeleteUser(userID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}

type LimiterRequest struct {
	UserID int     `json:"userId"`
	Rate   float64 `json:"rate"`
	Burst  int     `json:"burst"`
}

var limiterRequestSchema = z.Struct(z.Shape{
	"UserID": z.Int().GT(0).Required(),
	"Rate":   z.Float64().GT(0).Required(),
	"Burst":  z.Int().GT(0).Required(),
})

func (rs *RestfulServer) PostLimiter(c *gin.Context) {
	var req LimiterRequest
	if err := limiterRequestSchema.Parse(zhttp.Request(c.Request), &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err})
		return
	}

	rs.SetLimiter(uint(req.UserID), req.Rate, req.Burst)
	c.JSON(http.StatusOK, gin.H{"message": "Limiter updated"})
}
