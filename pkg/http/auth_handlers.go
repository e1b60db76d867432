package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	z "github.com/Oudwins/zog"
	"github.com/Oudwins/zog/zhttp"

	"liyu1981.xyz/safety-inspection-service/pkg/auth"
	"liyu1981.xyz/safety-inspection-service/pkg/inspection"
	"liyu1981.xyz/safety-inspection-service/pkg/models"
)

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

var registerRequestSchema = z.Struct(z.Shape{
	"Name":     z.String().Required(),
	"Email":    z.String().Email().Required(),
	"Password": z.String().Min(8).Required(),
	"Role":     z.String().Required(),
})

func (rs *RestfulServer) Register(c *gin.Context) {
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

	token, err := rs.Auth.GenerateToken(user)
	if err != nil {
		fail(c, inspection.WrapInternal("issue token", err))
		return
	}

	c.JSON(http.StatusCreated, gin.H{"token": token, "user": user})
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

var loginRequestSchema = z.Struct(z.Shape{
	"Email":    z.String().Email().Required(),
	"Password": z.String().Required(),
})

func (rs *RestfulServer) Login(c *gin.Context) {
	var req LoginRequest
	if err := loginRequestSchema.Parse(zhttp.Request(c.Request), &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err})
		return
	}

	user, err := rs.Core.User.Authenticate(req.Email, req.Password)
	if err != nil {
		fail(c, err)
		return
	}

	token, err := rs.Auth.GenerateToken(user)
	if err != nil {
		fail(c, inspection.WrapInternal("issue token", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

func (rs *RestfulServer) GetCurrentUser(c *gin.Context) {
	actor := auth.CurrentActor(c)
	user, err := rs.Core.User.GetUser(actor.ID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

type UpdateUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

var updateUserRequestSchema = z.Struct(z.Shape{
	"Name":  z.String().Required(),
	"Email": z.String().Email().Required(),
})

func (rs *RestfulServer) UpdateCurrentUser(c *gin.Context) {
	var req UpdateUserRequest
	if err := updateUserRequestSchema.Parse(zhttp.Request(c.Request), &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err})
		return
	}

	actor := auth.CurrentActor(c)
	user, err := rs.Core.User.UpdateUser(actor.ID, req.Name, req.Email)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
