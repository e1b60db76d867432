package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"liyu1981.xyz/safety-inspection-service/pkg/inspection"
	"liyu1981.xyz/safety-inspection-service/pkg/models"
)

const (
	ctxKeyUserID = "userID"
	ctxKeyRole   = "role"
)

func extractToken(authHeader string) string {
	if strings.HasPrefix(authHeader, "Bearer ") {
		return authHeader[len("Bearer "):]
	}
	return authHeader
}

// RequireAuth verifies the bearer credential and stores the resolved
// identity on the request context.
func (s *Service) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   string(inspection.KindUnauthorized),
				"message": "No token, authorization denied",
			})
			return
		}

		claims, err := s.ParseToken(extractToken(authHeader))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   string(inspection.KindUnauthorized),
				"message": "Token is not valid",
			})
			return
		}

		c.Set(ctxKeyUserID, claims.UserID)
		c.Set(ctxKeyRole, claims.Role)
		c.Next()
	}
}

// RequireRoles rejects callers whose resolved role is not in the
// allow-list. An empty allow-list means any authenticated caller.
func RequireRoles(allowed ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(allowed) == 0 {
			c.Next()
			return
		}

		role, exists := c.Get(ctxKeyRole)
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   string(inspection.KindUnauthorized),
				"message": "No token, authorization denied",
			})
			return
		}

		for _, want := range allowed {
			if role == want {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error":   string(inspection.KindForbidden),
			"message": "Access denied. Insufficient permissions.",
		})
	}
}

// CurrentActor resolves the authenticated identity set by RequireAuth.
func CurrentActor(c *gin.Context) inspection.Actor {
	actor := inspection.Actor{}
	if v, ok := c.Get(ctxKeyUserID); ok {
		if id, ok := v.(uint); ok {
			actor.ID = id
		}
	}
	if v, ok := c.Get(ctxKeyRole); ok {
		if role, ok := v.(models.Role); ok {
			actor.Role = role
		}
	}
	return actor
}
