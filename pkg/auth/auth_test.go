package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liyu1981.xyz/safety-inspection-service/pkg/models"
	_ "liyu1981.xyz/safety-inspection-service/pkg/testing"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := NewService("test-secret")

	user := &models.User{ID: 42, Role: models.RoleInspectionManager}
	token, err := svc.GenerateToken(user)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, models.RoleInspectionManager, claims.Role)
}

func TestParseToken_WrongSecret(t *testing.T) {
	token, err := NewService("one-secret").GenerateToken(&models.User{ID: 1, Role: models.RoleCustomer})
	require.NoError(t, err)

	_, err = NewService("other-secret").ParseToken(token)
	assert.Error(t, err)
}

func TestParseToken_Expired(t *testing.T) {
	svc := NewService("test-secret")

	past := time.Now().Add(-2 * tokenLifetime)
	claims := &Claims{
		UserID: 3,
		Role:   models.RoleCustomer,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(past.Add(tokenLifetime)),
			IssuedAt:  jwt.NewNumericDate(past),
			NotBefore: jwt.NewNumericDate(past),
			Issuer:    svc.issuer,
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(svc.secret)
	require.NoError(t, err)

	_, err = svc.ParseToken(token)
	assert.Error(t, err)
}

func TestParseToken_Garbage(t *testing.T) {
	_, err := NewService("test-secret").ParseToken("not.a.token")
	assert.Error(t, err)
}

func newAuthTestRouter(svc *Service, roles ...models.Role) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers := []gin.HandlerFunc{svc.RequireAuth()}
	if len(roles) > 0 {
		handlers = append(handlers, RequireRoles(roles...))
	}
	handlers = append(handlers, func(c *gin.Context) {
		actor := CurrentActor(c)
		c.JSON(http.StatusOK, gin.H{"id": actor.ID, "role": actor.Role})
	})
	r.GET("/protected", handlers...)
	return r
}

func TestRequireAuth(t *testing.T) {
	svc := NewService("test-secret")
	r := newAuthTestRouter(svc)

	// no header at all
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/protected", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "No token, authorization denied")

	// garbage token
	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Token is not valid")

	// valid token resolves the actor
	token, err := svc.GenerateToken(&models.User{ID: 7, Role: models.RoleCustomer})
	require.NoError(t, err)
	req = httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":7,"role":"customer"}`, w.Body.String())
}

func TestRequireRoles(t *testing.T) {
	svc := NewService("test-secret")
	r := newAuthTestRouter(svc, models.RoleAdmin)

	customerToken, err := svc.GenerateToken(&models.User{ID: 8, Role: models.RoleCustomer})
	require.NoError(t, err)
	adminToken, err := svc.GenerateToken(&models.User{ID: 9, Role: models.RoleAdmin})
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+customerToken)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "Insufficient permissions")

	req = httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
