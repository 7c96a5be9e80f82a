package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ailubes/veterans-orden-sub005/config"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	config.AppConfig = &config.Config{JWTSecret: "test-secret"}
}

func authTestRouter() *gin.Engine {
	router := gin.New()
	router.GET("/protected", AuthMiddleware(), func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": userID.String()})
	})
	return router
}

func TestJWTRoundTrip(t *testing.T) {
	userID := uuid.NewString()
	token, err := generateJWT(userID, "member@example.org")
	require.NoError(t, err)

	claims, err := parseJWT(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "member@example.org", claims.Email)
}

func TestAuthMiddleware(t *testing.T) {
	router := authTestRouter()
	userID := uuid.NewString()
	token, err := generateJWT(userID, "member@example.org")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), userID)
}

func TestAuthMiddlewareMissingHeader(t *testing.T) {
	router := authTestRouter()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddlewareBadFormat(t *testing.T) {
	router := authTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Basic abc123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddlewareGarbageToken(t *testing.T) {
	router := authTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestIsUniqueViolation(t *testing.T) {
	emailTaken := &pq.Error{Code: "23505", Constraint: "users_email_key"}
	assert.True(t, isUniqueViolation(emailTaken, "users_email_key"))
	assert.True(t, isUniqueViolation(fmt.Errorf("insert failed: %w", emailTaken), "users_email_key"))

	assert.False(t, isUniqueViolation(emailTaken, "users_referral_code_key"))
	assert.False(t, isUniqueViolation(&pq.Error{Code: "40001"}, "users_email_key"))
	assert.False(t, isUniqueViolation(errors.New("lost connection"), "users_email_key"))
	assert.False(t, isUniqueViolation(nil, "users_email_key"))
}

func TestGenerateReferralCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		code := generateReferralCode()
		assert.Len(t, code, 8)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 1)
}
