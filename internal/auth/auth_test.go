package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestTokenRoundTrip(t *testing.T) {
	j := NewJWTHandler(testSecret, time.Hour)

	token, err := j.GenerateAccessToken("bench-script", RoleOperator)
	require.NoError(t, err)

	claims, err := j.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "bench-script", claims.Client)
	assert.Equal(t, RoleOperator, claims.Role)
	assert.NotEmpty(t, claims.ID)

	_, err = j.GenerateAccessToken("x", Role("root"))
	assert.Error(t, err)
}

func TestTokenRejected(t *testing.T) {
	j := NewJWTHandler(testSecret, time.Minute)
	token, err := j.GenerateAccessToken("ci", RoleViewer)
	require.NoError(t, err)

	other := NewJWTHandler("another-secret-another-secret-xx", time.Minute)
	_, err = other.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	j.timeNow = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = j.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken, "expired")
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	j := NewJWTHandler(testSecret, time.Hour)

	router := gin.New()
	router.POST("/deploy", Middleware(j), RequirePermission(PermDeploy), func(c *gin.Context) {
		c.String(http.StatusOK, Client(c))
	})

	viewer, err := j.GenerateAccessToken("dashboard", RoleViewer)
	require.NoError(t, err)
	operator, err := j.GenerateAccessToken("bench", RoleOperator)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer abc", http.StatusUnauthorized},
		{"viewer", "Bearer " + viewer, http.StatusForbidden},
		{"operator", "Bearer " + operator, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/deploy", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}
