package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"docarchive/internal/common"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, userID int64) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &ActorClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func newProtectedServer() *echo.Echo {
	e := echo.New()
	g := e.Group("/v1")
	g.Use(echojwt.WithConfig(NewJWTConfig(testSecret)), ActorFromToken())
	g.GET("/whoami", func(c echo.Context) error {
		userID, ok := common.GetUserIDFromContext(c.Request().Context())
		if !ok {
			return c.NoContent(http.StatusInternalServerError)
		}
		return c.String(http.StatusOK, strconv.FormatInt(userID, 10))
	})
	return e
}

func TestActorFromToken(t *testing.T) {
	tests := []struct {
		name       string
		authHeader string
		wantStatus int
		wantBody   string
	}{
		{"valid token", "Bearer " + signToken(t, testSecret, 42), http.StatusOK, "42"},
		{"missing user id", "Bearer " + signToken(t, testSecret, 0), http.StatusUnauthorized, ""},
		{"wrong secret", "Bearer " + signToken(t, "other", 42), http.StatusUnauthorized, ""},
		{"no header", "", http.StatusUnauthorized, ""},
	}

	e := newProtectedServer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/whoami", nil)
			if tt.authHeader != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.authHeader)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	e := echo.New()
	e.Use(RequestID())
	e.GET("/ping", func(c echo.Context) error {
		return c.String(http.StatusOK, GetRequestIDFromContext(c.Request().Context()))
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Body.String())
	assert.Equal(t, rec.Body.String(), rec.Header().Get(echo.HeaderXRequestID))
}

func TestVersionMiddleware(t *testing.T) {
	vm := NewVersionMiddleware()
	sunset := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	vm.AddVersion("v0", "deprecated", "Legacy storage API", &sunset)

	e := echo.New()
	e.Use(vm.APIVersionResolver())
	ok := func(c echo.Context) error {
		return c.String(http.StatusOK, c.Get("api_version").(string))
	}
	vm.VersionRoute(e, "v1").GET("/storage/tree", ok)
	e.GET("/health", ok)

	t.Run("active version", func(t *testing.T) {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/storage/tree", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "v1", rec.Body.String())
		assert.Equal(t, "v1", rec.Header().Get("X-API-Version"))
		assert.Empty(t, rec.Header().Get("X-API-Deprecated"))
	})

	t.Run("unversioned path uses default", func(t *testing.T) {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "v1", rec.Body.String())
	})

	t.Run("unknown version", func(t *testing.T) {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v7/storage/tree", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "v0, v1")
	})

	t.Run("deprecated version headers", func(t *testing.T) {
		vm.VersionRoute(e, "v0").GET("/storage/tree", ok)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v0/storage/tree", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "true", rec.Header().Get("X-API-Deprecated"))
		assert.Contains(t, rec.Header().Get("Warning"), "2027-01-01")
	})
}

func TestExtractVersionFromPath(t *testing.T) {
	assert.Equal(t, "v1", extractVersionFromPath("/v1/storage"))
	assert.Equal(t, "v12", extractVersionFromPath("/v12"))
	assert.Equal(t, "", extractVersionFromPath("/version"))
	assert.Equal(t, "", extractVersionFromPath("/health"))
	assert.Equal(t, "", extractVersionFromPath("/v0x"))
}
