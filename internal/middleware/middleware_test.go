package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dairy-portal-api/internal/models"
	"github.com/noah-isme/dairy-portal-api/internal/service"
	appErrors "github.com/noah-isme/dairy-portal-api/pkg/errors"
	"github.com/noah-isme/dairy-portal-api/pkg/logger"
)

type stubValidator map[string]*models.JWTClaims

func (s stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := s[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/items/:id", append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": c.GetString(logger.UserIDKey)})
	})...)
	return r
}

func perform(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWT(t *testing.T) {
	validator := stubValidator{"good": {UserID: "u1", Role: models.RoleUser}}
	r := newRouter(JWT(validator))

	assert.Equal(t, http.StatusUnauthorized, perform(r, "/items/1", "").Code)
	assert.Equal(t, http.StatusUnauthorized, perform(r, "/items/1", "Basic good").Code)
	assert.Equal(t, http.StatusUnauthorized, perform(r, "/items/1", "Bearer bad").Code)

	w := perform(r, "/items/1", "Bearer good")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user":"u1"`)
}

func TestRBAC(t *testing.T) {
	validator := stubValidator{
		"admin": {UserID: "a1", Role: models.RoleAdmin},
		"user":  {UserID: "u1", Role: models.RoleUser},
	}
	adminOnly := newRouter(JWT(validator), RequireRoles(models.RoleAdmin))
	assert.Equal(t, http.StatusOK, perform(adminOnly, "/items/x", "Bearer admin").Code)
	assert.Equal(t, http.StatusForbidden, perform(adminOnly, "/items/x", "Bearer user").Code)

	self := newRouter(JWT(validator), RBAC(string(models.RoleAdmin), "SELF"))
	assert.Equal(t, http.StatusOK, perform(self, "/items/u1", "Bearer user").Code)
	assert.Equal(t, http.StatusForbidden, perform(self, "/items/u2", "Bearer user").Code)

	noClaims := newRouter(RequireRoles(models.RoleAdmin))
	assert.Equal(t, http.StatusUnauthorized, perform(noClaims, "/items/x", "").Code)
}

func TestMetricsRecordsRoutePattern(t *testing.T) {
	metrics := service.NewMetricsService()
	r := newRouter(Metrics(metrics))

	require.Equal(t, http.StatusOK, perform(r, "/items/42", "").Code)

	families, err := metrics.Registry().Gather()
	require.NoError(t, err)
	found := false
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "path" && label.GetValue() == "/items/:id" {
					found = true
				}
			}
		}
	}
	assert.True(t, found, "expected request metric labelled with the route pattern")
}

func pathLabels(t *testing.T, metrics *service.MetricsService) map[string]bool {
	t.Helper()
	families, err := metrics.Registry().Gather()
	require.NoError(t, err)
	paths := map[string]bool{}
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "path" {
					paths[label.GetValue()] = true
				}
			}
		}
	}
	return paths
}

func TestMetricsSkipsProbesAndFoldsUnmatched(t *testing.T) {
	metrics := service.NewMetricsService()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics(metrics))
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	require.Equal(t, http.StatusOK, perform(r, "/metrics", "").Code)
	require.Equal(t, http.StatusOK, perform(r, "/health", "").Code)
	require.Equal(t, http.StatusNotFound, perform(r, "/nope/1", "").Code)
	require.Equal(t, http.StatusNotFound, perform(r, "/nope/2", "").Code)

	paths := pathLabels(t, metrics)
	assert.False(t, paths["/metrics"])
	assert.False(t, paths["/health"])
	assert.False(t, paths["/nope/1"])
	assert.True(t, paths[unmatchedRoute])
}
