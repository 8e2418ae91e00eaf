package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fieldsync-api/internal/models"
	"github.com/noah-isme/fieldsync-api/internal/service"
	appErrors "github.com/noah-isme/fieldsync-api/pkg/errors"
)

type stubValidator struct {
	claims *models.JWTClaims
}

func (s stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return s.claims, nil
}

type recordingAudit struct {
	logs []models.AuditLog
}

func (r *recordingAudit) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	r.logs = append(r.logs, *log)
	return nil
}

func newRouter(claims *models.JWTClaims, handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	chain := append([]gin.HandlerFunc{JWT(stubValidator{claims: claims})}, handlers...)
	chain = append(chain, func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.POST("/target/:id", chain...)
	return r
}

func serve(r *gin.Engine, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/target/1", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	req.Header.Set("User-Agent", "collector/2.1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTRejectsMissingAndInvalidTokens(t *testing.T) {
	r := newRouter(&models.JWTClaims{UserID: "u1"})

	assert.Equal(t, http.StatusUnauthorized, serve(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "Basic abc").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "Bearer bad").Code)
	assert.Equal(t, http.StatusNoContent, serve(r, "Bearer good").Code)
}

func TestRequirePermission(t *testing.T) {
	enumerator := &models.JWTClaims{UserID: "u1", Role: models.RoleEnumerator, Permissions: []string{models.PermissionSubmissionCreate}}
	r := newRouter(enumerator, RequirePermission(models.PermissionUploadWrite))
	assert.Equal(t, http.StatusForbidden, serve(r, "Bearer good").Code)

	r = newRouter(enumerator, RequirePermission(models.PermissionSubmissionCreate))
	assert.Equal(t, http.StatusNoContent, serve(r, "Bearer good").Code)

	admin := &models.JWTClaims{UserID: "root", Role: models.RoleAdmin}
	r = newRouter(admin, RequirePermission(models.PermissionUploadWrite))
	assert.Equal(t, http.StatusNoContent, serve(r, "Bearer good").Code)
}

func TestRequireRoles(t *testing.T) {
	r := newRouter(&models.JWTClaims{UserID: "u1", Role: models.RoleEnumerator}, RequireRoles(models.RoleSupervisor, models.RoleAdmin))
	assert.Equal(t, http.StatusForbidden, serve(r, "Bearer good").Code)

	r = newRouter(&models.JWTClaims{UserID: "u2", Role: models.RoleSupervisor}, RequireRoles(models.RoleSupervisor, models.RoleAdmin))
	assert.Equal(t, http.StatusNoContent, serve(r, "Bearer good").Code)
}

func TestAuditRecordsSuccessfulRequests(t *testing.T) {
	repo := &recordingAudit{}
	tagger := func(c *gin.Context) {
		c.Set(AuditResourceIDKey, "obj-9")
		c.Next()
	}
	r := newRouter(&models.JWTClaims{UserID: "u1"}, Audit(repo, models.AuditActionUploadComplete, models.AuditResourceUpload), tagger)

	w := serve(r, "Bearer good")
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Len(t, repo.logs, 1)
	log := repo.logs[0]
	assert.Equal(t, models.AuditActionUploadComplete, log.Action)
	require.NotNil(t, log.UserID)
	assert.Equal(t, "u1", *log.UserID)
	require.NotNil(t, log.ResourceID)
	assert.Equal(t, "obj-9", *log.ResourceID)
	assert.Equal(t, "collector/2.1", log.UserAgent)

	serve(r, "Bearer bad")
	assert.Len(t, repo.logs, 1)
}

func scrape(t *testing.T, metrics *service.MetricsService) string {
	t.Helper()
	w := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetricsLabelsRouteTemplateAndClient(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	r := gin.New()
	r.Use(Metrics(metrics))
	r.GET("/submissions/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	req := httptest.NewRequest(http.MethodGet, "/submissions/42", nil)
	req.Header.Set("X-Device-ID", "tablet-0193")
	r.ServeHTTP(httptest.NewRecorder(), req)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/submissions/43", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere/7", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))

	out := scrape(t, metrics)
	assert.Contains(t, out, `http_requests_total{client="device",method="GET",path="/submissions/:id",status="200"} 1`)
	assert.Contains(t, out, `http_requests_total{client="api",method="GET",path="/submissions/:id",status="200"} 1`)
	assert.Contains(t, out, `http_requests_total{client="api",method="GET",path="unmatched",status="404"} 1`)
	assert.NotContains(t, out, "tablet-0193")
	assert.NotContains(t, out, "/nowhere/7")
	assert.NotContains(t, out, `path="/metrics"`)
}
