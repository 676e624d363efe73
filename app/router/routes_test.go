package router

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/amirphl/simple-crm/app/middleware"
	"github.com/amirphl/simple-crm/app/services"
	"github.com/amirphl/simple-crm/config"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stub answers every route with the name of the handler it reached
type stub struct{}

func reached(name string) fiber.Handler {
	return func(c fiber.Ctx) error {
		accountID, _ := middleware.GetAccountIDFromContext(c)
		return c.JSON(fiber.Map{"handler": name, "account_id": accountID})
	}
}

func (stub) InitCaptcha(c fiber.Ctx) error { return reached("InitCaptcha")(c) }
func (stub) Register(c fiber.Ctx) error    { return reached("Register")(c) }
func (stub) Login(c fiber.Ctx) error       { return reached("Login")(c) }
func (stub) Refresh(c fiber.Ctx) error     { return reached("Refresh")(c) }
func (stub) Verify(c fiber.Ctx) error      { return reached("Verify")(c) }
func (stub) Me(c fiber.Ctx) error          { return reached("Me")(c) }
func (stub) UpdateMe(c fiber.Ctx) error    { return reached("UpdateMe")(c) }
func (stub) DeleteMe(c fiber.Ctx) error    { return reached("DeleteMe")(c) }

func (stub) ListLeads(c fiber.Ctx) error   { return reached("ListLeads")(c) }
func (stub) CreateLead(c fiber.Ctx) error  { return reached("CreateLead")(c) }
func (stub) ExportLeads(c fiber.Ctx) error { return reached("ExportLeads")(c) }
func (stub) GetLead(c fiber.Ctx) error     { return reached("GetLead")(c) }
func (stub) UpdateLead(c fiber.Ctx) error  { return reached("UpdateLead")(c) }
func (stub) PatchLead(c fiber.Ctx) error   { return reached("PatchLead")(c) }
func (stub) DeleteLead(c fiber.Ctx) error  { return reached("DeleteLead")(c) }

func (stub) ListCategories(c fiber.Ctx) error { return reached("ListCategories")(c) }
func (stub) CreateCategory(c fiber.Ctx) error { return reached("CreateCategory")(c) }
func (stub) GetCategory(c fiber.Ctx) error    { return reached("GetCategory")(c) }
func (stub) UpdateCategory(c fiber.Ctx) error { return reached("UpdateCategory")(c) }
func (stub) DeleteCategory(c fiber.Ctx) error { return reached("DeleteCategory")(c) }

func (stub) ListAccounts(c fiber.Ctx) error       { return reached("ListAccounts")(c) }
func (stub) UpdateAccountRoles(c fiber.Ctx) error { return reached("UpdateAccountRoles")(c) }
func (stub) DeleteAccount(c fiber.Ctx) error      { return reached("DeleteAccount")(c) }

func testConfig() *config.ProductionConfig {
	return &config.ProductionConfig{
		Server: config.ServerConfig{
			BodyLimit:    1024 * 1024,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
			IdleTimeout:  5 * time.Second,
		},
		Security: config.SecurityConfig{
			AllowedOrigins:  []string{"http://localhost:3000"},
			AuthRateLimit:   100,
			GlobalRateLimit: 100,
			RateLimitWindow: time.Minute,
			IPBlacklist:     []string{"10.9.9.9"},
		},
		Deployment: config.DeploymentConfig{Environment: "development", Version: "test"},
	}
}

func newTestRouter(t *testing.T, cfg *config.ProductionConfig) (*fiber.App, services.TokenService) {
	t.Helper()
	ts, err := services.NewTokenService(time.Hour, 24*time.Hour, "simple-crm", "simple-crm-api",
		false, "", "", strings.Repeat("s", 32), services.NewMemoryRevocationStore())
	require.NoError(t, err)

	r := NewFiberRouter(cfg, io.Discard, stub{}, stub{}, stub{}, stub{}, middleware.NewAuthMiddleware(ts))
	r.SetupRoutes()
	return r.GetApp(), ts
}

func call(t *testing.T, app *fiber.App, method, path, token string, header ...string) (*http.Response, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &body))
	}
	return resp, body
}

func TestRoutesReachHandlers(t *testing.T) {
	app, ts := newTestRouter(t, testConfig())
	access, _, err := ts.GenerateTokens(7)
	require.NoError(t, err)

	tests := []struct {
		method  string
		path    string
		handler string
	}{
		{http.MethodGet, "/api/v1/auth/users/me", "Me"},
		{http.MethodPatch, "/api/v1/auth/users/me", "UpdateMe"},
		{http.MethodDelete, "/api/v1/auth/users/me", "DeleteMe"},
		{http.MethodGet, "/api/v1/leads", "ListLeads"},
		{http.MethodPost, "/api/v1/leads", "CreateLead"},
		{http.MethodGet, "/api/v1/leads/export", "ExportLeads"},
		{http.MethodGet, "/api/v1/leads/12", "GetLead"},
		{http.MethodPut, "/api/v1/leads/12", "UpdateLead"},
		{http.MethodPatch, "/api/v1/leads/12", "PatchLead"},
		{http.MethodDelete, "/api/v1/leads/12", "DeleteLead"},
		{http.MethodGet, "/api/v1/categories", "ListCategories"},
		{http.MethodPatch, "/api/v1/categories/3", "UpdateCategory"},
		{http.MethodGet, "/api/v1/admin/accounts", "ListAccounts"},
		{http.MethodPut, "/api/v1/admin/accounts/4/roles", "UpdateAccountRoles"},
		{http.MethodDelete, "/api/v1/admin/accounts/4", "DeleteAccount"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			resp, body := call(t, app, tt.method, tt.path, access)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, tt.handler, body["handler"])
			assert.EqualValues(t, 7, body["account_id"])
		})
	}
}

func TestPublicAuthRoutes(t *testing.T) {
	app, _ := newTestRouter(t, testConfig())

	for path, handler := range map[string]string{
		"/api/v1/auth/users":       "Register",
		"/api/v1/auth/jwt/create":  "Login",
		"/api/v1/auth/jwt/refresh": "Refresh",
		"/api/v1/auth/jwt/verify":  "Verify",
	} {
		resp, body := call(t, app, http.MethodPost, path, "")
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Equal(t, handler, body["handler"])
	}

	resp, body := call(t, app, http.MethodGet, "/api/v1/auth/captcha/init", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "InitCaptcha", body["handler"])
}

func TestProtectedRoutesRequireAccessToken(t *testing.T) {
	app, ts := newTestRouter(t, testConfig())

	resp, body := call(t, app, http.MethodGet, "/api/v1/leads", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "MISSING_AUTHORIZATION_HEADER", body["error"].(map[string]any)["code"])

	_, refresh, err := ts.GenerateTokens(7)
	require.NoError(t, err)
	resp, body = call(t, app, http.MethodGet, "/api/v1/categories", refresh)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "TOKEN_WRONG_TYPE", body["error"].(map[string]any)["code"])
}

func TestHealthAndNotFound(t *testing.T) {
	app, _ := newTestRouter(t, testConfig())

	resp, body := call(t, app, http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	resp, body = call(t, app, http.MethodGet, "/api/v1/nowhere", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", body["error"].(map[string]any)["code"])
}

func TestSwaggerOnlyInDevelopment(t *testing.T) {
	app, _ := newTestRouter(t, testConfig())
	resp, body := call(t, app, http.MethodGet, "/api/v1/swagger.json", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "2.0", body["swagger"])

	cfg := testConfig()
	cfg.Deployment.Environment = "production"
	app, _ = newTestRouter(t, cfg)
	resp, _ = call(t, app, http.MethodGet, "/api/v1/swagger.json", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBlacklistedIPIsRejected(t *testing.T) {
	cfg := testConfig()
	cfg.Server.ProxyHeader = "X-Real-IP"
	// app.Test connections come from 0.0.0.0
	cfg.Server.TrustedProxies = []string{"0.0.0.0"}
	app, _ := newTestRouter(t, cfg)

	resp, body := call(t, app, http.MethodGet, "/api/v1/health", "", "X-Real-IP", "10.9.9.9")
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "ACCESS_DENIED", body["error"].(map[string]any)["code"])

	resp, _ = call(t, app, http.MethodGet, "/api/v1/health", "", "X-Real-IP", "10.9.9.10")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestProxyHeaderIgnoredFromUntrustedPeer(t *testing.T) {
	cfg := testConfig()
	cfg.Server.ProxyHeader = "X-Real-IP"
	cfg.Server.TrustedProxies = []string{"192.0.2.1"}
	app, _ := newTestRouter(t, cfg)

	resp, _ := call(t, app, http.MethodGet, "/api/v1/health", "", "X-Real-IP", "10.9.9.9")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRateLimitIsPerClientBehindProxy(t *testing.T) {
	cfg := testConfig()
	cfg.Server.ProxyHeader = "X-Real-IP"
	cfg.Server.TrustedProxies = []string{"0.0.0.0"}
	cfg.Security.AuthRateLimit = 1
	app, _ := newTestRouter(t, cfg)

	resp, _ := call(t, app, http.MethodPost, "/api/v1/auth/jwt/create", "", "X-Real-IP", "198.51.100.1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = call(t, app, http.MethodPost, "/api/v1/auth/jwt/create", "", "X-Real-IP", "198.51.100.1")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	resp, _ = call(t, app, http.MethodPost, "/api/v1/auth/jwt/create", "", "X-Real-IP", "198.51.100.2")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Security.AuthRateLimit = 2
	app, _ := newTestRouter(t, cfg)

	for range 2 {
		resp, _ := call(t, app, http.MethodPost, "/api/v1/auth/jwt/create", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, body := call(t, app, http.MethodPost, "/api/v1/auth/jwt/create", "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", body["error"].(map[string]any)["code"])

	// other groups keep their own budget
	resp, _ = call(t, app, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
