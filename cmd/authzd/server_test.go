package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-authz"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "authzd-test-signing-key-0123456789"

type testServer struct {
	app    *fiber.App
	svc    *service
	tokens *authz.TokenService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	st := *defaultSettings()
	st.Database.DSN = "file:" + t.Name() + "?mode=memory&cache=shared"
	st.Auth.SigningKey = testKey
	logger := newLogger("error", false, "test")

	db, err := openDB(context.Background(), st.Database, dbSetup{migrate: true, seed: true}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc, err := newService(db, st, nil, logger)
	require.NoError(t, err)

	tokens, err := authz.NewTokenServiceFromConfig(st.Auth)
	require.NoError(t, err)

	return &testServer{app: svc.app(), svc: svc, tokens: tokens}
}

func (s *testServer) bearer(t *testing.T, id uuid.UUID) string {
	t.Helper()
	token, err := s.tokens.Generate(&authz.Principal{ID: id})
	require.NoError(t, err)
	return "Bearer " + token
}

func (s *testServer) do(t *testing.T, method, path, header string) (int, authz.Envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if header != "" {
		req.Header.Set(fiber.HeaderAuthorization, header)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body authz.Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	status, body := s.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, body.Success)
}

func TestMe(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodGet, "/api/me", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, authz.TextCodeUnauthorized, body.Error.Code)

	status, _ = s.do(t, http.MethodGet, "/api/me", s.bearer(t, uuid.New()))
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = s.do(t, http.MethodGet, "/api/me", s.bearer(t, seedProID))
	require.Equal(t, http.StatusOK, status)
	data := body.Data.(map[string]any)
	assert.Equal(t, "pro@example.com", data["email"])
	assert.Equal(t, "USER", data["role"])
	assert.Equal(t, "PRO", data["subscription"].(map[string]any)["plan"])
}

func TestAdminStats(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodGet, "/api/admin/stats", s.bearer(t, seedProID))
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, authz.TextCodeForbidden, body.Error.Code)

	status, body = s.do(t, http.MethodGet, "/api/admin/stats", s.bearer(t, seedAdminID))
	require.Equal(t, http.StatusOK, status)
	data := body.Data.(map[string]any)
	assert.EqualValues(t, len(seedUsers), data["users"])
	assert.EqualValues(t, len(catalog), data["products"])
}

func TestPricing(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodGet, "/api/pricing", "")
	require.Equal(t, http.StatusOK, status)
	anon := body.Data.(map[string]any)
	assert.NotContains(t, anon, "current_plan")
	assert.Len(t, anon["products"], len(catalog))

	status, body = s.do(t, http.MethodGet, "/api/pricing", "Bearer not-a-token")
	require.Equal(t, http.StatusOK, status)
	assert.NotContains(t, body.Data.(map[string]any), "current_plan")

	status, body = s.do(t, http.MethodGet, "/api/pricing", s.bearer(t, seedFreeID))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "FREE", body.Data.(map[string]any)["current_plan"])
}

func TestProductRun(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name    string
		product string
		user    uuid.UUID
		status  int
		code    string
	}{
		{"free on free product", "rewriter", seedFreeID, http.StatusOK, ""},
		{"free on pro product", "content-studio", seedFreeID, http.StatusPaymentRequired, authz.TextCodePlanUpgradeRequired},
		{"pro on pro product", "content-studio", seedProID, http.StatusOK, ""},
		{"pro without entitlement", "bundle-builder", seedProID, http.StatusForbidden, authz.TextCodeEntitlementRequired},
		{"pro on enterprise product", "lead-scorer", seedProID, http.StatusPaymentRequired, authz.TextCodePlanUpgradeRequired},
		{"enterprise", "lead-scorer", seedAdminID, http.StatusOK, ""},
		{"cancelled subscription", "rewriter", seedLapsedID, http.StatusPaymentRequired, authz.TextCodeSubscriptionRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := s.do(t, http.MethodPost, "/api/products/"+tt.product+"/run", s.bearer(t, tt.user))
			assert.Equal(t, tt.status, status)
			if tt.code != "" {
				assert.Equal(t, tt.code, body.Error.Code)
				return
			}
			assert.Equal(t, tt.product, body.Data.(map[string]any)["product"])
		})
	}
}

func TestProductRun_Quota(t *testing.T) {
	s := newTestServer(t)
	header := s.bearer(t, seedFreeID)
	limit := authz.DefaultPlanLimits().Limit(authz.PlanFree, authz.UsageRewrites)

	for i := 0; i < limit; i++ {
		status, body := s.do(t, http.MethodPost, "/api/products/rewriter/run", header)
		require.Equal(t, http.StatusOK, status, "run %d", i+1)
		assert.EqualValues(t, limit, body.Data.(map[string]any)["limit"])
	}

	status, body := s.do(t, http.MethodPost, "/api/products/rewriter/run", header)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, authz.TextCodeUsageLimitExceeded, body.Error.Code)

	usage, err := s.svc.store.CurrentUsage(context.Background(), seedFreeID)
	require.NoError(t, err)
	assert.Equal(t, limit, usage.Count(authz.UsageRewrites))

	// the pricing view reflects the counters loaded with the principal
	_, body = s.do(t, http.MethodGet, "/api/pricing", header)
	assert.EqualValues(t, limit, body.Data.(map[string]any)["usage"].(map[string]any)["rewrites"])
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodGet, "/api/me", "")
	s.do(t, http.MethodGet, "/api/me", s.bearer(t, seedProID))

	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := string(raw)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, out, `authz_decisions_total{allowed="false",optional="false",reason="missing_credential",stage="token"} 1`)
	assert.Contains(t, out, `authz_decisions_total{allowed="true",optional="false",reason="none",stage="complete"} 1`)
	assert.True(t, strings.Contains(out, "authz_decision_duration_seconds_bucket"))
}

func TestNewService_InvalidOptions(t *testing.T) {
	st := *defaultSettings()
	st.Database.DSN = "file::memory:"
	logger := newLogger("error", false, "test")

	db, err := openDB(context.Background(), st.Database, dbSetup{}, logger)
	require.NoError(t, err)
	defer db.Close()

	_, err = newService(db, st, nil, logger)
	assert.Error(t, err)
}

func TestOpenSQL_UnsupportedDriver(t *testing.T) {
	_, _, err := openSQL("oracle", "")
	assert.Error(t, err)
}

func TestSeedIsRepeatable(t *testing.T) {
	st := *defaultSettings()
	st.Database.DSN = "file:" + t.Name() + "?mode=memory&cache=shared"
	logger := newLogger("error", false, "test")
	ctx := context.Background()

	first, err := openDB(ctx, st.Database, dbSetup{migrate: true, seed: true}, logger)
	require.NoError(t, err)
	defer first.Close()

	second, err := openDB(ctx, st.Database, dbSetup{migrate: true, seed: true}, logger)
	require.NoError(t, err)
	defer second.Close()

	count, err := second.NewSelect().Model((*authz.User)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(seedUsers), count)

	p, err := authz.NewPrincipalStore(second).LoadPrincipal(ctx, seedLapsedID.String())
	require.NoError(t, err)
	assert.Equal(t, authz.SubscriptionCancelled, p.Subscription.Status)
	assert.True(t, p.HasEntitlement("rewriter"))
}

func TestLoadSettings(t *testing.T) {
	t.Setenv("AUTHZ_SIGNING_KEY", testKey)
	t.Setenv("AUTHZ_SIGNING_METHOD", "hs512")
	t.Setenv("AUTHZ_TOKEN_EXPIRATION", "2")
	t.Setenv("AUTHZ_AUDIENCE", "web,mobile")
	t.Setenv("AUTHZ_LOG_FORMAT", "console")
	t.Setenv("AUTHZ_DB_DSN", "file:other.db")
	t.Setenv("AUTHZ_ROTATED_KEYS", "2025=old-secret, broken ,=nokid,2024=")

	st, err := loadSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ":8080", st.Addr)
	assert.Equal(t, "sqlite", st.Database.Driver)
	assert.Equal(t, "file:other.db", st.Database.DSN)
	assert.Equal(t, 5*time.Second, st.Database.GetPingTimeout())
	assert.True(t, st.pretty())
	assert.Equal(t, "HS512", st.Auth.GetSigningMethod())
	assert.Equal(t, 2, st.Auth.TokenExpiration)
	assert.Equal(t, []string{"web", "mobile"}, st.Auth.Audience)
	assert.NoError(t, st.Auth.Validate())
	assert.Equal(t, map[string][]byte{"2025": []byte("old-secret")}, st.rotatedKeys())
}

func TestLoadSettings_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"token expiration", "AUTHZ_TOKEN_EXPIRATION", "soon"},
		{"db debug", "AUTHZ_DB_DEBUG", "maybe"},
		{"driver", "AUTHZ_DB_DRIVER", "oracle"},
		{"log format", "AUTHZ_LOG_FORMAT", "xml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := loadSettings(context.Background())
			assert.Error(t, err)
		})
	}
}
