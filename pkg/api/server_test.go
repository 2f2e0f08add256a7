package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/platinummonkey/hookrelay/pkg/accounts"
	"github.com/platinummonkey/hookrelay/pkg/auth"
	"github.com/platinummonkey/hookrelay/pkg/cache"
	"github.com/platinummonkey/hookrelay/pkg/destinations"
	"github.com/platinummonkey/hookrelay/pkg/middleware"
	"github.com/platinummonkey/hookrelay/pkg/observability"
	"github.com/platinummonkey/hookrelay/pkg/rbac"
	"github.com/platinummonkey/hookrelay/pkg/storage/storagetest"
	"github.com/platinummonkey/hookrelay/pkg/users"
	"github.com/platinummonkey/hookrelay/pkg/webhooks"
)

// recordingQueue collects jobs instead of delivering them
type recordingQueue struct {
	mu   sync.Mutex
	jobs []webhooks.Job
}

func (q *recordingQueue) Enqueue(job webhooks.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *recordingQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

type testServer struct {
	server *Server
	queue  *recordingQueue
}

func newTestServer(t *testing.T, limiter middleware.Limiter) *testServer {
	t.Helper()
	logger, _ := test.NewNullLogger()
	db := storagetest.NewSQLite(t)
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	backend := cache.NewMemoryBackend(1000, time.Minute)
	caches := cache.NewGroup(backend, time.Minute, metrics, logger)

	accountStore := accounts.NewStore(db)
	queue := &recordingQueue{}
	userSvc := users.NewService(users.NewStore(db), users.NewTokenStore(db), auth.NewPasswordHasher(bcrypt.MinCost), caches, logger)

	srv := NewServer(Config{
		Users:        userSvc,
		Accounts:     accounts.NewService(accountStore, caches, logger),
		Destinations: destinations.NewService(destinations.NewStore(db), caches, logger),
		Logs:         webhooks.NewLogService(webhooks.NewLogStore(db), caches, logger),
		Gateway:      webhooks.NewGateway(accountStore, backend, time.Minute, queue, metrics, logger),
		Resolver:     rbac.NewResolver(accountStore),
		Limiter:      limiter,
		RateLimit:    &middleware.RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Second},
		Health:       observability.NewHealthChecker(db, backend, "test"),
		Metrics:      metrics,
		Gatherer:     registry,
		Logger:       logger,
		MaxBodyBytes: 1 << 16,
	})
	return &testServer{server: srv, queue: queue}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.server.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dest), rec.Body.String())
}

// bootstrap creates the first user anonymously and logs it in
func (ts *testServer) bootstrap(t *testing.T) string {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/users/", "", map[string]string{"email": "root@example.com", "password": "s3cret-pass"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var user map[string]any
	decode(t, rec, &user)
	assert.Equal(t, true, user["is_superuser"])
	assert.NotContains(t, user, "password")

	form := url.Values{"email": {"root@example.com"}, "password": {"s3cret-pass"}}
	req := httptest.NewRequest(http.MethodPost, "/obtain-token/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	tokenRec := httptest.NewRecorder()
	ts.server.ServeHTTP(tokenRec, req)
	require.Equal(t, http.StatusOK, tokenRec.Code, tokenRec.Body.String())

	var resp tokenResponse
	decode(t, tokenRec, &resp)
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestServer_AccountLifecycle(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.bootstrap(t)

	rec := ts.do(t, http.MethodPost, "/accounts/", token, map[string]string{"account_name": "Acme", "website": "https://acme.example.com"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var account accounts.Account
	decode(t, rec, &account)
	require.NotEmpty(t, account.AccountID)
	require.NotEmpty(t, account.SecretToken)

	// trailing slash is optional
	for _, path := range []string{"/accounts", "/accounts/"} {
		rec = ts.do(t, http.MethodGet, path, token, nil)
		require.Equal(t, http.StatusOK, rec.Code, path)
		var list []accounts.Account
		decode(t, rec, &list)
		assert.Len(t, list, 1)
	}

	rec = ts.do(t, http.MethodPatch, "/accounts/"+account.AccountID+"/", token, map[string]string{"account_name": "Acme Corp"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated accounts.Account
	decode(t, rec, &updated)
	assert.Equal(t, "Acme Corp", updated.AccountName)
	assert.Equal(t, account.SecretToken, updated.SecretToken)

	rec = ts.do(t, http.MethodGet, "/accounts/"+account.AccountID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/accounts/"+account.AccountID, token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodGet, "/accounts/"+account.AccountID, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Authentication(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.bootstrap(t)

	rec := ts.do(t, http.MethodGet, "/accounts/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodGet, "/accounts/", "hr_not-a-real-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))

	// later users cannot be created anonymously
	rec = ts.do(t, http.MethodPost, "/users/", "", map[string]string{"email": "second@example.com", "password": "pw-second"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodPost, "/obtain-token/", "", map[string]string{"email": "root@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodPost, "/obtain-token/", "", map[string]string{"email": "root@example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/logout/", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var msg messageResponse
	decode(t, rec, &msg)
	assert.Equal(t, "Successfully logged out", msg.Message)

	rec = ts.do(t, http.MethodGet, "/accounts/", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_UsersAndLastSuperuser(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.bootstrap(t)

	rec := ts.do(t, http.MethodGet, "/users/", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []auth.User
	decode(t, rec, &list)
	require.Len(t, list, 1)

	rec = ts.do(t, http.MethodDelete, "/users/"+strconv.FormatInt(list[0].ID, 10), token, nil)
	assert.Equal(t, http.StatusNotAcceptable, rec.Code)

	rec = ts.do(t, http.MethodPost, "/users/", token, map[string]string{"email": "second@example.com", "password": "pw-second"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var second auth.User
	decode(t, rec, &second)
	assert.False(t, second.IsSuperuser)
	require.NotNil(t, second.CreatedBy)
	assert.Equal(t, list[0].ID, *second.CreatedBy)
}

func TestServer_DestinationsAndIngest(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.bootstrap(t)

	rec := ts.do(t, http.MethodPost, "/accounts/", token, map[string]string{"account_name": "Acme"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var account accounts.Account
	decode(t, rec, &account)

	rec = ts.do(t, http.MethodPost, "/destinations/", token, map[string]any{
		"account":     account.ID,
		"url":         "https://hooks.example.com/in",
		"http_method": "POST",
		"headers":     map[string]string{"X-Source": "hookrelay"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	submit := func(eventID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/server/incoming_data/", strings.NewReader(`{"data":{"order":42}}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(webhooks.HeaderToken, account.SecretToken)
		req.Header.Set(webhooks.HeaderEventID, eventID)
		rec := httptest.NewRecorder()
		ts.server.ServeHTTP(rec, req)
		return rec
	}

	eventID := uuid.NewString()
	rec = submit(eventID)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var receipt webhooks.Receipt
	decode(t, rec, &receipt)
	assert.Equal(t, webhooks.Receipt{Success: true, Message: "Data Received"}, receipt)

	rec = submit(eventID)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	decode(t, rec, &receipt)
	assert.Equal(t, webhooks.Receipt{Success: false, Message: "Duplicate Event ID"}, receipt)
	assert.Equal(t, 1, ts.queue.len())

	req := httptest.NewRequest(http.MethodPost, "/server/incoming_data", strings.NewReader(`{"data":{}}`))
	req.Header.Set(webhooks.HeaderEventID, uuid.NewString())
	rec = httptest.NewRecorder()
	ts.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_LogsAreReadOnly(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.bootstrap(t)

	rec := ts.do(t, http.MethodGet, "/logs/", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPost, "/logs/", token, map[string]string{"event_id": "x"})
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/logs/1", token, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = ts.do(t, http.MethodGet, "/logs/999", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Roles(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.bootstrap(t)

	rec := ts.do(t, http.MethodGet, "/roles/", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var roles []rbac.Role
	decode(t, rec, &roles)
	assert.Len(t, roles, 2)

	rec = ts.do(t, http.MethodGet, "/roles/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_RateLimitsAuthenticatedUsers(t *testing.T) {
	limiter := middleware.NewRateLimiter(&middleware.RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Hour})
	ts := newTestServer(t, limiter)
	token := ts.bootstrap(t)

	rec := ts.do(t, http.MethodGet, "/roles/", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/roles/", token, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestServer_HealthMetricsAndNotFound(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hookrelay_http_requests_total")

	rec = ts.do(t, http.MethodGet, "/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodGet, "/health/live", "", nil)
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
}
