package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/hookrelay/pkg/auth"
	"github.com/platinummonkey/hookrelay/pkg/contextkeys"
	"github.com/platinummonkey/hookrelay/pkg/users"
)

type fakeTokens map[string]*auth.User

func (f fakeTokens) Authenticate(ctx context.Context, token string) (*auth.AuthContext, error) {
	if token == "broken" {
		return nil, errors.New("database is down")
	}
	user, ok := f[token]
	if !ok {
		return nil, users.ErrInvalidToken
	}
	return &auth.AuthContext{User: user, Token: &auth.APIToken{UserID: user.ID}}, nil
}

var testTokens = fakeTokens{"good": {ID: 7, Email: "u@example.com"}}

func serveAuth(t *testing.T, optional bool, header string) (*httptest.ResponseRecorder, *auth.AuthContext, bool) {
	t.Helper()
	var (
		seen   *auth.AuthContext
		called bool
	)
	handler := NewAuthMiddleware(testTokens, optional).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		seen = GetAuthContext(r)
		assert.Equal(t, seen.UserID(), contextkeys.GetUserID(r.Context()))
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/accounts/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w, seen, called
}

func detail(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Detail string `json:"detail"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Detail
}

func TestAuthMiddleware_Handler(t *testing.T) {
	t.Run("bearer token", func(t *testing.T) {
		w, authCtx, called := serveAuth(t, false, "Bearer good")
		assert.True(t, called)
		assert.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, authCtx)
		assert.Equal(t, int64(7), authCtx.UserID())
	})

	t.Run("token keyword", func(t *testing.T) {
		w, authCtx, _ := serveAuth(t, false, "Token good")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, int64(7), authCtx.UserID())
	})

	t.Run("missing header required", func(t *testing.T) {
		w, _, called := serveAuth(t, false, "")
		assert.False(t, called)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Authentication credentials were not provided.", detail(t, w))
		assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"))
	})

	t.Run("missing header optional", func(t *testing.T) {
		w, authCtx, called := serveAuth(t, true, "")
		assert.True(t, called)
		assert.Nil(t, authCtx)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("invalid token rejected even when optional", func(t *testing.T) {
		w, _, called := serveAuth(t, true, "Bearer nope")
		assert.False(t, called)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Invalid token.", detail(t, w))
	})

	t.Run("malformed header", func(t *testing.T) {
		w, _, called := serveAuth(t, false, "Basic dXNlcjpwYXNz")
		assert.False(t, called)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Invalid token header.", detail(t, w))
	})

	t.Run("store failure is a server error", func(t *testing.T) {
		w, _, called := serveAuth(t, false, "Bearer broken")
		assert.False(t, called)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"Token abc", "abc", true},
		{"Bearer", "", false},
		{"Bearer a b", "", false},
		{"Basic abc", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			token, ok := ExtractToken(tt.header)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.token, token)
		})
	}
}

func TestRequestIDAndLogging(t *testing.T) {
	var requestID string
	handler := RequestID(Logging(quietLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID = contextkeys.GetRequestID(r.Context())
		_, hasStart := contextkeys.GetRequestStartTime(r.Context())
		assert.True(t, hasStart)
		w.WriteHeader(http.StatusTeapot)
	})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.NotEmpty(t, requestID)
	assert.Equal(t, requestID, w.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "upstream-id")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, "upstream-id", requestID)
	assert.Equal(t, "upstream-id", w.Header().Get(RequestIDHeader))
}

func TestLogging_DurationFromRequestStart(t *testing.T) {
	logger, hook := test.NewNullLogger()
	handler := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/accounts", nil)
	req = req.WithContext(contextkeys.WithRequestStartTime(req.Context(), time.Now().Add(-2*time.Second)))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.GreaterOrEqual(t, entry.Data["duration_ms"], int64(2000))
}
