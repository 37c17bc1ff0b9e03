package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"aicavalli-order-service/internal/auth"
	"aicavalli-order-service/internal/domain"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const testSecret = "middleware-test-secret"

func bearer(t *testing.T, role domain.Role) string {
	t.Helper()
	token, _, err := auth.IssueAccessToken(testSecret, domain.User{ID: uuid.New(), Name: "T", Role: role}, nil, time.Hour, time.Now())
	require.NoError(t, err)
	return "Bearer " + token
}

func protectedRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID())
	r.Use(Telemetry(zap.NewNop()))
	r.Group(func(r chi.Router) {
		r.Use(Authenticate(testSecret))
		r.Use(RequireCapability())
		r.Get("/api/kitchen/orders/active", func(w http.ResponseWriter, r *http.Request) {
			actor := ActorFrom(r.Context())
			w.Header().Set("X-Role", string(actor.Role))
			w.WriteHeader(http.StatusOK)
		})
		r.Get("/api/orders/mine", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})
	r.With(OptionalAuth(testSecret)).Post("/api/orders", func(w http.ResponseWriter, r *http.Request) {
		if ActorFrom(r.Context()) == nil {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		w.WriteHeader(http.StatusCreated)
	})
	return r
}

func TestAuthAndCapabilities(t *testing.T) {
	router := protectedRouter()
	tests := []struct {
		name   string
		method string
		path   string
		auth   string
		status int
	}{
		{"kitchen on board", http.MethodGet, "/api/kitchen/orders/active", bearer(t, domain.RoleKitchen), http.StatusOK},
		{"admin on board", http.MethodGet, "/api/kitchen/orders/active", bearer(t, domain.RoleAdmin), http.StatusOK},
		{"guest on board", http.MethodGet, "/api/kitchen/orders/active", bearer(t, domain.RoleGuest), http.StatusForbidden},
		{"missing token", http.MethodGet, "/api/kitchen/orders/active", "", http.StatusUnauthorized},
		{"bad token", http.MethodGet, "/api/orders/mine", "Bearer nope", http.StatusUnauthorized},
		{"guest on own orders", http.MethodGet, "/api/orders/mine", bearer(t, domain.RoleGuest), http.StatusOK},
		{"optional without token", http.MethodPost, "/api/orders", "", http.StatusAccepted},
		{"optional with token", http.MethodPost, "/api/orders", bearer(t, domain.RoleRider), http.StatusCreated},
		{"optional with bad token", http.MethodPost, "/api/orders", "Bearer nope", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
		})
	}
}

func TestRequestIDIsPropagated(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Correlation-Id", "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-Id"))
}

func TestAccessLevel(t *testing.T) {
	assert.Equal(t, zapcore.InfoLevel, accessLevel(http.StatusOK, 10*time.Millisecond))
	assert.Equal(t, zapcore.InfoLevel, accessLevel(http.StatusConflict, 10*time.Millisecond))
	assert.Equal(t, zapcore.WarnLevel, accessLevel(http.StatusOK, SlowRequestThreshold))
	assert.Equal(t, zapcore.ErrorLevel, accessLevel(http.StatusInternalServerError, time.Millisecond))
	assert.Equal(t, "4xx", statusClass(http.StatusNotFound))
}

func TestTelemetryLogsRoutePattern(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	r := chi.NewRouter()
	r.Use(RequestID())
	r.Use(Telemetry(zap.New(core)))
	r.Get("/api/orders/{orderId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/orders/42", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.FilterMessage("http_request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/api/orders/{orderId}", fields["routePattern"])
	assert.EqualValues(t, http.StatusNoContent, fields["status"])
	assert.NotEmpty(t, fields["requestId"])
}
