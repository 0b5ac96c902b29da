package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"restodir/backend/internal/auth"
	"restodir/backend/internal/rate"

	"github.com/go-chi/chi/v5"
)

const testSecret = "test-secret"

func adminRouter() http.Handler {
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(testSecret))
		r.Use(RequireAdmin)
		r.Post("/admin/ping", func(w http.ResponseWriter, r *http.Request) {
			subject, _ := SubjectFromContext(r.Context())
			_, _ = w.Write([]byte(subject))
		})
	})
	return r
}

func TestAuthMiddlewareRejectsMissingToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/admin/ping", nil)
	resp := httptest.NewRecorder()
	adminRouter().ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/admin/ping", nil)
	req.Header.Set("Authorization", "Basic abc")
	resp = httptest.NewRecorder()
	adminRouter().ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for non-bearer, got %d", resp.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	cases := []struct {
		name    string
		isAdmin bool
		status  int
	}{
		{name: "admin", isAdmin: true, status: http.StatusOK},
		{name: "operator", isAdmin: false, status: http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			token, err := auth.SignAccessToken(testSecret, "ops", tc.isAdmin, time.Hour)
			if err != nil {
				t.Fatalf("token error: %v", err)
			}
			req := httptest.NewRequest(http.MethodPost, "/admin/ping", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			resp := httptest.NewRecorder()
			adminRouter().ServeHTTP(resp, req)
			if resp.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, resp.Code)
			}
			if tc.status == http.StatusOK && resp.Body.String() != "ops" {
				t.Fatalf("expected subject in context, got %q", resp.Body.String())
			}
		})
	}
}

func TestRateLimitReturns429(t *testing.T) {
	limiter := rate.NewWindowLimiter(1, time.Minute)
	h := RateLimit(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	first := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/maps/extract", nil)
	req.RemoteAddr = "10.0.0.1:5000"
	h.ServeHTTP(first, req)
	if first.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", first.Code)
	}

	second := httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/maps/extract", nil)
	req.RemoteAddr = "10.0.0.1:5001"
	h.ServeHTTP(second, req)
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", second.Code)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}

	other := httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/maps/extract", nil)
	req.RemoteAddr = "10.0.0.2:5000"
	h.ServeHTTP(other, req)
	if other.Code != http.StatusNoContent {
		t.Fatalf("expected other client allowed, got %d", other.Code)
	}
}

func TestRequestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	r := chi.NewRouter()
	r.Use(RequestLogger(logger))
	r.Get("/restaurants/{id}/map", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/restaurants/9/map?lang=pt", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	for _, want := range []string{"level=WARN", "msg=http_request", "status=404", `query="lang=pt"`, "route=/restaurants/{id}/map"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in log line %q", want, out)
		}
	}
}
