package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/retailcore/commerce_layer/internal/app/domain/user"
	"github.com/retailcore/commerce_layer/internal/app/services/auth"
	"github.com/retailcore/commerce_layer/internal/app/storage/memory"
)

func newVerifier(t *testing.T) (*auth.Service, string) {
	t.Helper()
	svc := auth.New(memory.New(), "test-secret", 0, nil)
	token, err := svc.Issue(user.User{ID: "u1", CompanyID: "co1", Role: user.RoleCashier})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return svc, token
}

func okHandler(t *testing.T, sawClaims *bool) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claims := ClaimsFromContext(r.Context()); claims != nil {
			*sawClaims = true
			if claims.CompanyID != "co1" {
				t.Errorf("unexpected company %q", claims.CompanyID)
			}
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware(t *testing.T) {
	svc, token := newVerifier(t)
	sawClaims := false
	handler := NewAuthMiddleware(svc, nil, []string{"/health"}, nil).Handler(okHandler(t, &sawClaims))

	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !sawClaims {
		t.Fatalf("expected authenticated pass, got %d (claims=%v)", rec.Code, sawClaims)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/products", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", rec.Code)
	}

	// Skip paths pass through without a token.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected skip path to pass, got %d", rec.Code)
	}
}

func TestAuthMiddlewareSkipFunc(t *testing.T) {
	svc, _ := newVerifier(t)
	skip := func(r *http.Request) bool { return strings.HasPrefix(r.URL.Path, "/webhooks/") }
	handler := NewAuthMiddleware(svc, nil, nil, skip).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp/co1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected webhook path to skip auth, got %d", rec.Code)
	}
}

func TestRequireRole(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	handler := RequireRole("admin", "manager")(next)

	req := httptest.NewRequest(http.MethodPost, "/users", nil)
	req = req.WithContext(WithClaims(req.Context(), &auth.Claims{CompanyID: "co1", Role: "manager"}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected manager to pass, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/users", nil)
	req = req.WithContext(WithClaims(req.Context(), &auth.Claims{CompanyID: "co1", Role: "cashier"}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected cashier to be rejected, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/users", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected anonymous to be rejected, got %d", rec.Code)
	}
}

func TestWebhookSignature(t *testing.T) {
	body := []byte(`{"entry":[]}`)
	handler := NewWebhookSignatureMiddleware("hook-secret", nil).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp/co1", strings.NewReader(string(body)))
	req.Header.Set(SignatureHeader, Sign("hook-secret", body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected valid signature to pass, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp/co1", strings.NewReader(string(body)))
	req.Header.Set(SignatureHeader, Sign("wrong-secret", body))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected bad signature to be rejected, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp/co1", strings.NewReader(string(body)))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected missing signature to be rejected, got %d", rec.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2, nil)
	handler := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/products", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected burst exhaustion, got %d", rec.Code)
	}

	// A different caller has its own bucket.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/products", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected fresh caller to pass, got %d", rec.Code)
	}
}
