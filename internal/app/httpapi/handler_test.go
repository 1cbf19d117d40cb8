package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	app "github.com/retailcore/commerce_layer/internal/app"
	"github.com/retailcore/commerce_layer/internal/app/services/auth"
	"github.com/retailcore/commerce_layer/internal/middleware"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	application, err := app.New(app.Stores{}, app.Options{JWTSecret: "test-secret"}, nil)
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	handler, err := NewHandler(application, nil, Options{})
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	return handler
}

func claimsFor(companyID, userID, role string) *auth.Claims {
	return &auth.Claims{
		CompanyID:        companyID,
		Role:             role,
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID},
	}
}

func request(method, path string, payload any, claims *auth.Claims) *http.Request {
	var body io.Reader
	if payload != nil {
		raw, _ := json.Marshal(payload)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	if claims != nil {
		req = req.WithContext(middleware.WithClaims(context.Background(), claims))
	}
	return req
}

func do(t *testing.T, handler http.Handler, req *http.Request, wantStatus int) map[string]any {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != wantStatus {
		t.Fatalf("%s %s: expected %d, got %d (%s)", req.Method, req.URL.Path, wantStatus, rec.Code, rec.Body.String())
	}
	var out map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			return nil
		}
	}
	return out
}

func doList(t *testing.T, handler http.Handler, req *http.Request, wantStatus int) []map[string]any {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != wantStatus {
		t.Fatalf("%s %s: expected %d, got %d (%s)", req.Method, req.URL.Path, wantStatus, rec.Code, rec.Body.String())
	}
	var out []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	return out
}

func TestHandlerCheckoutLifecycle(t *testing.T) {
	handler := newTestHandler(t)

	company := do(t, handler, request(http.MethodPost, "/companies", map[string]any{"name": "Acme"}, nil), http.StatusCreated)
	companyID := company["id"].(string)
	admin := claimsFor(companyID, "u-admin", "admin")

	product := do(t, handler, request(http.MethodPost, "/products", map[string]any{
		"name": "Mug", "barcode": "123", "quantity": 10, "price_cents": 500,
	}, admin), http.StatusCreated)
	productID := product["id"].(string)

	cb := do(t, handler, request(http.MethodPost, "/cashboxes", map[string]any{"name": "Front desk"}, admin), http.StatusCreated)
	cashboxID := cb["id"].(string)

	cart := do(t, handler, request(http.MethodPost, "/carts", map[string]any{"cashbox_id": cashboxID}, admin), http.StatusOK)
	cartID := cart["id"].(string)

	// Reopening yields the same active cart.
	again := do(t, handler, request(http.MethodPost, "/carts", map[string]any{"cashbox_id": cashboxID}, admin), http.StatusOK)
	if again["id"] != cartID {
		t.Fatalf("expected idempotent cart open, got %v vs %v", again["id"], cartID)
	}

	cart = do(t, handler, request(http.MethodPost, "/carts/"+cartID+"/items", map[string]any{
		"product_id": productID, "quantity": 3,
	}, admin), http.StatusOK)
	if cart["total_cents"].(float64) != 1500 {
		t.Fatalf("expected total 1500, got %v", cart["total_cents"])
	}

	sale := do(t, handler, request(http.MethodPost, "/carts/"+cartID+"/checkout", map[string]any{"mark_paid": true}, admin), http.StatusCreated)
	if sale["status"] != "paid" || sale["doc_number"].(float64) != 1 {
		t.Fatalf("unexpected sale: %v", sale)
	}
	saleID := sale["id"].(string)

	// Stock moved and the sale is queryable.
	product = do(t, handler, request(http.MethodGet, "/products/"+productID, nil, admin), http.StatusOK)
	if product["quantity"].(float64) != 7 {
		t.Fatalf("expected stock 7, got %v", product["quantity"])
	}
	items := doList(t, handler, request(http.MethodGet, "/sales/"+saleID+"/items", nil, admin), http.StatusOK)
	if len(items) != 1 || items[0]["name_snapshot"] != "Mug" {
		t.Fatalf("unexpected sale items: %v", items)
	}

	// Mutating calls leave an audit trail for admins.
	trail := doList(t, handler, request(http.MethodGet, "/audit", nil, admin), http.StatusOK)
	if len(trail) == 0 {
		t.Fatal("expected audit entries")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, request(http.MethodGet, "/audit", nil, claimsFor(companyID, "u2", "cashier")))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected audit to be admin-only, got %d", rec.Code)
	}
}

func TestHandlerCheckoutShortfall(t *testing.T) {
	handler := newTestHandler(t)

	company := do(t, handler, request(http.MethodPost, "/companies", map[string]any{"name": "Acme"}, nil), http.StatusCreated)
	admin := claimsFor(company["id"].(string), "u-admin", "admin")

	product := do(t, handler, request(http.MethodPost, "/products", map[string]any{
		"name": "Mug", "quantity": 1, "price_cents": 500,
	}, admin), http.StatusCreated)
	cb := do(t, handler, request(http.MethodPost, "/cashboxes", map[string]any{"name": "Desk"}, admin), http.StatusCreated)
	cart := do(t, handler, request(http.MethodPost, "/carts", map[string]any{"cashbox_id": cb["id"]}, admin), http.StatusOK)
	cartID := cart["id"].(string)

	do(t, handler, request(http.MethodPost, "/carts/"+cartID+"/items", map[string]any{
		"product_id": product["id"], "quantity": 2,
	}, admin), http.StatusOK)

	body := do(t, handler, request(http.MethodPost, "/carts/"+cartID+"/checkout", nil, admin), http.StatusConflict)
	if body["product_id"] != product["id"] || body["available"].(float64) != 1 || body["requested"].(float64) != 2 {
		t.Fatalf("expected shortfall detail, got %v", body)
	}

	// Nothing was written.
	sales := doList(t, handler, request(http.MethodGet, "/sales", nil, admin), http.StatusOK)
	if len(sales) != 0 {
		t.Fatalf("expected no sales after failed checkout, got %d", len(sales))
	}
}

func TestHandlerCompanyAccessControl(t *testing.T) {
	handler := newTestHandler(t)

	companyA := do(t, handler, request(http.MethodPost, "/companies", map[string]any{"name": "Acme"}, nil), http.StatusCreated)
	companyB := do(t, handler, request(http.MethodPost, "/companies", map[string]any{"name": "Rival"}, nil), http.StatusCreated)
	aID := companyA["id"].(string)
	bID := companyB["id"].(string)
	cashier := claimsFor(aID, "u1", "cashier")
	admin := claimsFor(aID, "u2", "admin")

	// Another company's records are off limits regardless of role.
	for _, req := range []*http.Request{
		request(http.MethodGet, "/companies/"+bID, nil, admin),
		request(http.MethodPut, "/companies/"+bID, map[string]any{"name": "Owned by A"}, admin),
		request(http.MethodDelete, "/companies/"+bID, nil, admin),
		request(http.MethodPost, "/companies/"+bID+"/branches", map[string]any{"name": "Annex"}, admin),
	} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("%s %s: expected 403, got %d", req.Method, req.URL.Path, rec.Code)
		}
	}
	got := do(t, handler, request(http.MethodGet, "/companies/"+bID, nil, claimsFor(bID, "u9", "admin")), http.StatusOK)
	if got["name"] != "Rival" {
		t.Fatalf("company B was mutated: %v", got)
	}

	// Members read their own company; only admins change it.
	do(t, handler, request(http.MethodGet, "/companies/"+aID, nil, cashier), http.StatusOK)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, request(http.MethodPut, "/companies/"+aID, map[string]any{"name": "Acme Ltd"}, cashier))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin update, got %d", rec.Code)
	}
	do(t, handler, request(http.MethodPut, "/companies/"+aID, map[string]any{"name": "Acme Ltd"}, admin), http.StatusOK)

	// Listing is claims-bound and shows only the caller's company.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, request(http.MethodGet, "/companies", nil, nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for anonymous list, got %d", rec.Code)
	}
	list := doList(t, handler, request(http.MethodGet, "/companies", nil, cashier), http.StatusOK)
	if len(list) != 1 || list[0]["id"] != aID {
		t.Fatalf("expected only own company, got %v", list)
	}
}

func TestHandlerSalesTimeRange(t *testing.T) {
	handler := newTestHandler(t)

	company := do(t, handler, request(http.MethodPost, "/companies", map[string]any{"name": "Acme"}, nil), http.StatusCreated)
	admin := claimsFor(company["id"].(string), "u-admin", "admin")

	product := do(t, handler, request(http.MethodPost, "/products", map[string]any{
		"name": "Mug", "quantity": 5, "price_cents": 500,
	}, admin), http.StatusCreated)
	cb := do(t, handler, request(http.MethodPost, "/cashboxes", map[string]any{"name": "Desk"}, admin), http.StatusCreated)
	cart := do(t, handler, request(http.MethodPost, "/carts", map[string]any{"cashbox_id": cb["id"]}, admin), http.StatusOK)
	cartID := cart["id"].(string)
	do(t, handler, request(http.MethodPost, "/carts/"+cartID+"/items", map[string]any{
		"product_id": product["id"], "quantity": 1,
	}, admin), http.StatusOK)
	do(t, handler, request(http.MethodPost, "/carts/"+cartID+"/checkout", nil, admin), http.StatusCreated)

	sales := doList(t, handler, request(http.MethodGet, "/sales?from=2000-01-01", nil, admin), http.StatusOK)
	if len(sales) != 1 {
		t.Fatalf("expected 1 sale since 2000, got %d", len(sales))
	}
	sales = doList(t, handler, request(http.MethodGet, "/sales?to=2000-01-01", nil, admin), http.StatusOK)
	if len(sales) != 0 {
		t.Fatalf("expected no sales before 2000, got %d", len(sales))
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, request(http.MethodGet, "/sales?from=yesterday", nil, admin))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a bad time bound, got %d", rec.Code)
	}
}

func TestHandlerCrossTenantIsolation(t *testing.T) {
	handler := newTestHandler(t)

	company := do(t, handler, request(http.MethodPost, "/companies", map[string]any{"name": "Acme"}, nil), http.StatusCreated)
	owner := claimsFor(company["id"].(string), "u1", "admin")
	product := do(t, handler, request(http.MethodPost, "/products", map[string]any{
		"name": "Mug", "quantity": 1, "price_cents": 500,
	}, owner), http.StatusCreated)

	other := do(t, handler, request(http.MethodPost, "/companies", map[string]any{"name": "Rival"}, nil), http.StatusCreated)
	intruder := claimsFor(other["id"].(string), "u9", "admin")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, request(http.MethodGet, "/products/"+product["id"].(string), nil, intruder))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign product, got %d", rec.Code)
	}
}

func TestHandlerWebhookAndInbox(t *testing.T) {
	handler := newTestHandler(t)

	company := do(t, handler, request(http.MethodPost, "/companies", map[string]any{"name": "Acme"}, nil), http.StatusCreated)
	companyID := company["id"].(string)
	operator := claimsFor(companyID, "u1", "manager")

	payload := map[string]any{
		"entry": []map[string]any{{
			"messaging": []map[string]any{{
				"sender":    map[string]any{"id": "ig-77"},
				"timestamp": 1755900000000,
				"message":   map[string]any{"mid": "mid.1", "text": "do you deliver?"},
			}},
		}},
	}
	raw, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/integrations/webhooks/instagram/"+companyID, bytes.NewReader(raw))
	resp := do(t, handler, req, http.StatusOK)
	if resp["stored"].(float64) != 1 {
		t.Fatalf("expected 1 stored message, got %v", resp["stored"])
	}

	msgs := doList(t, handler, request(http.MethodGet, "/messages?unread=1", nil, operator), http.StatusOK)
	if len(msgs) != 1 || msgs[0]["sender"] != "ig-77" {
		t.Fatalf("unexpected messages: %v", msgs)
	}
	msgID := msgs[0]["id"].(string)

	do(t, handler, request(http.MethodPost, "/messages/"+msgID+"/read", nil, operator), http.StatusOK)
	msgs = doList(t, handler, request(http.MethodGet, "/messages?unread=1", nil, operator), http.StatusOK)
	if len(msgs) != 0 {
		t.Fatalf("expected no unread messages, got %d", len(msgs))
	}
}

func TestHandlerHealthAndAnonymous(t *testing.T) {
	handler := newTestHandler(t)

	body := do(t, handler, request(http.MethodGet, "/healthz", nil, nil), http.StatusOK)
	if body["status"] != "ok" {
		t.Fatalf("unexpected health body: %v", body)
	}
	do(t, handler, request(http.MethodGet, "/readyz", nil, nil), http.StatusOK)

	// Tenant-scoped routes demand claims.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, request(http.MethodGet, "/products", nil, nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without claims, got %d", rec.Code)
	}
}
