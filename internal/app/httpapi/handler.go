// Package httpapi exposes the application services over REST.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	app "github.com/retailcore/commerce_layer/internal/app"
	"github.com/retailcore/commerce_layer/internal/app/domain/cashbox"
	"github.com/retailcore/commerce_layer/internal/app/domain/catalog"
	"github.com/retailcore/commerce_layer/internal/app/domain/messaging"
	"github.com/retailcore/commerce_layer/internal/app/domain/tenant"
	"github.com/retailcore/commerce_layer/internal/app/domain/user"
	"github.com/retailcore/commerce_layer/internal/app/notify"
	"github.com/retailcore/commerce_layer/internal/app/services/auth"
	"github.com/retailcore/commerce_layer/internal/app/services/carts"
	checkoutsvc "github.com/retailcore/commerce_layer/internal/app/services/checkout"
	"github.com/retailcore/commerce_layer/internal/app/storage"
	"github.com/retailcore/commerce_layer/internal/middleware"
)

// Options tunes handler construction.
type Options struct {
	// AuditPath, when set, appends mutating-request audit entries as JSONL.
	AuditPath string
	// AuditMax bounds the in-memory audit ring served at /audit.
	AuditMax int
	// Ready reports readiness for /readyz. Nil means always ready.
	Ready func() error
}

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app   *app.Application
	hub   *notify.Hub
	audit *auditLog
	ready func() error
}

// NewHandler returns a mux exposing the REST API. The hub may be nil when
// websocket notifications are disabled.
func NewHandler(application *app.Application, hub *notify.Hub, opts Options) (http.Handler, error) {
	sink, err := newFileAuditSink(opts.AuditPath)
	if err != nil {
		return nil, err
	}

	h := &handler{
		app:   application,
		hub:   hub,
		audit: newAuditLog(opts.AuditMax, sink),
		ready: opts.Ready,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/login", h.login)
	mux.HandleFunc("/healthz", h.healthz)
	mux.HandleFunc("/readyz", h.readyz)
	mux.HandleFunc("/system", h.system)

	mux.HandleFunc("/companies", h.companies)
	mux.HandleFunc("/companies/", h.companyResources)
	mux.HandleFunc("/users", h.users)
	mux.HandleFunc("/users/", h.userResources)
	mux.HandleFunc("/products", h.products)
	mux.HandleFunc("/products/", h.productResources)
	mux.HandleFunc("/cashboxes", h.cashboxes)
	mux.HandleFunc("/cashboxes/", h.cashboxResources)
	mux.HandleFunc("/carts", h.carts)
	mux.HandleFunc("/carts/", h.cartResources)
	mux.HandleFunc("/sales", h.sales)
	mux.HandleFunc("/sales/", h.saleResources)
	mux.HandleFunc("/consignments", h.consignments)
	mux.HandleFunc("/consignments/", h.consignmentResources)
	mux.HandleFunc("/returns", h.returns)
	mux.HandleFunc("/returns/", h.returnResources)
	mux.HandleFunc("/agents/", h.agentResources)
	mux.HandleFunc("/integrations/webhooks/", h.webhooks)
	mux.HandleFunc("/messages", h.messages)
	mux.HandleFunc("/messages/", h.messageResources)
	mux.HandleFunc("/reports", h.reports)
	mux.HandleFunc("/reports/compute", h.reportsCompute)
	mux.HandleFunc("/ws/notifications", h.notifications)
	mux.HandleFunc("/audit", h.auditEntries)

	return h.withAudit(mux), nil
}

// claims pulls verified token claims, rejecting the request when absent.
func (h *handler) claims(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, errors.New("authentication required"))
		return nil, false
	}
	return claims, true
}

func (h *handler) scope(w http.ResponseWriter, r *http.Request) (tenant.Scope, *auth.Claims, bool) {
	claims, ok := h.claims(w, r)
	if !ok {
		return tenant.Scope{}, nil, false
	}
	return tenant.Scope{CompanyID: claims.CompanyID, BranchID: claims.BranchID}, claims, true
}

// ---- auth and health ----

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	token, u, err := h.app.Auth.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Token string    `json:"token"`
		User  user.User `json:"user"`
	}{Token: token, User: u})
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) readyz(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(); err != nil {
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// ---- tenants ----

func (h *handler) companies(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var payload struct {
			Name     string            `json:"name"`
			OwnerID  string            `json:"owner_id"`
			Metadata map[string]string `json:"metadata"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		created, err := h.app.Tenants.CreateCompany(r.Context(), tenant.Company{
			Name:     payload.Name,
			OwnerID:  payload.OwnerID,
			Metadata: payload.Metadata,
		})
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	case http.MethodGet:
		// Callers only ever see their own company.
		claims, ok := h.claims(w, r)
		if !ok {
			return
		}
		company, err := h.app.Tenants.GetCompany(r.Context(), claims.CompanyID)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, []tenant.Company{company})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) companyResources(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}
	parts := pathParts(r.URL.Path, "/companies")
	if len(parts) == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	companyID := parts[0]
	if companyID != claims.CompanyID {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	mutating := r.Method != http.MethodGet
	if mutating && claims.Role != string(user.RoleAdmin) {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			company, err := h.app.Tenants.GetCompany(r.Context(), companyID)
			if err != nil {
				writeError(w, statusForError(err), err)
				return
			}
			writeJSON(w, http.StatusOK, company)
		case http.MethodPut:
			var payload struct {
				Name     string            `json:"name"`
				OwnerID  string            `json:"owner_id"`
				Metadata map[string]string `json:"metadata"`
			}
			if err := decodeJSON(r.Body, &payload); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			updated, err := h.app.Tenants.UpdateCompany(r.Context(), tenant.Company{
				ID:       companyID,
				Name:     payload.Name,
				OwnerID:  payload.OwnerID,
				Metadata: payload.Metadata,
			})
			if err != nil {
				writeError(w, statusForError(err), err)
				return
			}
			writeJSON(w, http.StatusOK, updated)
		case http.MethodDelete:
			if err := h.app.Tenants.DeleteCompany(r.Context(), companyID); err != nil {
				writeError(w, statusForError(err), err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	if parts[1] != "branches" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	switch r.Method {
	case http.MethodPost:
		var payload struct {
			Name    string `json:"name"`
			Address string `json:"address"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		created, err := h.app.Tenants.CreateBranch(r.Context(), tenant.Branch{
			CompanyID: companyID,
			Name:      payload.Name,
			Address:   payload.Address,
		})
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	case http.MethodGet:
		branches, err := h.app.Tenants.ListBranches(r.Context(), companyID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, branches)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// ---- users ----

func (h *handler) users(w http.ResponseWriter, r *http.Request) {
	_, claims, ok := h.scope(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodPost:
		var payload struct {
			Email     string `json:"email"`
			Password  string `json:"password"`
			FirstName string `json:"first_name"`
			LastName  string `json:"last_name"`
			Role      string `json:"role"`
			BranchID  string `json:"branch_id"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		created, err := h.app.Users.Create(r.Context(), user.User{
			CompanyID: claims.CompanyID,
			BranchID:  payload.BranchID,
			Email:     payload.Email,
			FirstName: payload.FirstName,
			LastName:  payload.LastName,
			Role:      user.Role(payload.Role),
		}, payload.Password)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	case http.MethodGet:
		list, err := h.app.Users.List(r.Context(), claims.CompanyID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) userResources(w http.ResponseWriter, r *http.Request) {
	_, claims, ok := h.scope(w, r)
	if !ok {
		return
	}
	parts := pathParts(r.URL.Path, "/users")
	if len(parts) != 1 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	userID := parts[0]

	existing, err := h.app.Users.Get(r.Context(), userID)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	if existing.CompanyID != claims.CompanyID {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, existing)
	case http.MethodPut:
		var payload struct {
			FirstName string `json:"first_name"`
			LastName  string `json:"last_name"`
			Role      string `json:"role"`
			BranchID  string `json:"branch_id"`
			Password  string `json:"password"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		existing.FirstName = payload.FirstName
		existing.LastName = payload.LastName
		existing.Role = user.Role(payload.Role)
		existing.BranchID = payload.BranchID
		updated, err := h.app.Users.Update(r.Context(), existing, payload.Password)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		deactivated, err := h.app.Users.Deactivate(r.Context(), userID)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, deactivated)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// ---- products ----

func (h *handler) products(w http.ResponseWriter, r *http.Request) {
	scope, claims, ok := h.scope(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodPost:
		var payload struct {
			Name          string `json:"name"`
			Barcode       string `json:"barcode"`
			Quantity      int    `json:"quantity"`
			PurchaseCents int64  `json:"purchase_cents"`
			PriceCents    int64  `json:"price_cents"`
			BranchID      string `json:"branch_id"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		created, err := h.app.Products.Create(r.Context(), catalog.Product{
			CompanyID:     claims.CompanyID,
			BranchID:      payload.BranchID,
			Name:          payload.Name,
			Barcode:       payload.Barcode,
			Quantity:      payload.Quantity,
			PurchaseCents: payload.PurchaseCents,
			PriceCents:    payload.PriceCents,
		})
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	case http.MethodGet:
		list, err := h.app.Products.List(r.Context(), scope)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) productResources(w http.ResponseWriter, r *http.Request) {
	_, claims, ok := h.scope(w, r)
	if !ok {
		return
	}
	parts := pathParts(r.URL.Path, "/products")
	if len(parts) == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if parts[0] == "barcode" {
		if len(parts) != 2 || r.Method != http.MethodGet {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		product, err := h.app.Products.GetByBarcode(r.Context(), claims.CompanyID, parts[1])
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, product)
		return
	}

	productID := parts[0]
	product, err := h.app.Products.Get(r.Context(), claims.CompanyID, productID)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	if product.CompanyID != claims.CompanyID {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, product)
		case http.MethodPut:
			var payload struct {
				Name          string `json:"name"`
				Barcode       string `json:"barcode"`
				PurchaseCents int64  `json:"purchase_cents"`
				PriceCents    int64  `json:"price_cents"`
				BranchID      string `json:"branch_id"`
			}
			if err := decodeJSON(r.Body, &payload); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			product.Name = payload.Name
			product.Barcode = payload.Barcode
			product.PurchaseCents = payload.PurchaseCents
			product.PriceCents = payload.PriceCents
			product.BranchID = payload.BranchID
			updated, err := h.app.Products.Update(r.Context(), product)
			if err != nil {
				writeError(w, statusForError(err), err)
				return
			}
			writeJSON(w, http.StatusOK, updated)
		case http.MethodDelete:
			if err := h.app.Products.Delete(r.Context(), productID); err != nil {
				writeError(w, statusForError(err), err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	switch parts[1] {
	case "adjust":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var payload struct {
			Delta int `json:"delta"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		updated, err := h.app.Products.AdjustQuantity(r.Context(), productID, payload.Delta)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	case "status":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var payload struct {
			Status string `json:"status"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		updated, err := h.app.Products.SetStatus(r.Context(), productID, catalog.Status(payload.Status))
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// ---- cashboxes ----

func (h *handler) cashboxes(w http.ResponseWriter, r *http.Request) {
	scope, claims, ok := h.scope(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodPost:
		var payload struct {
			Name         string `json:"name"`
			BranchID     string `json:"branch_id"`
			RequireShift bool   `json:"require_shift"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		created, err := h.app.Cashboxes.Create(r.Context(), cashbox.Cashbox{
			CompanyID:    claims.CompanyID,
			BranchID:     payload.BranchID,
			Name:         payload.Name,
			RequireShift: payload.RequireShift,
		})
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	case http.MethodGet:
		list, err := h.app.Cashboxes.List(r.Context(), scope)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) cashboxResources(w http.ResponseWriter, r *http.Request) {
	scope, claims, ok := h.scope(w, r)
	if !ok {
		return
	}
	parts := pathParts(r.URL.Path, "/cashboxes")
	if len(parts) == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	cashboxID := parts[0]

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			cb, err := h.app.Cashboxes.Get(r.Context(), scope, cashboxID)
			if err != nil {
				writeError(w, statusForError(err), err)
				return
			}
			writeJSON(w, http.StatusOK, cb)
		case http.MethodPut:
			var payload struct {
				Name         string `json:"name"`
				BranchID     string `json:"branch_id"`
				RequireShift bool   `json:"require_shift"`
			}
			if err := decodeJSON(r.Body, &payload); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			updated, err := h.app.Cashboxes.Update(r.Context(), scope, cashbox.Cashbox{
				ID:           cashboxID,
				CompanyID:    claims.CompanyID,
				BranchID:     payload.BranchID,
				Name:         payload.Name,
				RequireShift: payload.RequireShift,
			})
			if err != nil {
				writeError(w, statusForError(err), err)
				return
			}
			writeJSON(w, http.StatusOK, updated)
		case http.MethodDelete:
			if err := h.app.Cashboxes.Delete(r.Context(), scope, cashboxID); err != nil {
				writeError(w, statusForError(err), err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	switch parts[1] {
	case "shifts":
		h.cashboxShifts(w, r, scope, claims, cashboxID, parts[2:])
	case "flows":
		h.cashboxFlows(w, r, scope, cashboxID, parts[2:])
	case "summary":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		summary, err := h.app.Cashboxes.Summary(r.Context(), scope, cashboxID)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) cashboxShifts(w http.ResponseWriter, r *http.Request, scope tenant.Scope, claims *auth.Claims, cashboxID string, rest []string) {
	if len(rest) == 0 {
		switch r.Method {
		case http.MethodPost:
			var payload struct {
				CashierID string `json:"cashier_id"`
			}
			if err := decodeJSON(r.Body, &payload); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			cashierID := payload.CashierID
			if cashierID == "" {
				cashierID = claims.Subject
			}
			shift, err := h.app.Cashboxes.OpenShift(r.Context(), scope, cashboxID, cashierID)
			if err != nil {
				writeError(w, statusForError(err), err)
				return
			}
			if h.hub != nil {
				h.hub.Broadcast(claims.CompanyID, notify.Event{Type: "shift.opened", Payload: shift})
			}
			writeJSON(w, http.StatusCreated, shift)
		case http.MethodGet:
			shifts, err := h.app.Cashboxes.ListShifts(r.Context(), scope, cashboxID)
			if err != nil {
				writeError(w, statusForError(err), err)
				return
			}
			writeJSON(w, http.StatusOK, shifts)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	if len(rest) == 2 && rest[1] == "close" && r.Method == http.MethodPost {
		shift, err := h.app.Cashboxes.CloseShift(r.Context(), scope, rest[0])
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, shift)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *handler) cashboxFlows(w http.ResponseWriter, r *http.Request, scope tenant.Scope, cashboxID string, rest []string) {
	if len(rest) == 0 {
		switch r.Method {
		case http.MethodPost:
			var payload struct {
				Type        string `json:"type"`
				Name        string `json:"name"`
				AmountCents int64  `json:"amount_cents"`
			}
			if err := decodeJSON(r.Body, &payload); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			flow, err := h.app.Cashboxes.RecordFlow(r.Context(), scope, cashbox.Flow{
				CashboxID:   cashboxID,
				Type:        cashbox.FlowType(payload.Type),
				Name:        payload.Name,
				AmountCents: payload.AmountCents,
			})
			if err != nil {
				writeError(w, statusForError(err), err)
				return
			}
			writeJSON(w, http.StatusCreated, flow)
		case http.MethodGet:
			flows, err := h.app.Cashboxes.ListFlows(r.Context(), scope, cashboxID)
			if err != nil {
				writeError(w, statusForError(err), err)
				return
			}
			writeJSON(w, http.StatusOK, flows)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	if len(rest) == 2 && rest[1] == "approve" && r.Method == http.MethodPost {
		flow, err := h.app.Cashboxes.ApproveFlow(r.Context(), scope, rest[0])
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, flow)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

// ---- carts and checkout ----

func (h *handler) carts(w http.ResponseWriter, r *http.Request) {
	scope, claims, ok := h.scope(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		CashboxID  string `json:"cashbox_id"`
		SessionKey string `json:"session_key"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	userID := ""
	if payload.SessionKey == "" {
		userID = claims.Subject
	}
	cart, err := h.app.Carts.Open(r.Context(), scope, payload.CashboxID, userID, payload.SessionKey)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

func (h *handler) cartResources(w http.ResponseWriter, r *http.Request) {
	scope, claims, ok := h.scope(w, r)
	if !ok {
		return
	}
	parts := pathParts(r.URL.Path, "/carts")
	if len(parts) == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	cartID := parts[0]

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		cart, err := h.app.Carts.Get(r.Context(), scope, cartID)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, cart)
		return
	}

	switch parts[1] {
	case "items":
		h.cartItems(w, r, scope, cartID, parts[2:])
	case "discount":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var payload struct {
			DiscountCents int64 `json:"discount_cents"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		cart, err := h.app.Carts.SetOrderDiscount(r.Context(), scope, cartID, payload.DiscountCents)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, cart)
	case "abandon":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		cart, err := h.app.Carts.Abandon(r.Context(), scope, cartID)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, cart)
	case "checkout":
		h.checkout(w, r, scope, claims, cartID, "")
	case "checkout-agent":
		h.checkoutAgent(w, r, scope, claims, cartID)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) cartItems(w http.ResponseWriter, r *http.Request, scope tenant.Scope, cartID string, rest []string) {
	if len(rest) == 0 {
		switch r.Method {
		case http.MethodPost:
			var payload struct {
				ProductID      string `json:"product_id"`
				CustomName     string `json:"custom_name"`
				Quantity       int    `json:"quantity"`
				UnitPriceCents int64  `json:"unit_price_cents"`
				DiscountCents  int64  `json:"discount_cents"`
			}
			if err := decodeJSON(r.Body, &payload); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			cart, err := h.app.Carts.AddItem(r.Context(), scope, cartID, carts.AddItemInput{
				ProductID:      payload.ProductID,
				CustomName:     payload.CustomName,
				Quantity:       payload.Quantity,
				UnitPriceCents: payload.UnitPriceCents,
				DiscountCents:  payload.DiscountCents,
			})
			if err != nil {
				writeError(w, statusForError(err), err)
				return
			}
			writeJSON(w, http.StatusOK, cart)
		case http.MethodGet:
			items, err := h.app.Carts.Items(r.Context(), scope, cartID)
			if err != nil {
				writeError(w, statusForError(err), err)
				return
			}
			writeJSON(w, http.StatusOK, items)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	itemID := rest[0]
	switch r.Method {
	case http.MethodPatch:
		var payload struct {
			Quantity int `json:"quantity"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		cart, err := h.app.Carts.SetItemQuantity(r.Context(), scope, cartID, itemID, payload.Quantity)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, cart)
	case http.MethodDelete:
		cart, err := h.app.Carts.RemoveItem(r.Context(), scope, cartID, itemID)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, cart)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) checkout(w http.ResponseWriter, r *http.Request, scope tenant.Scope, claims *auth.Claims, cartID, agentID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		MarkPaid bool `json:"mark_paid"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sale, err := h.app.Checkout.Checkout(r.Context(), scope, checkoutsvc.Request{
		CartID:   cartID,
		AgentID:  agentID,
		MarkPaid: payload.MarkPaid,
	})
	if err != nil {
		writeCheckoutError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sale)
}

func (h *handler) checkoutAgent(w http.ResponseWriter, r *http.Request, scope tenant.Scope, claims *auth.Claims, cartID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		AgentID  string `json:"agent_id"`
		MarkPaid bool   `json:"mark_paid"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(payload.AgentID) == "" {
		writeError(w, http.StatusBadRequest, errors.New("agent_id is required"))
		return
	}
	sale, err := h.app.Checkout.Checkout(r.Context(), scope, checkoutsvc.Request{
		CartID:   cartID,
		AgentID:  payload.AgentID,
		MarkPaid: payload.MarkPaid,
	})
	if err != nil {
		writeCheckoutError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sale)
}

// ---- sales ----

func (h *handler) sales(w http.ResponseWriter, r *http.Request) {
	scope, _, ok := h.scope(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	fromStr := r.URL.Query().Get("from")
	toStr := r.URL.Query().Get("to")
	if fromStr == "" && toStr == "" {
		list, err := h.app.Checkout.List(r.Context(), scope)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
		return
	}

	var from time.Time
	to := time.Now().UTC().AddDate(100, 0, 0)
	var err error
	if fromStr != "" {
		if from, err = parseTimeParam(fromStr); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	if toStr != "" {
		if to, err = parseTimeParam(toStr); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	list, err := h.app.Checkout.ListBetween(r.Context(), scope, from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// parseTimeParam accepts RFC 3339 timestamps or bare dates. The bound is
// exclusive at the upper end.
func parseTimeParam(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

func (h *handler) saleResources(w http.ResponseWriter, r *http.Request) {
	scope, _, ok := h.scope(w, r)
	if !ok {
		return
	}
	parts := pathParts(r.URL.Path, "/sales")
	if len(parts) == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	saleID := parts[0]

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		sale, err := h.app.Checkout.Get(r.Context(), scope, saleID)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, sale)
		return
	}

	switch parts[1] {
	case "items":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		items, err := h.app.Checkout.Items(r.Context(), scope, saleID)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, items)
	case "pay":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		sale, err := h.app.Checkout.Pay(r.Context(), scope, saleID)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, sale)
	case "cancel":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		sale, err := h.app.Checkout.Cancel(r.Context(), scope, saleID)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, sale)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// ---- agent inventory ----

func (h *handler) consignments(w http.ResponseWriter, r *http.Request) {
	scope, claims, ok := h.scope(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodPost:
		var payload struct {
			AgentID   string `json:"agent_id"`
			ProductID string `json:"product_id"`
			Qty       int    `json:"qty"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		created, err := h.app.AgentStock.Transfer(r.Context(), scope, claims.Subject, payload.AgentID, payload.ProductID, payload.Qty)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	case http.MethodGet:
		list, err := h.app.AgentStock.ListConsignments(r.Context(), scope, r.URL.Query().Get("agent_id"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) consignmentResources(w http.ResponseWriter, r *http.Request) {
	scope, claims, ok := h.scope(w, r)
	if !ok {
		return
	}
	parts := pathParts(r.URL.Path, "/consignments")
	if len(parts) != 2 || r.Method != http.MethodPost {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	consignmentID := parts[0]

	switch parts[1] {
	case "accept":
		var payload struct {
			Qty int `json:"qty"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		updated, err := h.app.AgentStock.Accept(r.Context(), scope, consignmentID, payload.Qty)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	case "returns":
		var payload struct {
			Qty int `json:"qty"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		ret, err := h.app.AgentStock.RequestReturn(r.Context(), scope, consignmentID, claims.Subject, payload.Qty)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, ret)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) returns(w http.ResponseWriter, r *http.Request) {
	scope, _, ok := h.scope(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	list, err := h.app.AgentStock.ListReturns(r.Context(), scope)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) returnResources(w http.ResponseWriter, r *http.Request) {
	scope, claims, ok := h.scope(w, r)
	if !ok {
		return
	}
	parts := pathParts(r.URL.Path, "/returns")
	if len(parts) != 2 || r.Method != http.MethodPost {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	returnID := parts[0]

	switch parts[1] {
	case "accept":
		ret, err := h.app.AgentStock.AcceptReturn(r.Context(), scope, returnID, claims.Subject)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, ret)
	case "reject":
		ret, err := h.app.AgentStock.RejectReturn(r.Context(), scope, returnID, claims.Subject)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, ret)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) agentResources(w http.ResponseWriter, r *http.Request) {
	scope, _, ok := h.scope(w, r)
	if !ok {
		return
	}
	parts := pathParts(r.URL.Path, "/agents")
	if len(parts) != 2 || r.Method != http.MethodGet {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	agentID := parts[0]

	switch parts[1] {
	case "stock":
		lines, err := h.app.AgentStock.Stock(r.Context(), scope, agentID)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, lines)
	case "consignments":
		list, err := h.app.AgentStock.ListConsignments(r.Context(), scope, agentID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// ---- messaging ----

// webhooks receives channel callbacks. The route carries the channel and the
// receiving company: /integrations/webhooks/{channel}/{companyID}. Signature
// verification happens in middleware before the request reaches here.
func (h *handler) webhooks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	parts := pathParts(r.URL.Path, "/integrations/webhooks")
	if len(parts) != 2 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	channel, companyID := messaging.Channel(parts[0]), parts[1]

	payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	stored, err := h.app.Inbox.Ingest(r.Context(), companyID, channel, payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"stored": len(stored)})
}

func (h *handler) messages(w http.ResponseWriter, r *http.Request) {
	scope, _, ok := h.scope(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	unreadOnly := r.URL.Query().Get("unread") == "1"
	list, err := h.app.Inbox.List(r.Context(), scope, unreadOnly)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) messageResources(w http.ResponseWriter, r *http.Request) {
	scope, _, ok := h.scope(w, r)
	if !ok {
		return
	}
	parts := pathParts(r.URL.Path, "/messages")
	if len(parts) != 2 || parts[1] != "read" || r.Method != http.MethodPost {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	msg, err := h.app.Inbox.MarkRead(r.Context(), scope, parts[0])
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

// ---- reports ----

func (h *handler) reports(w http.ResponseWriter, r *http.Request) {
	_, claims, ok := h.scope(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	list, err := h.app.Reports.List(r.Context(), claims.CompanyID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) reportsCompute(w http.ResponseWriter, r *http.Request) {
	_, claims, ok := h.scope(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Day string `json:"day"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	at := time.Now().UTC()
	if strings.TrimSpace(payload.Day) != "" {
		parsed, err := time.Parse("2006-01-02", payload.Day)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("day must be YYYY-MM-DD"))
			return
		}
		at = parsed
	}
	summary, err := h.app.Reports.ComputeDaily(r.Context(), claims.CompanyID, at)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// ---- notifications and audit ----

func (h *handler) notifications(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}
	if h.hub == nil {
		writeError(w, http.StatusNotImplemented, errors.New("notifications not configured"))
		return
	}
	h.hub.Subscribe(w, r, claims.CompanyID)
}

func (h *handler) auditEntries(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}
	if claims.Role != string(user.RoleAdmin) {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	writeJSON(w, http.StatusOK, h.audit.listLimit(limit))
}

// ---- helpers ----

func pathParts(path, prefix string) []string {
	trimmed := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrInsufficientStock):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

// writeCheckoutError maps checkout failures, attaching shortfall detail when
// present so clients can show which product ran out.
func writeCheckoutError(w http.ResponseWriter, err error) {
	var shortfall *checkoutsvc.ShortfallError
	if errors.As(err, &shortfall) {
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"error":      err.Error(),
			"product_id": shortfall.ProductID,
			"name":       shortfall.Name,
			"requested":  shortfall.Requested,
			"available":  shortfall.Available,
		})
		return
	}
	switch {
	case errors.Is(err, checkoutsvc.ErrEmptyCart):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, checkoutsvc.ErrNotEnoughStock), errors.Is(err, checkoutsvc.ErrAgentNotEnoughStock):
		writeError(w, http.StatusConflict, err)
	default:
		writeError(w, statusForError(err), err)
	}
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && err != io.EOF {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
