package cashboxes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/retailcore/commerce_layer/internal/app/domain/cashbox"
	"github.com/retailcore/commerce_layer/internal/app/domain/tenant"
	"github.com/retailcore/commerce_layer/internal/app/storage"
	"github.com/retailcore/commerce_layer/pkg/logger"
)

// Service manages registers, cashier shifts and cash flows.
type Service struct {
	store storage.CashboxStore
	log   *logger.Logger
}

// New constructs a cashbox service.
func New(store storage.CashboxStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("cashboxes")
	}
	return &Service{store: store, log: log}
}

// Create registers a cashbox.
func (s *Service) Create(ctx context.Context, cb cashbox.Cashbox) (cashbox.Cashbox, error) {
	cb.Name = strings.TrimSpace(cb.Name)
	if cb.CompanyID == "" || cb.Name == "" {
		return cashbox.Cashbox{}, fmt.Errorf("company_id and name are required")
	}
	created, err := s.store.CreateCashbox(ctx, cb)
	if err != nil {
		return cashbox.Cashbox{}, err
	}
	s.log.WithField("cashbox_id", created.ID).
		WithField("company_id", created.CompanyID).
		Info("cashbox created")
	return created, nil
}

// Update edits a cashbox.
func (s *Service) Update(ctx context.Context, scope tenant.Scope, cb cashbox.Cashbox) (cashbox.Cashbox, error) {
	existing, err := s.Get(ctx, scope, cb.ID)
	if err != nil {
		return cashbox.Cashbox{}, err
	}
	cb.CompanyID = existing.CompanyID
	cb.Name = strings.TrimSpace(cb.Name)
	if cb.Name == "" {
		cb.Name = existing.Name
	}
	return s.store.UpdateCashbox(ctx, cb)
}

// Get fetches a cashbox with tenancy enforced.
func (s *Service) Get(ctx context.Context, scope tenant.Scope, id string) (cashbox.Cashbox, error) {
	cb, err := s.store.GetCashbox(ctx, id)
	if err != nil {
		return cashbox.Cashbox{}, err
	}
	if cb.CompanyID != scope.CompanyID {
		return cashbox.Cashbox{}, storage.ErrNotFound
	}
	return cb, nil
}

// List lists the cashboxes visible in the caller's scope.
func (s *Service) List(ctx context.Context, scope tenant.Scope) ([]cashbox.Cashbox, error) {
	all, err := s.store.ListCashboxes(ctx, scope.CompanyID)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, cb := range all {
		if scope.Visible(cb.BranchID) {
			out = append(out, cb)
		}
	}
	return out, nil
}

// Delete removes a cashbox.
func (s *Service) Delete(ctx context.Context, scope tenant.Scope, id string) error {
	if _, err := s.Get(ctx, scope, id); err != nil {
		return err
	}
	return s.store.DeleteCashbox(ctx, id)
}

// OpenShift starts a cashier's session on a cashbox. A cashier can hold at
// most one open shift per cashbox.
func (s *Service) OpenShift(ctx context.Context, scope tenant.Scope, cashboxID, cashierID string) (cashbox.Shift, error) {
	if _, err := s.Get(ctx, scope, cashboxID); err != nil {
		return cashbox.Shift{}, err
	}
	if _, err := s.store.FindOpenShift(ctx, cashboxID, cashierID); err == nil {
		return cashbox.Shift{}, fmt.Errorf("cashier already has an open shift on this cashbox")
	} else if !errors.Is(err, storage.ErrNotFound) {
		return cashbox.Shift{}, err
	}

	shift, err := s.store.CreateShift(ctx, cashbox.Shift{
		CompanyID: scope.CompanyID,
		CashboxID: cashboxID,
		CashierID: cashierID,
		Status:    cashbox.ShiftOpen,
	})
	if err != nil {
		return cashbox.Shift{}, err
	}
	s.log.WithField("shift_id", shift.ID).
		WithField("cashbox_id", cashboxID).
		WithField("cashier_id", cashierID).
		Info("shift opened")
	return shift, nil
}

// CloseShift ends an open shift.
func (s *Service) CloseShift(ctx context.Context, scope tenant.Scope, shiftID string) (cashbox.Shift, error) {
	shift, err := s.store.GetShift(ctx, shiftID)
	if err != nil {
		return cashbox.Shift{}, err
	}
	if shift.CompanyID != scope.CompanyID {
		return cashbox.Shift{}, storage.ErrNotFound
	}
	if shift.Status != cashbox.ShiftOpen {
		return cashbox.Shift{}, fmt.Errorf("shift is %s", shift.Status)
	}
	shift.Status = cashbox.ShiftClosed
	shift.ClosedAt = time.Now().UTC()
	updated, err := s.store.UpdateShift(ctx, shift)
	if err != nil {
		return cashbox.Shift{}, err
	}
	s.log.WithField("shift_id", shiftID).Info("shift closed")
	return updated, nil
}

// ListShifts lists a cashbox's shifts.
func (s *Service) ListShifts(ctx context.Context, scope tenant.Scope, cashboxID string) ([]cashbox.Shift, error) {
	if _, err := s.Get(ctx, scope, cashboxID); err != nil {
		return nil, err
	}
	return s.store.ListShifts(ctx, cashboxID)
}

// RecordFlow records a cash movement. Flows start unapproved and are excluded
// from summaries until approved.
func (s *Service) RecordFlow(ctx context.Context, scope tenant.Scope, f cashbox.Flow) (cashbox.Flow, error) {
	if f.Type != cashbox.FlowIncome && f.Type != cashbox.FlowExpense {
		return cashbox.Flow{}, fmt.Errorf("unsupported flow type %q", f.Type)
	}
	if f.AmountCents <= 0 {
		return cashbox.Flow{}, fmt.Errorf("amount must be positive")
	}
	if _, err := s.Get(ctx, scope, f.CashboxID); err != nil {
		return cashbox.Flow{}, err
	}
	f.CompanyID = scope.CompanyID
	f.BranchID = scope.BranchID
	f.Approved = false
	created, err := s.store.CreateFlow(ctx, f)
	if err != nil {
		return cashbox.Flow{}, err
	}
	s.log.WithField("flow_id", created.ID).
		WithField("cashbox_id", f.CashboxID).
		WithField("type", string(f.Type)).
		WithField("amount_cents", f.AmountCents).
		Info("cash flow recorded")
	return created, nil
}

// ApproveFlow marks a flow as reviewed so it counts toward summaries.
func (s *Service) ApproveFlow(ctx context.Context, scope tenant.Scope, flowID string) (cashbox.Flow, error) {
	f, err := s.store.GetFlow(ctx, flowID)
	if err != nil {
		return cashbox.Flow{}, err
	}
	if f.CompanyID != scope.CompanyID {
		return cashbox.Flow{}, storage.ErrNotFound
	}
	return s.store.ApproveFlow(ctx, flowID)
}

// ListFlows lists a cashbox's movements.
func (s *Service) ListFlows(ctx context.Context, scope tenant.Scope, cashboxID string) ([]cashbox.Flow, error) {
	if _, err := s.Get(ctx, scope, cashboxID); err != nil {
		return nil, err
	}
	return s.store.ListFlows(ctx, cashboxID)
}

// Summary totals a cashbox's approved flows by direction.
func (s *Service) Summary(ctx context.Context, scope tenant.Scope, cashboxID string) (cashbox.Summary, error) {
	if _, err := s.Get(ctx, scope, cashboxID); err != nil {
		return cashbox.Summary{}, err
	}
	return s.store.CashboxSummary(ctx, cashboxID)
}
