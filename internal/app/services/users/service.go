package users

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/retailcore/commerce_layer/internal/app/domain/user"
	"github.com/retailcore/commerce_layer/internal/app/storage"
	"github.com/retailcore/commerce_layer/pkg/logger"
)

// Service manages operator accounts.
type Service struct {
	tenants storage.TenantStore
	store   storage.UserStore
	log     *logger.Logger
}

// New constructs a user service.
func New(tenants storage.TenantStore, store storage.UserStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("users")
	}
	return &Service{tenants: tenants, store: store, log: log}
}

// Create registers an operator with a hashed password.
func (s *Service) Create(ctx context.Context, u user.User, password string) (user.User, error) {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.CompanyID == "" || u.Email == "" {
		return user.User{}, fmt.Errorf("company_id and email are required")
	}
	if len(password) < 8 {
		return user.User{}, fmt.Errorf("password must be at least 8 characters")
	}
	if !u.Role.Valid() {
		return user.User{}, fmt.Errorf("unsupported role %q", u.Role)
	}
	if s.tenants != nil {
		if _, err := s.tenants.GetCompany(ctx, u.CompanyID); err != nil {
			return user.User{}, fmt.Errorf("company validation failed: %w", err)
		}
		if u.BranchID != "" {
			if _, err := s.tenants.GetBranch(ctx, u.BranchID); err != nil {
				return user.User{}, fmt.Errorf("branch validation failed: %w", err)
			}
		}
	}
	if _, err := s.store.GetUserByEmail(ctx, u.Email); err == nil {
		return user.User{}, fmt.Errorf("email %s is already registered", u.Email)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return user.User{}, err
	}
	u.PasswordHash = string(hash)
	u.Active = true

	created, err := s.store.CreateUser(ctx, u)
	if err != nil {
		return user.User{}, err
	}
	s.log.WithField("user_id", created.ID).
		WithField("company_id", created.CompanyID).
		WithField("role", string(created.Role)).
		Info("user created")
	return created, nil
}

// Update edits an operator's profile. The password is unchanged unless a new
// one is supplied.
func (s *Service) Update(ctx context.Context, u user.User, newPassword string) (user.User, error) {
	existing, err := s.store.GetUser(ctx, u.ID)
	if err != nil {
		return user.User{}, err
	}
	if u.Role != "" && !u.Role.Valid() {
		return user.User{}, fmt.Errorf("unsupported role %q", u.Role)
	}
	if u.Role == "" {
		u.Role = existing.Role
	}
	if u.Email == "" {
		u.Email = existing.Email
	}
	u.PasswordHash = existing.PasswordHash
	if newPassword != "" {
		if len(newPassword) < 8 {
			return user.User{}, fmt.Errorf("password must be at least 8 characters")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
		if err != nil {
			return user.User{}, err
		}
		u.PasswordHash = string(hash)
	}
	return s.store.UpdateUser(ctx, u)
}

// Get fetches an operator by id.
func (s *Service) Get(ctx context.Context, id string) (user.User, error) {
	return s.store.GetUser(ctx, id)
}

// List lists a company's operators.
func (s *Service) List(ctx context.Context, companyID string) ([]user.User, error) {
	return s.store.ListUsers(ctx, companyID)
}

// Deactivate disables an operator without deleting history.
func (s *Service) Deactivate(ctx context.Context, id string) (user.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return user.User{}, err
	}
	u.Active = false
	updated, err := s.store.UpdateUser(ctx, u)
	if err != nil {
		return user.User{}, err
	}
	s.log.WithField("user_id", id).Info("user deactivated")
	return updated, nil
}
