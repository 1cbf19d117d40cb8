package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/retailcore/commerce_layer/internal/app/domain/user"
	"github.com/retailcore/commerce_layer/internal/app/storage"
	"github.com/retailcore/commerce_layer/pkg/logger"
)

// Claims is the JWT payload carried by every authenticated request. Company
// and branch bind the caller to a tenant slice.
type Claims struct {
	CompanyID string `json:"company_id"`
	BranchID  string `json:"branch_id,omitempty"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// Service authenticates operators and mints access tokens.
type Service struct {
	users  storage.UserStore
	secret []byte
	ttl    time.Duration
	log    *logger.Logger
}

// New constructs an auth service. ttl defaults to 24h when zero.
func New(users storage.UserStore, secret string, ttl time.Duration, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("auth")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{users: users, secret: []byte(secret), ttl: ttl, log: log}
}

// Login verifies credentials and returns a signed token plus the user.
func (s *Service) Login(ctx context.Context, email, password string) (string, user.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return "", user.User{}, fmt.Errorf("invalid credentials")
	}
	if !u.Active {
		return "", user.User{}, fmt.Errorf("account is disabled")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.log.WithField("email", email).Warn("failed login attempt")
		return "", user.User{}, fmt.Errorf("invalid credentials")
	}

	token, err := s.Issue(u)
	if err != nil {
		return "", user.User{}, err
	}
	s.log.WithField("user_id", u.ID).WithField("company_id", u.CompanyID).Info("user logged in")
	return token, u, nil
}

// Issue mints a token for an already-verified user.
func (s *Service) Issue(u user.User) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		CompanyID: u.CompanyID,
		BranchID:  u.BranchID,
		Role:      string(u.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify parses a token and returns its claims.
func (s *Service) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}
