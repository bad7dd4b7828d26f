package customers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mercatohq/mercato-backend/pkg/auth"
	"github.com/mercatohq/mercato-backend/pkg/config"
	"github.com/mercatohq/mercato-backend/pkg/db"
	"github.com/mercatohq/mercato-backend/pkg/db/models"
	pkgerrors "github.com/mercatohq/mercato-backend/pkg/errors"
	"github.com/mercatohq/mercato-backend/pkg/security"
)

type rateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// Service handles storefront and register-terminal authentication.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*AuthResult, error)
	Login(ctx context.Context, req LoginRequest) (*AuthResult, error)
	StaffLogin(ctx context.Context, req StaffLoginRequest) (*StaffAuthResult, error)
	GetCustomer(ctx context.Context, id uuid.UUID) (*CustomerDTO, error)
}

type service struct {
	repo      *Repository
	jwtCfg    config.JWTConfig
	pwCfg     config.PasswordConfig
	limitCfg  config.AuthRateLimitConfig
	limiter   rateLimiter
	clockSkew func() time.Time
}

// NewService builds an account service. The limiter is optional; without it
// login attempts are not throttled.
func NewService(repo *Repository, jwtCfg config.JWTConfig, pwCfg config.PasswordConfig, limitCfg config.AuthRateLimitConfig, limiter rateLimiter) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("account repository required")
	}
	return &service{
		repo:      repo,
		jwtCfg:    jwtCfg,
		pwCfg:     pwCfg,
		limitCfg:  limitCfg,
		limiter:   limiter,
		clockSkew: time.Now,
	}, nil
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	email := normalizeEmail(req.Email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if len(req.Password) < 8 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 8 characters")
	}

	hash, err := security.HashPassword(req.Password, s.pwCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	customer := &models.Customer{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
	}
	if err := s.repo.CreateCustomer(ctx, customer); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "email is already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create customer")
	}

	token, err := s.mint(customer.ID, auth.ActorCustomer)
	if err != nil {
		return nil, err
	}
	return &AuthResult{AccessToken: token, Customer: toCustomerDTO(customer)}, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email and password are required")
	}
	if err := s.throttle(ctx, "login:email:"+email, s.limitCfg.LoginEmailLimit); err != nil {
		return nil, err
	}
	if req.ClientIP != "" {
		if err := s.throttle(ctx, "login:ip:"+req.ClientIP, s.limitCfg.LoginIPLimit); err != nil {
			return nil, err
		}
	}

	customer, err := s.repo.FindCustomerByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invalidCredentials()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer")
	}
	ok, err := security.VerifyPassword(req.Password, customer.PasswordHash)
	if err != nil || !ok {
		return nil, invalidCredentials()
	}

	token, err := s.mint(customer.ID, auth.ActorCustomer)
	if err != nil {
		return nil, err
	}
	return &AuthResult{AccessToken: token, Customer: toCustomerDTO(customer)}, nil
}

func (s *service) StaffLogin(ctx context.Context, req StaffLoginRequest) (*StaffAuthResult, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "username and password are required")
	}
	if err := s.throttle(ctx, "staff_login:username:"+strings.ToLower(username), s.limitCfg.LoginEmailLimit); err != nil {
		return nil, err
	}

	staff, err := s.repo.FindStaffByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invalidCredentials()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load staff")
	}
	if !staff.IsActive {
		return nil, invalidCredentials()
	}
	ok, err := security.VerifyPassword(req.Password, staff.PasswordHash)
	if err != nil || !ok {
		return nil, invalidCredentials()
	}

	token, err := s.mint(staff.ID, auth.ActorStaff)
	if err != nil {
		return nil, err
	}
	return &StaffAuthResult{AccessToken: token, Staff: toStaffDTO(staff)}, nil
}

func (s *service) GetCustomer(ctx context.Context, id uuid.UUID) (*CustomerDTO, error) {
	customer, err := s.repo.FindCustomerByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer")
	}
	return toCustomerDTO(customer), nil
}

// throttle fails open on limiter errors: login availability beats strictness
// when redis is down.
func (s *service) throttle(ctx context.Context, scope string, limit int) error {
	if s.limiter == nil || limit <= 0 {
		return nil
	}
	allowed, _, err := s.limiter.FixedWindowAllow(ctx, scope, int64(limit), s.limitCfg.LoginWindow)
	if err != nil {
		return nil
	}
	if !allowed {
		return pkgerrors.New(pkgerrors.CodeRateLimit, "too many login attempts")
	}
	return nil
}

func (s *service) mint(actorID uuid.UUID, kind auth.ActorKind) (string, error) {
	token, err := auth.MintAccessToken(s.jwtCfg, s.clockSkew(), auth.AccessTokenPayload{
		ActorID: actorID,
		Kind:    kind,
	})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}
	return token, nil
}

// the same message for unknown account and wrong password
func invalidCredentials() error {
	return pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
