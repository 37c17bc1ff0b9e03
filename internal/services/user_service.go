package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"aicavalli-order-service/internal/auth"
	"aicavalli-order-service/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type LoginInput struct {
	Phone string `json:"phone" validate:"required,len=10,numeric"`
	PIN   string `json:"pin" validate:"required"`
}

type LoginResult struct {
	User      domain.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

type CreateUserInput struct {
	Name  string  `json:"name" validate:"required,max=80"`
	Phone string  `json:"phone" validate:"required,len=10,numeric"`
	Email *string `json:"email" validate:"omitempty,email"`
	Role  string  `json:"role" validate:"required"`
	PIN   string  `json:"pin"`
}

type UserService struct {
	users     UserStore
	logger    *zap.Logger
	now       func() time.Time
	jwtSecret string
	tokenTTL  time.Duration
}

func NewUserService(users UserStore, logger *zap.Logger, jwtSecret string, tokenTTL time.Duration, now func() time.Time) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tokenTTL <= 0 {
		tokenTTL = 12 * time.Hour
	}
	return &UserService{users: users, logger: logger, now: clock(now), jwtSecret: jwtSecret, tokenTTL: tokenTTL}
}

// Login verifies phone and PIN for internal accounts. Guests check in instead.
func (s *UserService) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	in.Phone = normalizePhone(in.Phone)
	in.PIN = strings.TrimSpace(in.PIN)
	if err := validateInput(in); err != nil {
		return LoginResult{}, err
	}
	invalid := domain.InvalidCredentialsError()
	user, err := s.users.FindInternalUserByPhone(ctx, in.Phone)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return LoginResult{}, invalid
		}
		return LoginResult{}, domain.AsError(err)
	}
	if user.PinHash == "" || auth.ComparePIN(user.PinHash, in.PIN) != nil {
		s.logger.Info("login rejected", zap.String("userId", user.ID.String()))
		return LoginResult{}, invalid
	}
	token, expiresAt, err := auth.IssueAccessToken(s.jwtSecret, user, nil, s.tokenTTL, s.now())
	if err != nil {
		return LoginResult{}, domain.InternalError(err)
	}
	return LoginResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

// CreateUser adds an internal account. Riders, staff and kitchen users sign in with a PIN.
func (s *UserService) CreateUser(ctx context.Context, actor *domain.Actor, in CreateUserInput) (domain.User, error) {
	if err := requireCapability(actor, auth.CapAdminManage); err != nil {
		return domain.User{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Phone = normalizePhone(in.Phone)
	if err := validateInput(in); err != nil {
		return domain.User{}, err
	}
	role, ok := domain.ParseRole(in.Role)
	if !ok || role == domain.RoleGuest {
		return domain.User{}, domain.ValidationError("role: Must be one of: RIDER STAFF KITCHEN ADMIN", nil)
	}
	user := domain.User{
		ID:        uuid.New(),
		Name:      in.Name,
		Phone:     in.Phone,
		Email:     in.Email,
		Role:      role,
		CreatedAt: s.now(),
	}
	if in.PIN != "" {
		if err := auth.ValidatePINFormat(in.PIN); err != nil {
			return domain.User{}, domain.ValidationError("pin: Must be 4 to 8 digits", nil)
		}
		hash, err := auth.HashPIN(in.PIN)
		if err != nil {
			return domain.User{}, domain.InternalError(err)
		}
		user.PinHash = hash
	}
	created, err := s.users.CreateUser(ctx, user)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return domain.User{}, domain.ConflictError("A user with this phone already exists")
		}
		return domain.User{}, domain.AsError(err)
	}
	return created, nil
}
