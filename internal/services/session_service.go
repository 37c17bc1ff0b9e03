package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	"aicavalli-order-service/internal/auth"
	"aicavalli-order-service/internal/cache"
	"aicavalli-order-service/internal/domain"
	"aicavalli-order-service/internal/queue"
	"aicavalli-order-service/internal/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CheckInInput struct {
	Name      string `json:"name" validate:"required,max=80"`
	Phone     string `json:"phone" validate:"required,len=10,numeric"`
	TableName string `json:"tableName" validate:"required,max=40"`
	NumGuests int    `json:"numGuests" validate:"gte=0,lte=50"`
}

type CheckInResult struct {
	User         domain.User         `json:"user"`
	Session      domain.GuestSession `json:"session"`
	Resumed      bool                `json:"resumed"`
	Token        string              `json:"token"`
	ExpiresAt    time.Time           `json:"expiresAt"`
	SessionToken string              `json:"sessionToken"`
}

type RequestBillResult struct {
	Session domain.GuestSession `json:"session"`
	// Alerted is false when an earlier request inside the cooldown already alerted staff.
	Alerted bool `json:"alerted"`
}

type SessionService struct {
	sessions      SessionStore
	locker        cache.Locker
	effects       sideEffects
	logger        *zap.Logger
	now           func() time.Time
	jwtSecret     string
	tokenTTL      time.Duration
	sessionSecret string
	cooldown      time.Duration
}

type SessionServiceConfig struct {
	Sessions      SessionStore
	Locker        cache.Locker
	Events        EventPublisher
	Logger        *zap.Logger
	Now           func() time.Time
	JWTSecret     string
	TokenTTL      time.Duration
	SessionSecret string
	Cooldown      time.Duration
}

func NewSessionService(cfg SessionServiceConfig) *SessionService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	locker := cfg.Locker
	if locker == nil {
		locker = cache.NewMemoryLocker()
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &SessionService{
		sessions:      cfg.Sessions,
		locker:        locker,
		effects:       sideEffects{events: cfg.Events, logger: logger},
		logger:        logger,
		now:           clock(cfg.Now),
		jwtSecret:     cfg.JWTSecret,
		tokenTTL:      ttl,
		sessionSecret: cfg.SessionSecret,
		cooldown:      cfg.Cooldown,
	}
}

// CheckIn creates or resumes the active session for a guest phone and issues the tokens
// the guest orders with.
func (s *SessionService) CheckIn(ctx context.Context, in CheckInInput) (CheckInResult, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.TableName = strings.TrimSpace(in.TableName)
	in.Phone = normalizePhone(in.Phone)
	if err := validateInput(in); err != nil {
		return CheckInResult{}, err
	}
	if in.NumGuests == 0 {
		in.NumGuests = 1
	}

	user, session, resumed, err := s.sessions.CheckIn(ctx, domain.CheckInRecord{
		Name:      in.Name,
		Phone:     in.Phone,
		TableName: in.TableName,
		NumGuests: in.NumGuests,
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return CheckInResult{}, domain.ConflictError("Phone belongs to a staff account")
		}
		return CheckInResult{}, domain.AsError(err)
	}

	sessionID := session.ID
	token, expiresAt, err := auth.IssueAccessToken(s.jwtSecret, user, &sessionID, s.tokenTTL, s.now())
	if err != nil {
		return CheckInResult{}, domain.InternalError(err)
	}
	if resumed {
		s.logger.Info("guest session resumed", zap.String("sessionId", session.ID.String()), zap.String("table", session.TableName))
	}
	return CheckInResult{
		User:         user,
		Session:      session,
		Resumed:      resumed,
		Token:        token,
		ExpiresAt:    expiresAt,
		SessionToken: utils.CreateGuestSessionToken(s.sessionSecret, session.ID, user.ID),
	}, nil
}

// Get returns a session with its orders and running totals to its guest or kitchen staff.
func (s *SessionService) Get(ctx context.Context, actor *domain.Actor, id uuid.UUID) (domain.SessionSummary, error) {
	if err := requireActor(actor); err != nil {
		return domain.SessionSummary{}, err
	}
	session, err := s.sessions.GetSession(ctx, id)
	if err != nil {
		return domain.SessionSummary{}, storeError(err, "Session not found")
	}
	if !canView(actor, session.UserID) {
		return domain.SessionSummary{}, domain.NotFoundError("Session not found")
	}
	return summarizeSession(ctx, s.sessions, session)
}

// Summary is Get without access checks, for realtime pushes to already authorized sockets.
func (s *SessionService) Summary(ctx context.Context, id uuid.UUID) (domain.SessionSummary, error) {
	session, err := s.sessions.GetSession(ctx, id)
	if err != nil {
		return domain.SessionSummary{}, storeError(err, "Session not found")
	}
	return summarizeSession(ctx, s.sessions, session)
}

func (s *SessionService) ActiveForUser(ctx context.Context, actor *domain.Actor) (domain.SessionSummary, error) {
	if err := requireActor(actor); err != nil {
		return domain.SessionSummary{}, err
	}
	session, err := s.sessions.ActiveSessionForUser(ctx, actor.UserID)
	if err != nil {
		return domain.SessionSummary{}, storeError(err, "No active session")
	}
	return summarizeSession(ctx, s.sessions, session)
}

// RequestBill notifies staff that a guest wants to pay. It never creates a bill.
func (s *SessionService) RequestBill(ctx context.Context, actor *domain.Actor, sessionID uuid.UUID) (RequestBillResult, error) {
	if err := requireActor(actor); err != nil {
		return RequestBillResult{}, err
	}
	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return RequestBillResult{}, storeError(err, "Session not found")
	}
	if session.UserID != actor.UserID {
		return RequestBillResult{}, domain.NotFoundError("Session not found")
	}
	if !session.IsActive() {
		return RequestBillResult{}, domain.StateError(domain.ErrCodeSessionEnded, "Session has ended", nil)
	}

	if s.cooldown > 0 {
		token, err := s.locker.Acquire(ctx, "bill-request:"+session.ID.String(), s.cooldown)
		if err != nil {
			s.effects.failed("cooldown", err, zap.String("sessionId", session.ID.String()))
		} else if token == "" {
			return RequestBillResult{Session: session, Alerted: false}, nil
		}
	}

	updated, err := s.sessions.MarkBillRequested(ctx, session.ID, s.now())
	if err != nil {
		if errors.Is(err, domain.ErrStaleWrite) {
			return RequestBillResult{}, domain.StateError(domain.ErrCodeSessionEnded, "Session has ended", nil)
		}
		return RequestBillResult{}, storeError(err, "Session not found")
	}
	requestedAt := s.now()
	if updated.BillRequestedAt != nil {
		requestedAt = *updated.BillRequestedAt
	}
	s.effects.publish(ctx, queue.RKBillRequested, queue.BillRequestedEvent{
		Type:        queue.RKBillRequested,
		SessionID:   updated.ID,
		UserID:      updated.UserID,
		GuestName:   updated.GuestName,
		TableName:   updated.TableName,
		RequestedAt: requestedAt,
	})
	return RequestBillResult{Session: updated, Alerted: true}, nil
}

// summarizeSession computes order count and amount owed over non-cancelled orders. Ended
// sessions keep the total snapshotted when their bill was written.
func summarizeSession(ctx context.Context, store SessionStore, session domain.GuestSession) (domain.SessionSummary, error) {
	orders, err := store.OrdersForSession(ctx, session.ID)
	if err != nil {
		return domain.SessionSummary{}, domain.AsError(err)
	}
	domain.SortOrdersByCreated(orders)
	count := 0
	for _, o := range orders {
		if o.Status != domain.StatusCancelled {
			count++
		}
	}
	summary := domain.SessionSummary{GuestSession: session, OrderCount: count, Orders: orders, AmountOwed: decimal.Zero}
	if session.IsActive() {
		unbilled := make([]domain.Order, 0, len(orders))
		for _, o := range orders {
			if !o.Billed {
				unbilled = append(unbilled, o)
			}
		}
		summary.AmountOwed = domain.AmountOwed(unbilled, session.DiscountAmount)
		summary.TotalAmount = summary.AmountOwed
	}
	return summary, nil
}

func normalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) == 12 && strings.HasPrefix(digits, "91") {
		digits = digits[2:]
	}
	return digits
}
