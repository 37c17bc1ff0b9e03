package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"aicavalli-order-service/internal/domain"
	"aicavalli-order-service/internal/metrics"
	"aicavalli-order-service/internal/queue"
	"aicavalli-order-service/internal/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	LocationDineIn   = "dine_in"
	LocationTakeaway = "takeaway"
	LocationDelivery = "delivery"
)

type CreateOrderInput struct {
	UserID       uuid.UUID            `json:"userId" validate:"required"`
	TableName    string               `json:"tableName" validate:"required,max=40"`
	Items        []domain.LineRequest `json:"items" validate:"max=50,dive"`
	StaffMeal    bool                 `json:"staffMeal"`
	NumGuests    int                  `json:"numGuests" validate:"gte=0,lte=50"`
	LocationType string               `json:"locationType" validate:"omitempty,oneof=dine_in takeaway delivery"`
	Notes        string               `json:"notes" validate:"max=500"`
	SessionID    *uuid.UUID           `json:"sessionId"`
	SessionToken string               `json:"sessionToken"`
}

type CustomerEditInput struct {
	Items []domain.LineRequest `json:"items" validate:"required,min=1,max=50,dive"`
}

type OrderService struct {
	orders        OrderStore
	menu          MenuStore
	sessions      SessionStore
	users         UserStore
	effects       sideEffects
	logger        *zap.Logger
	now           func() time.Time
	editWindow    time.Duration
	sessionSecret string
}

type OrderServiceConfig struct {
	Orders        OrderStore
	Menu          MenuStore
	Sessions      SessionStore
	Users         UserStore
	Events        EventPublisher
	Logger        *zap.Logger
	Now           func() time.Time
	EditWindow    time.Duration
	SessionSecret string
}

func NewOrderService(cfg OrderServiceConfig) *OrderService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	window := cfg.EditWindow
	if window <= 0 {
		window = 2 * time.Minute
	}
	return &OrderService{
		orders:        cfg.Orders,
		menu:          cfg.Menu,
		sessions:      cfg.Sessions,
		users:         cfg.Users,
		effects:       sideEffects{events: cfg.Events, logger: logger},
		logger:        logger,
		now:           clock(cfg.Now),
		editWindow:    window,
		sessionSecret: cfg.SessionSecret,
	}
}

// CreateOrder validates, authorizes and prices an order, then writes it with its items
// atomically. Nothing is written when any check fails.
func (s *OrderService) CreateOrder(ctx context.Context, actor *domain.Actor, in CreateOrderInput) (domain.Order, error) {
	in.TableName = strings.TrimSpace(in.TableName)
	in.Notes = strings.TrimSpace(in.Notes)
	if err := validateInput(in); err != nil {
		return domain.Order{}, err
	}
	if in.StaffMeal && len(in.Items) > 0 {
		return domain.Order{}, domain.ValidationError("Staff meal orders carry no items", nil)
	}
	if !in.StaffMeal && len(in.Items) == 0 {
		return domain.Order{}, domain.ValidationError("At least one item is required", nil)
	}

	if !s.authorizedFor(actor, in) {
		return domain.Order{}, domain.UnauthorizedError("Not allowed to order for this user")
	}

	user, err := s.users.GetUser(ctx, in.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return domain.Order{}, domain.UnauthorizedError("Unknown user")
		}
		return domain.Order{}, domain.AsError(err)
	}
	if in.StaffMeal && user.Role != domain.RoleStaff {
		return domain.Order{}, domain.ForbiddenError("Only staff can order a staff meal")
	}

	sessionID, err := s.resolveSession(ctx, user, in.SessionID)
	if err != nil {
		return domain.Order{}, err
	}

	order := domain.Order{
		ID:           uuid.New(),
		UserID:       user.ID,
		SessionID:    sessionID,
		TableName:    in.TableName,
		LocationType: in.LocationType,
		NumGuests:    in.NumGuests,
		Status:       domain.StatusPending,
		Notes:        in.Notes,
	}
	if order.LocationType == "" {
		order.LocationType = LocationDineIn
	}
	if order.NumGuests == 0 {
		order.NumGuests = 1
	}

	if in.StaffMeal {
		order.Notes = domain.StaffMealNote
		order.Items = []domain.OrderItem{}
	} else {
		items, total, err := s.price(ctx, in.Items)
		if err != nil {
			return domain.Order{}, err
		}
		for i := range items {
			items[i].ID = uuid.New()
			items[i].OrderID = order.ID
		}
		order.Items = items
		order.Total = total
	}

	created, err := s.orders.CreateOrder(ctx, order)
	if err != nil {
		if errors.Is(err, domain.ErrStaleWrite) {
			return domain.Order{}, domain.StateError(domain.ErrCodeSessionEnded, "Session has ended", nil)
		}
		return domain.Order{}, domain.AsError(err)
	}

	kind := "items"
	if created.IsStaffMeal() {
		kind = "staff_meal"
	}
	metrics.OrdersCreated.WithLabelValues(kind).Inc()
	s.effects.publish(ctx, queue.RKOrderCreated, queue.OrderCreatedEvent{
		Type:      queue.RKOrderCreated,
		OrderID:   created.ID,
		UserID:    created.UserID,
		SessionID: created.SessionID,
		TableName: created.TableName,
		StaffMeal: created.IsStaffMeal(),
		Total:     created.Total.StringFixed(2),
		CreatedAt: created.CreatedAt,
	})
	return created, nil
}

// authorizedFor accepts the bearer identity of the ordering user, or a guest session
// proof binding the named session to that user.
func (s *OrderService) authorizedFor(actor *domain.Actor, in CreateOrderInput) bool {
	if actor != nil && actor.UserID == in.UserID {
		return true
	}
	if in.SessionID == nil || in.SessionToken == "" {
		return false
	}
	return utils.VerifyGuestSessionToken(s.sessionSecret, in.SessionToken, *in.SessionID, in.UserID)
}

func (s *OrderService) resolveSession(ctx context.Context, user domain.User, requested *uuid.UUID) (*uuid.UUID, error) {
	if requested != nil {
		session, err := s.sessions.GetSession(ctx, *requested)
		if err != nil {
			return nil, storeError(err, "Session not found")
		}
		if session.UserID != user.ID {
			return nil, domain.ForbiddenError("Session belongs to another user")
		}
		if !session.IsActive() {
			return nil, domain.StateError(domain.ErrCodeSessionEnded, "Session has ended", nil)
		}
		id := session.ID
		return &id, nil
	}
	if !user.Role.IsGuest() {
		return nil, nil
	}
	session, err := s.sessions.ActiveSessionForUser(ctx, user.ID)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, domain.AsError(err)
	}
	id := session.ID
	return &id, nil
}

func (s *OrderService) price(ctx context.Context, lines []domain.LineRequest) ([]domain.OrderItem, decimal.Decimal, error) {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.MenuItemID)
	}
	menu, err := s.menu.MenuItemsByIDs(ctx, ids)
	if err != nil {
		return nil, decimal.Zero, domain.AsError(err)
	}
	return domain.PriceLines(menu, lines)
}

// Get returns one order to its owner or to kitchen staff.
func (s *OrderService) Get(ctx context.Context, actor *domain.Actor, id uuid.UUID) (domain.Order, error) {
	if err := requireActor(actor); err != nil {
		return domain.Order{}, err
	}
	order, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		return domain.Order{}, storeError(err, "Order not found")
	}
	if !canView(actor, order.UserID) {
		return domain.Order{}, domain.NotFoundError("Order not found")
	}
	return order, nil
}

func (s *OrderService) ListMine(ctx context.Context, actor *domain.Actor, limit int) ([]domain.Order, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	orders, err := s.orders.ListOrdersByUser(ctx, actor.UserID, clampLimit(limit, 20, 100))
	if err != nil {
		return nil, domain.AsError(err)
	}
	return orders, nil
}

// CustomerEdit replaces the lines of the caller's most recent order while it is pending
// and inside the edit window.
func (s *OrderService) CustomerEdit(ctx context.Context, actor *domain.Actor, orderID uuid.UUID, in CustomerEditInput) (domain.Order, error) {
	if err := requireActor(actor); err != nil {
		return domain.Order{}, err
	}
	if err := validateInput(in); err != nil {
		return domain.Order{}, err
	}
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, storeError(err, "Order not found")
	}
	if order.UserID != actor.UserID {
		return domain.Order{}, domain.NotFoundError("Order not found")
	}
	if order.IsStaffMeal() {
		return domain.Order{}, domain.ValidationError("Staff meal orders carry no items", nil)
	}
	if order.Status != domain.StatusPending || order.Billed {
		return domain.Order{}, domain.StateError(domain.ErrCodeOrderLocked, "Order is already being prepared", map[string]any{"status": order.Status})
	}
	if s.now().Sub(order.CreatedAt) > s.editWindow {
		return domain.Order{}, domain.StateError(domain.ErrCodeEditWindowExpired, "Edit window has expired", nil)
	}
	latest, err := s.orders.ListOrdersByUser(ctx, actor.UserID, 1)
	if err != nil {
		return domain.Order{}, domain.AsError(err)
	}
	if len(latest) == 0 || latest[0].ID != order.ID {
		return domain.Order{}, domain.StateError(domain.ErrCodeEditWindowExpired, "Only your most recent order can be edited", nil)
	}

	items, total, err := s.price(ctx, in.Items)
	if err != nil {
		return domain.Order{}, err
	}
	for i := range items {
		items[i].ID = uuid.New()
		items[i].OrderID = order.ID
	}
	updated, err := s.orders.SaveOrderEdit(ctx, domain.OrderEdit{
		OrderID:         order.ID,
		ExpectStatus:    domain.StatusPending,
		Items:           items,
		Total:           total,
		DiscountPercent: order.DiscountPercent,
		DiscountAmount:  domain.PercentOf(total, order.DiscountPercent),
	})
	if err != nil {
		if errors.Is(err, domain.ErrStaleWrite) {
			return domain.Order{}, domain.StateError(domain.ErrCodeOrderLocked, "Order is already being prepared", nil)
		}
		return domain.Order{}, domain.AsError(err)
	}
	return updated, nil
}
