package services

import (
	"context"
	"errors"
	"strconv"
	"time"

	"aicavalli-order-service/internal/auth"
	"aicavalli-order-service/internal/domain"
	"aicavalli-order-service/internal/metrics"
	"aicavalli-order-service/internal/queue"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BoardOrder is an active order as the kitchen board shows it.
type BoardOrder struct {
	domain.Order
	IsStaffMeal bool `json:"isStaffMeal"`
}

type ItemChange struct {
	ItemID   uuid.UUID `json:"itemId" validate:"required"`
	Quantity int       `json:"quantity" validate:"gte=0,lte=99"`
}

// KitchenEditInput changes existing lines (quantity 0 removes a line) and appends new ones.
type KitchenEditInput struct {
	Changes []ItemChange         `json:"changes" validate:"max=50,dive"`
	Add     []domain.LineRequest `json:"add" validate:"max=50,dive"`
}

type KitchenService struct {
	orders   OrderStore
	menu     MenuStore
	sessions SessionStore
	effects  sideEffects
	logger   *zap.Logger
	now      func() time.Time
}

func NewKitchenService(orders OrderStore, menu MenuStore, sessions SessionStore, events EventPublisher, logger *zap.Logger, now func() time.Time) *KitchenService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KitchenService{
		orders:   orders,
		menu:     menu,
		sessions: sessions,
		effects:  sideEffects{events: events, logger: logger},
		logger:   logger,
		now:      clock(now),
	}
}

// ActiveBoard lists pending, preparing and ready orders oldest first.
func (s *KitchenService) ActiveBoard(ctx context.Context, actor *domain.Actor) ([]BoardOrder, error) {
	if err := requireCapability(actor, auth.CapKitchenManage); err != nil {
		return nil, err
	}
	return s.Board(ctx)
}

// Board is ActiveBoard without the capability check, for callers that authorized already.
func (s *KitchenService) Board(ctx context.Context) ([]BoardOrder, error) {
	orders, err := s.orders.ActiveOrders(ctx)
	if err != nil {
		return nil, domain.AsError(err)
	}
	domain.SortOrdersByCreated(orders)
	board := make([]BoardOrder, 0, len(orders))
	for _, o := range orders {
		if !o.Status.IsActive() {
			continue
		}
		board = append(board, BoardOrder{Order: o, IsStaffMeal: o.IsStaffMeal()})
	}
	return board, nil
}

// UpdateStatus moves an order forward. Re-applying the current status is a no-op; a move
// that skips steps is accepted and logged.
func (s *KitchenService) UpdateStatus(ctx context.Context, actor *domain.Actor, orderID uuid.UUID, target string) (domain.Order, error) {
	if err := requireCapability(actor, auth.CapKitchenManage); err != nil {
		return domain.Order{}, err
	}
	next, ok := domain.ParseOrderStatus(target)
	if !ok {
		return domain.Order{}, domain.ValidationError("Unknown order status", map[string]any{"status": target})
	}
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, storeError(err, "Order not found")
	}
	current := order.Status
	if current == next {
		return order, nil
	}
	if !domain.IsValidTransition(current, next) {
		return domain.Order{}, domain.StateError(domain.ErrCodeInvalidTransition,
			"Cannot move order from "+string(current)+" to "+string(next),
			map[string]any{"from": current, "to": next})
	}

	skipped := domain.IsSkippedStep(current, next)
	if skipped {
		s.logger.Warn("order status skipped a step",
			zap.String("orderId", order.ID.String()),
			zap.String("from", string(current)),
			zap.String("to", string(next)),
			zap.String("actor", actor.UserID.String()),
		)
	}

	updated, err := s.orders.UpdateOrderStatus(ctx, order.ID, current, next)
	if err != nil {
		if errors.Is(err, domain.ErrStaleWrite) {
			return domain.Order{}, domain.ConflictError("Order changed while updating, reload and retry")
		}
		return domain.Order{}, storeError(err, "Order not found")
	}

	metrics.OrderTransitions.WithLabelValues(string(next), strconv.FormatBool(skipped)).Inc()
	s.effects.publish(ctx, queue.RKOrderStatusUpdated, queue.OrderStatusUpdatedEvent{
		Type:      queue.RKOrderStatusUpdated,
		OrderID:   updated.ID,
		UserID:    updated.UserID,
		TableName: updated.TableName,
		From:      string(current),
		Status:    string(next),
		UpdatedAt: updated.UpdatedAt,
	})
	return updated, nil
}

// EditItems changes quantities, removes lines and appends priced lines on an open order.
func (s *KitchenService) EditItems(ctx context.Context, actor *domain.Actor, orderID uuid.UUID, in KitchenEditInput) (domain.Order, error) {
	if err := requireCapability(actor, auth.CapKitchenManage); err != nil {
		return domain.Order{}, err
	}
	if err := validateInput(in); err != nil {
		return domain.Order{}, err
	}
	if len(in.Changes) == 0 && len(in.Add) == 0 {
		return domain.Order{}, domain.ValidationError("Nothing to change", nil)
	}
	order, err := s.editableOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.IsStaffMeal() {
		return domain.Order{}, domain.ValidationError("Staff meal orders carry no items", nil)
	}

	changes := make(map[uuid.UUID]int, len(in.Changes))
	for _, c := range in.Changes {
		changes[c.ItemID] = c.Quantity
	}
	items := make([]domain.OrderItem, 0, len(order.Items)+len(in.Add))
	for _, item := range order.Items {
		qty, changed := changes[item.ID]
		if !changed {
			items = append(items, item)
			continue
		}
		delete(changes, item.ID)
		if qty == 0 {
			continue
		}
		item.Quantity = qty
		items = append(items, item)
	}
	if len(changes) > 0 {
		missing := make([]string, 0, len(changes))
		for id := range changes {
			missing = append(missing, id.String())
		}
		notFound := domain.NotFoundError("Order item not found")
		notFound.Details = map[string]any{"itemIds": missing}
		return domain.Order{}, notFound
	}

	if len(in.Add) > 0 {
		ids := make([]uuid.UUID, 0, len(in.Add))
		for _, line := range in.Add {
			ids = append(ids, line.MenuItemID)
		}
		menu, err := s.menu.MenuItemsByIDs(ctx, ids)
		if err != nil {
			return domain.Order{}, domain.AsError(err)
		}
		added, _, err := domain.PriceLines(menu, in.Add)
		if err != nil {
			return domain.Order{}, err
		}
		for _, item := range added {
			item.ID = uuid.New()
			item.OrderID = order.ID
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return domain.Order{}, domain.ValidationError("An order cannot be left empty; cancel it instead", nil)
	}

	total := domain.ItemsTotal(items)
	return s.save(ctx, domain.OrderEdit{
		OrderID:         order.ID,
		ExpectStatus:    order.Status,
		Items:           items,
		Total:           total,
		DiscountPercent: order.DiscountPercent,
		DiscountAmount:  domain.PercentOf(total, order.DiscountPercent),
	})
}

// ApplyDiscount sets a whole-order percentage discount.
func (s *KitchenService) ApplyDiscount(ctx context.Context, actor *domain.Actor, orderID uuid.UUID, percent decimal.Decimal) (domain.Order, error) {
	if err := requireCapability(actor, auth.CapKitchenManage); err != nil {
		return domain.Order{}, err
	}
	if !domain.ValidDiscountPercent(percent) {
		return domain.Order{}, domain.ValidationError("Discount must be between 0 and 100 percent", nil)
	}
	order, err := s.editableOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	total := domain.ItemsTotal(order.Items)
	return s.save(ctx, domain.OrderEdit{
		OrderID:         order.ID,
		ExpectStatus:    order.Status,
		Items:           order.Items,
		Total:           total,
		DiscountPercent: percent.Round(2),
		DiscountAmount:  domain.PercentOf(total, percent),
	})
}

// ActiveSessions lists open guest sessions with their running totals.
func (s *KitchenService) ActiveSessions(ctx context.Context, actor *domain.Actor) ([]domain.SessionSummary, error) {
	if err := requireCapability(actor, auth.CapKitchenManage); err != nil {
		return nil, err
	}
	sessions, err := s.sessions.ListActiveSessions(ctx)
	if err != nil {
		return nil, domain.AsError(err)
	}
	out := make([]domain.SessionSummary, 0, len(sessions))
	for _, session := range sessions {
		summary, err := summarizeSession(ctx, s.sessions, session)
		if err != nil {
			return nil, err
		}
		out = append(out, summary)
	}
	return out, nil
}

func (s *KitchenService) editableOrder(ctx context.Context, orderID uuid.UUID) (domain.Order, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, storeError(err, "Order not found")
	}
	if order.Status.IsTerminal() || order.Billed {
		return domain.Order{}, domain.StateError(domain.ErrCodeOrderLocked, "Order can no longer be changed", map[string]any{"status": order.Status, "billed": order.Billed})
	}
	return order, nil
}

func (s *KitchenService) save(ctx context.Context, edit domain.OrderEdit) (domain.Order, error) {
	updated, err := s.orders.SaveOrderEdit(ctx, edit)
	if err != nil {
		if errors.Is(err, domain.ErrStaleWrite) {
			return domain.Order{}, domain.ConflictError("Order changed while editing, reload and retry")
		}
		return domain.Order{}, storeError(err, "Order not found")
	}
	return updated, nil
}
