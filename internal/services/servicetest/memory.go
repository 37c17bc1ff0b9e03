// Package servicetest provides an in-memory store with the same guards as the Postgres
// store, for service and handler tests.
package servicetest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"aicavalli-order-service/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Memory struct {
	mu sync.Mutex

	users         map[uuid.UUID]domain.User
	categories    []domain.Category
	menu          map[uuid.UUID]domain.MenuItem
	specials      []domain.DailySpecial
	announcements []domain.Announcement
	sessions      map[uuid.UUID]domain.GuestSession
	orders        map[uuid.UUID]domain.Order
	bills         map[uuid.UUID]domain.Bill
	billOrders    map[uuid.UUID]uuid.UUID
	billSeq       int

	Now func() time.Time
	// BeforeClaim runs inside CreateBill before orders are claimed, to simulate a
	// concurrent writer.
	BeforeClaim func()
}

func NewMemory() *Memory {
	return &Memory{
		users:      map[uuid.UUID]domain.User{},
		menu:       map[uuid.UUID]domain.MenuItem{},
		sessions:   map[uuid.UUID]domain.GuestSession{},
		orders:     map[uuid.UUID]domain.Order{},
		bills:      map[uuid.UUID]domain.Bill{},
		billOrders: map[uuid.UUID]uuid.UUID{},
	}
}

func (m *Memory) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// AddUser seeds a user and returns it.
func (m *Memory) AddUser(name, phone string, role domain.Role) domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := domain.User{ID: uuid.New(), Name: name, Phone: phone, Role: role, CreatedAt: m.now()}
	m.users[u.ID] = u
	return u
}

// AddMenuItem seeds a menu item and returns it.
func (m *Memory) AddMenuItem(name string, price string, available bool) domain.MenuItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	item := domain.MenuItem{
		ID:        uuid.New(),
		Name:      name,
		Price:     decimal.RequireFromString(price),
		Available: available,
		CreatedAt: m.now(),
		UpdatedAt: m.now(),
	}
	m.menu[item.ID] = item
	return item
}

// SetSessionDiscount sets the session-level discount.
func (m *Memory) SetSessionDiscount(id uuid.UUID, amount string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sessions[id]
	s.DiscountAmount = decimal.RequireFromString(amount)
	m.sessions[id] = s
}

// ForceBilled flips billed on an order as a concurrent bill writer would.
func (m *Memory) ForceBilled(orderID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.orders[orderID]
	o.Billed = true
	m.orders[orderID] = o
}

func (m *Memory) OrderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *Memory) BillCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bills)
}

func copyOrder(o domain.Order) domain.Order {
	o.Items = append([]domain.OrderItem(nil), o.Items...)
	return o
}

func (m *Memory) withUser(o domain.Order) domain.Order {
	o = copyOrder(o)
	if u, ok := m.users[o.UserID]; ok {
		o.UserName = u.Name
		o.UserRole = u.Role
	}
	return o
}

// Users

func (m *Memory) GetUser(_ context.Context, id uuid.UUID) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.User{}, domain.ErrRecordNotFound
	}
	return u, nil
}

func (m *Memory) FindInternalUserByPhone(_ context.Context, phone string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Phone == phone && u.Role != domain.RoleGuest {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrRecordNotFound
}

func (m *Memory) CreateUser(_ context.Context, user domain.User) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Phone == user.Phone && (u.Role == domain.RoleGuest) == (user.Role == domain.RoleGuest) {
			return domain.User{}, domain.ErrDuplicate
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = m.now()
	}
	m.users[user.ID] = user
	return user, nil
}

func (m *Memory) UserEmail(_ context.Context, id uuid.UUID) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return "", domain.ErrRecordNotFound
	}
	if u.Email == nil {
		return "", nil
	}
	return *u.Email, nil
}

// Menu

func (m *Memory) MenuItemsByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[uuid.UUID]domain.MenuItem, len(ids))
	for _, id := range ids {
		if item, ok := m.menu[id]; ok {
			out[id] = item
		}
	}
	return out, nil
}

func (m *Memory) ListMenu(_ context.Context, onlyAvailable bool) ([]domain.Category, []domain.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]domain.MenuItem, 0, len(m.menu))
	for _, item := range m.menu {
		if onlyAvailable && !item.Available {
			continue
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return append([]domain.Category(nil), m.categories...), items, nil
}

func (m *Memory) GetMenuItem(_ context.Context, id uuid.UUID) (domain.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.menu[id]
	if !ok {
		return domain.MenuItem{}, domain.ErrRecordNotFound
	}
	return item, nil
}

func (m *Memory) CreateMenuItem(_ context.Context, item domain.MenuItem) (domain.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item.CreatedAt = m.now()
	item.UpdatedAt = item.CreatedAt
	m.menu[item.ID] = item
	return item, nil
}

func (m *Memory) UpdateMenuItem(_ context.Context, item domain.MenuItem) (domain.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.menu[item.ID]; !ok {
		return domain.MenuItem{}, domain.ErrRecordNotFound
	}
	item.UpdatedAt = m.now()
	m.menu[item.ID] = item
	return item, nil
}

func (m *Memory) SetMenuItemAvailability(_ context.Context, id uuid.UUID, available bool) (domain.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.menu[id]
	if !ok {
		return domain.MenuItem{}, domain.ErrRecordNotFound
	}
	item.Available = available
	item.UpdatedAt = m.now()
	m.menu[id] = item
	return item, nil
}

func (m *Memory) SetMenuItemImage(_ context.Context, id uuid.UUID, imageURL, thumbURL string) (domain.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.menu[id]
	if !ok {
		return domain.MenuItem{}, domain.ErrRecordNotFound
	}
	item.ImageURL = &imageURL
	item.ImageThumbURL = &thumbURL
	item.UpdatedAt = m.now()
	m.menu[id] = item
	return item, nil
}

func (m *Memory) CreateCategory(_ context.Context, category domain.Category) (domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories = append(m.categories, category)
	return category, nil
}

// Content

func (m *Memory) SpecialsForDate(_ context.Context, date string) ([]domain.DailySpecial, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.DailySpecial{}
	for _, s := range m.specials {
		if s.Date != date {
			continue
		}
		if item, ok := m.menu[s.MenuItemID]; ok {
			s.Item = &item
		}
		out = append(out, s)
	}
	return out, nil
}

func (m *Memory) CreateSpecial(_ context.Context, special domain.DailySpecial) (domain.DailySpecial, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.specials = append(m.specials, special)
	return special, nil
}

func (m *Memory) ListAnnouncements(_ context.Context, activeOnly bool) ([]domain.Announcement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Announcement{}
	for _, a := range m.announcements {
		if activeOnly && !a.Active {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (m *Memory) CreateAnnouncement(_ context.Context, announcement domain.Announcement) (domain.Announcement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.announcements = append(m.announcements, announcement)
	return announcement, nil
}

// Orders

func (m *Memory) CreateOrder(_ context.Context, order domain.Order) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if order.SessionID != nil {
		s, ok := m.sessions[*order.SessionID]
		if !ok || !s.IsActive() {
			return domain.Order{}, domain.ErrStaleWrite
		}
	}
	order.CreatedAt = m.now()
	order.UpdatedAt = order.CreatedAt
	m.orders[order.ID] = copyOrder(order)
	return m.withUser(order), nil
}

func (m *Memory) GetOrder(_ context.Context, id uuid.UUID) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrRecordNotFound
	}
	return m.withUser(o), nil
}

func (m *Memory) ListOrdersByUser(_ context.Context, userID uuid.UUID, limit int) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Order{}
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, m.withUser(o))
		}
	}
	domain.SortOrdersByCreated(out)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) ActiveOrders(_ context.Context) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Order{}
	for _, o := range m.orders {
		if o.Status.IsActive() {
			out = append(out, m.withUser(o))
		}
	}
	domain.SortOrdersByCreated(out)
	return out, nil
}

func (m *Memory) UpdateOrderStatus(_ context.Context, id uuid.UUID, from, to domain.OrderStatus) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrRecordNotFound
	}
	if o.Status != from {
		return domain.Order{}, domain.ErrStaleWrite
	}
	o.Status = to
	o.UpdatedAt = m.now()
	m.orders[id] = o
	return m.withUser(o), nil
}

func (m *Memory) SaveOrderEdit(_ context.Context, edit domain.OrderEdit) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[edit.OrderID]
	if !ok {
		return domain.Order{}, domain.ErrRecordNotFound
	}
	if o.Status != edit.ExpectStatus || o.Billed {
		return domain.Order{}, domain.ErrStaleWrite
	}
	o.Items = append([]domain.OrderItem(nil), edit.Items...)
	o.Total = edit.Total
	o.DiscountPercent = edit.DiscountPercent
	o.DiscountAmount = edit.DiscountAmount
	o.UpdatedAt = m.now()
	m.orders[o.ID] = o
	return m.withUser(o), nil
}

// Sessions

func (m *Memory) CheckIn(_ context.Context, record domain.CheckInRecord) (domain.User, domain.GuestSession, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Phone == record.Phone && u.Role != domain.RoleGuest {
			return domain.User{}, domain.GuestSession{}, false, domain.ErrDuplicate
		}
	}
	var user domain.User
	found := false
	for _, u := range m.users {
		if u.Phone == record.Phone && u.Role == domain.RoleGuest {
			user, found = u, true
			break
		}
	}
	if !found {
		user = domain.User{ID: uuid.New(), Name: record.Name, Phone: record.Phone, Role: domain.RoleGuest, CreatedAt: m.now()}
	}
	user.Name = record.Name
	m.users[user.ID] = user

	for id, s := range m.sessions {
		if s.GuestPhone == record.Phone && s.IsActive() {
			s.GuestName = record.Name
			s.TableName = record.TableName
			s.NumGuests = record.NumGuests
			m.sessions[id] = s
			return user, s, true, nil
		}
	}
	s := domain.GuestSession{
		ID:             uuid.New(),
		UserID:         user.ID,
		GuestName:      record.Name,
		GuestPhone:     record.Phone,
		TableName:      record.TableName,
		NumGuests:      record.NumGuests,
		Status:         domain.SessionActive,
		TotalAmount:    decimal.Zero,
		DiscountAmount: decimal.Zero,
		StartedAt:      m.now(),
	}
	m.sessions[s.ID] = s
	return user, s, false, nil
}

func (m *Memory) GetSession(_ context.Context, id uuid.UUID) (domain.GuestSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return domain.GuestSession{}, domain.ErrRecordNotFound
	}
	return s, nil
}

func (m *Memory) ActiveSessionForUser(_ context.Context, userID uuid.UUID) (domain.GuestSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.UserID == userID && s.IsActive() {
			return s, nil
		}
	}
	return domain.GuestSession{}, domain.ErrRecordNotFound
}

func (m *Memory) ListActiveSessions(_ context.Context) ([]domain.GuestSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.GuestSession{}
	for _, s := range m.sessions {
		if s.IsActive() {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

// ActiveSessionsForPhone counts active sessions for a phone.
func (m *Memory) ActiveSessionsForPhone(phone string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sessions {
		if s.GuestPhone == phone && s.IsActive() {
			n++
		}
	}
	return n
}

func (m *Memory) OrdersForSession(_ context.Context, sessionID uuid.UUID) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Order{}
	for _, o := range m.orders {
		if o.SessionID != nil && *o.SessionID == sessionID {
			out = append(out, m.withUser(o))
		}
	}
	domain.SortOrdersByCreated(out)
	return out, nil
}

func (m *Memory) MarkBillRequested(_ context.Context, id uuid.UUID, at time.Time) (domain.GuestSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return domain.GuestSession{}, domain.ErrRecordNotFound
	}
	if !s.IsActive() {
		return domain.GuestSession{}, domain.ErrStaleWrite
	}
	s.BillRequestedAt = &at
	m.sessions[id] = s
	return s, nil
}

// Bills

func (m *Memory) unbilled(match func(domain.Order) bool) []domain.Order {
	out := []domain.Order{}
	for _, o := range m.orders {
		if o.Billed || o.Status == domain.StatusCancelled || !match(o) {
			continue
		}
		out = append(out, m.withUser(o))
	}
	domain.SortOrdersByCreated(out)
	return out
}

func (m *Memory) UnbilledOrdersForSession(_ context.Context, sessionID uuid.UUID) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unbilled(func(o domain.Order) bool { return o.SessionID != nil && *o.SessionID == sessionID }), nil
}

func (m *Memory) UnbilledOrdersForUser(_ context.Context, userID uuid.UUID) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unbilled(func(o domain.Order) bool { return o.UserID == userID }), nil
}

func (m *Memory) CreateBill(_ context.Context, draft domain.BillDraft) (domain.Bill, error) {
	if m.BeforeClaim != nil {
		m.BeforeClaim()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range draft.OrderIDs {
		o, ok := m.orders[id]
		if !ok || o.Billed {
			return domain.Bill{}, domain.ErrScopeChanged
		}
	}
	m.billSeq++
	bill := domain.Bill{
		ID:             uuid.New(),
		BillNumber:     fmt.Sprintf("AC-%s-%05d", draft.NumberDate, m.billSeq),
		SessionID:      draft.SessionID,
		OrderID:        draft.OrderID,
		UserID:         draft.UserID,
		GuestName:      draft.GuestName,
		GuestPhone:     draft.GuestPhone,
		TableName:      draft.TableName,
		ItemsTotal:     draft.Totals.ItemsTotal,
		DiscountAmount: draft.Totals.DiscountAmount,
		FinalTotal:     draft.Totals.FinalTotal,
		PaymentMethod:  draft.PaymentMethod,
		CreatedAt:      m.now(),
		OrderIDs:       append([]uuid.UUID(nil), draft.OrderIDs...),
	}
	for _, item := range draft.Totals.Items {
		item.ID = uuid.New()
		item.BillID = bill.ID
		bill.Items = append(bill.Items, item)
	}
	for _, id := range draft.OrderIDs {
		o := m.orders[id]
		o.Billed = true
		o.UpdatedAt = m.now()
		m.orders[id] = o
		m.billOrders[id] = bill.ID
	}
	if draft.SessionID != nil {
		if s, ok := m.sessions[*draft.SessionID]; ok && s.IsActive() {
			endedAt := draft.EndedAt
			s.Status = domain.SessionEnded
			s.EndedAt = &endedAt
			s.TotalAmount = bill.FinalTotal
			m.sessions[s.ID] = s
		}
	} else {
		m.endConsumedSessions(draft.OrderIDs, draft.EndedAt)
	}
	m.bills[bill.ID] = bill
	return bill, nil
}

func (m *Memory) endConsumedSessions(orderIDs []uuid.UUID, endedAt time.Time) {
	touched := map[uuid.UUID]bool{}
	for _, id := range orderIDs {
		if sid := m.orders[id].SessionID; sid != nil {
			touched[*sid] = true
		}
	}
	for sid := range touched {
		s, ok := m.sessions[sid]
		if !ok || !s.IsActive() {
			continue
		}
		if len(m.unbilled(func(o domain.Order) bool { return o.SessionID != nil && *o.SessionID == sid })) > 0 {
			continue
		}
		ended := endedAt
		s.Status = domain.SessionEnded
		s.EndedAt = &ended
		m.sessions[sid] = s
	}
}

func (m *Memory) latestBill(match func(domain.Bill) bool) (domain.Bill, error) {
	var best *domain.Bill
	for _, b := range m.bills {
		if !match(b) {
			continue
		}
		if best == nil || b.CreatedAt.After(best.CreatedAt) || (b.CreatedAt.Equal(best.CreatedAt) && b.BillNumber > best.BillNumber) {
			bb := b
			best = &bb
		}
	}
	if best == nil {
		return domain.Bill{}, domain.ErrRecordNotFound
	}
	return *best, nil
}

func (m *Memory) FindBillBySession(_ context.Context, sessionID uuid.UUID) (domain.Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latestBill(func(b domain.Bill) bool { return b.SessionID != nil && *b.SessionID == sessionID })
}

func (m *Memory) FindBillByOrderIDs(_ context.Context, orderIDs []uuid.UUID) (domain.Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := map[uuid.UUID]bool{}
	for _, id := range orderIDs {
		if billID, ok := m.billOrders[id]; ok {
			ids[billID] = true
		}
	}
	return m.latestBill(func(b domain.Bill) bool { return ids[b.ID] })
}

func (m *Memory) FindBillForUserOrders(_ context.Context, userID uuid.UUID) (domain.Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := map[uuid.UUID]bool{}
	for orderID, billID := range m.billOrders {
		if m.orders[orderID].UserID == userID {
			ids[billID] = true
		}
	}
	return m.latestBill(func(b domain.Bill) bool { return ids[b.ID] })
}

func (m *Memory) FindBillByPhone(_ context.Context, phone string) (domain.Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latestBill(func(b domain.Bill) bool { return phone != "" && b.GuestPhone == phone })
}

func (m *Memory) GetBill(_ context.Context, id uuid.UUID) (domain.Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bills[id]
	if !ok {
		return domain.Bill{}, domain.ErrRecordNotFound
	}
	return b, nil
}

func (m *Memory) ListBills(_ context.Context, limit int) ([]domain.Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Bill, 0, len(m.bills))
	for _, b := range m.bills {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BillNumber > out[j].BillNumber })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) MarkBillPrinted(_ context.Context, id uuid.UUID, at time.Time) (domain.Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bills[id]
	if !ok {
		return domain.Bill{}, domain.ErrRecordNotFound
	}
	if b.PrintedAt == nil {
		b.PrintedAt = &at
		m.bills[id] = b
	}
	return b, nil
}

// Analytics

func (m *Memory) OrderCountsByStatus(_ context.Context, from, to time.Time) ([]domain.StatusCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[domain.OrderStatus]int{}
	for _, o := range m.orders {
		if !o.CreatedAt.Before(from) && o.CreatedAt.Before(to) {
			counts[o.Status]++
		}
	}
	out := []domain.StatusCount{}
	for _, s := range []domain.OrderStatus{domain.StatusPending, domain.StatusPreparing, domain.StatusReady, domain.StatusCompleted, domain.StatusCancelled} {
		if counts[s] > 0 {
			out = append(out, domain.StatusCount{Status: s, Count: counts[s]})
		}
	}
	return out, nil
}

func (m *Memory) BillAggregate(_ context.Context, from, to time.Time) (domain.BillAggregate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	agg := domain.BillAggregate{Revenue: decimal.Zero, Discounts: decimal.Zero}
	for _, b := range m.bills {
		if b.CreatedAt.Before(from) || !b.CreatedAt.Before(to) {
			continue
		}
		agg.Count++
		agg.Revenue = agg.Revenue.Add(b.FinalTotal)
		agg.Discounts = agg.Discounts.Add(b.DiscountAmount)
	}
	return agg, nil
}

func (m *Memory) TopItems(_ context.Context, from, to time.Time, limit int) ([]domain.TopItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byName := map[string]*domain.TopItem{}
	for _, b := range m.bills {
		if b.CreatedAt.Before(from) || !b.CreatedAt.Before(to) {
			continue
		}
		for _, item := range b.Items {
			t, ok := byName[item.Name]
			if !ok {
				t = &domain.TopItem{Name: item.Name, Revenue: decimal.Zero}
				byName[item.Name] = t
			}
			t.Quantity += item.Quantity
			t.Revenue = t.Revenue.Add(item.Subtotal)
		}
	}
	out := make([]domain.TopItem, 0, len(byName))
	for _, t := range byName {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Quantity == out[j].Quantity {
			return out[i].Name < out[j].Name
		}
		return out[i].Quantity > out[j].Quantity
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
