package services

import (
	"context"
	"errors"
	"time"

	"aicavalli-order-service/internal/auth"
	"aicavalli-order-service/internal/cache"
	"aicavalli-order-service/internal/domain"
	"aicavalli-order-service/internal/metrics"
	"aicavalli-order-service/internal/queue"
	"aicavalli-order-service/internal/receipt"
	"aicavalli-order-service/internal/storage"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type GenerateBillInput struct {
	SessionID     *uuid.UUID           `json:"sessionId"`
	UserID        *uuid.UUID           `json:"userId"`
	PaymentMethod domain.PaymentMethod `json:"paymentMethod"`
}

type BillResult struct {
	domain.Bill
	AlreadyBilled bool `json:"alreadyBilled"`
}

type PrintResult struct {
	Bill       domain.Bill `json:"bill"`
	Text       string      `json:"text"`
	HTML       string      `json:"html"`
	ArchiveURL string      `json:"archiveUrl,omitempty"`
}

type BillingService struct {
	bills        BillStore
	sessions     SessionStore
	users        UserStore
	locker       cache.Locker
	blobs        BlobStore
	effects      sideEffects
	logger       *zap.Logger
	now          func() time.Time
	header       receipt.Header
	receiptWidth int
	lockTTL      time.Duration
}

type BillingServiceConfig struct {
	Bills        BillStore
	Sessions     SessionStore
	Users        UserStore
	Locker       cache.Locker
	Blobs        BlobStore
	Events       EventPublisher
	Logger       *zap.Logger
	Now          func() time.Time
	Header       receipt.Header
	ReceiptWidth int
	LockTTL      time.Duration
}

func NewBillingService(cfg BillingServiceConfig) *BillingService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	locker := cfg.Locker
	if locker == nil {
		locker = cache.NewMemoryLocker()
	}
	ttl := cfg.LockTTL
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	width := cfg.ReceiptWidth
	if width <= 0 {
		width = 42
	}
	header := cfg.Header
	if header.Location == nil {
		header.Location = time.UTC
	}
	return &BillingService{
		bills:        cfg.Bills,
		sessions:     cfg.Sessions,
		users:        cfg.Users,
		locker:       locker,
		blobs:        cfg.Blobs,
		effects:      sideEffects{events: cfg.Events, logger: logger},
		logger:       logger,
		now:          clock(cfg.Now),
		header:       header,
		receiptWidth: width,
		lockTTL:      ttl,
	}
}

// billScope is the resolved target of one billing call.
type billScope struct {
	session *domain.GuestSession
	user    *domain.User
}

func (sc billScope) lockKey() string {
	if sc.session != nil {
		return "bill:session:" + sc.session.ID.String()
	}
	return "bill:user:" + sc.user.ID.String()
}

// Generate snapshots every unbilled order in scope into one bill. Calling it again for a
// scope that has nothing left returns the bill already written with AlreadyBilled set.
func (s *BillingService) Generate(ctx context.Context, actor *domain.Actor, in GenerateBillInput) (BillResult, error) {
	if err := requireCapability(actor, auth.CapBillsManage); err != nil {
		return BillResult{}, err
	}
	if (in.SessionID == nil) == (in.UserID == nil) {
		return BillResult{}, domain.ValidationError("Provide exactly one of sessionId or userId", nil)
	}
	if in.PaymentMethod == "" {
		in.PaymentMethod = domain.PaymentCash
	}
	if !in.PaymentMethod.Valid() {
		return BillResult{}, domain.ValidationError("Unknown payment method", map[string]any{"paymentMethod": in.PaymentMethod})
	}

	scope, err := s.resolveScope(ctx, in)
	if err != nil {
		return BillResult{}, err
	}

	lockToken, err := cache.WaitAcquire(ctx, s.locker, scope.lockKey(), s.lockTTL, s.lockTTL)
	if err != nil {
		return BillResult{}, domain.InternalError(err)
	}
	if lockToken == "" {
		return BillResult{}, domain.ConflictError("Billing already in progress for this table")
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), scope.lockKey(), lockToken); err != nil && !errors.Is(err, cache.ErrNotHeld) {
			s.logger.Warn("billing lock release failed", zap.String("key", scope.lockKey()), zap.Error(err))
		}
	}()

	var orders []domain.Order
	if scope.session != nil {
		orders, err = s.bills.UnbilledOrdersForSession(ctx, scope.session.ID)
	} else {
		orders, err = s.bills.UnbilledOrdersForUser(ctx, scope.user.ID)
	}
	if err != nil {
		return BillResult{}, domain.AsError(err)
	}
	if len(orders) == 0 {
		return s.existingBill(ctx, scope, nil)
	}
	domain.SortOrdersByCreated(orders)

	draft := s.draft(scope, orders, in.PaymentMethod)
	bill, err := s.bills.CreateBill(ctx, draft)
	if err != nil {
		if errors.Is(err, domain.ErrScopeChanged) {
			s.logger.Info("billing scope changed concurrently, returning existing bill", zap.String("scope", scope.lockKey()))
			return s.existingBill(ctx, scope, draft.OrderIDs)
		}
		return BillResult{}, domain.AsError(err)
	}

	metrics.BillsGenerated.WithLabelValues("created").Inc()
	metrics.BillFinalTotal.Observe(decimalFloat(bill.FinalTotal))
	s.effects.publish(ctx, queue.RKBillGenerated, queue.BillGeneratedEvent{
		Type:       queue.RKBillGenerated,
		BillID:     bill.ID,
		BillNumber: bill.BillNumber,
		SessionID:  bill.SessionID,
		UserID:     bill.UserID,
		TableName:  bill.TableName,
		FinalTotal: bill.FinalTotal.StringFixed(2),
		CreatedAt:  bill.CreatedAt,
	})
	return BillResult{Bill: bill}, nil
}

func (s *BillingService) resolveScope(ctx context.Context, in GenerateBillInput) (billScope, error) {
	if in.SessionID != nil {
		session, err := s.sessions.GetSession(ctx, *in.SessionID)
		if err != nil {
			return billScope{}, storeError(err, "Session not found")
		}
		return billScope{session: &session}, nil
	}
	user, err := s.users.GetUser(ctx, *in.UserID)
	if err != nil {
		return billScope{}, storeError(err, "User not found")
	}
	return billScope{user: &user}, nil
}

func (s *BillingService) draft(scope billScope, orders []domain.Order, method domain.PaymentMethod) domain.BillDraft {
	sessionDiscount := decimal.Zero
	draft := domain.BillDraft{
		NumberDate:    s.now().In(s.header.Location).Format("20060102"),
		PaymentMethod: method,
		EndedAt:       s.now(),
		OrderIDs:      make([]uuid.UUID, 0, len(orders)),
	}
	if scope.session != nil {
		sessionID := scope.session.ID
		userID := scope.session.UserID
		draft.SessionID = &sessionID
		draft.UserID = &userID
		draft.GuestName = scope.session.GuestName
		draft.GuestPhone = scope.session.GuestPhone
		draft.TableName = scope.session.TableName
		sessionDiscount = scope.session.DiscountAmount
	} else {
		userID := scope.user.ID
		draft.UserID = &userID
		draft.GuestName = scope.user.Name
		draft.GuestPhone = scope.user.Phone
	}
	for _, o := range orders {
		draft.OrderIDs = append(draft.OrderIDs, o.ID)
	}
	if len(orders) == 1 {
		orderID := orders[0].ID
		draft.OrderID = &orderID
	}
	if draft.TableName == "" {
		draft.TableName = orders[len(orders)-1].TableName
	}
	draft.Totals = domain.ComputeBill(orders, sessionDiscount)
	return draft
}

// existingBill is the read path: by session, then by source order membership, then by
// guest phone. No match means there was never anything to bill.
func (s *BillingService) existingBill(ctx context.Context, scope billScope, orderIDs []uuid.UUID) (BillResult, error) {
	lookups := make([]func() (domain.Bill, error), 0, 3)
	phone := ""
	if scope.session != nil {
		sessionID := scope.session.ID
		// An active session's phone may carry bills from earlier visits.
		if !scope.session.IsActive() {
			phone = scope.session.GuestPhone
		}
		lookups = append(lookups, func() (domain.Bill, error) { return s.bills.FindBillBySession(ctx, sessionID) })
	}
	if len(orderIDs) > 0 {
		lookups = append(lookups, func() (domain.Bill, error) { return s.bills.FindBillByOrderIDs(ctx, orderIDs) })
	}
	if scope.user != nil {
		userID := scope.user.ID
		phone = scope.user.Phone
		lookups = append(lookups, func() (domain.Bill, error) { return s.bills.FindBillForUserOrders(ctx, userID) })
	}
	if phone != "" {
		lookups = append(lookups, func() (domain.Bill, error) { return s.bills.FindBillByPhone(ctx, phone) })
	}

	for _, lookup := range lookups {
		bill, err := lookup()
		if err == nil {
			metrics.BillsGenerated.WithLabelValues("existing").Inc()
			return BillResult{Bill: bill, AlreadyBilled: true}, nil
		}
		if !errors.Is(err, domain.ErrRecordNotFound) {
			return BillResult{}, domain.AsError(err)
		}
	}
	metrics.BillsGenerated.WithLabelValues("nothing_to_bill").Inc()
	return BillResult{}, domain.StateError(domain.ErrCodeNothingToBill, "No unbilled orders to bill", nil)
}

func (s *BillingService) Get(ctx context.Context, actor *domain.Actor, id uuid.UUID) (domain.Bill, error) {
	if err := requireCapability(actor, auth.CapBillsManage); err != nil {
		return domain.Bill{}, err
	}
	bill, err := s.bills.GetBill(ctx, id)
	if err != nil {
		return domain.Bill{}, storeError(err, "Bill not found")
	}
	return bill, nil
}

func (s *BillingService) List(ctx context.Context, actor *domain.Actor, limit int) ([]domain.Bill, error) {
	if err := requireCapability(actor, auth.CapBillsManage); err != nil {
		return nil, err
	}
	bills, err := s.bills.ListBills(ctx, clampLimit(limit, 50, 200))
	if err != nil {
		return nil, domain.AsError(err)
	}
	return bills, nil
}

// Print renders the stored bill and stamps printed_at on the first print. Totals are never
// recomputed. The PDF archive upload is best-effort.
func (s *BillingService) Print(ctx context.Context, actor *domain.Actor, id uuid.UUID) (PrintResult, error) {
	bill, err := s.Get(ctx, actor, id)
	if err != nil {
		return PrintResult{}, err
	}
	data := receipt.Build(bill, s.header)
	html, err := receipt.HTML(data)
	if err != nil {
		return PrintResult{}, domain.InternalError(err)
	}
	result := PrintResult{Text: receipt.Text(data, s.receiptWidth), HTML: string(html)}

	printed, err := s.bills.MarkBillPrinted(ctx, bill.ID, s.now())
	if err != nil {
		return PrintResult{}, storeError(err, "Bill not found")
	}
	result.Bill = printed

	if s.blobs != nil && bill.PrintedAt == nil {
		pdf, err := receipt.PDF(data)
		if err != nil {
			s.effects.failed("receipt_pdf", err, zap.String("billNumber", bill.BillNumber))
			return result, nil
		}
		url, err := s.blobs.PutObject(ctx, storage.BillReceiptKey(bill.BillNumber), pdf, "application/pdf", "private, max-age=0")
		if err != nil {
			s.effects.failed("receipt_archive", err, zap.String("billNumber", bill.BillNumber))
			return result, nil
		}
		result.ArchiveURL = url
	}
	return result, nil
}

// ReceiptPDF renders the bill as a download without touching printed_at.
func (s *BillingService) ReceiptPDF(ctx context.Context, actor *domain.Actor, id uuid.UUID) ([]byte, string, error) {
	bill, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, "", err
	}
	pdf, err := receipt.PDF(receipt.Build(bill, s.header))
	if err != nil {
		return nil, "", domain.InternalError(err)
	}
	return pdf, receipt.SanitizeFilename(bill.BillNumber) + ".pdf", nil
}
