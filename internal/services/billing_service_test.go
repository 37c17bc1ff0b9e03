package services

import (
	"context"
	"strings"
	"sync"
	"testing"

	"aicavalli-order-service/internal/domain"
	"aicavalli-order-service/internal/queue"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAshaScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pasta := f.store.AddMenuItem("Pasta", "250", true)
	tea := f.store.AddMenuItem("Tea", "70", true)
	guest, res := f.checkIn(t, "Asha", "9876543210", "T4")

	order := f.placeOrder(t, guest, "T4", line(pasta.ID, 1), line(tea.ID, 2))
	require.True(t, order.Total.Equal(decimal.NewFromInt(390)))

	for _, status := range []string{"preparing", "ready", "completed"} {
		_, err := f.kitchen.UpdateStatus(ctx, f.kitchenActor, order.ID, status)
		require.NoError(t, err)
	}

	sessionID := res.Session.ID
	result, err := f.billing.Generate(ctx, f.kitchenActor, GenerateBillInput{SessionID: &sessionID, PaymentMethod: domain.PaymentCash})
	require.NoError(t, err)

	assert.False(t, result.AlreadyBilled)
	assert.True(t, result.ItemsTotal.Equal(decimal.NewFromInt(390)))
	assert.True(t, result.DiscountAmount.IsZero())
	assert.True(t, result.FinalTotal.Equal(decimal.NewFromInt(390)))
	assert.True(t, strings.HasPrefix(result.BillNumber, "AC-20260301-"), result.BillNumber)
	assert.Equal(t, "Asha", result.GuestName)
	assert.Equal(t, "T4", result.TableName)
	assert.Len(t, result.Items, 2)

	sum := decimal.Zero
	for _, item := range result.Items {
		sum = sum.Add(item.Subtotal)
	}
	assert.True(t, sum.Equal(result.ItemsTotal))
	assert.True(t, result.FinalTotal.Equal(result.ItemsTotal.Sub(result.DiscountAmount)))

	billed, err := f.orders.Get(ctx, f.kitchenActor, order.ID)
	require.NoError(t, err)
	assert.True(t, billed.Billed)

	session, err := f.sessions.Get(ctx, guest, sessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionEnded, session.Status)
	assert.True(t, session.TotalAmount.Equal(decimal.NewFromInt(390)))
	assert.Contains(t, f.events.Keys(), queue.RKBillGenerated)
}

func TestBillingIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pasta := f.store.AddMenuItem("Pasta", "250", true)
	guest, res := f.checkIn(t, "Asha", "9876543210", "T4")
	f.placeOrder(t, guest, "T4", line(pasta.ID, 1))
	sessionID := res.Session.ID

	first, err := f.billing.Generate(ctx, f.kitchenActor, GenerateBillInput{SessionID: &sessionID})
	require.NoError(t, err)
	second, err := f.billing.Generate(ctx, f.kitchenActor, GenerateBillInput{SessionID: &sessionID})
	require.NoError(t, err)

	assert.True(t, second.AlreadyBilled)
	assert.Equal(t, first.BillNumber, second.BillNumber)
	assert.Equal(t, 1, f.store.BillCount())
}

func TestBillingNothingToBill(t *testing.T) {
	f := newFixture(t)
	_, res := f.checkIn(t, "Asha", "9876543210", "T4")
	sessionID := res.Session.ID

	_, err := f.billing.Generate(context.Background(), f.kitchenActor, GenerateBillInput{SessionID: &sessionID})
	requireCode(t, err, domain.ErrCodeNothingToBill)
	assert.Equal(t, 0, f.store.BillCount())
}

func TestBillingIgnoresEarlierVisitBills(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pasta := f.store.AddMenuItem("Pasta", "250", true)
	guest, res := f.checkIn(t, "Asha", "9876543210", "T4")
	f.placeOrder(t, guest, "T4", line(pasta.ID, 1))
	firstSession := res.Session.ID
	_, err := f.billing.Generate(ctx, f.kitchenActor, GenerateBillInput{SessionID: &firstSession})
	require.NoError(t, err)

	_, again := f.checkIn(t, "Asha", "9876543210", "T2")
	require.NotEqual(t, firstSession, again.Session.ID)
	secondSession := again.Session.ID

	_, err = f.billing.Generate(ctx, f.kitchenActor, GenerateBillInput{SessionID: &secondSession})
	requireCode(t, err, domain.ErrCodeNothingToBill)
	assert.Equal(t, 1, f.store.BillCount())
}

func TestBillingAppliesOrderDiscount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pasta := f.store.AddMenuItem("Pasta", "200", true)
	guest, res := f.checkIn(t, "Asha", "9876543210", "T4")
	order := f.placeOrder(t, guest, "T4", line(pasta.ID, 1))
	_, err := f.kitchen.ApplyDiscount(ctx, f.kitchenActor, order.ID, decimal.NewFromInt(15))
	require.NoError(t, err)
	sessionID := res.Session.ID

	bill, err := f.billing.Generate(ctx, f.kitchenActor, GenerateBillInput{SessionID: &sessionID, PaymentMethod: domain.PaymentUPI})
	require.NoError(t, err)
	assert.True(t, bill.ItemsTotal.Equal(decimal.NewFromInt(200)))
	assert.True(t, bill.DiscountAmount.Equal(decimal.NewFromInt(30)))
	assert.True(t, bill.FinalTotal.Equal(decimal.NewFromInt(170)))
	assert.Equal(t, domain.PaymentUPI, bill.PaymentMethod)
}

func TestBillingExcludesCancelledOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pasta := f.store.AddMenuItem("Pasta", "250", true)
	tea := f.store.AddMenuItem("Tea", "70", true)
	guest, res := f.checkIn(t, "Asha", "9876543210", "T4")
	f.placeOrder(t, guest, "T4", line(pasta.ID, 1))
	cancelled := f.placeOrder(t, guest, "T4", line(tea.ID, 4))
	_, err := f.kitchen.UpdateStatus(ctx, f.kitchenActor, cancelled.ID, "cancelled")
	require.NoError(t, err)
	sessionID := res.Session.ID

	bill, err := f.billing.Generate(ctx, f.kitchenActor, GenerateBillInput{SessionID: &sessionID})
	require.NoError(t, err)
	assert.True(t, bill.FinalTotal.Equal(decimal.NewFromInt(250)))
	assert.Len(t, bill.OrderIDs, 1)
}

func TestBillingByUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pasta := f.store.AddMenuItem("Pasta", "250", true)
	rider := f.store.AddUser("Kabir", "9000000003", domain.RoleRider)
	f.placeOrder(t, actorFor(rider), "Yard", line(pasta.ID, 2))
	userID := rider.ID

	bill, err := f.billing.Generate(ctx, f.kitchenActor, GenerateBillInput{UserID: &userID, PaymentMethod: domain.PaymentAccount})
	require.NoError(t, err)
	assert.True(t, bill.FinalTotal.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, "Yard", bill.TableName)
	require.NotNil(t, bill.OrderID)

	again, err := f.billing.Generate(ctx, f.kitchenActor, GenerateBillInput{UserID: &userID})
	require.NoError(t, err)
	assert.True(t, again.AlreadyBilled)
	assert.Equal(t, bill.ID, again.ID)
}

func TestUserBillEndsConsumedSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pasta := f.store.AddMenuItem("Pasta", "250", true)
	guest, res := f.checkIn(t, "Asha", "9876543210", "T4")
	order := f.placeOrder(t, guest, "T4", line(pasta.ID, 1))
	require.NotNil(t, order.SessionID)
	userID := res.User.ID

	bill, err := f.billing.Generate(ctx, f.kitchenActor, GenerateBillInput{UserID: &userID})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{order.ID}, bill.OrderIDs)

	session, err := f.store.GetSession(ctx, res.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionEnded, session.Status)
	require.NotNil(t, session.EndedAt)

	sessionID := res.Session.ID
	again, err := f.billing.Generate(ctx, f.kitchenActor, GenerateBillInput{SessionID: &sessionID})
	require.NoError(t, err)
	assert.True(t, again.AlreadyBilled)
	assert.Equal(t, bill.ID, again.ID)
}

func TestBillingInputValidation(t *testing.T) {
	f := newFixture(t)
	_, res := f.checkIn(t, "Asha", "9876543210", "T4")
	sessionID := res.Session.ID
	userID := res.User.ID

	_, err := f.billing.Generate(context.Background(), f.kitchenActor, GenerateBillInput{})
	requireCode(t, err, domain.ErrCodeValidation)
	_, err = f.billing.Generate(context.Background(), f.kitchenActor, GenerateBillInput{SessionID: &sessionID, UserID: &userID})
	requireCode(t, err, domain.ErrCodeValidation)
	_, err = f.billing.Generate(context.Background(), f.kitchenActor, GenerateBillInput{SessionID: &sessionID, PaymentMethod: "cheque"})
	requireCode(t, err, domain.ErrCodeValidation)

	guest := &domain.Actor{UserID: userID, Role: domain.RoleGuest}
	_, err = f.billing.Generate(context.Background(), guest, GenerateBillInput{SessionID: &sessionID})
	requireCode(t, err, domain.ErrCodeForbidden)
}

func TestBillingScopeChangedFallsBackToExistingBill(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pasta := f.store.AddMenuItem("Pasta", "250", true)
	guest, res := f.checkIn(t, "Asha", "9876543210", "T4")
	first := f.placeOrder(t, guest, "T4", line(pasta.ID, 1))
	f.placeOrder(t, guest, "T4", line(pasta.ID, 2))
	sessionID := res.Session.ID

	f.store.BeforeClaim = func() {
		f.store.ForceBilled(first.ID)
		f.store.BeforeClaim = nil
	}
	_, err := f.billing.Generate(ctx, f.kitchenActor, GenerateBillInput{SessionID: &sessionID})

	requireCode(t, err, domain.ErrCodeNothingToBill)
	assert.Equal(t, 0, f.store.BillCount())
}

func TestConcurrentBillingWritesOneBill(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pasta := f.store.AddMenuItem("Pasta", "250", true)
	guest, res := f.checkIn(t, "Asha", "9876543210", "T4")
	f.placeOrder(t, guest, "T4", line(pasta.ID, 1))
	sessionID := res.Session.ID

	var wg sync.WaitGroup
	numbers := make([]string, 5)
	errs := make([]error, 5)
	for i := range numbers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			bill, err := f.billing.Generate(ctx, f.kitchenActor, GenerateBillInput{SessionID: &sessionID})
			numbers[i], errs[i] = bill.BillNumber, err
		}(i)
	}
	wg.Wait()

	for i := range numbers {
		require.NoError(t, errs[i])
		assert.Equal(t, numbers[0], numbers[i])
	}
	assert.Equal(t, 1, f.store.BillCount())
}

func TestPrintStampsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pasta := f.store.AddMenuItem("Pasta", "250", true)
	guest, res := f.checkIn(t, "Asha", "9876543210", "T4")
	f.placeOrder(t, guest, "T4", line(pasta.ID, 1))
	sessionID := res.Session.ID
	bill, err := f.billing.Generate(ctx, f.kitchenActor, GenerateBillInput{SessionID: &sessionID})
	require.NoError(t, err)

	first, err := f.billing.Print(ctx, f.kitchenActor, bill.ID)
	require.NoError(t, err)
	require.NotNil(t, first.Bill.PrintedAt)
	assert.Contains(t, first.Text, bill.BillNumber)
	assert.Contains(t, first.HTML, bill.BillNumber)
	assert.NotContains(t, first.Text, "DUPLICATE")

	second, err := f.billing.Print(ctx, f.kitchenActor, bill.ID)
	require.NoError(t, err)
	assert.Equal(t, *first.Bill.PrintedAt, *second.Bill.PrintedAt)
	assert.Contains(t, second.Text, "DUPLICATE")
	assert.True(t, second.Bill.FinalTotal.Equal(bill.FinalTotal))

	pdf, name, err := f.billing.ReceiptPDF(ctx, f.kitchenActor, bill.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(pdf), "%PDF"))
	assert.Equal(t, bill.BillNumber+".pdf", name)
}
