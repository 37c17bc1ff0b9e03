package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"aicavalli-order-service/internal/db"
	"aicavalli-order-service/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

// One container serves the whole package. Tests isolate themselves by phone number.
var (
	pgOnce      sync.Once
	pgContainer testcontainers.Container
	pgDSN       string
	pgStartErr  error
	phoneSeq    atomic.Int64
)

func TestMain(m *testing.M) {
	code := m.Run()
	if pgContainer != nil {
		_ = pgContainer.Terminate(context.Background())
	}
	os.Exit(code)
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres tests skipped in -short mode")
	}
	pgOnce.Do(func() {
		ctx := context.Background()
		container, err := tcpostgres.Run(ctx,
			"postgres:16-alpine",
			tcpostgres.WithDatabase("aicavalli_test"),
			tcpostgres.WithUsername("postgres"),
			tcpostgres.WithPassword("postgres"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second)),
		)
		if err != nil {
			pgStartErr = err
			return
		}
		pgContainer = container
		pgDSN, pgStartErr = container.ConnectionString(ctx, "sslmode=disable")
		if pgStartErr == nil {
			pgStartErr = db.Migrate(pgDSN, zap.NewNop())
		}
	})
	if pgStartErr != nil {
		t.Skipf("postgres container unavailable: %v", pgStartErr)
	}

	pool, err := db.NewPool(context.Background(), pgDSN)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return New(pool)
}

func nextPhone() string {
	return fmt.Sprintf("7%09d", phoneSeq.Add(1))
}

func addMenuItem(t *testing.T, st *Store, name, price string) domain.MenuItem {
	t.Helper()
	item, err := st.CreateMenuItem(context.Background(), domain.MenuItem{
		ID:        uuid.New(),
		Name:      name,
		Price:     decimal.RequireFromString(price),
		Available: true,
	})
	require.NoError(t, err)
	return item
}

func newOrder(userID uuid.UUID, sessionID *uuid.UUID, item domain.MenuItem, qty int) domain.Order {
	return domain.Order{
		ID:              uuid.New(),
		UserID:          userID,
		SessionID:       sessionID,
		TableName:       "T1",
		LocationType:    "dine_in",
		NumGuests:       1,
		Status:          domain.StatusPending,
		Total:           item.Price.Mul(decimal.NewFromInt(int64(qty))),
		DiscountPercent: decimal.Zero,
		DiscountAmount:  decimal.Zero,
		Items: []domain.OrderItem{{
			ID:         uuid.New(),
			MenuItemID: item.ID,
			Name:       item.Name,
			Quantity:   qty,
			UnitPrice:  item.Price,
		}},
	}
}

func draftFor(orders []domain.Order, sessionID *uuid.UUID, user domain.User) domain.BillDraft {
	userID := user.ID
	draft := domain.BillDraft{
		NumberDate:    "20260301",
		SessionID:     sessionID,
		UserID:        &userID,
		GuestName:     user.Name,
		GuestPhone:    user.Phone,
		TableName:     "T1",
		PaymentMethod: domain.PaymentCash,
		EndedAt:       time.Now(),
		Totals:        domain.ComputeBill(orders, decimal.Zero),
	}
	for _, o := range orders {
		draft.OrderIDs = append(draft.OrderIDs, o.ID)
	}
	return draft
}

func checkIn(t *testing.T, st *Store, phone string) (domain.User, domain.GuestSession) {
	t.Helper()
	user, session, _, err := st.CheckIn(context.Background(), domain.CheckInRecord{
		Name: "Asha", Phone: phone, TableName: "T1", NumGuests: 2,
	})
	require.NoError(t, err)
	return user, session
}

func countRows(t *testing.T, st *Store, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, st.pool.QueryRow(context.Background(), query, args...).Scan(&n))
	return n
}

func TestPostgresCheckInResumesActiveSession(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	phone := nextPhone()

	firstUser, first, resumed, err := st.CheckIn(ctx, domain.CheckInRecord{Name: "Asha", Phone: phone, TableName: "T4", NumGuests: 2})
	require.NoError(t, err)
	assert.False(t, resumed)

	secondUser, second, resumed, err := st.CheckIn(ctx, domain.CheckInRecord{Name: "Asha R", Phone: phone, TableName: "T6", NumGuests: 3})
	require.NoError(t, err)
	assert.True(t, resumed)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, firstUser.ID, secondUser.ID)
	assert.Equal(t, "T6", second.TableName)
	assert.Equal(t, "Asha R", secondUser.Name)
}

func TestPostgresConcurrentCheckInsShareOneSession(t *testing.T) {
	st := newTestStore(t)
	phone := nextPhone()

	const callers = 8
	ids := make([]uuid.UUID, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, session, _, err := st.CheckIn(context.Background(), domain.CheckInRecord{
				Name: "Asha", Phone: phone, TableName: "T4", NumGuests: 2,
			})
			ids[i], errs[i] = session.ID, err
		}(i)
	}
	wg.Wait()

	for i := range ids {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	assert.Equal(t, 1, countRows(t, st, `select count(*) from guest_sessions where guest_phone = $1 and status = 'active'`, phone))
	assert.Equal(t, 1, countRows(t, st, `select count(*) from users where phone = $1`, phone))
}

func TestPostgresCheckInRejectsInternalPhone(t *testing.T) {
	st := newTestStore(t)
	phone := nextPhone()
	_, err := st.CreateUser(context.Background(), domain.User{ID: uuid.New(), Name: "Meera", Phone: phone, Role: domain.RoleStaff})
	require.NoError(t, err)

	_, _, _, err = st.CheckIn(context.Background(), domain.CheckInRecord{Name: "Meera", Phone: phone, TableName: "T2", NumGuests: 1})
	assert.ErrorIs(t, err, domain.ErrDuplicate)
	assert.Equal(t, 0, countRows(t, st, `select count(*) from guest_sessions where guest_phone = $1`, phone))
}

func TestPostgresCreateOrderRollsBackOnItemFailure(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	pasta := addMenuItem(t, st, "Pasta", "250")
	user, session := checkIn(t, st, nextPhone())
	sessionID := session.ID

	tests := []struct {
		name  string
		order domain.Order
	}{
		{"quantity out of range", newOrder(user.ID, &sessionID, pasta, 100)},
		{"unknown menu item", func() domain.Order {
			o := newOrder(user.ID, &sessionID, pasta, 1)
			o.Items[0].MenuItemID = uuid.New()
			return o
		}()},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := st.CreateOrder(ctx, tc.order)
			require.Error(t, err)

			_, err = st.GetOrder(ctx, tc.order.ID)
			assert.ErrorIs(t, err, domain.ErrRecordNotFound)
			assert.Equal(t, 0, countRows(t, st, `select count(*) from orders where id = $1`, tc.order.ID))
		})
	}

	created, err := st.CreateOrder(ctx, newOrder(user.ID, &sessionID, pasta, 2))
	require.NoError(t, err)
	require.Len(t, created.Items, 1)
	assert.True(t, decimal.NewFromInt(500).Equal(created.Total))
}

func TestPostgresCreateBillClaimsOrdersOnce(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	pasta := addMenuItem(t, st, "Pasta", "250")
	tea := addMenuItem(t, st, "Tea", "70")
	user, session := checkIn(t, st, nextPhone())
	sessionID := session.ID

	_, err := st.CreateOrder(ctx, newOrder(user.ID, &sessionID, pasta, 1))
	require.NoError(t, err)
	_, err = st.CreateOrder(ctx, newOrder(user.ID, &sessionID, tea, 2))
	require.NoError(t, err)

	orders, err := st.UnbilledOrdersForSession(ctx, sessionID)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	draft := draftFor(orders, &sessionID, user)

	const writers = 4
	var created atomic.Int32
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := st.CreateBill(context.Background(), draft); err != nil {
				errs[i] = err
				return
			}
			created.Add(1)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), created.Load())
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, domain.ErrScopeChanged)
		}
	}
	assert.Equal(t, 1, countRows(t, st, `select count(*) from bills where session_id = $1`, sessionID))

	bill, err := st.FindBillBySession(ctx, sessionID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(390).Equal(bill.FinalTotal))
	assert.ElementsMatch(t, draft.OrderIDs, bill.OrderIDs)

	ended, err := st.GetSession(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionEnded, ended.Status)

	left, err := st.UnbilledOrdersForSession(ctx, sessionID)
	require.NoError(t, err)
	assert.Empty(t, left)

	_, err = st.CreateOrder(ctx, newOrder(user.ID, &sessionID, tea, 1))
	assert.ErrorIs(t, err, domain.ErrStaleWrite)
}

func TestPostgresBillTotalsMustBalance(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	pasta := addMenuItem(t, st, "Pasta", "250")
	rider, err := st.CreateUser(ctx, domain.User{ID: uuid.New(), Name: "Kabir", Phone: nextPhone(), Role: domain.RoleRider})
	require.NoError(t, err)
	order, err := st.CreateOrder(ctx, newOrder(rider.ID, nil, pasta, 1))
	require.NoError(t, err)

	draft := draftFor([]domain.Order{order}, nil, rider)
	draft.Totals.FinalTotal = draft.Totals.FinalTotal.Add(decimal.NewFromInt(1))

	_, err = st.CreateBill(ctx, draft)
	require.Error(t, err)
	var pgErr *pgconn.PgError
	require.True(t, errors.As(err, &pgErr))
	assert.Equal(t, pgerrcode.CheckViolation, pgErr.Code)

	unbilled, err := st.UnbilledOrdersForUser(ctx, rider.ID)
	require.NoError(t, err)
	require.Len(t, unbilled, 1, "a rejected bill leaves its orders unclaimed")
	assert.False(t, unbilled[0].Billed)
}

func TestPostgresUserBillEndsConsumedSession(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	pasta := addMenuItem(t, st, "Pasta", "250")
	user, session := checkIn(t, st, nextPhone())
	sessionID := session.ID
	_, err := st.CreateOrder(ctx, newOrder(user.ID, &sessionID, pasta, 1))
	require.NoError(t, err)

	orders, err := st.UnbilledOrdersForUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	_, err = st.CreateBill(ctx, draftFor(orders, nil, user))
	require.NoError(t, err)

	ended, err := st.GetSession(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionEnded, ended.Status)
	assert.NotNil(t, ended.EndedAt)
}
