package services

import (
	"context"
	"testing"
	"time"

	"aicavalli-order-service/internal/auth"
	"aicavalli-order-service/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func adminActor(f *fixture) *domain.Actor {
	admin := f.store.AddUser("Admin", "9000000009", domain.RoleAdmin)
	return actorFor(admin)
}

func TestCreateUserAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := adminActor(f)

	created, err := f.users.CreateUser(ctx, admin, CreateUserInput{Name: "Meera", Phone: "9000000010", Role: "STAFF", PIN: "4321"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleStaff, created.Role)
	assert.NotEmpty(t, created.PinHash)

	_, err = f.users.CreateUser(ctx, admin, CreateUserInput{Name: "Meera 2", Phone: "9000000010", Role: "KITCHEN"})
	requireCode(t, err, domain.ErrCodeConflict)

	_, err = f.users.CreateUser(ctx, admin, CreateUserInput{Name: "Guest", Phone: "9000000011", Role: "GUEST"})
	requireCode(t, err, domain.ErrCodeValidation)

	_, err = f.users.CreateUser(ctx, admin, CreateUserInput{Name: "Short", Phone: "9000000012", Role: "RIDER", PIN: "12"})
	requireCode(t, err, domain.ErrCodeValidation)

	login, err := f.users.Login(ctx, LoginInput{Phone: "9000000010", PIN: "4321"})
	require.NoError(t, err)
	claims, err := auth.VerifyAccessTokenAt(login.Token, testJWTSecret, f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, domain.RoleStaff, claims.Role)

	_, err = f.users.Login(ctx, LoginInput{Phone: "9000000010", PIN: "9999"})
	requireCode(t, err, domain.ErrCodeInvalidCredentials)
	_, err = f.users.Login(ctx, LoginInput{Phone: "9000000099", PIN: "4321"})
	requireCode(t, err, domain.ErrCodeInvalidCredentials)
}

func TestCreateUserRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	_, err := f.users.CreateUser(context.Background(), f.kitchenActor, CreateUserInput{Name: "X", Phone: "9000000020", Role: "STAFF"})
	requireCode(t, err, domain.ErrCodeForbidden)
}

func TestMenuAdministration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := adminActor(f)

	category, err := f.menu.CreateCategory(ctx, admin, CategoryInput{Name: "Mains", SortOrder: 1})
	require.NoError(t, err)

	item, err := f.menu.CreateItem(ctx, admin, MenuItemInput{CategoryID: &category.ID, Name: "Risotto", Price: decimal.RequireFromString("320.499")})
	require.NoError(t, err)
	assert.True(t, item.Price.Equal(decimal.RequireFromString("320.50")))
	assert.True(t, item.Available)

	_, err = f.menu.CreateItem(ctx, admin, MenuItemInput{Name: "Free lunch", Price: decimal.NewFromInt(-1)})
	requireCode(t, err, domain.ErrCodeValidation)

	_, err = f.menu.SetAvailability(ctx, admin, item.ID, false)
	require.NoError(t, err)

	view, err := f.menu.PublicMenu(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
	assert.Len(t, view.Categories, 1)

	_, err = f.menu.UploadImage(ctx, admin, item.ID, []byte("not an image"))
	requireCode(t, err, domain.ErrCodeConflict)
}

func TestSpecialsAndAnnouncements(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := adminActor(f)
	pasta := f.store.AddMenuItem("Pasta", "250", true)

	special, err := f.menu.CreateSpecial(ctx, admin, SpecialInput{MenuItemID: pasta.ID, Period: "lunch"})
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01", special.Date)

	_, err = f.menu.CreateSpecial(ctx, admin, SpecialInput{MenuItemID: pasta.ID, Date: "2026-03-02"})
	require.NoError(t, err)

	today, err := f.menu.TodaySpecials(ctx)
	require.NoError(t, err)
	require.Len(t, today, 1)
	require.NotNil(t, today[0].Item)
	assert.Equal(t, "Pasta", today[0].Item.Name)

	inactive := false
	_, err = f.menu.CreateAnnouncement(ctx, admin, AnnouncementInput{Title: "Closed Monday", Active: &inactive})
	require.NoError(t, err)
	_, err = f.menu.CreateAnnouncement(ctx, admin, AnnouncementInput{Title: "Jazz night"})
	require.NoError(t, err)
	list, err := f.menu.Announcements(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Jazz night", list[0].Title)
}

func TestDashboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := adminActor(f)
	pasta := f.store.AddMenuItem("Pasta", "250", true)
	tea := f.store.AddMenuItem("Tea", "70", true)
	guest, res := f.checkIn(t, "Asha", "9876543210", "T4")
	f.placeOrder(t, guest, "T4", line(pasta.ID, 1), line(tea.ID, 2))
	cancelled := f.placeOrder(t, guest, "T4", line(tea.ID, 1))
	_, err := f.kitchen.UpdateStatus(ctx, f.kitchenActor, cancelled.ID, "cancelled")
	require.NoError(t, err)
	sessionID := res.Session.ID
	_, err = f.billing.Generate(ctx, f.kitchenActor, GenerateBillInput{SessionID: &sessionID})
	require.NoError(t, err)

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	dash, err := f.analytics.Dashboard(ctx, admin, from, from.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, dash.TotalOrders)
	assert.Equal(t, 1, dash.BillCount)
	assert.True(t, dash.Revenue.Equal(decimal.NewFromInt(390)))
	assert.True(t, dash.AverageBill.Equal(decimal.NewFromInt(390)))
	require.NotEmpty(t, dash.TopItems)
	assert.Equal(t, "Tea", dash.TopItems[0].Name)

	_, err = f.analytics.Dashboard(ctx, admin, from, from)
	requireCode(t, err, domain.ErrCodeValidation)
	_, err = f.analytics.Dashboard(ctx, f.kitchenActor, from, from.AddDate(0, 0, 1))
	requireCode(t, err, domain.ErrCodeForbidden)
}
