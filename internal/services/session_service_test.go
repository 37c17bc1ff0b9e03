package services

import (
	"context"
	"testing"

	"aicavalli-order-service/internal/auth"
	"aicavalli-order-service/internal/domain"
	"aicavalli-order-service/internal/queue"
	"aicavalli-order-service/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckInResumesActiveSession(t *testing.T) {
	f := newFixture(t)

	_, first := f.checkIn(t, "Asha", "98765 43210", "T4")
	_, second := f.checkIn(t, "Asha R", "+91 9876543210", "T6")

	assert.False(t, first.Resumed)
	assert.True(t, second.Resumed)
	assert.Equal(t, first.Session.ID, second.Session.ID)
	assert.Equal(t, first.User.ID, second.User.ID)
	assert.Equal(t, "T6", second.Session.TableName)
	assert.Equal(t, 1, f.store.ActiveSessionsForPhone("9876543210"))
}

func TestCheckInIssuesTokens(t *testing.T) {
	f := newFixture(t)
	_, res := f.checkIn(t, "Asha", "9876543210", "T4")

	claims, err := auth.VerifyAccessTokenAt(res.Token, testJWTSecret, f.clock.Now())
	require.NoError(t, err)
	actor, err := claims.Actor()
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, actor.UserID)
	assert.Equal(t, domain.RoleGuest, actor.Role)
	require.NotNil(t, actor.SessionID)
	assert.Equal(t, res.Session.ID, *actor.SessionID)
	assert.True(t, utils.VerifyGuestSessionToken(testSessionSecret, res.SessionToken, res.Session.ID, res.User.ID))
}

func TestCheckInRejectsStaffPhone(t *testing.T) {
	f := newFixture(t)
	f.store.AddUser("Meera", "9000000002", domain.RoleStaff)

	_, err := f.sessions.CheckIn(context.Background(), CheckInInput{Name: "Meera", Phone: "9000000002", TableName: "T2"})
	requireCode(t, err, domain.ErrCodeConflict)
	assert.Equal(t, 0, f.store.ActiveSessionsForPhone("9000000002"))
}

func TestCheckInValidation(t *testing.T) {
	f := newFixture(t)
	tests := []CheckInInput{
		{Name: "Asha", Phone: "12345", TableName: "T4"},
		{Name: "", Phone: "9876543210", TableName: "T4"},
		{Name: "Asha", Phone: "9876543210", TableName: ""},
	}
	for _, in := range tests {
		_, err := f.sessions.CheckIn(context.Background(), in)
		requireCode(t, err, domain.ErrCodeValidation)
	}
}

func TestCheckInAfterBillStartsNewSession(t *testing.T) {
	f := newFixture(t)
	pasta := f.store.AddMenuItem("Pasta", "250", true)
	guest, first := f.checkIn(t, "Asha", "9876543210", "T4")
	f.placeOrder(t, guest, "T4", line(pasta.ID, 1))
	sessionID := first.Session.ID
	_, err := f.billing.Generate(context.Background(), f.kitchenActor, GenerateBillInput{SessionID: &sessionID})
	require.NoError(t, err)

	_, second := f.checkIn(t, "Asha", "9876543210", "T2")
	assert.False(t, second.Resumed)
	assert.NotEqual(t, first.Session.ID, second.Session.ID)
	assert.Equal(t, first.User.ID, second.User.ID)
}

func TestRequestBillCooldown(t *testing.T) {
	f := newFixture(t)
	guest, res := f.checkIn(t, "Asha", "9876543210", "T4")

	first, err := f.sessions.RequestBill(context.Background(), guest, res.Session.ID)
	require.NoError(t, err)
	assert.True(t, first.Alerted)
	assert.NotNil(t, first.Session.BillRequestedAt)

	second, err := f.sessions.RequestBill(context.Background(), guest, res.Session.ID)
	require.NoError(t, err)
	assert.False(t, second.Alerted)
	assert.Equal(t, []string{queue.RKBillRequested}, f.events.Keys())
	assert.Equal(t, 0, f.store.BillCount())
}

func TestRequestBillOwnership(t *testing.T) {
	f := newFixture(t)
	_, res := f.checkIn(t, "Asha", "9876543210", "T4")
	other, _ := f.checkIn(t, "Ravi", "9123456780", "T5")

	_, err := f.sessions.RequestBill(context.Background(), other, res.Session.ID)
	requireCode(t, err, domain.ErrCodeNotFound)
}

func TestSessionSummaryAccess(t *testing.T) {
	f := newFixture(t)
	guest, res := f.checkIn(t, "Asha", "9876543210", "T4")
	other, _ := f.checkIn(t, "Ravi", "9123456780", "T5")

	_, err := f.sessions.Get(context.Background(), other, res.Session.ID)
	requireCode(t, err, domain.ErrCodeNotFound)

	summary, err := f.sessions.Get(context.Background(), guest, res.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.OrderCount)

	active, err := f.sessions.ActiveForUser(context.Background(), guest)
	require.NoError(t, err)
	assert.Equal(t, res.Session.ID, active.ID)
}
