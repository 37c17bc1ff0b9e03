package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockJobs struct {
	mock.Mock
}

func (m *mockJobs) PublishJSON(ctx context.Context, exchange, routingKey string, payload any) error {
	args := m.Called(ctx, exchange, routingKey, payload)
	return args.Error(0)
}

type mockContacts struct {
	mock.Mock
}

func (m *mockContacts) UserEmail(ctx context.Context, userID uuid.UUID) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestTranslatorBillRequested(t *testing.T) {
	jobs := &mockJobs{}
	jobs.On("PublishJSON", mock.Anything, StaffAlertsExchange, StaffAlertsRK, mock.MatchedBy(func(p any) bool {
		job, ok := p.(map[string]any)
		return ok && job["kind"] == "staff.bill_requested"
	})).Return(nil).Once()

	tr := &Translator{Jobs: jobs, Now: func() time.Time { return time.Unix(0, 0) }}
	body := mustJSON(t, BillRequestedEvent{Type: RKBillRequested, SessionID: uuid.New(), TableName: "T4"})

	require.NoError(t, tr.Process(context.Background(), body))
	jobs.AssertExpectations(t)
}

func TestTranslatorOrderStatus(t *testing.T) {
	jobs := &mockJobs{}
	tr := &Translator{Jobs: jobs}

	preparing := mustJSON(t, OrderStatusUpdatedEvent{Type: RKOrderStatusUpdated, Status: "preparing"})
	require.NoError(t, tr.Process(context.Background(), preparing))
	jobs.AssertNotCalled(t, "PublishJSON", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	jobs.On("PublishJSON", mock.Anything, StaffAlertsExchange, StaffAlertsRK, mock.Anything).Return(nil).Once()
	ready := mustJSON(t, OrderStatusUpdatedEvent{Type: RKOrderStatusUpdated, Status: "ready"})
	require.NoError(t, tr.Process(context.Background(), ready))
	jobs.AssertExpectations(t)
}

func TestTranslatorReceiptEmail(t *testing.T) {
	userID := uuid.New()

	t.Run("user with email gets a job", func(t *testing.T) {
		jobs := &mockJobs{}
		contacts := &mockContacts{}
		contacts.On("UserEmail", mock.Anything, userID).Return("asha@example.com", nil)
		jobs.On("PublishJSON", mock.Anything, ReceiptEmailExchange, ReceiptEmailRK, mock.Anything).Return(nil).Once()

		tr := &Translator{Jobs: jobs, Contacts: contacts}
		body := mustJSON(t, BillGeneratedEvent{Type: RKBillGenerated, BillID: uuid.New(), UserID: &userID})
		require.NoError(t, tr.Process(context.Background(), body))
		jobs.AssertExpectations(t)
	})

	t.Run("no email means no job", func(t *testing.T) {
		jobs := &mockJobs{}
		contacts := &mockContacts{}
		contacts.On("UserEmail", mock.Anything, userID).Return("", nil)

		tr := &Translator{Jobs: jobs, Contacts: contacts}
		body := mustJSON(t, BillGeneratedEvent{Type: RKBillGenerated, UserID: &userID})
		require.NoError(t, tr.Process(context.Background(), body))
		jobs.AssertNotCalled(t, "PublishJSON", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("publish failure is returned for retry", func(t *testing.T) {
		jobs := &mockJobs{}
		contacts := &mockContacts{}
		contacts.On("UserEmail", mock.Anything, userID).Return("asha@example.com", nil)
		jobs.On("PublishJSON", mock.Anything, ReceiptEmailExchange, ReceiptEmailRK, mock.Anything).Return(errors.New("channel closed"))

		tr := &Translator{Jobs: jobs, Contacts: contacts}
		body := mustJSON(t, BillGeneratedEvent{Type: RKBillGenerated, UserID: &userID})
		assert.Error(t, tr.Process(context.Background(), body))
	})
}

func TestTranslatorIgnoresUnknown(t *testing.T) {
	tr := &Translator{Jobs: &mockJobs{}}
	assert.NoError(t, tr.Process(context.Background(), []byte("not json")))
	assert.NoError(t, tr.Process(context.Background(), []byte(`{"type":"menu.updated"}`)))
}

func TestGetRetryCount(t *testing.T) {
	assert.Equal(t, 0, getRetryCount(nil))
	assert.Equal(t, 3, getRetryCount(amqp.Table{"x-retry-count": int32(3)}))
	assert.Equal(t, 2, getRetryCount(amqp.Table{"x-retry-count": int64(2)}))
}
