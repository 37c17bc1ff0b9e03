package queue

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// JobPublisher is the part of Client the translator needs.
type JobPublisher interface {
	PublishJSON(ctx context.Context, exchange, routingKey string, payload any) error
}

// ContactLookup resolves the e-mail address used for receipt jobs.
type ContactLookup interface {
	UserEmail(ctx context.Context, userID uuid.UUID) (string, error)
}

// Translator turns domain events into staff alert and receipt e-mail jobs.
type Translator struct {
	Jobs     JobPublisher
	Contacts ContactLookup
	Logger   *zap.Logger
	Now      func() time.Time
}

func (t *Translator) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

// Process handles one event body. Unknown or malformed envelopes are dropped without
// retry; job publish failures are returned so the consumer retries.
func (t *Translator) Process(ctx context.Context, body []byte) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		if t.Logger != nil {
			t.Logger.Warn("dropping malformed event", zap.Error(err))
		}
		return nil
	}

	switch strings.TrimSpace(env.Type) {
	case RKBillRequested:
		var evt BillRequestedEvent
		if err := json.Unmarshal(body, &evt); err != nil {
			return nil
		}
		return t.publishStaffAlert(ctx, "staff.bill_requested", map[string]any{
			"sessionId":   evt.SessionID,
			"guestName":   evt.GuestName,
			"tableName":   evt.TableName,
			"requestedAt": evt.RequestedAt,
		})
	case RKOrderStatusUpdated:
		var evt OrderStatusUpdatedEvent
		if err := json.Unmarshal(body, &evt); err != nil {
			return nil
		}
		if evt.Status != "ready" {
			return nil
		}
		return t.publishStaffAlert(ctx, "staff.order_ready", map[string]any{
			"orderId":   evt.OrderID,
			"tableName": evt.TableName,
		})
	case RKBillGenerated:
		var evt BillGeneratedEvent
		if err := json.Unmarshal(body, &evt); err != nil {
			return nil
		}
		return t.publishReceiptEmail(ctx, evt)
	default:
		return nil
	}
}

func (t *Translator) publishStaffAlert(ctx context.Context, kind string, payload map[string]any) error {
	job := map[string]any{
		"kind":      kind,
		"payload":   payload,
		"createdAt": t.now().UTC().Format(time.RFC3339),
		"attempt":   1,
	}
	return t.Jobs.PublishJSON(ctx, StaffAlertsExchange, StaffAlertsRK, job)
}

func (t *Translator) publishReceiptEmail(ctx context.Context, evt BillGeneratedEvent) error {
	if evt.UserID == nil || t.Contacts == nil {
		return nil
	}
	email, err := t.Contacts.UserEmail(ctx, *evt.UserID)
	if err != nil {
		return err
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return nil
	}
	job := map[string]any{
		"billId":     evt.BillID,
		"billNumber": evt.BillNumber,
		"toEmail":    email,
		"finalTotal": evt.FinalTotal,
		"createdAt":  t.now().UTC().Format(time.RFC3339),
		"attempt":    1,
	}
	return t.Jobs.PublishJSON(ctx, ReceiptEmailExchange, ReceiptEmailRK, job)
}
