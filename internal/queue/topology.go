package queue

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	EventsExchange = "aicavalli.events"
	EventsQueue    = "aicavalli.events.translate"

	StaffAlertsExchange = "aicavalli.staff_alerts"
	StaffAlertsQueue    = "aicavalli.staff_alerts.deliver"
	StaffAlertsDLQ      = "aicavalli.staff_alerts.dlq"
	StaffAlertsRK       = "deliver"

	ReceiptEmailExchange = "aicavalli.receipt_email"
	ReceiptEmailQueue    = "aicavalli.receipt_email.send"
	ReceiptEmailDLQ      = "aicavalli.receipt_email.dlq"
	ReceiptEmailRK       = "send"

	deadRK = "dead"
)

// EnsureTopology declares the events exchange, the translator queue and both job
// pipelines. It is safe to call on every start.
func EnsureTopology(ctx context.Context, qc *Client) error {
	if qc == nil {
		return nil
	}
	if err := qc.EnsureExchangeKind(EventsExchange, "topic"); err != nil {
		return err
	}
	if _, err := qc.EnsureQueueWithArgs(EventsQueue, nil); err != nil {
		return err
	}
	// '#' matches multi-segment keys such as order.status.updated.
	for _, pattern := range []string{"order.#", "bill.#"} {
		if err := qc.BindQueue(EventsQueue, EventsExchange, pattern); err != nil {
			return err
		}
	}
	if err := ensureJobTopology(qc, StaffAlertsExchange, StaffAlertsQueue, StaffAlertsDLQ, StaffAlertsRK); err != nil {
		return err
	}
	return ensureJobTopology(qc, ReceiptEmailExchange, ReceiptEmailQueue, ReceiptEmailDLQ, ReceiptEmailRK)
}

func ensureJobTopology(qc *Client, exchange, queue, dlq, rk string) error {
	if err := qc.EnsureExchangeKind(exchange, "direct"); err != nil {
		return err
	}
	if _, err := qc.EnsureQueueWithArgs(dlq, nil); err != nil {
		return err
	}
	if err := qc.BindQueue(dlq, exchange, deadRK); err != nil {
		return err
	}
	_, err := qc.EnsureQueueWithArgs(queue, amqp.Table{
		"x-dead-letter-exchange":    exchange,
		"x-dead-letter-routing-key": deadRK,
	})
	if err != nil {
		return err
	}
	return qc.BindQueue(queue, exchange, rk)
}
