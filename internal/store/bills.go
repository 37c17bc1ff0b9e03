package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"aicavalli-order-service/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const billColumns = `b.id, b.bill_number, b.session_id, b.order_id, b.user_id, b.guest_name, b.guest_phone,
	b.table_name, b.items_total, b.discount_amount, b.final_total, b.payment_method, b.created_at, b.printed_at`

func scanBill(row pgx.Row) (domain.Bill, error) {
	var b domain.Bill
	var method string
	var items, discount, final pgtype.Numeric
	if err := row.Scan(
		&b.ID,
		&b.BillNumber,
		&b.SessionID,
		&b.OrderID,
		&b.UserID,
		&b.GuestName,
		&b.GuestPhone,
		&b.TableName,
		&items,
		&discount,
		&final,
		&method,
		&b.CreatedAt,
		&b.PrintedAt,
	); err != nil {
		return domain.Bill{}, mapError(err)
	}
	b.PaymentMethod = domain.PaymentMethod(method)
	b.ItemsTotal = dec(items)
	b.DiscountAmount = dec(discount)
	b.FinalTotal = dec(final)
	b.Items = []domain.BillItem{}
	b.OrderIDs = []uuid.UUID{}
	return b, nil
}

func queryBills(ctx context.Context, q querier, tail string, args ...any) ([]domain.Bill, error) {
	rows, err := q.Query(ctx, `select `+billColumns+` from bills b `+tail, args...)
	if err != nil {
		return nil, err
	}
	bills := []domain.Bill{}
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		bills = append(bills, b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := attachBillDetails(ctx, q, bills); err != nil {
		return nil, err
	}
	return bills, nil
}

func attachBillDetails(ctx context.Context, q querier, bills []domain.Bill) error {
	if len(bills) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(bills))
	index := make(map[uuid.UUID]int, len(bills))
	for i, b := range bills {
		ids[i] = b.ID
		index[b.ID] = i
	}

	rows, err := q.Query(ctx, `
		select id, bill_id, item_name, quantity, unit_price, subtotal
		from bill_items
		where bill_id = any($1)
		order by bill_id, line_no
	`, ids)
	if err != nil {
		return err
	}
	for rows.Next() {
		var item domain.BillItem
		var unit, subtotal pgtype.Numeric
		if err := rows.Scan(&item.ID, &item.BillID, &item.Name, &item.Quantity, &unit, &subtotal); err != nil {
			rows.Close()
			return err
		}
		item.UnitPrice = dec(unit)
		item.Subtotal = dec(subtotal)
		i := index[item.BillID]
		bills[i].Items = append(bills[i].Items, item)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = q.Query(ctx, `
		select bo.bill_id, bo.order_id
		from bill_orders bo
		join orders o on o.id = bo.order_id
		where bo.bill_id = any($1)
		order by bo.bill_id, o.created_at, o.id
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var billID, orderID uuid.UUID
		if err := rows.Scan(&billID, &orderID); err != nil {
			return err
		}
		i := index[billID]
		bills[i].OrderIDs = append(bills[i].OrderIDs, orderID)
	}
	return rows.Err()
}

func oneBill(ctx context.Context, q querier, tail string, args ...any) (domain.Bill, error) {
	bills, err := queryBills(ctx, q, tail, args...)
	if err != nil {
		return domain.Bill{}, err
	}
	if len(bills) == 0 {
		return domain.Bill{}, domain.ErrRecordNotFound
	}
	return bills[0], nil
}

func (s *Store) unbilledOrders(ctx context.Context, where string, arg any) ([]domain.Order, error) {
	return queryOrders(ctx, s.pool, ` where `+where+` and o.billed = false and o.status <> 'cancelled' order by o.created_at, o.id`, arg)
}

func (s *Store) UnbilledOrdersForSession(ctx context.Context, sessionID uuid.UUID) ([]domain.Order, error) {
	return s.unbilledOrders(ctx, `o.session_id = $1`, sessionID)
}

func (s *Store) UnbilledOrdersForUser(ctx context.Context, userID uuid.UUID) ([]domain.Order, error) {
	return s.unbilledOrders(ctx, `o.user_id = $1`, userID)
}

// CreateBill claims the draft's orders with a conditional update. If fewer rows flip
// than the draft names, another writer got there first and nothing is written.
func (s *Store) CreateBill(ctx context.Context, draft domain.BillDraft) (domain.Bill, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Bill{}, fmt.Errorf("begin bill tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if draft.SessionID != nil {
		var status string
		err := tx.QueryRow(ctx, `select status from guest_sessions where id = $1 for update`, *draft.SessionID).Scan(&status)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return domain.Bill{}, fmt.Errorf("lock session: %w", err)
		}
		if errors.Is(err, pgx.ErrNoRows) || domain.SessionStatus(status) != domain.SessionActive {
			return domain.Bill{}, domain.ErrScopeChanged
		}
	}

	tag, err := tx.Exec(ctx, `
		update orders set billed = true, updated_at = now()
		where id = any($1) and billed = false and status <> 'cancelled'
	`, draft.OrderIDs)
	if err != nil {
		return domain.Bill{}, fmt.Errorf("claim orders: %w", err)
	}
	if tag.RowsAffected() != int64(len(draft.OrderIDs)) {
		return domain.Bill{}, domain.ErrScopeChanged
	}

	var seq int64
	if err := tx.QueryRow(ctx, `select nextval('bill_number_seq')`).Scan(&seq); err != nil {
		return domain.Bill{}, fmt.Errorf("next bill number: %w", err)
	}
	billNumber := fmt.Sprintf("AC-%s-%05d", draft.NumberDate, seq)

	var billID uuid.UUID
	if err := tx.QueryRow(ctx, `
		insert into bills (
			bill_number, session_id, order_id, user_id, guest_name, guest_phone, table_name,
			items_total, discount_amount, final_total, payment_method
		) values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		returning id
	`,
		billNumber,
		draft.SessionID,
		draft.OrderID,
		draft.UserID,
		draft.GuestName,
		draft.GuestPhone,
		draft.TableName,
		numeric(draft.Totals.ItemsTotal),
		numeric(draft.Totals.DiscountAmount),
		numeric(draft.Totals.FinalTotal),
		string(draft.PaymentMethod),
	).Scan(&billID); err != nil {
		return domain.Bill{}, fmt.Errorf("insert bill: %w", mapError(err))
	}

	for i, item := range draft.Totals.Items {
		if _, err := tx.Exec(ctx, `
			insert into bill_items (bill_id, line_no, item_name, quantity, unit_price, subtotal)
			values ($1, $2, $3, $4, $5, $6)
		`, billID, i, item.Name, item.Quantity, numeric(item.UnitPrice), numeric(item.Subtotal)); err != nil {
			return domain.Bill{}, fmt.Errorf("insert bill item %d: %w", i, err)
		}
	}
	for _, orderID := range draft.OrderIDs {
		if _, err := tx.Exec(ctx, `insert into bill_orders (bill_id, order_id) values ($1, $2)`, billID, orderID); err != nil {
			return domain.Bill{}, fmt.Errorf("link bill order: %w", mapError(err))
		}
	}

	if draft.SessionID != nil {
		if _, err := tx.Exec(ctx, `
			update guest_sessions
			set status = 'ended', ended_at = $2, total_amount = $3
			where id = $1 and status = 'active'
		`, *draft.SessionID, draft.EndedAt, numeric(draft.Totals.FinalTotal)); err != nil {
			return domain.Bill{}, fmt.Errorf("end session: %w", err)
		}
	} else {
		// A user bill can consume a session's last open orders.
		if _, err := tx.Exec(ctx, `
			update guest_sessions gs
			set status = 'ended', ended_at = $2
			where gs.status = 'active'
			  and gs.id in (select session_id from orders where id = any($1) and session_id is not null)
			  and not exists (
			      select 1 from orders o
			      where o.session_id = gs.id and o.billed = false and o.status <> 'cancelled'
			  )
		`, draft.OrderIDs, draft.EndedAt); err != nil {
			return domain.Bill{}, fmt.Errorf("end consumed sessions: %w", err)
		}
	}

	bill, err := oneBill(ctx, tx, `where b.id = $1`, billID)
	if err != nil {
		return domain.Bill{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Bill{}, fmt.Errorf("commit bill: %w", err)
	}
	return bill, nil
}

const latestFirst = ` order by b.created_at desc, b.bill_number desc limit 1`

func (s *Store) FindBillBySession(ctx context.Context, sessionID uuid.UUID) (domain.Bill, error) {
	return oneBill(ctx, s.pool, `where b.session_id = $1`+latestFirst, sessionID)
}

func (s *Store) FindBillByOrderIDs(ctx context.Context, orderIDs []uuid.UUID) (domain.Bill, error) {
	return oneBill(ctx, s.pool, `where b.id in (select bill_id from bill_orders where order_id = any($1))`+latestFirst, orderIDs)
}

func (s *Store) FindBillForUserOrders(ctx context.Context, userID uuid.UUID) (domain.Bill, error) {
	return oneBill(ctx, s.pool, `
		where b.id in (
			select bo.bill_id from bill_orders bo join orders o on o.id = bo.order_id where o.user_id = $1
		)`+latestFirst, userID)
}

func (s *Store) FindBillByPhone(ctx context.Context, phone string) (domain.Bill, error) {
	if phone == "" {
		return domain.Bill{}, domain.ErrRecordNotFound
	}
	return oneBill(ctx, s.pool, `where b.guest_phone = $1`+latestFirst, phone)
}

func (s *Store) GetBill(ctx context.Context, id uuid.UUID) (domain.Bill, error) {
	return oneBill(ctx, s.pool, `where b.id = $1`, id)
}

func (s *Store) ListBills(ctx context.Context, limit int) ([]domain.Bill, error) {
	return queryBills(ctx, s.pool, `order by b.created_at desc, b.bill_number desc limit $1`, limit)
}

func (s *Store) MarkBillPrinted(ctx context.Context, id uuid.UUID, at time.Time) (domain.Bill, error) {
	tag, err := s.pool.Exec(ctx, `update bills set printed_at = coalesce(printed_at, $2) where id = $1`, id, at)
	if err != nil {
		return domain.Bill{}, err
	}
	if tag.RowsAffected() == 0 {
		return domain.Bill{}, domain.ErrRecordNotFound
	}
	return s.GetBill(ctx, id)
}
