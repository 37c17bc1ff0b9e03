package store

import (
	"context"
	"errors"
	"fmt"

	"aicavalli-order-service/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderSelect = `
	select o.id, o.user_id, o.session_id, o.table_name, o.location_type, o.num_guests, o.status,
	       o.total, o.discount_percent, o.discount_amount, o.notes, o.billed, o.created_at, o.updated_at,
	       u.name, u.role
	from orders o
	join users u on u.id = o.user_id
`

func scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	var status, role string
	var total, pct, amount pgtype.Numeric
	if err := row.Scan(
		&o.ID,
		&o.UserID,
		&o.SessionID,
		&o.TableName,
		&o.LocationType,
		&o.NumGuests,
		&status,
		&total,
		&pct,
		&amount,
		&o.Notes,
		&o.Billed,
		&o.CreatedAt,
		&o.UpdatedAt,
		&o.UserName,
		&role,
	); err != nil {
		return domain.Order{}, mapError(err)
	}
	o.Status = domain.OrderStatus(status)
	o.UserRole = domain.Role(role)
	o.Total = dec(total)
	o.DiscountPercent = dec(pct)
	o.DiscountAmount = dec(amount)
	o.Items = []domain.OrderItem{}
	return o, nil
}

// queryOrders runs orderSelect with the given tail and loads every order's items.
func queryOrders(ctx context.Context, q querier, tail string, args ...any) ([]domain.Order, error) {
	rows, err := q.Query(ctx, orderSelect+tail, args...)
	if err != nil {
		return nil, err
	}
	orders := []domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		orders = append(orders, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := attachItems(ctx, q, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func attachItems(ctx context.Context, q querier, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(orders))
	index := make(map[uuid.UUID]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}
	rows, err := q.Query(ctx, `
		select id, order_id, menu_item_id, item_name, quantity, unit_price
		from order_items
		where order_id = any($1)
		order by order_id, line_no
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var item domain.OrderItem
		var price pgtype.Numeric
		if err := rows.Scan(&item.ID, &item.OrderID, &item.MenuItemID, &item.Name, &item.Quantity, &price); err != nil {
			return err
		}
		item.UnitPrice = dec(price)
		i := index[item.OrderID]
		orders[i].Items = append(orders[i].Items, item)
	}
	return rows.Err()
}

func getOrder(ctx context.Context, q querier, id uuid.UUID) (domain.Order, error) {
	orders, err := queryOrders(ctx, q, ` where o.id = $1`, id)
	if err != nil {
		return domain.Order{}, err
	}
	if len(orders) == 0 {
		return domain.Order{}, domain.ErrRecordNotFound
	}
	return orders[0], nil
}

func insertOrderItems(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, items []domain.OrderItem) error {
	for i, item := range items {
		if _, err := tx.Exec(ctx, `
			insert into order_items (id, order_id, menu_item_id, line_no, item_name, quantity, unit_price)
			values ($1, $2, $3, $4, $5, $6, $7)
		`, item.ID, orderID, item.MenuItemID, i, item.Name, item.Quantity, numeric(item.UnitPrice)); err != nil {
			return fmt.Errorf("insert order item %d: %w", i, err)
		}
	}
	return nil
}

func (s *Store) CreateOrder(ctx context.Context, order domain.Order) (domain.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Order{}, fmt.Errorf("begin order tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if order.SessionID != nil {
		var status string
		err := tx.QueryRow(ctx, `select status from guest_sessions where id = $1 for update`, *order.SessionID).Scan(&status)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, fmt.Errorf("lock session: %w", err)
		}
		if errors.Is(err, pgx.ErrNoRows) || domain.SessionStatus(status) != domain.SessionActive {
			return domain.Order{}, domain.ErrStaleWrite
		}
	}

	if _, err := tx.Exec(ctx, `
		insert into orders (
			id, user_id, session_id, table_name, location_type, num_guests, status,
			total, discount_percent, discount_amount, notes
		) values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		order.ID,
		order.UserID,
		order.SessionID,
		order.TableName,
		order.LocationType,
		order.NumGuests,
		string(order.Status),
		numeric(order.Total),
		numeric(order.DiscountPercent),
		numeric(order.DiscountAmount),
		order.Notes,
	); err != nil {
		return domain.Order{}, fmt.Errorf("insert order: %w", mapError(err))
	}
	if err := insertOrderItems(ctx, tx, order.ID, order.Items); err != nil {
		return domain.Order{}, mapError(err)
	}

	created, err := getOrder(ctx, tx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Order{}, fmt.Errorf("commit order: %w", err)
	}
	return created, nil
}

func (s *Store) GetOrder(ctx context.Context, id uuid.UUID) (domain.Order, error) {
	return getOrder(ctx, s.pool, id)
}

func (s *Store) ListOrdersByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Order, error) {
	return queryOrders(ctx, s.pool, ` where o.user_id = $1 order by o.created_at desc, o.id desc limit $2`, userID, limit)
}

func (s *Store) ActiveOrders(ctx context.Context) ([]domain.Order, error) {
	return queryOrders(ctx, s.pool, ` where o.status in ('pending', 'preparing', 'ready') order by o.created_at, o.id`)
}

func (s *Store) UpdateOrderStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) (domain.Order, error) {
	tag, err := s.pool.Exec(ctx, `
		update orders set status = $3, updated_at = now()
		where id = $1 and status = $2
	`, id, string(from), string(to))
	if err != nil {
		return domain.Order{}, err
	}
	if tag.RowsAffected() == 0 {
		return domain.Order{}, missingOrStale(ctx, s.pool, "orders", id)
	}
	return getOrder(ctx, s.pool, id)
}

func (s *Store) SaveOrderEdit(ctx context.Context, edit domain.OrderEdit) (domain.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Order{}, fmt.Errorf("begin edit tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		update orders
		set total = $3, discount_percent = $4, discount_amount = $5, updated_at = now()
		where id = $1 and status = $2 and billed = false
	`, edit.OrderID, string(edit.ExpectStatus), numeric(edit.Total), numeric(edit.DiscountPercent), numeric(edit.DiscountAmount))
	if err != nil {
		return domain.Order{}, mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Order{}, missingOrStale(ctx, tx, "orders", edit.OrderID)
	}
	if _, err := tx.Exec(ctx, `delete from order_items where order_id = $1`, edit.OrderID); err != nil {
		return domain.Order{}, fmt.Errorf("clear order items: %w", err)
	}
	if err := insertOrderItems(ctx, tx, edit.OrderID, edit.Items); err != nil {
		return domain.Order{}, mapError(err)
	}

	updated, err := getOrder(ctx, tx, edit.OrderID)
	if err != nil {
		return domain.Order{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Order{}, fmt.Errorf("commit order edit: %w", err)
	}
	return updated, nil
}
