package store

import (
	"context"
	"time"

	"aicavalli-order-service/internal/domain"

	"github.com/jackc/pgx/v5/pgtype"
)

func (s *Store) OrderCountsByStatus(ctx context.Context, from, to time.Time) ([]domain.StatusCount, error) {
	rows, err := s.pool.Query(ctx, `
		select status, count(*)
		from orders
		where created_at >= $1 and created_at < $2
		group by status
		order by array_position(array['pending', 'preparing', 'ready', 'completed', 'cancelled'], status)
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.StatusCount{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		out = append(out, domain.StatusCount{Status: domain.OrderStatus(status), Count: count})
	}
	return out, rows.Err()
}

func (s *Store) BillAggregate(ctx context.Context, from, to time.Time) (domain.BillAggregate, error) {
	var agg domain.BillAggregate
	var revenue, discounts pgtype.Numeric
	if err := s.pool.QueryRow(ctx, `
		select count(*), coalesce(sum(final_total), 0), coalesce(sum(discount_amount), 0)
		from bills
		where created_at >= $1 and created_at < $2
	`, from, to).Scan(&agg.Count, &revenue, &discounts); err != nil {
		return domain.BillAggregate{}, err
	}
	agg.Revenue = dec(revenue)
	agg.Discounts = dec(discounts)
	return agg, nil
}

func (s *Store) TopItems(ctx context.Context, from, to time.Time, limit int) ([]domain.TopItem, error) {
	rows, err := s.pool.Query(ctx, `
		select bi.item_name, sum(bi.quantity)::int, sum(bi.subtotal)
		from bill_items bi
		join bills b on b.id = bi.bill_id
		where b.created_at >= $1 and b.created_at < $2
		group by bi.item_name
		order by 2 desc, 1
		limit $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.TopItem{}
	for rows.Next() {
		var item domain.TopItem
		var revenue pgtype.Numeric
		if err := rows.Scan(&item.Name, &item.Quantity, &revenue); err != nil {
			return nil, err
		}
		item.Revenue = dec(revenue)
		out = append(out, item)
	}
	return out, rows.Err()
}
