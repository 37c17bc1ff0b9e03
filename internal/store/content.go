package store

import (
	"context"

	"aicavalli-order-service/internal/domain"

	"github.com/jackc/pgx/v5/pgtype"
)

func (s *Store) SpecialsForDate(ctx context.Context, date string) ([]domain.DailySpecial, error) {
	rows, err := s.pool.Query(ctx, `
		select ds.id, ds.menu_item_id, ds.special_date::text, ds.period,
		       m.id, m.category_id, m.name, m.description, m.price, m.available,
		       m.image_url, m.image_thumb_url, m.created_at, m.updated_at
		from daily_specials ds
		join menu_items m on m.id = ds.menu_item_id
		where ds.special_date = $1::date
		order by ds.period, m.name
	`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.DailySpecial{}
	for rows.Next() {
		var sp domain.DailySpecial
		var item domain.MenuItem
		var price pgtype.Numeric
		if err := rows.Scan(
			&sp.ID, &sp.MenuItemID, &sp.Date, &sp.Period,
			&item.ID, &item.CategoryID, &item.Name, &item.Description, &price, &item.Available,
			&item.ImageURL, &item.ImageThumbURL, &item.CreatedAt, &item.UpdatedAt,
		); err != nil {
			return nil, err
		}
		item.Price = dec(price)
		sp.Item = &item
		out = append(out, sp)
	}
	return out, rows.Err()
}

func (s *Store) CreateSpecial(ctx context.Context, special domain.DailySpecial) (domain.DailySpecial, error) {
	err := s.pool.QueryRow(ctx, `
		insert into daily_specials (id, menu_item_id, special_date, period)
		values ($1, $2, $3::date, $4)
		returning id, menu_item_id, special_date::text, period
	`, special.ID, special.MenuItemID, special.Date, special.Period).Scan(&special.ID, &special.MenuItemID, &special.Date, &special.Period)
	if err != nil {
		return domain.DailySpecial{}, mapError(err)
	}
	return special, nil
}

func (s *Store) ListAnnouncements(ctx context.Context, activeOnly bool) ([]domain.Announcement, error) {
	rows, err := s.pool.Query(ctx, `
		select id, title, body, active, created_at
		from announcements
		where ($1 = false or active)
		order by created_at desc
	`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.Announcement{}
	for rows.Next() {
		var a domain.Announcement
		if err := rows.Scan(&a.ID, &a.Title, &a.Body, &a.Active, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) CreateAnnouncement(ctx context.Context, announcement domain.Announcement) (domain.Announcement, error) {
	var a domain.Announcement
	err := s.pool.QueryRow(ctx, `
		insert into announcements (id, title, body, active) values ($1, $2, $3, $4)
		returning id, title, body, active, created_at
	`, announcement.ID, announcement.Title, announcement.Body, announcement.Active).Scan(&a.ID, &a.Title, &a.Body, &a.Active, &a.CreatedAt)
	return a, mapError(err)
}
