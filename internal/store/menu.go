package store

import (
	"context"

	"aicavalli-order-service/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const menuItemColumns = `id, category_id, name, description, price, available, image_url, image_thumb_url, created_at, updated_at`

func scanMenuItem(row pgx.Row) (domain.MenuItem, error) {
	var item domain.MenuItem
	var price pgtype.Numeric
	if err := row.Scan(
		&item.ID,
		&item.CategoryID,
		&item.Name,
		&item.Description,
		&price,
		&item.Available,
		&item.ImageURL,
		&item.ImageThumbURL,
		&item.CreatedAt,
		&item.UpdatedAt,
	); err != nil {
		return domain.MenuItem{}, mapError(err)
	}
	item.Price = dec(price)
	return item, nil
}

func collectMenuItems(rows pgx.Rows) ([]domain.MenuItem, error) {
	defer rows.Close()
	items := []domain.MenuItem{}
	for rows.Next() {
		item, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) MenuItemsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.MenuItem, error) {
	rows, err := s.pool.Query(ctx, `select `+menuItemColumns+` from menu_items where id = any($1)`, ids)
	if err != nil {
		return nil, err
	}
	items, err := collectMenuItems(rows)
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]domain.MenuItem, len(items))
	for _, item := range items {
		out[item.ID] = item
	}
	return out, nil
}

func (s *Store) ListMenu(ctx context.Context, onlyAvailable bool) ([]domain.Category, []domain.MenuItem, error) {
	catRows, err := s.pool.Query(ctx, `select id, name, sort_order from categories order by sort_order, name`)
	if err != nil {
		return nil, nil, err
	}
	defer catRows.Close()
	categories := []domain.Category{}
	for catRows.Next() {
		var c domain.Category
		if err := catRows.Scan(&c.ID, &c.Name, &c.SortOrder); err != nil {
			return nil, nil, err
		}
		categories = append(categories, c)
	}
	if err := catRows.Err(); err != nil {
		return nil, nil, err
	}

	rows, err := s.pool.Query(ctx, `
		select `+menuItemColumns+`
		from menu_items
		where ($1 = false or available)
		order by name
	`, onlyAvailable)
	if err != nil {
		return nil, nil, err
	}
	items, err := collectMenuItems(rows)
	if err != nil {
		return nil, nil, err
	}
	return categories, items, nil
}

func (s *Store) GetMenuItem(ctx context.Context, id uuid.UUID) (domain.MenuItem, error) {
	return scanMenuItem(s.pool.QueryRow(ctx, `select `+menuItemColumns+` from menu_items where id = $1`, id))
}

func (s *Store) CreateMenuItem(ctx context.Context, item domain.MenuItem) (domain.MenuItem, error) {
	return scanMenuItem(s.pool.QueryRow(ctx, `
		insert into menu_items (id, category_id, name, description, price, available)
		values ($1, $2, $3, $4, $5, $6)
		returning `+menuItemColumns,
		item.ID, item.CategoryID, item.Name, item.Description, numeric(item.Price), item.Available,
	))
}

func (s *Store) UpdateMenuItem(ctx context.Context, item domain.MenuItem) (domain.MenuItem, error) {
	return scanMenuItem(s.pool.QueryRow(ctx, `
		update menu_items
		set category_id = $2, name = $3, description = $4, price = $5, available = $6, updated_at = now()
		where id = $1
		returning `+menuItemColumns,
		item.ID, item.CategoryID, item.Name, item.Description, numeric(item.Price), item.Available,
	))
}

func (s *Store) SetMenuItemAvailability(ctx context.Context, id uuid.UUID, available bool) (domain.MenuItem, error) {
	return scanMenuItem(s.pool.QueryRow(ctx, `
		update menu_items set available = $2, updated_at = now()
		where id = $1
		returning `+menuItemColumns, id, available))
}

func (s *Store) SetMenuItemImage(ctx context.Context, id uuid.UUID, imageURL, thumbURL string) (domain.MenuItem, error) {
	return scanMenuItem(s.pool.QueryRow(ctx, `
		update menu_items set image_url = $2, image_thumb_url = $3, updated_at = now()
		where id = $1
		returning `+menuItemColumns, id, imageURL, thumbURL))
}

func (s *Store) CreateCategory(ctx context.Context, category domain.Category) (domain.Category, error) {
	var c domain.Category
	err := s.pool.QueryRow(ctx, `
		insert into categories (id, name, sort_order) values ($1, $2, $3)
		returning id, name, sort_order
	`, category.ID, category.Name, category.SortOrder).Scan(&c.ID, &c.Name, &c.SortOrder)
	return c, mapError(err)
}
