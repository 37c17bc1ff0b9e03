package store

import (
	"context"

	"aicavalli-order-service/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, name, phone, email, role, coalesce(pin_hash, ''), created_at`

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	var role string
	if err := row.Scan(&u.ID, &u.Name, &u.Phone, &u.Email, &role, &u.PinHash, &u.CreatedAt); err != nil {
		return domain.User{}, mapError(err)
	}
	u.Role = domain.Role(role)
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (domain.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `select `+userColumns+` from users where id = $1`, id))
}

func (s *Store) FindInternalUserByPhone(ctx context.Context, phone string) (domain.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `
		select `+userColumns+`
		from users
		where phone = $1 and role <> 'OUTSIDER'
	`, phone))
}

func (s *Store) CreateUser(ctx context.Context, user domain.User) (domain.User, error) {
	var pinHash *string
	if user.PinHash != "" {
		pinHash = &user.PinHash
	}
	return scanUser(s.pool.QueryRow(ctx, `
		insert into users (id, name, phone, email, role, pin_hash)
		values ($1, $2, $3, $4, $5, $6)
		returning `+userColumns,
		user.ID, user.Name, user.Phone, user.Email, string(user.Role), pinHash,
	))
}

// UserEmail returns the stored email or an empty string.
func (s *Store) UserEmail(ctx context.Context, id uuid.UUID) (string, error) {
	var email *string
	if err := s.pool.QueryRow(ctx, `select email from users where id = $1`, id).Scan(&email); err != nil {
		return "", mapError(err)
	}
	if email == nil {
		return "", nil
	}
	return *email, nil
}
