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

const sessionColumns = `id, user_id, guest_name, guest_phone, table_name, num_guests, status,
	total_amount, discount_amount, bill_requested_at, started_at, ended_at`

func scanSession(row pgx.Row, extra ...any) (domain.GuestSession, error) {
	var gs domain.GuestSession
	var status string
	var total, discount pgtype.Numeric
	dest := []any{
		&gs.ID,
		&gs.UserID,
		&gs.GuestName,
		&gs.GuestPhone,
		&gs.TableName,
		&gs.NumGuests,
		&status,
		&total,
		&discount,
		&gs.BillRequestedAt,
		&gs.StartedAt,
		&gs.EndedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return domain.GuestSession{}, mapError(err)
	}
	gs.Status = domain.SessionStatus(status)
	gs.TotalAmount = dec(total)
	gs.DiscountAmount = dec(discount)
	return gs, nil
}

// CheckIn upserts the guest user by phone, then resumes the phone's active session or
// opens a new one. The partial unique index on active phones makes concurrent check-ins
// converge on one session. A phone registered to an internal user is rejected with
// domain.ErrDuplicate.
func (s *Store) CheckIn(ctx context.Context, record domain.CheckInRecord) (domain.User, domain.GuestSession, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.User{}, domain.GuestSession{}, false, fmt.Errorf("begin check-in tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var internal bool
	if err := tx.QueryRow(ctx, `
		select exists (select 1 from users where phone = $1 and role <> 'OUTSIDER')
	`, record.Phone).Scan(&internal); err != nil {
		return domain.User{}, domain.GuestSession{}, false, fmt.Errorf("check staff phone: %w", err)
	}
	if internal {
		return domain.User{}, domain.GuestSession{}, false, domain.ErrDuplicate
	}

	user, err := scanUser(tx.QueryRow(ctx, `
		insert into users (name, phone, role)
		values ($1, $2, 'OUTSIDER')
		on conflict (phone) where role = 'OUTSIDER'
		do update set name = excluded.name
		returning `+userColumns,
		record.Name, record.Phone,
	))
	if err != nil {
		return domain.User{}, domain.GuestSession{}, false, fmt.Errorf("upsert guest: %w", mapError(err))
	}

	var resumed bool
	session, err := scanSession(tx.QueryRow(ctx, `
		insert into guest_sessions (user_id, guest_name, guest_phone, table_name, num_guests)
		values ($1, $2, $3, $4, $5)
		on conflict (guest_phone) where status = 'active'
		do update set guest_name = excluded.guest_name,
		              table_name = excluded.table_name,
		              num_guests = excluded.num_guests
		returning `+sessionColumns+`, (xmax <> 0)`,
		user.ID, record.Name, record.Phone, record.TableName, record.NumGuests,
	), &resumed)
	if err != nil {
		return domain.User{}, domain.GuestSession{}, false, fmt.Errorf("open session: %w", mapError(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.User{}, domain.GuestSession{}, false, fmt.Errorf("commit check-in: %w", err)
	}
	return user, session, resumed, nil
}

func (s *Store) GetSession(ctx context.Context, id uuid.UUID) (domain.GuestSession, error) {
	return scanSession(s.pool.QueryRow(ctx, `select `+sessionColumns+` from guest_sessions where id = $1`, id))
}

func (s *Store) ActiveSessionForUser(ctx context.Context, userID uuid.UUID) (domain.GuestSession, error) {
	return scanSession(s.pool.QueryRow(ctx, `
		select `+sessionColumns+`
		from guest_sessions
		where user_id = $1 and status = 'active'
		order by started_at desc
		limit 1
	`, userID))
}

func (s *Store) ListActiveSessions(ctx context.Context) ([]domain.GuestSession, error) {
	rows, err := s.pool.Query(ctx, `
		select `+sessionColumns+`
		from guest_sessions
		where status = 'active'
		order by started_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.GuestSession{}
	for rows.Next() {
		gs, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, gs)
	}
	return out, rows.Err()
}

func (s *Store) OrdersForSession(ctx context.Context, sessionID uuid.UUID) ([]domain.Order, error) {
	return queryOrders(ctx, s.pool, ` where o.session_id = $1 order by o.created_at, o.id`, sessionID)
}

func (s *Store) MarkBillRequested(ctx context.Context, id uuid.UUID, at time.Time) (domain.GuestSession, error) {
	gs, err := scanSession(s.pool.QueryRow(ctx, `
		update guest_sessions set bill_requested_at = $2
		where id = $1 and status = 'active'
		returning `+sessionColumns, id, at))
	if errors.Is(err, domain.ErrRecordNotFound) {
		return domain.GuestSession{}, missingOrStale(ctx, s.pool, "guest_sessions", id)
	}
	return gs, err
}
