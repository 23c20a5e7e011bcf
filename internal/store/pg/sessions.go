package pg

import (
	"context"
	"database/sql"
	"errors"

	"adminkit.org/internal/session"
)

var _ session.Store = (*Store)(nil)

func (s *Store) Create(ctx context.Context, rec session.Record) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	_, err := s.db.ExecContext(ctx, `
		insert into sessions (id, user_id, expires_at, created_at, ip, user_agent)
		values ($1, $2, $3, $4, $5, $6)
	`, rec.ID, rec.UserID, rec.ExpiresAt, rec.CreatedAt, nullIfEmpty(rec.IP), nullIfEmpty(rec.UserAgent))
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return session.ErrInvalidInput
			case pgErrForeignKeyViolation:
				return session.ErrNotFound
			}
		}
		return err
	}
	return nil
}

func (s *Store) ListByUser(ctx context.Context, userID string, includeExpired bool) ([]session.Record, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	query := `
		select id, user_id, expires_at, created_at, ip, user_agent
		from sessions
		where user_id = $1
	`
	if !includeExpired {
		query += ` and expires_at > now()`
	}
	query += ` order by created_at desc`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []session.Record
	for rows.Next() {
		var (
			rec session.Record
			ip  sql.NullString
			ua  sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.ExpiresAt, &rec.CreatedAt, &ip, &ua); err != nil {
			return nil, err
		}
		if ip.Valid {
			rec.IP = ip.String
		}
		if ua.Valid {
			rec.UserAgent = ua.String
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	if s.db == nil {
		return false, errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `delete from sessions where id = $1`, id)
	if err != nil {
		return false, err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return aff > 0, nil
}

func (s *Store) DeleteAllExcept(ctx context.Context, userID, keepID string) (int64, error) {
	if s.db == nil {
		return 0, errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `
		delete from sessions
		where user_id = $1 and id <> $2
	`, userID, keepID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) DeleteAll(ctx context.Context, userID string) (int64, error) {
	if s.db == nil {
		return 0, errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `delete from sessions where user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) CountActive(ctx context.Context, userID string) (int64, error) {
	if s.db == nil {
		return 0, errors.New("database connection unavailable")
	}
	var count int64
	err := s.db.QueryRowContext(ctx, `
		select count(*) from sessions
		where user_id = $1 and expires_at > now()
	`, userID).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) DeleteExpired(ctx context.Context) ([]session.Swept, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		delete from sessions
		where expires_at <= now()
		returning id, user_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var swept []session.Swept
	for rows.Next() {
		var sw session.Swept
		if err := rows.Scan(&sw.ID, &sw.UserID); err != nil {
			return nil, err
		}
		swept = append(swept, sw)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return swept, nil
}
