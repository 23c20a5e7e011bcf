package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"adminkit.org/internal/audit"
	"adminkit.org/internal/ids"
)

var _ audit.Store = (*Store)(nil)

func (s *Store) Insert(ctx context.Context, in audit.Input) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	detailsJSON := []byte("{}")
	if len(in.Details) > 0 {
		bytes, err := json.Marshal(in.Details)
		if err != nil {
			return fmt.Errorf("marshal details: %w", err)
		}
		detailsJSON = bytes
	}
	var actor sql.NullString
	if in.ActorID != nil && *in.ActorID != "" {
		actor = sql.NullString{String: *in.ActorID, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		insert into audit_logs (id, actor_id, module, action, entity_type, entity_id, details, request_id, ip, user_agent)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, ids.New(), actor, in.Module, in.Action, nullIfEmpty(in.EntityType), nullIfEmpty(in.EntityID),
		detailsJSON, nullIfEmpty(in.RequestID), nullIfEmpty(in.IP), nullIfEmpty(in.UserAgent))
	return err
}

func (s *Store) Query(ctx context.Context, f audit.Filters) ([]audit.Entry, int64, error) {
	if s.db == nil {
		return nil, 0, errors.New("database connection unavailable")
	}

	where, args := auditFilterClauses(f)

	var total int64
	countQuery := `select count(*) from audit_logs` + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		select id, actor_id, module, action, entity_type, entity_id, details, request_id, ip, user_agent, created_at
		from audit_logs%s
		order by created_at desc
		limit $%d offset $%d
	`, where, len(args)+1, len(args)+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var (
			e          audit.Entry
			actor      sql.NullString
			entityType sql.NullString
			entityID   sql.NullString
			requestID  sql.NullString
			ip         sql.NullString
			userAgent  sql.NullString
			rawDetails []byte
		)
		if err := rows.Scan(&e.ID, &actor, &e.Module, &e.Action, &entityType, &entityID, &rawDetails, &requestID, &ip, &userAgent, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		if actor.Valid {
			a := actor.String
			e.ActorID = &a
		}
		if entityType.Valid {
			e.EntityType = entityType.String
		}
		if entityID.Valid {
			e.EntityID = entityID.String
		}
		if requestID.Valid {
			e.RequestID = requestID.String
		}
		if ip.Valid {
			e.IP = ip.String
		}
		if userAgent.Valid {
			e.UserAgent = userAgent.String
		}
		if len(rawDetails) > 0 {
			if err := json.Unmarshal(rawDetails, &e.Details); err != nil {
				return nil, 0, fmt.Errorf("decode details: %w", err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (s *Store) Aggregate(ctx context.Context, f audit.Filters, topN int) (audit.Stats, error) {
	if s.db == nil {
		return audit.Stats{}, errors.New("database connection unavailable")
	}
	stats := audit.Stats{
		ActionBreakdown: map[string]int64{},
		ModuleBreakdown: map[string]int64{},
	}

	where, args := auditFilterClauses(f)

	countQuery := `select count(*) from audit_logs` + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&stats.TotalLogs); err != nil {
		return audit.Stats{}, err
	}

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`select action, count(*) from audit_logs%s group by action`, where), args...)
	if err != nil {
		return audit.Stats{}, err
	}
	if err := scanBreakdown(rows, stats.ActionBreakdown); err != nil {
		return audit.Stats{}, err
	}

	rows, err = s.db.QueryContext(ctx,
		fmt.Sprintf(`select module, count(*) from audit_logs%s group by module`, where), args...)
	if err != nil {
		return audit.Stats{}, err
	}
	if err := scanBreakdown(rows, stats.ModuleBreakdown); err != nil {
		return audit.Stats{}, err
	}

	actorWhere := " where actor_id is not null"
	if where != "" {
		actorWhere = where + " and actor_id is not null"
	}
	topQuery := fmt.Sprintf(`
		select actor_id, count(*) as cnt
		from audit_logs%s
		group by actor_id
		order by cnt desc
		limit $%d
	`, actorWhere, len(args)+1)
	rows, err = s.db.QueryContext(ctx, topQuery, append(args, topN)...)
	if err != nil {
		return audit.Stats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var ua audit.UserActivity
		if err := rows.Scan(&ua.ActorID, &ua.Count); err != nil {
			return audit.Stats{}, err
		}
		stats.TopUsers = append(stats.TopUsers, ua)
	}
	if err := rows.Err(); err != nil {
		return audit.Stats{}, err
	}
	return stats, nil
}

func auditFilterClauses(f audit.Filters) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if f.Module != "" {
		add("module = $%d", f.Module)
	}
	if f.Action != "" {
		add("action = $%d", f.Action)
	}
	if f.ActorID != "" {
		add("actor_id = $%d", f.ActorID)
	}
	if f.EntityType != "" {
		add("entity_type = $%d", f.EntityType)
	}
	if f.EntityID != "" {
		add("entity_id = $%d", f.EntityID)
	}
	if f.RequestID != "" {
		add("request_id = $%d", f.RequestID)
	}
	if f.StartDate != nil {
		add("created_at >= $%d", *f.StartDate)
	}
	if f.EndDate != nil {
		add("created_at <= $%d", *f.EndDate)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " where " + strings.Join(clauses, " and "), args
}

func scanBreakdown(rows *sql.Rows, into map[string]int64) error {
	defer rows.Close()
	for rows.Next() {
		var (
			key   string
			count int64
		)
		if err := rows.Scan(&key, &count); err != nil {
			return err
		}
		into[key] = count
	}
	return rows.Err()
}
