package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"adminkit.org/internal/ids"
	"adminkit.org/internal/rbac"
)

var _ rbac.Store = (*Store)(nil)

func (s *Store) CreateUser(ctx context.Context, email, passwordHash, firstName, lastName string) (rbac.User, error) {
	if s.db == nil {
		return rbac.User{}, errors.New("database connection unavailable")
	}
	var user rbac.User
	row := s.db.QueryRowContext(ctx, `
		insert into users (id, email, password_hash, first_name, last_name)
		values ($1, $2, $3, $4, $5)
		returning id, email, password_hash, first_name, last_name, email_verified_at, created_at, updated_at
	`, ids.New(), email, passwordHash, firstName, lastName)
	if err := scanUser(row, &user); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return rbac.User{}, rbac.ErrConflict
		}
		return rbac.User{}, err
	}
	return user, nil
}

func (s *Store) GetUser(ctx context.Context, userID string) (rbac.User, error) {
	if s.db == nil {
		return rbac.User{}, errors.New("database connection unavailable")
	}
	var user rbac.User
	row := s.db.QueryRowContext(ctx, `
		select id, email, password_hash, first_name, last_name, email_verified_at, created_at, updated_at
		from users
		where id = $1
	`, userID)
	if err := scanUser(row, &user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rbac.User{}, rbac.ErrNotFound
		}
		return rbac.User{}, err
	}
	return user, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (rbac.User, error) {
	if s.db == nil {
		return rbac.User{}, errors.New("database connection unavailable")
	}
	var user rbac.User
	row := s.db.QueryRowContext(ctx, `
		select id, email, password_hash, first_name, last_name, email_verified_at, created_at, updated_at
		from users
		where email = $1
	`, email)
	if err := scanUser(row, &user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rbac.User{}, rbac.ErrNotFound
		}
		return rbac.User{}, err
	}
	return user, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]rbac.User, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, email, password_hash, first_name, last_name, email_verified_at, created_at, updated_at
		from users
		order by email
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []rbac.User
	for rows.Next() {
		var user rbac.User
		if err := scanUser(rows, &user); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUser(ctx context.Context, userID string, upd rbac.UserUpdate) (rbac.User, error) {
	if s.db == nil {
		return rbac.User{}, errors.New("database connection unavailable")
	}
	var (
		sets []string
		args []any
		idx  = 1
	)
	if upd.Email != nil {
		sets = append(sets, fmt.Sprintf("email = $%d", idx))
		args = append(args, *upd.Email)
		idx++
	}
	if upd.FirstName != nil {
		sets = append(sets, fmt.Sprintf("first_name = $%d", idx))
		args = append(args, *upd.FirstName)
		idx++
	}
	if upd.LastName != nil {
		sets = append(sets, fmt.Sprintf("last_name = $%d", idx))
		args = append(args, *upd.LastName)
		idx++
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = now()")
		query := fmt.Sprintf(`update users set %s where id = $%d`, strings.Join(sets, ", "), idx)
		args = append(args, userID)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
				return rbac.User{}, rbac.ErrConflict
			}
			return rbac.User{}, err
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return rbac.User{}, err
		}
		if aff == 0 {
			return rbac.User{}, rbac.ErrNotFound
		}
	}
	return s.GetUser(ctx, userID)
}

func (s *Store) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `
		update users set password_hash = $2, updated_at = now()
		where id = $1
	`, userID, passwordHash)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return rbac.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `delete from users where id = $1`, userID)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return rbac.ErrNotFound
	}
	return nil
}

func (s *Store) CreateRole(ctx context.Context, name, description string) (rbac.Role, error) {
	if s.db == nil {
		return rbac.Role{}, errors.New("database connection unavailable")
	}
	var (
		role rbac.Role
		desc sql.NullString
	)
	row := s.db.QueryRowContext(ctx, `
		insert into roles (id, name, description)
		values ($1, $2, $3)
		returning id, name, description, created_at, updated_at
	`, ids.New(), name, nullIfEmpty(description))
	if err := row.Scan(&role.ID, &role.Name, &desc, &role.CreatedAt, &role.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return rbac.Role{}, rbac.ErrConflict
		}
		return rbac.Role{}, err
	}
	if desc.Valid {
		role.Description = desc.String
	}
	return role, nil
}

func (s *Store) GetRole(ctx context.Context, roleID string) (rbac.Role, error) {
	if s.db == nil {
		return rbac.Role{}, errors.New("database connection unavailable")
	}
	var (
		role rbac.Role
		desc sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		select id, name, description, created_at, updated_at
		from roles
		where id = $1
	`, roleID).Scan(&role.ID, &role.Name, &desc, &role.CreatedAt, &role.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return rbac.Role{}, rbac.ErrNotFound
	}
	if err != nil {
		return rbac.Role{}, err
	}
	if desc.Valid {
		role.Description = desc.String
	}
	return role, nil
}

func (s *Store) ListRoles(ctx context.Context) ([]rbac.Role, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, name, description, created_at, updated_at
		from roles
		order by name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []rbac.Role
	for rows.Next() {
		var (
			role rbac.Role
			desc sql.NullString
		)
		if err := rows.Scan(&role.ID, &role.Name, &desc, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		if desc.Valid {
			role.Description = desc.String
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

func (s *Store) UpdateRole(ctx context.Context, roleID string, upd rbac.RoleUpdate) (rbac.Role, error) {
	if s.db == nil {
		return rbac.Role{}, errors.New("database connection unavailable")
	}
	var (
		sets []string
		args []any
		idx  = 1
	)
	if upd.Name != nil {
		sets = append(sets, fmt.Sprintf("name = $%d", idx))
		args = append(args, *upd.Name)
		idx++
	}
	if upd.Description != nil {
		if *upd.Description == "" {
			sets = append(sets, "description = NULL")
		} else {
			sets = append(sets, fmt.Sprintf("description = $%d", idx))
			args = append(args, *upd.Description)
			idx++
		}
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = now()")
		query := fmt.Sprintf(`update roles set %s where id = $%d`, strings.Join(sets, ", "), idx)
		args = append(args, roleID)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
				return rbac.Role{}, rbac.ErrConflict
			}
			return rbac.Role{}, err
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return rbac.Role{}, err
		}
		if aff == 0 {
			return rbac.Role{}, rbac.ErrNotFound
		}
	}
	return s.GetRole(ctx, roleID)
}

func (s *Store) DeleteRole(ctx context.Context, roleID string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `delete from role_permissions where role_id = $1`, roleID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `delete from roles where id = $1`, roleID)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return rbac.ErrNotFound
	}
	return tx.Commit()
}

func (s *Store) CountRoleAssignments(ctx context.Context, roleID string) (int64, error) {
	if s.db == nil {
		return 0, errors.New("database connection unavailable")
	}
	var count int64
	err := s.db.QueryRowContext(ctx, `
		select count(*) from user_roles where role_id = $1
	`, roleID).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) CreatePermission(ctx context.Context, key, description string) (rbac.Permission, error) {
	if s.db == nil {
		return rbac.Permission{}, errors.New("database connection unavailable")
	}
	var (
		perm rbac.Permission
		desc sql.NullString
	)
	row := s.db.QueryRowContext(ctx, `
		insert into permissions (key, description)
		values ($1, $2)
		returning key, description, created_at
	`, key, nullIfEmpty(description))
	if err := row.Scan(&perm.Key, &desc, &perm.CreatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return rbac.Permission{}, rbac.ErrConflict
		}
		return rbac.Permission{}, err
	}
	if desc.Valid {
		perm.Description = desc.String
	}
	return perm, nil
}

func (s *Store) EnsurePermissions(ctx context.Context, perms []rbac.Permission) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	if len(perms) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, p := range perms {
		if _, err := tx.ExecContext(ctx, `
			insert into permissions (key, description)
			values ($1, $2)
			on conflict (key) do nothing
		`, p.Key, nullIfEmpty(p.Description)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) ListPermissions(ctx context.Context) ([]rbac.Permission, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select key, description, created_at
		from permissions
		order by key
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []rbac.Permission
	for rows.Next() {
		var (
			perm rbac.Permission
			desc sql.NullString
		)
		if err := rows.Scan(&perm.Key, &desc, &perm.CreatedAt); err != nil {
			return nil, err
		}
		if desc.Valid {
			perm.Description = desc.String
		}
		perms = append(perms, perm)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return perms, nil
}

func (s *Store) SetRolePermissions(ctx context.Context, roleID string, keys []string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx, `select 1 from roles where id = $1`, roleID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rbac.ErrNotFound
		}
		return err
	}

	if _, err := tx.ExecContext(ctx, `delete from role_permissions where role_id = $1`, roleID); err != nil {
		return err
	}
	for _, key := range keys {
		if _, err := tx.ExecContext(ctx, `
			insert into role_permissions (role_id, permission_key)
			values ($1, $2)
		`, roleID, key); err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
				return fmt.Errorf("%w: permission %s", rbac.ErrNotFound, key)
			}
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) PermissionsForRole(ctx context.Context, roleID string) ([]rbac.Permission, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select p.key, p.description, p.created_at
		from role_permissions rp
		join permissions p on p.key = rp.permission_key
		where rp.role_id = $1
		order by p.key
	`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []rbac.Permission
	for rows.Next() {
		var (
			perm rbac.Permission
			desc sql.NullString
		)
		if err := rows.Scan(&perm.Key, &desc, &perm.CreatedAt); err != nil {
			return nil, err
		}
		if desc.Valid {
			perm.Description = desc.String
		}
		perms = append(perms, perm)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return perms, nil
}

func (s *Store) AssignRole(ctx context.Context, userID, roleID, grantedBy string) (rbac.UserRole, error) {
	if s.db == nil {
		return rbac.UserRole{}, errors.New("database connection unavailable")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return rbac.UserRole{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx, `select 1 from users where id = $1`, userID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rbac.UserRole{}, fmt.Errorf("%w: user %s", rbac.ErrNotFound, userID)
		}
		return rbac.UserRole{}, err
	}
	if err := tx.QueryRowContext(ctx, `select 1 from roles where id = $1`, roleID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rbac.UserRole{}, fmt.Errorf("%w: role %s", rbac.ErrNotFound, roleID)
		}
		return rbac.UserRole{}, err
	}

	var (
		ur      rbac.UserRole
		granted sql.NullString
	)
	err = tx.QueryRowContext(ctx, `
		insert into user_roles (user_id, role_id, granted_by)
		values ($1, $2, $3)
		returning user_id, role_id, granted_by, created_at
	`, userID, roleID, nullIfEmpty(grantedBy)).Scan(&ur.UserID, &ur.RoleID, &granted, &ur.CreatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return rbac.UserRole{}, rbac.ErrConflict
		}
		return rbac.UserRole{}, err
	}
	if granted.Valid {
		ur.GrantedBy = granted.String
	}

	if err := tx.Commit(); err != nil {
		return rbac.UserRole{}, err
	}
	return ur, nil
}

func (s *Store) RevokeRole(ctx context.Context, userID, roleID string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `
		delete from user_roles
		where user_id = $1 and role_id = $2
	`, userID, roleID)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return rbac.ErrNotFound
	}
	return nil
}

func (s *Store) AssignmentsForUser(ctx context.Context, userID string) ([]rbac.UserRole, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select user_id, role_id, granted_by, created_at
		from user_roles
		where user_id = $1
		order by role_id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []rbac.UserRole
	for rows.Next() {
		var (
			ur      rbac.UserRole
			granted sql.NullString
		)
		if err := rows.Scan(&ur.UserID, &ur.RoleID, &granted, &ur.CreatedAt); err != nil {
			return nil, err
		}
		if granted.Valid {
			ur.GrantedBy = granted.String
		}
		assignments = append(assignments, ur)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return assignments, nil
}

func (s *Store) EffectivePermissions(ctx context.Context, userID string) ([]string, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select distinct rp.permission_key
		from user_roles ur
		join role_permissions rp on rp.role_id = ur.role_id
		where ur.user_id = $1
		order by rp.permission_key
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		perms = append(perms, key)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return perms, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner, user *rbac.User) error {
	var (
		first    sql.NullString
		last     sql.NullString
		verified sql.NullTime
	)
	if err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &first, &last, &verified, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return err
	}
	if first.Valid {
		user.FirstName = first.String
	}
	if last.Valid {
		user.LastName = last.String
	}
	if verified.Valid {
		t := verified.Time
		user.EmailVerifiedAt = &t
	}
	return nil
}
