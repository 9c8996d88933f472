package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	authcore "github.com/ampara-edu/authcore"
)

const queryTimeout = 3 * time.Second

// Directory implements [authcore.Directory] over a pgx pool.
type Directory struct {
	pool *pgxpool.Pool
}

// NewDirectory wraps an existing pool. The caller owns the pool's lifecycle.
func NewDirectory(pool *pgxpool.Pool) *Directory {
	return &Directory{pool: pool}
}

const userColumns = `
	u.id, u.email, u.given_name, u.family_name,
	u.password_hash, u.active, u.role_id, r.name, u.last_login_at`

func (d *Directory) scanUser(row pgx.Row) (*authcore.UserRecord, error) {
	var u authcore.UserRecord
	var lastLogin *time.Time
	err := row.Scan(
		&u.ID, &u.Email, &u.GivenName, &u.FamilyName,
		&u.PasswordHash, &u.Active, &u.RoleID, &u.RoleName, &lastLogin,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, authcore.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: scan user: %w", err)
	}
	if lastLogin != nil {
		u.LastLoginAt = *lastLogin
	}
	return &u, nil
}

// FindUserByEmail returns the user with the given (already normalized)
// email, active or not.
func (d *Directory) FindUserByEmail(ctx context.Context, email string) (*authcore.UserRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := d.pool.QueryRow(ctx, `
		SELECT`+userColumns+`
		FROM users u
		JOIN roles r ON r.id = u.role_id
		WHERE lower(u.email) = $1`, email)
	return d.scanUser(row)
}

// FindUserByID returns the user with the given ID, active or not.
func (d *Directory) FindUserByID(ctx context.Context, id string) (*authcore.UserRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := d.pool.QueryRow(ctx, `
		SELECT`+userColumns+`
		FROM users u
		JOIN roles r ON r.id = u.role_id
		WHERE u.id = $1`, id)
	return d.scanUser(row)
}

// RoleModules returns the permission codes granted to a role. An unknown
// role yields an empty list.
func (d *Directory) RoleModules(ctx context.Context, roleID string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := d.pool.Query(ctx, `
		SELECT module_code FROM role_modules WHERE role_id = $1`, roleID)
	if err != nil {
		return nil, fmt.Errorf("postgres: role modules: %w", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("postgres: role modules: %w", err)
		}
		codes = append(codes, code)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: role modules: %w", err)
	}
	return codes, nil
}

// UpdateLastLogin stamps the user's last successful login.
func (d *Directory) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := d.pool.Exec(ctx, `
		UPDATE users SET last_login_at = $2 WHERE id = $1`, userID, at)
	if err != nil {
		return fmt.Errorf("postgres: update last login: %w", err)
	}
	return nil
}

// UpdatePasswordHash replaces the stored digest, used by the upgrade-on-login
// path.
func (d *Directory) UpdatePasswordHash(ctx context.Context, userID, newHash string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := d.pool.Exec(ctx, `
		UPDATE users SET password_hash = $2 WHERE id = $1`, userID, newHash)
	if err != nil {
		return fmt.Errorf("postgres: update password hash: %w", err)
	}
	return nil
}
