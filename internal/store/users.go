package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/photoatlas/backend/internal/db"
	"github.com/photoatlas/backend/internal/models"
)

const userColumns = `id, name, email, password, role, status_access, permissions, created_at, updated_at`

// UserStore persists local dashboard accounts.
type UserStore struct {
	db *db.Manager
}

func NewUserStore(manager *db.Manager) *UserStore {
	return &UserStore{db: manager}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.Password, &u.Role,
		&u.StatusAccess, &u.Permissions, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &u, nil
}

// Create inserts a new account. Name and email are both unique;
// a violation of either maps to ErrDuplicate.
func (s *UserStore) Create(ctx context.Context, u *models.User) error {
	pool, err := s.db.Acquire(ctx)
	if err != nil {
		return err
	}

	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	if u.StatusAccess == "" {
		u.StatusAccess = models.StatusPending
	}
	if u.Permissions == nil {
		u.Permissions = []string{}
	}

	err = pool.QueryRow(ctx, `
		INSERT INTO users (id, name, email, password, role, status_access, permissions)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, u.ID, u.Name, u.Email, u.Password, u.Role, u.StatusAccess, u.Permissions,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

func (s *UserStore) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	pool, err := s.db.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return scanUser(pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (s *UserStore) GetByName(ctx context.Context, name string) (*models.User, error) {
	pool, err := s.db.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return scanUser(pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE name = $1`, name))
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	pool, err := s.db.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return scanUser(pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = lower($1)`, email))
}

// Count returns the total number of accounts. The first registered
// account becomes the approved admin.
func (s *UserStore) Count(ctx context.Context) (int, error) {
	pool, err := s.db.Acquire(ctx)
	if err != nil {
		return 0, err
	}

	var n int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

func (s *UserStore) scanUsers(rows pgx.Rows) ([]models.User, error) {
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(
			&u.ID, &u.Name, &u.Email, &u.Password, &u.Role,
			&u.StatusAccess, &u.Permissions, &u.CreatedAt, &u.UpdatedAt,
		); err != nil {
			return nil, err
		}
		u.Password = ""
		users = append(users, u)
	}

	return users, rows.Err()
}

// List returns all non-admin accounts, password cleared.
func (s *UserStore) List(ctx context.Context) ([]models.User, error) {
	pool, err := s.db.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE role <> $1 ORDER BY created_at DESC`,
		models.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	return s.scanUsers(rows)
}

// ListByStatus returns non-admin accounts in one approval state.
func (s *UserStore) ListByStatus(ctx context.Context, status string) ([]models.User, error) {
	pool, err := s.db.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE status_access = $1 AND role <> $2
		 ORDER BY created_at DESC`,
		status, models.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to list users by status: %w", err)
	}

	return s.scanUsers(rows)
}

// UpdateStatus moves an account between pending/approved/denied.
func (s *UserStore) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	pool, err := s.db.Acquire(ctx)
	if err != nil {
		return err
	}

	tag, err := pool.Exec(ctx,
		`UPDATE users SET status_access = $1, updated_at = now() WHERE id = $2`,
		status, id)
	if err != nil {
		return fmt.Errorf("failed to update user status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// UpdatePermissions replaces a user's page/uploader permission list.
func (s *UserStore) UpdatePermissions(ctx context.Context, name string, permissions []string) (*models.User, error) {
	pool, err := s.db.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	if permissions == nil {
		permissions = []string{}
	}

	return scanUser(pool.QueryRow(ctx, `
		UPDATE users SET permissions = $1, updated_at = now()
		WHERE name = $2
		RETURNING `+userColumns, permissions, name))
}

// UpdateDetails renames an account and optionally replaces its
// password hash (empty hash leaves the password untouched).
func (s *UserStore) UpdateDetails(ctx context.Context, id uuid.UUID, name, passwordHash string) error {
	pool, err := s.db.Acquire(ctx)
	if err != nil {
		return err
	}

	var tagErr error
	if passwordHash != "" {
		tag, err := pool.Exec(ctx,
			`UPDATE users SET name = $1, password = $2, updated_at = now() WHERE id = $3`,
			name, passwordHash, id)
		if err == nil && tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		tagErr = err
	} else {
		tag, err := pool.Exec(ctx,
			`UPDATE users SET name = $1, updated_at = now() WHERE id = $2`,
			name, id)
		if err == nil && tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		tagErr = err
	}

	if tagErr != nil {
		if isUniqueViolation(tagErr) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to update user: %w", tagErr)
	}

	return nil
}

// Delete removes an account.
func (s *UserStore) Delete(ctx context.Context, id uuid.UUID) error {
	pool, err := s.db.Acquire(ctx)
	if err != nil {
		return err
	}

	tag, err := pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
