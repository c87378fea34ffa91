package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/photoatlas/backend/internal/db"
	"github.com/photoatlas/backend/internal/models"
)

// SystemAddedBy is the attribution recorded for allow-list entries not
// created by a logged-in administrator.
const SystemAddedBy = "System"

// AllowListStore is the persistent set of email addresses authorized
// to use Google-identity features. Every check hits the database so
// administrative changes take effect on the next request.
type AllowListStore struct {
	db *db.Manager
}

func NewAllowListStore(manager *db.Manager) *AllowListStore {
	return &AllowListStore{db: manager}
}

// IsAllowed reports membership, case-insensitively.
func (s *AllowListStore) IsAllowed(ctx context.Context, email string) (bool, error) {
	pool, err := s.db.Acquire(ctx)
	if err != nil {
		return false, err
	}

	var allowed bool
	err = pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM allowed_emails WHERE email = lower($1))`,
		strings.TrimSpace(email),
	).Scan(&allowed)
	if err != nil {
		return false, fmt.Errorf("failed to check allow-list: %w", err)
	}

	return allowed, nil
}

// List returns all entries, newest first.
func (s *AllowListStore) List(ctx context.Context) ([]models.AllowedEmail, error) {
	pool, err := s.db.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx,
		`SELECT id, email, added_by, created_at FROM allowed_emails ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list allowed emails: %w", err)
	}
	defer rows.Close()

	var entries []models.AllowedEmail
	for rows.Next() {
		var e models.AllowedEmail
		if err := rows.Scan(&e.ID, &e.Email, &e.AddedBy, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Add inserts a new entry, normalizing the email to lower-case.
// Returns ErrDuplicate when the email is already listed.
func (s *AllowListStore) Add(ctx context.Context, email, addedBy string) (*models.AllowedEmail, error) {
	pool, err := s.db.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	if addedBy == "" {
		addedBy = SystemAddedBy
	}

	entry := models.AllowedEmail{
		ID:      uuid.New(),
		Email:   strings.ToLower(strings.TrimSpace(email)),
		AddedBy: addedBy,
	}

	err = pool.QueryRow(ctx, `
		INSERT INTO allowed_emails (id, email, added_by)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`, entry.ID, entry.Email, entry.AddedBy).Scan(&entry.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to insert allowed email: %w", err)
	}

	return &entry, nil
}

// Remove deletes an entry by ID. Returns ErrNotFound when absent.
func (s *AllowListStore) Remove(ctx context.Context, id uuid.UUID) error {
	pool, err := s.db.Acquire(ctx)
	if err != nil {
		return err
	}

	tag, err := pool.Exec(ctx, `DELETE FROM allowed_emails WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete allowed email: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// Count returns the number of allow-list entries.
func (s *AllowListStore) Count(ctx context.Context) (int, error) {
	pool, err := s.db.Acquire(ctx)
	if err != nil {
		return 0, err
	}

	var n int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM allowed_emails`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count allowed emails: %w", err)
	}
	return n, nil
}
