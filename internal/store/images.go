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

// imageColumns are the metadata columns, everything except the binary
// payload. Listing endpoints never ship image_data.
const imageColumns = `id, file_id, name, mime_type, latitude, longitude, taken_at,
	uploaded_by, district, tehsil, village, country, last_checked_at, created_at`

// ImageStore persists synced Drive images in Postgres.
type ImageStore struct {
	db *db.Manager
}

func NewImageStore(manager *db.Manager) *ImageStore {
	return &ImageStore{db: manager}
}

// Exists reports whether a record for the given Drive file ID is
// already stored.
func (s *ImageStore) Exists(ctx context.Context, fileID string) (bool, error) {
	pool, err := s.db.Acquire(ctx)
	if err != nil {
		return false, err
	}

	var exists bool
	err = pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM images WHERE file_id = $1)`, fileID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check image existence: %w", err)
	}

	return exists, nil
}

// Create inserts a new image record. The unique constraint on file_id
// is the dedup backstop: a violation is mapped to ErrDuplicate, which
// callers treat as a benign skip.
func (s *ImageStore) Create(ctx context.Context, img *models.Image) error {
	pool, err := s.db.Acquire(ctx)
	if err != nil {
		return err
	}

	if img.ID == uuid.Nil {
		img.ID = uuid.New()
	}

	query := `
		INSERT INTO images (id, file_id, name, mime_type, image_data, latitude, longitude,
			taken_at, uploaded_by, district, tehsil, village, country, last_checked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err = pool.Exec(ctx, query,
		img.ID, img.FileID, img.Name, img.MimeType, img.ImageData,
		img.Latitude, img.Longitude, img.TakenAt, img.UploadedBy,
		img.District, img.Tehsil, img.Village, img.Country, img.LastCheckedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert image: %w", err)
	}

	return nil
}

// GetByID returns one record including the binary payload.
func (s *ImageStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Image, error) {
	pool, err := s.db.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + imageColumns + `, image_data FROM images WHERE id = $1`

	var img models.Image
	err = pool.QueryRow(ctx, query, id).Scan(
		&img.ID, &img.FileID, &img.Name, &img.MimeType,
		&img.Latitude, &img.Longitude, &img.TakenAt, &img.UploadedBy,
		&img.District, &img.Tehsil, &img.Village, &img.Country,
		&img.LastCheckedAt, &img.CreatedAt, &img.ImageData,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get image: %w", err)
	}

	return &img, nil
}

func (s *ImageStore) scanImages(rows pgx.Rows) ([]models.Image, error) {
	defer rows.Close()

	var images []models.Image
	for rows.Next() {
		var img models.Image
		if err := rows.Scan(
			&img.ID, &img.FileID, &img.Name, &img.MimeType,
			&img.Latitude, &img.Longitude, &img.TakenAt, &img.UploadedBy,
			&img.District, &img.Tehsil, &img.Village, &img.Country,
			&img.LastCheckedAt, &img.CreatedAt,
		); err != nil {
			return nil, err
		}
		images = append(images, img)
	}

	return images, rows.Err()
}

// ListAll returns every record without payload, newest first.
func (s *ImageStore) ListAll(ctx context.Context) ([]models.Image, error) {
	pool, err := s.db.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx,
		`SELECT `+imageColumns+` FROM images ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}

	return s.scanImages(rows)
}

// ListGeotagged returns the records that carry a coordinate pair.
func (s *ImageStore) ListGeotagged(ctx context.Context) ([]models.Image, error) {
	pool, err := s.db.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx,
		`SELECT `+imageColumns+` FROM images
		 WHERE latitude IS NOT NULL AND longitude IS NOT NULL
		 ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list geotagged images: %w", err)
	}

	return s.scanImages(rows)
}

// ListByUploader returns the records synced by one identity.
func (s *ImageStore) ListByUploader(ctx context.Context, email string) ([]models.Image, error) {
	pool, err := s.db.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx,
		`SELECT `+imageColumns+` FROM images
		 WHERE uploaded_by = lower($1)
		 ORDER BY created_at DESC`, email)
	if err != nil {
		return nil, fmt.Errorf("failed to list images by uploader: %w", err)
	}

	return s.scanImages(rows)
}

// ListRecent returns the newest records without payload.
func (s *ImageStore) ListRecent(ctx context.Context, limit int) ([]models.Image, error) {
	pool, err := s.db.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx,
		`SELECT `+imageColumns+` FROM images ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent images: %w", err)
	}

	return s.scanImages(rows)
}
