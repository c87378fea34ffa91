package store

import (
	"context"
	"fmt"
)

// PeriodStat is one grouped row of the time-bucketed statistics:
// images per period per uploader.
type PeriodStat struct {
	Period     string `json:"period"`
	UploadedBy string `json:"uploadedBy"`
	Count      int    `json:"count"`
}

// DistrictStat counts images per resolved district.
type DistrictStat struct {
	District string `json:"district"`
	Count    int    `json:"count"`
}

// Time bucket layouts for StatsByPeriod, in Postgres to_char format.
const (
	PeriodMonth = "YYYY-MM"
	PeriodYear  = "YYYY"
	PeriodDay   = "YYYY-MM-DD"
)

// StatsByPeriod groups stored images by capture-time bucket and
// uploader. layout must be one of the Period* constants.
func (s *ImageStore) StatsByPeriod(ctx context.Context, layout string) ([]PeriodStat, error) {
	switch layout {
	case PeriodMonth, PeriodYear, PeriodDay:
	default:
		return nil, fmt.Errorf("unsupported period layout %q", layout)
	}

	pool, err := s.db.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT to_char(taken_at, '%s') AS period, uploaded_by, COUNT(*)
		FROM images
		GROUP BY period, uploaded_by
		ORDER BY period
	`, layout)

	rows, err := pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query period stats: %w", err)
	}
	defer rows.Close()

	var stats []PeriodStat
	for rows.Next() {
		var st PeriodStat
		if err := rows.Scan(&st.Period, &st.UploadedBy, &st.Count); err != nil {
			return nil, err
		}
		stats = append(stats, st)
	}

	return stats, rows.Err()
}

// Count returns the total number of stored images.
func (s *ImageStore) Count(ctx context.Context) (int, error) {
	pool, err := s.db.Acquire(ctx)
	if err != nil {
		return 0, err
	}

	var n int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM images`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count images: %w", err)
	}
	return n, nil
}

// CountGeotagged returns how many records carry a coordinate pair.
func (s *ImageStore) CountGeotagged(ctx context.Context) (int, error) {
	pool, err := s.db.Acquire(ctx)
	if err != nil {
		return 0, err
	}

	var n int
	err = pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM images WHERE latitude IS NOT NULL AND longitude IS NOT NULL`,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count geotagged images: %w", err)
	}
	return n, nil
}

// TopDistricts returns the districts with the most images, resolved
// districts only.
func (s *ImageStore) TopDistricts(ctx context.Context, limit int) ([]DistrictStat, error) {
	pool, err := s.db.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, `
		SELECT district, COUNT(*)
		FROM images
		WHERE district <> ''
		GROUP BY district
		ORDER BY COUNT(*) DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top districts: %w", err)
	}
	defer rows.Close()

	var stats []DistrictStat
	for rows.Next() {
		var st DistrictStat
		if err := rows.Scan(&st.District, &st.Count); err != nil {
			return nil, err
		}
		stats = append(stats, st)
	}

	return stats, rows.Err()
}

// CountUploaders returns the number of distinct syncing identities.
func (s *ImageStore) CountUploaders(ctx context.Context) (int, error) {
	pool, err := s.db.Acquire(ctx)
	if err != nil {
		return 0, err
	}

	var n int
	err = pool.QueryRow(ctx, `SELECT COUNT(DISTINCT uploaded_by) FROM images`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count uploaders: %w", err)
	}
	return n, nil
}
