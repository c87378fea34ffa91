// Package sync implements the Drive synchronization pipeline: list the
// remote files an identity can see, dedupe against stored records,
// download new files, extract embedded metadata, reverse-geocode and
// persist. Individual files fail independently; only authentication,
// authorization and listing failures abort a run.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/photoatlas/backend/internal/drive"
	"github.com/photoatlas/backend/internal/geocode"
	"github.com/photoatlas/backend/internal/metadata"
	"github.com/photoatlas/backend/internal/metrics"
	"github.com/photoatlas/backend/internal/models"
	"github.com/photoatlas/backend/internal/store"
)

// Terminal failures of a run. Everything else is absorbed into the
// per-file counters.
var (
	ErrUnauthenticated = errors.New("no authenticated identity")
	ErrUnauthorized    = errors.New("email is not on the allow-list")
	ErrListingFailed   = errors.New("drive listing failed")
)

// DefaultWorkers bounds per-file parallelism when sync.workers is not
// configured.
const DefaultWorkers = 4

// ImageRepository is the persistence boundary the pipeline writes to.
// Create must enforce file-ID uniqueness itself and report a clash as
// store.ErrDuplicate: the Exists check and the insert are not atomic.
type ImageRepository interface {
	Exists(ctx context.Context, fileID string) (bool, error)
	Create(ctx context.Context, img *models.Image) error
}

// AllowList gates which identities may sync.
type AllowList interface {
	IsAllowed(ctx context.Context, email string) (bool, error)
}

// Summary is the advisory outcome of a run. A partially failed run
// still leaves every processed file durably stored.
type Summary struct {
	Total     int   `json:"total"`
	Processed int64 `json:"processed"`
	Skipped   int64 `json:"skipped"`
	Errored   int64 `json:"errored"`
}

// Service coordinates one sync run per invocation. It holds no
// cross-run state; two concurrent runs may race and rely on the
// storage-layer uniqueness constraint as the correctness backstop.
type Service struct {
	lister     drive.Lister
	downloader drive.Downloader
	extractor  metadata.Extractor
	resolver   geocode.Resolver
	images     ImageRepository
	allowList  AllowList
	workers    int
	logger     *slog.Logger

	// now is stubbed in tests to pin the wall-clock fallback.
	now func() time.Time
}

func NewService(
	lister drive.Lister,
	downloader drive.Downloader,
	extractor metadata.Extractor,
	resolver geocode.Resolver,
	images ImageRepository,
	allowList AllowList,
	workers int,
	logger *slog.Logger,
) *Service {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Service{
		lister:     lister,
		downloader: downloader,
		extractor:  extractor,
		resolver:   resolver,
		images:     images,
		allowList:  allowList,
		workers:    workers,
		logger:     logger,
		now:        time.Now,
	}
}

// Run executes one sync for the given identity.
//
// The allow-list check is the single authorization point: it runs
// exactly once, before any Drive call, and a miss aborts the run with
// ErrUnauthorized. A listing failure is terminal; per-file failures
// are counted and never escape.
func (s *Service) Run(ctx context.Context, identity models.Identity) (Summary, error) {
	email := identity.NormalizedEmail()
	if email == "" {
		metrics.SyncRunsTotal.WithLabelValues("unauthenticated").Inc()
		return Summary{}, ErrUnauthenticated
	}

	allowed, err := s.allowList.IsAllowed(ctx, email)
	if err != nil {
		metrics.SyncRunsTotal.WithLabelValues("error").Inc()
		return Summary{}, fmt.Errorf("failed to check allow-list: %w", err)
	}
	if !allowed {
		s.logger.Warn("sync refused, email not allow-listed", "email", email)
		metrics.SyncRunsTotal.WithLabelValues("unauthorized").Inc()
		return Summary{}, ErrUnauthorized
	}

	s.logger.Info("sync started", "email", email)

	files, err := s.lister.ListAll(ctx, identity.AccessToken)
	if err != nil {
		metrics.SyncRunsTotal.WithLabelValues("listing_failed").Inc()
		return Summary{}, fmt.Errorf("%w: %v", ErrListingFailed, err)
	}

	s.logger.Info("drive listing complete", "email", email, "files", len(files))

	var processed, skipped, errored int64

	jobs := make(chan models.DriveFile)
	var wg sync.WaitGroup

	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for file := range jobs {
				switch s.processFile(ctx, email, identity.AccessToken, file) {
				case outcomeProcessed:
					atomic.AddInt64(&processed, 1)
				case outcomeSkipped:
					atomic.AddInt64(&skipped, 1)
				case outcomeErrored:
					atomic.AddInt64(&errored, 1)
				}
			}
		}()
	}

	for _, file := range files {
		jobs <- file
	}
	close(jobs)
	wg.Wait()

	summary := Summary{
		Total:     len(files),
		Processed: atomic.LoadInt64(&processed),
		Skipped:   atomic.LoadInt64(&skipped),
		Errored:   atomic.LoadInt64(&errored),
	}

	metrics.SyncRunsTotal.WithLabelValues("completed").Inc()
	s.logger.Info("sync completed",
		"email", email,
		"total", summary.Total,
		"processed", summary.Processed,
		"skipped", summary.Skipped,
		"errored", summary.Errored,
	)

	return summary, nil
}

type outcome int

const (
	outcomeProcessed outcome = iota
	outcomeSkipped
	outcomeErrored
)

// processFile runs the per-file pipeline: dedup check, download,
// metadata extraction, geocoding, persist. Every failure is local to
// this file.
func (s *Service) processFile(ctx context.Context, email, accessToken string, file models.DriveFile) outcome {
	exists, err := s.images.Exists(ctx, file.ID)
	if err != nil {
		s.logger.Error("existence check failed", "file_id", file.ID, "error", err)
		metrics.SyncFilesTotal.WithLabelValues("errored").Inc()
		return outcomeErrored
	}
	if exists {
		metrics.SyncFilesTotal.WithLabelValues("skipped").Inc()
		return outcomeSkipped
	}

	data, err := s.downloader.Download(ctx, file.ID, accessToken)
	if err != nil {
		s.logger.Error("download failed", "file_id", file.ID, "name", file.Name, "error", err)
		metrics.SyncFilesTotal.WithLabelValues("errored").Inc()
		return outcomeErrored
	}

	meta := s.extractor.Extract(data, file.MimeType)

	// Capture-time fallback: embedded time, then the time Drive
	// reports the file was created, then the processing wall clock.
	takenAt := s.now()
	if meta.CapturedAt != nil {
		takenAt = *meta.CapturedAt
	} else if !file.CreatedTime.IsZero() {
		takenAt = file.CreatedTime
	}

	var place models.Place
	if meta.HasCoordinates() {
		place = s.resolver.Resolve(ctx, *meta.Latitude, *meta.Longitude)
		if place == (models.Place{}) {
			metrics.GeocodeLookupsTotal.WithLabelValues("empty").Inc()
		} else {
			metrics.GeocodeLookupsTotal.WithLabelValues("resolved").Inc()
		}
	}

	checkedAt := s.now()
	img := &models.Image{
		FileID:        file.ID,
		Name:          file.Name,
		MimeType:      file.MimeType,
		ImageData:     data,
		Latitude:      meta.Latitude,
		Longitude:     meta.Longitude,
		TakenAt:       takenAt,
		UploadedBy:    email,
		District:      place.District,
		Tehsil:        place.Tehsil,
		Village:       place.Village,
		Country:       place.Country,
		LastCheckedAt: &checkedAt,
	}

	if err := s.images.Create(ctx, img); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			// Lost the race against a concurrent sync; the file is
			// stored, just not by us.
			metrics.SyncFilesTotal.WithLabelValues("skipped").Inc()
			return outcomeSkipped
		}
		s.logger.Error("persist failed", "file_id", file.ID, "name", file.Name, "error", err)
		metrics.SyncFilesTotal.WithLabelValues("errored").Inc()
		return outcomeErrored
	}

	metrics.SyncFilesTotal.WithLabelValues("processed").Inc()
	return outcomeProcessed
}
