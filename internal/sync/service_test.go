package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photoatlas/backend/internal/metadata"
	"github.com/photoatlas/backend/internal/models"
	"github.com/photoatlas/backend/internal/store"
)

// --- fakes ---

type fakeLister struct {
	files []models.DriveFile
	err   error
	calls int
}

func (f *fakeLister) ListAll(ctx context.Context, accessToken string) ([]models.DriveFile, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.files, nil
}

type fakeDownloader struct {
	errs map[string]error
}

func (f *fakeDownloader) Download(ctx context.Context, fileID, accessToken string) ([]byte, error) {
	if err := f.errs[fileID]; err != nil {
		return nil, err
	}
	return []byte(fileID + "-bytes"), nil
}

// fakeExtractor returns canned metadata keyed by downloaded content.
type fakeExtractor struct {
	metas map[string]metadata.Metadata
}

func (f *fakeExtractor) Extract(data []byte, mimeType string) metadata.Metadata {
	return f.metas[string(data)]
}

type fakeResolver struct {
	place models.Place
	calls int
}

func (f *fakeResolver) Resolve(ctx context.Context, lat, lng float64) models.Place {
	f.calls++
	return f.place
}

// memRepo is an in-memory ImageRepository that enforces file-ID
// uniqueness the way the database does.
type memRepo struct {
	mu        gosync.Mutex
	images    map[string]*models.Image
	createErr error
}

func newMemRepo() *memRepo {
	return &memRepo{images: make(map[string]*models.Image)}
}

func (r *memRepo) Exists(ctx context.Context, fileID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.images[fileID]
	return ok, nil
}

func (r *memRepo) Create(ctx context.Context, img *models.Image) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if _, ok := r.images[img.FileID]; ok {
		return store.ErrDuplicate
	}
	cp := *img
	r.images[img.FileID] = &cp
	return nil
}

func (r *memRepo) get(fileID string) *models.Image {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.images[fileID]
}

func (r *memRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.images)
}

type fakeAllowList struct {
	allowed map[string]bool
	err     error
}

func (f *fakeAllowList) IsAllowed(ctx context.Context, email string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.allowed[email], nil
}

// --- helpers ---

func jpegFile(id, name string, created time.Time) models.DriveFile {
	return models.DriveFile{ID: id, Name: name, MimeType: "image/jpeg", CreatedTime: created}
}

type fixture struct {
	lister     *fakeLister
	downloader *fakeDownloader
	extractor  *fakeExtractor
	resolver   *fakeResolver
	repo       *memRepo
	allowList  *fakeAllowList
	svc        *Service
}

func newFixture(files ...models.DriveFile) *fixture {
	f := &fixture{
		lister:     &fakeLister{files: files},
		downloader: &fakeDownloader{errs: map[string]error{}},
		extractor:  &fakeExtractor{metas: map[string]metadata.Metadata{}},
		resolver:   &fakeResolver{},
		repo:       newMemRepo(),
		allowList:  &fakeAllowList{allowed: map[string]bool{"a@x.com": true}},
	}
	f.svc = NewService(f.lister, f.downloader, f.extractor, f.resolver,
		f.repo, f.allowList, 2, slog.Default())
	return f
}

func identity() models.Identity {
	return models.Identity{Email: "a@x.com", AccessToken: "tok-123"}
}

// --- tests ---

func TestRun_RequiresIdentity(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Run(context.Background(), models.Identity{})

	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Zero(t, f.lister.calls, "no drive calls without an identity")
}

func TestRun_RefusesUnlistedEmail(t *testing.T) {
	f := newFixture(jpegFile("f1", "one.jpg", time.Now()))

	_, err := f.svc.Run(context.Background(), models.Identity{
		Email:       "intruder@y.com",
		AccessToken: "tok-123",
	})

	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Zero(t, f.lister.calls, "authorization is checked before listing")
}

func TestRun_AllowListIsCaseInsensitive(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Run(context.Background(), models.Identity{
		Email:       "A@X.Com",
		AccessToken: "tok-123",
	})

	require.NoError(t, err)
}

func TestRun_ListingFailureIsTerminal(t *testing.T) {
	f := newFixture()
	f.lister.err = errors.New("drive is down")

	summary, err := f.svc.Run(context.Background(), identity())

	assert.ErrorIs(t, err, ErrListingFailed)
	assert.Zero(t, summary.Total)
	assert.Zero(t, f.repo.count(), "no partial sync after a listing failure")
}

func TestRun_EndToEnd(t *testing.T) {
	created := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	f := newFixture(jpegFile("f1", "pic.jpg", created))

	lat, lng := 31.5, 74.3
	shot := time.Date(2024, 3, 9, 17, 30, 0, 0, time.UTC)
	f.extractor.metas["f1-bytes"] = metadata.Metadata{
		Latitude:   &lat,
		Longitude:  &lng,
		CapturedAt: &shot,
	}
	f.resolver.place = models.Place{District: "Lahore", Country: "Pakistan"}

	summary, err := f.svc.Run(context.Background(), identity())
	require.NoError(t, err)

	assert.Equal(t, Summary{Total: 1, Processed: 1}, summary)

	img := f.repo.get("f1")
	require.NotNil(t, img)
	assert.Equal(t, "a@x.com", img.UploadedBy)
	assert.Equal(t, "pic.jpg", img.Name)
	assert.Equal(t, []byte("f1-bytes"), img.ImageData)
	require.True(t, img.HasCoordinates())
	assert.Equal(t, 31.5, *img.Latitude)
	assert.Equal(t, 74.3, *img.Longitude)
	assert.Equal(t, shot, img.TakenAt, "embedded capture time wins")
	assert.Equal(t, "Lahore", img.District)
	assert.Equal(t, "Pakistan", img.Country)
	assert.Equal(t, "", img.Tehsil)
	assert.NotNil(t, img.LastCheckedAt)
}

func TestRun_IsIdempotent(t *testing.T) {
	f := newFixture(
		jpegFile("f1", "one.jpg", time.Now()),
		jpegFile("f2", "two.jpg", time.Now()),
	)

	first, err := f.svc.Run(context.Background(), identity())
	require.NoError(t, err)
	assert.Equal(t, int64(2), first.Processed)

	second, err := f.svc.Run(context.Background(), identity())
	require.NoError(t, err)

	assert.Equal(t, int64(0), second.Processed)
	assert.Equal(t, int64(2), second.Skipped, "replay skips every file")
	assert.Equal(t, 2, f.repo.count())
}

func TestRun_IsolatesPerFileFailures(t *testing.T) {
	f := newFixture(
		jpegFile("f1", "one.jpg", time.Now()),
		jpegFile("f2", "two.jpg", time.Now()),
		jpegFile("f3", "three.jpg", time.Now()),
	)
	f.downloader.errs["f2"] = errors.New("connection reset")

	summary, err := f.svc.Run(context.Background(), identity())
	require.NoError(t, err, "per-file failures never escape Run")

	assert.Equal(t, int64(2), summary.Processed)
	assert.Equal(t, int64(1), summary.Errored)
	assert.NotNil(t, f.repo.get("f1"))
	assert.Nil(t, f.repo.get("f2"))
	assert.NotNil(t, f.repo.get("f3"))
}

func TestRun_TimestampFallbacks(t *testing.T) {
	created := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	wallClock := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	f := newFixture(
		jpegFile("with-created", "a.jpg", created),
		models.DriveFile{ID: "bare", Name: "b.jpg", MimeType: "image/jpeg"},
	)
	f.svc.now = func() time.Time { return wallClock }

	_, err := f.svc.Run(context.Background(), identity())
	require.NoError(t, err)

	assert.Equal(t, created, f.repo.get("with-created").TakenAt,
		"no embedded time falls back to the Drive-reported creation time")
	assert.Equal(t, wallClock, f.repo.get("bare").TakenAt,
		"no time at all falls back to the processing wall clock")
}

func TestRun_SkipsGeocodingWithoutCoordinates(t *testing.T) {
	f := newFixture(jpegFile("f1", "one.jpg", time.Now()))

	summary, err := f.svc.Run(context.Background(), identity())
	require.NoError(t, err)

	assert.Equal(t, int64(1), summary.Processed)
	assert.Zero(t, f.resolver.calls)

	img := f.repo.get("f1")
	require.NotNil(t, img)
	assert.False(t, img.HasCoordinates())
	assert.Equal(t, models.Place{}, models.Place{
		District: img.District, Tehsil: img.Tehsil,
		Village: img.Village, Country: img.Country,
	})
}

func TestRun_GeocodeDegradationStillPersists(t *testing.T) {
	f := newFixture(jpegFile("f1", "one.jpg", time.Now()))

	lat, lng := 31.5, 74.3
	f.extractor.metas["f1-bytes"] = metadata.Metadata{Latitude: &lat, Longitude: &lng}
	// resolver returns the zero Place, as it does on any failure

	summary, err := f.svc.Run(context.Background(), identity())
	require.NoError(t, err)

	assert.Equal(t, int64(1), summary.Processed)
	img := f.repo.get("f1")
	require.NotNil(t, img)
	assert.True(t, img.HasCoordinates())
	assert.Equal(t, "", img.District)
	assert.Equal(t, "", img.Country)
}

func TestRun_DuplicateInsertCountsAsSkip(t *testing.T) {
	f := newFixture(jpegFile("f1", "one.jpg", time.Now()))
	f.repo.createErr = store.ErrDuplicate

	summary, err := f.svc.Run(context.Background(), identity())
	require.NoError(t, err)

	assert.Equal(t, int64(1), summary.Skipped, "losing the insert race is not an error")
	assert.Equal(t, int64(0), summary.Errored)
}

func TestRun_OtherPersistErrorCountsAsErrored(t *testing.T) {
	f := newFixture(jpegFile("f1", "one.jpg", time.Now()))
	f.repo.createErr = errors.New("disk full")

	summary, err := f.svc.Run(context.Background(), identity())
	require.NoError(t, err)

	assert.Equal(t, int64(1), summary.Errored)
	assert.Equal(t, int64(0), summary.Processed)
}

func TestRun_ConcurrentRunsStoreExactlyOnce(t *testing.T) {
	repo := newMemRepo()
	allow := &fakeAllowList{allowed: map[string]bool{"a@x.com": true}}
	files := []models.DriveFile{jpegFile("f1", "one.jpg", time.Now())}

	newSvc := func() *Service {
		return NewService(
			&fakeLister{files: files},
			&fakeDownloader{errs: map[string]error{}},
			&fakeExtractor{metas: map[string]metadata.Metadata{}},
			&fakeResolver{},
			repo, allow, 2, slog.Default(),
		)
	}

	var wg gosync.WaitGroup
	summaries := make([]Summary, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := newSvc().Run(context.Background(), identity())
			assert.NoError(t, err)
			summaries[i] = s
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, repo.count(), "exactly one record survives the race")

	var processed, skipped, errored int64
	for _, s := range summaries {
		processed += s.Processed
		skipped += s.Skipped
		errored += s.Errored
	}
	assert.Equal(t, int64(1), processed)
	assert.Equal(t, int64(1), skipped, "the losing run observes a skip, not an error")
	assert.Equal(t, int64(0), errored)
}

func TestRun_AllowListFailureAbortsRun(t *testing.T) {
	f := newFixture(jpegFile("f1", "one.jpg", time.Now()))
	f.allowList.err = fmt.Errorf("database unavailable")

	_, err := f.svc.Run(context.Background(), identity())

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthorized)
	assert.Zero(t, f.lister.calls)
}
