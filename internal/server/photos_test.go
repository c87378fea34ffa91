package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photoatlas/backend/internal/auth"
	"github.com/photoatlas/backend/internal/models"
	"github.com/photoatlas/backend/internal/store"
	"github.com/photoatlas/backend/internal/sync"
)

// --- fakes ---

type fakeSyncer struct {
	summary  sync.Summary
	err      error
	lastRun  *models.Identity
	runCalls int
}

func (f *fakeSyncer) Run(ctx context.Context, identity models.Identity) (sync.Summary, error) {
	f.runCalls++
	f.lastRun = &identity
	return f.summary, f.err
}

type fakeImages struct {
	byID   map[uuid.UUID]*models.Image
	all    []models.Image
	stats  []store.PeriodStat
	listed []models.Image
}

func (f *fakeImages) GetByID(ctx context.Context, id uuid.UUID) (*models.Image, error) {
	img, ok := f.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return img, nil
}

func (f *fakeImages) ListAll(ctx context.Context) ([]models.Image, error)       { return f.all, nil }
func (f *fakeImages) ListGeotagged(ctx context.Context) ([]models.Image, error) { return f.listed, nil }
func (f *fakeImages) ListByUploader(ctx context.Context, email string) ([]models.Image, error) {
	return f.listed, nil
}
func (f *fakeImages) ListRecent(ctx context.Context, limit int) ([]models.Image, error) {
	return f.all, nil
}
func (f *fakeImages) StatsByPeriod(ctx context.Context, layout string) ([]store.PeriodStat, error) {
	return f.stats, nil
}
func (f *fakeImages) Count(ctx context.Context) (int, error)          { return len(f.all), nil }
func (f *fakeImages) CountGeotagged(ctx context.Context) (int, error) { return len(f.listed), nil }
func (f *fakeImages) TopDistricts(ctx context.Context, limit int) ([]store.DistrictStat, error) {
	return nil, nil
}
func (f *fakeImages) CountUploaders(ctx context.Context) (int, error) { return 0, nil }

type fakeSources struct{}

func (f *fakeSources) List(ctx context.Context) ([]models.AllowedEmail, error) { return nil, nil }
func (f *fakeSources) Add(ctx context.Context, email, addedBy string) (*models.AllowedEmail, error) {
	return nil, nil
}
func (f *fakeSources) Remove(ctx context.Context, id uuid.UUID) error { return nil }
func (f *fakeSources) Count(ctx context.Context) (int, error)         { return 0, nil }

type fakeUsers struct {
	byID map[uuid.UUID]*models.User
}

func (f *fakeUsers) Create(ctx context.Context, u *models.User) error { return nil }
func (f *fakeUsers) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u, nil
}
func (f *fakeUsers) GetByName(ctx context.Context, name string) (*models.User, error) {
	return nil, store.ErrNotFound
}
func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return nil, store.ErrNotFound
}
func (f *fakeUsers) Count(ctx context.Context) (int, error)               { return 0, nil }
func (f *fakeUsers) List(ctx context.Context) ([]models.User, error)      { return nil, nil }
func (f *fakeUsers) ListByStatus(ctx context.Context, status string) ([]models.User, error) {
	return nil, nil
}
func (f *fakeUsers) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	return nil
}
func (f *fakeUsers) UpdatePermissions(ctx context.Context, name string, permissions []string) (*models.User, error) {
	return nil, store.ErrNotFound
}
func (f *fakeUsers) UpdateDetails(ctx context.Context, id uuid.UUID, name, passwordHash string) error {
	return nil
}
func (f *fakeUsers) Delete(ctx context.Context, id uuid.UUID) error { return nil }

// --- helpers ---

type testEnv struct {
	syncer *fakeSyncer
	images *fakeImages
	users  *fakeUsers
	router *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	viper.Set("jwt.secret", "unit-test-secret")
	viper.Set("frontend.url", "https://front.example")
	t.Cleanup(func() {
		viper.Set("jwt.secret", "")
		viper.Set("frontend.url", "")
	})

	env := &testEnv{
		syncer: &fakeSyncer{},
		images: &fakeImages{byID: map[uuid.UUID]*models.Image{}},
		users:  &fakeUsers{byID: map[uuid.UUID]*models.User{}},
	}
	srv := New(env.syncer, env.images, &fakeSources{}, env.users, slog.Default())
	env.router = srv.Router()
	return env
}

func identityCookie(t *testing.T) *http.Cookie {
	t.Helper()
	token, err := auth.IssueIdentityToken(models.Identity{
		Email:       "a@x.com",
		AccessToken: "tok-123",
	}, auth.IdentityTokenTTL)
	require.NoError(t, err)
	return &http.Cookie{Name: auth.IdentityCookie, Value: token}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// --- tests ---

func TestSyncImages_RequiresIdentityCookie(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/photos/sync-images", nil)
	w := env.do(req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Zero(t, env.syncer.runCalls)
}

func TestSyncImages_RejectsTamperedCookie(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/photos/sync-images", nil)
	req.AddCookie(&http.Cookie{Name: auth.IdentityCookie, Value: "tampered"})
	w := env.do(req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Zero(t, env.syncer.runCalls)
}

func TestSyncImages_RedirectsOnSuccess(t *testing.T) {
	env := newTestEnv(t)
	env.syncer.summary = sync.Summary{Total: 3, Processed: 2, Skipped: 1}

	req := httptest.NewRequest(http.MethodGet, "/photos/sync-images", nil)
	req.AddCookie(identityCookie(t))
	w := env.do(req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://front.example/home", w.Header().Get("Location"))
	require.Equal(t, 1, env.syncer.runCalls)
	assert.Equal(t, "a@x.com", env.syncer.lastRun.Email)
	assert.Equal(t, "tok-123", env.syncer.lastRun.AccessToken)
}

func TestSyncImages_HonorsRedirectOverride(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet,
		"/photos/sync-images?redirect=https://elsewhere.example/done", nil)
	req.AddCookie(identityCookie(t))
	w := env.do(req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://elsewhere.example/done", w.Header().Get("Location"))
}

func TestSyncImages_UnauthorizedRedirectsWithIndicator(t *testing.T) {
	env := newTestEnv(t)
	env.syncer.err = sync.ErrUnauthorized

	req := httptest.NewRequest(http.MethodGet, "/photos/sync-images", nil)
	req.AddCookie(identityCookie(t))
	w := env.do(req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://front.example/home?error=unauthorized", w.Header().Get("Location"))
}

func TestSyncImages_ListingFailureIs500(t *testing.T) {
	env := newTestEnv(t)
	env.syncer.err = sync.ErrListingFailed

	req := httptest.NewRequest(http.MethodGet, "/photos/sync-images", nil)
	req.AddCookie(identityCookie(t))
	w := env.do(req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Failed to sync images")
	assert.NotContains(t, w.Body.String(), "drive", "no upstream details leak to the client")
}

func TestGetImageData(t *testing.T) {
	env := newTestEnv(t)

	id := uuid.New()
	env.images.byID[id] = &models.Image{
		ID:        id,
		MimeType:  "image/jpeg",
		ImageData: []byte{0xFF, 0xD8, 0xFF},
	}

	req := httptest.NewRequest(http.MethodGet, "/photos/image-data/"+id.String(), nil)
	w := env.do(req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))
	assert.Equal(t, []byte{0xFF, 0xD8, 0xFF}, w.Body.Bytes())
}

func TestGetImageData_NotFound(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/photos/image-data/"+uuid.NewString(), nil)
	w := env.do(req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/photos/image-data/not-a-uuid", nil)
	w = env.do(req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetPhotos_ExcludesPayload(t *testing.T) {
	env := newTestEnv(t)
	env.images.all = []models.Image{{
		ID:        uuid.New(),
		FileID:    "f1",
		Name:      "pic.jpg",
		MimeType:  "image/jpeg",
		ImageData: []byte("should not appear"),
		TakenAt:   time.Date(2024, 3, 9, 17, 30, 0, 0, time.UTC),
	}}

	req := httptest.NewRequest(http.MethodGet, "/photos/get-photos", nil)
	w := env.do(req)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Photos []map[string]any `json:"photos"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Photos, 1)
	assert.Equal(t, "pic.jpg", body.Photos[0]["name"])
	assert.NotContains(t, body.Photos[0], "imageData")
	assert.NotContains(t, w.Body.String(), "should not appear")
}

func TestGetImagesByUploader_PermissionChecks(t *testing.T) {
	env := newTestEnv(t)

	plain := &models.User{
		ID: uuid.New(), Name: "bob", Email: "bob@x.com",
		Role: models.RoleUser, Permissions: []string{"carol@x.com"},
	}
	admin := &models.User{
		ID: uuid.New(), Name: "root", Email: "root@x.com", Role: models.RoleAdmin,
	}
	env.users.byID[plain.ID] = plain
	env.users.byID[admin.ID] = admin

	request := func(userID uuid.UUID, uploader string) *httptest.ResponseRecorder {
		token, err := auth.IssueUserToken(userID, auth.UserTokenTTL)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/photos/getImages/"+uploader, nil)
		req.AddCookie(&http.Cookie{Name: auth.UserCookie, Value: token})
		return env.do(req)
	}

	assert.Equal(t, http.StatusOK, request(plain.ID, "bob@x.com").Code, "own email")
	assert.Equal(t, http.StatusOK, request(plain.ID, "carol@x.com").Code, "granted permission")
	assert.Equal(t, http.StatusForbidden, request(plain.ID, "dave@x.com").Code, "no permission")
	assert.Equal(t, http.StatusOK, request(admin.ID, "dave@x.com").Code, "admin sees everything")

	// No token at all.
	req := httptest.NewRequest(http.MethodGet, "/photos/getImages/bob@x.com", nil)
	assert.Equal(t, http.StatusUnauthorized, env.do(req).Code)
}
