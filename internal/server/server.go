// Package server wires the HTTP surface: the Drive sync trigger, the
// photo read endpoints, local-account management and the allow-list
// administration API.
package server

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"

	"github.com/photoatlas/backend/internal/models"
	"github.com/photoatlas/backend/internal/store"
	"github.com/photoatlas/backend/internal/sync"
)

// Syncer triggers one Drive sync run for an identity.
type Syncer interface {
	Run(ctx context.Context, identity models.Identity) (sync.Summary, error)
}

// ImageReader is the read side of the image store the handlers use.
type ImageReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Image, error)
	ListAll(ctx context.Context) ([]models.Image, error)
	ListGeotagged(ctx context.Context) ([]models.Image, error)
	ListByUploader(ctx context.Context, email string) ([]models.Image, error)
	ListRecent(ctx context.Context, limit int) ([]models.Image, error)
	StatsByPeriod(ctx context.Context, layout string) ([]store.PeriodStat, error)
	Count(ctx context.Context) (int, error)
	CountGeotagged(ctx context.Context) (int, error)
	TopDistricts(ctx context.Context, limit int) ([]store.DistrictStat, error)
	CountUploaders(ctx context.Context) (int, error)
}

// SourceStore is the allow-list administration boundary.
type SourceStore interface {
	List(ctx context.Context) ([]models.AllowedEmail, error)
	Add(ctx context.Context, email, addedBy string) (*models.AllowedEmail, error)
	Remove(ctx context.Context, id uuid.UUID) error
	Count(ctx context.Context) (int, error)
}

// UserStore is the local-account boundary.
type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByName(ctx context.Context, name string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Count(ctx context.Context) (int, error)
	List(ctx context.Context) ([]models.User, error)
	ListByStatus(ctx context.Context, status string) ([]models.User, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	UpdatePermissions(ctx context.Context, name string, permissions []string) (*models.User, error)
	UpdateDetails(ctx context.Context, id uuid.UUID, name, passwordHash string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Server holds the handler dependencies.
type Server struct {
	syncer  Syncer
	images  ImageReader
	sources SourceStore
	users   UserStore
	logger  *slog.Logger
}

func New(syncer Syncer, images ImageReader, sources SourceStore, users UserStore, logger *slog.Logger) *Server {
	return &Server{
		syncer:  syncer,
		images:  images,
		sources: sources,
		users:   users,
		logger:  logger,
	}
}

// frontendURL returns the configured front-end base for redirects.
func frontendURL() string {
	url := viper.GetString("frontend.url")
	if url == "" {
		url = "http://localhost:3000"
	}
	return url
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.Default()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	photos := r.Group("/photos")
	{
		photos.GET("/sync-images", s.requireIdentity(), s.syncImages)
		photos.GET("/get-photos", s.getPhotos)
		photos.GET("/image-data/:id", s.getImageData)
		photos.GET("/get-image-by-month", s.statsByMonth)
		photos.GET("/get-image-by-year", s.statsByYear)
		photos.GET("/get-image-by-day", s.statsByDay)
		photos.GET("/getImages/:uploadedBy", s.requireUser(), s.getImagesByUploader)
		photos.GET("/overview-stats", s.overviewStats)
	}

	api := r.Group("/api")
	{
		api.GET("/images", s.getGeotaggedImages)

		sources := api.Group("/image-sources", s.requireUser())
		{
			sources.GET("", s.listSources)
			sources.POST("", s.addSource)
			sources.DELETE("/:id", s.removeSource)
		}
	}

	users := r.Group("/users")
	{
		users.POST("/register", s.registerUser)
		users.POST("/login", s.loginUser)
		users.POST("/logout", s.logoutUser)
		users.GET("/me", s.requireUser(), s.me)
		users.GET("", s.listUsers)
		users.GET("/getrequest", s.pendingRequests)
		users.GET("/approved-request", s.approvedRequests)
		users.GET("/denied-request", s.deniedRequests)
		users.POST("/status", s.updateUserStatus)
		users.POST("/give-access/:username", s.updateUserPermissions)
		users.POST("/permissions/:username", s.checkUserPermissions)
		users.POST("/userbyadmin", s.addUserByAdmin)
		users.PUT("/user/:id", s.requireUser(), s.updateUserDetails)
		users.DELETE("/delete/:id", s.deleteUser)
	}

	return r
}
