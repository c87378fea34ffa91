package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/photoatlas/backend/internal/store"
	"github.com/photoatlas/backend/internal/sync"
)

// syncImages triggers a Drive sync for the authenticated identity and
// redirects back to the front end. Only authentication, authorization
// and listing failures surface as error responses; per-file failures
// are absorbed into the run summary and logged server-side.
func (s *Server) syncImages(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	redirectURL := c.Query("redirect")
	if redirectURL == "" {
		redirectURL = frontendURL() + "/home"
	}

	summary, err := s.syncer.Run(c.Request.Context(), identity)
	switch {
	case err == nil:
		s.logger.Info("sync run finished",
			"email", identity.NormalizedEmail(),
			"processed", summary.Processed,
			"skipped", summary.Skipped,
			"errored", summary.Errored,
		)
		c.Redirect(http.StatusFound, redirectURL)
	case errors.Is(err, sync.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
	case errors.Is(err, sync.ErrUnauthorized):
		c.Redirect(http.StatusFound, redirectURL+"?error=unauthorized")
	default:
		s.logger.Error("sync run failed", "email", identity.NormalizedEmail(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to sync images"})
	}
}

// getPhotos returns every stored record without the binary payload,
// newest first.
func (s *Server) getPhotos(c *gin.Context) {
	photos, err := s.images.ListAll(c.Request.Context())
	if err != nil {
		s.logger.Error("failed to list photos", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"photos": photos})
}

// getImageData streams one image's raw bytes with its stored MIME type.
func (s *Server) getImageData(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.String(http.StatusNotFound, "Image not found")
		return
	}

	img, err := s.images.GetByID(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		c.String(http.StatusNotFound, "Image not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to load image", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.Data(http.StatusOK, img.MimeType, img.ImageData)
}

// getGeotaggedImages returns the records that carry coordinates.
func (s *Server) getGeotaggedImages(c *gin.Context) {
	images, err := s.images.ListGeotagged(c.Request.Context())
	if err != nil {
		s.logger.Error("failed to list geotagged images", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, images)
}

func (s *Server) statsByPeriod(c *gin.Context, layout string) {
	stats, err := s.images.StatsByPeriod(c.Request.Context(), layout)
	if err != nil {
		s.logger.Error("failed to query stats", "layout", layout, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to get stats"})
		return
	}

	uploaders := make(map[string]bool)
	for _, st := range stats {
		if st.UploadedBy != "" {
			uploaders[st.UploadedBy] = true
		}
	}
	unique := make([]string, 0, len(uploaders))
	for u := range uploaders {
		unique = append(unique, u)
	}

	c.JSON(http.StatusOK, gin.H{"stats": stats, "uniqueUploaders": unique})
}

func (s *Server) statsByMonth(c *gin.Context) { s.statsByPeriod(c, store.PeriodMonth) }
func (s *Server) statsByYear(c *gin.Context)  { s.statsByPeriod(c, store.PeriodYear) }
func (s *Server) statsByDay(c *gin.Context)   { s.statsByPeriod(c, store.PeriodDay) }

// getImagesByUploader returns one uploader's records. Admins see
// everything; other accounts need the uploader email in their
// permission list or it must be their own.
func (s *Server) getImagesByUploader(c *gin.Context) {
	user, ok := userFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	uploadedBy := strings.ToLower(c.Param("uploadedBy"))

	if !user.IsAdmin() {
		permitted := strings.EqualFold(user.Email, uploadedBy)
		for _, p := range user.Permissions {
			if strings.EqualFold(p, uploadedBy) {
				permitted = true
				break
			}
		}
		if !permitted {
			c.JSON(http.StatusForbidden, gin.H{
				"error": "Access denied: You do not have permission to view these images.",
			})
			return
		}
	}

	photos, err := s.images.ListByUploader(c.Request.Context(), uploadedBy)
	if err != nil {
		s.logger.Error("failed to list images by uploader", "uploader", uploadedBy, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"photos": photos})
}

// overviewStats assembles the dashboard summary.
func (s *Server) overviewStats(c *gin.Context) {
	ctx := c.Request.Context()

	total, err := s.images.Count(ctx)
	if err != nil {
		s.logger.Error("overview stats failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	geocoded, err := s.images.CountGeotagged(ctx)
	if err != nil {
		s.logger.Error("overview stats failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	totalSources, err := s.sources.Count(ctx)
	if err != nil {
		s.logger.Error("overview stats failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	topDistricts, err := s.images.TopDistricts(ctx, 10)
	if err != nil {
		s.logger.Error("overview stats failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	recent, err := s.images.ListRecent(ctx, 5)
	if err != nil {
		s.logger.Error("overview stats failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	uploaders, err := s.images.CountUploaders(ctx)
	if err != nil {
		s.logger.Error("overview stats failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	coverage := 0.0
	if total > 0 {
		coverage = float64(geocoded) / float64(total) * 100
	}

	c.JSON(http.StatusOK, gin.H{
		"totalImages":      total,
		"totalSources":     totalSources,
		"geocodedCount":    geocoded,
		"coverage":         coverage,
		"topDistricts":     topDistricts,
		"recentPhotos":     recent,
		"activeUsersCount": uploaders,
	})
}
