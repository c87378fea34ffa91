package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/photoatlas/backend/internal/store"
)

// listSources returns every allow-list entry, newest first.
func (s *Server) listSources(c *gin.Context) {
	entries, err := s.sources.List(c.Request.Context())
	if err != nil {
		s.logger.Error("failed to list allowed emails", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Error fetching emails"})
		return
	}
	c.JSON(http.StatusOK, entries)
}

// addSource adds an email to the allow-list, attributed to the
// administrator making the request.
func (s *Server) addSource(c *gin.Context) {
	var body struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Email is required"})
		return
	}

	addedBy := store.SystemAddedBy
	if user, ok := userFrom(c); ok {
		addedBy = user.Email
	}

	entry, err := s.sources.Add(c.Request.Context(), body.Email, addedBy)
	if errors.Is(err, store.ErrDuplicate) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Email already exists"})
		return
	}
	if err != nil {
		s.logger.Error("failed to add allowed email", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Error adding email"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Email added successfully", "email": entry})
}

// removeSource deletes an allow-list entry by ID.
func (s *Server) removeSource(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Email not found"})
		return
	}

	err = s.sources.Remove(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Email not found"})
		return
	}
	if err != nil {
		s.logger.Error("failed to remove allowed email", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Error removing email"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Email removed successfully"})
}
