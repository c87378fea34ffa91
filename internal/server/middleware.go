package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/photoatlas/backend/internal/auth"
	"github.com/photoatlas/backend/internal/models"
)

// Context keys for values set by the middleware.
const (
	ctxIdentity = "identity"
	ctxUser     = "user"
)

// requireIdentity decodes the Google identity token set by the OAuth
// callback. Requests without a valid identity get 401 before any sync
// work happens.
func (s *Server) requireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(auth.IdentityCookie)
		if err != nil || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			return
		}

		identity, err := auth.ParseIdentityToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			return
		}

		c.Set(ctxIdentity, identity)
		c.Next()
	}
}

// identityFrom returns the Google identity stored by requireIdentity.
func identityFrom(c *gin.Context) (models.Identity, bool) {
	v, ok := c.Get(ctxIdentity)
	if !ok {
		return models.Identity{}, false
	}
	identity, ok := v.(models.Identity)
	return identity, ok
}

// requireUser authenticates a local account from the session cookie or
// an Authorization bearer header and loads it into the context.
func (s *Server) requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(auth.UserCookie)
		if err != nil || token == "" {
			header := c.GetHeader("Authorization")
			if strings.HasPrefix(header, "Bearer ") {
				token = strings.TrimPrefix(header, "Bearer ")
			}
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "No token provided"})
			return
		}

		userID, err := auth.ParseUserToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid token"})
			return
		}

		user, err := s.users.GetByID(c.Request.Context(), userID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "User not found"})
			return
		}
		user.Password = ""

		c.Set(ctxUser, user)
		c.Next()
	}
}

// userFrom returns the local account stored by requireUser.
func userFrom(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(ctxUser)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok
}
