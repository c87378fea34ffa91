package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/photoatlas/backend/internal/auth"
	"github.com/photoatlas/backend/internal/models"
	"github.com/photoatlas/backend/internal/store"
)

// defaultPermissions are the pages every new account can see.
var defaultPermissions = []string{"Dashboard", "MyInfo"}

// registerUser creates a local account. The very first account becomes
// the approved admin; everyone after that starts pending.
func (s *Server) registerUser(c *gin.Context) {
	var body struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil ||
		body.Name == "" || body.Email == "" || body.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "All fields are required"})
		return
	}

	ctx := c.Request.Context()

	hash, err := auth.HashPassword(body.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}

	count, err := s.users.Count(ctx)
	if err != nil {
		s.logger.Error("failed to count users", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}

	user := &models.User{
		Name:        body.Name,
		Email:       body.Email,
		Password:    hash,
		Permissions: defaultPermissions,
	}
	if count == 0 {
		user.Role = models.RoleAdmin
		user.StatusAccess = models.StatusApproved
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			c.JSON(http.StatusBadRequest, gin.H{"message": "User already exists"})
			return
		}
		s.logger.Error("failed to create user", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}

	user.Password = ""
	c.JSON(http.StatusCreated, gin.H{"message": "User registered", "user": user})
}

// loginUser authenticates by username and password, enforces the
// approval workflow and sets the session cookie.
func (s *Server) loginUser(c *gin.Context) {
	var body struct {
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Incorrect email or password"})
		return
	}

	user, err := s.users.GetByName(c.Request.Context(), body.Name)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Incorrect email or password"})
		return
	}
	if err != nil {
		s.logger.Error("login lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}

	if user.Role == models.RoleUser {
		switch user.StatusAccess {
		case models.StatusDenied:
			c.JSON(http.StatusBadRequest, gin.H{"message": "Your account has been denied"})
			return
		case models.StatusPending:
			c.JSON(http.StatusBadRequest, gin.H{"message": "Your account has been pending"})
			return
		}
	}

	if !auth.CheckPassword(user.Password, body.Password) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Incorrect email or password"})
		return
	}

	token, err := auth.IssueUserToken(user.ID, auth.UserTokenTTL)
	if err != nil {
		s.logger.Error("failed to issue token", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}

	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(auth.UserCookie, token, int(auth.UserTokenTTL.Seconds()), "/", "", false, true)

	user.Password = ""
	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"user":    user,
		"token":   token,
	})
}

// logoutUser clears the session cookie.
func (s *Server) logoutUser(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(auth.UserCookie, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logout successful"})
}

// me echoes the authenticated account.
func (s *Server) me(c *gin.Context) {
	user, ok := userFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Failed to Fetch User"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// listUsers returns all non-admin accounts.
func (s *Server) listUsers(c *gin.Context) {
	users, err := s.users.List(c.Request.Context())
	if err != nil {
		s.logger.Error("failed to list users", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}
	c.JSON(http.StatusOK, users)
}

func (s *Server) requestsByStatus(c *gin.Context, status string) {
	users, err := s.users.ListByStatus(c.Request.Context(), status)
	if err != nil {
		s.logger.Error("failed to list requests", "status", status, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Error to Fetch Requests"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": users})
}

func (s *Server) pendingRequests(c *gin.Context)  { s.requestsByStatus(c, models.StatusPending) }
func (s *Server) approvedRequests(c *gin.Context) { s.requestsByStatus(c, models.StatusApproved) }
func (s *Server) deniedRequests(c *gin.Context)   { s.requestsByStatus(c, models.StatusDenied) }

// updateUserStatus approves or denies an account.
func (s *Server) updateUserStatus(c *gin.Context) {
	var body struct {
		ID     string `json:"Id"`
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request"})
		return
	}

	id, err := uuid.Parse(body.ID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid user id"})
		return
	}

	switch body.Status {
	case models.StatusApproved, models.StatusDenied, models.StatusPending:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid status"})
		return
	}

	if err := s.users.UpdateStatus(c.Request.Context(), id, body.Status); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
			return
		}
		s.logger.Error("failed to update user status", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "User status not updated"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User status " + body.Status + " successfully"})
}

// updateUserPermissions replaces a user's page/uploader access list.
func (s *Server) updateUserPermissions(c *gin.Context) {
	var body struct {
		Pages []string `json:"pages"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request"})
		return
	}

	user, err := s.users.UpdatePermissions(c.Request.Context(), c.Param("username"), body.Pages)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
		return
	}
	if err != nil {
		s.logger.Error("failed to update permissions", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to update user"})
		return
	}

	user.Password = ""
	c.JSON(http.StatusOK, gin.H{"message": "Permissions updated", "user": user})
}

// checkUserPermissions returns a user's permissions minus the pages
// every account has.
func (s *Server) checkUserPermissions(c *gin.Context) {
	user, err := s.users.GetByName(c.Request.Context(), c.Param("username"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
		return
	}
	if err != nil {
		s.logger.Error("failed to fetch permissions", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to Fetch Permissions"})
		return
	}

	filtered := make([]string, 0, len(user.Permissions))
	for _, p := range user.Permissions {
		if p != "Dashboard" && p != "MyInfo" {
			filtered = append(filtered, p)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "Access Granted Successfully",
		"permissions": filtered,
	})
}

// addUserByAdmin creates an account with an explicit approval state.
func (s *Server) addUserByAdmin(c *gin.Context) {
	var body struct {
		Name         string `json:"name"`
		Email        string `json:"email"`
		Password     string `json:"password"`
		StatusAccess string `json:"statusaccess"`
	}
	if err := c.ShouldBindJSON(&body); err != nil ||
		body.Name == "" || body.Email == "" || body.Password == "" || body.StatusAccess == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "All fields are required"})
		return
	}

	hash, err := auth.HashPassword(body.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}

	user := &models.User{
		Name:         body.Name,
		Email:        body.Email,
		Password:     hash,
		StatusAccess: body.StatusAccess,
		Permissions:  defaultPermissions,
	}

	if err := s.users.Create(c.Request.Context(), user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			c.JSON(http.StatusConflict, gin.H{"message": "Username or email already registered"})
			return
		}
		s.logger.Error("failed to create user", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User created successfully"})
}

// updateUserDetails renames an account and optionally resets its
// password. Non-admins may only update their own profile.
func (s *Server) updateUserDetails(c *gin.Context) {
	current, ok := userFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Not authenticated"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found."})
		return
	}

	if !current.IsAdmin() && current.ID != id {
		c.JSON(http.StatusForbidden, gin.H{"message": "Forbidden: You can only update your own profile"})
		return
	}

	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Username is required."})
		return
	}

	var hash string
	if body.Password != "" {
		hash, err = auth.HashPassword(body.Password)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
	}

	err = s.users.UpdateDetails(c.Request.Context(), id, body.Username, hash)
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found."})
	case errors.Is(err, store.ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"message": "Username already exists"})
	case err != nil:
		s.logger.Error("failed to update user", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	default:
		c.JSON(http.StatusOK, gin.H{"message": "User updated successfully."})
	}
}

// deleteUser removes an account.
func (s *Server) deleteUser(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid user id"})
		return
	}

	if err := s.users.Delete(c.Request.Context(), id); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Error("failed to delete user", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to Delete User"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}
