package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cmms-backend/internal/model"
	"cmms-backend/internal/mw"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login checks credentials against the session capacity and issues a token.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	sess, user, err := h.Sessions.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		abortWithError(c, err)
		return
	}
	token, err := h.Tokens.Issue(user)
	if err != nil {
		abortWithError(c, err)
		return
	}
	remaining, err := h.Sessions.Remaining(c.Request.Context(), user.Username)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":             token,
		"user":              user,
		"login_time":        sess.LoginTime,
		"remaining_seconds": int(remaining.Seconds()),
	})
}

// Logout ends the caller's session.
func (h *Handler) Logout(c *gin.Context) {
	if err := h.Sessions.Logout(c.Request.Context(), mw.CurrentUser(c).Username); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetSession reports the caller and the time left in the session.
func (h *Handler) GetSession(c *gin.Context) {
	user := mw.CurrentUser(c)
	c.JSON(http.StatusOK, gin.H{
		"user":              user,
		"remaining_seconds": int(mw.Remaining(c).Seconds()),
	})
}

// GetActiveSessions lists the active sessions. Privileged only.
func (h *Handler) GetActiveSessions(c *gin.Context) {
	if !mw.CurrentUser(c).Privileged() {
		forbidden(c)
		return
	}
	active, err := h.Sessions.Active(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	out := make([]gin.H, 0, len(active))
	for _, s := range active {
		out = append(out, gin.H{"username": s.Username, "login_time": s.LoginTime})
	}
	c.JSON(http.StatusOK, out)
}

type createUserRequest struct {
	Username    string             `json:"username" binding:"required"`
	Password    string             `json:"password" binding:"required"`
	Role        model.Role         `json:"role"`
	Permissions []model.Permission `json:"permissions"`
	FullName    string             `json:"full_name"`
	Email       string             `json:"email"`
	Department  string             `json:"department"`
}

// CreateUser registers an account. Requires manage_users.
func (h *Handler) CreateUser(c *gin.Context) {
	if !mw.CurrentUser(c).Can(model.PermManageUsers) {
		forbidden(c)
		return
	}
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	user, err := h.Users.Register(c.Request.Context(), req.Username, req.Password, model.User{
		Role:        req.Role,
		Permissions: req.Permissions,
		FullName:    req.FullName,
		Email:       req.Email,
		Department:  req.Department,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// ListUsers returns every account. Requires manage_users.
func (h *Handler) ListUsers(c *gin.Context) {
	if !mw.CurrentUser(c).Can(model.PermManageUsers) {
		forbidden(c)
		return
	}
	c.JSON(http.StatusOK, h.Users.List())
}
