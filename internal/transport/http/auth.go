package httptransport

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"fivebear-admin-go/internal/domain/auth"
	"fivebear-admin-go/internal/utils"
)

// Context keys set by the auth middleware for downstream handlers.
const (
	ContextAccountID   = "account_id"
	ContextAccountName = "account_name"
	ContextAccountRole = "account_role"
)

// AuthHandler exposes the login, logout and validation endpoints.
type AuthHandler struct {
	service *auth.Service
	logger  *utils.Logger
}

// NewAuthHandler builds the auth endpoint handler.
func NewAuthHandler(service *auth.Service, logger *utils.Logger) *AuthHandler {
	return &AuthHandler{service: service, logger: logger}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterRoutes attaches the auth endpoints to the router groups.
func (h *AuthHandler) RegisterRoutes(r *Router) {
	group := r.API.Group("/auth")
	group.POST("/login", h.Login)
	group.POST("/logout", h.Logout)
	group.GET("/validate", h.Validate)
	group.GET("/security/lock-status", h.LockStatus)

	if r.Secured != nil {
		r.Secured.GET("/auth/user-info", h.UserInfo)
	}
}

// Middleware validates the bearer token and attaches the identity to the
// request context.
func (h *AuthHandler) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			RespondError(c, http.StatusUnauthorized, "missing token", nil)
			c.Abort()
			return
		}

		identity, err := h.service.ValidateToken(c.Request.Context(), token)
		if err != nil {
			RespondError(c, http.StatusUnauthorized, rejectionMessage(err), nil)
			c.Abort()
			return
		}

		c.Set(ContextAccountID, identity.AccountID)
		c.Set(ContextAccountName, identity.AccountName)
		c.Set(ContextAccountRole, identity.Role)
		c.Next()
	}
}

// Login runs the credential workflow and returns a fresh token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "username and password are required", nil)
		return
	}

	result, err := h.service.Login(c.Request.Context(), req.Username, req.Password, c.ClientIP())
	if err != nil {
		h.respondLoginError(c, err)
		return
	}

	RespondSuccess(c, http.StatusOK, result, "login successful")
}

func (h *AuthHandler) respondLoginError(c *gin.Context, err error) {
	var lockErr *auth.LockoutError
	if errors.As(err, &lockErr) {
		RespondError(c, http.StatusLocked, lockErr.Error(), gin.H{
			"remainingTime": int(lockErr.RetryAfter.Seconds()),
		})
		return
	}

	var credErr *auth.CredentialError
	if errors.As(err, &credErr) {
		RespondError(c, http.StatusUnauthorized, credErr.Error(), gin.H{
			"remainingAttempts": credErr.RemainingAttempts,
		})
		return
	}

	switch {
	case errors.Is(err, auth.ErrAccountLocked):
		RespondError(c, http.StatusLocked, "account locked", nil)
	case errors.Is(err, auth.ErrInvalidCredentials):
		RespondError(c, http.StatusUnauthorized, "invalid credentials", nil)
	case errors.Is(err, auth.ErrAccountDisabled):
		RespondError(c, http.StatusForbidden, "account disabled", nil)
	default:
		h.logger.ErrorTag("HTTP", "login failed: %v", err)
		RespondError(c, http.StatusInternalServerError, "login failed", nil)
	}
}

// Logout clears the active session for the presented token.
func (h *AuthHandler) Logout(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		RespondError(c, http.StatusUnauthorized, "missing token", nil)
		return
	}

	if err := h.service.Logout(c.Request.Context(), token); err != nil {
		RespondError(c, http.StatusUnauthorized, rejectionMessage(err), nil)
		return
	}
	RespondSuccess(c, http.StatusOK, nil, "logout successful")
}

// Validate reports whether the presented token is structurally valid and
// still the active session.
func (h *AuthHandler) Validate(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		RespondError(c, http.StatusUnauthorized, "missing token", nil)
		return
	}

	identity, err := h.service.ValidateToken(c.Request.Context(), token)
	if err != nil {
		RespondError(c, http.StatusUnauthorized, rejectionMessage(err), nil)
		return
	}

	RespondSuccess(c, http.StatusOK, gin.H{
		"account_id": identity.AccountID,
		"username":   identity.AccountName,
		"role":       identity.Role,
		"expires_at": identity.ExpiresAt,
	}, "")
}

// UserInfo returns the identity attached by the middleware.
func (h *AuthHandler) UserInfo(c *gin.Context) {
	RespondSuccess(c, http.StatusOK, gin.H{
		"account_id": c.GetUint(ContextAccountID),
		"username":   c.GetString(ContextAccountName),
		"role":       c.GetString(ContextAccountRole),
	}, "")
}

// LockStatus reports the throttle state for an account, including whether
// the security service itself is reachable.
func (h *AuthHandler) LockStatus(c *gin.Context) {
	username := c.Query("username")
	if username == "" {
		RespondError(c, http.StatusBadRequest, "username is required", nil)
		return
	}

	status := h.service.LockStatus(c.Request.Context(), username)
	payload := gin.H{
		"isLocked":                 status.Locked,
		"securityServiceAvailable": status.Available,
	}
	if status.Locked {
		payload["remainingTime"] = int(status.RetryAfter.Seconds())
	} else {
		payload["remainingAttempts"] = status.RemainingAttempts
	}
	RespondSuccess(c, http.StatusOK, payload, "")
}

// rejectionMessage keeps token parse details out of client responses while
// distinguishing the cases that matter for UX.
func rejectionMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return "token expired"
	case errors.Is(err, auth.ErrTokenSuperseded):
		return "session superseded by a newer login"
	default:
		return "invalid token"
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if token := c.Query("token"); token != "" {
		return token
	}
	return ""
}
