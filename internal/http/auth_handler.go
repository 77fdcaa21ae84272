package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"artmarket/internal/repository"
	"artmarket/internal/service"
)

// AuthHandler expone el proveedor de identidades.
type AuthHandler struct {
	logger *zap.Logger
	auth   *service.AuthService
}

func NewAuthHandler(logger *zap.Logger, auth *service.AuthService) *AuthHandler {
	return &AuthHandler{logger: logger, auth: auth}
}

type credentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// SignUp maneja POST /auth/signup.
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid signup request", zap.Error(err))
		writeError(c, http.StatusBadRequest, "invalid request")
		return
	}

	sess, err := h.auth.SignUp(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidEmail), errors.Is(err, service.ErrWeakPassword):
			writeError(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, repository.ErrEmailTaken):
			writeError(c, http.StatusConflict, "email already registered")
		default:
			h.logger.Error("signup failed", zap.Error(err))
			writeError(c, http.StatusInternalServerError, "could not sign up")
		}
		return
	}
	c.JSON(http.StatusCreated, sess)
}

// SignIn maneja POST /auth/signin.
func (h *AuthHandler) SignIn(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid signin request", zap.Error(err))
		writeError(c, http.StatusBadRequest, "invalid request")
		return
	}

	sess, err := h.auth.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			writeError(c, http.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, service.ErrRateLimited):
			writeError(c, http.StatusTooManyRequests, "too many requests")
		default:
			h.logger.Error("signin failed", zap.Error(err))
			writeError(c, http.StatusInternalServerError, "could not sign in")
		}
		return
	}
	c.JSON(http.StatusOK, sess)
}

// Refresh maneja POST /auth/refresh.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request")
		return
	}
	sess, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		writeError(c, http.StatusUnauthorized, "invalid token")
		return
	}
	c.JSON(http.StatusOK, sess)
}

// SignOut maneja POST /auth/signout.
func (h *AuthHandler) SignOut(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request")
		return
	}
	if err := h.auth.SignOut(c.Request.Context(), req.RefreshToken); err != nil {
		h.logger.Error("signout failed", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "could not sign out")
		return
	}
	c.Status(http.StatusNoContent)
}

// Session maneja GET /auth/session.
func (h *AuthHandler) Session(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "missing token")
		return
	}
	identity, err := h.auth.Identity(c.Request.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, service.ErrIdentityNotFound) {
			writeError(c, http.StatusUnauthorized, "identity revoked")
			return
		}
		h.logger.Error("load identity failed", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "could not load session")
		return
	}
	identity.PasswordHash = ""
	c.JSON(http.StatusOK, gin.H{"identity": identity})
}
