package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"artmarket/internal/domain"
	"artmarket/internal/service"
)

// ProfileHandler expone la tabla de perfiles.
type ProfileHandler struct {
	logger   *zap.Logger
	profiles *service.ProfileService
}

func NewProfileHandler(logger *zap.Logger, profiles *service.ProfileService) *ProfileHandler {
	return &ProfileHandler{logger: logger, profiles: profiles}
}

type profileRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Role      string `json:"role" binding:"required"`
	Telephone string `json:"telephone"`
	Country   string `json:"country"`
	AvatarURL string `json:"avatar_url"`
}

// Get maneja GET /profiles/:id.
func (h *ProfileHandler) Get(c *gin.Context) {
	profile, err := h.profiles.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeProfileError(c, err, "get profile failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profile})
}

// Put maneja PUT /profiles/:id.
func (h *ProfileHandler) Put(c *gin.Context) {
	claims, _ := GetAuthClaims(c)
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid profile request", zap.Error(err))
		writeError(c, http.StatusBadRequest, "invalid request")
		return
	}

	profile, err := h.profiles.Upsert(c.Request.Context(), claims.Identity(), domain.Profile{
		ID:        c.Param("id"),
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Role:      domain.ParseRole(req.Role),
		Telephone: req.Telephone,
		Country:   req.Country,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		h.writeProfileError(c, err, "upsert profile failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profile})
}

// Patch maneja PATCH /profiles/:id.
func (h *ProfileHandler) Patch(c *gin.Context) {
	claims, _ := GetAuthClaims(c)
	var patch service.ProfilePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request")
		return
	}

	profile, err := h.profiles.Update(c.Request.Context(), claims.Identity(), c.Param("id"), patch)
	if err != nil {
		h.writeProfileError(c, err, "update profile failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profile})
}

func (h *ProfileHandler) writeProfileError(c *gin.Context, err error, logMsg string) {
	switch {
	case errors.Is(err, domain.ErrProfileNotFound):
		writeError(c, http.StatusNotFound, "profile not found")
	case errors.Is(err, service.ErrForbidden):
		writeError(c, http.StatusForbidden, "forbidden")
	case errors.Is(err, service.ErrInvalidProfile):
		writeError(c, http.StatusBadRequest, "invalid profile")
	default:
		h.logger.Error(logMsg, zap.Error(err))
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
