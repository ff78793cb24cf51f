package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"social-chat/internal/service"
)

type ProfileHandler struct {
	logger   *zap.Logger
	profiles *service.ProfileService
}

func NewProfileHandler(logger *zap.Logger, profiles *service.ProfileService) *ProfileHandler {
	return &ProfileHandler{logger: logger, profiles: profiles}
}

// GetOwn maneja GET /users/profile/.
func (h *ProfileHandler) GetOwn(c *gin.Context) {
	claims, ok := mustClaims(c)
	if !ok {
		return
	}
	h.respond(c, claims.UserID)
}

// GetByUser maneja GET /users/profile/:user_id/.
func (h *ProfileHandler) GetByUser(c *gin.Context) {
	userID, ok := idParam(c, "user_id")
	if !ok {
		return
	}
	h.respond(c, userID)
}

// Update maneja PUT /users/profile/.
func (h *ProfileHandler) Update(c *gin.Context) {
	claims, ok := mustClaims(c)
	if !ok {
		return
	}
	var req struct {
		Bio         *string `json:"bio"`
		DateOfBirth *string `json:"date_of_birth"`
		PhoneNumber *string `json:"phone_number"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid profile request", zap.Error(err))
		errorJSON(c, http.StatusBadRequest, "invalid request")
		return
	}

	profile, err := h.profiles.Update(c.Request.Context(), claims.UserID, service.ProfileUpdate{
		Bio:         req.Bio,
		DateOfBirth: req.DateOfBirth,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidDateOfBirth),
			errors.Is(err, service.ErrInvalidPhoneNumber):
			errorJSON(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrUserNotFound):
			errorJSON(c, http.StatusNotFound, "user not found")
		default:
			h.logger.Error("update profile failed", zap.Error(err))
			errorJSON(c, http.StatusInternalServerError, "could not update profile")
		}
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *ProfileHandler) respond(c *gin.Context, userID int64) {
	profile, err := h.profiles.Get(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			errorJSON(c, http.StatusNotFound, "user not found")
			return
		}
		h.logger.Error("get profile failed", zap.Int64("user_id", userID), zap.Error(err))
		errorJSON(c, http.StatusInternalServerError, "could not load profile")
		return
	}
	c.JSON(http.StatusOK, profile)
}
