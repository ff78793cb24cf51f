package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"social-chat/internal/service"
)

// UserHandler mantiene dependencias para endpoints de cuenta.
type UserHandler struct {
	logger   *zap.Logger
	userServ *service.UserService
	jwtServ  *service.JWTService
}

func NewUserHandler(logger *zap.Logger, userServ *service.UserService, jwtServ *service.JWTService) *UserHandler {
	return &UserHandler{
		logger:   logger,
		userServ: userServ,
		jwtServ:  jwtServ,
	}
}

// Register maneja POST /users/register/.
func (h *UserHandler) Register(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid register request", zap.Error(err))
		errorJSON(c, http.StatusBadRequest, "invalid request")
		return
	}

	res, err := h.userServ.Register(c.Request.Context(), service.RegisterInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserExists),
			errors.Is(err, service.ErrInvalidEmail),
			errors.Is(err, service.ErrInvalidUsername),
			errors.Is(err, service.ErrWeakPassword):
			errorJSON(c, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("register failed", zap.Error(err))
			errorJSON(c, http.StatusInternalServerError, "could not register user")
		}
		return
	}

	tokens, err := h.jwtServ.GeneratePair(res.User)
	if err != nil {
		h.logger.Error("jwt issue failed", zap.Error(err))
		errorJSON(c, http.StatusInternalServerError, "could not issue tokens")
		return
	}

	msg := "User registered successfully. Please check your email for OTP verification."
	if !res.OTPSent {
		msg = "User registered successfully. The verification email could not be sent, request a new OTP."
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":  msg,
		"user":     res.User,
		"otp_sent": res.OTPSent,
		"refresh":  tokens.RefreshToken,
		"access":   tokens.AccessToken,
	})
}

// VerifyOTP maneja POST /users/verify-otp/.
func (h *UserHandler) VerifyOTP(c *gin.Context) {
	claims, ok := mustClaims(c)
	if !ok {
		return
	}
	var req struct {
		OTP string `json:"otp" binding:"required,max=6"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid request")
		return
	}

	if _, err := h.userServ.VerifyOTP(c.Request.Context(), claims.UserID, req.OTP); err != nil {
		switch {
		case errors.Is(err, service.ErrOTPInvalid):
			errorJSON(c, http.StatusBadRequest, "Invalid OTP")
		case errors.Is(err, service.ErrOTPExpired):
			errorJSON(c, http.StatusBadRequest, "OTP has expired")
		case errors.Is(err, service.ErrOTPNotRequested),
			errors.Is(err, service.ErrAlreadyVerified):
			errorJSON(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrUserNotFound):
			errorJSON(c, http.StatusNotFound, "user not found")
		default:
			h.logger.Error("verify otp failed", zap.Error(err))
			errorJSON(c, http.StatusInternalServerError, "could not verify otp")
		}
		return
	}
	messageJSON(c, http.StatusOK, "Email verified successfully")
}

// ResendOTP maneja POST /users/resend-otp/.
func (h *UserHandler) ResendOTP(c *gin.Context) {
	claims, ok := mustClaims(c)
	if !ok {
		return
	}
	if _, err := h.userServ.ResendOTP(c.Request.Context(), claims.UserID); err != nil {
		switch {
		case errors.Is(err, service.ErrAlreadyVerified):
			messageJSON(c, http.StatusBadRequest, "User is already verified")
		case errors.Is(err, service.ErrRateLimited):
			errorJSON(c, http.StatusTooManyRequests, "too many requests")
		case errors.Is(err, service.ErrEmailSendFailure):
			errorJSON(c, http.StatusServiceUnavailable, "email delivery unavailable")
		case errors.Is(err, service.ErrUserNotFound):
			errorJSON(c, http.StatusNotFound, "user not found")
		default:
			h.logger.Error("resend otp failed", zap.Error(err))
			errorJSON(c, http.StatusInternalServerError, "could not resend otp")
		}
		return
	}
	messageJSON(c, http.StatusOK, "New OTP sent successfully")
}

// Login maneja POST /users/token/.
func (h *UserHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid login request", zap.Error(err))
		errorJSON(c, http.StatusBadRequest, "invalid request")
		return
	}

	user, err := h.userServ.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			errorJSON(c, http.StatusUnauthorized, "invalid credentials")
			return
		}
		h.logger.Error("login failed", zap.Error(err))
		errorJSON(c, http.StatusInternalServerError, "could not login")
		return
	}

	tokens, err := h.jwtServ.GeneratePair(user)
	if err != nil {
		h.logger.Error("jwt issue failed", zap.Error(err))
		errorJSON(c, http.StatusInternalServerError, "could not issue tokens")
		return
	}
	c.JSON(http.StatusOK, tokens)
}

// RefreshToken maneja POST /users/token/refresh/.
func (h *UserHandler) RefreshToken(c *gin.Context) {
	var req struct {
		Refresh string `json:"refresh" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid request")
		return
	}
	tokens, err := h.jwtServ.RefreshPair(req.Refresh)
	if err != nil {
		errorJSON(c, http.StatusUnauthorized, "invalid token")
		return
	}
	c.JSON(http.StatusOK, tokens)
}

// Logout maneja POST /users/logout/.
func (h *UserHandler) Logout(c *gin.Context) {
	var req struct {
		Refresh string `json:"refresh" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid request")
		return
	}
	_ = h.jwtServ.RevokeRefresh(req.Refresh)
	c.Status(http.StatusNoContent)
}
