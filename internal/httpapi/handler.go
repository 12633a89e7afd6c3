// Package httpapi exposes the engine over JSON/HTTP for authd.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/internal/obs"
	"github.com/MrEthical07/authcore/password"
)

// Auth is the engine surface the handlers need.
type Auth interface {
	Login(ctx context.Context, req authcore.LoginRequest) (*authcore.LoginResult, error)
	RefreshAccessToken(ctx context.Context, refreshToken string) (*authcore.LoginResult, error)
	Logout(ctx context.Context, accessToken, refreshToken string) error
	GetEmailFromToken(ctx context.Context, accessToken string) (string, error)
	Register(ctx context.Context, req authcore.RegisterRequest) (*authcore.LoginResult, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ValidateResetToken(ctx context.Context, resetToken string) bool
	ResetPassword(ctx context.Context, resetToken, newPassword string) error
}

type Handler struct {
	auth Auth
	log  *zap.Logger
}

func NewHandler(auth Auth, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{auth: auth, log: log.With(zap.String("component", "httpapi"))}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	g := r.Group("/auth")
	{
		g.POST("/register", h.Register)
		g.POST("/login", h.Login)
		g.POST("/refresh", h.Refresh)
		g.POST("/logout", h.Logout)
		g.GET("/validate", h.Validate)
		g.POST("/password-reset", h.RequestPasswordReset)
		g.GET("/password-reset/validate", h.ValidateResetToken)
		g.POST("/password-reset/confirm", h.ResetPassword)
	}
}

type registerRequest struct {
	Email       string `json:"email" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"display_name"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Remember bool   `json:"remember"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type resetRequest struct {
	Email string `json:"email" binding:"required"`
}

type resetConfirmRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	Email        string `json:"email"`
	DisplayName  string `json:"display_name,omitempty"`
	Role         string `json:"role"`
}

func toTokenResponse(r *authcore.LoginResult) tokenResponse {
	return tokenResponse{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    r.TokenType,
		ExpiresIn:    int64(r.ExpiresIn.Seconds()),
		Email:        r.Email,
		DisplayName:  r.DisplayName,
		Role:         r.Role,
	}
}

func source(c *gin.Context) authcore.Source {
	return authcore.Source{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}

func bearer(c *gin.Context) string {
	v := c.GetHeader("Authorization")
	if len(v) > 7 && strings.EqualFold(v[:7], "bearer ") {
		return strings.TrimSpace(v[7:])
	}
	return ""
}

func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}
	res, err := h.auth.Register(c.Request.Context(), authcore.RegisterRequest{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Source:      source(c),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toTokenResponse(res))
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}
	res, err := h.auth.Login(c.Request.Context(), authcore.LoginRequest{
		Email:    req.Email,
		Password: req.Password,
		Remember: req.Remember,
		Source:   source(c),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toTokenResponse(res))
}

func (h *Handler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}
	res, err := h.auth.RefreshAccessToken(c.Request.Context(), strings.TrimSpace(req.RefreshToken))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toTokenResponse(res))
}

func (h *Handler) Logout(c *gin.Context) {
	var req logoutRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
			return
		}
	}
	if err := h.auth.Logout(c.Request.Context(), bearer(c), strings.TrimSpace(req.RefreshToken)); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Validate(c *gin.Context) {
	tok := bearer(c)
	email, err := h.auth.GetEmailFromToken(c.Request.Context(), tok)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true, "email": email})
}

func (h *Handler) RequestPasswordReset(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}
	if err := h.auth.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

func (h *Handler) ValidateResetToken(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"valid": h.auth.ValidateResetToken(c.Request.Context(), c.Query("token"))})
}

func (h *Handler) ResetPassword(c *gin.Context) {
	var req resetConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}
	if err := h.auth.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// fail maps err onto a response. Unexpected errors go to Sentry.
func (h *Handler) fail(c *gin.Context, err error) {
	var locked *authcore.LockedError
	var policy *password.PolicyError
	switch {
	case errors.As(err, &locked):
		secs := int(locked.Remaining.Seconds())
		if secs < 1 {
			secs = 1
		}
		c.Header("Retry-After", strconv.Itoa(secs))
		writeError(c, http.StatusTooManyRequests, "ACCOUNT_LOCKED", "login temporarily locked")
	case errors.As(err, &policy):
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   gin.H{"code": "PASSWORD_POLICY", "message": "password does not meet policy", "reason": policy.Reason},
		})
	case errors.Is(err, authcore.ErrInvalidCredentials):
		writeError(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid credentials")
	case errors.Is(err, authcore.ErrRefreshInvalid):
		writeError(c, http.StatusUnauthorized, "INVALID_REFRESH_TOKEN", "invalid refresh token")
	case errors.Is(err, authcore.ErrTokenInvalid):
		writeError(c, http.StatusUnauthorized, "INVALID_TOKEN", "invalid access token")
	case errors.Is(err, authcore.ErrAccountDisabled):
		writeError(c, http.StatusForbidden, "ACCOUNT_DISABLED", "account disabled")
	case errors.Is(err, authcore.ErrDuplicateAccount):
		writeError(c, http.StatusConflict, "EMAIL_EXISTS", "email already registered")
	case errors.Is(err, authcore.ErrInvalidEmail):
		writeError(c, http.StatusBadRequest, "INVALID_EMAIL", "invalid email address")
	case errors.Is(err, authcore.ErrPasswordResetInvalid):
		writeError(c, http.StatusBadRequest, "INVALID_RESET_TOKEN", "reset token invalid or expired")
	case errors.Is(err, authcore.ErrUserNotFound):
		writeError(c, http.StatusNotFound, "USER_NOT_FOUND", "user not found")
	default:
		if hub := sentry.GetHubFromContext(c.Request.Context()); hub != nil {
			hub.CaptureException(err)
		} else {
			sentry.CaptureException(err)
		}
		obs.WithTrace(c.Request.Context(), h.log).Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "INTERNAL", "internal server error")
	}
}

func writeError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}
