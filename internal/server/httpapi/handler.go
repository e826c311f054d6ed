// Package httpapi is the gin transport for the session engine: register,
// login, refresh-token rotation, logout and a session probe under
// /api/auth. The refresh token travels only in an HttpOnly cookie.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/antecipa/internal/common"
	"github.com/dmitrijs2005/antecipa/internal/logging"
	"github.com/dmitrijs2005/antecipa/internal/server/models"
	"github.com/dmitrijs2005/antecipa/internal/server/services"
	"github.com/gin-gonic/gin"
)

// SessionManager is the part of services.SessionService the handlers use.
type SessionManager interface {
	Authenticate(ctx context.Context, username, password, ip string) (*services.AuthResult, error)
	Rotate(ctx context.Context, presented, ip string) (*services.AuthResult, error)
	Revoke(ctx context.Context, presented, ip string) (bool, error)
	IsValid(ctx context.Context, token string) (bool, error)
	Register(ctx context.Context, username, password string) (*models.User, error)
}

// CookieSettings controls the refresh-token cookie.
type CookieSettings struct {
	Secure bool
	MaxAge time.Duration
}

type Handler struct {
	sessions SessionManager
	cookie   CookieSettings
	logger   logging.Logger
}

func NewHandler(sessions SessionManager, cookie CookieSettings, l logging.Logger) *Handler {
	return &Handler{sessions: sessions, cookie: cookie, logger: l.With("module", "http_handler")}
}

func (h *Handler) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, messageResponse{Message: "Username must be an e-mail and password is required"})
		return
	}

	if _, err := h.sessions.Register(c.Request.Context(), req.Username, req.Password); err != nil {
		switch {
		case errors.Is(err, common.ErrorValidation):
			c.JSON(http.StatusBadRequest, messageResponse{Message: err.Error()})
		case errors.Is(err, common.ErrorAlreadyExists):
			c.JSON(http.StatusBadRequest, messageResponse{Message: "Username is already taken"})
		default:
			h.internalError(c, "register", err)
		}
		return
	}

	c.JSON(http.StatusOK, messageResponse{Message: "Registration successful"})
}

func (h *Handler) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, messageResponse{Message: "Username or password is incorrect"})
		return
	}

	res, err := h.sessions.Authenticate(c.Request.Context(), req.Username, req.Password, ClientIP(c))
	if err != nil {
		if errors.Is(err, common.ErrInvalidCredentials) {
			c.JSON(http.StatusBadRequest, messageResponse{Message: "Username or password is incorrect"})
			return
		}
		h.internalError(c, "login", err)
		return
	}

	h.setTokenCookie(c, res.RefreshToken)
	c.JSON(http.StatusOK, authResponse{Username: res.User.UserName, Role: res.User.Role, AccessToken: res.AccessToken})
}

func (h *Handler) RefreshToken(c *gin.Context) {
	token, err := c.Cookie(common.RefreshTokenCookieName)
	if err != nil || token == "" {
		c.JSON(http.StatusBadRequest, messageResponse{Message: "Refresh token is required"})
		return
	}

	res, err := h.sessions.Rotate(c.Request.Context(), token, ClientIP(c))
	if err != nil {
		if errors.Is(err, common.ErrInvalidToken) {
			c.JSON(http.StatusUnauthorized, messageResponse{Message: "Invalid token"})
			return
		}
		h.internalError(c, "refresh", err)
		return
	}

	h.setTokenCookie(c, res.RefreshToken)
	c.JSON(http.StatusOK, authResponse{Username: res.User.UserName, Role: res.User.Role, AccessToken: res.AccessToken})
}

// Logout revokes the cookie's token if there is one. Revocation failures are
// logged but never reported, so the response does not reveal token state.
func (h *Handler) Logout(c *gin.Context) {
	if token, err := c.Cookie(common.RefreshTokenCookieName); err == nil && token != "" {
		if _, err := h.sessions.Revoke(c.Request.Context(), token, ClientIP(c)); err != nil && !errors.Is(err, common.ErrInvalidToken) {
			h.logger.Error(c.Request.Context(), "logout revoke failed", "error", err)
		}
	}

	h.clearTokenCookie(c)
	c.JSON(http.StatusOK, messageResponse{Message: "Logged out successfully"})
}

func (h *Handler) Session(c *gin.Context) {
	token, err := c.Cookie(common.RefreshTokenCookieName)
	if err != nil || token == "" {
		c.JSON(http.StatusOK, sessionResponse{Active: false})
		return
	}

	ok, err := h.sessions.IsValid(c.Request.Context(), token)
	if err != nil {
		h.internalError(c, "session", err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse{Active: ok})
}

func (h *Handler) internalError(c *gin.Context, op string, err error) {
	h.logger.Error(c.Request.Context(), "request failed", "op", op, "error", err)
	c.JSON(http.StatusInternalServerError, messageResponse{Message: "Internal server error"})
}

func (h *Handler) setTokenCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(common.RefreshTokenCookieName, token, int(h.cookie.MaxAge.Seconds()), "/", "", h.cookie.Secure, true)
}

func (h *Handler) clearTokenCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(common.RefreshTokenCookieName, "", -1, "/", "", h.cookie.Secure, true)
}
