package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/antecipa/internal/common"
	"github.com/dmitrijs2005/antecipa/internal/logging"
	"github.com/dmitrijs2005/antecipa/internal/server/auth"
	"github.com/dmitrijs2005/antecipa/internal/server/models"
	"github.com/dmitrijs2005/antecipa/internal/server/services"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSessionManager struct {
	mock.Mock
}

func (m *MockSessionManager) Authenticate(ctx context.Context, username, password, ip string) (*services.AuthResult, error) {
	args := m.Called(ctx, username, password, ip)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.AuthResult), args.Error(1)
}

func (m *MockSessionManager) Rotate(ctx context.Context, presented, ip string) (*services.AuthResult, error) {
	args := m.Called(ctx, presented, ip)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.AuthResult), args.Error(1)
}

func (m *MockSessionManager) Revoke(ctx context.Context, presented, ip string) (bool, error) {
	args := m.Called(ctx, presented, ip)
	return args.Bool(0), args.Error(1)
}

func (m *MockSessionManager) IsValid(ctx context.Context, token string) (bool, error) {
	args := m.Called(ctx, token)
	return args.Bool(0), args.Error(1)
}

func (m *MockSessionManager) Register(ctx context.Context, username, password string) (*models.User, error) {
	args := m.Called(ctx, username, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type stubParser struct{}

func (stubParser) ParseToken(token string) (*auth.Claims, error) {
	if token != "good" {
		return nil, common.ErrInvalidToken
	}
	return &auth.Claims{UserID: "u1", Role: common.DefaultRole}, nil
}

func setupRouter(sessions SessionManager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(sessions, CookieSettings{Secure: true, MaxAge: 7 * 24 * time.Hour}, logging.NewNop())
	return NewRouter(h, stubParser{}, NewIPRateLimiter(1000, 1000), logging.NewNop())
}

func doJSON(r *gin.Engine, method, path string, body any, mutate func(*http.Request)) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "10.0.0.9:5555"
	if mutate != nil {
		mutate(req)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func withCookie(value string) func(*http.Request) {
	return func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: common.RefreshTokenCookieName, Value: value})
	}
}

func refreshCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == common.RefreshTokenCookieName {
			return c
		}
	}
	t.Fatalf("response has no %s cookie", common.RefreshTokenCookieName)
	return nil
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func authResult(token string) *services.AuthResult {
	return &services.AuthResult{
		User:         &models.User{ID: "u1", UserName: "ana@example.com", Role: common.DefaultRole},
		AccessToken:  "jwt",
		RefreshToken: token,
	}
}

func TestLogin_SetsCookieAndReturnsAccessToken(t *testing.T) {
	m := new(MockSessionManager)
	m.On("Authenticate", mock.Anything, "ana@example.com", "Secr3t!pw", "10.0.0.9").Return(authResult("rt-1"), nil)
	r := setupRouter(m)

	w := doJSON(r, http.MethodPost, "/api/auth/login", credentialsRequest{Username: "ana@example.com", Password: "Secr3t!pw"}, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode[authResponse](t, w)
	assert.Equal(t, authResponse{Username: "ana@example.com", Role: common.DefaultRole, AccessToken: "jwt"}, resp)

	c := refreshCookie(t, w)
	assert.Equal(t, "rt-1", c.Value)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
	assert.Equal(t, int((7 * 24 * time.Hour).Seconds()), c.MaxAge)
	m.AssertExpectations(t)
}

func TestLogin_BadCredentials(t *testing.T) {
	m := new(MockSessionManager)
	m.On("Authenticate", mock.Anything, "ana@example.com", "wrong", "10.0.0.9").Return(nil, common.ErrInvalidCredentials)
	r := setupRouter(m)

	w := doJSON(r, http.MethodPost, "/api/auth/login", credentialsRequest{Username: "ana@example.com", Password: "wrong"}, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Username or password is incorrect", decode[messageResponse](t, w).Message)
	assert.Empty(t, w.Result().Cookies())
}

func TestLogin_UsesForwardedFor(t *testing.T) {
	m := new(MockSessionManager)
	m.On("Authenticate", mock.Anything, "ana@example.com", "Secr3t!pw", "203.0.113.7").Return(authResult("rt-1"), nil)
	r := setupRouter(m)

	w := doJSON(r, http.MethodPost, "/api/auth/login", credentialsRequest{Username: "ana@example.com", Password: "Secr3t!pw"}, func(req *http.Request) {
		req.Header.Set(common.ForwardedForHeaderName, "203.0.113.7, 10.0.0.1")
	})

	assert.Equal(t, http.StatusOK, w.Code)
	m.AssertExpectations(t)
}

func TestRefreshToken(t *testing.T) {
	tests := []struct {
		name     string
		cookie   string
		result   *services.AuthResult
		err      error
		wantCode int
		wantMsg  string
	}{
		{name: "missing cookie", wantCode: http.StatusBadRequest, wantMsg: "Refresh token is required"},
		{name: "rotated", cookie: "rt-1", result: authResult("rt-2"), wantCode: http.StatusOK},
		{name: "invalid", cookie: "rt-1", err: common.ErrInvalidToken, wantCode: http.StatusUnauthorized, wantMsg: "Invalid token"},
		{name: "store down", cookie: "rt-1", err: common.ErrStoreUnavailable, wantCode: http.StatusInternalServerError, wantMsg: "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := new(MockSessionManager)
			var mutate func(*http.Request)
			if tt.cookie != "" {
				mutate = withCookie(tt.cookie)
				if tt.result != nil {
					m.On("Rotate", mock.Anything, tt.cookie, "10.0.0.9").Return(tt.result, nil)
				} else {
					m.On("Rotate", mock.Anything, tt.cookie, "10.0.0.9").Return(nil, tt.err)
				}
			}
			r := setupRouter(m)

			w := doJSON(r, http.MethodPost, "/api/auth/refresh-token", nil, mutate)

			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, decode[messageResponse](t, w).Message)
			} else {
				assert.Equal(t, "rt-2", refreshCookie(t, w).Value)
				assert.Equal(t, "jwt", decode[authResponse](t, w).AccessToken)
			}
			m.AssertExpectations(t)
		})
	}
}

func TestLogout_RequiresAccessToken(t *testing.T) {
	m := new(MockSessionManager)
	r := setupRouter(m)

	w := doJSON(r, http.MethodPost, "/api/auth/logout", nil, withCookie("rt-1"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(r, http.MethodPost, "/api/auth/logout", nil, func(req *http.Request) {
		req.Header.Set(common.AuthorizationHeaderName, "Bearer bad")
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	m.AssertNotCalled(t, "Revoke", mock.Anything, mock.Anything, mock.Anything)
}

func TestLogout_RevokesAndClearsCookie(t *testing.T) {
	for _, revokeErr := range []error{nil, common.ErrInvalidToken, errors.New("boom")} {
		m := new(MockSessionManager)
		m.On("Revoke", mock.Anything, "rt-1", "10.0.0.9").Return(revokeErr == nil, revokeErr)
		r := setupRouter(m)

		w := doJSON(r, http.MethodPost, "/api/auth/logout", nil, func(req *http.Request) {
			withCookie("rt-1")(req)
			req.Header.Set(common.AuthorizationHeaderName, "Bearer good")
		})

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Logged out successfully", decode[messageResponse](t, w).Message)
		c := refreshCookie(t, w)
		assert.Empty(t, c.Value)
		assert.Negative(t, c.MaxAge)
		m.AssertExpectations(t)
	}
}

func TestLogout_WithoutCookieStillSucceeds(t *testing.T) {
	m := new(MockSessionManager)
	r := setupRouter(m)

	w := doJSON(r, http.MethodPost, "/api/auth/logout", nil, func(req *http.Request) {
		req.Header.Set(common.AuthorizationHeaderName, "Bearer good")
	})

	assert.Equal(t, http.StatusOK, w.Code)
	m.AssertNotCalled(t, "Revoke", mock.Anything, mock.Anything, mock.Anything)
}

func TestRegister(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{name: "ok", wantCode: http.StatusOK, wantMsg: "Registration successful"},
		{name: "duplicate", err: common.ErrorAlreadyExists, wantCode: http.StatusBadRequest, wantMsg: "Username is already taken"},
		{name: "weak password", err: common.ErrorValidation, wantCode: http.StatusBadRequest},
		{name: "internal", err: errors.New("db down"), wantCode: http.StatusInternalServerError, wantMsg: "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := new(MockSessionManager)
			if tt.err == nil {
				m.On("Register", mock.Anything, "ana@example.com", "Secr3t!pw").Return(&models.User{ID: "u1"}, nil)
			} else {
				m.On("Register", mock.Anything, "ana@example.com", "Secr3t!pw").Return(nil, tt.err)
			}
			r := setupRouter(m)

			w := doJSON(r, http.MethodPost, "/api/auth/register", credentialsRequest{Username: "ana@example.com", Password: "Secr3t!pw"}, nil)

			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, decode[messageResponse](t, w).Message)
			}
			m.AssertExpectations(t)
		})
	}
}

func TestRegister_RejectsNonEmailUsername(t *testing.T) {
	m := new(MockSessionManager)
	r := setupRouter(m)

	w := doJSON(r, http.MethodPost, "/api/auth/register", credentialsRequest{Username: "ana", Password: "Secr3t!pw"}, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	m.AssertNotCalled(t, "Register", mock.Anything, mock.Anything, mock.Anything)
}

func TestSession(t *testing.T) {
	m := new(MockSessionManager)
	m.On("IsValid", mock.Anything, "rt-1").Return(true, nil)
	m.On("IsValid", mock.Anything, "rt-old").Return(false, nil)
	r := setupRouter(m)

	w := doJSON(r, http.MethodGet, "/api/auth/session", nil, withCookie("rt-1"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[sessionResponse](t, w).Active)

	w = doJSON(r, http.MethodGet, "/api/auth/session", nil, withCookie("rt-old"))
	assert.False(t, decode[sessionResponse](t, w).Active)

	w = doJSON(r, http.MethodGet, "/api/auth/session", nil, nil)
	assert.False(t, decode[sessionResponse](t, w).Active)
	m.AssertExpectations(t)
}
