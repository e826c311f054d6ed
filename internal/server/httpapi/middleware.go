package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/antecipa/internal/common"
	"github.com/dmitrijs2005/antecipa/internal/logging"
	"github.com/dmitrijs2005/antecipa/internal/server/auth"
	"github.com/gin-gonic/gin"
)

// Context keys set by AccessTokenMiddleware.
const (
	ctxUserID = "userID"
	ctxRole   = "role"
)

// TokenParser validates access tokens.
type TokenParser interface {
	ParseToken(token string) (*auth.Claims, error)
}

// AccessTokenMiddleware requires a valid "Bearer <jwt>" Authorization
// header and stores the caller's id and role in the gin context.
func AccessTokenMiddleware(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(common.AuthorizationHeaderName)
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, messageResponse{Message: "Unauthorized"})
			return
		}

		claims, err := parser.ParseToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, messageResponse{Message: "Unauthorized"})
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxRole, claims.Role)
		c.Next()
	}
}

// RateLimitMiddleware throttles by peer address. X-Forwarded-For is ignored
// here because any client can set it.
func RateLimitMiddleware(l *IPRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(PeerIP(c)) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, messageResponse{Message: "Too many requests"})
			return
		}
		c.Next()
	}
}

// RequestLogger logs one line per request after it has been served.
func RequestLogger(l logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		l.Info(c.Request.Context(), "http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"ip", ClientIP(c),
			"duration", time.Since(start),
		)
	}
}
