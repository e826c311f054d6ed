package httpapi

import (
	"net"
	"strings"

	"github.com/dmitrijs2005/antecipa/internal/common"
	"github.com/gin-gonic/gin"
)

// ClientIP returns the first X-Forwarded-For entry when present, otherwise
// the peer address. The header is client supplied, so the result is only
// used for audit stamps on tokens, never for access decisions.
func ClientIP(c *gin.Context) string {
	if fwd := c.GetHeader(common.ForwardedForHeaderName); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	return PeerIP(c)
}

// PeerIP returns the address of the connection's remote end without its
// port.
func PeerIP(c *gin.Context) string {
	host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return c.Request.RemoteAddr
	}
	return host
}
