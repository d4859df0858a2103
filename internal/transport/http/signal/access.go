package signalhttp

import (
	"net"
	"net/http"
	"strings"
	"sync"

	"signalbot/internal/logger"

	"github.com/gin-gonic/gin"
)

// AccessList is an IP allow-list, or a deny-list when deny is set. It can be
// swapped at runtime while requests are being served.
type AccessList struct {
	mu   sync.RWMutex
	ips  map[string]struct{}
	deny bool
}

func NewAccessList(ips []string, deny bool) *AccessList {
	a := &AccessList{}
	a.Update(ips, deny)
	return a
}

func (a *AccessList) Update(ips []string, deny bool) {
	set := make(map[string]struct{}, len(ips))
	for _, ip := range ips {
		if n := normalizeIP(ip); n != "" {
			set[n] = struct{}{}
		}
	}
	a.mu.Lock()
	a.ips = set
	a.deny = deny
	a.mu.Unlock()
	logger.Infof("http access list updated: %d ips, deny=%v", len(set), deny)
}

func (a *AccessList) Allowed(ip string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, listed := a.ips[normalizeIP(ip)]
	if a.deny {
		return !listed
	}
	return listed
}

// Middleware rejects callers outside the list with 403.
func (a *AccessList) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := requestIP(c)
		if !a.Allowed(ip) {
			logger.Warnf("http: forbidden %s %s from %s", c.Request.Method, c.Request.URL.Path, ip)
			c.String(http.StatusForbidden, "Access Forbidden")
			c.Abort()
			return
		}
		c.Next()
	}
}

// guard prepends the access check to h. A nil list guards nothing.
func (a *AccessList) guard(h ...gin.HandlerFunc) []gin.HandlerFunc {
	if a == nil {
		return h
	}
	return append([]gin.HandlerFunc{a.Middleware()}, h...)
}

// requestIP is the socket peer, or the X-Real-IP it forwarded when the peer
// is one of the engine's trusted proxies.
func requestIP(c *gin.Context) string {
	return c.ClientIP()
}

// normalizeIP folds IPv4-mapped IPv6 forms onto plain IPv4.
func normalizeIP(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if ip := net.ParseIP(raw); ip != nil {
		return ip.String()
	}
	return raw
}
