package common

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the caller's address as used for rate limit keys and logs.
// chi's RealIP middleware runs first and has already folded X-Forwarded-For and
// X-Real-IP into RemoteAddr, so only RemoteAddr is consulted here.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	addr = strings.Trim(addr, "[]")
	if ip := net.ParseIP(addr); ip != nil {
		return ip.String()
	}
	return addr
}
