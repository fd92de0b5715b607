package common

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the caller address. The router runs chi's RealIP first, so
// proxy headers are already folded into RemoteAddr and are not read again here.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	if ip := net.ParseIP(addr); ip != nil {
		return ip.String()
	}
	return addr
}
