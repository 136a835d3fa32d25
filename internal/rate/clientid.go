package rate

import (
	"net"
	"net/http"
	"strings"
)

// Anonymous is the client id used when a request carries no address.
const Anonymous = "anonymous"

// ClientID derives the limiter key for r: the first X-Forwarded-For entry,
// then the host part of RemoteAddr.
func ClientID(r *http.Request) string {
	if r == nil {
		return Anonymous
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	addr := strings.TrimSpace(r.RemoteAddr)
	if addr == "" {
		return Anonymous
	}
	if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
		return host
	}
	return addr
}
