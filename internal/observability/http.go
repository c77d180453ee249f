package observability

import (
	"net"
	"net/http"
	"strings"
)

// Correlation headers propagated by the frontend and the API gateway.
const (
	deviceIDHeader  = "X-Device-Id"
	requestIDHeader = "X-Request-Id"
)

func DeviceIDFromRequest(r *http.Request) string {
	return r.Header.Get(deviceIDHeader)
}

func RequestIDFromRequest(r *http.Request) string {
	return r.Header.Get(requestIDHeader)
}

// IPFromRequest prefers the first X-Forwarded-For hop over the peer address.
func IPFromRequest(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}
