// Package clientip resolves the originating client address of an HTTP
// request, looking through common proxy headers before falling back to
// the socket peer.
package clientip

import (
	"net"
	"net/http"
	"strings"
)

// FromRequest returns the client IP for the request. Proxy headers are
// consulted in order (X-Forwarded-For first IP, then X-Real-IP); when
// none carries a valid address the connection's RemoteAddr is used.
func FromRequest(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		for _, ip := range strings.Split(forwarded, ",") {
			if parsed := parse(ip); parsed != "" {
				return parsed
			}
		}
	}

	if parsed := parse(r.Header.Get("X-Real-IP")); parsed != "" {
		return parsed
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return parse(r.RemoteAddr)
	}
	return parse(host)
}

// parse validates and normalizes an address, returning "" when invalid.
func parse(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	ip := net.ParseIP(s)
	if ip == nil {
		return ""
	}
	return ip.String()
}
