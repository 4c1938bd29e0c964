package handlers

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// RateLimiter is the minimal interface required to guard the edit endpoints.
type RateLimiter interface {
	Allow(key string) bool
}

func allowRequest(limiter RateLimiter, r *http.Request, bucket string) bool {
	if limiter == nil {
		return true
	}
	key := rateLimitKey(r, bucket)
	return limiter.Allow(key)
}

func rateLimitKey(r *http.Request, bucket string) string {
	ip := clientIP(r)
	if bucket == "" {
		return ip
	}
	return fmt.Sprintf("%s:%s", bucket, ip)
}

func clientIP(r *http.Request) string {
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
