// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides SecurityHeaders, baseline hardening for a public JSON
// API.
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// SecurityHeaders sets nosniff, frame denial and referrer suppression on
// every response and exposes the correlation and validator headers to
// browser clients.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		if v := exposeHeaders(h.Get("Access-Control-Expose-Headers"), RequestIDHeader, "ETag"); v != "" {
			h.Set("Access-Control-Expose-Headers", v)
		}
		c.Next()
	}
}

// exposeHeaders appends the names missing from cur.
func exposeHeaders(cur string, names ...string) string {
	out := cur
	for _, n := range names {
		if strings.Contains(out, n) {
			continue
		}
		if out == "" {
			out = n
		} else {
			out += ", " + n
		}
	}
	return out
}
