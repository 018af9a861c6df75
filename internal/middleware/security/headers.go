package security

import (
	"fmt"
	"net/http"
)

// HeadersConfig lists the response headers set on every API response.
type HeadersConfig struct {
	CSP string

	HSTSMaxAge            int
	HSTSIncludeSubdomains bool

	XFrameOptions       string
	XContentTypeOptions string
	XXSSProtection      string
	ReferrerPolicy      string
	PermissionsPolicy   string
	CrossOriginResource string
}

// DefaultHeadersConfig returns headers for a JSON API that serves no
// documents of its own.
func DefaultHeadersConfig() HeadersConfig {
	return HeadersConfig{
		CSP: "default-src 'none'; frame-ancestors 'none'; base-uri 'none'",

		HSTSMaxAge:            31536000,
		HSTSIncludeSubdomains: true,

		XFrameOptions:       "DENY",
		XContentTypeOptions: "nosniff",
		XXSSProtection:      "1; mode=block",
		ReferrerPolicy:      "strict-origin-when-cross-origin",
		PermissionsPolicy:   "geolocation=(), microphone=(), camera=(), payment=()",
		CrossOriginResource: "same-origin",
	}
}

// Headers returns middleware applying cfg before calling next.
func Headers(cfg HeadersConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apply(cfg, w.Header(), r.TLS != nil)
			next.ServeHTTP(w, r)
		})
	}
}

func apply(cfg HeadersConfig, h http.Header, tls bool) {
	set := func(k, v string) {
		if v != "" {
			h.Set(k, v)
		}
	}
	set("X-Content-Type-Options", cfg.XContentTypeOptions)
	set("X-Frame-Options", cfg.XFrameOptions)
	set("X-XSS-Protection", cfg.XXSSProtection)
	set("Content-Security-Policy", cfg.CSP)
	set("Referrer-Policy", cfg.ReferrerPolicy)
	set("Permissions-Policy", cfg.PermissionsPolicy)
	set("Cross-Origin-Resource-Policy", cfg.CrossOriginResource)

	// HSTS only makes sense over HTTPS
	if tls && cfg.HSTSMaxAge > 0 {
		v := fmt.Sprintf("max-age=%d", cfg.HSTSMaxAge)
		if cfg.HSTSIncludeSubdomains {
			v += "; includeSubDomains"
		}
		h.Set("Strict-Transport-Security", v)
	}
}
