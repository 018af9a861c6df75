package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientIP(t *testing.T) {
	d := NewDetector()
	tests := []struct {
		name   string
		remote string
		xff    string
		xri    string
		want   string
	}{
		{"direct", "203.0.113.9:5555", "", "", "203.0.113.9"},
		{"untrusted peer ignores headers", "203.0.113.9:5555", "198.51.100.1", "", "203.0.113.9"},
		{"trusted peer uses first forwarded", "10.0.0.2:80", "198.51.100.1, 10.0.0.2", "", "198.51.100.1"},
		{"trusted peer falls back to real ip", "127.0.0.1:80", "garbage", "198.51.100.7", "198.51.100.7"},
		{"trusted peer without headers", "192.168.1.4:80", "", "", "192.168.1.4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			if got := d.ClientIP(r); got != tt.want {
				t.Fatalf("ClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSuspicious(t *testing.T) {
	d := NewDetector()
	tests := []struct {
		method, target, agent string
		want                  bool
	}{
		{http.MethodGet, "/api/expenses?page=2", "Mozilla/5.0", false},
		{http.MethodGet, "/.env", "Mozilla/5.0", true},
		{http.MethodGet, "/api/expenses?q=union%20select", "", true},
		{http.MethodGet, "/api/expenses?q=union+select", "", true},
		{http.MethodGet, "/", "sqlmap/1.7", true},
		{"TRACE", "/", "", true},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(tt.method, tt.target, nil)
		r.Header.Set("User-Agent", tt.agent)
		if got := d.Suspicious(r); got != tt.want {
			t.Errorf("Suspicious(%s %s, %q) = %v, want %v", tt.method, tt.target, tt.agent, got, tt.want)
		}
	}
	if got := d.GetMetrics().SuspiciousRequests; got != 5 {
		t.Fatalf("SuspiciousRequests = %d, want 5", got)
	}
}

func TestHeaders(t *testing.T) {
	h := Headers(DefaultHeadersConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("X-Content-Type-Options = %q", got)
	}
	if got := rr.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("X-Frame-Options = %q", got)
	}
	if rr.Header().Get("Strict-Transport-Security") != "" {
		t.Fatal("HSTS set on plain HTTP")
	}

	rr = httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.TLS = &tls.ConnectionState{}
	h.ServeHTTP(rr, r)
	if got := rr.Header().Get("Strict-Transport-Security"); got != "max-age=31536000; includeSubDomains" {
		t.Fatalf("HSTS = %q", got)
	}
}
