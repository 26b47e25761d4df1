package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func securedGet(opt SecurityOptions, mutate func(*http.Request), pre ...gin.HandlerFunc) http.Header {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(pre...)
	r.Use(SecurityHeaders(opt))
	r.GET("/api/v1/listings", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/api/v1/listings", nil)
	if mutate != nil {
		mutate(req)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Header()
}

func TestSecurityHeaders(t *testing.T) {
	overTLS := func(r *http.Request) { r.TLS = &tls.ConnectionState{} }
	viaProxy := func(r *http.Request) { r.Header.Set("X-Forwarded-Proto", "https") }

	cases := []struct {
		name   string
		opt    SecurityOptions
		mutate func(*http.Request)
		want   map[string]string
	}{
		{
			name: "baseline",
			want: map[string]string{
				"X-Content-Type-Options":        "nosniff",
				"X-Frame-Options":               "DENY",
				"Referrer-Policy":               "no-referrer",
				"Permissions-Policy":            "",
				"Cache-Control":                 "",
				"Strict-Transport-Security":     "",
				"Access-Control-Expose-Headers": "X-Request-ID, ETag, Idempotency-Replayed, Retry-After",
			},
		},
		{
			name: "policy and no-store",
			opt:  SecurityOptions{EnablePolicy: true, NoStore: true},
			want: map[string]string{
				"X-Permitted-Cross-Domain-Policies": "none",
				"Cache-Control":                     "no-store",
				"Pragma":                            "no-cache",
				"Expires":                           "0",
			},
		},
		{
			name: "hsts skipped over plain http",
			opt:  SecurityOptions{EnableHSTS: true},
			want: map[string]string{"Strict-Transport-Security": ""},
		},
		{
			name:   "hsts over tls",
			opt:    SecurityOptions{EnableHSTS: true, HSTSMaxAge: 24 * time.Hour},
			mutate: overTLS,
			want:   map[string]string{"Strict-Transport-Security": "max-age=86400; includeSubDomains; preload"},
		},
		{
			name:   "hsts default age behind proxy",
			opt:    SecurityOptions{EnableHSTS: true},
			mutate: viaProxy,
			want:   map[string]string{"Strict-Transport-Security": "max-age=15552000; includeSubDomains; preload"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := securedGet(tc.opt, tc.mutate)
			for k, v := range tc.want {
				if got := h.Get(k); got != v {
					t.Errorf("%s = %q; want %q", k, got, v)
				}
			}
		})
	}
}

func TestSecurityHeaders_MergesExposeList(t *testing.T) {
	pre := func(c *gin.Context) {
		c.Header("Access-Control-Expose-Headers", "Location, etag")
		c.Next()
	}
	got := securedGet(SecurityOptions{}, nil, pre).Get("Access-Control-Expose-Headers")
	if want := "Location, etag, X-Request-ID, Idempotency-Replayed, Retry-After"; got != want {
		t.Fatalf("expose headers = %q; want %q", got, want)
	}
}

func TestNoStore_OnlyOnGroup(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/listings", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.Group("/auth", NoStore()).POST("/login", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/login", nil))
	if w.Header().Get("Cache-Control") != "no-store" || w.Header().Get("Expires") != "0" {
		t.Fatalf("login response must be no-store: %#v", w.Header())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/listings", nil))
	if w.Header().Get("Cache-Control") != "" {
		t.Fatalf("browse should stay cacheable, got %q", w.Header().Get("Cache-Control"))
	}
}
