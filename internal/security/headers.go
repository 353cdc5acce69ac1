package security

import (
	"net/http"
	"strconv"
	"strings"
)

// Directive is one Content-Security-Policy directive and its sources.
type Directive struct {
	Name    string
	Sources []string
}

// DonationPagePolicy allows the checkout widget, the UPI QR image service and
// the page's font and style CDNs.
var DonationPagePolicy = []Directive{
	{"default-src", []string{"'self'"}},
	{"script-src", []string{"'self'", "'unsafe-inline'", "https://js.stripe.com", "https://api.qrserver.com"}},
	{"style-src", []string{"'self'", "'unsafe-inline'", "https://fonts.googleapis.com", "https://cdnjs.cloudflare.com"}},
	{"font-src", []string{"'self'", "https://fonts.gstatic.com", "https://cdnjs.cloudflare.com"}},
	{"img-src", []string{"'self'", "data:", "https:", "http:"}},
	{"connect-src", []string{"'self'", "https://api.stripe.com"}},
	{"frame-src", []string{"'self'", "https://js.stripe.com", "https://hooks.stripe.com"}},
	{"object-src", []string{"'none'"}},
	{"base-uri", []string{"'self'"}},
	{"form-action", []string{"'self'"}},
	{"frame-ancestors", []string{"'self'"}},
}

// Headers configures common security headers for HTTP responses.
type Headers struct {
	Enable                bool
	EnableHSTS            bool
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
	CSP                   []Directive
}

// ContentSecurityPolicy renders directives into a header value.
func ContentSecurityPolicy(directives []Directive) string {
	parts := make([]string, 0, len(directives))
	for _, d := range directives {
		if len(d.Sources) == 0 {
			parts = append(parts, d.Name)
			continue
		}
		parts = append(parts, d.Name+" "+strings.Join(d.Sources, " "))
	}
	return strings.Join(parts, "; ")
}

// Middleware attaches standard security headers to each response.
func (h Headers) Middleware(next http.Handler) http.Handler {
	csp := ContentSecurityPolicy(h.CSP)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.Enable {
			next.ServeHTTP(w, r)
			return
		}
		headers := w.Header()
		headers.Set("X-Content-Type-Options", "nosniff")
		headers.Set("X-Frame-Options", "SAMEORIGIN")
		headers.Set("X-DNS-Prefetch-Control", "off")
		headers.Set("Referrer-Policy", "no-referrer")
		headers.Set("Cross-Origin-Opener-Policy", "same-origin")
		headers.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		if csp != "" {
			headers.Set("Content-Security-Policy", csp)
		}
		if h.EnableHSTS && (r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https") {
			maxAge := h.HSTSMaxAge
			if maxAge <= 0 {
				maxAge = 31536000
			}
			value := "max-age=" + strconv.Itoa(maxAge)
			if h.HSTSIncludeSubdomains {
				value += "; includeSubDomains"
			}
			headers.Set("Strict-Transport-Security", value)
		}
		next.ServeHTTP(w, r)
	})
}
