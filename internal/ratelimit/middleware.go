package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/noah-isme/donation-api/internal/common"
)

// DefaultMessage is sent with 429 responses when Handler.Message is empty.
const DefaultMessage = "Too many requests from this IP, please try again later."

// Handler enforces rate limits before delegating to the next handler. Limiter
// failures let the request through.
type Handler struct {
	Limiter Limiter
	Key     func(*http.Request) string
	Message string
	OnError func(error)
}

// ByClientIP keys requests by the caller's address under prefix.
func ByClientIP(prefix string) func(*http.Request) string {
	return func(r *http.Request) string {
		return prefix + common.ClientIP(r)
	}
}

// Middleware implements the http.Handler middleware interface.
func (h Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Limiter == nil || h.Key == nil {
			next.ServeHTTP(w, r)
			return
		}
		d, err := h.Limiter.Allow(r.Context(), h.Key(r))
		if err != nil {
			if h.OnError != nil {
				h.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}

		headers := w.Header()
		headers.Set("X-RateLimit-Limit", strconv.Itoa(max(d.Limit, 0)))
		headers.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(d.Reset.Unix(), 10))

		if !d.Allowed {
			retryAfter := int(time.Until(d.Reset).Seconds())
			headers.Set("Retry-After", strconv.Itoa(max(retryAfter, 0)))
			msg := h.Message
			if msg == "" {
				msg = DefaultMessage
			}
			http.Error(w, msg, http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}
