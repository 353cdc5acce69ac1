package obs

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog"

	"github.com/noah-isme/donation-api/internal/common"
)

// Recoverer turns a handler panic into the generic 500 envelope. The panic value
// is included as details only when exposeDetails is set.
func Recoverer(logger zerolog.Logger, exposeDetails bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				err, ok := rec.(error)
				if !ok {
					err = fmt.Errorf("%v", rec)
				}
				LoggerFrom(r, logger).Error().
					Err(err).
					Bytes("stack", debug.Stack()).
					Str("path", r.URL.Path).
					Msg("panic_recovered")
				common.WriteError(w, err, exposeDetails)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
