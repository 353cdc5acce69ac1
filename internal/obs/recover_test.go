package obs

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestRecovererRendersGenericError(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	boom := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("nil map write") })

	for _, tc := range []struct {
		expose  bool
		details any
	}{
		{expose: false, details: nil},
		{expose: true, details: "nil map write"},
	} {
		rr := httptest.NewRecorder()
		Recoverer(logger, tc.expose)(boom).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/config", nil))

		require.Equal(t, http.StatusInternalServerError, rr.Code)
		var body struct {
			Error struct {
				Message string `json:"message"`
				Details any    `json:"details"`
			} `json:"error"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		require.Equal(t, "Internal server error", body.Error.Message)
		require.Equal(t, tc.details, body.Error.Details)
	}
	require.Contains(t, buf.String(), "panic_recovered")
}
