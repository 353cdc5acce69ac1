package obs

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestRequestLoggerWritesStructuredLine(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "json", "debug")

	var ctxLoggerFound bool
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(RequestLogger{Logger: logger}.Middleware)
	r.Post("/create-payment-intent", func(w http.ResponseWriter, r *http.Request) {
		ctxLoggerFound = zerolog.Ctx(r.Context()).GetLevel() != zerolog.Disabled
		w.WriteHeader(http.StatusBadRequest)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/create-payment-intent", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.True(t, ctxLoggerFound)

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	require.Equal(t, "http_request", line["message"])
	require.Equal(t, "/create-payment-intent", line["route"])
	require.EqualValues(t, http.StatusBadRequest, line["status"])
	require.NotEmpty(t, line["request_id"])
}

func TestLoggerFromFallsBack(t *testing.T) {
	fallback := zerolog.Nop()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	require.Equal(t, zerolog.Disabled, LoggerFrom(req, fallback).GetLevel())

	var buf bytes.Buffer
	scoped := newLogger(&buf, "json", "info")
	req = req.WithContext(scoped.WithContext(req.Context()))
	LoggerFrom(req, fallback).Info().Msg("scoped")
	require.Contains(t, buf.String(), "scoped")
}
