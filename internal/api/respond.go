package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"portfolioapi/internal/exchange"
	"portfolioapi/internal/logger"
	"portfolioapi/internal/price"
)

func contextWithRequestID(ctx context.Context, id string, log logger.Logger) context.Context {
	ctx = context.WithValue(ctx, ctxKeyRequestID, id)
	return context.WithValue(ctx, ctxKeyLogger, log)
}

// requestLogger returns the request-scoped logger, or the base one when the
// middleware did not run (tests calling handlers directly).
func requestLogger(ctx context.Context, fallback logger.Logger) logger.Logger {
	if l, ok := ctx.Value(ctxKeyLogger).(logger.Logger); ok {
		return l
	}
	return fallback
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(body)
}

type errorBody struct {
	Error    string          `json:"error"`
	Attempts []price.Attempt `json:"attempts,omitempty"`
}

// writeError maps the error taxonomy onto JSON payloads: configuration
// errors are 500, everything upstream (transport, provider, parse,
// exhaustion) is 502. The body is always JSON.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	log := requestLogger(ctx, h.log)

	if errors.Is(err, exchange.ErrMissingCredentials) {
		log.Warn(ctx, "unconfigured venue requested", "error", err.Error())
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}

	var exhausted *price.ExhaustedError
	if errors.As(err, &exhausted) {
		log.Error(ctx, "all rate sources failed", err)
		writeJSON(w, http.StatusBadGateway, errorBody{
			Error:    "all rate sources failed",
			Attempts: exhausted.Attempts,
		})
		return
	}

	log.Error(ctx, "upstream failure", err)
	writeJSON(w, http.StatusBadGateway, errorBody{Error: err.Error()})
}
