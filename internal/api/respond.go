package api

import (
	"errors"
	"net/http"

	"tickstream/internal/analytics"
	"tickstream/internal/candles"
	"tickstream/internal/export"
	"tickstream/internal/utils"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/hlog"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	Required  *int   `json:"required,omitempty"`
	Available *int   `json:"available,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// writeError classifies err into a status code and error body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var insufficient *analytics.InsufficientDataError

	switch {
	case errors.As(err, &insufficient):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{
			Error:     "insufficient_data",
			Message:   err.Error(),
			Required:  &insufficient.Required,
			Available: &insufficient.Available,
		})
	case errors.Is(err, candles.ErrUnsupportedTimeframe):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_timeframe", Message: "allowed: 1s, 1m, 5m"})
	case errors.Is(err, utils.ErrInvalidArgument):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_argument", Message: err.Error()})
	case errors.Is(err, export.ErrNoData):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not_found", Message: "no data found"})
	default:
		hlog.FromRequest(r).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal"})
	}
}
