package api

import (
	"fmt"
	"net/http"
	"strings"

	"tickstream/internal/utils"

	json "github.com/goccy/go-json"
)

// maxBodyBytes bounds symbol control request bodies.
const maxBodyBytes = 4 << 10

type symbolRequest struct {
	Symbol string `json:"symbol" validate:"required"`
}

type symbolResponse struct {
	Status string `json:"status"`
	Symbol string `json:"symbol"`
}

func (s *Server) decodeSymbol(w http.ResponseWriter, r *http.Request) (string, error) {
	var req symbolRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		return "", fmt.Errorf("%w: valid symbol required: %v", utils.ErrInvalidArgument, err)
	}
	if err := s.validate.Struct(&req); err != nil {
		return "", fmt.Errorf("%w: valid symbol required", utils.ErrInvalidArgument)
	}
	return req.Symbol, nil
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	symbol, err := s.decodeSymbol(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	sym, err := s.streamer.AddSymbol(symbol)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, symbolResponse{Status: "subscribed", Symbol: sym})
}

func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	symbol, err := s.decodeSymbol(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	sym, err := s.streamer.RemoveSymbol(symbol)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, symbolResponse{Status: "unsubscribed", Symbol: strings.ToUpper(sym)})
}

func (s *Server) handleSymbols(w http.ResponseWriter, _ *http.Request) {
	symbols := s.streamer.Symbols()
	if symbols == nil {
		symbols = []string{}
	}
	writeJSON(w, http.StatusOK, symbols)
}
