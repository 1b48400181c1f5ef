package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"tickstream/internal/model"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/hlog"
)

// wsMessage is the envelope of every frame pushed on /tick/ws.
type wsMessage struct {
	Type string      `json:"type"`
	Data *model.Tick `json:"data,omitempty"`
}

// handleSSE streams live ticks as server-sent events until the client goes away.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, errors.New("streaming unsupported"))
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	onConnected := func() error {
		if _, err := fmt.Fprint(w, ": connected\n\n"); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	send := func(tick model.Tick) error {
		data, err := json.Marshal(tick)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "event: tick\ndata: %s\n\n", data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	if err := s.streamer.Stream(r.Context(), r.URL.Query().Get("symbol"), onConnected, send); err != nil {
		hlog.FromRequest(r).Debug().Err(err).Msg("sse stream ended")
	}
}

// handleWebsocket streams live ticks over a WebSocket until either side closes.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response
		hlog.FromRequest(r).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Reads only surface control frames and client disconnects.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func(msg wsMessage) error {
		data, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		if err := conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
			return err
		}
		return conn.WriteMessage(websocket.TextMessage, data)
	}

	onConnected := func() error {
		return write(wsMessage{Type: "connected"})
	}

	send := func(tick model.Tick) error {
		return write(wsMessage{Type: "tick", Data: &tick})
	}

	err = s.streamer.Stream(ctx, r.URL.Query().Get("symbol"), onConnected, send)
	if err != nil {
		hlog.FromRequest(r).Debug().Err(err).Msg("websocket stream ended")
		return
	}

	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
}
