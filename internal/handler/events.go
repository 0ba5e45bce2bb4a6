package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/openclaw/inbox-sync-go/internal/errors"
	"github.com/openclaw/inbox-sync-go/internal/httputil"
	"github.com/openclaw/inbox-sync-go/internal/middleware"
	"github.com/openclaw/inbox-sync-go/internal/sse"
)

type EventsHandler struct {
	broker            *sse.Broker
	sessions          Sessions
	heartbeatInterval time.Duration
}

func NewEventsHandler(broker *sse.Broker, sessions Sessions) *EventsHandler {
	return &EventsHandler{
		broker:            broker,
		sessions:          sessions,
		heartbeatInterval: sse.HeartbeatInterval,
	}
}

// GET /v1/events
// Streams state snapshots and notifications of the caller's session.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		httputil.WriteError(w, apperrors.Unauthorized("Unauthorized"))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, apperrors.Internal("Streaming not supported"))
		return
	}

	s, err := h.sessions.Get(r.Context(), *principal)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := h.broker.Subscribe(principal.SessionID)
	defer h.broker.Unsubscribe(client)

	log.Info().
		Str("sessionId", principal.SessionID).
		Str("userId", principal.UserID).
		Msg("sse connection established")

	if err := h.sendEvent(w, flusher, sse.EventState, s.Snapshot()); err != nil {
		log.Error().Err(err).Msg("failed to send initial state")
		return
	}

	ctx := r.Context()
	heartbeat := time.NewTicker(h.heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().
				Str("sessionId", principal.SessionID).
				Msg("sse connection closed by client")
			return

		case <-client.Done:
			log.Info().
				Str("sessionId", principal.SessionID).
				Msg("sse connection closed by broker")
			return

		case event := <-client.Events:
			if err := h.sendRawEvent(w, flusher, event); err != nil {
				log.Error().Err(err).Msg("failed to send event")
				return
			}
			if event.Type == sse.EventSignedOut {
				return
			}

		case <-heartbeat.C:
			s.Touch()
			if _, err := fmt.Fprintf(w, ": ping\n\n"); err != nil {
				log.Debug().
					Str("sessionId", principal.SessionID).
					Msg("heartbeat failed, closing connection")
				return
			}
			flusher.Flush()
		}
	}
}

func (h *EventsHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	return h.sendRawEvent(w, flusher, sse.Event{Type: eventType, Data: jsonData})
}

func (h *EventsHandler) sendRawEvent(w http.ResponseWriter, flusher http.Flusher, event sse.Event) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", event.Type); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", event.Data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
