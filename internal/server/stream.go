package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const streamHeartbeatInterval = 15 * time.Second

// handleStream serves the long-lived progress stream for one job as
// server-sent events. Header-credentialed clients stream without session
// accounting; cookie clients consume one of their session's stream slots.
// The stream ends after the terminal event is delivered.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if _, err := s.registry.Get(jobID); err != nil {
		writeDomainError(w, err)
		return
	}

	if !s.auth.validAPIKey(r.Header.Get(APIKeyHeader)) {
		token, ok := s.auth.sessionToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing or invalid credentials")
			return
		}
		release, err := s.sessions.AcquireStream(token)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		defer release()
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	events, unsubscribe, err := s.broadcaster.Subscribe(jobID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(streamHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case event, open := <-events:
			if !open {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
			if event.Terminal {
				return
			}
		}
	}
}
