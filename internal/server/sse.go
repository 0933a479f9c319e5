package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/sidekick-dev/sidekick/internal/event"
	"github.com/sidekick-dev/sidekick/internal/logging"
)

// heartbeatInterval keeps intermediaries from reaping the idle SSE stream.
const heartbeatInterval = 30 * time.Second

// pushUpdate is the wire envelope for unsolicited subscription deliveries.
type pushUpdate struct {
	Type  string `json:"type"` // always "push-update"
	Topic string `json:"topic"`
	Data  any    `json:"data"`
}

// sseClient is one connected event-stream consumer with its topic set.
type sseClient struct {
	id   string
	ch   chan event.Update
	subs *event.Subscriptions
}

func (s *Server) client(id string) (*sseClient, bool) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	c, ok := s.clients[id]
	return c, ok
}

type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}
	return &sseWriter{w: w, flusher: flusher, rc: http.NewResponseController(w)}, nil
}

func (s *sseWriter) writeEvent(data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: message\ndata: %s\n\n", jsonData); err != nil {
		return err
	}
	if err := s.rc.Flush(); err != nil {
		s.flusher.Flush()
	}
	return nil
}

func (s *sseWriter) writeHeartbeat() {
	fmt.Fprintf(s.w, ": heartbeat\n\n")
	s.flusher.Flush()
}

// handleEvents serves the push stream. Each connection is one client with
// its own subscription set, manipulated via the subscribe/unsubscribe RPCs
// using the clientId announced in the initial connected event.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("clientId")
	if clientID == "" {
		clientID = ulid.Make().String()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sse, err := newSSEWriter(w)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, responseData{
			Error: &rpcError{Code: ErrCodeInternalError, Message: err.Error()},
		})
		return
	}
	w.WriteHeader(http.StatusOK)
	sse.flusher.Flush()

	client := &sseClient{
		id: clientID,
		// Small buffer keeps latency low; a stalled consumer drops
		// instead of blocking publishers.
		ch: make(chan event.Update, 64),
	}
	client.subs = event.NewSubscriptions(s.deps.Bus, func(u event.Update) {
		select {
		case client.ch <- u:
		default:
			logging.Warn().Str("topic", u.Topic).Str("client", clientID).Msg("sse update dropped: channel full")
		}
	})
	// Execution requests for editor tools must always reach the client.
	client.subs.Subscribe(event.TopicClientToolRequest)

	s.clientsMu.Lock()
	s.clients[clientID] = client
	s.clientsMu.Unlock()

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, clientID)
		s.clientsMu.Unlock()
		client.subs.Close()
		if s.deps.ClientTools != nil {
			s.deps.ClientTools.Cleanup(clientID)
		}
	}()

	if err := sse.writeEvent(map[string]any{"type": "connected", "clientId": clientID}); err != nil {
		return
	}

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case u := <-client.ch:
			if err := sse.writeEvent(pushUpdate{Type: "push-update", Topic: u.Topic, Data: u.Data}); err != nil {
				return
			}
		case <-ticker.C:
			sse.writeHeartbeat()
		}
	}
}
