package sse

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-json"
)

/*
SessionEvent is published when a session leaves the store.
*/
type SessionEvent struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Time      int64  `json:"time"`
}

const EventDestroyed = "session.destroyed"

/*
Broker maintains a list of subscribers and broadcasts JSON-encoded events
to them. Each event is sent as a single-line SSE message of the form:

event: session.destroyed\ndata: {json}\n\n
*/
type Broker struct {
	mu        sync.RWMutex
	clients   map[chan []byte]struct{}
	closed    bool
	heartbeat time.Duration
}

func NewBroker() *Broker {
	return NewBrokerWithHeartbeat(25 * time.Second)
}

/*
NewBrokerWithHeartbeat sets how often idle streams get a comment line, which
keeps proxies from dropping them.
*/
func NewBrokerWithHeartbeat(heartbeat time.Duration) *Broker {
	return &Broker{
		clients:   make(map[chan []byte]struct{}),
		heartbeat: heartbeat,
	}
}

/*
Subscribe turns the HTTP response into an SSE stream and blocks until the
client disconnects or the broker closes.
*/
func (broker *Broker) Subscribe(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)

	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ch := make(chan []byte, 8)
	broker.mu.Lock()

	if broker.closed {
		broker.mu.Unlock()
		http.Error(w, "broker closed", http.StatusGone)
		return
	}

	broker.clients[ch] = struct{}{}
	broker.mu.Unlock()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(broker.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			broker.remove(ch)
			return
		case msg, open := <-ch:
			if !open {
				return
			}

			_, _ = w.Write(msg)
			flusher.Flush()
		case <-ticker.C:
			_, _ = w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()
		}
	}
}

/*
Publish sends event to all connected clients. Slow clients miss events
rather than block the publisher.
*/
func (broker *Broker) Publish(event SessionEvent) error {
	data, err := json.Marshal(event)

	if err != nil {
		return err
	}

	msg := make([]byte, 0, len(data)+len(event.Type)+16)
	msg = append(msg, "event: "...)
	msg = append(msg, event.Type...)
	msg = append(msg, "\ndata: "...)
	msg = append(msg, data...)
	msg = append(msg, "\n\n"...)

	broker.mu.RLock()
	defer broker.mu.RUnlock()

	if broker.closed {
		return nil
	}

	for ch := range broker.clients {
		select {
		case ch <- msg:
		default:
			log.Warn("dropping session event for slow subscriber", "session_id", event.SessionID)
		}
	}

	return nil
}

/*
SessionDestroyed publishes a destroyed event. It has the shape of a store
destroyed listener.
*/
func (broker *Broker) SessionDestroyed(_ context.Context, sessionID string) {
	if err := broker.Publish(SessionEvent{
		Type:      EventDestroyed,
		SessionID: sessionID,
		Time:      time.Now().UnixMilli(),
	}); err != nil {
		log.Error("failed to publish session event", "session_id", sessionID, "error", err)
	}
}

func (broker *Broker) Subscribers() int {
	broker.mu.RLock()
	defer broker.mu.RUnlock()

	return len(broker.clients)
}

/*
Close disconnects all clients and prevents further subscriptions.
*/
func (broker *Broker) Close() {
	broker.mu.Lock()
	defer broker.mu.Unlock()

	if broker.closed {
		return
	}

	broker.closed = true

	for ch := range broker.clients {
		close(ch)
	}

	broker.clients = map[chan []byte]struct{}{}
}

func (broker *Broker) remove(ch chan []byte) {
	broker.mu.Lock()

	if _, ok := broker.clients[ch]; ok {
		delete(broker.clients, ch)
		close(ch)
	}

	broker.mu.Unlock()
}
