package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	defaultHeartbeat = 15 * time.Second
	clientBacklog    = 8
	completeFrame    = "event: complete\ndata: {}\n\n"
)

// Stream fans generation events out to Server-Sent Events clients.
// A client whose backlog fills is dropped; it must not stall the others.
type Stream struct {
	heartbeat time.Duration

	mu      sync.Mutex
	clients map[string]*client
}

type client struct {
	frames chan []byte
	once   sync.Once
}

func (c *client) drop() {
	c.once.Do(func() { close(c.frames) })
}

// NewStream returns a Stream with no clients attached.
func NewStream() *Stream {
	return &Stream{
		heartbeat: defaultHeartbeat,
		clients:   make(map[string]*client),
	}
}

// NewStreamWriter returns a Stream whose frames are copied to w. Tests use
// it to observe the wire format without an HTTP server.
func NewStreamWriter(w io.Writer) *Stream {
	s := NewStream()
	id, c := s.subscribe()
	go func() {
		defer s.unsubscribe(id)
		for frame := range c.frames {
			if _, err := w.Write(frame); err != nil {
				return
			}
		}
	}()
	return s
}

// SetHeartbeat sets how often idle connections receive a comment frame.
// Zero or negative disables heartbeats.
func (s *Stream) SetHeartbeat(d time.Duration) {
	if s == nil {
		return
	}
	if d < 0 {
		d = 0
	}
	s.heartbeat = d
}

func (s *Stream) subscribe() (string, *client) {
	c := &client{frames: make(chan []byte, clientBacklog)}
	id := uuid.NewString()
	s.mu.Lock()
	s.clients[id] = c
	s.mu.Unlock()
	return id, c
}

func (s *Stream) unsubscribe(id string) {
	s.mu.Lock()
	c, ok := s.clients[id]
	if ok {
		delete(s.clients, id)
	}
	s.mu.Unlock()
	if ok {
		c.drop()
	}
}

// ServeHTTP subscribes the requester and relays frames until the request
// context ends or the client falls behind.
func (s *Stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s == nil {
		http.Error(w, "event: stream not configured", http.StatusServiceUnavailable)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "event: response does not support streaming", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")

	id, c := s.subscribe()
	defer s.unsubscribe(id)

	_, _ = io.WriteString(w, ": connected\n\n")
	flusher.Flush()

	var beat <-chan time.Time
	if s.heartbeat > 0 {
		ticker := time.NewTicker(s.heartbeat)
		defer ticker.Stop()
		beat = ticker.C
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-c.frames:
			if !ok {
				return
			}
			if _, err := w.Write(frame); err != nil {
				return
			}
			flusher.Flush()
		case now := <-beat:
			if _, err := fmt.Fprintf(w, ": heartbeat %d\n\n", now.Unix()); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// Send validates, normalizes, and broadcasts one event.
func (s *Stream) Send(evt Event) error {
	if s == nil {
		return errors.New("event: stream is nil")
	}
	frame, err := frameFor(evt)
	if err != nil {
		return err
	}
	s.fanout(frame)
	return nil
}

// StreamEvents relays a channel of events until it closes or ctx ends.
// A closed channel broadcasts a terminal "complete" frame.
func (s *Stream) StreamEvents(ctx context.Context, events <-chan Event) error {
	if s == nil {
		return errors.New("event: stream is nil")
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-events:
			if !ok {
				s.fanout([]byte(completeFrame))
				return nil
			}
			if err := s.Send(evt); err != nil {
				return err
			}
		}
	}
}

func (s *Stream) fanout(frame []byte) {
	s.mu.Lock()
	var evicted []*client
	for id, c := range s.clients {
		select {
		case c.frames <- frame:
		default:
			delete(s.clients, id)
			evicted = append(evicted, c)
		}
	}
	s.mu.Unlock()
	for _, c := range evicted {
		c.drop()
	}
}

func frameFor(evt Event) ([]byte, error) {
	normalized := normalizeEvent(evt)
	if err := normalized.Validate(); err != nil {
		return nil, err
	}
	body, err := json.Marshal(normalized)
	if err != nil {
		return nil, fmt.Errorf("event: marshal payload: %w", err)
	}
	return fmt.Appendf(nil, "id: %s\nevent: %s\ndata: %s\n\n", normalized.ID, normalized.Type, body), nil
}
