// Package events fan-outs session lifecycle events to in-process subscribers
// and to the API's SSE stream, so dashboards can react to sign-ins and
// project switches without polling.
package events

import (
	"context"
	"sync"
	"time"
)

// Kind distinguishes session lifecycle events.
type Kind string

const (
	KindSignedIn        Kind = "signed_in"
	KindSignedOut       Kind = "signed_out"
	KindProjectSwitched Kind = "project_switched"
	KindRoleOverride    Kind = "role_override"
)

// SessionEvent describes a change in someone's session.
type SessionEvent struct {
	Kind      Kind      `json:"kind"`
	PersonID  string    `json:"person_id,omitempty"`
	ProjectID string    `json:"project_id,omitempty"`
	Role      string    `json:"role,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Stream fan-outs session events to all active subscribers.
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan SessionEvent
	next int
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[int]chan SessionEvent)}
}

// Subscribe registers a subscriber and returns a channel which will receive
// events. The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan SessionEvent {
	ch := make(chan SessionEvent, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the event to all subscribers.
func (s *Stream) Publish(evt SessionEvent) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}
