// Package events fans out file and tunnel changes to subscribers such as the
// websocket stream and the heartbeat notifier.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/yal42d-debug/dosya-paylas/internal/metrics"
	tunnelModel "github.com/yal42d-debug/dosya-paylas/pkg/tunnel"
)

const (
	EventUpload   = "upload"
	EventDelete   = "delete"
	EventRelocate = "relocate"
	EventTunnel   = "tunnel"
)

// subscriberBuffer is the per-subscriber queue length; events beyond it are dropped
const subscriberBuffer = 64

// Event is a change notification.
type Event struct {
	Type string `json:"type"`
	// Name is the affected file for upload and delete
	Name string `json:"name,omitempty"`
	Size int64  `json:"size,omitempty"`
	// Dir is the new root for relocate
	Dir string `json:"dir,omitempty"`
	// Tunnel is the new status for tunnel events
	Tunnel    *tunnelModel.Status `json:"tunnel,omitempty"`
	Timestamp int64               `json:"timestamp"`
}

// Broadcaster manages subscribers and publishes events.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
}

// NewBroadcaster creates a new event broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[chan Event]struct{}),
	}
}

// Subscribe adds a new subscriber and returns its event channel.
// The caller must call Unsubscribe when done.
func (b *Broadcaster) Subscribe() chan Event {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	n := len(b.subscribers)
	b.mu.Unlock()
	metrics.SetEventSubscribers(n)
	return ch
}

// Unsubscribe removes a subscriber and closes its channel. Unknown or already
// removed channels are ignored.
func (b *Broadcaster) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
	n := len(b.subscribers)
	b.mu.Unlock()
	metrics.SetEventSubscribers(n)
}

// Publish sends an event to all subscribers. Non-blocking: drops events
// for slow consumers.
func (b *Broadcaster) Publish(event Event) {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
	metrics.RecordEvent(event.Type)
}

// Count returns the current number of subscribers.
func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// MarshalEvent serializes an event to JSON.
func MarshalEvent(e Event) ([]byte, error) {
	return json.Marshal(e)
}
