// Package broadcaster fans scanner events out to watch streams. It is a
// scanner.EventSink; every subscriber gets its own buffered channel and
// events that do not fit are dropped for that subscriber only.
package broadcaster

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/zenonby/directory-getinfo/pkg/getinfo/scanner"
)

// EventType is the kind of a scanner event.
type EventType int

const (
	EventDirectory EventType = iota
	EventMime
	EventFailure
)

func (t EventType) String() string {
	switch t {
	case EventDirectory:
		return "directory"
	case EventMime:
		return "mime"
	case EventFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Event is one scanner event. Exactly one payload field is set.
type Event struct {
	Type      EventType
	Directory *scanner.DirectoryInfo
	Mime      *scanner.MimeSizesInfo
	Err       string
}

// Path returns the directory the event is about, or "" for failures.
func (e *Event) Path() string {
	switch {
	case e.Directory != nil:
		return e.Directory.Path
	case e.Mime != nil:
		return e.Mime.Path
	default:
		return ""
	}
}

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 256

// Subscriber is one watch stream.
type Subscriber struct {
	ID     string
	Root   string
	Events chan *Event

	mu      sync.Mutex
	dropped uint64
}

// Dropped returns the number of events that did not fit the channel.
func (s *Subscriber) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Broadcaster manages subscribers and distributes scanner events.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	closed      bool
}

// New creates a new Broadcaster.
func New() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[string]*Subscriber),
	}
}

// Subscribe creates a subscription for events under root. An empty root
// receives everything. Returns nil after Close.
func (b *Broadcaster) Subscribe(root string) *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	sub := &Subscriber{
		ID:     uuid.New().String(),
		Root:   root,
		Events: make(chan *Event, DefaultBuffer),
	}
	b.subscribers[sub.ID] = sub
	return sub
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subscribers[id]; ok {
		close(sub.Events)
		delete(b.subscribers, id)
	}
}

// OnDirectoryInfo implements scanner.EventSink.
func (b *Broadcaster) OnDirectoryInfo(info scanner.DirectoryInfo) {
	b.publish(&Event{Type: EventDirectory, Directory: &info})
}

// OnMimeSizes implements scanner.EventSink.
func (b *Broadcaster) OnMimeSizes(info scanner.MimeSizesInfo) {
	b.publish(&Event{Type: EventMime, Mime: &info})
}

// OnWorkerFailure implements scanner.EventSink. Failures reach every
// subscriber regardless of root.
func (b *Broadcaster) OnWorkerFailure(err error) {
	b.publish(&Event{Type: EventFailure, Err: err.Error()})
}

func (b *Broadcaster) publish(ev *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, sub := range b.subscribers {
		if !matches(sub.Root, ev) {
			continue
		}
		select {
		case sub.Events <- ev:
		default:
			sub.mu.Lock()
			sub.dropped++
			sub.mu.Unlock()
		}
	}
}

// matches reports whether ev concerns root or a path below it.
func matches(root string, ev *Event) bool {
	path := ev.Path()
	if root == "" || path == "" {
		return true
	}
	if !strings.HasPrefix(path, root) {
		return false
	}
	// not just a prefix match
	if len(path) > len(root) && path[len(root)] != filepath.Separator && !strings.HasSuffix(root, string(filepath.Separator)) {
		return false
	}
	return true
}

// Close closes the broadcaster and all subscriptions.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.closed = true
	for _, sub := range b.subscribers {
		close(sub.Events)
	}
	b.subscribers = make(map[string]*Subscriber)
}

// SubscriberCount returns the number of active subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

var _ scanner.EventSink = (*Broadcaster)(nil)
