// Package toast implements transient, auto-dismissing notifications.
package toast

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultDuration is how long a notification stays visible.
const DefaultDuration = 3000 * time.Millisecond

// Severity classifies a notification.
type Severity string

// Severities.
const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityInfo    Severity = "info"
)

// Notification is a single toast message.
type Notification struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Event kinds delivered to a Sink.
const (
	KindShown     = "shown"
	KindDismissed = "dismissed"
)

// Sink receives notification lifecycle events. It is called without the
// center's lock held and must not block for long.
type Sink func(kind string, n Notification)

type entry struct {
	n     Notification
	timer *time.Timer
}

// Center owns the active notifications of one board.
type Center struct {
	mu       sync.Mutex
	duration time.Duration
	sink     Sink
	active   map[string]*entry
	closed   bool
}

// NewCenter creates a notification center. A non-positive duration falls back
// to DefaultDuration. sink may be nil.
func NewCenter(duration time.Duration, sink Sink) *Center {
	if duration <= 0 {
		duration = DefaultDuration
	}
	return &Center{
		duration: duration,
		sink:     sink,
		active:   make(map[string]*entry),
	}
}

// Notify shows a message and schedules its dismissal.
func (c *Center) Notify(message string, severity Severity) Notification {
	now := time.Now()
	n := Notification{
		ID:        uuid.NewString(),
		Message:   message,
		Severity:  severity,
		CreatedAt: now,
		ExpiresAt: now.Add(c.duration),
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return n
	}
	e := &entry{n: n}
	c.active[n.ID] = e
	e.timer = time.AfterFunc(c.duration, func() { c.Dismiss(n.ID) })
	c.mu.Unlock()

	c.emit(KindShown, n)
	return n
}

// Success shows a success notification.
func (c *Center) Success(message string) Notification {
	return c.Notify(message, SeveritySuccess)
}

// Error shows an error notification.
func (c *Center) Error(message string) Notification {
	return c.Notify(message, SeverityError)
}

// Info shows an informational notification.
func (c *Center) Info(message string) Notification {
	return c.Notify(message, SeverityInfo)
}

// Dismiss removes a notification before it expires. It returns false when
// the notification is unknown or already gone.
func (c *Center) Dismiss(id string) bool {
	c.mu.Lock()
	e, ok := c.active[id]
	if ok {
		delete(c.active, id)
		e.timer.Stop()
	}
	c.mu.Unlock()

	if ok {
		c.emit(KindDismissed, e.n)
	}
	return ok
}

// Active returns the visible notifications, oldest first.
func (c *Center) Active() []Notification {
	c.mu.Lock()
	out := make([]Notification, 0, len(c.active))
	for _, e := range c.active {
		out = append(out, e.n)
	}
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Close stops all pending expiry timers. Later notifications are not shown.
func (c *Center) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for id, e := range c.active {
		e.timer.Stop()
		delete(c.active, id)
	}
}

func (c *Center) emit(kind string, n Notification) {
	if c.sink != nil {
		c.sink(kind, n)
	}
}
