// Package sse implements a Server-Sent Events broker for board sessions.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event types.
const (
	TypeBoardUpdated   = "board.updated"
	TypeToastShown     = "toast.shown"
	TypeToastDismissed = "toast.dismissed"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Broker manages SSE client connections and broadcasts events.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable state
// (clients, the latest board frame and its flush timer). Public methods
// communicate with this loop through channels, so no mutexes are required.
type Broker struct {
	boardMin time.Duration
	replay   func() []Event

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	boardCh       chan Event
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// Option configures a Broker.
type Option func(*Broker)

// WithReplay sets a source of events sent to every new client right after
// the board frame, such as toasts that are still on screen.
func WithReplay(fn func() []Event) Option {
	return func(b *Broker) {
		b.replay = fn
	}
}

// NewBroker creates a new SSE broker. Board frames published closer together
// than boardThrottle are coalesced; the latest frame is always delivered.
func NewBroker(boardThrottle time.Duration, opts ...Option) *Broker {
	if boardThrottle <= 0 {
		boardThrottle = 50 * time.Millisecond
	}

	b := &Broker{
		boardMin:      boardThrottle,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		boardCh:       make(chan Event, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	go b.run()
	return b
}

func encode(event Event) []byte {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return nil
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))
}

// client tracks whether the last board frame failed to reach a subscriber.
type client struct {
	staleBoard bool
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]*client)

	var (
		lastBoard    []byte
		pendingBoard []byte
		lastFlush    time.Time
		flushTimer   *time.Timer
		flushCh      <-chan time.Time
		retryTimer   *time.Timer
		retryCh      <-chan time.Time
	)

	send := func(ch chan []byte, raw []byte) bool {
		select {
		case ch <- raw:
			return true
		default:
			// Client buffer full; skip to avoid blocking broker loop.
			return false
		}
	}

	scheduleRetry := func() {
		if retryCh != nil {
			return
		}
		if retryTimer == nil {
			retryTimer = time.NewTimer(b.boardMin)
		} else {
			retryTimer.Reset(b.boardMin)
		}
		retryCh = retryTimer.C
	}

	// sendBoard delivers a board frame and remembers clients that missed it.
	sendBoard := func(ch chan []byte, c *client, raw []byte) {
		if send(ch, raw) {
			c.staleBoard = false
			return
		}
		c.staleBoard = true
		scheduleRetry()
	}

	broadcast := func(raw []byte) {
		if raw == nil {
			return
		}
		for ch := range clients {
			send(ch, raw)
		}
	}

	flushBoard := func() {
		if pendingBoard == nil {
			return
		}
		lastBoard = pendingBoard
		pendingBoard = nil
		lastFlush = time.Now()
		for ch, c := range clients {
			sendBoard(ch, c, lastBoard)
		}
	}

	for {
		select {
		case <-b.stopCh:
			if flushTimer != nil {
				flushTimer.Stop()
			}
			if retryTimer != nil {
				retryTimer.Stop()
			}
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			c := &client{}
			clients[ch] = c
			// Replay the current board so a new client renders immediately.
			if pendingBoard != nil {
				sendBoard(ch, c, pendingBoard)
			} else if lastBoard != nil {
				sendBoard(ch, c, lastBoard)
			}
			if b.replay != nil {
				for _, event := range b.replay() {
					if raw := encode(event); raw != nil {
						send(ch, raw)
					}
				}
			}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(encode(event))

		case event := <-b.boardCh:
			raw := encode(event)
			if raw == nil {
				continue
			}
			pendingBoard = raw
			wait := b.boardMin - time.Since(lastFlush)
			if wait <= 0 {
				flushBoard()
				continue
			}
			if flushCh == nil {
				if flushTimer == nil {
					flushTimer = time.NewTimer(wait)
				} else {
					flushTimer.Reset(wait)
				}
				flushCh = flushTimer.C
			}

		case <-flushCh:
			flushCh = nil
			flushBoard()

		case <-retryCh:
			retryCh = nil
			// A pending frame will reach stale clients on its own flush.
			if pendingBoard != nil || lastBoard == nil {
				continue
			}
			for ch, c := range clients {
				if c.staleBoard {
					sendBoard(ch, c, lastBoard)
				}
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishBoard publishes a board frame. Frames are throttled and the most
// recent one is replayed to clients that subscribe later.
func (b *Broker) PublishBoard(data interface{}) {
	if b.closed.Load() {
		return
	}
	select {
	case b.boardCh <- Event{Type: TypeBoardUpdated, Data: data}:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
