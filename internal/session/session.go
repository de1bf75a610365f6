// Package session keeps one card board per page load. A session owns its
// board, notification center and event broker; nothing survives a reload.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/cardboard/internal/apperr"
	"github.com/starford/cardboard/internal/board"
	"github.com/starford/cardboard/internal/sse"
	"github.com/starford/cardboard/internal/toast"
	"github.com/starford/cardboard/internal/ui"
)

// Settings are the tunables applied to newly created sessions.
type Settings struct {
	ToastDuration  time.Duration
	Transition     time.Duration
	RenderThrottle time.Duration
	// RequestTimeout bounds each remote call started by a session.
	RequestTimeout time.Duration
	TTL            time.Duration
}

// Session is the state behind one rendered page.
type Session struct {
	ID     string
	Board  *board.Board
	Toasts *toast.Center
	Broker *sse.Broker

	timeout time.Duration

	mu       sync.Mutex
	lastSeen time.Time
}

// Touch records activity on the session.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

// LastSeen returns the time of the most recent activity.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// OpContext returns the context for a remote call started by the session.
// It is detached from any request so that leaving the page does not cancel
// an operation that was already issued.
func (s *Session) OpContext() (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), s.timeout)
}

func (s *Session) close() {
	s.Board.Close()
	s.Toasts.Close()
	s.Broker.Close()
}

// Registry creates, finds and expires sessions.
type Registry struct {
	svc      board.CardService
	renderer *ui.Renderer
	logger   *slog.Logger

	mu       sync.Mutex
	settings Settings
	sessions map[string]*Session
	wg       sync.WaitGroup
}

// NewRegistry creates an empty registry.
func NewRegistry(svc board.CardService, renderer *ui.Renderer, settings Settings, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		svc:      svc,
		renderer: renderer,
		logger:   logger,
		settings: settings,
		sessions: make(map[string]*Session),
	}
}

// UpdateSettings changes the tunables for sessions created from now on.
func (r *Registry) UpdateSettings(s Settings) {
	r.mu.Lock()
	r.settings = s
	r.mu.Unlock()
}

// Settings returns the current tunables.
func (r *Registry) Settings() Settings {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.settings
}

// Create starts a new session and kicks off the initial load.
func (r *Registry) Create() *Session {
	st := r.Settings()
	id := uuid.NewString()
	logger := r.logger.With(slog.String("session", id))

	s := &Session{
		ID:       id,
		timeout:  st.RequestTimeout,
		lastSeen: time.Now(),
	}
	// Toasts raised before the browser connects, like a failed initial
	// load, reach it with the replayed board.
	s.Broker = sse.NewBroker(st.RenderThrottle, sse.WithReplay(func() []sse.Event {
		active := s.Toasts.Active()
		events := make([]sse.Event, len(active))
		for i, n := range active {
			events[i] = sse.Event{Type: sse.TypeToastShown, Data: n}
		}
		return events
	}))
	s.Toasts = toast.NewCenter(st.ToastDuration, func(kind string, n toast.Notification) {
		typ := sse.TypeToastShown
		if kind == toast.KindDismissed {
			typ = sse.TypeToastDismissed
		}
		s.Broker.Publish(sse.Event{Type: typ, Data: n})
	})
	s.Board = board.New(r.svc, s.Toasts,
		board.WithLogger(logger),
		board.WithTransition(st.Transition),
		board.WithOnChange(func() {
			frame, err := r.renderer.Frame(s.Board.Snapshot())
			if err != nil {
				logger.Error("render board failed", slog.String("error", err.Error()))
				return
			}
			s.Broker.PublishBoard(frame)
		}),
	)

	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := s.OpContext()
		defer cancel()
		_ = s.Board.Load(ctx)
	}()

	logger.Debug("session created")
	return s
}

// Get returns the session with id and marks it active.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return nil, apperr.ErrSessionNotFound
	}
	s.Touch()
	return s, nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep closes sessions that have no connected event stream and have been
// idle for longer than the TTL. It returns the number of sessions removed.
func (r *Registry) Sweep(now time.Time) int {
	ttl := r.Settings().TTL
	if ttl <= 0 {
		return 0
	}

	var expired []*Session
	r.mu.Lock()
	for id, s := range r.sessions {
		if s.Broker.ClientCount() == 0 && now.Sub(s.LastSeen()) > ttl {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		s.close()
		r.logger.Debug("session expired", slog.String("session", s.ID))
	}
	return len(expired)
}

// Run sweeps expired sessions every interval until ctx is cancelled.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := r.Sweep(now); n > 0 {
				r.logger.Info("sessions expired", slog.Int("count", n), slog.Int("live", r.Len()))
			}
		}
	}
}

// Close closes every session and waits for pending initial loads.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
	r.wg.Wait()
}
