// Package board holds the card board: the in-memory card sequence of one page
// session, the in-flight markers that gate its controls, and the add, delete
// and load operations that keep it in step with the remote collection.
package board

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/starford/cardboard/internal/apperr"
	"github.com/starford/cardboard/internal/cardapi"
	"github.com/starford/cardboard/internal/models"
	"github.com/starford/cardboard/internal/toast"
)

// Outcome messages.
const (
	MsgAdded   = "Added!"
	MsgDeleted = "Deleted!"
)

// CardService is the remote collection the board mirrors.
type CardService interface {
	ListCards(ctx context.Context) ([]models.Card, error)
	CreateCard(ctx context.Context, draft *models.CardDraft) (*models.Card, error)
	DeleteCard(ctx context.Context, id string) error
}

// Notifier surfaces operation outcomes to the user.
type Notifier interface {
	Notify(message string, severity toast.Severity) toast.Notification
}

// Status is the observable load state of the board.
type Status string

// Statuses.
const (
	StatusLoading Status = "loading"
	StatusEmpty   Status = "empty"
	StatusReady   Status = "ready"
)

// CardView is a card as rendered, with its animation phase and whether its
// delete control is busy.
type CardView struct {
	models.Card
	Phase    Phase `json:"phase"`
	Deleting bool  `json:"deleting"`
}

// View is a consistent snapshot of everything a frontend renders.
type View struct {
	Status Status     `json:"status"`
	Adding bool       `json:"adding"`
	Cards  []CardView `json:"cards"`
}

// Option configures a Board.
type Option func(*Board)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Board) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithOnChange registers a callback invoked after every state change.
func WithOnChange(fn func()) Option {
	return func(b *Board) {
		b.onChange = fn
	}
}

// WithTransition sets the enter/exit animation duration.
func WithTransition(d time.Duration) Option {
	return func(b *Board) {
		b.refs = NewRefs(d)
	}
}

// Board is the card board of one page session.
//
// Remote calls run without the lock held; the card sequence is only mutated
// in the completion step of each operation.
type Board struct {
	svc      CardService
	notifier Notifier
	logger   *slog.Logger
	onChange func()
	refs     *Refs

	mu          sync.Mutex
	cards       []models.Card
	loadStarted bool
	loadDone    chan struct{}
	loading     bool
	adding      bool
	deleting    map[string]struct{}
	sweepTimer  *time.Timer
	closed      bool
}

// New creates a board in the initial loading state. Call Load to fetch the
// collection.
func New(svc CardService, notifier Notifier, opts ...Option) *Board {
	b := &Board{
		svc:      svc,
		notifier: notifier,
		logger:   slog.Default(),
		refs:     NewRefs(DefaultTransition),
		cards:    []models.Card{},
		loading:  true,
		loadDone: make(chan struct{}),
		deleting: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Load fetches the whole collection and replaces the card sequence with it.
// Only the first call issues a request; later calls return nil immediately.
func (b *Board) Load(ctx context.Context) error {
	b.mu.Lock()
	if b.loadStarted {
		b.mu.Unlock()
		return nil
	}
	b.loadStarted = true
	b.loading = true
	b.mu.Unlock()

	cards, err := b.svc.ListCards(ctx)

	b.mu.Lock()
	b.loading = false
	if err == nil {
		b.cards = slices.Clone(cards)
		if b.cards == nil {
			b.cards = []models.Card{}
		}
	}
	close(b.loadDone)
	b.mu.Unlock()

	if err != nil {
		b.fail("load cards", err)
		return fmt.Errorf("load cards: %w", err)
	}

	b.logger.Debug("cards loaded", slog.Int("count", len(cards)))
	b.changed()
	return nil
}

// Add creates a card remotely and puts it at the front of the sequence.
// It returns apperr.ErrBusy when another add has not completed yet.
func (b *Board) Add(ctx context.Context, draft *models.CardDraft) (*models.Card, error) {
	b.mu.Lock()
	if b.adding {
		b.mu.Unlock()
		return nil, apperr.ErrBusy
	}
	b.adding = true
	b.mu.Unlock()
	b.changed()

	card, err := b.svc.CreateCard(ctx, draft)

	b.mu.Lock()
	b.adding = false
	if err == nil {
		b.cards = append([]models.Card{*card}, b.cards...)
	}
	b.mu.Unlock()

	if err != nil {
		b.fail("add card", err)
		return nil, fmt.Errorf("add card: %w", err)
	}

	b.refs.Enter(*card)
	b.scheduleSweep()
	b.logger.Info("card added", slog.String("id", card.ID))
	b.notifier.Notify(MsgAdded, toast.SeveritySuccess)
	b.changed()
	return card, nil
}

// Delete removes the card with id remotely, then from the sequence. Deletes
// of different ids may run concurrently; a second delete of the same id
// while the first is in flight returns apperr.ErrBusy.
func (b *Board) Delete(ctx context.Context, id string) error {
	b.mu.Lock()
	if _, busy := b.deleting[id]; busy {
		b.mu.Unlock()
		return apperr.ErrBusy
	}
	b.deleting[id] = struct{}{}
	b.mu.Unlock()
	b.changed()

	err := b.svc.DeleteCard(ctx, id)

	var (
		removed models.Card
		prevID  string
		found   bool
	)
	b.mu.Lock()
	delete(b.deleting, id)
	if err == nil {
		if idx := slices.IndexFunc(b.cards, func(c models.Card) bool { return c.ID == id }); idx >= 0 {
			removed, found = b.cards[idx], true
			if idx > 0 {
				prevID = b.cards[idx-1].ID
			}
			b.cards = slices.Delete(slices.Clone(b.cards), idx, idx+1)
		}
	}
	b.mu.Unlock()

	if err != nil {
		b.fail("delete card", err, slog.String("id", id))
		return fmt.Errorf("delete card %s: %w", id, err)
	}

	if found {
		b.refs.Exit(removed, prevID)
		b.scheduleSweep()
	}
	b.logger.Info("card deleted", slog.String("id", id))
	b.notifier.Notify(MsgDeleted, toast.SeveritySuccess)
	b.changed()
	return nil
}

// Loaded is closed once the initial load has completed, successfully or not.
func (b *Board) Loaded() <-chan struct{} {
	return b.loadDone
}

// Cards returns a copy of the live card sequence.
func (b *Board) Cards() []models.Card {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.cards)
}

// Loading reports whether the initial load has not completed yet.
func (b *Board) Loading() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loading
}

// Adding reports whether an add is in flight.
func (b *Board) Adding() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.adding
}

// Deleting reports whether a delete of id is in flight.
func (b *Board) Deleting(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.deleting[id]
	return ok
}

// Snapshot returns the render state. Exiting cards are placed after the card
// that preceded them when they were removed.
func (b *Board) Snapshot() View {
	b.mu.Lock()
	v := View{Adding: b.adding, Cards: make([]CardView, 0, len(b.cards))}
	switch {
	case b.loading:
		v.Status = StatusLoading
	case len(b.cards) == 0:
		v.Status = StatusEmpty
	default:
		v.Status = StatusReady
	}
	for _, c := range b.cards {
		_, del := b.deleting[c.ID]
		v.Cards = append(v.Cards, CardView{Card: c, Phase: b.refs.Phase(c.ID), Deleting: del})
	}
	b.mu.Unlock()

	exiting := b.refs.Exiting()
	sort.Slice(exiting, func(i, j int) bool {
		return exiting[i].Started.Before(exiting[j].Started)
	})
	for _, t := range exiting {
		cv := CardView{Card: t.Card, Phase: PhaseExit}
		pos := len(v.Cards)
		if t.PrevID == "" {
			pos = 0
		} else if i := slices.IndexFunc(v.Cards, func(c CardView) bool { return c.ID == t.PrevID }); i >= 0 {
			pos = i + 1
		}
		v.Cards = slices.Insert(v.Cards, pos, cv)
	}
	return v
}

// Close stops pending transition timers, drops transition handles and
// silences change callbacks.
func (b *Board) Close() {
	b.mu.Lock()
	b.closed = true
	if b.sweepTimer != nil {
		b.sweepTimer.Stop()
	}
	b.mu.Unlock()
	b.refs.Reset()
}

func (b *Board) fail(op string, err error, attrs ...any) {
	msg := cardapi.Message(err)
	b.logger.Warn(op+" failed", append(attrs, slog.String("error", err.Error()))...)
	b.notifier.Notify(msg, toast.SeverityError)
	b.changed()
}

func (b *Board) changed() {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if !closed && b.onChange != nil {
		b.onChange()
	}
}

func (b *Board) scheduleSweep() {
	next, ok := b.refs.NextDeadline()
	if !ok {
		return
	}
	d := max(time.Until(next), 0)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	if b.sweepTimer == nil {
		b.sweepTimer = time.AfterFunc(d, b.sweep)
		return
	}
	b.sweepTimer.Reset(d)
}

func (b *Board) sweep() {
	if b.refs.Sweep() {
		b.changed()
	}
	b.scheduleSweep()
}
