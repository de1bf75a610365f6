// Package mockapi serves a stand-in for the remote card collection so the
// board can be developed and tested without the hosted service.
package mockapi

import (
	"context"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/starford/cardboard/internal/apperr"
	"github.com/starford/cardboard/internal/models"
)

// Store is the persistence behind the mock collection.
type Store interface {
	// List returns every card ordered by id.
	List(ctx context.Context) ([]models.Card, error)
	// Get returns one card or apperr.ErrNotFound.
	Get(ctx context.Context, id string) (*models.Card, error)
	// Create stores a new card with the next sequential id.
	Create(ctx context.Context, draft models.CardDraft) (*models.Card, error)
	// Delete removes a card and returns it, or apperr.ErrNotFound.
	Delete(ctx context.Context, id string) (*models.Card, error)
	Close() error
}

// record is a stored card.
type record struct {
	models.Card
	CreatedAt time.Time `json:"createdAt"`
}

// snapshot is the whole collection, used by stores that keep it as one blob.
type snapshot struct {
	NextID  int      `json:"next_id"`
	Records []record `json:"cards"`
}

func (s *snapshot) create(draft models.CardDraft, now time.Time) models.Card {
	s.NextID++
	c := models.Card{ID: strconv.Itoa(s.NextID), Title: draft.Title, Description: draft.Description}
	s.Records = append(s.Records, record{Card: c, CreatedAt: now})
	return c
}

func (s *snapshot) remove(id string) (models.Card, bool) {
	i := slices.IndexFunc(s.Records, func(r record) bool { return r.ID == id })
	if i < 0 {
		return models.Card{}, false
	}
	c := s.Records[i].Card
	s.Records = slices.Delete(s.Records, i, i+1)
	return c, true
}

func (s *snapshot) cards() []models.Card {
	out := make([]models.Card, len(s.Records))
	for i, r := range s.Records {
		out[i] = r.Card
	}
	return out
}

// MemoryStore keeps the collection in process memory.
type MemoryStore struct {
	mu   sync.Mutex
	data snapshot
}

// NewMemoryStore creates a store pre-filled with seed cards, whose ids are
// reassigned sequentially.
func NewMemoryStore(seed ...models.CardDraft) *MemoryStore {
	m := &MemoryStore{}
	for _, d := range seed {
		m.data.create(d, time.Now())
	}
	return m
}

// List implements Store.
func (m *MemoryStore) List(_ context.Context) ([]models.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.cards(), nil
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, id string) (*models.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.data.Records {
		if r.ID == id {
			c := r.Card
			return &c, nil
		}
	}
	return nil, apperr.ErrNotFound
}

// Create implements Store.
func (m *MemoryStore) Create(_ context.Context, draft models.CardDraft) (*models.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.data.create(draft, time.Now())
	return &c, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, id string) (*models.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.data.remove(id)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &c, nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	return nil
}
