// Package testutil provides shared test helpers for standing up a mock remote
// collection and a client pointed at it.
package testutil

import (
	"net/http/httptest"
	"testing"

	"github.com/starford/cardboard/internal/cardapi"
	"github.com/starford/cardboard/internal/mockapi"
	"github.com/starford/cardboard/internal/models"
)

// Remote starts an in-memory mock collection seeded with cards and returns a
// client for it. Seed cards get ids "1", "2", ... in order.
func Remote(t *testing.T, seed ...models.CardDraft) (*cardapi.Client, *mockapi.MemoryStore) {
	t.Helper()
	store := mockapi.NewMemoryStore(seed...)
	srv := httptest.NewServer(mockapi.NewServer(store).Handler(""))
	t.Cleanup(srv.Close)

	client, err := cardapi.New(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	return client, store
}

// DeadRemote returns a client whose server is already gone, so every call
// fails at the transport level.
func DeadRemote(t *testing.T) *cardapi.Client {
	t.Helper()
	srv := httptest.NewServer(mockapi.NewServer(mockapi.NewMemoryStore()).Handler(""))
	url := srv.URL
	srv.Close()

	client, err := cardapi.New(url)
	if err != nil {
		t.Fatal(err)
	}
	return client
}

// Scenario is the two-card collection used across tests.
func Scenario() []models.CardDraft {
	return []models.CardDraft{
		{Title: "A", Description: "d1"},
		{Title: "B", Description: "d2"},
	}
}
