package mockapi

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/go-cmp/cmp"

	"github.com/starford/cardboard/internal/apperr"
	"github.com/starford/cardboard/internal/models"
)

// fakeObjects is an in-memory stand-in for the S3 object API.
type fakeObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
}

func (f *fakeObjects) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeObjects) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objects == nil {
		f.objects = make(map[string][]byte)
	}
	f.objects[*in.Bucket+"/"+*in.Key] = data
	f.puts++
	return &s3.PutObjectOutput{}, nil
}

func stores(t *testing.T) map[string]Store {
	t.Helper()
	sq, err := OpenSQLite(filepath.Join(t.TempDir(), "mock.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { sq.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sq,
		"s3":     NewS3Store(&fakeObjects{}, "bucket", ""),
	}
}

func TestStoreContract(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			cards, err := st.List(ctx)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(cards) != 0 {
				t.Fatalf("new store has %d cards", len(cards))
			}

			a, err := st.Create(ctx, models.CardDraft{Title: "A", Description: "d1"})
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			b, err := st.Create(ctx, models.CardDraft{})
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			if a.ID != "1" || b.ID != "2" {
				t.Errorf("ids = %q, %q, want sequential", a.ID, b.ID)
			}

			got, err := st.Get(ctx, "1")
			if err != nil || got.Title != "A" {
				t.Errorf("Get = %+v, %v", got, err)
			}

			deleted, err := st.Delete(ctx, "1")
			if err != nil || deleted.Title != "A" {
				t.Errorf("Delete = %+v, %v", deleted, err)
			}
			if _, err := st.Delete(ctx, "1"); !errors.Is(err, apperr.ErrNotFound) {
				t.Errorf("second Delete err = %v, want ErrNotFound", err)
			}
			if _, err := st.Get(ctx, "nope"); !errors.Is(err, apperr.ErrNotFound) {
				t.Errorf("Get unknown err = %v, want ErrNotFound", err)
			}

			c, err := st.Create(ctx, models.CardDraft{Title: "C"})
			if err != nil {
				t.Fatal(err)
			}
			if c.ID != "3" {
				t.Errorf("id after delete = %q, want 3 (ids are not reused)", c.ID)
			}

			cards, err = st.List(ctx)
			if err != nil {
				t.Fatal(err)
			}
			want := []models.Card{{ID: "2"}, {ID: "3", Title: "C"}}
			if diff := cmp.Diff(want, cards); diff != "" {
				t.Errorf("List (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMemoryStoreSeed(t *testing.T) {
	st := NewMemoryStore(models.CardDraft{Title: "A"}, models.CardDraft{Title: "B"})
	cards, _ := st.List(context.Background())
	if len(cards) != 2 || cards[0].ID != "1" || cards[1].Title != "B" {
		t.Errorf("cards = %+v", cards)
	}
}

func TestS3StoreWritesOnlyOnMutation(t *testing.T) {
	objs := &fakeObjects{}
	st := NewS3Store(objs, "bucket", "board/cards.json")
	ctx := context.Background()
	_, _ = st.List(ctx)
	_, _ = st.Create(ctx, models.CardDraft{Title: "A"})
	_, _ = st.Delete(ctx, "missing")
	if objs.puts != 1 {
		t.Errorf("puts = %d, want 1", objs.puts)
	}
	if _, ok := objs.objects["bucket/board/cards.json"]; !ok {
		t.Error("object not written under configured key")
	}
}
