package board

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/cardboard/internal/apperr"
	"github.com/starford/cardboard/internal/cardapi"
	"github.com/starford/cardboard/internal/models"
	"github.com/starford/cardboard/internal/toast"
)

type fakeService struct {
	mu        sync.Mutex
	list      []models.Card
	listErr   error
	created   *models.Card
	createErr error
	deleteErr error
	gate      chan struct{}
	calls     []string
}

func (f *fakeService) wait(ctx context.Context, call string) error {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	gate := f.gate
	f.mu.Unlock()
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeService) ListCards(ctx context.Context) ([]models.Card, error) {
	if err := f.wait(ctx, "list"); err != nil {
		return nil, err
	}
	return f.list, f.listErr
}

func (f *fakeService) CreateCard(ctx context.Context, _ *models.CardDraft) (*models.Card, error) {
	if err := f.wait(ctx, "create"); err != nil {
		return nil, err
	}
	if f.createErr != nil {
		return nil, f.createErr
	}
	c := *f.created
	return &c, nil
}

func (f *fakeService) DeleteCard(ctx context.Context, id string) error {
	if err := f.wait(ctx, "delete:"+id); err != nil {
		return err
	}
	return f.deleteErr
}

func (f *fakeService) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type note struct {
	msg string
	sev toast.Severity
}

type fakeNotifier struct {
	mu    sync.Mutex
	notes []note
}

func (n *fakeNotifier) Notify(message string, severity toast.Severity) toast.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, note{message, severity})
	return toast.Notification{Message: message, Severity: severity}
}

func (n *fakeNotifier) all() []note {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]note(nil), n.notes...)
}

func seed() []models.Card {
	return []models.Card{
		{ID: "1", Title: "A", Description: "d1"},
		{ID: "2", Title: "B", Description: "d2"},
	}
}

func TestInitialStateIsLoading(t *testing.T) {
	b := New(&fakeService{}, &fakeNotifier{})
	defer b.Close()
	if v := b.Snapshot(); v.Status != StatusLoading {
		t.Errorf("status = %q, want loading", v.Status)
	}
}

func TestLoadSuccess(t *testing.T) {
	svc := &fakeService{list: seed()}
	n := &fakeNotifier{}
	b := New(svc, n)
	defer b.Close()

	if err := b.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(seed(), b.Cards()); diff != "" {
		t.Errorf("cards mismatch (-want +got):\n%s", diff)
	}
	v := b.Snapshot()
	if v.Status != StatusReady {
		t.Errorf("status = %q, want ready", v.Status)
	}
	for _, c := range v.Cards {
		if c.Phase != PhaseIdle {
			t.Errorf("loaded card %s phase = %q, want idle", c.ID, c.Phase)
		}
	}
	if got := n.all(); len(got) != 0 {
		t.Errorf("notifications = %v, want none", got)
	}
}

func TestLoadEmpty(t *testing.T) {
	b := New(&fakeService{}, &fakeNotifier{})
	defer b.Close()
	if err := b.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if v := b.Snapshot(); v.Status != StatusEmpty || len(v.Cards) != 0 {
		t.Errorf("view = %+v, want empty", v)
	}
}

func TestLoadFailure(t *testing.T) {
	svc := &fakeService{listErr: &cardapi.Error{StatusCode: 500, Body: []byte(`{"message":"db down"}`)}}
	n := &fakeNotifier{}
	b := New(svc, n)
	defer b.Close()

	if err := b.Load(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if len(b.Cards()) != 0 {
		t.Error("cards should stay empty")
	}
	if b.Loading() {
		t.Error("loading flag should be cleared")
	}
	want := []note{{"db down", toast.SeverityError}}
	if diff := cmp.Diff(want, n.all(), cmp.AllowUnexported(note{})); diff != "" {
		t.Errorf("notifications (-want +got):\n%s", diff)
	}
}

func TestLoadOnlyOnce(t *testing.T) {
	svc := &fakeService{list: seed()}
	b := New(svc, &fakeNotifier{})
	defer b.Close()
	_ = b.Load(context.Background())
	_ = b.Load(context.Background())
	if got := svc.callCount(); got != 1 {
		t.Errorf("remote calls = %d, want 1", got)
	}
}

func TestAddPrepends(t *testing.T) {
	svc := &fakeService{list: seed(), created: &models.Card{ID: "3"}}
	n := &fakeNotifier{}
	b := New(svc, n)
	defer b.Close()
	_ = b.Load(context.Background())

	card, err := b.Add(context.Background(), nil)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if card.ID != "3" {
		t.Errorf("id = %q", card.ID)
	}
	cards := b.Cards()
	if cards[0].ID != "3" || len(cards) != 3 {
		t.Errorf("cards = %+v", cards)
	}
	if b.Adding() {
		t.Error("adding flag should be cleared")
	}
	if v := b.Snapshot(); v.Cards[0].Phase != PhaseEnter {
		t.Errorf("new card phase = %q, want enter", v.Cards[0].Phase)
	}
	want := []note{{MsgAdded, toast.SeveritySuccess}}
	if diff := cmp.Diff(want, n.all(), cmp.AllowUnexported(note{})); diff != "" {
		t.Errorf("notifications (-want +got):\n%s", diff)
	}
}

func TestAddFailure(t *testing.T) {
	svc := &fakeService{list: seed(), createErr: errors.New("boom")}
	n := &fakeNotifier{}
	b := New(svc, n)
	defer b.Close()
	_ = b.Load(context.Background())

	if _, err := b.Add(context.Background(), nil); err == nil {
		t.Fatal("expected error")
	}
	if diff := cmp.Diff(seed(), b.Cards()); diff != "" {
		t.Errorf("cards changed (-want +got):\n%s", diff)
	}
	if b.Adding() {
		t.Error("adding flag should be cleared")
	}
	got := n.all()
	if len(got) != 1 || got[0].msg != cardapi.UnknownError || got[0].sev != toast.SeverityError {
		t.Errorf("notifications = %+v", got)
	}
}

func TestAddWhileAddingIsBusy(t *testing.T) {
	gate := make(chan struct{})
	svc := &fakeService{created: &models.Card{ID: "3"}, gate: gate}
	b := New(svc, &fakeNotifier{})
	defer b.Close()

	done := make(chan error, 1)
	go func() {
		_, err := b.Add(context.Background(), nil)
		done <- err
	}()
	waitFor(t, b.Adding)

	if v := b.Snapshot(); !v.Adding {
		t.Error("snapshot should report adding")
	}
	if _, err := b.Add(context.Background(), nil); !errors.Is(err, apperr.ErrBusy) {
		t.Errorf("second Add err = %v, want ErrBusy", err)
	}
	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("first Add: %v", err)
	}
	if got := svc.callCount(); got != 1 {
		t.Errorf("remote calls = %d, want 1", got)
	}
}

func TestDeleteSuccess(t *testing.T) {
	svc := &fakeService{list: seed()}
	n := &fakeNotifier{}
	b := New(svc, n)
	defer b.Close()
	_ = b.Load(context.Background())

	if err := b.Delete(context.Background(), "1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	want := []models.Card{{ID: "2", Title: "B", Description: "d2"}}
	if diff := cmp.Diff(want, b.Cards()); diff != "" {
		t.Errorf("cards (-want +got):\n%s", diff)
	}
	if b.Deleting("1") {
		t.Error("deleting marker should be cleared")
	}
	got := n.all()
	if len(got) != 1 || got[0].msg != MsgDeleted {
		t.Errorf("notifications = %+v", got)
	}
}

func TestDeleteFailureLeavesListUnchanged(t *testing.T) {
	svc := &fakeService{list: seed(), deleteErr: &cardapi.Error{StatusCode: 404, Body: []byte(`"Not found"`)}}
	n := &fakeNotifier{}
	b := New(svc, n)
	defer b.Close()
	_ = b.Load(context.Background())

	if err := b.Delete(context.Background(), "2"); err == nil {
		t.Fatal("expected error")
	}
	if diff := cmp.Diff(seed(), b.Cards()); diff != "" {
		t.Errorf("cards changed (-want +got):\n%s", diff)
	}
	if b.Deleting("2") {
		t.Error("deleting marker should be cleared")
	}
	got := n.all()
	if len(got) != 1 || got[0].msg != "Not found" || got[0].sev != toast.SeverityError {
		t.Errorf("notifications = %+v", got)
	}
}

func TestDeleteSameIDIsBusyOtherIDsAreNot(t *testing.T) {
	gate := make(chan struct{})
	svc := &fakeService{list: seed()}
	b := New(svc, &fakeNotifier{})
	defer b.Close()
	_ = b.Load(context.Background())
	svc.mu.Lock()
	svc.gate = gate
	svc.mu.Unlock()

	errs := make(chan error, 2)
	go func() { errs <- b.Delete(context.Background(), "1") }()
	waitFor(t, func() bool { return b.Deleting("1") })

	if err := b.Delete(context.Background(), "1"); !errors.Is(err, apperr.ErrBusy) {
		t.Errorf("same id err = %v, want ErrBusy", err)
	}

	go func() { errs <- b.Delete(context.Background(), "2") }()
	waitFor(t, func() bool { return b.Deleting("2") })

	v := b.Snapshot()
	for _, c := range v.Cards {
		if !c.Deleting {
			t.Errorf("card %s should be marked deleting", c.ID)
		}
	}

	close(gate)
	for range 2 {
		if err := <-errs; err != nil {
			t.Fatalf("Delete: %v", err)
		}
	}
	if len(b.Cards()) != 0 {
		t.Errorf("cards = %+v, want none", b.Cards())
	}
}

func TestExitTransitionKeepsCardInPlaceUntilTimeout(t *testing.T) {
	svc := &fakeService{list: []models.Card{{ID: "1"}, {ID: "2"}, {ID: "3"}}}
	changes := make(chan struct{}, 16)
	b := New(svc, &fakeNotifier{},
		WithTransition(40*time.Millisecond),
		WithOnChange(func() {
			select {
			case changes <- struct{}{}:
			default:
			}
		}))
	defer b.Close()
	_ = b.Load(context.Background())

	if err := b.Delete(context.Background(), "2"); err != nil {
		t.Fatal(err)
	}
	v := b.Snapshot()
	ids := make([]string, len(v.Cards))
	for i, c := range v.Cards {
		ids[i] = c.ID
	}
	if diff := cmp.Diff([]string{"1", "2", "3"}, ids); diff != "" {
		t.Errorf("render order (-want +got):\n%s", diff)
	}
	if v.Cards[1].Phase != PhaseExit {
		t.Errorf("phase = %q, want exit", v.Cards[1].Phase)
	}

	waitFor(t, func() bool { return len(b.Snapshot().Cards) == 2 })
	if _, ok := b.refs.Get("2"); ok {
		t.Error("exit handle should be released")
	}
}

func TestExitOfFirstCardRendersFirst(t *testing.T) {
	svc := &fakeService{list: seed()}
	b := New(svc, &fakeNotifier{}, WithTransition(time.Hour))
	defer b.Close()
	_ = b.Load(context.Background())
	_ = b.Delete(context.Background(), "1")

	v := b.Snapshot()
	if len(v.Cards) != 2 || v.Cards[0].ID != "1" || v.Cards[0].Phase != PhaseExit {
		t.Errorf("cards = %+v", v.Cards)
	}
}

func TestScenario(t *testing.T) {
	svc := &fakeService{list: seed()}
	b := New(svc, &fakeNotifier{})
	defer b.Close()

	if err := b.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := b.Delete(context.Background(), "2"); err != nil {
		t.Fatal(err)
	}
	svc.created = &models.Card{ID: "3", Title: "", Description: ""}
	if _, err := b.Add(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	want := []models.Card{
		{ID: "3"},
		{ID: "1", Title: "A", Description: "d1"},
	}
	if diff := cmp.Diff(want, b.Cards()); diff != "" {
		t.Errorf("cards (-want +got):\n%s", diff)
	}
}

func TestOnChangeSilencedAfterClose(t *testing.T) {
	calls := 0
	var mu sync.Mutex
	b := New(&fakeService{list: seed()}, &fakeNotifier{}, WithOnChange(func() {
		mu.Lock()
		calls++
		mu.Unlock()
	}))
	b.Close()
	_ = b.Load(context.Background())
	mu.Lock()
	defer mu.Unlock()
	if calls != 0 {
		t.Errorf("onChange calls = %d, want 0", calls)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestLoadedClosesAfterFailedLoad(t *testing.T) {
	svc := &fakeService{listErr: errors.New("dial tcp: connection refused")}
	b := New(svc, &fakeNotifier{})
	defer b.Close()

	select {
	case <-b.Loaded():
		t.Fatal("Loaded should block before the load runs")
	default:
	}
	_ = b.Load(context.Background())
	select {
	case <-b.Loaded():
	case <-time.After(time.Second):
		t.Fatal("Loaded should close once the load completes")
	}
}

func TestCloseDropsExitTransitions(t *testing.T) {
	b := New(&fakeService{list: seed()}, &fakeNotifier{}, WithTransition(time.Hour))
	_ = b.Load(context.Background())
	_ = b.Delete(context.Background(), "1")
	if len(b.refs.Exiting()) != 1 {
		t.Fatalf("exiting = %v, want one handle", b.refs.Exiting())
	}
	b.Close()
	if got := b.refs.Exiting(); len(got) != 0 {
		t.Errorf("exiting after close = %v, want none", got)
	}
}
