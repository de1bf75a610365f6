package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/cardboard/internal/board"
	"github.com/starford/cardboard/internal/mockapi"
	"github.com/starford/cardboard/internal/models"
	"github.com/starford/cardboard/internal/testutil"
)

func testServer(t *testing.T) (*Server, *mockapi.MemoryStore) {
	t.Helper()
	client, store := testutil.Remote(t, testutil.Scenario()...)
	srv := New(client, "test", slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(srv.Close)
	return srv, store
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_cards":
		result, err = srv.listCards(ctx, req)
	case "add_card":
		result, err = srv.addCard(ctx, req)
	case "delete_card":
		result, err = srv.deleteCard(ctx, req)
	case "get_board_guide":
		result, err = srv.getBoardGuide(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func listIDs(t *testing.T, srv *Server) []string {
	t.Helper()
	r := callTool(t, srv, "list_cards", map[string]any{})
	if r.IsError {
		t.Fatalf("list_cards failed: %s", resultText(r))
	}
	var cards []models.Card
	if err := json.Unmarshal([]byte(resultText(r)), &cards); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	ids := make([]string, len(cards))
	for i, c := range cards {
		ids[i] = c.ID
	}
	return ids
}

func TestListCards(t *testing.T) {
	srv, _ := testServer(t)

	ids := listIDs(t, srv)
	if strings.Join(ids, ",") != "1,2" {
		t.Errorf("ids = %v, want [1 2]", ids)
	}
}

func TestDeleteThenAdd(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "delete_card", map[string]any{"id": "2"})
	if r.IsError || resultText(r) != board.MsgDeleted {
		t.Fatalf("delete result = %q (error=%v)", resultText(r), r.IsError)
	}

	r = callTool(t, srv, "add_card", map[string]any{"title": "C"})
	if r.IsError {
		t.Fatalf("add failed: %s", resultText(r))
	}
	text := resultText(r)
	if !strings.HasPrefix(text, board.MsgAdded+"\n") {
		t.Errorf("add result = %q", text)
	}
	if !strings.Contains(text, `"title":"C"`) {
		t.Errorf("add result should carry the card: %q", text)
	}

	ids := listIDs(t, srv)
	if strings.Join(ids, ",") != "3,1" {
		t.Errorf("ids = %v, want [3 1]", ids)
	}
}

func TestDeleteMissingCard(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "delete_card", map[string]any{"id": "99"})
	if !r.IsError {
		t.Fatal("expected error result")
	}
	if resultText(r) != "Not found" {
		t.Errorf("message = %q, want %q", resultText(r), "Not found")
	}
	if got := strings.Join(listIDs(t, srv), ","); got != "1,2" {
		t.Errorf("list changed after failed delete: %s", got)
	}
}

func TestDeleteRequiresID(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "delete_card", map[string]any{})
	if !r.IsError {
		t.Error("expected error for missing id")
	}
}

func TestLoadFailureIsReported(t *testing.T) {
	srv := New(testutil.DeadRemote(t), "test", slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(srv.Close)

	r := callTool(t, srv, "list_cards", map[string]any{})
	if !r.IsError {
		t.Fatal("expected error result on dead remote")
	}
	if resultText(r) == "" {
		t.Error("error result should carry a message")
	}

	// The failed load is not repeated; the board stays empty.
	r = callTool(t, srv, "list_cards", map[string]any{})
	if r.IsError || strings.TrimSpace(resultText(r)) != "[]" {
		t.Errorf("second list = %q (error=%v)", resultText(r), r.IsError)
	}
}

// gatedService holds the initial list until released.
type gatedService struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedService) ListCards(ctx context.Context) ([]models.Card, error) {
	g.once.Do(func() { close(g.started) })
	select {
	case <-g.release:
		return []models.Card{{ID: "1", Title: "A"}}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *gatedService) CreateCard(context.Context, *models.CardDraft) (*models.Card, error) {
	return &models.Card{ID: "2"}, nil
}

func (g *gatedService) DeleteCard(context.Context, string) error {
	return nil
}

func TestConcurrentFirstCallsWaitForLoad(t *testing.T) {
	svc := &gatedService{started: make(chan struct{}), release: make(chan struct{})}
	srv := New(svc, "test", slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(srv.Close)

	results := make(chan string, 2)
	list := func() {
		r, _ := srv.listCards(context.Background(), mcp.CallToolRequest{})
		results <- resultText(r)
	}

	go list()
	<-svc.started
	go list()

	// The second call must not answer from the still-empty board.
	select {
	case text := <-results:
		t.Fatalf("call returned before the load finished: %s", text)
	case <-time.After(50 * time.Millisecond):
	}

	close(svc.release)
	for i := 0; i < 2; i++ {
		select {
		case text := <-results:
			if !strings.Contains(text, `"id": "1"`) {
				t.Errorf("result %d = %s, want the loaded card", i, text)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("list_cards did not return")
		}
	}
}

func TestBoardGuide(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_board_guide", nil)
	if !strings.Contains(resultText(r), "delete_card") {
		t.Error("guide should describe delete_card")
	}
}
