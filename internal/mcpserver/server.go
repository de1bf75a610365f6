// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the card board for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/cardboard/internal/apperr"
	"github.com/starford/cardboard/internal/board"
	"github.com/starford/cardboard/internal/cardapi"
	"github.com/starford/cardboard/internal/models"
	"github.com/starford/cardboard/internal/toast"
)

// Server wraps the MCP server with card tools.
type Server struct {
	mcp   *server.MCPServer
	board *board.Board
}

// logNotifier records outcomes in the log; stdio has no toast layer and the
// tool results carry the same messages.
type logNotifier struct {
	logger *slog.Logger
}

func (l logNotifier) Notify(message string, severity toast.Severity) toast.Notification {
	l.logger.Info("notification", slog.String("severity", string(severity)), slog.String("message", message))
	return toast.Notification{Message: message, Severity: severity}
}

// New creates a new MCP server with all card tools registered.
func New(svc board.CardService, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{}
	s.board = board.New(svc, logNotifier{logger: logger}, board.WithLogger(logger))

	s.mcp = server.NewMCPServer(
		"Cardboard",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_cards",
		mcp.WithDescription("List all cards on the board in display order."),
	), s.listCards)

	s.mcp.AddTool(mcp.NewTool("add_card",
		mcp.WithDescription("Add a new card to the front of the board. "+
			"Title and description are optional; omit both to let the remote service choose."),
		mcp.WithString("title", mcp.Description("Card title")),
		mcp.WithString("description", mcp.Description("Card description")),
	), s.addCard)

	s.mcp.AddTool(mcp.NewTool("delete_card",
		mcp.WithDescription("Delete a card by id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Id of the card to delete")),
	), s.deleteCard)

	s.mcp.AddTool(mcp.NewTool("get_board_guide",
		mcp.WithDescription("Returns a short description of the board and its tools."),
	), s.getBoardGuide)

	s.mcp.AddResource(
		mcp.NewResource("cardboard://guide", "Board Guide",
			mcp.WithResourceDescription("How the card board and its tools behave."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readGuideResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// Close releases the board.
func (s *Server) Close() {
	s.board.Close()
}

// ensureLoaded performs the initial load on first use. Calls racing the
// first one wait for its result. A failed load is reported once; the board
// then stays empty like a page whose load failed.
func (s *Server) ensureLoaded(ctx context.Context) *mcp.CallToolResult {
	if err := s.board.Load(ctx); err != nil {
		return mcp.NewToolResultError(errMessage(err))
	}
	select {
	case <-s.board.Loaded():
		return nil
	case <-ctx.Done():
		return mcp.NewToolResultError(errMessage(ctx.Err()))
	}
}

func (s *Server) listCards(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := s.ensureLoaded(ctx); res != nil {
		return res, nil
	}
	out, _ := json.MarshalIndent(s.board.Cards(), "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) addCard(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := s.ensureLoaded(ctx); res != nil {
		return res, nil
	}
	draft := &models.CardDraft{
		Title:       req.GetString("title", ""),
		Description: req.GetString("description", ""),
	}
	card, err := s.board.Add(ctx, draft)
	if err != nil {
		return mcp.NewToolResultError(errMessage(err)), nil
	}
	out, _ := json.Marshal(card)
	return mcp.NewToolResultText(fmt.Sprintf("%s\n%s", board.MsgAdded, out)), nil
}

func (s *Server) deleteCard(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if res := s.ensureLoaded(ctx); res != nil {
		return res, nil
	}
	if err := s.board.Delete(ctx, id); err != nil {
		return mcp.NewToolResultError(errMessage(err)), nil
	}
	return mcp.NewToolResultText(board.MsgDeleted), nil
}

func (s *Server) getBoardGuide(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(BoardGuide), nil
}

func (s *Server) readGuideResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "cardboard://guide",
			MIMEType: "text/markdown",
			Text:     BoardGuide,
		},
	}, nil
}

func errMessage(err error) string {
	if errors.Is(err, apperr.ErrBusy) {
		return err.Error()
	}
	return cardapi.Message(err)
}
