// Package ui renders the card board page and board fragments.
package ui

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/starford/cardboard/internal/board"
	"github.com/starford/cardboard/internal/toast"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page is the data for a full page render.
type Page struct {
	SessionID  string
	View       board.View
	Toasts     []toast.Notification
	Transition time.Duration
	// APIPrefix is where the session API is mounted, normally "/api".
	APIPrefix string
}

// BoardFrame is the payload of a board.updated event.
type BoardFrame struct {
	HTML   string       `json:"html"`
	Status board.Status `json:"status"`
	Adding bool         `json:"adding"`
}

// Renderer holds the parsed templates.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"ms": func(d time.Duration) int64 { return d.Milliseconds() },
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("ui: parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// RenderPage writes the full HTML page.
func (r *Renderer) RenderPage(w io.Writer, p Page) error {
	if p.APIPrefix == "" {
		p.APIPrefix = "/api"
	}
	if p.Transition <= 0 {
		p.Transition = board.DefaultTransition
	}
	if err := r.tmpl.ExecuteTemplate(w, "page.html", p); err != nil {
		return fmt.Errorf("ui: render page: %w", err)
	}
	return nil
}

// RenderBoard renders the board fragment (Add control plus list area).
func (r *Renderer) RenderBoard(v board.View) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, "board", v); err != nil {
		return "", fmt.Errorf("ui: render board: %w", err)
	}
	return buf.String(), nil
}

// Frame renders a view into an event payload.
func (r *Renderer) Frame(v board.View) (BoardFrame, error) {
	html, err := r.RenderBoard(v)
	if err != nil {
		return BoardFrame{}, err
	}
	return BoardFrame{HTML: html, Status: v.Status, Adding: v.Adding}, nil
}
