// Package tui is the terminal frontend of the card board.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/starford/cardboard/internal/board"
	"github.com/starford/cardboard/internal/toast"
)

const helpMarkdown = `# Cardboard

| Key | Action |
| --- | --- |
| ↑ / k | select previous card |
| ↓ / j | select next card |
| a | add a card |
| d | delete the selected card |
| ? | toggle this help |
| q | quit |

Cards are added to the top of the board. Every add and delete shows a
notification for a few seconds.
`

// Settings configures the terminal frontend.
type Settings struct {
	ToastDuration  time.Duration
	Transition     time.Duration
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

type changedMsg struct{}

type toastMsg struct {
	kind string
	n    toast.Notification
}

type opDoneMsg struct {
	op  string
	err error
}

// Model is the bubbletea model over one board.
type Model struct {
	board   *board.Board
	timeout time.Duration
	styles  Styles
	spinner spinner.Model

	view     board.View
	selected int
	toasts   []toast.Notification
	showHelp bool
	help     string
	width    int
}

// NewModel creates a model for b. Operation contexts get timeout when positive.
func NewModel(b *board.Board, timeout time.Duration) Model {
	styles := DefaultStyles()
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	return Model{
		board:   b,
		timeout: timeout,
		styles:  styles,
		spinner: sp,
		view:    b.Snapshot(),
		width:   80,
	}
}

// Init starts the spinner and the initial load.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadCmd())
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		if m.showHelp {
			m.help = m.renderHelp()
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case changedMsg:
		m.refresh()
		return m, nil

	case toastMsg:
		switch msg.kind {
		case toast.KindShown:
			m.toasts = append(m.toasts, msg.n)
		case toast.KindDismissed:
			m.toasts = slices.DeleteFunc(m.toasts, func(n toast.Notification) bool { return n.ID == msg.n.ID })
		}
		return m, nil

	case opDoneMsg:
		// Failures already surfaced as toasts.
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "?":
		m.showHelp = !m.showHelp
		if m.showHelp {
			m.help = m.renderHelp()
		}
	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
	case "down", "j":
		if m.selected < len(m.liveCards())-1 {
			m.selected++
		}
	case "a":
		if m.view.Adding {
			return m, nil
		}
		m.view.Adding = true
		return m, m.addCmd()
	case "d":
		cards := m.liveCards()
		if m.selected >= len(cards) || cards[m.selected].Deleting {
			return m, nil
		}
		id := cards[m.selected].ID
		m.markDeleting(id)
		return m, m.deleteCmd(id)
	}
	return m, nil
}

// refresh pulls a fresh snapshot and keeps the selection in range.
func (m *Model) refresh() {
	m.view = m.board.Snapshot()
	if n := len(m.liveCards()); m.selected >= n {
		m.selected = max(n-1, 0)
	}
}

func (m *Model) markDeleting(id string) {
	cards := slices.Clone(m.view.Cards)
	for i := range cards {
		if cards[i].ID == id && cards[i].Phase != board.PhaseExit {
			cards[i].Deleting = true
		}
	}
	m.view.Cards = cards
}

func (m Model) liveCards() []board.CardView {
	out := make([]board.CardView, 0, len(m.view.Cards))
	for _, c := range m.view.Cards {
		if c.Phase != board.PhaseExit {
			out = append(out, c)
		}
	}
	return out
}

func (m Model) opContext() (context.Context, context.CancelFunc) {
	if m.timeout > 0 {
		return context.WithTimeout(context.Background(), m.timeout)
	}
	return context.WithCancel(context.Background())
}

func (m Model) loadCmd() tea.Cmd {
	b := m.board
	return func() tea.Msg {
		ctx, cancel := m.opContext()
		defer cancel()
		return opDoneMsg{op: "load", err: b.Load(ctx)}
	}
}

func (m Model) addCmd() tea.Cmd {
	b := m.board
	return func() tea.Msg {
		ctx, cancel := m.opContext()
		defer cancel()
		_, err := b.Add(ctx, nil)
		return opDoneMsg{op: "add", err: err}
	}
}

func (m Model) deleteCmd(id string) tea.Cmd {
	b := m.board
	return func() tea.Msg {
		ctx, cancel := m.opContext()
		defer cancel()
		return opDoneMsg{op: "delete", err: b.Delete(ctx, id)}
	}
}

// View renders the board.
func (m Model) View() string {
	if m.showHelp {
		return m.help
	}

	var sb strings.Builder
	sb.WriteString(m.styles.Header.Render("Cardboard"))
	sb.WriteString("\n")

	if m.view.Adding {
		sb.WriteString(m.styles.Disabled.Render("[a] Add " + m.spinner.View()))
	} else {
		sb.WriteString(m.styles.Button.Render("[a] Add"))
	}
	sb.WriteString("\n\n")

	switch m.view.Status {
	case board.StatusLoading:
		sb.WriteString(m.spinner.View() + " " + m.styles.Empty.Render("Loading..."))
		sb.WriteString("\n")
	case board.StatusEmpty:
		sb.WriteString(m.styles.Empty.Render("No data found"))
		sb.WriteString("\n")
	}

	live := 0
	for _, c := range m.view.Cards {
		style := m.styles.Card
		switch {
		case c.Phase == board.PhaseExit:
			style = m.styles.Exiting
		case live == m.selected:
			style = m.styles.Selected
		case c.Phase == board.PhaseEnter:
			style = m.styles.Entering
		}

		title := m.styles.Title.Render(c.Title)
		if c.Deleting {
			title += " " + m.spinner.View()
		}
		body := title
		if c.Description != "" {
			body += "\n" + m.styles.Desc.Render(c.Description)
		}
		sb.WriteString(style.Render(body))
		sb.WriteString("\n")

		if c.Phase != board.PhaseExit {
			live++
		}
	}

	for _, n := range m.toasts {
		sb.WriteString("\n")
		sb.WriteString(m.styles.Toast[n.Severity].Render(n.Message))
	}

	sb.WriteString(m.styles.Footer.Render("\n↑/↓ select • a add • d delete • ? help • q quit"))
	return sb.String()
}

func (m Model) renderHelp() string {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(max(m.width-4, 20)),
	)
	if err != nil {
		return helpMarkdown
	}
	out, err := r.Render(helpMarkdown)
	if err != nil {
		return helpMarkdown
	}
	return out
}

// Run starts the terminal frontend for svc and blocks until the user quits
// or ctx is cancelled.
func Run(ctx context.Context, svc board.CardService, s Settings) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var p *tea.Program
	send := func(msg tea.Msg) {
		if p != nil {
			p.Send(msg)
		}
	}

	center := toast.NewCenter(s.ToastDuration, func(kind string, n toast.Notification) {
		send(toastMsg{kind: kind, n: n})
	})
	defer center.Close()

	b := board.New(svc, center,
		board.WithLogger(logger),
		board.WithTransition(s.Transition),
		board.WithOnChange(func() { send(changedMsg{}) }),
	)
	defer b.Close()

	p = tea.NewProgram(NewModel(b, s.RequestTimeout), tea.WithContext(ctx), tea.WithAltScreen())
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}
