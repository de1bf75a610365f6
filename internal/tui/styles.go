package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/starford/cardboard/internal/toast"
)

var (
	accent      = lipgloss.Color("#8BC34A")
	destructive = lipgloss.Color("#e53935")
	info        = lipgloss.Color("#2196F3")
	muted       = lipgloss.Color("#6b7280")
)

// Styles holds the lipgloss styles of the board view.
type Styles struct {
	Header   lipgloss.Style
	Button   lipgloss.Style
	Disabled lipgloss.Style
	Card     lipgloss.Style
	Selected lipgloss.Style
	Entering lipgloss.Style
	Exiting  lipgloss.Style
	Title    lipgloss.Style
	Desc     lipgloss.Style
	Empty    lipgloss.Style
	Spinner  lipgloss.Style
	Footer   lipgloss.Style
	Toast    map[toast.Severity]lipgloss.Style
}

// DefaultStyles returns the standard palette.
func DefaultStyles() Styles {
	card := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(muted).
		Padding(0, 1).
		Width(48)

	toastBase := lipgloss.NewStyle().Padding(0, 1).Bold(true)

	return Styles{
		Header:   lipgloss.NewStyle().Bold(true).Foreground(accent).MarginBottom(1),
		Button:   lipgloss.NewStyle().Bold(true),
		Disabled: lipgloss.NewStyle().Foreground(muted),
		Card:     card,
		Selected: card.BorderForeground(accent),
		Entering: card.BorderForeground(info),
		Exiting:  card.BorderForeground(destructive).Faint(true).Strikethrough(true),
		Title:    lipgloss.NewStyle().Bold(true),
		Desc:     lipgloss.NewStyle().Foreground(muted),
		Empty:    lipgloss.NewStyle().Italic(true).Foreground(muted),
		Spinner:  lipgloss.NewStyle().Foreground(accent),
		Footer:   lipgloss.NewStyle().Foreground(muted).MarginTop(1),
		Toast: map[toast.Severity]lipgloss.Style{
			toast.SeveritySuccess: toastBase.Foreground(lipgloss.Color("#ffffff")).Background(accent),
			toast.SeverityError:   toastBase.Foreground(lipgloss.Color("#ffffff")).Background(destructive),
			toast.SeverityInfo:    toastBase.Foreground(lipgloss.Color("#ffffff")).Background(info),
		},
	}
}
