// Package tui hosts the interactive review of detected recurring charges.
package tui

import (
	"fmt"
	"strings"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Decision is the user's verdict on one candidate.
type Decision int

const (
	Undecided Decision = iota
	Accepted
	Rejected
)

// ReviewModel is the bubbletea model for walking a candidate list.
type ReviewModel struct {
	theme      Theme
	help       help.Model
	keymap     KeyMap
	candidates []model.RecurringCandidate
	decisions  []Decision
	cursor     int
	offset     int
	height     int
	width      int
	saved      bool
	quitting   bool
}

// NewReviewModel starts with every candidate undecided.
func NewReviewModel(candidates []model.RecurringCandidate) ReviewModel {
	return ReviewModel{
		theme:      Default,
		help:       help.New(),
		keymap:     DefaultKeyMap(),
		candidates: candidates,
		decisions:  make([]Decision, len(candidates)),
		height:     24,
		width:      80,
	}
}

// Init implements tea.Model.
func (m ReviewModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m ReviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.scroll()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m ReviewModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keymap.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keymap.Done):
		m.saved = true
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keymap.Help):
		m.help.ShowAll = !m.help.ShowAll

	case key.Matches(msg, m.keymap.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, m.keymap.Down):
		if m.cursor < len(m.candidates)-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keymap.Accept):
		m.decide(Accepted)

	case key.Matches(msg, m.keymap.Reject):
		m.decide(Rejected)

	case key.Matches(msg, m.keymap.Clear):
		m.decide(Undecided)

	case key.Matches(msg, m.keymap.AcceptAll):
		for i := range m.decisions {
			if m.decisions[i] == Undecided {
				m.decisions[i] = Accepted
			}
		}
	}
	m.scroll()
	return m, nil
}

// decide records d for the current row and moves to the next one.
func (m *ReviewModel) decide(d Decision) {
	if len(m.candidates) == 0 {
		return
	}
	m.decisions[m.cursor] = d
	if d != Undecided && m.cursor < len(m.candidates)-1 {
		m.cursor++
	}
}

func (m *ReviewModel) visibleRows() int {
	return max(3, m.height-9)
}

func (m *ReviewModel) scroll() {
	rows := m.visibleRows()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+rows {
		m.offset = m.cursor - rows + 1
	}
}

// View implements tea.Model.
func (m ReviewModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.theme.Title.Render("Detected recurring charges"))
	b.WriteString("\n")

	if len(m.candidates) == 0 {
		b.WriteString(m.theme.Muted.Render("Nothing new to review."))
		b.WriteString("\n\n")
		b.WriteString(m.help.View(m.keymap))
		return b.String()
	}

	accepted, rejected := m.counts()
	b.WriteString(m.theme.Subtitle.Render(fmt.Sprintf("%d candidates · %d to track · %d ignored",
		len(m.candidates), accepted, rejected)))
	b.WriteString("\n\n")

	end := min(len(m.candidates), m.offset+m.visibleRows())
	rows := make([]string, 0, end-m.offset)
	for i := m.offset; i < end; i++ {
		rows = append(rows, m.renderRow(i))
	}
	b.WriteString(m.theme.Box.Render(lipgloss.JoinVertical(lipgloss.Left, rows...)))
	b.WriteString("\n\n")
	b.WriteString(m.help.View(m.keymap))
	return b.String()
}

func (m ReviewModel) renderRow(i int) string {
	c := m.candidates[i]

	var mark string
	switch m.decisions[i] {
	case Accepted:
		mark = m.theme.Accepted.Render("✓")
	case Rejected:
		mark = m.theme.Rejected.Render("✗")
	default:
		mark = m.theme.Pending.Render("·")
	}

	line := fmt.Sprintf("%-28s %10s  %-8s %3d seen  %3.0f%%  last %s",
		truncate(c.Merchant, 28),
		model.FormatMoney(c.TypicalAmount),
		c.Frequency,
		c.OccurrenceCount,
		c.Confidence*100,
		model.FormatDate(c.LastSeen),
	)
	if i == m.cursor {
		line = m.theme.Selected.Render(line)
	} else {
		line = m.theme.Normal.Render(line)
	}
	return mark + " " + line
}

func (m ReviewModel) counts() (accepted, rejected int) {
	for _, d := range m.decisions {
		switch d {
		case Accepted:
			accepted++
		case Rejected:
			rejected++
		}
	}
	return accepted, rejected
}

// Accepted returns the candidates marked for tracking, in list order. It is
// empty unless the user saved.
func (m ReviewModel) Accepted() []model.RecurringCandidate {
	if !m.saved {
		return nil
	}
	var out []model.RecurringCandidate
	for i, d := range m.decisions {
		if d == Accepted {
			out = append(out, m.candidates[i])
		}
	}
	return out
}

// Saved reports whether the user left with enter rather than quitting.
func (m ReviewModel) Saved() bool {
	return m.saved
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
