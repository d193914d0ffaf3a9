package tui

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/spice-ledger/internal/model"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidates() []model.RecurringCandidate {
	last := model.Date(2025, time.March, 1)
	return []model.RecurringCandidate{
		{Merchant: "Netflix", TypicalAmount: decimal.RequireFromString("15.49"), Frequency: model.FrequencyMonthly, OccurrenceCount: 6, Confidence: 0.95, LastSeen: last},
		{Merchant: "Gym", TypicalAmount: decimal.RequireFromString("40"), Frequency: model.FrequencyMonthly, OccurrenceCount: 4, Confidence: 0.8, LastSeen: last},
		{Merchant: "Farm Box", TypicalAmount: decimal.RequireFromString("32"), Frequency: model.FrequencyWeekly, OccurrenceCount: 10, Confidence: 0.7, LastSeen: last},
	}
}

func press(m ReviewModel, keys ...string) ReviewModel {
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "down":
			msg = tea.KeyMsg{Type: tea.KeyDown}
		case "up":
			msg = tea.KeyMsg{Type: tea.KeyUp}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		next, _ := m.Update(msg)
		m = next.(ReviewModel)
	}
	return m
}

func merchants(cs []model.RecurringCandidate) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Merchant)
	}
	return out
}

func TestReviewModel_Decisions(t *testing.T) {
	tests := []struct {
		name string
		keys []string
		want []string
	}{
		{
			name: "accept advances the cursor",
			keys: []string{"a", "a", "enter"},
			want: []string{"Netflix", "Gym"},
		},
		{
			name: "reject then accept",
			keys: []string{"r", "y", "n", "enter"},
			want: []string{"Gym"},
		},
		{
			name: "accept all keeps rejections",
			keys: []string{"down", "n", "A", "enter"},
			want: []string{"Netflix", "Farm Box"},
		},
		{
			name: "clear an acceptance",
			keys: []string{"a", "up", "s", "enter"},
			want: nil,
		},
		{
			name: "quit discards choices",
			keys: []string{"A", "q"},
			want: nil,
		},
		{
			name: "escape discards choices",
			keys: []string{"a", "esc"},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := press(NewReviewModel(candidates()), tt.keys...)
			got := m.Accepted()
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, merchants(got))
		})
	}
}

func TestReviewModel_CursorBounds(t *testing.T) {
	m := press(NewReviewModel(candidates()), "up", "up")
	assert.Equal(t, 0, m.cursor)

	m = press(m, "down", "down", "down", "down")
	assert.Equal(t, 2, m.cursor)

	// accepting the last row leaves the cursor there
	m = press(m, "a")
	assert.Equal(t, 2, m.cursor)
}

func TestReviewModel_Scrolls(t *testing.T) {
	var many []model.RecurringCandidate
	for range 20 {
		many = append(many, candidates()...)
	}
	m := NewReviewModel(many)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 14})
	m = next.(ReviewModel)

	for range 10 {
		m = press(m, "down")
	}
	assert.Equal(t, 10, m.cursor)
	assert.Equal(t, 10-m.visibleRows()+1, m.offset)

	view := m.View()
	assert.Equal(t, m.visibleRows(), strings.Count(view, "seen"))
}

func TestReviewModel_View(t *testing.T) {
	m := press(NewReviewModel(candidates()), "a", "n")
	view := m.View()

	assert.Contains(t, view, "Detected recurring charges")
	assert.Contains(t, view, "3 candidates · 1 to track · 1 ignored")
	assert.Contains(t, view, "Netflix")
	assert.Contains(t, view, "$15.49")
	assert.Contains(t, view, "95%")
	assert.Contains(t, view, "2025-03-01")

	empty := NewReviewModel(nil)
	assert.Contains(t, empty.View(), "Nothing new to review.")
	assert.Empty(t, press(empty, "a", "enter").Accepted())
}

func TestReview_Program(t *testing.T) {
	t.Run("enter saves", func(t *testing.T) {
		var out bytes.Buffer
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		got, err := Review(ctx, candidates(), Options{Input: strings.NewReader("\r"), Output: &out})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("canceled context", func(t *testing.T) {
		pr, pw := io.Pipe()
		defer pw.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := Review(ctx, candidates(), Options{Input: pr, Output: io.Discard})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "Netflix", truncate("Netflix", 10))
	assert.Equal(t, "Amazon Pr…", truncate("Amazon Prime Video", 10))
}
