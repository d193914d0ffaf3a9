package advisor

import (
	"context"
	"errors"
	"testing"

	"github.com/Veraticus/spice-ledger/internal/llm"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallbackParse(t *testing.T) {
	tests := []struct {
		text     string
		merchant string
		amount   string
	}{
		{text: "Starbucks coffee $5.50", merchant: "Starbucks coffee", amount: "5.5"},
		{text: "lunch 12.75", merchant: "lunch", amount: "12.75"},
		{text: "$20", merchant: "Unknown", amount: "20"},
		{text: "parking 3 hours", merchant: "parking 3 hours", amount: "0"},
		{text: "gas $40 and 3.50 snacks", merchant: "gas  and  snacks", amount: "40"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := FallbackParse(tt.text)
			assert.Equal(t, tt.merchant, got.Merchant)
			assert.True(t, got.Amount.Equal(testutil.Dec(tt.amount)), "got %s", got.Amount)
			assert.Equal(t, model.FallbackCategory, got.Category)
			assert.InDelta(t, 0.3, got.Confidence, 1e-9)
			assert.True(t, got.Fallback)
		})
	}
}

func TestParser_Parse(t *testing.T) {
	tests := []struct {
		name       string
		response   string
		merchant   string
		amount     string
		category   string
		confidence float64
		fallback   bool
	}{
		{
			name:       "plain json",
			response:   `{"merchant": "Starbucks", "amount": 5.50, "category": "Food & Dining - Restaurants", "confidence": 0.95}`,
			merchant:   "Starbucks",
			amount:     "5.5",
			category:   "Food & Dining - Restaurants",
			confidence: 0.95,
		},
		{
			name:       "fenced json with clamped confidence",
			response:   "```json\n{\"merchant\": \"Shell\", \"amount\": \"40\", \"category\": \"Transportation - Gas\", \"confidence\": 1.4}\n```",
			merchant:   "Shell",
			amount:     "40",
			category:   "Transportation - Gas",
			confidence: 1,
		},
		{
			name:       "missing field falls back",
			response:   `{"merchant": "Starbucks", "amount": 5.50, "category": "Food"}`,
			merchant:   "Starbucks coffee",
			amount:     "5.5",
			category:   model.FallbackCategory,
			confidence: 0.3,
			fallback:   true,
		},
		{
			name:       "prose falls back",
			response:   "I think this is coffee.",
			merchant:   "Starbucks coffee",
			amount:     "5.5",
			category:   model.FallbackCategory,
			confidence: 0.3,
			fallback:   true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := llm.NewMockGenerator(tt.response)
			got := NewParser(gen).Parse(context.Background(), "Starbucks coffee $5.50", nil)

			assert.Equal(t, tt.merchant, got.Merchant)
			assert.True(t, got.Amount.Equal(testutil.Dec(tt.amount)), "got %s", got.Amount)
			assert.Equal(t, tt.category, got.Category)
			assert.InDelta(t, tt.confidence, got.Confidence, 1e-9)
			assert.Equal(t, tt.fallback, got.Fallback)
			require.Equal(t, 1, gen.Calls())
			assert.Equal(t, parseMaxTokens, gen.MaxTokens[0])
		})
	}
}

func TestParser_Prompt(t *testing.T) {
	gen := llm.NewMockGenerator(`{"merchant": "x", "amount": 1, "category": "Travel", "confidence": 0.5}`)
	NewParser(gen).Parse(context.Background(), "taxi $12", []string{"Travel", "Food"})

	prompt := gen.LastPrompt()
	assert.Contains(t, prompt, `Transaction: "taxi $12"`)
	assert.Contains(t, prompt, "Travel, Food")

	NewParser(gen).Parse(context.Background(), "taxi $12", nil)
	assert.Contains(t, gen.LastPrompt(), "Healthcare - Fitness", "defaults offered when none given")
}

func TestParser_Offline(t *testing.T) {
	got := NewParser(nil).Parse(context.Background(), "bagel $3", nil)
	assert.True(t, got.Fallback)
	assert.Equal(t, "bagel", got.Merchant)

	gen := llm.NewMockGenerator()
	gen.Err = errors.New("no network")
	got = NewParser(gen).Parse(context.Background(), "bagel $3", nil)
	assert.True(t, got.Fallback)
	assert.True(t, got.Amount.Equal(testutil.Dec("3")))
}
