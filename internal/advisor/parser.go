package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/llm"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/shopspring/decimal"
)

const (
	parseMaxTokens     = 200
	fallbackConfidence = 0.3
	unknownMerchant    = "Unknown"
)

var (
	fallbackAmountPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\$(\d+(?:\.\d+)?)`),
		regexp.MustCompile(`(\d+\.\d+)`),
	}
	amountToken = regexp.MustCompile(`\$\d+(?:\.\d+)?|\d+\.\d+`)
)

// ParsedTransaction is the structured reading of a free-text expense like
// "Starbucks coffee $5.50".
type ParsedTransaction struct {
	Amount     decimal.Decimal
	Merchant   string
	Category   string
	Confidence float64
	Fallback   bool
}

// Parser extracts transactions from free text. Without a generator every
// parse uses the offline fallback.
type Parser struct {
	gen    llm.Generator
	logger *slog.Logger
}

// NewParser creates a parser. gen may be nil.
func NewParser(gen llm.Generator) *Parser {
	return &Parser{gen: gen, logger: slog.Default().With("component", "parser")}
}

type parseReply struct {
	Merchant   *string          `json:"merchant"`
	Amount     *decimal.Decimal `json:"amount"`
	Category   *string          `json:"category"`
	Confidence *float64         `json:"confidence"`
}

// Parse reads text into a transaction. categories lists the choices offered
// to the model; an empty list offers the defaults.
func (p *Parser) Parse(ctx context.Context, text string, categories []string) ParsedTransaction {
	if p.gen == nil {
		return FallbackParse(text)
	}
	if len(categories) == 0 {
		categories = model.DefaultCategories
	}

	resp, err := p.gen.Generate(ctx, parsePrompt(text, categories), parseMaxTokens)
	if err != nil {
		p.logger.Warn("AI parsing failed, using fallback parser", "error", err)
		return FallbackParse(text)
	}

	parsed, err := decodeParseReply(resp)
	if err != nil {
		p.logger.Warn("AI reply unusable, using fallback parser", "error", err)
		return FallbackParse(text)
	}
	return parsed
}

func decodeParseReply(resp string) (ParsedTransaction, error) {
	var reply parseReply
	if err := json.Unmarshal([]byte(llm.StripCodeFence(resp)), &reply); err != nil {
		return ParsedTransaction{}, fmt.Errorf("failed to decode reply: %w", err)
	}
	switch {
	case reply.Merchant == nil:
		return ParsedTransaction{}, errors.New("missing required field: merchant")
	case reply.Amount == nil:
		return ParsedTransaction{}, errors.New("missing required field: amount")
	case reply.Category == nil:
		return ParsedTransaction{}, errors.New("missing required field: category")
	case reply.Confidence == nil:
		return ParsedTransaction{}, errors.New("missing required field: confidence")
	}
	return ParsedTransaction{
		Merchant:   *reply.Merchant,
		Amount:     reply.Amount.Round(2),
		Category:   *reply.Category,
		Confidence: min(1, max(0, *reply.Confidence)),
	}, nil
}

// FallbackParse pulls the first amount out of text and treats the rest as the
// merchant.
func FallbackParse(text string) ParsedTransaction {
	amount := decimal.Zero
	if raw, ok := common.FirstSubmatch(fallbackAmountPatterns, text); ok {
		if d, err := decimal.NewFromString(raw); err == nil {
			amount = d.Round(2)
		}
	}

	merchant := strings.TrimSpace(amountToken.ReplaceAllString(text, ""))
	if merchant == "" {
		merchant = unknownMerchant
	}

	return ParsedTransaction{
		Merchant:   merchant,
		Amount:     amount,
		Category:   model.FallbackCategory,
		Confidence: fallbackConfidence,
		Fallback:   true,
	}
}

func parsePrompt(text string, categories []string) string {
	return fmt.Sprintf(`Parse this transaction and categorize it.

Transaction: %q

Available categories:
%s

Extract:
1. Merchant name (or "Unknown" if unclear)
2. Amount in dollars (numeric value only)
3. Best matching category from the list
4. Your confidence (0.0 to 1.0)

Respond ONLY with valid JSON in this exact format:
{
  "merchant": "...",
  "amount": 0.00,
  "category": "...",
  "confidence": 0.0
}`, text, strings.Join(categories, ", "))
}
