package advisor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/spice-ledger/internal/analytics"
	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
)

const insightsMaxTokens = 500

// Insights asks the model for observations about a month of spending. Model
// failures are reported in the returned text rather than as an error.
func (a *Advisor) Insights(ctx context.Context, session model.Session, year int, month time.Month) (string, error) {
	if err := session.Require(); err != nil {
		return "", err
	}

	summary, err := a.deps.Spending.MonthlySummary(ctx, session, year, month)
	if err != nil {
		return "", fmt.Errorf("failed to load monthly summary: %w", err)
	}
	budgets, err := a.deps.Budgets.List(ctx, session)
	if err != nil {
		return "", fmt.Errorf("failed to load budgets: %w", err)
	}

	prompt := InsightsPrompt(summary, budgets)

	var text string
	err = common.WithRetry(ctx, func() error {
		resp, genErr := a.deps.Generator.Generate(ctx, prompt, insightsMaxTokens)
		if genErr != nil {
			return genErr
		}
		text = strings.TrimSpace(resp)
		return nil
	}, a.retry)
	if err != nil {
		a.logger.Error("Insights generation failed", "error", err, "year", year, "month", int(month))
		return "Unable to generate insights: " + err.Error(), nil
	}
	return text, nil
}

// InsightsPrompt renders the monthly insights prompt.
func InsightsPrompt(summary analytics.MonthlySummary, budgets []model.Budget) string {
	var b strings.Builder

	b.WriteString("Analyze this month's spending and provide insights.\n\n")
	fmt.Fprintf(&b, "Total Income: %s\n", money(summary.TotalIncome))
	fmt.Fprintf(&b, "Total Expenses: %s\n", money(summary.TotalExpenses))
	fmt.Fprintf(&b, "Savings: %s\n\n", money(summary.Savings))

	b.WriteString("Category Breakdown:\n")
	for _, c := range summary.Categories {
		fmt.Fprintf(&b, "  - %s: %s\n", c.Category, money(c.Amount))
	}

	b.WriteString("\nBudget Limits:\n")
	for _, bud := range budgets {
		fmt.Fprintf(&b, "  - %s: %s\n", bud.Category, money(bud.MonthlyLimit))
	}

	b.WriteString(`
Provide:
1. Top 3 observations about spending patterns
2. Any concerning trends
3. One actionable recommendation

Be concise and helpful.`)
	return b.String()
}
