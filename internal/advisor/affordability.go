package advisor

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/recurring"
	"github.com/shopspring/decimal"
)

const (
	decisionMaxTokens = 500
	upcomingDays      = 7
)

// Verdict is the model's answer to an affordability question.
type Verdict string

// Verdicts. MAYBE is also the answer when the response cannot be parsed.
const (
	VerdictYes   Verdict = "YES"
	VerdictMaybe Verdict = "MAYBE"
	VerdictNo    Verdict = "NO"
)

// Decision is a parsed recommendation.
type Decision struct {
	Verdict   Verdict
	Reasoning string
}

// Context is the financial snapshot the decision is based on. It is rebuilt
// for every question.
type Context struct {
	TotalBalance     decimal.Decimal
	UpcomingTotal    decimal.Decimal
	LastWeekSpending decimal.Decimal
	Budgets          []model.BudgetStatus
	Upcoming         []model.UpcomingCharge
	Degraded         []string
	AccountCount     int
}

// Assessment is the full answer to an affordability question.
type Assessment struct {
	Amount   decimal.Decimal
	Decision Decision
	Context  Context
}

var amountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\$\s*(\d+(?:\.\d{2})?)`),
	regexp.MustCompile(`(?i)(\d+(?:\.\d{2})?)\s*(?:dollars|bucks|usd)`),
}

var (
	decisionPattern  = regexp.MustCompile(`(?im)^\s*DECISION:\s*(YES|MAYBE|NO)\b`)
	reasoningPattern = regexp.MustCompile(`(?ims)^\s*REASONING:\s*(.+?)(?:\n\n|\z)`)
)

// ExtractAmount finds the purchase amount in a question such as "Can I afford
// $80 dinner?" or "Should I spend 150 bucks?".
func ExtractAmount(question string) (decimal.Decimal, error) {
	raw, ok := common.FirstSubmatch(amountPatterns, question)
	if !ok {
		return decimal.Zero, common.NewUserError(
			"Please include a dollar amount like '$50' or '50 dollars'.", common.ErrAmountNotFound)
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", common.ErrAmountNotFound, raw)
	}
	return amount.Round(2), nil
}

// Assess asks the model whether the purchase in question is affordable.
// Missing context degrades to zero values; only a failed model call or a
// question without an amount is an error. The model is called exactly once.
func (a *Advisor) Assess(ctx context.Context, session model.Session, question string) (*Assessment, error) {
	if err := session.Require(); err != nil {
		return nil, err
	}

	amount, err := ExtractAmount(question)
	if err != nil {
		return nil, err
	}

	snapshot := a.Gather(ctx, session)
	prompt := DecisionPrompt(question, amount, snapshot)

	response, err := a.deps.Generator.Generate(ctx, prompt, decisionMaxTokens)
	if err != nil {
		common.LogError(err, "Recommendation failed", common.Fields{"amount": amount.StringFixed(2)})
		return nil, fmt.Errorf("%w: %w", common.ErrRecommendationFailed, err)
	}

	return &Assessment{
		Amount:   amount,
		Decision: ParseDecision(response),
		Context:  snapshot,
	}, nil
}

// Gather builds the decision context. Each lookup is independent and a
// failure only blanks its own figures.
func (a *Advisor) Gather(ctx context.Context, session model.Session) Context {
	type balances struct {
		total decimal.Decimal
		count int
	}
	type upcoming struct {
		charges []model.UpcomingCharge
		total   decimal.Decimal
	}

	balance := fetch(a.logger, "accounts", balances{total: decimal.Zero}, func() (balances, error) {
		accounts, err := a.deps.Accounts.ListAccounts(ctx, session.UserID, true)
		if err != nil {
			return balances{}, err
		}
		b := balances{total: decimal.Zero, count: len(accounts)}
		for _, acc := range accounts {
			b.total = b.total.Add(acc.Balance)
		}
		return b, nil
	})

	now := a.now()
	budgets := fetch(a.logger, "budgets", []model.BudgetStatus(nil), func() ([]model.BudgetStatus, error) {
		return a.deps.Budgets.StatusAll(ctx, session, now.Year(), now.Month())
	})

	due := fetch(a.logger, "recurring", upcoming{total: decimal.Zero}, func() (upcoming, error) {
		charges, err := a.deps.Recurring.Upcoming(ctx, session, upcomingDays)
		if err != nil {
			return upcoming{}, err
		}
		return upcoming{charges: charges, total: recurring.UpcomingTotal(charges)}, nil
	})

	spending := fetch(a.logger, "trend", decimal.Zero, func() (decimal.Decimal, error) {
		return a.deps.Spending.LastWeekSpending(ctx, session)
	})

	snapshot := Context{
		TotalBalance:     balance.Value.total,
		AccountCount:     balance.Value.count,
		Budgets:          budgets.Value,
		Upcoming:         due.Value.charges,
		UpcomingTotal:    due.Value.total,
		LastWeekSpending: spending.Value,
	}
	for name, degraded := range map[string]bool{
		"accounts":  balance.IsDegraded(),
		"budgets":   budgets.IsDegraded(),
		"recurring": due.IsDegraded(),
		"trend":     spending.IsDegraded(),
	} {
		if degraded {
			snapshot.Degraded = append(snapshot.Degraded, name)
		}
	}
	slices.Sort(snapshot.Degraded)
	return snapshot
}

// DecisionPrompt renders the affordability prompt. Every amount has two decimals.
func DecisionPrompt(question string, amount decimal.Decimal, c Context) string {
	var b strings.Builder

	b.WriteString("You are a financial advisor helping someone make a spending decision.\n\n")
	fmt.Fprintf(&b, "USER QUESTION: %s\n", question)
	fmt.Fprintf(&b, "PURCHASE AMOUNT: %s\n\n", money(amount))
	b.WriteString("FINANCIAL CONTEXT:\n")
	fmt.Fprintf(&b, "- Total Account Balance: %s\n", money(c.TotalBalance))
	fmt.Fprintf(&b, "- Active Accounts: %d\n\n", c.AccountCount)

	b.WriteString("BUDGETS (Current Month):\n")
	if len(c.Budgets) == 0 {
		b.WriteString("  - No budgets set\n")
	}
	for _, s := range c.Budgets {
		fmt.Fprintf(&b, "  - %s: %s of %s spent (%s%%)\n",
			s.Budget.Category, money(s.Spent), money(s.Limit), s.Percentage.StringFixed(1))
		fmt.Fprintf(&b, "    Remaining: %s\n", money(s.Remaining))
	}

	fmt.Fprintf(&b, "\nUPCOMING RECURRING CHARGES (Next 7 Days): %s\n", money(c.UpcomingTotal))
	for _, u := range c.Upcoming {
		fmt.Fprintf(&b, "  - %s: %s on %s\n", u.Merchant, money(u.Amount), model.FormatDate(u.DueDate))
	}

	fmt.Fprintf(&b, "\nRECENT SPENDING (Last 7 Days): %s\n", money(c.LastWeekSpending))

	b.WriteString(`
Based on this information, provide a spending recommendation. Your response should be in this exact format:

DECISION: [YES/MAYBE/NO]
REASONING: [1-2 sentences explaining your recommendation, considering budgets, upcoming bills, and overall financial health]

Guidelines:
- YES: If they can comfortably afford it without impacting budgets or upcoming bills
- MAYBE: If it's affordable but would strain budgets or leave little buffer
- NO: If it would exceed budgets, prevent paying upcoming bills, or severely impact financial health
- Be practical and consider both the immediate impact and near-term obligations
`)
	return b.String()
}

// ParseDecision reads the DECISION and REASONING fields. A missing or unknown
// decision is MAYBE and missing reasoning is the whole response.
func ParseDecision(response string) Decision {
	d := Decision{Verdict: VerdictMaybe, Reasoning: strings.TrimSpace(response)}
	if m := decisionPattern.FindStringSubmatch(response); m != nil {
		d.Verdict = Verdict(strings.ToUpper(m[1]))
	}
	if m := reasoningPattern.FindStringSubmatch(response); m != nil {
		d.Reasoning = strings.TrimSpace(m[1])
	}
	return d
}

func money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}
