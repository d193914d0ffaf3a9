package main

import (
	"fmt"
	"strings"

	"github.com/Veraticus/spice-ledger/internal/advisor"
	"github.com/Veraticus/spice-ledger/internal/cli"
	"github.com/spf13/cobra"
)

func affordCmd() *cobra.Command {
	var details bool

	cmd := &cobra.Command{
		Use:   "afford <question...>",
		Short: "Ask whether you can afford something",
		Long: `Ask whether you can afford a purchase. The question must include an amount.
The answer weighs your balances, budgets, upcoming recurring charges and
last week's spending.`,
		Example: `  spice afford "Can I afford a $120 dinner out?"
  spice afford should I spend 80 bucks on concert tickets`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireGenerator(); err != nil {
				return err
			}

			question := strings.Join(args, " ")
			assessment, err := a.advisor.Assess(cmd.Context(), a.session, question)
			if err != nil {
				return err
			}
			renderAssessment(a, assessment, details)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&details, "details", "d", false, "show the budgets and charges behind the answer")
	return cmd
}

func renderAssessment(a *app, as *advisor.Assessment, details bool) {
	c := as.Context
	lines := []string{
		cli.BoldStyle.Render("Answer: ") + cli.Verdict(string(as.Decision.Verdict)),
		"",
		as.Decision.Reasoning,
		"",
		fmt.Sprintf("Balance across %d accounts: %s", c.AccountCount, cli.Money(c.TotalBalance)),
		fmt.Sprintf("Recurring charges due this week: %s", money(c.UpcomingTotal)),
		fmt.Sprintf("Spent in the last 7 days: %s", money(c.LastWeekSpending)),
	}
	fmt.Fprintln(a.out, cli.RenderBox("Can I afford "+money(as.Amount)+"?", strings.Join(lines, "\n")))

	for _, name := range c.Degraded {
		fmt.Fprintln(a.out, cli.FormatWarning(name+" unavailable; the answer was made without it"))
	}
	if !details {
		return
	}

	if len(c.Budgets) > 0 {
		fmt.Fprintln(a.out, budgetStatusTable(c.Budgets))
	}
	if len(c.Upcoming) > 0 {
		rows := make([][]string, 0, len(c.Upcoming))
		for _, u := range c.Upcoming {
			rows = append(rows, []string{dateOrDash(&u.DueDate), u.Merchant, money(u.Amount)})
		}
		fmt.Fprintln(a.out, cli.Table([]string{"Due", "Merchant", "Amount"}, rows, 2))
	}
}
