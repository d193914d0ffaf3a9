package main

import (
	"fmt"
	"strconv"

	"github.com/Veraticus/spice-ledger/internal/cli"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func budgetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "budget",
		Aliases: []string{"budgets"},
		Short:   "Set monthly category limits and see how you are doing",
	}
	cmd.AddCommand(
		budgetSetCmd(),
		budgetListCmd(),
		budgetStatusCmd(),
		budgetUpdateCmd(),
		budgetDeleteCmd(),
	)
	return cmd
}

// parseThreshold accepts a fraction (0.8) or a percentage (80).
func parseThreshold(s string) (decimal.Decimal, error) {
	d, err := model.ParseAmount(s)
	if err != nil {
		return decimal.Zero, err
	}
	if d.GreaterThan(decimal.NewFromInt(1)) {
		d = d.Div(decimal.NewFromInt(100))
	}
	return d, nil
}

func budgetSetCmd() *cobra.Command {
	var alert string

	cmd := &cobra.Command{
		Use:     "set <category> <monthly-limit>",
		Short:   "Create a budget",
		Example: `  spice budget set "Food & Dining" 600 --alert 80`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			limit, err := parseMoney(args[1])
			if err != nil {
				return err
			}
			var threshold *decimal.Decimal
			if alert != "" {
				t, err := parseThreshold(alert)
				if err != nil {
					return err
				}
				threshold = &t
			}

			b, err := a.budgets.Create(cmd.Context(), a.session, args[0], limit, threshold)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, cli.FormatSuccess(fmt.Sprintf("Budget for %s: %s a month, alert at %s%%",
				b.Category, money(b.MonthlyLimit), b.AlertThreshold.Mul(decimal.NewFromInt(100)).StringFixed(0))))
			return nil
		},
	}
	cmd.Flags().StringVar(&alert, "alert", "", "alert threshold as a fraction or percent (default 90%)")
	return cmd
}

func budgetListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List budgets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			budgets, err := a.budgets.List(cmd.Context(), a.session)
			if err != nil {
				return err
			}
			if len(budgets) == 0 {
				fmt.Fprintln(a.out, cli.FormatInfo("No budgets yet. Set one with 'spice budget set <category> <limit>'."))
				return nil
			}
			rows := make([][]string, 0, len(budgets))
			for _, b := range budgets {
				rows = append(rows, []string{
					strconv.FormatInt(b.ID, 10),
					b.Category,
					money(b.MonthlyLimit),
					b.AlertThreshold.Mul(decimal.NewFromInt(100)).StringFixed(0) + "%",
				})
			}
			fmt.Fprintln(a.out, cli.Table([]string{"ID", "Category", "Monthly limit", "Alert at"}, rows, 2, 3))
			return nil
		},
	}
}

func budgetStatusCmd() *cobra.Command {
	var month string

	cmd := &cobra.Command{
		Use:   "status [category]",
		Short: "Show spending against each budget for a month",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			year, m, err := model.ParseMonth(month, a.now())
			if err != nil {
				return err
			}

			var statuses []model.BudgetStatus
			if len(args) == 1 {
				b, err := a.budgets.GetByCategory(ctx, a.session, args[0])
				if err != nil {
					return err
				}
				status, err := a.budgets.StatusFor(ctx, a.session, b.ID, year, m)
				if err != nil {
					return err
				}
				statuses = append(statuses, status)
			} else if statuses, err = a.budgets.StatusAll(ctx, a.session, year, m); err != nil {
				return err
			}

			if len(statuses) == 0 {
				fmt.Fprintln(a.out, cli.FormatInfo("No budgets yet."))
				return nil
			}
			fmt.Fprintln(a.out, cli.FormatTitle(fmt.Sprintf("Budgets for %s %d", m, year)))
			fmt.Fprintln(a.out, budgetStatusTable(statuses))
			for _, s := range statuses {
				switch {
				case s.IsOver:
					fmt.Fprintln(a.out, cli.FormatError(fmt.Sprintf("%s is over by %s", s.Budget.Category, money(s.Remaining.Neg()))))
				case s.ShouldAlert:
					fmt.Fprintln(a.out, cli.FormatWarning(fmt.Sprintf("%s is at %s%% of its limit", s.Budget.Category, s.Percentage.StringFixed(0))))
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&month, "month", "m", "", "month as YYYY-MM (default: this month)")
	return cmd
}

func budgetStatusTable(statuses []model.BudgetStatus) string {
	rows := make([][]string, 0, len(statuses))
	for _, s := range statuses {
		rows = append(rows, []string{
			s.Budget.Category,
			money(s.Spent),
			money(s.Limit),
			money(s.Remaining),
			cli.Bar(s.Percentage, s.ShouldAlert) + " " + s.Percentage.StringFixed(0) + "%",
		})
	}
	return cli.Table([]string{"Category", "Spent", "Limit", "Remaining", "Used"}, rows, 1, 2, 3)
}

func budgetUpdateCmd() *cobra.Command {
	var limit, alert string

	cmd := &cobra.Command{
		Use:   "update <category>",
		Short: "Change a budget's limit or alert threshold",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			b, err := a.budgets.GetByCategory(ctx, a.session, args[0])
			if err != nil {
				return err
			}

			var update model.BudgetUpdate
			if update.MonthlyLimit, err = optionalMoney(cmd, "limit", limit); err != nil {
				return err
			}
			if alert != "" {
				t, err := parseThreshold(alert)
				if err != nil {
					return err
				}
				update.AlertThreshold = &t
			}
			if update.MonthlyLimit == nil && update.AlertThreshold == nil {
				return fmt.Errorf("nothing to update: pass --limit or --alert")
			}

			updated, err := a.budgets.Update(ctx, a.session, b.ID, update)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, cli.FormatSuccess(fmt.Sprintf("Budget for %s: %s a month", updated.Category, money(updated.MonthlyLimit))))
			return nil
		},
	}
	cmd.Flags().StringVar(&limit, "limit", "", "new monthly limit")
	cmd.Flags().StringVar(&alert, "alert", "", "new alert threshold")
	return cmd
}

func budgetDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <category>",
		Short: "Delete a budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			b, err := a.budgets.GetByCategory(ctx, a.session, args[0])
			if err != nil {
				return err
			}
			if ok, err := a.confirm(cmd, fmt.Sprintf("Delete the %s budget?", b.Category)); err != nil || !ok {
				return err
			}
			if err := a.budgets.Delete(ctx, a.session, b.ID); err != nil {
				return err
			}
			fmt.Fprintln(a.out, cli.FormatSuccess("Deleted the "+b.Category+" budget"))
			return nil
		},
	}
	addYesFlag(cmd)
	return cmd
}
