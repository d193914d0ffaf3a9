package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/spice-ledger/internal/analytics"
	"github.com/Veraticus/spice-ledger/internal/cli"
	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/config"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/sheets"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "report",
		Aliases: []string{"reports"},
		Short:   "Summaries, trends and insights",
	}
	cmd.AddCommand(
		reportMonthlyCmd(),
		reportCategoryCmd(),
		reportTrendsCmd(),
		reportAccountsCmd(),
		reportTopCmd(),
		reportInsightsCmd(),
		reportSheetsCmd(),
	)
	return cmd
}

func pct(d decimal.Decimal) string {
	return d.StringFixed(1) + "%"
}

// signedPct renders a change with an explicit sign.
func signedPct(d decimal.Decimal) string {
	if d.IsPositive() {
		return "+" + pct(d)
	}
	return pct(d)
}

func categoryRows(categories []analytics.CategoryAmount) [][]string {
	rows := make([][]string, 0, len(categories))
	for _, c := range categories {
		rows = append(rows, []string{c.Category, money(c.Amount), pct(c.Percentage), strconv.Itoa(c.Count)})
	}
	return rows
}

func merchantRows(merchants []analytics.MerchantAmount) [][]string {
	rows := make([][]string, 0, len(merchants))
	for _, m := range merchants {
		rows = append(rows, []string{m.Merchant, money(m.Amount), pct(m.Percentage)})
	}
	return rows
}

func reportMonthlyCmd() *cobra.Command {
	var month string
	var compare bool

	cmd := &cobra.Command{
		Use:   "monthly",
		Short: "Income, spending and savings for a month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
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

			var cmp analytics.Comparison
			if compare {
				if cmp, err = a.analytics.CompareToPrevious(ctx, a.session, year, m); err != nil {
					return err
				}
			} else {
				if cmp.Current, err = a.analytics.MonthlySummary(ctx, a.session, year, m); err != nil {
					return err
				}
			}
			s := cmp.Current

			lines := []string{
				"Income:   " + money(s.TotalIncome),
				"Expenses: " + money(s.TotalExpenses),
				"Savings:  " + cli.Money(s.Savings) + " (" + pct(s.SavingsRate) + ")",
				"Transactions: " + strconv.Itoa(s.TransactionCount),
			}
			if compare {
				lines = append(lines, "",
					fmt.Sprintf("vs %s %d:", cmp.Previous.Month, cmp.Previous.Year),
					fmt.Sprintf("  Income   %s (%s)", cli.Money(cmp.IncomeChange), signedPct(cmp.IncomeChangePct)),
					fmt.Sprintf("  Expenses %s (%s)", cli.Money(cmp.ExpenseChange), signedPct(cmp.ExpenseChangePct)),
					fmt.Sprintf("  Savings  %s", cli.Money(cmp.SavingsChange)),
				)
			}
			fmt.Fprintln(a.out, cli.RenderBox(fmt.Sprintf("%s %d", s.Month, s.Year), strings.Join(lines, "\n")))

			if len(s.Categories) > 0 {
				fmt.Fprintln(a.out, cli.Table([]string{"Category", "Spent", "Share", "Txns"}, categoryRows(s.Categories), 1, 2, 3))
			}
			if len(s.TopMerchants) > 0 {
				fmt.Fprintln(a.out, cli.Table([]string{"Merchant", "Spent", "Share"}, merchantRows(s.TopMerchants), 1, 2))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&month, "month", "m", "", "month as YYYY-MM (default: this month)")
	cmd.Flags().BoolVarP(&compare, "compare", "c", false, "compare with the previous month")
	return cmd
}

func reportCategoryCmd() *cobra.Command {
	var months int

	cmd := &cobra.Command{
		Use:   "category <name>",
		Short: "Spending in one category month by month",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ca, err := a.analytics.CategoryAnalysis(cmd.Context(), a.session, args[0], months)
			if err != nil {
				return err
			}

			lines := []string{
				fmt.Sprintf("Total: %s over %d months (%d transactions)", money(ca.Total), ca.Months, ca.Count),
				"Average: " + money(ca.Average) + " a month",
				"Range: " + money(ca.Min) + " to " + money(ca.Max),
				fmt.Sprintf("Trend: %s (%s)", ca.Trend, signedPct(ca.TrendChange)),
			}
			fmt.Fprintln(a.out, cli.RenderBox(ca.Category, strings.Join(lines, "\n")))

			rows := make([][]string, 0, len(ca.Monthly))
			for _, mt := range ca.Monthly {
				rows = append(rows, []string{fmt.Sprintf("%d-%02d", mt.Year, int(mt.Month)), money(mt.Total), strconv.Itoa(mt.Count)})
			}
			fmt.Fprintln(a.out, cli.Table([]string{"Month", "Spent", "Txns"}, rows, 1, 2))
			if len(ca.TopMerchants) > 0 {
				fmt.Fprintln(a.out, cli.Table([]string{"Merchant", "Spent", "Share"}, merchantRows(ca.TopMerchants), 1, 2))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&months, "months", "n", 6, "number of months to cover")
	return cmd
}

func reportTrendsCmd() *cobra.Command {
	var weeks int

	cmd := &cobra.Command{
		Use:   "trends",
		Short: "Week-by-week spending with unusual weeks flagged",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			tr, err := a.analytics.SpendingTrends(cmd.Context(), a.session, weeks)
			if err != nil {
				return err
			}

			unusual := make(map[time.Time]bool, len(tr.Unusual))
			for _, w := range tr.Unusual {
				unusual[w.End] = true
			}
			rows := make([][]string, 0, len(tr.Weekly))
			for _, w := range tr.Weekly {
				total := money(w.Total)
				if unusual[w.End] {
					total = cli.WarningStyle.Render(total + " !")
				}
				rows = append(rows, []string{
					model.FormatDate(w.Start) + " to " + model.FormatDate(w.End),
					total,
					money(w.AvgPerDay),
					strconv.Itoa(w.Count),
				})
			}
			fmt.Fprintln(a.out, cli.Table([]string{"Week", "Spent", "Per day", "Txns"}, rows, 1, 2, 3))
			fmt.Fprintln(a.out, cli.FormatInfo(fmt.Sprintf("Average week: %s", money(tr.AverageWeekly))))
			if n := len(tr.Unusual); n > 0 {
				fmt.Fprintln(a.out, cli.FormatWarning(fmt.Sprintf("%d unusual week(s) marked with !", n)))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&weeks, "weeks", "w", 4, "number of weeks to cover")
	return cmd
}

func reportAccountsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "Net worth and this month's activity per account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			sum, err := a.analytics.AccountSummary(cmd.Context(), a.session)
			if err != nil {
				return err
			}
			if sum.AccountCount == 0 {
				fmt.Fprintln(a.out, cli.FormatInfo("No active accounts."))
				return nil
			}

			rows := make([][]string, 0, len(sum.Accounts))
			for _, act := range sum.Accounts {
				rows = append(rows, []string{
					act.Account.Name,
					string(act.Account.Type),
					cli.Money(act.Account.Balance),
					money(act.Income),
					money(act.Expenses),
					cli.Money(act.Net),
					strconv.Itoa(act.Count),
				})
			}
			fmt.Fprintln(a.out, cli.Table([]string{"Account", "Type", "Balance", "In", "Out", "Net", "Txns"}, rows, 2, 3, 4, 5, 6))
			fmt.Fprintln(a.out, cli.BoldStyle.Render("Net worth: ")+cli.Money(sum.NetWorth))
			return nil
		},
	}
}

func reportTopCmd() *cobra.Command {
	var limit, days int

	cmd := &cobra.Command{
		Use:   "top",
		Short: "Categories with the most spending",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			top, err := a.analytics.TopCategories(cmd.Context(), a.session, limit, days)
			if err != nil {
				return err
			}
			if len(top) == 0 {
				fmt.Fprintln(a.out, cli.FormatInfo(fmt.Sprintf("No spending in the last %d days.", days)))
				return nil
			}
			fmt.Fprintln(a.out, cli.Table([]string{"Category", "Spent", "Share", "Txns"}, categoryRows(top), 1, 2, 3))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of categories")
	cmd.Flags().IntVarP(&days, "days", "d", 30, "look back this many days")
	return cmd
}

func reportInsightsCmd() *cobra.Command {
	var month string

	cmd := &cobra.Command{
		Use:   "insights",
		Short: "Ask the language model to comment on a month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireGenerator(); err != nil {
				return err
			}

			year, m, err := model.ParseMonth(month, a.now())
			if err != nil {
				return err
			}
			text, err := a.advisor.Insights(cmd.Context(), a.session, year, m)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, cli.RenderBox(fmt.Sprintf("Insights for %s %d", m, year), strings.TrimSpace(text)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&month, "month", "m", "", "month as YYYY-MM (default: this month)")
	return cmd
}

func reportSheetsCmd() *cobra.Command {
	var month string

	cmd := &cobra.Command{
		Use:   "sheets",
		Short: "Write a month's report to Google Sheets",
		Long: `Write a month's summary and transactions to the report sheet of a Google
spreadsheet. Authenticate with a service account (sheets.service_account_path)
or with OAuth: set sheets.client_id and sheets.client_secret, then run
'spice report sheets auth' once.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			cfg, err := config.LoadSheetsConfig(viper.GetViper())
			if err != nil {
				return common.NewUserError(err.Error(), common.ErrInvalidConfig)
			}
			year, m, err := model.ParseMonth(month, a.now())
			if err != nil {
				return err
			}

			summary, err := a.analytics.MonthlySummary(ctx, a.session, year, m)
			if err != nil {
				return err
			}
			txns, err := a.ledger.ListByMonth(ctx, a.session, year, m)
			if err != nil {
				return err
			}

			writer, err := sheets.NewWriter(ctx, *cfg)
			if err != nil {
				return err
			}
			id, err := writer.WriteMonthly(ctx, &summary, txns)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, cli.FormatSuccess(fmt.Sprintf("Wrote %s %d (%d transactions)", m, year, len(txns))))
			fmt.Fprintln(a.out, "https://docs.google.com/spreadsheets/d/"+id)
			return nil
		},
	}
	cmd.Flags().StringVarP(&month, "month", "m", "", "month as YYYY-MM (default: this month)")
	cmd.AddCommand(reportSheetsAuthCmd())
	return cmd
}

func reportSheetsAuthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authorize Google Sheets access in the browser",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			cfg := config.ReadSheetsConfig(viper.GetViper())
			if cfg.ClientID == "" || cfg.ClientSecret == "" {
				return common.NewUserError(
					"set sheets.client_id and sheets.client_secret (or GOOGLE_SHEETS_CLIENT_ID and GOOGLE_SHEETS_CLIENT_SECRET) first",
					common.ErrInvalidConfig)
			}

			tokenFile := config.ExpandPath(viper.GetString("sheets.token_file"))
			if tokenFile == "" {
				tokenFile = config.SheetsTokenFile()
			}
			token, err := sheets.Authorize(cmd.Context(), cfg.ClientID, cfg.ClientSecret, tokenFile, func(url string) {
				fmt.Fprintln(out, cli.FormatPrompt("Open this URL to authorize spice:"))
				fmt.Fprintln(out, url)
			})
			if err != nil {
				return err
			}
			if token.RefreshToken == "" {
				fmt.Fprintln(out, cli.FormatWarning("Google did not return a refresh token; revoke access and try again."))
				return nil
			}
			fmt.Fprintln(out, cli.FormatSuccess("Authorized. Token saved to "+tokenFile))
			return nil
		},
	}
}
