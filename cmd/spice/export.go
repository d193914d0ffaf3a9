package main

import (
	"fmt"
	"io"
	"os"

	"github.com/Veraticus/spice-ledger/internal/cli"
	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/csvio"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/spf13/cobra"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export transactions",
	}
	cmd.AddCommand(exportCSVCmd())
	return cmd
}

func exportCSVCmd() *cobra.Command {
	var output, month, from, to, account, category string

	cmd := &cobra.Command{
		Use:   "csv",
		Short: "Write transactions as CSV",
		Example: `  spice export csv --month 2026-09 -o september.csv
  spice export csv --from 2026-01-01 --category Groceries`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			var filter model.TransactionFilter
			if month != "" {
				if from != "" || to != "" {
					return common.Validationf("use either --month or --from/--to")
				}
				year, m, err := model.ParseMonth(month, a.now())
				if err != nil {
					return err
				}
				start, end := model.MonthRange(year, m)
				filter.StartDate, filter.EndDate = &start, &end
			} else {
				if filter.StartDate, err = optionalDate(from); err != nil {
					return err
				}
				if filter.EndDate, err = optionalDate(to); err != nil {
					return err
				}
			}
			if account != "" {
				acct, err := a.account(ctx, account)
				if err != nil {
					return err
				}
				filter.AccountID = &acct.ID
			}
			filter.Category = category

			txns, err := a.ledger.Search(ctx, a.session, filter)
			if err != nil {
				return err
			}

			var w io.Writer = a.out
			status := cmd.ErrOrStderr()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return common.NewUserError("cannot write "+output, err)
				}
				defer f.Close()
				w = f
				status = a.out
			}

			n, err := csvio.Export(w, txns)
			if err != nil {
				return err
			}
			dest := "stdout"
			if w != a.out {
				dest = output
			}
			fmt.Fprintln(status, cli.FormatSuccess(fmt.Sprintf("Exported %d transactions to %s", n, dest)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write (default: stdout)")
	cmd.Flags().StringVarP(&month, "month", "m", "", "only this month (YYYY-MM)")
	cmd.Flags().StringVar(&from, "from", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "end date (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&account, "account", "a", "", "only this account")
	cmd.Flags().StringVarP(&category, "category", "c", "", "only this category")
	return cmd
}
