package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Veraticus/spice-ledger/internal/cli"
	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/config"
	"github.com/Veraticus/spice-ledger/internal/csvio"
	"github.com/Veraticus/spice-ledger/internal/ledger"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/ofx"
	"github.com/Veraticus/spice-ledger/internal/plaid"
	"github.com/Veraticus/spice-ledger/internal/simplefin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import transactions from files or your bank",
		Long: `Import transactions into one account. Re-running an import is safe:
transactions already in the ledger are recognized and skipped.`,
	}
	cmd.AddCommand(importCSVCmd(), importOFXCmd(), importPlaidCmd(), importSimpleFINCmd())
	return cmd
}

type importFlags struct {
	account string
	dryRun  bool
}

func (f *importFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.account, "account", "a", "", "account to import into (id or name; optional with one account)")
	cmd.Flags().BoolVarP(&f.dryRun, "dry-run", "n", false, "show what would be imported without saving")
}

// runImport loads drafts into the chosen account and reports the counts.
func runImport(cmd *cobra.Command, a *app, flags importFlags, source string, drafts []model.TransactionDraft) error {
	ctx := cmd.Context()
	acct, err := a.defaultAccount(ctx, flags.account)
	if err != nil {
		return err
	}
	if len(drafts) == 0 {
		fmt.Fprintln(a.out, cli.FormatInfo("No transactions found in "+source+"."))
		return nil
	}

	bar := cli.NewProgress(len(drafts), "Importing into "+acct.Name, cmd.ErrOrStderr())
	result, err := a.importer.Import(ctx, a.session, acct.ID, drafts, ledger.ImportOptions{
		Progress: bar,
		DryRun:   flags.dryRun,
	})
	_ = bar.Finish()
	if err != nil {
		return fmt.Errorf("import from %s failed: %w", source, err)
	}

	verb := "Imported"
	if result.DryRun {
		verb = "Would import"
	}
	fmt.Fprintln(a.out, cli.FormatSuccess(fmt.Sprintf("%s %d transactions into %s", verb, result.Imported, acct.Name)))
	if result.Duplicates > 0 {
		fmt.Fprintln(a.out, cli.FormatInfo(fmt.Sprintf("%d already in the ledger", result.Duplicates)))
	}
	if result.Skipped > 0 {
		fmt.Fprintln(a.out, cli.FormatWarning(fmt.Sprintf("%d skipped as invalid (run with --log-level debug for details)", result.Skipped)))
	}
	if result.RecurringMatched > 0 {
		fmt.Fprintln(a.out, cli.FormatInfo(fmt.Sprintf("%d matched recurring charges", result.RecurringMatched)))
	}
	if result.DryRun && len(result.Transactions) > 0 {
		fmt.Fprintln(a.out, transactionTable(result.Transactions))
	}
	return nil
}

func importCSVCmd() *cobra.Command {
	var flags importFlags
	var dialect string

	cmd := &cobra.Command{
		Use:   "csv <file>",
		Short: "Import a CSV export",
		Long: `Import a CSV file. Formats:
  generic  date, merchant, amount, and optional category, description, notes, type
  mint     Mint.com transaction export
  ynab     YNAB register export`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := csvio.ParseDialect(dialect)
			if err != nil {
				return err
			}
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			f, err := os.Open(args[0])
			if err != nil {
				return common.NewUserError("cannot open "+args[0], err)
			}
			defer f.Close()

			drafts, err := csvio.Parse(f, d)
			if err != nil {
				return err
			}
			return runImport(cmd, a, flags, args[0], drafts)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&dialect, "format", "f", "generic", "generic, mint or ynab")
	return cmd
}

func importOFXCmd() *cobra.Command {
	var flags importFlags

	cmd := &cobra.Command{
		Use:     "ofx <file>",
		Aliases: []string{"qfx"},
		Short:   "Import an OFX or QFX bank download",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			f, err := os.Open(args[0])
			if err != nil {
				return common.NewUserError("cannot open "+args[0], err)
			}
			defer f.Close()

			statements, err := ofx.NewParser().Parse(f)
			if err != nil {
				return err
			}
			if len(statements) > 1 {
				fmt.Fprintln(a.out, cli.FormatWarning(fmt.Sprintf(
					"%s holds %d statements; all of them go into one account", args[0], len(statements))))
			}
			return runImport(cmd, a, flags, args[0], ofx.Drafts(statements))
		},
	}
	flags.register(cmd)
	return cmd
}

var (
	_ ledger.Feed = (*plaid.Client)(nil)
	_ ledger.Feed = (*simplefin.Client)(nil)
)

// feedWindow is the date range a bank feed import covers.
type feedWindow struct {
	days     int
	from, to string
}

func (w *feedWindow) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&w.days, "days", 30, "fetch this many days back")
	cmd.Flags().StringVar(&w.from, "from", "", "start date (YYYY-MM-DD), overrides --days")
	cmd.Flags().StringVar(&w.to, "to", "", "end date (YYYY-MM-DD, default today)")
}

func (w feedWindow) resolve(now time.Time) (time.Time, time.Time, error) {
	if w.days < 0 {
		return time.Time{}, time.Time{}, common.Validationf("--days cannot be negative")
	}
	end := model.Day(now)
	start := end.AddDate(0, 0, -w.days)
	if t, err := optionalDate(w.from); err != nil {
		return start, end, err
	} else if t != nil {
		start = *t
	}
	if t, err := optionalDate(w.to); err != nil {
		return start, end, err
	} else if t != nil {
		end = *t
	}
	if end.Before(start) {
		return start, end, common.Validationf("--to is before --from")
	}
	return start, end, nil
}

// importFeed fetches the window from feed and imports it.
func importFeed(cmd *cobra.Command, a *app, flags importFlags, window feedWindow, name string, feed ledger.Feed) error {
	start, end, err := window.resolve(a.now())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.ErrOrStderr(), cli.FormatInfo(fmt.Sprintf("Fetching %s transactions from %s to %s", name,
		start.Format(model.DateLayout), end.Format(model.DateLayout))))
	drafts, err := feed.GetTransactions(cmd.Context(), start, end)
	if err != nil {
		return err
	}
	return runImport(cmd, a, flags, name, drafts)
}

func importPlaidCmd() *cobra.Command {
	var flags importFlags
	var window feedWindow

	cmd := &cobra.Command{
		Use:   "plaid",
		Short: "Import transactions from a Plaid-linked bank",
		Long: `Fetch posted transactions from Plaid. Configure plaid.client_id,
plaid.secret, plaid.environment and plaid.access_token (or the PLAID_*
environment variables).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.LoadPlaidConfig(viper.GetViper())
			if err := cfg.Validate(); err != nil {
				return common.NewUserError(err.Error(), common.ErrInvalidConfig)
			}

			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			client, err := plaid.NewClient(cfg)
			if err != nil {
				return err
			}
			return importFeed(cmd, a, flags, window, "Plaid", client)
		},
	}
	flags.register(cmd)
	window.register(cmd)
	cmd.AddCommand(plaidInstitutionsCmd())
	return cmd
}

func importSimpleFINCmd() *cobra.Command {
	var flags importFlags
	var window feedWindow

	cmd := &cobra.Command{
		Use:   "simplefin",
		Short: "Import transactions from a SimpleFIN Bridge",
		Long: `Fetch posted transactions from SimpleFIN. The first run claims the setup
token in simplefin.token (or SIMPLEFIN_TOKEN) and saves the access URL to the
data directory; later runs reuse it. Set simplefin.account_id to import a
single bridge account.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			client, err := simplefin.NewClient(cmd.Context(), config.LoadSimpleFINConfig(viper.GetViper()))
			if err != nil {
				if errors.Is(err, common.ErrInvalidConfig) {
					return common.NewUserError("SimpleFIN is not configured: set simplefin.token or SIMPLEFIN_TOKEN", err)
				}
				return err
			}
			return importFeed(cmd, a, flags, window, "SimpleFIN", client)
		},
	}
	flags.register(cmd)
	window.register(cmd)
	cmd.AddCommand(simplefinAccountsCmd())
	return cmd
}

func simplefinAccountsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List the accounts the bridge shares",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := simplefin.NewClient(cmd.Context(), config.LoadSimpleFINConfig(viper.GetViper()))
			if err != nil {
				return err
			}
			accounts, err := client.Accounts(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(accounts) == 0 {
				fmt.Fprintln(out, cli.FormatInfo("The bridge shares no accounts."))
				return nil
			}
			rows := make([][]string, 0, len(accounts))
			for _, acct := range accounts {
				rows = append(rows, []string{acct.ID, acct.Org, acct.Name, acct.Currency, money(acct.Balance)})
			}
			fmt.Fprintln(out, cli.Table([]string{"ID", "Institution", "Account", "Currency", "Balance"}, rows, 4))
			return nil
		},
	}
}

func plaidInstitutionsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "institutions <query>",
		Short: "Search the banks Plaid can connect to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := plaid.NewClient(config.LoadPlaidConfig(viper.GetViper()))
			if err != nil {
				return common.NewUserError(err.Error(), common.ErrInvalidConfig)
			}

			ctx := cmd.Context()
			start := time.Now()
			found, err := client.SearchInstitutions(ctx, args[0], limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(found) == 0 {
				fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("No institutions match %q.", args[0])))
				return nil
			}

			rows := make([][]string, 0, len(found))
			for _, inst := range found {
				rows = append(rows, []string{inst.ID, inst.Name, yesNo(inst.OAuth), yesNo(inst.SupportsTransactions)})
			}
			fmt.Fprintln(out, cli.Table([]string{"ID", "Institution", "OAuth", "Transactions"}, rows))
			fmt.Fprintln(out, cli.SubtleStyle.Render(strconv.Itoa(len(found))+" results in "+time.Since(start).Round(time.Millisecond).String()))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 10, "maximum results")
	return cmd
}
