package main

import (
	"fmt"
	"strconv"

	"github.com/Veraticus/spice-ledger/internal/cli"
	"github.com/Veraticus/spice-ledger/internal/ledger"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func accountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "account",
		Aliases: []string{"accounts"},
		Short:   "Manage accounts",
	}
	cmd.AddCommand(
		accountAddCmd(),
		accountListCmd(),
		accountShowCmd(),
		accountUpdateCmd(),
		accountCloseCmd(),
		accountBalanceCmd(),
	)
	return cmd
}

func accountAddCmd() *cobra.Command {
	var accountType, balance, institution, currency string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Open an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			initial := decimal.Zero
			if balance != "" {
				if initial, err = parseMoney(balance); err != nil {
					return err
				}
			}
			if currency == "" {
				currency = viper.GetString("ledger.currency")
			}

			acct, err := a.ledger.CreateAccount(cmd.Context(), a.session, ledger.NewAccount{
				Name:           args[0],
				Type:           model.AccountType(accountType),
				InitialBalance: initial,
				Institution:    institution,
				Currency:       currency,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, cli.FormatSuccess(fmt.Sprintf("Opened %s (id %d) with %s", acct.Name, acct.ID, money(acct.Balance))))
			return nil
		},
	}
	cmd.Flags().StringVarP(&accountType, "type", "t", "checking", "checking, savings, credit_card or investment")
	cmd.Flags().StringVarP(&balance, "balance", "b", "", "opening balance")
	cmd.Flags().StringVar(&institution, "institution", "", "bank or broker")
	cmd.Flags().StringVar(&currency, "currency", "", "currency code (default: ledger.currency)")
	return cmd
}

func accountRows(accounts []model.Account) [][]string {
	rows := make([][]string, 0, len(accounts))
	for _, acct := range accounts {
		status := "open"
		if !acct.IsActive {
			status = "closed"
		}
		rows = append(rows, []string{
			strconv.FormatInt(acct.ID, 10),
			acct.Name,
			string(acct.Type),
			orDash(acct.Institution),
			money(acct.Balance),
			status,
		})
	}
	return rows
}

func accountListCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			accounts, err := a.ledger.ListAccounts(cmd.Context(), a.session, !all)
			if err != nil {
				return err
			}
			if len(accounts) == 0 {
				fmt.Fprintln(a.out, cli.FormatInfo("No accounts yet. Open one with 'spice account add <name>'."))
				return nil
			}
			fmt.Fprintln(a.out, cli.Table([]string{"ID", "Name", "Type", "Institution", "Balance", "Status"}, accountRows(accounts), 4))
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include closed accounts")
	return cmd
}

func accountShowCmd() *cobra.Command {
	var recent int

	cmd := &cobra.Command{
		Use:   "show <account>",
		Short: "Show an account and its latest transactions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			acct, err := a.account(ctx, args[0])
			if err != nil {
				return err
			}
			details := fmt.Sprintf("Type: %s\nInstitution: %s\nCurrency: %s\nBalance: %s\nOpened: %s",
				acct.Type, orDash(acct.Institution), acct.Currency, cli.Money(acct.Balance), model.FormatDate(acct.CreatedAt))
			fmt.Fprintln(a.out, cli.RenderBox(acct.Name, details))

			txns, err := a.ledger.Search(ctx, a.session, model.TransactionFilter{AccountID: &acct.ID, Limit: recent})
			if err != nil {
				return err
			}
			if len(txns) > 0 {
				fmt.Fprintln(a.out, transactionTable(txns))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&recent, "recent", "n", 10, "number of recent transactions to show")
	return cmd
}

func accountUpdateCmd() *cobra.Command {
	var name, accountType, institution string

	cmd := &cobra.Command{
		Use:   "update <account>",
		Short: "Rename or reclassify an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			acct, err := a.account(ctx, args[0])
			if err != nil {
				return err
			}

			update := model.AccountUpdate{
				Name:        changedString(cmd, "name", name),
				Institution: changedString(cmd, "institution", institution),
			}
			if cmd.Flags().Changed("type") {
				t, err := model.ParseAccountType(accountType)
				if err != nil {
					return err
				}
				update.Type = &t
			}

			updated, err := a.ledger.UpdateAccount(ctx, a.session, acct.ID, update)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, cli.FormatSuccess("Updated "+updated.Name))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVarP(&accountType, "type", "t", "", "new type")
	cmd.Flags().StringVar(&institution, "institution", "", "new institution")
	return cmd
}

func accountCloseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "close <account>",
		Short: "Close an account, keeping its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			acct, err := a.account(ctx, args[0])
			if err != nil {
				return err
			}
			if ok, err := a.confirm(cmd, fmt.Sprintf("Close %s (balance %s)?", acct.Name, money(acct.Balance))); err != nil || !ok {
				return err
			}
			if err := a.ledger.CloseAccount(ctx, a.session, acct.ID); err != nil {
				return err
			}
			fmt.Fprintln(a.out, cli.FormatSuccess("Closed "+acct.Name))
			return nil
		},
	}
	addYesFlag(cmd)
	return cmd
}

func accountBalanceCmd() *cobra.Command {
	var set string

	cmd := &cobra.Command{
		Use:   "balance [account]",
		Short: "Show balances, or reset one to match a statement",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if len(args) == 0 {
				if set != "" {
					return fmt.Errorf("--set needs an account")
				}
				total, err := a.ledger.TotalBalance(ctx, a.session)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Total across active accounts: %s\n", cli.Money(total))
				return nil
			}

			acct, err := a.account(ctx, args[0])
			if err != nil {
				return err
			}
			if set != "" {
				balance, err := parseMoney(set)
				if err != nil {
					return err
				}
				if ok, err := a.confirm(cmd, fmt.Sprintf("Reset %s from %s to %s?", acct.Name, money(acct.Balance), money(balance))); err != nil || !ok {
					return err
				}
				if acct, err = a.ledger.SetBalance(ctx, a.session, acct.ID, balance); err != nil {
					return err
				}
			}
			fmt.Fprintf(a.out, "%s: %s\n", acct.Name, cli.Money(acct.Balance))
			return nil
		},
	}
	cmd.Flags().StringVar(&set, "set", "", "overwrite the balance")
	addYesFlag(cmd)
	return cmd
}
