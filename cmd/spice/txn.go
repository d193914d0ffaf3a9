package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Veraticus/spice-ledger/internal/cli"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/spf13/cobra"
)

func txnCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "txn",
		Aliases: []string{"transaction", "transactions"},
		Short:   "Record and find transactions",
	}
	cmd.AddCommand(
		txnAddCmd(),
		txnLogCmd(),
		txnListCmd(),
		txnSearchCmd(),
		txnShowCmd(),
		txnUpdateCmd(),
		txnDeleteCmd(),
		txnTransferCmd(),
	)
	return cmd
}

func signedAmount(t model.Transaction) string {
	switch {
	case t.Type == model.TypeIncome:
		return "+" + money(t.Amount)
	case t.Type == model.TypeExpense || t.IsOutgoing():
		return "-" + money(t.Amount)
	}
	return "+" + money(t.Amount)
}

func transactionTable(txns []model.Transaction) string {
	rows := make([][]string, 0, len(txns))
	for _, t := range txns {
		rows = append(rows, []string{
			strconv.FormatInt(t.ID, 10),
			model.FormatDate(t.Date),
			t.DisplayMerchant(),
			t.Category,
			signedAmount(t),
			strings.Join(t.Tags, ","),
		})
	}
	return cli.Table([]string{"ID", "Date", "Merchant", "Category", "Amount", "Tags"}, rows, 4)
}

func txnAddCmd() *cobra.Command {
	var accountRef, txnType, category, date, description, notes string

	cmd := &cobra.Command{
		Use:   "add <amount> <merchant>",
		Short: "Record an expense or income",
		Example: `  spice txn add 12.50 "Blue Bottle" --category "Food & Dining"
  spice txn add 2400 Employer --type income --account Checking`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			amount, err := parseMoney(args[0])
			if err != nil {
				return err
			}
			kind, err := model.ParseTransactionType(txnType)
			if err != nil {
				return err
			}
			when, err := optionalDate(date)
			if err != nil {
				return err
			}
			acct, err := a.defaultAccount(ctx, accountRef)
			if err != nil {
				return err
			}

			draft := model.TransactionDraft{
				AccountID:   acct.ID,
				Amount:      amount,
				Merchant:    args[1],
				Category:    category,
				Description: description,
				Notes:       notes,
				Type:        kind,
			}
			if when != nil {
				draft.Date = *when
			}

			txn, err := a.ledger.CreateTransaction(ctx, a.session, draft)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, cli.FormatSuccess(fmt.Sprintf("Recorded #%d: %s %s (%s) on %s",
				txn.ID, signedAmount(*txn), txn.Merchant, txn.Category, acct.Name)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&accountRef, "account", "a", "", "account name or id (default: your only account)")
	cmd.Flags().StringVarP(&txnType, "type", "t", "expense", "expense or income")
	cmd.Flags().StringVarP(&category, "category", "c", "", "category")
	cmd.Flags().StringVarP(&date, "date", "d", "", "date as YYYY-MM-DD (default: today)")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&notes, "notes", "", "notes")
	return cmd
}

func txnLogCmd() *cobra.Command {
	var accountRef, category, date string

	cmd := &cobra.Command{
		Use:   "log <text>",
		Short: "Record an expense from a sentence",
		Long: `Record an expense described in plain words. The language model reads out
the merchant, amount and category; without one a simple parser is used.`,
		Example: `  spice txn log "coffee at blue bottle $5.50"
  spice txn log "groceries 84.20 at trader joes" --account Card`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			when, err := optionalDate(date)
			if err != nil {
				return err
			}
			acct, err := a.defaultAccount(ctx, accountRef)
			if err != nil {
				return err
			}

			txn, err := a.ledger.LogFromText(ctx, a.session, acct.ID, strings.Join(args, " "), when, category)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, cli.FormatSuccess(fmt.Sprintf("Logged #%d: %s at %s (%s)",
				txn.ID, money(txn.Amount), txn.DisplayMerchant(), txn.Category)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&accountRef, "account", "a", "", "account name or id (default: your only account)")
	cmd.Flags().StringVarP(&category, "category", "c", "", "use this category instead of guessing")
	cmd.Flags().StringVarP(&date, "date", "d", "", "date as YYYY-MM-DD (default: today)")
	return cmd
}

func txnListCmd() *cobra.Command {
	var limit int
	var month string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			var txns []model.Transaction
			if month != "" {
				year, m, err := model.ParseMonth(month, a.now())
				if err != nil {
					return err
				}
				txns, err = a.ledger.ListByMonth(ctx, a.session, year, m)
				if err != nil {
					return err
				}
			} else if txns, err = a.ledger.ListRecent(ctx, a.session, limit); err != nil {
				return err
			}

			if len(txns) == 0 {
				fmt.Fprintln(a.out, cli.FormatInfo("No transactions."))
				return nil
			}
			fmt.Fprintln(a.out, transactionTable(txns))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "how many to show")
	cmd.Flags().StringVarP(&month, "month", "m", "", "show a whole month (YYYY-MM)")
	return cmd
}

func txnSearchCmd() *cobra.Command {
	var (
		from, to, minAmount, maxAmount string
		category, accountRef, txnType  string
		tags                           []string
		limit                          int
	)

	cmd := &cobra.Command{
		Use:   "search [text]",
		Short: "Search transactions",
		Long: `Search transactions by text (merchant, description or notes), date range,
amount range, category, account, type and tags. Every tag given must match.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			filter := model.TransactionFilter{Category: category, Tags: tags, Limit: limit}
			if len(args) == 1 {
				filter.Text = args[0]
			}
			if filter.StartDate, err = optionalDate(from); err != nil {
				return err
			}
			if filter.EndDate, err = optionalDate(to); err != nil {
				return err
			}
			if filter.MinAmount, err = optionalMoney(cmd, "min", minAmount); err != nil {
				return err
			}
			if filter.MaxAmount, err = optionalMoney(cmd, "max", maxAmount); err != nil {
				return err
			}
			if txnType != "" {
				if filter.Type, err = model.ParseTransactionType(txnType); err != nil {
					return err
				}
			}
			if accountRef != "" {
				acct, err := a.account(ctx, accountRef)
				if err != nil {
					return err
				}
				filter.AccountID = &acct.ID
			}

			txns, err := a.ledger.Search(ctx, a.session, filter)
			if err != nil {
				return err
			}
			if len(txns) == 0 {
				fmt.Fprintln(a.out, cli.FormatInfo("No matching transactions."))
				return nil
			}
			fmt.Fprintln(a.out, transactionTable(txns))
			fmt.Fprintln(a.out, cli.SubtleStyle.Render(fmt.Sprintf("%d found", len(txns))))
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "end date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&minAmount, "min", "", "minimum amount")
	cmd.Flags().StringVar(&maxAmount, "max", "", "maximum amount")
	cmd.Flags().StringVarP(&category, "category", "c", "", "category")
	cmd.Flags().StringVarP(&accountRef, "account", "a", "", "account name or id")
	cmd.Flags().StringVarP(&txnType, "type", "t", "", "expense, income or transfer")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tag (repeatable)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum results")
	return cmd
}

func txnShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			txn, err := a.ledger.GetTransaction(ctx, a.session, id)
			if err != nil {
				return err
			}
			acct, err := a.ledger.GetAccount(ctx, a.session, txn.AccountID)
			if err != nil {
				return err
			}

			lines := []string{
				"Date: " + model.FormatDate(txn.Date),
				"Amount: " + signedAmount(*txn),
				"Type: " + string(txn.Type),
				"Account: " + acct.Name,
				"Category: " + txn.Category,
				"Source: " + txn.Source,
			}
			if txn.Description != "" {
				lines = append(lines, "Description: "+txn.Description)
			}
			if txn.Notes != "" {
				lines = append(lines, "Notes: "+txn.Notes)
			}
			if len(txn.Tags) > 0 {
				lines = append(lines, "Tags: "+strings.Join(txn.Tags, ", "))
			}
			if txn.TransferPairID != nil {
				lines = append(lines, fmt.Sprintf("Transfer pair: #%d", *txn.TransferPairID))
			}
			if txn.ImportBatch != "" {
				lines = append(lines, "Import batch: "+txn.ImportBatch)
			}
			fmt.Fprintln(a.out, cli.RenderBox(fmt.Sprintf("#%d %s", txn.ID, txn.DisplayMerchant()), strings.Join(lines, "\n")))
			return nil
		},
	}
}

func txnUpdateCmd() *cobra.Command {
	var amount, merchant, category, date, description, notes, txnType, accountRef string

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a transaction",
		Long:  `Change any field of a transaction. Balances follow amount, type and account changes.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			update := model.TransactionUpdate{
				Merchant:    changedString(cmd, "merchant", merchant),
				Category:    changedString(cmd, "category", category),
				Description: changedString(cmd, "description", description),
				Notes:       changedString(cmd, "notes", notes),
			}
			if update.Amount, err = optionalMoney(cmd, "amount", amount); err != nil {
				return err
			}
			if update.Date, err = optionalDate(date); err != nil {
				return err
			}
			if txnType != "" {
				kind, err := model.ParseTransactionType(txnType)
				if err != nil {
					return err
				}
				update.Type = &kind
			}
			if accountRef != "" {
				acct, err := a.account(ctx, accountRef)
				if err != nil {
					return err
				}
				update.AccountID = &acct.ID
			}
			if update.Empty() {
				return fmt.Errorf("nothing to update: pass at least one field flag")
			}

			txn, err := a.ledger.UpdateTransaction(ctx, a.session, id, update)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, cli.FormatSuccess(fmt.Sprintf("Updated #%d: %s %s (%s)",
				txn.ID, signedAmount(*txn), txn.DisplayMerchant(), txn.Category)))
			return nil
		},
	}
	cmd.Flags().StringVar(&amount, "amount", "", "new amount")
	cmd.Flags().StringVar(&merchant, "merchant", "", "new merchant")
	cmd.Flags().StringVarP(&category, "category", "c", "", "new category")
	cmd.Flags().StringVarP(&date, "date", "d", "", "new date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	cmd.Flags().StringVar(&notes, "notes", "", "new notes")
	cmd.Flags().StringVarP(&txnType, "type", "t", "", "new type (expense or income)")
	cmd.Flags().StringVarP(&accountRef, "account", "a", "", "move to this account")
	return cmd
}

func txnDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a transaction and reverse its balance change",
		Long: `Delete a transaction and reverse its effect on the account balance.
Deleting either leg of a transfer deletes both.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			txn, err := a.ledger.GetTransaction(ctx, a.session, id)
			if err != nil {
				return err
			}
			question := fmt.Sprintf("Delete #%d %s %s?", txn.ID, signedAmount(*txn), txn.DisplayMerchant())
			if txn.IsTransferLeg() {
				question = fmt.Sprintf("Delete transfer #%d and its other leg?", txn.ID)
			}
			if ok, err := a.confirm(cmd, question); err != nil || !ok {
				return err
			}
			if err := a.ledger.DeleteTransaction(ctx, a.session, id); err != nil {
				return err
			}
			fmt.Fprintln(a.out, cli.FormatSuccess(fmt.Sprintf("Deleted #%d", id)))
			return nil
		},
	}
	addYesFlag(cmd)
	return cmd
}

func txnTransferCmd() *cobra.Command {
	var date, description string

	cmd := &cobra.Command{
		Use:     "transfer <amount> <from> <to>",
		Short:   "Move money between two accounts",
		Example: `  spice txn transfer 500 Checking Savings --description "monthly savings"`,
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			amount, err := parseMoney(args[0])
			if err != nil {
				return err
			}
			from, err := a.account(ctx, args[1])
			if err != nil {
				return err
			}
			to, err := a.account(ctx, args[2])
			if err != nil {
				return err
			}
			when, err := optionalDate(date)
			if err != nil {
				return err
			}

			out, in, err := a.ledger.Transfer(ctx, a.session, from.ID, to.ID, amount, when, description)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, cli.FormatSuccess(fmt.Sprintf("Moved %s from %s to %s (#%d, #%d)",
				money(amount), from.Name, to.Name, out.ID, in.ID)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&date, "date", "d", "", "date as YYYY-MM-DD (default: today)")
	cmd.Flags().StringVar(&description, "description", "", "description")
	return cmd
}
