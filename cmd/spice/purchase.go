package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Veraticus/spice-ledger/internal/cli"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/purchases"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func purchaseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "purchase",
		Aliases: []string{"purchases", "buy"},
		Short:   "Plan purchases and check what you can afford",
	}
	cmd.AddCommand(
		purchaseAddCmd(),
		purchaseListCmd(),
		purchaseViewCmd(),
		purchaseUpdateCmd(),
		purchaseBoughtCmd(),
		purchaseCancelCmd(),
		purchaseDeleteCmd(),
		purchaseRecommendCmd(),
	)
	return cmd
}

func purchaseAddCmd() *cobra.Command {
	var deadline, description, category, notes, url string
	var priority int

	cmd := &cobra.Command{
		Use:     "add <name> <estimated-cost>",
		Short:   "Plan a purchase",
		Example: `  spice purchase add "New tires" 600 --priority 1 --deadline 2026-11-30`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			cost, err := parseMoney(args[1])
			if err != nil {
				return err
			}
			due, err := optionalDate(deadline)
			if err != nil {
				return err
			}

			p, err := a.purchases.Create(cmd.Context(), a.session, purchases.NewPurchase{
				Name:          args[0],
				EstimatedCost: cost,
				Deadline:      due,
				Description:   description,
				Category:      category,
				Notes:         notes,
				URL:           url,
				Priority:      priority,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, cli.FormatSuccess(fmt.Sprintf("Planned %q (id %d): %s, %s",
				p.Name, p.ID, money(p.EstimatedCost), model.PriorityLabel(p.Priority))))
			return nil
		},
	}
	cmd.Flags().StringVarP(&deadline, "deadline", "d", "", "buy by (YYYY-MM-DD)")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVarP(&category, "category", "c", "", "category for the expense once bought")
	cmd.Flags().StringVar(&notes, "notes", "", "notes")
	cmd.Flags().StringVar(&url, "url", "", "product link")
	cmd.Flags().IntVarP(&priority, "priority", "p", model.DefaultPurchasePriority, "priority from 1 (critical) to 5 (want)")
	return cmd
}

func purchaseListCmd() *cobra.Command {
	var status, sortBy string
	var priority int
	var afford bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List planned purchases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			filter := model.PurchaseFilter{Priority: priority}
			if status != "" {
				if filter.Status, err = model.ParsePurchaseStatus(status); err != nil {
					return err
				}
			}
			if sortBy != "" {
				if filter.SortBy, err = model.ParsePurchaseSort(sortBy); err != nil {
					return err
				}
			}

			list, err := a.purchases.List(cmd.Context(), a.session, filter, afford)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(a.out, cli.FormatInfo("No purchases found."))
				return nil
			}

			headers := []string{"ID", "Purchase", "Cost", "Priority", "Deadline", "Status"}
			if afford {
				headers = append(headers, "Affordable", "Balance after")
			}
			rows := make([][]string, 0, len(list))
			for _, l := range list {
				row := []string{
					strconv.FormatInt(l.ID, 10),
					l.Name,
					money(purchaseCost(l.Purchase)),
					fmt.Sprintf("%d %s", l.Priority, model.PriorityLabel(l.Priority)),
					dateOrDash(l.Deadline),
					string(l.Status),
				}
				if afford {
					mark := cli.SuccessStyle.Render("yes")
					if !l.CanAfford {
						mark = cli.ErrorStyle.Render("no")
					}
					row = append(row, mark, cli.Money(l.BalanceAfter))
				}
				rows = append(rows, row)
			}
			right := []int{2}
			if afford {
				right = append(right, 7)
			}
			fmt.Fprintln(a.out, cli.Table(headers, rows, right...))
			return nil
		},
	}
	cmd.Flags().StringVarP(&status, "status", "s", "", "planned (default), purchased or cancelled")
	cmd.Flags().IntVarP(&priority, "priority", "p", 0, "only this priority")
	cmd.Flags().StringVar(&sortBy, "sort", "", "priority (default), deadline, cost or created")
	cmd.Flags().BoolVarP(&afford, "afford", "a", false, "show which purchases the balance covers")
	return cmd
}

// purchaseCost is what a purchase cost, or is expected to.
func purchaseCost(p model.Purchase) decimal.Decimal {
	if p.ActualCost != nil {
		return *p.ActualCost
	}
	return p.EstimatedCost
}

func purchaseViewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "view <id>",
		Short: "Show one purchase",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			p, err := a.purchases.Get(cmd.Context(), a.session, id)
			if err != nil {
				return err
			}

			lines := []string{
				"Estimated: " + money(p.EstimatedCost),
				fmt.Sprintf("Priority: %d (%s)", p.Priority, model.PriorityLabel(p.Priority)),
				"Status: " + string(p.Status),
				"Deadline: " + dateOrDash(p.Deadline),
			}
			if p.ActualCost != nil {
				lines = append(lines, "Paid: "+money(*p.ActualCost))
			}
			if p.PurchasedAt != nil {
				lines = append(lines, "Bought: "+model.FormatDate(*p.PurchasedAt))
			}
			if p.TransactionID != nil {
				lines = append(lines, "Transaction: "+strconv.FormatInt(*p.TransactionID, 10))
			}
			for _, extra := range []struct{ label, value string }{
				{"Category", p.Category},
				{"Link", p.URL},
				{"Notes", p.Notes},
			} {
				if extra.value != "" {
					lines = append(lines, extra.label+": "+extra.value)
				}
			}
			if p.Description != "" {
				lines = append(lines, "", p.Description)
			}
			fmt.Fprintln(a.out, cli.RenderBox(p.Name, strings.Join(lines, "\n")))
			return nil
		},
	}
}

func purchaseUpdateCmd() *cobra.Command {
	var name, cost, deadline, description, category, notes, url string
	var priority int

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Edit a planned purchase",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			update := model.PurchaseUpdate{
				Name:        changedString(cmd, "name", name),
				Description: changedString(cmd, "description", description),
				Category:    changedString(cmd, "category", category),
				Notes:       changedString(cmd, "notes", notes),
				URL:         changedString(cmd, "url", url),
				Priority:    changedInt(cmd, "priority", priority),
			}
			if update.EstimatedCost, err = optionalMoney(cmd, "cost", cost); err != nil {
				return err
			}
			if cmd.Flags().Changed("deadline") {
				if update.Deadline, err = optionalDate(deadline); err != nil {
					return err
				}
			}

			p, err := a.purchases.Update(cmd.Context(), a.session, id, update)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, cli.FormatSuccess(fmt.Sprintf("Updated %s: %s, %s",
				p.Name, money(p.EstimatedCost), model.PriorityLabel(p.Priority))))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&cost, "cost", "", "new estimated cost")
	cmd.Flags().StringVarP(&deadline, "deadline", "d", "", "new deadline (YYYY-MM-DD)")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	cmd.Flags().StringVarP(&category, "category", "c", "", "new category")
	cmd.Flags().StringVar(&notes, "notes", "", "new notes")
	cmd.Flags().StringVar(&url, "url", "", "new product link")
	cmd.Flags().IntVarP(&priority, "priority", "p", 0, "new priority from 1 (critical) to 5 (want)")
	return cmd
}

func purchaseBoughtCmd() *cobra.Command {
	var cost, account string
	var txnID int64

	cmd := &cobra.Command{
		Use:   "bought <id>",
		Short: "Mark a planned purchase as bought",
		Long: `Mark a planned purchase as bought. With --account an expense is posted
to that account; with --txn an existing transaction is linked instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var in purchases.Bought
			if in.ActualCost, err = optionalMoney(cmd, "cost", cost); err != nil {
				return err
			}
			if account != "" {
				acct, err := a.account(ctx, account)
				if err != nil {
					return err
				}
				in.AccountID = &acct.ID
			}
			if cmd.Flags().Changed("txn") {
				in.TransactionID = &txnID
			}

			p, err := a.purchases.MarkBought(ctx, a.session, id, in)
			if err != nil {
				return err
			}
			msg := fmt.Sprintf("Bought %s for %s", p.Name, money(*p.ActualCost))
			if p.TransactionID != nil {
				msg += fmt.Sprintf(" (transaction %d)", *p.TransactionID)
			}
			fmt.Fprintln(a.out, cli.FormatSuccess(msg))
			return nil
		},
	}
	cmd.Flags().StringVar(&cost, "cost", "", "what it actually cost (default: the estimate)")
	cmd.Flags().StringVarP(&account, "account", "a", "", "post the expense to this account")
	cmd.Flags().Int64Var(&txnID, "txn", 0, "link an existing transaction")
	cmd.MarkFlagsMutuallyExclusive("account", "txn")
	return cmd
}

func purchaseCancelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel <id>",
		Short: "Drop a planned purchase but keep it on record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			p, err := a.purchases.Get(ctx, a.session, id)
			if err != nil {
				return err
			}
			if ok, err := a.confirm(cmd, fmt.Sprintf("Cancel purchase %q?", p.Name)); err != nil || !ok {
				return err
			}
			if p, err = a.purchases.Cancel(ctx, a.session, id); err != nil {
				return err
			}
			fmt.Fprintln(a.out, cli.FormatSuccess("Cancelled "+p.Name))
			return nil
		},
	}
	addYesFlag(cmd)
	return cmd
}

func purchaseDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a purchase",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			p, err := a.purchases.Get(ctx, a.session, id)
			if err != nil {
				return err
			}
			if ok, err := a.confirm(cmd, fmt.Sprintf("Delete purchase %q?", p.Name)); err != nil || !ok {
				return err
			}
			if err := a.purchases.Delete(ctx, a.session, id); err != nil {
				return err
			}
			fmt.Fprintln(a.out, cli.FormatSuccess("Deleted "+p.Name))
			return nil
		},
	}
	addYesFlag(cmd)
	return cmd
}

func purchaseRecommendCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "recommend",
		Aliases: []string{"afford"},
		Short:   "Suggest when to buy each planned purchase",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			rec, err := a.purchases.Recommendations(ctx, a.session)
			if err != nil {
				return err
			}
			an := rec.Analysis

			summary := []string{
				"Balance: " + cli.Money(an.TotalBalance),
				"Planned: " + money(an.TotalPlanned),
				"After all: " + cli.Money(an.TotalBalance.Sub(an.TotalPlanned)),
			}
			fmt.Fprintln(a.out, cli.RenderBox("Planned purchases", strings.Join(summary, "\n")))

			rows := make([][]string, 0, len(an.ByPriority))
			for _, b := range an.ByPriority {
				if b.Count == 0 {
					continue
				}
				covered := cli.SuccessStyle.Render("yes")
				if !b.CanAffordAll {
					covered = cli.ErrorStyle.Render("no")
				}
				rows = append(rows, []string{
					fmt.Sprintf("%d %s", b.Priority, b.Label),
					strconv.Itoa(b.Count),
					money(b.TotalCost),
					covered,
					cli.Money(b.BalanceAfter),
				})
			}
			if len(rows) > 0 {
				fmt.Fprintln(a.out, cli.Table([]string{"Priority", "Items", "Cost", "Covered", "Balance after"}, rows, 2, 4))
			}

			for _, group := range []struct {
				title string
				items []model.Purchase
			}{
				{"Buy now", rec.Now},
				{"Buy soon", rec.Soon},
				{"Later", rec.Later},
				{"Skip or delay", rec.Skip},
			} {
				if len(group.items) == 0 {
					continue
				}
				fmt.Fprintln(a.out, cli.TitleStyle.Render(group.title))
				for _, p := range group.items {
					line := fmt.Sprintf("  %s  %s", p.Name, money(p.EstimatedCost))
					if p.Deadline != nil {
						line += "  by " + model.FormatDate(*p.Deadline)
					}
					fmt.Fprintln(a.out, line)
				}
			}
			fmt.Fprintln(a.out, cli.FormatInfo(rec.Summary))
			return nil
		},
	}
}
