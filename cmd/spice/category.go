package main

import (
	"fmt"
	"strconv"

	"github.com/Veraticus/spice-ledger/internal/cli"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/spf13/cobra"
)

func categoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "category",
		Aliases: []string{"categories"},
		Short:   "List, rename and merge categories",
	}
	cmd.AddCommand(
		categoryListCmd(),
		categoryRenameCmd(),
		categoryMergeCmd(),
		categoryRulesCmd(),
	)
	return cmd
}

func categoryListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List categories in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			usage, err := a.ledger.ListCategories(cmd.Context(), a.session, true)
			if err != nil {
				return err
			}
			if len(usage) == 0 {
				fmt.Fprintln(a.out, cli.FormatInfo("No categories yet. They appear as you record transactions."))
				return nil
			}
			rows := make([][]string, 0, len(usage))
			for _, u := range usage {
				rows = append(rows, []string{u.Name, strconv.Itoa(u.Count), money(u.Total)})
			}
			fmt.Fprintln(a.out, cli.Table([]string{"Category", "Transactions", "Total"}, rows, 1, 2))
			return nil
		},
	}
}

func categoryRenameCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rename <old> <new>",
		Short: "Rename a category everywhere it is used",
		Long: `Rename a category on transactions, budgets, recurring charges and merchant
rules. If a budget already exists under the new name it is kept.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.ledger.RenameCategory(cmd.Context(), a.session, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, cli.FormatSuccess(fmt.Sprintf("Renamed %q to %q on %d transactions", args[0], args[1], n)))
			return nil
		},
	}
	return cmd
}

func categoryMergeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge <source> <target>",
		Short: "Fold one category into another existing one",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if ok, err := a.confirm(cmd, fmt.Sprintf("Merge %q into %q?", args[0], args[1])); err != nil || !ok {
				return err
			}
			n, err := a.ledger.MergeCategories(cmd.Context(), a.session, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, cli.FormatSuccess(fmt.Sprintf("Merged %q into %q (%d transactions)", args[0], args[1], n)))
			return nil
		},
	}
	addYesFlag(cmd)
	return cmd
}

func categoryRulesCmd() *cobra.Command {
	var set, remove string

	cmd := &cobra.Command{
		Use:   "rules [merchant]",
		Short: "Show or edit remembered merchant categories",
		Long: `Without arguments, list the merchant to category rules used when logging
and importing. With a merchant, show its rule, set it with --set, or forget it
with --delete.`,
		Example: `  spice category rules
  spice category rules "Blue Bottle" --set "Food & Dining"
  spice category rules --delete "Blue Bottle"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			switch {
			case remove != "":
				if err := a.ledger.DeleteRule(ctx, a.session, remove); err != nil {
					return err
				}
				fmt.Fprintln(a.out, cli.FormatSuccess("Forgot "+remove))
				return nil

			case len(args) == 1 && set != "":
				if err := a.ledger.SetCategoryRule(ctx, a.session, args[0], set); err != nil {
					return err
				}
				fmt.Fprintln(a.out, cli.FormatSuccess(fmt.Sprintf("%s → %s", args[0], set)))
				return nil

			case set != "":
				return fmt.Errorf("--set needs a merchant")

			case len(args) == 1:
				rule, err := a.ledger.CategoryRule(ctx, a.session, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(a.out, ruleTable([]model.CategoryRule{*rule}))
				return nil
			}

			rules, err := a.ledger.ListRules(ctx, a.session)
			if err != nil {
				return err
			}
			if len(rules) == 0 {
				fmt.Fprintln(a.out, cli.FormatInfo("No rules yet."))
				return nil
			}
			fmt.Fprintln(a.out, ruleTable(rules))
			return nil
		},
	}
	cmd.Flags().StringVar(&set, "set", "", "category to remember for the merchant")
	cmd.Flags().StringVar(&remove, "delete", "", "merchant whose rule to forget")
	return cmd
}

func ruleTable(rules []model.CategoryRule) string {
	rows := make([][]string, 0, len(rules))
	for _, r := range rules {
		rows = append(rows, []string{
			r.Merchant,
			r.Category,
			r.Source,
			fmt.Sprintf("%.0f%%", r.Confidence*100),
			strconv.Itoa(r.UseCount),
			dateOrDash(r.LastUsed),
		})
	}
	return cli.Table([]string{"Merchant", "Category", "Source", "Confidence", "Uses", "Last used"}, rows, 3, 4)
}
