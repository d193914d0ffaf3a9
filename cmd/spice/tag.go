package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Veraticus/spice-ledger/internal/cli"
	"github.com/spf13/cobra"
)

func tagCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tag",
		Aliases: []string{"tags"},
		Short:   "Label transactions with tags",
	}
	cmd.AddCommand(
		tagCreateCmd(),
		tagListCmd(),
		tagDeleteCmd(),
		tagAddCmd(),
		tagRemoveCmd(),
		tagShowCmd(),
		tagFindCmd(),
		tagStatsCmd(),
	)
	return cmd
}

func tagCreateCmd() *cobra.Command {
	var description, color string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			tag, err := a.ledger.CreateTag(cmd.Context(), a.session, args[0], description, color)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, cli.FormatSuccess("Created tag "+tag.Name))
			return nil
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "what the tag is for")
	cmd.Flags().StringVar(&color, "color", "", "display color, e.g. #4ECDC4")
	return cmd
}

func tagListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			tags, err := a.ledger.ListTags(cmd.Context(), a.session)
			if err != nil {
				return err
			}
			if len(tags) == 0 {
				fmt.Fprintln(a.out, cli.FormatInfo("No tags yet."))
				return nil
			}
			rows := make([][]string, 0, len(tags))
			for _, t := range tags {
				rows = append(rows, []string{t.Name, orDash(t.Description), orDash(t.Color)})
			}
			fmt.Fprintln(a.out, cli.Table([]string{"Tag", "Description", "Color"}, rows))
			return nil
		},
	}
}

func tagDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a tag and remove it from every transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if ok, err := a.confirm(cmd, fmt.Sprintf("Delete tag %q from all transactions?", args[0])); err != nil || !ok {
				return err
			}
			if err := a.ledger.DeleteTag(cmd.Context(), a.session, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(a.out, cli.FormatSuccess("Deleted tag "+args[0]))
			return nil
		},
	}
	addYesFlag(cmd)
	return cmd
}

func tagAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <transaction-id> <tag>...",
		Short: "Tag a transaction, creating tags as needed",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.ledger.TagTransaction(cmd.Context(), a.session, id, args[1:]...); err != nil {
				return err
			}
			fmt.Fprintln(a.out, cli.FormatSuccess(fmt.Sprintf("Tagged #%d with %s", id, strings.Join(args[1:], ", "))))
			return nil
		},
	}
}

func tagRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <transaction-id> <tag>...",
		Short: "Remove tags from a transaction",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.ledger.UntagTransaction(cmd.Context(), a.session, id, args[1:]...); err != nil {
				return err
			}
			fmt.Fprintln(a.out, cli.FormatSuccess(fmt.Sprintf("Removed %s from #%d", strings.Join(args[1:], ", "), id)))
			return nil
		},
	}
}

func tagShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <transaction-id>",
		Short: "Show a transaction's tags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			tags, err := a.ledger.TransactionTags(cmd.Context(), a.session, id)
			if err != nil {
				return err
			}
			if len(tags) == 0 {
				fmt.Fprintf(a.out, "#%d has no tags\n", id)
				return nil
			}
			names := make([]string, len(tags))
			for i, t := range tags {
				names[i] = t.Name
			}
			fmt.Fprintf(a.out, "#%d: %s\n", id, strings.Join(names, ", "))
			return nil
		},
	}
}

func tagFindCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "find <tag>",
		Short: "List transactions carrying a tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			txns, err := a.ledger.TransactionsByTag(cmd.Context(), a.session, args[0], limit)
			if err != nil {
				return err
			}
			if len(txns) == 0 {
				fmt.Fprintln(a.out, cli.FormatInfo("No transactions tagged "+args[0]))
				return nil
			}
			fmt.Fprintln(a.out, transactionTable(txns))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum results")
	return cmd
}

func tagStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show how much money each tag covers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.ledger.TagStats(cmd.Context(), a.session)
			if err != nil {
				return err
			}
			if len(stats) == 0 {
				fmt.Fprintln(a.out, cli.FormatInfo("No tags yet."))
				return nil
			}
			rows := make([][]string, 0, len(stats))
			for _, s := range stats {
				rows = append(rows, []string{s.Name, strconv.Itoa(s.Count), money(s.Total)})
			}
			fmt.Fprintln(a.out, cli.Table([]string{"Tag", "Transactions", "Total"}, rows, 1, 2))
			return nil
		},
	}
}
