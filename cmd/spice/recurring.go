package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Veraticus/spice-ledger/internal/cli"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/recurring"
	"github.com/Veraticus/spice-ledger/internal/tui"
	"github.com/spf13/cobra"
)

func recurringCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "recurring",
		Aliases: []string{"subs", "subscriptions"},
		Short:   "Find and track recurring charges",
	}
	cmd.AddCommand(
		recurringDetectCmd(),
		recurringAddCmd(),
		recurringListCmd(),
		recurringUpcomingCmd(),
		recurringTransitionCmd("pause", "Pause a charge", (*recurring.Service).Pause),
		recurringTransitionCmd("resume", "Resume a paused charge", (*recurring.Service).Resume),
		recurringCancelCmd(),
		recurringDeleteCmd(),
	)
	return cmd
}

func candidateTable(candidates []model.RecurringCandidate) string {
	rows := make([][]string, 0, len(candidates))
	for i, c := range candidates {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			c.Merchant,
			money(c.TypicalAmount),
			string(c.Frequency),
			strconv.Itoa(c.OccurrenceCount),
			fmt.Sprintf("%.0f%%", c.Confidence*100),
			model.FormatDate(c.LastSeen),
		})
	}
	return cli.Table([]string{"#", "Merchant", "Amount", "Frequency", "Seen", "Confidence", "Last seen"}, rows, 2, 4, 5)
}

func recurringDetectCmd() *cobra.Command {
	var minOccurrences int
	var review, confirmAll bool

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Look for charges that repeat weekly, monthly or yearly",
		Long: `Scan your expenses for merchants charged at a steady interval. Merchants
already tracked are left out. Use --review to pick which candidates to track
in an interactive list, or --confirm-all to track every one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if review && confirmAll {
				return fmt.Errorf("--review and --confirm-all cannot be combined")
			}
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			candidates, err := a.recurring.Detect(ctx, a.session, minOccurrences)
			if err != nil {
				return err
			}
			if len(candidates) == 0 {
				fmt.Fprintln(a.out, cli.FormatInfo("No new recurring charges found."))
				return nil
			}

			chosen := candidates
			switch {
			case review:
				chosen, err = tui.Review(ctx, candidates, tui.Options{
					Input:     cmd.InOrStdin(),
					Output:    cmd.OutOrStdout(),
					AltScreen: true,
				})
				if err != nil {
					return err
				}
			case !confirmAll:
				fmt.Fprintln(a.out, candidateTable(candidates))
				fmt.Fprintln(a.out, cli.SubtleStyle.Render("Track them with --confirm-all, or choose with --review."))
				return nil
			}

			for _, c := range chosen {
				charge, err := a.recurring.Confirm(ctx, a.session, c)
				if err != nil {
					return err
				}
				fmt.Fprintln(a.out, cli.FormatSuccess(fmt.Sprintf("Tracking %s: %s %s, next %s",
					charge.Merchant, money(charge.TypicalAmount), charge.Frequency, dateOrDash(charge.NextExpectedDate))))
			}
			if len(chosen) == 0 {
				fmt.Fprintln(a.out, cli.FormatInfo("Nothing tracked."))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&minOccurrences, "min", 3, "minimum number of charges to count as recurring")
	cmd.Flags().BoolVar(&review, "review", false, "choose candidates interactively")
	cmd.Flags().BoolVar(&confirmAll, "confirm-all", false, "track every candidate")
	return cmd
}

func recurringAddCmd() *cobra.Command {
	var frequency, category, lastSeen, notes string
	var day int

	cmd := &cobra.Command{
		Use:     "add <merchant> <amount>",
		Short:   "Track a recurring charge by hand",
		Example: `  spice recurring add Netflix 15.49 --frequency monthly --day 12 --category Entertainment`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			amount, err := parseMoney(args[1])
			if err != nil {
				return err
			}
			freq, err := model.ParseFrequency(frequency)
			if err != nil {
				return err
			}
			last, err := optionalDate(lastSeen)
			if err != nil {
				return err
			}

			charge, err := a.recurring.Create(cmd.Context(), a.session, recurring.NewCharge{
				Merchant:      args[0],
				TypicalAmount: amount,
				Frequency:     freq,
				Category:      category,
				LastSeen:      last,
				DayOfPeriod:   changedInt(cmd, "day", day),
				Notes:         notes,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, cli.FormatSuccess(fmt.Sprintf("Tracking %s (id %d), next charge %s",
				charge.Merchant, charge.ID, dateOrDash(charge.NextExpectedDate))))
			return nil
		},
	}
	cmd.Flags().StringVarP(&frequency, "frequency", "f", "monthly", "weekly, monthly or annual")
	cmd.Flags().StringVarP(&category, "category", "c", "", "category")
	cmd.Flags().StringVar(&lastSeen, "last", "", "date of the latest charge (default: today)")
	cmd.Flags().IntVar(&day, "day", 0, "day of the month a monthly charge lands on (1-31)")
	cmd.Flags().StringVar(&notes, "notes", "", "notes")
	return cmd
}

func recurringListCmd() *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked charges",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			var filter *model.RecurringStatus
			if status != "" {
				st, err := model.ParseRecurringStatus(status)
				if err != nil {
					return err
				}
				filter = &st
			}

			charges, err := a.recurring.List(cmd.Context(), a.session, filter)
			if err != nil {
				return err
			}
			if len(charges) == 0 {
				fmt.Fprintln(a.out, cli.FormatInfo("No recurring charges tracked. Try 'spice recurring detect'."))
				return nil
			}
			rows := make([][]string, 0, len(charges))
			for _, c := range charges {
				rows = append(rows, []string{
					strconv.FormatInt(c.ID, 10),
					c.Merchant,
					money(c.TypicalAmount),
					string(c.Frequency),
					orDash(c.Category),
					dateOrDash(c.NextExpectedDate),
					string(c.Status),
				})
			}
			fmt.Fprintln(a.out, cli.Table([]string{"ID", "Merchant", "Amount", "Frequency", "Category", "Next", "Status"}, rows, 2))
			return nil
		},
	}
	cmd.Flags().StringVarP(&status, "status", "s", "", "active, paused or cancelled")
	return cmd
}

func recurringUpcomingCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "upcoming",
		Short: "Show charges due soon, including overdue ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			upcoming, err := a.recurring.Upcoming(cmd.Context(), a.session, days)
			if err != nil {
				return err
			}
			if len(upcoming) == 0 {
				fmt.Fprintln(a.out, cli.FormatInfo(fmt.Sprintf("Nothing due in the next %d days.", days)))
				return nil
			}

			today := model.Day(a.now())
			rows := make([][]string, 0, len(upcoming))
			for _, u := range upcoming {
				when := fmt.Sprintf("in %d days", model.DaysBetween(today, u.DueDate))
				switch n := model.DaysBetween(today, u.DueDate); {
				case n < 0:
					when = cli.ErrorStyle.Render(fmt.Sprintf("%d days overdue", -n))
				case n == 0:
					when = cli.WarningStyle.Render("today")
				}
				rows = append(rows, []string{model.FormatDate(u.DueDate), when, u.Merchant, money(u.Amount)})
			}
			fmt.Fprintln(a.out, cli.Table([]string{"Due", "When", "Merchant", "Amount"}, rows, 3))
			fmt.Fprintf(a.out, "Total due: %s\n", money(recurring.UpcomingTotal(upcoming)))
			return nil
		},
	}
	cmd.Flags().IntVarP(&days, "days", "d", 30, "look this many days ahead")
	return cmd
}

type transitionFunc func(*recurring.Service, context.Context, model.Session, int64) (*model.RecurringCharge, error)

func recurringTransitionCmd(use, short string, transition transitionFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <merchant-or-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			charge, err := a.recurring.GetByMerchantOrID(ctx, a.session, args[0])
			if err != nil {
				return err
			}
			updated, err := transition(a.recurring, ctx, a.session, charge.ID)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, cli.FormatSuccess(fmt.Sprintf("%s is now %s", updated.Merchant, updated.Status)))
			return nil
		},
	}
}

func recurringCancelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel <merchant-or-id>",
		Short: "Mark a charge as cancelled for good",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			charge, err := a.recurring.GetByMerchantOrID(ctx, a.session, args[0])
			if err != nil {
				return err
			}
			if ok, err := a.confirm(cmd, fmt.Sprintf("Cancel %s? This cannot be undone.", charge.Merchant)); err != nil || !ok {
				return err
			}
			if _, err := a.recurring.Cancel(ctx, a.session, charge.ID); err != nil {
				return err
			}
			fmt.Fprintln(a.out, cli.FormatSuccess("Cancelled "+charge.Merchant))
			return nil
		},
	}
	addYesFlag(cmd)
	return cmd
}

func recurringDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <merchant-or-id>",
		Short: "Stop tracking a charge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			charge, err := a.recurring.GetByMerchantOrID(ctx, a.session, args[0])
			if err != nil {
				return err
			}
			if ok, err := a.confirm(cmd, fmt.Sprintf("Delete %s?", charge.Merchant)); err != nil || !ok {
				return err
			}
			if err := a.recurring.Delete(ctx, a.session, charge.ID); err != nil {
				return err
			}
			fmt.Fprintln(a.out, cli.FormatSuccess("Deleted "+charge.Merchant))
			return nil
		},
	}
	addYesFlag(cmd)
	return cmd
}
