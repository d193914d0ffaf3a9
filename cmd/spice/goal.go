package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Veraticus/spice-ledger/internal/cli"
	"github.com/Veraticus/spice-ledger/internal/goals"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/spf13/cobra"
)

func goalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "goal",
		Aliases: []string{"goals"},
		Short:   "Save towards targets",
	}
	cmd.AddCommand(
		goalAddCmd(),
		goalListCmd(),
		goalViewCmd(),
		goalContributeCmd(),
		goalWithdrawCmd(),
		goalStatusCmd(),
		goalDeleteCmd(),
	)
	return cmd
}

func goalAddCmd() *cobra.Command {
	var deadline, description, category, notes string
	var priority int

	cmd := &cobra.Command{
		Use:     "add <name> <target>",
		Short:   "Create a savings goal",
		Example: `  spice goal add "Emergency fund" 5000 --deadline 2026-12-31 --priority 1`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			target, err := parseMoney(args[1])
			if err != nil {
				return err
			}
			due, err := optionalDate(deadline)
			if err != nil {
				return err
			}

			goal, err := a.goals.Create(cmd.Context(), a.session, goals.NewGoal{
				Name:        args[0],
				Target:      target,
				Deadline:    due,
				Description: description,
				Category:    category,
				Notes:       notes,
				Priority:    priority,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, cli.FormatSuccess(fmt.Sprintf("Goal %q (id %d): save %s", goal.Name, goal.ID, money(goal.TargetAmount))))
			return nil
		},
	}
	cmd.Flags().StringVarP(&deadline, "deadline", "d", "", "target date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVarP(&category, "category", "c", "", "category")
	cmd.Flags().StringVar(&notes, "notes", "", "notes")
	cmd.Flags().IntVarP(&priority, "priority", "p", model.DefaultGoalPriority, "priority from 1 (highest) to 10")
	return cmd
}

func goalListCmd() *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List goals with their progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			var filter *model.GoalStatus
			if status != "" {
				st, err := model.ParseGoalStatus(status)
				if err != nil {
					return err
				}
				filter = &st
			}

			list, err := a.goals.List(cmd.Context(), a.session, filter)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(a.out, cli.FormatInfo("No goals yet. Add one with 'spice goal add <name> <target>'."))
				return nil
			}

			rows := make([][]string, 0, len(list))
			for _, g := range list {
				p := a.goals.Progress(g)
				rows = append(rows, []string{
					strconv.FormatInt(g.ID, 10),
					g.Name,
					money(g.CurrentAmount) + " / " + money(g.TargetAmount),
					cli.Bar(p.Percentage, false) + " " + p.Percentage.StringFixed(0) + "%",
					dateOrDash(g.Deadline),
					strconv.Itoa(g.Priority),
					string(g.Status),
				})
			}
			fmt.Fprintln(a.out, cli.Table([]string{"ID", "Goal", "Saved", "Progress", "Deadline", "Priority", "Status"}, rows, 2))
			return nil
		},
	}
	cmd.Flags().StringVarP(&status, "status", "s", "", "active, completed, paused or cancelled")
	return cmd
}

func goalViewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "view <goal>",
		Short: "Show a goal, its pace and its contributions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			goal, err := a.goals.Resolve(ctx, a.session, args[0])
			if err != nil {
				return err
			}
			rec, err := a.goals.Recommendations(ctx, a.session, goal.ID)
			if err != nil {
				return err
			}
			p := rec.Progress

			lines := []string{
				fmt.Sprintf("Saved: %s of %s (%s%%)", money(p.Current), money(p.Target), p.Percentage.StringFixed(1)),
				cli.Bar(p.Percentage, false),
				"Remaining: " + money(p.Remaining),
				"Status: " + string(goal.Status),
				"Priority: " + strconv.Itoa(goal.Priority),
			}
			switch {
			case p.IsComplete:
				lines = append(lines, cli.SuccessStyle.Render("Complete!"))
			case p.OverdueDays > 0:
				lines = append(lines, cli.ErrorStyle.Render(fmt.Sprintf("Deadline passed %d days ago", p.OverdueDays)))
			case p.DaysUntilDeadline != nil:
				lines = append(lines, fmt.Sprintf("Deadline: %s (%d days left)", dateOrDash(goal.Deadline), *p.DaysUntilDeadline))
			}
			if rec.Required != nil {
				lines = append(lines, fmt.Sprintf("Needed: %s/day, %s/week, %s/month",
					money(rec.Required.Daily), money(rec.Required.Weekly), money(rec.Required.Monthly)))
			}
			if goal.Description != "" {
				lines = append(lines, "", goal.Description)
			}
			fmt.Fprintln(a.out, cli.RenderBox(goal.Name, strings.Join(lines, "\n")))

			for _, s := range rec.Suggestions {
				fmt.Fprintln(a.out, cli.FormatInfo(s))
			}

			contributions, err := a.goals.Contributions(ctx, a.session, goal.ID)
			if err != nil {
				return err
			}
			if len(contributions) > 0 {
				rows := make([][]string, 0, len(contributions))
				for _, c := range contributions {
					rows = append(rows, []string{model.FormatDate(c.Date), money(c.Amount), orDash(c.Note)})
				}
				fmt.Fprintln(a.out, cli.Table([]string{"Date", "Amount", "Note"}, rows, 1))
			}
			return nil
		},
	}
}

func goalContributeCmd() *cobra.Command {
	var note string

	cmd := &cobra.Command{
		Use:   "contribute <goal> <amount>",
		Short: "Add money to a goal",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			amount, err := parseMoney(args[1])
			if err != nil {
				return err
			}
			goal, err := a.goals.Resolve(ctx, a.session, args[0])
			if err != nil {
				return err
			}
			updated, err := a.goals.Contribute(ctx, a.session, goal.ID, amount, note)
			if err != nil {
				return err
			}

			fmt.Fprintln(a.out, cli.FormatSuccess(fmt.Sprintf("Added %s to %s: %s of %s",
				money(amount), updated.Name, money(updated.CurrentAmount), money(updated.TargetAmount))))
			if updated.Status == model.GoalCompleted {
				fmt.Fprintln(a.out, cli.FormatSuccess("Goal reached! 🎉"))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "note")
	return cmd
}

func goalWithdrawCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "withdraw <goal> <amount>",
		Short: "Take money back out of a goal",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			amount, err := parseMoney(args[1])
			if err != nil {
				return err
			}
			goal, err := a.goals.Resolve(ctx, a.session, args[0])
			if err != nil {
				return err
			}
			updated, err := a.goals.Withdraw(ctx, a.session, goal.ID, amount)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, cli.FormatSuccess(fmt.Sprintf("Withdrew %s from %s: %s left",
				money(amount), updated.Name, money(updated.CurrentAmount))))
			return nil
		},
	}
}

func goalStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <goal> <active|completed|paused|cancelled>",
		Short: "Change a goal's status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			goal, err := a.goals.Resolve(ctx, a.session, args[0])
			if err != nil {
				return err
			}
			updated, err := a.goals.UpdateStatus(ctx, a.session, goal.ID, args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, cli.FormatSuccess(fmt.Sprintf("%s is now %s", updated.Name, updated.Status)))
			return nil
		},
	}
}

func goalDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <goal>",
		Short: "Delete a goal and its contributions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			goal, err := a.goals.Resolve(ctx, a.session, args[0])
			if err != nil {
				return err
			}
			if ok, err := a.confirm(cmd, fmt.Sprintf("Delete goal %q and its %s of contributions?", goal.Name, money(goal.CurrentAmount))); err != nil || !ok {
				return err
			}
			if err := a.goals.Delete(ctx, a.session, goal.ID); err != nil {
				return err
			}
			fmt.Fprintln(a.out, cli.FormatSuccess("Deleted "+goal.Name))
			return nil
		},
	}
	addYesFlag(cmd)
	return cmd
}
