package cli

import (
	"fmt"

	"github.com/alexanderramin/atelier/internal/cli/formatter"
	"github.com/alexanderramin/atelier/internal/domain"
	"github.com/alexanderramin/atelier/internal/plan"
	"github.com/spf13/cobra"
)

func newTaskCmd(app *App, flags *actorFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Edit the tasks of a plan",
	}

	cmd.AddCommand(
		newTaskAddCmd(app, flags),
		newTaskEditCmd(app, flags),
		newStatusCmd(app, flags, "task", "pending, in_progress, blocked or done"),
		newReopenCmd(app, flags, "task"),
		newTaskMoveCmd(app, flags),
		newTaskRemoveCmd(app, flags),
	)

	return cmd
}

func newTaskAddCmd(app *App, flags *actorFlags) *cobra.Command {
	var at optionalInt
	var assignee, due string
	var hours float64

	cmd := &cobra.Command{
		Use:   "add PROJECT STAGE LABEL",
		Short: "Insert a task into a stage (appends unless --at is given)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := plan.TaskOptions{EstimatedHours: hours}
			if assignee != "" {
				opts.Assignee = &assignee
			}
			if due != "" {
				d, err := parseDate(due)
				if err != nil {
					return err
				}
				opts.DueDate = d
			}

			t, err := app.Plans.CreateTask(cmd.Context(), flags.actor(app), args[0], args[1], args[2], at.Ptr(), opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added task %s %s\n", formatter.Bold(t.Label), formatter.Dim(t.ID))
			return nil
		},
	}

	cmd.Flags().Var(&at, "at", "Zero-based position within the stage")
	cmd.Flags().StringVar(&assignee, "assignee", "", "Assigned user id")
	cmd.Flags().StringVar(&due, "due", "", "Due date (YYYY-MM-DD)")
	cmd.Flags().Float64Var(&hours, "hours", 0, "Estimated effort in hours")

	return cmd
}

func newTaskEditCmd(app *App, flags *actorFlags) *cobra.Command {
	var label, assignee, due string
	var hours float64
	var clearDue bool

	cmd := &cobra.Command{
		Use:   "edit PROJECT TASK",
		Short: "Change the label, assignee, due date or estimate of a task",
		Long: `Change task fields. Only the flags given are applied.
--assignee "" unassigns the task; --clear-due removes the due date.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch plan.FieldPatch
			f := cmd.Flags()
			if f.Changed("label") {
				patch.Label = &label
			}
			if f.Changed("assignee") {
				patch.Assignee = &assignee
			}
			if f.Changed("hours") {
				patch.EstimatedHours = &hours
			}
			if f.Changed("due") {
				d, err := parseDate(due)
				if err != nil {
					return err
				}
				patch.DueDate = d
			}
			patch.ClearDueDate = clearDue
			if patch.IsEmpty() {
				return domain.NewValidationError("task", "nothing to change")
			}

			if err := app.Plans.UpdateFields(cmd.Context(), flags.actor(app), args[0], args[1], patch); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated task %s\n", args[1])
			return nil
		},
	}

	cmd.Flags().StringVar(&label, "label", "", "New label")
	cmd.Flags().StringVar(&assignee, "assignee", "", "Assigned user id; empty to unassign")
	cmd.Flags().StringVar(&due, "due", "", "Due date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&clearDue, "clear-due", false, "Remove the due date")
	cmd.Flags().Float64Var(&hours, "hours", 0, "Estimated effort in hours")
	cmd.MarkFlagsMutuallyExclusive("due", "clear-due")

	return cmd
}

func newTaskMoveCmd(app *App, flags *actorFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "move PROJECT STAGE TASK_ID...",
		Short: "Reorder the tasks of a stage; list every task id in the new order",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			stageID := args[1]
			ids := splitIDs(args[2:])
			if err := app.Plans.Reorder(cmd.Context(), flags.actor(app), args[0], &stageID, ids); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reordered %d tasks\n", len(ids))
			return nil
		},
	}
}

func newTaskRemoveCmd(app *App, flags *actorFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "rm PROJECT TASK",
		Aliases: []string{"remove"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Plans.DeleteTask(cmd.Context(), flags.actor(app), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %s\n", args[1])
			return nil
		},
	}
}
