package cli

import (
	"fmt"
	"strings"

	"github.com/alexanderramin/atelier/internal/cli/formatter"
	"github.com/alexanderramin/atelier/internal/domain"
	"github.com/alexanderramin/atelier/internal/plan"
	"github.com/spf13/cobra"
)

func newStageCmd(app *App, flags *actorFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stage",
		Short: "Edit the stages of a plan",
	}

	cmd.AddCommand(
		newStageAddCmd(app, flags),
		newStageEditCmd(app, flags),
		newStatusCmd(app, flags, "stage", "not_started, in_progress or completed"),
		newReopenCmd(app, flags, "stage"),
		newStageMoveCmd(app, flags),
		newStageRemoveCmd(app, flags),
	)

	return cmd
}

func newStageAddCmd(app *App, flags *actorFlags) *cobra.Command {
	var at optionalInt

	cmd := &cobra.Command{
		Use:   "add PROJECT LABEL",
		Short: "Insert a stage (appends unless --at is given)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.Plans.CreateStage(cmd.Context(), flags.actor(app), args[0], args[1], at.Ptr())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added stage %d. %s %s\n", st.Position+1, formatter.Bold(st.Label), formatter.Dim(st.ID))
			return nil
		},
	}

	cmd.Flags().Var(&at, "at", "Zero-based position")

	return cmd
}

func newStageEditCmd(app *App, flags *actorFlags) *cobra.Command {
	var label string

	cmd := &cobra.Command{
		Use:   "edit PROJECT STAGE",
		Short: "Rename a stage",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("label") {
				return domain.NewValidationError("label", "nothing to change")
			}
			patch := plan.FieldPatch{Label: &label}
			if err := app.Plans.UpdateFields(cmd.Context(), flags.actor(app), args[0], args[1], patch); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated stage %s\n", args[1])
			return nil
		},
	}

	cmd.Flags().StringVar(&label, "label", "", "New label")

	return cmd
}

func newStageMoveCmd(app *App, flags *actorFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "move PROJECT STAGE_ID...",
		Short: "Reorder stages; list every stage id in the new order",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := splitIDs(args[1:])
			if err := app.Plans.Reorder(cmd.Context(), flags.actor(app), args[0], nil, ids); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reordered %d stages\n", len(ids))
			return nil
		},
	}
}

func newStageRemoveCmd(app *App, flags *actorFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "rm PROJECT STAGE",
		Aliases: []string{"remove"},
		Short:   "Delete a stage and all of its tasks",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Plans.DeleteStage(cmd.Context(), flags.actor(app), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted stage %s\n", args[1])
			return nil
		},
	}
}

// newStatusCmd serves both "stage status" and "task status"; the store
// tells stages and tasks apart by id.
func newStatusCmd(app *App, flags *actorFlags, kind, allowed string) *cobra.Command {
	return &cobra.Command{
		Use:   "status PROJECT " + strings.ToUpper(kind) + " STATUS",
		Short: "Move a " + kind + " to " + allowed,
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Plans.UpdateStatus(cmd.Context(), flags.actor(app), args[0], args[1], args[2]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s is now %s\n", kind, args[1], formatter.StatusPill(args[2]))
			return nil
		},
	}
}

func newReopenCmd(app *App, flags *actorFlags, kind string) *cobra.Command {
	return &cobra.Command{
		Use:   "reopen PROJECT " + strings.ToUpper(kind),
		Short: "Reopen a finished " + kind,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Plans.Reopen(cmd.Context(), flags.actor(app), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reopened %s %s\n", kind, args[1])
			return nil
		},
	}
}
