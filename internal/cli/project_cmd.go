package cli

import (
	"fmt"
	"strings"

	"github.com/alexanderramin/atelier/internal/cli/formatter"
	"github.com/alexanderramin/atelier/internal/domain"
	"github.com/alexanderramin/atelier/internal/plan"
	"github.com/alexanderramin/atelier/internal/service"
	"github.com/spf13/cobra"
)

func newProjectCmd(app *App, flags *actorFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Create and inspect project plans",
	}

	cmd.AddCommand(
		newProjectInitCmd(app, flags),
		newProjectListCmd(app),
		newProjectShowCmd(app),
		newProjectHistoryCmd(app),
		newProjectExportCmd(app),
		newProjectArchiveCmd(app, flags),
	)

	return cmd
}

func newProjectInitCmd(app *App, flags *actorFlags) *cobra.Command {
	var name, shortID, templateID, replace string
	var dryRun bool
	var in briefingInput

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Materialize a plan from a briefing",
		Long: `Materialize a project plan from a client briefing.

Without --template the template is chosen by the detection rules
(see "atelier template detect --rules"). With --replace PROJECT the
existing plan's stages and tasks are swapped for a fresh materialization;
its history is kept. --dry-run prints the outline diff and writes nothing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := in.load(app.fs())
			if err != nil {
				return err
			}
			req := service.InitRequest{
				Ref:        replace,
				Name:       name,
				ShortID:    shortID,
				TemplateID: templateID,
				Briefing:   b,
				Replace:    replace != "",
				DryRun:     dryRun,
			}
			if !req.Replace && b == nil {
				return domain.NewValidationError("briefing", "pass --briefing FILE or --set key=value")
			}

			res, err := app.Projects.Init(cmd.Context(), flags.actor(app), req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if res.Detection != nil {
				fmt.Fprint(out, "Template: ", formatter.FormatDetection(*res.Detection))
			}
			if res.Replaced || res.DryRun {
				fmt.Fprint(out, formatter.FormatDiff(res.Diff))
			}
			if res.DryRun {
				fmt.Fprintln(out, formatter.Dim("dry run: nothing was written"))
				return nil
			}

			verb := "Created"
			if res.Replaced {
				verb = "Replaced plan of"
			}
			p := res.Plan
			fmt.Fprintf(out, "%s project %s [%s]: %d stages, %d tasks\n", verb, formatter.Bold(p.Name), p.DisplayID(), len(p.Stages), p.TaskCount())
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Project name")
	cmd.Flags().StringVar(&shortID, "id", "", "Short ID (3-6 uppercase letters + 2-4 digits, e.g. CASA01)")
	cmd.Flags().StringVar(&templateID, "template", "", "Template id or name (default: detect from briefing)")
	cmd.Flags().StringVar(&replace, "replace", "", "Re-materialize the plan of this existing project")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show the outline diff without writing")
	in.register(cmd.Flags())

	return cmd
}

func newProjectListCmd(app *App) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			plans, err := app.Projects.List(cmd.Context(), all)
			if err != nil {
				return err
			}
			if len(plans) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No projects found.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.FormatProjectList(plans))
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Include archived projects")

	return cmd
}

func newProjectShowCmd(app *App) *cobra.Command {
	var outline bool

	cmd := &cobra.Command{
		Use:   "show PROJECT",
		Short: "Show a project plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.Projects.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if outline {
				fmt.Fprint(cmd.OutOrStdout(), p.Outline())
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.FormatPlan(p, app.now()))
			return nil
		},
	}

	cmd.Flags().BoolVar(&outline, "outline", false, "Print the plain-text outline")

	return cmd
}

func newProjectHistoryCmd(app *App) *cobra.Command {
	var last int

	cmd := &cobra.Command{
		Use:   "history PROJECT",
		Short: "Show the change history of a plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := app.Projects.History(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No changes recorded.")
				return nil
			}
			if last > 0 && len(entries) > last {
				entries = entries[len(entries)-last:]
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.FormatHistory(entries))
			return nil
		},
	}

	cmd.Flags().IntVar(&last, "last", 0, "Only the most recent N entries")

	return cmd
}

func newProjectExportCmd(app *App) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "export PROJECT",
		Short: "Write the full plan, history included, as JSON or YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.Projects.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			var data []byte
			switch strings.ToLower(format) {
			case "json":
				data, err = plan.Encode(p)
			case "yaml", "yml":
				data, err = plan.EncodeYAML(p)
			default:
				return domain.NewValidationError("format", "unsupported export format %q (want json or yaml)", format)
			}
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().StringVar(&format, "format", "json", "json or yaml")

	return cmd
}

func newProjectArchiveCmd(app *App, flags *actorFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "archive PROJECT",
		Short: "Retire a project; its plan becomes read-only",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Projects.Archive(cmd.Context(), flags.actor(app), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Archived project %s\n", args[0])
			return nil
		},
	}
}
