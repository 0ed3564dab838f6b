package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alexanderramin/atelier/internal/cli/formatter"
	"github.com/alexanderramin/atelier/internal/domain"
	"github.com/alexanderramin/atelier/internal/template"
	"github.com/spf13/cobra"
)

func newTemplateCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Browse and check project templates",
	}

	cmd.AddCommand(
		newTemplateListCmd(app),
		newTemplateShowCmd(app),
		newTemplateDetectCmd(app),
		newTemplateValidateCmd(app),
	)

	return cmd
}

func newTemplateListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			templates, err := app.Templates.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(templates) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No templates found.")
				return nil
			}

			rows := make([]formatter.TemplateRow, 0, len(templates))
			for _, t := range templates {
				rows = append(rows, formatter.TemplateRow{
					ID:          t.ID,
					Name:        t.Name,
					Version:     t.Version,
					Stages:      t.Stages,
					Tasks:       t.Tasks,
					EffortHours: t.EffortHours,
					Default:     t.Default,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.FormatTemplateList(rows))
			return nil
		},
	}
}

func newTemplateShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show the stage and task blueprints of a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := app.Templates.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.FormatTemplateShow(sc))
			return nil
		},
	}
}

func newTemplateDetectCmd(app *App) *cobra.Command {
	var in briefingInput
	var rules bool

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Show which template a briefing selects",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if rules {
				def, rs := app.Templates.Rules(cmd.Context())
				fmt.Fprint(out, formatter.FormatRules(def, rs))
				return nil
			}
			if in.empty() {
				return domain.NewValidationError("briefing", "pass --briefing FILE or --set key=value")
			}
			b, err := in.load(app.fs())
			if err != nil {
				return err
			}
			det, err := app.Templates.Detect(cmd.Context(), b)
			if err != nil {
				return err
			}
			fmt.Fprint(out, formatter.FormatDetection(det))
			return nil
		},
	}

	in.register(cmd.Flags())
	cmd.Flags().BoolVar(&rules, "rules", false, "List the detection rules instead")

	return cmd
}

func newTemplateValidateCmd(app *App) *cobra.Command {
	var dir string
	var watch bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the templates directory and its detection rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = app.TemplatesDir
			}
			out := cmd.OutOrStdout()

			lib, err := template.Load(app.fs(), dir)
			if err != nil {
				return err
			}
			reportLibrary(cmd, lib, dir)
			if !watch {
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			w, err := template.NewWatcher(app.fs(), dir, template.DefaultReloadDelay, func(lib *template.Library, err error) {
				if err != nil {
					fmt.Fprintln(out, formatter.StyleRed.Render("✖ "+err.Error()))
					return
				}
				reportLibrary(cmd, lib, dir)
				if app.ReloadTemplates != nil {
					app.ReloadTemplates(lib)
				}
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(out, formatter.Dim("watching "+dir+" (ctrl-c to stop)"))
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Templates directory (default from config)")
	cmd.Flags().BoolVar(&watch, "watch", false, "Re-validate whenever a template file changes")

	return cmd
}

func reportLibrary(cmd *cobra.Command, lib *template.Library, dir string) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s %d templates, %d rules, default %s %s\n",
		formatter.StyleGreen.Render("✔"),
		lib.Catalog.Len(),
		len(lib.Detector.Rules()),
		formatter.Bold(lib.Detector.Default()),
		formatter.Dim("("+dir+")"),
	)
}
