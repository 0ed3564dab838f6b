package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/alexanderramin/atelier/internal/cli/formatter"
	"github.com/alexanderramin/atelier/internal/domain"
	"github.com/alexanderramin/atelier/internal/guard"
	"github.com/alexanderramin/atelier/internal/notify"
	"github.com/alexanderramin/atelier/internal/service"
	"github.com/alexanderramin/atelier/internal/template"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// App holds references to all service interfaces used by CLI commands.
type App struct {
	Templates service.TemplateService
	Projects  service.ProjectService
	Plans     service.PlanService

	// Actor is the configured identity; --actor and --role override it.
	Actor guard.Actor

	// Fs serves briefing files and the templates directory.
	Fs           afero.Fs
	TemplatesDir string

	// ReloadTemplates, when set, receives libraries rebuilt by
	// "template validate --watch".
	ReloadTemplates func(*template.Library)

	// Events, when set, is the bridge the plan store publishes to;
	// --events prints what a command changed.
	Events *notify.Bridge

	Now func() time.Time
}

func (app *App) now() time.Time {
	if app.Now != nil {
		return app.Now()
	}
	return time.Now()
}

func (app *App) fs() afero.Fs {
	if app.Fs != nil {
		return app.Fs
	}
	return afero.NewOsFs()
}

type actorFlags struct {
	id    string
	roles []string
}

// actor merges flags over the configured identity.
func (f *actorFlags) actor(app *App) guard.Actor {
	a := app.Actor
	a.ID = domain.CoalesceStr(strings.TrimSpace(f.id), a.ID, os.Getenv("USER"), "local")
	if len(f.roles) > 0 {
		a.Roles = f.roles
	}
	return a
}

// NewRootCmd creates the top-level "atelier" command and registers all
// subcommands against the provided App.
func NewRootCmd(app *App) *cobra.Command {
	flags := &actorFlags{}
	var showEvents bool
	var sub *notify.Subscription

	root := &cobra.Command{
		Use:           "atelier",
		Short:         "Project plans for architecture and engineering offices",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.id, "actor", "", "Acting user id (default from config, then $USER)")
	root.PersistentFlags().StringSliceVar(&flags.roles, "role", nil, "Acting roles, e.g. --role architect")
	root.PersistentFlags().BoolVar(&showEvents, "events", false, "Print the change notifications a command produced")

	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if showEvents && app.Events != nil {
			s := app.Events.Subscribe("")
			sub = &s
		}
	}
	root.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if sub == nil {
			return
		}
		defer sub.Close()
		drainEvents(cmd, sub.Events)
	}

	root.AddCommand(
		newTemplateCmd(app),
		newProjectCmd(app, flags),
		newStageCmd(app, flags),
		newTaskCmd(app, flags),
	)

	return root
}

// drainEvents prints the events already queued; the store publishes
// synchronously, so everything a command caused is buffered by now.
func drainEvents(cmd *cobra.Command, events <-chan notify.Event) {
	out := cmd.ErrOrStderr()
	for {
		select {
		case e, ok := <-events:
			if !ok {
				return
			}
			title, msg := notify.FormatEvent(e)
			fmt.Fprintf(out, "%s %s %s\n", formatter.StyleYellowBold.Render("●"), formatter.Bold(title), formatter.Dim(msg))
		default:
			return
		}
	}
}

// ExitCode maps an error onto a process exit status.
func ExitCode(err error) int {
	switch domain.CategoryOf(err) {
	case "":
		return 0
	case domain.CategoryForbidden:
		return 3
	case domain.CategoryNotFound:
		return 4
	case domain.CategoryInvalidInput, domain.CategoryInvalidTransition:
		return 2
	default:
		return 1
	}
}

// ErrorHeadline prefixes err with the headline of its category.
func ErrorHeadline(err error) string {
	return fmt.Sprintf("%s: %v", domain.CategoryOf(err).Message(), err)
}
