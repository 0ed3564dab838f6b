package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alexanderramin/atelier/internal/cli"
	"github.com/alexanderramin/atelier/internal/cli/formatter"
	"github.com/alexanderramin/atelier/internal/config"
	"github.com/alexanderramin/atelier/internal/db"
	"github.com/alexanderramin/atelier/internal/guard"
	"github.com/alexanderramin/atelier/internal/logging"
	"github.com/alexanderramin/atelier/internal/notify"
	"github.com/alexanderramin/atelier/internal/plan"
	"github.com/alexanderramin/atelier/internal/repository"
	"github.com/alexanderramin/atelier/internal/service"
	"github.com/alexanderramin/atelier/internal/template"
	"github.com/mattn/go-isatty"
	"github.com/spf13/afero"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, formatter.StyleRed.Render("✖ ")+cli.ErrorHeadline(err))
		os.Exit(cli.ExitCode(err))
	}
}

func run() error {
	ctx := context.Background()

	cfg, err := config.Load(config.Options{ConfigFile: os.Getenv("ATELIER_CONFIG")})
	if err != nil {
		return err
	}
	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		formatter.DisableColor()
	}

	// Open database
	database, err := db.OpenDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	repo := repository.NewSQLitePlanRepo(db.NewSQLiteUnitOfWork(database))

	// Plan store publishes to the log and to the subscriber bridge.
	bridge := notify.NewBridge(
		notify.BridgeWithLogger(logger),
		notify.BridgeWithSubscriberCapacity(cfg.NotifyBuffer),
	)
	store := plan.NewStore(
		plan.WithPersister(repo),
		plan.WithNotifier(notify.Multi(notify.NewLogNotifier(logger), bridge)),
		plan.WithLogger(logger),
	)

	fs := afero.NewOsFs()
	library, err := template.Load(fs, cfg.TemplatesDir)
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}

	policies, err := guard.LoadPolicies(fs, cfg.PoliciesDir)
	if err != nil {
		return fmt.Errorf("loading policies: %w", err)
	}
	engine, err := guard.NewEngine(ctx, guard.WithPolicies(policies...))
	if err != nil {
		return err
	}
	logger.Debug("authorization policies loaded", "policies", engine.PolicyNames())

	// Wire services
	observer := service.NewLogUseCaseObserver(logger)
	templateSvc := service.NewTemplateService(library, observer)

	app := &cli.App{
		Templates: templateSvc,
		Projects: service.NewProjectService(store, templateSvc, engine,
			service.WithShortIDResolver(repo),
			service.WithProjectObserver(observer)),
		Plans:           service.NewPlanService(store, engine, repo, observer),
		Actor:           guard.Actor{ID: cfg.Actor, Roles: cfg.Roles},
		Fs:              fs,
		TemplatesDir:    cfg.TemplatesDir,
		ReloadTemplates: templateSvc.SetLibrary,
		Events:          bridge,
	}

	return cli.NewRootCmd(app).ExecuteContext(ctx)
}
