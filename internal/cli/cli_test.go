package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alexanderramin/atelier/internal/cli/formatter"
	"github.com/alexanderramin/atelier/internal/domain"
	"github.com/alexanderramin/atelier/internal/guard"
	"github.com/alexanderramin/atelier/internal/notify"
	"github.com/alexanderramin/atelier/internal/plan"
	"github.com/alexanderramin/atelier/internal/repository"
	"github.com/alexanderramin/atelier/internal/service"
	"github.com/alexanderramin/atelier/internal/template"
	"github.com/alexanderramin/atelier/internal/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	formatter.DisableColor()
}

func testApp(t *testing.T) *App {
	t.Helper()
	lib, err := template.Builtin()
	require.NoError(t, err)
	engine, err := guard.NewEngine(context.Background())
	require.NoError(t, err)

	repo := repository.NewSQLitePlanRepo(testutil.NewTestUoW(testutil.NewTestDB(t)))
	events := notify.NewBridge()
	store := plan.NewStore(plan.WithPersister(repo), plan.WithNotifier(events), plan.WithClock(testutil.SteppingClock()))

	templates := service.NewTemplateService(lib)
	return &App{
		Templates: templates,
		Projects: service.NewProjectService(store, templates, engine,
			service.WithShortIDResolver(repo),
			service.WithMaterializer(template.NewMaterializer(template.WithClock(testutil.FixedClock())))),
		Plans:  service.NewPlanService(store, engine, repo),
		Actor:  guard.Actor{ID: "olga", Roles: []string{guard.RoleOwner}},
		Fs:     afero.NewMemMapFs(),
		Events: events,
		Now:    func() time.Time { return time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC) },
	}
}

func executeCmd(t *testing.T, app *App, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd(app)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func mustExec(t *testing.T, app *App, args ...string) string {
	t.Helper()
	out, err := executeCmd(t, app, args...)
	require.NoError(t, err, out)
	return out
}

func initCasa(t *testing.T, app *App) *domain.ProjectPlan {
	t.Helper()
	mustExec(t, app, "project", "init", "--name", "Casa Azul", "--id", "CASA01",
		"--set", "type=residential", "--set", "scale=small", "--set", "bedrooms=3")
	p, err := app.Projects.Get(context.Background(), "CASA01")
	require.NoError(t, err)
	return p
}

func outline(t *testing.T, app *App) string {
	t.Helper()
	return mustExec(t, app, "project", "show", "CASA01", "--outline")
}

func TestTemplateCommands(t *testing.T) {
	app := testApp(t)

	out := mustExec(t, app, "template", "list")
	for _, id := range []string{"commercial", "generic", "interior-renovation", "residential-large", "residential-small"} {
		assert.Contains(t, out, id)
	}

	out = mustExec(t, app, "template", "show", "residential-small")
	assert.Contains(t, out, "Design")
	assert.Contains(t, out, "Approval")

	out = mustExec(t, app, "template", "detect", "--set", "type=residential", "--set", "scale=small")
	assert.Contains(t, out, "residential-small")

	out = mustExec(t, app, "template", "detect", "--rules")
	assert.Contains(t, out, "generic")

	_, err := executeCmd(t, app, "template", "detect")
	require.Error(t, err)
	assert.Equal(t, 2, ExitCode(err))

	_, err = executeCmd(t, app, "template", "show", "lighthouse")
	require.Error(t, err)
	assert.Equal(t, 4, ExitCode(err))
}

func TestTemplateValidate_Directory(t *testing.T) {
	app := testApp(t)
	require.NoError(t, app.Fs.MkdirAll("/tpl", 0o755))
	require.NoError(t, afero.WriteFile(app.Fs, "/tpl/small.json", []byte(`{
		"id": "tiny", "name": "Tiny", "version": "1",
		"stages": [{"id": "only", "label": "Only", "tasks": [{"id": "do_it", "label": "Do it"}]}]
	}`), 0o644))
	require.NoError(t, afero.WriteFile(app.Fs, "/tpl/rules.json", []byte(`{"default": "tiny", "rules": []}`), 0o644))

	out := mustExec(t, app, "template", "validate", "--dir", "/tpl")
	assert.Contains(t, out, "6 templates, 0 rules, default tiny")

	require.NoError(t, afero.WriteFile(app.Fs, "/tpl/broken.json", []byte(`{"id": "broken", "name": "Broken", "stages": []}`), 0o644))
	_, err := executeCmd(t, app, "template", "validate", "--dir", "/tpl")
	require.Error(t, err)
}

func TestProjectInit_FromSetFlags(t *testing.T) {
	app := testApp(t)

	out := mustExec(t, app, "project", "init", "--name", "Casa Azul", "--id", "casa01",
		"--set", "type=residential", "--set", "scale=small", "--set", "bedrooms=3")
	assert.Contains(t, out, "residential-small")
	assert.Contains(t, out, "Created project")
	assert.Contains(t, out, "[CASA01]")

	got := outline(t, app)
	assert.Contains(t, got, "1. Design [not_started]\n")
	assert.Contains(t, got, "Layout (3 bedrooms)")
	assert.Contains(t, got, "2. Approval [not_started]\n")

	out = mustExec(t, app, "project", "list")
	assert.Contains(t, out, "CASA01")
	assert.Contains(t, out, "Casa Azul")
}

func TestProjectInit_BriefingFile(t *testing.T) {
	app := testApp(t)
	require.NoError(t, afero.WriteFile(app.Fs, "/briefs/office.yaml", []byte("type: commercial\nfloors: 4\n"), 0o644))

	out := mustExec(t, app, "project", "init", "--name", "Torre", "--id", "TORRE01", "--briefing", "/briefs/office.yaml")
	assert.Contains(t, out, "commercial")

	p, err := app.Projects.Get(context.Background(), "TORRE01")
	require.NoError(t, err)
	assert.Equal(t, "commercial", p.TemplateID)
}

func TestProjectInit_Rejections(t *testing.T) {
	app := testApp(t)
	initCasa(t, app)

	tests := []struct {
		name string
		args []string
		code int
	}{
		{"no briefing", []string{"project", "init", "--name", "X", "--id", "NOPE01"}, 2},
		{"bad set", []string{"project", "init", "--name", "X", "--id", "NOPE01", "--set", "novalue"}, 2},
		{"missing briefing file", []string{"project", "init", "--name", "X", "--briefing", "/nope.json"}, 1},
		{"duplicate short id", []string{"project", "init", "--name", "Other", "--id", "CASA01", "--set", "type=residential"}, 2},
		{"unknown template", []string{"project", "init", "--name", "X", "--id", "NOPE01", "--template", "lighthouse", "--set", "a=1"}, 4},
		{"viewer", []string{"project", "init", "--name", "X", "--id", "NOPE01", "--set", "a=1", "--actor", "vera", "--role", "viewer"}, 3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := executeCmd(t, app, tc.args...)
			require.Error(t, err)
			assert.Equal(t, tc.code, ExitCode(err), err.Error())
		})
	}
}

func TestProjectInit_DryRunWritesNothing(t *testing.T) {
	app := testApp(t)

	out := mustExec(t, app, "project", "init", "--name", "Casa Azul", "--id", "CASA01",
		"--set", "type=residential", "--set", "scale=small", "--dry-run")
	assert.Contains(t, out, "+1. Design [not_started]")
	assert.Contains(t, out, "dry run")

	out = mustExec(t, app, "project", "list")
	assert.Contains(t, out, "No projects found.")
}

func TestProjectInit_Replace(t *testing.T) {
	app := testApp(t)
	initCasa(t, app)
	mustExec(t, app, "stage", "add", "CASA01", "Extra")

	out := mustExec(t, app, "project", "init", "--replace", "CASA01", "--template", "generic")
	assert.Contains(t, out, "-3. Extra [not_started]")
	assert.Contains(t, out, "+1. Kickoff [not_started]")
	assert.Contains(t, out, "Replaced plan of")

	got := outline(t, app)
	assert.Contains(t, got, "1. Kickoff [not_started]\n")
	assert.NotContains(t, got, "Extra")

	out = mustExec(t, app, "project", "history", "CASA01")
	assert.Contains(t, out, "olga")
}

func TestStageCommands(t *testing.T) {
	app := testApp(t)
	p := initCasa(t, app)
	design, approval := p.Stages[0].ID, p.Stages[1].ID

	out := mustExec(t, app, "stage", "add", "CASA01", "Survey", "--at", "0")
	assert.Contains(t, out, "Added stage 1. Survey")
	assert.Contains(t, outline(t, app), "1. Survey [not_started]\n2. Design")

	mustExec(t, app, "stage", "edit", "CASA01", design, "--label", "Schematic design")
	assert.Contains(t, outline(t, app), "2. Schematic design [not_started]")

	mustExec(t, app, "stage", "status", "CASA01", approval, "in_progress")
	assert.Contains(t, outline(t, app), "3. Approval [in_progress]")

	p, err := app.Projects.Get(context.Background(), "CASA01")
	require.NoError(t, err)
	survey := p.Stages[0].ID
	mustExec(t, app, "stage", "move", "CASA01", fmt.Sprintf("%s,%s", approval, design), survey)
	assert.Contains(t, outline(t, app), "1. Approval [in_progress]")

	mustExec(t, app, "stage", "rm", "CASA01", survey)
	assert.NotContains(t, outline(t, app), "Survey")

	_, err = executeCmd(t, app, "stage", "edit", "CASA01", design)
	assert.Equal(t, 2, ExitCode(err))

	_, err = executeCmd(t, app, "stage", "move", "CASA01", design)
	assert.Equal(t, 2, ExitCode(err))

	_, err = executeCmd(t, app, "stage", "rm", "CASA01", "no-such-stage")
	assert.Equal(t, 4, ExitCode(err))
}

func TestTaskCommands(t *testing.T) {
	app := testApp(t)
	p := initCasa(t, app)
	design := p.Stages[0].ID

	out := mustExec(t, app, "task", "add", "CASA01", design, "Site survey", "--at", "0", "--hours", "6", "--due", "2026-04-20")
	assert.Contains(t, out, "Added task Site survey")
	assert.Contains(t, outline(t, app), "   1.1 Site survey [pending] 6h due 2026-04-20\n")

	p, err := app.Projects.Get(context.Background(), "CASA01")
	require.NoError(t, err)
	survey := p.Stages[0].Tasks[0].ID

	mustExec(t, app, "task", "edit", "CASA01", survey, "--hours", "8", "--clear-due", "--label", "Topographic survey")
	assert.Contains(t, outline(t, app), "   1.1 Topographic survey [pending] 8h\n")

	_, err = executeCmd(t, app, "task", "edit", "CASA01", survey)
	assert.Equal(t, 2, ExitCode(err))

	_, err = executeCmd(t, app, "task", "edit", "CASA01", survey, "--due", "20/04/2026")
	assert.Equal(t, 2, ExitCode(err))

	_, err = executeCmd(t, app, "task", "status", "CASA01", survey, "done")
	assert.Equal(t, 2, ExitCode(err))
	mustExec(t, app, "task", "status", "CASA01", survey, "in_progress")
	mustExec(t, app, "task", "status", "CASA01", survey, "done")
	assert.Contains(t, outline(t, app), "Topographic survey [done]")
	mustExec(t, app, "task", "reopen", "CASA01", survey)
	assert.Contains(t, outline(t, app), "Topographic survey [pending]")

	ids := p.Stages[0].TaskIDs()
	reversed := make([]string, len(ids))
	for i, id := range ids {
		reversed[len(ids)-1-i] = id
	}
	mustExec(t, app, append([]string{"task", "move", "CASA01", design}, reversed...)...)
	got := outline(t, app)
	assert.NotContains(t, got, "   1.1 Topographic survey")
	assert.Contains(t, got, fmt.Sprintf("   1.%d Topographic survey", len(ids)))

	mustExec(t, app, "task", "rm", "CASA01", survey)
	assert.NotContains(t, outline(t, app), "Topographic survey")
}

func TestTaskStatus_ContributorOnlyOnOwnTasks(t *testing.T) {
	app := testApp(t)
	p := initCasa(t, app)
	task := p.Stages[0].Tasks[0].ID

	_, err := executeCmd(t, app, "task", "status", "CASA01", task, "in_progress", "--actor", "bob", "--role", "contributor")
	require.Error(t, err)
	assert.Equal(t, 3, ExitCode(err))

	mustExec(t, app, "task", "edit", "CASA01", task, "--assignee", "bob")
	mustExec(t, app, "task", "status", "CASA01", task, "in_progress", "--actor", "bob", "--role", "contributor")

	_, err = executeCmd(t, app, "task", "edit", "CASA01", task, "--hours", "1", "--actor", "bob", "--role", "contributor")
	assert.Equal(t, 3, ExitCode(err))
}

func TestProjectExportAndArchive(t *testing.T) {
	app := testApp(t)
	p := initCasa(t, app)

	out := mustExec(t, app, "project", "export", "CASA01")
	decoded, err := plan.Decode([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, p.ProjectID, decoded.ProjectID)
	assert.Equal(t, p.Outline(), decoded.Outline())

	out = mustExec(t, app, "project", "export", "CASA01", "--format", "yaml")
	assert.Contains(t, out, "CASA01")

	_, err = executeCmd(t, app, "project", "export", "CASA01", "--format", "xml")
	assert.Equal(t, 2, ExitCode(err))

	_, err = executeCmd(t, app, "project", "archive", "CASA01", "--actor", "arthur", "--role", "architect")
	assert.Equal(t, 3, ExitCode(err))

	out = mustExec(t, app, "project", "archive", "CASA01")
	assert.Contains(t, out, "Archived project CASA01")

	_, err = executeCmd(t, app, "stage", "add", "CASA01", "Late")
	assert.Equal(t, 2, ExitCode(err))

	out = mustExec(t, app, "project", "list")
	assert.Contains(t, out, "No projects found.")
	out = mustExec(t, app, "project", "list", "--all")
	assert.Contains(t, out, "CASA01")

	out = mustExec(t, app, "project", "show", "CASA01")
	assert.Contains(t, out, "Casa Azul")
}

func TestEventsFlag(t *testing.T) {
	app := testApp(t)
	initCasa(t, app)

	out := mustExec(t, app, "stage", "add", "CASA01", "Handover", "--events")
	assert.Contains(t, out, "New stage")
	assert.Contains(t, out, "(by olga)")
	assert.Equal(t, 0, app.Events.Subscribers())

	out = mustExec(t, app, "stage", "add", "CASA01", "Quiet")
	assert.NotContains(t, out, "New stage")
}

func TestProjectShow_UnknownRef(t *testing.T) {
	app := testApp(t)
	_, err := executeCmd(t, app, "project", "show", "NOPE99")
	require.Error(t, err)
	assert.Equal(t, 4, ExitCode(err))
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{errors.New("boom"), 1},
		{domain.NewValidationError("label", "empty"), 2},
		{fmt.Errorf("wrapped: %w", domain.ErrInvalidTransition), 2},
		{&domain.PermissionDeniedError{ActorID: "bob", Operation: "task.delete"}, 3},
		{&domain.NotFoundError{Kind: "project", ID: "X"}, 4},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, ExitCode(tc.err))
	}
}

func TestErrorHeadline(t *testing.T) {
	err := domain.NewValidationError("label", "must not be empty")
	assert.Equal(t, "Fix your input: "+err.Error(), ErrorHeadline(err))
}

func TestActorFlags(t *testing.T) {
	app := &App{Actor: guard.Actor{ID: "olga", Roles: []string{guard.RoleOwner}}}

	a := (&actorFlags{}).actor(app)
	assert.Equal(t, "olga", a.ID)
	assert.Equal(t, []string{guard.RoleOwner}, a.Roles)

	a = (&actorFlags{id: " bob ", roles: []string{guard.RoleContributor}}).actor(app)
	assert.Equal(t, "bob", a.ID)
	assert.Equal(t, []string{guard.RoleContributor}, a.Roles)
}

func TestBriefingInput_Sets(t *testing.T) {
	in := briefingInput{sets: []string{"type=residential", "bedrooms=3", "garden=true", "site.area_m2=180.5", "note=two words"}}
	b, err := in.load(afero.NewMemMapFs())
	require.NoError(t, err)

	assert.Equal(t, "residential", b["type"])
	assert.Equal(t, float64(3), b["bedrooms"])
	assert.Equal(t, true, b["garden"])
	assert.Equal(t, map[string]any{"area_m2": 180.5}, b["site"])
	assert.Equal(t, "two words", b["note"])

	empty, err := (&briefingInput{}).load(afero.NewMemMapFs())
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestSplitIDs(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, splitIDs([]string{"a,b", " c ", ","}))
	assert.Nil(t, splitIDs(nil))
}
