package guard

import (
	"context"
	"testing"

	"github.com/alexanderramin/atelier/internal/domain"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T, opts ...EngineOption) *Engine {
	t.Helper()
	e, err := NewEngine(context.Background(), opts...)
	require.NoError(t, err)
	return e
}

func taskTarget(assignee string) Target {
	return Target{Kind: domain.EntityTask, ID: "t1", ProjectID: "p1", Assignee: assignee}
}

func TestAuthorize_DefaultRoles(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	tests := []struct {
		role    string
		op      Operation
		allowed bool
	}{
		{RoleOwner, OpPlanArchive, true},
		{RoleOwner, OpStageDelete, true},
		{RoleManager, OpPlanReplace, true},
		{RoleManager, OpTaskDelete, true},
		{RoleArchitect, OpStageCreate, true},
		{RoleArchitect, OpTaskUpdate, true},
		{RoleArchitect, OpTaskDelete, true},
		{RoleArchitect, OpStageDelete, false},
		{RoleArchitect, OpPlanReplace, false},
		{RoleArchitect, OpPlanArchive, false},
		{RoleContributor, OpTaskCreate, false},
		{RoleContributor, OpStageStatus, false},
		{RoleViewer, OpTaskStatus, false},
		{"stranger", OpTaskStatus, false},
	}
	for _, tt := range tests {
		t.Run(tt.role+"/"+string(tt.op), func(t *testing.T) {
			d, err := e.Authorize(ctx, Actor{ID: "u1", Roles: []string{tt.role}}, tt.op, taskTarget(""))
			require.NoError(t, err)
			assert.Equal(t, tt.allowed, d.Allowed, "reasons: %v", d.Reasons)
			if !tt.allowed {
				assert.NotEmpty(t, d.Reasons)
			}
			assert.NotEmpty(t, d.ID)
		})
	}
}

func TestAuthorize_ContributorOnOwnTasksOnly(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	bob := Actor{ID: "bob", Roles: []string{RoleContributor}}

	d, err := e.Authorize(ctx, bob, OpTaskStatus, taskTarget("bob"))
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = e.Authorize(ctx, bob, OpTaskReopen, taskTarget("bob"))
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = e.Authorize(ctx, bob, OpTaskStatus, taskTarget("carol"))
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	d, err = e.Authorize(ctx, bob, OpTaskStatus, taskTarget(""))
	require.NoError(t, err)
	assert.False(t, d.Allowed, "unassigned tasks are not theirs")

	d, err = e.Authorize(ctx, bob, OpTaskUpdate, taskTarget("bob"))
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestAuthorize_CapabilitiesGrantSingleOperations(t *testing.T) {
	e := newEngine(t)
	viewer := Actor{ID: "v1", Roles: []string{RoleViewer}, Capabilities: []Operation{OpStageReorder}}

	d, err := e.Authorize(context.Background(), viewer, OpStageReorder, Target{Kind: domain.EntityPlan, ID: "p1", ProjectID: "p1"})
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = e.Authorize(context.Background(), viewer, OpStageCreate, Target{Kind: domain.EntityPlan, ID: "p1", ProjectID: "p1"})
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestAuthorize_MissingActorID(t *testing.T) {
	e := newEngine(t)

	d, err := e.Authorize(context.Background(), Actor{Roles: []string{RoleOwner}}, OpTaskCreate, taskTarget(""))
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Contains(t, d.Reasons, "actor id is required")
}

func TestAuthorize_UnknownOperation(t *testing.T) {
	e := newEngine(t)
	_, err := e.Authorize(context.Background(), Actor{ID: "u1"}, "plan.delete", taskTarget(""))
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestAuthorize_ExtraPolicyAddsDenies(t *testing.T) {
	freeze := Policy{
		Name: "freeze",
		Path: "freeze.rego",
		Content: `package atelier.authz

import rego.v1

deny contains "project p1 is frozen" if {
	input.target.project_id == "p1"
	endswith(input.operation, ".delete")
}
`,
	}
	e := newEngine(t, WithPolicies(freeze))
	owner := Actor{ID: "o1", Roles: []string{RoleOwner}}

	d, err := e.Authorize(context.Background(), owner, OpTaskDelete, taskTarget(""))
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, []string{"project p1 is frozen"}, d.Reasons)

	other := Target{Kind: domain.EntityTask, ID: "t9", ProjectID: "p2"}
	d, err = e.Authorize(context.Background(), owner, OpTaskDelete, other)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	assert.Equal(t, []string{DefaultPolicyName, "freeze"}, e.PolicyNames())
}

func TestAuthorize_PolicyNamedAuthzReplacesDefault(t *testing.T) {
	open := Policy{
		Name: DefaultPolicyName,
		Path: "/etc/atelier/policies/authz.rego",
		Content: `package atelier.authz

import rego.v1

deny contains "viewers are read-only" if {
	"viewer" in input.actor.roles
}
`,
	}
	e := newEngine(t, WithPolicies(open))

	d, err := e.Authorize(context.Background(), Actor{ID: "c1", Roles: []string{RoleContributor}}, OpStageDelete, taskTarget(""))
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = e.Authorize(context.Background(), Actor{ID: "v1", Roles: []string{RoleViewer}}, OpTaskStatus, taskTarget(""))
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, []string{DefaultPolicyName}, e.PolicyNames())
}

func TestNewEngine_InvalidPolicy(t *testing.T) {
	_, err := NewEngine(context.Background(), WithPolicies(Policy{Name: "broken", Path: "broken.rego", Content: "package atelier.authz\n\ndeny contains"}))
	assert.ErrorIs(t, err, ErrInvalidPolicy)
}

func TestNewEngine_UndefinedDenySet(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"wrong package", "package atelier.auth\n\nimport rego.v1\n\nallow if true\n"},
		{"no deny rule", "package atelier.authz\n\nimport rego.v1\n\nallow if true\n"},
		{"deny not a set", "package atelier.authz\n\nimport rego.v1\n\ndeny := false\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := afero.NewMemMapFs()
			require.NoError(t, afero.WriteFile(fsys, "/policies/authz.rego", []byte(tt.content), 0o644))
			policies, err := LoadPolicies(fsys, "/policies")
			require.NoError(t, err)

			_, err = NewEngine(context.Background(), WithPolicies(policies...))
			assert.ErrorIs(t, err, ErrInvalidPolicy)
		})
	}
}

func TestAuthorize_ReplacementPolicyStillNeedsActorID(t *testing.T) {
	open := Policy{
		Name:    DefaultPolicyName,
		Path:    "authz.rego",
		Content: "package atelier.authz\n\nimport rego.v1\n\ndeny contains \"never\" if false\n",
	}
	e := newEngine(t, WithPolicies(open))

	d, err := e.Authorize(context.Background(), Actor{ID: "c1"}, OpPlanArchive, Target{Kind: domain.EntityPlan, ID: "p1", ProjectID: "p1"})
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = e.Authorize(context.Background(), Actor{}, OpPlanArchive, Target{Kind: domain.EntityPlan, ID: "p1", ProjectID: "p1"})
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, []string{"actor id is required"}, d.Reasons)
}

func TestRequire(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	require.NoError(t, Require(ctx, e, Actor{ID: "m1", Roles: []string{RoleManager}}, OpStageDelete, taskTarget("")))

	err := Require(ctx, e, Actor{ID: "v1", Roles: []string{RoleViewer}}, OpStageDelete, taskTarget(""))
	var pd *domain.PermissionDeniedError
	require.ErrorAs(t, err, &pd)
	assert.Equal(t, "v1", pd.ActorID)
	assert.Equal(t, string(OpStageDelete), pd.Operation)
	assert.NotEmpty(t, pd.Reasons)
	assert.Equal(t, domain.CategoryForbidden, domain.CategoryOf(err))
}

func TestLoadPolicies(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/policies/b.rego", []byte("package atelier.authz\n"), 0o644))
	require.NoError(t, afero.WriteFile(fsys, "/policies/nested/a.rego", []byte("package atelier.authz\n"), 0o644))
	require.NoError(t, afero.WriteFile(fsys, "/policies/README.md", []byte("notes"), 0o644))

	policies, err := LoadPolicies(fsys, "/policies")
	require.NoError(t, err)
	require.Len(t, policies, 2)
	assert.Equal(t, "b", policies[0].Name)
	assert.Equal(t, "a", policies[1].Name)
	assert.Equal(t, "/policies/nested/a.rego", policies[1].Path)

	none, err := LoadPolicies(fsys, "/missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}
