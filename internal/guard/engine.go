package guard

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/alexanderramin/atelier/internal/domain"
	"github.com/google/uuid"
	"github.com/open-policy-agent/opa/v1/rego"
)

// PolicyPackage is the Rego package every policy contributes to.
const PolicyPackage = "atelier.authz"

// DefaultPolicyName is the name of the embedded policy. A loaded policy with
// the same name replaces it.
const DefaultPolicyName = "authz"

// ErrInvalidPolicy marks policies that fail to compile or that leave the
// deny set undefined.
var ErrInvalidPolicy = errors.New("invalid policy")

const reasonMissingActor = "actor id is required"

//go:embed policy/authz.rego
var defaultPolicy string

// Policy is one Rego module.
type Policy struct {
	Name    string
	Path    string
	Content string
}

// DefaultPolicy returns the embedded role policy.
func DefaultPolicy() Policy {
	return Policy{Name: DefaultPolicyName, Path: "builtin/authz.rego", Content: defaultPolicy}
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithPolicies adds policies on top of the default one.
func WithPolicies(policies ...Policy) EngineOption {
	return func(e *Engine) { e.extra = append(e.extra, policies...) }
}

// WithClock overrides the decision timestamp source.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// Engine evaluates the deny set of the atelier.authz package. Policies are
// compiled once, at construction.
type Engine struct {
	extra    []Policy
	policies []Policy
	query    rego.PreparedEvalQuery
	now      func() time.Time
}

// NewEngine compiles the default policy plus any extra ones.
func NewEngine(ctx context.Context, opts ...EngineOption) (*Engine, error) {
	e := &Engine{now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(e)
	}

	e.policies = mergePolicies(DefaultPolicy(), e.extra)

	regoOpts := []func(*rego.Rego){
		rego.Query(fmt.Sprintf("data.%s.deny", PolicyPackage)),
	}
	for _, p := range e.policies {
		regoOpts = append(regoOpts, rego.Module(p.Path, p.Content))
	}
	pq, err := rego.New(regoOpts...).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPolicy, err)
	}
	e.query = pq

	// A policy set in the wrong package, or one without a deny rule, answers
	// every query with nothing.
	if _, err := e.deny(ctx, buildInput(Actor{}, OpPlanArchive, Target{Kind: domain.EntityPlan})); err != nil {
		return nil, err
	}
	return e, nil
}

func mergePolicies(def Policy, extra []Policy) []Policy {
	out := []Policy{def}
	for _, p := range extra {
		if p.Name == DefaultPolicyName {
			out[0] = p
			continue
		}
		out = append(out, p)
	}
	return out
}

// PolicyNames returns the names of the compiled policies, default first.
func (e *Engine) PolicyNames() []string {
	names := make([]string, len(e.policies))
	for i, p := range e.policies {
		names[i] = p.Name
	}
	return names
}

// Authorize evaluates the policies for one request. Any deny message means
// the operation is refused; the messages become the decision's reasons.
// An actor without an id is refused whatever the policies say.
func (e *Engine) Authorize(ctx context.Context, actor Actor, op Operation, target Target) (Decision, error) {
	if !op.Valid() {
		return Decision{}, domain.NewValidationError("operation", "unknown operation %q", op)
	}

	reasons, err := e.deny(ctx, buildInput(actor, op, target))
	if err != nil {
		return Decision{}, fmt.Errorf("evaluating policy for %s: %w", op, err)
	}
	if actor.ID == "" && !slices.Contains(reasons, reasonMissingActor) {
		reasons = append(reasons, reasonMissingActor)
	}
	sort.Strings(reasons)

	return Decision{
		ID:          uuid.New().String(),
		Allowed:     len(reasons) == 0,
		Reasons:     reasons,
		EvaluatedAt: e.now(),
	}, nil
}

// deny evaluates the deny set for input. An undefined or non-set result is
// ErrInvalidPolicy, never an empty set.
func (e *Engine) deny(ctx context.Context, input map[string]any) ([]string, error) {
	rs, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, err
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return nil, fmt.Errorf("%w: data.%s.deny is undefined", ErrInvalidPolicy, PolicyPackage)
	}

	var reasons []string
	for _, expr := range rs[0].Expressions {
		set, ok := expr.Value.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: data.%s.deny is %T, want a set of strings", ErrInvalidPolicy, PolicyPackage, expr.Value)
		}
		for _, item := range set {
			msg, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: deny message %v is not a string", ErrInvalidPolicy, item)
			}
			reasons = append(reasons, msg)
		}
	}
	return reasons, nil
}

func buildInput(actor Actor, op Operation, target Target) map[string]any {
	roles := make([]any, 0, len(actor.Roles))
	for _, r := range actor.Roles {
		roles = append(roles, r)
	}
	caps := make([]any, 0, len(actor.Capabilities))
	for _, c := range actor.Capabilities {
		caps = append(caps, string(c))
	}
	return map[string]any{
		"operation": string(op),
		"actor": map[string]any{
			"id":           actor.ID,
			"roles":        roles,
			"capabilities": caps,
		},
		"target": map[string]any{
			"kind":       string(target.Kind),
			"id":         target.ID,
			"project_id": target.ProjectID,
			"assignee":   target.Assignee,
		},
	}
}
