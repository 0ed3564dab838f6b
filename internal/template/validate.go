package template

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidTemplate marks a structurally invalid template or rule set. It is
// a configuration error: materialization aborts without producing a plan.
var ErrInvalidTemplate = errors.New("invalid template")

var validate *validator.Validate

func init() {
	validate = validator.New()

	// Report fields by their file names (effort_hours, not EffortHours).
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation("nonblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}

// ValidateSchema checks a TemplateSchema for structural errors.
// Returns a slice of errors (empty if valid).
func ValidateSchema(schema *TemplateSchema) []error {
	if schema == nil {
		return []error{fmt.Errorf("template is nil")}
	}

	errs := structErrors(schema)

	stageIDs := map[string]bool{}
	taskIDs := map[string]bool{}
	for i, st := range schema.Stages {
		if st.ID != "" {
			if stageIDs[st.ID] {
				errs = append(errs, fmt.Errorf("stage[%d]: duplicate id %q", i, st.ID))
			}
			stageIDs[st.ID] = true
		}
		errs = append(errs, checkBlueprint(fmt.Sprintf("stage[%d]", i), st.Label, st.IncludeIf)...)

		for j, tc := range st.Tasks {
			where := fmt.Sprintf("stage[%d].task[%d]", i, j)
			if tc.ID != "" {
				if taskIDs[tc.ID] {
					errs = append(errs, fmt.Errorf("%s: duplicate id %q", where, tc.ID))
				}
				taskIDs[tc.ID] = true
			}
			errs = append(errs, checkBlueprint(where, tc.Label, tc.IncludeIf)...)
		}
	}

	return errs
}

// Validate runs ValidateSchema and folds the result into a single error
// wrapping ErrInvalidTemplate.
func Validate(schema *TemplateSchema) error {
	errs := ValidateSchema(schema)
	if len(errs) == 0 {
		return nil
	}
	id := ""
	if schema != nil {
		id = schema.ID
	}
	return fmt.Errorf("%w %q: %w", ErrInvalidTemplate, id, errors.Join(errs...))
}

// ValidateRules checks a rule set against a catalog: every predicate must
// compile and every referenced template must exist.
func ValidateRules(rules *RulesFile, catalog *Catalog) []error {
	errs := structErrors(rules)
	if rules.Default != "" && !catalog.Has(rules.Default) {
		errs = append(errs, fmt.Errorf("default: unknown template %q", rules.Default))
	}
	for i, r := range rules.Rules {
		if r.When != "" {
			if _, err := CompilePredicate(r.When); err != nil {
				errs = append(errs, fmt.Errorf("rule[%d]: when: %w", i, err))
			}
		}
		if r.Template != "" && !catalog.Has(r.Template) {
			errs = append(errs, fmt.Errorf("rule[%d]: unknown template %q", i, r.Template))
		}
	}
	return errs
}

func checkBlueprint(where, label, includeIf string) []error {
	var errs []error
	if includeIf != "" {
		if _, err := CompilePredicate(includeIf); err != nil {
			errs = append(errs, fmt.Errorf("%s: include_if: %w", where, err))
		}
	}
	expanded, err := ExpandLabel(label, nil)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("%s: label: %w", where, err))
	case label != "" && strings.TrimSpace(expanded) == "":
		errs = append(errs, fmt.Errorf("%s: label is blank when the briefing omits its placeholders; add a fallback", where))
	}
	return errs
}

func structErrors(s any) []error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []error{err}
	}
	out := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, fmt.Errorf("%s", formatFieldError(fe)))
	}
	return out
}

func formatFieldError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Namespace())
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "nonblank":
		return fmt.Sprintf("%s cannot be blank", field)
	case "min":
		return fmt.Sprintf("%s must have at least %s items", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be >= %s", field, fe.Param())
	}
	return fmt.Sprintf("%s failed %s", field, fe.Tag())
}
