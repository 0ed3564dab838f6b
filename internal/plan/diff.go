package plan

import (
	"github.com/alexanderramin/atelier/internal/domain"
	"github.com/pmezard/go-difflib/difflib"
)

// OutlineDiff returns a unified diff between the outlines of two plans, or
// "" when they are structurally identical.
func OutlineDiff(from, to *domain.ProjectPlan, fromName, toName string) (string, error) {
	var a, b string
	if from != nil {
		a = from.Outline()
	}
	if to != nil {
		b = to.Outline()
	}
	if a == b {
		return "", nil
	}
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(a),
		B:        difflib.SplitLines(b),
		FromFile: fromName,
		ToFile:   toName,
		Context:  2,
	})
}
