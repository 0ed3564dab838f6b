package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/alexanderramin/atelier/internal/domain"
	"github.com/google/uuid"
)

var testShortIDCounter atomic.Int64

// FixedNow is the reference instant used by fixtures and fixed clocks.
var FixedNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// FixedClock returns a clock that always reports FixedNow.
func FixedClock() func() time.Time {
	return func() time.Time { return FixedNow }
}

// SteppingClock returns a clock that advances one second per call, starting
// at FixedNow.
func SteppingClock() func() time.Time {
	var n atomic.Int64
	return func() time.Time {
		return FixedNow.Add(time.Duration(n.Add(1)) * time.Second)
	}
}

// Plan options
type PlanOption func(*domain.ProjectPlan)

func WithShortID(id string) PlanOption {
	return func(p *domain.ProjectPlan) {
		p.ShortID = id
	}
}

func WithTemplateID(id string) PlanOption {
	return func(p *domain.ProjectPlan) {
		p.TemplateID = id
	}
}

func WithBriefing(b domain.Briefing) PlanOption {
	return func(p *domain.ProjectPlan) {
		p.Briefing = b
	}
}

func WithPlanStatus(s domain.PlanStatus) PlanOption {
	return func(p *domain.ProjectPlan) {
		p.Status = s
	}
}

// WithStage appends a stage holding one pending task per label.
func WithStage(label string, taskLabels ...string) PlanOption {
	return func(p *domain.ProjectPlan) {
		st := domain.Stage{
			ID:        uuid.New().String(),
			ProjectID: p.ProjectID,
			Label:     label,
			Position:  len(p.Stages),
			Status:    domain.StageNotStarted,
			Tasks:     []domain.Task{},
			CreatedAt: FixedNow,
			UpdatedAt: FixedNow,
		}
		for i, tl := range taskLabels {
			st.Tasks = append(st.Tasks, domain.Task{
				ID:        uuid.New().String(),
				StageID:   st.ID,
				Label:     tl,
				Status:    domain.TaskPending,
				Position:  i,
				CreatedAt: FixedNow,
				UpdatedAt: FixedNow,
			})
		}
		p.Stages = append(p.Stages, st)
	}
}

func defaultShortID(name string) string {
	upper := strings.ToUpper(name)
	var letters []byte
	for i := 0; i < len(upper) && len(letters) < 3; i++ {
		if upper[i] >= 'A' && upper[i] <= 'Z' {
			letters = append(letters, upper[i])
		}
	}
	for len(letters) < 3 {
		letters = append(letters, 'X')
	}
	n := testShortIDCounter.Add(1)
	return fmt.Sprintf("%s%02d", string(letters), n)
}

// NewTestPlan builds an active, empty-history plan. Stages come from
// WithStage options, applied in order.
func NewTestPlan(name string, opts ...PlanOption) *domain.ProjectPlan {
	p := &domain.ProjectPlan{
		ProjectID:  uuid.New().String(),
		ShortID:    defaultShortID(name),
		Name:       name,
		TemplateID: "generic",
		Briefing:   domain.Briefing{"type": "residential"},
		Status:     domain.PlanActive,
		CreatedAt:  FixedNow,
		UpdatedAt:  FixedNow,
		Stages:     []domain.Stage{},
		History:    []domain.HistoryEntry{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}
