package service

import (
	"context"
	"strings"
	"sync"

	"github.com/alexanderramin/atelier/internal/domain"
	tmpl "github.com/alexanderramin/atelier/internal/template"
)

type templateService struct {
	mu       sync.RWMutex
	library  *tmpl.Library
	observer UseCaseObserver
}

func NewTemplateService(library *tmpl.Library, observers ...UseCaseObserver) *templateService {
	return &templateService{
		library:  library,
		observer: useCaseObserverOrNoop(observers),
	}
}

// SetLibrary swaps in a reloaded library.
func (s *templateService) SetLibrary(library *tmpl.Library) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.library = library
}

func (s *templateService) lib() *tmpl.Library {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.library
}

func (s *templateService) List(ctx context.Context) ([]TemplateSummary, error) {
	lib := s.lib()
	schemas := lib.Catalog.List()
	out := make([]TemplateSummary, 0, len(schemas))
	for _, sc := range schemas {
		out = append(out, TemplateSummary{
			ID:          sc.ID,
			Name:        sc.Name,
			Version:     sc.Version,
			Discipline:  sc.Discipline,
			Stages:      sc.StageCount(),
			Tasks:       sc.TaskCount(),
			EffortHours: sc.EffortHours(),
			Default:     sc.ID == lib.Detector.Default(),
		})
	}
	return out, nil
}

func (s *templateService) Get(ctx context.Context, ref string) (*tmpl.TemplateSchema, error) {
	return resolveTemplate(s.lib().Catalog, ref)
}

func (s *templateService) Detect(ctx context.Context, b domain.Briefing) (det tmpl.Detection, err error) {
	done := observe(ctx, s.observer, "detect-template", nil)
	defer func() { done(err) }()

	return s.lib().Detector.Detect(b), nil
}

func (s *templateService) Rules(ctx context.Context) (string, []tmpl.RuleConfig) {
	d := s.lib().Detector
	return d.Default(), d.Rules()
}

// resolveTemplate matches an exact ID first, then IDs and names ignoring case.
func resolveTemplate(catalog *tmpl.Catalog, ref string) (*tmpl.TemplateSchema, error) {
	ref = strings.TrimSpace(ref)
	if sc, ok := catalog.Get(ref); ok {
		return sc, nil
	}
	for _, sc := range catalog.List() {
		if strings.EqualFold(sc.ID, ref) || strings.EqualFold(sc.Name, ref) {
			return sc, nil
		}
	}
	return nil, &domain.NotFoundError{Kind: "template", ID: ref}
}
