package template

import (
	"fmt"
	"sync"
)

// Catalog is the registry of available templates. Registration order is
// preserved for listing; a later registration with the same ID replaces the
// earlier definition in place, which lets user templates shadow builtins.
type Catalog struct {
	mu        sync.RWMutex
	templates map[string]*TemplateSchema
	order     []string
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{templates: make(map[string]*TemplateSchema)}
}

// Register validates and adds a template.
func (c *Catalog) Register(schema *TemplateSchema) error {
	if err := Validate(schema); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.templates[schema.ID]; !exists {
		c.order = append(c.order, schema.ID)
	}
	c.templates[schema.ID] = cloneSchema(schema)
	return nil
}

// MustRegister is like Register but panics on error. Intended for tests and
// static setup.
func (c *Catalog) MustRegister(schema *TemplateSchema) *Catalog {
	if err := c.Register(schema); err != nil {
		panic(fmt.Sprintf("template: %v", err))
	}
	return c
}

// Get returns a copy of the template with the given ID.
func (c *Catalog) Get(id string) (*TemplateSchema, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.templates[id]
	if !ok {
		return nil, false
	}
	return cloneSchema(s), true
}

// Has reports whether a template with the given ID is registered.
func (c *Catalog) Has(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.templates[id]
	return ok
}

// IDs returns the registered identifiers in registration order.
func (c *Catalog) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// List returns copies of all templates in registration order.
func (c *Catalog) List() []*TemplateSchema {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*TemplateSchema, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, cloneSchema(c.templates[id]))
	}
	return out
}

// Len returns the number of registered templates.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

func cloneSchema(s *TemplateSchema) *TemplateSchema {
	out := *s
	if s.Stages == nil {
		return &out
	}
	out.Stages = make([]StageConfig, len(s.Stages))
	for i, st := range s.Stages {
		cp := st
		if st.Tasks == nil {
			out.Stages[i] = cp
			continue
		}
		cp.Tasks = make([]TaskConfig, len(st.Tasks))
		for j, tc := range st.Tasks {
			t := tc
			if tc.DueOffsetDays != nil {
				d := *tc.DueOffsetDays
				t.DueOffsetDays = &d
			}
			cp.Tasks[j] = t
		}
		out.Stages[i] = cp
	}
	return &out
}
