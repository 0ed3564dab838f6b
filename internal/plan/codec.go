package plan

import (
	"encoding/json"
	"fmt"

	"github.com/alexanderramin/atelier/internal/domain"
	"gopkg.in/yaml.v3"
)

// Encode serializes a plan, including its history, to JSON.
func Encode(p *domain.ProjectPlan) ([]byte, error) {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding plan: %w", err)
	}
	return data, nil
}

// Decode parses a plan produced by Encode and checks its invariants.
func Decode(data []byte) (*domain.ProjectPlan, error) {
	var p domain.ProjectPlan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decoding plan: %w", err)
	}
	if p.ProjectID == "" {
		return nil, domain.NewValidationError("project_id", "missing in encoded plan")
	}
	if p.Stages == nil {
		p.Stages = []domain.Stage{}
	}
	if p.History == nil {
		p.History = []domain.HistoryEntry{}
	}
	if err := p.CheckInvariants(); err != nil {
		return nil, fmt.Errorf("decoding plan: %w", err)
	}
	return &p, nil
}

// EncodeYAML renders the plan as YAML for human-oriented export. It goes
// through the JSON form so both exports share field names.
func EncodeYAML(p *domain.ProjectPlan) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encoding plan: %w", err)
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("encoding plan: %w", err)
	}
	out, err := yaml.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("encoding plan: %w", err)
	}
	return out, nil
}
