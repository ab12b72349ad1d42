// Package wellness holds the dosha recommendation plans and the patient
// progress series shown on the wellness pages.
package wellness

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ayursutra/portal/internal/domain/identity"
)

//go:embed plans.yaml
var plansYAML []byte

type Plan struct {
	Dosha     string   `yaml:"-" json:"dosha"`
	Title     string   `yaml:"title" json:"title"`
	Focus     string   `yaml:"focus" json:"focus"`
	Diet      []string `yaml:"diet" json:"diet"`
	Lifestyle []string `yaml:"lifestyle" json:"lifestyle"`
}

// Plans maps a canonical dosha name to its recommendations.
type Plans map[string]Plan

func LoadPlans() (Plans, error) {
	return ParsePlans(plansYAML)
}

func ParsePlans(data []byte) (Plans, error) {
	var raw map[string]Plan
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse plans: %w", err)
	}
	plans := make(Plans, len(raw))
	for name, p := range raw {
		dosha, ok := identity.CanonicalDosha(name)
		if !ok {
			return nil, fmt.Errorf("plan for unknown dosha %q", name)
		}
		p.Dosha = dosha
		plans[dosha] = p
	}
	return plans, nil
}

// Get looks a plan up by any casing of the dosha name.
func (p Plans) Get(dosha string) (Plan, error) {
	canonical, ok := identity.CanonicalDosha(dosha)
	if !ok {
		return Plan{}, ErrPlanNotFound
	}
	plan, ok := p[canonical]
	if !ok {
		return Plan{}, ErrPlanNotFound
	}
	return plan, nil
}
