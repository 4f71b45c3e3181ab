package capabilities

import (
	"embed"
	"fmt"
	"strings"

	"github.com/adhocore/gronx"
	"gopkg.in/yaml.v3"
)

//go:embed config/*.yaml
var configFiles embed.FS

// Plan identifiers used by the usage gate.
const (
	PlanFree  = "free"
	PlanTrial = "trial"
	PlanPro   = "pro"
)

// Registry holds the plan and model catalogs. It is read-only after load.
type Registry struct {
	plans  map[string]*Plan
	order  []string
	models []ModelCapabilities
}

// NewRegistry creates a registry from the embedded YAML files
func NewRegistry() (*Registry, error) {
	var plans PlanCatalog
	if err := loadFile("config/plans.yaml", &plans); err != nil {
		return nil, fmt.Errorf("failed to load plans: %w", err)
	}
	var models ModelCatalog
	if err := loadFile("config/models.yaml", &models); err != nil {
		return nil, fmt.Errorf("failed to load models: %w", err)
	}

	r := &Registry{
		plans:  make(map[string]*Plan, len(plans.Plans)),
		models: models.Models,
	}
	for i := range plans.Plans {
		p := &plans.Plans[i]
		if err := validatePlan(p); err != nil {
			return nil, err
		}
		r.plans[p.ID] = p
		r.order = append(r.order, p.ID)
	}

	for _, id := range []string{PlanFree, PlanTrial, PlanPro} {
		if _, ok := r.plans[id]; !ok {
			return nil, fmt.Errorf("plan catalog is missing %q", id)
		}
	}
	return r, nil
}

func loadFile(name string, out interface{}) error {
	data, err := configFiles.ReadFile(name)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", name, err)
	}
	return nil
}

func validatePlan(p *Plan) error {
	if p.Limit <= 0 {
		return fmt.Errorf("plan %s: limit must be positive", p.ID)
	}
	if p.LimitCode == "" {
		return fmt.Errorf("plan %s: limit_code is required", p.ID)
	}
	switch p.Window {
	case WindowDaily:
		if !gronx.IsValid(p.ResetCron) {
			return fmt.Errorf("plan %s: invalid reset_cron %q", p.ID, p.ResetCron)
		}
	case WindowTrial, WindowBilling:
		if p.WindowDays <= 0 {
			return fmt.Errorf("plan %s: window_days must be positive", p.ID)
		}
	default:
		return fmt.Errorf("plan %s: unknown window %q", p.ID, p.Window)
	}
	return nil
}

// Plan returns the plan with the given id
func (r *Registry) Plan(id string) (*Plan, error) {
	p, ok := r.plans[id]
	if !ok {
		return nil, fmt.Errorf("unknown plan: %s", id)
	}
	return p, nil
}

// Plans returns all plans ordered as defined in YAML
func (r *Registry) Plans() []*Plan {
	out := make([]*Plan, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.plans[id])
	}
	return out
}

// Model returns capabilities for a model id. Unknown models are an error.
func (r *Registry) Model(id string) (*ModelCapabilities, error) {
	for i := range r.models {
		if r.models[i].ID == id {
			return &r.models[i], nil
		}
	}
	return nil, fmt.Errorf("unknown model %s", id)
}

// ProviderModels returns the catalog models served by a provider
func (r *Registry) ProviderModels(provider string) []ModelCapabilities {
	var out []ModelCapabilities
	for _, m := range r.models {
		if strings.EqualFold(m.Provider, provider) {
			out = append(out, m)
		}
	}
	return out
}
