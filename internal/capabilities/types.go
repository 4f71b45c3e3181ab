package capabilities

import "gopkg.in/yaml.v3"

// Window is how a plan's usage counting window is anchored.
type Window string

const (
	WindowDaily   Window = "daily"   // resets on a cron schedule (UTC)
	WindowTrial   Window = "trial"   // starts window_days before trial expiry
	WindowBilling Window = "billing" // follows the billing cycle anchor
)

// Plan describes one usage tier.
type Plan struct {
	// Plan identifier (set during YAML unmarshaling)
	ID string `yaml:"-" json:"id"`

	DisplayName string `yaml:"display_name" json:"display_name"`
	// ReportAs is the plan name shown to clients; a trial reports as "pro".
	ReportAs string `yaml:"report_as" json:"report_as"`

	Limit      int    `yaml:"limit" json:"limit"`
	Window     Window `yaml:"window" json:"window"`
	WindowDays int    `yaml:"window_days" json:"window_days"`
	ResetCron  string `yaml:"reset_cron" json:"reset_cron"`
	LimitCode  string `yaml:"limit_code" json:"limit_code"`

	// ToolServers grants external tool server management and use.
	ToolServers bool `yaml:"tool_servers" json:"tool_servers"`
}

// ModelCapabilities is the catalog entry for one model.
type ModelCapabilities struct {
	ID            string `yaml:"-" json:"id"`
	Provider      string `yaml:"provider" json:"provider"`
	DisplayName   string `yaml:"display_name" json:"display_name"`
	SupportsTools bool   `yaml:"supports_tools" json:"supports_tools"`
	ContextWindow int    `yaml:"context_window" json:"context_window"`
	MaxOutput     int    `yaml:"max_output" json:"max_output"`
}

// PlanCatalog holds plans in file order.
type PlanCatalog struct {
	Plans []Plan `yaml:"-"`
}

// ModelCatalog holds models in file order.
type ModelCatalog struct {
	Models []ModelCapabilities `yaml:"-"`
}

// UnmarshalYAML preserves plan order from the YAML file
func (c *PlanCatalog) UnmarshalYAML(node *yaml.Node) error {
	var m struct {
		Plans map[string]Plan `yaml:"plans"`
	}
	if err := node.Decode(&m); err != nil {
		return err
	}
	for _, id := range orderedKeys(node, "plans") {
		if plan, ok := m.Plans[id]; ok {
			plan.ID = id
			c.Plans = append(c.Plans, plan)
		}
	}
	return nil
}

// UnmarshalYAML preserves model order from the YAML file
func (c *ModelCatalog) UnmarshalYAML(node *yaml.Node) error {
	var m struct {
		Models map[string]ModelCapabilities `yaml:"models"`
	}
	if err := node.Decode(&m); err != nil {
		return err
	}
	for _, id := range orderedKeys(node, "models") {
		if model, ok := m.Models[id]; ok {
			model.ID = id
			c.Models = append(c.Models, model)
		}
	}
	return nil
}

// orderedKeys returns the keys of the mapping under field, in document order.
func orderedKeys(node *yaml.Node, field string) []string {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value != field {
			continue
		}
		// Content alternates: key, value, key, value...
		inner := node.Content[i+1]
		keys := make([]string, 0, len(inner.Content)/2)
		for j := 0; j+1 < len(inner.Content); j += 2 {
			keys = append(keys, inner.Content[j].Value)
		}
		return keys
	}
	return nil
}
