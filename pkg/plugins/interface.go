// Package plugins implements layer 2 of the Rule Registry (spec.md
// §4.3): discovery and loading of extension modules, human-authored
// YAML documents that contribute CaptureRule and sampler-role tables
// sitting between the immutable built-in defaults and the user layer.
// Grounded on the teacher's EnterprisePlugin discovery idiom
// (pkg/plugins/loader.go: glob a directory, load each file, continue
// past per-file failures) but rewritten around data documents instead
// of compiled .so code — this module never executes extension code,
// it only parses rule tables the host's class table will later be
// checked against.
package plugins

import (
	"github.com/graphforge/nodemeta/pkg/rules"
)

// Module is one parsed extension module: its source file name (for
// diagnostics and the "*_examples"/"__" skip pattern) and the rule
// tables it contributes.
type Module struct {
	Name          string
	CaptureRules  map[rules.ClassName]rules.NodeClassRules
	SamplerRoles  map[rules.ClassName]rules.SamplerClassRoles
}

// moduleDoc is the YAML wire shape of one extension module file.
type moduleDoc struct {
	Captures map[string]map[string]ruleSpecYAML `yaml:"captures"`
	Samplers map[string]map[string]string       `yaml:"samplers"`
}

// ruleSpecYAML mirrors validation.RuleSpecDoc but with YAML tags,
// since extension modules are authored in YAML per SPEC_FULL.md's
// domain stack (user capture/sampler documents stay JSON; extension
// modules are a separate, human-authored surface spec.md leaves
// unspecified).
type ruleSpecYAML struct {
	FieldName           string         `yaml:"field_name,omitempty"`
	Prefix              string         `yaml:"prefix,omitempty"`
	Fields              []string       `yaml:"fields,omitempty"`
	Selector            string         `yaml:"selector,omitempty"`
	Args                map[string]any `yaml:"args,omitempty"`
	Format              string         `yaml:"format,omitempty"`
	Validate            string         `yaml:"validate,omitempty"`
	InlineLoraCandidate bool           `yaml:"inline_lora_candidate,omitempty"`
}
