// Package rules implements the CaptureRule/NodeClassRules/RuleRegistry
// and SamplerRegistry data model of spec.md §3-§4.3: a layered,
// per-node-class mapping from semantic fields to extraction specs.
// Declarations (the closed selector/formatter/predicate enums) live in
// pkg/validation so that rule tables never need to import the engine
// that dispatches on them — the DAG split spec.md §9 calls for
// ("Cyclic module imports ... split declarations from rule tables").
package rules

import (
	"github.com/graphforge/nodemeta/pkg/semfield"
	"github.com/graphforge/nodemeta/pkg/validation"
)

// Spec is one extraction rule for one semantic field on one node
// class. Exactly one of FieldName, Prefix, or Fields is set, unless
// Selector is set, in which case none of those three are.
type Spec struct {
	FieldName string
	Prefix    string
	Fields    []string
	Selector  validation.SelectorKind
	Args      map[string]any

	Format   validation.FormatterKind
	Validate validation.PredicateKind

	InlineLoraCandidate bool
}

// NodeClassRules is the set of CaptureRules for one node class.
type NodeClassRules map[semfield.Field]Spec

// ClassName is a runtime class name, as reported by the host's
// class_table (spec.md §6.1).
type ClassName string

// Role is a sampler conditioning input role.
type Role string

const (
	RolePositive    Role = "positive"
	RoleNegative    Role = "negative"
	RoleLatentImage Role = "latent_image"
)

// SamplerClassRoles maps role -> the canonical input name carrying it
// for one sampler-like class.
type SamplerClassRoles map[Role]string
