// Package scanner implements the Rule Scanner (spec.md §4.9): it
// inspects the runtime's installed class table and proposes capture
// rules by pattern-matching input names, without executing any node.
package scanner

import (
	"github.com/graphforge/nodemeta/pkg/rules"
)

// Mode selects which classes a scan considers.
type Mode string

const (
	// ModeNewOnly considers only classes the registry does not
	// already carry rules for.
	ModeNewOnly Mode = "new_only"
	// ModeAll considers every class in the table.
	ModeAll Mode = "all"
	// ModeExistingOnly considers only classes the registry already
	// carries rules for (useful for "what's still missing" sweeps).
	ModeExistingOnly Mode = "existing_only"
)

// InputSpec describes one declared input on a class, as reported by
// the runtime's class table (spec.md §6.1, ClassSpec).
type InputSpec struct {
	Name string
	Type string // e.g. "INT", "FLOAT", "STRING", "COMBO"

	// ComboValues holds the declared option strings for a COMBO-type
	// input, used to detect a combined sampler/scheduler value shape
	// (e.g. "euler_karras") without needing a live graph value.
	ComboValues []string
}

// ClassSpec is one class's declared input schema.
type ClassSpec struct {
	Inputs []InputSpec
}

// ClassTable is the runtime's installed class table.
type ClassTable map[rules.ClassName]ClassSpec

// Options configures one scan call.
type Options struct {
	ExcludeKeywords []string
	Mode            Mode
	MissingLens     bool

	// ForcedNodeClasses are always present in Proposal.ForcedNodeClasses,
	// even as an empty mapping, regardless of whether any heuristic
	// matched (spec.md §4.9).
	ForcedNodeClasses []rules.ClassName
}

// Proposal is the scanner's JSON-serializable output.
type Proposal struct {
	Classes           map[rules.ClassName]rules.NodeClassRules `json:"classes"`
	ForcedNodeClasses map[rules.ClassName]rules.NodeClassRules `json:"forced_node_classes"`
}

// DiffReport summarizes one scan: how many classes were scanned vs
// proposed, how many fields were proposed in total, and whether the
// missing-lens baseline was served from cache.
type DiffReport struct {
	ClassesScanned    int
	ClassesProposed   int
	FieldsProposed    int
	BaselineCacheHit  bool
}
