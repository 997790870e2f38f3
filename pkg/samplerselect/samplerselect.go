// Package samplerselect implements the Sampler Selector (spec.md
// §4.5): it identifies candidate sampler nodes from a traced graph via
// Tier A (explicit membership) and Tier B (rule-backed heuristic)
// discovery, then picks a primary and orders any secondaries.
// Grounded on the teacher's two-tier classification style in
// pkg/algorithms/community_detection.go (membership set checked first,
// a scored fallback heuristic second, deterministic tie-breaks
// throughout).
package samplerselect

import (
	"sort"

	"github.com/graphforge/nodemeta/pkg/graphmodel"
	"github.com/graphforge/nodemeta/pkg/graphtrace"
	"github.com/graphforge/nodemeta/pkg/logging"
	"github.com/graphforge/nodemeta/pkg/rules"
	"github.com/graphforge/nodemeta/pkg/semfield"
)

// Tier distinguishes explicit sampler-registry membership from
// rule-backed heuristic discovery (spec.md §3, SamplerEntry.tier).
type Tier int

const (
	TierA Tier = iota // explicit membership in the Sampler Registry
	TierB             // rules define SAMPLER_NAME + (STEPS or START/END_STEP)
)

// Entry is one candidate sampler node (spec.md §3, SamplerEntry).
type Entry struct {
	NodeID      graphmodel.NodeID
	Tier        Tier
	SamplerName string
	Steps       *int
	StartStep   *int
	EndStep     *int
	RangeLen    int
	IsSegment   bool

	position int // index into trace order, for tie-breaking
}

// Mode selects the single-sampler selection policy (spec.md §4.5,
// "Configurable behavior").
type Mode int

const (
	ModeDefault  Mode = iota // prefer Tier A, then widest range, then farthest, then lowest id
	ModeFarthest             // farthest position in trace order
	ModeNearest              // nearest position in trace order
	ModeByID                 // a specific target node id
)

// Options configures one selection call.
type Options struct {
	Mode           Mode
	TargetNodeID   graphmodel.NodeID // consulted when Mode == ModeByID
	MultiSamplerCap int              // candidate count above which multi-sampler mode is enabled; 0 means use 1
}

// Result is the selector's output: the primary, plus every candidate
// (primary first) in emission order for multi-sampler metadata.
type Result struct {
	Primary   Entry
	Ordered   []Entry
	Warnings  []string
}

// Select discovers sampler candidates in trace order, then picks a
// primary and orders the full candidate list (spec.md §4.5).
func Select(
	g graphmodel.Graph,
	trace graphtrace.Result,
	samplerRegistry *rules.SamplerRegistry,
	captureRegistry ruleLookup,
	opts Options,
	logger logging.Logger,
) Result {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	candidates := discover(g, trace, samplerRegistry, captureRegistry, logger)
	if len(candidates) == 0 {
		return Result{}
	}

	cap := opts.MultiSamplerCap
	if cap <= 0 {
		cap = 1
	}

	var primary Entry
	switch opts.Mode {
	case ModeByID:
		primary = byID(candidates, opts.TargetNodeID)
	case ModeFarthest:
		primary = farthest(candidates)
	case ModeNearest:
		primary = nearest(candidates)
	default:
		primary = defaultPrimary(candidates)
	}

	ordered := orderWithPrimaryFirst(candidates, primary)

	var warnings []string
	if len(candidates) > cap {
		warnings = append(warnings, "candidate count exceeds multi-sampler cap; truncating")
		ordered = ordered[:cap]
	}
	warnings = append(warnings, segmentWarnings(candidates)...)

	return Result{Primary: primary, Ordered: ordered, Warnings: warnings}
}

// ruleLookup is the subset of *rules.Registry the selector needs: does
// a class carry SAMPLER_NAME together with STEPS or both of
// START_STEP/END_STEP (Tier B discovery, spec.md §4.5)?
type ruleLookup interface {
	Resolve(class rules.ClassName) (rules.NodeClassRules, bool)
}

func discover(g graphmodel.Graph, trace graphtrace.Result, samplerRegistry *rules.SamplerRegistry, captureRegistry ruleLookup, logger logging.Logger) []Entry {
	var out []Entry
	for pos, id := range trace.Order {
		node, ok := g.Get(id)
		if !ok {
			continue
		}
		class := rules.ClassName(node.ClassName)

		if samplerRegistry != nil && samplerRegistry.IsKnownSamplerClass(class) {
			entry := buildEntry(id, pos, TierA, node, captureRegistry)
			out = append(out, entry)
			continue
		}

		if captureRegistry == nil {
			continue
		}
		classRules, ok := captureRegistry.Resolve(class)
		if !ok {
			continue
		}
		_, hasSampler := classRules[semfield.SamplerName]
		_, hasSteps := classRules[semfield.Steps]
		_, hasStart := classRules[semfield.StartStep]
		_, hasEnd := classRules[semfield.EndStep]
		if hasSampler && (hasSteps || (hasStart && hasEnd)) {
			entry := buildEntry(id, pos, TierB, node, captureRegistry)
			out = append(out, entry)
		}
	}
	return out
}

func buildEntry(id graphmodel.NodeID, pos int, tier Tier, node graphmodel.Node, _ ruleLookup) Entry {
	e := Entry{NodeID: id, Tier: tier, position: pos}

	if v, ok := node.Inputs["sampler_name"]; ok {
		e.SamplerName = v.String()
	}
	if steps, ok := readInt(node, "steps"); ok {
		e.Steps = &steps
	}
	start, hasStart := readInt(node, "start_at_step")
	end, hasEnd := readInt(node, "end_at_step")
	if hasStart {
		e.StartStep = &start
	}
	if hasEnd {
		e.EndStep = &end
	}
	e.IsSegment = hasStart || hasEnd

	switch {
	case hasStart && hasEnd:
		e.RangeLen = end - start + 1
	case e.Steps != nil:
		e.RangeLen = *e.Steps
	default:
		e.RangeLen = 0
	}
	return e
}

func readInt(node graphmodel.Node, name string) (int, bool) {
	v, ok := node.Inputs[name]
	if !ok {
		return 0, false
	}
	scalar, ok := v.Scalar()
	if !ok {
		return 0, false
	}
	switch n := scalar.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// defaultPrimary implements spec.md §4.5's default primary-selection
// ladder: prefer Tier A, then widest range, then farther position,
// then smallest node id.
func defaultPrimary(candidates []Entry) Entry {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if better(c, best) {
			best = c
		}
	}
	return best
}

func better(a, b Entry) bool {
	if a.Tier != b.Tier {
		return a.Tier < b.Tier // TierA (0) beats TierB (1)
	}
	if a.RangeLen != b.RangeLen {
		return a.RangeLen > b.RangeLen
	}
	if a.position != b.position {
		return a.position > b.position // farther (later in BFS order) wins
	}
	return a.NodeID < b.NodeID
}

func farthest(candidates []Entry) Entry {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.position > best.position || (c.position == best.position && c.NodeID < best.NodeID) {
			best = c
		}
	}
	return best
}

func nearest(candidates []Entry) Entry {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.position < best.position || (c.position == best.position && c.NodeID < best.NodeID) {
			best = c
		}
	}
	return best
}

func byID(candidates []Entry, target graphmodel.NodeID) Entry {
	for _, c := range candidates {
		if c.NodeID == target {
			return c
		}
	}
	return defaultPrimary(candidates)
}

// orderWithPrimaryFirst renders the emitted candidate list: primary
// first, remainder by descending range length, then trace position,
// then node id (spec.md §4.5, "Ordering of the emitted list").
func orderWithPrimaryFirst(candidates []Entry, primary Entry) []Entry {
	rest := make([]Entry, 0, len(candidates))
	for _, c := range candidates {
		if c.NodeID == primary.NodeID {
			continue
		}
		rest = append(rest, c)
	}
	sort.SliceStable(rest, func(i, j int) bool {
		if rest[i].RangeLen != rest[j].RangeLen {
			return rest[i].RangeLen > rest[j].RangeLen
		}
		if rest[i].position != rest[j].position {
			return rest[i].position < rest[j].position
		}
		return rest[i].NodeID < rest[j].NodeID
	})
	return append([]Entry{primary}, rest...)
}

// segmentWarnings reports segment endpoints missing their counterpart
// and overlapping segment ranges (spec.md §4.5, log-only warnings).
func segmentWarnings(candidates []Entry) []string {
	var warnings []string
	var segments []Entry
	for _, c := range candidates {
		if c.IsSegment {
			if (c.StartStep == nil) != (c.EndStep == nil) {
				warnings = append(warnings, "segment endpoint missing its counterpart on node "+string(c.NodeID))
				continue
			}
			segments = append(segments, c)
		}
	}
	for i := 0; i < len(segments); i++ {
		for j := i + 1; j < len(segments); j++ {
			a, b := segments[i], segments[j]
			if a.StartStep == nil || a.EndStep == nil || b.StartStep == nil || b.EndStep == nil {
				continue
			}
			if *a.StartStep < *b.EndStep && *b.StartStep < *a.EndStep {
				warnings = append(warnings, "overlapping segment ranges on nodes "+string(a.NodeID)+" and "+string(b.NodeID))
			}
		}
	}
	return warnings
}
