package extractor

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"github.com/graphforge/nodemeta/pkg/capterr"
	"github.com/graphforge/nodemeta/pkg/graphmodel"
	"github.com/graphforge/nodemeta/pkg/rules"
	"github.com/graphforge/nodemeta/pkg/semfield"
	"github.com/graphforge/nodemeta/pkg/validation"
)

// extractValues dispatches one CaptureRule's extraction spec variant
// against a node's input snapshot (spec.md §3, CaptureRule variants).
func extractValues(field semfield.Field, node graphmodel.Node, spec rules.Spec) ([]any, error) {
	switch {
	case spec.Selector != "":
		return runSelector(spec.Selector, field, node, spec.Args)
	case spec.FieldName != "":
		v, ok := node.Inputs[spec.FieldName]
		if !ok {
			return nil, nil
		}
		raw, ok := v.Scalar()
		if !ok {
			return nil, nil
		}
		return []any{raw}, nil
	case spec.Prefix != "":
		return enumeratePrefix(node, spec.Prefix), nil
	case len(spec.Fields) > 0:
		return enumerateFields(node, spec.Fields), nil
	default:
		return nil, nil
	}
}

func runSelector(kind validation.SelectorKind, field semfield.Field, node graphmodel.Node, args map[string]any) ([]any, error) {
	switch kind {
	case validation.SelectorParseInlineLoraTags:
		return selectParseInlineLoraTags(field, node, args)
	case validation.SelectorSplitSchedulerCombo:
		return selectSplitSchedulerCombo(field, node, args)
	case validation.SelectorStackByPrefix:
		return selectStackByPrefix(node, args)
	case validation.SelectorCollectLorasFromLoader:
		return selectCollectLorasFromLoader(field, node, args)
	default:
		return nil, fmt.Errorf("%w: unknown selector %q", capterr.ErrRuleShape, kind)
	}
}

// selectParseInlineLoraTags scans a text input for <lora:name:sm[:sc]>
// occurrences (case-insensitive per the runtime's own inline-tag
// convention) and returns the slice matching field's role in the tuple.
func selectParseInlineLoraTags(field semfield.Field, node graphmodel.Node, args map[string]any) ([]any, error) {
	sourceField, _ := args["field"].(string)
	if sourceField == "" {
		sourceField = "text"
	}
	v, ok := node.Inputs[sourceField]
	if !ok {
		return nil, nil
	}
	matches := parseInlineLoraTags(v.String())

	var out []any
	for _, mt := range matches {
		switch field {
		case semfield.LoraModelName, semfield.LoraModelHash:
			out = append(out, mt.name)
		case semfield.LoraStrengthModel:
			out = append(out, mt.strengthModel)
		case semfield.LoraStrengthClip:
			out = append(out, mt.strengthClip)
		}
	}
	return out, nil
}

type loraTagMatch struct {
	name          string
	strengthModel string
	strengthClip  string
}

// inlineLoraTagPattern matches both <lora:...> and <LoRA:...> spellings
// (case-insensitive inline LoRA tags), with an optional separate
// clip-strength component.
var inlineLoraTagPattern = regexp.MustCompile(`(?i)<lora:([^:>]+):([0-9.]+)(?::([0-9.]+))?>`)

func parseInlineLoraTags(text string) []loraTagMatch {
	raw := inlineLoraTagPattern.FindAllStringSubmatch(text, -1)
	out := make([]loraTagMatch, 0, len(raw))
	for _, mt := range raw {
		sm := mt[2]
		sc := mt[3]
		if sc == "" {
			sc = sm
		}
		out = append(out, loraTagMatch{name: mt[1], strengthModel: sm, strengthClip: sc})
	}
	return out
}

// scanInlineLoraTags implements the opt-in half of spec.md §4.6's
// inline-LoRA rule: only prompt texts whose rule carries
// inline_lora_candidate = true are scanned.
func scanInlineLoraTags(acc *accumulators, id graphmodel.NodeID, text string, ctx Context) {
	matches := parseInlineLoraTags(text)
	if len(matches) == 0 {
		return
	}

	names := make([]any, len(matches))
	hashes := make([]any, len(matches))
	sm := make([]any, len(matches))
	sc := make([]any, len(matches))
	for i, mt := range matches {
		names[i] = mt.name
		hashes[i] = mt.name
		sm[i] = mt.strengthModel
		sc[i] = mt.strengthClip
	}

	fam := acc.family("Lora")
	fam.addSlots(id, semfield.LoraModelName, validation.FormatterCleanModelName, names, "inline", ctx)
	fam.addSlots(id, semfield.LoraModelHash, validation.FormatterCalcLoraHash, hashes, "inline", ctx)
	fam.addSlots(id, semfield.LoraStrengthModel, "", sm, "inline", ctx)
	fam.addSlots(id, semfield.LoraStrengthClip, "", sc, "inline", ctx)
}

// selectSplitSchedulerCombo reads a combined sampler/scheduler input
// and returns the element matching field's role (spec.md §4.6,
// split_scheduler_combo).
func selectSplitSchedulerCombo(field semfield.Field, node graphmodel.Node, args map[string]any) ([]any, error) {
	sourceField, _ := args["field"].(string)
	if sourceField == "" {
		sourceField = "scheduler"
	}
	v, ok := node.Inputs[sourceField]
	if !ok {
		return nil, nil
	}
	raw, ok := v.Scalar()
	if !ok {
		return nil, nil
	}
	sampler, scheduler, ok := splitSchedulerCombo(raw)
	if !ok {
		return nil, fmt.Errorf("%w: unrecognized scheduler combo shape", capterr.ErrExtraction)
	}
	switch field {
	case semfield.SamplerName:
		return []any{sampler}, nil
	case semfield.Scheduler:
		return []any{scheduler}, nil
	default:
		return nil, nil
	}
}

// selectStackByPrefix reads every input named "<prefix><n>" in
// ascending n, optionally truncated to a counter_key input's integer
// value, and optionally drops entries resolving to the literal "None"
// (spec.md §4.6, select_stack_by_prefix). List-like inputs already
// resolve to their first element through InputValue.Scalar, so
// filter_none's "for list-like values use the first element" clause
// needs no separate handling here.
func selectStackByPrefix(node graphmodel.Node, args map[string]any) ([]any, error) {
	prefix, _ := args["prefix"].(string)
	if prefix == "" {
		return nil, fmt.Errorf("%w: select_stack_by_prefix requires args.prefix", capterr.ErrRuleShape)
	}
	counterKey, _ := args["counter_key"].(string)
	filterNone, _ := args["filter_none"].(bool)

	values := enumeratePrefix(node, prefix)

	if counterKey != "" {
		if v, ok := node.Inputs[counterKey]; ok {
			if raw, ok := v.Scalar(); ok {
				if n, ok := toInt(raw); ok && n >= 0 && n < len(values) {
					values = values[:n]
				}
			}
		}
	}

	if filterNone {
		values = dropNoneValues(values)
	}
	return values, nil
}

// dropNoneValues removes entries whose value is the literal string
// "None", matching filter_none's contract (spec.md §4.6).
func dropNoneValues(values []any) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok && s == "None" {
			continue
		}
		out = append(out, v)
	}
	return out
}

// selectCollectLorasFromLoader inspects structured list-of-object
// inputs first (lora_stack, loras, loaded_loras), falling back to
// inline-tag text parsing only if none exists (spec.md §4.6,
// collect_loras_from_loader).
func selectCollectLorasFromLoader(field semfield.Field, node graphmodel.Node, args map[string]any) ([]any, error) {
	subKey, _ := args["field"].(string)
	if subKey == "" {
		return nil, fmt.Errorf("%w: collect_loras_from_loader requires args.field", capterr.ErrRuleShape)
	}

	for _, key := range []string{"lora_stack", "loras", "loaded_loras"} {
		v, ok := node.Inputs[key]
		if !ok {
			continue
		}
		items, ok := v.IsList()
		if !ok {
			continue
		}
		var out []any
		for _, item := range items {
			nested, ok := item.AsNested()
			if !ok {
				out = append(out, nil)
				continue
			}
			sub, ok := nested[subKey]
			if !ok {
				out = append(out, nil)
				continue
			}
			val, _ := sub.Scalar()
			out = append(out, val)
		}
		if len(out) > 0 {
			return out, nil
		}
	}

	return selectParseInlineLoraTags(field, node, map[string]any{"field": "text"})
}

// indexedValue pairs a parsed numeric suffix with its input value, for
// sorting prefix-enumerated inputs into ascending suffix order.
type indexedValue struct {
	n   int
	val any
}

// enumeratePrefix collects every input named "<prefix><n>" in ascending
// n (spec.md §3, CaptureRule "{prefix: S}" variant).
func enumeratePrefix(node graphmodel.Node, prefix string) []any {
	var found []indexedValue
	for name, v := range node.Inputs {
		if len(name) <= len(prefix) || name[:len(prefix)] != prefix {
			continue
		}
		n, err := strconv.Atoi(name[len(prefix):])
		if err != nil {
			continue
		}
		raw, ok := v.Scalar()
		if !ok {
			continue
		}
		found = append(found, indexedValue{n: n, val: raw})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].n < found[j].n })

	out := make([]any, len(found))
	for i, f := range found {
		out[i] = f.val
	}
	return out
}

// enumerateFields collects a fixed ordered list of input names (spec.md
// §3, CaptureRule "{fields: [S1..Sn]}" variant), skipping names absent
// from this node's input snapshot.
func enumerateFields(node graphmodel.Node, names []string) []any {
	var out []any
	for _, name := range names {
		v, ok := node.Inputs[name]
		if !ok {
			continue
		}
		raw, ok := v.Scalar()
		if !ok {
			continue
		}
		out = append(out, raw)
	}
	return out
}
