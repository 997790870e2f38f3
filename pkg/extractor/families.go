package extractor

import (
	"github.com/graphforge/nodemeta/pkg/graphmodel"
	"github.com/graphforge/nodemeta/pkg/logging"
	"github.com/graphforge/nodemeta/pkg/semfield"
	"github.com/graphforge/nodemeta/pkg/validation"
)

// slotEntry is one position within an enumerable family (one LoRA slot,
// one CLIP-model slot, one embedding reference), holding whichever
// sub-fields have been filled in for it so far.
type slotEntry struct {
	values map[semfield.Field]string
	source string // "structured" or "inline"; decides dedup precedence
}

// family accumulates slotEntry values across every node touched during
// one extraction call, preserving the node-visitation order and, within
// a node, the slot order the rule's extraction produced (spec.md §4.6,
// "LoRA alignment invariant").
type family struct {
	byNode    map[graphmodel.NodeID][]*slotEntry
	touched   map[graphmodel.NodeID]bool
	nodeOrder []graphmodel.NodeID
}

func newFamily() *family {
	return &family{
		byNode:  map[graphmodel.NodeID][]*slotEntry{},
		touched: map[graphmodel.NodeID]bool{},
	}
}

// addSlots records one field's contribution to this family for a node:
// rawValues is the per-slot list extracted for field, in slot order.
// Every call for the same node must produce the same slot count for the
// alignment invariant to hold; callers from the same CaptureRule set
// always do, since they enumerate the same underlying input shape.
func (f *family) addSlots(id graphmodel.NodeID, field semfield.Field, format validation.FormatterKind, rawValues []any, source string, ctx Context) {
	if len(rawValues) == 0 {
		return
	}
	if !f.touched[id] {
		f.touched[id] = true
		f.nodeOrder = append(f.nodeOrder, id)
	}

	slots := f.byNode[id]
	for len(slots) < len(rawValues) {
		slots = append(slots, &slotEntry{values: map[semfield.Field]string{}})
	}

	for i, raw := range rawValues {
		if raw == nil {
			continue
		}
		rendered, _, err := applyFormatter(format, raw, familyFor(field), ctx)
		if err != nil {
			ctx.logger().Warn("slot field format failed",
				logging.NodeID(string(id)), logging.SemanticField(field.String()), logging.Error(err))
			continue
		}
		slots[i].values[field] = rendered
		if slots[i].source == "" || source == "structured" {
			slots[i].source = source
		}
	}

	f.byNode[id] = slots
}

// flatten returns every slot across every node, in first-touch node
// order then in-node slot order.
func (f *family) flatten() []*slotEntry {
	var out []*slotEntry
	for _, id := range f.nodeOrder {
		out = append(out, f.byNode[id]...)
	}
	return out
}

type accumulators struct {
	families     map[string]*family
	scalarHashes map[string]string
}

func newAccumulators() *accumulators {
	return &accumulators{
		families:     map[string]*family{},
		scalarHashes: map[string]string{},
	}
}

func (a *accumulators) family(name string) *family {
	f := a.families[name]
	if f == nil {
		f = newFamily()
		a.families[name] = f
	}
	return f
}
