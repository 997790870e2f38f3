// Package fieldmap implements the SemanticFieldMap: the insertion-ordered
// result of one extraction call, rendered by walking the canonical
// SemanticField order and grouping enumerable families (LoRA slots,
// embeddings, CLIP models) slot-major. Kept separate from the Field
// Extractor so the Parameter Formatter and any diagnostics consumer can
// depend on the data shape without depending on extraction itself.
package fieldmap

import (
	"encoding/json"
	"fmt"

	"github.com/graphforge/nodemeta/pkg/semfield"
)

// Entry is one rendered (key, value) pair in canonical emission order.
type Entry struct {
	Key   string
	Value string
}

// Map accumulates extracted values for one save call. Scalar fields hold
// a single value; enumerable fields hold a 1-based slot -> value table,
// already consecutively renumbered by the caller (the Field Extractor
// owns gap removal; this type only renders what it is given).
type Map struct {
	scalar map[semfield.Field]string
	slots  map[semfield.Field]map[int]string

	hashDetail       map[string]string
	suppressHashDetail bool
}

// New returns an empty SemanticFieldMap.
func New() *Map {
	return &Map{
		scalar: make(map[semfield.Field]string),
		slots:  make(map[semfield.Field]map[int]string),
	}
}

// Set records a scalar field's rendered value. Calling Set on an
// enumerable field is a caller error; use SetSlot instead.
func (m *Map) Set(f semfield.Field, value string) {
	m.scalar[f] = value
}

// Get returns a scalar field's value, if present.
func (m *Map) Get(f semfield.Field) (string, bool) {
	v, ok := m.scalar[f]
	return v, ok
}

// Delete removes a scalar field, used by post-processing passes that
// suppress a field after it was tentatively set (e.g. a redundant
// negative prompt, or the unified positive prompt under dual-encoder
// handling).
func (m *Map) Delete(f semfield.Field) {
	delete(m.scalar, f)
}

// SetSlot records one slot of an enumerable field family (spec.md §4.6,
// "enumerated fields ... produce keys suffixed with a 1-based index").
func (m *Map) SetSlot(f semfield.Field, slot int, value string) {
	if m.slots[f] == nil {
		m.slots[f] = make(map[int]string)
	}
	m.slots[f][slot] = value
}

// SlotCount reports how many slots have been recorded for f.
func (m *Map) SlotCount(f semfield.Field) int {
	return len(m.slots[f])
}

// SetHash records one entry of the hash-detail block: "model", "vae",
// "lora:<display_name>", "embed:<display_name>" mapped to its 10-char
// truncated hash (spec.md §4.6, "Hashes summary").
func (m *Map) SetHash(key, truncatedHash string) {
	if m.hashDetail == nil {
		m.hashDetail = make(map[string]string)
	}
	m.hashDetail[key] = truncatedHash
}

// SetSuppressHashDetail controls whether HashDetail exposes the
// structured block to diagnostics consumers. It never affects the
// rendered "Hashes" field (spec.md §6, "no-hash-detail").
func (m *Map) SetSuppressHashDetail(suppress bool) {
	m.suppressHashDetail = suppress
}

// HashDetail returns a copy of the structured hash block, or nil when
// suppressed.
func (m *Map) HashDetail() map[string]string {
	if m.suppressHashDetail || len(m.hashDetail) == 0 {
		return nil
	}
	out := make(map[string]string, len(m.hashDetail))
	for k, v := range m.hashDetail {
		out[k] = v
	}
	return out
}

// Filter returns a copy of m containing only fields for which keep
// returns true, used by the Staged Encoder's minimal-stage allowlist
// (spec.md §4.8) without that caller needing access to Map's internals.
func (m *Map) Filter(keep func(semfield.Field) bool) *Map {
	out := New()
	for f, v := range m.scalar {
		if keep(f) {
			out.scalar[f] = v
		}
	}
	for f, slots := range m.slots {
		if !keep(f) {
			continue
		}
		copied := make(map[int]string, len(slots))
		for slot, v := range slots {
			copied[slot] = v
		}
		out.slots[f] = copied
	}
	if keep(semfield.HashesSummary) {
		for k, v := range m.hashDetail {
			out.SetHash(k, v)
		}
	}
	out.suppressHashDetail = m.suppressHashDetail
	return out
}

// Render walks the canonical SemanticField order and produces the final
// ordered entry list. Enumerable families are grouped slot-major: all
// fields of slot 1, then all fields of slot 2, and so on (spec.md §4.6
// scenario 3), inserted at the position of the family's first field.
// GeneratorVersion is always emitted last regardless of its position in
// the enumeration (spec.md §3).
func (m *Map) Render() []Entry {
	var out []Entry
	renderedFamily := map[string]bool{}

	for _, f := range semfield.Order {
		switch {
		case f == semfield.GeneratorVersion:
			continue
		case f == semfield.HashesSummary:
			if v, ok := m.renderHashesSummary(); ok {
				out = append(out, Entry{Key: f.String(), Value: v})
			}
		case semfield.Enumerable(f):
			prefix := semfield.SlotPrefix(f)
			if renderedFamily[prefix] {
				continue
			}
			renderedFamily[prefix] = true
			out = append(out, m.renderFamily(prefix)...)
		default:
			if v, ok := m.scalar[f]; ok {
				out = append(out, Entry{Key: f.String(), Value: v})
			}
		}
	}

	if v, ok := m.scalar[semfield.GeneratorVersion]; ok {
		out = append(out, Entry{Key: semfield.GeneratorVersion.String(), Value: v})
	}
	return out
}

func (m *Map) renderFamily(prefix string) []Entry {
	fields := familyFields(prefix)
	if len(fields) == 0 {
		return nil
	}

	maxSlot := 0
	for _, f := range fields {
		for slot := range m.slots[f] {
			if slot > maxSlot {
				maxSlot = slot
			}
		}
	}

	var out []Entry
	for slot := 1; slot <= maxSlot; slot++ {
		for _, f := range fields {
			v, ok := m.slots[f][slot]
			if !ok {
				continue
			}
			key := fmt.Sprintf("%s_%d %s", prefix, slot, semfield.SlotSuffix(f))
			out = append(out, Entry{Key: key, Value: v})
		}
	}
	return out
}

// familyFields returns the fields sharing a synthetic-key prefix, in
// canonical enumeration order.
func familyFields(prefix string) []semfield.Field {
	var out []semfield.Field
	for _, f := range semfield.Order {
		if semfield.Enumerable(f) && semfield.SlotPrefix(f) == prefix {
			out = append(out, f)
		}
	}
	return out
}

// renderHashesSummary marshals the hash-detail block into the JSON-object
// string emitted as the Hashes field. Go's map-to-JSON encoding sorts
// keys lexicographically, giving deterministic output without a
// dedicated ordering rule (spec.md §4.6 does not specify key order).
func (m *Map) renderHashesSummary() (string, bool) {
	if len(m.hashDetail) == 0 {
		return "", false
	}
	b, err := json.Marshal(m.hashDetail)
	if err != nil {
		return "", false
	}
	return string(b), true
}
