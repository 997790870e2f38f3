package extractor

import (
	"regexp"

	"github.com/graphforge/nodemeta/pkg/fieldmap"
	"github.com/graphforge/nodemeta/pkg/graphmodel"
	"github.com/graphforge/nodemeta/pkg/semfield"
	"github.com/graphforge/nodemeta/pkg/validation"
)

// finalizeFamilies converts the accumulated per-node family slots into
// the map's final consecutively-numbered slots: None-named LoRA slots
// are dropped, inline LoRA entries duplicating a structured one by name
// are suppressed, and every surviving slot's fields are written under
// its final 1-based index (spec.md §4.6, §3 invariants).
func finalizeFamilies(m *fieldmap.Map, acc *accumulators, ctx Context) {
	for _, famName := range []string{"Lora", "Clip", "Embedding"} {
		fam := acc.families[famName]
		if fam == nil {
			continue
		}
		entries := fam.flatten()
		if famName == "Lora" {
			entries = dropNoneLoraSlots(entries)
			entries = dedupLoraByName(entries)
		}
		writeFamilySlots(m, famName, entries)
	}

	for key, hash := range acc.scalarHashes {
		m.SetHash(key, hash)
	}
}

func writeFamilySlots(m *fieldmap.Map, famName string, entries []*slotEntry) {
	for i, e := range entries {
		slot := i + 1
		for field, val := range e.values {
			m.SetSlot(field, slot, val)
		}
		switch famName {
		case "Lora":
			name, hasName := e.values[semfield.LoraModelName]
			hash, hasHash := e.values[semfield.LoraModelHash]
			if hasName && hasHash {
				m.SetHash("lora:"+name, hash)
			}
		case "Embedding":
			name, hasName := e.values[semfield.EmbeddingName]
			hash, hasHash := e.values[semfield.EmbeddingHash]
			if hasName && hasHash {
				m.SetHash("embed:"+name, hash)
			}
		}
	}
}

// dropNoneLoraSlots implements spec.md §3's invariant: "A LoRA slot
// whose resolved name is the literal string 'None' is dropped
// entirely (name, hash, strengths)."
func dropNoneLoraSlots(entries []*slotEntry) []*slotEntry {
	out := make([]*slotEntry, 0, len(entries))
	for _, e := range entries {
		if name, ok := e.values[semfield.LoraModelName]; ok && name == "None" {
			continue
		}
		out = append(out, e)
	}
	return out
}

// dedupLoraByName implements spec.md §4.6's inline-tag opt-in rule:
// "If both structured LoRA data and inline tags yield entries with
// matching names, the structured entry wins and the inline entry is
// suppressed."
func dedupLoraByName(entries []*slotEntry) []*slotEntry {
	var out []*slotEntry
	seen := map[string]int{}
	for _, e := range entries {
		name, ok := e.values[semfield.LoraModelName]
		if !ok {
			out = append(out, e)
			continue
		}
		if idx, exists := seen[name]; exists {
			if e.source == "structured" && out[idx].source != "structured" {
				out[idx] = e
			}
			continue
		}
		seen[name] = len(out)
		out = append(out, e)
	}
	return out
}

var embeddingTokenPattern = regexp.MustCompile(`embedding:([A-Za-z0-9_./-]+)`)

// scanEmbeddings implements spec.md §4.6's "Embedding handling": prompt
// text is scanned for embedding:NAME references after every prompt
// field has been extracted, each distinct name resolved (family=
// embedding) and hashed, indexed by name rather than position.
func scanEmbeddings(m *fieldmap.Map, acc *accumulators, ctx Context) {
	seen := map[string]bool{}
	var names []string
	for _, f := range []semfield.Field{semfield.PositivePrompt, semfield.NegativePrompt, semfield.T5Prompt, semfield.CLIPPrompt} {
		text, ok := m.Get(f)
		if !ok {
			continue
		}
		for _, match := range embeddingTokenPattern.FindAllStringSubmatch(text, -1) {
			name := match[1]
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	if len(names) == 0 {
		return
	}

	nameVals := make([]any, len(names))
	hashVals := make([]any, len(names))
	for i, n := range names {
		nameVals[i] = n
		hashVals[i] = n
	}

	fam := acc.family("Embedding")
	id := graphmodel.NodeID("__embedding_scan__")
	fam.addSlots(id, semfield.EmbeddingName, "", nameVals, "structured", ctx)
	fam.addSlots(id, semfield.EmbeddingHash, validation.FormatterCalcEmbeddingHash, hashVals, "structured", ctx)
}
