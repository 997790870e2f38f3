// Package paramformat implements the Parameter Formatter (spec.md
// §4.7): it renders a SemanticFieldMap as the textual parameter string
// embedded alongside an image, in either of two closed rendering modes.
package paramformat

import (
	"strings"

	"github.com/graphforge/nodemeta/pkg/fieldmap"
	"github.com/graphforge/nodemeta/pkg/semfield"
)

// Mode is the closed set of rendering modes a save call selects
// between (spec.md §4.7).
type Mode string

const (
	// ModeCompact writes the positive prompt first unprefixed, the
	// negative prompt (if present) on the same line prefixed
	// "Negative prompt: ", and every other field as a comma-joined
	// "Key: Value" run.
	ModeCompact Mode = "compact"

	// ModeDeterministicMultiline writes one "Key: Value" line per
	// field, in the same canonical order, prompts included.
	ModeDeterministicMultiline Mode = "deterministic_multiline"
)

// looksLikePythonRepr is deliberately loose: any value bracketed in
// angle brackets with an embedded space reads as a stray object repr
// ("<LoraInfo object at 0x7f2b1>") rather than a real parameter value.
func looksLikePythonRepr(v string) bool {
	return strings.HasPrefix(v, "<") && strings.HasSuffix(v, ">") && strings.Contains(v, " ")
}

// sanitizeValue implements spec.md §4.7's value sanitization: values
// that look like Python-style object reprs are stripped entirely
// rather than emitted as garbage. The comma-to-"/" rule spec.md §4.7
// also names applies only to the extra_metadata overlay
// (appendExtraMetadata), not to regular captured fields — a comma in
// a prompt is just a comma, and rewriting it here would corrupt every
// tag-list-style prompt the compact form's own comma-joining never
// actually needs disambiguated, since each entry is still one
// "Key: Value" segment regardless of what its value contains.
func sanitizeValue(v string) string {
	if looksLikePythonRepr(v) {
		return ""
	}
	return v
}

// Format renders m's entries under mode, appending the fallback
// annotation exactly once as the final non-version token when
// fallbackStage is non-empty (spec.md §4.7, §4.8).
func Format(m *fieldmap.Map, mode Mode, fallbackStage string) string {
	entries := sanitizeEntries(m.Render())

	switch mode {
	case ModeDeterministicMultiline:
		return renderMultiline(entries, fallbackStage)
	default:
		return renderCompact(entries, fallbackStage)
	}
}

func sanitizeEntries(entries []fieldmap.Entry) []fieldmap.Entry {
	out := make([]fieldmap.Entry, 0, len(entries))
	for _, e := range entries {
		v := sanitizeValue(e.Value)
		if v == "" {
			continue
		}
		out = append(out, fieldmap.Entry{Key: e.Key, Value: v})
	}
	return out
}

func renderCompact(entries []fieldmap.Entry, fallbackStage string) string {
	var segments []string
	var middle []fieldmap.Entry
	var genVersion string
	hasGenVersion := false

	for _, e := range entries {
		switch e.Key {
		case semfield.PositivePrompt.String():
			segments = append(segments, e.Value)
		case semfield.NegativePrompt.String():
			segments = append(segments, "Negative prompt: "+e.Value)
		case semfield.GeneratorVersion.String():
			genVersion = e.Value
			hasGenVersion = true
		default:
			middle = append(middle, e)
		}
	}

	for _, e := range middle {
		segments = append(segments, e.Key+": "+e.Value)
	}
	if fallbackStage != "" {
		segments = append(segments, "Metadata Fallback: "+fallbackStage)
	}
	if hasGenVersion {
		segments = append(segments, semfield.GeneratorVersion.String()+": "+genVersion)
	}

	return strings.Join(segments, ", ")
}

func renderMultiline(entries []fieldmap.Entry, fallbackStage string) string {
	var lines []string
	var genVersionLine string
	hasGenVersion := false

	for _, e := range entries {
		if e.Key == semfield.GeneratorVersion.String() {
			genVersionLine = e.Key + ": " + e.Value
			hasGenVersion = true
			continue
		}
		lines = append(lines, e.Key+": "+e.Value)
	}
	if fallbackStage != "" {
		lines = append(lines, "Metadata Fallback: "+fallbackStage)
	}
	if hasGenVersion {
		lines = append(lines, genVersionLine)
	}

	return strings.Join(lines, "\n")
}
