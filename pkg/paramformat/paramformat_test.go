package paramformat

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/graphforge/nodemeta/pkg/fieldmap"
	"github.com/graphforge/nodemeta/pkg/semfield"
)

func sampleMap() *fieldmap.Map {
	m := fieldmap.New()
	m.Set(semfield.PositivePrompt, "a cat")
	m.Set(semfield.Steps, "20")
	m.Set(semfield.SamplerName, "dpmpp_2m")
	m.Set(semfield.CFG, "8")
	m.Set(semfield.Seed, "123")
	m.Set(semfield.GeneratorVersion, "1.0.0")
	return m
}

func TestFormat_CompactWritesPositivePromptUnprefixed(t *testing.T) {
	out := Format(sampleMap(), ModeCompact, "")
	assert.Equal(t, "a cat, Seed: 123, Steps: 20, CFG scale: 8, Sampler: dpmpp_2m, Metadata generator version: 1.0.0", out)
}

func TestFormat_CompactWritesNegativePromptPrefixedRightAfterPositive(t *testing.T) {
	m := sampleMap()
	m.Set(semfield.NegativePrompt, "blurry")
	out := Format(m, ModeCompact, "")
	assert.Equal(t, "a cat, Negative prompt: blurry, Seed: 123, Steps: 20, CFG scale: 8, Sampler: dpmpp_2m, Metadata generator version: 1.0.0", out)
}

func TestFormat_MultilineOneFieldPerLineWithPromptPrefixed(t *testing.T) {
	out := Format(sampleMap(), ModeDeterministicMultiline, "")
	assert.Equal(t,
		"Positive prompt: a cat\nSeed: 123\nSteps: 20\nCFG scale: 8\nSampler: dpmpp_2m\nMetadata generator version: 1.0.0",
		out)
}

func TestFormat_FallbackAnnotationAppearsOnceBeforeVersion(t *testing.T) {
	out := Format(sampleMap(), ModeCompact, "minimal")
	assert.Contains(t, out, ", Metadata Fallback: minimal, Metadata generator version: 1.0.0")
	assert.Equal(t, 1, countOccurrences(out, "Metadata Fallback:"))
}

func TestFormat_NoFallbackStageOmitsAnnotation(t *testing.T) {
	out := Format(sampleMap(), ModeCompact, "")
	assert.NotContains(t, out, "Metadata Fallback")
}

func TestFormat_CommaInPromptPreservedVerbatim(t *testing.T) {
	m := fieldmap.New()
	m.Set(semfield.PositivePrompt, "a cat, sitting, calmly")
	out := Format(m, ModeCompact, "")
	assert.Equal(t, "a cat, sitting, calmly", out)
}

func TestFormat_PythonReprValueStripped(t *testing.T) {
	m := fieldmap.New()
	m.Set(semfield.PositivePrompt, "a cat")
	m.Set(semfield.SamplerName, "<LoraInfo object at 0x7f2b1>")
	out := Format(m, ModeCompact, "")
	assert.Equal(t, "a cat", out)
	assert.NotContains(t, out, "LoraInfo")
}

func TestFormat_DualEncoderPromptFieldsRenderAsOrdinaryKeyValue(t *testing.T) {
	m := fieldmap.New()
	m.Set(semfield.T5Prompt, "a dog, t5 side")
	m.Set(semfield.CLIPPrompt, "a dog, clip side")
	out := Format(m, ModeCompact, "")
	assert.Equal(t, "T5 Prompt: a dog, t5 side, CLIP Prompt: a dog, clip side", out)
}

func countOccurrences(s, substr string) int {
	count := 0
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			count++
			i += len(substr) - 1
		}
	}
	return count
}
