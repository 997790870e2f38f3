package scanner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphforge/nodemeta/pkg/rules"
	"github.com/graphforge/nodemeta/pkg/semfield"
	"github.com/graphforge/nodemeta/pkg/validation"
)

func samplerClassSpec() ClassSpec {
	return ClassSpec{Inputs: []InputSpec{
		{Name: "seed", Type: "INT"},
		{Name: "steps", Type: "INT"},
		{Name: "cfg", Type: "FLOAT"},
		{Name: "sampler_name", Type: "COMBO"},
	}}
}

func TestScan_ProposesHeuristicFieldsForNewClass(t *testing.T) {
	table := ClassTable{"KSampler": samplerClassSpec()}
	registry := rules.NewRegistry(map[rules.ClassName]rules.NodeClassRules{}, nil)
	s := New(nil, nil)

	proposal, report := s.Scan(table, registry, nil, Options{Mode: ModeAll})

	got := proposal.Classes["KSampler"]
	require.NotNil(t, got)
	assert.Contains(t, got, semfield.Seed)
	assert.Contains(t, got, semfield.Steps)
	assert.Contains(t, got, semfield.CFG)
	assert.Contains(t, got, semfield.SamplerName)
	assert.Equal(t, 1, report.ClassesProposed)
	assert.Equal(t, 4, report.FieldsProposed)
}

func TestScan_NewOnlyModeSkipsAlreadyKnownClasses(t *testing.T) {
	table := ClassTable{"KSampler": samplerClassSpec()}
	builtin := map[rules.ClassName]rules.NodeClassRules{
		"KSampler": {semfield.Seed: rules.Spec{FieldName: "seed"}},
	}
	registry := rules.NewRegistry(builtin, nil)
	s := New(nil, nil)

	proposal, report := s.Scan(table, registry, nil, Options{Mode: ModeNewOnly})

	assert.NotContains(t, proposal.Classes, rules.ClassName("KSampler"))
	assert.Equal(t, 0, report.ClassesScanned)
}

func TestScan_ExistingOnlyModeKeepsOnlyKnownClasses(t *testing.T) {
	table := ClassTable{
		"KSampler": samplerClassSpec(),
		"NewNode":  samplerClassSpec(),
	}
	builtin := map[rules.ClassName]rules.NodeClassRules{
		"KSampler": {semfield.Seed: rules.Spec{FieldName: "seed"}},
	}
	registry := rules.NewRegistry(builtin, nil)
	s := New(nil, nil)

	proposal, _ := s.Scan(table, registry, nil, Options{Mode: ModeExistingOnly})

	assert.Contains(t, proposal.Classes, rules.ClassName("KSampler"))
	assert.NotContains(t, proposal.Classes, rules.ClassName("NewNode"))
}

func TestScan_ExcludeKeywordsFiltersClasses(t *testing.T) {
	table := ClassTable{"DebugPreviewSampler": samplerClassSpec()}
	registry := rules.NewRegistry(map[rules.ClassName]rules.NodeClassRules{}, nil)
	s := New(nil, nil)

	_, report := s.Scan(table, registry, nil, Options{Mode: ModeAll, ExcludeKeywords: []string{"debug"}})

	assert.Equal(t, 0, report.ClassesScanned)
}

func TestScan_MissingLensSubtractsBaselineFields(t *testing.T) {
	table := ClassTable{"KSampler": samplerClassSpec()}
	builtin := map[rules.ClassName]rules.NodeClassRules{
		"KSampler": {semfield.Seed: rules.Spec{FieldName: "seed"}},
	}
	registry := rules.NewRegistry(builtin, nil)
	s := New(nil, nil)

	proposal, _ := s.Scan(table, registry, nil, Options{Mode: ModeAll, MissingLens: true})

	got := proposal.Classes["KSampler"]
	assert.NotContains(t, got, semfield.Seed)
	assert.Contains(t, got, semfield.Steps)
}

func TestScan_ForcedNodeClassAlwaysPresentEvenWhenAbsentFromTable(t *testing.T) {
	registry := rules.NewRegistry(map[rules.ClassName]rules.NodeClassRules{}, nil)
	s := New(nil, nil)

	proposal, _ := s.Scan(ClassTable{}, registry, nil, Options{
		Mode:              ModeAll,
		ForcedNodeClasses: []rules.ClassName{"SomeForcedNode"},
	})

	got, ok := proposal.ForcedNodeClasses["SomeForcedNode"]
	require.True(t, ok)
	assert.Empty(t, got)
}

func TestScan_LoraStackPrefixDetected(t *testing.T) {
	table := ClassTable{
		"CR LoRA Stack": {Inputs: []InputSpec{
			{Name: "lora_name_1", Type: "COMBO"},
			{Name: "lora_name_2", Type: "COMBO"},
			{Name: "lora_count", Type: "INT"},
		}},
	}
	registry := rules.NewRegistry(map[rules.ClassName]rules.NodeClassRules{}, nil)
	s := New(nil, nil)

	proposal, _ := s.Scan(table, registry, nil, Options{Mode: ModeAll})

	got := proposal.Classes["CR LoRA Stack"]
	require.Contains(t, got, semfield.LoraModelName)
	spec := got[semfield.LoraModelName]
	assert.Equal(t, validation.SelectorStackByPrefix, spec.Selector)
	assert.Equal(t, "lora_name_", spec.Args["prefix"])
	assert.Equal(t, "lora_count", spec.Args["counter_key"])
}

func TestScan_SchedulerComboSplitWhenValuesLookCombined(t *testing.T) {
	table := ClassTable{
		"KSamplerAdvanced": {Inputs: []InputSpec{
			{Name: "scheduler", Type: "COMBO", ComboValues: []string{"normal_karras", "normal_exponential", "ddim_uniform"}},
		}},
	}
	registry := rules.NewRegistry(map[rules.ClassName]rules.NodeClassRules{}, nil)
	s := New(nil, nil)

	proposal, _ := s.Scan(table, registry, nil, Options{Mode: ModeAll})

	got := proposal.Classes["KSamplerAdvanced"]
	require.Contains(t, got, semfield.SamplerName)
	require.Contains(t, got, semfield.Scheduler)
	assert.Equal(t, validation.SelectorSplitSchedulerCombo, got[semfield.SamplerName].Selector)
	assert.Equal(t, validation.SelectorSplitSchedulerCombo, got[semfield.Scheduler].Selector)
}

func TestScan_BaselineCacheHitOnRepeatedScanWithSameUserDocs(t *testing.T) {
	table := ClassTable{"KSampler": samplerClassSpec()}
	registry := rules.NewRegistry(map[rules.ClassName]rules.NodeClassRules{}, nil)
	s := New(nil, nil)
	refs := []UserDocRef{{Path: "captures.json", ModTime: time.Unix(1000, 0)}}

	_, first := s.Scan(table, registry, refs, Options{Mode: ModeAll, MissingLens: true})
	_, second := s.Scan(table, registry, refs, Options{Mode: ModeAll, MissingLens: true})

	assert.False(t, first.BaselineCacheHit)
	assert.True(t, second.BaselineCacheHit)
}

func TestDiffReport_DiffTextFormatsTally(t *testing.T) {
	r := DiffReport{ClassesScanned: 10, ClassesProposed: 3, FieldsProposed: 7, BaselineCacheHit: true}
	assert.Equal(t, "scanned=10 proposed_classes=3 proposed_fields=7 baseline_cache=hit", r.DiffText())
}
