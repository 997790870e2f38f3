package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphforge/nodemeta/pkg/rules"
	"github.com/graphforge/nodemeta/pkg/scanner"
	"github.com/graphforge/nodemeta/pkg/semfield"
)

func sampleProposal() *scanner.Proposal {
	return &scanner.Proposal{
		Classes: map[rules.ClassName]rules.NodeClassRules{
			"KSampler":       {semfield.Seed: rules.Spec{FieldName: "seed"}},
			"CLIPTextEncode": {semfield.PositivePrompt: rules.Spec{FieldName: "text"}},
		},
		ForcedNodeClasses: map[rules.ClassName]rules.NodeClassRules{
			"CLIPTextEncode": {},
			"SaveImage":      {},
		},
	}
}

func TestBuildClassItems_MergesScannedAndForced(t *testing.T) {
	p := sampleProposal()
	decisions := map[rules.ClassName]bool{
		"KSampler":       true,
		"CLIPTextEncode": true,
		"SaveImage":      true,
	}

	items := buildClassItems(p, decisions)

	require.Len(t, items, 3)
	byClass := map[rules.ClassName]classItem{}
	for _, item := range items {
		ci := item.(classItem)
		byClass[ci.class] = ci
	}

	assert.False(t, byClass["KSampler"].forced)
	assert.True(t, byClass["SaveImage"].forced)

	// CLIPTextEncode appears in both maps: forced placeholder fields must
	// be overwritten by the scanned fields, matching proposalToDocument.
	merged := byClass["CLIPTextEncode"]
	assert.True(t, merged.forced)
	assert.Contains(t, merged.fields, semfield.PositivePrompt)
}

func TestBuildClassItems_SortedByClassName(t *testing.T) {
	p := sampleProposal()
	decisions := map[rules.ClassName]bool{"KSampler": true, "CLIPTextEncode": true, "SaveImage": true}

	items := buildClassItems(p, decisions)

	var names []string
	for _, item := range items {
		names = append(names, string(item.(classItem).class))
	}
	assert.Equal(t, []string{"CLIPTextEncode", "KSampler", "SaveImage"}, names)
}

func TestClassItem_TitleReflectsAcceptedAndForced(t *testing.T) {
	accepted := classItem{class: "KSampler", accepted: true}
	assert.Equal(t, "[x] KSampler", accepted.Title())

	rejected := classItem{class: "KSampler", accepted: false}
	assert.Equal(t, "[ ] KSampler", rejected.Title())

	forced := classItem{class: "SaveImage", accepted: true, forced: true}
	assert.Equal(t, "[x] SaveImage (forced)", forced.Title())
}

func TestClassItem_DescriptionCountsFields(t *testing.T) {
	empty := classItem{}
	assert.Equal(t, "no fields proposed", empty.Description())

	withFields := classItem{fields: rules.NodeClassRules{semfield.Seed: rules.Spec{FieldName: "seed"}}}
	assert.Equal(t, "1 proposed field(s)", withFields.Description())
}

func TestFilterProposal_DropsRejectedClasses(t *testing.T) {
	p := sampleProposal()
	decisions := map[rules.ClassName]bool{
		"KSampler":       true,
		"CLIPTextEncode": false,
		"SaveImage":      true,
	}

	filtered := filterProposal(p, decisions)

	assert.Contains(t, filtered.Classes, rules.ClassName("KSampler"))
	assert.NotContains(t, filtered.Classes, rules.ClassName("CLIPTextEncode"))
	assert.NotContains(t, filtered.ForcedNodeClasses, rules.ClassName("CLIPTextEncode"))
	assert.Contains(t, filtered.ForcedNodeClasses, rules.ClassName("SaveImage"))
}

func TestFilterProposal_AllRejectedYieldsEmptyMaps(t *testing.T) {
	p := sampleProposal()
	decisions := map[rules.ClassName]bool{}

	filtered := filterProposal(p, decisions)

	assert.Empty(t, filtered.Classes)
	assert.Empty(t, filtered.ForcedNodeClasses)
}

func TestSpecSummary(t *testing.T) {
	cases := []struct {
		name           string
		spec           rules.Spec
		source, detail string
	}{
		{"field name", rules.Spec{FieldName: "seed"}, "field", "seed"},
		{"prefix", rules.Spec{Prefix: "lora_"}, "prefix", "lora_"},
		{"fields", rules.Spec{Fields: []string{"width", "height"}}, "fields", "width,height"},
		{"selector", rules.Spec{Selector: "upstream_checkpoint"}, "selector", "upstream_checkpoint"},
		{"empty", rules.Spec{}, "-", "-"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			source, detail := specSummary(tc.spec)
			assert.Equal(t, tc.source, source)
			assert.Equal(t, tc.detail, detail)
		})
	}
}

func TestFieldRows_SortedByFieldEnumValue(t *testing.T) {
	fields := rules.NodeClassRules{
		semfield.CFG:  rules.Spec{FieldName: "cfg"},
		semfield.Seed: rules.Spec{FieldName: "seed"},
	}

	rows := fieldRows(fields)

	require.Len(t, rows, 2)
	if semfield.Seed < semfield.CFG {
		assert.Equal(t, semfield.Seed.String(), rows[0][0])
		assert.Equal(t, semfield.CFG.String(), rows[1][0])
	} else {
		assert.Equal(t, semfield.CFG.String(), rows[0][0])
		assert.Equal(t, semfield.Seed.String(), rows[1][0])
	}
	assert.Equal(t, "field", rows[0][1])
}
