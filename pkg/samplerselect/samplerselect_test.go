package samplerselect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphforge/nodemeta/pkg/graphmodel"
	"github.com/graphforge/nodemeta/pkg/graphtrace"
	"github.com/graphforge/nodemeta/pkg/rules"
	"github.com/graphforge/nodemeta/pkg/rulesdata"
	"github.com/graphforge/nodemeta/pkg/semfield"
)

func fakeRegistry() *rules.Registry {
	reg := rules.NewRegistry(rulesdata.Builtin(), nil)
	return reg
}

func samplerRegistry() *rules.SamplerRegistry {
	return rules.NewSamplerRegistry(rulesdata.BuiltinSamplerRoles())
}

func TestSelect_TierAPreferredOverTierB(t *testing.T) {
	g := graphmodel.Graph{Nodes: map[graphmodel.NodeID]graphmodel.Node{
		"save": {ClassName: "SaveImage", Inputs: map[string]graphmodel.InputValue{
			"images": graphmodel.RefTo("a", 0),
			"also":   graphmodel.RefTo("b", 0),
		}},
		"a": {ClassName: "KSampler", Inputs: map[string]graphmodel.InputValue{
			"sampler_name": graphmodel.Scalar("euler"),
			"steps":        graphmodel.Scalar(20),
		}},
		"b": {ClassName: "CustomSamplerLike", Inputs: map[string]graphmodel.InputValue{
			"sampler_name": graphmodel.Scalar("dpmpp_2m"),
			"steps":        graphmodel.Scalar(40),
		}},
	}}

	reg := fakeRegistry()
	reg.LoadUser(map[rules.ClassName]rules.NodeClassRules{
		"CustomSamplerLike": {
			semfield.SamplerName: {FieldName: "sampler_name"},
			semfield.Steps:       {FieldName: "steps"},
		},
	})

	trace, err := graphtrace.Trace(g, "save", nil)
	require.NoError(t, err)

	result := Select(g, trace, samplerRegistry(), reg, Options{}, nil)
	assert.Equal(t, graphmodel.NodeID("a"), result.Primary.NodeID)
	assert.Equal(t, TierA, result.Primary.Tier)
}

func TestSelect_WidestRangeWinsWithinTier(t *testing.T) {
	g := graphmodel.Graph{Nodes: map[graphmodel.NodeID]graphmodel.Node{
		"save": {ClassName: "SaveImage", Inputs: map[string]graphmodel.InputValue{
			"images": graphmodel.RefTo("short", 0),
			"also":   graphmodel.RefTo("long", 0),
		}},
		"short": {ClassName: "KSampler", Inputs: map[string]graphmodel.InputValue{
			"sampler_name": graphmodel.Scalar("euler"),
			"steps":        graphmodel.Scalar(10),
		}},
		"long": {ClassName: "KSampler", Inputs: map[string]graphmodel.InputValue{
			"sampler_name": graphmodel.Scalar("dpmpp_2m"),
			"steps":        graphmodel.Scalar(40),
		}},
	}}

	trace, err := graphtrace.Trace(g, "save", nil)
	require.NoError(t, err)

	result := Select(g, trace, samplerRegistry(), fakeRegistry(), Options{}, nil)
	assert.Equal(t, graphmodel.NodeID("long"), result.Primary.NodeID)
}

func TestSelect_NoSamplersEmptyResult(t *testing.T) {
	g := graphmodel.Graph{Nodes: map[graphmodel.NodeID]graphmodel.Node{
		"save": {ClassName: "SaveImage", Inputs: nil},
	}}
	trace, err := graphtrace.Trace(g, "save", nil)
	require.NoError(t, err)

	result := Select(g, trace, samplerRegistry(), fakeRegistry(), Options{}, nil)
	assert.Equal(t, graphmodel.NodeID(""), result.Primary.NodeID)
	assert.Empty(t, result.Ordered)
}

func TestSelect_ByIDOverridesDefault(t *testing.T) {
	g := graphmodel.Graph{Nodes: map[graphmodel.NodeID]graphmodel.Node{
		"save": {ClassName: "SaveImage", Inputs: map[string]graphmodel.InputValue{
			"images": graphmodel.RefTo("short", 0),
			"also":   graphmodel.RefTo("long", 0),
		}},
		"short": {ClassName: "KSampler", Inputs: map[string]graphmodel.InputValue{
			"sampler_name": graphmodel.Scalar("euler"),
			"steps":        graphmodel.Scalar(10),
		}},
		"long": {ClassName: "KSampler", Inputs: map[string]graphmodel.InputValue{
			"sampler_name": graphmodel.Scalar("dpmpp_2m"),
			"steps":        graphmodel.Scalar(40),
		}},
	}}
	trace, err := graphtrace.Trace(g, "save", nil)
	require.NoError(t, err)

	result := Select(g, trace, samplerRegistry(), fakeRegistry(), Options{Mode: ModeByID, TargetNodeID: "short"}, nil)
	assert.Equal(t, graphmodel.NodeID("short"), result.Primary.NodeID)
}

func TestSelect_MultiSamplerCapTruncates(t *testing.T) {
	g := graphmodel.Graph{Nodes: map[graphmodel.NodeID]graphmodel.Node{
		"save": {ClassName: "SaveImage", Inputs: map[string]graphmodel.InputValue{
			"a": graphmodel.RefTo("one", 0),
			"b": graphmodel.RefTo("two", 0),
			"c": graphmodel.RefTo("three", 0),
		}},
		"one":   {ClassName: "KSampler", Inputs: map[string]graphmodel.InputValue{"sampler_name": graphmodel.Scalar("euler"), "steps": graphmodel.Scalar(10)}},
		"two":   {ClassName: "KSampler", Inputs: map[string]graphmodel.InputValue{"sampler_name": graphmodel.Scalar("euler"), "steps": graphmodel.Scalar(20)}},
		"three": {ClassName: "KSampler", Inputs: map[string]graphmodel.InputValue{"sampler_name": graphmodel.Scalar("euler"), "steps": graphmodel.Scalar(30)}},
	}}
	trace, err := graphtrace.Trace(g, "save", nil)
	require.NoError(t, err)

	result := Select(g, trace, samplerRegistry(), fakeRegistry(), Options{MultiSamplerCap: 2}, nil)
	assert.Len(t, result.Ordered, 2)
	assert.NotEmpty(t, result.Warnings)
}
