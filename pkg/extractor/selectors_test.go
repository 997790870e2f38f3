package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphforge/nodemeta/pkg/graphmodel"
)

// selectStackByPrefix is used directly by capture rules that enumerate
// non-LoRA families (CLIP, embedding slots), where no finalize-stage
// pass drops "None" entries the way dropNoneLoraSlots does for LoRA
// stacks, so filter_none has to do that work itself.

func TestSelectStackByPrefix_CounterKeyTruncates(t *testing.T) {
	node := graphmodel.Node{Inputs: map[string]graphmodel.InputValue{
		"clip_name_1": graphmodel.Scalar("clip_l.safetensors"),
		"clip_name_2": graphmodel.Scalar("clip_g.safetensors"),
		"clip_name_3": graphmodel.Scalar("t5xxl.safetensors"),
		"clip_count":  graphmodel.Scalar(2),
	}}

	values, err := selectStackByPrefix(node, map[string]any{"prefix": "clip_name_", "counter_key": "clip_count"})
	require.NoError(t, err)
	assert.Equal(t, []any{"clip_l.safetensors", "clip_g.safetensors"}, values)
}

func TestSelectStackByPrefix_FilterNoneDropsLiteralNoneEntries(t *testing.T) {
	node := graphmodel.Node{Inputs: map[string]graphmodel.InputValue{
		"clip_name_1": graphmodel.Scalar("clip_l.safetensors"),
		"clip_name_2": graphmodel.Scalar("None"),
		"clip_name_3": graphmodel.Scalar("t5xxl.safetensors"),
	}}

	values, err := selectStackByPrefix(node, map[string]any{"prefix": "clip_name_", "filter_none": true})
	require.NoError(t, err)
	assert.Equal(t, []any{"clip_l.safetensors", "t5xxl.safetensors"}, values)
}

func TestSelectStackByPrefix_WithoutFilterNoneKeepsLiteralNoneEntries(t *testing.T) {
	node := graphmodel.Node{Inputs: map[string]graphmodel.InputValue{
		"clip_name_1": graphmodel.Scalar("clip_l.safetensors"),
		"clip_name_2": graphmodel.Scalar("None"),
	}}

	values, err := selectStackByPrefix(node, map[string]any{"prefix": "clip_name_"})
	require.NoError(t, err)
	assert.Equal(t, []any{"clip_l.safetensors", "None"}, values)
}

func TestSelectStackByPrefix_FilterNoneUsesFirstElementOfListLikeEntries(t *testing.T) {
	node := graphmodel.Node{Inputs: map[string]graphmodel.InputValue{
		"embed_1": graphmodel.List(graphmodel.Scalar("None"), graphmodel.Scalar(1.0)),
		"embed_2": graphmodel.List(graphmodel.Scalar("embedding:style.pt"), graphmodel.Scalar(1.0)),
	}}

	values, err := selectStackByPrefix(node, map[string]any{"prefix": "embed_", "filter_none": true})
	require.NoError(t, err)
	assert.Equal(t, []any{"embedding:style.pt"}, values)
}

func TestSelectStackByPrefix_MissingPrefixErrors(t *testing.T) {
	_, err := selectStackByPrefix(graphmodel.Node{}, map[string]any{})
	assert.Error(t, err)
}
