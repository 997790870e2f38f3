package graphtrace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphforge/nodemeta/pkg/graphmodel"
)

func sampleGraph() graphmodel.Graph {
	return graphmodel.Graph{Nodes: map[graphmodel.NodeID]graphmodel.Node{
		"save": {ClassName: "SaveImage", Inputs: map[string]graphmodel.InputValue{
			"images": graphmodel.RefTo("sampler", 0),
		}},
		"sampler": {ClassName: "KSampler", Inputs: map[string]graphmodel.InputValue{
			"model":    graphmodel.RefTo("ckpt", 0),
			"positive": graphmodel.RefTo("pos", 0),
			"negative": graphmodel.RefTo("neg", 0),
		}},
		"ckpt": {ClassName: "CheckpointLoaderSimple", Inputs: map[string]graphmodel.InputValue{
			"ckpt_name": graphmodel.Scalar("sd15/cyber_v33.safetensors"),
		}},
		"pos": {ClassName: "CLIPTextEncode", Inputs: map[string]graphmodel.InputValue{
			"text": graphmodel.Scalar("a cat"),
		}},
		"neg": {ClassName: "CLIPTextEncode", Inputs: map[string]graphmodel.InputValue{
			"text": graphmodel.Scalar(""),
		}},
	}}
}

func TestTrace_OrderIsDeterministic(t *testing.T) {
	g := sampleGraph()
	r1, err := Trace(g, "save", nil)
	require.NoError(t, err)
	r2, err := Trace(g, "save", nil)
	require.NoError(t, err)
	assert.Equal(t, r1.Order, r2.Order)
}

func TestTrace_DistanceMonotonic(t *testing.T) {
	g := sampleGraph()
	r, err := Trace(g, "save", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, r.Distance["save"])
	assert.Equal(t, 1, r.Distance["sampler"])
	assert.Equal(t, 2, r.Distance["ckpt"])
	assert.Equal(t, 2, r.Distance["pos"])
	assert.Equal(t, 2, r.Distance["neg"])
}

func TestTrace_UnreachableNodeExcluded(t *testing.T) {
	g := sampleGraph()
	g.Nodes["orphan"] = graphmodel.Node{ClassName: "Note", Inputs: nil}
	r, err := Trace(g, "save", nil)
	require.NoError(t, err)
	_, ok := r.Distance["orphan"]
	assert.False(t, ok)
}

func TestTrace_DanglingReferenceSkipped(t *testing.T) {
	g := sampleGraph()
	n := g.Nodes["sampler"]
	n.Inputs["latent_image"] = graphmodel.RefTo("does-not-exist", 0)
	g.Nodes["sampler"] = n

	r, err := Trace(g, "save", nil)
	require.NoError(t, err)
	_, ok := r.Distance["does-not-exist"]
	assert.False(t, ok)
}

func TestTrace_UnknownSaveNode(t *testing.T) {
	g := sampleGraph()
	_, err := Trace(g, "missing", nil)
	assert.Error(t, err)
}
