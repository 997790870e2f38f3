// Package extractor implements the Field Extractor (spec.md §4.6): it
// walks a traced node order, consults the Rule Registry for each node's
// class, resolves artifacts and hashes as rules require, and assembles
// a fieldmap.Map. Grounded on the teacher's rule-driven graph-walk
// style (a per-node-type strategy resolved from a registry and folded
// into an accumulator) generalized from graph analytics to metadata
// capture.
package extractor

import (
	"sort"
	"strings"

	"github.com/graphforge/nodemeta/pkg/artifactresolve"
	"github.com/graphforge/nodemeta/pkg/fieldmap"
	"github.com/graphforge/nodemeta/pkg/graphmodel"
	"github.com/graphforge/nodemeta/pkg/graphtrace"
	"github.com/graphforge/nodemeta/pkg/hashcache"
	"github.com/graphforge/nodemeta/pkg/logging"
	"github.com/graphforge/nodemeta/pkg/metrics"
	"github.com/graphforge/nodemeta/pkg/rules"
	"github.com/graphforge/nodemeta/pkg/semfield"
	"github.com/graphforge/nodemeta/pkg/validation"
)

// registryLookup is the subset of *rules.Registry the extractor needs.
type registryLookup interface {
	Resolve(class rules.ClassName) (rules.NodeClassRules, bool)
	Allowed(class rules.ClassName) bool
}

// Context bundles the collaborators one extraction call needs: the
// merged Rule Registry, the Artifact Resolver, the Hash Cache, and
// observability sinks, plus the primary sampler's positive/negative
// conditioning node ids (spec.md §9, "explicit ExtractionContext ...
// passed by value" rather than module-level globals).
type Context struct {
	Registry  registryLookup
	Resolver  *artifactresolve.Resolver
	HashCache *hashcache.Cache
	Metrics   *metrics.Registry
	Logger    logging.Logger

	PositiveNodeID graphmodel.NodeID
	NegativeNodeID graphmodel.NodeID

	SuppressHashDetail bool
}

func (c Context) logger() logging.Logger {
	if c.Logger == nil {
		return logging.NewNopLogger()
	}
	return c.Logger
}

func (c Context) resolver() *artifactresolve.Resolver {
	if c.Resolver == nil {
		return artifactresolve.New()
	}
	return c.Resolver
}

func (c Context) recordOmitted(reason string) {
	if c.Metrics != nil {
		c.Metrics.RecordFieldOmitted(reason)
	}
}

// Extract produces the SemanticFieldMap for one save call by walking
// trace.Order and applying each node class's rules (spec.md §4.6).
func Extract(g graphmodel.Graph, trace graphtrace.Result, ctx Context) *fieldmap.Map {
	m := fieldmap.New()
	acc := newAccumulators()

	for _, id := range trace.Order {
		node, ok := g.Get(id)
		if !ok {
			continue
		}
		class := rules.ClassName(node.ClassName)

		if !ctx.Registry.Allowed(class) {
			continue
		}

		classRules, found := ctx.Registry.Resolve(class)
		if !found {
			continue
		}

		extractNode(m, acc, id, node, classRules, ctx)
	}

	scanEmbeddings(m, acc, ctx)
	finalizeFamilies(m, acc, ctx)
	collapseImageSize(m)
	suppressUnifiedPromptForDualEncoder(m, acc)
	dropNegativePromptIfRedundant(m)
	m.SetSuppressHashDetail(ctx.SuppressHashDetail)

	return m
}

func extractNode(m *fieldmap.Map, acc *accumulators, id graphmodel.NodeID, node graphmodel.Node, classRules rules.NodeClassRules, ctx Context) {
	for _, field := range sortedFields(classRules) {
		spec := classRules[field]

		if spec.Validate != "" && !evalPredicate(spec.Validate, id, node, ctx) {
			continue
		}

		values, err := extractValues(field, node, spec)
		if err != nil {
			ctx.logger().Warn("field extraction failed",
				logging.NodeID(string(id)), logging.SemanticField(field.String()), logging.Error(err))
			ctx.recordOmitted("extract_error")
			continue
		}
		if len(values) == 0 {
			continue
		}

		if semfield.Enumerable(field) {
			acc.family(semfield.SlotPrefix(field)).addSlots(id, field, spec.Format, values, "structured", ctx)
			continue
		}

		rendered, extra, err := applyFormatter(spec.Format, values[0], familyFor(field), ctx)
		if err != nil {
			ctx.logger().Warn("field format failed",
				logging.NodeID(string(id)), logging.SemanticField(field.String()), logging.Error(err))
			ctx.recordOmitted("format_error")
			continue
		}
		m.Set(field, rendered)
		for f, v := range extra {
			if _, exists := m.Get(f); !exists {
				m.Set(f, v)
			}
		}

		recordHashForScalar(acc, field, rendered)

		if spec.InlineLoraCandidate {
			scanInlineLoraTags(acc, id, rendered, ctx)
		}
	}
}

// familyFor maps a hash- or resolution-bearing field to the artifact
// family the Resolver/Hash Cache should use (spec.md §4.2).
func familyFor(f semfield.Field) artifactresolve.Family {
	switch f {
	case semfield.VAEName, semfield.VAEHash:
		return artifactresolve.FamilyVAE
	case semfield.CLIPModelName:
		return artifactresolve.FamilyCLIP
	case semfield.LoraModelName, semfield.LoraModelHash:
		return artifactresolve.FamilyLoRA
	case semfield.EmbeddingName, semfield.EmbeddingHash:
		return artifactresolve.FamilyEmbedding
	default:
		return artifactresolve.FamilyCheckpoint
	}
}

// recordHashForScalar feeds the model/VAE hash-detail keys once a
// scalar MODEL_HASH/VAE_HASH field has been rendered (spec.md §4.6,
// "Hashes summary" lists model and vae alongside lora:*/embed:*).
func recordHashForScalar(acc *accumulators, field semfield.Field, rendered string) {
	switch field {
	case semfield.ModelHash:
		acc.scalarHashes["model"] = rendered
	case semfield.VAEHash:
		acc.scalarHashes["vae"] = rendered
	}
}

func sortedFields(classRules rules.NodeClassRules) []semfield.Field {
	fields := make([]semfield.Field, 0, len(classRules))
	for f := range classRules {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })
	return fields
}

// evalPredicate decides whether a CLIPTextEncode-style "text" rule
// applies to this node instance. Positive/negative identity is carried
// by which conditioning input the primary sampler references, not by
// anything intrinsic to the node itself (spec.md §4.5's SamplerEntry
// supplies that mapping upstream of extraction).
func evalPredicate(kind validation.PredicateKind, id graphmodel.NodeID, node graphmodel.Node, ctx Context) bool {
	switch kind {
	case validation.PredicateIsPositivePrompt:
		return id == ctx.PositiveNodeID
	case validation.PredicateIsNegativePrompt:
		return id == ctx.NegativeNodeID && !isTrivialEmpty(promptText(node))
	case validation.PredicateNonEmpty:
		return !isTrivialEmpty(promptText(node))
	default:
		return true
	}
}

func promptText(node graphmodel.Node) string {
	v, ok := node.Inputs["text"]
	if !ok {
		return ""
	}
	return v.String()
}

func isTrivialEmpty(s string) bool {
	return strings.TrimSpace(s) == ""
}

// collapseImageSize folds the raw ImageWidth/ImageHeight scalars into
// the synthetic "<width>x<height>" SizeCombined field and removes the
// raw fields, matching the rendered form every scenario in spec.md §8
// shows ("Size: 512x512", never separate width/height keys).
func collapseImageSize(m *fieldmap.Map) {
	w, wok := m.Get(semfield.ImageWidth)
	h, hok := m.Get(semfield.ImageHeight)
	if wok && hok {
		m.Set(semfield.SizeCombined, w+"x"+h)
	}
	m.Delete(semfield.ImageWidth)
	m.Delete(semfield.ImageHeight)
}

// dropNegativePromptIfRedundant implements spec.md §8's edge case:
// "Empty negative prompt or one equal to the positive prompt:
// negative-prompt field omitted."
func dropNegativePromptIfRedundant(m *fieldmap.Map) {
	neg, ok := m.Get(semfield.NegativePrompt)
	if !ok {
		return
	}
	if isTrivialEmpty(neg) {
		m.Delete(semfield.NegativePrompt)
		return
	}
	if pos, ok := m.Get(semfield.PositivePrompt); ok && pos == neg {
		m.Delete(semfield.NegativePrompt)
	}
}

// suppressUnifiedPromptForDualEncoder implements spec.md §4.6's
// dual-encoder rule: when two or more CLIP-model-name entries exist and
// at least one names a T5 encoder, the unified positive prompt is
// dropped in favor of the separate T5/CLIP prompt fields.
func suppressUnifiedPromptForDualEncoder(m *fieldmap.Map, acc *accumulators) {
	fam := acc.families["Clip"]
	if fam == nil {
		return
	}
	entries := fam.flatten()
	if len(entries) < 2 {
		return
	}
	hasT5 := false
	for _, e := range entries {
		if v, ok := e.values[semfield.CLIPModelName]; ok && strings.Contains(strings.ToLower(v), "t5") {
			hasT5 = true
			break
		}
	}
	if !hasT5 {
		return
	}
	_, hasT5Prompt := m.Get(semfield.T5Prompt)
	_, hasClipPrompt := m.Get(semfield.CLIPPrompt)
	if hasT5Prompt && hasClipPrompt {
		m.Delete(semfield.PositivePrompt)
	}
}
