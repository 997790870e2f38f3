package savepipeline

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/graphforge/nodemeta/pkg/artifactresolve"
	"github.com/graphforge/nodemeta/pkg/extractor"
	"github.com/graphforge/nodemeta/pkg/fieldmap"
	"github.com/graphforge/nodemeta/pkg/graphmodel"
	"github.com/graphforge/nodemeta/pkg/graphtrace"
	"github.com/graphforge/nodemeta/pkg/hashcache"
	"github.com/graphforge/nodemeta/pkg/logging"
	"github.com/graphforge/nodemeta/pkg/metrics"
	"github.com/graphforge/nodemeta/pkg/paramformat"
	"github.com/graphforge/nodemeta/pkg/rules"
	"github.com/graphforge/nodemeta/pkg/samplerselect"
	"github.com/graphforge/nodemeta/pkg/semfield"
	"github.com/graphforge/nodemeta/pkg/stagedencoder"
)

// Pipeline bundles the long-lived collaborators one save call is
// wired through. A Pipeline is safe for concurrent Save calls: its
// fields are either immutable after construction or already
// independently thread-safe (spec.md §5, "thread-safe at the object
// level").
type Pipeline struct {
	Registry        *rules.Registry
	SamplerRegistry *rules.SamplerRegistry
	Resolver        *artifactresolve.Resolver
	HashCache       *hashcache.Cache
	Encoder         *stagedencoder.Controller
	Metrics         *metrics.Registry
	Logger          logging.Logger
}

// New builds a Pipeline. A nil logger or metrics registry disables
// the corresponding instrumentation, matching every leaf component's
// own nil-guard convention.
func New(registry *rules.Registry, samplerRegistry *rules.SamplerRegistry, resolver *artifactresolve.Resolver, hashCache *hashcache.Cache, logger logging.Logger, reg *metrics.Registry) *Pipeline {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if resolver == nil {
		resolver = artifactresolve.New()
	}
	if hashCache == nil {
		hashCache = hashcache.New(logger, reg)
	}
	return &Pipeline{
		Registry:        registry,
		SamplerRegistry: samplerRegistry,
		Resolver:        resolver,
		HashCache:       hashCache,
		Encoder:         stagedencoder.New(logger, reg),
		Metrics:         reg,
		Logger:          logger,
	}
}

// Save runs the full save-node pipeline (spec.md §2's save-path data
// flow) for one batch of images against one graph and save node:
// trace, select samplers, extract fields, format parameters, encode
// each image, degrading through the Staged Encoder's fallback ladder
// as each container's limits require.
func (p *Pipeline) Save(g graphmodel.Graph, saveNode graphmodel.NodeID, images []ImageInput, cfg Config) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}

	correlationID := uuid.NewString()
	logger := p.Logger.With(logging.RequestID(correlationID))

	registry := p.Registry
	if len(cfg.RequiredClasses) > 0 {
		scoped := scopedRegistry(p.Registry, cfg.RequiredClasses)
		registry = scoped
	}

	trace, err := graphtrace.Trace(g, saveNode, logger)
	if err != nil {
		return Result{}, err
	}

	samplerResult := samplerselect.Select(g, trace, p.SamplerRegistry, registry, samplerOptions(cfg), logger)

	posID, negID := conditioningNodeIDs(g, p.SamplerRegistry, samplerResult.Primary.NodeID)

	ctx := extractor.Context{
		Registry:       registry,
		Resolver:       p.Resolver,
		HashCache:      p.HashCache,
		Metrics:        p.Metrics,
		Logger:         logger,
		PositiveNodeID: posID,
		NegativeNodeID: negID,
	}

	m := extractor.Extract(g, trace, ctx)

	applyGuidanceAsCFG(m, cfg.GuidanceAsCFG)
	applyCivitaiNormalization(m, cfg.CivitaiSampler)
	if !cfg.IncludeLoraSummary {
		m = m.Filter(func(f semfield.Field) bool { return semfield.SlotPrefix(f) != "Lora" })
	}

	paramText := paramformat.Format(m, cfg.ParamFormatMode, "")
	paramText = appendExtraMetadata(paramText, cfg.ExtraMetadata)

	imageResults := make([]ImageResult, 0, len(images))
	for i, img := range images {
		res, err := p.encodeOne(img, m, cfg)
		if err != nil {
			logger.Warn("image encode failed", logging.Int("batch_index", i), logging.Error(err))
			continue
		}
		imageResults = append(imageResults, res)
	}

	warnings := append([]string{}, samplerResult.Warnings...)

	return Result{
		Images:        imageResults,
		FieldMap:      m,
		ParameterText: paramText,
		CorrelationID: correlationID,
		Warnings:      warnings,
	}, nil
}

func samplerOptions(cfg Config) samplerselect.Options {
	opts := samplerselect.Options{
		Mode:            cfg.SamplerSelectionMethod,
		MultiSamplerCap: cfg.MultiSamplerCap,
	}
	if cfg.SamplerSelectionNodeID != "" {
		opts.TargetNodeID = graphmodel.NodeID(cfg.SamplerSelectionNodeID)
	}
	return opts
}

// conditioningNodeIDs follows the primary sampler's role-to-input
// mapping back to the node ids actually wired into its positive and
// negative conditioning inputs, the mapping extractor.Context needs
// to tell positive and negative CLIPTextEncode-style nodes apart
// (spec.md §4.6's evalPredicate reads these back by identity).
func conditioningNodeIDs(g graphmodel.Graph, samplerRegistry *rules.SamplerRegistry, samplerNodeID graphmodel.NodeID) (graphmodel.NodeID, graphmodel.NodeID) {
	if samplerRegistry == nil || samplerNodeID == "" {
		return "", ""
	}
	node, ok := g.Get(samplerNodeID)
	if !ok {
		return "", ""
	}
	roles, ok := samplerRegistry.Resolve(rules.ClassName(node.ClassName))
	if !ok {
		return "", ""
	}
	return inputRefNodeID(node, roles[rules.RolePositive]), inputRefNodeID(node, roles[rules.RoleNegative])
}

func inputRefNodeID(node graphmodel.Node, inputName string) graphmodel.NodeID {
	if inputName == "" {
		return ""
	}
	v, ok := node.Inputs[inputName]
	if !ok {
		return ""
	}
	ref, isRef := v.IsRef()
	if !isRef {
		return ""
	}
	return ref.SourceNodeID
}

// scopedRegistry narrows a clone of registry to cfg.RequiredClasses
// for this call only, matching spec.md §4.3's "required_classes
// parameter" contract without mutating the shared registry another
// concurrent Save call may be reading (spec.md §5).
func scopedRegistry(registry *rules.Registry, required []string) *rules.Registry {
	classes := make([]rules.ClassName, 0, len(required))
	for _, c := range required {
		classes = append(classes, rules.ClassName(c))
	}
	clone := registry.Clone()
	clone.SetRequiredClasses(classes)
	return clone
}

// applyGuidanceAsCFG implements spec.md §6.2: "when true, the captured
// guidance value replaces the CFG scale field and the Guidance field
// is omitted."
func applyGuidanceAsCFG(m *fieldmap.Map, enabled bool) {
	if !enabled {
		return
	}
	g, ok := m.Get(semfield.Guidance)
	if !ok {
		return
	}
	m.Set(semfield.CFG, g)
	m.Delete(semfield.Guidance)
}

// civitaiReplacements is the closed set of small sampler-name
// normalizations spec.md §6.2 names as illustrative
// ("euler_karras" -> "Euler Karras").
var civitaiReplacements = map[string]string{
	"euler_karras":        "Euler Karras",
	"euler_a_karras":      "Euler a Karras",
	"dpmpp_2m_karras":     "DPM++ 2M Karras",
	"dpmpp_sde_karras":    "DPM++ SDE Karras",
	"dpmpp_2m_sde_karras": "DPM++ 2M SDE Karras",
}

func applyCivitaiNormalization(m *fieldmap.Map, enabled bool) {
	if !enabled {
		return
	}
	name, ok := m.Get(semfield.SamplerName)
	if !ok {
		return
	}
	if normalized, ok := civitaiReplacements[strings.ToLower(name)]; ok {
		m.Set(semfield.SamplerName, normalized)
	}
}

// appendExtraMetadata sanitizes and appends the save call's
// extra_metadata overlay (spec.md §6.2) to an already-rendered
// parameter string. The comma-to-slash replacement is scoped to this
// overlay only (spec.md §4.7's "notably extra-metadata injections"):
// regular captured fields, including the prompts, pass through
// paramformat.Format unmodified.
func appendExtraMetadata(paramText string, extra map[string]string) string {
	if len(extra) == 0 {
		return paramText
	}
	keys := sortedKeys(extra)
	var segments []string
	for _, k := range keys {
		v := strings.ReplaceAll(extra[k], ",", "/")
		segments = append(segments, k+": "+v)
	}
	extraText := strings.Join(segments, ", ")
	if paramText == "" {
		return extraText
	}
	return paramText + ", " + extraText
}

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
