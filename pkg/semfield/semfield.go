// Package semfield declares the closed, append-only enumeration of
// semantic metadata fields that the capture pipeline can emit, along
// with the canonical output ordering.
package semfield

// Field names a semantic tag captured from a node graph.
//
// The enumeration is append-only: insertion order governs output
// ordering everywhere in the pipeline, so existing members must never
// be reordered or removed.
type Field int

const (
	PositivePrompt Field = iota
	NegativePrompt
	T5Prompt
	CLIPPrompt
	ModelName
	ModelHash
	VAEName
	VAEHash
	CLIPModelName
	CLIPSkip
	Seed
	Steps
	CFG
	Guidance
	SamplerName
	Scheduler
	Denoise
	Shift
	MaxShift
	BaseShift
	ImageWidth
	ImageHeight
	BatchIndex
	BatchSize
	WeightDtype
	LoraModelName
	LoraModelHash
	LoraStrengthModel
	LoraStrengthClip
	EmbeddingName
	EmbeddingHash
	StartStep
	EndStep

	// Auxiliary tail, added after the core set without reordering it.
	SizeCombined // synthetic "<width>x<height>" rendering used by the formatter
	HashesSummary // the consolidated {model,vae,lora:*,embed:*} JSON-object string

	// GeneratorVersion is always rendered last, regardless of its
	// position here; see Order.
	GeneratorVersion
)

// names mirrors the constant order above; used for String() and for
// building the ordered key used by the formatter.
var names = [...]string{
	"Positive prompt",
	"Negative prompt",
	"T5 Prompt",
	"CLIP Prompt",
	"Model",
	"Model hash",
	"VAE",
	"VAE hash",
	"Clip model name",
	"Clip skip",
	"Seed",
	"Steps",
	"CFG scale",
	"Guidance",
	"Sampler",
	"Scheduler",
	"Denoise",
	"Shift",
	"Max shift",
	"Base shift",
	"Image width",
	"Image height",
	"Batch index",
	"Batch size",
	"Weight dtype",
	"Lora model name",
	"Lora model hash",
	"Lora strength model",
	"Lora strength clip",
	"Embedding name",
	"Embedding hash",
	"Start step",
	"End step",
	"Size",
	"Hashes",
	"Metadata generator version",
}

// String returns the rendered key for a field, matching the teacher's
// convention of small human-readable names rather than Go identifiers.
func (f Field) String() string {
	if f < 0 || int(f) >= len(names) {
		return "Unknown"
	}
	return names[f]
}

// Order is the fixed canonical enumeration order. SemanticFieldMap
// iteration must always follow this sequence, with GeneratorVersion
// moved to the end regardless of its position in the constant block
// (spec.md §3 invariant: "the version field is always last").
var Order = []Field{
	PositivePrompt, NegativePrompt, T5Prompt, CLIPPrompt,
	ModelName, ModelHash, VAEName, VAEHash,
	CLIPModelName, CLIPSkip,
	Seed, Steps, CFG, Guidance,
	SamplerName, Scheduler, Denoise,
	Shift, MaxShift, BaseShift,
	ImageWidth, ImageHeight, SizeCombined,
	BatchIndex, BatchSize, WeightDtype,
	LoraModelName, LoraModelHash, LoraStrengthModel, LoraStrengthClip,
	EmbeddingName, EmbeddingHash,
	StartStep, EndStep,
	HashesSummary,
	GeneratorVersion,
}

// enumName is the wire-format identifier for each field (spec.md §3's
// SemanticField names, e.g. POSITIVE_PROMPT), used by rule documents
// (built-in tables, extension YAML, user JSON) to name a field without
// depending on Go identifiers.
var enumName = [...]string{
	"POSITIVE_PROMPT",
	"NEGATIVE_PROMPT",
	"T5_PROMPT",
	"CLIP_PROMPT",
	"MODEL_NAME",
	"MODEL_HASH",
	"VAE_NAME",
	"VAE_HASH",
	"CLIP_MODEL_NAME",
	"CLIP_SKIP",
	"SEED",
	"STEPS",
	"CFG",
	"GUIDANCE",
	"SAMPLER_NAME",
	"SCHEDULER",
	"DENOISE",
	"SHIFT",
	"MAX_SHIFT",
	"BASE_SHIFT",
	"IMAGE_WIDTH",
	"IMAGE_HEIGHT",
	"BATCH_INDEX",
	"BATCH_SIZE",
	"WEIGHT_DTYPE",
	"LORA_MODEL_NAME",
	"LORA_MODEL_HASH",
	"LORA_STRENGTH_MODEL",
	"LORA_STRENGTH_CLIP",
	"EMBEDDING_NAME",
	"EMBEDDING_HASH",
	"START_STEP",
	"END_STEP",
	"SIZE_COMBINED",
	"HASHES_SUMMARY",
	"GENERATOR_VERSION",
}

var byEnumName map[string]Field

func init() {
	byEnumName = make(map[string]Field, len(enumName))
	for i, n := range enumName {
		byEnumName[n] = Field(i)
	}
}

// EnumName returns the wire-format identifier for a field.
func (f Field) EnumName() string {
	if f < 0 || int(f) >= len(enumName) {
		return ""
	}
	return enumName[f]
}

// ByName resolves a wire-format field identifier back to a Field. The
// lookup is case-sensitive and expects the closed enumeration's exact
// spelling; unknown names return ok=false so a caller can raise
// RuleShapeError rather than silently drop a typo.
func ByName(name string) (Field, bool) {
	f, ok := byEnumName[name]
	return f, ok
}

// Enumerable reports whether a field may appear multiple times per
// node, producing suffixed synthetic keys ("Lora_1 Model name", ...).
func Enumerable(f Field) bool {
	switch f {
	case LoraModelName, LoraModelHash, LoraStrengthModel, LoraStrengthClip,
		CLIPModelName, EmbeddingName, EmbeddingHash:
		return true
	default:
		return false
	}
}

// SlotPrefix returns the synthetic-key family prefix for an enumerable
// field, e.g. "Lora" for the four LoRA fields, so that slot N produces
// "Lora_N Model name".
func SlotPrefix(f Field) string {
	switch f {
	case LoraModelName, LoraModelHash, LoraStrengthModel, LoraStrengthClip:
		return "Lora"
	case CLIPModelName:
		return "Clip"
	case EmbeddingName, EmbeddingHash:
		return "Embedding"
	default:
		return ""
	}
}

// SlotSuffix returns the part of a synthetic key that follows the
// "<Prefix>_<N> " segment, e.g. "Model name" for LoraModelName so that
// slot 1 renders as "Lora_1 Model name" (spec.md §4.6, scenario 3).
func SlotSuffix(f Field) string {
	switch f {
	case LoraModelName:
		return "Model name"
	case LoraModelHash:
		return "Model hash"
	case LoraStrengthModel:
		return "Strength model"
	case LoraStrengthClip:
		return "Strength clip"
	case CLIPModelName:
		return "Model name"
	case EmbeddingName:
		return "Name"
	case EmbeddingHash:
		return "Hash"
	default:
		return ""
	}
}
