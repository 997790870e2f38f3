// Package rulesdata holds the built-in, immutable layer of the Rule
// Registry (spec.md §4.3 layer 1): the default CaptureRule tables for
// the node classes a stock compute-runtime install ships, plus the
// default SamplerRegistry. Declarations (selector/formatter/predicate
// enums) live in pkg/validation; this package only holds data, keeping
// the dependency graph a DAG per spec.md §9 ("split declarations from
// rule tables").
package rulesdata

import (
	"github.com/graphforge/nodemeta/pkg/rules"
	"github.com/graphforge/nodemeta/pkg/semfield"
	"github.com/graphforge/nodemeta/pkg/validation"
)

// Builtin returns the built-in CaptureRule table. It is rebuilt on
// every call rather than shared as a package-level map so that no
// caller can accidentally mutate a value shared across save
// invocations (spec.md §3, "Built-in defaults (immutable)").
func Builtin() map[rules.ClassName]rules.NodeClassRules {
	return map[rules.ClassName]rules.NodeClassRules{
		"CheckpointLoaderSimple": {
			semfield.ModelName: {FieldName: "ckpt_name", Format: validation.FormatterCleanModelName},
			semfield.ModelHash: {FieldName: "ckpt_name", Format: validation.FormatterCalcModelHash},
		},
		"UNETLoader": {
			semfield.ModelName:   {FieldName: "unet_name", Format: validation.FormatterCleanModelName},
			semfield.ModelHash:   {FieldName: "unet_name", Format: validation.FormatterCalcModelHash},
			semfield.WeightDtype: {FieldName: "weight_dtype"},
		},
		"VAELoader": {
			semfield.VAEName: {FieldName: "vae_name", Format: validation.FormatterCleanModelName},
			semfield.VAEHash: {FieldName: "vae_name", Format: validation.FormatterCalcVAEHash},
		},
		"CLIPLoader": {
			semfield.CLIPModelName: {FieldName: "clip_name", Format: validation.FormatterCleanModelName},
		},
		"DualCLIPLoader": {
			semfield.CLIPModelName: {Fields: []string{"clip_name1", "clip_name2"}, Format: validation.FormatterCleanModelName},
		},
		"CLIPSetLastLayer": {
			semfield.CLIPSkip: {FieldName: "stop_at_clip_layer", Format: validation.FormatterConvertSkipClip},
		},
		"CLIPTextEncode": {
			semfield.PositivePrompt: {FieldName: "text", Validate: validation.PredicateIsPositivePrompt, InlineLoraCandidate: true},
			semfield.NegativePrompt: {FieldName: "text", Validate: validation.PredicateIsNegativePrompt},
		},
		"CLIPTextEncodeFlux": {
			semfield.T5Prompt:   {FieldName: "t5xxl"},
			semfield.CLIPPrompt: {FieldName: "clip_l"},
		},
		"EmptyLatentImage": {
			semfield.ImageWidth:  {FieldName: "width"},
			semfield.ImageHeight: {FieldName: "height"},
			semfield.BatchSize:   {FieldName: "batch_size"},
		},
		"EmptySD3LatentImage": {
			semfield.ImageWidth:  {FieldName: "width"},
			semfield.ImageHeight: {FieldName: "height"},
			semfield.BatchSize:   {FieldName: "batch_size"},
		},
		"KSampler": {
			semfield.Seed:        {FieldName: "seed"},
			semfield.Steps:       {FieldName: "steps"},
			semfield.CFG:         {FieldName: "cfg"},
			semfield.SamplerName: {FieldName: "sampler_name"},
			semfield.Scheduler:   {FieldName: "scheduler", Format: validation.FormatterParseSchedCombo},
			semfield.Denoise:     {FieldName: "denoise"},
		},
		"KSamplerAdvanced": {
			semfield.Seed:        {FieldName: "noise_seed"},
			semfield.Steps:       {FieldName: "steps"},
			semfield.CFG:         {FieldName: "cfg"},
			semfield.SamplerName: {FieldName: "sampler_name"},
			semfield.Scheduler:   {FieldName: "scheduler", Format: validation.FormatterParseSchedCombo},
			semfield.StartStep:   {FieldName: "start_at_step"},
			semfield.EndStep:     {FieldName: "end_at_step"},
		},
		"KSamplerSelect": {
			semfield.SamplerName: {FieldName: "sampler_name"},
		},
		"BasicScheduler": {
			semfield.Scheduler: {FieldName: "scheduler"},
			semfield.Steps:     {FieldName: "steps"},
			semfield.Denoise:   {FieldName: "denoise"},
		},
		"FluxGuidance": {
			semfield.Guidance: {FieldName: "guidance"},
		},
		"ModelSamplingFlux": {
			semfield.Shift:     {FieldName: "shift"},
			semfield.MaxShift:  {FieldName: "max_shift"},
			semfield.BaseShift: {FieldName: "base_shift"},
		},
		"LoraLoader": {
			semfield.LoraModelName:     {FieldName: "lora_name", Format: validation.FormatterCleanModelName},
			semfield.LoraModelHash:     {FieldName: "lora_name", Format: validation.FormatterCalcLoraHash},
			semfield.LoraStrengthModel: {FieldName: "strength_model"},
			semfield.LoraStrengthClip:  {FieldName: "strength_clip"},
		},
		"LoraLoaderModelOnly": {
			semfield.LoraModelName:     {FieldName: "lora_name", Format: validation.FormatterCleanModelName},
			semfield.LoraModelHash:     {FieldName: "lora_name", Format: validation.FormatterCalcLoraHash},
			semfield.LoraStrengthModel: {FieldName: "strength_model"},
		},
		"LoraTagLoader": {
			semfield.LoraModelName:     {Selector: validation.SelectorParseInlineLoraTags, Args: map[string]any{"field": "text"}},
			semfield.LoraModelHash:     {Selector: validation.SelectorParseInlineLoraTags, Args: map[string]any{"field": "text"}, Format: validation.FormatterCalcLoraHash},
			semfield.LoraStrengthModel: {Selector: validation.SelectorParseInlineLoraTags, Args: map[string]any{"field": "text"}},
			semfield.LoraStrengthClip:  {Selector: validation.SelectorParseInlineLoraTags, Args: map[string]any{"field": "text"}},
		},
		"CR LoRA Stack": {
			semfield.LoraModelName:     {Selector: validation.SelectorStackByPrefix, Args: map[string]any{"prefix": "lora_name_", "counter_key": "switch_count"}},
			semfield.LoraModelHash:     {Selector: validation.SelectorStackByPrefix, Args: map[string]any{"prefix": "lora_name_", "counter_key": "switch_count"}, Format: validation.FormatterCalcLoraHash},
			semfield.LoraStrengthModel: {Selector: validation.SelectorStackByPrefix, Args: map[string]any{"prefix": "lora_wt_", "counter_key": "switch_count"}},
		},
		"Power Lora Loader (rgthree)": {
			semfield.LoraModelName:     {Selector: validation.SelectorCollectLorasFromLoader, Args: map[string]any{"field": "lora"}},
			semfield.LoraModelHash:     {Selector: validation.SelectorCollectLorasFromLoader, Args: map[string]any{"field": "lora"}, Format: validation.FormatterCalcLoraHash},
			semfield.LoraStrengthModel: {Selector: validation.SelectorCollectLorasFromLoader, Args: map[string]any{"field": "strength"}},
			semfield.LoraStrengthClip:  {Selector: validation.SelectorCollectLorasFromLoader, Args: map[string]any{"field": "strengthTwo"}},
		},
		"SaveImage": {},
		"SaveImageWithMetadata": {},
	}
}

// BuiltinSamplerRoles returns the default SamplerRegistry table: the
// canonical role->input-name mapping for each sampler-like class the
// built-in layer knows about (spec.md §3, SamplerRegistry).
func BuiltinSamplerRoles() map[rules.ClassName]rules.SamplerClassRoles {
	return map[rules.ClassName]rules.SamplerClassRoles{
		"KSampler": {
			rules.RolePositive:    "positive",
			rules.RoleNegative:    "negative",
			rules.RoleLatentImage: "latent_image",
		},
		"KSamplerAdvanced": {
			rules.RolePositive:    "positive",
			rules.RoleNegative:    "negative",
			rules.RoleLatentImage: "latent_image",
		},
		"SamplerCustom": {
			rules.RolePositive:    "positive",
			rules.RoleNegative:    "negative",
			rules.RoleLatentImage: "latent_image",
		},
	}
}
