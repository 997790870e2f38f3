// Package savepipeline implements the save-node invocation surface
// (spec.md §6.2): it wires the Graph Tracer, Sampler Selector, Field
// Extractor, Parameter Formatter, and Staged Encoder into the single
// call a host runtime makes per save, and the separate User Rule
// Persistence path a scanner-proposal reviewer drives afterward.
//
// Every call builds its own Config-derived ExtractionContext rather
// than reading module-level state (spec.md §9, "explicit
// ExtractionContext built once per save call"): a Pipeline holds only
// the long-lived collaborators (registries, caches, encoders), never
// per-call state.
package savepipeline

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/graphforge/nodemeta/pkg/paramformat"
	"github.com/graphforge/nodemeta/pkg/samplerselect"
)

var validate = validator.New()

// Config is the validated, per-call configuration a host assembles
// from the save-node invocation surface (spec.md §6.2). It is built
// once per call and passed by value; nothing in this package mutates
// it or reads package-level configuration instead.
type Config struct {
	FilenamePrefix string

	// ExtraMetadata is the optional key-value overlay (spec.md §6.2);
	// commas in its values are replaced by "/", a rewrite that
	// extracted values do not get.
	ExtraMetadata map[string]string

	SamplerSelectionMethod samplerselect.Mode
	SamplerSelectionNodeID string

	// IncludeLoraSummary is the UI override that takes precedence over
	// an environment-level toggle (spec.md §6.2); when false, every
	// Lora_* field is dropped from the emitted map before formatting.
	IncludeLoraSummary bool

	// GuidanceAsCFG, when true, replaces the CFG scale field with the
	// captured Guidance value and omits Guidance (spec.md §6.2).
	GuidanceAsCFG bool

	// MaxJPEGExifKB caps the EXIF attempt size before fallback stages
	// engage; 0 selects the Staged Encoder's default maximum.
	MaxJPEGExifKB int `validate:"omitempty,min=1,max=64"`

	// CivitaiSampler applies small sampler-name normalizations (e.g.
	// "euler_karras" -> "Euler Karras") favored by that site's parser.
	CivitaiSampler bool

	ParamFormatMode paramformat.Mode `validate:"omitempty,oneof=compact deterministic_multiline"`

	// MultiSamplerCap is the candidate count above which multi-sampler
	// metadata is emitted; 0 means the traditional single-sampler cap
	// of 1 (spec.md §4.5).
	MultiSamplerCap int

	// RequiredClasses, when non-empty, restricts the Rule Registry to
	// these classes plus its force-include set for this call only
	// (spec.md §4.3), without mutating the shared registry.
	RequiredClasses []string
}

// Validate checks the struct-tag constraints Config declares and
// returns a friendlier error than validator's raw field-path form.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			e := verrs[0]
			return fmt.Errorf("savepipeline: config.%s failed %q constraint", e.Field(), e.Tag())
		}
		return fmt.Errorf("savepipeline: %w", err)
	}
	return nil
}
