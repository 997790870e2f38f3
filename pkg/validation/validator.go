// Package validation validates the wire-format documents the capture
// pipeline reads and writes: user-authored CaptureRule and sampler-role
// JSON documents. It follows the teacher's
// pattern of a singleton *validator.Validate plus a friendlier error
// formatter, extended here with the hand-rolled exclusive-variant
// checks that struct tags alone cannot express.
package validation

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var (
	// validate is a singleton validator instance, reused across calls
	// the way the teacher keeps one package-level *validator.Validate.
	validate *validator.Validate

	classNamePattern = regexp.MustCompile(`^[A-Za-z0-9_./ \-:()]+$`)
	inputNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
)

func init() {
	validate = validator.New()
}

// SelectorKind is the closed set of named extraction procedures a
// CaptureRule may reference (spec.md §4.6).
type SelectorKind string

const (
	SelectorParseInlineLoraTags    SelectorKind = "parse_inline_lora_tags"
	SelectorSplitSchedulerCombo    SelectorKind = "split_scheduler_combo"
	SelectorStackByPrefix          SelectorKind = "select_stack_by_prefix"
	SelectorCollectLorasFromLoader SelectorKind = "collect_loras_from_loader"
)

var knownSelectors = map[SelectorKind]bool{
	SelectorParseInlineLoraTags:    true,
	SelectorSplitSchedulerCombo:    true,
	SelectorStackByPrefix:          true,
	SelectorCollectLorasFromLoader: true,
}

// FormatterKind is the closed set of post-processing formatters.
type FormatterKind string

const (
	FormatterCalcModelHash     FormatterKind = "calc_model_hash"
	FormatterCalcVAEHash       FormatterKind = "calc_vae_hash"
	FormatterCalcLoraHash      FormatterKind = "calc_lora_hash"
	FormatterCalcEmbeddingHash FormatterKind = "calc_embedding_hash"
	FormatterCleanModelName    FormatterKind = "clean_model_name"
	FormatterParseSchedCombo   FormatterKind = "parse_scheduler_combo"
	FormatterConvertSkipClip   FormatterKind = "convert_skip_clip"
)

var knownFormatters = map[FormatterKind]bool{
	FormatterCalcModelHash:     true,
	FormatterCalcVAEHash:       true,
	FormatterCalcLoraHash:      true,
	FormatterCalcEmbeddingHash: true,
	FormatterCleanModelName:    true,
	FormatterParseSchedCombo:   true,
	FormatterConvertSkipClip:   true,
}

// PredicateKind is the closed set of named validate predicates.
type PredicateKind string

const (
	PredicateIsPositivePrompt PredicateKind = "is_positive_prompt"
	PredicateIsNegativePrompt PredicateKind = "is_negative_prompt"
	PredicateNonEmpty         PredicateKind = "non_empty"
)

var knownPredicates = map[PredicateKind]bool{
	PredicateIsPositivePrompt: true,
	PredicateIsNegativePrompt: true,
	PredicateNonEmpty:         true,
}

// RuleSpecDoc is the wire shape of one extraction spec entry within a
// user rule JSON document (spec.md §3, §6.4). Exactly one of
// FieldName, Prefix, or Fields must be set, unless Selector is set, in
// which case none of the other three may be.
type RuleSpecDoc struct {
	FieldName string          `json:"field_name,omitempty" validate:"omitempty,max=128"`
	Prefix    string          `json:"prefix,omitempty" validate:"omitempty,max=128"`
	Fields    []string        `json:"fields,omitempty" validate:"omitempty,max=32,dive,max=128"`
	Selector  SelectorKind    `json:"selector,omitempty"`
	Args      map[string]any  `json:"args,omitempty"`
	Format    FormatterKind   `json:"format,omitempty"`
	Validate  PredicateKind   `json:"validate,omitempty"`
	InlineLoraCandidate bool  `json:"inline_lora_candidate,omitempty"`
}

// NodeClassRulesDoc is the wire shape of one class's rules: semantic
// field name (as a string) -> extraction spec.
type NodeClassRulesDoc map[string]RuleSpecDoc

// CaptureRuleDoc is the top-level wire shape of a user capture-rule
// JSON document: class name -> field name -> extraction spec.
type CaptureRuleDoc map[string]NodeClassRulesDoc

// SamplerRoleDoc is the wire shape of a user sampler-role JSON
// document: class name -> role -> input name.
type SamplerRoleDoc map[string]map[string]string

var validRoles = map[string]bool{"positive": true, "negative": true, "latent_image": true}

// ValidateCaptureRuleDoc validates an entire user capture-rule
// document and returns one error per invalid entry, identified by
// class and field so the caller can log-and-skip just that entry
// (spec.md §7, RuleShapeError: "the entry is ignored; the rest of the
// document continues to load").
func ValidateCaptureRuleDoc(doc CaptureRuleDoc) []error {
	var errs []error
	for class, fields := range doc {
		if !classNamePattern.MatchString(class) {
			errs = append(errs, fmt.Errorf("class %q: invalid class name", class))
			continue
		}
		for field, spec := range fields {
			if err := ValidateRuleSpec(spec); err != nil {
				errs = append(errs, fmt.Errorf("class %q field %q: %w", class, field, err))
			}
		}
	}
	return errs
}

// ValidateSamplerRoleDoc validates a user sampler-role document.
func ValidateSamplerRoleDoc(doc SamplerRoleDoc) []error {
	var errs []error
	for class, roles := range doc {
		if !classNamePattern.MatchString(class) {
			errs = append(errs, fmt.Errorf("class %q: invalid class name", class))
			continue
		}
		for role, inputName := range roles {
			if !validRoles[role] {
				errs = append(errs, fmt.Errorf("class %q: unknown role %q", class, role))
				continue
			}
			if !inputNamePattern.MatchString(inputName) {
				errs = append(errs, fmt.Errorf("class %q role %q: invalid input name %q", class, role, inputName))
			}
		}
	}
	return errs
}

// ValidateRuleSpec checks that an extraction spec uses exactly one
// variant (field_name | prefix | fields | selector) and that its
// optional format/validate/selector names belong to the closed sets
// declared above (spec.md §3, §9 "closed enumeration ... dispatch").
func ValidateRuleSpec(spec RuleSpecDoc) error {
	if err := validate.Struct(spec); err != nil {
		return formatValidationError(err)
	}

	variants := 0
	if spec.FieldName != "" {
		variants++
	}
	if spec.Prefix != "" {
		variants++
	}
	if len(spec.Fields) > 0 {
		variants++
	}
	if spec.Selector != "" {
		variants++
	}

	switch {
	case variants == 0:
		return errors.New("extraction spec must set one of field_name, prefix, fields, or selector")
	case variants > 1:
		return errors.New("extraction spec must set exactly one of field_name, prefix, fields, or selector")
	}

	if spec.Selector != "" && !knownSelectors[spec.Selector] {
		return fmt.Errorf("unknown selector %q", spec.Selector)
	}
	if spec.Format != "" && !knownFormatters[spec.Format] {
		return fmt.Errorf("unknown formatter %q", spec.Format)
	}
	if spec.Validate != "" && !knownPredicates[spec.Validate] {
		return fmt.Errorf("unknown predicate %q", spec.Validate)
	}
	if spec.InlineLoraCandidate && spec.Selector != SelectorParseInlineLoraTags && spec.FieldName == "" {
		// inline_lora_candidate only makes sense on prompt-text fields;
		// it is harmless but suspicious outside that context, so flag
		// it rather than silently ignore it.
		return errors.New("inline_lora_candidate set on a spec with no scalar field_name or inline-lora selector")
	}

	return nil
}

// formatValidationError converts validator errors to a more
// user-friendly format, matching the teacher's switch-on-tag style.
func formatValidationError(err error) error {
	if err == nil {
		return nil
	}

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	for _, e := range validationErrs {
		field := e.Field()
		tag := e.Tag()
		param := e.Param()

		switch tag {
		case "required":
			return fmt.Errorf("%s: field is required", field)
		case "max":
			return fmt.Errorf("%s: must not exceed %s", field, param)
		case "dive":
			return fmt.Errorf("%s: invalid element in array", field)
		default:
			return fmt.Errorf("%s: validation failed (%s)", field, tag)
		}
	}

	return err
}
