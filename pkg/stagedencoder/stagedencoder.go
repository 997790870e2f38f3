// Package stagedencoder implements the Staged Encoder / Fallback
// Controller (spec.md §4.8): it writes the rendered parameter string
// (and, where the container allows it, the full workflow graph) into
// an output image, degrading through a fixed ladder of stages when
// the target container's metadata segment is too small to hold the
// full payload.
//
// Containers A (PNG) and B (other lossless binary formats) carry no
// practical size ceiling and always succeed at the full stage.
// Container C (JPEG) constrains a single EXIF segment to at most 64
// KiB, so it alone drives the stage ladder: full, reduced-exif,
// minimal, com-marker.
package stagedencoder

import (
	"fmt"

	"github.com/graphforge/nodemeta/pkg/capterr"
	"github.com/graphforge/nodemeta/pkg/fieldmap"
	"github.com/graphforge/nodemeta/pkg/logging"
	"github.com/graphforge/nodemeta/pkg/metrics"
	"github.com/graphforge/nodemeta/pkg/paramformat"
	"github.com/graphforge/nodemeta/pkg/semfield"
)

// Stage identifies which rung of the fallback ladder an encode call
// settled on. Containers A and B always report StageFull.
type Stage string

const (
	StageFull        Stage = "full"
	StageReducedExif Stage = "reduced-exif"
	StageMinimal     Stage = "minimal"
	StageComMarker   Stage = "com-marker"
)

const (
	minExifLimitBytes = 1 * 1024
	maxExifLimitBytes = 64 * 1024
)

// Result is the outcome of one encode call: the finished image bytes
// and the stage actually reached, exposed so a batch caller can
// observe the fallback distribution per image (spec.md §4.8).
type Result struct {
	Bytes []byte
	Stage Stage
}

// Controller is the Staged Encoder. It is safe for concurrent use;
// every method is stateless over its arguments.
type Controller struct {
	logger  logging.Logger
	metrics *metrics.Registry
}

// New creates a Controller. A nil logger or metrics registry disables
// the corresponding instrumentation.
func New(logger logging.Logger, reg *metrics.Registry) *Controller {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Controller{logger: logger, metrics: reg}
}

// minimalAllowlist is the closed set of fields the minimal and
// com-marker stages are permitted to retain (spec.md §4.8): prompts,
// the core sampler settings, model/VAE identity and hashes, size, the
// hash-detail summary, every Lora_* slot, and the generator version.
var minimalAllowlist = map[semfield.Field]bool{
	semfield.PositivePrompt:     true,
	semfield.NegativePrompt:     true,
	semfield.Steps:              true,
	semfield.SamplerName:        true,
	semfield.CFG:                true,
	semfield.Guidance:           true,
	semfield.Seed:               true,
	semfield.ModelName:          true,
	semfield.ModelHash:          true,
	semfield.VAEName:            true,
	semfield.VAEHash:            true,
	semfield.SizeCombined:       true,
	semfield.HashesSummary:      true,
	semfield.LoraModelName:      true,
	semfield.LoraModelHash:      true,
	semfield.LoraStrengthModel:  true,
	semfield.LoraStrengthClip:   true,
	semfield.GeneratorVersion:   true,
}

func isAllowlisted(f semfield.Field) bool {
	return minimalAllowlist[f]
}

func clampLimit(n int) int {
	if n <= 0 {
		return maxExifLimitBytes
	}
	if n < minExifLimitBytes {
		return minExifLimitBytes
	}
	if n > maxExifLimitBytes {
		return maxExifLimitBytes
	}
	return n
}

func combinePayload(workflowJSON, params string) string {
	if workflowJSON == "" {
		return params
	}
	return "Workflow: " + workflowJSON + "\n" + params
}

// EncodePNG implements Container A: the full payload (workflow graph
// plus parameters) is embedded unconditionally as PNG tEXt chunks,
// alongside any extra PNG info keys the caller wants carried through.
// Container A has no size ceiling, so this always reports StageFull.
func (c *Controller) EncodePNG(pngBytes []byte, workflowJSON string, m *fieldmap.Map, mode paramformat.Mode, pngInfoKeys map[string]string) (Result, error) {
	params := paramformat.Format(m, mode, "")
	out, err := injectPNGTextChunks(pngBytes, workflowJSON, params, pngInfoKeys)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", capterr.ErrEncoderRejected, err)
	}
	c.recordStage(StageFull)
	return Result{Bytes: out, Stage: StageFull}, nil
}

// EncodeSideMetadata implements Container B: a lossless binary format
// with no embeddable text-chunk mechanism of its own, so the full
// payload is returned as a side document the caller persists next to
// the image rather than inside it. Container B has no size ceiling,
// so this always reports StageFull.
func (c *Controller) EncodeSideMetadata(workflowJSON string, m *fieldmap.Map, mode paramformat.Mode) Result {
	params := paramformat.Format(m, mode, "")
	c.recordStage(StageFull)
	return Result{Bytes: []byte(combinePayload(workflowJSON, params)), Stage: StageFull}
}

// EncodeJPEG implements Container C's fallback ladder. limitBytes is
// clamped into [1 KiB, 64 KiB]; a non-positive value selects the
// maximum.
func (c *Controller) EncodeJPEG(jpegBytes []byte, workflowJSON string, m *fieldmap.Map, mode paramformat.Mode, limitBytes int) (Result, error) {
	limit := clampLimit(limitBytes)
	params := paramformat.Format(m, mode, "")

	if rootIb, raw, err := encodeExifPayload(combinePayload(workflowJSON, params)); err == nil && len(raw) <= limit {
		if out, err := writeExifSegment(jpegBytes, rootIb); err == nil {
			c.recordStage(StageFull)
			return Result{Bytes: out, Stage: StageFull}, nil
		}
	}

	if _, raw, err := encodeExifPayload(params); err == nil && len(raw) <= limit {
		annotated := paramformat.Format(m, mode, string(StageReducedExif))
		if rootIb, _, err := encodeExifPayload(annotated); err == nil {
			if out, err := writeExifSegment(jpegBytes, rootIb); err == nil {
				c.recordStage(StageReducedExif)
				return Result{Bytes: out, Stage: StageReducedExif}, nil
			}
		}
	}
	c.logger.Debug("staged encoder: reduced-exif stage did not fit, falling back", logging.Field{Key: "limit_bytes", Value: limit})

	minimal := m.Filter(isAllowlisted)
	minimalParams := paramformat.Format(minimal, mode, "")
	if _, raw, err := encodeExifPayload(minimalParams); err == nil && len(raw) <= limit {
		annotated := paramformat.Format(minimal, mode, string(StageMinimal))
		if rootIb, _, err := encodeExifPayload(annotated); err == nil {
			if out, err := writeExifSegment(jpegBytes, rootIb); err == nil {
				c.recordStage(StageMinimal)
				return Result{Bytes: out, Stage: StageMinimal}, nil
			}
		}
	}
	c.logger.Debug("staged encoder: minimal stage did not fit, falling back to com-marker", logging.Field{Key: "limit_bytes", Value: limit})

	comAnnotated := paramformat.Format(minimal, mode, string(StageComMarker))
	out, err := writeComMarker(jpegBytes, comAnnotated)
	if err != nil {
		c.recordEncoderRejected()
		return Result{}, fmt.Errorf("%w: %v", capterr.ErrEncoderRejected, err)
	}
	c.recordStage(StageComMarker)
	return Result{Bytes: out, Stage: StageComMarker}, nil
}

func (c *Controller) recordStage(s Stage) {
	if c.metrics != nil {
		c.metrics.RecordFallbackStage(string(s))
	}
}

func (c *Controller) recordEncoderRejected() {
	if c.metrics != nil {
		c.metrics.EncoderRejectedTotal.Inc()
	}
}
