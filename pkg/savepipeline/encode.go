package savepipeline

import (
	"fmt"
	"strings"

	"github.com/graphforge/nodemeta/pkg/fieldmap"
)

// encodeOne dispatches one batch image to the Staged Encoder by
// container kind and renders its filename (spec.md §6.3). Container A
// additionally carries extra_metadata through the PNG info keys slot
// it already exposes; Container B's side document gets it appended as
// a trailing line. Container C's tight EXIF budget and closed
// minimal-stage allowlist (spec.md §4.8) never carry extra_metadata —
// see DESIGN.md.
func (p *Pipeline) encodeOne(img ImageInput, m *fieldmap.Map, cfg Config) (ImageResult, error) {
	filename := renderFilename(cfg.FilenamePrefix, m)

	switch img.Container {
	case ContainerPNG:
		pngInfo := mergeExtraMetadata(img.PNGInfoKeys, cfg.ExtraMetadata)
		res, err := p.Encoder.EncodePNG(img.Bytes, img.WorkflowJSON, m, cfg.ParamFormatMode, pngInfo)
		if err != nil {
			return ImageResult{}, fmt.Errorf("savepipeline: encode png: %w", err)
		}
		return ImageResult{Bytes: res.Bytes, Stage: res.Stage, Filename: filename}, nil

	case ContainerSideMetadata:
		res := p.Encoder.EncodeSideMetadata(img.WorkflowJSON, m, cfg.ParamFormatMode)
		side := appendExtraMetadataBytes(res.Bytes, cfg.ExtraMetadata)
		return ImageResult{Bytes: img.Bytes, SideMetadata: side, Stage: res.Stage, Filename: filename}, nil

	default:
		res, err := p.Encoder.EncodeJPEG(img.Bytes, img.WorkflowJSON, m, cfg.ParamFormatMode, cfg.MaxJPEGExifKB*1024)
		if err != nil {
			return ImageResult{}, fmt.Errorf("savepipeline: encode jpeg: %w", err)
		}
		return ImageResult{Bytes: res.Bytes, Stage: res.Stage, Filename: filename}, nil
	}
}

// mergeExtraMetadata overlays sanitized extra_metadata entries onto a
// caller-supplied PNG info map without mutating the caller's map.
func mergeExtraMetadata(pngInfo map[string]string, extra map[string]string) map[string]string {
	if len(extra) == 0 {
		return pngInfo
	}
	out := make(map[string]string, len(pngInfo)+len(extra))
	for k, v := range pngInfo {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = strings.ReplaceAll(v, ",", "/")
	}
	return out
}

func appendExtraMetadataBytes(payload []byte, extra map[string]string) []byte {
	if len(extra) == 0 {
		return payload
	}
	text := appendExtraMetadata("", extra)
	return append(payload, []byte("\n"+text)...)
}
