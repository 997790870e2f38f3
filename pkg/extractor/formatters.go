package extractor

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/graphforge/nodemeta/pkg/artifactresolve"
	"github.com/graphforge/nodemeta/pkg/capterr"
	"github.com/graphforge/nodemeta/pkg/semfield"
	"github.com/graphforge/nodemeta/pkg/validation"
)

var recognizedModelExtensions = map[string]bool{
	"safetensors": true, "st": true, "ckpt": true, "pt": true, "bin": true,
}

// applyFormatter runs a CaptureRule's optional post-processing step
// (spec.md §4.6: "apply spec.format if present"). extra carries any
// additional semantic field a formatter derives alongside its primary
// result (parse_scheduler_combo also yields SAMPLER_NAME).
func applyFormatter(kind validation.FormatterKind, raw any, family artifactresolve.Family, ctx Context) (string, map[semfield.Field]string, error) {
	switch kind {
	case "":
		return valueToString(raw), nil, nil

	case validation.FormatterCleanModelName:
		name, ok := toText(raw)
		if !ok {
			return "", nil, fmt.Errorf("%w: clean_model_name requires a string", capterr.ErrExtraction)
		}
		resolved := ctx.resolver().Resolve(family, name)
		return cleanDisplayName(resolved.DisplayName), nil, nil

	case validation.FormatterCalcModelHash, validation.FormatterCalcVAEHash,
		validation.FormatterCalcLoraHash, validation.FormatterCalcEmbeddingHash:
		name, ok := toText(raw)
		if !ok {
			return "", nil, fmt.Errorf("%w: hash formatter requires a string", capterr.ErrExtraction)
		}
		return calcHash(name, family, ctx)

	case validation.FormatterParseSchedCombo:
		sampler, scheduler, ok := splitSchedulerCombo(raw)
		if !ok {
			return "", nil, fmt.Errorf("%w: unrecognized scheduler combo shape", capterr.ErrExtraction)
		}
		if sampler == "" {
			return scheduler, nil, nil
		}
		return scheduler, map[semfield.Field]string{semfield.SamplerName: sampler}, nil

	case validation.FormatterConvertSkipClip:
		n, ok := toInt(raw)
		if !ok {
			return "", nil, fmt.Errorf("%w: convert_skip_clip requires an integer", capterr.ErrExtraction)
		}
		if n < 0 {
			n = -n
		}
		return strconv.Itoa(n), nil, nil

	default:
		return "", nil, fmt.Errorf("%w: unknown formatter %q", capterr.ErrRuleShape, kind)
	}
}

func calcHash(name string, family artifactresolve.Family, ctx Context) (string, map[semfield.Field]string, error) {
	resolved := ctx.resolver().Resolve(family, name)
	if !resolved.Found {
		return "", nil, fmt.Errorf("%w: artifact %q not found", capterr.ErrArtifactResolution, name)
	}
	rec, err := ctx.HashCache.LoadOrCompute(resolved.AbsolutePath)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", capterr.ErrArtifactIO, err)
	}
	return rec.Truncated, nil, nil
}

// cleanDisplayName strips any directory components and a recognized
// model-file extension from a resolved display name (spec.md §4.6,
// "clean_model_name strips path and extension").
func cleanDisplayName(name string) string {
	base := path.Base(name)
	ext := strings.TrimPrefix(path.Ext(base), ".")
	if recognizedModelExtensions[strings.ToLower(ext)] {
		base = strings.TrimSuffix(base, path.Ext(base))
	}
	return base
}

// splitSchedulerCombo accepts dict, tuple/list, or string forms (spec.md
// §4.6: "accepting dict, tuple/list, or string forms such as
// 'Euler (Karras)'").
func splitSchedulerCombo(raw any) (sampler, scheduler string, ok bool) {
	switch v := raw.(type) {
	case map[string]any:
		s, _ := v["sampler_name"].(string)
		sc, _ := v["scheduler"].(string)
		if sc == "" {
			return "", "", false
		}
		return s, sc, true
	case []any:
		if len(v) == 0 {
			return "", "", false
		}
		if len(v) == 1 {
			sc, ok := v[0].(string)
			return "", sc, ok
		}
		s, _ := v[0].(string)
		sc, _ := v[1].(string)
		return s, sc, true
	case string:
		if i := strings.Index(v, "("); i >= 0 && strings.HasSuffix(v, ")") {
			s := strings.TrimSpace(v[:i])
			sc := strings.TrimSuffix(strings.TrimSpace(v[i+1:]), ")")
			return s, sc, true
		}
		return "", v, true
	default:
		return "", "", false
	}
}

func valueToString(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func toText(raw any) (string, bool) {
	s, ok := raw.(string)
	return s, ok
}

func toInt(raw any) (int, bool) {
	switch n := raw.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	default:
		return 0, false
	}
}
