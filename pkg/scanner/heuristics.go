package scanner

import (
	"regexp"
	"sort"
	"strings"

	"github.com/graphforge/nodemeta/pkg/rules"
	"github.com/graphforge/nodemeta/pkg/semfield"
	"github.com/graphforge/nodemeta/pkg/validation"
)

// numberedSuffix splits an input name into a non-digit prefix and a
// trailing integer, e.g. "lora_name_1" -> ("lora_name_", "1"), used
// to recognize stack-shaped input families like the teacher's own
// enumeratePrefix convention expects.
var numberedSuffix = regexp.MustCompile(`^(.+?)(\d+)$`)

// heuristicsForClass implements the closed, prioritized heuristic set
// of spec.md §4.9: each declared input is pattern-matched against its
// name (and, for LoRA stacks, against the whole input set) to propose
// a CaptureRule. The set is deliberately small and conservative —
// a false proposal is cheap to reject at review time, but noise adds
// up fast across hundreds of classes.
func heuristicsForClass(spec ClassSpec) rules.NodeClassRules {
	out := rules.NodeClassRules{}

	for _, in := range spec.Inputs {
		name := strings.ToLower(in.Name)

		switch {
		case strings.Contains(name, "seed"):
			setIfAbsent(out, semfield.Seed, rules.Spec{FieldName: in.Name})

		case strings.Contains(name, "steps"):
			setIfAbsent(out, semfield.Steps, rules.Spec{FieldName: in.Name})

		case strings.Contains(name, "cfg"):
			setIfAbsent(out, semfield.CFG, rules.Spec{FieldName: in.Name})

		case strings.Contains(name, "sampler_name"):
			setIfAbsent(out, semfield.SamplerName, rules.Spec{FieldName: in.Name})

		case strings.Contains(name, "scheduler"):
			if looksLikeCombinedSchedulerCombo(in) {
				args := map[string]any{"field": in.Name}
				setIfAbsent(out, semfield.SamplerName, rules.Spec{Selector: validation.SelectorSplitSchedulerCombo, Args: args})
				setIfAbsent(out, semfield.Scheduler, rules.Spec{Selector: validation.SelectorSplitSchedulerCombo, Args: args})
			} else {
				setIfAbsent(out, semfield.Scheduler, rules.Spec{FieldName: in.Name})
			}

		case strings.Contains(name, "ckpt_name"), strings.Contains(name, "unet_name"):
			setIfAbsent(out, semfield.ModelName, rules.Spec{FieldName: in.Name, Format: validation.FormatterCleanModelName})
			setIfAbsent(out, semfield.ModelHash, rules.Spec{FieldName: in.Name, Format: validation.FormatterCalcModelHash})

		case strings.Contains(name, "vae_name"):
			setIfAbsent(out, semfield.VAEName, rules.Spec{FieldName: in.Name, Format: validation.FormatterCleanModelName})
			setIfAbsent(out, semfield.VAEHash, rules.Spec{FieldName: in.Name, Format: validation.FormatterCalcVAEHash})

		case looksLikePromptInput(in):
			if strings.Contains(name, "neg") {
				setIfAbsent(out, semfield.NegativePrompt, rules.Spec{FieldName: in.Name, InlineLoraCandidate: true})
			} else {
				setIfAbsent(out, semfield.PositivePrompt, rules.Spec{FieldName: in.Name, InlineLoraCandidate: true})
			}
		}
	}

	for prefix, counterKey := range loraStackPrefixes(spec.Inputs) {
		args := map[string]any{"prefix": prefix}
		if counterKey != "" {
			args["counter_key"] = counterKey
		}
		setIfAbsent(out, semfield.LoraModelName, rules.Spec{Selector: validation.SelectorStackByPrefix, Args: args})
	}

	return out
}

func setIfAbsent(out rules.NodeClassRules, f semfield.Field, spec rules.Spec) {
	if _, ok := out[f]; !ok {
		out[f] = spec
	}
}

// looksLikeCombinedSchedulerCombo reports whether a COMBO-type
// scheduler input's declared options look like "<sampler>_<scheduler>"
// pairs (e.g. "euler_karras") rather than bare scheduler names.
func looksLikeCombinedSchedulerCombo(in InputSpec) bool {
	if in.Type != "COMBO" || len(in.ComboValues) == 0 {
		return false
	}
	combined := 0
	for _, v := range in.ComboValues {
		if strings.Count(v, "_") >= 1 {
			combined++
		}
	}
	return combined*2 > len(in.ComboValues)
}

// looksLikePromptInput reports whether a STRING input's name suggests
// free-form prompt text rather than some other string parameter.
func looksLikePromptInput(in InputSpec) bool {
	if in.Type != "STRING" {
		return false
	}
	name := strings.ToLower(in.Name)
	return strings.Contains(name, "prompt") || strings.Contains(name, "text")
}

// loraStackPrefixes groups numbered input names sharing a non-digit
// prefix that mentions "lora", returning prefix -> inferred
// counter_key (the first co-occurring input whose name mentions both
// "lora" and "count", or "" if none exists).
func loraStackPrefixes(inputs []InputSpec) map[string]string {
	counts := map[string]int{}
	var counterCandidate string

	for _, in := range inputs {
		lower := strings.ToLower(in.Name)
		if strings.Contains(lower, "lora") && strings.Contains(lower, "count") {
			counterCandidate = in.Name
		}
		m := numberedSuffix.FindStringSubmatch(in.Name)
		if m == nil {
			continue
		}
		prefix := m[1]
		if !strings.Contains(strings.ToLower(prefix), "lora") {
			continue
		}
		counts[prefix]++
	}

	out := map[string]string{}
	prefixes := make([]string, 0, len(counts))
	for p := range counts {
		prefixes = append(prefixes, p)
	}
	sort.Strings(prefixes)
	for _, p := range prefixes {
		if counts[p] >= 2 {
			out[p] = counterCandidate
		}
	}
	return out
}
