package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRuleSpec_ExactlyOneVariant(t *testing.T) {
	require.NoError(t, ValidateRuleSpec(RuleSpecDoc{FieldName: "ckpt_name"}))
	require.NoError(t, ValidateRuleSpec(RuleSpecDoc{Prefix: "clip_name"}))
	require.NoError(t, ValidateRuleSpec(RuleSpecDoc{Fields: []string{"a", "b"}}))
	require.NoError(t, ValidateRuleSpec(RuleSpecDoc{Selector: SelectorSplitSchedulerCombo}))

	err := ValidateRuleSpec(RuleSpecDoc{})
	assert.Error(t, err)

	err = ValidateRuleSpec(RuleSpecDoc{FieldName: "a", Prefix: "b"})
	assert.Error(t, err)
}

func TestValidateRuleSpec_UnknownSelectorRejected(t *testing.T) {
	err := ValidateRuleSpec(RuleSpecDoc{Selector: "not_a_real_selector"})
	assert.Error(t, err)
}

func TestValidateRuleSpec_UnknownFormatterRejected(t *testing.T) {
	err := ValidateRuleSpec(RuleSpecDoc{FieldName: "ckpt_name", Format: "not_a_real_formatter"})
	assert.Error(t, err)
}

func TestValidateCaptureRuleDoc_PartialFailureIsolatesEntry(t *testing.T) {
	doc := CaptureRuleDoc{
		"CheckpointLoaderSimple": {
			"MODEL_NAME": RuleSpecDoc{FieldName: "ckpt_name"},
			"MODEL_HASH": RuleSpecDoc{}, // invalid: no variant set
		},
	}
	errs := ValidateCaptureRuleDoc(doc)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "MODEL_HASH")
}

func TestValidateSamplerRoleDoc(t *testing.T) {
	doc := SamplerRoleDoc{
		"KSampler": {"positive": "positive", "negative": "negative"},
	}
	assert.Empty(t, ValidateSamplerRoleDoc(doc))

	bad := SamplerRoleDoc{
		"KSampler": {"sideways": "positive"},
	}
	errs := ValidateSamplerRoleDoc(bad)
	require.Len(t, errs, 1)
}
