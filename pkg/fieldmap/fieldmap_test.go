package fieldmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphforge/nodemeta/pkg/semfield"
)

func TestRender_ScalarFieldsFollowCanonicalOrder(t *testing.T) {
	m := New()
	m.Set(semfield.Seed, "123")
	m.Set(semfield.PositivePrompt, "a cat")
	m.Set(semfield.Steps, "20")

	entries := m.Render()
	require.Len(t, entries, 3)
	assert.Equal(t, "Positive prompt", entries[0].Key)
	assert.Equal(t, "Seed", entries[1].Key)
	assert.Equal(t, "Steps", entries[2].Key)
}

func TestRender_GeneratorVersionAlwaysLast(t *testing.T) {
	m := New()
	m.Set(semfield.GeneratorVersion, "1.2.3")
	m.Set(semfield.Seed, "1")
	m.Set(semfield.PositivePrompt, "x")

	entries := m.Render()
	require.Len(t, entries, 3)
	assert.Equal(t, "Metadata generator version", entries[len(entries)-1].Key)
	assert.Equal(t, "1.2.3", entries[len(entries)-1].Value)
}

func TestRender_LoraFamilySlotMajorNotFieldMajor(t *testing.T) {
	m := New()
	m.SetSlot(semfield.LoraModelName, 1, "a.safetensors")
	m.SetSlot(semfield.LoraStrengthModel, 1, "0.97")
	m.SetSlot(semfield.LoraStrengthClip, 1, "0.88")
	m.SetSlot(semfield.LoraModelName, 2, "b.safetensors")
	m.SetSlot(semfield.LoraStrengthModel, 2, "0.6")
	m.SetSlot(semfield.LoraStrengthClip, 2, "0.51")

	entries := m.Render()
	var keys []string
	for _, e := range entries {
		keys = append(keys, e.Key)
	}
	assert.Equal(t, []string{
		"Lora_1 Model name", "Lora_1 Strength model", "Lora_1 Strength clip",
		"Lora_2 Model name", "Lora_2 Strength model", "Lora_2 Strength clip",
	}, keys)
}

func TestRender_LoraGapSkippedIfCallerOmitsSlot(t *testing.T) {
	// The extractor owns gap removal and consecutive renumbering; Map
	// only renders what it was given. A caller that skips slot 2 leaves
	// a hole in this map's rendering, exercising that Map itself makes
	// no attempt to compact.
	m := New()
	m.SetSlot(semfield.LoraModelName, 1, "a.safetensors")
	m.SetSlot(semfield.LoraModelName, 3, "c.safetensors")

	entries := m.Render()
	require.Len(t, entries, 2)
	assert.Equal(t, "Lora_1 Model name", entries[0].Key)
	assert.Equal(t, "Lora_3 Model name", entries[1].Key)
}

func TestRender_HashesSummaryOmittedWhenEmpty(t *testing.T) {
	m := New()
	m.Set(semfield.Seed, "1")

	entries := m.Render()
	for _, e := range entries {
		assert.NotEqual(t, "Hashes", e.Key)
	}
}

func TestRender_HashesSummaryIsSortedJSONObject(t *testing.T) {
	m := New()
	m.SetHash("vae", "bbbbbbbbbb")
	m.SetHash("model", "aaaaaaaaaa")

	entries := m.Render()
	var got string
	for _, e := range entries {
		if e.Key == "Hashes" {
			got = e.Value
		}
	}
	assert.Equal(t, `{"model":"aaaaaaaaaa","vae":"bbbbbbbbbb"}`, got)
}

func TestHashDetail_SuppressedReturnsNil(t *testing.T) {
	m := New()
	m.SetHash("model", "aaaaaaaaaa")
	m.SetSuppressHashDetail(true)

	assert.Nil(t, m.HashDetail())
	entries := m.Render()
	var found bool
	for _, e := range entries {
		if e.Key == "Hashes" {
			found = true
		}
	}
	assert.True(t, found, "Hashes field rendering must be unaffected by suppression")
}

func TestHashDetail_ReturnsCopyNotAlias(t *testing.T) {
	m := New()
	m.SetHash("model", "aaaaaaaaaa")

	detail := m.HashDetail()
	detail["model"] = "mutated"

	assert.Equal(t, "aaaaaaaaaa", m.HashDetail()["model"])
}
