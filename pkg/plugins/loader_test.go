package plugins

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphforge/nodemeta/pkg/rules"
	"github.com/graphforge/nodemeta/pkg/semfield"
)

func writeModule(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadDir_NonExistentDir(t *testing.T) {
	l := NewLoader(nil)
	mods, err := l.LoadDir("/nonexistent/path/that/does/not/exist")
	require.NoError(t, err)
	assert.Empty(t, mods)
}

func TestLoadDir_EmptyDir(t *testing.T) {
	dir := t.TempDir()
	l := NewLoader(nil)
	mods, err := l.LoadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, mods)
}

func TestLoadDir_ParsesCaptureAndSamplerRules(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "flux.yaml", `
captures:
  FluxGuidance:
    GUIDANCE:
      field_name: guidance
samplers:
  FluxSampler:
    positive: conditioning
    negative: conditioning_neg
`)

	l := NewLoader(nil)
	mods, err := l.LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, mods, 1)

	mod := mods[0]
	assert.Equal(t, "flux", mod.Name)
	classRules, ok := mod.CaptureRules[rules.ClassName("FluxGuidance")]
	require.True(t, ok)
	spec, ok := classRules[semfield.Guidance]
	require.True(t, ok)
	assert.Equal(t, "guidance", spec.FieldName)

	roles, ok := mod.SamplerRoles[rules.ClassName("FluxSampler")]
	require.True(t, ok)
	assert.Equal(t, "conditioning", roles[rules.RolePositive])
	assert.Equal(t, "conditioning_neg", roles[rules.RoleNegative])
}

func TestLoadDir_SkipsExamplesAndDunderNames(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "sdxl_examples.yaml", `captures: {Foo: {SEED: {field_name: seed}}}`)
	writeModule(t, dir, "__scratch.yaml", `captures: {Foo: {SEED: {field_name: seed}}}`)
	writeModule(t, dir, "real.yaml", `captures: {Foo: {SEED: {field_name: seed}}}`)

	l := NewLoader(nil)
	mods, err := l.LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, mods, 1)
	assert.Equal(t, "real", mods[0].Name)
}

func TestLoadDir_UnparsableModuleIsSkippedNotFatal(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "bad.yaml", "captures: [this is not a map")
	writeModule(t, dir, "good.yaml", `captures: {Foo: {SEED: {field_name: seed}}}`)

	l := NewLoader(nil)
	mods, err := l.LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, mods, 1)
	assert.Equal(t, "good", mods[0].Name)
}

func TestLoadDir_UnknownFieldNameEntrySkipped(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "typo.yaml", `
captures:
  Foo:
    SEEED:
      field_name: seed
    STEPS:
      field_name: steps
`)

	l := NewLoader(nil)
	mods, err := l.LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, mods, 1)

	classRules := mods[0].CaptureRules[rules.ClassName("Foo")]
	assert.Len(t, classRules, 1)
	_, ok := classRules[semfield.Steps]
	assert.True(t, ok)
}

func TestLoadDir_InvalidSpecShapeSkipped(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "bad_spec.yaml", `
captures:
  Foo:
    SEED:
      field_name: seed
      prefix: also_set
    STEPS:
      field_name: steps
`)

	l := NewLoader(nil)
	mods, err := l.LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, mods, 1)

	classRules := mods[0].CaptureRules[rules.ClassName("Foo")]
	assert.Len(t, classRules, 1)
	_, ok := classRules[semfield.Seed]
	assert.False(t, ok, "exclusive-variant violation should be rejected")
}

func TestLoadDir_UnknownSamplerRoleSkipped(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "roles.yaml", `
samplers:
  Foo:
    positive: cond
    sideways: bogus
`)

	l := NewLoader(nil)
	mods, err := l.LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, mods, 1)

	roles := mods[0].SamplerRoles[rules.ClassName("Foo")]
	assert.Len(t, roles, 1)
	assert.Equal(t, "cond", roles[rules.RolePositive])
}
