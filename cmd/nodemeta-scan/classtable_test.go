package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadClassTable_ParsesSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "classes.json")
	const body = `{
		"KSampler": {"Inputs": [
			{"Name": "seed", "Type": "INT"},
			{"Name": "sampler_name", "Type": "COMBO", "ComboValues": ["euler", "dpmpp_2m"]}
		]}
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	table, err := loadClassTable(path)

	require.NoError(t, err)
	require.Contains(t, table, "KSampler")
	spec := table["KSampler"]
	require.Len(t, spec.Inputs, 2)
	assert.Equal(t, "seed", spec.Inputs[0].Name)
	assert.Equal(t, []string{"euler", "dpmpp_2m"}, spec.Inputs[1].ComboValues)
}

func TestLoadClassTable_MissingFile(t *testing.T) {
	_, err := loadClassTable(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadClassTable_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "classes.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	_, err := loadClassTable(path)

	assert.Error(t, err)
}
