package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/graphforge/nodemeta/pkg/rules"
)

func TestSplitNonEmpty(t *testing.T) {
	assert.Nil(t, splitNonEmpty(""))
	assert.Equal(t, []string{"debug"}, splitNonEmpty("debug"))
	assert.Equal(t, []string{"debug", "preview"}, splitNonEmpty("debug, preview"))
	assert.Equal(t, []string{"debug", "preview"}, splitNonEmpty("debug,,preview,"))
}

func TestForcedClassNames(t *testing.T) {
	assert.Empty(t, forcedClassNames(""))
	assert.Equal(t,
		[]rules.ClassName{"SaveImage", "PreviewImage"},
		forcedClassNames("SaveImage, PreviewImage"),
	)
}
