package savepipeline

import (
	"strconv"
	"strings"
	"time"

	"github.com/graphforge/nodemeta/pkg/fieldmap"
	"github.com/graphforge/nodemeta/pkg/filenametoken"
	"github.com/graphforge/nodemeta/pkg/semfield"
)

// renderFilename substitutes filenametoken's grammar against the
// values captured for this save call (spec.md §6.3). The numbered
// counter a host appends on top of this result (so that multiple
// images in one batch don't collide on disk) is a filesystem concern
// out of scope here.
func renderFilename(prefix string, m *fieldmap.Map) string {
	values := filenametoken.Values{
		PositivePrompt: get(m, semfield.PositivePrompt),
		NegativePrompt: get(m, semfield.NegativePrompt),
		ModelBaseName:  get(m, semfield.ModelName),
	}
	if seed, err := strconv.ParseInt(get(m, semfield.Seed), 10, 64); err == nil {
		values.Seed = seed
	}
	values.Width, values.Height = parseSize(get(m, semfield.SizeCombined))

	return filenametoken.Render(prefix, values, time.Now())
}

func get(m *fieldmap.Map, f semfield.Field) string {
	v, _ := m.Get(f)
	return v
}

func parseSize(size string) (int, int) {
	w, h, found := strings.Cut(size, "x")
	if !found {
		return 0, 0
	}
	width, err := strconv.Atoi(w)
	if err != nil {
		return 0, 0
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return 0, 0
	}
	return width, height
}
