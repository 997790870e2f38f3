package scanner

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/graphforge/nodemeta/pkg/rules"
	"github.com/graphforge/nodemeta/pkg/semfield"
)

// UserDocRef identifies one on-disk user rule document by path and
// its last observed modification time, used only to key the baseline
// cache; the scanner never reads these files itself, it trusts the
// already-loaded Registry passed into Scan.
type UserDocRef struct {
	Path    string
	ModTime time.Time
}

// fieldBaseline maps class -> set of fields already covered by the
// union of every registry layer, used by missing-lens mode to report
// only what is still absent.
type fieldBaseline map[rules.ClassName]map[semfield.Field]bool

type cachedBaseline struct {
	key      string
	baseline fieldBaseline
}

// baselineCache holds at most one entry: the most recently computed
// baseline and the doc-ref key it was built from (spec.md §4.9,
// "repeated scans avoid rebuilding it").
type baselineCache struct {
	mu    sync.Mutex
	entry *cachedBaseline
}

func docRefKey(refs []UserDocRef) string {
	parts := make([]string, 0, len(refs))
	for _, r := range refs {
		parts = append(parts, r.Path+"@"+r.ModTime.UTC().Format(time.RFC3339Nano))
	}
	sort.Strings(parts)
	return strings.Join(parts, "|")
}

// get returns the cached baseline for refs if the cache already holds
// one built from the identical set of (path, mtime) pairs.
func (c *baselineCache) get(refs []UserDocRef) (fieldBaseline, bool) {
	key := docRefKey(refs)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entry != nil && c.entry.key == key {
		return c.entry.baseline, true
	}
	return nil, false
}

func (c *baselineCache) put(refs []UserDocRef, baseline fieldBaseline) {
	key := docRefKey(refs)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entry = &cachedBaseline{key: key, baseline: baseline}
}

// buildBaseline walks every class the registry knows about and
// records which fields are already supplied by some layer.
func buildBaseline(registry *rules.Registry) fieldBaseline {
	baseline := fieldBaseline{}
	for _, class := range registry.KnownClasses() {
		fields, ok := registry.Resolve(class)
		if !ok {
			continue
		}
		set := make(map[semfield.Field]bool, len(fields))
		for f := range fields {
			set[f] = true
		}
		baseline[class] = set
	}
	return baseline
}
