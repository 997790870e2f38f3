package rules

import (
	"sort"

	"github.com/graphforge/nodemeta/pkg/logging"
	"github.com/graphforge/nodemeta/pkg/semfield"
)

// Layer identifies which of the three overlay sources a class's rules
// came from, for logging and for the scanner's "missing lens" mode.
type Layer int

const (
	LayerBuiltin Layer = iota
	LayerExtension
	LayerUser
)

func (l Layer) String() string {
	switch l {
	case LayerBuiltin:
		return "builtin"
	case LayerExtension:
		return "extension"
	case LayerUser:
		return "user"
	default:
		return "unknown"
	}
}

// Registry is the merged CaptureRule table: built-in defaults
// overlaid by extension modules overlaid by the user document, merged
// field-by-field within a class rather than whole-class replacement
// (spec.md §4.1, "Overlay semantics").
type Registry struct {
	builtin    map[ClassName]NodeClassRules
	extensions map[ClassName]NodeClassRules
	user       map[ClassName]NodeClassRules

	requiredClasses map[ClassName]bool
	forceInclude    map[ClassName]bool

	logger logging.Logger
}

// NewRegistry builds an empty registry seeded with built-in defaults.
func NewRegistry(builtin map[ClassName]NodeClassRules, logger logging.Logger) *Registry {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Registry{
		builtin:         builtin,
		extensions:      map[ClassName]NodeClassRules{},
		user:            map[ClassName]NodeClassRules{},
		requiredClasses: map[ClassName]bool{},
		forceInclude:    map[ClassName]bool{},
		logger:          logger,
	}
}

// Clone returns a registry with its own required_classes and
// force-include sets: a caller that needs a one-off required_classes
// scope for a single concurrent save call (spec.md §4.3) calls Clone
// rather than mutating r, which other in-flight calls may be reading
// (spec.md §5, "thread-safe at the object level"). The
// builtin/extension/user layer maps are shared with r by reference
// (Spec values are immutable once loaded), so the clone is cheap, and
// a LoadExtension or LoadUser call on either registry is visible to
// both.
func (r *Registry) Clone() *Registry {
	return &Registry{
		builtin:         r.builtin,
		extensions:      r.extensions,
		user:            r.user,
		requiredClasses: map[ClassName]bool{},
		forceInclude:    copyClassSet(r.forceInclude),
		logger:          r.logger,
	}
}

func copyClassSet(src map[ClassName]bool) map[ClassName]bool {
	out := make(map[ClassName]bool, len(src))
	for c := range src {
		out[c] = true
	}
	return out
}

// LoadExtension merges one extension module's rule table into the
// extension layer. A later extension's field wins over an earlier
// one's for the same class+field, matching last-writer-wins overlay
// semantics (spec.md §4.1).
func (r *Registry) LoadExtension(rules map[ClassName]NodeClassRules) {
	for class, fields := range rules {
		dst, ok := r.extensions[class]
		if !ok {
			dst = NodeClassRules{}
			r.extensions[class] = dst
		}
		for field, spec := range fields {
			dst[field] = spec
		}
	}
}

// LoadUser merges a user document's rule table into the user layer,
// the highest-priority overlay.
func (r *Registry) LoadUser(rules map[ClassName]NodeClassRules) {
	for class, fields := range rules {
		dst, ok := r.user[class]
		if !ok {
			dst = NodeClassRules{}
			r.user[class] = dst
		}
		for field, spec := range fields {
			dst[field] = spec
		}
	}
}

// SetRequiredClasses restricts Resolve to these classes only, unless a
// class is also in the force-include set (spec.md §4.1,
// "required_classes filtering").
func (r *Registry) SetRequiredClasses(classes []ClassName) {
	r.requiredClasses = map[ClassName]bool{}
	for _, c := range classes {
		r.requiredClasses[c] = true
	}
}

// SetForceInclude marks classes that bypass required_classes
// filtering unconditionally (e.g. always-capture generator metadata).
func (r *Registry) SetForceInclude(classes []ClassName) {
	r.forceInclude = map[ClassName]bool{}
	for _, c := range classes {
		r.forceInclude[c] = true
	}
}

// Allowed reports whether a class is eligible for evaluation under the
// current required_classes/force-include configuration.
func (r *Registry) Allowed(class ClassName) bool {
	if len(r.requiredClasses) == 0 {
		return true
	}
	return r.requiredClasses[class] || r.forceInclude[class]
}

// Resolve returns the merged NodeClassRules for one class: builtin
// fields overlaid by extension fields overlaid by user fields, field
// by field, not as a whole-class replacement.
func (r *Registry) Resolve(class ClassName) (NodeClassRules, bool) {
	merged := NodeClassRules{}
	found := false

	if base, ok := r.builtin[class]; ok {
		found = true
		for f, s := range base {
			merged[f] = s
		}
	}
	if ext, ok := r.extensions[class]; ok {
		found = true
		for f, s := range ext {
			merged[f] = s
		}
	}
	if usr, ok := r.user[class]; ok {
		found = true
		for f, s := range usr {
			merged[f] = s
		}
	}

	if !found {
		return nil, false
	}
	return merged, true
}

// LayerFor reports which layer last set a given class+field, for the
// scanner's missing-lens diagnostics.
func (r *Registry) LayerFor(class ClassName, field semfield.Field) Layer {
	if usr, ok := r.user[class]; ok {
		if _, ok := usr[field]; ok {
			return LayerUser
		}
	}
	if ext, ok := r.extensions[class]; ok {
		if _, ok := ext[field]; ok {
			return LayerExtension
		}
	}
	return LayerBuiltin
}

// KnownClasses returns every class name named by any layer, sorted.
func (r *Registry) KnownClasses() []ClassName {
	set := map[ClassName]bool{}
	for c := range r.builtin {
		set[c] = true
	}
	for c := range r.extensions {
		set[c] = true
	}
	for c := range r.user {
		set[c] = true
	}
	out := make([]ClassName, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SamplerRegistry is the equivalent layered table for sampler role
// assignments (spec.md §4.3): which input name on a sampler-like class
// carries the positive/negative/latent_image role.
type SamplerRegistry struct {
	builtin    map[ClassName]SamplerClassRoles
	extensions map[ClassName]SamplerClassRoles
	user       map[ClassName]SamplerClassRoles
}

func NewSamplerRegistry(builtin map[ClassName]SamplerClassRoles) *SamplerRegistry {
	return &SamplerRegistry{
		builtin:    builtin,
		extensions: map[ClassName]SamplerClassRoles{},
		user:       map[ClassName]SamplerClassRoles{},
	}
}

func (r *SamplerRegistry) LoadExtension(roles map[ClassName]SamplerClassRoles) {
	mergeSamplerLayer(r.extensions, roles)
}

func (r *SamplerRegistry) LoadUser(roles map[ClassName]SamplerClassRoles) {
	mergeSamplerLayer(r.user, roles)
}

func mergeSamplerLayer(dst map[ClassName]SamplerClassRoles, src map[ClassName]SamplerClassRoles) {
	for class, roles := range src {
		d, ok := dst[class]
		if !ok {
			d = SamplerClassRoles{}
			dst[class] = d
		}
		for role, input := range roles {
			d[role] = input
		}
	}
}

// Resolve returns the merged role map for one sampler-like class.
func (r *SamplerRegistry) Resolve(class ClassName) (SamplerClassRoles, bool) {
	merged := SamplerClassRoles{}
	found := false
	if b, ok := r.builtin[class]; ok {
		found = true
		for role, input := range b {
			merged[role] = input
		}
	}
	if e, ok := r.extensions[class]; ok {
		found = true
		for role, input := range e {
			merged[role] = input
		}
	}
	if u, ok := r.user[class]; ok {
		found = true
		for role, input := range u {
			merged[role] = input
		}
	}
	if !found {
		return nil, false
	}
	return merged, true
}

// IsKnownSamplerClass reports whether any layer names this class,
// distinguishing Tier A (known) from Tier B (heuristic) discovery in
// the sampler selector (spec.md §4.3).
func (r *SamplerRegistry) IsKnownSamplerClass(class ClassName) bool {
	_, ok := r.builtin[class]
	if ok {
		return true
	}
	_, ok = r.extensions[class]
	if ok {
		return true
	}
	_, ok = r.user[class]
	return ok
}
