// Package artifactresolve implements the Artifact Resolver (spec.md
// §4.2): it converts a loose reference string as it appears in a node
// input (a bare name, a partial path, a name with embedded dots, or
// one trailing punctuation from a UI) into a canonical display name
// and, if it can be located, an absolute path. Grounded on the
// teacher's candidate-generation-then-first-match idiom in
// pkg/search/fuzzy_match.go (generate variants, probe roots in
// priority order, accept first hit).
package artifactresolve

import (
	"os"
	"path/filepath"
	"strings"
)

// Family is the closed set of artifact kinds the resolver handles
// (spec.md §3, ArtifactReference.family).
type Family string

const (
	FamilyCheckpoint Family = "checkpoint"
	FamilyVAE        Family = "vae"
	FamilyLoRA       Family = "lora"
	FamilyUNet       Family = "unet"
	FamilyEmbedding  Family = "embedding"
	FamilyCLIP       Family = "clip"
	FamilyUpscaler   Family = "upscaler"
)

// recognizedExtensions is the set of extensions candidate (b) may
// strip, per spec.md §4.2 step 2.
var recognizedExtensions = map[string]bool{
	"safetensors": true,
	"st":          true,
	"ckpt":        true,
	"pt":          true,
	"bin":         true,
}

// Root probes one known-location root for a candidate file name
// belonging to a family, returning its absolute path if present. Local
// filesystem roots and the S3-backed root in pkg/artifactroots both
// implement this.
type Root interface {
	// Find returns the absolute (or URI-form) path for candidate
	// within this root, and whether it exists.
	Find(family Family, candidate string) (absolutePath string, ok bool)
}

// LocalRoot is a Root backed by a directory on the local filesystem,
// matching the host's "known-location roots" for the common case.
type LocalRoot struct {
	Dir string
}

// Find checks Dir/candidate (and, for names with subdirectory
// separators already embedded, Dir joined with the candidate as-is).
func (r LocalRoot) Find(_ Family, candidate string) (string, bool) {
	path := filepath.Join(r.Dir, candidate)
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return path, true
	}
	return "", false
}

// Resolved is the result of one resolve call (spec.md §3,
// ArtifactReference after resolution).
type Resolved struct {
	DisplayName  string
	AbsolutePath string
	Found        bool
	Family       Family
}

// Resolver holds the fixed-priority-order root list per family and
// performs candidate generation, sanitization, and lookup.
type Resolver struct {
	roots map[Family][]Root
}

// New creates a Resolver with no roots configured; call AddRoot per
// family before resolving.
func New() *Resolver {
	return &Resolver{roots: map[Family][]Root{}}
}

// AddRoot appends a root to the end of a family's priority list. The
// order roots are added in is the order they are probed (spec.md
// §4.2 step 3, "fixed priority order").
func (r *Resolver) AddRoot(family Family, root Root) {
	r.roots[family] = append(r.roots[family], root)
}

// Resolve converts a loose reference string to a canonical display
// name and, if found, an absolute path (spec.md §4.2).
//
// A raw value of the literal string "None" is rejected outright (no
// candidates are probed) so the caller can drop the slot, matching
// the resolver's contract for LoRA "None" slots and the embedding
// family alike.
func (r *Resolver) Resolve(family Family, raw string) Resolved {
	sanitized := sanitize(raw)
	if sanitized == "None" || sanitized == "" {
		return Resolved{DisplayName: sanitized, Family: family}
	}

	candidates := candidatesFor(sanitized)
	for _, root := range r.roots[family] {
		for _, c := range candidates {
			if abs, ok := root.Find(family, c); ok {
				return Resolved{
					DisplayName:  displayNameFor(abs, c),
					AbsolutePath: abs,
					Found:        true,
					Family:       family,
				}
			}
		}
	}

	// No candidate matched any root: still emit the display name
	// (ArtifactResolutionError, spec.md §7 — "the name field is still
	// emitted; the hash field is omitted").
	return Resolved{DisplayName: sanitized, Family: family}
}

// sanitize trims whitespace, strips surrounding quotes, and removes
// trailing punctuation (spec.md §4.2 step 1).
func sanitize(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, `"'`)
	s = strings.TrimSpace(s)
	return strings.TrimRight(s, ",.;:'\" ")
}

// candidatesFor produces the ordered candidate set for a sanitized
// name (spec.md §4.2 step 2): the name verbatim, the name without its
// final extension if that extension is recognized, and progressive
// stem reduction for names with internal dots.
func candidatesFor(sanitized string) []string {
	seen := map[string]bool{}
	var out []string
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}

	add(sanitized)

	ext := strings.TrimPrefix(filepath.Ext(sanitized), ".")
	if recognizedExtensions[strings.ToLower(ext)] {
		add(strings.TrimSuffix(sanitized, "."+ext))
	}

	// Progressive stem reduction: "model.v1.2.3" -> "model.v1.2.3",
	// "model.v1.2", "model.v1", "model" (spec.md §4.2 step 2c). Operate
	// on the extension-stripped stem so a recognized suffix doesn't
	// get counted as one more "version" segment.
	stem := sanitized
	if recognizedExtensions[strings.ToLower(ext)] {
		stem = strings.TrimSuffix(sanitized, "."+ext)
	}
	for {
		idx := strings.LastIndex(stem, ".")
		if idx < 0 {
			break
		}
		stem = stem[:idx]
		if stem == "" {
			break
		}
		add(stem)
	}

	return out
}

// displayNameFor derives the display name the runtime's file index
// would report: the candidate that actually matched, preserving
// whatever subdirectory separators it carried (spec.md §4.2 step 4).
// Absent a real host file index, the matching candidate is itself the
// best available approximation of "the name as stored by the
// runtime's file-index".
func displayNameFor(_ string, matchedCandidate string) string {
	return matchedCandidate
}
