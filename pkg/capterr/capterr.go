// Package capterr defines the capture pipeline's error taxonomy as a
// set of sentinel values usable with errors.Is, following the
// teacher's style of declaring exported error values next to the
// package that raises them (see storage.ErrNodeNotFound in the
// teacher repo) rather than a hierarchy of exception types.
package capterr

import "errors"

var (
	// ErrGraphShape marks a malformed graph reference: a dangling
	// source node id, or a reference with the wrong arity. The
	// offending node is skipped; traversal continues.
	ErrGraphShape = errors.New("graph shape error")

	// ErrRuleShape marks a user rule JSON entry that failed schema
	// validation. The entry is ignored; the rest of the document
	// continues to load.
	ErrRuleShape = errors.New("rule shape error")

	// ErrArtifactIO marks a failed read of an artifact during
	// hashing. The hash field is omitted; the save is not aborted.
	ErrArtifactIO = errors.New("artifact io error")

	// ErrArtifactResolution marks a reference with no matching
	// candidate on any known-location root. The display name is
	// still emitted; the hash field is omitted.
	ErrArtifactResolution = errors.New("artifact resolution error")

	// ErrExtraction marks an internal selector failure. The field is
	// omitted, or emitted as the literal placeholder "error: see log"
	// when the downstream consumer tolerates it.
	ErrExtraction = errors.New("extraction error")

	// ErrEncoderRejected marks a container library's refusal of an
	// assembled metadata segment. The fallback controller escalates
	// to the next stage.
	ErrEncoderRejected = errors.New("encoder rejected error")

	// ErrPersistence marks a failed rule-document write. Previous
	// documents remain intact; no partial file is left on disk.
	ErrPersistence = errors.New("persistence error")
)

// Placeholder is the literal value substituted for a field whose
// extraction failed in a recoverable way and whose downstream
// consumer tolerates a parseable placeholder (spec.md §4.6, "Failure
// semantics").
const Placeholder = "error: see log"
