package savepipeline

import (
	"github.com/graphforge/nodemeta/pkg/fieldmap"
	"github.com/graphforge/nodemeta/pkg/stagedencoder"
)

// ContainerKind names which of the three image containers spec.md
// §4.8 defines an ImageInput targets.
type ContainerKind int

const (
	// ContainerPNG is Container A: lossless text-chunk, no practical
	// size ceiling.
	ContainerPNG ContainerKind = iota
	// ContainerSideMetadata is Container B: a lossless binary format
	// with no embeddable text-chunk mechanism, so metadata is returned
	// as a side document.
	ContainerSideMetadata
	// ContainerJPEG is Container C: EXIF-constrained, drives the
	// fallback stage ladder.
	ContainerJPEG
)

// ImageInput is one image of a save-call batch (spec.md §6.2,
// "images: batch tensor"; decoding the tensor into container bytes is
// the host runtime's concern, out of scope here per spec.md §1).
type ImageInput struct {
	Container   ContainerKind
	Bytes       []byte
	PNGInfoKeys map[string]string

	// WorkflowJSON is the full workflow graph JSON this image was
	// produced from. Container A and B embed it unconditionally
	// (spec.md lines 205, 343-344); Container C embeds it only at the
	// full fallback stage, dropping it first as the EXIF budget tightens.
	WorkflowJSON string
}

// ImageResult is one image's encoded output plus the side metadata
// document Container B produces, if any.
type ImageResult struct {
	Bytes        []byte
	SideMetadata []byte
	Stage        stagedencoder.Stage
	Filename     string
}

// Result is the outcome of one Save call across the whole image
// batch (spec.md §5, "each image's fallback stage is computed
// independently and stored in the per-call mirror").
type Result struct {
	Images        []ImageResult
	FieldMap      *fieldmap.Map
	ParameterText string
	CorrelationID string
	Warnings      []string
}
