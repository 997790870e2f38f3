// Package persistence implements User Rule Persistence (spec.md
// §4.10): atomic writes of the user rule layer, timestamped backup
// sets with retention pruning, and restore.
package persistence

import (
	"github.com/graphforge/nodemeta/pkg/rules"
)

// SaveMode selects how a Document merges into the documents already
// on disk.
type SaveMode string

const (
	// ModeOverwrite replaces the on-disk documents in their entirety.
	ModeOverwrite SaveMode = "overwrite"
	// ModeAppendNew adds missing classes wholesale and missing
	// fields/roles within existing classes, honoring ReplaceConflicts
	// for anything already present.
	ModeAppendNew SaveMode = "append_new"
)

// Document is the user rule layer: node capture rules and sampler
// role mappings, the two files spec.md §6.4 names "User rule JSON
// (captures)" and "User rule JSON (samplers)".
type Document struct {
	NodeRules    map[rules.ClassName]rules.NodeClassRules
	SamplerRoles map[rules.ClassName]rules.SamplerClassRoles
}

// SaveOptions configures one Save call.
type SaveOptions struct {
	Mode               SaveMode
	ReplaceConflicts   bool
	BackupBeforeSave   bool
	RebuildGeneratedDoc bool
	LimitBackupSets    int
}

// SaveResult tallies what a Save call actually did, the basis for
// StatusSummary (spec.md §4.10, "status_summary").
type SaveResult struct {
	NodesAdded     int
	NodesReplaced  int
	NodesSkipped   int
	FieldsAdded    int
	FieldsReplaced int
	FieldsSkipped  int
	BackupSetID    string
}

// RestoreResult reports which files a restore actually found in the
// chosen backup set.
type RestoreResult struct {
	Restored []string
	Missing  []string
}

// GeneratedRulesVersion is the stamp written into the generated rules
// document (spec.md §4.3, "a registry stamp is emitted whenever the
// user document is regenerated"); a future loader compares this
// against its own built-in constant to log a one-time advisory on
// mismatch.
const GeneratedRulesVersion = "1"
