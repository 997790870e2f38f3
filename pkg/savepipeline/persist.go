package savepipeline

import (
	"github.com/graphforge/nodemeta/pkg/events"
	"github.com/graphforge/nodemeta/pkg/logging"
	"github.com/graphforge/nodemeta/pkg/persistence"
	"github.com/graphforge/nodemeta/pkg/rules"
	"github.com/graphforge/nodemeta/pkg/scanner"
)

// PersistenceOptions mirrors the rule-writer toggles of the save-node
// invocation surface (spec.md §6.2: "rebuild_python_rules, save_mode,
// backup_before_save, restore_backup_set, replace_conflicts,
// limit_backup_sets: persistence options consumed by the rule
// writer"). These are driven by the scanner-proposal review path, not
// by the per-image Save call.
type PersistenceOptions struct {
	Mode                persistence.SaveMode
	ReplaceConflicts    bool
	BackupBeforeSave    bool
	RebuildPythonRules  bool
	LimitBackupSets     int
	RestoreBackupSetID  string
}

// Notifier is the optional out-of-process announcement sink a
// PersistScanProposal call publishes to after a successful write
// (events.Publisher satisfies this). A nil Notifier is a no-op.
type Notifier interface {
	PublishRegistryReloaded(layer string, classCount int) error
}

var _ Notifier = (*events.Publisher)(nil)

// PersistScanProposal converts a Rule Scanner proposal into a
// persistence.Document and writes it through store under opts,
// optionally restoring a prior backup set first when
// opts.RestoreBackupSetID is set, and announcing the write to notify
// (spec.md §4.9's proposal feeding §4.10's save/restore operations).
func PersistScanProposal(store *persistence.Store, proposal *scanner.Proposal, opts PersistenceOptions, notify Notifier, logger logging.Logger) (persistence.SaveResult, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	if opts.RestoreBackupSetID != "" {
		restoreResult, err := store.Restore(opts.RestoreBackupSetID)
		if err != nil {
			return persistence.SaveResult{}, err
		}
		logger.Info("restored user rule backup set",
			logging.String("backup_set_id", opts.RestoreBackupSetID),
			logging.Count(len(restoreResult.Restored)))
	}

	doc := proposalToDocument(proposal)

	result, err := store.Save(doc, persistence.SaveOptions{
		Mode:                opts.Mode,
		ReplaceConflicts:    opts.ReplaceConflicts,
		BackupBeforeSave:    opts.BackupBeforeSave,
		RebuildGeneratedDoc: opts.RebuildPythonRules,
		LimitBackupSets:     opts.LimitBackupSets,
	})
	if err != nil {
		return persistence.SaveResult{}, err
	}

	if notify != nil {
		classCount := len(doc.NodeRules)
		if err := notify.PublishRegistryReloaded("user", classCount); err != nil {
			logger.Warn("registry-reloaded notification failed", logging.Error(err))
		}
	}

	return result, nil
}

// proposalToDocument flattens a scanner.Proposal's Classes and
// ForcedNodeClasses into the single node-rules map persistence.Save
// expects; forced classes that a proposal also scanned normally keep
// the scanned entry, since it reflects the actual heuristic output
// rather than an empty force-include placeholder.
func proposalToDocument(proposal *scanner.Proposal) persistence.Document {
	doc := persistence.Document{NodeRules: map[rules.ClassName]rules.NodeClassRules{}}
	if proposal == nil {
		return doc
	}
	for class, fields := range proposal.ForcedNodeClasses {
		doc.NodeRules[class] = fields
	}
	for class, fields := range proposal.Classes {
		doc.NodeRules[class] = fields
	}
	return doc
}
