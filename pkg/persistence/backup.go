package persistence

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/graphforge/nodemeta/pkg/capterr"
)

// createBackup copies the current on-disk documents into a new
// timestamped directory under "backups/", tolerating files that don't
// exist yet (spec.md §6.4, "Backup directory ... containing up to
// three of the above files").
func (s *Store) createBackup() (string, error) {
	backupsDir := filepath.Join(s.dir, "backups")
	if err := os.MkdirAll(backupsDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", capterr.ErrPersistence, err)
	}

	base := time.Now().Format("20060102-150405")
	name := base
	for n := 1; ; n++ {
		if _, err := os.Stat(filepath.Join(backupsDir, name)); os.IsNotExist(err) {
			break
		}
		name = fmt.Sprintf("%s-%d", base, n)
	}

	dest := filepath.Join(backupsDir, name)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", capterr.ErrPersistence, err)
	}

	for _, fname := range allDocumentFiles {
		data, err := os.ReadFile(filepath.Join(s.dir, fname))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", fmt.Errorf("%w: %v", capterr.ErrPersistence, err)
		}
		if err := writeFileAtomic(filepath.Join(dest, fname), data); err != nil {
			return "", err
		}
	}

	return name, nil
}

// pruneBackups removes the oldest backup sets beyond limit, keeping
// the newest (spec.md §4.10, "prune to limit_backup_sets keeping
// newest"). limit <= 0 disables pruning.
func (s *Store) pruneBackups(limit int) error {
	if limit <= 0 {
		return nil
	}
	backupsDir := filepath.Join(s.dir, "backups")
	entries, err := os.ReadDir(backupsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: %v", capterr.ErrPersistence, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names) // the "YYYYMMDD-HHMMSS[-N]" layout sorts chronologically
	if len(names) <= limit {
		return nil
	}

	for _, n := range names[:len(names)-limit] {
		if err := os.RemoveAll(filepath.Join(backupsDir, n)); err != nil {
			return fmt.Errorf("%w: %v", capterr.ErrPersistence, err)
		}
		s.recordBackupPruned()
	}
	return nil
}

// ListBackupSets returns every backup set id under this store's
// backups directory, newest last (the same chronological ordering
// pruneBackups relies on), for a reviewer picking a RestoreBackupSetID.
func (s *Store) ListBackupSets() ([]string, error) {
	backupsDir := filepath.Join(s.dir, "backups")
	entries, err := os.ReadDir(backupsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", capterr.ErrPersistence, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Restore atomically replaces the current user documents with the
// contents of backupSetID, tolerating partially-missing files
// (spec.md §4.10, "restore").
func (s *Store) Restore(backupSetID string) (RestoreResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	srcDir := filepath.Join(s.dir, "backups", backupSetID)
	info, err := os.Stat(srcDir)
	if err != nil || !info.IsDir() {
		return RestoreResult{}, fmt.Errorf("%w: backup set %q not found", capterr.ErrPersistence, backupSetID)
	}

	var result RestoreResult
	for _, fname := range allDocumentFiles {
		data, err := os.ReadFile(filepath.Join(srcDir, fname))
		if err != nil {
			if os.IsNotExist(err) {
				result.Missing = append(result.Missing, fname)
				continue
			}
			return result, fmt.Errorf("%w: %v", capterr.ErrPersistence, err)
		}
		if err := writeFileAtomic(filepath.Join(s.dir, fname), data); err != nil {
			return result, err
		}
		result.Restored = append(result.Restored, fname)
	}
	return result, nil
}
