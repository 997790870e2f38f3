package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/graphforge/nodemeta/pkg/capterr"
	"github.com/graphforge/nodemeta/pkg/logging"
	"github.com/graphforge/nodemeta/pkg/metrics"
	"github.com/graphforge/nodemeta/pkg/rules"
)

const (
	capturesFileName  = "captures.json"
	samplersFileName  = "samplers.json"
	generatedFileName = "generated_rules.json"

	filePermission = 0o644
)

var allDocumentFiles = []string{capturesFileName, samplersFileName, generatedFileName}

// Store is the User Rule Persistence component, scoped to one
// directory of user rule documents. Writes are serialized with a
// file-scoped mutex; readers should take their own snapshot before
// calling Save if they need a consistent before/after comparison
// (spec.md §5, "User rule files").
type Store struct {
	dir     string
	mu      sync.Mutex
	logger  logging.Logger
	metrics *metrics.Registry
}

// New creates a Store rooted at dir. A nil logger or metrics registry
// disables the corresponding instrumentation.
func New(dir string, logger logging.Logger, reg *metrics.Registry) *Store {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Store{dir: dir, logger: logger, metrics: reg}
}

// generatedRulesDocument is the on-disk shape of generated_rules.json
// (spec.md §6.4, "Generated rules document ... with a version
// stamp").
type generatedRulesDocument struct {
	Version      string                                       `json:"version"`
	NodeRules    map[rules.ClassName]rules.NodeClassRules     `json:"node_rules"`
	SamplerRoles map[rules.ClassName]rules.SamplerClassRoles  `json:"sampler_roles"`
}

// Save merges doc into the on-disk documents under opts.Mode and
// writes the result atomically (spec.md §4.10).
func (s *Store) Save(doc Document, opts SaveOptions) (SaveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result SaveResult

	if opts.BackupBeforeSave {
		id, err := s.createBackup()
		if err != nil {
			return result, err
		}
		if err := s.pruneBackups(opts.LimitBackupSets); err != nil {
			return result, err
		}
		result.BackupSetID = id
	}

	currentNodes, err := s.readNodeRules()
	if err != nil {
		return result, err
	}
	currentRoles, err := s.readSamplerRoles()
	if err != nil {
		return result, err
	}

	var mergedNodes map[rules.ClassName]rules.NodeClassRules
	var mergedRoles map[rules.ClassName]rules.SamplerClassRoles

	switch opts.Mode {
	case ModeAppendNew:
		mergedNodes = cloneNodeRules(currentNodes)
		mergedRoles = cloneSamplerRoles(currentRoles)
		mergeNodeRulesInto(mergedNodes, doc.NodeRules, opts.ReplaceConflicts, &result)
		mergeSamplerRolesInto(mergedRoles, doc.SamplerRoles, opts.ReplaceConflicts, &result)
	default: // ModeOverwrite
		tallyOverwrite(currentNodes, doc.NodeRules, currentRoles, doc.SamplerRoles, &result)
		mergedNodes = doc.NodeRules
		mergedRoles = doc.SamplerRoles
	}

	if err := s.writeNodeRules(mergedNodes); err != nil {
		return result, err
	}
	if err := s.writeSamplerRoles(mergedRoles); err != nil {
		return result, err
	}

	if opts.RebuildGeneratedDoc {
		if err := s.writeGeneratedDoc(mergedNodes, mergedRoles); err != nil {
			return result, err
		}
	}

	s.recordSaveWrite(string(opts.Mode))
	s.logger.Info("user rule documents saved",
		logging.String("mode", string(opts.Mode)),
		logging.Int("nodes_added", result.NodesAdded),
		logging.Int("nodes_replaced", result.NodesReplaced),
		logging.Int("nodes_skipped", result.NodesSkipped),
		logging.Int("fields_added", result.FieldsAdded),
		logging.Int("fields_replaced", result.FieldsReplaced),
		logging.Int("fields_skipped", result.FieldsSkipped))

	return result, nil
}

// Load reads the current on-disk user rule documents as a Document,
// tolerating either file being absent (an empty map, not an error).
// A reviewer builds a Rule Registry's user layer from this before
// running a scan against it (spec.md §4.9).
func (s *Store) Load() (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nodes, err := s.readNodeRules()
	if err != nil {
		return Document{}, err
	}
	roles, err := s.readSamplerRoles()
	if err != nil {
		return Document{}, err
	}
	return Document{NodeRules: nodes, SamplerRoles: roles}, nil
}

// StatusSummary renders r as the single-line metric string spec.md
// §4.10 calls for.
func (r SaveResult) StatusSummary() string {
	return fmt.Sprintf(
		"nodes_added=%d nodes_replaced=%d nodes_skipped=%d fields_added=%d fields_replaced=%d fields_skipped=%d",
		r.NodesAdded, r.NodesReplaced, r.NodesSkipped, r.FieldsAdded, r.FieldsReplaced, r.FieldsSkipped,
	)
}

func mergeNodeRulesInto(dst map[rules.ClassName]rules.NodeClassRules, incoming map[rules.ClassName]rules.NodeClassRules, replaceConflicts bool, result *SaveResult) {
	for class, fields := range incoming {
		existing, ok := dst[class]
		if !ok {
			dst[class] = cloneFields(fields)
			result.NodesAdded++
			result.FieldsAdded += len(fields)
			continue
		}
		for field, spec := range fields {
			old, hasOld := existing[field]
			switch {
			case !hasOld:
				existing[field] = spec
				result.FieldsAdded++
			case specsEqual(old, spec):
				result.FieldsSkipped++
			case replaceConflicts:
				existing[field] = spec
				result.FieldsReplaced++
			default:
				result.FieldsSkipped++
			}
		}
	}
}

func mergeSamplerRolesInto(dst map[rules.ClassName]rules.SamplerClassRoles, incoming map[rules.ClassName]rules.SamplerClassRoles, replaceConflicts bool, result *SaveResult) {
	for class, roles := range incoming {
		existing, ok := dst[class]
		if !ok {
			dst[class] = cloneRoles(roles)
			result.NodesAdded++
			result.FieldsAdded += len(roles)
			continue
		}
		for role, input := range roles {
			old, hasOld := existing[role]
			switch {
			case !hasOld:
				existing[role] = input
				result.FieldsAdded++
			case old == input:
				result.FieldsSkipped++
			case replaceConflicts:
				existing[role] = input
				result.FieldsReplaced++
			default:
				result.FieldsSkipped++
			}
		}
	}
}

// tallyOverwrite classifies every incoming class/field against what
// is currently on disk so overwrite mode still yields a meaningful
// StatusSummary, even though the write itself is a blunt replacement
// rather than a field-by-field merge.
func tallyOverwrite(
	oldNodes, newNodes map[rules.ClassName]rules.NodeClassRules,
	oldRoles, newRoles map[rules.ClassName]rules.SamplerClassRoles,
	result *SaveResult,
) {
	for class, fields := range newNodes {
		existing, ok := oldNodes[class]
		if !ok {
			result.NodesAdded++
			result.FieldsAdded += len(fields)
			continue
		}
		for field, spec := range fields {
			old, hasOld := existing[field]
			switch {
			case !hasOld:
				result.FieldsAdded++
			case specsEqual(old, spec):
				result.FieldsSkipped++
			default:
				result.FieldsReplaced++
			}
		}
	}
	for class, roles := range newRoles {
		existing, ok := oldRoles[class]
		if !ok {
			result.NodesAdded++
			result.FieldsAdded += len(roles)
			continue
		}
		for role, input := range roles {
			old, hasOld := existing[role]
			switch {
			case !hasOld:
				result.FieldsAdded++
			case old == input:
				result.FieldsSkipped++
			default:
				result.FieldsReplaced++
			}
		}
	}
}

// specsEqual compares two rule specs by their JSON-serialized shape;
// Spec has no behavior of its own to compare, and a field-by-field
// comparison would have to track every variant as Spec grows.
func specsEqual(a, b rules.Spec) bool {
	ab, errA := json.Marshal(a)
	bb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(ab) == string(bb)
}

func cloneFields(in rules.NodeClassRules) rules.NodeClassRules {
	out := make(rules.NodeClassRules, len(in))
	for f, s := range in {
		out[f] = s
	}
	return out
}

func cloneRoles(in rules.SamplerClassRoles) rules.SamplerClassRoles {
	out := make(rules.SamplerClassRoles, len(in))
	for r, v := range in {
		out[r] = v
	}
	return out
}

func cloneNodeRules(in map[rules.ClassName]rules.NodeClassRules) map[rules.ClassName]rules.NodeClassRules {
	out := make(map[rules.ClassName]rules.NodeClassRules, len(in))
	for c, f := range in {
		out[c] = cloneFields(f)
	}
	return out
}

func cloneSamplerRoles(in map[rules.ClassName]rules.SamplerClassRoles) map[rules.ClassName]rules.SamplerClassRoles {
	out := make(map[rules.ClassName]rules.SamplerClassRoles, len(in))
	for c, r := range in {
		out[c] = cloneRoles(r)
	}
	return out
}

func (s *Store) readNodeRules() (map[rules.ClassName]rules.NodeClassRules, error) {
	out := map[rules.ClassName]rules.NodeClassRules{}
	if err := s.readJSON(capturesFileName, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) readSamplerRoles() (map[rules.ClassName]rules.SamplerClassRoles, error) {
	out := map[rules.ClassName]rules.SamplerClassRoles{}
	if err := s.readJSON(samplersFileName, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) readJSON(fname string, dst any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, fname))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: %v", capterr.ErrPersistence, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: %v", capterr.ErrRuleShape, err)
	}
	return nil
}

func (s *Store) writeNodeRules(v map[rules.ClassName]rules.NodeClassRules) error {
	return s.writeJSON(capturesFileName, v)
}

func (s *Store) writeSamplerRoles(v map[rules.ClassName]rules.SamplerClassRoles) error {
	return s.writeJSON(samplersFileName, v)
}

func (s *Store) writeGeneratedDoc(nodes map[rules.ClassName]rules.NodeClassRules, roles map[rules.ClassName]rules.SamplerClassRoles) error {
	return s.writeJSON(generatedFileName, generatedRulesDocument{
		Version:      GeneratedRulesVersion,
		NodeRules:    nodes,
		SamplerRoles: roles,
	})
}

func (s *Store) writeJSON(fname string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", capterr.ErrPersistence, err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", capterr.ErrPersistence, err)
	}
	return writeFileAtomic(filepath.Join(s.dir, fname), data)
}

// writeFileAtomic writes data to a temp sibling file then renames it
// into place, matching the teacher's write-to-temp-then-rename idiom
// (pkg/storage/persistence.go), already mirrored once in
// hashcache.writeSidecarAtomic.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".nodemeta-persist-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %v", capterr.ErrPersistence, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %v", capterr.ErrPersistence, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", capterr.ErrPersistence, err)
	}
	if err := os.Chmod(tmpPath, filePermission); err != nil {
		return fmt.Errorf("%w: %v", capterr.ErrPersistence, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("%w: %v", capterr.ErrPersistence, err)
	}
	return nil
}

func (s *Store) recordSaveWrite(mode string) {
	if s.metrics != nil {
		s.metrics.RecordPersistenceWrite(mode)
	}
}

func (s *Store) recordBackupPruned() {
	if s.metrics != nil {
		s.metrics.BackupSetsPrunedTotal.Inc()
	}
}
