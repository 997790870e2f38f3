package scanner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/graphforge/nodemeta/pkg/logging"
	"github.com/graphforge/nodemeta/pkg/metrics"
	"github.com/graphforge/nodemeta/pkg/rules"
	"github.com/graphforge/nodemeta/pkg/semfield"
)

// Scanner is the Rule Scanner. It holds no class-table state of its
// own; each Scan call is a pure function of its arguments plus the
// baseline cache.
type Scanner struct {
	logger  logging.Logger
	metrics *metrics.Registry

	baseline baselineCache
}

// New creates a Scanner. A nil logger or metrics registry disables
// the corresponding instrumentation.
func New(logger logging.Logger, reg *metrics.Registry) *Scanner {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Scanner{logger: logger, metrics: reg}
}

// Scan proposes capture rules for table's classes under opts,
// diffing against registry's current state (spec.md §4.9).
func (s *Scanner) Scan(table ClassTable, registry *rules.Registry, userDocs []UserDocRef, opts Options) (*Proposal, DiffReport) {
	baseline, cacheHit := s.baseline.get(userDocs)
	if !cacheHit {
		baseline = buildBaseline(registry)
		s.baseline.put(userDocs, baseline)
	}
	if s.metrics != nil {
		if cacheHit {
			s.metrics.ScannerBaselineCacheHitsTotal.Inc()
		} else {
			s.metrics.ScannerBaselineCacheMissesTotal.Inc()
		}
	}

	proposal := &Proposal{
		Classes:           map[rules.ClassName]rules.NodeClassRules{},
		ForcedNodeClasses: map[rules.ClassName]rules.NodeClassRules{},
	}
	report := DiffReport{BaselineCacheHit: cacheHit}

	for _, class := range sortedClasses(table) {
		if excludedByKeyword(string(class), opts.ExcludeKeywords) {
			continue
		}
		_, known := registry.Resolve(class)
		if !classAllowedByMode(known, opts.Mode) {
			continue
		}

		report.ClassesScanned++
		candidate := heuristicsForClass(table[class])
		if opts.MissingLens {
			candidate = subtractBaseline(candidate, baseline[class])
		}
		if len(candidate) > 0 {
			proposal.Classes[class] = candidate
			report.ClassesProposed++
			report.FieldsProposed += len(candidate)
		}
	}

	for _, class := range opts.ForcedNodeClasses {
		spec, ok := table[class]
		if !ok {
			proposal.ForcedNodeClasses[class] = rules.NodeClassRules{}
			continue
		}
		candidate := heuristicsForClass(spec)
		if opts.MissingLens {
			candidate = subtractBaseline(candidate, baseline[class])
		}
		proposal.ForcedNodeClasses[class] = candidate
	}

	if s.metrics != nil {
		s.metrics.ScannerProposalsTotal.Inc()
	}
	s.logger.Info("rule scan complete",
		logging.Int("classes_scanned", report.ClassesScanned),
		logging.Int("classes_proposed", report.ClassesProposed),
		logging.Int("fields_proposed", report.FieldsProposed),
		logging.Bool("baseline_cache_hit", report.BaselineCacheHit))

	return proposal, report
}

// DiffText renders a DiffReport as the single-line tally string
// spec.md §4.9 calls for.
func (r DiffReport) DiffText() string {
	cacheState := "miss"
	if r.BaselineCacheHit {
		cacheState = "hit"
	}
	return fmt.Sprintf(
		"scanned=%d proposed_classes=%d proposed_fields=%d baseline_cache=%s",
		r.ClassesScanned, r.ClassesProposed, r.FieldsProposed, cacheState,
	)
}

func classAllowedByMode(known bool, mode Mode) bool {
	switch mode {
	case ModeNewOnly:
		return !known
	case ModeExistingOnly:
		return known
	default:
		return true
	}
}

func excludedByKeyword(class string, keywords []string) bool {
	lower := strings.ToLower(class)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// subtractBaseline drops every candidate field already supplied by
// some registry layer, implementing missing-lens mode (spec.md §4.9).
func subtractBaseline(candidate rules.NodeClassRules, already map[semfield.Field]bool) rules.NodeClassRules {
	if len(already) == 0 {
		return candidate
	}
	out := rules.NodeClassRules{}
	for f, spec := range candidate {
		if already[f] {
			continue
		}
		out[f] = spec
	}
	return out
}

func sortedClasses(table ClassTable) []rules.ClassName {
	out := make([]rules.ClassName, 0, len(table))
	for c := range table {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
