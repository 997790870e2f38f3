// Package introspect exposes a read-only GraphQL surface over the
// merged Rule Registry and the most recent Rule Scanner proposal, for
// external tooling that wants to inspect capture rule state without
// going through the review TUI.
package introspect

import (
	"sync"

	"github.com/graphforge/nodemeta/pkg/rules"
	"github.com/graphforge/nodemeta/pkg/scanner"
)

// Source is the data this package's schema resolves against: a Rule
// Registry (read live, since Resolve/KnownClasses are already
// goroutine-safe read paths) plus whatever scanner proposal was most
// recently recorded by the save pipeline or a scan command.
type Source struct {
	Registry *rules.Registry

	mu         sync.RWMutex
	proposal   *scanner.Proposal
	report     scanner.DiffReport
	hasReport  bool
}

// NewSource wraps a Rule Registry with no recorded proposal yet.
func NewSource(registry *rules.Registry) *Source {
	return &Source{Registry: registry}
}

// RecordProposal stores the latest scanner result, replacing whatever
// was recorded before. Safe for concurrent use with Proposal.
func (s *Source) RecordProposal(p *scanner.Proposal, r scanner.DiffReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proposal = p
	s.report = r
	s.hasReport = true
}

// Proposal returns the most recently recorded scanner proposal and
// report. ok is false if no scan has been recorded yet.
func (s *Source) Proposal() (*scanner.Proposal, scanner.DiffReport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.proposal, s.report, s.hasReport
}
