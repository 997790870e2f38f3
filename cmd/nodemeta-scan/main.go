// Command nodemeta-scan is the Rule Scanner review tool (spec.md
// §4.9): it runs one scan against a runtime class-table snapshot, lets
// a reviewer accept or reject each proposed class's rules in a
// terminal UI, and writes the accepted rules through User Rule
// Persistence (spec.md §4.10). Grounded on the teacher's cmd/tui
// dashboard, adapted from a live graph browser to a one-shot
// propose-then-commit review flow.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/graphforge/nodemeta/pkg/events"
	"github.com/graphforge/nodemeta/pkg/logging"
	"github.com/graphforge/nodemeta/pkg/metrics"
	"github.com/graphforge/nodemeta/pkg/persistence"
	"github.com/graphforge/nodemeta/pkg/plugins"
	"github.com/graphforge/nodemeta/pkg/rules"
	"github.com/graphforge/nodemeta/pkg/rulesdata"
	"github.com/graphforge/nodemeta/pkg/savepipeline"
	"github.com/graphforge/nodemeta/pkg/scanner"
)

func main() {
	classTablePath := flag.String("class-table", "", "path to a JSON runtime class-table snapshot (required)")
	rulesDir := flag.String("rules-dir", "./data/rules", "user rule document directory")
	extensionsDir := flag.String("extensions-dir", "./data/extensions", "extension module (YAML) directory")
	mode := flag.String("mode", "new_only", "scan mode: new_only, all, existing_only")
	excludeKeywords := flag.String("exclude", "", "comma-separated class-name substrings to skip")
	forcedClasses := flag.String("force", "", "comma-separated class names always included in the proposal")
	missingLens := flag.Bool("missing-lens", false, "only propose fields not already covered by any registry layer")
	eventsAddr := flag.String("events-addr", "", "optional nng PUB address to announce the write on (e.g. tcp://*:9093)")
	logFile := flag.String("log", "", "path to write structured logs to (default: discard, since stdout is the TUI)")
	logLevel := flag.String("log-level", "info", "minimum level written to -log: debug, info, warn, error")
	flag.Parse()

	if *classTablePath == "" {
		fmt.Fprintln(os.Stderr, "nodemeta-scan: -class-table is required")
		os.Exit(2)
	}

	logger, closeLog := buildLogger(*logFile, *logLevel)
	defer closeLog()

	metricsReg := metrics.NewRegistry()

	table, err := loadClassTable(*classTablePath)
	if err != nil {
		log.Fatalf("nodemeta-scan: %v", err)
	}

	store := persistence.New(*rulesDir, logger, metricsReg)
	userDoc, err := store.Load()
	if err != nil {
		log.Fatalf("nodemeta-scan: load user rule documents: %v", err)
	}

	registry := rules.NewRegistry(rulesdata.Builtin(), logger)

	modules, err := plugins.NewLoader(logger).LoadDir(*extensionsDir)
	if err != nil {
		log.Fatalf("nodemeta-scan: load extension modules: %v", err)
	}
	for _, mod := range modules {
		registry.LoadExtension(mod.CaptureRules)
	}

	registry.LoadUser(userDoc.NodeRules)

	opts := scanner.Options{
		Mode:              scanner.Mode(*mode),
		ExcludeKeywords:   splitNonEmpty(*excludeKeywords),
		MissingLens:       *missingLens,
		ForcedNodeClasses: forcedClassNames(*forcedClasses),
	}

	sc := scanner.New(logger, metricsReg)
	proposal, diff := sc.Scan(table, registry, nil, opts)

	// notify stays a nil savepipeline.Notifier (not a nil *events.Publisher
	// boxed in the interface) when -events-addr is unset, so
	// PersistScanProposal's "if notify != nil" check works correctly.
	var notify savepipeline.Notifier
	if *eventsAddr != "" {
		pub, err := events.NewPublisher(*eventsAddr, logger)
		if err != nil {
			log.Fatalf("nodemeta-scan: bind events publisher: %v", err)
		}
		defer pub.Close()
		notify = pub
	}

	m := newModel(modelDeps{
		logger:   logger,
		store:    store,
		notify:   notify,
		proposal: proposal,
		diff:     diff,
	})

	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		log.Fatalf("nodemeta-scan: %v", err)
	}
}

func buildLogger(path, level string) (logging.Logger, func()) {
	if path == "" {
		return logging.NewNopLogger(), func() {}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Fatalf("nodemeta-scan: open log file %s: %v", path, err)
	}
	return logging.NewJSONLogger(f, logging.ParseLevel(level)), func() { f.Close() }
}

func splitNonEmpty(csv string) []string {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func forcedClassNames(csv string) []rules.ClassName {
	names := splitNonEmpty(csv)
	out := make([]rules.ClassName, 0, len(names))
	for _, n := range names {
		out = append(out, rules.ClassName(n))
	}
	return out
}
