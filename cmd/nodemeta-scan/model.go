package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/graphforge/nodemeta/pkg/logging"
	"github.com/graphforge/nodemeta/pkg/persistence"
	"github.com/graphforge/nodemeta/pkg/rules"
	"github.com/graphforge/nodemeta/pkg/savepipeline"
	"github.com/graphforge/nodemeta/pkg/scanner"
	"github.com/graphforge/nodemeta/pkg/semfield"
)

type view int

const (
	summaryView view = iota
	proposalView
	persistView
	backupsView
)

var viewNames = []string{"Summary", "Proposal", "Persist", "Backups"}

type keyMap struct {
	Tab       key.Binding
	ShiftTab  key.Binding
	Up        key.Binding
	Down      key.Binding
	Toggle    key.Binding
	AcceptAll key.Binding
	RejectAll key.Binding
	Write     key.Binding
	Enter     key.Binding
	Quit      key.Binding
}

var keys = keyMap{
	Tab:       key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next view")),
	ShiftTab:  key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev view")),
	Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("up/k", "up")),
	Down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("down/j", "down")),
	Toggle:    key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "accept/reject class")),
	AcceptAll: key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "accept all")),
	RejectAll: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reject all")),
	Write:     key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "write accepted rules")),
	Enter:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
	Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tab, k.Toggle, k.Write, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tab, k.ShiftTab, k.Enter},
		{k.Up, k.Down, k.Toggle, k.AcceptAll, k.RejectAll},
		{k.Write, k.Quit},
	}
}

// classItem is one row of the proposal tab's class list: one node
// class plus the accept/reject decision a reviewer toggles before the
// write (spec.md §4.9, "reviewer accepts or rejects proposed classes
// before they reach persistence").
type classItem struct {
	class    rules.ClassName
	fields   rules.NodeClassRules
	forced   bool
	accepted bool
}

func (i classItem) FilterValue() string { return string(i.class) }

func (i classItem) Title() string {
	check := "[ ]"
	if i.accepted {
		check = "[x]"
	}
	if i.forced {
		return fmt.Sprintf("%s %s (forced)", check, i.class)
	}
	return fmt.Sprintf("%s %s", check, i.class)
}

func (i classItem) Description() string {
	if len(i.fields) == 0 {
		return "no fields proposed"
	}
	return fmt.Sprintf("%d proposed field(s)", len(i.fields))
}

type modelDeps struct {
	logger   logging.Logger
	store    *persistence.Store
	notify   savepipeline.Notifier
	proposal *scanner.Proposal
	diff     scanner.DiffReport
}

type model struct {
	logger logging.Logger
	store  *persistence.Store
	notify savepipeline.Notifier

	proposal *scanner.Proposal
	diff     scanner.DiffReport

	decisions map[rules.ClassName]bool

	classList     list.Model
	fieldsTable   table.Model
	selectedClass rules.ClassName

	persistOpts  savepipeline.PersistenceOptions
	backupList   []string
	backupCursor int

	currentView view
	width       int
	height      int

	message    string
	messageErr bool
	lastResult persistence.SaveResult

	help help.Model
	keys keyMap
}

func newModel(deps modelDeps) model {
	decisions := map[rules.ClassName]bool{}
	for class := range deps.proposal.Classes {
		decisions[class] = true
	}
	for class := range deps.proposal.ForcedNodeClasses {
		decisions[class] = true
	}

	delegate := list.NewDefaultDelegate()
	classList := list.New(buildClassItems(deps.proposal, decisions), delegate, 0, 0)
	classList.Title = "Proposed classes"
	classList.SetShowHelp(false)

	fieldsTable := table.New(
		table.WithColumns(fieldsTableColumns()),
		table.WithHeight(10),
	)
	fieldsTable.SetStyles(fieldsTableStyles())

	m := model{
		logger:      deps.logger,
		store:       deps.store,
		notify:      deps.notify,
		proposal:    deps.proposal,
		diff:        deps.diff,
		decisions:   decisions,
		classList:   classList,
		fieldsTable: fieldsTable,
		currentView: summaryView,
		persistOpts: savepipeline.PersistenceOptions{
			Mode:             persistence.ModeAppendNew,
			BackupBeforeSave: true,
			LimitBackupSets:  5,
		},
		help: help.New(),
		keys: keys,
	}
	m.syncFieldsTable()
	return m
}

// buildClassItems merges a proposal's two class maps into one sorted
// list, matching savepipeline.proposalToDocument's rule that a class
// present in both keeps its scanned (not force-placeholder) fields.
func buildClassItems(p *scanner.Proposal, decisions map[rules.ClassName]bool) []list.Item {
	type entry struct {
		fields rules.NodeClassRules
		forced bool
	}
	merged := map[rules.ClassName]entry{}
	for class, fields := range p.ForcedNodeClasses {
		merged[class] = entry{fields: fields, forced: true}
	}
	for class, fields := range p.Classes {
		e := merged[class]
		e.fields = fields
		merged[class] = e
	}

	classes := make([]rules.ClassName, 0, len(merged))
	for c := range merged {
		classes = append(classes, c)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i] < classes[j] })

	items := make([]list.Item, 0, len(classes))
	for _, c := range classes {
		e := merged[c]
		items = append(items, classItem{class: c, fields: e.fields, forced: e.forced, accepted: decisions[c]})
	}
	return items
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.classList.SetSize(msg.Width-4, msg.Height-10)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Tab):
			m.currentView = (m.currentView + 1) % view(len(viewNames))
			m.onViewEntered()
			return m, nil
		case key.Matches(msg, m.keys.ShiftTab):
			if m.currentView == 0 {
				m.currentView = view(len(viewNames) - 1)
			} else {
				m.currentView--
			}
			m.onViewEntered()
			return m, nil
		}
		return m.updateForView(msg)
	}
	return m, nil
}

func (m *model) onViewEntered() {
	if m.currentView == backupsView {
		sets, err := m.store.ListBackupSets()
		if err != nil {
			m.message = err.Error()
			m.messageErr = true
			return
		}
		m.backupList = sets
		if m.backupCursor >= len(sets) {
			m.backupCursor = 0
		}
	}
}

func (m model) updateForView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.currentView {
	case proposalView:
		return m.updateProposalView(msg)
	case persistView:
		return m.updatePersistView(msg)
	case backupsView:
		return m.updateBackupsView(msg)
	default:
		return m, nil
	}
}

func (m model) updateProposalView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Toggle):
		if sel, ok := m.classList.SelectedItem().(classItem); ok {
			m.decisions[sel.class] = !m.decisions[sel.class]
			m.refreshClassList()
		}
		return m, nil
	case key.Matches(msg, m.keys.AcceptAll):
		m.setAllDecisions(true)
		m.refreshClassList()
		return m, nil
	case key.Matches(msg, m.keys.RejectAll):
		m.setAllDecisions(false)
		m.refreshClassList()
		return m, nil
	}
	var cmd tea.Cmd
	m.classList, cmd = m.classList.Update(msg)
	m.syncFieldsTable()
	return m, cmd
}

func (m model) updatePersistView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "o":
		if m.persistOpts.Mode == persistence.ModeAppendNew {
			m.persistOpts.Mode = persistence.ModeOverwrite
		} else {
			m.persistOpts.Mode = persistence.ModeAppendNew
		}
	case "c":
		m.persistOpts.ReplaceConflicts = !m.persistOpts.ReplaceConflicts
	case "b":
		m.persistOpts.BackupBeforeSave = !m.persistOpts.BackupBeforeSave
	case "g":
		m.persistOpts.RebuildPythonRules = !m.persistOpts.RebuildPythonRules
	case "x":
		m.persistOpts.RestoreBackupSetID = ""
	case "+":
		m.persistOpts.LimitBackupSets++
	case "-":
		if m.persistOpts.LimitBackupSets > 0 {
			m.persistOpts.LimitBackupSets--
		}
	case "w":
		m.runWrite()
	}
	return m, nil
}

func (m model) updateBackupsView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.backupCursor > 0 {
			m.backupCursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.backupCursor < len(m.backupList)-1 {
			m.backupCursor++
		}
	case key.Matches(msg, m.keys.Enter):
		if m.backupCursor < len(m.backupList) {
			m.persistOpts.RestoreBackupSetID = m.backupList[m.backupCursor]
			m.message = fmt.Sprintf("restore target set to %s; switch to Persist and press w", m.persistOpts.RestoreBackupSetID)
			m.messageErr = false
		}
	}
	return m, nil
}

func (m *model) setAllDecisions(accepted bool) {
	for class := range m.proposal.Classes {
		m.decisions[class] = accepted
	}
	for class := range m.proposal.ForcedNodeClasses {
		m.decisions[class] = accepted
	}
}

func (m *model) refreshClassList() {
	idx := m.classList.Index()
	items := buildClassItems(m.proposal, m.decisions)
	m.classList.SetItems(items)
	if idx < len(items) {
		m.classList.Select(idx)
	}
}

// syncFieldsTable rebuilds the detail table for whichever class is
// currently selected in the list, the read-only companion pane to the
// accept/reject checkbox list (no bubbles message exists for "list
// selection changed", so this runs after every list Update).
func (m *model) syncFieldsTable() {
	sel, ok := m.classList.SelectedItem().(classItem)
	if !ok {
		m.fieldsTable.SetRows(nil)
		m.selectedClass = ""
		return
	}
	if sel.class == m.selectedClass {
		return
	}
	m.selectedClass = sel.class
	m.fieldsTable.SetRows(fieldRows(sel.fields))
}

func (m *model) runWrite() {
	filtered := filterProposal(m.proposal, m.decisions)
	result, err := savepipeline.PersistScanProposal(m.store, filtered, m.persistOpts, m.notify, m.logger)
	if err != nil {
		m.message = err.Error()
		m.messageErr = true
		return
	}
	m.lastResult = result
	m.message = "saved: " + result.StatusSummary()
	m.messageErr = false
	m.persistOpts.RestoreBackupSetID = ""
}

// filterProposal drops every class a reviewer rejected, keeping the
// scanned/forced split savepipeline.proposalToDocument expects.
func filterProposal(p *scanner.Proposal, decisions map[rules.ClassName]bool) *scanner.Proposal {
	out := &scanner.Proposal{
		Classes:           map[rules.ClassName]rules.NodeClassRules{},
		ForcedNodeClasses: map[rules.ClassName]rules.NodeClassRules{},
	}
	for class, fields := range p.Classes {
		if decisions[class] {
			out.Classes[class] = fields
		}
	}
	for class, fields := range p.ForcedNodeClasses {
		if decisions[class] {
			out.ForcedNodeClasses[class] = fields
		}
	}
	return out
}

func fieldsTableColumns() []table.Column {
	return []table.Column{
		{Title: "Field", Width: 20},
		{Title: "Source", Width: 10},
		{Title: "Detail", Width: 24},
		{Title: "Format", Width: 20},
	}
}

func fieldsTableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("63")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("230")).
		Background(lipgloss.Color("63"))
	return s
}

func fieldRows(fields rules.NodeClassRules) []table.Row {
	names := make([]semfield.Field, 0, len(fields))
	for f := range fields {
		names = append(names, f)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

	rows := make([]table.Row, 0, len(fields))
	for _, field := range names {
		spec := fields[field]
		source, detail := specSummary(spec)
		format := "-"
		if spec.Format != "" {
			format = string(spec.Format)
		}
		rows = append(rows, table.Row{field.String(), source, detail, format})
	}
	return rows
}

func specSummary(s rules.Spec) (source, detail string) {
	switch {
	case s.FieldName != "":
		return "field", s.FieldName
	case s.Prefix != "":
		return "prefix", s.Prefix
	case len(s.Fields) > 0:
		return "fields", strings.Join(s.Fields, ",")
	case s.Selector != "":
		return "selector", string(s.Selector)
	default:
		return "-", "-"
	}
}
