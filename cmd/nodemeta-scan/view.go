package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/graphforge/nodemeta/pkg/persistence"
	"github.com/graphforge/nodemeta/pkg/rules"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginLeft(2).
			MarginTop(1)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 2)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240")).
				Padding(0, 2)

	contentStyle = lipgloss.NewStyle().
			MarginLeft(2).
			MarginTop(1)

	boxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			MarginRight(2)

	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("78")).Bold(true)
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("243")).MarginTop(1).MarginLeft(2)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
)

func (m model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render("nodemeta-scan — rule scan review"))
	s.WriteString("\n\n")
	s.WriteString(m.renderTabs())
	s.WriteString("\n\n")

	switch m.currentView {
	case summaryView:
		s.WriteString(m.renderSummary())
	case proposalView:
		s.WriteString(m.renderProposal())
	case persistView:
		s.WriteString(m.renderPersist())
	case backupsView:
		s.WriteString(m.renderBackups())
	}

	if m.message != "" {
		s.WriteString("\n\n")
		if m.messageErr {
			s.WriteString(contentStyle.Render(errorStyle.Render("✗ " + m.message)))
		} else {
			s.WriteString(contentStyle.Render(successStyle.Render("✓ " + m.message)))
		}
	}

	s.WriteString("\n\n")
	s.WriteString(helpStyle.Render(m.help.FullHelpView(m.keys.FullHelp())))

	return s.String()
}

func (m model) renderTabs() string {
	var rendered []string
	for i, name := range viewNames {
		if view(i) == m.currentView {
			rendered = append(rendered, activeTabStyle.Render(name))
		} else {
			rendered = append(rendered, inactiveTabStyle.Render(name))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func (m model) renderSummary() string {
	accepted, rejected := m.tallyDecisions()

	content := fmt.Sprintf(
		"Scan result\n───────────\n%s\n\nClasses scanned:   %d\nClasses proposed:  %d\nFields proposed:   %d\n\nReview\n──────\nAccepted classes:  %d\nRejected classes:  %d\nForced classes:    %d",
		m.diff.DiffText(),
		m.diff.ClassesScanned,
		m.diff.ClassesProposed,
		m.diff.FieldsProposed,
		accepted,
		rejected,
		len(m.proposal.ForcedNodeClasses),
	)

	return contentStyle.Render(boxStyle.Render(content))
}

func (m model) tallyDecisions() (accepted, rejected int) {
	seen := map[rules.ClassName]bool{}
	tally := func(class rules.ClassName) {
		if seen[class] {
			return
		}
		seen[class] = true
		if m.decisions[class] {
			accepted++
		} else {
			rejected++
		}
	}
	for class := range m.proposal.Classes {
		tally(class)
	}
	for class := range m.proposal.ForcedNodeClasses {
		tally(class)
	}
	return accepted, rejected
}

func (m model) renderProposal() string {
	left := m.classList.View()
	right := boxStyle.Render("Fields for " + dimStyle.Render(fallbackDash(string(m.selectedClass))) + "\n\n" + m.fieldsTable.View())
	return contentStyle.Render(lipgloss.JoinHorizontal(lipgloss.Top, left, right))
}

func (m model) renderPersist() string {
	restore := "(none)"
	if m.persistOpts.RestoreBackupSetID != "" {
		restore = m.persistOpts.RestoreBackupSetID
	}
	content := fmt.Sprintf(
		"Write options\n─────────────\n[o] mode:                %s\n[c] replace_conflicts:    %v\n[b] backup_before_save:   %v\n[g] rebuild_generated:    %v\n[+/-] limit_backup_sets:  %d\n[x] restore_backup_set:   %s\n\n[w] write accepted rules",
		m.persistOpts.Mode,
		m.persistOpts.ReplaceConflicts,
		m.persistOpts.BackupBeforeSave,
		m.persistOpts.RebuildPythonRules,
		m.persistOpts.LimitBackupSets,
		restore,
	)
	box := boxStyle.Render(content)

	var last string
	if m.lastResult != (persistence.SaveResult{}) {
		last = boxStyle.Render("Last write\n──────────\n" + m.lastResult.StatusSummary())
	}

	return contentStyle.Render(lipgloss.JoinHorizontal(lipgloss.Top, box, last))
}

func (m model) renderBackups() string {
	if len(m.backupList) == 0 {
		return contentStyle.Render(boxStyle.Render("No backup sets yet."))
	}
	var b strings.Builder
	b.WriteString("Backup sets (oldest first)\n──────────────────────────\n")
	for i, id := range m.backupList {
		if i == m.backupCursor {
			b.WriteString("> " + id + "\n")
		} else {
			b.WriteString("  " + id + "\n")
		}
	}
	b.WriteString("\n[enter] stage as restore target for the next write")
	return contentStyle.Render(boxStyle.Render(b.String()))
}

func fallbackDash(s string) string {
	if s == "" {
		return "(nothing selected)"
	}
	return s
}
