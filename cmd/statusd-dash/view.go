package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"statusd/pkg/protocol"
)

// View implements tea.Model.
func (m Model) View() string {
	theme := DefaultTheme()
	title := lipgloss.NewStyle().Bold(true).Foreground(theme.Primary)
	muted := lipgloss.NewStyle().Foreground(theme.Muted)

	var b strings.Builder
	b.WriteString(title.Render("statusd") + " " + muted.Render(m.dir) + "\n\n")

	switch {
	case m.status != nil:
		b.WriteString(renderStatus(m.status, theme))
	case m.fetchErr != nil:
		b.WriteString(lipgloss.NewStyle().Foreground(theme.Error).Render(m.fetchErr.Error()) + "\n")
	default:
		b.WriteString(m.spinner.View() + " fetching status...\n")
	}

	if m.fetchErr != nil && m.status != nil {
		b.WriteString("\n" + lipgloss.NewStyle().Foreground(theme.Warning).Render("refresh failed: "+m.fetchErr.Error()) + "\n")
	}

	b.WriteString("\n" + muted.Render("r refresh · q quit"))
	if !m.lastUpdated.IsZero() {
		b.WriteString(muted.Render("  ·  updated " + m.lastUpdated.Format("15:04:05")))
	}
	b.WriteString("\n")
	return b.String()
}

// renderStatus lays out the status fields as labeled rows.
func renderStatus(s *protocol.Status, theme Theme) string {
	label := lipgloss.NewStyle().Foreground(theme.Secondary).Width(10)
	ok := lipgloss.NewStyle().Foreground(theme.Success)
	warn := lipgloss.NewStyle().Foreground(theme.Warning)

	var b strings.Builder
	row := func(name, value string) {
		b.WriteString(label.Render(name) + " " + value + "\n")
	}

	branch := s.Branch
	if branch == "" {
		if s.Revision == "" {
			branch = warn.Render("(no commits yet)")
		} else {
			branch = warn.Render("(detached)")
		}
	}
	row("branch", branch)
	if s.Revision != "" {
		row("revision", shortHash(s.Revision))
	}
	if s.Tag != "" {
		row("tag", ok.Render(s.Tag))
	}
	if s.Upstream != "" {
		row("upstream", fmt.Sprintf("%s %s", s.Upstream, aheadBehind(s.Ahead, s.Behind)))
	}
	if s.State != protocol.StateNone {
		row("state", warn.Render(s.State))
	}
	row("staged", flagLabel(s.Staged, theme))
	row("unstaged", flagLabel(s.Unstaged, theme))
	row("untracked", flagLabel(s.Untracked, theme))
	if s.Stashes > 0 {
		row("stashes", fmt.Sprintf("%d", s.Stashes))
	}
	return b.String()
}

// shortHash abbreviates a 40-digit revision for display.
func shortHash(rev string) string {
	if len(rev) > 8 {
		return rev[:8]
	}
	return rev
}

// aheadBehind formats the divergence from upstream, "up to date" when none.
func aheadBehind(ahead, behind int) string {
	if ahead == 0 && behind == 0 {
		return "(up to date)"
	}
	parts := []string{}
	if ahead > 0 {
		parts = append(parts, fmt.Sprintf("↑%d", ahead))
	}
	if behind > 0 {
		parts = append(parts, fmt.Sprintf("↓%d", behind))
	}
	return "(" + strings.Join(parts, " ") + ")"
}

// flagLabel renders a tri-state change flag.
func flagLabel(flag int, theme Theme) string {
	switch flag {
	case protocol.FlagPresent:
		return lipgloss.NewStyle().Foreground(theme.Warning).Render("yes")
	case protocol.FlagUnknown:
		return lipgloss.NewStyle().Foreground(theme.Muted).Render("unknown")
	default:
		return lipgloss.NewStyle().Foreground(theme.Success).Render("no")
	}
}
