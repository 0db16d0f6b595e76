package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170"))

	stagedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	unstagedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)
)

// View renders the current state.
func (m *Model) View() string {
	var b strings.Builder

	header := fmt.Sprintf("gitSMART  %s", m.sess.Repo().Name())
	if m.branch != "" {
		header += dimStyle.Render("  (" + m.branch + ")")
	}
	b.WriteString(titleStyle.Render(header) + "\n")

	switch m.state {
	case stateMenu:
		b.WriteString(m.viewMenu())
	case stateFiles:
		b.WriteString(m.viewFiles())
	case stateGenerating:
		b.WriteString(fmt.Sprintf("\n  %s thinking...\n", m.spinner.View()))
	case stateDraft:
		b.WriteString(m.viewDraft())
	case stateHistory:
		b.WriteString(m.viewHistory())
	case stateSummary:
		b.WriteString(boxStyle.Render(m.viewport.View()) + "\n")
		b.WriteString(dimStyle.Render("\n esc back\n"))
	}

	if m.status != "" {
		b.WriteString(dimStyle.Render("\n " + m.status + "\n"))
	}
	if m.err != nil {
		b.WriteString(errStyle.Render(fmt.Sprintf("\n error: %v\n", m.err)))
	}
	return b.String()
}

func (m *Model) viewMenu() string {
	var b strings.Builder
	for i, entry := range m.menu {
		cursor := "  "
		label := entry.label
		if i == m.cursor {
			cursor = "> "
			label = selectedStyle.Render(label)
		}
		b.WriteString(cursor + label + "\n")
	}
	b.WriteString(dimStyle.Render("\n ↑/↓ move · enter select · q quit\n"))
	return b.String()
}

func (m *Model) viewFiles() string {
	if len(m.files) == 0 {
		return dimStyle.Render("\n working tree clean\n\n esc back\n")
	}

	var b strings.Builder
	for i, f := range m.files {
		cursor := "  "
		if i == m.cursor {
			cursor = "> "
		}
		marker := unstagedStyle.Render("[ ]")
		if f.staged {
			marker = stagedStyle.Render("[x]")
		}
		line := fmt.Sprintf("%s%s %s %s", cursor, marker, f.path, dimStyle.Render(string(f.kind)))
		if i == m.cursor {
			line = selectedStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}
	b.WriteString(dimStyle.Render("\n space toggle stage · g generate · r refresh · esc back\n"))
	return b.String()
}

func (m *Model) viewDraft() string {
	var b strings.Builder
	b.WriteString(boxStyle.Render(m.viewport.View()) + "\n")
	if m.draft != nil && m.draft.Fallback {
		b.WriteString(unstagedStyle.Render("\n generated without model assistance (fallback)\n"))
	}
	b.WriteString(dimStyle.Render("\n c commit · r regenerate · d discard\n"))
	return b.String()
}

func (m *Model) viewHistory() string {
	if len(m.history) == 0 {
		return dimStyle.Render("\n no commits yet\n\n esc back\n")
	}

	var b strings.Builder
	for i, c := range m.history {
		cursor := "  "
		if i == m.cursor {
			cursor = "> "
		}
		title := strings.SplitN(strings.TrimSpace(c.Message), "\n", 2)[0]
		line := fmt.Sprintf("%s%s %s %s", cursor, dimStyle.Render(shortHash(c.Hash)), title,
			dimStyle.Render(c.When.Format("2006-01-02")))
		if i == m.cursor {
			line = selectedStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}
	b.WriteString(dimStyle.Render("\n s summarize series · esc back\n"))
	return b.String()
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}

// setDraftViewport renders the draft into the review viewport.
func (m *Model) setDraftViewport() {
	if m.draft == nil {
		return
	}
	md := "```\n" + m.draft.Render() + "```\n"
	if out, err := m.renderer.Render(md); err == nil {
		m.viewport.SetContent(out)
	} else {
		m.viewport.SetContent(m.draft.Render())
	}
	m.viewport.GotoTop()
}

// setSummaryViewport renders the commit-series summary.
func (m *Model) setSummaryViewport() {
	if out, err := m.renderer.Render(m.summary); err == nil {
		m.viewport.SetContent(out)
	} else {
		m.viewport.SetContent(m.summary)
	}
	m.viewport.GotoTop()
}
