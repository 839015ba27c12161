package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// render composes the full frame: a one-line header, the active body, and a
// footer with status and help.
func (m *Model) render() string {
	var body string
	switch m.session {
	case FeedView, DeleteFeedView:
		body = m.feedList.View()
	case ItemView:
		body = m.itemList.View()
	case DetailView:
		body = m.viewport.View()
	case AddFeedView:
		body = m.renderPrompt("add feed")
	case SearchView:
		body = m.renderPrompt("search")
	}

	return lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(), body, m.renderFooter())
}

func (m *Model) renderHeader() string {
	title := "moccasin"
	switch m.session {
	case ItemView, DetailView:
		if m.currentFeedTitle != "" {
			title = fmt.Sprintf("moccasin / %s", m.currentFeedTitle)
		}
	case DeleteFeedView:
		if row, ok := m.feedList.SelectedItem().(feedRow); ok {
			title = fmt.Sprintf("delete %s? (y/n)", row.entry.Feed.SourceURL)
		}
	}

	header := m.styles.Header.Render(title)
	if m.loading {
		header += " " + m.spinner.View()
	}
	return truncate(header, m.width)
}

func (m *Model) renderPrompt(label string) string {
	return fmt.Sprintf("\n  %s: %s\n", label, m.input.View())
}

func (m *Model) renderFooter() string {
	status := m.status
	if m.err != nil {
		status = m.styles.Error.Render(strings.TrimSpace(m.err.Error()))
	} else if status != "" {
		status = m.styles.Status.Render(status)
	}
	return lipgloss.JoinVertical(lipgloss.Left, status, m.help.View(&m.keys))
}
