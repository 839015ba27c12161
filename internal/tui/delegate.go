package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/rektdeckard/moccasin/internal/domain/feed"
	"github.com/rektdeckard/moccasin/internal/view"
)

const itemSafetyPadding = 2

// feedRow adapts a feed list entry for the bubbles list.
type feedRow struct {
	entry view.FeedEntry
}

func (r feedRow) FilterValue() string { return r.entry.Feed.Title }

func (r feedRow) label() string {
	title := r.entry.Feed.Title
	if title == "" {
		title = r.entry.Feed.SourceURL
	}
	if r.entry.UnreadCount > 0 {
		return fmt.Sprintf("%s (%d/%d)", title, r.entry.UnreadCount, r.entry.ItemCount)
	}
	return fmt.Sprintf("%s (%d)", title, r.entry.ItemCount)
}

// itemRow adapts a stored item for the bubbles list.
type itemRow struct {
	item feed.Item
}

func (r itemRow) FilterValue() string { return r.title() }

func (r itemRow) title() string {
	if r.item.Title == nil || strings.TrimSpace(*r.item.Title) == "" {
		return "(untitled)"
	}
	return singleLine(*r.item.Title)
}

// feedDelegate renders one feed per line, unread count highlighted with the
// theme color.
type feedDelegate struct {
	styles list.DefaultItemStyles
	unread lipgloss.Style
}

func newFeedDelegate(nameColor, unreadColor lipgloss.Color) *feedDelegate {
	styles := list.NewDefaultItemStyles()
	styles.NormalTitle = styles.NormalTitle.Foreground(nameColor)
	return &feedDelegate{
		styles: styles,
		unread: lipgloss.NewStyle().Foreground(unreadColor),
	}
}

func (d *feedDelegate) Height() int  { return 1 }
func (d *feedDelegate) Spacing() int { return 0 }

func (d *feedDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d *feedDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	row, ok := item.(feedRow)
	if !ok {
		return
	}

	label := row.label()
	style := d.styles.NormalTitle
	if index == m.Index() {
		style = d.styles.SelectedTitle
	} else if row.entry.UnreadCount > 0 {
		style = d.unread
	}

	label = truncate(label, m.Width()-style.GetHorizontalFrameSize()-itemSafetyPadding)
	_, _ = io.WriteString(w, style.Render(label))
}

// itemDelegate renders one item per line. Read items are faint, favorites
// carry a marker in the theme's favorite color.
type itemDelegate struct {
	styles   list.DefaultItemStyles
	unread   lipgloss.Style
	favorite lipgloss.Style
}

func newItemDelegate(unreadColor, favoriteColor lipgloss.Color) *itemDelegate {
	return &itemDelegate{
		styles:   list.NewDefaultItemStyles(),
		unread:   lipgloss.NewStyle().Foreground(unreadColor),
		favorite: lipgloss.NewStyle().Foreground(favoriteColor),
	}
}

func (d *itemDelegate) Height() int  { return 1 }
func (d *itemDelegate) Spacing() int { return 0 }

func (d *itemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d *itemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	row, ok := item.(itemRow)
	if !ok {
		return
	}

	title := row.title()
	if row.item.Favorite {
		title = d.favorite.Render("[*] ") + title
	}
	if len(row.item.Tags) > 0 {
		title = fmt.Sprintf("%s #%s", title, strings.Join(row.item.Tags, " #"))
	}

	style := d.styles.NormalTitle
	switch {
	case index == m.Index():
		style = d.styles.SelectedTitle
	case !row.item.Read:
		style = d.unread
	}

	title = truncate(title, m.Width()-style.GetHorizontalFrameSize()-itemSafetyPadding)
	if row.item.Read && index != m.Index() {
		title = lipgloss.NewStyle().Faint(true).Render(title)
	}

	_, _ = io.WriteString(w, style.Render(title))
}

// singleLine collapses whitespace into single spaces.
func singleLine(text string) string {
	if text == "" {
		return ""
	}
	return strings.Join(strings.Fields(text), " ")
}

// truncate trims a string to the given width with an ellipsis.
func truncate(text string, width int) string {
	if width <= 0 {
		return ""
	}
	return ansi.Truncate(text, width, "...")
}
