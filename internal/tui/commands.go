package tui

import (
	"context"
	"os/exec"
	"runtime"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rektdeckard/moccasin/internal/domain/feed"
	"github.com/rektdeckard/moccasin/internal/engine"
	"github.com/rektdeckard/moccasin/internal/store"
	"github.com/rektdeckard/moccasin/internal/view"
)

// refreshedMsg is emitted after a manual refresh cycle completes.
type refreshedMsg struct {
	Report *engine.Report
	Err    error
}

// backgroundReportMsg carries a report from the engine's timer loop.
type backgroundReportMsg struct {
	Report engine.Report
	Open   bool
}

// feedsLoadedMsg is emitted after reloading the feed list projection.
type feedsLoadedMsg struct {
	Entries []view.FeedEntry
	Err     error
}

// itemsLoadedMsg is emitted after reloading one feed's items.
type itemsLoadedMsg struct {
	FeedID string
	Items  []feed.Item
	Err    error
}

// searchedMsg is emitted after a cross-feed search.
type searchedMsg struct {
	Query string
	Items []feed.Item
	Err   error
}

// sourceRemovedMsg is emitted after removing a source.
type sourceRemovedMsg struct {
	URL string
	Err error
}

// stateSavedMsg is emitted after mutating an item's user-owned fields.
type stateSavedMsg struct {
	FeedID string
	ItemID string
	Err    error
}

// linkOpenedMsg is emitted after handing an item link to the system browser.
type linkOpenedMsg struct {
	URL string
	Err error
}

func refreshCmd(e *engine.Engine) tea.Cmd {
	return func() tea.Msg {
		report, err := e.Refresh(context.Background())
		return refreshedMsg{Report: report, Err: err}
	}
}

func addSourceCmd(e *engine.Engine, url string) tea.Cmd {
	trimmed := strings.TrimSpace(url)
	return func() tea.Msg {
		report, err := e.AddSource(context.Background(), trimmed)
		return refreshedMsg{Report: report, Err: err}
	}
}

func removeSourceCmd(e *engine.Engine, url string) tea.Cmd {
	return func() tea.Msg {
		return sourceRemovedMsg{URL: url, Err: e.RemoveSource(url)}
	}
}

func loadFeedsCmd(views *view.Model, order feed.SortOrder) tea.Cmd {
	return func() tea.Msg {
		entries, err := views.SortedFeeds(order)
		return feedsLoadedMsg{Entries: entries, Err: err}
	}
}

func loadItemsCmd(views *view.Model, feedID string, filter store.ItemFilter, order feed.SortOrder) tea.Cmd {
	return func() tea.Msg {
		items, err := views.ItemsFor(feedID, filter, order)
		return itemsLoadedMsg{FeedID: feedID, Items: items, Err: err}
	}
}

func searchCmd(views *view.Model, query string) tea.Cmd {
	trimmed := strings.TrimSpace(query)
	return func() tea.Msg {
		items, err := views.Search(trimmed)
		return searchedMsg{Query: trimmed, Items: items, Err: err}
	}
}

func saveStateCmd(st *store.Store, feedID, itemID string, change store.UserState) tea.Cmd {
	return func() tea.Msg {
		return stateSavedMsg{FeedID: feedID, ItemID: itemID, Err: st.SetItemUserState(feedID, itemID, change)}
	}
}

// launchBrowser hands a URL to the platform's opener. Swappable so tests
// never spawn real processes.
var launchBrowser = func(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}

func openLinkCmd(url string) tea.Cmd {
	return func() tea.Msg {
		return linkOpenedMsg{URL: url, Err: launchBrowser(url)}
	}
}

// listenReportsCmd blocks on the engine's report channel and re-arms itself
// after every delivery.
func listenReportsCmd(reports <-chan engine.Report) tea.Cmd {
	return func() tea.Msg {
		report, open := <-reports
		return backgroundReportMsg{Report: report, Open: open}
	}
}
