package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rektdeckard/moccasin/internal/domain/feed"
	"github.com/rektdeckard/moccasin/internal/engine"
	"github.com/rektdeckard/moccasin/internal/parse"
	"github.com/rektdeckard/moccasin/internal/store"
)

// Update handles messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
	case tea.KeyMsg:
		cmd, handled := m.handleKey(msg)
		if handled {
			return m, cmd
		}
	case refreshedMsg:
		cmds = append(cmds, m.handleRefreshed(msg)...)
	case backgroundReportMsg:
		cmds = append(cmds, m.handleBackgroundReport(msg)...)
	case feedsLoadedMsg:
		m.handleFeedsLoaded(msg)
	case itemsLoadedMsg:
		m.handleItemsLoaded(msg)
	case searchedMsg:
		m.handleSearched(msg)
	case sourceRemovedMsg:
		cmds = append(cmds, m.handleSourceRemoved(msg)...)
	case stateSavedMsg:
		cmds = append(cmds, m.handleStateSaved(msg)...)
	case linkOpenedMsg:
		m.handleLinkOpened(msg)
	}

	if m.loading {
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	switch m.session {
	case FeedView:
		m.feedList, cmd = m.feedList.Update(msg)
		cmds = append(cmds, cmd)
	case ItemView:
		m.itemList, cmd = m.itemList.Update(msg)
		cmds = append(cmds, cmd)
	case DetailView:
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) handleRefreshed(msg refreshedMsg) []tea.Cmd {
	m.loading = false
	if msg.Err != nil {
		if errors.Is(msg.Err, engine.ErrCycleInFlight) {
			m.status = "refresh already running"
			return nil
		}
		m.err = msg.Err
		return nil
	}

	m.err = nil
	m.status = reportStatus(msg.Report)

	cmds := []tea.Cmd{loadFeedsCmd(m.views, m.order)}
	if m.session == ItemView && !m.searching {
		cmds = append(cmds, loadItemsCmd(m.views, m.currentFeedID, store.ItemFilter{}, m.order))
	}
	return cmds
}

func (m *Model) handleBackgroundReport(msg backgroundReportMsg) []tea.Cmd {
	if !msg.Open {
		return nil
	}
	m.status = reportStatus(&msg.Report)

	cmds := []tea.Cmd{
		loadFeedsCmd(m.views, m.order),
		listenReportsCmd(m.engine.Reports()),
	}
	if m.session == ItemView && !m.searching {
		cmds = append(cmds, loadItemsCmd(m.views, m.currentFeedID, store.ItemFilter{}, m.order))
	}
	return cmds
}

func (m *Model) handleFeedsLoaded(msg feedsLoadedMsg) {
	if msg.Err != nil {
		m.err = msg.Err
		return
	}
	rows := make([]list.Item, 0, len(msg.Entries))
	for _, entry := range msg.Entries {
		rows = append(rows, feedRow{entry: entry})
	}
	idx := m.feedList.Index()
	m.feedList.SetItems(rows)
	if idx < len(rows) {
		m.feedList.Select(idx)
	}
}

func (m *Model) handleItemsLoaded(msg itemsLoadedMsg) {
	if msg.Err != nil {
		m.err = msg.Err
		return
	}
	if m.searching || msg.FeedID != m.currentFeedID {
		return
	}
	rows := make([]list.Item, 0, len(msg.Items))
	for _, it := range msg.Items {
		rows = append(rows, itemRow{item: it})
	}
	idx := m.itemList.Index()
	m.itemList.SetItems(rows)
	if idx < len(rows) {
		m.itemList.Select(idx)
	}
	m.loading = false
}

func (m *Model) handleSearched(msg searchedMsg) {
	m.loading = false
	if msg.Err != nil {
		m.err = msg.Err
		return
	}
	rows := make([]list.Item, 0, len(msg.Items))
	for _, it := range msg.Items {
		rows = append(rows, itemRow{item: it})
	}
	m.searching = true
	m.currentFeedID = ""
	m.currentFeedTitle = fmt.Sprintf("search: %q", msg.Query)
	m.itemList.SetItems(rows)
	m.itemList.ResetSelected()
	m.session = ItemView
}

func (m *Model) handleSourceRemoved(msg sourceRemovedMsg) []tea.Cmd {
	if msg.Err != nil {
		m.err = msg.Err
		return nil
	}
	m.status = fmt.Sprintf("removed %s", msg.URL)
	return []tea.Cmd{loadFeedsCmd(m.views, m.order)}
}

func (m *Model) handleStateSaved(msg stateSavedMsg) []tea.Cmd {
	if msg.Err != nil {
		m.err = msg.Err
		return nil
	}
	// Counts in the feed list may have shifted.
	return []tea.Cmd{loadFeedsCmd(m.views, m.order)}
}

func (m *Model) handleLinkOpened(msg linkOpenedMsg) {
	if msg.Err != nil {
		m.err = fmt.Errorf("open %s: %w", msg.URL, msg.Err)
		return
	}
	m.status = fmt.Sprintf("opened %s", msg.URL)
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch m.session {
	case AddFeedView:
		return m.handleAddFeedKey(msg)
	case SearchView:
		return m.handleSearchKey(msg)
	case DeleteFeedView:
		return m.handleDeleteFeedKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit, true
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return nil, true
	case key.Matches(msg, m.keys.Refresh):
		m.loading = true
		m.err = nil
		return tea.Batch(m.spinner.Tick, refreshCmd(m.engine)), true
	case key.Matches(msg, m.keys.Search):
		m.session = SearchView
		m.input.Reset()
		m.input.Placeholder = "search items"
		return textinput.Blink, true
	case key.Matches(msg, m.keys.CycleSort):
		return m.cycleSort(), true
	}

	switch m.session {
	case FeedView:
		return m.handleFeedKey(msg)
	case ItemView:
		return m.handleItemKey(msg)
	case DetailView:
		return m.handleDetailKey(msg)
	}
	return nil, false
}

func (m *Model) handleFeedKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Open) || key.Matches(msg, m.keys.Right):
		row, ok := m.feedList.SelectedItem().(feedRow)
		if !ok {
			return nil, true
		}
		m.searching = false
		m.currentFeedID = row.entry.Feed.ID
		m.currentFeedTitle = row.entry.Feed.Title
		m.session = ItemView
		m.itemList.ResetSelected()
		m.loading = true
		return tea.Batch(m.spinner.Tick, loadItemsCmd(m.views, m.currentFeedID, store.ItemFilter{}, m.order)), true
	case key.Matches(msg, m.keys.AddFeed):
		m.session = AddFeedView
		m.input.Reset()
		m.input.Placeholder = "https://example.com/feed.xml (RSS/Atom)"
		return textinput.Blink, true
	case key.Matches(msg, m.keys.DeleteFeed):
		if _, ok := m.feedList.SelectedItem().(feedRow); ok {
			m.session = DeleteFeedView
		}
		return nil, true
	}
	return nil, false
}

func (m *Model) handleItemKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Back) || key.Matches(msg, m.keys.Left):
		m.session = FeedView
		return loadFeedsCmd(m.views, m.order), true
	case key.Matches(msg, m.keys.Open) || key.Matches(msg, m.keys.Right):
		row, ok := m.itemList.SelectedItem().(itemRow)
		if !ok {
			return nil, true
		}
		m.viewport.SetContent(buildDetailContent(row.item, m.detailWrapWidth()))
		m.viewport.GotoTop()
		m.session = DetailView
		if !row.item.Read {
			return m.setItemRead(row, true), true
		}
		return nil, true
	case key.Matches(msg, m.keys.ToggleRead):
		row, ok := m.itemList.SelectedItem().(itemRow)
		if !ok {
			return nil, true
		}
		return m.setItemRead(row, !row.item.Read), true
	case key.Matches(msg, m.keys.ToggleFavorite):
		row, ok := m.itemList.SelectedItem().(itemRow)
		if !ok {
			return nil, true
		}
		favorite := !row.item.Favorite
		row.item.Favorite = favorite
		m.itemList.SetItem(m.itemList.Index(), row)
		return saveStateCmd(m.store, row.item.FeedID, row.item.ID, store.UserState{Favorite: &favorite}), true
	}
	return nil, false
}

func (m *Model) handleDetailKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Back) || key.Matches(msg, m.keys.Left):
		m.session = ItemView
		return nil, true
	case key.Matches(msg, m.keys.Open) || key.Matches(msg, m.keys.Right):
		if row, ok := m.itemList.SelectedItem().(itemRow); ok && row.item.Link != nil {
			return openLinkCmd(*row.item.Link), true
		}
		return nil, true
	}
	return nil, false
}

func (m *Model) handleAddFeedKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch msg.String() {
	case "enter":
		url := strings.TrimSpace(m.input.Value())
		m.input.Reset()
		m.session = FeedView
		if url == "" {
			return nil, true
		}
		m.loading = true
		m.err = nil
		return tea.Batch(m.spinner.Tick, addSourceCmd(m.engine, url)), true
	case "esc":
		m.input.Reset()
		m.session = FeedView
		return nil, true
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd, true
}

func (m *Model) handleSearchKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch msg.String() {
	case "enter":
		query := strings.TrimSpace(m.input.Value())
		m.input.Reset()
		if query == "" {
			m.session = FeedView
			return nil, true
		}
		m.loading = true
		m.err = nil
		return tea.Batch(m.spinner.Tick, searchCmd(m.views, query)), true
	case "esc":
		m.input.Reset()
		m.session = FeedView
		return nil, true
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd, true
}

func (m *Model) handleDeleteFeedKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch msg.String() {
	case "y", "Y":
		m.session = FeedView
		if row, ok := m.feedList.SelectedItem().(feedRow); ok {
			return removeSourceCmd(m.engine, row.entry.Feed.SourceURL), true
		}
		return nil, true
	case "n", "N", "esc", "q", "Q":
		m.session = FeedView
		return nil, true
	}
	return nil, true
}

func (m *Model) setItemRead(row itemRow, read bool) tea.Cmd {
	row.item.Read = read
	m.itemList.SetItem(m.itemList.Index(), row)
	return saveStateCmd(m.store, row.item.FeedID, row.item.ID, store.UserState{Read: &read})
}

func (m *Model) cycleSort() tea.Cmd {
	m.order = nextOrder(m.order)
	m.status = fmt.Sprintf("sort: %s", m.order)

	cmds := []tea.Cmd{loadFeedsCmd(m.views, m.order)}
	if m.session == ItemView && !m.searching {
		cmds = append(cmds, loadItemsCmd(m.views, m.currentFeedID, store.ItemFilter{}, m.order))
	}
	return tea.Batch(cmds...)
}

func nextOrder(order feed.SortOrder) feed.SortOrder {
	switch order {
	case feed.SortNewest:
		return feed.SortOldest
	case feed.SortOldest:
		return feed.SortTitleAsc
	case feed.SortTitleAsc:
		return feed.SortTitleDesc
	case feed.SortTitleDesc:
		return feed.SortUnreadFirst
	case feed.SortUnreadFirst:
		return feed.SortManual
	default:
		return feed.SortNewest
	}
}

func (m *Model) resize() {
	headerHeight := 1
	footerHeight := 2
	body := m.height - headerHeight - footerHeight
	if body < 0 {
		body = 0
	}
	m.feedList.SetSize(m.width, body)
	m.itemList.SetSize(m.width, body)
	m.viewport.Width = m.width
	m.viewport.Height = body
}

func (m *Model) detailWrapWidth() int {
	w := m.viewport.Width - m.viewport.Style.GetHorizontalFrameSize()
	if w <= 0 {
		w = 72
	}
	return w
}

// buildDetailContent renders one item for the detail reader: a header block
// followed by the best available body text.
func buildDetailContent(it feed.Item, width int) string {
	var b strings.Builder

	title := "(untitled)"
	if it.Title != nil && strings.TrimSpace(*it.Title) != "" {
		title = singleLine(*it.Title)
	}
	b.WriteString(lipgloss.NewStyle().Bold(true).Width(width).Render(title))
	b.WriteString("\n")

	if it.Author != nil {
		b.WriteString(fmt.Sprintf("by %s\n", *it.Author))
	}
	if it.PubDate != nil {
		b.WriteString(it.PubDate.Format("2006-01-02 15:04") + "\n")
	}
	if it.Link != nil {
		b.WriteString(*it.Link + "\n")
	}
	if len(it.Tags) > 0 {
		b.WriteString("#" + strings.Join(it.Tags, " #") + "\n")
	}
	b.WriteString("\n")

	b.WriteString(lipgloss.NewStyle().Width(width).Render(detailBody(it)))
	return b.String()
}

func detailBody(it feed.Item) string {
	switch {
	case it.TextDescription != nil && strings.TrimSpace(*it.TextDescription) != "":
		return *it.TextDescription
	case it.Content != nil && strings.TrimSpace(*it.Content) != "":
		return parse.Flatten(*it.Content)
	case it.Description != nil:
		return parse.Flatten(*it.Description)
	default:
		return "(no content)"
	}
}

func reportStatus(report *engine.Report) string {
	if report == nil {
		return ""
	}
	if len(report.Failed) == 0 {
		return fmt.Sprintf("refreshed %d feeds", len(report.Succeeded))
	}
	return fmt.Sprintf("refreshed %d feeds, %d failed", len(report.Succeeded), len(report.Failed))
}
