// Package tui implements the terminal user interface: a feed list, an item
// list, and a detail reader over the view projections, with refresh and
// source management wired to the sync engine.
package tui

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rektdeckard/moccasin/internal/config"
	"github.com/rektdeckard/moccasin/internal/domain/feed"
	"github.com/rektdeckard/moccasin/internal/engine"
	"github.com/rektdeckard/moccasin/internal/store"
	"github.com/rektdeckard/moccasin/internal/view"
)

// Session represents the current view state.
type Session int

const (
	FeedView Session = iota
	ItemView
	DetailView
	AddFeedView
	SearchView
	DeleteFeedView
)

// Model represents the main application state.
type Model struct {
	engine *engine.Engine
	store  *store.Store
	views  *view.Model
	keys   KeyMap
	styles Styles

	session Session
	order   feed.SortOrder

	feedList list.Model
	itemList list.Model
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	help     help.Model

	currentFeedID    string
	currentFeedTitle string
	searching        bool

	loading bool
	status  string
	err     error
	width   int
	height  int
}

// Styles carries the lipgloss styles derived from the theme configuration.
type Styles struct {
	Header   lipgloss.Style
	Status   lipgloss.Style
	Error    lipgloss.Style
	FeedName lipgloss.Color
	Unread   lipgloss.Color
	Favorite lipgloss.Color
}

// NewStyles derives the style set from the theme configuration.
func NewStyles(theme config.ThemeConfig) Styles {
	return Styles{
		Header:   lipgloss.NewStyle().Bold(true).Padding(0, 1),
		Status:   lipgloss.NewStyle().Faint(true).Padding(0, 1),
		Error:    lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Padding(0, 1),
		FeedName: lipgloss.Color(theme.FeedName),
		Unread:   lipgloss.Color(theme.Unread),
		Favorite: lipgloss.Color(theme.Favorite),
	}
}

// NewModel creates a new application model.
func NewModel(cfg *config.Config, eng *engine.Engine, st *store.Store) *Model {
	styles := NewStyles(cfg.Theme)
	order, err := cfg.Data.Order()
	if err != nil {
		order = feed.SortNewest
	}

	return &Model{
		engine:   eng,
		store:    st,
		views:    view.New(st),
		keys:     NewKeyMap(cfg.KeyMap),
		styles:   styles,
		session:  FeedView,
		order:    order,
		feedList: newFeedList(styles),
		itemList: newItemList(styles),
		viewport: newViewport(),
		input:    newTextInput(),
		spinner:  newSpinner(),
		help:     help.New(),
	}
}

// Init initializes the model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		loadFeedsCmd(m.views, m.order),
		listenReportsCmd(m.engine.Reports()),
	)
}

// View renders the application view.
func (m *Model) View() string {
	return m.render()
}

func newFeedList(styles Styles) list.Model {
	l := list.New([]list.Item{}, newFeedDelegate(styles.FeedName, styles.Unread), 0, 0)
	l.Title = "Feeds"
	l.SetShowTitle(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()
	return l
}

func newItemList(styles Styles) list.Model {
	l := list.New([]list.Item{}, newItemDelegate(styles.Unread, styles.Favorite), 0, 0)
	l.Title = "Items"
	l.SetShowTitle(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()
	return l
}

func newTextInput() textinput.Model {
	ti := textinput.New()
	ti.Placeholder = "https://example.com/feed.xml (RSS/Atom)"
	ti.Focus()
	ti.CharLimit = 256
	ti.Width = 60
	return ti
}

func newSpinner() spinner.Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return s
}

func newViewport() viewport.Model {
	vp := viewport.New(0, 0)
	vp.Style = lipgloss.NewStyle().
		PaddingLeft(1).
		PaddingRight(1)
	return vp
}
