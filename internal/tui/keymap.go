package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"

	"github.com/rektdeckard/moccasin/internal/config"
)

// KeyMap defines the keybindings for the application.
type KeyMap struct {
	Up             key.Binding
	Down           key.Binding
	Left           key.Binding
	Right          key.Binding
	Open           key.Binding
	Back           key.Binding
	Quit           key.Binding
	AddFeed        key.Binding
	DeleteFeed     key.Binding
	Refresh        key.Binding
	Search         key.Binding
	ToggleRead     key.Binding
	ToggleFavorite key.Binding
	CycleSort      key.Binding
	Help           key.Binding
}

// ShortHelp returns a subset of keybindings for the help view.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Quit, k.Back, k.Open, k.Refresh}
}

// FullHelp returns all keybindings for the help view.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Left, k.Right},
		{k.Open, k.Back, k.Quit},
		{k.AddFeed, k.DeleteFeed, k.Refresh, k.Search},
		{k.ToggleRead, k.ToggleFavorite, k.CycleSort, k.Help},
	}
}

// NewKeyMap creates a new KeyMap from the configuration.
func NewKeyMap(cfg config.KeyMapConfig) KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys(splitKeys(cfg.Up)...),
			key.WithHelp(cfg.Up, "up"),
		),
		Down: key.NewBinding(
			key.WithKeys(splitKeys(cfg.Down)...),
			key.WithHelp(cfg.Down, "down"),
		),
		Left: key.NewBinding(
			key.WithKeys(splitKeys(cfg.Left)...),
			key.WithHelp(cfg.Left, "back/feeds"),
		),
		Right: key.NewBinding(
			key.WithKeys(splitKeys(cfg.Right)...),
			key.WithHelp(cfg.Right, "open"),
		),
		Open: key.NewBinding(
			key.WithKeys(splitKeys(cfg.Open)...),
			key.WithHelp(cfg.Open, "open"),
		),
		Back: key.NewBinding(
			key.WithKeys(splitKeys(cfg.Back)...),
			key.WithHelp(cfg.Back, "back"),
		),
		Quit: key.NewBinding(
			key.WithKeys(splitKeys(cfg.Quit)...),
			key.WithHelp(cfg.Quit, "quit"),
		),
		AddFeed: key.NewBinding(
			key.WithKeys(splitKeys(cfg.AddFeed)...),
			key.WithHelp(cfg.AddFeed, "add feed"),
		),
		DeleteFeed: key.NewBinding(
			key.WithKeys(splitKeys(cfg.DeleteFeed)...),
			key.WithHelp(cfg.DeleteFeed, "delete feed"),
		),
		Refresh: key.NewBinding(
			key.WithKeys(splitKeys(cfg.Refresh)...),
			key.WithHelp(cfg.Refresh, "refresh"),
		),
		Search: key.NewBinding(
			key.WithKeys(splitKeys(cfg.Search)...),
			key.WithHelp(cfg.Search, "search"),
		),
		ToggleRead: key.NewBinding(
			key.WithKeys(splitKeys(cfg.ToggleRead)...),
			key.WithHelp(cfg.ToggleRead, "read/unread"),
		),
		ToggleFavorite: key.NewBinding(
			key.WithKeys(splitKeys(cfg.ToggleFavorite)...),
			key.WithHelp(cfg.ToggleFavorite, "favorite"),
		),
		CycleSort: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "sort order"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
	}
}

func splitKeys(keys string) []string {
	parts := strings.Split(keys, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		keyName := strings.TrimSpace(part)
		if keyName == "" {
			continue
		}
		out = append(out, keyName)
		switch keyName {
		case "pgdn":
			out = append(out, "pgdown")
		case "pgdown":
			out = append(out, "pgdn")
		}
	}
	return out
}
