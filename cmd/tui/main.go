package main

import (
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/pocketmoney/cmd/tui/internal/view"
	"github.com/MrJamesThe3rd/pocketmoney/internal/client"
	"github.com/MrJamesThe3rd/pocketmoney/internal/config"
)

type model struct {
	client *client.Client
	size   tea.WindowSizeMsg

	currentView View
	active      view.View
}

type View int

const (
	ViewMenu       View = 0
	ViewAccounts   View = 1
	ViewNewAccount View = 2
	ViewAccount    View = 3
	ViewStatement  View = 4
	ViewImport     View = 5
)

func initialModel() model {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	return model{
		client:      client.New(cfg.Client.BaseURL),
		currentView: ViewMenu,
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

// show swaps the active screen and replays the last window size so tables
// pick up the terminal height.
func (m model) show(v View, next view.View) (tea.Model, tea.Cmd) {
	m.currentView = v
	m.active = next

	cmd := next.Init()
	if m.size.Height > 0 {
		size := m.size
		cmd = tea.Batch(cmd, func() tea.Msg { return size })
	}

	return m, cmd
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.size = msg
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

		if m.currentView == ViewMenu {
			switch msg.String() {
			case "q":
				return m, tea.Quit
			case "1":
				return m.show(ViewAccounts, view.NewAccountsModel(m.client))
			case "2":
				return m.show(ViewNewAccount, view.NewCreateAccountModel(m.client))
			}
		}
	case view.BackMsg:
		m.currentView = ViewMenu
		m.active = nil

		return m, nil
	case view.ShowAccountsMsg:
		return m.show(ViewAccounts, view.NewAccountsModel(m.client))
	case view.OpenAccountMsg:
		return m.show(ViewAccount, view.NewAccountModel(m.client, msg.ID))
	case view.OpenStatementMsg:
		return m.show(ViewStatement, view.NewStatementModel(m.client, msg.ID))
	case view.OpenImportMsg:
		return m.show(ViewImport, view.NewImportModel(m.client, msg.ID))
	}

	if m.currentView == ViewMenu || m.active == nil {
		return m, nil
	}

	newModel, cmd := m.active.Update(msg)
	m.active = newModel.(view.View)

	return m, cmd
}

func (m model) View() string {
	if m.currentView == ViewMenu || m.active == nil {
		return lipgloss.NewStyle().Padding(2).Render(
			"Pocket Money TUI\n\n" +
				"1. Accounts\n" +
				"2. New Account\n\n" +
				"q. Quit",
		)
	}

	title := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")).PaddingLeft(1).Render(m.active.Title())

	return title + "\n" + m.active.View()
}

func main() {
	p := tea.NewProgram(initialModel())
	if _, err := p.Run(); err != nil {
		slog.Error("failed to run TUI", "error", err)
		os.Exit(1)
	}
}
