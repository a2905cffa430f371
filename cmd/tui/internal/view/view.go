package view

import (
	tea "github.com/charmbracelet/bubbletea"
)

// View is the interface that all TUI screens implement.
type View interface {
	tea.Model
	Title() string
	ShortHelp() string
}

// CommonModel is embedded by all views.
type CommonModel struct {
	Width  int
	Height int
}

type BackMsg struct{}

func Back() tea.Msg {
	return BackMsg{}
}

// ShowAccountsMsg returns to the account list.
type ShowAccountsMsg struct{}

func ShowAccounts() tea.Msg {
	return ShowAccountsMsg{}
}

// OpenAccountMsg, OpenStatementMsg and OpenImportMsg switch to a screen
// scoped to one account.
type OpenAccountMsg struct{ ID string }

type OpenStatementMsg struct{ ID string }

type OpenImportMsg struct{ ID string }

func openAccount(id string) tea.Cmd {
	return func() tea.Msg { return OpenAccountMsg{ID: id} }
}
