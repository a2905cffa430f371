package view

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/pocketmoney/internal/client"
)

type AccountsModel struct {
	CommonModel
	client *client.Client

	table    table.Model
	accounts []client.Account

	confirmDelete bool
	loading       bool
	err           error
	status        string
}

func newTable(columns []table.Column) table.Model {
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return t
}

func NewAccountsModel(c *client.Client) AccountsModel {
	return AccountsModel{
		client: c,
		table: newTable([]table.Column{
			{Title: "Account", Width: 20},
			{Title: "Name", Width: 24},
			{Title: "Balance", Width: 14},
			{Title: "CSV Log", Width: 8},
			{Title: "Last Update", Width: 17},
		}),
		loading: true,
	}
}

func (m AccountsModel) Title() string { return "Accounts" }

func (m AccountsModel) ShortHelp() string {
	if m.confirmDelete {
		return "y: delete | n: cancel"
	}

	return "Esc: back | Enter: open | d: delete | r: refresh"
}

func (m AccountsModel) Init() tea.Cmd {
	return m.loadAccountsCmd()
}

func (m AccountsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadAccountsMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}

		m.err = nil
		m.accounts = msg.accounts
		m.refreshTable()

		return m, nil

	case deleteAccountMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("Error deleting %s: %v", msg.id, msg.err)
			return m, nil
		}

		m.status = fmt.Sprintf("Deleted %s.", msg.id)

		return m, m.loadAccountsCmd()

	case tea.WindowSizeMsg:
		m.table.SetHeight(msg.Height - 10)
		return m, nil

	case tea.KeyMsg:
		if m.confirmDelete {
			return m.updateConfirm(msg)
		}

		switch msg.String() {
		case "esc":
			return m, Back
		case "r":
			m.loading = true
			return m, m.loadAccountsCmd()
		case "enter":
			if acc, ok := m.selected(); ok {
				return m, openAccount(acc.ID)
			}

			return m, nil
		case "d":
			if _, ok := m.selected(); ok {
				m.confirmDelete = true
			}

			return m, nil
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)

	return m, cmd
}

func (m AccountsModel) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.confirmDelete = false

	acc, ok := m.selected()
	if !ok || !strings.EqualFold(msg.String(), "y") {
		return m, nil
	}

	return m, m.deleteCmd(acc.ID)
}

func (m AccountsModel) selected() (client.Account, bool) {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.accounts) {
		return client.Account{}, false
	}

	return m.accounts[idx], true
}

func (m AccountsModel) View() string {
	if m.loading {
		return lipgloss.NewStyle().Padding(2).Render("Loading accounts...")
	}

	if m.err != nil {
		return lipgloss.NewStyle().Padding(2).Render(fmt.Sprintf("Error: %v\n\n(r to retry, Esc to go back)", m.err))
	}

	if len(m.accounts) == 0 {
		return lipgloss.NewStyle().Padding(2).Render("No accounts yet. Create one from the menu.\n\n(Esc to go back)")
	}

	content := lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		Render(m.table.View())

	if m.confirmDelete {
		acc, _ := m.selected()
		content += "\n" + lipgloss.NewStyle().Foreground(lipgloss.Color("196")).
			Render(fmt.Sprintf("Delete %s? Its CSV log is kept. (y/n)", acc.ID))
	}

	if m.status != "" {
		content = lipgloss.NewStyle().Faint(true).Render(m.status) + "\n" + content
	}

	return lipgloss.NewStyle().Padding(1).Render(content + "\n\n" + m.ShortHelp())
}

func (m *AccountsModel) refreshTable() {
	rows := make([]table.Row, 0, len(m.accounts))
	for _, acc := range m.accounts {
		csv := "off"
		if acc.CSVLogging {
			csv = "on"
		}

		rows = append(rows, table.Row{
			acc.ID,
			acc.Name,
			FormatMoney(acc.Balance, acc.CurrencySymbol),
			csv,
			FormatTimestamp(acc.LastUpdate),
		})
	}

	m.table.SetRows(rows)
}

// Messages

type loadAccountsMsg struct {
	accounts []client.Account
	err      error
}

func (m AccountsModel) loadAccountsCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := APICtx()
		defer cancel()

		accounts, err := m.client.ListAccounts(ctx)

		return loadAccountsMsg{accounts: accounts, err: err}
	}
}

type deleteAccountMsg struct {
	id  string
	err error
}

func (m AccountsModel) deleteCmd(id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := APICtx()
		defer cancel()

		return deleteAccountMsg{id: id, err: m.client.DeleteAccount(ctx, id)}
	}
}
