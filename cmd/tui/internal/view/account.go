package view

import (
	"fmt"
	"slices"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/pocketmoney/internal/client"
	"github.com/MrJamesThe3rd/pocketmoney/internal/ledger"
)

type accountState int

const (
	accountStateBrowse accountState = iota
	accountStateAdd
)

// transactionFields is shared with the huh form, which writes through the
// pointers after the model has been copied.
type transactionFields struct {
	amount      string
	description string
	timestamp   string
}

// AccountModel shows one account: its balance, recent history and the
// add-transaction form.
type AccountModel struct {
	CommonModel
	client *client.Client
	id     string

	state   accountState
	account *client.Account
	table   table.Model
	form    *huh.Form
	fields  *transactionFields

	loading bool
	err     error
	status  string
	warning string
}

func NewAccountModel(c *client.Client, id string) AccountModel {
	return AccountModel{
		client: c,
		id:     id,
		table: newTable([]table.Column{
			{Title: "When", Width: 17},
			{Title: "Amount", Width: 12},
			{Title: "Description", Width: 32},
			{Title: "Balance", Width: 12},
		}),
		loading: true,
	}
}

func (m AccountModel) Title() string { return "Account " + m.id }

func (m AccountModel) ShortHelp() string {
	if m.state == accountStateAdd {
		return "Navigate form | Esc: cancel"
	}

	return "Esc: accounts | a: add transaction | l: verify log | s: statement | i: import | r: refresh"
}

func (m AccountModel) Init() tea.Cmd {
	return m.loadAccountCmd()
}

func (m AccountModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadAccountMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}

		m.err = nil
		m.account = msg.account
		m.refreshTable()

		return m, nil

	case addTransactionMsg:
		m.state = accountStateBrowse
		m.form = nil
		m.table.Focus()
		m.warning = ""

		if msg.err != nil {
			m.status = fmt.Sprintf("Error: %v", msg.err)
			return m, m.loadAccountCmd()
		}

		m.status = "New balance: " + FormatMoney(msg.result.NewBalance, m.symbol())
		m.warning = msg.result.Warning

		return m, m.loadAccountCmd()

	case verifyLogMsg:
		switch {
		case msg.err != nil:
			m.status = fmt.Sprintf("Error: %v", msg.err)
		case msg.log.Verified:
			m.status = fmt.Sprintf("CSV log verified: %d rows, balances consistent.", len(msg.log.Rows))
		default:
			m.status = fmt.Sprintf("CSV log has %d rows but does not verify: %s", len(msg.log.Rows), msg.log.Problem)
		}

		return m, nil

	case tea.WindowSizeMsg:
		m.table.SetHeight(msg.Height - 14)
		return m, nil
	}

	switch m.state {
	case accountStateBrowse:
		return m.updateBrowse(msg)
	case accountStateAdd:
		return m.updateAdd(msg)
	}

	return m, nil
}

func (m AccountModel) updateBrowse(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "esc":
			return m, ShowAccounts
		case "r":
			m.loading = true
			return m, m.loadAccountCmd()
		case "a":
			return m.enterAddMode()
		case "l":
			m.status = "Verifying CSV log..."
			return m, m.verifyLogCmd()
		case "s":
			id := m.id
			return m, func() tea.Msg { return OpenStatementMsg{ID: id} }
		case "i":
			id := m.id
			return m, func() tea.Msg { return OpenImportMsg{ID: id} }
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)

	return m, cmd
}

func (m AccountModel) enterAddMode() (tea.Model, tea.Cmd) {
	m.fields = &transactionFields{}

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("amount").
				Title("Amount").
				Description("Negative for spending").
				Placeholder("-3.50").
				Value(&m.fields.amount).
				Validate(func(s string) error {
					_, err := ledger.ParseAmount(s)
					return err
				}),

			huh.NewInput().
				Key("description").
				Title("Description").
				Placeholder("Allowance").
				Value(&m.fields.description),

			huh.NewInput().
				Key("timestamp").
				Title("Timestamp").
				Description("Optional, e.g. 2024-01-15T10:00:00").
				Value(&m.fields.timestamp),
		),
	).WithWidth(45).WithShowHelp(false)

	m.state = accountStateAdd
	m.table.Blur()

	return m, m.form.Init()
}

func (m AccountModel) updateAdd(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEsc {
		m.state = accountStateBrowse
		m.form = nil
		m.table.Focus()

		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	return m, m.addTransactionCmd(client.TransactionParams{
		Amount:      m.fields.amount,
		Description: m.fields.description,
		Timestamp:   m.fields.timestamp,
	})
}

func (m AccountModel) symbol() string {
	if m.account == nil {
		return ""
	}

	return m.account.CurrencySymbol
}

func (m AccountModel) View() string {
	if m.loading && m.account == nil {
		return lipgloss.NewStyle().Padding(2).Render("Loading account...")
	}

	if m.err != nil {
		return lipgloss.NewStyle().Padding(2).Render(fmt.Sprintf("Error: %v\n\n(r to retry, Esc to go back)", m.err))
	}

	acc := m.account

	header := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("%s (%s)", acc.Name, acc.ID)),
		fmt.Sprintf("Balance: %s", activeStyle(FormatMoney(acc.Balance, acc.CurrencySymbol))),
		lipgloss.NewStyle().Faint(true).Render(fmt.Sprintf("Action: %s | Last update: %s", acc.Action, FormatTimestamp(acc.LastUpdate))),
	)

	tableView := lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		Render(m.table.View())

	content := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().PaddingBottom(1).Render(header),
		tableView,
	)

	if m.state == accountStateAdd && m.form != nil {
		panel := lipgloss.NewStyle().
			Padding(1, 2).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Width(48).
			Render("Add Transaction\n\n" + m.form.View())

		content = lipgloss.JoinHorizontal(lipgloss.Top, content, panel)
	}

	if m.warning != "" {
		content = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Render("Warning: "+m.warning) + "\n" + content
	}

	if m.status != "" {
		content = lipgloss.NewStyle().Faint(true).Render(m.status) + "\n" + content
	}

	return lipgloss.NewStyle().Padding(1).Render(content + "\n\n" + m.ShortHelp())
}

func activeStyle(s string) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Render(s)
}

// refreshTable lists the newest record first.
func (m *AccountModel) refreshTable() {
	history := slices.Clone(m.account.RecentHistory)
	slices.Reverse(history)

	rows := make([]table.Row, 0, len(history))
	for _, rec := range history {
		rows = append(rows, table.Row{
			FormatTimestamp(rec.Timestamp),
			FormatSigned(rec.Amount, m.account.CurrencySymbol),
			rec.Description,
			FormatMoney(rec.BalanceAfter, m.account.CurrencySymbol),
		})
	}

	m.table.SetRows(rows)
}

// Messages

type loadAccountMsg struct {
	account *client.Account
	err     error
}

func (m AccountModel) loadAccountCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := APICtx()
		defer cancel()

		acc, err := m.client.GetAccount(ctx, m.id)

		return loadAccountMsg{account: acc, err: err}
	}
}

type addTransactionMsg struct {
	result *client.TransactionResult
	err    error
}

func (m AccountModel) addTransactionCmd(p client.TransactionParams) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := APICtx()
		defer cancel()

		res, err := m.client.AddTransaction(ctx, m.id, p)

		return addTransactionMsg{result: res, err: err}
	}
}

type verifyLogMsg struct {
	log *client.Log
	err error
}

func (m AccountModel) verifyLogCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := APICtx()
		defer cancel()

		l, err := m.client.Log(ctx, m.id)

		return verifyLogMsg{log: l, err: err}
	}
}
