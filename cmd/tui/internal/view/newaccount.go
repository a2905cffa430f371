package view

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/pocketmoney/internal/client"
	"github.com/MrJamesThe3rd/pocketmoney/internal/ledger"
)

type newAccountState int

const (
	newAccountStateForm newAccountState = iota
	newAccountStateSaving
	newAccountStateResult
)

type accountFields struct {
	name           string
	id             string
	currencySymbol string
	initialBalance string
	maxHistory     string
	csvLogging     bool
}

type CreateAccountModel struct {
	CommonModel
	client *client.Client

	state   newAccountState
	form    *huh.Form
	fields  *accountFields
	account *client.Account
	err     error
}

func NewCreateAccountModel(c *client.Client) CreateAccountModel {
	m := CreateAccountModel{
		client: c,
		fields: &accountFields{currencySymbol: "$", initialBalance: "0.00"},
	}
	m.form = m.buildForm()

	return m
}

func (m CreateAccountModel) Title() string { return "New Account" }

func (m CreateAccountModel) ShortHelp() string {
	if m.state == newAccountStateResult {
		return "Enter: open account | Esc: back to menu"
	}

	return "Navigate form | Esc: cancel"
}

func (m CreateAccountModel) Init() tea.Cmd {
	return m.form.Init()
}

func (m CreateAccountModel) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("name").
				Title("Name").
				Placeholder("Alice").
				Value(&m.fields.name).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("name cannot be empty")
					}
					return nil
				}),

			huh.NewInput().
				Key("account_id").
				Title("Account ID").
				Description("Leave empty to derive it from the name").
				Value(&m.fields.id),

			huh.NewInput().
				Key("currency_symbol").
				Title("Currency Symbol").
				Value(&m.fields.currencySymbol),

			huh.NewInput().
				Key("initial_balance").
				Title("Initial Balance").
				Value(&m.fields.initialBalance).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return nil
					}
					_, err := ledger.ParseAmount(s)
					return err
				}),

			huh.NewInput().
				Key("max_history").
				Title("History Size").
				Description(fmt.Sprintf("Records kept in memory, default %d", ledger.DefaultMaxHistory)).
				Value(&m.fields.maxHistory).
				Validate(func(s string) error {
					_, err := parseMaxHistory(s)
					return err
				}),

			huh.NewConfirm().
				Key("csv_logging").
				Title("Keep a CSV log?").
				Value(&m.fields.csvLogging),
		),
	).WithWidth(50).WithShowHelp(false)
}

func parseMaxHistory(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("history size must be a positive number")
	}

	return n, nil
}

func (m CreateAccountModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m.state {
	case newAccountStateForm:
		return m.updateForm(msg)
	case newAccountStateSaving:
		if result, ok := msg.(createAccountMsg); ok {
			m.state = newAccountStateResult
			m.account = result.account
			m.err = result.err
		}

		return m, nil
	case newAccountStateResult:
		if keyMsg, ok := msg.(tea.KeyMsg); ok {
			switch keyMsg.Type {
			case tea.KeyEsc:
				return m, Back
			case tea.KeyEnter:
				if m.account != nil {
					return m, openAccount(m.account.ID)
				}
			}
		}
	}

	return m, nil
}

func (m CreateAccountModel) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEsc {
		return m, Back
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	maxHistory, _ := parseMaxHistory(m.fields.maxHistory)

	m.state = newAccountStateSaving

	return m, m.createCmd(client.CreateAccountParams{
		ID:             strings.TrimSpace(m.fields.id),
		Name:           strings.TrimSpace(m.fields.name),
		CurrencySymbol: strings.TrimSpace(m.fields.currencySymbol),
		InitialBalance: strings.TrimSpace(m.fields.initialBalance),
		MaxHistory:     maxHistory,
		CSVLogging:     m.fields.csvLogging,
	})
}

func (m CreateAccountModel) View() string {
	style := lipgloss.NewStyle().Padding(1)

	switch m.state {
	case newAccountStateForm:
		return style.Render(m.form.View())
	case newAccountStateSaving:
		return style.Render("Creating account...")
	}

	if m.err != nil {
		return style.Render(
			lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render(fmt.Sprintf("Error: %v", m.err)) +
				"\n\n(Esc to go back)",
		)
	}

	return style.Render(
		lipgloss.NewStyle().Foreground(lipgloss.Color("46")).Render(
			fmt.Sprintf("Created %s with %s.", m.account.ID, FormatMoney(m.account.Balance, m.account.CurrencySymbol)),
		) + "\n\n" + m.ShortHelp(),
	)
}

type createAccountMsg struct {
	account *client.Account
	err     error
}

func (m CreateAccountModel) createCmd(p client.CreateAccountParams) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := APICtx()
		defer cancel()

		acc, err := m.client.CreateAccount(ctx, p)

		return createAccountMsg{account: acc, err: err}
	}
}
