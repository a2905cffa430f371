package view

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/pocketmoney/internal/client"
)

const downloadTimeout = 2 * time.Minute

type statementState int

const (
	statementStateTimeframe statementState = iota
	statementStateLoading
	statementStateSummary
	statementStatePath
	statementStateDownloading
	statementStateResult
)

type StatementModel struct {
	CommonModel
	client *client.Client
	id     string

	state           statementState
	timeframePicker TimeframePicker
	rng             client.Range

	statement *client.Statement
	form      *huh.Form
	path      *string
	spinner   spinner.Model
	saved     string
	err       error
}

func NewStatementModel(c *client.Client, id string) StatementModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return StatementModel{
		client:          c,
		id:              id,
		state:           statementStateTimeframe,
		timeframePicker: NewTimeframePicker(TimeframeThisWeek),
		path:            new("./statements"),
		spinner:         s,
	}
}

func (m StatementModel) Title() string { return "Statement " + m.id }

func (m StatementModel) ShortHelp() string {
	switch m.state {
	case statementStateSummary:
		return "d: download | Esc: new range"
	case statementStateResult:
		return "Esc: back to account"
	case statementStateLoading, statementStateDownloading:
		return "Working..."
	}

	return "Esc: back | Enter: confirm"
}

func (m StatementModel) Init() tea.Cmd {
	return nil
}

func (m StatementModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if tfMsg, ok := msg.(TimeframeSelectedMsg); ok {
		m.rng = client.Range{Start: tfMsg.Start, End: tfMsg.End}

		m.state = statementStateLoading
		m.err = nil

		return m, tea.Batch(m.spinner.Tick, m.loadStatementCmd(m.rng))
	}

	switch m.state {
	case statementStateTimeframe:
		return m.updateTimeframe(msg)
	case statementStateLoading:
		if result, ok := msg.(statementMsg); ok {
			m.statement = result.statement
			m.err = result.err
			m.state = statementStateSummary

			return m, nil
		}

		return m.updateSpinner(msg)
	case statementStateSummary:
		return m.updateSummary(msg)
	case statementStatePath:
		return m.updatePath(msg)
	case statementStateDownloading:
		if result, ok := msg.(downloadMsg); ok {
			m.saved = result.file
			m.err = result.err
			m.state = statementStateResult

			return m, nil
		}

		return m.updateSpinner(msg)
	case statementStateResult:
		if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEsc {
			return m, openAccount(m.id)
		}
	}

	return m, nil
}

func (m StatementModel) updateTimeframe(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		if keyMsg.Type == tea.KeyEsc && m.timeframePicker.IsSelecting() {
			return m, openAccount(m.id)
		}
	}

	var cmd tea.Cmd
	m.timeframePicker, cmd = m.timeframePicker.Update(msg)

	return m, cmd
}

func (m StatementModel) updateSpinner(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)

	return m, cmd
}

func (m StatementModel) updateSummary(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch keyMsg.String() {
	case "esc":
		m.state = statementStateTimeframe
		m.timeframePicker.Reset()

		return m, nil
	case "d":
		if m.err != nil {
			return m, nil
		}

		m.form = m.buildPathForm()
		m.state = statementStatePath

		return m, m.form.Init()
	}

	return m, nil
}

func (m StatementModel) updatePath(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEsc {
		m.state = statementStateSummary
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	m.state = statementStateDownloading
	m.err = nil

	return m, tea.Batch(m.spinner.Tick, m.downloadCmd(m.rng, *m.path))
}

func (m StatementModel) buildPathForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("path").
				Title("Output Path").
				Description("Directory will be created if it doesn't exist").
				Placeholder("./statements").
				Value(m.path),
		),
	).WithWidth(50).WithShowHelp(false)
}

func (m StatementModel) View() string {
	style := lipgloss.NewStyle().Padding(1)

	switch m.state {
	case statementStateTimeframe:
		return style.Render(m.timeframePicker.View())
	case statementStateLoading:
		return style.Render(fmt.Sprintf("%s Building statement...", m.spinner.View()))
	case statementStateSummary:
		return style.Render(m.viewSummary())
	case statementStatePath:
		return style.Render(m.form.View())
	case statementStateDownloading:
		return style.Render(fmt.Sprintf("%s Downloading statement...", m.spinner.View()))
	case statementStateResult:
		return style.Render(m.viewResult())
	}

	return ""
}

func (m StatementModel) viewSummary() string {
	if m.err != nil {
		return errorStyle(m.err) + "\n\n(Esc to pick another range)"
	}

	st := m.statement
	sym := st.CurrencySymbol

	totals := fmt.Sprintf(
		"Opening: %s | Credits: %s | Debits: %s | Closing: %s",
		FormatMoney(st.Opening, sym),
		FormatMoney(st.Credits, sym),
		FormatMoney(st.Debits, sym),
		activeStyle(FormatMoney(st.Closing, sym)),
	)

	body := st.Summary
	if body == "" {
		body = "No transactions in this range."
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("Statement for %s (from %s)", st.AccountID, st.Source)),
		"",
		totals,
		"",
		body,
		"",
		m.ShortHelp(),
	)
}

func (m StatementModel) viewResult() string {
	if m.err != nil {
		return errorStyle(m.err) + "\n\n(Esc to go back)"
	}

	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("46")).
		Render("Statement saved!")

	return lipgloss.JoinVertical(lipgloss.Left, header, "", m.saved, "", "(Esc to go back)")
}

func errorStyle(err error) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render(fmt.Sprintf("Error: %v", err))
}

// Messages

type statementMsg struct {
	statement *client.Statement
	err       error
}

func (m StatementModel) loadStatementCmd(rng client.Range) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := APICtx()
		defer cancel()

		st, err := m.client.Statement(ctx, m.id, rng)

		return statementMsg{statement: st, err: err}
	}
}

type downloadMsg struct {
	file string
	err  error
}

func (m StatementModel) downloadCmd(rng client.Range, dir string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), downloadTimeout)
		defer cancel()

		file, err := downloadStatement(ctx, m.client, m.id, rng, dir)

		return downloadMsg{file: file, err: err}
	}
}

// downloadStatement writes the archive to a temporary file in dir and moves
// it to the name suggested by the server once complete.
func downloadStatement(ctx context.Context, c *client.Client, id string, rng client.Range, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".statement-*.zip")
	if err != nil {
		return "", fmt.Errorf("creating file: %w", err)
	}
	defer os.Remove(tmp.Name())

	name, err := c.DownloadStatement(ctx, id, rng, tmp)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		return "", err
	}

	dest := filepath.Join(dir, filepath.Base(name))
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", fmt.Errorf("saving statement: %w", err)
	}

	return dest, nil
}
