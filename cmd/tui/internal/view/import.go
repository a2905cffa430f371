package view

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/pocketmoney/internal/client"
)

const importTimeout = 2 * time.Minute

type importState int

const (
	importStateFilePick importState = iota
	importStatePreviewing
	importStatePreview
	importStateImporting
	importStateResult
)

// ImportModel posts the rows of a CSV log to an account. The file is sent
// as a dry run first so the user can review which rows would fail.
type ImportModel struct {
	CommonModel
	client *client.Client
	id     string

	state      importState
	filePicker filepicker.Model
	path       string
	preview    *client.ImportResult
	table      table.Model

	status string
	err    error
}

func NewImportModel(c *client.Client, id string) ImportModel {
	fp := filepicker.New()
	fp.CurrentDirectory, _ = os.Getwd()
	fp.AllowedTypes = []string{".csv"}
	fp.ShowHidden = false
	fp.DirAllowed = false
	fp.FileAllowed = true
	fp.SetHeight(15)

	return ImportModel{
		client:     c,
		id:         id,
		filePicker: fp,
		table: newTable([]table.Column{
			{Title: "Line", Width: 6},
			{Title: "Amount", Width: 10},
			{Title: "Description", Width: 30},
			{Title: "Result", Width: 30},
		}),
	}
}

func (m ImportModel) Title() string { return "Import into " + m.id }

func (m ImportModel) ShortHelp() string {
	if m.state == importStatePreview {
		return "Enter: import | Esc: pick another file"
	}

	return "Esc: back | Enter: select"
}

func (m ImportModel) Init() tea.Cmd {
	return m.filePicker.Init()
}

func (m ImportModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyEsc {
			return m.handleEsc()
		}

		if m.state == importStatePreview {
			return m.updatePreview(msg)
		}

	case importResultMsg:
		if msg.err != nil {
			m.state = importStateResult
			m.err = msg.err
			m.status = fmt.Sprintf("Error: %v", msg.err)

			return m, nil
		}

		if msg.result.DryRun {
			m.preview = msg.result
			m.state = importStatePreview
			m.refreshTable()

			return m, nil
		}

		m.state = importStateResult
		m.status = fmt.Sprintf("Imported %d rows, %d failed. Balance is now %s.",
			msg.result.Applied, msg.result.Failed, msg.result.Balance.StringFixed(2))

		return m, nil
	}

	if m.state != importStateFilePick {
		return m, nil
	}

	var cmd tea.Cmd
	m.filePicker, cmd = m.filePicker.Update(msg)

	if didSelect, path := m.filePicker.DidSelectFile(msg); didSelect {
		m.path = path
		m.state = importStatePreviewing
		m.status = fmt.Sprintf("Checking %s...", filepath.Base(path))

		return m, m.importCmd(path, true)
	}

	return m, cmd
}

func (m ImportModel) handleEsc() (tea.Model, tea.Cmd) {
	switch m.state {
	case importStatePreview, importStateResult:
		m.state = importStateFilePick
		m.preview = nil
		m.err = nil
		m.status = ""

		return m, nil
	}

	return m, openAccount(m.id)
}

func (m ImportModel) updatePreview(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyEnter {
		m.state = importStateImporting
		m.status = fmt.Sprintf("Importing %s...", filepath.Base(m.path))

		return m, m.importCmd(m.path, false)
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)

	return m, cmd
}

func (m *ImportModel) refreshTable() {
	rows := make([]table.Row, 0, len(m.preview.Rows))
	for _, row := range m.preview.Rows {
		result := "ok"
		if row.Error != "" {
			result = row.Error
		}

		rows = append(rows, table.Row{
			fmt.Sprint(row.Line),
			row.Amount,
			row.Description,
			result,
		})
	}

	m.table.SetRows(rows)
}

func (m ImportModel) View() string {
	switch m.state {
	case importStateFilePick:
		return lipgloss.NewStyle().Padding(1).Render(
			fmt.Sprintf("Select CSV log to import into %s:\n\n%s", m.id, m.filePicker.View()),
		)
	case importStatePreviewing, importStateImporting:
		return lipgloss.NewStyle().Padding(2).Render(m.status)
	case importStatePreview:
		return m.viewPreview()
	case importStateResult:
		return m.viewResult()
	}

	return ""
}

func (m ImportModel) viewPreview() string {
	valid := len(m.preview.Rows) - m.preview.Failed

	header := fmt.Sprintf("%s: %d rows can be imported, %d will be skipped.",
		filepath.Base(m.path), valid, m.preview.Failed)

	tableView := lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		Render(m.table.View())

	return lipgloss.NewStyle().Padding(1).Render(
		lipgloss.JoinVertical(lipgloss.Left, header, "", tableView, "", m.ShortHelp()),
	)
}

func (m ImportModel) viewResult() string {
	style := lipgloss.NewStyle().Padding(2)
	color := lipgloss.Color("46")

	if m.err != nil {
		color = lipgloss.Color("196")
	}

	return style.Render(
		lipgloss.NewStyle().Foreground(color).Render(m.status) +
			"\n\n(Esc to go back)",
	)
}

// Messages

type importResultMsg struct {
	result *client.ImportResult
	err    error
}

func (m ImportModel) importCmd(path string, dryRun bool) tea.Cmd {
	return func() tea.Msg {
		f, err := os.Open(path)
		if err != nil {
			return importResultMsg{err: err}
		}
		defer f.Close()

		ctx, cancel := context.WithTimeout(context.Background(), importTimeout)
		defer cancel()

		result, err := m.client.Import(ctx, m.id, filepath.Base(path), f, dryRun)

		return importResultMsg{result: result, err: err}
	}
}
