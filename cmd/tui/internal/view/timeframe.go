package view

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

const dateLayout = "2006-01-02"

// TimeframeSelectedMsg carries the chosen range. A nil end is open, so
// "All Time" leaves both unset.
type TimeframeSelectedMsg struct {
	Start *time.Time
	End   *time.Time
}

// TimeframePicker selects a statement range: a predefined timeframe or a
// custom one whose ends may each be left blank.
type TimeframePicker struct {
	custom   bool
	selected Timeframe
	minFrame Timeframe

	inputs [2]textinput.Model
	focus  int

	err error
}

func NewTimeframePicker(minFrame Timeframe) TimeframePicker {
	var inputs [2]textinput.Model

	for i, prompt := range []string{"From: ", "To:   "} {
		in := textinput.New()
		in.Placeholder = "YYYY-MM-DD (blank = open)"
		in.CharLimit = len(dateLayout)
		in.Width = 28
		in.Prompt = prompt
		inputs[i] = in
	}

	return TimeframePicker{
		selected: minFrame,
		minFrame: minFrame,
		inputs:   inputs,
	}
}

func (m TimeframePicker) Init() tea.Cmd {
	return nil
}

func (m TimeframePicker) Update(msg tea.Msg) (TimeframePicker, tea.Cmd) {
	keyMsg, isKey := msg.(tea.KeyMsg)

	switch {
	case isKey && m.custom:
		return m.updateCustom(keyMsg)
	case isKey:
		return m.updateSelect(keyMsg)
	case m.custom:
		var cmd tea.Cmd
		m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)

		return m, cmd
	}

	return m, nil
}

func (m TimeframePicker) updateSelect(msg tea.KeyMsg) (TimeframePicker, tea.Cmd) {
	switch msg.Type {
	case tea.KeyUp:
		if m.selected > m.minFrame {
			m.selected--
		}
	case tea.KeyDown:
		if m.selected < TimeframeCustom {
			m.selected++
		}
	case tea.KeyEnter:
		switch m.selected {
		case TimeframeCustom:
			m.custom = true
			m.focus = 0
			m.inputs[1].Blur()
			cmd := m.inputs[0].Focus()

			return m, cmd
		case TimeframeAll:
			return m, func() tea.Msg { return TimeframeSelectedMsg{} }
		}

		start, end := NormalizeDateRange(TimeframeToDateRange(m.selected, time.Now()))

		return m, func() tea.Msg { return TimeframeSelectedMsg{Start: &start, End: &end} }
	}

	return m, nil
}

func (m TimeframePicker) updateCustom(msg tea.KeyMsg) (TimeframePicker, tea.Cmd) {
	switch msg.String() {
	case "tab", "shift+tab", "up", "down":
		m.inputs[m.focus].Blur()
		m.focus = 1 - m.focus
		cmd := m.inputs[m.focus].Focus()

		return m, cmd

	case "enter":
		start, end, err := parseCustomRange(m.inputs[0].Value(), m.inputs[1].Value())
		if err != nil {
			m.err = err
			return m, nil
		}

		m.err = nil

		return m, func() tea.Msg { return TimeframeSelectedMsg{Start: start, End: end} }

	case "esc":
		m.Reset()
		return m, nil
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)

	return m, cmd
}

// parseCustomRange reads local dates and widens them to whole days.
func parseCustomRange(from, to string) (*time.Time, *time.Time, error) {
	start, err := parseOptionalDate(from)
	if err != nil {
		return nil, nil, errors.New("invalid start date (YYYY-MM-DD)")
	}

	end, err := parseOptionalDate(to)
	if err != nil {
		return nil, nil, errors.New("invalid end date (YYYY-MM-DD)")
	}

	if start != nil && end != nil && end.Before(*start) {
		return nil, nil, errors.New("end date is before start date")
	}

	if start != nil {
		s, _ := NormalizeDateRange(*start, *start)
		start = &s
	}

	if end != nil {
		_, e := NormalizeDateRange(*end, *end)
		end = &e
	}

	return start, end, nil
}

func parseOptionalDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	t, err := time.ParseInLocation(dateLayout, s, time.Local)
	if err != nil {
		return nil, err
	}

	return &t, nil
}

func (m TimeframePicker) View() string {
	errStr := ""
	if m.err != nil {
		errStr = "\n\n" + errorStyle(m.err)
	}

	if m.custom {
		return fmt.Sprintf(
			"Custom Range:\n\n%s\n%s\n\n(Enter to confirm, Tab to switch, Esc to back)%s",
			m.inputs[0].View(),
			m.inputs[1].View(),
			errStr,
		)
	}

	var b strings.Builder

	b.WriteString("Select Timeframe:\n\n")

	for tf := m.minFrame; tf <= TimeframeCustom; tf++ {
		cursor := " "
		if m.selected == tf {
			cursor = ">"
		}

		fmt.Fprintf(&b, "%s %s\n", cursor, tf)
	}

	b.WriteString("\n(Enter to select, Esc to back)")

	return b.String() + errStr
}

// IsSelecting reports whether the picker shows the predefined list rather
// than the custom inputs.
func (m TimeframePicker) IsSelecting() bool {
	return !m.custom
}

func (m *TimeframePicker) Reset() {
	m.custom = false
	m.selected = m.minFrame
	m.err = nil

	for i := range m.inputs {
		m.inputs[i].Blur()
		m.inputs[i].SetValue("")
	}
}
