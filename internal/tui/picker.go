package tui

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// ErrPickerAborted is returned when the user quits the method picker
// without choosing.
var ErrPickerAborted = errors.New("no install method selected")

// Method is an install strategy the user can pick interactively.
type Method string

const (
	MethodShell  Method = "shell"
	MethodDocker Method = "docker"
)

type methodItem struct {
	method Method
	desc   string
}

var methodItems = []methodItem{
	{method: MethodShell, desc: "install QQ and NapCat directly on this machine"},
	{method: MethodDocker, desc: "run NapCat in a container (no host changes)"},
}

// pickerModel is the interactive install-method chooser shown when neither
// --shell nor --docker was passed.
type pickerModel struct {
	cursor  int
	choice  Method
	aborted bool
}

func newPickerModel() pickerModel {
	return pickerModel{}
}

func (m pickerModel) Init() tea.Cmd { return nil }

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch keyMsg.String() {
	case "ctrl+c", "q", "esc":
		m.aborted = true
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(methodItems)-1 {
			m.cursor++
		}

	case "enter":
		m.choice = methodItems[m.cursor].method
		return m, tea.Quit
	}

	return m, nil
}

func (m pickerModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Choose an install method"))
	b.WriteString("\n\n")

	for i, item := range methodItems {
		cursor := "  "
		style := normalItemStyle
		if i == m.cursor {
			cursor = "> "
			style = selectedItemStyle
		}
		b.WriteString(cursor + style.Render(string(item.method)))
		b.WriteString("  " + mutedStyle.Render(item.desc))
		b.WriteString("\n")
	}

	b.WriteString("\n" + mutedStyle.Render("↑/↓ move · enter select · q quit"))
	b.WriteString("\n")
	return b.String()
}

// ChooseMethod runs the picker and blocks until the user selects a method
// or quits.
func ChooseMethod() (Method, error) {
	final, err := tea.NewProgram(newPickerModel()).Run()
	if err != nil {
		return "", fmt.Errorf("running method picker: %w", err)
	}

	m := final.(pickerModel)
	if m.aborted || m.choice == "" {
		return "", ErrPickerAborted
	}
	return m.choice, nil
}
