package tui

import (
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// confirmModel is a two-option yes/no prompt.
type confirmModel struct {
	prompt    string
	yes       bool
	done      bool
	cancelled bool
}

func (m confirmModel) Init() tea.Cmd {
	return nil
}

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "left", "h", "right", "l", "tab":
		m.yes = !m.yes
	case "y", "Y":
		m.yes = true
		m.done = true
		return m, tea.Quit
	case "n", "N":
		m.yes = false
		m.done = true
		return m, tea.Quit
	case "enter":
		m.done = true
		return m, tea.Quit
	case "esc", "q", "ctrl+c":
		m.cancelled = true
		return m, tea.Quit
	}
	return m, nil
}

func (m confirmModel) View() string {
	faint := lipgloss.NewStyle().Faint(true)
	if m.done || m.cancelled {
		answer := "no"
		if m.done && m.yes {
			answer = "yes"
		}
		return fmt.Sprintf("%s %s\n", m.prompt, faint.Render(answer))
	}

	focused := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4"))
	yes, no := faint.Render("yes"), faint.Render("no")
	if m.yes {
		yes = focused.Render("▸ yes")
	} else {
		no = focused.Render("▸ no")
	}

	var sb strings.Builder
	sb.WriteString(m.prompt)
	sb.WriteString("\n\n  ")
	sb.WriteString(yes)
	sb.WriteString("    ")
	sb.WriteString(no)
	sb.WriteString("\n\n")
	sb.WriteString(faint.Render("  [←→] Change  [Enter] Confirm  [Esc] Cancel"))
	sb.WriteString("\n")
	return sb.String()
}

// RunConfirm shows an interactive yes/no prompt and reports the choice.
// Cancelling the prompt counts as no.
func RunConfirm(w io.Writer, prompt string) (bool, error) {
	p := tea.NewProgram(confirmModel{prompt: prompt, yes: true}, tea.WithOutput(w))
	finalModel, err := p.Run()
	if err != nil {
		return false, err
	}
	m := finalModel.(confirmModel)
	return m.done && m.yes, nil
}
