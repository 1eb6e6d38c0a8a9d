package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).MarginBottom(1)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	buttonStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("25")).
			Padding(0, 2)
	focusedButtonStyle  = buttonStyle.Copy().Background(lipgloss.Color("33")).Underline(true)
	disabledButtonStyle = buttonStyle.Copy().Foreground(lipgloss.Color("245")).Background(lipgloss.Color("238"))

	placeholderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

const leftPanelWidth = 44

func (a *App) resize() {
	a.prompt.SetWidth(leftPanelWidth - 4)
	a.progress.Width = leftPanelWidth - 4
}

func (a *App) View() string {
	if a.width == 0 {
		return "Initializing..."
	}

	left := a.leftPanelView()
	right := a.rightPanelView(max(a.width-leftPanelWidth, 0))
	main := lipgloss.JoinHorizontal(lipgloss.Top, left, right)

	help := helpStyle.Render("tab focus • ←/→ size • ctrl+g generate • ctrl+s save • ctrl+r random prompt • esc quit")
	return lipgloss.JoinVertical(lipgloss.Left, main, help)
}

func (a *App) leftPanelView() string {
	style := lipgloss.NewStyle().
		Width(leftPanelWidth).
		Height(max(a.height-2, 0)).
		Padding(0, 1).
		BorderStyle(lipgloss.NormalBorder()).
		BorderRight(true)

	var b strings.Builder
	b.WriteString(titleStyle.Render("Text to Image Generator"))
	b.WriteString("\n")
	b.WriteString(labelStyle.Render("Enter your prompt:"))
	b.WriteString("\n")
	b.WriteString(a.prompt.View())
	b.WriteString("\n\n")

	b.WriteString(labelStyle.Render("Image Size:"))
	b.WriteString("\n")
	size := fmt.Sprintf("‹ %s ›", a.Size())
	b.WriteString(a.buttonStyle(focusSize, true).Render(size))
	b.WriteString("\n\n")

	b.WriteString(a.buttonStyle(focusGenerate, !a.generating).Render("Generate Image"))
	b.WriteString("\n\n")

	b.WriteString(a.progress.ViewAs(a.percent))
	b.WriteString("\n")
	status := a.status
	if a.generating || a.saving {
		status = a.spinner.View() + " " + status
	}
	b.WriteString(lipgloss.NewStyle().Width(leftPanelWidth - 4).Render(status))

	return style.Render(b.String())
}

func (a *App) rightPanelView(width int) string {
	height := max(a.height-2, 0)
	if a.current == nil {
		return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center,
			placeholderStyle.Render("Image will be displayed here"))
	}

	content := lipgloss.JoinVertical(lipgloss.Center,
		a.current.rendered,
		"",
		a.buttonStyle(focusSave, !a.saving).Render("Save Image"),
	)
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, content)
}

func (a *App) buttonStyle(f focus, enabled bool) lipgloss.Style {
	switch {
	case !enabled:
		return disabledButtonStyle
	case a.focus == f:
		return focusedButtonStyle
	default:
		return buttonStyle
	}
}
