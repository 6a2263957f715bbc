package tui

import "github.com/charmbracelet/lipgloss"

// Catppuccin Mocha, https://catppuccin.com/palette
const (
	colorPink     lipgloss.Color = "#f5c2e7"
	colorMauve    lipgloss.Color = "#cba6f7"
	colorRed      lipgloss.Color = "#f38ba8"
	colorPeach    lipgloss.Color = "#fab387"
	colorYellow   lipgloss.Color = "#f9e2af"
	colorGreen    lipgloss.Color = "#a6e3a1"
	colorTeal     lipgloss.Color = "#94e2d5"
	colorSapphire lipgloss.Color = "#74c7ec"
	colorBlue     lipgloss.Color = "#89b4fa"
	colorLavender lipgloss.Color = "#b4befe"
	colorOverlay1 lipgloss.Color = "#7f849c"
	colorSurface1 lipgloss.Color = "#45475a"
)

const (
	colorBrand  = colorPink
	colorFocus  = colorLavender
	colorCredit = colorGreen
	colorDebit  = colorRed
	colorMuted  = colorOverlay1
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Underline(true).Foreground(colorBrand)
	chipStyle   = lipgloss.NewStyle().Padding(0, 1).Border(lipgloss.RoundedBorder()).BorderForeground(colorSurface1)
	cursorStyle = lipgloss.NewStyle().Bold(true).Foreground(colorFocus)
	dimStyle    = lipgloss.NewStyle().Foreground(colorMuted)
	creditStyle = lipgloss.NewStyle().Foreground(colorCredit)
	debitStyle  = lipgloss.NewStyle().Foreground(colorDebit)
)

// categoryAccents colours top-level categories in display order.
var categoryAccents = []lipgloss.Color{
	colorGreen, colorTeal, colorPeach, colorBlue,
	colorMauve, colorPink, colorSapphire, colorYellow,
}

func categoryStyle(position int) lipgloss.Style {
	if position < 0 {
		return dimStyle
	}
	return lipgloss.NewStyle().Foreground(categoryAccents[position%len(categoryAccents)])
}
