// Package cli renders ledger output for the terminal and reads simple answers
// from the user.
package cli

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

var (
	// PrimaryColor is the theme accent.
	PrimaryColor = lipgloss.Color("#FF6B6B")
	// SuccessColor marks completed actions and money in.
	SuccessColor = lipgloss.Color("#4ECDC4")
	// WarningColor marks budgets near their limit.
	WarningColor = lipgloss.Color("#FFE66D")
	// ErrorColor marks failures and money out.
	ErrorColor = lipgloss.Color("#FF6B6B")
	// InfoColor marks neutral notices.
	InfoColor = lipgloss.Color("#95E1D3")
	// SubtleColor dims secondary text.
	SubtleColor = lipgloss.Color("#666666")

	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(PrimaryColor)
	SuccessStyle = lipgloss.NewStyle().Foreground(SuccessColor)
	WarningStyle = lipgloss.NewStyle().Foreground(WarningColor)
	ErrorStyle   = lipgloss.NewStyle().Foreground(ErrorColor)
	InfoStyle    = lipgloss.NewStyle().Foreground(InfoColor)
	SubtleStyle  = lipgloss.NewStyle().Foreground(SubtleColor)
	BoldStyle    = lipgloss.NewStyle().Bold(true)
	PromptStyle  = lipgloss.NewStyle().Bold(true).Foreground(PrimaryColor)

	// BoxStyle frames summaries such as the affordability verdict.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#333")).
			Padding(1, 2)
)

// Icons.
const (
	SuccessIcon = "✓"
	ErrorIcon   = "✗"
	WarningIcon = "!"
	InfoIcon    = "i"
	SpiceIcon   = "🌶️"
)

// FormatSuccess formats a success message with icon.
func FormatSuccess(message string) string {
	return SuccessStyle.Render(SuccessIcon + " " + message)
}

// FormatError formats an error message with icon.
func FormatError(message string) string {
	return ErrorStyle.Render(ErrorIcon + " " + message)
}

// FormatWarning formats a warning message with icon.
func FormatWarning(message string) string {
	return WarningStyle.Render(WarningIcon + " " + message)
}

// FormatInfo formats an info message with icon.
func FormatInfo(message string) string {
	return InfoStyle.Render(InfoIcon + " " + message)
}

// FormatTitle formats a section title.
func FormatTitle(title string) string {
	return TitleStyle.Render(SpiceIcon + " " + title)
}

// FormatPrompt formats a question put to the user.
func FormatPrompt(prompt string) string {
	return PromptStyle.Render(prompt)
}

// RenderBox renders content under a title inside a rounded border.
func RenderBox(title, content string) string {
	return BoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, TitleStyle.Render(title), "", content))
}

// Money renders an amount as dollars, green when positive and red when
// negative.
func Money(d decimal.Decimal) string {
	text := "$" + d.Abs().StringFixed(2)
	switch {
	case d.IsNegative():
		return ErrorStyle.Render("-" + text)
	case d.IsPositive():
		return SuccessStyle.Render(text)
	}
	return text
}

// Verdict colors an affordability answer.
func Verdict(v string) string {
	switch v {
	case "YES":
		return SuccessStyle.Bold(true).Render(v)
	case "NO":
		return ErrorStyle.Bold(true).Render(v)
	}
	return WarningStyle.Bold(true).Render(v)
}

// Bar draws a percentage as a ten-cell meter, colored by how close it is to
// the limit.
func Bar(percent decimal.Decimal, alert bool) string {
	filled := int(percent.Div(decimal.NewFromInt(10)).IntPart())
	filled = max(0, min(filled, 10))
	bar := ""
	for i := range 10 {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}
	switch {
	case percent.GreaterThanOrEqual(decimal.NewFromInt(100)):
		return ErrorStyle.Render(bar)
	case alert:
		return WarningStyle.Render(bar)
	}
	return SuccessStyle.Render(bar)
}
