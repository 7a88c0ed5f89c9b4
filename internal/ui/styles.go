// Package ui renders CLI output with a shared set of styles.
package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)

	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#04B575"})
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)

	faintStyle  = lipgloss.NewStyle().Faint(true)
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("36"))
)

// Title renders a bold heading.
func Title(s string) string { return titleStyle.Render(s) }

// OK renders success output.
func OK(s string) string { return okStyle.Render(s) }

// Warn renders a warning.
func Warn(s string) string { return warnStyle.Render(s) }

// Err renders an error.
func Err(s string) string { return errStyle.Render(s) }

// Faint renders secondary detail (timestamps, ids).
func Faint(s string) string { return faintStyle.Render(s) }

// Accent highlights an identifier inside normal output.
func Accent(s string) string { return accentStyle.Render(s) }

// SyncBadge renders a record's sync state as a short marker.
func SyncBadge(state string) string {
	switch state {
	case "synced":
		return OK("✓")
	case "pending":
		return warnStyle.Render("…")
	case "error":
		return Err("✗")
	default:
		return Faint("?")
	}
}

// Count renders "<n> <noun>" with plural handling for regular nouns.
func Count(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
