package main

import "github.com/charmbracelet/lipgloss"

// Centralized style definitions for terminal output.
var (
	// Report styles.
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")) // cyan
	providerStyle = lipgloss.NewStyle().Bold(true)                                 // bold
	reportStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8"))

	// Outcome styles.
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2")) // green
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1")) // red
	reasonStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("5")) // magenta

	// Spinner / animation styles.
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("5")) // magenta

	// General utility styles.
	dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")) // gray/dim
)
