package main

import "github.com/charmbracelet/lipgloss"

var (
	Red    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F25C54"))
	Green  = lipgloss.NewStyle().Foreground(lipgloss.Color("#43BF6D"))
	Yellow = lipgloss.NewStyle().Foreground(lipgloss.Color("#F2C14E"))
	Info   = lipgloss.NewStyle().Foreground(lipgloss.Color("#5EA3F2")).Bold(true)
	Muted  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8A8A8A"))

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#5EA3F2")).
			Padding(0, 1)
)
