package tui

import (
	"github.com/charmbracelet/lipgloss"

	"planline/internal/domain"
)

// Theme defines the color palette for the ticket UI. All colors use
// lipgloss ANSI 256-color codes for broad terminal compatibility.
type Theme struct {
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	SelectedBackground lipgloss.Color
	SelectedForeground lipgloss.Color

	PriorityHigh   lipgloss.Color
	PriorityMedium lipgloss.Color
	PriorityLow    lipgloss.Color

	StatusNew        lipgloss.Color
	StatusInProgress lipgloss.Color
	StatusPending    lipgloss.Color
	StatusClosed     lipgloss.Color
	StatusGenerating lipgloss.Color
	StatusFailed     lipgloss.Color

	Blocked lipgloss.Color

	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color
	HelpText         lipgloss.Color

	ToastInfo    lipgloss.Color
	ToastSuccess lipgloss.Color
	ToastError   lipgloss.Color
	ToastFaded   lipgloss.Color
}

// PriorityColor returns the color for a ticket priority. Unknown
// values get NormalText.
func (t Theme) PriorityColor(priority string) lipgloss.Color {
	switch priority {
	case "High":
		return t.PriorityHigh
	case "Medium":
		return t.PriorityMedium
	case "Low":
		return t.PriorityLow
	default:
		return t.NormalText
	}
}

// StatusColor returns the color for a ticket status. Unknown values
// get FaintText.
func (t Theme) StatusColor(status string) lipgloss.Color {
	switch status {
	case domain.StatusNew, domain.StatusDraft:
		return t.StatusNew
	case domain.StatusInProgress:
		return t.StatusInProgress
	case domain.StatusPendingApproval:
		return t.StatusPending
	case domain.StatusClosed:
		return t.StatusClosed
	case domain.StatusGenerating:
		return t.StatusGenerating
	case domain.StatusFailed:
		return t.StatusFailed
	default:
		return t.FaintText
	}
}

// DefaultTheme is the built-in dark-terminal color scheme.
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("245"),

	SelectedBackground: lipgloss.Color("236"),
	SelectedForeground: lipgloss.Color("255"),

	PriorityHigh:   lipgloss.Color("196"), // bright red
	PriorityMedium: lipgloss.Color("208"), // orange
	PriorityLow:    lipgloss.Color("245"), // gray

	StatusNew:        lipgloss.Color("114"), // green
	StatusInProgress: lipgloss.Color("220"), // amber
	StatusPending:    lipgloss.Color("141"), // light purple
	StatusClosed:     lipgloss.Color("245"), // gray
	StatusGenerating: lipgloss.Color("75"),  // blue
	StatusFailed:     lipgloss.Color("196"), // red

	Blocked: lipgloss.Color("196"),

	HeaderForeground: lipgloss.Color("255"),
	BorderColor:      lipgloss.Color("240"),
	HelpText:         lipgloss.Color("241"),

	ToastInfo:    lipgloss.Color("75"),
	ToastSuccess: lipgloss.Color("114"),
	ToastError:   lipgloss.Color("196"),
	ToastFaded:   lipgloss.Color("240"),
}
