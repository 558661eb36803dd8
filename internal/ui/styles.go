package ui

import "github.com/charmbracelet/lipgloss"

// Colors used in the application.
var (
	colorPrimary   = lipgloss.Color("62")  // Purple
	colorSecondary = lipgloss.Color("241") // Gray
	colorMuted     = lipgloss.Color("240") // Darker gray
	colorHighlight = lipgloss.Color("212") // Pink
	colorSuccess   = lipgloss.Color("78")  // Green
	colorWarn      = lipgloss.Color("214") // Orange
	colorUrgent    = lipgloss.Color("196") // Red
)

// SelectedItem style for the currently highlighted item.
var SelectedItem = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("255")).
	Background(colorPrimary).
	Padding(0, 1)

// NormalItem style for unselected items.
var NormalItem = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255")).
	Padding(0, 1)

// DoneItem style for completed or skipped activities.
var DoneItem = lipgloss.NewStyle().
	Foreground(colorSecondary).
	Strikethrough(true).
	Padding(0, 1)

// WhyNowText style for the reason line under a recommendation.
var WhyNowText = lipgloss.NewStyle().
	Foreground(colorSecondary).
	PaddingLeft(4)

// SectionHeader style for pane titles ("Right now", "Inbox").
var SectionHeader = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorHighlight).
	MarginTop(1).
	Padding(0, 1)

// FocusedHeader marks the pane that has the cursor.
var FocusedHeader = SectionHeader.
	Underline(true)

// ModeBadge style for the mode indicator in the header.
var ModeBadge = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255")).
	Background(colorPrimary).
	Bold(true).
	Padding(0, 1).
	MarginRight(1)

// ContextText style for location and weather in the header.
var ContextText = lipgloss.NewStyle().
	Foreground(colorSecondary)

// ScoreBadge style for the score column.
var ScoreBadge = lipgloss.NewStyle().
	Foreground(colorPrimary).
	Background(lipgloss.Color("236")).
	Padding(0, 1).
	MarginRight(1)

// Priority styles for inbox messages.
var (
	PriorityLow    = lipgloss.NewStyle().Foreground(colorMuted)
	PriorityMedium = lipgloss.NewStyle().Foreground(colorSuccess)
	PriorityHigh   = lipgloss.NewStyle().Foreground(colorWarn).Bold(true)
	PriorityUrgent = lipgloss.NewStyle().Foreground(colorUrgent).Bold(true)
)

// StatusBar style for the bottom status bar.
var StatusBar = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255")).
	Background(lipgloss.Color("236")).
	Padding(0, 1)

// StatusBarKey style for key hints in status bar.
var StatusBarKey = lipgloss.NewStyle().
	Foreground(colorHighlight).
	Bold(true)

// StatusBarText style for descriptive text in status bar.
var StatusBarText = lipgloss.NewStyle().
	Foreground(colorSecondary)

// NoticeStyle for transient confirmations.
var NoticeStyle = lipgloss.NewStyle().
	Foreground(colorSuccess).
	Padding(0, 1)

// ErrorStyle for displaying errors.
var ErrorStyle = lipgloss.NewStyle().
	Foreground(colorUrgent).
	Bold(true).
	Padding(0, 1)

// HelpStyle for help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(colorMuted).
	Padding(1, 2)

// PromptBar style for the craving input bar.
var PromptBar = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255")).
	Background(lipgloss.Color("240")).
	Padding(0, 1)

// DebugPanel style for the event overlay.
var DebugPanel = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(colorPrimary).
	Padding(1, 2)

// DebugHeaderStyle style for overlay section titles.
var DebugHeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorHighlight)
