package tui

import "github.com/charmbracelet/lipgloss"

// ─── Colors ─────────────────────────────────────────────────────────────────

var (
	colorViolet  = lipgloss.Color("#8B7CF6") // council violet — primary accent
	colorGreen   = lipgloss.Color("78")
	colorYellow  = lipgloss.Color("220")
	colorRed     = lipgloss.Color("196")
	colorMagenta = lipgloss.Color("213")
	colorBlue    = lipgloss.Color("111")
	colorGray    = lipgloss.Color("242")
	colorDimGray = lipgloss.Color("238")
	colorWhite   = lipgloss.Color("255")
)

// ─── Welcome ────────────────────────────────────────────────────────────────

var logoBodyStyle = lipgloss.NewStyle().
	Foreground(colorGray)

var logoAccentStyle = lipgloss.NewStyle().
	Foreground(colorViolet)

var logoTitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorWhite)

var versionStyle = lipgloss.NewStyle().
	Foreground(colorGray)

var welcomeHintStyle = lipgloss.NewStyle().
	Foreground(colorGray).
	Italic(true)

var welcomeInfoLabel = lipgloss.NewStyle().
	Foreground(colorGray)

// ─── Input / Prompt ─────────────────────────────────────────────────────────

var promptSymbol = lipgloss.NewStyle().
	Foreground(colorViolet).
	Bold(true)

// ─── Hint Bar ───────────────────────────────────────────────────────────────

var hintBarStyle = lipgloss.NewStyle().
	Foreground(colorGray)

var hintKeyStyle = lipgloss.NewStyle().
	Foreground(colorGray).
	Bold(true)

// Command menu styles
var cmdNameStyle = lipgloss.NewStyle().
	Foreground(colorViolet)

var cmdDescStyle = lipgloss.NewStyle().
	Foreground(colorGray)

// Selected/highlighted command in the menu
var cmdSelectedNameStyle = lipgloss.NewStyle().
	Foreground(colorViolet).
	Bold(true).
	Reverse(true)

var cmdSelectedDescStyle = lipgloss.NewStyle().
	Foreground(colorWhite).
	Bold(true)

// ─── Output Styles ──────────────────────────────────────────────────────────

var successMsgStyle = lipgloss.NewStyle().
	Foreground(colorGreen)

var errorMsgStyle = lipgloss.NewStyle().
	Foreground(colorRed)

var warnMsgStyle = lipgloss.NewStyle().
	Foreground(colorYellow)

var statusStyle = lipgloss.NewStyle().
	Foreground(colorYellow)

var userPromptStyle = lipgloss.NewStyle().
	Foreground(colorViolet).
	Bold(true)

var stageHeaderStyle = lipgloss.NewStyle().
	Foreground(colorMagenta).
	Bold(true)

var rankingStyle = lipgloss.NewStyle().
	Foreground(colorBlue)

var dimStyle = lipgloss.NewStyle().
	Foreground(colorGray)

var separatorStyle = lipgloss.NewStyle().
	Foreground(colorDimGray)
