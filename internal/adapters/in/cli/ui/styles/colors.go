// Package styles provides the terminal styling used by localroute's output.
package styles

import "github.com/charmbracelet/lipgloss"

// Palette.
var (
	Neutral200 = lipgloss.Color("#e5e5e5")
	Neutral500 = lipgloss.Color("#737373")
	Neutral700 = lipgloss.Color("#404040")

	NeonGreen  = lipgloss.Color("#00ff88")
	NeonCyan   = lipgloss.Color("#00ccff")
	NeonRed    = lipgloss.Color("#ff4444")
	NeonYellow = lipgloss.Color("#fbbf24")

	// Semantic colors
	ColorPrimary   = NeonGreen
	ColorSuccess   = NeonGreen
	ColorWarning   = NeonYellow
	ColorError     = NeonRed
	ColorInfo      = NeonCyan
	ColorText      = Neutral200
	ColorTextMuted = Neutral500
	ColorBorder    = Neutral700
	ColorBg        = lipgloss.Color("#000000")
)
