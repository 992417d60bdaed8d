package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

// Styles holds the lipgloss styles used by commands.
type Styles struct {
	Header1       lipgloss.Style
	Header2       lipgloss.Style
	Bold          lipgloss.Style
	Muted         lipgloss.Style
	Info          lipgloss.Style
	Success       lipgloss.Style
	Warning       lipgloss.Style
	Error         lipgloss.Style
	Code          lipgloss.Style
	StatusSuccess lipgloss.Style
	StatusFailed  lipgloss.Style
}

// NewStyles builds styles bound to a lipgloss renderer, so color output
// follows the renderer's terminal profile.
func NewStyles(r *lipgloss.Renderer) *Styles {
	return &Styles{
		Header1:       r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Header2:       r.NewStyle().Bold(true),
		Bold:          r.NewStyle().Bold(true),
		Muted:         r.NewStyle().Foreground(lipgloss.Color("8")),
		Info:          r.NewStyle().Foreground(lipgloss.Color("6")),
		Success:       r.NewStyle().Foreground(lipgloss.Color("10")),
		Warning:       r.NewStyle().Foreground(lipgloss.Color("11")),
		Error:         r.NewStyle().Foreground(lipgloss.Color("9")),
		Code:          r.NewStyle().Foreground(lipgloss.Color("14")),
		StatusSuccess: r.NewStyle().Foreground(lipgloss.Color("10")).SetString("✓"),
		StatusFailed:  r.NewStyle().Foreground(lipgloss.Color("9")).SetString("✗"),
	}
}

// FormatHeader returns s underlined with '='.
func FormatHeader(s string) string {
	return s + "\n" + strings.Repeat("=", len(s))
}

// FormatKeyValue aligns key to width and appends value.
func FormatKeyValue(key, value string, width int) string {
	return fmt.Sprintf("%-*s %s", width, key+":", value)
}

// FormatCount renders n with thousands separators.
func FormatCount(n int64) string {
	return humanize.Comma(n)
}

// FormatRate renders a rows-per-second figure for n rows over d.
func FormatRate(n int64, d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return humanize.CommafWithDigits(float64(n)/d.Seconds(), 0) + " rows/s"
}

// FormatDuration rounds d for display.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	case d < time.Minute:
		return d.Round(100 * time.Millisecond).String()
	default:
		return d.Round(time.Second).String()
	}
}

// FormatAge renders how long ago t was, e.g. "3 minutes ago".
func FormatAge(t time.Time) string {
	return humanize.Time(t)
}
