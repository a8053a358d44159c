package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorAccent = lipgloss.Color("#20B9B4")
	colorMuted  = lipgloss.Color("#2C4A54")
	colorError  = lipgloss.Color("#E74C3C")

	summaryTitle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	summaryLabel = lipgloss.NewStyle().Width(13).Foreground(colorMuted)
	summaryValue = lipgloss.NewStyle().Bold(true)
	summaryBox   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// WriteSummary prints the timing breakdown of a run. failed switches the
// border color; the numbers are printed either way.
func WriteSummary(w io.Writer, s Stats, failed bool) {
	var b strings.Builder
	b.WriteString(summaryTitle.Render("Timing breakdown"))
	for _, p := range s.Phases {
		b.WriteString("\n")
		b.WriteString(row(p.Name, formatDuration(p.Elapsed)))
	}
	b.WriteString("\n")
	b.WriteString(row("total", formatDuration(s.Total)))
	b.WriteString("\n")
	b.WriteString(row("requests", fmt.Sprintf("%d (%s/s)", s.Requests, rate(float64(s.Requests), s.Total))))
	b.WriteString("\n")
	b.WriteString(row("individuals", fmt.Sprintf("%d (%s/s)", s.Persons, rate(float64(s.Persons), s.Total))))
	b.WriteString("\n")
	b.WriteString(row("families", fmt.Sprintf("%d", s.Families)))

	border := colorAccent
	if failed {
		border = colorError
	}
	fmt.Fprintln(w, summaryBox.BorderForeground(border).Render(b.String()))
}

func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, summaryLabel.Render(label), summaryValue.Render(value))
}

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.2fs", d.Seconds())
}

func rate(n float64, d time.Duration) string {
	if d <= 0 {
		return "0.0"
	}
	return fmt.Sprintf("%.1f", n/d.Seconds())
}
