package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"resizer/internal/processor"
)

type SummaryRow struct {
	Label string
	Value string
}

// SummaryRows lays out a run summary for RenderSummary.
func SummaryRows(s processor.Summary) []SummaryRow {
	resized := "Images resized"
	if s.DryRun {
		resized = "Images to resize"
	}
	rows := []SummaryRow{
		{Label: "Images found", Value: fmt.Sprintf("%d", s.Discovered)},
		{Label: "Processed", Value: fmt.Sprintf("%d", s.Completed)},
		{Label: resized, Value: fmt.Sprintf("%d", s.Transformed)},
		{Label: "Skipped", Value: fmt.Sprintf("%d", s.Skipped)},
		{Label: "Failed", Value: fmt.Sprintf("%d", s.Failed)},
	}
	if !s.DryRun {
		rows = append(rows, SummaryRow{Label: "Space saved", Value: FormatBytes(s.BytesSaved)})
	}
	rows = append(rows, SummaryRow{Label: "Elapsed", Value: s.Elapsed.Round(time.Millisecond).String()})
	if s.Cancelled {
		rows = append(rows, SummaryRow{Label: "Status", Value: "cancelled"})
	}
	return rows
}

func RenderSummary(rows []SummaryRow) string {
	labelWidth := 0
	valueWidth := 0
	for _, row := range rows {
		labelWidth = max(labelWidth, len(row.Label))
		valueWidth = max(valueWidth, len(row.Value))
	}

	hline := strings.Repeat("-", labelWidth+valueWidth+3)
	lines := []string{hline}

	for _, row := range rows {
		label := padRight(row.Label, labelWidth)
		value := padRight(row.Value, valueWidth)
		line := fmt.Sprintf("%s | %s", labelStyle.Render(label), valueStyle.Render(value))
		lines = append(lines, line)
	}

	lines = append(lines, hline)
	return strings.Join(lines, "\n")
}

// FormatBytes renders n with a binary unit; negative values keep their sign.
func FormatBytes(n int64) string {
	const unit = 1024
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	if n < unit {
		return fmt.Sprintf("%s%d B", sign, n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%s%.1f %ciB", sign, float64(n)/float64(div), "KMGTPE"[exp])
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

var (
	valueStyle = lipgloss.NewStyle().Foreground(ColorInk).Bold(true)
)
