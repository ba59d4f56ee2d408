package cmd

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"resizer/internal/codec"
	"resizer/internal/config"
	"resizer/internal/processor"
	"resizer/internal/tui"
)

var scanCmd = &cobra.Command{
	Use:   "scan <folder>",
	Short: "Report which images would be resized without touching them",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		plan := &plannedResizes{}
		summary, err := runBatch(cmd, args[0], true, plan)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		preserve := settings.GetBool(config.KeyPreserve)
		sort.Slice(plan.results, func(i, j int) bool {
			return plan.results[i].Display < plan.results[j].Display
		})
		for _, res := range plan.results {
			fmt.Fprintf(out, "%s\n", scanFileStyle.Render(res.Display))
			fmt.Fprintf(out, "  %s %s\n",
				scanBulletStyle.Render("-"),
				scanValueStyle.Render(fmt.Sprintf("%dpx → %dpx", res.OriginalMaxDim, res.NewMaxDim)),
			)
			fmt.Fprintf(out, "  %s %s\n",
				scanBulletStyle.Render("-"),
				scanDimStyle.Render("writes "+filepath.Base(res.OutputPath)),
			)
			if meta, err := codec.InspectExif(res.Path); err == nil && meta.Tags > 0 {
				verb := "keeps"
				if !preserve {
					verb = "drops"
				}
				fmt.Fprintf(out, "  %s %s\n",
					scanBulletStyle.Render("-"),
					scanMetaStyle.Render(verb+" "+meta.String()),
				)
			}
		}
		if len(plan.results) == 0 && summary.Discovered > 0 {
			fmt.Fprintln(out, scanDimStyle.Render("Nothing to resize."))
		}

		fmt.Fprintln(out, tui.RenderSummary(tui.SummaryRows(summary)))
		return exitFor(summary)
	},
}

// plannedResizes keeps the dry-run outcomes that would write a file.
type plannedResizes struct {
	processor.NopObserver
	results []processor.Result
}

func (p *plannedResizes) OnOutcome(res processor.Result) {
	if res.Kind == processor.KindTransformed {
		p.results = append(p.results, res)
	}
}

var (
	scanFileStyle   = lipgloss.NewStyle().Bold(true).Foreground(tui.ColorAccent)
	scanValueStyle  = lipgloss.NewStyle().Foreground(tui.ColorInk)
	scanMetaStyle   = lipgloss.NewStyle().Foreground(tui.ColorWarn)
	scanDimStyle    = lipgloss.NewStyle().Foreground(tui.ColorDim)
	scanBulletStyle = lipgloss.NewStyle().Foreground(tui.ColorDim)
)

func init() {
	rootCmd.AddCommand(scanCmd)
}
