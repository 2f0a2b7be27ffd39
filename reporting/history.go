package reporting

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/wasvm/wasm-acceptor/history"
)

const digestDisplayLen = 12

// WriteHistory prints recorded runs, newest first.
func WriteHistory(w io.Writer, runs []history.Run) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No runs recorded.")
		return err
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{
		"Run", "Started", "Duration", "Corpus", "Groups",
		"Total", "Passed", "Failed", "Skipped", "Failed to load", "VM errors", "Crashes",
	})
	right := []string{"Duration", "Groups", "Total", "Passed", "Failed", "Skipped", "Failed to load", "VM errors", "Crashes"}
	configs := make([]table.ColumnConfig, 0, len(right))
	for _, name := range right {
		configs = append(configs, table.ColumnConfig{Name: name, Align: text.AlignRight})
	}
	tw.SetColumnConfigs(configs)

	for _, r := range runs {
		digest := r.Digest
		if len(digest) > digestDisplayLen {
			digest = digest[:digestDisplayLen]
		}
		c := r.Counters
		tw.AppendRow(table.Row{
			r.ID,
			r.StartedAt.UTC().Format(time.RFC3339),
			r.Duration.Round(time.Millisecond),
			digest,
			r.Groups,
			c.Total, c.Passed, c.Failed, c.Skipped, c.FailedToLoad, c.VMError, c.Crashed,
		})
	}
	tw.Render()
	return nil
}
