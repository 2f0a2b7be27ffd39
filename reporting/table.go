package reporting

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/wasvm/wasm-acceptor/types"
)

var _ Renderer = (*TableRenderer)(nil)

// TableRenderer prints a single table of non-passing groups with the totals
// as footer once the sweep is done.
type TableRenderer struct {
	w     io.Writer
	color bool
}

func NewTableRenderer(w io.Writer, color bool) *TableRenderer {
	return &TableRenderer{w: w, color: color}
}

// Group is a no-op: the table is rendered from the tally.
func (r *TableRenderer) Group(*types.GroupResult) error { return nil }

func (r *TableRenderer) Finish(t *Tally, regressions []types.Regression) error {
	tw := table.NewWriter()
	tw.SetOutputMirror(r.w)
	tw.SetTitle(fmt.Sprintf("Conformance Results (%d groups)", t.Groups))
	tw.AppendHeader(table.Row{
		"Group", "Status", "Total", "Passed", "Failed", "Skipped", "Failed to load", "Detail",
	})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Group", WidthMax: 50, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Total", Align: text.AlignRight},
		{Name: "Passed", Align: text.AlignRight},
		{Name: "Failed", Align: text.AlignRight},
		{Name: "Skipped", Align: text.AlignRight},
		{Name: "Failed to load", Align: text.AlignRight},
		{Name: "Detail", WidthMax: 40, WidthMaxEnforcer: text.WrapSoft},
	})

	for _, g := range t.Anomalies {
		if g.Status == types.GroupStatusCrashed || g.Status == types.GroupStatusVMError {
			tw.AppendRow(table.Row{g.Group.Name, string(g.Status), "-", "-", "-", "-", "-", g.Reason})
			continue
		}
		rep := g.Report
		tw.AppendRow(table.Row{g.Group.Name, string(g.Status), rep.Total, rep.Passed, rep.Failed, rep.Skipped, rep.FailedToLoad, ""})
	}
	for _, reg := range regressions {
		tw.AppendRow(table.Row{reg.Group, "regression", "", "", "", "", "", fmt.Sprintf("%s -> %s", reg.Previous, reg.Current)})
	}

	c := t.Counters
	tw.AppendFooter(table.Row{
		"TOTAL",
		fmt.Sprintf("%d vm errors, %d crashes", c.VMError, c.Crashed),
		c.Total, c.Passed, c.Failed, c.Skipped, c.FailedToLoad, "",
	})

	switch {
	case !r.color:
		tw.SetStyle(table.StyleLight)
	case c.Crashed > 0 || c.VMError > 0 || c.Failed > 0 || c.FailedToLoad > 0:
		tw.SetStyle(table.StyleColoredBlackOnRedWhite)
	case c.Skipped > 0:
		tw.SetStyle(table.StyleColoredBlackOnYellowWhite)
	default:
		tw.SetStyle(table.StyleColoredBlackOnGreenWhite)
	}

	tw.Render()
	return nil
}
