package reporting

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/wasvm/wasm-acceptor/corpus"
)

// WriteInventory prints the inspect table: one row per group, problems in
// the last column, totals in the footer.
func WriteInventory(w io.Writer, invs []*corpus.Inventory, digest string) error {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"Group", "Commands", "Assertions", "Modules", "Unknown", "Problems"})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Group", WidthMax: 50, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Commands", Align: text.AlignRight},
		{Name: "Assertions", Align: text.AlignRight},
		{Name: "Modules", Align: text.AlignRight},
		{Name: "Unknown", Align: text.AlignRight},
		{Name: "Problems", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
	})

	var commands, assertions, modules, unknown, broken int
	for _, inv := range invs {
		u := 0
		for _, n := range inv.Unknown {
			u += n
		}
		problems := ""
		switch {
		case inv.Err != nil:
			problems = inv.Err.Error()
		case len(inv.MissingFiles) > 0:
			problems = fmt.Sprintf("missing %v", inv.MissingFiles)
		case len(inv.InvalidValues) > 0:
			problems = fmt.Sprintf("%d invalid values, first: %s", len(inv.InvalidValues), inv.InvalidValues[0])
		}
		if !inv.OK() {
			broken++
		}
		mods := inv.Kinds[corpus.KindModule]
		tw.AppendRow(table.Row{inv.Group.Name, inv.Commands, inv.Assertions, mods, u, problems})

		commands += inv.Commands
		assertions += inv.Assertions
		modules += mods
		unknown += u
	}
	tw.AppendFooter(table.Row{
		fmt.Sprintf("%d groups", len(invs)), commands, assertions, modules, unknown,
		fmt.Sprintf("%d with problems", broken),
	})
	tw.Render()

	if digest != "" {
		_, err := fmt.Fprintf(w, "Digest: %s\n", digest)
		return err
	}
	return nil
}
