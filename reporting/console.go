package reporting

import (
	"fmt"
	"io"
	"strings"

	"github.com/wasvm/wasm-acceptor/types"
)

const (
	nameWidth    = 50
	separatorLen = 43
)

var _ Renderer = (*Console)(nil)

// Console is the default text report: one line per non-passing group as it
// completes, then the totals block.
type Console struct {
	w      io.Writer
	colors palette
}

// NewConsole creates a text report writing to w.
func NewConsole(w io.Writer, color bool) *Console {
	return &Console{w: w, colors: palette{enabled: color}}
}

// Group prints the anomaly line of a group. Passing groups print nothing.
func (c *Console) Group(r *types.GroupResult) error {
	var line string
	switch r.Status {
	case types.GroupStatusPassed:
		return nil
	case types.GroupStatusCrashed:
		msg := "vm crashed"
		if r.Reason == types.CrashReasonTimeout || r.Reason == types.CrashReasonMalformed {
			msg += " (" + r.Reason + ")"
		}
		line = c.colors.fatal(msg)
	case types.GroupStatusVMError:
		line = c.colors.fatal("vm error")
	default:
		rep := r.Report
		line = fmt.Sprintf("%d/%s/%s/%s/%s", rep.Total,
			c.colors.passed(rep.Passed), c.colors.failed(rep.Failed),
			c.colors.skipped(rep.Skipped), c.colors.fatal(rep.FailedToLoad))
	}
	_, err := fmt.Fprintf(c.w, "%-*s %s\n", nameWidth, r.Group.Name, line)
	return err
}

// Finish prints the totals block, the crash list when non-empty and the
// regressions when there are any.
func (c *Console) Finish(t *Tally, regressions []types.Regression) error {
	var b strings.Builder
	b.WriteString(strings.Repeat("-", separatorLen) + "\n")
	row := func(label, value string) {
		fmt.Fprintf(&b, "%-*s %s\n", nameWidth, label, value)
	}
	row("Total:", fmt.Sprint(t.Counters.Total))
	row("Passed:", c.colors.passed(t.Counters.Passed))
	row("Failed:", c.colors.failed(t.Counters.Failed))
	row("Skipped:", c.colors.skipped(t.Counters.Skipped))
	row("Failed to load:", c.colors.fatal(t.Counters.FailedToLoad))
	row("VM errors:", c.colors.fatal(t.Counters.VMError))
	if len(t.Crashes) > 0 {
		b.WriteString("Crashes:\n")
		for _, name := range t.Crashes {
			fmt.Fprintf(&b, "- %s\n", name)
		}
	}
	if len(regressions) > 0 {
		b.WriteString("Regressions:\n")
		for _, r := range regressions {
			fmt.Fprintf(&b, "- %s (%s -> %s)\n", r.Group, r.Previous, c.colors.failed(r.Current))
		}
	}
	_, err := io.WriteString(c.w, b.String())
	return err
}
