package reporting

import (
	"fmt"
	"io"
	"strings"

	"github.com/wasvm/wasm-acceptor/converter"
)

// WriteConversion prints the convert report. Conversion failures are their
// own category: they are listed here and never reach the run report.
func WriteConversion(w io.Writer, res *converter.Result, color bool) error {
	p := palette{enabled: color}
	var b strings.Builder
	b.WriteString(strings.Repeat("-", separatorLen) + "\n")
	fmt.Fprintf(&b, "%-*s %s\n", nameWidth, "Converted:", p.passed(len(res.Converted)))
	fmt.Fprintf(&b, "%-*s %s\n", nameWidth, "Filtered:", p.skipped(len(res.Filtered)))
	fmt.Fprintf(&b, "%-*s %s\n", nameWidth, "Conversion failures:", p.failed(len(res.Failed)))
	for _, f := range res.Failed {
		fmt.Fprintf(&b, "- %s: %v\n", f.Group, f.Err)
		if f.Output != "" {
			for _, line := range strings.Split(f.Output, "\n") {
				fmt.Fprintf(&b, "    %s\n", line)
			}
		}
	}
	if res.Digest != "" {
		fmt.Fprintf(&b, "%-*s %s\n", nameWidth, "Digest:", res.Digest)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
