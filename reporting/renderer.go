package reporting

import (
	"fmt"
	"io"

	"github.com/wasvm/wasm-acceptor/types"
)

// Report formats
const (
	FormatText  = "text"
	FormatTable = "table"
	FormatJSON  = "json"
)

// Formats lists the accepted --format values.
var Formats = []string{FormatText, FormatTable, FormatJSON}

// Renderer turns a stream of group results into a report. Group is called
// once per group in name order; Finish once at the end.
type Renderer interface {
	Group(r *types.GroupResult) error
	Finish(t *Tally, regressions []types.Regression) error
}

// NewRenderer returns the renderer for format.
func NewRenderer(format string, w io.Writer, color bool) (Renderer, error) {
	switch format {
	case "", FormatText:
		return NewConsole(w, color), nil
	case FormatTable:
		return NewTableRenderer(w, color), nil
	case FormatJSON:
		return NewJSONRenderer(w), nil
	default:
		return nil, fmt.Errorf("unknown report format %q (want one of %v)", format, Formats)
	}
}
