package reporting

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/text"
)

// palette colours report fields. The zero value prints plain text.
type palette struct {
	enabled bool
}

var (
	colorPassed  = text.Colors{text.FgHiGreen}
	colorFailed  = text.Colors{text.FgHiRed}
	colorSkipped = text.Colors{text.FgHiYellow}
	colorFatal   = text.Colors{text.FgRed}
)

func (p palette) paint(c text.Colors, v any) string {
	s := fmt.Sprint(v)
	if !p.enabled {
		return s
	}
	return c.Sprint(s)
}

func (p palette) passed(v any) string  { return p.paint(colorPassed, v) }
func (p palette) failed(v any) string  { return p.paint(colorFailed, v) }
func (p palette) skipped(v any) string { return p.paint(colorSkipped, v) }
func (p palette) fatal(v any) string   { return p.paint(colorFatal, v) }
