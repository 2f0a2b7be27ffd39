package reporting

import (
	"encoding/json"
	"io"

	"github.com/wasvm/wasm-acceptor/types"
)

var _ Renderer = (*JSONRenderer)(nil)

// JSONRenderer writes one JSON document for the whole run.
type JSONRenderer struct {
	w io.Writer
}

func NewJSONRenderer(w io.Writer) *JSONRenderer {
	return &JSONRenderer{w: w}
}

// GroupSummary is the JSON view of a non-passing group.
type GroupSummary struct {
	Name     string             `json:"name"`
	Status   types.GroupStatus  `json:"status"`
	Reason   string             `json:"reason,omitempty"`
	ExitCode int                `json:"exit_code,omitempty"`
	Report   *types.EngineReport `json:"report,omitempty"`
}

// Document is the JSON report.
type Document struct {
	Groups      int                   `json:"groups"`
	Totals      types.OutcomeCounters `json:"totals"`
	Crashes     []string              `json:"crashes"`
	VMErrors    []string              `json:"vm_errors"`
	Anomalies   []GroupSummary        `json:"anomalies"`
	Regressions []types.Regression    `json:"regressions,omitempty"`
}

// NewDocument builds the JSON view of a tally.
func NewDocument(t *Tally, regressions []types.Regression) Document {
	doc := Document{
		Groups:      t.Groups,
		Totals:      t.Counters,
		Crashes:     append([]string{}, t.Crashes...),
		VMErrors:    append([]string{}, t.VMErrors...),
		Anomalies:   make([]GroupSummary, 0, len(t.Anomalies)),
		Regressions: regressions,
	}
	for _, g := range t.Anomalies {
		s := GroupSummary{Name: g.Group.Name, Status: g.Status, Reason: g.Reason, ExitCode: g.ExitCode}
		if g.Status == types.GroupStatusAnomaly {
			rep := g.Report
			s.Report = &rep
		}
		doc.Anomalies = append(doc.Anomalies, s)
	}
	return doc
}

func (r *JSONRenderer) Group(*types.GroupResult) error { return nil }

func (r *JSONRenderer) Finish(t *Tally, regressions []types.Regression) error {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	return enc.Encode(NewDocument(t, regressions))
}
