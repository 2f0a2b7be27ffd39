package reporting

import (
	"github.com/wasvm/wasm-acceptor/types"
)

// Tally is the run aggregate. It is owned by the single goroutine that
// receives group results and is never shared.
type Tally struct {
	Counters  types.OutcomeCounters
	Groups    int
	Crashes   []string
	VMErrors  []string
	Anomalies []*types.GroupResult // every non-passing group, in emission order
}

// Add folds one group result into the aggregate. Crashed and vm_error
// groups only increment their own counter.
func (t *Tally) Add(r *types.GroupResult) {
	t.Groups++
	t.Counters = t.Counters.Add(r.Counters())
	switch r.Status {
	case types.GroupStatusCrashed:
		t.Crashes = append(t.Crashes, r.Group.Name)
	case types.GroupStatusVMError:
		t.VMErrors = append(t.VMErrors, r.Group.Name)
	}
	if r.IsAnomaly() {
		t.Anomalies = append(t.Anomalies, r)
	}
}
