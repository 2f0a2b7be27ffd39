package corpus

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wasvm/wasm-acceptor/types"
)

// Inventory summarizes the content of one group's manifest.
type Inventory struct {
	Group         types.TestGroup
	Commands      int
	Assertions    int
	Kinds         map[CommandKind]int
	Unknown       map[string]int
	MissingFiles  []string // referenced module artifacts that do not exist
	InvalidValues []string // "line N: reason"
	Err           error    // manifest could not be loaded
}

// OK reports whether the group is fully consistent.
func (inv *Inventory) OK() bool {
	return inv.Err == nil && len(inv.MissingFiles) == 0 && len(inv.InvalidValues) == 0
}

// Inspect loads the group's manifest and checks that every referenced module
// artifact exists and every value literal decodes.
func Inspect(g types.TestGroup) *Inventory {
	inv := &Inventory{
		Group:   g,
		Kinds:   make(map[CommandKind]int),
		Unknown: make(map[string]int),
	}
	if !g.HasManifest() {
		inv.Err = ErrNoManifest
		return inv
	}

	m, err := LoadManifest(g.ManifestPath)
	if err != nil {
		inv.Err = err
		return inv
	}

	seen := make(map[string]bool)
	for _, cmd := range m.Commands {
		inv.Commands++
		if u, ok := cmd.(UnknownCommand); ok {
			inv.Unknown[u.Type]++
			continue
		}
		inv.Kinds[cmd.Kind()]++
		if IsAssertion(cmd) {
			inv.Assertions++
		}

		if file := ModuleFile(cmd); file != "" && !seen[file] {
			seen[file] = true
			if _, err := os.Stat(filepath.Join(g.Dir, file)); errors.Is(err, os.ErrNotExist) {
				inv.MissingFiles = append(inv.MissingFiles, file)
			}
		}
		for _, v := range commandValues(cmd) {
			if err := v.Validate(); err != nil {
				inv.InvalidValues = append(inv.InvalidValues, fmt.Sprintf("line %d: %v", cmd.Line(), err))
			}
		}
	}
	return inv
}

func commandValues(c Command) []Value {
	var action *Action
	var expected []Value
	switch cmd := c.(type) {
	case ActionCommand:
		action, expected = &cmd.Action, cmd.Expected
	case AssertReturnCommand:
		action, expected = &cmd.Action, cmd.Expected
	case AssertTrapCommand:
		action = cmd.Action
	case AssertExhaustionCommand:
		action = &cmd.Action
	}
	var values []Value
	if action != nil {
		values = append(values, action.Args...)
	}
	return append(values, expected...)
}
