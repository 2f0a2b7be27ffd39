package converter

import (
	"errors"
	"fmt"
	"strings"
)

// Template placeholders. FlagsPlaceholder must be a whole argument; it
// expands to zero or more arguments.
const (
	ScriptPlaceholder = "{script}"
	OutputPlaceholder = "{output}"
	DirPlaceholder    = "{dir}"
	NamePlaceholder   = "{name}"
	FlagsPlaceholder  = "{flags}"
)

// DefaultCommand runs wasm-tools json-from-wast.
var DefaultCommand = []string{
	"wasm-tools", "json-from-wast", ScriptPlaceholder, FlagsPlaceholder,
	"--output=" + OutputPlaceholder, "--wasm-dir=" + DirPlaceholder,
}

// Wast2JSONCommand runs wabt's wast2json, which writes module binaries next
// to the output manifest.
var Wast2JSONCommand = []string{
	"wast2json", FlagsPlaceholder, ScriptPlaceholder, "-o", OutputPlaceholder,
}

// Template is a converter argv with placeholders.
type Template []string

// Validate checks the template names a program and references the script
// and the output manifest.
func (t Template) Validate() error {
	if len(t) == 0 || t[0] == "" {
		return errors.New("converter command is empty")
	}
	joined := strings.Join(t, " ")
	for _, p := range []string{ScriptPlaceholder, OutputPlaceholder} {
		if !strings.Contains(joined, p) {
			return fmt.Errorf("converter command %q does not reference %s", joined, p)
		}
	}
	return nil
}

// Expand substitutes the placeholders for one script.
func (t Template) Expand(script, output, dir, name string, flags []string) (string, []string) {
	r := strings.NewReplacer(
		ScriptPlaceholder, script,
		OutputPlaceholder, output,
		DirPlaceholder, dir,
		NamePlaceholder, name,
	)
	args := make([]string, 0, len(t)+len(flags))
	for _, tok := range t[1:] {
		if tok == FlagsPlaceholder {
			args = append(args, flags...)
			continue
		}
		args = append(args, r.Replace(tok))
	}
	return r.Replace(t[0]), args
}
