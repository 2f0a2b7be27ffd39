package corpus

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleManifest = `{
  "source_filename": "i32.wast",
  "commands": [
    {"type": "module", "line": 3, "filename": "i32.0.wasm", "module_type": "binary"},
    {"type": "register", "line": 4, "as": "M"},
    {"type": "assert_return", "line": 5,
     "action": {"type": "invoke", "field": "add", "args": [{"type": "i32", "value": "1"}, {"type": "i32", "value": "2"}]},
     "expected": [{"type": "i32", "value": "3"}]},
    {"type": "assert_trap", "line": 6,
     "action": {"type": "invoke", "field": "div_s", "args": [{"type": "i32", "value": "1"}, {"type": "i32", "value": "0"}]},
     "text": "integer divide by zero"},
    {"type": "assert_trap", "line": 7, "filename": "i32.1.wasm", "text": "out of bounds"},
    {"type": "assert_exhaustion", "line": 8, "action": {"type": "invoke", "field": "runaway"}, "text": "call stack exhausted"},
    {"type": "assert_invalid", "line": 9, "filename": "i32.2.wasm", "module_type": "binary", "text": "type mismatch"},
    {"type": "assert_malformed", "line": 10, "filename": "i32.3.wat", "module_type": "text", "text": "unexpected token"},
    {"type": "assert_unlinkable", "line": 11, "filename": "i32.4.wasm", "text": "unknown import"},
    {"type": "assert_uninstantiable", "line": 12, "filename": "i32.5.wasm", "text": "unreachable"},
    {"type": "action", "line": 13, "action": {"type": "get", "module": "M", "field": "g"}, "expected": []},
    {"type": "assert_suspension", "line": 14}
  ]
}`

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest([]byte(sampleManifest))
	require.NoError(t, err)
	assert.Equal(t, "i32.wast", m.SourceFilename)
	require.Len(t, m.Commands, 12)

	kinds := make([]CommandKind, 0, len(m.Commands))
	for _, c := range m.Commands {
		kinds = append(kinds, c.Kind())
	}
	assert.Equal(t, []CommandKind{
		KindModule, KindRegister, KindAssertReturn, KindAssertTrap, KindAssertTrap,
		KindAssertExhaustion, KindAssertInvalid, KindAssertMalformed, KindAssertUnlinkable,
		KindAssertUninstantiable, KindAction, "assert_suspension",
	}, kinds, "file order must be preserved")

	mod := m.Commands[0].(ModuleCommand)
	assert.Equal(t, "i32.0.wasm", mod.Filename)
	assert.Equal(t, 3, mod.Line())

	ret := m.Commands[2].(AssertReturnCommand)
	assert.Equal(t, ActionInvoke, ret.Action.Type)
	assert.Equal(t, "add", ret.Action.Field)
	require.Len(t, ret.Action.Args, 2)
	require.Len(t, ret.Expected, 1)
	assert.Equal(t, "3", ret.Expected[0].Literal)

	trap := m.Commands[3].(AssertTrapCommand)
	require.NotNil(t, trap.Action)
	assert.Equal(t, "integer divide by zero", trap.Text)

	moduleTrap := m.Commands[4].(AssertTrapCommand)
	assert.Nil(t, moduleTrap.Action)
	assert.Equal(t, "i32.1.wasm", ModuleFile(moduleTrap))

	malformed := m.Commands[7].(AssertMalformedCommand)
	assert.False(t, malformed.IsBinary())
	assert.True(t, m.Commands[8].(AssertUnlinkableCommand).IsBinary(), "missing module_type means binary")

	get := m.Commands[10].(ActionCommand)
	assert.Equal(t, ActionGet, get.Action.Type)
	assert.Equal(t, "M", get.Action.Module)

	_, unknown := m.Commands[11].(UnknownCommand)
	assert.True(t, unknown)
	assert.False(t, IsAssertion(m.Commands[11]))
	assert.True(t, IsAssertion(trap))
	assert.False(t, IsAssertion(mod))
}

func TestParseManifestRejectsIncompleteCommands(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		errMsg   string
	}{
		{"module without filename", `{"commands":[{"type":"module","line":1}]}`, "module without filename"},
		{"register without as", `{"commands":[{"type":"register","line":1}]}`, "register without 'as'"},
		{"assert_return without action", `{"commands":[{"type":"assert_return","line":2}]}`, "assert_return without action"},
		{"assert_trap without target", `{"commands":[{"type":"assert_trap","line":2,"text":"x"}]}`, "assert_trap without action or module"},
		{"bad json", `{"commands":[`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseManifest([]byte(tt.manifest))
			require.Error(t, err)
			if tt.errMsg != "" {
				assert.Contains(t, err.Error(), tt.errMsg)
			}
		})
	}
}

func TestParseManifestToleratesUnknownActionType(t *testing.T) {
	m, err := ParseManifest([]byte(`{"commands":[{"type":"action","line":1,"action":{"type":"resume","field":"f"}}]}`))
	require.NoError(t, err)
	require.Len(t, m.Commands, 1)
	assert.Equal(t, ActionType("resume"), m.Commands[0].(ActionCommand).Action.Type)
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadManifest(filepath.Join(dir, "missing.json"))
	require.ErrorIs(t, err, ErrNoManifest)

	path := filepath.Join(dir, "i32.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleManifest), 0o644))
	m, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Len(t, m.Commands, 12)

	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))
	_, err = LoadManifest(path)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoManifest)
}
