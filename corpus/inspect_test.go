package corpus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInspect(t *testing.T) {
	root := t.TempDir()
	writeCorpus(t, root, map[string]string{
		"i32/i32.json":   sampleManifest,
		"i32/i32.0.wasm": "",
		"i32/i32.1.wasm": "",
		"i32/i32.2.wasm": "",
		"i32/i32.3.wat":  "",
		"i32/i32.4.wasm": "",
	})

	inv := Inspect(NewGroup(root, "i32"))
	require.NoError(t, inv.Err)
	assert.Equal(t, 12, inv.Commands)
	assert.Equal(t, 8, inv.Assertions)
	assert.Equal(t, 2, inv.Kinds[KindAssertTrap])
	assert.Equal(t, 1, inv.Kinds[KindModule])
	assert.Equal(t, map[string]int{"assert_suspension": 1}, inv.Unknown)
	assert.Equal(t, []string{"i32.5.wasm"}, inv.MissingFiles)
	assert.Empty(t, inv.InvalidValues)
	assert.False(t, inv.OK())
}

func TestInspectInvalidValues(t *testing.T) {
	root := t.TempDir()
	writeCorpus(t, root, map[string]string{
		"bad/bad.json": `{"commands":[
			{"type":"assert_return","line":4,"action":{"type":"invoke","field":"f","args":[{"type":"i32","value":"x"}]},"expected":[{"type":"f32","value":"nan:canonical"}]},
			{"type":"assert_return","line":5,"action":{"type":"invoke","field":"g"},"expected":[{"type":"exnref","value":"1"}]}
		]}`,
	})

	inv := Inspect(NewGroup(root, "bad"))
	require.NoError(t, inv.Err)
	require.Len(t, inv.InvalidValues, 2)
	assert.Contains(t, inv.InvalidValues[0], "line 4")
	assert.Contains(t, inv.InvalidValues[1], "line 5")
	assert.False(t, inv.OK())
}

func TestInspectWithoutManifest(t *testing.T) {
	root := t.TempDir()
	writeCorpus(t, root, map[string]string{"empty/": ""})

	inv := Inspect(NewGroup(root, "empty"))
	assert.ErrorIs(t, inv.Err, ErrNoManifest)
	assert.False(t, inv.OK())
}
