package proposals

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreDisabled(t *testing.T) {
	defaults := Defaults()
	require.NoError(t, defaults.Validate())
	assert.Empty(t, defaults.Enabled())

	p, ok := defaults.Lookup("exception-handling")
	require.True(t, ok)
	assert.Equal(t, "--enable-exceptions", p.ConverterFlag)
}

func TestEnable(t *testing.T) {
	defaults := Defaults()

	set, err := defaults.Enable("threads", " multi-memory ", "")
	require.NoError(t, err)
	enabled := set.Enabled()
	require.Len(t, enabled, 2)
	assert.Equal(t, "multi-memory", enabled[0].Name, "enabled proposals are sorted")
	assert.Equal(t, "threads", enabled[1].Name)
	assert.Empty(t, defaults.Enabled(), "receiver is not modified")

	_, err = defaults.Enable("threads", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}

func TestMergeAndEngineArgs(t *testing.T) {
	set := Defaults().Merge(Set{
		{Name: "multi-memory", ConverterFlag: "--enable-multi-memory", EngineFlag: "--multi-memory --strict", Enabled: true},
		{Name: "stack-switching", ConverterFlag: "--enable-stack-switching"},
	})
	assert.Len(t, set, len(Defaults())+1)
	assert.Equal(t, []string{"--multi-memory", "--strict"}, set.EngineArgs("multi-memory"))
	assert.Nil(t, set.EngineArgs("threads"))
	assert.Nil(t, set.EngineArgs(""))
	assert.Nil(t, set.EngineArgs("unknown"))
}

func TestValidate(t *testing.T) {
	assert.Error(t, Set{{Name: ""}}.Validate())
	assert.Error(t, Set{{Name: "a"}, {Name: "a"}}.Validate())
	assert.Error(t, Set{{Name: "a/b"}}.Validate())
}

func TestExcluded(t *testing.T) {
	prefixes := []string{SIMDPrefix, ""}
	assert.True(t, Excluded("simd_load", prefixes))
	assert.False(t, Excluded("i32", prefixes))
	assert.False(t, Excluded("simd_load", nil))
}

func TestLoadFile(t *testing.T) {
	for _, name := range []string{"harness.yaml", "harness.toml"} {
		t.Run(name, func(t *testing.T) {
			f, err := LoadFile(filepath.Join("testdata", name))
			require.NoError(t, err)

			require.Len(t, f.Proposals, 2)
			assert.Equal(t, Proposal{
				Name:          "multi-memory",
				ConverterFlag: "--enable-multi-memory",
				EngineFlag:    "--multi-memory",
				Enabled:       true,
			}, f.Proposals[0])
			assert.False(t, f.Proposals[1].Enabled)
			assert.Equal(t, []string{SIMDPrefix}, f.ExcludedPrefixes)
			assert.Equal(t, []string{"wast2json", "{script}", "-o", "{output}"}, f.Converter)
			assert.Equal(t, []string{"--quiet"}, f.EngineArgs)
		})
	}
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFile(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)

	json := filepath.Join(dir, "harness.json")
	require.NoError(t, os.WriteFile(json, []byte("{}"), 0o644))
	_, err = LoadFile(json)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported")

	dup := filepath.Join(dir, "dup.yaml")
	require.NoError(t, os.WriteFile(dup, []byte("proposals:\n  - name: gc\n  - name: gc\n"), 0o644))
	_, err = LoadFile(dup)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}
