package acceptor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasvm/wasm-acceptor/converter"
	"github.com/wasvm/wasm-acceptor/history"
	"github.com/wasvm/wasm-acceptor/proposals"
	"github.com/wasvm/wasm-acceptor/runner"
	"github.com/wasvm/wasm-acceptor/types"
)

// manifestWriter imitates json-from-wast with an empty command list and
// rejects scripts whose name starts with "bad".
type manifestWriter struct{}

func (manifestWriter) Run(_ context.Context, inv runner.Invocation) (*runner.ProcessResult, error) {
	var script, output string
	for _, a := range inv.Args {
		switch {
		case strings.HasSuffix(a, converter.ScriptExt):
			script = a
		case strings.HasPrefix(a, "--output="):
			output = strings.TrimPrefix(a, "--output=")
		}
	}
	if strings.HasPrefix(filepath.Base(script), "bad") {
		return &runner.ProcessResult{ExitCode: 1, Stderr: []byte("syntax error")}, nil
	}
	manifest := fmt.Sprintf(`{"source_filename":%q,"commands":[{"type":"action","line":1,"action":{"type":"invoke","field":"f","args":[]}}]}`,
		filepath.Base(script))
	return &runner.ProcessResult{}, os.WriteFile(output, []byte(manifest), 0o644)
}

func TestConvertThenInspect(t *testing.T) {
	src := t.TempDir()
	for _, name := range []string{"i32.wast", "bad.wast", "simd_lane.wast"} {
		require.NoError(t, os.WriteFile(filepath.Join(src, name), []byte(";;"), 0o644))
	}
	out := filepath.Join(t.TempDir(), "processed")

	var buf bytes.Buffer
	res, err := Convert(context.Background(), &converter.Config{
		SourceDir:        src,
		OutputDir:        out,
		Proposals:        proposals.Defaults(),
		ExcludedPrefixes: []string{proposals.SIMDPrefix},
		Runner:           manifestWriter{},
		Log:              testLogger(),
	}, &buf, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"i32"}, res.Converted)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "bad", res.Failed[0].Group)
	assert.Contains(t, buf.String(), "bad")

	buf.Reset()
	invs, err := Inspect(out, nil, &buf, testLogger())
	require.NoError(t, err)
	require.Len(t, invs, 1)
	assert.Equal(t, "i32", invs[0].Group.Name)
	assert.True(t, invs[0].OK())
	assert.Contains(t, buf.String(), "digest: "+res.Digest)
}

func TestConvertRuntimeErrors(t *testing.T) {
	_, err := Convert(context.Background(), &converter.Config{Log: testLogger()}, &bytes.Buffer{}, false)
	require.Error(t, err)
	assert.True(t, IsRuntimeError(err))

	_, err = Convert(context.Background(), &converter.Config{
		SourceDir: filepath.Join(t.TempDir(), "missing"),
		OutputDir: t.TempDir(),
		Runner:    manifestWriter{},
		Log:       testLogger(),
	}, &bytes.Buffer{}, false)
	require.Error(t, err)
	assert.True(t, IsRuntimeError(err))
}

func TestInspectMissingCorpus(t *testing.T) {
	_, err := Inspect(filepath.Join(t.TempDir(), "missing"), nil, &bytes.Buffer{}, testLogger())
	require.Error(t, err)
	assert.True(t, IsRuntimeError(err))
}

func TestListHistory(t *testing.T) {
	ctx := context.Background()
	dsn := "sqlite://" + filepath.Join(t.TempDir(), "history.db")
	store, err := history.Open(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, store.RecordRun(ctx, history.Run{
		ID:        "run-a",
		StartedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		Digest:    "feedface",
		Groups:    1,
		Counters:  types.OutcomeCounters{Total: 3, Passed: 3},
	}, nil))
	require.NoError(t, store.Close())

	var buf bytes.Buffer
	require.NoError(t, ListHistory(ctx, dsn, 10, &buf))
	assert.Contains(t, buf.String(), "run-a")
	assert.Contains(t, buf.String(), "feedface")

	err = ListHistory(ctx, "mysql://nope", 10, &buf)
	require.Error(t, err)
	assert.True(t, IsRuntimeError(err))
}
