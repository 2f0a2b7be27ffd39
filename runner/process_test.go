//go:build unix

package runner

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engine.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestOSProcessRunnerCapturesOutput(t *testing.T) {
	script := writeScript(t, `echo "dir=$(pwd)"; echo "args=$*"; echo oops >&2; echo '{"total":1}'`)
	dir := t.TempDir()

	res, err := NewOSProcessRunner().Run(context.Background(), Invocation{
		Path: script,
		Args: []string{"-t", "i32"},
		Dir:  dir,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.False(t, res.TimedOut)
	resolved, _ := filepath.EvalSymlinks(dir)
	assert.Contains(t, string(res.Stdout), "args=-t i32")
	assert.Contains(t, string(res.Stdout), resolved)
	assert.Contains(t, string(res.Stdout), `{"total":1}`)
	assert.Equal(t, "oops\n", string(res.Stderr))
}

func TestOSProcessRunnerExitCode(t *testing.T) {
	res, err := NewOSProcessRunner().Run(context.Background(), Invocation{Path: writeScript(t, "exit 3")})
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.False(t, res.TimedOut)
}

func TestOSProcessRunnerTimeout(t *testing.T) {
	r := NewOSProcessRunner()
	r.WaitDelay = 100 * time.Millisecond

	start := time.Now()
	res, err := r.Run(context.Background(), Invocation{
		Path:    writeScript(t, "exec sleep 30"),
		Timeout: 100 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.True(t, res.TimedOut)
	assert.NotEqual(t, 0, res.ExitCode)
	assert.Less(t, time.Since(start), 10*time.Second)
}

// processAlive treats zombies as dead: nobody may reap an orphan promptly.
func processAlive(pid int) bool {
	stat, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "stat"))
	if err == nil {
		fields := strings.Fields(string(stat[strings.LastIndexByte(string(stat), ')')+1:]))
		return len(fields) > 0 && fields[0] != "Z"
	}
	if _, statErr := os.Stat("/proc/self"); statErr == nil {
		return false
	}
	return syscall.Kill(pid, 0) == nil
}

func TestOSProcessRunnerTimeoutKillsSpawnedProcesses(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "helper.pid")
	r := NewOSProcessRunner()
	r.WaitDelay = 100 * time.Millisecond

	res, err := r.Run(context.Background(), Invocation{
		Path:    writeScript(t, "sleep 30 & echo $! > "+pidFile+"; wait"),
		Timeout: 200 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.True(t, res.TimedOut)

	raw, err := os.ReadFile(pidFile)
	require.NoError(t, err)
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return !processAlive(pid) }, 5*time.Second, 10*time.Millisecond,
		"helper %d outlived the engine", pid)
}

func TestOSProcessRunnerParentCancelIsNotTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	res, err := NewOSProcessRunner().Run(ctx, Invocation{Path: writeScript(t, "exec sleep 30"), Timeout: time.Minute})
	require.NoError(t, err)
	assert.False(t, res.TimedOut)
	assert.NotEqual(t, 0, res.ExitCode)
}

func TestOSProcessRunnerStartFailure(t *testing.T) {
	_, err := NewOSProcessRunner().Run(context.Background(), Invocation{Path: filepath.Join(t.TempDir(), "missing")})
	require.Error(t, err)

	_, err = NewOSProcessRunner().Run(context.Background(), Invocation{})
	require.Error(t, err)
}
