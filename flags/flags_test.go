package flags

import (
	"testing"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

// TestOptionalFlagsDontSetRequired asserts that all flags deemed optional set
// the Required field to false.
func TestOptionalFlagsDontSetRequired(t *testing.T) {
	for _, flag := range optionalFlags {
		reqFlag, ok := flag.(cli.RequiredFlag)
		require.True(t, ok)
		require.False(t, reqFlag.IsRequired())
	}
}

// TestUniqueFlags asserts that flag names are unique within every command.
func TestUniqueFlags(t *testing.T) {
	for name, list := range map[string][]cli.Flag{
		"run":     Flags,
		"convert": ConvertFlags,
		"inspect": InspectFlags,
		"engine":  EngineFlags,
		"history": HistoryFlags,
	} {
		seen := make(map[string]struct{})
		for _, flag := range list {
			for _, n := range flag.Names() {
				if _, ok := seen[n]; ok {
					t.Errorf("%s: duplicate flag %s", name, n)
				}
				seen[n] = struct{}{}
			}
		}
	}
}

func TestEnvVarFormat(t *testing.T) {
	for _, flag := range Flags {
		flagName := flag.Names()[0]

		t.Run(flagName, func(t *testing.T) {
			envFlagGetter, ok := flag.(interface {
				GetEnvVars() []string
			})
			require.True(t, ok, "must be able to cast the flag to an EnvVar interface")
			envFlags := envFlagGetter.GetEnvVars()
			require.Equal(t, 1, len(envFlags), "flags should have exactly one env var")
			require.Equal(t, opservice.FlagNameToEnvVarName(flagName, EnvVarPrefix), envFlags[0])
		})
	}
}

func TestCheckRequired(t *testing.T) {
	testCases := []struct {
		name        string
		args        []string
		shouldError bool
	}{
		{"engine set", []string{"app", "--engine", "/bin/engine"}, false},
		{"engine missing", []string{"app"}, true},
		{"engine from env", []string{"app"}, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.name == "engine from env" {
				t.Setenv("WASM_ACCEPTOR_ENGINE", "/bin/engine")
			}
			var checkErr error
			app := &cli.App{
				Flags: []cli.Flag{Engine, CorpusRoot},
				Action: func(ctx *cli.Context) error {
					checkErr = CheckRequired(ctx)
					return nil
				},
			}
			require.NoError(t, app.Run(tc.args))
			if tc.shouldError {
				assert.ErrorContains(t, checkErr, "flag engine is required")
			} else {
				assert.NoError(t, checkErr)
			}
		})
	}
}

func TestEngineGroupAlias(t *testing.T) {
	var group string
	app := &cli.App{
		Flags: []cli.Flag{Group},
		Action: func(ctx *cli.Context) error {
			group = ctx.String(Group.Name)
			return nil
		},
	}
	require.NoError(t, app.Run([]string{"app", "-t", "proposals/threads/atomic"}))
	assert.Equal(t, "proposals/threads/atomic", group)
}
