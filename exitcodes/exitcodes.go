// Package exitcodes defines the exit codes used by wasm-acceptor.
package exitcodes

// A sweep exits with Success whatever its test outcomes; anomalies are
// reported, not signalled through the exit status.
//
// * Success (0): the harness ran to completion
// * RuntimeErr (2): configuration, corpus or I/O errors, panics and interrupted sweeps
const (
	Success    = 0 // Harness completed
	RuntimeErr = 2 // Runtime errors or interruption
)
