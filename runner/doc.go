// Package runner drives an engine-under-test against a processed corpus.
//
// The main components are:
//   - ProcessRunner: runs one external program and captures exit code and output
//   - Executor: runs the engine once per test group and classifies the outcome
//   - Sweeper: visits every group in name order, sequentially or with a bounded
//     worker pool, and hands results to a single emitter in the same order
//
// Every group runs in a fresh process so that an engine crash, hang or
// corrupted state never leaks into the next group.
package runner
