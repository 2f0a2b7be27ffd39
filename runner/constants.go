package runner

import "time"

// Engine execution constants
const (
	// DefaultGroupTimeout bounds a single engine invocation. A group that
	// exceeds it is reported as crashed.
	DefaultGroupTimeout = 5 * time.Minute

	// DefaultGroupFlag precedes the group name on the engine command line.
	DefaultGroupFlag = "-t"

	// DefaultWaitDelay is how long a killed engine gets to close its output
	// pipes before Wait gives up on them.
	DefaultWaitDelay = 5 * time.Second

	// MaxReasonableConcurrency caps the worker pool to avoid resource exhaustion
	MaxReasonableConcurrency = 32
)
