package flags

import "time"

const (
	DefaultGroupTimeout     = 5 * time.Minute
	DefaultConverterTimeout = 2 * time.Minute
)
