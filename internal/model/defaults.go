package model

import "time"

// Shared defaults used by the digest CLI, the API server and the TUI.
const (
	DefaultLimit        = 20
	DefaultMetric       = "total-time"
	DefaultFormat       = "table"
	DefaultTimezone     = "+00:00"
	DefaultMaxLineSize  = 16 * 1024 * 1024
	DefaultParallel     = 1
	DefaultQueryTimeout = 30 * time.Second
	DefaultCacheSize    = 4096
)
