package domain

import "time"

// Pool defaults applied when configuration leaves a value unset
const (
	DefaultConcurrency = 2
	DefaultQueueSize   = 16
	DefaultJobTimeout  = 45 * time.Minute
)
