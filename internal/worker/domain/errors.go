package domain

import "errors"

var (
	// ErrPoolSaturated is returned when every worker is busy and the queue is full
	ErrPoolSaturated = errors.New("worker pool is saturated")

	// ErrPoolClosed is returned when submitting to a pool that is shutting down
	ErrPoolClosed = errors.New("worker pool is closed")

	// ErrPoolNotStarted is returned when submitting before Start
	ErrPoolNotStarted = errors.New("worker pool not started")
)
