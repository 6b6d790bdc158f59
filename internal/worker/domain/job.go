package domain

import "context"

// Task is one unit of background work. Run receives a context bounded by the
// pool's job timeout and canceled on forced shutdown.
type Task struct {
	ID  string
	Run func(ctx context.Context)
	// OnPanic, if set, is called with the recovered value when Run panics
	OnPanic func(recovered any)
}
