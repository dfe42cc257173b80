// Package executor provides the execution substrates that run computations
// submitted by taskcache.
package executor

// Executor schedules units of work onto worker goroutines.
//
// Execute must run fn on a goroutine other than the caller's and must not
// block waiting for queue space: taskcache submits work while holding its
// store's lock, and a synchronous executor would deadlock the completion
// write-back. A non-nil error means fn will never run.
type Executor interface {
	Execute(fn func()) error
}

// Async runs every unit of work on its own goroutine and never rejects.
type Async struct{}

func NewAsync() *Async {
	return &Async{}
}

func (a *Async) Execute(fn func()) error {
	go fn()
	return nil
}
