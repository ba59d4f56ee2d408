package processor

import (
	"sync"
	"sync/atomic"
)

// Flag is a cooperative cancellation signal shared between the presentation
// layer and the coordinator. The zero value is ready to use.
type Flag struct {
	set  atomic.Bool
	init sync.Once
	once sync.Once
	done chan struct{}
}

func (f *Flag) lazyInit() {
	f.init.Do(func() {
		f.done = make(chan struct{})
	})
}

// Cancel raises the flag. Later calls are no-ops.
func (f *Flag) Cancel() {
	f.lazyInit()
	f.set.Store(true)
	f.once.Do(func() {
		close(f.done)
	})
}

// Cancelled reports whether Cancel has been called.
func (f *Flag) Cancelled() bool {
	return f.set.Load()
}

// Done is closed on the first Cancel.
func (f *Flag) Done() <-chan struct{} {
	f.lazyInit()
	return f.done
}
