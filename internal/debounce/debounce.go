// Package debounce collapses bursts of calls into a single delayed one.
package debounce

import (
	"sync"
	"time"
)

// New wraps fn so that each call resets a timer; fn runs once per quiet
// period of d, with the argument of the last call in the burst. The
// wrapper never blocks and discards fn's side of the exchange entirely
// (fire-and-forget). There is no cancel beyond superseding with a new
// call.
func New[T any](d time.Duration, fn func(T)) func(T) {
	var mu sync.Mutex
	var timer *time.Timer

	return func(arg T) {
		mu.Lock()
		defer mu.Unlock()

		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(d, func() {
			fn(arg)
		})
	}
}
