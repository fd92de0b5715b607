package health

import "sync/atomic"

var ready atomic.Bool

func init() {
	ready.Store(true)
}

// SetReady toggles whether the process accepts traffic. Servers flip it off before draining.
func SetReady(v bool) {
	ready.Store(v)
}

// IsReady reports the current readiness flag.
func IsReady() bool {
	return ready.Load()
}
