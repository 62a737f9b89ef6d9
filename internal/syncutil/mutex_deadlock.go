//go:build deadlock

// Package syncutil provides the mutex types used by the link engine and its
// buffers. This file is compiled when building with -tags=deadlock.
package syncutil

import (
	"time"

	deadlock "github.com/sasha-s/go-deadlock"
)

// No lock in the link is held for more than a frame copy; anything waiting
// this long is stuck.
func init() {
	deadlock.Opts.DeadlockTimeout = 5 * time.Second
}

// Mutex wraps deadlock.Mutex so lock-order violations between the engine
// and buffer locks are reported.
type Mutex struct {
	deadlock.Mutex
}

// RWMutex wraps deadlock.RWMutex. Detection uses it for the detector
// registry and result cache.
type RWMutex struct {
	deadlock.RWMutex
}
