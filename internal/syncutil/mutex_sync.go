//go:build !deadlock

// Package syncutil provides the mutex types used by the link engine and its
// buffers. Plain sync primitives are used by default; build with
// -tags=deadlock to route every lock through github.com/sasha-s/go-deadlock
// and catch lock-order inversions between the tick, completion and client paths.
package syncutil

import "sync"

// Mutex wraps sync.Mutex. Build with -tags=deadlock for deadlock detection.
//
//nolint:gocritic // Intentionally embedding sync.Mutex to expose its interface
type Mutex struct {
	sync.Mutex
}

// RWMutex wraps sync.RWMutex. Build with -tags=deadlock for deadlock detection.
//
//nolint:gocritic // Intentionally embedding sync.RWMutex to expose its interface
type RWMutex struct {
	sync.RWMutex
}
