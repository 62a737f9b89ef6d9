// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package polling

import "errors"

// TriggerState is the lifecycle state of a Trigger.
type TriggerState int64

const (
	// TriggerStopped means no tick goroutine exists.
	TriggerStopped TriggerState = iota
	// TriggerRunning means the tick goroutine is live.
	TriggerRunning
	// TriggerStopping means Stop gave up waiting and the goroutine has not
	// exited yet.
	TriggerStopping
)

func (s TriggerState) String() string {
	switch s {
	case TriggerStopped:
		return "stopped"
	case TriggerRunning:
		return "running"
	case TriggerStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

var (
	// ErrInvalidConfig is returned for unusable trigger configuration.
	ErrInvalidConfig = errors.New("invalid trigger config")
	// ErrTriggerStopping is returned by Start while a previous run is still
	// winding down.
	ErrTriggerStopping = errors.New("trigger is still stopping")
)
