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

package spilink

import (
	"context"
	"fmt"
)

// ProbeTransport exchanges one empty frame over t and validates the reply.
// It is meant for detection and diagnostics on a transport no engine is
// using. The reply's status is returned on success.
func ProbeTransport(ctx context.Context, t Transport) (FrameStatus, error) {
	tx, err := EncodeFrame(nil, StatusRxUnable)
	if err != nil {
		return StatusRxUnable, err
	}
	rx := make([]byte, FrameSize)

	done := make(chan error, 1)
	if err := t.Exchange(tx, rx, func(err error) { done <- err }); err != nil {
		return StatusRxUnable, fmt.Errorf("%w: %w", ErrSubmitFailed, err)
	}

	select {
	case err := <-done:
		if err != nil {
			return StatusRxUnable, err
		}
	case <-ctx.Done():
		// rx stays owned by the transport until done runs; it is not reused.
		return StatusRxUnable, fmt.Errorf("probe: %w", ctx.Err())
	}

	_, status, err := DecodeFrame(rx)
	if err != nil {
		return StatusRxUnable, fmt.Errorf("probe reply: %w", err)
	}
	return status, nil
}
