// Copyright 2025 Edgeo SCADA
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

package session

import "math"

// Handle issues 32-bit identifiers. It never returns 0: once the current
// value reaches the wrap boundary the next value is 1.
//
// Handle is not safe for concurrent use; State serializes access.
type Handle struct {
	current uint32
	wrapsOn uint32
}

// NewHandle returns a Handle starting at first that wraps at math.MaxUint32.
func NewHandle(first uint32) *Handle {
	return NewWrappingHandle(first, math.MaxUint32)
}

// NewWrappingHandle returns a Handle starting at first that wraps after
// wrapsOn. A zero wrapsOn means math.MaxUint32.
func NewWrappingHandle(first, wrapsOn uint32) *Handle {
	if wrapsOn == 0 {
		wrapsOn = math.MaxUint32
	}
	return &Handle{current: first, wrapsOn: wrapsOn}
}

// Next advances the handle and returns the new value.
func (h *Handle) Next() uint32 {
	if h.current >= h.wrapsOn {
		h.current = 1
	} else {
		h.current++
	}
	return h.current
}
