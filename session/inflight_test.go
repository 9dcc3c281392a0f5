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

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInFlightResolveIdempotent(t *testing.T) {
	r := NewInFlightRegistry()
	now := time.Now()
	r.Mark(7, true, now)

	e, ok := r.Resolve(7)
	require.True(t, ok)
	assert.Equal(t, InFlightEntry{Handle: 7, Async: true, SentAt: now}, e)

	_, ok = r.Resolve(7)
	assert.False(t, ok)
	_, ok = r.Lookup(7)
	assert.False(t, ok)
	assert.Zero(t, r.Len())
}

func TestInFlightExpired(t *testing.T) {
	r := NewInFlightRegistry()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r.Mark(9, false, base)
	r.Mark(3, true, base.Add(time.Second))
	r.Mark(5, false, base.Add(10*time.Second))

	expired := r.Expired(base.Add(5 * time.Second))
	require.Len(t, expired, 2)
	assert.Equal(t, uint32(3), expired[0].Handle)
	assert.Equal(t, uint32(9), expired[1].Handle)
	assert.Equal(t, 3, r.Len(), "Expired must not remove entries")

	r.Clear()
	assert.Zero(t, r.Len())
}
