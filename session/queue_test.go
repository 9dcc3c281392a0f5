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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgeo-scada/uaclient/ua"
)

func TestOutboundQueueFIFO(t *testing.T) {
	var q OutboundQueue
	r1 := &ua.ReadRequest{}
	r2 := &ua.WriteRequest{}
	r3 := &ua.PublishRequest{}
	q.Push(r1, false)
	q.Push(r2, false)
	q.Push(r3, true)
	assert.Equal(t, 3, q.Len())

	for _, want := range []struct {
		req   ua.Request
		async bool
	}{{r1, false}, {r2, false}, {r3, true}} {
		p, ok := q.Pop()
		require.True(t, ok)
		assert.Same(t, want.req, p.Request)
		assert.Equal(t, want.async, p.Async)
	}

	_, ok := q.Pop()
	assert.False(t, ok)
	assert.Zero(t, q.Len())
}

func TestOutboundQueueClear(t *testing.T) {
	var q OutboundQueue
	q.Push(&ua.ReadRequest{}, false)
	q.Clear()
	_, ok := q.Pop()
	assert.False(t, ok)
}

func TestOutboundQueueRemove(t *testing.T) {
	var q OutboundQueue
	for i, req := range []ua.Request{&ua.ReadRequest{}, &ua.WriteRequest{}, &ua.ReadRequest{}} {
		req.Header().RequestHandle = uint32(i + 1)
		q.Push(req, false)
	}

	assert.True(t, q.Remove(2))
	assert.False(t, q.Remove(2))
	assert.False(t, q.Remove(99))
	assert.Equal(t, 2, q.Len())

	p, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, uint32(1), p.Handle())
	p, ok = q.Pop()
	require.True(t, ok)
	assert.Equal(t, uint32(3), p.Handle())

	q.Push(&ua.ReadRequest{RequestHeader: ua.RequestHeader{RequestHandle: 7}}, false)
	assert.True(t, q.Remove(7))
	_, ok = q.Pop()
	assert.False(t, ok)
}
