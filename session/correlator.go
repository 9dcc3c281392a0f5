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
	"sort"
	"time"

	"github.com/edgeo-scada/uaclient/ua"
)

type resolvedResponse struct {
	resp    ua.Response
	async   bool
	arrived time.Time
}

// ResponseCorrelator holds decoded responses until they are claimed, keyed
// by the request handle echoed in their header.
type ResponseCorrelator struct {
	held map[uint32]resolvedResponse
}

// NewResponseCorrelator creates an empty correlator.
func NewResponseCorrelator() *ResponseCorrelator {
	return &ResponseCorrelator{held: make(map[uint32]resolvedResponse)}
}

// Deposit stores resp under its request handle. A response already held for
// the same handle is overwritten and replaced reports true.
func (c *ResponseCorrelator) Deposit(resp ua.Response, async bool, now time.Time) (replaced bool) {
	handle := resp.Header().RequestHandle
	_, replaced = c.held[handle]
	c.held[handle] = resolvedResponse{resp: resp, async: async, arrived: now}
	return replaced
}

// Take removes and returns the response held for handle, whatever its
// dispatch flag.
func (c *ResponseCorrelator) Take(handle uint32) (ua.Response, bool) {
	r, ok := c.held[handle]
	if !ok {
		return nil, false
	}
	delete(c.held, handle)
	return r.resp, true
}

// DrainAsync removes every asynchronous response and returns them in
// ascending handle order. Synchronous responses stay held.
//
// Handle order stands in for send order. After a wraparound a freshly issued
// small handle sorts ahead of an older large one.
func (c *ResponseCorrelator) DrainAsync() []ua.Response {
	var handles []uint32
	for h, r := range c.held {
		if r.async {
			handles = append(handles, h)
		}
	}
	if len(handles) == 0 {
		return nil
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })

	out := make([]ua.Response, 0, len(handles))
	for _, h := range handles {
		out = append(out, c.held[h].resp)
		delete(c.held, h)
	}
	return out
}

// DiscardAll drops every held response and returns how many were dropped.
func (c *ResponseCorrelator) DiscardAll() int {
	n := len(c.held)
	clear(c.held)
	return n
}

// Sweep drops responses that arrived before the given time.
func (c *ResponseCorrelator) Sweep(before time.Time) int {
	n := 0
	for h, r := range c.held {
		if r.arrived.Before(before) {
			delete(c.held, h)
			n++
		}
	}
	return n
}

// Len returns the number of held responses.
func (c *ResponseCorrelator) Len() int {
	return len(c.held)
}
