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

import "github.com/edgeo-scada/uaclient/ua"

// PendingRequest is a stamped request waiting to be written.
type PendingRequest struct {
	Request ua.Request
	Async   bool
}

// Handle returns the request handle stamped on the request.
func (p PendingRequest) Handle() uint32 {
	return p.Request.Header().RequestHandle
}

// OutboundQueue is a FIFO of requests not yet transmitted.
type OutboundQueue struct {
	items []PendingRequest
}

// Push appends a request to the tail.
func (q *OutboundQueue) Push(req ua.Request, async bool) {
	q.items = append(q.items, PendingRequest{Request: req, Async: async})
}

// Pop removes and returns the oldest request.
func (q *OutboundQueue) Pop() (PendingRequest, bool) {
	if len(q.items) == 0 {
		return PendingRequest{}, false
	}
	p := q.items[0]
	q.items[0] = PendingRequest{}
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return p, true
}

// Remove drops the queued request carrying handle and reports whether it
// was found.
func (q *OutboundQueue) Remove(handle uint32) bool {
	for i, p := range q.items {
		if p.Handle() != handle {
			continue
		}
		q.items = append(q.items[:i], q.items[i+1:]...)
		if len(q.items) == 0 {
			q.items = nil
		}
		return true
	}
	return false
}

// Len returns the number of queued requests.
func (q *OutboundQueue) Len() int {
	return len(q.items)
}

// Clear drops every queued request.
func (q *OutboundQueue) Clear() {
	q.items = nil
}
