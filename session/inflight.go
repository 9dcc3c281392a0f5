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
)

// InFlightEntry describes a request that was written and has no response yet.
type InFlightEntry struct {
	Handle uint32
	Async  bool
	SentAt time.Time
}

// InFlightRegistry tracks transmitted requests by handle. Handles are unique
// within a session, so the handle alone is the key and the dispatch flag is
// part of the value.
type InFlightRegistry struct {
	entries map[uint32]InFlightEntry
}

// NewInFlightRegistry creates an empty registry.
func NewInFlightRegistry() *InFlightRegistry {
	return &InFlightRegistry{entries: make(map[uint32]InFlightEntry)}
}

// Mark records handle as transmitted at sentAt. Marking a handle again
// replaces the previous entry.
func (r *InFlightRegistry) Mark(handle uint32, async bool, sentAt time.Time) {
	r.entries[handle] = InFlightEntry{Handle: handle, Async: async, SentAt: sentAt}
}

// Resolve removes and returns the entry for handle. Resolving an absent
// handle does nothing.
func (r *InFlightRegistry) Resolve(handle uint32) (InFlightEntry, bool) {
	e, ok := r.entries[handle]
	if ok {
		delete(r.entries, handle)
	}
	return e, ok
}

// Lookup returns the entry for handle without removing it.
func (r *InFlightRegistry) Lookup(handle uint32) (InFlightEntry, bool) {
	e, ok := r.entries[handle]
	return e, ok
}

// Len returns the number of requests in flight.
func (r *InFlightRegistry) Len() int {
	return len(r.entries)
}

// Clear forgets every entry.
func (r *InFlightRegistry) Clear() {
	clear(r.entries)
}

// Expired returns the entries sent before the given time, ordered by handle.
// Entries are not removed.
func (r *InFlightRegistry) Expired(before time.Time) []InFlightEntry {
	var out []InFlightEntry
	for _, e := range r.entries {
		if e.SentAt.Before(before) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Handle < out[j].Handle })
	return out
}
