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

// AckTracker accumulates subscription acknowledgements for the next publish
// request. Duplicates are kept; the server handles repeated acks.
type AckTracker struct {
	pending []ua.SubscriptionAcknowledgement
}

// Record appends an acknowledgement.
func (t *AckTracker) Record(subscriptionID, sequenceNumber uint32) {
	t.pending = append(t.pending, ua.SubscriptionAcknowledgement{
		SubscriptionID: subscriptionID,
		SequenceNumber: sequenceNumber,
	})
}

// Drain returns the pending acknowledgements in the order recorded and
// empties the tracker. It returns nil when nothing is pending.
func (t *AckTracker) Drain() []ua.SubscriptionAcknowledgement {
	out := t.pending
	t.pending = nil
	return out
}

// Len returns the number of pending acknowledgements.
func (t *AckTracker) Len() int {
	return len(t.pending)
}
