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

	"github.com/edgeo-scada/uaclient/ua"
)

func TestAckTrackerDrain(t *testing.T) {
	var tr AckTracker
	tr.Record(1, 10)
	tr.Record(1, 11)
	tr.Record(2, 1)
	tr.Record(2, 1)
	assert.Equal(t, 4, tr.Len())

	assert.Equal(t, []ua.SubscriptionAcknowledgement{
		{SubscriptionID: 1, SequenceNumber: 10},
		{SubscriptionID: 1, SequenceNumber: 11},
		{SubscriptionID: 2, SequenceNumber: 1},
		{SubscriptionID: 2, SequenceNumber: 1},
	}, tr.Drain())
	assert.Empty(t, tr.Drain())
	assert.Zero(t, tr.Len())
}
