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

package sink

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgeo-scada/uaclient"
	"github.com/edgeo-scada/uaclient/ua"
)

type recorder struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (r *recorder) Publish(subject string, data []byte) error {
	if r.err != nil {
		return r.err
	}
	r.subjects = append(r.subjects, subject)
	r.payloads = append(r.payloads, data)
	return nil
}

func newTestSink(r *recorder) *NATS {
	return &NATS{pub: r, prefix: "plant1", logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func TestSanitizeSubjectToken(t *testing.T) {
	tests := map[string]string{
		"ns=2;s=Line1.Temp": "ns_2_s_Line1_Temp",
		"i=2258":            "i_2258",
		"s=a b*c>d":         "s_a_b_c_d",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeSubjectToken(in), in)
	}
}

func TestPublishDataChange(t *testing.T) {
	r := &recorder{}
	s := newTestSink(r)

	src := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	v := ua.NewVariant(21.5)
	err := s.Publish("ns=2;s=Line1.Temp", uaclient.DataChangeNotification{
		ClientHandle: 1001,
		Value:        ua.DataValue{Value: &v, SourceTimestamp: src},
	})
	require.NoError(t, err)

	require.Len(t, r.subjects, 1)
	assert.Equal(t, "plant1.data.ns_2_s_Line1_Temp", r.subjects[0])

	var msg map[string]interface{}
	require.NoError(t, json.Unmarshal(r.payloads[0], &msg))
	assert.Equal(t, "ns=2;s=Line1.Temp", msg["node"])
	assert.Equal(t, 1001.0, msg["handle"])
	assert.Equal(t, 21.5, msg["value"])
	assert.Equal(t, ua.StatusGood.String(), msg["status"])
	assert.Equal(t, "2025-05-01T08:00:00Z", msg["source_ts"])
	assert.NotContains(t, msg, "server_ts")
}

func TestPublishError(t *testing.T) {
	r := &recorder{err: errors.New("nats: connection closed")}
	s := newTestSink(r)
	err := s.Publish("i=1", uaclient.DataChangeNotification{})
	assert.ErrorContains(t, err, "plant1.data.i_1")
}

func TestNewDataMessageRendersUATypes(t *testing.T) {
	v := ua.NewVariant(ua.NewNumericNodeID(3, 17))
	msg := NewDataMessage("i=1", uaclient.DataChangeNotification{Value: ua.DataValue{Value: &v}})
	assert.Equal(t, "ns=3;i=17", msg.Value)

	empty := NewDataMessage("i=1", uaclient.DataChangeNotification{})
	assert.Nil(t, empty.Value)
	assert.Empty(t, empty.Type)
}

func TestCloseWithoutConnection(t *testing.T) {
	assert.NoError(t, newTestSink(&recorder{}).Close())
}
