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

// Package sink republishes subscription data changes to NATS.
package sink

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/edgeo-scada/uaclient"
	"github.com/edgeo-scada/uaclient/ua"
)

// DataMessage is the JSON payload published for each data change.
type DataMessage struct {
	Node     string      `json:"node"`
	Handle   uint32      `json:"handle"`
	Value    interface{} `json:"value"`
	Type     string      `json:"type"`
	Status   string      `json:"status"`
	SourceTS *time.Time  `json:"source_ts,omitempty"`
	ServerTS *time.Time  `json:"server_ts,omitempty"`
}

type publisher interface {
	Publish(subject string, data []byte) error
}

// NATS publishes data changes on <prefix>.data.<node>.
type NATS struct {
	nc     *nats.Conn
	pub    publisher
	prefix string
	logger *slog.Logger
}

// NewNATS wraps an established connection.
func NewNATS(nc *nats.Conn, prefix string, logger *slog.Logger) *NATS {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATS{nc: nc, pub: nc, prefix: prefix, logger: logger}
}

// Connect dials the NATS server at url.
func Connect(url, prefix string, logger *slog.Logger) (*NATS, error) {
	if logger == nil {
		logger = slog.Default()
	}
	nc, err := nats.Connect(url,
		nats.Name("uaclient"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", slog.String("error", err.Error()))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("sink: connect %s: %w", url, err)
	}
	logger.Info("nats connected", slog.String("url", nc.ConnectedUrl()))
	return NewNATS(nc, prefix, logger), nil
}

// Subject returns the subject data changes of nodeID are published on.
func (s *NATS) Subject(nodeID string) string {
	return s.prefix + ".data." + SanitizeSubjectToken(nodeID)
}

// Publish sends one data change as JSON.
func (s *NATS) Publish(nodeID string, n uaclient.DataChangeNotification) error {
	data, err := json.Marshal(NewDataMessage(nodeID, n))
	if err != nil {
		return fmt.Errorf("sink: marshal %s: %w", nodeID, err)
	}
	subject := s.Subject(nodeID)
	if err := s.pub.Publish(subject, data); err != nil {
		return fmt.Errorf("sink: publish %s: %w", subject, err)
	}
	s.logger.Debug("published data change", slog.String("subject", subject))
	return nil
}

// Close drains the connection.
func (s *NATS) Close() error {
	if s.nc == nil {
		return nil
	}
	return s.nc.Drain()
}

// NewDataMessage builds the payload for a data change.
func NewDataMessage(nodeID string, n uaclient.DataChangeNotification) DataMessage {
	msg := DataMessage{
		Node:   nodeID,
		Handle: n.ClientHandle,
		Status: n.Value.StatusCode.String(),
	}
	if v := n.Value.Value; v != nil {
		msg.Type = v.Type.String()
		msg.Value = jsonValue(v.Value)
	}
	if ts := n.Value.SourceTimestamp; !ts.IsZero() {
		msg.SourceTS = &ts
	}
	if ts := n.Value.ServerTimestamp; !ts.IsZero() {
		msg.ServerTS = &ts
	}
	return msg
}

// jsonValue renders UA structures that have a text notation as strings.
func jsonValue(v interface{}) interface{} {
	switch x := v.(type) {
	case ua.NodeID:
		return x.String()
	case ua.StatusCode:
		return x.String()
	case ua.LocalizedText:
		return x.Text
	case ua.QualifiedName:
		return x.Name
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = jsonValue(e)
		}
		return out
	}
	return v
}

var subjectReplacer = strings.NewReplacer(
	".", "_", "*", "_", ">", "_",
	" ", "_", "\t", "_", "\n", "_", "\r", "_",
	";", "_", "=", "_",
)

// SanitizeSubjectToken makes s usable as a single NATS subject token.
func SanitizeSubjectToken(s string) string {
	return subjectReplacer.Replace(s)
}
