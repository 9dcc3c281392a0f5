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

package uaclient

import (
	"time"

	"github.com/edgeo-scada/uaclient/ua"
)

// ConnectionState represents the state of a client connection.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateSecureChannelOpen
	StateSessionActive
	StateReconnecting
)

// String returns the string representation of the connection state.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateSecureChannelOpen:
		return "secure_channel_open"
	case StateSessionActive:
		return "session_active"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// DataChangeNotification is one value change delivered by a subscription.
type DataChangeNotification struct {
	SubscriptionID uint32
	ClientHandle   uint32
	NodeID         ua.NodeID
	Value          ua.DataValue
	PublishTime    time.Time
	SequenceNumber uint32
}

// MonitoredItem is a monitored item created by CreateMonitoredItems.
// StatusCode is bad when the server refused the item.
type MonitoredItem struct {
	ClientHandle            uint32
	MonitoredItemID         uint32
	NodeID                  ua.NodeID
	AttributeID             ua.AttributeID
	StatusCode              ua.StatusCode
	RevisedSamplingInterval float64
	RevisedQueueSize        uint32
}
