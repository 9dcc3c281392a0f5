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
	"errors"

	"github.com/edgeo-scada/uaclient/ua"
)

var (
	// ErrTimeout is returned when no response arrived within the request timeout.
	ErrTimeout = errors.New("uaclient: timeout")

	// ErrNotConnected is returned when the client has no open channel.
	ErrNotConnected = errors.New("uaclient: not connected")

	// ErrConnectionClosed is returned after Close.
	ErrConnectionClosed = errors.New("uaclient: connection closed")

	// ErrConnectionLost is returned to calls pending when the channel broke.
	ErrConnectionLost = errors.New("uaclient: connection lost")

	// ErrSessionClosed indicates the session a subscription belonged to is gone.
	ErrSessionClosed = errors.New("uaclient: session closed")

	// ErrInvalidResponse indicates a response of an unexpected type.
	ErrInvalidResponse = errors.New("uaclient: invalid response")

	// ErrMaxRetriesExceeded is reported when reconnecting gave up.
	ErrMaxRetriesExceeded = errors.New("uaclient: max retries exceeded")

	// ErrSubscriptionNotFound indicates an unknown subscription id.
	ErrSubscriptionNotFound = errors.New("uaclient: subscription not found")

	// ErrMessageTooLarge indicates a request above the negotiated message size.
	ErrMessageTooLarge = errors.New("uaclient: message too large")
)

// IsTimeout checks if the error is a timeout error.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || ua.IsStatusCode(err, ua.StatusBadTimeout) ||
		ua.IsStatusCode(err, ua.StatusBadRequestTimeout)
}

// IsNotConnected checks if the error indicates not connected.
func IsNotConnected(err error) bool {
	return errors.Is(err, ErrNotConnected) || errors.Is(err, ErrConnectionLost) ||
		ua.IsStatusCode(err, ua.StatusBadNotConnected)
}

// IsSessionClosed checks if the error indicates session closed.
func IsSessionClosed(err error) bool {
	return errors.Is(err, ErrSessionClosed) || ua.IsStatusCode(err, ua.StatusBadSessionClosed) ||
		ua.IsStatusCode(err, ua.StatusBadSessionIDInvalid)
}
