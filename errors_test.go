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
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/edgeo-scada/uaclient/ua"
)

func TestErrorHelpers(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		timeout      bool
		notConnected bool
		closed       bool
	}{
		{"timeout", fmt.Errorf("Read request 7: %w", ErrTimeout), true, false, false},
		{"server timeout", ua.NewServiceError(ua.ServiceRead, ua.StatusBadTimeout, ""), true, false, false},
		{"not connected", ErrNotConnected, false, true, false},
		{"connection lost", fmt.Errorf("x: %w", ErrConnectionLost), false, true, false},
		{"session closed", ErrSessionClosed, false, false, true},
		{"server session invalid", ua.NewServiceError(ua.ServiceRead, ua.StatusBadSessionIDInvalid, ""), false, false, true},
		{"unrelated", ErrInvalidResponse, false, false, false},
		{"nil", nil, false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.timeout, IsTimeout(tt.err))
			assert.Equal(t, tt.notConnected, IsNotConnected(tt.err))
			assert.Equal(t, tt.closed, IsSessionClosed(tt.err))
		})
	}
}

func TestGetVersion(t *testing.T) {
	v := GetVersion()
	assert.Equal(t, Version, v.Version)
	assert.Equal(t, fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch), v.Version)
	assert.Equal(t, ua.SecurityPolicyNone, v.SecurityPolicy)
	assert.Contains(t, v.String(), Version)
}
