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

	"github.com/edgeo-scada/uaclient/ua"
)

// Version information for the uaclient package.
const (
	// Version is the current version of the uaclient package.
	Version = "0.3.0"

	// VersionMajor is the major version number.
	VersionMajor = 0

	// VersionMinor is the minor version number.
	VersionMinor = 3

	// VersionPatch is the patch version number.
	VersionPatch = 0
)

// VersionInfo describes the library build and the UA TCP protocol version
// it announces in Hello.
type VersionInfo struct {
	Version         string
	Major           int
	Minor           int
	Patch           int
	ProtocolVersion uint32
	SecurityPolicy  string
}

func (v VersionInfo) String() string {
	return fmt.Sprintf("uaclient %s (UA TCP protocol %d, %s)", v.Version, v.ProtocolVersion, v.SecurityPolicy)
}

// GetVersion returns the current version information.
func GetVersion() VersionInfo {
	return VersionInfo{
		Version: Version,
		Major:   VersionMajor,
		Minor:   VersionMinor,
		Patch:   VersionPatch,

		ProtocolVersion: ua.ProtocolVersion,
		SecurityPolicy:  ua.SecurityPolicyNone,
	}
}
