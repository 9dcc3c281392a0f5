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

// Package session holds the per-session bookkeeping of a UA client: request
// handle issuance, the outbound request queue, the in-flight registry,
// response correlation and pending subscription acknowledgements.
//
// A State is shared between the goroutine that writes requests to the wire
// and the goroutine that reads responses from it. Every State method runs
// under one lock, so issuing a handle and queueing its request happen as a
// single step with respect to any concurrent drain. No method blocks or
// returns an error: missing data is reported as (zero, false) or an empty
// slice and the caller decides what a timeout means.
package session
