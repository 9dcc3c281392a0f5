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


package ua

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallRoundTrip(t *testing.T) {
	in := &CallRequest{
		RequestHeader: RequestHeader{RequestHandle: 9},
		MethodsToCall: []CallMethodRequest{{
			ObjectID:       MustParseNodeID("ns=2;s=Pump1"),
			MethodID:       MustParseNodeID("ns=2;s=Pump1.Start"),
			InputArguments: []Variant{NewVariant(uint32(1500)), NewVariant("fast")},
		}},
	}
	req, err := DecodeRequest(EncodeRequest(in))
	require.NoError(t, err)
	out, ok := req.(*CallRequest)
	require.True(t, ok, "got %T", req)
	require.Len(t, out.MethodsToCall, 1)
	assert.Equal(t, "ns=2;s=Pump1.Start", out.MethodsToCall[0].MethodID.String())
	require.Len(t, out.MethodsToCall[0].InputArguments, 2)
	assert.Equal(t, uint32(1500), out.MethodsToCall[0].InputArguments[0].Value)
	assert.Equal(t, "fast", out.MethodsToCall[0].InputArguments[1].Value)

	resp, err := DecodeResponse(EncodeResponse(ServiceCall.ResponseID(), &CallResponse{
		ResponseHeader: ResponseHeader{RequestHandle: 9},
		Results: []CallMethodResult{
			{
				StatusCode:           StatusGood,
				InputArgumentResults: []StatusCode{StatusGood, StatusGood},
				OutputArguments:      []Variant{NewVariant(true)},
			},
			{StatusCode: StatusBadNodeIDUnknown},
		},
	}))
	require.NoError(t, err)
	cr, ok := resp.(*CallResponse)
	require.True(t, ok, "got %T", resp)
	require.Len(t, cr.Results, 2)
	assert.Equal(t, []StatusCode{StatusGood, StatusGood}, cr.Results[0].InputArgumentResults)
	require.Len(t, cr.Results[0].OutputArguments, 1)
	assert.Equal(t, true, cr.Results[0].OutputArguments[0].Value)
	assert.Equal(t, StatusBadNodeIDUnknown, cr.Results[1].StatusCode)
	assert.Empty(t, cr.Results[1].OutputArguments)
}

func TestTranslateBrowsePathsRoundTrip(t *testing.T) {
	in := &TranslateBrowsePathsRequest{
		BrowsePaths: []BrowsePath{{
			StartingNode: ObjectsFolder,
			RelativePath: RelativePath{Elements: []RelativePathElement{
				{ReferenceTypeID: NewNumericNodeID(0, 33), IncludeSubtypes: true, TargetName: QualifiedName{NamespaceIndex: 2, Name: "Line1"}},
				{ReferenceTypeID: NewNumericNodeID(0, 33), IncludeSubtypes: true, TargetName: QualifiedName{NamespaceIndex: 2, Name: "Speed"}},
			}},
		}},
	}
	req, err := DecodeRequest(EncodeRequest(in))
	require.NoError(t, err)
	out, ok := req.(*TranslateBrowsePathsRequest)
	require.True(t, ok, "got %T", req)
	require.Len(t, out.BrowsePaths, 1)
	assert.True(t, out.BrowsePaths[0].StartingNode.Equal(ObjectsFolder))
	require.Len(t, out.BrowsePaths[0].RelativePath.Elements, 2)
	assert.Equal(t, "Speed", out.BrowsePaths[0].RelativePath.Elements[1].TargetName.Name)
	assert.True(t, out.BrowsePaths[0].RelativePath.Elements[1].IncludeSubtypes)

	resp, err := DecodeResponse(EncodeResponse(ServiceTranslateBrowsePaths.ResponseID(), &TranslateBrowsePathsResponse{
		Results: []BrowsePathResult{
			{Targets: []BrowsePathTarget{{TargetID: MustParseNodeID("ns=2;i=6001"), RemainingPathIndex: FullyResolved}}},
			{StatusCode: StatusBadNoMatch},
		},
	}))
	require.NoError(t, err)
	tr, ok := resp.(*TranslateBrowsePathsResponse)
	require.True(t, ok, "got %T", resp)
	require.Len(t, tr.Results, 2)
	require.Len(t, tr.Results[0].Targets, 1)
	assert.Equal(t, "ns=2;i=6001", tr.Results[0].Targets[0].TargetID.String())
	assert.Equal(t, FullyResolved, tr.Results[0].Targets[0].RemainingPathIndex)
	assert.Equal(t, StatusBadNoMatch, tr.Results[1].StatusCode)
}

func TestGetEndpointsRoundTrip(t *testing.T) {
	req, err := DecodeRequest(EncodeRequest(&GetEndpointsRequest{
		EndpointURL: "opc.tcp://plc.local:4840",
		ProfileURIs: []string{"http://opcfoundation.org/UA-Profile/Transport/uatcp-uasc-uabinary"},
	}))
	require.NoError(t, err)
	ge, ok := req.(*GetEndpointsRequest)
	require.True(t, ok, "got %T", req)
	assert.Equal(t, "opc.tcp://plc.local:4840", ge.EndpointURL)
	assert.Nil(t, ge.LocaleIDs)
	assert.Len(t, ge.ProfileURIs, 1)

	resp, err := DecodeResponse(EncodeResponse(ServiceGetEndpoints.ResponseID(), &GetEndpointsResponse{
		Endpoints: []EndpointDescription{
			{EndpointURL: "opc.tcp://plc.local:4840", SecurityMode: MessageSecurityModeNone, SecurityPolicyURI: SecurityPolicyNone, SecurityLevel: 1},
			{EndpointURL: "opc.tcp://plc.local:4840", SecurityMode: MessageSecurityModeSignAndEncrypt, SecurityLevel: 3},
		},
	}))
	require.NoError(t, err)
	out, ok := resp.(*GetEndpointsResponse)
	require.True(t, ok, "got %T", resp)
	require.Len(t, out.Endpoints, 2)
	assert.Equal(t, SecurityPolicyNone, out.Endpoints[0].SecurityPolicyURI)
	assert.Equal(t, uint8(3), out.Endpoints[1].SecurityLevel)
	assert.Equal(t, "GetEndpoints", ServiceGetEndpoints.String())
	assert.Equal(t, "Call", ServiceCall.String())
}
