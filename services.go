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
	"context"
	"fmt"

	"github.com/edgeo-scada/uaclient/ua"
)

// hierarchicalReferences is the reference type BrowseNode follows.
var hierarchicalReferences = ua.NewNumericNodeID(0, 33)

// Read reads node attributes.
func (c *Client) Read(ctx context.Context, nodesToRead []ua.ReadValueID) ([]ua.DataValue, error) {
	resp, err := call[*ua.ReadResponse](ctx, c, &ua.ReadRequest{
		TimestampsToReturn: ua.TimestampsBoth,
		NodesToRead:        nodesToRead,
	})
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// ReadValue reads the Value attribute of one node.
func (c *Client) ReadValue(ctx context.Context, nodeID ua.NodeID) (*ua.DataValue, error) {
	results, err := c.Read(ctx, []ua.ReadValueID{{NodeID: nodeID, AttributeID: ua.AttributeValue}})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrInvalidResponse
	}
	return &results[0], nil
}

// Write writes node attributes and returns one status per value.
func (c *Client) Write(ctx context.Context, nodesToWrite []ua.WriteValue) ([]ua.StatusCode, error) {
	resp, err := call[*ua.WriteResponse](ctx, c, &ua.WriteRequest{NodesToWrite: nodesToWrite})
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// WriteValue writes the Value attribute of one node.
func (c *Client) WriteValue(ctx context.Context, nodeID ua.NodeID, value *ua.Variant) error {
	results, err := c.Write(ctx, []ua.WriteValue{{
		NodeID:      nodeID,
		AttributeID: ua.AttributeValue,
		Value:       ua.DataValue{Value: value},
	}})
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return ErrInvalidResponse
	}
	if results[0].IsBad() {
		return ua.NewServiceError(ua.ServiceWrite, results[0], nodeID.String())
	}
	return nil
}

// Browse browses nodes in the address space.
func (c *Client) Browse(ctx context.Context, nodesToBrowse []ua.BrowseDescription) ([]ua.BrowseResult, error) {
	resp, err := call[*ua.BrowseResponse](ctx, c, &ua.BrowseRequest{NodesToBrowse: nodesToBrowse})
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// BrowseNode returns the hierarchical references of one node.
func (c *Client) BrowseNode(ctx context.Context, nodeID ua.NodeID, direction ua.BrowseDirection) ([]ua.ReferenceDescription, error) {
	results, err := c.Browse(ctx, []ua.BrowseDescription{{
		NodeID:          nodeID,
		BrowseDirection: direction,
		ReferenceTypeID: hierarchicalReferences,
		IncludeSubtypes: true,
		ResultMask:      0x3F,
	}})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: empty browse result", ErrInvalidResponse)
	}
	if results[0].StatusCode.IsBad() {
		return nil, ua.NewServiceError(ua.ServiceBrowse, results[0].StatusCode, nodeID.String())
	}
	return results[0].References, nil
}

// GetEndpoints asks the connected server for its endpoints. It needs a
// secure channel only, so it works before a session is activated.
func (c *Client) GetEndpoints(ctx context.Context) ([]ua.EndpointDescription, error) {
	resp, err := call[*ua.GetEndpointsResponse](ctx, c, &ua.GetEndpointsRequest{EndpointURL: c.endpoint})
	if err != nil {
		return nil, err
	}
	return resp.Endpoints, nil
}

// TranslateBrowsePaths resolves browse paths to node ids, one result per
// path.
func (c *Client) TranslateBrowsePaths(ctx context.Context, paths []ua.BrowsePath) ([]ua.BrowsePathResult, error) {
	resp, err := call[*ua.TranslateBrowsePathsResponse](ctx, c, &ua.TranslateBrowsePathsRequest{BrowsePaths: paths})
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// NodeIDFromPath follows hierarchical references from start through the
// given browse names and returns the node reached.
func (c *Client) NodeIDFromPath(ctx context.Context, start ua.NodeID, names ...ua.QualifiedName) (ua.NodeID, error) {
	if len(names) == 0 {
		return start, nil
	}
	elements := make([]ua.RelativePathElement, 0, len(names))
	for _, name := range names {
		elements = append(elements, ua.RelativePathElement{
			ReferenceTypeID: hierarchicalReferences,
			IncludeSubtypes: true,
			TargetName:      name,
		})
	}
	results, err := c.TranslateBrowsePaths(ctx, []ua.BrowsePath{{
		StartingNode: start,
		RelativePath: ua.RelativePath{Elements: elements},
	}})
	if err != nil {
		return ua.NodeID{}, err
	}
	if len(results) == 0 {
		return ua.NodeID{}, fmt.Errorf("%w: empty translate result", ErrInvalidResponse)
	}
	if results[0].StatusCode.IsBad() {
		return ua.NodeID{}, ua.NewServiceError(ua.ServiceTranslateBrowsePaths, results[0].StatusCode, start.String())
	}
	for _, target := range results[0].Targets {
		if target.RemainingPathIndex == ua.FullyResolved {
			return target.TargetID, nil
		}
	}
	return ua.NodeID{}, ua.NewServiceError(ua.ServiceTranslateBrowsePaths, ua.StatusBadNoMatch, start.String())
}

// CallMethods invokes methods and returns one result per method.
func (c *Client) CallMethods(ctx context.Context, methods []ua.CallMethodRequest) ([]ua.CallMethodResult, error) {
	resp, err := call[*ua.CallResponse](ctx, c, &ua.CallRequest{MethodsToCall: methods})
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// CallMethod invokes one method on objectID and returns its output
// arguments. A bad result is returned as a *ua.ServiceError.
func (c *Client) CallMethod(ctx context.Context, objectID, methodID ua.NodeID, args ...ua.Variant) ([]ua.Variant, error) {
	results, err := c.CallMethods(ctx, []ua.CallMethodRequest{{
		ObjectID:       objectID,
		MethodID:       methodID,
		InputArguments: args,
	}})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: empty call result", ErrInvalidResponse)
	}
	if results[0].StatusCode.IsBad() {
		return nil, ua.NewServiceError(ua.ServiceCall, results[0].StatusCode, methodID.String())
	}
	return results[0].OutputArguments, nil
}
