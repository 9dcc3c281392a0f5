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
	"fmt"
	"time"
)

// RequestHeader is carried by every service request.
type RequestHeader struct {
	AuthenticationToken NodeID
	Timestamp           time.Time
	RequestHandle       uint32
	ReturnDiagnostics   uint32
	AuditEntryID        string
	TimeoutHint         uint32
}

// Encode writes the header. The additional header is always null.
func (h *RequestHeader) Encode(e *Encoder) {
	e.WriteNodeID(h.AuthenticationToken)
	e.WriteDateTime(h.Timestamp)
	e.WriteUInt32(h.RequestHandle)
	e.WriteUInt32(h.ReturnDiagnostics)
	e.WriteString(h.AuditEntryID)
	e.WriteUInt32(h.TimeoutHint)
	e.WriteNullExtensionObject()
}

// Decode reads a request header.
func (h *RequestHeader) Decode(d *Decoder) {
	h.AuthenticationToken = d.ReadNodeID()
	h.Timestamp = d.ReadDateTime()
	h.RequestHandle = d.ReadUInt32()
	h.ReturnDiagnostics = d.ReadUInt32()
	h.AuditEntryID = d.ReadString()
	h.TimeoutHint = d.ReadUInt32()
	d.ReadExtensionObject()
}

// ResponseHeader is carried by every service response. RequestHandle echoes
// the handle of the request being answered.
type ResponseHeader struct {
	Timestamp     time.Time
	RequestHandle uint32
	ServiceResult StatusCode
	StringTable   []string
}

// Encode writes the header with empty diagnostics.
func (h *ResponseHeader) Encode(e *Encoder) {
	e.WriteDateTime(h.Timestamp)
	e.WriteUInt32(h.RequestHandle)
	e.WriteStatusCode(h.ServiceResult)
	e.WriteUInt8(0)
	e.WriteStringArray(h.StringTable)
	e.WriteNullExtensionObject()
}

// Decode reads the header. Service diagnostics are skipped.
func (h *ResponseHeader) Decode(d *Decoder) {
	h.Timestamp = d.ReadDateTime()
	h.RequestHandle = d.ReadUInt32()
	h.ServiceResult = d.ReadStatusCode()
	d.SkipDiagnosticInfo()
	h.StringTable = d.ReadStringArray()
	d.ReadExtensionObject()
}

// Request is a service request. Header returns a pointer so that the session
// can stamp it just before the request is queued.
type Request interface {
	ServiceID() ServiceID
	Header() *RequestHeader
	Encode(e *Encoder)
}

// Response is a service response.
type Response interface {
	Header() *ResponseHeader
	Decode(d *Decoder)
}

// EncodableResponse is a Response that can also be written, used by peers
// that play the server role in tests.
type EncodableResponse interface {
	Response
	Encode(e *Encoder)
}

// ServiceFault is the generic response a server sends when a request fails
// as a whole.
type ServiceFault struct {
	ResponseHeader ResponseHeader
}

func (r *ServiceFault) Header() *ResponseHeader { return &r.ResponseHeader }
func (r *ServiceFault) Decode(d *Decoder)       { r.ResponseHeader.Decode(d) }
func (r *ServiceFault) Encode(e *Encoder)       { r.ResponseHeader.Encode(e) }

var responseFactories = map[uint32]func() Response{
	ServiceFaultEncoding:                     func() Response { return &ServiceFault{} },
	ServiceOpenSecureChannel.ResponseID():    func() Response { return &OpenSecureChannelResponse{} },
	ServiceCreateSession.ResponseID():        func() Response { return &CreateSessionResponse{} },
	ServiceActivateSession.ResponseID():      func() Response { return &ActivateSessionResponse{} },
	ServiceCloseSession.ResponseID():         func() Response { return &CloseSessionResponse{} },
	ServiceRead.ResponseID():                 func() Response { return &ReadResponse{} },
	ServiceWrite.ResponseID():                func() Response { return &WriteResponse{} },
	ServiceBrowse.ResponseID():               func() Response { return &BrowseResponse{} },
	ServiceGetEndpoints.ResponseID():         func() Response { return &GetEndpointsResponse{} },
	ServiceTranslateBrowsePaths.ResponseID(): func() Response { return &TranslateBrowsePathsResponse{} },
	ServiceCall.ResponseID():                 func() Response { return &CallResponse{} },
	ServiceCreateSubscription.ResponseID():   func() Response { return &CreateSubscriptionResponse{} },
	ServiceDeleteSubscriptions.ResponseID():  func() Response { return &DeleteSubscriptionsResponse{} },
	ServiceCreateMonitoredItems.ResponseID(): func() Response { return &CreateMonitoredItemsResponse{} },
	ServiceDeleteMonitoredItems.ResponseID(): func() Response { return &DeleteMonitoredItemsResponse{} },
	ServicePublish.ResponseID():              func() Response { return &PublishResponse{} },
}

var requestFactories = map[uint32]func() Request{
	uint32(ServiceOpenSecureChannel):    func() Request { return &OpenSecureChannelRequest{} },
	uint32(ServiceCloseSecureChannel):   func() Request { return &CloseSecureChannelRequest{} },
	uint32(ServiceCreateSession):        func() Request { return &CreateSessionRequest{} },
	uint32(ServiceActivateSession):      func() Request { return &ActivateSessionRequest{} },
	uint32(ServiceCloseSession):         func() Request { return &CloseSessionRequest{} },
	uint32(ServiceRead):                 func() Request { return &ReadRequest{} },
	uint32(ServiceWrite):                func() Request { return &WriteRequest{} },
	uint32(ServiceBrowse):               func() Request { return &BrowseRequest{} },
	uint32(ServiceGetEndpoints):         func() Request { return &GetEndpointsRequest{} },
	uint32(ServiceTranslateBrowsePaths): func() Request { return &TranslateBrowsePathsRequest{} },
	uint32(ServiceCall):                 func() Request { return &CallRequest{} },
	uint32(ServiceCreateSubscription):   func() Request { return &CreateSubscriptionRequest{} },
	uint32(ServiceDeleteSubscriptions):  func() Request { return &DeleteSubscriptionsRequest{} },
	uint32(ServiceCreateMonitoredItems): func() Request { return &CreateMonitoredItemsRequest{} },
	uint32(ServiceDeleteMonitoredItems): func() Request { return &DeleteMonitoredItemsRequest{} },
	uint32(ServicePublish):              func() Request { return &PublishRequest{} },
}

// EncodeRequest writes the type id of req followed by its body.
func EncodeRequest(req Request) []byte {
	e := NewEncoder()
	e.WriteNodeID(NewNumericNodeID(0, uint32(req.ServiceID())))
	req.Encode(e)
	return e.Bytes()
}

// EncodeResponse writes the type id followed by the body of resp.
func EncodeResponse(encodingID uint32, resp EncodableResponse) []byte {
	e := NewEncoder()
	e.WriteNodeID(NewNumericNodeID(0, encodingID))
	resp.Encode(e)
	return e.Bytes()
}

// DecodeResponse reads a type id and decodes the matching response body.
func DecodeResponse(data []byte) (Response, error) {
	d := NewDecoder(data)
	typeID := d.ReadNodeID()
	if err := d.Err(); err != nil {
		return nil, err
	}
	factory, ok := responseFactories[typeID.Numeric]
	if !ok || typeID.Type != NodeIDTypeNumeric || typeID.Namespace != 0 {
		return nil, fmt.Errorf("%w: response %s", ErrUnknownType, typeID)
	}
	resp := factory()
	resp.Decode(d)
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("decode response %s: %w", typeID, err)
	}
	return resp, nil
}

// DecodeRequest reads a type id and decodes the matching request body. It is
// the server-side counterpart of EncodeRequest.
func DecodeRequest(data []byte) (Request, error) {
	d := NewDecoder(data)
	typeID := d.ReadNodeID()
	if err := d.Err(); err != nil {
		return nil, err
	}
	factory, ok := requestFactories[typeID.Numeric]
	if !ok || typeID.Type != NodeIDTypeNumeric || typeID.Namespace != 0 {
		return nil, fmt.Errorf("%w: request %s", ErrUnknownType, typeID)
	}
	req := factory()
	dec, ok := req.(interface{ Decode(*Decoder) })
	if !ok {
		return nil, fmt.Errorf("%w: request %s is encode-only", ErrUnknownType, typeID)
	}
	dec.Decode(d)
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("decode request %s: %w", typeID, err)
	}
	return req, nil
}

// ServiceResult returns the error carried by resp: a *ServiceError for a
// ServiceFault or a bad service result, nil otherwise.
func ServiceResult(svc ServiceID, resp Response) error {
	h := resp.Header()
	if _, fault := resp.(*ServiceFault); fault {
		code := h.ServiceResult
		if code.IsGood() {
			code = StatusBadUnexpectedError
		}
		return NewServiceError(svc, code, "")
	}
	if h.ServiceResult.IsBad() {
		return NewServiceError(svc, h.ServiceResult, "")
	}
	return nil
}
