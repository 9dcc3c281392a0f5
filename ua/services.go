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

// Typed responses whose service result is bad carry no body; Decode stops
// after the header in that case.

// SecurityTokenRequestType distinguishes issuing and renewing a channel token.
type SecurityTokenRequestType uint32

const (
	SecurityTokenIssue SecurityTokenRequestType = 0
	SecurityTokenRenew SecurityTokenRequestType = 1
)

// OpenSecureChannelRequest opens a secure channel.
type OpenSecureChannelRequest struct {
	RequestHeader         RequestHeader
	ClientProtocolVersion uint32
	RequestType           SecurityTokenRequestType
	SecurityMode          MessageSecurityMode
	ClientNonce           []byte
	RequestedLifetime     uint32
}

func (r *OpenSecureChannelRequest) ServiceID() ServiceID   { return ServiceOpenSecureChannel }
func (r *OpenSecureChannelRequest) Header() *RequestHeader { return &r.RequestHeader }

func (r *OpenSecureChannelRequest) Encode(e *Encoder) {
	r.RequestHeader.Encode(e)
	e.WriteUInt32(r.ClientProtocolVersion)
	e.WriteUInt32(uint32(r.RequestType))
	e.WriteUInt32(uint32(r.SecurityMode))
	e.WriteByteString(r.ClientNonce)
	e.WriteUInt32(r.RequestedLifetime)
}

func (r *OpenSecureChannelRequest) Decode(d *Decoder) {
	r.RequestHeader.Decode(d)
	r.ClientProtocolVersion = d.ReadUInt32()
	r.RequestType = SecurityTokenRequestType(d.ReadUInt32())
	r.SecurityMode = MessageSecurityMode(d.ReadUInt32())
	r.ClientNonce = d.ReadByteString()
	r.RequestedLifetime = d.ReadUInt32()
}

// ChannelSecurityToken identifies the token protecting a secure channel.
type ChannelSecurityToken struct {
	ChannelID       uint32
	TokenID         uint32
	CreatedAt       time.Time
	RevisedLifetime uint32
}

// OpenSecureChannelResponse answers OpenSecureChannelRequest.
type OpenSecureChannelResponse struct {
	ResponseHeader        ResponseHeader
	ServerProtocolVersion uint32
	SecurityToken         ChannelSecurityToken
	ServerNonce           []byte
}

func (r *OpenSecureChannelResponse) Header() *ResponseHeader { return &r.ResponseHeader }

func (r *OpenSecureChannelResponse) Decode(d *Decoder) {
	r.ResponseHeader.Decode(d)
	if r.ResponseHeader.ServiceResult.IsBad() {
		return
	}
	r.ServerProtocolVersion = d.ReadUInt32()
	r.SecurityToken.ChannelID = d.ReadUInt32()
	r.SecurityToken.TokenID = d.ReadUInt32()
	r.SecurityToken.CreatedAt = d.ReadDateTime()
	r.SecurityToken.RevisedLifetime = d.ReadUInt32()
	r.ServerNonce = d.ReadByteString()
}

func (r *OpenSecureChannelResponse) Encode(e *Encoder) {
	r.ResponseHeader.Encode(e)
	e.WriteUInt32(r.ServerProtocolVersion)
	e.WriteUInt32(r.SecurityToken.ChannelID)
	e.WriteUInt32(r.SecurityToken.TokenID)
	e.WriteDateTime(r.SecurityToken.CreatedAt)
	e.WriteUInt32(r.SecurityToken.RevisedLifetime)
	e.WriteByteString(r.ServerNonce)
}

// CloseSecureChannelRequest closes a secure channel. It has no response.
type CloseSecureChannelRequest struct {
	RequestHeader RequestHeader
}

func (r *CloseSecureChannelRequest) ServiceID() ServiceID   { return ServiceCloseSecureChannel }
func (r *CloseSecureChannelRequest) Header() *RequestHeader { return &r.RequestHeader }
func (r *CloseSecureChannelRequest) Encode(e *Encoder)      { r.RequestHeader.Encode(e) }
func (r *CloseSecureChannelRequest) Decode(d *Decoder)      { r.RequestHeader.Decode(d) }

func encodeApplicationDescription(e *Encoder, a *ApplicationDescription) {
	e.WriteString(a.ApplicationURI)
	e.WriteString(a.ProductURI)
	e.WriteLocalizedText(a.ApplicationName)
	e.WriteUInt32(uint32(a.ApplicationType))
	e.WriteString(a.GatewayServerURI)
	e.WriteString(a.DiscoveryProfileURI)
	e.WriteStringArray(a.DiscoveryURLs)
}

func decodeApplicationDescription(d *Decoder) ApplicationDescription {
	var a ApplicationDescription
	a.ApplicationURI = d.ReadString()
	a.ProductURI = d.ReadString()
	a.ApplicationName = d.ReadLocalizedText()
	a.ApplicationType = ApplicationType(d.ReadUInt32())
	a.GatewayServerURI = d.ReadString()
	a.DiscoveryProfileURI = d.ReadString()
	a.DiscoveryURLs = d.ReadStringArray()
	return a
}

func encodeEndpointDescription(e *Encoder, ep *EndpointDescription) {
	e.WriteString(ep.EndpointURL)
	encodeApplicationDescription(e, &ep.Server)
	e.WriteByteString(ep.ServerCertificate)
	e.WriteUInt32(uint32(ep.SecurityMode))
	e.WriteString(ep.SecurityPolicyURI)
	e.WriteInt32(int32(len(ep.UserIdentityTokens)))
	for _, p := range ep.UserIdentityTokens {
		e.WriteString(p.PolicyID)
		e.WriteUInt32(uint32(p.TokenType))
		e.WriteString(p.IssuedTokenType)
		e.WriteString(p.IssuerEndpointURL)
		e.WriteString(p.SecurityPolicyURI)
	}
	e.WriteString(ep.TransportProfileURI)
	e.WriteUInt8(ep.SecurityLevel)
}

func decodeEndpointDescription(d *Decoder) EndpointDescription {
	var ep EndpointDescription
	ep.EndpointURL = d.ReadString()
	ep.Server = decodeApplicationDescription(d)
	ep.ServerCertificate = d.ReadByteString()
	ep.SecurityMode = MessageSecurityMode(d.ReadUInt32())
	ep.SecurityPolicyURI = d.ReadString()
	if n := d.ReadArrayLength(); n > 0 {
		ep.UserIdentityTokens = make([]UserTokenPolicy, 0, n)
		for i := 0; i < n && d.Err() == nil; i++ {
			ep.UserIdentityTokens = append(ep.UserIdentityTokens, UserTokenPolicy{
				PolicyID:          d.ReadString(),
				TokenType:         UserTokenType(d.ReadUInt32()),
				IssuedTokenType:   d.ReadString(),
				IssuerEndpointURL: d.ReadString(),
				SecurityPolicyURI: d.ReadString(),
			})
		}
	}
	ep.TransportProfileURI = d.ReadString()
	ep.SecurityLevel = d.ReadUInt8()
	return ep
}

// GetEndpointsRequest asks a server for its endpoints. It needs a secure
// channel but no session.
type GetEndpointsRequest struct {
	RequestHeader RequestHeader
	EndpointURL   string
	LocaleIDs     []string
	ProfileURIs   []string
}

func (r *GetEndpointsRequest) ServiceID() ServiceID   { return ServiceGetEndpoints }
func (r *GetEndpointsRequest) Header() *RequestHeader { return &r.RequestHeader }

func (r *GetEndpointsRequest) Encode(e *Encoder) {
	r.RequestHeader.Encode(e)
	e.WriteString(r.EndpointURL)
	e.WriteStringArray(r.LocaleIDs)
	e.WriteStringArray(r.ProfileURIs)
}

func (r *GetEndpointsRequest) Decode(d *Decoder) {
	r.RequestHeader.Decode(d)
	r.EndpointURL = d.ReadString()
	r.LocaleIDs = d.ReadStringArray()
	r.ProfileURIs = d.ReadStringArray()
}

// GetEndpointsResponse lists the server endpoints.
type GetEndpointsResponse struct {
	ResponseHeader ResponseHeader
	Endpoints      []EndpointDescription
}

func (r *GetEndpointsResponse) Header() *ResponseHeader { return &r.ResponseHeader }

func (r *GetEndpointsResponse) Decode(d *Decoder) {
	r.ResponseHeader.Decode(d)
	if r.ResponseHeader.ServiceResult.IsBad() {
		return
	}
	if n := d.ReadArrayLength(); n > 0 {
		r.Endpoints = make([]EndpointDescription, 0, n)
		for i := 0; i < n && d.Err() == nil; i++ {
			r.Endpoints = append(r.Endpoints, decodeEndpointDescription(d))
		}
	}
}

func (r *GetEndpointsResponse) Encode(e *Encoder) {
	r.ResponseHeader.Encode(e)
	e.WriteInt32(int32(len(r.Endpoints)))
	for i := range r.Endpoints {
		encodeEndpointDescription(e, &r.Endpoints[i])
	}
}

// CreateSessionRequest asks the server for a new session.
type CreateSessionRequest struct {
	RequestHeader           RequestHeader
	ClientDescription       ApplicationDescription
	ServerURI               string
	EndpointURL             string
	SessionName             string
	ClientNonce             []byte
	ClientCertificate       []byte
	RequestedSessionTimeout float64
	MaxResponseMessageSize  uint32
}

func (r *CreateSessionRequest) ServiceID() ServiceID   { return ServiceCreateSession }
func (r *CreateSessionRequest) Header() *RequestHeader { return &r.RequestHeader }

func (r *CreateSessionRequest) Encode(e *Encoder) {
	r.RequestHeader.Encode(e)
	encodeApplicationDescription(e, &r.ClientDescription)
	e.WriteString(r.ServerURI)
	e.WriteString(r.EndpointURL)
	e.WriteString(r.SessionName)
	e.WriteByteString(r.ClientNonce)
	e.WriteByteString(r.ClientCertificate)
	e.WriteDouble(r.RequestedSessionTimeout)
	e.WriteUInt32(r.MaxResponseMessageSize)
}

func (r *CreateSessionRequest) Decode(d *Decoder) {
	r.RequestHeader.Decode(d)
	r.ClientDescription = decodeApplicationDescription(d)
	r.ServerURI = d.ReadString()
	r.EndpointURL = d.ReadString()
	r.SessionName = d.ReadString()
	r.ClientNonce = d.ReadByteString()
	r.ClientCertificate = d.ReadByteString()
	r.RequestedSessionTimeout = d.ReadDouble()
	r.MaxResponseMessageSize = d.ReadUInt32()
}

// CreateSessionResponse carries the new session's id and authentication
// token.
type CreateSessionResponse struct {
	ResponseHeader        ResponseHeader
	SessionID             NodeID
	AuthenticationToken   NodeID
	RevisedSessionTimeout float64
	ServerNonce           []byte
	ServerCertificate     []byte
	ServerEndpoints       []EndpointDescription
	ServerSignature       SignatureData
	MaxRequestMessageSize uint32
}

func (r *CreateSessionResponse) Header() *ResponseHeader { return &r.ResponseHeader }

func (r *CreateSessionResponse) Decode(d *Decoder) {
	r.ResponseHeader.Decode(d)
	if r.ResponseHeader.ServiceResult.IsBad() {
		return
	}
	r.SessionID = d.ReadNodeID()
	r.AuthenticationToken = d.ReadNodeID()
	r.RevisedSessionTimeout = d.ReadDouble()
	r.ServerNonce = d.ReadByteString()
	r.ServerCertificate = d.ReadByteString()
	if n := d.ReadArrayLength(); n > 0 {
		r.ServerEndpoints = make([]EndpointDescription, 0, n)
		for i := 0; i < n && d.Err() == nil; i++ {
			r.ServerEndpoints = append(r.ServerEndpoints, decodeEndpointDescription(d))
		}
	}
	// ServerSoftwareCertificates, deprecated and always empty in practice.
	for i, n := 0, d.ReadArrayLength(); i < n && d.Err() == nil; i++ {
		d.ReadByteString()
		d.ReadByteString()
	}
	r.ServerSignature.Algorithm = d.ReadString()
	r.ServerSignature.Signature = d.ReadByteString()
	r.MaxRequestMessageSize = d.ReadUInt32()
}

func (r *CreateSessionResponse) Encode(e *Encoder) {
	r.ResponseHeader.Encode(e)
	e.WriteNodeID(r.SessionID)
	e.WriteNodeID(r.AuthenticationToken)
	e.WriteDouble(r.RevisedSessionTimeout)
	e.WriteByteString(r.ServerNonce)
	e.WriteByteString(r.ServerCertificate)
	e.WriteInt32(int32(len(r.ServerEndpoints)))
	for i := range r.ServerEndpoints {
		encodeEndpointDescription(e, &r.ServerEndpoints[i])
	}
	e.WriteInt32(0)
	e.WriteString(r.ServerSignature.Algorithm)
	e.WriteByteString(r.ServerSignature.Signature)
	e.WriteUInt32(r.MaxRequestMessageSize)
}

// IdentityToken is a user identity presented in ActivateSession.
type IdentityToken interface {
	EncodingID() uint32
	encodeBody(e *Encoder)
}

// AnonymousIdentityToken identifies an anonymous user.
type AnonymousIdentityToken struct {
	PolicyID string
}

func (t *AnonymousIdentityToken) EncodingID() uint32 { return AnonymousIdentityTokenEncoding }
func (t *AnonymousIdentityToken) encodeBody(e *Encoder) {
	e.WriteString(t.PolicyID)
}

// UserNameIdentityToken identifies a user by name and password. Under
// SecurityPolicyNone the password travels unencrypted.
type UserNameIdentityToken struct {
	PolicyID            string
	UserName            string
	Password            []byte
	EncryptionAlgorithm string
}

func (t *UserNameIdentityToken) EncodingID() uint32 { return UserNameIdentityTokenEncoding }
func (t *UserNameIdentityToken) encodeBody(e *Encoder) {
	e.WriteString(t.PolicyID)
	e.WriteString(t.UserName)
	e.WriteByteString(t.Password)
	e.WriteString(t.EncryptionAlgorithm)
}

func decodeIdentityToken(d *Decoder) IdentityToken {
	typeID, body := d.ReadExtensionObject()
	if d.Err() != nil {
		return nil
	}
	bd := NewDecoder(body)
	var tok IdentityToken
	switch typeID.Numeric {
	case AnonymousIdentityTokenEncoding:
		tok = &AnonymousIdentityToken{PolicyID: bd.ReadString()}
	case UserNameIdentityTokenEncoding:
		tok = &UserNameIdentityToken{
			PolicyID:            bd.ReadString(),
			UserName:            bd.ReadString(),
			Password:            bd.ReadByteString(),
			EncryptionAlgorithm: bd.ReadString(),
		}
	default:
		d.Fail(fmt.Errorf("%w: identity token %s", ErrUnknownType, typeID))
		return nil
	}
	if err := bd.Err(); err != nil {
		d.Fail(err)
	}
	return tok
}

// ActivateSessionRequest activates a session with a user identity.
type ActivateSessionRequest struct {
	RequestHeader      RequestHeader
	ClientSignature    SignatureData
	LocaleIDs          []string
	UserIdentityToken  IdentityToken
	UserTokenSignature SignatureData
}

func (r *ActivateSessionRequest) ServiceID() ServiceID   { return ServiceActivateSession }
func (r *ActivateSessionRequest) Header() *RequestHeader { return &r.RequestHeader }

func (r *ActivateSessionRequest) Encode(e *Encoder) {
	r.RequestHeader.Encode(e)
	e.WriteString(r.ClientSignature.Algorithm)
	e.WriteByteString(r.ClientSignature.Signature)
	e.WriteInt32(0) // ClientSoftwareCertificates
	e.WriteStringArray(r.LocaleIDs)

	tok := r.UserIdentityToken
	if tok == nil {
		tok = &AnonymousIdentityToken{}
	}
	body := NewEncoder()
	tok.encodeBody(body)
	e.WriteExtensionObject(tok.EncodingID(), body.Bytes())

	e.WriteString(r.UserTokenSignature.Algorithm)
	e.WriteByteString(r.UserTokenSignature.Signature)
}

func (r *ActivateSessionRequest) Decode(d *Decoder) {
	r.RequestHeader.Decode(d)
	r.ClientSignature.Algorithm = d.ReadString()
	r.ClientSignature.Signature = d.ReadByteString()
	for i, n := 0, d.ReadArrayLength(); i < n && d.Err() == nil; i++ {
		d.ReadByteString()
		d.ReadByteString()
	}
	r.LocaleIDs = d.ReadStringArray()
	r.UserIdentityToken = decodeIdentityToken(d)
	r.UserTokenSignature.Algorithm = d.ReadString()
	r.UserTokenSignature.Signature = d.ReadByteString()
}

// ActivateSessionResponse answers ActivateSessionRequest.
type ActivateSessionResponse struct {
	ResponseHeader ResponseHeader
	ServerNonce    []byte
	Results        []StatusCode
}

func (r *ActivateSessionResponse) Header() *ResponseHeader { return &r.ResponseHeader }

func (r *ActivateSessionResponse) Decode(d *Decoder) {
	r.ResponseHeader.Decode(d)
	if r.ResponseHeader.ServiceResult.IsBad() {
		return
	}
	r.ServerNonce = d.ReadByteString()
	r.Results = d.ReadStatusCodeArray()
	d.SkipDiagnosticInfoArray()
}

func (r *ActivateSessionResponse) Encode(e *Encoder) {
	r.ResponseHeader.Encode(e)
	e.WriteByteString(r.ServerNonce)
	writeStatusCodes(e, r.Results)
	e.WriteInt32(0)
}

// CloseSessionRequest closes the session.
type CloseSessionRequest struct {
	RequestHeader       RequestHeader
	DeleteSubscriptions bool
}

func (r *CloseSessionRequest) ServiceID() ServiceID   { return ServiceCloseSession }
func (r *CloseSessionRequest) Header() *RequestHeader { return &r.RequestHeader }

func (r *CloseSessionRequest) Encode(e *Encoder) {
	r.RequestHeader.Encode(e)
	e.WriteBoolean(r.DeleteSubscriptions)
}

func (r *CloseSessionRequest) Decode(d *Decoder) {
	r.RequestHeader.Decode(d)
	r.DeleteSubscriptions = d.ReadBoolean()
}

// CloseSessionResponse answers CloseSessionRequest.
type CloseSessionResponse struct {
	ResponseHeader ResponseHeader
}

func (r *CloseSessionResponse) Header() *ResponseHeader { return &r.ResponseHeader }
func (r *CloseSessionResponse) Decode(d *Decoder)       { r.ResponseHeader.Decode(d) }
func (r *CloseSessionResponse) Encode(e *Encoder)       { r.ResponseHeader.Encode(e) }

// ReadRequest reads node attributes.
type ReadRequest struct {
	RequestHeader      RequestHeader
	MaxAge             float64
	TimestampsToReturn TimestampsToReturn
	NodesToRead        []ReadValueID
}

func (r *ReadRequest) ServiceID() ServiceID   { return ServiceRead }
func (r *ReadRequest) Header() *RequestHeader { return &r.RequestHeader }

func (r *ReadRequest) Encode(e *Encoder) {
	r.RequestHeader.Encode(e)
	e.WriteDouble(r.MaxAge)
	e.WriteUInt32(uint32(r.TimestampsToReturn))
	e.WriteInt32(int32(len(r.NodesToRead)))
	for i := range r.NodesToRead {
		encodeReadValueID(e, &r.NodesToRead[i])
	}
}

func (r *ReadRequest) Decode(d *Decoder) {
	r.RequestHeader.Decode(d)
	r.MaxAge = d.ReadDouble()
	r.TimestampsToReturn = TimestampsToReturn(d.ReadUInt32())
	if n := d.ReadArrayLength(); n > 0 {
		r.NodesToRead = make([]ReadValueID, 0, n)
		for i := 0; i < n && d.Err() == nil; i++ {
			r.NodesToRead = append(r.NodesToRead, decodeReadValueID(d))
		}
	}
}

func encodeReadValueID(e *Encoder, v *ReadValueID) {
	e.WriteNodeID(v.NodeID)
	e.WriteUInt32(uint32(v.AttributeID))
	e.WriteString(v.IndexRange)
	e.WriteQualifiedName(v.DataEncoding)
}

func decodeReadValueID(d *Decoder) ReadValueID {
	return ReadValueID{
		NodeID:       d.ReadNodeID(),
		AttributeID:  AttributeID(d.ReadUInt32()),
		IndexRange:   d.ReadString(),
		DataEncoding: d.ReadQualifiedName(),
	}
}

// ReadResponse carries one DataValue per node read.
type ReadResponse struct {
	ResponseHeader ResponseHeader
	Results        []DataValue
}

func (r *ReadResponse) Header() *ResponseHeader { return &r.ResponseHeader }

func (r *ReadResponse) Decode(d *Decoder) {
	r.ResponseHeader.Decode(d)
	if r.ResponseHeader.ServiceResult.IsBad() {
		return
	}
	if n := d.ReadArrayLength(); n > 0 {
		r.Results = make([]DataValue, 0, n)
		for i := 0; i < n && d.Err() == nil; i++ {
			r.Results = append(r.Results, d.ReadDataValue())
		}
	}
	d.SkipDiagnosticInfoArray()
}

func (r *ReadResponse) Encode(e *Encoder) {
	r.ResponseHeader.Encode(e)
	e.WriteInt32(int32(len(r.Results)))
	for _, dv := range r.Results {
		e.WriteDataValue(dv)
	}
	e.WriteInt32(0)
}

// WriteRequest writes node attributes.
type WriteRequest struct {
	RequestHeader RequestHeader
	NodesToWrite  []WriteValue
}

func (r *WriteRequest) ServiceID() ServiceID   { return ServiceWrite }
func (r *WriteRequest) Header() *RequestHeader { return &r.RequestHeader }

func (r *WriteRequest) Encode(e *Encoder) {
	r.RequestHeader.Encode(e)
	e.WriteInt32(int32(len(r.NodesToWrite)))
	for _, w := range r.NodesToWrite {
		e.WriteNodeID(w.NodeID)
		e.WriteUInt32(uint32(w.AttributeID))
		e.WriteString(w.IndexRange)
		e.WriteDataValue(w.Value)
	}
}

func (r *WriteRequest) Decode(d *Decoder) {
	r.RequestHeader.Decode(d)
	if n := d.ReadArrayLength(); n > 0 {
		r.NodesToWrite = make([]WriteValue, 0, n)
		for i := 0; i < n && d.Err() == nil; i++ {
			r.NodesToWrite = append(r.NodesToWrite, WriteValue{
				NodeID:      d.ReadNodeID(),
				AttributeID: AttributeID(d.ReadUInt32()),
				IndexRange:  d.ReadString(),
				Value:       d.ReadDataValue(),
			})
		}
	}
}

// WriteResponse carries one StatusCode per node written.
type WriteResponse struct {
	ResponseHeader ResponseHeader
	Results        []StatusCode
}

func (r *WriteResponse) Header() *ResponseHeader { return &r.ResponseHeader }

func (r *WriteResponse) Decode(d *Decoder) {
	r.ResponseHeader.Decode(d)
	if r.ResponseHeader.ServiceResult.IsBad() {
		return
	}
	r.Results = d.ReadStatusCodeArray()
	d.SkipDiagnosticInfoArray()
}

func (r *WriteResponse) Encode(e *Encoder) {
	r.ResponseHeader.Encode(e)
	writeStatusCodes(e, r.Results)
	e.WriteInt32(0)
}

// BrowseRequest lists the references of nodes.
type BrowseRequest struct {
	RequestHeader                 RequestHeader
	View                          ViewDescription
	RequestedMaxReferencesPerNode uint32
	NodesToBrowse                 []BrowseDescription
}

func (r *BrowseRequest) ServiceID() ServiceID   { return ServiceBrowse }
func (r *BrowseRequest) Header() *RequestHeader { return &r.RequestHeader }

func (r *BrowseRequest) Encode(e *Encoder) {
	r.RequestHeader.Encode(e)
	e.WriteNodeID(r.View.ViewID)
	e.WriteDateTime(r.View.Timestamp)
	e.WriteUInt32(r.View.ViewVersion)
	e.WriteUInt32(r.RequestedMaxReferencesPerNode)
	e.WriteInt32(int32(len(r.NodesToBrowse)))
	for _, b := range r.NodesToBrowse {
		e.WriteNodeID(b.NodeID)
		e.WriteUInt32(uint32(b.BrowseDirection))
		e.WriteNodeID(b.ReferenceTypeID)
		e.WriteBoolean(b.IncludeSubtypes)
		e.WriteUInt32(b.NodeClassMask)
		e.WriteUInt32(b.ResultMask)
	}
}

func (r *BrowseRequest) Decode(d *Decoder) {
	r.RequestHeader.Decode(d)
	r.View.ViewID = d.ReadNodeID()
	r.View.Timestamp = d.ReadDateTime()
	r.View.ViewVersion = d.ReadUInt32()
	r.RequestedMaxReferencesPerNode = d.ReadUInt32()
	if n := d.ReadArrayLength(); n > 0 {
		r.NodesToBrowse = make([]BrowseDescription, 0, n)
		for i := 0; i < n && d.Err() == nil; i++ {
			r.NodesToBrowse = append(r.NodesToBrowse, BrowseDescription{
				NodeID:          d.ReadNodeID(),
				BrowseDirection: BrowseDirection(d.ReadUInt32()),
				ReferenceTypeID: d.ReadNodeID(),
				IncludeSubtypes: d.ReadBoolean(),
				NodeClassMask:   d.ReadUInt32(),
				ResultMask:      d.ReadUInt32(),
			})
		}
	}
}

// BrowseResponse carries one BrowseResult per node browsed.
type BrowseResponse struct {
	ResponseHeader ResponseHeader
	Results        []BrowseResult
}

func (r *BrowseResponse) Header() *ResponseHeader { return &r.ResponseHeader }

func (r *BrowseResponse) Decode(d *Decoder) {
	r.ResponseHeader.Decode(d)
	if r.ResponseHeader.ServiceResult.IsBad() {
		return
	}
	if n := d.ReadArrayLength(); n > 0 {
		r.Results = make([]BrowseResult, 0, n)
		for i := 0; i < n && d.Err() == nil; i++ {
			r.Results = append(r.Results, decodeBrowseResult(d))
		}
	}
	d.SkipDiagnosticInfoArray()
}

func (r *BrowseResponse) Encode(e *Encoder) {
	r.ResponseHeader.Encode(e)
	e.WriteInt32(int32(len(r.Results)))
	for _, br := range r.Results {
		e.WriteStatusCode(br.StatusCode)
		e.WriteByteString(br.ContinuationPoint)
		e.WriteInt32(int32(len(br.References)))
		for _, ref := range br.References {
			e.WriteNodeID(ref.ReferenceTypeID)
			e.WriteBoolean(ref.IsForward)
			e.WriteExpandedNodeID(ref.NodeID)
			e.WriteQualifiedName(ref.BrowseName)
			e.WriteLocalizedText(ref.DisplayName)
			e.WriteUInt32(uint32(ref.NodeClass))
			e.WriteExpandedNodeID(ref.TypeDefinition)
		}
	}
	e.WriteInt32(0)
}

func decodeBrowseResult(d *Decoder) BrowseResult {
	var br BrowseResult
	br.StatusCode = d.ReadStatusCode()
	br.ContinuationPoint = d.ReadByteString()
	if n := d.ReadArrayLength(); n > 0 {
		br.References = make([]ReferenceDescription, 0, n)
		for i := 0; i < n && d.Err() == nil; i++ {
			br.References = append(br.References, ReferenceDescription{
				ReferenceTypeID: d.ReadNodeID(),
				IsForward:       d.ReadBoolean(),
				NodeID:          d.ReadExpandedNodeID(),
				BrowseName:      d.ReadQualifiedName(),
				DisplayName:     d.ReadLocalizedText(),
				NodeClass:       NodeClass(d.ReadUInt32()),
				TypeDefinition:  d.ReadExpandedNodeID(),
			})
		}
	}
	return br
}

// CreateSubscriptionRequest creates a subscription.
type CreateSubscriptionRequest struct {
	RequestHeader               RequestHeader
	RequestedPublishingInterval float64
	RequestedLifetimeCount      uint32
	RequestedMaxKeepAliveCount  uint32
	MaxNotificationsPerPublish  uint32
	PublishingEnabled           bool
	Priority                    uint8
}

func (r *CreateSubscriptionRequest) ServiceID() ServiceID   { return ServiceCreateSubscription }
func (r *CreateSubscriptionRequest) Header() *RequestHeader { return &r.RequestHeader }

func (r *CreateSubscriptionRequest) Encode(e *Encoder) {
	r.RequestHeader.Encode(e)
	e.WriteDouble(r.RequestedPublishingInterval)
	e.WriteUInt32(r.RequestedLifetimeCount)
	e.WriteUInt32(r.RequestedMaxKeepAliveCount)
	e.WriteUInt32(r.MaxNotificationsPerPublish)
	e.WriteBoolean(r.PublishingEnabled)
	e.WriteUInt8(r.Priority)
}

func (r *CreateSubscriptionRequest) Decode(d *Decoder) {
	r.RequestHeader.Decode(d)
	r.RequestedPublishingInterval = d.ReadDouble()
	r.RequestedLifetimeCount = d.ReadUInt32()
	r.RequestedMaxKeepAliveCount = d.ReadUInt32()
	r.MaxNotificationsPerPublish = d.ReadUInt32()
	r.PublishingEnabled = d.ReadBoolean()
	r.Priority = d.ReadUInt8()
}

// CreateSubscriptionResponse carries the subscription id and revised
// parameters.
type CreateSubscriptionResponse struct {
	ResponseHeader            ResponseHeader
	SubscriptionID            uint32
	RevisedPublishingInterval float64
	RevisedLifetimeCount      uint32
	RevisedMaxKeepAliveCount  uint32
}

func (r *CreateSubscriptionResponse) Header() *ResponseHeader { return &r.ResponseHeader }

func (r *CreateSubscriptionResponse) Decode(d *Decoder) {
	r.ResponseHeader.Decode(d)
	if r.ResponseHeader.ServiceResult.IsBad() {
		return
	}
	r.SubscriptionID = d.ReadUInt32()
	r.RevisedPublishingInterval = d.ReadDouble()
	r.RevisedLifetimeCount = d.ReadUInt32()
	r.RevisedMaxKeepAliveCount = d.ReadUInt32()
}

func (r *CreateSubscriptionResponse) Encode(e *Encoder) {
	r.ResponseHeader.Encode(e)
	e.WriteUInt32(r.SubscriptionID)
	e.WriteDouble(r.RevisedPublishingInterval)
	e.WriteUInt32(r.RevisedLifetimeCount)
	e.WriteUInt32(r.RevisedMaxKeepAliveCount)
}

// DeleteSubscriptionsRequest deletes subscriptions.
type DeleteSubscriptionsRequest struct {
	RequestHeader   RequestHeader
	SubscriptionIDs []uint32
}

func (r *DeleteSubscriptionsRequest) ServiceID() ServiceID   { return ServiceDeleteSubscriptions }
func (r *DeleteSubscriptionsRequest) Header() *RequestHeader { return &r.RequestHeader }

func (r *DeleteSubscriptionsRequest) Encode(e *Encoder) {
	r.RequestHeader.Encode(e)
	e.WriteUInt32Array(r.SubscriptionIDs)
}

func (r *DeleteSubscriptionsRequest) Decode(d *Decoder) {
	r.RequestHeader.Decode(d)
	r.SubscriptionIDs = d.ReadUInt32Array()
}

// DeleteSubscriptionsResponse carries one StatusCode per subscription.
type DeleteSubscriptionsResponse struct {
	ResponseHeader ResponseHeader
	Results        []StatusCode
}

func (r *DeleteSubscriptionsResponse) Header() *ResponseHeader { return &r.ResponseHeader }

func (r *DeleteSubscriptionsResponse) Decode(d *Decoder) {
	r.ResponseHeader.Decode(d)
	if r.ResponseHeader.ServiceResult.IsBad() {
		return
	}
	r.Results = d.ReadStatusCodeArray()
	d.SkipDiagnosticInfoArray()
}

func (r *DeleteSubscriptionsResponse) Encode(e *Encoder) {
	r.ResponseHeader.Encode(e)
	writeStatusCodes(e, r.Results)
	e.WriteInt32(0)
}

// CreateMonitoredItemsRequest adds monitored items to a subscription.
type CreateMonitoredItemsRequest struct {
	RequestHeader      RequestHeader
	SubscriptionID     uint32
	TimestampsToReturn TimestampsToReturn
	ItemsToCreate      []MonitoredItemCreateRequest
}

func (r *CreateMonitoredItemsRequest) ServiceID() ServiceID   { return ServiceCreateMonitoredItems }
func (r *CreateMonitoredItemsRequest) Header() *RequestHeader { return &r.RequestHeader }

func (r *CreateMonitoredItemsRequest) Encode(e *Encoder) {
	r.RequestHeader.Encode(e)
	e.WriteUInt32(r.SubscriptionID)
	e.WriteUInt32(uint32(r.TimestampsToReturn))
	e.WriteInt32(int32(len(r.ItemsToCreate)))
	for i := range r.ItemsToCreate {
		item := &r.ItemsToCreate[i]
		encodeReadValueID(e, &item.ItemToMonitor)
		e.WriteUInt32(uint32(item.MonitoringMode))
		e.WriteUInt32(item.RequestedParameters.ClientHandle)
		e.WriteDouble(item.RequestedParameters.SamplingInterval)
		e.WriteNullExtensionObject() // filter
		e.WriteUInt32(item.RequestedParameters.QueueSize)
		e.WriteBoolean(item.RequestedParameters.DiscardOldest)
	}
}

func (r *CreateMonitoredItemsRequest) Decode(d *Decoder) {
	r.RequestHeader.Decode(d)
	r.SubscriptionID = d.ReadUInt32()
	r.TimestampsToReturn = TimestampsToReturn(d.ReadUInt32())
	if n := d.ReadArrayLength(); n > 0 {
		r.ItemsToCreate = make([]MonitoredItemCreateRequest, 0, n)
		for i := 0; i < n && d.Err() == nil; i++ {
			var item MonitoredItemCreateRequest
			item.ItemToMonitor = decodeReadValueID(d)
			item.MonitoringMode = MonitoringMode(d.ReadUInt32())
			item.RequestedParameters.ClientHandle = d.ReadUInt32()
			item.RequestedParameters.SamplingInterval = d.ReadDouble()
			d.ReadExtensionObject()
			item.RequestedParameters.QueueSize = d.ReadUInt32()
			item.RequestedParameters.DiscardOldest = d.ReadBoolean()
			r.ItemsToCreate = append(r.ItemsToCreate, item)
		}
	}
}

// CreateMonitoredItemsResponse carries one result per requested item.
type CreateMonitoredItemsResponse struct {
	ResponseHeader ResponseHeader
	Results        []MonitoredItemCreateResult
}

func (r *CreateMonitoredItemsResponse) Header() *ResponseHeader { return &r.ResponseHeader }

func (r *CreateMonitoredItemsResponse) Decode(d *Decoder) {
	r.ResponseHeader.Decode(d)
	if r.ResponseHeader.ServiceResult.IsBad() {
		return
	}
	if n := d.ReadArrayLength(); n > 0 {
		r.Results = make([]MonitoredItemCreateResult, 0, n)
		for i := 0; i < n && d.Err() == nil; i++ {
			res := MonitoredItemCreateResult{
				StatusCode:              d.ReadStatusCode(),
				MonitoredItemID:         d.ReadUInt32(),
				RevisedSamplingInterval: d.ReadDouble(),
				RevisedQueueSize:        d.ReadUInt32(),
			}
			d.ReadExtensionObject() // filter result
			r.Results = append(r.Results, res)
		}
	}
	d.SkipDiagnosticInfoArray()
}

func (r *CreateMonitoredItemsResponse) Encode(e *Encoder) {
	r.ResponseHeader.Encode(e)
	e.WriteInt32(int32(len(r.Results)))
	for _, res := range r.Results {
		e.WriteStatusCode(res.StatusCode)
		e.WriteUInt32(res.MonitoredItemID)
		e.WriteDouble(res.RevisedSamplingInterval)
		e.WriteUInt32(res.RevisedQueueSize)
		e.WriteNullExtensionObject()
	}
	e.WriteInt32(0)
}

// DeleteMonitoredItemsRequest removes monitored items from a subscription.
type DeleteMonitoredItemsRequest struct {
	RequestHeader    RequestHeader
	SubscriptionID   uint32
	MonitoredItemIDs []uint32
}

func (r *DeleteMonitoredItemsRequest) ServiceID() ServiceID   { return ServiceDeleteMonitoredItems }
func (r *DeleteMonitoredItemsRequest) Header() *RequestHeader { return &r.RequestHeader }

func (r *DeleteMonitoredItemsRequest) Encode(e *Encoder) {
	r.RequestHeader.Encode(e)
	e.WriteUInt32(r.SubscriptionID)
	e.WriteUInt32Array(r.MonitoredItemIDs)
}

func (r *DeleteMonitoredItemsRequest) Decode(d *Decoder) {
	r.RequestHeader.Decode(d)
	r.SubscriptionID = d.ReadUInt32()
	r.MonitoredItemIDs = d.ReadUInt32Array()
}

// DeleteMonitoredItemsResponse carries one StatusCode per item.
type DeleteMonitoredItemsResponse struct {
	ResponseHeader ResponseHeader
	Results        []StatusCode
}

func (r *DeleteMonitoredItemsResponse) Header() *ResponseHeader { return &r.ResponseHeader }

func (r *DeleteMonitoredItemsResponse) Decode(d *Decoder) {
	r.ResponseHeader.Decode(d)
	if r.ResponseHeader.ServiceResult.IsBad() {
		return
	}
	r.Results = d.ReadStatusCodeArray()
	d.SkipDiagnosticInfoArray()
}

func (r *DeleteMonitoredItemsResponse) Encode(e *Encoder) {
	r.ResponseHeader.Encode(e)
	writeStatusCodes(e, r.Results)
	e.WriteInt32(0)
}

func writeStatusCodes(e *Encoder, codes []StatusCode) {
	e.WriteInt32(int32(len(codes)))
	for _, c := range codes {
		e.WriteStatusCode(c)
	}
}
