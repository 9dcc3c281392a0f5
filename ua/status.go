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
	"errors"
	"fmt"
)

// StatusCode severity bits.
const (
	StatusSeverityGood      uint32 = 0x00000000
	StatusSeverityUncertain uint32 = 0x40000000
	StatusSeverityBad       uint32 = 0x80000000
	StatusSeverityMask      uint32 = 0xC0000000
)

// StatusCode is an OPC UA result code. A bad StatusCode is usable as an error.
type StatusCode uint32

// Status codes the client produces or reacts to.
const (
	StatusGood                         StatusCode = 0x00000000
	StatusUncertain                    StatusCode = 0x40000000
	StatusBad                          StatusCode = 0x80000000
	StatusBadUnexpectedError           StatusCode = 0x80010000
	StatusBadInternalError             StatusCode = 0x80020000
	StatusBadCommunicationError        StatusCode = 0x80050000
	StatusBadEncodingError             StatusCode = 0x80060000
	StatusBadDecodingError             StatusCode = 0x80070000
	StatusBadTimeout                   StatusCode = 0x800A0000
	StatusBadServiceUnsupported        StatusCode = 0x800B0000
	StatusBadShutdown                  StatusCode = 0x800C0000
	StatusBadServerHalted              StatusCode = 0x800E0000
	StatusBadNothingToDo               StatusCode = 0x800F0000
	StatusBadTooManyOperations         StatusCode = 0x80100000
	StatusBadUserAccessDenied          StatusCode = 0x801F0000
	StatusBadIdentityTokenInvalid      StatusCode = 0x80200000
	StatusBadIdentityTokenRejected     StatusCode = 0x80210000
	StatusBadSessionIDInvalid          StatusCode = 0x80250000
	StatusBadSessionClosed             StatusCode = 0x80260000
	StatusBadSessionNotActivated       StatusCode = 0x80270000
	StatusBadSubscriptionIDInvalid     StatusCode = 0x80280000
	StatusBadNodeIDInvalid             StatusCode = 0x80330000
	StatusBadNodeIDUnknown             StatusCode = 0x80340000
	StatusBadAttributeIDInvalid        StatusCode = 0x80350000
	StatusBadNotReadable               StatusCode = 0x803A0000
	StatusBadNotWritable               StatusCode = 0x803B0000
	StatusBadOutOfRange                StatusCode = 0x803C0000
	StatusBadNotSupported              StatusCode = 0x803D0000
	StatusBadMonitoredItemIDInvalid    StatusCode = 0x80420000
	StatusBadTooManySessions           StatusCode = 0x80560000
	StatusBadNoMatch                   StatusCode = 0x806F0000
	StatusBadTypeMismatch              StatusCode = 0x80740000
	StatusBadMethodInvalid             StatusCode = 0x80750000
	StatusBadArgumentsMissing          StatusCode = 0x80760000
	StatusBadTooManyPublishRequests    StatusCode = 0x80780000
	StatusBadNoSubscription            StatusCode = 0x80790000
	StatusBadSequenceNumberUnknown     StatusCode = 0x807A0000
	StatusBadMessageNotAvailable       StatusCode = 0x807B0000
	StatusBadTCPServerTooBusy          StatusCode = 0x807D0000
	StatusBadTCPMessageTypeInvalid     StatusCode = 0x807E0000
	StatusBadTCPSecureChannelUnknown   StatusCode = 0x807F0000
	StatusBadTCPMessageTooLarge        StatusCode = 0x80800000
	StatusBadTCPInternalError          StatusCode = 0x80820000
	StatusBadTCPEndpointURLInvalid     StatusCode = 0x80830000
	StatusBadRequestTimeout            StatusCode = 0x80850000
	StatusBadSecureChannelClosed       StatusCode = 0x80860000
	StatusBadSecureChannelTokenUnknown StatusCode = 0x80870000
	StatusBadNotConnected              StatusCode = 0x808A0000
	StatusBadInvalidArgument           StatusCode = 0x80AB0000
	StatusBadConnectionClosed          StatusCode = 0x80AE0000
	StatusBadInvalidState              StatusCode = 0x80AF0000
	StatusBadRequestTooLarge           StatusCode = 0x80B80000
	StatusBadResponseTooLarge          StatusCode = 0x80B90000
)

type statusCodeInfo struct {
	name        string
	description string
}

var statusCodes = map[StatusCode]statusCodeInfo{
	StatusGood:                         {"Good", "The operation completed successfully"},
	StatusUncertain:                    {"Uncertain", "The value is uncertain"},
	StatusBad:                          {"Bad", "The operation failed"},
	StatusBadUnexpectedError:           {"BadUnexpectedError", "An unexpected error occurred"},
	StatusBadInternalError:             {"BadInternalError", "An internal error occurred as a result of a programming or configuration error"},
	StatusBadCommunicationError:        {"BadCommunicationError", "A low level communication error occurred"},
	StatusBadEncodingError:             {"BadEncodingError", "Encoding halted because of invalid data in the objects being serialized"},
	StatusBadDecodingError:             {"BadDecodingError", "Decoding halted because of invalid data in the stream"},
	StatusBadTimeout:                   {"BadTimeout", "The operation timed out"},
	StatusBadServiceUnsupported:        {"BadServiceUnsupported", "The server does not support the requested service"},
	StatusBadShutdown:                  {"BadShutdown", "The operation was cancelled because the application is shutting down"},
	StatusBadServerHalted:              {"BadServerHalted", "The server has stopped and cannot process any requests"},
	StatusBadNothingToDo:               {"BadNothingToDo", "There was nothing to do because the client passed a list of operations with no elements"},
	StatusBadTooManyOperations:         {"BadTooManyOperations", "The request could not be processed because it specified too many operations"},
	StatusBadUserAccessDenied:          {"BadUserAccessDenied", "User does not have permission to perform the requested operation"},
	StatusBadIdentityTokenInvalid:      {"BadIdentityTokenInvalid", "The user identity token is not valid"},
	StatusBadIdentityTokenRejected:     {"BadIdentityTokenRejected", "The user identity token is valid but the server has rejected it"},
	StatusBadSessionIDInvalid:          {"BadSessionIdInvalid", "The session id is not valid"},
	StatusBadSessionClosed:             {"BadSessionClosed", "The session was closed by the client"},
	StatusBadSessionNotActivated:       {"BadSessionNotActivated", "The session cannot be used because ActivateSession has not been called"},
	StatusBadSubscriptionIDInvalid:     {"BadSubscriptionIdInvalid", "The subscription id is not valid"},
	StatusBadNodeIDInvalid:             {"BadNodeIdInvalid", "The syntax of the node id is not valid"},
	StatusBadNodeIDUnknown:             {"BadNodeIdUnknown", "The node id refers to a node that does not exist in the server address space"},
	StatusBadAttributeIDInvalid:        {"BadAttributeIdInvalid", "The attribute is not supported for the specified node"},
	StatusBadNotReadable:               {"BadNotReadable", "The access level does not allow reading or subscribing to the node"},
	StatusBadNotWritable:               {"BadNotWritable", "The access level does not allow writing to the node"},
	StatusBadOutOfRange:                {"BadOutOfRange", "The value was out of range"},
	StatusBadNotSupported:              {"BadNotSupported", "The requested operation is not supported"},
	StatusBadMonitoredItemIDInvalid:    {"BadMonitoredItemIdInvalid", "The monitoring item id does not refer to a valid monitored item"},
	StatusBadTooManySessions:           {"BadTooManySessions", "The server has reached its maximum number of sessions"},
	StatusBadNoMatch:                   {"BadNoMatch", "The requested operation has no match to return"},
	StatusBadMethodInvalid:             {"BadMethodInvalid", "The method id does not refer to a method for the specified object"},
	StatusBadArgumentsMissing:          {"BadArgumentsMissing", "The client did not specify all of the input arguments for the method"},
	StatusBadTypeMismatch:              {"BadTypeMismatch", "The value supplied for the attribute is not of the same type as the attribute's value"},
	StatusBadTooManyPublishRequests:    {"BadTooManyPublishRequests", "The server has reached the maximum number of queued publish requests"},
	StatusBadNoSubscription:            {"BadNoSubscription", "There is no subscription available for this session"},
	StatusBadSequenceNumberUnknown:     {"BadSequenceNumberUnknown", "The sequence number is unknown to the server"},
	StatusBadMessageNotAvailable:       {"BadMessageNotAvailable", "The requested notification message is no longer available"},
	StatusBadTCPServerTooBusy:          {"BadTcpServerTooBusy", "The server cannot process the request because it is too busy"},
	StatusBadTCPMessageTypeInvalid:     {"BadTcpMessageTypeInvalid", "The type of the message specified in the header invalid"},
	StatusBadTCPSecureChannelUnknown:   {"BadTcpSecureChannelUnknown", "The SecureChannelId and/or TokenId are not currently in use"},
	StatusBadTCPMessageTooLarge:        {"BadTcpMessageTooLarge", "The size of the message chunk specified in the header is too large"},
	StatusBadTCPInternalError:          {"BadTcpInternalError", "An internal error occurred"},
	StatusBadTCPEndpointURLInvalid:     {"BadTcpEndpointUrlInvalid", "The server does not recognize the query string specified"},
	StatusBadRequestTimeout:            {"BadRequestTimeout", "Timeout occurred while processing the request"},
	StatusBadSecureChannelClosed:       {"BadSecureChannelClosed", "The secure channel has been closed"},
	StatusBadSecureChannelTokenUnknown: {"BadSecureChannelTokenUnknown", "The token has expired or is not recognized"},
	StatusBadNotConnected:              {"BadNotConnected", "The variable should receive its value from another variable, but has never been configured to do so"},
	StatusBadInvalidArgument:           {"BadInvalidArgument", "One or more arguments are invalid"},
	StatusBadConnectionClosed:          {"BadConnectionClosed", "The network connection has been closed"},
	StatusBadInvalidState:              {"BadInvalidState", "The operation cannot be completed because the object is closed, uninitialized or in some other invalid state"},
	StatusBadRequestTooLarge:           {"BadRequestTooLarge", "The request message size exceeds limits set by the server"},
	StatusBadResponseTooLarge:          {"BadResponseTooLarge", "The response message size exceeds limits set by the client"},
}

// String returns the symbolic name of the status code.
func (s StatusCode) String() string {
	if info, ok := statusCodes[s]; ok {
		return info.name
	}
	return fmt.Sprintf("StatusCode(0x%08X)", uint32(s))
}

// Description returns a human readable description of the status code.
func (s StatusCode) Description() string {
	if info, ok := statusCodes[s]; ok {
		return info.description
	}
	switch {
	case s.IsGood():
		return "The operation completed successfully"
	case s.IsUncertain():
		return "The operation completed with an uncertain result"
	default:
		return "The operation failed"
	}
}

// Error implements the error interface.
func (s StatusCode) Error() string {
	if info, ok := statusCodes[s]; ok {
		return fmt.Sprintf("%s (0x%08X): %s", info.name, uint32(s), info.description)
	}
	return fmt.Sprintf("StatusCode 0x%08X", uint32(s))
}

// IsGood reports whether the severity is good.
func (s StatusCode) IsGood() bool {
	return uint32(s)&StatusSeverityMask == StatusSeverityGood
}

// IsUncertain reports whether the severity is uncertain.
func (s StatusCode) IsUncertain() bool {
	return uint32(s)&StatusSeverityMask == StatusSeverityUncertain
}

// IsBad reports whether the severity is bad.
func (s StatusCode) IsBad() bool {
	return uint32(s)&StatusSeverityMask == StatusSeverityBad
}

// ServiceError is a bad service result returned by a server, either as a
// ServiceFault or in the header of a typed response.
type ServiceError struct {
	Service    ServiceID
	StatusCode StatusCode
	Message    string
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("ua: %s failed: %s: %s", e.Service, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("ua: %s failed: %s", e.Service, e.StatusCode)
}

// Is matches another *ServiceError or a bare StatusCode with the same code.
func (e *ServiceError) Is(target error) bool {
	switch t := target.(type) {
	case *ServiceError:
		return e.StatusCode == t.StatusCode
	case StatusCode:
		return e.StatusCode == t
	}
	return false
}

// NewServiceError creates a ServiceError.
func NewServiceError(svc ServiceID, sc StatusCode, msg string) *ServiceError {
	return &ServiceError{Service: svc, StatusCode: sc, Message: msg}
}

var (
	// ErrInvalidMessage indicates a truncated or malformed message.
	ErrInvalidMessage = errors.New("ua: invalid message")

	// ErrUnknownType indicates a message body with an unregistered encoding id.
	ErrUnknownType = errors.New("ua: unknown type")
)

// IsStatusCode reports whether err carries the given status code.
func IsStatusCode(err error, code StatusCode) bool {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.StatusCode == code
	}
	var sc StatusCode
	if errors.As(err, &sc) {
		return sc == code
	}
	return false
}

// IsBadStatusCode reports whether err carries a bad status code.
func IsBadStatusCode(err error) bool {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.StatusCode.IsBad()
	}
	var sc StatusCode
	if errors.As(err, &sc) {
		return sc.IsBad()
	}
	return false
}
