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

// ServiceID is the binary encoding id of a service request. The matching
// response is encoded under ServiceID + 3.
type ServiceID uint32

// Service request encoding ids.
const (
	ServiceOpenSecureChannel    ServiceID = 446
	ServiceCloseSecureChannel   ServiceID = 452
	ServiceGetEndpoints         ServiceID = 428
	ServiceCreateSession        ServiceID = 461
	ServiceActivateSession      ServiceID = 467
	ServiceCloseSession         ServiceID = 473
	ServiceBrowse               ServiceID = 527
	ServiceTranslateBrowsePaths ServiceID = 554
	ServiceRead                 ServiceID = 631
	ServiceWrite                ServiceID = 673
	ServiceCall                 ServiceID = 712
	ServiceCreateMonitoredItems ServiceID = 751
	ServiceDeleteMonitoredItems ServiceID = 781
	ServiceCreateSubscription   ServiceID = 787
	ServicePublish              ServiceID = 826
	ServiceRepublish            ServiceID = 832
	ServiceDeleteSubscriptions  ServiceID = 847
)

// Encoding ids of structures that are not service requests.
const (
	ServiceFaultEncoding             uint32 = 397
	AnonymousIdentityTokenEncoding   uint32 = 321
	UserNameIdentityTokenEncoding    uint32 = 324
	X509IdentityTokenEncoding        uint32 = 327
	DataChangeNotificationEncoding   uint32 = 811
	StatusChangeNotificationEncoding uint32 = 820
	EventNotificationListEncoding    uint32 = 916
)

// ResponseID returns the encoding id of the response to s.
func (s ServiceID) ResponseID() uint32 {
	return uint32(s) + 3
}

// String returns the service name.
func (s ServiceID) String() string {
	switch s {
	case ServiceOpenSecureChannel:
		return "OpenSecureChannel"
	case ServiceCloseSecureChannel:
		return "CloseSecureChannel"
	case ServiceGetEndpoints:
		return "GetEndpoints"
	case ServiceCreateSession:
		return "CreateSession"
	case ServiceActivateSession:
		return "ActivateSession"
	case ServiceCloseSession:
		return "CloseSession"
	case ServiceBrowse:
		return "Browse"
	case ServiceTranslateBrowsePaths:
		return "TranslateBrowsePathsToNodeIds"
	case ServiceRead:
		return "Read"
	case ServiceWrite:
		return "Write"
	case ServiceCall:
		return "Call"
	case ServiceCreateMonitoredItems:
		return "CreateMonitoredItems"
	case ServiceDeleteMonitoredItems:
		return "DeleteMonitoredItems"
	case ServiceCreateSubscription:
		return "CreateSubscription"
	case ServicePublish:
		return "Publish"
	case ServiceRepublish:
		return "Republish"
	case ServiceDeleteSubscriptions:
		return "DeleteSubscriptions"
	default:
		return fmt.Sprintf("Service(%d)", uint32(s))
	}
}

// AttributeID identifies a node attribute.
type AttributeID uint32

// Node attributes.
const (
	AttributeNodeID                  AttributeID = 1
	AttributeNodeClass               AttributeID = 2
	AttributeBrowseName              AttributeID = 3
	AttributeDisplayName             AttributeID = 4
	AttributeDescription             AttributeID = 5
	AttributeWriteMask               AttributeID = 6
	AttributeUserWriteMask           AttributeID = 7
	AttributeIsAbstract              AttributeID = 8
	AttributeSymmetric               AttributeID = 9
	AttributeInverseName             AttributeID = 10
	AttributeContainsNoLoops         AttributeID = 11
	AttributeEventNotifier           AttributeID = 12
	AttributeValue                   AttributeID = 13
	AttributeDataType                AttributeID = 14
	AttributeValueRank               AttributeID = 15
	AttributeArrayDimensions         AttributeID = 16
	AttributeAccessLevel             AttributeID = 17
	AttributeUserAccessLevel         AttributeID = 18
	AttributeMinimumSamplingInterval AttributeID = 19
	AttributeHistorizing             AttributeID = 20
	AttributeExecutable              AttributeID = 21
	AttributeUserExecutable          AttributeID = 22
)

var attributeNames = map[AttributeID]string{
	AttributeNodeID:                  "NodeId",
	AttributeNodeClass:               "NodeClass",
	AttributeBrowseName:              "BrowseName",
	AttributeDisplayName:             "DisplayName",
	AttributeDescription:             "Description",
	AttributeWriteMask:               "WriteMask",
	AttributeUserWriteMask:           "UserWriteMask",
	AttributeIsAbstract:              "IsAbstract",
	AttributeSymmetric:               "Symmetric",
	AttributeInverseName:             "InverseName",
	AttributeContainsNoLoops:         "ContainsNoLoops",
	AttributeEventNotifier:           "EventNotifier",
	AttributeValue:                   "Value",
	AttributeDataType:                "DataType",
	AttributeValueRank:               "ValueRank",
	AttributeArrayDimensions:         "ArrayDimensions",
	AttributeAccessLevel:             "AccessLevel",
	AttributeUserAccessLevel:         "UserAccessLevel",
	AttributeMinimumSamplingInterval: "MinimumSamplingInterval",
	AttributeHistorizing:             "Historizing",
	AttributeExecutable:              "Executable",
	AttributeUserExecutable:          "UserExecutable",
}

func (a AttributeID) String() string {
	if name, ok := attributeNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Attribute(%d)", uint32(a))
}

// ParseAttributeID resolves an attribute by name, case-sensitively.
func ParseAttributeID(name string) (AttributeID, bool) {
	for id, n := range attributeNames {
		if n == name {
			return id, true
		}
	}
	return 0, false
}

// NodeClass is the class of a node.
type NodeClass uint32

// Node classes.
const (
	NodeClassUnspecified   NodeClass = 0
	NodeClassObject        NodeClass = 1
	NodeClassVariable      NodeClass = 2
	NodeClassMethod        NodeClass = 4
	NodeClassObjectType    NodeClass = 8
	NodeClassVariableType  NodeClass = 16
	NodeClassReferenceType NodeClass = 32
	NodeClassDataType      NodeClass = 64
	NodeClassView          NodeClass = 128
)

func (n NodeClass) String() string {
	switch n {
	case NodeClassUnspecified:
		return "Unspecified"
	case NodeClassObject:
		return "Object"
	case NodeClassVariable:
		return "Variable"
	case NodeClassMethod:
		return "Method"
	case NodeClassObjectType:
		return "ObjectType"
	case NodeClassVariableType:
		return "VariableType"
	case NodeClassReferenceType:
		return "ReferenceType"
	case NodeClassDataType:
		return "DataType"
	case NodeClassView:
		return "View"
	default:
		return fmt.Sprintf("NodeClass(%d)", uint32(n))
	}
}

// BrowseDirection selects which references a Browse follows.
type BrowseDirection uint32

const (
	BrowseDirectionForward BrowseDirection = 0
	BrowseDirectionInverse BrowseDirection = 1
	BrowseDirectionBoth    BrowseDirection = 2
)

// TimestampsToReturn selects which timestamps a server attaches to values.
type TimestampsToReturn uint32

const (
	TimestampsSource  TimestampsToReturn = 0
	TimestampsServer  TimestampsToReturn = 1
	TimestampsBoth    TimestampsToReturn = 2
	TimestampsNeither TimestampsToReturn = 3
)

// MessageSecurityMode is the security mode of a secure channel.
type MessageSecurityMode uint32

const (
	MessageSecurityModeInvalid        MessageSecurityMode = 0
	MessageSecurityModeNone           MessageSecurityMode = 1
	MessageSecurityModeSign           MessageSecurityMode = 2
	MessageSecurityModeSignAndEncrypt MessageSecurityMode = 3
)

func (m MessageSecurityMode) String() string {
	switch m {
	case MessageSecurityModeNone:
		return "None"
	case MessageSecurityModeSign:
		return "Sign"
	case MessageSecurityModeSignAndEncrypt:
		return "SignAndEncrypt"
	default:
		return "Invalid"
	}
}

// SecurityPolicyNone is the only security policy the client speaks.
const SecurityPolicyNone = "http://opcfoundation.org/UA/SecurityPolicy#None"

// Protocol limits proposed during the HEL/ACK exchange.
const (
	ProtocolVersion          uint32 = 0
	DefaultReceiveBufferSize uint32 = 65536
	DefaultSendBufferSize    uint32 = 65536
	DefaultMaxMessageSize    uint32 = 16 * 1024 * 1024
	DefaultMaxChunkCount     uint32 = 0
	DefaultPort              = 4840
)

// TypeID is the id of a built-in type as used in Variant encodings.
type TypeID uint8

// Built-in types.
const (
	TypeNull            TypeID = 0
	TypeBoolean         TypeID = 1
	TypeSByte           TypeID = 2
	TypeByte            TypeID = 3
	TypeInt16           TypeID = 4
	TypeUInt16          TypeID = 5
	TypeInt32           TypeID = 6
	TypeUInt32          TypeID = 7
	TypeInt64           TypeID = 8
	TypeUInt64          TypeID = 9
	TypeFloat           TypeID = 10
	TypeDouble          TypeID = 11
	TypeString          TypeID = 12
	TypeDateTime        TypeID = 13
	TypeGUID            TypeID = 14
	TypeByteString      TypeID = 15
	TypeXMLElement      TypeID = 16
	TypeNodeID          TypeID = 17
	TypeExpandedNodeID  TypeID = 18
	TypeStatusCode      TypeID = 19
	TypeQualifiedName   TypeID = 20
	TypeLocalizedText   TypeID = 21
	TypeExtensionObject TypeID = 22
	TypeDataValue       TypeID = 23
	TypeVariant         TypeID = 24
	TypeDiagnosticInfo  TypeID = 25
)

var typeNames = map[TypeID]string{
	TypeNull:          "Null",
	TypeBoolean:       "Boolean",
	TypeSByte:         "SByte",
	TypeByte:          "Byte",
	TypeInt16:         "Int16",
	TypeUInt16:        "UInt16",
	TypeInt32:         "Int32",
	TypeUInt32:        "UInt32",
	TypeInt64:         "Int64",
	TypeUInt64:        "UInt64",
	TypeFloat:         "Float",
	TypeDouble:        "Double",
	TypeString:        "String",
	TypeDateTime:      "DateTime",
	TypeGUID:          "Guid",
	TypeByteString:    "ByteString",
	TypeNodeID:        "NodeId",
	TypeStatusCode:    "StatusCode",
	TypeQualifiedName: "QualifiedName",
	TypeLocalizedText: "LocalizedText",
}

func (t TypeID) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

// QualifiedName is a name qualified by a namespace index.
type QualifiedName struct {
	NamespaceIndex uint16
	Name           string
}

// LocalizedText is human readable text with an optional locale.
type LocalizedText struct {
	Locale string
	Text   string
}

// Variant holds a value of a built-in type. Arrays are held as []interface{}.
type Variant struct {
	Type  TypeID
	Value interface{}
}

// NewVariant wraps a Go value, inferring its built-in type. Unsupported values
// produce a null Variant.
func NewVariant(v interface{}) Variant {
	switch v.(type) {
	case nil:
		return Variant{}
	case bool:
		return Variant{Type: TypeBoolean, Value: v}
	case int8:
		return Variant{Type: TypeSByte, Value: v}
	case byte:
		return Variant{Type: TypeByte, Value: v}
	case int16:
		return Variant{Type: TypeInt16, Value: v}
	case uint16:
		return Variant{Type: TypeUInt16, Value: v}
	case int32:
		return Variant{Type: TypeInt32, Value: v}
	case uint32:
		return Variant{Type: TypeUInt32, Value: v}
	case int64:
		return Variant{Type: TypeInt64, Value: v}
	case uint64:
		return Variant{Type: TypeUInt64, Value: v}
	case float32:
		return Variant{Type: TypeFloat, Value: v}
	case float64:
		return Variant{Type: TypeDouble, Value: v}
	case string:
		return Variant{Type: TypeString, Value: v}
	case time.Time:
		return Variant{Type: TypeDateTime, Value: v}
	case []byte:
		return Variant{Type: TypeByteString, Value: v}
	case NodeID:
		return Variant{Type: TypeNodeID, Value: v}
	case StatusCode:
		return Variant{Type: TypeStatusCode, Value: v}
	case QualifiedName:
		return Variant{Type: TypeQualifiedName, Value: v}
	case LocalizedText:
		return Variant{Type: TypeLocalizedText, Value: v}
	}
	return Variant{}
}

// DataValue is a value with its status and timestamps.
type DataValue struct {
	Value             *Variant
	StatusCode        StatusCode
	SourceTimestamp   time.Time
	ServerTimestamp   time.Time
	SourcePicoseconds uint16
	ServerPicoseconds uint16
}

// ReadValueID names a node attribute to read or monitor.
type ReadValueID struct {
	NodeID       NodeID
	AttributeID  AttributeID
	IndexRange   string
	DataEncoding QualifiedName
}

// WriteValue is a value to write to a node attribute.
type WriteValue struct {
	NodeID      NodeID
	AttributeID AttributeID
	IndexRange  string
	Value       DataValue
}

// ViewDescription restricts a Browse to a view. The zero value browses the
// whole address space.
type ViewDescription struct {
	ViewID      NodeID
	Timestamp   time.Time
	ViewVersion uint32
}

// BrowseDescription describes what to browse from a node.
type BrowseDescription struct {
	NodeID          NodeID
	BrowseDirection BrowseDirection
	ReferenceTypeID NodeID
	IncludeSubtypes bool
	NodeClassMask   uint32
	ResultMask      uint32
}

// ReferenceDescription is one reference returned by Browse.
type ReferenceDescription struct {
	ReferenceTypeID NodeID
	IsForward       bool
	NodeID          NodeID
	BrowseName      QualifiedName
	DisplayName     LocalizedText
	NodeClass       NodeClass
	TypeDefinition  NodeID
}

// BrowseResult is the result of browsing one node.
type BrowseResult struct {
	StatusCode        StatusCode
	ContinuationPoint []byte
	References        []ReferenceDescription
}

// RelativePathElement is one hop of a RelativePath.
type RelativePathElement struct {
	ReferenceTypeID NodeID
	IsInverse       bool
	IncludeSubtypes bool
	TargetName      QualifiedName
}

// RelativePath is a sequence of browse names followed from a starting node.
type RelativePath struct {
	Elements []RelativePathElement
}

// BrowsePath is a path to resolve to node ids.
type BrowsePath struct {
	StartingNode NodeID
	RelativePath RelativePath
}

// FullyResolved is the RemainingPathIndex of a target that matched every
// element of its path.
const FullyResolved = ^uint32(0)

// BrowsePathTarget is a node matched by a BrowsePath.
type BrowsePathTarget struct {
	TargetID           NodeID
	RemainingPathIndex uint32
}

// BrowsePathResult is the result of resolving one BrowsePath.
type BrowsePathResult struct {
	StatusCode StatusCode
	Targets    []BrowsePathTarget
}

// CallMethodRequest names a method and the object it is called on.
type CallMethodRequest struct {
	ObjectID       NodeID
	MethodID       NodeID
	InputArguments []Variant
}

// CallMethodResult is the outcome of one method call.
type CallMethodResult struct {
	StatusCode           StatusCode
	InputArgumentResults []StatusCode
	OutputArguments      []Variant
}

// ApplicationType is the kind of an OPC UA application.
type ApplicationType uint32

const (
	ApplicationTypeServer          ApplicationType = 0
	ApplicationTypeClient          ApplicationType = 1
	ApplicationTypeClientAndServer ApplicationType = 2
	ApplicationTypeDiscoveryServer ApplicationType = 3
)

// ApplicationDescription describes an OPC UA application.
type ApplicationDescription struct {
	ApplicationURI      string
	ProductURI          string
	ApplicationName     LocalizedText
	ApplicationType     ApplicationType
	GatewayServerURI    string
	DiscoveryProfileURI string
	DiscoveryURLs       []string
}

// UserTokenType is the kind of a user identity token.
type UserTokenType uint32

const (
	UserTokenTypeAnonymous   UserTokenType = 0
	UserTokenTypeUserName    UserTokenType = 1
	UserTokenTypeCertificate UserTokenType = 2
	UserTokenTypeIssuedToken UserTokenType = 3
)

// UserTokenPolicy is an identity token policy advertised by an endpoint.
type UserTokenPolicy struct {
	PolicyID          string
	TokenType         UserTokenType
	IssuedTokenType   string
	IssuerEndpointURL string
	SecurityPolicyURI string
}

// EndpointDescription describes a server endpoint.
type EndpointDescription struct {
	EndpointURL         string
	Server              ApplicationDescription
	ServerCertificate   []byte
	SecurityMode        MessageSecurityMode
	SecurityPolicyURI   string
	UserIdentityTokens  []UserTokenPolicy
	TransportProfileURI string
	SecurityLevel       uint8
}

// SignatureData holds a signature. Both fields stay empty under
// SecurityPolicyNone.
type SignatureData struct {
	Algorithm string
	Signature []byte
}

// MonitoringMode controls sampling and reporting of a monitored item.
type MonitoringMode uint32

const (
	MonitoringModeDisabled  MonitoringMode = 0
	MonitoringModeSampling  MonitoringMode = 1
	MonitoringModeReporting MonitoringMode = 2
)

// MonitoringParameters are the requested settings of a monitored item.
type MonitoringParameters struct {
	ClientHandle     uint32
	SamplingInterval float64
	QueueSize        uint32
	DiscardOldest    bool
}

// MonitoredItemCreateRequest describes a monitored item to create.
type MonitoredItemCreateRequest struct {
	ItemToMonitor       ReadValueID
	MonitoringMode      MonitoringMode
	RequestedParameters MonitoringParameters
}

// MonitoredItemCreateResult is the server's answer for one monitored item.
type MonitoredItemCreateResult struct {
	StatusCode              StatusCode
	MonitoredItemID         uint32
	RevisedSamplingInterval float64
	RevisedQueueSize        uint32
}
