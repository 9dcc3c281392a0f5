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
	"bytes"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// NodeIDType represents the identifier kind of a NodeID.
type NodeIDType uint8

// NodeID identifier kinds.
const (
	NodeIDTypeNumeric NodeIDType = iota
	NodeIDTypeString
	NodeIDTypeGUID
	NodeIDTypeOpaque
)

// NodeID identifies a node in a server address space. The zero value is the
// null NodeID (ns=0;i=0).
type NodeID struct {
	Type      NodeIDType
	Namespace uint16
	Numeric   uint32
	StringID  string
	GUID      uuid.UUID
	Opaque    []byte
}

// NewNumericNodeID creates a numeric NodeID.
func NewNumericNodeID(namespace uint16, id uint32) NodeID {
	return NodeID{Type: NodeIDTypeNumeric, Namespace: namespace, Numeric: id}
}

// NewStringNodeID creates a string NodeID.
func NewStringNodeID(namespace uint16, id string) NodeID {
	return NodeID{Type: NodeIDTypeString, Namespace: namespace, StringID: id}
}

// NewGUIDNodeID creates a GUID NodeID.
func NewGUIDNodeID(namespace uint16, id uuid.UUID) NodeID {
	return NodeID{Type: NodeIDTypeGUID, Namespace: namespace, GUID: id}
}

// NewOpaqueNodeID creates an opaque NodeID.
func NewOpaqueNodeID(namespace uint16, id []byte) NodeID {
	return NodeID{Type: NodeIDTypeOpaque, Namespace: namespace, Opaque: id}
}

// IsNull reports whether n is the null NodeID.
func (n NodeID) IsNull() bool {
	switch n.Type {
	case NodeIDTypeNumeric:
		return n.Namespace == 0 && n.Numeric == 0
	case NodeIDTypeString:
		return n.Namespace == 0 && n.StringID == ""
	case NodeIDTypeGUID:
		return n.Namespace == 0 && n.GUID == uuid.Nil
	case NodeIDTypeOpaque:
		return n.Namespace == 0 && len(n.Opaque) == 0
	}
	return false
}

// Equal reports whether two NodeIDs identify the same node.
func (n NodeID) Equal(o NodeID) bool {
	if n.Type != o.Type || n.Namespace != o.Namespace {
		return false
	}
	switch n.Type {
	case NodeIDTypeNumeric:
		return n.Numeric == o.Numeric
	case NodeIDTypeString:
		return n.StringID == o.StringID
	case NodeIDTypeGUID:
		return n.GUID == o.GUID
	case NodeIDTypeOpaque:
		return bytes.Equal(n.Opaque, o.Opaque)
	}
	return false
}

// String formats the NodeID in the standard text notation, e.g. "ns=2;s=Tag1".
// The namespace prefix is omitted for namespace 0.
func (n NodeID) String() string {
	var id string
	switch n.Type {
	case NodeIDTypeNumeric:
		id = "i=" + strconv.FormatUint(uint64(n.Numeric), 10)
	case NodeIDTypeString:
		id = "s=" + n.StringID
	case NodeIDTypeGUID:
		id = "g=" + n.GUID.String()
	case NodeIDTypeOpaque:
		id = "b=" + base64.StdEncoding.EncodeToString(n.Opaque)
	default:
		return fmt.Sprintf("<unknown node id type %d>", n.Type)
	}
	if n.Namespace == 0 {
		return id
	}
	return "ns=" + strconv.FormatUint(uint64(n.Namespace), 10) + ";" + id
}

// ParseNodeID parses the standard text notation. A bare number is read as a
// numeric identifier and any other bare text as a string identifier.
func ParseNodeID(s string) (NodeID, error) {
	var ns uint16
	identifier := s

	if strings.HasPrefix(s, "ns=") {
		prefix, rest, ok := strings.Cut(s, ";")
		if !ok {
			return NodeID{}, fmt.Errorf("invalid node id %q: missing identifier", s)
		}
		v, err := strconv.ParseUint(strings.TrimPrefix(prefix, "ns="), 10, 16)
		if err != nil {
			return NodeID{}, fmt.Errorf("invalid namespace in node id %q: %w", s, err)
		}
		ns = uint16(v)
		identifier = rest
	}

	switch {
	case strings.HasPrefix(identifier, "i="):
		v, err := strconv.ParseUint(identifier[2:], 10, 32)
		if err != nil {
			return NodeID{}, fmt.Errorf("invalid numeric identifier in node id %q: %w", s, err)
		}
		return NewNumericNodeID(ns, uint32(v)), nil
	case strings.HasPrefix(identifier, "s="):
		return NewStringNodeID(ns, identifier[2:]), nil
	case strings.HasPrefix(identifier, "g="):
		g, err := uuid.Parse(identifier[2:])
		if err != nil {
			return NodeID{}, fmt.Errorf("invalid guid identifier in node id %q: %w", s, err)
		}
		return NewGUIDNodeID(ns, g), nil
	case strings.HasPrefix(identifier, "b="):
		b, err := base64.StdEncoding.DecodeString(identifier[2:])
		if err != nil {
			return NodeID{}, fmt.Errorf("invalid opaque identifier in node id %q: %w", s, err)
		}
		return NewOpaqueNodeID(ns, b), nil
	}

	if identifier == "" {
		return NodeID{}, fmt.Errorf("invalid node id %q: empty identifier", s)
	}
	if v, err := strconv.ParseUint(identifier, 10, 32); err == nil {
		return NewNumericNodeID(ns, uint32(v)), nil
	}
	return NewStringNodeID(ns, identifier), nil
}

// MustParseNodeID is like ParseNodeID but panics on error.
func MustParseNodeID(s string) NodeID {
	n, err := ParseNodeID(s)
	if err != nil {
		panic(err)
	}
	return n
}

// Well-known nodes in namespace 0.
var (
	RootFolder              = NewNumericNodeID(0, 84)
	ObjectsFolder           = NewNumericNodeID(0, 85)
	TypesFolder             = NewNumericNodeID(0, 86)
	ViewsFolder             = NewNumericNodeID(0, 87)
	ServerNode              = NewNumericNodeID(0, 2253)
	ServerStatusCurrentTime = NewNumericNodeID(0, 2258)
	HierarchicalReferences  = NewNumericNodeID(0, 33)
)
