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
	"encoding/binary"
	"math"
	"time"

	"github.com/google/uuid"
)

// epochOffset is the number of 100ns ticks between 1601-01-01 and 1970-01-01.
const epochOffset = 116444736000000000

// Encoder writes OPC UA binary encodings into a growing buffer.
type Encoder struct {
	buf bytes.Buffer
}

// NewEncoder creates an empty encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Bytes returns the encoded bytes.
func (e *Encoder) Bytes() []byte {
	return e.buf.Bytes()
}

// Len returns the number of encoded bytes.
func (e *Encoder) Len() int {
	return e.buf.Len()
}

// Reset discards the encoded bytes.
func (e *Encoder) Reset() {
	e.buf.Reset()
}

// WriteRaw appends b without a length prefix.
func (e *Encoder) WriteRaw(b []byte) {
	e.buf.Write(b)
}

func (e *Encoder) WriteBoolean(v bool) {
	if v {
		e.buf.WriteByte(1)
		return
	}
	e.buf.WriteByte(0)
}

// WriteUInt8 writes a single Byte. The name avoids clashing with io.ByteWriter.
func (e *Encoder) WriteUInt8(v byte) {
	e.buf.WriteByte(v)
}

func (e *Encoder) WriteSByte(v int8) {
	e.buf.WriteByte(byte(v))
}

func (e *Encoder) WriteUInt16(v uint16) {
	e.buf.Write(binary.LittleEndian.AppendUint16(nil, v))
}

func (e *Encoder) WriteInt16(v int16) {
	e.WriteUInt16(uint16(v))
}

func (e *Encoder) WriteUInt32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.buf.Write(b[:])
}

func (e *Encoder) WriteInt32(v int32) {
	e.WriteUInt32(uint32(v))
}

func (e *Encoder) WriteUInt64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.buf.Write(b[:])
}

func (e *Encoder) WriteInt64(v int64) {
	e.WriteUInt64(uint64(v))
}

func (e *Encoder) WriteFloat(v float32) {
	e.WriteUInt32(math.Float32bits(v))
}

func (e *Encoder) WriteDouble(v float64) {
	e.WriteUInt64(math.Float64bits(v))
}

// WriteString writes a length-prefixed UTF-8 string. The empty string is
// encoded as the null string.
func (e *Encoder) WriteString(v string) {
	if v == "" {
		e.WriteInt32(-1)
		return
	}
	e.WriteInt32(int32(len(v)))
	e.buf.WriteString(v)
}

// WriteByteString writes a length-prefixed byte string. nil is encoded as the
// null byte string.
func (e *Encoder) WriteByteString(v []byte) {
	if v == nil {
		e.WriteInt32(-1)
		return
	}
	e.WriteInt32(int32(len(v)))
	e.buf.Write(v)
}

// WriteDateTime writes t as 100ns ticks since 1601. The zero time is 0.
func (e *Encoder) WriteDateTime(t time.Time) {
	if t.IsZero() {
		e.WriteInt64(0)
		return
	}
	e.WriteInt64(t.UnixNano()/100 + epochOffset)
}

// WriteGUID writes a GUID in its mixed-endian wire layout.
func (e *Encoder) WriteGUID(v uuid.UUID) {
	e.WriteUInt32(binary.BigEndian.Uint32(v[0:4]))
	e.WriteUInt16(binary.BigEndian.Uint16(v[4:6]))
	e.WriteUInt16(binary.BigEndian.Uint16(v[6:8]))
	e.buf.Write(v[8:16])
}

// WriteNodeID writes n using the most compact encoding that fits.
func (e *Encoder) WriteNodeID(n NodeID) {
	e.writeNodeID(n, 0)
}

// WriteExpandedNodeID writes n as an ExpandedNodeID with no namespace URI and
// no server index.
func (e *Encoder) WriteExpandedNodeID(n NodeID) {
	e.writeNodeID(n, 0)
}

func (e *Encoder) writeNodeID(n NodeID, flags byte) {
	switch n.Type {
	case NodeIDTypeNumeric:
		switch {
		case n.Namespace == 0 && n.Numeric <= math.MaxUint8:
			e.WriteUInt8(0x00 | flags)
			e.WriteUInt8(byte(n.Numeric))
		case n.Namespace <= math.MaxUint8 && n.Numeric <= math.MaxUint16:
			e.WriteUInt8(0x01 | flags)
			e.WriteUInt8(byte(n.Namespace))
			e.WriteUInt16(uint16(n.Numeric))
		default:
			e.WriteUInt8(0x02 | flags)
			e.WriteUInt16(n.Namespace)
			e.WriteUInt32(n.Numeric)
		}
	case NodeIDTypeString:
		e.WriteUInt8(0x03 | flags)
		e.WriteUInt16(n.Namespace)
		e.WriteString(n.StringID)
	case NodeIDTypeGUID:
		e.WriteUInt8(0x04 | flags)
		e.WriteUInt16(n.Namespace)
		e.WriteGUID(n.GUID)
	case NodeIDTypeOpaque:
		e.WriteUInt8(0x05 | flags)
		e.WriteUInt16(n.Namespace)
		e.WriteByteString(n.Opaque)
	}
}

func (e *Encoder) WriteStatusCode(s StatusCode) {
	e.WriteUInt32(uint32(s))
}

func (e *Encoder) WriteQualifiedName(q QualifiedName) {
	e.WriteUInt16(q.NamespaceIndex)
	e.WriteString(q.Name)
}

func (e *Encoder) WriteLocalizedText(l LocalizedText) {
	var mask byte
	if l.Locale != "" {
		mask |= 0x01
	}
	if l.Text != "" {
		mask |= 0x02
	}
	e.WriteUInt8(mask)
	if l.Locale != "" {
		e.WriteString(l.Locale)
	}
	if l.Text != "" {
		e.WriteString(l.Text)
	}
}

// WriteStringArray writes a length-prefixed string array. nil is the null
// array.
func (e *Encoder) WriteStringArray(v []string) {
	if v == nil {
		e.WriteInt32(-1)
		return
	}
	e.WriteInt32(int32(len(v)))
	for _, s := range v {
		e.WriteString(s)
	}
}

// WriteUInt32Array writes a length-prefixed uint32 array.
func (e *Encoder) WriteUInt32Array(v []uint32) {
	if v == nil {
		e.WriteInt32(-1)
		return
	}
	e.WriteInt32(int32(len(v)))
	for _, x := range v {
		e.WriteUInt32(x)
	}
}

// WriteNullExtensionObject writes an ExtensionObject with no body.
func (e *Encoder) WriteNullExtensionObject() {
	e.WriteNodeID(NodeID{})
	e.WriteUInt8(0x00)
}

// WriteExtensionObject writes body as a binary-encoded ExtensionObject of the
// given encoding id.
func (e *Encoder) WriteExtensionObject(encodingID uint32, body []byte) {
	e.WriteNodeID(NewNumericNodeID(0, encodingID))
	e.WriteUInt8(0x01)
	e.WriteByteString(body)
}

// WriteVariant writes a scalar or one-dimensional array Variant.
func (e *Encoder) WriteVariant(v Variant) {
	if v.Type == TypeNull || v.Value == nil {
		e.WriteUInt8(0)
		return
	}
	if arr, ok := v.Value.([]interface{}); ok {
		e.WriteUInt8(byte(v.Type) | 0x80)
		e.WriteInt32(int32(len(arr)))
		for _, item := range arr {
			e.writeScalar(v.Type, item)
		}
		return
	}
	e.WriteUInt8(byte(v.Type))
	e.writeScalar(v.Type, v.Value)
}

func (e *Encoder) writeScalar(t TypeID, v interface{}) {
	switch t {
	case TypeBoolean:
		e.WriteBoolean(v.(bool))
	case TypeSByte:
		e.WriteSByte(v.(int8))
	case TypeByte:
		e.WriteUInt8(v.(byte))
	case TypeInt16:
		e.WriteInt16(v.(int16))
	case TypeUInt16:
		e.WriteUInt16(v.(uint16))
	case TypeInt32:
		e.WriteInt32(v.(int32))
	case TypeUInt32:
		e.WriteUInt32(v.(uint32))
	case TypeInt64:
		e.WriteInt64(v.(int64))
	case TypeUInt64:
		e.WriteUInt64(v.(uint64))
	case TypeFloat:
		e.WriteFloat(v.(float32))
	case TypeDouble:
		e.WriteDouble(v.(float64))
	case TypeString:
		e.WriteString(v.(string))
	case TypeDateTime:
		e.WriteDateTime(v.(time.Time))
	case TypeGUID:
		e.WriteGUID(v.(uuid.UUID))
	case TypeByteString:
		e.WriteByteString(v.([]byte))
	case TypeNodeID:
		e.WriteNodeID(v.(NodeID))
	case TypeStatusCode:
		e.WriteStatusCode(v.(StatusCode))
	case TypeQualifiedName:
		e.WriteQualifiedName(v.(QualifiedName))
	case TypeLocalizedText:
		e.WriteLocalizedText(v.(LocalizedText))
	}
}

// WriteDataValue writes dv, including only the fields that are set.
func (e *Encoder) WriteDataValue(dv DataValue) {
	var mask byte
	if dv.Value != nil {
		mask |= 0x01
	}
	if dv.StatusCode != StatusGood {
		mask |= 0x02
	}
	if !dv.SourceTimestamp.IsZero() {
		mask |= 0x04
	}
	if !dv.ServerTimestamp.IsZero() {
		mask |= 0x08
	}
	if dv.SourcePicoseconds != 0 {
		mask |= 0x10
	}
	if dv.ServerPicoseconds != 0 {
		mask |= 0x20
	}

	e.WriteUInt8(mask)
	if mask&0x01 != 0 {
		e.WriteVariant(*dv.Value)
	}
	if mask&0x02 != 0 {
		e.WriteStatusCode(dv.StatusCode)
	}
	if mask&0x04 != 0 {
		e.WriteDateTime(dv.SourceTimestamp)
	}
	if mask&0x10 != 0 {
		e.WriteUInt16(dv.SourcePicoseconds)
	}
	if mask&0x08 != 0 {
		e.WriteDateTime(dv.ServerTimestamp)
	}
	if mask&0x20 != 0 {
		e.WriteUInt16(dv.ServerPicoseconds)
	}
}
