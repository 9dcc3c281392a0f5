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
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// maxArrayLength bounds decoded array lengths so that a corrupt length prefix
// cannot trigger a huge allocation.
const maxArrayLength = 1 << 20

// Decoder reads OPC UA binary encodings. The first failure is sticky: later
// reads return zero values and Err reports the original failure.
type Decoder struct {
	data []byte
	pos  int
	err  error
}

// NewDecoder creates a decoder over data.
func NewDecoder(data []byte) *Decoder {
	return &Decoder{data: data}
}

// Err returns the first decoding failure, if any.
func (d *Decoder) Err() error {
	return d.err
}

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int {
	return len(d.data) - d.pos
}

// Fail records err unless a failure is already recorded.
func (d *Decoder) Fail(err error) {
	if d.err == nil {
		d.err = err
	}
}

func (d *Decoder) take(n int, what string) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || d.pos+n > len(d.data) {
		d.err = fmt.Errorf("%w: %s truncated at offset %d", ErrInvalidMessage, what, d.pos)
		return nil
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b
}

// Skip discards n bytes.
func (d *Decoder) Skip(n int) {
	d.take(n, "skipped field")
}

func (d *Decoder) ReadBoolean() bool {
	return d.ReadUInt8() != 0
}

// ReadUInt8 reads a single Byte, returning 0 once the decoder has failed.
func (d *Decoder) ReadUInt8() byte {
	b := d.take(1, "byte")
	if b == nil {
		return 0
	}
	return b[0]
}

func (d *Decoder) ReadSByte() int8 {
	return int8(d.ReadUInt8())
}

func (d *Decoder) ReadUInt16() uint16 {
	b := d.take(2, "uint16")
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (d *Decoder) ReadInt16() int16 {
	return int16(d.ReadUInt16())
}

func (d *Decoder) ReadUInt32() uint32 {
	b := d.take(4, "uint32")
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (d *Decoder) ReadInt32() int32 {
	return int32(d.ReadUInt32())
}

func (d *Decoder) ReadUInt64() uint64 {
	b := d.take(8, "uint64")
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (d *Decoder) ReadInt64() int64 {
	return int64(d.ReadUInt64())
}

func (d *Decoder) ReadFloat() float32 {
	return math.Float32frombits(d.ReadUInt32())
}

func (d *Decoder) ReadDouble() float64 {
	return math.Float64frombits(d.ReadUInt64())
}

// ReadString reads a length-prefixed string. The null string reads as "".
func (d *Decoder) ReadString() string {
	n := d.ReadInt32()
	if n < 0 {
		return ""
	}
	return string(d.take(int(n), "string"))
}

// ReadByteString reads a length-prefixed byte string. The null byte string
// reads as nil.
func (d *Decoder) ReadByteString() []byte {
	n := d.ReadInt32()
	if n < 0 {
		return nil
	}
	b := d.take(int(n), "byte string")
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// ReadArrayLength reads an array length prefix. The null array reads as -1.
func (d *Decoder) ReadArrayLength() int {
	n := d.ReadInt32()
	if n < 0 {
		return -1
	}
	if n > maxArrayLength {
		d.Fail(fmt.Errorf("%w: array length %d exceeds limit", ErrInvalidMessage, n))
		return -1
	}
	return int(n)
}

func (d *Decoder) ReadDateTime() time.Time {
	ticks := d.ReadInt64()
	if ticks == 0 {
		return time.Time{}
	}
	return time.Unix(0, (ticks-epochOffset)*100).UTC()
}

func (d *Decoder) ReadGUID() uuid.UUID {
	var g uuid.UUID
	data1 := d.ReadUInt32()
	data2 := d.ReadUInt16()
	data3 := d.ReadUInt16()
	data4 := d.take(8, "guid")
	if d.err != nil {
		return uuid.Nil
	}
	binary.BigEndian.PutUint32(g[0:4], data1)
	binary.BigEndian.PutUint16(g[4:6], data2)
	binary.BigEndian.PutUint16(g[6:8], data3)
	copy(g[8:], data4)
	return g
}

func (d *Decoder) ReadNodeID() NodeID {
	n, _ := d.readNodeID()
	return n
}

// ReadExpandedNodeID reads an ExpandedNodeID and returns its local part. The
// namespace URI and server index are skipped.
func (d *Decoder) ReadExpandedNodeID() NodeID {
	n, flags := d.readNodeID()
	if flags&0x80 != 0 {
		d.ReadString()
	}
	if flags&0x40 != 0 {
		d.ReadUInt32()
	}
	return n
}

func (d *Decoder) readNodeID() (NodeID, byte) {
	enc := d.ReadUInt8()
	if d.err != nil {
		return NodeID{}, 0
	}
	flags := enc & 0xC0

	switch enc & 0x0F {
	case 0x00:
		return NewNumericNodeID(0, uint32(d.ReadUInt8())), flags
	case 0x01:
		ns := d.ReadUInt8()
		return NewNumericNodeID(uint16(ns), uint32(d.ReadUInt16())), flags
	case 0x02:
		ns := d.ReadUInt16()
		return NewNumericNodeID(ns, d.ReadUInt32()), flags
	case 0x03:
		ns := d.ReadUInt16()
		return NewStringNodeID(ns, d.ReadString()), flags
	case 0x04:
		ns := d.ReadUInt16()
		return NewGUIDNodeID(ns, d.ReadGUID()), flags
	case 0x05:
		ns := d.ReadUInt16()
		return NewOpaqueNodeID(ns, d.ReadByteString()), flags
	}
	d.Fail(fmt.Errorf("%w: unknown node id encoding 0x%02x", ErrInvalidMessage, enc))
	return NodeID{}, 0
}

func (d *Decoder) ReadStatusCode() StatusCode {
	return StatusCode(d.ReadUInt32())
}

func (d *Decoder) ReadQualifiedName() QualifiedName {
	ns := d.ReadUInt16()
	return QualifiedName{NamespaceIndex: ns, Name: d.ReadString()}
}

func (d *Decoder) ReadLocalizedText() LocalizedText {
	var lt LocalizedText
	mask := d.ReadUInt8()
	if mask&0x01 != 0 {
		lt.Locale = d.ReadString()
	}
	if mask&0x02 != 0 {
		lt.Text = d.ReadString()
	}
	return lt
}

// ReadStringArray reads a string array. The null array reads as nil.
func (d *Decoder) ReadStringArray() []string {
	n := d.ReadArrayLength()
	if n < 0 {
		return nil
	}
	out := make([]string, 0, n)
	for i := 0; i < n && d.err == nil; i++ {
		out = append(out, d.ReadString())
	}
	return out
}

// ReadUInt32Array reads a uint32 array. The null array reads as nil.
func (d *Decoder) ReadUInt32Array() []uint32 {
	n := d.ReadArrayLength()
	if n < 0 {
		return nil
	}
	out := make([]uint32, 0, n)
	for i := 0; i < n && d.err == nil; i++ {
		out = append(out, d.ReadUInt32())
	}
	return out
}

// ReadStatusCodeArray reads a StatusCode array. The null array reads as nil.
func (d *Decoder) ReadStatusCodeArray() []StatusCode {
	n := d.ReadArrayLength()
	if n < 0 {
		return nil
	}
	out := make([]StatusCode, 0, n)
	for i := 0; i < n && d.err == nil; i++ {
		out = append(out, d.ReadStatusCode())
	}
	return out
}

// SkipDiagnosticInfo skips one DiagnosticInfo, including nested inner infos.
func (d *Decoder) SkipDiagnosticInfo() {
	for depth := 0; d.err == nil; depth++ {
		if depth > 32 {
			d.Fail(fmt.Errorf("%w: diagnostic info nested too deeply", ErrInvalidMessage))
			return
		}
		mask := d.ReadUInt8()
		if mask&0x01 != 0 {
			d.ReadInt32()
		}
		if mask&0x02 != 0 {
			d.ReadInt32()
		}
		if mask&0x04 != 0 {
			d.ReadInt32()
		}
		if mask&0x08 != 0 {
			d.ReadInt32()
		}
		if mask&0x10 != 0 {
			d.ReadString()
		}
		if mask&0x20 != 0 {
			d.ReadStatusCode()
		}
		if mask&0x40 == 0 {
			return
		}
	}
}

// SkipDiagnosticInfoArray skips a DiagnosticInfo array.
func (d *Decoder) SkipDiagnosticInfoArray() {
	n := d.ReadArrayLength()
	for i := 0; i < n && d.err == nil; i++ {
		d.SkipDiagnosticInfo()
	}
}

// ReadExtensionObject reads an ExtensionObject header and returns its type id
// and binary body. Non-binary bodies are skipped and reported with a nil body.
func (d *Decoder) ReadExtensionObject() (NodeID, []byte) {
	typeID := d.ReadNodeID()
	switch d.ReadUInt8() {
	case 0x01, 0x02:
		return typeID, d.ReadByteString()
	}
	return typeID, nil
}

func (d *Decoder) ReadVariant() Variant {
	mask := d.ReadUInt8()
	if d.err != nil {
		return Variant{}
	}
	t := TypeID(mask & 0x3F)

	if mask&0x80 == 0 {
		return Variant{Type: t, Value: d.readScalar(t)}
	}

	n := d.ReadArrayLength()
	var values []interface{}
	if n >= 0 {
		values = make([]interface{}, 0, n)
		for i := 0; i < n && d.err == nil; i++ {
			values = append(values, d.readScalar(t))
		}
	}
	if mask&0x40 != 0 {
		dims := d.ReadArrayLength()
		for i := 0; i < dims && d.err == nil; i++ {
			d.ReadInt32()
		}
	}
	if values == nil {
		return Variant{Type: t}
	}
	return Variant{Type: t, Value: values}
}

func (d *Decoder) readScalar(t TypeID) interface{} {
	switch t {
	case TypeNull:
		return nil
	case TypeBoolean:
		return d.ReadBoolean()
	case TypeSByte:
		return d.ReadSByte()
	case TypeByte:
		return d.ReadUInt8()
	case TypeInt16:
		return d.ReadInt16()
	case TypeUInt16:
		return d.ReadUInt16()
	case TypeInt32:
		return d.ReadInt32()
	case TypeUInt32:
		return d.ReadUInt32()
	case TypeInt64:
		return d.ReadInt64()
	case TypeUInt64:
		return d.ReadUInt64()
	case TypeFloat:
		return d.ReadFloat()
	case TypeDouble:
		return d.ReadDouble()
	case TypeString, TypeXMLElement:
		return d.ReadString()
	case TypeDateTime:
		return d.ReadDateTime()
	case TypeGUID:
		return d.ReadGUID()
	case TypeByteString:
		return d.ReadByteString()
	case TypeNodeID:
		return d.ReadNodeID()
	case TypeExpandedNodeID:
		return d.ReadExpandedNodeID()
	case TypeStatusCode:
		return d.ReadStatusCode()
	case TypeQualifiedName:
		return d.ReadQualifiedName()
	case TypeLocalizedText:
		return d.ReadLocalizedText()
	case TypeExtensionObject:
		_, body := d.ReadExtensionObject()
		return body
	case TypeDataValue:
		return d.ReadDataValue()
	case TypeVariant:
		return d.ReadVariant()
	}
	d.Fail(fmt.Errorf("%w: unsupported variant type %d", ErrInvalidMessage, t))
	return nil
}

func (d *Decoder) ReadDataValue() DataValue {
	var dv DataValue
	mask := d.ReadUInt8()
	if mask&0x01 != 0 {
		v := d.ReadVariant()
		dv.Value = &v
	}
	if mask&0x02 != 0 {
		dv.StatusCode = d.ReadStatusCode()
	}
	if mask&0x04 != 0 {
		dv.SourceTimestamp = d.ReadDateTime()
	}
	if mask&0x10 != 0 {
		dv.SourcePicoseconds = d.ReadUInt16()
	}
	if mask&0x08 != 0 {
		dv.ServerTimestamp = d.ReadDateTime()
	}
	if mask&0x20 != 0 {
		dv.ServerPicoseconds = d.ReadUInt16()
	}
	return dv
}
