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
	"io"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrimitiveRoundTrip(t *testing.T) {
	ts := time.Date(2025, 3, 14, 9, 26, 53, 589793200, time.UTC)
	g := uuid.MustParse("72962b91-fa75-4ae6-8d28-b404dc7daf63")

	e := NewEncoder()
	e.WriteBoolean(true)
	e.WriteSByte(-5)
	e.WriteInt16(-1234)
	e.WriteUInt32(math.MaxUint32)
	e.WriteInt64(-1 << 40)
	e.WriteDouble(3.25)
	e.WriteString("hello")
	e.WriteString("")
	e.WriteByteString(nil)
	e.WriteDateTime(ts)
	e.WriteDateTime(time.Time{})
	e.WriteGUID(g)
	e.WriteLocalizedText(LocalizedText{Locale: "en", Text: "Pump"})
	e.WriteQualifiedName(QualifiedName{NamespaceIndex: 2, Name: "Speed"})

	d := NewDecoder(e.Bytes())
	assert.True(t, d.ReadBoolean())
	assert.Equal(t, int8(-5), d.ReadSByte())
	assert.Equal(t, int16(-1234), d.ReadInt16())
	assert.Equal(t, uint32(math.MaxUint32), d.ReadUInt32())
	assert.Equal(t, int64(-1<<40), d.ReadInt64())
	assert.Equal(t, 3.25, d.ReadDouble())
	assert.Equal(t, "hello", d.ReadString())
	assert.Equal(t, "", d.ReadString())
	assert.Nil(t, d.ReadByteString())
	assert.True(t, ts.Equal(d.ReadDateTime()))
	assert.True(t, d.ReadDateTime().IsZero())
	assert.Equal(t, g, d.ReadGUID())
	assert.Equal(t, LocalizedText{Locale: "en", Text: "Pump"}, d.ReadLocalizedText())
	assert.Equal(t, QualifiedName{NamespaceIndex: 2, Name: "Speed"}, d.ReadQualifiedName())
	require.NoError(t, d.Err())
	assert.Zero(t, d.Remaining())
}

func TestStringNullEncoding(t *testing.T) {
	e := NewEncoder()
	e.WriteString("")
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF}, e.Bytes())
}

func TestNodeIDCompactEncoding(t *testing.T) {
	tests := []struct {
		name string
		id   NodeID
		want []byte
	}{
		{"two byte", NewNumericNodeID(0, 85), []byte{0x00, 0x55}},
		{"four byte", NewNumericNodeID(2, 1001), []byte{0x01, 0x02, 0xE9, 0x03}},
		{"numeric", NewNumericNodeID(0, 70000), []byte{0x02, 0x00, 0x00, 0x70, 0x11, 0x01, 0x00}},
		{"string", NewStringNodeID(1, "ab"), []byte{0x03, 0x01, 0x00, 0x02, 0x00, 0x00, 0x00, 'a', 'b'}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEncoder()
			e.WriteNodeID(tt.id)
			assert.Equal(t, tt.want, e.Bytes())

			d := NewDecoder(e.Bytes())
			got := d.ReadNodeID()
			require.NoError(t, d.Err())
			assert.True(t, tt.id.Equal(got), "got %s", got)
		})
	}
}

func TestNodeIDRoundTripGUIDAndOpaque(t *testing.T) {
	for _, id := range []NodeID{
		NewGUIDNodeID(3, uuid.MustParse("72962b91-fa75-4ae6-8d28-b404dc7daf63")),
		NewOpaqueNodeID(4, []byte{0xDE, 0xAD}),
	} {
		e := NewEncoder()
		e.WriteNodeID(id)
		d := NewDecoder(e.Bytes())
		got := d.ReadNodeID()
		require.NoError(t, d.Err())
		assert.True(t, id.Equal(got), "got %s", got)
	}
}

func TestExpandedNodeIDSkipsURIAndServerIndex(t *testing.T) {
	e := NewEncoder()
	e.WriteUInt8(0x01 | 0x80 | 0x40)
	e.WriteUInt8(2)
	e.WriteUInt16(1001)
	e.WriteString("urn:example")
	e.WriteUInt32(7)
	e.WriteUInt32(0xCAFEBABE)

	d := NewDecoder(e.Bytes())
	got := d.ReadExpandedNodeID()
	require.NoError(t, d.Err())
	assert.True(t, NewNumericNodeID(2, 1001).Equal(got))
	assert.Equal(t, uint32(0xCAFEBABE), d.ReadUInt32())
}

func TestVariantRoundTrip(t *testing.T) {
	values := []interface{}{
		true,
		int32(-42),
		uint16(7),
		float32(1.5),
		3.14159,
		"running",
		NewStringNodeID(2, "Tag"),
		StatusBadTimeout,
		LocalizedText{Text: "x"},
	}
	for _, v := range values {
		in := NewVariant(v)
		require.NotEqual(t, TypeNull, in.Type, "%T", v)

		e := NewEncoder()
		e.WriteVariant(in)
		d := NewDecoder(e.Bytes())
		out := d.ReadVariant()
		require.NoError(t, d.Err())
		assert.Equal(t, in.Type, out.Type)
		assert.Equal(t, in.Value, out.Value)
	}
}

func TestVariantArray(t *testing.T) {
	in := Variant{Type: TypeInt32, Value: []interface{}{int32(1), int32(2), int32(3)}}
	e := NewEncoder()
	e.WriteVariant(in)
	assert.Equal(t, byte(TypeInt32)|0x80, e.Bytes()[0])

	d := NewDecoder(e.Bytes())
	out := d.ReadVariant()
	require.NoError(t, d.Err())
	assert.Equal(t, in, out)
}

func TestNewVariantUnsupported(t *testing.T) {
	assert.Equal(t, Variant{}, NewVariant(struct{}{}))
	assert.Equal(t, Variant{}, NewVariant(nil))
}

func TestDataValueRoundTrip(t *testing.T) {
	v := NewVariant(21.5)
	in := DataValue{
		Value:           &v,
		StatusCode:      StatusUncertain,
		SourceTimestamp: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		ServerTimestamp: time.Date(2025, 1, 2, 3, 4, 6, 0, time.UTC),
	}

	e := NewEncoder()
	e.WriteDataValue(in)
	assert.Equal(t, byte(0x01|0x02|0x04|0x08), e.Bytes()[0])

	d := NewDecoder(e.Bytes())
	out := d.ReadDataValue()
	require.NoError(t, d.Err())
	require.NotNil(t, out.Value)
	assert.Equal(t, 21.5, out.Value.Value)
	assert.Equal(t, StatusUncertain, out.StatusCode)
	assert.True(t, in.SourceTimestamp.Equal(out.SourceTimestamp))
	assert.True(t, in.ServerTimestamp.Equal(out.ServerTimestamp))
}

func TestEmptyDataValue(t *testing.T) {
	e := NewEncoder()
	e.WriteDataValue(DataValue{})
	assert.Equal(t, []byte{0x00}, e.Bytes())
}

func TestSingleByteCodec(t *testing.T) {
	e := NewEncoder()
	e.WriteUInt8(0xfe)
	e.WriteSByte(-1)
	e.WriteBoolean(true)
	require.Equal(t, []byte{0xfe, 0xff, 0x01}, e.Bytes())

	d := NewDecoder(e.Bytes())
	assert.Equal(t, byte(0xfe), d.ReadUInt8())
	assert.Equal(t, int8(-1), d.ReadSByte())
	assert.True(t, d.ReadBoolean())
	assert.Zero(t, d.ReadUInt8())
	assert.ErrorIs(t, d.Err(), ErrInvalidMessage)

	// Neither type claims the io single-byte interfaces with foreign signatures.
	_, isByteReader := any(d).(io.ByteReader)
	_, isByteWriter := any(e).(io.ByteWriter)
	assert.False(t, isByteReader)
	assert.False(t, isByteWriter)
}

func TestDecoderStickyError(t *testing.T) {
	d := NewDecoder([]byte{0x01, 0x02})
	assert.Zero(t, d.ReadUInt32())
	require.ErrorIs(t, d.Err(), ErrInvalidMessage)

	first := d.Err()
	assert.Zero(t, d.ReadUInt8())
	assert.Equal(t, "", d.ReadString())
	assert.Equal(t, first, d.Err())
}

func TestDecoderRejectsHugeArray(t *testing.T) {
	e := NewEncoder()
	e.WriteInt32(maxArrayLength + 1)
	d := NewDecoder(e.Bytes())
	assert.Equal(t, -1, d.ReadArrayLength())
	assert.ErrorIs(t, d.Err(), ErrInvalidMessage)
}

func TestSkipDiagnosticInfo(t *testing.T) {
	e := NewEncoder()
	e.WriteUInt8(0x01 | 0x10 | 0x40)
	e.WriteInt32(3)
	e.WriteString("bad thing")
	e.WriteUInt8(0x20)
	e.WriteStatusCode(StatusBadTimeout)
	e.WriteUInt32(99)

	d := NewDecoder(e.Bytes())
	d.SkipDiagnosticInfo()
	require.NoError(t, d.Err())
	assert.Equal(t, uint32(99), d.ReadUInt32())
}
