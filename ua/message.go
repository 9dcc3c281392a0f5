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
)

// Message types of the UA TCP binary protocol.
const (
	MessageTypeHello        = "HEL"
	MessageTypeAcknowledge  = "ACK"
	MessageTypeError        = "ERR"
	MessageTypeOpenChannel  = "OPN"
	MessageTypeCloseChannel = "CLO"
	MessageTypeMessage      = "MSG"
)

// Chunk types.
const (
	ChunkTypeFinal        byte = 'F'
	ChunkTypeIntermediate byte = 'C'
	ChunkTypeAbort        byte = 'A'
)

// MessageHeaderSize is the size of the fixed chunk header.
const MessageHeaderSize = 8

// MessageHeader is the fixed header of every chunk.
type MessageHeader struct {
	MessageType string
	ChunkType   byte
	MessageSize uint32
}

// Encode returns the 8 header bytes.
func (h *MessageHeader) Encode() []byte {
	buf := make([]byte, MessageHeaderSize)
	copy(buf[0:3], h.MessageType)
	buf[3] = h.ChunkType
	binary.LittleEndian.PutUint32(buf[4:8], h.MessageSize)
	return buf
}

// Decode parses the first 8 bytes of data.
func (h *MessageHeader) Decode(data []byte) error {
	if len(data) < MessageHeaderSize {
		return fmt.Errorf("%w: header too short", ErrInvalidMessage)
	}
	h.MessageType = string(data[0:3])
	h.ChunkType = data[3]
	h.MessageSize = binary.LittleEndian.Uint32(data[4:8])
	return nil
}

// Frame prefixes body with a chunk header.
func Frame(msgType string, chunkType byte, body []byte) []byte {
	h := MessageHeader{
		MessageType: msgType,
		ChunkType:   chunkType,
		MessageSize: uint32(MessageHeaderSize + len(body)),
	}
	return append(h.Encode(), body...)
}

// HelloMessage opens a connection and proposes buffer limits.
type HelloMessage struct {
	ProtocolVersion   uint32
	ReceiveBufferSize uint32
	SendBufferSize    uint32
	MaxMessageSize    uint32
	MaxChunkCount     uint32
	EndpointURL       string
}

func (m *HelloMessage) Encode() []byte {
	e := NewEncoder()
	e.WriteUInt32(m.ProtocolVersion)
	e.WriteUInt32(m.ReceiveBufferSize)
	e.WriteUInt32(m.SendBufferSize)
	e.WriteUInt32(m.MaxMessageSize)
	e.WriteUInt32(m.MaxChunkCount)
	e.WriteString(m.EndpointURL)
	return e.Bytes()
}

func (m *HelloMessage) Decode(data []byte) error {
	d := NewDecoder(data)
	m.ProtocolVersion = d.ReadUInt32()
	m.ReceiveBufferSize = d.ReadUInt32()
	m.SendBufferSize = d.ReadUInt32()
	m.MaxMessageSize = d.ReadUInt32()
	m.MaxChunkCount = d.ReadUInt32()
	m.EndpointURL = d.ReadString()
	return d.Err()
}

// AcknowledgeMessage is the server's answer to Hello with revised limits.
type AcknowledgeMessage struct {
	ProtocolVersion   uint32
	ReceiveBufferSize uint32
	SendBufferSize    uint32
	MaxMessageSize    uint32
	MaxChunkCount     uint32
}

func (m *AcknowledgeMessage) Encode() []byte {
	e := NewEncoder()
	e.WriteUInt32(m.ProtocolVersion)
	e.WriteUInt32(m.ReceiveBufferSize)
	e.WriteUInt32(m.SendBufferSize)
	e.WriteUInt32(m.MaxMessageSize)
	e.WriteUInt32(m.MaxChunkCount)
	return e.Bytes()
}

func (m *AcknowledgeMessage) Decode(data []byte) error {
	d := NewDecoder(data)
	m.ProtocolVersion = d.ReadUInt32()
	m.ReceiveBufferSize = d.ReadUInt32()
	m.SendBufferSize = d.ReadUInt32()
	m.MaxMessageSize = d.ReadUInt32()
	m.MaxChunkCount = d.ReadUInt32()
	return d.Err()
}

// ErrorMessage is sent by a server right before it closes the connection.
type ErrorMessage struct {
	Error  StatusCode
	Reason string
}

func (m *ErrorMessage) Encode() []byte {
	e := NewEncoder()
	e.WriteStatusCode(m.Error)
	e.WriteString(m.Reason)
	return e.Bytes()
}

func (m *ErrorMessage) Decode(data []byte) error {
	d := NewDecoder(data)
	m.Error = d.ReadStatusCode()
	m.Reason = d.ReadString()
	return d.Err()
}
