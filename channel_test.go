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
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgeo-scada/uaclient/internal/transport"
	"github.com/edgeo-scada/uaclient/session"
	"github.com/edgeo-scada/uaclient/ua"
)

const (
	testChannelID = 5
	testTokenID   = 9
)

// pipeServer plays the server end of a channel over net.Pipe.
type pipeServer struct {
	t   *testing.T
	tr  *transport.TCPTransport
	seq uint32
}

func newPipeChannel(t *testing.T) (*channel, *pipeServer) {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})

	opts := defaultOptions()
	opts.logger = discardLogger()
	state := session.New(session.DefaultConfig(), session.WithLogger(discardLogger()))
	ch := newChannel("opc.tcp://pipe:4840", transport.NewConnTransport(client, time.Second), state, opts)
	return ch, &pipeServer{t: t, tr: transport.NewConnTransport(server, time.Second)}
}

// read returns the next chunk's header and body.
func (s *pipeServer) read() (ua.MessageHeader, []byte) {
	s.t.Helper()
	chunk, err := s.tr.ReadChunk()
	require.NoError(s.t, err)
	var h ua.MessageHeader
	require.NoError(s.t, h.Decode(chunk))
	return h, chunk[ua.MessageHeaderSize:]
}

func (s *pipeServer) write(msgType string, chunkType byte, body []byte) {
	s.t.Helper()
	require.NoError(s.t, s.tr.WriteChunk(context.Background(), ua.Frame(msgType, chunkType, body)))
}

func (s *pipeServer) acknowledge(bufferSize uint32) {
	h, body := s.read()
	require.Equal(s.t, ua.MessageTypeHello, h.MessageType)
	var hello ua.HelloMessage
	require.NoError(s.t, hello.Decode(body))
	assert.Equal(s.t, "opc.tcp://pipe:4840", hello.EndpointURL)

	ack := &ua.AcknowledgeMessage{
		ReceiveBufferSize: bufferSize,
		SendBufferSize:    bufferSize,
		MaxMessageSize:    1 << 20,
	}
	s.write(ua.MessageTypeAcknowledge, ua.ChunkTypeFinal, ack.Encode())
}

func (s *pipeServer) openChannel() {
	h, body := s.read()
	require.Equal(s.t, ua.MessageTypeOpenChannel, h.MessageType)

	d := ua.NewDecoder(body)
	assert.Zero(s.t, d.ReadUInt32())
	assert.Equal(s.t, ua.SecurityPolicyNone, d.ReadString())
	d.ReadByteString()
	d.ReadByteString()
	d.ReadUInt32()
	reqID := d.ReadUInt32()
	require.NoError(s.t, d.Err())

	req, err := ua.DecodeRequest(body[len(body)-d.Remaining():])
	require.NoError(s.t, err)
	opn, ok := req.(*ua.OpenSecureChannelRequest)
	require.True(s.t, ok)
	assert.Equal(s.t, ua.SecurityTokenIssue, opn.RequestType)
	assert.Equal(s.t, ua.MessageSecurityModeNone, opn.SecurityMode)

	e := ua.NewEncoder()
	e.WriteUInt32(testChannelID)
	e.WriteString(ua.SecurityPolicyNone)
	e.WriteByteString(nil)
	e.WriteByteString(nil)
	e.WriteUInt32(s.nextSeq())
	e.WriteUInt32(reqID)
	e.WriteRaw(ua.EncodeResponse(ua.ServiceOpenSecureChannel.ResponseID(), &ua.OpenSecureChannelResponse{
		ResponseHeader: ua.ResponseHeader{RequestHandle: opn.RequestHeader.RequestHandle},
		SecurityToken: ua.ChannelSecurityToken{
			ChannelID:       testChannelID,
			TokenID:         testTokenID,
			CreatedAt:       time.Now(),
			RevisedLifetime: 600000,
		},
	}))
	s.write(ua.MessageTypeOpenChannel, ua.ChunkTypeFinal, e.Bytes())
}

// readMessage reassembles one MSG from its chunks.
func (s *pipeServer) readMessage() (ua.Request, uint32, int) {
	s.t.Helper()
	var payload []byte
	chunks := 0
	for {
		h, body := s.read()
		require.Equal(s.t, ua.MessageTypeMessage, h.MessageType)
		chunks++

		d := ua.NewDecoder(body)
		assert.Equal(s.t, uint32(testChannelID), d.ReadUInt32())
		assert.Equal(s.t, uint32(testTokenID), d.ReadUInt32())
		d.ReadUInt32()
		reqID := d.ReadUInt32()
		require.NoError(s.t, d.Err())
		payload = append(payload, body[len(body)-d.Remaining():]...)

		if h.ChunkType == ua.ChunkTypeFinal {
			req, err := ua.DecodeRequest(payload)
			require.NoError(s.t, err)
			return req, reqID, chunks
		}
		require.Equal(s.t, ua.ChunkTypeIntermediate, h.ChunkType)
	}
}

// writeMessage sends body split into parts chunks.
func (s *pipeServer) writeMessage(reqID uint32, body []byte, parts int) {
	s.t.Helper()
	size := (len(body) + parts - 1) / parts
	for len(body) > 0 {
		n := min(size, len(body))
		chunkType := ua.ChunkTypeIntermediate
		if n == len(body) {
			chunkType = ua.ChunkTypeFinal
		}
		s.write(ua.MessageTypeMessage, chunkType, s.symmetric(reqID, body[:n]))
		body = body[n:]
	}
}

func (s *pipeServer) symmetric(reqID uint32, payload []byte) []byte {
	e := ua.NewEncoder()
	e.WriteUInt32(testChannelID)
	e.WriteUInt32(testTokenID)
	e.WriteUInt32(s.nextSeq())
	e.WriteUInt32(reqID)
	e.WriteRaw(payload)
	return e.Bytes()
}

func (s *pipeServer) nextSeq() uint32 {
	s.seq++
	return s.seq
}

func openPipeChannel(t *testing.T, bufferSize uint32) (*channel, *pipeServer) {
	t.Helper()
	ch, srv := newPipeChannel(t)
	errc := make(chan error, 1)
	go func() { errc <- ch.Open(context.Background()) }()
	srv.acknowledge(bufferSize)
	srv.openChannel()
	require.NoError(t, <-errc)
	return ch, srv
}

func TestChannelOpenNegotiates(t *testing.T) {
	ch, _ := openPipeChannel(t, 8192)

	cfg := ch.state.Config()
	assert.Equal(t, uint32(8192), cfg.SendBufferSize)
	assert.Equal(t, uint32(8192), cfg.ReceiveBufferSize)
	assert.Equal(t, uint32(1<<20), cfg.MaxMessageSize)

	channelID, tokenID := ch.ids()
	assert.Equal(t, uint32(testChannelID), channelID)
	assert.Equal(t, uint32(testTokenID), tokenID)
}

func TestChannelOpenServerError(t *testing.T) {
	ch, srv := newPipeChannel(t)
	errc := make(chan error, 1)
	go func() { errc <- ch.Open(context.Background()) }()

	srv.read()
	msg := &ua.ErrorMessage{Error: ua.StatusBadTCPEndpointURLInvalid, Reason: "no such endpoint"}
	srv.write(ua.MessageTypeError, ua.ChunkTypeFinal, msg.Encode())

	err := <-errc
	require.Error(t, err)
	assert.ErrorIs(t, err, ua.StatusBadTCPEndpointURLInvalid)
	assert.Contains(t, err.Error(), "no such endpoint")
}

func TestChannelSendReceive(t *testing.T) {
	ch, srv := openPipeChannel(t, 8192)

	out := &ua.ReadRequest{
		RequestHeader: ch.state.MakeRequestHeader(),
		NodesToRead:   []ua.ReadValueID{{NodeID: ua.NewNumericNodeID(0, 2258), AttributeID: ua.AttributeValue}},
	}
	errc := make(chan error, 1)
	go func() { errc <- ch.Send(context.Background(), out) }()

	req, reqID, chunks := srv.readMessage()
	require.NoError(t, <-errc)
	assert.Equal(t, 1, chunks)
	read, ok := req.(*ua.ReadRequest)
	require.True(t, ok)
	assert.Equal(t, out.RequestHeader.RequestHandle, read.RequestHeader.RequestHandle)

	v := ua.NewVariant(int32(-7))
	body := ua.EncodeResponse(ua.ServiceRead.ResponseID(), &ua.ReadResponse{
		ResponseHeader: ua.ResponseHeader{RequestHandle: read.RequestHeader.RequestHandle},
		Results:        []ua.DataValue{{Value: &v}},
	})
	go srv.writeMessage(reqID, body, 3)

	resp, err := ch.Receive()
	require.NoError(t, err)
	rr, ok := resp.(*ua.ReadResponse)
	require.True(t, ok)
	assert.Equal(t, out.RequestHeader.RequestHandle, rr.ResponseHeader.RequestHandle)
	require.Len(t, rr.Results, 1)
	assert.Equal(t, int32(-7), rr.Results[0].Value.Value)
}

func TestChannelSendSplitsLargeRequests(t *testing.T) {
	ch, srv := openPipeChannel(t, 8192)

	nodes := make([]ua.ReadValueID, 500)
	for i := range nodes {
		nodes[i] = ua.ReadValueID{NodeID: ua.NewStringNodeID(2, fmt.Sprintf("Line1.Station%03d.Value", i)), AttributeID: ua.AttributeValue}
	}
	out := &ua.ReadRequest{RequestHeader: ch.state.MakeRequestHeader(), NodesToRead: nodes}

	errc := make(chan error, 1)
	go func() { errc <- ch.Send(context.Background(), out) }()

	req, _, chunks := srv.readMessage()
	require.NoError(t, <-errc)
	assert.Greater(t, chunks, 1)
	read := req.(*ua.ReadRequest)
	require.Len(t, read.NodesToRead, 500)
	assert.Equal(t, "ns=2;s=Line1.Station499.Value", read.NodesToRead[499].NodeID.String())
}

func TestChannelSendRejectsOversizedMessage(t *testing.T) {
	ch, _ := openPipeChannel(t, 8192)
	cfg := ch.state.Config()
	cfg.MaxMessageSize = 64
	ch.state.SetConfig(cfg)

	nodes := make([]ua.ReadValueID, 10)
	for i := range nodes {
		nodes[i] = ua.ReadValueID{NodeID: ua.NewNumericNodeID(0, uint32(i)), AttributeID: ua.AttributeValue}
	}
	err := ch.Send(context.Background(), &ua.ReadRequest{NodesToRead: nodes})
	assert.ErrorIs(t, err, ErrMessageTooLarge)
}

func TestChannelReceiveSkipsAbortedMessage(t *testing.T) {
	ch, srv := openPipeChannel(t, 8192)

	go func() {
		srv.write(ua.MessageTypeMessage, ua.ChunkTypeIntermediate, srv.symmetric(99, []byte{1, 2, 3}))
		abort := &ua.ErrorMessage{Error: ua.StatusBadResponseTooLarge, Reason: "too big"}
		srv.write(ua.MessageTypeMessage, ua.ChunkTypeAbort, srv.symmetric(99, abort.Encode()))
		srv.writeMessage(100, ua.EncodeResponse(ua.ServiceWrite.ResponseID(), &ua.WriteResponse{
			ResponseHeader: ua.ResponseHeader{RequestHandle: 12},
		}), 1)
	}()

	resp, err := ch.Receive()
	require.NoError(t, err)
	assert.Equal(t, uint32(12), resp.Header().RequestHandle)
	assert.Empty(t, ch.partial)
}

func TestChannelReceiveServerError(t *testing.T) {
	ch, srv := openPipeChannel(t, 8192)

	go func() {
		msg := &ua.ErrorMessage{Error: ua.StatusBadSecureChannelClosed}
		srv.write(ua.MessageTypeError, ua.ChunkTypeFinal, msg.Encode())
	}()

	_, err := ch.Receive()
	assert.ErrorIs(t, err, ua.StatusBadSecureChannelClosed)
}

func TestChannelCloseSendsCLO(t *testing.T) {
	ch, srv := openPipeChannel(t, 8192)

	done := make(chan ua.MessageHeader, 1)
	go func() {
		h, _ := srv.read()
		done <- h
	}()
	require.NoError(t, ch.Close())

	h := <-done
	assert.Equal(t, ua.MessageTypeCloseChannel, h.MessageType)
	assert.Equal(t, ua.ChunkTypeFinal, h.ChunkType)
}
