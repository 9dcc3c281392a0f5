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
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/edgeo-scada/uaclient/internal/transport"
	"github.com/edgeo-scada/uaclient/session"
	"github.com/edgeo-scada/uaclient/ua"
)

// requestedChannelLifetime is the token lifetime asked for in OPN, in ms.
const requestedChannelLifetime = 3600000

// Fixed overhead of a symmetric MSG chunk: message header, channel id,
// token id, sequence number and request id.
const symmetricOverhead = ua.MessageHeaderSize + 4 + 4 + 8

// messageConn carries service requests and responses. The secure channel is
// the production implementation.
type messageConn interface {
	Send(ctx context.Context, req ua.Request) error
	Receive() (ua.Response, error)
	Close() error
}

// channel is a secure channel under SecurityPolicyNone. One goroutine may
// Send while another Receives.
type channel struct {
	endpoint string
	t        *transport.TCPTransport
	state    *session.State
	logger   *slog.Logger

	sendBufferSize    uint32
	receiveBufferSize uint32
	maxMessageSize    uint32

	sendMu    sync.Mutex
	seq       uint32
	requestID uint32

	mu        sync.Mutex
	channelID uint32
	tokenID   uint32
	lifetime  time.Duration
	openedAt  time.Time
	renewing  bool

	// partial is touched by the receiving goroutine only.
	partial map[uint32][]byte
}

func newChannel(endpoint string, t *transport.TCPTransport, state *session.State, opts *clientOptions) *channel {
	return &channel{
		endpoint:          endpoint,
		t:                 t,
		state:             state,
		logger:            opts.logger,
		sendBufferSize:    opts.sendBufferSize,
		receiveBufferSize: opts.receiveBufferSize,
		maxMessageSize:    opts.maxMessageSize,
		partial:           make(map[uint32][]byte),
	}
}

// Open connects the transport, exchanges HEL/ACK and opens the channel.
func (ch *channel) Open(ctx context.Context) error {
	if err := ch.t.Connect(ctx); err != nil {
		return err
	}

	// Handshake reads have no deadline of their own.
	stop := context.AfterFunc(ctx, func() { ch.t.Close() })
	defer stop()

	if err := ch.hello(ctx); err != nil {
		ch.t.Close()
		return fmt.Errorf("hello failed: %w", err)
	}
	if err := ch.openSecureChannel(ctx); err != nil {
		ch.t.Close()
		return fmt.Errorf("open secure channel failed: %w", err)
	}
	return nil
}

func (ch *channel) hello(ctx context.Context) error {
	hello := &ua.HelloMessage{
		ProtocolVersion:   ua.ProtocolVersion,
		ReceiveBufferSize: ch.receiveBufferSize,
		SendBufferSize:    ch.sendBufferSize,
		MaxMessageSize:    ch.maxMessageSize,
		MaxChunkCount:     ua.DefaultMaxChunkCount,
		EndpointURL:       ch.endpoint,
	}
	if err := ch.t.WriteChunk(ctx, ua.Frame(ua.MessageTypeHello, ua.ChunkTypeFinal, hello.Encode())); err != nil {
		return err
	}

	body, err := ch.expect(ua.MessageTypeAcknowledge)
	if err != nil {
		return err
	}
	var ack ua.AcknowledgeMessage
	if err := ack.Decode(body); err != nil {
		return err
	}

	cfg := ch.state.Config()
	cfg.SendBufferSize = ch.sendBufferSize
	if ack.ReceiveBufferSize > 0 {
		cfg.SendBufferSize = min(ch.sendBufferSize, ack.ReceiveBufferSize)
	}
	cfg.ReceiveBufferSize = ch.receiveBufferSize
	if ack.SendBufferSize > 0 {
		cfg.ReceiveBufferSize = min(ch.receiveBufferSize, ack.SendBufferSize)
	}
	cfg.MaxMessageSize = ch.maxMessageSize
	if ack.MaxMessageSize > 0 {
		cfg.MaxMessageSize = ack.MaxMessageSize
	}
	ch.state.SetConfig(cfg)
	ch.t.SetMaxChunkSize(cfg.ReceiveBufferSize)

	ch.logger.Debug("received acknowledge",
		slog.Uint64("protocol_version", uint64(ack.ProtocolVersion)),
		slog.Uint64("send_buffer", uint64(cfg.SendBufferSize)),
		slog.Uint64("receive_buffer", uint64(cfg.ReceiveBufferSize)),
		slog.Uint64("max_message_size", uint64(cfg.MaxMessageSize)))
	return nil
}

func (ch *channel) openSecureChannel(ctx context.Context) error {
	if err := ch.writeOpen(ctx, ua.SecurityTokenIssue); err != nil {
		return err
	}
	body, err := ch.expect(ua.MessageTypeOpenChannel)
	if err != nil {
		return err
	}
	resp, err := decodeOpenResponse(body)
	if err != nil {
		return err
	}
	if err := ua.ServiceResult(ua.ServiceOpenSecureChannel, resp); err != nil {
		return err
	}
	ch.applyToken(resp.SecurityToken)

	ch.logger.Debug("secure channel opened",
		slog.Uint64("channel_id", uint64(resp.SecurityToken.ChannelID)),
		slog.Uint64("token_id", uint64(resp.SecurityToken.TokenID)),
		slog.Uint64("lifetime_ms", uint64(resp.SecurityToken.RevisedLifetime)))
	return nil
}

func (ch *channel) writeOpen(ctx context.Context, requestType ua.SecurityTokenRequestType) error {
	req := &ua.OpenSecureChannelRequest{
		RequestHeader:         ch.state.MakeRequestHeader(),
		ClientProtocolVersion: ua.ProtocolVersion,
		RequestType:           requestType,
		SecurityMode:          ua.MessageSecurityModeNone,
		RequestedLifetime:     requestedChannelLifetime,
	}

	ch.sendMu.Lock()
	defer ch.sendMu.Unlock()

	channelID, _ := ch.ids()
	e := ua.NewEncoder()
	e.WriteUInt32(channelID)
	e.WriteString(ua.SecurityPolicyNone)
	e.WriteByteString(nil)
	e.WriteByteString(nil)
	e.WriteUInt32(ch.nextSeqLocked())
	e.WriteUInt32(ch.nextRequestIDLocked())
	e.WriteRaw(ua.EncodeRequest(req))
	return ch.t.WriteChunk(ctx, ua.Frame(ua.MessageTypeOpenChannel, ua.ChunkTypeFinal, e.Bytes()))
}

// decodeOpenResponse parses an OPN chunk body.
func decodeOpenResponse(body []byte) (*ua.OpenSecureChannelResponse, error) {
	d := ua.NewDecoder(body)
	d.ReadUInt32()     // channel id
	d.ReadString()     // security policy uri
	d.ReadByteString() // sender certificate
	d.ReadByteString() // receiver thumbprint
	d.ReadUInt32()     // sequence number
	d.ReadUInt32()     // request id
	if err := d.Err(); err != nil {
		return nil, err
	}
	resp, err := ua.DecodeResponse(body[len(body)-d.Remaining():])
	if err != nil {
		return nil, err
	}
	if fault, ok := resp.(*ua.ServiceFault); ok {
		return nil, ua.ServiceResult(ua.ServiceOpenSecureChannel, fault)
	}
	opn, ok := resp.(*ua.OpenSecureChannelResponse)
	if !ok {
		return nil, fmt.Errorf("%w: %T in OPN", ErrInvalidResponse, resp)
	}
	return opn, nil
}

func (ch *channel) applyToken(tok ua.ChannelSecurityToken) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.channelID = tok.ChannelID
	ch.tokenID = tok.TokenID
	ch.lifetime = time.Duration(tok.RevisedLifetime) * time.Millisecond
	ch.openedAt = time.Now()
	ch.renewing = false
}

func (ch *channel) ids() (channelID, tokenID uint32) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.channelID, ch.tokenID
}

// expect reads one chunk and returns its body after the message header. An
// ERR chunk becomes an error carrying its status code.
func (ch *channel) expect(msgType string) ([]byte, error) {
	chunk, err := ch.t.ReadChunk()
	if err != nil {
		return nil, err
	}
	var h ua.MessageHeader
	if err := h.Decode(chunk); err != nil {
		return nil, err
	}
	body := chunk[ua.MessageHeaderSize:]
	if h.MessageType == ua.MessageTypeError {
		return nil, decodeErrorMessage(body)
	}
	if h.MessageType != msgType {
		return nil, fmt.Errorf("%w: got %s, want %s", ua.ErrInvalidMessage, h.MessageType, msgType)
	}
	return body, nil
}

func decodeErrorMessage(body []byte) error {
	var m ua.ErrorMessage
	if err := m.Decode(body); err != nil {
		return err
	}
	if m.Reason != "" {
		return fmt.Errorf("server error: %w: %s", m.Error, m.Reason)
	}
	return fmt.Errorf("server error: %w", m.Error)
}

func (ch *channel) nextSeqLocked() uint32 {
	ch.seq++
	return ch.seq
}

func (ch *channel) nextRequestIDLocked() uint32 {
	ch.requestID++
	return ch.requestID
}

// Send encodes req into one or more MSG chunks.
func (ch *channel) Send(ctx context.Context, req ua.Request) error {
	body := ua.EncodeRequest(req)
	cfg := ch.state.Config()
	if cfg.MaxMessageSize > 0 && uint32(len(body)) > cfg.MaxMessageSize {
		return fmt.Errorf("%w: %s is %d bytes, limit %d", ErrMessageTooLarge,
			req.ServiceID(), len(body), cfg.MaxMessageSize)
	}
	return ch.writeSymmetric(ctx, ua.MessageTypeMessage, body, cfg.SendBufferSize)
}

func (ch *channel) writeSymmetric(ctx context.Context, msgType string, body []byte, bufferSize uint32) error {
	room := int(bufferSize) - symmetricOverhead
	if room <= 0 {
		room = len(body)
	}

	ch.sendMu.Lock()
	defer ch.sendMu.Unlock()

	channelID, tokenID := ch.ids()
	reqID := ch.nextRequestIDLocked()
	for {
		n := min(room, len(body))
		chunkType := ua.ChunkTypeIntermediate
		if n == len(body) {
			chunkType = ua.ChunkTypeFinal
		}

		e := ua.NewEncoder()
		e.WriteUInt32(channelID)
		e.WriteUInt32(tokenID)
		e.WriteUInt32(ch.nextSeqLocked())
		e.WriteUInt32(reqID)
		e.WriteRaw(body[:n])
		if err := ch.t.WriteChunk(ctx, ua.Frame(msgType, chunkType, e.Bytes())); err != nil {
			return err
		}

		body = body[n:]
		if chunkType == ua.ChunkTypeFinal {
			return nil
		}
	}
}

// Receive returns the next complete service response. Token renewals are
// handled here and never returned.
func (ch *channel) Receive() (ua.Response, error) {
	for {
		chunk, err := ch.t.ReadChunk()
		if err != nil {
			return nil, err
		}
		var h ua.MessageHeader
		if err := h.Decode(chunk); err != nil {
			return nil, err
		}
		body := chunk[ua.MessageHeaderSize:]

		switch h.MessageType {
		case ua.MessageTypeMessage:
			resp, done, err := ch.assemble(h.ChunkType, body)
			if done {
				return resp, err
			}
		case ua.MessageTypeOpenChannel:
			resp, err := decodeOpenResponse(body)
			if err != nil {
				ch.logger.Warn("channel renewal failed", slog.String("error", err.Error()))
				continue
			}
			ch.applyToken(resp.SecurityToken)
			ch.logger.Debug("secure channel renewed",
				slog.Uint64("token_id", uint64(resp.SecurityToken.TokenID)))
		case ua.MessageTypeError:
			return nil, decodeErrorMessage(body)
		default:
			return nil, fmt.Errorf("%w: unexpected message type %q", ua.ErrInvalidMessage, h.MessageType)
		}
	}
}

// assemble adds one MSG chunk to its request's sequence. done is set once a
// final chunk completed the message or a chunk could not be used.
func (ch *channel) assemble(chunkType byte, body []byte) (ua.Response, bool, error) {
	d := ua.NewDecoder(body)
	d.ReadUInt32() // channel id
	d.ReadUInt32() // token id
	d.ReadUInt32() // sequence number
	reqID := d.ReadUInt32()
	if err := d.Err(); err != nil {
		return nil, true, err
	}
	payload := body[len(body)-d.Remaining():]

	switch chunkType {
	case ua.ChunkTypeAbort:
		delete(ch.partial, reqID)
		reason := decodeErrorMessage(payload)
		ch.logger.Warn("message aborted by server",
			slog.Uint64("request_id", uint64(reqID)),
			slog.String("reason", reason.Error()))
		return nil, false, nil
	case ua.ChunkTypeIntermediate:
		buf := append(ch.partial[reqID], payload...)
		if ch.maxMessageSize > 0 && uint32(len(buf)) > ch.maxMessageSize {
			delete(ch.partial, reqID)
			return nil, true, fmt.Errorf("%w: response to request %d exceeds %d bytes",
				ua.ErrInvalidMessage, reqID, ch.maxMessageSize)
		}
		ch.partial[reqID] = buf
		return nil, false, nil
	case ua.ChunkTypeFinal:
		if buf, ok := ch.partial[reqID]; ok {
			payload = append(buf, payload...)
			delete(ch.partial, reqID)
		}
		resp, err := ua.DecodeResponse(payload)
		return resp, true, err
	default:
		return nil, true, fmt.Errorf("%w: chunk type %q", ua.ErrInvalidMessage, chunkType)
	}
}

// RenewIfDue asks for a fresh token once 75% of the current lifetime has
// passed. The answer is consumed by Receive.
func (ch *channel) RenewIfDue(ctx context.Context, now time.Time) error {
	ch.mu.Lock()
	due := ch.lifetime > 0 && !ch.renewing && now.Sub(ch.openedAt) >= ch.lifetime*3/4
	if due {
		ch.renewing = true
	}
	ch.mu.Unlock()
	if !due {
		return nil
	}
	ch.logger.Debug("renewing secure channel")
	return ch.writeOpen(ctx, ua.SecurityTokenRenew)
}

// Close sends CLO and closes the transport.
func (ch *channel) Close() error {
	req := &ua.CloseSecureChannelRequest{RequestHeader: ch.state.MakeRequestHeader()}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := ch.writeSymmetric(ctx, ua.MessageTypeCloseChannel, ua.EncodeRequest(req), 0); err != nil &&
		!errors.Is(err, transport.ErrNotConnected) {
		ch.logger.Debug("close secure channel", slog.String("error", err.Error()))
	}
	return ch.t.Close()
}
