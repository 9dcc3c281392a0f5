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

// Package transport provides the full-duplex TCP chunk transport of a UA
// client. Writes are serialized; reads are meant for a single receiver
// goroutine.
package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// headerSize is the size of the fixed UA TCP chunk header.
const headerSize = 8

// DefaultMaxChunkSize bounds a received chunk until the peer negotiates
// buffer sizes.
const DefaultMaxChunkSize = 16 * 1024 * 1024

var (
	// ErrNotConnected is returned when the transport has no connection.
	ErrNotConnected = errors.New("transport: not connected")

	// ErrChunkTooLarge is returned for a chunk above the size limit.
	ErrChunkTooLarge = errors.New("transport: chunk too large")
)

// TCPTransport carries UA TCP chunks over one connection. One goroutine may
// write while another reads.
type TCPTransport struct {
	addr    string
	timeout time.Duration

	mu           sync.RWMutex
	conn         net.Conn
	maxChunkSize uint32

	writeMu sync.Mutex
}

// NewTCPTransport creates a transport for addr. timeout bounds dialing and
// writes when the context carries no deadline.
func NewTCPTransport(addr string, timeout time.Duration) *TCPTransport {
	return &TCPTransport{
		addr:         addr,
		timeout:      timeout,
		maxChunkSize: DefaultMaxChunkSize,
	}
}

// NewConnTransport wraps an established connection.
func NewConnTransport(conn net.Conn, timeout time.Duration) *TCPTransport {
	t := NewTCPTransport(conn.RemoteAddr().String(), timeout)
	t.conn = conn
	return t
}

// Connect dials the endpoint. It is a no-op when already connected.
func (t *TCPTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		return nil
	}

	if _, ok := ctx.Deadline(); !ok && t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", t.addr, err)
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		tcpConn.SetKeepAlive(true)
		tcpConn.SetKeepAlivePeriod(30 * time.Second)
		tcpConn.SetNoDelay(true)
	}

	t.conn = conn
	return nil
}

// SetMaxChunkSize sets the largest chunk ReadChunk accepts. Zero restores
// the default.
func (t *TCPTransport) SetMaxChunkSize(n uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n == 0 {
		n = DefaultMaxChunkSize
	}
	t.maxChunkSize = n
}

func (t *TCPTransport) current() (net.Conn, uint32) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.conn, t.maxChunkSize
}

// WriteChunk writes one complete chunk.
func (t *TCPTransport) WriteChunk(ctx context.Context, chunk []byte) error {
	conn, _ := t.current()
	if conn == nil {
		return ErrNotConnected
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok && t.timeout > 0 {
		deadline = time.Now().Add(t.timeout)
	}
	conn.SetWriteDeadline(deadline)

	if _, err := conn.Write(chunk); err != nil {
		return fmt.Errorf("write chunk: %w", err)
	}
	return nil
}

// ReadChunk blocks until one complete chunk, header included, has arrived.
func (t *TCPTransport) ReadChunk() ([]byte, error) {
	conn, limit := t.current()
	if conn == nil {
		return nil, ErrNotConnected
	}

	header := make([]byte, headerSize)
	if _, err := io.ReadFull(conn, header); err != nil {
		return nil, fmt.Errorf("read chunk header: %w", err)
	}

	size := binary.LittleEndian.Uint32(header[4:8])
	if size < headerSize {
		return nil, fmt.Errorf("invalid chunk size %d", size)
	}
	if size > limit {
		return nil, fmt.Errorf("%w: %d > %d", ErrChunkTooLarge, size, limit)
	}

	chunk := make([]byte, size)
	copy(chunk, header)
	if _, err := io.ReadFull(conn, chunk[headerSize:]); err != nil {
		return nil, fmt.Errorf("read chunk body: %w", err)
	}
	return chunk, nil
}

// Close closes the connection. A blocked ReadChunk returns an error.
func (t *TCPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

// LocalAddr returns the local network address.
func (t *TCPTransport) LocalAddr() net.Addr {
	conn, _ := t.current()
	if conn == nil {
		return nil
	}
	return conn.LocalAddr()
}

// RemoteAddr returns the remote network address.
func (t *TCPTransport) RemoteAddr() net.Addr {
	conn, _ := t.current()
	if conn == nil {
		return nil
	}
	return conn.RemoteAddr()
}
