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

package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/edgeo-scada/uaclient/ua"
)

// Default session parameters, used until the server negotiates others.
const (
	DefaultSessionTimeout    = 60 * time.Second
	DefaultRequestTimeout    = 10 * time.Second
	DefaultBufferSize        = 65536
	DefaultMaxMessageSize    = 65536
	firstRequestHandle       = 1
	firstMonitoredItemHandle = 1000
)

// Config holds the negotiated session parameters.
type Config struct {
	SessionTimeout    time.Duration
	RequestTimeout    time.Duration
	SendBufferSize    uint32
	ReceiveBufferSize uint32
	MaxMessageSize    uint32
}

// DefaultConfig returns the parameters used before negotiation.
func DefaultConfig() Config {
	return Config{
		SessionTimeout:    DefaultSessionTimeout,
		RequestTimeout:    DefaultRequestTimeout,
		SendBufferSize:    DefaultBufferSize,
		ReceiveBufferSize: DefaultBufferSize,
		MaxMessageSize:    DefaultMaxMessageSize,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SessionTimeout <= 0 {
		c.SessionTimeout = d.SessionTimeout
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = d.RequestTimeout
	}
	if c.SendBufferSize == 0 {
		c.SendBufferSize = d.SendBufferSize
	}
	if c.ReceiveBufferSize == 0 {
		c.ReceiveBufferSize = d.ReceiveBufferSize
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = d.MaxMessageSize
	}
	return c
}

// Stats is a snapshot of the session bookkeeping.
type Stats struct {
	QueuedRequests   int
	InFlightRequests int
	HeldResponses    int
	PendingAcks      int
}

// Option configures a State.
type Option func(*stateOptions)

type stateOptions struct {
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time
}

func defaultStateOptions() *stateOptions {
	return &stateOptions{
		logger: slog.Default(),
		now:    time.Now,
	}
}

// WithLogger sets the logger. Stray and replaced responses are logged at
// debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(o *stateOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(o *stateOptions) {
		o.metrics = m
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *stateOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// State is the per-session aggregate shared by the sender and receiver
// paths. One RWMutex guards all of it.
type State struct {
	mu sync.RWMutex

	cfg                 Config
	sessionID           ua.NodeID
	authToken           ua.NodeID
	waitForPublishResp  bool
	requestHandles      *Handle
	monitoredItemHandle *Handle

	queue     OutboundQueue
	inFlight  *InFlightRegistry
	responses *ResponseCorrelator
	acks      AckTracker

	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time
}

// New creates a State. Zero fields of cfg take their default values.
func New(cfg Config, opts ...Option) *State {
	o := defaultStateOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &State{
		cfg:                 cfg.withDefaults(),
		requestHandles:      NewHandle(firstRequestHandle),
		monitoredItemHandle: NewHandle(firstMonitoredItemHandle),
		inFlight:            NewInFlightRegistry(),
		responses:           NewResponseCorrelator(),
		logger:              o.logger,
		metrics:             o.metrics,
		now:                 o.now,
	}
}

// Config returns the current session parameters.
func (s *State) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// SetConfig stores negotiated parameters. Zero fields take their defaults.
func (s *State) SetConfig(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg.withDefaults()
}

// MakeRequestHeader returns a header carrying the authentication token, the
// current time, a fresh request handle and the request timeout as hint.
func (s *State) MakeRequestHeader() ua.RequestHeader {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.makeRequestHeaderLocked()
}

func (s *State) makeRequestHeaderLocked() ua.RequestHeader {
	s.metrics.handleIssued()
	return ua.RequestHeader{
		AuthenticationToken: s.authToken,
		Timestamp:           s.now(),
		RequestHandle:       s.requestHandles.Next(),
		TimeoutHint:         uint32(s.cfg.RequestTimeout / time.Millisecond),
	}
}

// Submit stamps req with a fresh header and queues it, as one step. It
// returns the request handle the response will carry.
func (s *State) Submit(req ua.Request, async bool) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.makeRequestHeaderLocked()
	*req.Header() = h
	s.queue.Push(req, async)
	s.observeLocked()
	return h.RequestHandle
}

// NextMonitoredItemHandle returns a fresh client handle for a monitored
// item. These never share a counter with request handles.
func (s *State) NextMonitoredItemHandle() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.monitoredItemHandle.Next()
}

// DequeueRequest removes the oldest queued request.
func (s *State) DequeueRequest() (PendingRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.queue.Pop()
	if ok {
		s.observeLocked()
	}
	return p, ok
}

// MarkInFlight records that the request with handle is being written.
func (s *State) MarkInFlight(handle uint32, async bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight.Mark(handle, async, s.now())
	s.observeLocked()
}

// ResolveInFlight removes the in-flight entry for handle, if any. It is
// called when a request times out or fails to send; calling it twice is
// harmless.
func (s *State) ResolveInFlight(handle uint32) (InFlightEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.inFlight.Resolve(handle)
	if ok {
		s.observeLocked()
	}
	return e, ok
}

// Abandon forgets the request with handle wherever it is: a request still
// queued is removed so it is never written, and an in-flight entry is
// resolved. It reports whether the request was still queued.
func (s *State) Abandon(handle uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	queued := s.queue.Remove(handle)
	_, inFlight := s.inFlight.Resolve(handle)
	if queued || inFlight {
		s.observeLocked()
	}
	return queued
}

// ExpiredInFlight lists in-flight requests written before the given time.
func (s *State) ExpiredInFlight(before time.Time) []InFlightEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inFlight.Expired(before)
}

// DepositResponse stores resp for its request handle. The dispatch flag is
// taken from the in-flight entry, which is resolved. A response with no
// in-flight entry is kept as synchronous so that a caller polling its handle
// can still claim it.
func (s *State) DepositResponse(resp ua.Response) {
	s.mu.Lock()
	defer s.mu.Unlock()

	handle := resp.Header().RequestHandle
	entry, ok := s.inFlight.Resolve(handle)
	if !ok {
		s.metrics.strayResponse()
		s.logger.Debug("stray response", slog.Uint64("handle", uint64(handle)))
	}
	if s.responses.Deposit(resp, entry.Async, s.now()) {
		s.metrics.replacedResponse()
		s.logger.Debug("response replaced", slog.Uint64("handle", uint64(handle)))
	}
	s.observeLocked()
}

// TakeResponse removes and returns the response for handle.
func (s *State) TakeResponse(handle uint32) (ua.Response, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	resp, ok := s.responses.Take(handle)
	if ok {
		s.observeLocked()
	}
	return resp, ok
}

// DrainAsyncResponses removes every asynchronous response, ordered by
// ascending request handle.
func (s *State) DrainAsyncResponses() []ua.Response {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.responses.DrainAsync()
	if len(out) > 0 {
		s.observeLocked()
	}
	return out
}

// SweepResponses drops held responses that arrived before the given time
// and returns how many were dropped.
func (s *State) SweepResponses(before time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.responses.Sweep(before)
	if n > 0 {
		s.metrics.discardedResponses(n)
		s.observeLocked()
	}
	return n
}

// RecordAck queues an acknowledgement for the next publish request.
func (s *State) RecordAck(subscriptionID, sequenceNumber uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acks.Record(subscriptionID, sequenceNumber)
	s.metrics.ackRecorded()
	s.observeLocked()
}

// DrainAcks returns and clears the pending acknowledgements.
func (s *State) DrainAcks() []ua.SubscriptionAcknowledgement {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.acks.Drain()
	if len(out) > 0 {
		s.observeLocked()
	}
	return out
}

// SessionID returns the server-assigned session id, null until a session
// is created.
func (s *State) SessionID() ua.NodeID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionID
}

// SetSessionID stores the id returned by CreateSession.
func (s *State) SetSessionID(id ua.NodeID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionID = id
}

// AuthenticationToken returns the token stamped on every request header,
// null until a session is created.
func (s *State) AuthenticationToken() ua.NodeID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authToken
}

// SetAuthenticationToken stores the token stamped on subsequent request
// headers.
func (s *State) SetAuthenticationToken(token ua.NodeID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authToken = token
}

// WaitForPublishResponse reports whether a publish request is outstanding.
func (s *State) WaitForPublishResponse() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.waitForPublishResp
}

// SetWaitForPublishResponse records whether a publish request is outstanding.
func (s *State) SetWaitForPublishResponse(wait bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waitForPublishResp = wait
}

// Reset releases all pending work: held responses, queued requests,
// in-flight entries and acknowledgements. Identity and handle counters are
// kept.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.responses.DiscardAll()
	s.metrics.discardedResponses(n)
	s.queue.Clear()
	s.inFlight.Clear()
	s.acks.Drain()
	s.waitForPublishResp = false
	s.observeLocked()
	if n > 0 {
		s.logger.Debug("discarded held responses", slog.Int("count", n))
	}
}

// ClearIdentity resets the session id and authentication token to null.
func (s *State) ClearIdentity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionID = ua.NodeID{}
	s.authToken = ua.NodeID{}
}

// Stats returns a snapshot of the bookkeeping sizes.
func (s *State) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statsLocked()
}

func (s *State) statsLocked() Stats {
	return Stats{
		QueuedRequests:   s.queue.Len(),
		InFlightRequests: s.inFlight.Len(),
		HeldResponses:    s.responses.Len(),
		PendingAcks:      s.acks.Len(),
	}
}

func (s *State) observeLocked() {
	if s.metrics != nil {
		s.metrics.observe(s.statsLocked())
	}
}
