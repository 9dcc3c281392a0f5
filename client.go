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
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/edgeo-scada/uaclient/internal/transport"
	"github.com/edgeo-scada/uaclient/session"
	"github.com/edgeo-scada/uaclient/ua"
)

// Client is an OPC UA client. Service calls from many goroutines share one
// secure channel; responses are matched to callers by request handle.
type Client struct {
	endpoint string
	addr     string
	opts     *clientOptions
	state    *session.State
	metrics  *Metrics
	logger   *slog.Logger

	dial func(ctx context.Context) (messageConn, error)

	// kick wakes the sender goroutine.
	kick chan struct{}

	arrivalMu sync.Mutex
	arrival   chan struct{}

	mu        sync.Mutex
	connState ConnectionState
	closed    bool
	closeCh   chan struct{}
	link      *link
	subs      map[uint32]*Subscription
	endpoints []ua.EndpointDescription
}

// link is one connected secure channel and the goroutines serving it.
type link struct {
	conn   messageConn
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	err    error

	// active is set once a session was activated on this link.
	active bool
}

// NewClient creates a client for endpoint, given as "opc.tcp://host:port/path"
// or "host:port".
func NewClient(endpoint string, opts ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, errors.New("uaclient: endpoint cannot be empty")
	}
	addr, err := endpointAddress(endpoint)
	if err != nil {
		return nil, err
	}

	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	metrics := NewMetrics()
	if options.registerer != nil {
		if err := metrics.Register(options.registerer); err != nil {
			return nil, fmt.Errorf("uaclient: register metrics: %w", err)
		}
	}

	state := session.New(session.Config{
		SessionTimeout:    options.sessionTimeout,
		RequestTimeout:    options.timeout,
		SendBufferSize:    options.sendBufferSize,
		ReceiveBufferSize: options.receiveBufferSize,
		MaxMessageSize:    options.maxMessageSize,
	}, session.WithLogger(options.logger), session.WithMetrics(metrics.Session))

	c := &Client{
		endpoint: endpoint,
		addr:     addr,
		opts:     options,
		state:    state,
		metrics:  metrics,
		logger:   options.logger,
		kick:     make(chan struct{}, 1),
		arrival:  make(chan struct{}),
		closeCh:  make(chan struct{}),
		subs:     make(map[uint32]*Subscription),
	}
	c.dial = c.dialChannel
	return c, nil
}

// endpointAddress extracts host:port from an endpoint URL.
func endpointAddress(endpoint string) (string, error) {
	host := endpoint
	if u, err := url.Parse(endpoint); err == nil && u.Scheme != "" && u.Host != "" {
		if u.Scheme != "opc.tcp" {
			return "", fmt.Errorf("uaclient: unsupported scheme %q", u.Scheme)
		}
		host = u.Host
	}
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, strconv.Itoa(ua.DefaultPort))
	}
	return host, nil
}

func (c *Client) dialChannel(ctx context.Context) (messageConn, error) {
	ch := newChannel(c.endpoint, transport.NewTCPTransport(c.addr, c.opts.timeout), c.state, c.opts)
	if err := ch.Open(ctx); err != nil {
		return nil, err
	}
	return ch, nil
}

// Connect opens the secure channel and starts the dispatch goroutines.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrConnectionClosed
	}
	if c.link != nil {
		c.mu.Unlock()
		return nil
	}
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	c.logger.Debug("connecting", slog.String("addr", c.addr))

	c.state.Reset()
	c.state.ClearIdentity()
	conn, err := c.dial(ctx)
	if err != nil {
		c.setState(StateDisconnected)
		return err
	}

	lctx, cancel := context.WithCancel(context.Background())
	l := &link{conn: conn, cancel: cancel, done: make(chan struct{})}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		cancel()
		conn.Close()
		return ErrConnectionClosed
	}
	c.link = l
	c.setStateLocked(StateSecureChannelOpen)
	c.mu.Unlock()

	go c.sendLoop(lctx, l)
	go c.receiveLoop(l)
	go c.housekeep(lctx, l)
	c.wake()

	c.logger.Info("secure channel opened", slog.String("addr", c.addr))

	if c.opts.onConnect != nil {
		c.opts.onConnect()
	}
	return nil
}

// ConnectAndActivateSession connects, then creates and activates a session.
func (c *Client) ConnectAndActivateSession(ctx context.Context) error {
	if err := c.Connect(ctx); err != nil {
		return err
	}

	if err := c.createSession(ctx); err != nil {
		c.disconnect(fmt.Errorf("create session failed: %w", err))
		return fmt.Errorf("create session failed: %w", err)
	}
	if err := c.activateSession(ctx); err != nil {
		c.disconnect(fmt.Errorf("activate session failed: %w", err))
		return fmt.Errorf("activate session failed: %w", err)
	}

	c.mu.Lock()
	if c.link != nil {
		c.link.active = true
	}
	c.setStateLocked(StateSessionActive)
	c.mu.Unlock()

	c.logger.Info("session activated",
		slog.String("addr", c.addr),
		slog.String("session_id", c.state.SessionID().String()))

	if c.opts.onSessionActivated != nil {
		c.opts.onSessionActivated()
	}
	return nil
}

func (c *Client) createSession(ctx context.Context) error {
	c.logger.Debug("creating session", slog.String("name", c.opts.sessionName))

	nonce := make([]byte, 32)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generate client nonce: %w", err)
	}

	resp, err := call[*ua.CreateSessionResponse](ctx, c, &ua.CreateSessionRequest{
		ClientDescription: ua.ApplicationDescription{
			ApplicationURI:  c.opts.applicationURI,
			ProductURI:      c.opts.productURI,
			ApplicationName: ua.LocalizedText{Text: c.opts.applicationName},
			ApplicationType: ua.ApplicationTypeClient,
		},
		EndpointURL:             c.endpoint,
		SessionName:             c.opts.sessionName,
		ClientNonce:             nonce,
		RequestedSessionTimeout: float64(c.opts.sessionTimeout / time.Millisecond),
	})
	if err != nil {
		return err
	}

	c.state.SetSessionID(resp.SessionID)
	c.state.SetAuthenticationToken(resp.AuthenticationToken)

	cfg := c.state.Config()
	cfg.SessionTimeout = time.Duration(resp.RevisedSessionTimeout * float64(time.Millisecond))
	if resp.MaxRequestMessageSize > 0 {
		cfg.MaxMessageSize = resp.MaxRequestMessageSize
	}
	c.state.SetConfig(cfg)

	c.mu.Lock()
	c.endpoints = resp.ServerEndpoints
	c.mu.Unlock()

	c.logger.Debug("session created",
		slog.String("session_id", resp.SessionID.String()),
		slog.Float64("timeout_ms", resp.RevisedSessionTimeout))
	return nil
}

func (c *Client) activateSession(ctx context.Context) error {
	c.mu.Lock()
	policyID := c.findPolicyID(c.endpoints)
	c.mu.Unlock()

	var token ua.IdentityToken
	switch c.opts.authType {
	case AuthTypeUserPassword:
		token = &ua.UserNameIdentityToken{
			PolicyID: policyID,
			UserName: c.opts.username,
			Password: []byte(c.opts.password),
		}
	default:
		token = &ua.AnonymousIdentityToken{PolicyID: policyID}
	}

	_, err := call[*ua.ActivateSessionResponse](ctx, c, &ua.ActivateSessionRequest{
		LocaleIDs:         []string{"en"},
		UserIdentityToken: token,
	})
	return err
}

// findPolicyID picks the identity token policy for the configured auth
// type from the endpoints returned by CreateSession.
func (c *Client) findPolicyID(endpoints []ua.EndpointDescription) string {
	targetType := ua.UserTokenTypeAnonymous
	if c.opts.authType == AuthTypeUserPassword {
		targetType = ua.UserTokenTypeUserName
	}

	for _, ep := range endpoints {
		if ep.SecurityPolicyURI == ua.SecurityPolicyNone && ep.SecurityMode == ua.MessageSecurityModeNone {
			for _, token := range ep.UserIdentityTokens {
				if token.TokenType == targetType {
					return token.PolicyID
				}
			}
		}
	}

	for _, ep := range endpoints {
		for _, token := range ep.UserIdentityTokens {
			if token.TokenType == targetType {
				c.logger.Debug("using fallback policy ID", slog.String("policy_id", token.PolicyID))
				return token.PolicyID
			}
		}
	}

	if c.opts.authType == AuthTypeUserPassword {
		return "username"
	}
	return "anonymous"
}

// Close closes the session, deleting its subscriptions, and the channel.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	l := c.link
	active := l != nil && l.active
	c.mu.Unlock()

	if active {
		ctx, cancel := context.WithTimeout(context.Background(), c.opts.timeout)
		_, err := call[*ua.CloseSessionResponse](ctx, c, &ua.CloseSessionRequest{DeleteSubscriptions: true})
		cancel()
		if err != nil {
			c.logger.Debug("close session", slog.String("error", err.Error()))
		}
	}

	c.mu.Lock()
	c.closed = true
	close(c.closeCh)
	c.mu.Unlock()

	c.logger.Debug("closing connection", slog.String("addr", c.addr))

	if l != nil {
		c.dropLink(l, ErrConnectionClosed)
	}
	c.state.ClearIdentity()
	c.closeSubscriptions(ErrConnectionClosed)

	if active && c.opts.onSessionClosed != nil {
		c.opts.onSessionClosed(nil)
	}
	return nil
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connState
}

// IsConnected returns true if the secure channel is open.
func (c *Client) IsConnected() bool {
	s := c.State()
	return s >= StateSecureChannelOpen && s != StateReconnecting
}

// IsSessionActive returns true if the session is active.
func (c *Client) IsSessionActive() bool {
	return c.State() == StateSessionActive
}

// Metrics returns the client metrics.
func (c *Client) Metrics() *Metrics {
	return c.metrics
}

// Stats returns a snapshot of the request bookkeeping.
func (c *Client) Stats() session.Stats {
	return c.state.Stats()
}

// SessionID returns the id of the active session, or the null NodeID.
func (c *Client) SessionID() ua.NodeID {
	return c.state.SessionID()
}

// Endpoints returns the server endpoints reported when the session was
// created.
func (c *Client) Endpoints() []ua.EndpointDescription {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ua.EndpointDescription(nil), c.endpoints...)
}

// Address returns the server address.
func (c *Client) Address() string {
	return c.addr
}

func (c *Client) setState(s ConnectionState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setStateLocked(s)
}

func (c *Client) setStateLocked(s ConnectionState) {
	c.connState = s
	c.metrics.setState(s)
}

func (c *Client) currentLink() (*link, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrConnectionClosed
	}
	if c.link == nil {
		return nil, ErrNotConnected
	}
	return c.link, nil
}

func (c *Client) wake() {
	select {
	case c.kick <- struct{}{}:
	default:
	}
}

// arrivalSignal returns a channel that is closed when the next response is
// deposited.
func (c *Client) arrivalSignal() <-chan struct{} {
	c.arrivalMu.Lock()
	defer c.arrivalMu.Unlock()
	return c.arrival
}

func (c *Client) signalArrival() {
	c.arrivalMu.Lock()
	defer c.arrivalMu.Unlock()
	close(c.arrival)
	c.arrival = make(chan struct{})
}

// Call sends req and waits for its response. A ServiceFault or a bad service
// result is returned as a *ua.ServiceError. When ctx ends or the request
// times out before it was written, it is withdrawn from the send queue.
func (c *Client) Call(ctx context.Context, req ua.Request) (ua.Response, error) {
	l, err := c.currentLink()
	if err != nil {
		return nil, err
	}

	svc := req.ServiceID()
	start := time.Now()
	handle := c.state.Submit(req, false)
	c.wake()

	timer := time.NewTimer(c.state.Config().RequestTimeout)
	defer timer.Stop()

	for {
		arrived := c.arrivalSignal()
		if resp, ok := c.state.TakeResponse(handle); ok {
			if err := ua.ServiceResult(svc, resp); err != nil {
				c.metrics.observeRequest(svc.String(), "bad", time.Since(start))
				return nil, err
			}
			c.metrics.observeRequest(svc.String(), "good", time.Since(start))
			c.logger.Debug("received response",
				slog.String("service", svc.String()),
				slog.Uint64("request_handle", uint64(handle)),
				slog.Duration("duration", time.Since(start)))
			return resp, nil
		}

		select {
		case <-arrived:
		case <-timer.C:
			c.state.Abandon(handle)
			c.metrics.observeRequest(svc.String(), "timeout", time.Since(start))
			return nil, fmt.Errorf("%s request %d: %w", svc, handle, ErrTimeout)
		case <-ctx.Done():
			c.state.Abandon(handle)
			c.metrics.observeRequest(svc.String(), "error", time.Since(start))
			return nil, ctx.Err()
		case <-l.done:
			c.state.Abandon(handle)
			c.metrics.observeRequest(svc.String(), "error", time.Since(start))
			return nil, fmt.Errorf("%s request %d: %w", svc, handle, ErrConnectionLost)
		}
	}
}

// call is Call with the response asserted to type T.
func call[T ua.Response](ctx context.Context, c *Client, req ua.Request) (T, error) {
	var zero T
	resp, err := c.Call(ctx, req)
	if err != nil {
		return zero, err
	}
	typed, ok := resp.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %T for %s", ErrInvalidResponse, resp, req.ServiceID())
	}
	return typed, nil
}

func (c *Client) sendLoop(ctx context.Context, l *link) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.kick:
		}

		for {
			p, ok := c.state.DequeueRequest()
			if !ok {
				break
			}
			handle := p.Handle()
			c.state.MarkInFlight(handle, p.Async)

			c.logger.Debug("sending request",
				slog.String("service", p.Request.ServiceID().String()),
				slog.Uint64("request_handle", uint64(handle)))

			err := l.conn.Send(ctx, p.Request)
			if err == nil {
				continue
			}
			if errors.Is(err, ErrMessageTooLarge) {
				c.logger.Warn("request not sent", slog.String("error", err.Error()))
				c.state.DepositResponse(&ua.ServiceFault{ResponseHeader: ua.ResponseHeader{
					Timestamp:     time.Now(),
					RequestHandle: handle,
					ServiceResult: ua.StatusBadRequestTooLarge,
				}})
				c.signalArrival()
				continue
			}
			c.state.ResolveInFlight(handle)
			c.dropLink(l, fmt.Errorf("send: %w", err))
			return
		}
	}
}

func (c *Client) receiveLoop(l *link) {
	for {
		resp, err := l.conn.Receive()
		if err != nil {
			if errors.Is(err, ua.ErrInvalidMessage) || errors.Is(err, ua.ErrUnknownType) {
				c.logger.Warn("discarding undecodable message", slog.String("error", err.Error()))
				continue
			}
			c.dropLink(l, err)
			return
		}
		c.state.DepositResponse(resp)
		c.signalArrival()
	}
}

// housekeep serves asynchronous responses and keeps the publish cycle going.
func (c *Client) housekeep(ctx context.Context, l *link) {
	ticker := time.NewTicker(c.opts.publishTick)
	defer ticker.Stop()

	for {
		arrived := c.arrivalSignal()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-arrived:
		}

		for _, resp := range c.state.DrainAsyncResponses() {
			c.handlePublishResponse(resp)
		}
		c.publish()

		now := time.Now()
		c.expireInFlight(now)
		c.state.SweepResponses(now.Add(-2 * c.state.Config().RequestTimeout))

		if r, ok := l.conn.(interface {
			RenewIfDue(context.Context, time.Time) error
		}); ok {
			if err := r.RenewIfDue(ctx, now); err != nil {
				c.dropLink(l, fmt.Errorf("renew secure channel: %w", err))
				return
			}
		}
	}
}

// disconnect drops the current link, if any.
func (c *Client) disconnect(err error) {
	c.mu.Lock()
	l := c.link
	c.mu.Unlock()
	if l != nil {
		c.dropLink(l, err)
	}
}

// dropLink tears l down once. Pending calls on l fail with
// ErrConnectionLost and the session bookkeeping is reset.
func (c *Client) dropLink(l *link, err error) {
	l.once.Do(func() {
		l.err = err
		l.cancel()
		close(l.done)
		l.conn.Close()

		c.mu.Lock()
		if c.link != l {
			c.mu.Unlock()
			return
		}
		c.link = nil
		c.setStateLocked(StateDisconnected)
		closed := c.closed
		active := l.active
		c.mu.Unlock()

		c.state.Reset()
		if closed {
			return
		}

		c.logger.Warn("disconnected", slog.String("error", err.Error()))
		if c.opts.onDisconnect != nil {
			c.opts.onDisconnect(err)
		}
		if active {
			c.closeSubscriptions(ErrSessionClosed)
			if c.opts.onSessionClosed != nil {
				c.opts.onSessionClosed(err)
			}
			if c.opts.autoReconnect {
				go c.reconnect()
			}
		}
	})
}

func (c *Client) reconnect() {
	backoff := c.opts.reconnectBackoff

	for attempt := 1; ; attempt++ {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		c.setStateLocked(StateReconnecting)
		c.mu.Unlock()

		if c.opts.maxRetries > 0 && attempt > c.opts.maxRetries {
			c.setState(StateDisconnected)
			c.logger.Error("giving up reconnection",
				slog.String("addr", c.addr),
				slog.String("error", ErrMaxRetriesExceeded.Error()))
			return
		}

		c.logger.Info("attempting reconnection",
			slog.String("addr", c.addr),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", backoff))

		ctx, cancel := context.WithTimeout(context.Background(), c.opts.timeout)
		err := c.ConnectAndActivateSession(ctx)
		cancel()
		if err == nil {
			c.metrics.reconnects.Inc()
			c.logger.Info("reconnected", slog.String("addr", c.addr))
			return
		}
		if errors.Is(err, ErrConnectionClosed) {
			return
		}
		c.logger.Warn("reconnection failed", slog.String("error", err.Error()))

		select {
		case <-c.closeCh:
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, c.opts.maxReconnectTime)
	}
}
