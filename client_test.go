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
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgeo-scada/uaclient/ua"
)

// fakeConn is an in-memory messageConn. Tests read what the client sent
// from sent and answer through respond.
type fakeConn struct {
	sent   chan ua.Request
	out    chan ua.Response
	closed chan struct{}
	once   sync.Once

	mu   sync.Mutex
	gate chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		sent:   make(chan ua.Request, 64),
		out:    make(chan ua.Response, 64),
		closed: make(chan struct{}),
	}
}

func (f *fakeConn) Send(ctx context.Context, req ua.Request) error {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-f.closed:
			return io.ErrClosedPipe
		}
	}
	select {
	case f.sent <- req:
		return nil
	case <-f.closed:
		return io.ErrClosedPipe
	}
}

func (f *fakeConn) Receive() (ua.Response, error) {
	select {
	case resp := <-f.out:
		return resp, nil
	case <-f.closed:
		return nil, io.EOF
	}
}

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

// hold makes Send block until the returned function is called.
func (f *fakeConn) hold() (release func()) {
	gate := make(chan struct{})
	f.mu.Lock()
	f.gate = gate
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.gate = nil
		f.mu.Unlock()
		close(gate)
	}
}

func (f *fakeConn) respond(resp ua.Response) {
	f.out <- resp
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, opts ...Option) (*Client, *fakeConn) {
	t.Helper()
	opts = append([]Option{
		WithLogger(discardLogger()),
		WithTimeout(time.Second),
		WithPublishTick(10 * time.Millisecond),
	}, opts...)
	c, err := NewClient("opc.tcp://localhost:4840", opts...)
	require.NoError(t, err)

	fc := newFakeConn()
	c.dial = func(ctx context.Context) (messageConn, error) { return fc, nil }
	t.Cleanup(func() {
		fc.Close()
		c.Close()
	})
	return c, fc
}

// nextRequest waits for the client to send a request of type T.
func nextRequest[T ua.Request](t *testing.T, fc *fakeConn) T {
	t.Helper()
	select {
	case req := <-fc.sent:
		typed, ok := req.(T)
		require.Truef(t, ok, "got %T", req)
		return typed
	case <-time.After(2 * time.Second):
		t.Fatal("no request sent")
	}
	var zero T
	return zero
}

func answer(req ua.Request) ua.ResponseHeader {
	return ua.ResponseHeader{Timestamp: time.Now(), RequestHandle: req.Header().RequestHandle}
}

var testToken = ua.NewNumericNodeID(0, 777)

func activate(t *testing.T, c *Client, fc *fakeConn) {
	t.Helper()
	errc := make(chan error, 1)
	go func() { errc <- c.ConnectAndActivateSession(context.Background()) }()

	cs := nextRequest[*ua.CreateSessionRequest](t, fc)
	assert.True(t, cs.RequestHeader.AuthenticationToken.IsNull())
	fc.respond(&ua.CreateSessionResponse{
		ResponseHeader:        answer(cs),
		SessionID:             ua.NewNumericNodeID(1, 42),
		AuthenticationToken:   testToken,
		RevisedSessionTimeout: 30000,
		ServerEndpoints: []ua.EndpointDescription{{
			SecurityPolicyURI: ua.SecurityPolicyNone,
			SecurityMode:      ua.MessageSecurityModeNone,
			UserIdentityTokens: []ua.UserTokenPolicy{
				{PolicyID: "anon-policy", TokenType: ua.UserTokenTypeAnonymous},
			},
		}},
	})

	as := nextRequest[*ua.ActivateSessionRequest](t, fc)
	assert.True(t, as.RequestHeader.AuthenticationToken.Equal(testToken))
	tok, ok := as.UserIdentityToken.(*ua.AnonymousIdentityToken)
	require.True(t, ok)
	assert.Equal(t, "anon-policy", tok.PolicyID)
	fc.respond(&ua.ActivateSessionResponse{ResponseHeader: answer(as)})

	require.NoError(t, <-errc)
}

func readAnswer(req *ua.ReadRequest) *ua.ReadResponse {
	v := ua.NewVariant(req.NodesToRead[0].NodeID.Numeric)
	return &ua.ReadResponse{
		ResponseHeader: answer(req),
		Results:        []ua.DataValue{{Value: &v}},
	}
}

func TestNewClientRejectsEmptyEndpoint(t *testing.T) {
	_, err := NewClient("")
	assert.Error(t, err)
}

func TestEndpointAddress(t *testing.T) {
	tests := []struct {
		endpoint string
		want     string
		wantErr  bool
	}{
		{"opc.tcp://plc.local:4841/UA/Server", "plc.local:4841", false},
		{"opc.tcp://plc.local", "plc.local:4840", false},
		{"10.0.0.5:4840", "10.0.0.5:4840", false},
		{"plc.local", "plc.local:4840", false},
		{"http://plc.local:80", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			got, err := endpointAddress(tt.endpoint)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCallBeforeConnect(t *testing.T) {
	c, _ := newTestClient(t)
	_, err := c.ReadValue(context.Background(), ua.NewNumericNodeID(0, 2258))
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.True(t, IsNotConnected(err))
}

func TestConnectAndActivateSession(t *testing.T) {
	c, fc := newTestClient(t)
	activate(t, c, fc)

	assert.Equal(t, StateSessionActive, c.State())
	assert.True(t, c.IsSessionActive())
	assert.True(t, c.IsConnected())
	assert.Equal(t, "ns=1;i=42", c.SessionID().String())
	assert.Equal(t, 30*time.Second, c.state.Config().SessionTimeout)
	require.Len(t, c.Endpoints(), 1)
	assert.Equal(t, ua.SecurityPolicyNone, c.Endpoints()[0].SecurityPolicyURI)

	done := make(chan *ua.DataValue, 1)
	go func() {
		dv, err := c.ReadValue(context.Background(), ua.NewNumericNodeID(0, 2258))
		assert.NoError(t, err)
		done <- dv
	}()

	req := nextRequest[*ua.ReadRequest](t, fc)
	assert.True(t, req.RequestHeader.AuthenticationToken.Equal(testToken))
	assert.Equal(t, uint32(1000), req.RequestHeader.TimeoutHint)
	assert.Equal(t, ua.AttributeValue, req.NodesToRead[0].AttributeID)
	fc.respond(readAnswer(req))

	dv := <-done
	require.NotNil(t, dv)
	assert.Equal(t, uint32(2258), dv.Value.Value)
}

func TestConcurrentCallsOutOfOrder(t *testing.T) {
	c, fc := newTestClient(t)
	require.NoError(t, c.Connect(context.Background()))

	const n = 20
	var wg sync.WaitGroup
	for i := 1; i <= n; i++ {
		wg.Add(1)
		go func(id uint32) {
			defer wg.Done()
			dv, err := c.ReadValue(context.Background(), ua.NewNumericNodeID(0, id))
			if assert.NoError(t, err) {
				assert.Equal(t, id, dv.Value.Value)
			}
		}(uint32(i))
	}

	reqs := make([]*ua.ReadRequest, 0, n)
	for i := 0; i < n; i++ {
		reqs = append(reqs, nextRequest[*ua.ReadRequest](t, fc))
	}
	for i := len(reqs) - 1; i >= 0; i-- {
		fc.respond(readAnswer(reqs[i]))
	}
	wg.Wait()

	stats := c.Stats()
	assert.Zero(t, stats.InFlightRequests)
	assert.Zero(t, stats.HeldResponses)
	assert.Zero(t, stats.QueuedRequests)
}

func TestCallTimeoutLeavesNoInFlightEntry(t *testing.T) {
	c, fc := newTestClient(t, WithTimeout(100*time.Millisecond))
	require.NoError(t, c.Connect(context.Background()))

	errc := make(chan error, 1)
	go func() {
		_, err := c.ReadValue(context.Background(), ua.NewNumericNodeID(0, 1))
		errc <- err
	}()
	req := nextRequest[*ua.ReadRequest](t, fc)

	err := <-errc
	assert.ErrorIs(t, err, ErrTimeout)
	assert.True(t, IsTimeout(err))
	assert.Zero(t, c.Stats().InFlightRequests)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.timeouts))

	// The late answer is held as a stray until swept.
	fc.respond(readAnswer(req))
	assert.Eventually(t, func() bool { return c.Stats().HeldResponses == 1 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return c.Stats().HeldResponses == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestCallContextCanceled(t *testing.T) {
	c, fc := newTestClient(t)
	require.NoError(t, c.Connect(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := c.ReadValue(ctx, ua.NewNumericNodeID(0, 1))
		errc <- err
	}()
	nextRequest[*ua.ReadRequest](t, fc)
	cancel()

	assert.ErrorIs(t, <-errc, context.Canceled)
	assert.Zero(t, c.Stats().InFlightRequests)
}

func TestCanceledCallIsNeverSent(t *testing.T) {
	c, fc := newTestClient(t)
	require.NoError(t, c.Connect(context.Background()))
	release := fc.hold()

	firstc := make(chan error, 1)
	go func() {
		_, err := c.ReadValue(context.Background(), ua.NewNumericNodeID(0, 1))
		firstc <- err
	}()
	// The sender is now stuck writing the first request.
	require.Eventually(t, func() bool { return c.Stats().InFlightRequests == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	secondc := make(chan error, 1)
	go func() {
		v := ua.NewVariant(int32(5))
		secondc <- c.WriteValue(ctx, ua.NewNumericNodeID(2, 2), &v)
	}()
	require.Eventually(t, func() bool { return c.Stats().QueuedRequests == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-secondc, context.Canceled)
	assert.Zero(t, c.Stats().QueuedRequests)

	release()
	req := nextRequest[*ua.ReadRequest](t, fc)
	assert.Equal(t, uint32(1), req.NodesToRead[0].NodeID.Numeric)
	fc.respond(readAnswer(req))
	require.NoError(t, <-firstc)

	select {
	case req := <-fc.sent:
		t.Fatalf("canceled write was sent: %T", req)
	case <-time.After(100 * time.Millisecond):
	}
	stats := c.Stats()
	assert.Zero(t, stats.QueuedRequests)
	assert.Zero(t, stats.InFlightRequests)
	assert.Zero(t, stats.HeldResponses)
}

func TestTimedOutCallIsNeverSent(t *testing.T) {
	c, fc := newTestClient(t, WithTimeout(100*time.Millisecond))
	require.NoError(t, c.Connect(context.Background()))
	release := fc.hold()

	errc := make(chan error, 2)
	for _, id := range []uint32{1, 2} {
		go func(id uint32) {
			_, err := c.ReadValue(context.Background(), ua.NewNumericNodeID(0, id))
			errc <- err
		}(id)
	}
	assert.ErrorIs(t, <-errc, ErrTimeout)
	assert.ErrorIs(t, <-errc, ErrTimeout)
	assert.Zero(t, c.Stats().QueuedRequests)

	// Only the request already being written when the timeout fired goes out.
	release()
	nextRequest[*ua.ReadRequest](t, fc)
	select {
	case req := <-fc.sent:
		t.Fatalf("timed out request was sent: %T", req)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestServiceFaultBecomesServiceError(t *testing.T) {
	c, fc := newTestClient(t)
	require.NoError(t, c.Connect(context.Background()))

	errc := make(chan error, 1)
	go func() {
		_, err := c.ReadValue(context.Background(), ua.NewNumericNodeID(0, 1))
		errc <- err
	}()
	req := nextRequest[*ua.ReadRequest](t, fc)
	h := answer(req)
	h.ServiceResult = ua.StatusBadNodeIDUnknown
	fc.respond(&ua.ServiceFault{ResponseHeader: h})

	err := <-errc
	var svcErr *ua.ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, ua.ServiceRead, svcErr.Service)
	assert.True(t, ua.IsStatusCode(err, ua.StatusBadNodeIDUnknown))
}

func TestUnexpectedResponseType(t *testing.T) {
	c, fc := newTestClient(t)
	require.NoError(t, c.Connect(context.Background()))

	errc := make(chan error, 1)
	go func() {
		_, err := c.ReadValue(context.Background(), ua.NewNumericNodeID(0, 1))
		errc <- err
	}()
	req := nextRequest[*ua.ReadRequest](t, fc)
	fc.respond(&ua.WriteResponse{ResponseHeader: answer(req)})

	assert.ErrorIs(t, <-errc, ErrInvalidResponse)
}

func TestStrayResponseIsHeld(t *testing.T) {
	c, fc := newTestClient(t)
	require.NoError(t, c.Connect(context.Background()))

	fc.respond(&ua.ReadResponse{ResponseHeader: ua.ResponseHeader{RequestHandle: 42}})
	assert.Eventually(t, func() bool { return c.Stats().HeldResponses == 1 }, time.Second, 5*time.Millisecond)

	resp, ok := c.state.TakeResponse(42)
	require.True(t, ok)
	assert.Equal(t, uint32(42), resp.Header().RequestHandle)
}

func TestLinkLossFailsPendingCalls(t *testing.T) {
	var disconnected error
	var mu sync.Mutex
	c, fc := newTestClient(t, WithOnDisconnect(func(err error) {
		mu.Lock()
		disconnected = err
		mu.Unlock()
	}))
	require.NoError(t, c.Connect(context.Background()))

	errc := make(chan error, 1)
	go func() {
		_, err := c.ReadValue(context.Background(), ua.NewNumericNodeID(0, 1))
		errc <- err
	}()
	nextRequest[*ua.ReadRequest](t, fc)
	fc.Close()

	err := <-errc
	assert.ErrorIs(t, err, ErrConnectionLost)
	assert.True(t, IsNotConnected(err))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return disconnected != nil
	}, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, disconnected, io.EOF)
	assert.Equal(t, StateDisconnected, c.State())
	assert.Zero(t, c.Stats().InFlightRequests)
}

func createSubscription(t *testing.T, c *Client, fc *fakeConn) *Subscription {
	t.Helper()
	subc := make(chan *Subscription, 1)
	go func() {
		sub, err := c.CreateSubscription(context.Background(), WithPublishingInterval(100))
		assert.NoError(t, err)
		subc <- sub
	}()
	req := nextRequest[*ua.CreateSubscriptionRequest](t, fc)
	assert.Equal(t, 100.0, req.RequestedPublishingInterval)
	fc.respond(&ua.CreateSubscriptionResponse{
		ResponseHeader:            answer(req),
		SubscriptionID:            7,
		RevisedPublishingInterval: 100,
		RevisedLifetimeCount:      300,
		RevisedMaxKeepAliveCount:  10,
	})
	sub := <-subc
	require.NotNil(t, sub)
	return sub
}

func dataChange(req *ua.PublishRequest, seq uint32, handle uint32, value float64) *ua.PublishResponse {
	v := ua.NewVariant(value)
	return &ua.PublishResponse{
		ResponseHeader: answer(req),
		SubscriptionID: 7,
		NotificationMessage: ua.NotificationMessage{
			SequenceNumber: seq,
			PublishTime:    time.Now(),
			DataChanges: []*ua.DataChangeNotification{{
				MonitoredItems: []ua.MonitoredItemNotification{{ClientHandle: handle, Value: ua.DataValue{Value: &v}}},
			}},
		},
	}
}

func TestPublishAcknowledgesOnce(t *testing.T) {
	c, fc := newTestClient(t)
	activate(t, c, fc)
	sub := createSubscription(t, c, fc)

	p1 := nextRequest[*ua.PublishRequest](t, fc)
	assert.Empty(t, p1.SubscriptionAcknowledgements)
	fc.respond(dataChange(p1, 1, 1001, 21.5))

	select {
	case n := <-sub.Notifications():
		assert.Equal(t, uint32(7), n.SubscriptionID)
		assert.Equal(t, uint32(1001), n.ClientHandle)
		assert.Equal(t, uint32(1), n.SequenceNumber)
		assert.Equal(t, 21.5, n.Value.Value.Value)
	case <-time.After(2 * time.Second):
		t.Fatal("no notification")
	}

	p2 := nextRequest[*ua.PublishRequest](t, fc)
	assert.Equal(t, []ua.SubscriptionAcknowledgement{{SubscriptionID: 7, SequenceNumber: 1}},
		p2.SubscriptionAcknowledgements)

	// Keep-alives are not acknowledged.
	fc.respond(&ua.PublishResponse{
		ResponseHeader:      answer(p2),
		SubscriptionID:      7,
		NotificationMessage: ua.NotificationMessage{SequenceNumber: 2},
	})

	p3 := nextRequest[*ua.PublishRequest](t, fc)
	assert.Empty(t, p3.SubscriptionAcknowledgements)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.notifications))
	assert.GreaterOrEqual(t, testutil.ToFloat64(c.metrics.publishRequests), 3.0)
}

func TestOnePublishOutstanding(t *testing.T) {
	c, fc := newTestClient(t)
	activate(t, c, fc)
	createSubscription(t, c, fc)

	nextRequest[*ua.PublishRequest](t, fc)
	assert.True(t, c.state.WaitForPublishResponse())

	select {
	case req := <-fc.sent:
		t.Fatalf("unexpected %T while a publish is outstanding", req)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMoreNotificationsPublishesAgain(t *testing.T) {
	c, fc := newTestClient(t)
	activate(t, c, fc)
	sub := createSubscription(t, c, fc)

	p1 := nextRequest[*ua.PublishRequest](t, fc)
	resp := dataChange(p1, 1, 1001, 1)
	resp.MoreNotifications = true
	fc.respond(resp)

	p2 := nextRequest[*ua.PublishRequest](t, fc)
	assert.Len(t, p2.SubscriptionAcknowledgements, 1)
	<-sub.Notifications()
}

func TestStatusChangeClosesSubscription(t *testing.T) {
	c, fc := newTestClient(t)
	activate(t, c, fc)
	sub := createSubscription(t, c, fc)

	p1 := nextRequest[*ua.PublishRequest](t, fc)
	fc.respond(&ua.PublishResponse{
		ResponseHeader: answer(p1),
		SubscriptionID: 7,
		NotificationMessage: ua.NotificationMessage{
			SequenceNumber: 1,
			StatusChanges:  []*ua.StatusChangeNotification{{Status: ua.StatusBadTimeout}},
		},
	})

	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not closed")
	}
	assert.ErrorIs(t, sub.Err(), ua.StatusBadTimeout)
	assert.Equal(t, ua.StatusBadTimeout, <-sub.StatusChanges())

	assert.Eventually(t, func() bool {
		_, err := c.Subscription(7)
		return errors.Is(err, ErrSubscriptionNotFound)
	}, time.Second, 5*time.Millisecond)
}

func TestPublishFaultClearsWaitFlag(t *testing.T) {
	c, fc := newTestClient(t)
	activate(t, c, fc)
	createSubscription(t, c, fc)

	p1 := nextRequest[*ua.PublishRequest](t, fc)
	h := answer(p1)
	h.ServiceResult = ua.StatusBadTooManyPublishRequests
	fc.respond(&ua.ServiceFault{ResponseHeader: h})

	// The fault frees the slot for the next publish.
	nextRequest[*ua.PublishRequest](t, fc)
}

func TestCreateMonitoredItems(t *testing.T) {
	c, fc := newTestClient(t)
	activate(t, c, fc)
	sub := createSubscription(t, c, fc)
	nextRequest[*ua.PublishRequest](t, fc)

	itemsc := make(chan []*MonitoredItem, 1)
	go func() {
		items, err := sub.CreateMonitoredItems(context.Background(), []ua.ReadValueID{
			{NodeID: ua.NewStringNodeID(2, "Temperature")},
			{NodeID: ua.NewStringNodeID(2, "Missing")},
		}, WithSamplingInterval(500))
		assert.NoError(t, err)
		itemsc <- items
	}()

	req := nextRequest[*ua.CreateMonitoredItemsRequest](t, fc)
	require.Len(t, req.ItemsToCreate, 2)
	assert.Equal(t, uint32(7), req.SubscriptionID)
	assert.Equal(t, uint32(1001), req.ItemsToCreate[0].RequestedParameters.ClientHandle)
	assert.Equal(t, uint32(1002), req.ItemsToCreate[1].RequestedParameters.ClientHandle)
	assert.Equal(t, ua.AttributeValue, req.ItemsToCreate[0].ItemToMonitor.AttributeID)
	assert.Equal(t, 500.0, req.ItemsToCreate[0].RequestedParameters.SamplingInterval)
	fc.respond(&ua.CreateMonitoredItemsResponse{
		ResponseHeader: answer(req),
		Results: []ua.MonitoredItemCreateResult{
			{MonitoredItemID: 1, RevisedSamplingInterval: 500, RevisedQueueSize: 10},
			{StatusCode: ua.StatusBadNodeIDUnknown},
		},
	})

	items := <-itemsc
	require.Len(t, items, 2)
	assert.Equal(t, uint32(1), items[0].MonitoredItemID)
	assert.True(t, items[1].StatusCode.IsBad())
	assert.Len(t, sub.MonitoredItems(), 1)
}

func TestCloseDeletesSession(t *testing.T) {
	var closedErr error
	closedCalled := make(chan struct{})
	c, fc := newTestClient(t, WithOnSessionClosed(func(err error) {
		closedErr = err
		close(closedCalled)
	}))
	activate(t, c, fc)
	sub := createSubscription(t, c, fc)
	nextRequest[*ua.PublishRequest](t, fc)

	errc := make(chan error, 1)
	go func() { errc <- c.Close() }()

	req := nextRequest[*ua.CloseSessionRequest](t, fc)
	assert.True(t, req.DeleteSubscriptions)
	fc.respond(&ua.CloseSessionResponse{ResponseHeader: answer(req)})

	require.NoError(t, <-errc)
	<-closedCalled
	assert.NoError(t, closedErr)
	assert.Equal(t, StateDisconnected, c.State())
	assert.True(t, c.SessionID().IsNull())

	select {
	case <-sub.Done():
	default:
		t.Fatal("subscription still open")
	}

	_, err := c.ReadValue(context.Background(), ua.NewNumericNodeID(0, 1))
	assert.ErrorIs(t, err, ErrConnectionClosed)
	assert.ErrorIs(t, c.Connect(context.Background()), ErrConnectionClosed)
}

func TestReconnectAfterLinkLoss(t *testing.T) {
	c, fc := newTestClient(t, WithAutoReconnect(true), WithReconnectBackoff(10*time.Millisecond))
	activate(t, c, fc)
	sub := createSubscription(t, c, fc)
	nextRequest[*ua.PublishRequest](t, fc)

	second := newFakeConn()
	t.Cleanup(func() { second.Close() })
	c.mu.Lock()
	c.dial = func(ctx context.Context) (messageConn, error) { return second, nil }
	c.mu.Unlock()

	fc.Close()

	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not closed")
	}
	assert.ErrorIs(t, sub.Err(), ErrSessionClosed)

	cs := nextRequest[*ua.CreateSessionRequest](t, second)
	assert.True(t, cs.RequestHeader.AuthenticationToken.IsNull())
	second.respond(&ua.CreateSessionResponse{
		ResponseHeader:        answer(cs),
		SessionID:             ua.NewNumericNodeID(1, 43),
		AuthenticationToken:   ua.NewNumericNodeID(0, 778),
		RevisedSessionTimeout: 30000,
	})
	as := nextRequest[*ua.ActivateSessionRequest](t, second)
	tok := as.UserIdentityToken.(*ua.AnonymousIdentityToken)
	assert.Equal(t, "anonymous", tok.PolicyID)
	second.respond(&ua.ActivateSessionResponse{ResponseHeader: answer(as)})

	assert.Eventually(t, func() bool { return c.IsSessionActive() }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "ns=1;i=43", c.SessionID().String())
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.reconnects))
}

func TestFindPolicyID(t *testing.T) {
	endpoints := []ua.EndpointDescription{
		{
			SecurityPolicyURI: "http://opcfoundation.org/UA/SecurityPolicy#Basic256Sha256",
			SecurityMode:      ua.MessageSecurityModeSignAndEncrypt,
			UserIdentityTokens: []ua.UserTokenPolicy{
				{PolicyID: "secure-user", TokenType: ua.UserTokenTypeUserName},
			},
		},
		{
			SecurityPolicyURI: ua.SecurityPolicyNone,
			SecurityMode:      ua.MessageSecurityModeNone,
			UserIdentityTokens: []ua.UserTokenPolicy{
				{PolicyID: "open-anon", TokenType: ua.UserTokenTypeAnonymous},
			},
		},
	}

	tests := []struct {
		name      string
		opt       Option
		endpoints []ua.EndpointDescription
		want      string
	}{
		{"anonymous exact", WithAnonymousAuth(), endpoints, "open-anon"},
		{"username fallback", WithUserPasswordAuth("op", "pw"), endpoints, "secure-user"},
		{"anonymous default", WithAnonymousAuth(), nil, "anonymous"},
		{"username default", WithUserPasswordAuth("op", "pw"), nil, "username"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClient("localhost:4840", WithLogger(discardLogger()), tt.opt)
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.findPolicyID(tt.endpoints))
		})
	}
}

func TestRegistererCollectsClientAndSessionMetrics(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	_, err := NewClient("localhost:4840", WithLogger(discardLogger()), WithRegisterer(reg))
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["uaclient_connection_state"])
	assert.True(t, names["uaclient_session_queue_depth"])
	assert.True(t, names["uaclient_subscription_active"])

	_, err = NewClient("localhost:4840", WithLogger(discardLogger()), WithRegisterer(reg))
	assert.Error(t, err)
}

func TestConnectionStateString(t *testing.T) {
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "session_active", StateSessionActive.String())
	assert.Equal(t, "reconnecting", StateReconnecting.String())
	assert.Equal(t, "unknown", ConnectionState(99).String())
}
