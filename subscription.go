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
	"log/slog"
	"sync"
	"time"

	"github.com/edgeo-scada/uaclient/ua"
)

// Subscription is a server-side subscription. Its notifications arrive
// through the client's publish cycle, which runs while at least one
// subscription exists.
type Subscription struct {
	ID                        uint32
	RevisedPublishingInterval float64
	RevisedLifetimeCount      uint32
	RevisedMaxKeepAliveCount  uint32

	client        *Client
	notifications chan DataChangeNotification
	statusChanges chan ua.StatusCode
	done          chan struct{}

	mu      sync.Mutex
	items   map[uint32]*MonitoredItem // by client handle
	lastSeq uint32
	closed  bool
	err     error
}

// CreateSubscription creates a new subscription.
func (c *Client) CreateSubscription(ctx context.Context, opts ...SubscriptionOption) (*Subscription, error) {
	options := defaultSubscriptionOptions()
	for _, opt := range opts {
		opt(options)
	}

	resp, err := call[*ua.CreateSubscriptionResponse](ctx, c, &ua.CreateSubscriptionRequest{
		RequestedPublishingInterval: options.publishingInterval,
		RequestedLifetimeCount:      options.lifetimeCount,
		RequestedMaxKeepAliveCount:  options.maxKeepAliveCount,
		MaxNotificationsPerPublish:  options.maxNotifications,
		PublishingEnabled:           options.publishingEnabled,
		Priority:                    options.priority,
	})
	if err != nil {
		return nil, err
	}

	sub := &Subscription{
		ID:                        resp.SubscriptionID,
		RevisedPublishingInterval: resp.RevisedPublishingInterval,
		RevisedLifetimeCount:      resp.RevisedLifetimeCount,
		RevisedMaxKeepAliveCount:  resp.RevisedMaxKeepAliveCount,
		client:                    c,
		notifications:             make(chan DataChangeNotification, options.bufferSize),
		statusChanges:             make(chan ua.StatusCode, 1),
		done:                      make(chan struct{}),
		items:                     make(map[uint32]*MonitoredItem),
	}

	c.mu.Lock()
	c.subs[sub.ID] = sub
	c.metrics.subscriptions.Set(float64(len(c.subs)))
	c.mu.Unlock()

	c.logger.Info("subscription created",
		slog.Uint64("subscription_id", uint64(sub.ID)),
		slog.Float64("publishing_interval", sub.RevisedPublishingInterval))

	return sub, nil
}

// Subscription returns the open subscription with the given id.
func (c *Client) Subscription(id uint32) (*Subscription, error) {
	if sub := c.subscription(id); sub != nil {
		return sub, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrSubscriptionNotFound, id)
}

func (c *Client) subscription(id uint32) *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subs[id]
}

func (c *Client) removeSubscription(id uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subs, id)
	c.metrics.subscriptions.Set(float64(len(c.subs)))
}

// closeSubscriptions closes and forgets every subscription.
func (c *Client) closeSubscriptions(err error) {
	c.mu.Lock()
	subs := make([]*Subscription, 0, len(c.subs))
	for _, sub := range c.subs {
		subs = append(subs, sub)
	}
	clear(c.subs)
	c.metrics.subscriptions.Set(0)
	c.mu.Unlock()

	for _, sub := range subs {
		sub.close(err)
	}
}

// publishTimeout is how long a publish request may stay unanswered: the
// longest keep-alive period of any subscription plus the request timeout.
func (c *Client) publishTimeout() time.Duration {
	timeout := c.state.Config().RequestTimeout

	c.mu.Lock()
	defer c.mu.Unlock()
	var longest time.Duration
	for _, sub := range c.subs {
		keepAlive := time.Duration(sub.RevisedPublishingInterval*float64(sub.RevisedMaxKeepAliveCount)) * time.Millisecond
		longest = max(longest, keepAlive)
	}
	return longest + timeout
}

// publish issues a publish request carrying the pending acknowledgements,
// unless one is already outstanding.
func (c *Client) publish() {
	c.mu.Lock()
	ready := len(c.subs) > 0 && c.connState == StateSessionActive
	c.mu.Unlock()
	if !ready || c.state.WaitForPublishResponse() {
		return
	}

	acks := c.state.DrainAcks()
	c.state.SetWaitForPublishResponse(true)
	handle := c.state.Submit(&ua.PublishRequest{SubscriptionAcknowledgements: acks}, true)
	c.metrics.publishRequests.Inc()
	c.wake()

	c.logger.Debug("publish request queued",
		slog.Uint64("request_handle", uint64(handle)),
		slog.Int("acks", len(acks)))
}

// expireInFlight forgets requests the server never answered. An expired
// publish lets the next one be issued. A synchronous entry this old has
// already been given up by its caller.
func (c *Client) expireInFlight(now time.Time) {
	for _, e := range c.state.ExpiredInFlight(now.Add(-c.publishTimeout())) {
		c.state.ResolveInFlight(e.Handle)
		if !e.Async {
			c.logger.Debug("abandoned request expired", slog.Uint64("request_handle", uint64(e.Handle)))
			continue
		}
		c.state.SetWaitForPublishResponse(false)
		c.logger.Debug("publish request expired", slog.Uint64("request_handle", uint64(e.Handle)))
	}
}

// handlePublishResponse routes one asynchronous response to its subscription
// and records the acknowledgement for the next publish.
func (c *Client) handlePublishResponse(resp ua.Response) {
	c.state.SetWaitForPublishResponse(false)

	if err := ua.ServiceResult(ua.ServicePublish, resp); err != nil {
		switch {
		case ua.IsStatusCode(err, ua.StatusBadNoSubscription),
			ua.IsStatusCode(err, ua.StatusBadTooManyPublishRequests),
			ua.IsStatusCode(err, ua.StatusBadTimeout):
			c.logger.Debug("publish not served", slog.String("error", err.Error()))
		default:
			c.logger.Warn("publish failed", slog.String("error", err.Error()))
		}
		return
	}

	pr, ok := resp.(*ua.PublishResponse)
	if !ok {
		c.logger.Warn("unexpected asynchronous response",
			slog.String("type", fmt.Sprintf("%T", resp)),
			slog.Uint64("request_handle", uint64(resp.Header().RequestHandle)))
		return
	}

	msg := &pr.NotificationMessage
	if sub := c.subscription(pr.SubscriptionID); sub != nil {
		if closed := sub.deliver(pr); closed {
			c.removeSubscription(sub.ID)
		}
	} else {
		c.logger.Debug("publish response for unknown subscription",
			slog.Uint64("subscription_id", uint64(pr.SubscriptionID)))
	}

	if !msg.IsKeepAlive() {
		c.state.RecordAck(pr.SubscriptionID, msg.SequenceNumber)
	}
	if pr.MoreNotifications {
		c.publish()
	}
}

// deliver hands the notifications of one publish response to the consumer.
// It reports whether a status change closed the subscription.
func (s *Subscription) deliver(pr *ua.PublishResponse) bool {
	msg := &pr.NotificationMessage
	logger := s.client.logger
	metrics := s.client.metrics

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}

	if !msg.IsKeepAlive() {
		if s.lastSeq != 0 && msg.SequenceNumber != s.lastSeq+1 {
			logger.Warn("notification sequence gap",
				slog.Uint64("subscription_id", uint64(s.ID)),
				slog.Uint64("expected", uint64(s.lastSeq+1)),
				slog.Uint64("received", uint64(msg.SequenceNumber)))
		}
		s.lastSeq = msg.SequenceNumber
	}

	for _, dcn := range msg.DataChanges {
		for _, item := range dcn.MonitoredItems {
			n := DataChangeNotification{
				SubscriptionID: s.ID,
				ClientHandle:   item.ClientHandle,
				Value:          item.Value,
				PublishTime:    msg.PublishTime,
				SequenceNumber: msg.SequenceNumber,
			}
			if mi, ok := s.items[item.ClientHandle]; ok {
				n.NodeID = mi.NodeID
			}
			select {
			case s.notifications <- n:
				metrics.notifications.Inc()
			default:
				metrics.dropped.Inc()
				logger.Warn("notification channel full, dropping notification",
					slog.Uint64("subscription_id", uint64(s.ID)),
					slog.Uint64("client_handle", uint64(item.ClientHandle)))
			}
		}
	}

	for _, sc := range msg.StatusChanges {
		logger.Info("subscription status changed",
			slog.Uint64("subscription_id", uint64(s.ID)),
			slog.String("status", sc.Status.String()))
		select {
		case s.statusChanges <- sc.Status:
		default:
		}
		s.closeLocked(fmt.Errorf("subscription %d: %w", s.ID, sc.Status))
		return true
	}
	return false
}

// CreateMonitoredItems creates monitored items in the subscription. Items
// with no attribute id monitor the attribute chosen by the options. The
// result has one entry per requested item; refused items carry a bad
// StatusCode.
func (s *Subscription) CreateMonitoredItems(ctx context.Context, itemsToCreate []ua.ReadValueID, opts ...MonitoredItemOption) ([]*MonitoredItem, error) {
	options := defaultMonitoredItemOptions()
	for _, opt := range opts {
		opt(options)
	}

	requests := make([]ua.MonitoredItemCreateRequest, len(itemsToCreate))
	for i, item := range itemsToCreate {
		if item.AttributeID == 0 {
			item.AttributeID = options.attributeID
		}
		requests[i] = ua.MonitoredItemCreateRequest{
			ItemToMonitor:  item,
			MonitoringMode: options.monitoringMode,
			RequestedParameters: ua.MonitoringParameters{
				ClientHandle:     s.client.state.NextMonitoredItemHandle(),
				SamplingInterval: options.samplingInterval,
				QueueSize:        options.queueSize,
				DiscardOldest:    options.discardOldest,
			},
		}
	}

	resp, err := call[*ua.CreateMonitoredItemsResponse](ctx, s.client, &ua.CreateMonitoredItemsRequest{
		SubscriptionID:     s.ID,
		TimestampsToReturn: ua.TimestampsBoth,
		ItemsToCreate:      requests,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Results) != len(requests) {
		return nil, fmt.Errorf("%w: %d results for %d items", ErrInvalidResponse, len(resp.Results), len(requests))
	}

	items := make([]*MonitoredItem, len(resp.Results))
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, result := range resp.Results {
		item := &MonitoredItem{
			ClientHandle:            requests[i].RequestedParameters.ClientHandle,
			MonitoredItemID:         result.MonitoredItemID,
			NodeID:                  requests[i].ItemToMonitor.NodeID,
			AttributeID:             requests[i].ItemToMonitor.AttributeID,
			StatusCode:              result.StatusCode,
			RevisedSamplingInterval: result.RevisedSamplingInterval,
			RevisedQueueSize:        result.RevisedQueueSize,
		}
		items[i] = item
		if result.StatusCode.IsBad() {
			s.client.logger.Warn("monitored item refused",
				slog.String("node_id", item.NodeID.String()),
				slog.String("status", result.StatusCode.String()))
			continue
		}
		s.items[item.ClientHandle] = item
	}
	return items, nil
}

// DeleteMonitoredItems removes monitored items from the subscription.
func (s *Subscription) DeleteMonitoredItems(ctx context.Context, items ...*MonitoredItem) error {
	ids := make([]uint32, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.MonitoredItemID)
	}

	resp, err := call[*ua.DeleteMonitoredItemsResponse](ctx, s.client, &ua.DeleteMonitoredItemsRequest{
		SubscriptionID:   s.ID,
		MonitoredItemIDs: ids,
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	for _, item := range items {
		delete(s.items, item.ClientHandle)
	}
	s.mu.Unlock()

	for _, code := range resp.Results {
		if code.IsBad() {
			return ua.NewServiceError(ua.ServiceDeleteMonitoredItems, code, "")
		}
	}
	return nil
}

// Delete deletes the subscription on the server and closes it.
func (s *Subscription) Delete(ctx context.Context) error {
	resp, err := call[*ua.DeleteSubscriptionsResponse](ctx, s.client, &ua.DeleteSubscriptionsRequest{
		SubscriptionIDs: []uint32{s.ID},
	})
	if err != nil {
		return err
	}

	s.client.removeSubscription(s.ID)
	s.close(nil)

	if len(resp.Results) > 0 && resp.Results[0].IsBad() {
		return ua.NewServiceError(ua.ServiceDeleteSubscriptions, resp.Results[0], "")
	}
	return nil
}

// Notifications returns the channel of data changes. It is closed when the
// subscription ends.
func (s *Subscription) Notifications() <-chan DataChangeNotification {
	return s.notifications
}

// StatusChanges returns the channel of subscription status changes.
func (s *Subscription) StatusChanges() <-chan ua.StatusCode {
	return s.statusChanges
}

// Done is closed when the subscription ends.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err returns why the subscription ended, or nil after Delete.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// MonitoredItems returns the monitored items the server accepted.
func (s *Subscription) MonitoredItems() []*MonitoredItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*MonitoredItem, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, item)
	}
	return out
}

func (s *Subscription) close(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked(err)
}

func (s *Subscription) closeLocked(err error) {
	if s.closed {
		return
	}
	s.closed = true
	s.err = err
	close(s.notifications)
	close(s.statusChanges)
	close(s.done)
}
