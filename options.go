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
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/edgeo-scada/uaclient/ua"
)

// DefaultTimeout is the default request timeout.
const DefaultTimeout = 10 * time.Second

// Option is a functional option for configuring the client.
type Option func(*clientOptions)

type clientOptions struct {
	// Connection settings
	timeout           time.Duration
	sendBufferSize    uint32
	receiveBufferSize uint32
	maxMessageSize    uint32

	// Session settings
	sessionName    string
	sessionTimeout time.Duration

	// Authentication settings
	authType AuthType
	username string
	password string

	// Reconnection settings
	autoReconnect    bool
	reconnectBackoff time.Duration
	maxReconnectTime time.Duration
	maxRetries       int

	// Publish loop
	publishTick time.Duration

	// Callbacks
	onConnect          func()
	onDisconnect       func(error)
	onSessionActivated func()
	onSessionClosed    func(error)

	logger     *slog.Logger
	registerer prometheus.Registerer

	// Application description
	applicationURI  string
	productURI      string
	applicationName string
}

// AuthType represents the type of authentication.
type AuthType int

const (
	AuthTypeAnonymous AuthType = iota
	AuthTypeUserPassword
)

func defaultOptions() *clientOptions {
	return &clientOptions{
		timeout:           DefaultTimeout,
		sendBufferSize:    ua.DefaultSendBufferSize,
		receiveBufferSize: ua.DefaultReceiveBufferSize,
		maxMessageSize:    ua.DefaultMaxMessageSize,
		sessionName:       "uaclient-" + uuid.NewString(),
		sessionTimeout:    time.Hour,
		authType:          AuthTypeAnonymous,
		reconnectBackoff:  1 * time.Second,
		maxReconnectTime:  30 * time.Second,
		maxRetries:        0,
		publishTick:       100 * time.Millisecond,
		logger:            slog.Default(),
		applicationURI:    "urn:edgeo:uaclient",
		productURI:        "urn:edgeo:uaclient",
		applicationName:   "Edgeo UA Client",
	}
}

// WithTimeout sets the request timeout. It is also sent to the server as
// the timeout hint of every request.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		o.timeout = d
	}
}

// WithBufferSizes sets the chunk buffer sizes proposed in Hello.
func WithBufferSizes(send, receive uint32) Option {
	return func(o *clientOptions) {
		o.sendBufferSize = send
		o.receiveBufferSize = receive
	}
}

// WithMaxMessageSize sets the largest response the client accepts.
func WithMaxMessageSize(n uint32) Option {
	return func(o *clientOptions) {
		o.maxMessageSize = n
	}
}

// WithSessionName sets the session name.
func WithSessionName(name string) Option {
	return func(o *clientOptions) {
		o.sessionName = name
	}
}

// WithSessionTimeout sets the requested session timeout.
func WithSessionTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		o.sessionTimeout = d
	}
}

// WithAnonymousAuth configures anonymous authentication.
func WithAnonymousAuth() Option {
	return func(o *clientOptions) {
		o.authType = AuthTypeAnonymous
	}
}

// WithUserPasswordAuth configures username/password authentication.
func WithUserPasswordAuth(username, password string) Option {
	return func(o *clientOptions) {
		o.authType = AuthTypeUserPassword
		o.username = username
		o.password = password
	}
}

// WithAutoReconnect enables automatic reconnection on connection loss.
func WithAutoReconnect(enable bool) Option {
	return func(o *clientOptions) {
		o.autoReconnect = enable
	}
}

// WithReconnectBackoff sets the initial backoff duration for reconnection attempts.
func WithReconnectBackoff(d time.Duration) Option {
	return func(o *clientOptions) {
		o.reconnectBackoff = d
	}
}

// WithMaxReconnectTime sets the maximum time between reconnection attempts.
func WithMaxReconnectTime(d time.Duration) Option {
	return func(o *clientOptions) {
		o.maxReconnectTime = d
	}
}

// WithMaxRetries sets how many reconnection attempts are made before giving
// up. Zero retries forever.
func WithMaxRetries(n int) Option {
	return func(o *clientOptions) {
		o.maxRetries = n
	}
}

// WithPublishTick sets how often held publish responses are processed and
// in-flight requests are checked for expiry.
func WithPublishTick(d time.Duration) Option {
	return func(o *clientOptions) {
		if d > 0 {
			o.publishTick = d
		}
	}
}

// WithOnConnect sets a callback to be called when the connection is established.
func WithOnConnect(fn func()) Option {
	return func(o *clientOptions) {
		o.onConnect = fn
	}
}

// WithOnDisconnect sets a callback to be called when the connection is lost.
func WithOnDisconnect(fn func(error)) Option {
	return func(o *clientOptions) {
		o.onDisconnect = fn
	}
}

// WithOnSessionActivated sets a callback to be called when the session is activated.
func WithOnSessionActivated(fn func()) Option {
	return func(o *clientOptions) {
		o.onSessionActivated = fn
	}
}

// WithOnSessionClosed sets a callback to be called when the session is closed.
func WithOnSessionClosed(fn func(error)) Option {
	return func(o *clientOptions) {
		o.onSessionClosed = fn
	}
}

// WithLogger sets the logger for the client.
func WithLogger(logger *slog.Logger) Option {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// WithRegisterer registers the client and session collectors with r.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *clientOptions) {
		o.registerer = r
	}
}

// WithApplicationURI sets the application URI.
func WithApplicationURI(uri string) Option {
	return func(o *clientOptions) {
		o.applicationURI = uri
	}
}

// WithProductURI sets the product URI.
func WithProductURI(uri string) Option {
	return func(o *clientOptions) {
		o.productURI = uri
	}
}

// WithApplicationName sets the application name.
func WithApplicationName(name string) Option {
	return func(o *clientOptions) {
		o.applicationName = name
	}
}

// SubscriptionOption is a functional option for configuring subscriptions.
type SubscriptionOption func(*subscriptionOptions)

type subscriptionOptions struct {
	publishingInterval float64
	lifetimeCount      uint32
	maxKeepAliveCount  uint32
	maxNotifications   uint32
	publishingEnabled  bool
	priority           uint8
	bufferSize         int
}

func defaultSubscriptionOptions() *subscriptionOptions {
	return &subscriptionOptions{
		publishingInterval: 1000, // 1 second
		lifetimeCount:      10000,
		maxKeepAliveCount:  10,
		maxNotifications:   0, // unlimited
		publishingEnabled:  true,
		priority:           0,
		bufferSize:         256,
	}
}

// WithPublishingInterval sets the publishing interval in milliseconds.
func WithPublishingInterval(interval float64) SubscriptionOption {
	return func(o *subscriptionOptions) {
		o.publishingInterval = interval
	}
}

// WithLifetimeCount sets the lifetime count.
func WithLifetimeCount(count uint32) SubscriptionOption {
	return func(o *subscriptionOptions) {
		o.lifetimeCount = count
	}
}

// WithMaxKeepAliveCount sets the max keep alive count.
func WithMaxKeepAliveCount(count uint32) SubscriptionOption {
	return func(o *subscriptionOptions) {
		o.maxKeepAliveCount = count
	}
}

// WithMaxNotificationsPerPublish sets the max notifications per publish.
func WithMaxNotificationsPerPublish(count uint32) SubscriptionOption {
	return func(o *subscriptionOptions) {
		o.maxNotifications = count
	}
}

// WithPublishingEnabled sets whether publishing is enabled.
func WithPublishingEnabled(enabled bool) SubscriptionOption {
	return func(o *subscriptionOptions) {
		o.publishingEnabled = enabled
	}
}

// WithPriority sets the subscription priority.
func WithPriority(priority uint8) SubscriptionOption {
	return func(o *subscriptionOptions) {
		o.priority = priority
	}
}

// WithNotificationBuffer sets the capacity of the Notifications channel.
// Notifications that find it full are dropped and counted.
func WithNotificationBuffer(n int) SubscriptionOption {
	return func(o *subscriptionOptions) {
		if n > 0 {
			o.bufferSize = n
		}
	}
}

// MonitoredItemOption is a functional option for configuring monitored items.
type MonitoredItemOption func(*monitoredItemOptions)

type monitoredItemOptions struct {
	attributeID      ua.AttributeID
	samplingInterval float64
	queueSize        uint32
	discardOldest    bool
	monitoringMode   ua.MonitoringMode
}

func defaultMonitoredItemOptions() *monitoredItemOptions {
	return &monitoredItemOptions{
		attributeID:      ua.AttributeValue,
		samplingInterval: 250, // 250 ms
		queueSize:        10,
		discardOldest:    true,
		monitoringMode:   ua.MonitoringModeReporting,
	}
}

// WithSamplingInterval sets the sampling interval in milliseconds.
func WithSamplingInterval(interval float64) MonitoredItemOption {
	return func(o *monitoredItemOptions) {
		o.samplingInterval = interval
	}
}

// WithQueueSize sets the queue size.
func WithQueueSize(size uint32) MonitoredItemOption {
	return func(o *monitoredItemOptions) {
		o.queueSize = size
	}
}

// WithDiscardOldest sets whether to discard oldest values when queue is full.
func WithDiscardOldest(discard bool) MonitoredItemOption {
	return func(o *monitoredItemOptions) {
		o.discardOldest = discard
	}
}

// WithMonitoringMode sets the monitoring mode.
func WithMonitoringMode(mode ua.MonitoringMode) MonitoredItemOption {
	return func(o *monitoredItemOptions) {
		o.monitoringMode = mode
	}
}

// WithMonitoredAttribute selects the attribute to monitor. The default is
// the Value attribute.
func WithMonitoredAttribute(id ua.AttributeID) MonitoredItemOption {
	return func(o *monitoredItemOptions) {
		o.attributeID = id
	}
}
