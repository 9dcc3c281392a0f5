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
	"time"
)

// SubscriptionAcknowledgement confirms receipt of one notification message.
type SubscriptionAcknowledgement struct {
	SubscriptionID uint32
	SequenceNumber uint32
}

// PublishRequest hands the server a slot to answer with notifications and
// acknowledges messages received earlier.
type PublishRequest struct {
	RequestHeader                RequestHeader
	SubscriptionAcknowledgements []SubscriptionAcknowledgement
}

func (r *PublishRequest) ServiceID() ServiceID   { return ServicePublish }
func (r *PublishRequest) Header() *RequestHeader { return &r.RequestHeader }

func (r *PublishRequest) Encode(e *Encoder) {
	r.RequestHeader.Encode(e)
	e.WriteInt32(int32(len(r.SubscriptionAcknowledgements)))
	for _, ack := range r.SubscriptionAcknowledgements {
		e.WriteUInt32(ack.SubscriptionID)
		e.WriteUInt32(ack.SequenceNumber)
	}
}

func (r *PublishRequest) Decode(d *Decoder) {
	r.RequestHeader.Decode(d)
	if n := d.ReadArrayLength(); n > 0 {
		r.SubscriptionAcknowledgements = make([]SubscriptionAcknowledgement, 0, n)
		for i := 0; i < n && d.Err() == nil; i++ {
			r.SubscriptionAcknowledgements = append(r.SubscriptionAcknowledgements, SubscriptionAcknowledgement{
				SubscriptionID: d.ReadUInt32(),
				SequenceNumber: d.ReadUInt32(),
			})
		}
	}
}

// MonitoredItemNotification is one value change of a monitored item.
type MonitoredItemNotification struct {
	ClientHandle uint32
	Value        DataValue
}

// DataChangeNotification groups value changes of one publish cycle.
type DataChangeNotification struct {
	MonitoredItems []MonitoredItemNotification
}

// StatusChangeNotification reports a change in the subscription's state,
// typically its expiry.
type StatusChangeNotification struct {
	Status StatusCode
}

// NotificationMessage is the payload of a publish response. A message with
// no notification data is a keep-alive and carries the next sequence number
// without consuming it.
type NotificationMessage struct {
	SequenceNumber uint32
	PublishTime    time.Time
	DataChanges    []*DataChangeNotification
	StatusChanges  []*StatusChangeNotification
	// Unknown counts notification bodies of unsupported types, e.g. events.
	Unknown int
}

// IsKeepAlive reports whether the message carries no notifications.
func (m *NotificationMessage) IsKeepAlive() bool {
	return len(m.DataChanges) == 0 && len(m.StatusChanges) == 0 && m.Unknown == 0
}

// PublishResponse delivers one notification message.
type PublishResponse struct {
	ResponseHeader           ResponseHeader
	SubscriptionID           uint32
	AvailableSequenceNumbers []uint32
	MoreNotifications        bool
	NotificationMessage      NotificationMessage
	Results                  []StatusCode
}

func (r *PublishResponse) Header() *ResponseHeader { return &r.ResponseHeader }

func (r *PublishResponse) Decode(d *Decoder) {
	r.ResponseHeader.Decode(d)
	if r.ResponseHeader.ServiceResult.IsBad() {
		return
	}
	r.SubscriptionID = d.ReadUInt32()
	r.AvailableSequenceNumbers = d.ReadUInt32Array()
	r.MoreNotifications = d.ReadBoolean()

	msg := &r.NotificationMessage
	msg.SequenceNumber = d.ReadUInt32()
	msg.PublishTime = d.ReadDateTime()
	for i, n := 0, d.ReadArrayLength(); i < n && d.Err() == nil; i++ {
		typeID, body := d.ReadExtensionObject()
		switch typeID.Numeric {
		case DataChangeNotificationEncoding:
			dcn, err := decodeDataChangeNotification(body)
			if err != nil {
				d.Fail(err)
				return
			}
			msg.DataChanges = append(msg.DataChanges, dcn)
		case StatusChangeNotificationEncoding:
			bd := NewDecoder(body)
			scn := &StatusChangeNotification{Status: bd.ReadStatusCode()}
			if err := bd.Err(); err != nil {
				d.Fail(err)
				return
			}
			msg.StatusChanges = append(msg.StatusChanges, scn)
		default:
			msg.Unknown++
		}
	}

	r.Results = d.ReadStatusCodeArray()
	d.SkipDiagnosticInfoArray()
}

func (r *PublishResponse) Encode(e *Encoder) {
	r.ResponseHeader.Encode(e)
	e.WriteUInt32(r.SubscriptionID)
	e.WriteUInt32Array(r.AvailableSequenceNumbers)
	e.WriteBoolean(r.MoreNotifications)

	msg := &r.NotificationMessage
	e.WriteUInt32(msg.SequenceNumber)
	e.WriteDateTime(msg.PublishTime)
	e.WriteInt32(int32(len(msg.DataChanges) + len(msg.StatusChanges)))
	for _, dcn := range msg.DataChanges {
		body := NewEncoder()
		body.WriteInt32(int32(len(dcn.MonitoredItems)))
		for _, item := range dcn.MonitoredItems {
			body.WriteUInt32(item.ClientHandle)
			body.WriteDataValue(item.Value)
		}
		body.WriteInt32(0)
		e.WriteExtensionObject(DataChangeNotificationEncoding, body.Bytes())
	}
	for _, scn := range msg.StatusChanges {
		body := NewEncoder()
		body.WriteStatusCode(scn.Status)
		body.WriteUInt8(0)
		e.WriteExtensionObject(StatusChangeNotificationEncoding, body.Bytes())
	}

	writeStatusCodes(e, r.Results)
	e.WriteInt32(0)
}

func decodeDataChangeNotification(body []byte) (*DataChangeNotification, error) {
	d := NewDecoder(body)
	dcn := &DataChangeNotification{}
	if n := d.ReadArrayLength(); n > 0 {
		dcn.MonitoredItems = make([]MonitoredItemNotification, 0, n)
		for i := 0; i < n && d.Err() == nil; i++ {
			dcn.MonitoredItems = append(dcn.MonitoredItems, MonitoredItemNotification{
				ClientHandle: d.ReadUInt32(),
				Value:        d.ReadDataValue(),
			})
		}
	}
	d.SkipDiagnosticInfoArray()
	return dcn, d.Err()
}
