package types

import "time"

// StatusConstants seed the telemetry namespace so conditions can compare
// device status values by name, e.g. "t_status[0] == error".
var StatusConstants = map[string]int64{
	"ok":         200,
	"warn":       210,
	"busy":       220,
	"notreached": 230,
	"disabled":   235,
	"error":      240,
	"unknown":    999,
}

// Update is one telemetry message from the key-value bus.
type Update struct {
	Time  time.Time `json:"time"`
	Key   string    `json:"key"`
	Op    Op        `json:"op"`
	Value string    `json:"value,omitempty"` // serialized value, empty if none
}

// Expired reports whether the update removes the key's value.
func (u Update) Expired() bool {
	return u.Op == OpTellOld || u.Value == ""
}

// Message is published on the outbound channel for GUI and daemon subscribers.
// Timestamped messages carry Time; aggregate messages leave it zero.
type Message struct {
	Type    MessageType `json:"type"`
	Payload any         `json:"payload"`
	Time    time.Time   `json:"time,omitempty"`
}

// Timestamped reports whether the message carries a timestamp.
func (m Message) Timestamped() bool { return !m.Time.IsZero() }

// Notification is the argument set of a notifier send.
type Notification struct {
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	What      string `json:"what,omitempty"`
	Short     string `json:"short,omitempty"`
	Important bool   `json:"important"`
}

// Event is an audit journal record.
type Event struct {
	ID        string    `json:"id" dynamodbav:"eventId"`
	Kind      EventKind `json:"kind" dynamodbav:"kind"`
	EntryID   string    `json:"entryId,omitempty" dynamodbav:"entryId,omitempty"`
	Message   string    `json:"message" dynamodbav:"message"`
	Detail    string    `json:"detail,omitempty" dynamodbav:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp" dynamodbav:"timestamp"`
}

// WarningView is a read-only copy of one open warning.
type WarningView struct {
	EntryID     string `json:"entryId"`
	Real        bool   `json:"real"`
	Description string `json:"description"`
}

// EntryView is a read-only summary of one configured watch entry.
type EntryView struct {
	ID        string `json:"id"`
	Condition string `json:"condition"`
	Message   string `json:"message"`
	Setup     string `json:"setup,omitempty"`
	Type      string `json:"type,omitempty"`
	// ScriptAction is the effective value; invalid settings are reset to none.
	ScriptAction ScriptAction `json:"scriptaction,omitempty"`
	Enabled      bool         `json:"enabled"`
	Keys         []string     `json:"keys"`
	Triggered    bool         `json:"triggered"`
}
