// Package types defines the public domain types for the tripwire watchdog daemon.
package types

// ScriptAction is the side effect a warning requests from the measurement scheduler.
type ScriptAction string

// ScriptAction values enumerate the accepted scriptaction settings.
const (
	ScriptActionNone          ScriptAction = ""
	ScriptActionPauseCount    ScriptAction = "pausecount"
	ScriptActionStop          ScriptAction = "stop"
	ScriptActionImmediateStop ScriptAction = "immediatestop"
)

// Valid reports whether a is one of the accepted script actions.
func (a ScriptAction) Valid() bool {
	switch a {
	case ScriptActionNone, ScriptActionPauseCount, ScriptActionStop, ScriptActionImmediateStop:
		return true
	}
	return false
}

// MessageType identifies a message published on the outbound channel.
type MessageType string

// MessageType values are the outbound message kinds.
const (
	MessageWarning      MessageType = "warning"
	MessageWarnings     MessageType = "warnings"
	MessagePauseCount   MessageType = "pausecount"
	MessageAction       MessageType = "action"
	MessageScriptAction MessageType = "scriptaction"
)

// Op is the operation code of a telemetry update.
type Op string

// Op values carried by incoming telemetry. OpTellOld marks an expired value.
const (
	OpTell    Op = "="
	OpTellOld Op = "!"
)

// EventKind classifies journal events.
type EventKind string

// EventKind values recorded by the journal.
const (
	EventWarning     EventKind = "WARNING"
	EventExpired     EventKind = "EXPIRED"
	EventCleared     EventKind = "CLEARED"
	EventAction      EventKind = "ACTION"
	EventSetupChange EventKind = "SETUP_CHANGE"
)

// SourceType selects the telemetry source implementation.
type SourceType string

// SourceType values.
const (
	SourceCache SourceType = "cache"
	SourceMQTT  SourceType = "mqtt"
	SourceSQS   SourceType = "sqs"
)

// NotifierType selects a notifier sink implementation.
type NotifierType string

// NotifierType values.
const (
	NotifierConsole    NotifierType = "console"
	NotifierFile       NotifierType = "file"
	NotifierMailer     NotifierType = "mailer"
	NotifierMattermost NotifierType = "mattermost"
	NotifierTelegram   NotifierType = "telegram"
	NotifierSMS        NotifierType = "sms"
	NotifierCloudWatch NotifierType = "cloudwatch"
)

// PublisherType selects an outbound message publisher.
type PublisherType string

// PublisherType values.
const (
	PublisherCache       PublisherType = "cache"
	PublisherEventBridge PublisherType = "eventbridge"
	PublisherHub         PublisherType = "hub"
)

// JournalType selects the audit journal backend.
type JournalType string

// JournalType values.
const (
	JournalNone     JournalType = "none"
	JournalMemory   JournalType = "memory"
	JournalDynamoDB JournalType = "dynamodb"
)
