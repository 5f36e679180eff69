package types

import "time"

// Watch entry defaults.
const (
	DefaultGracetime   = 5.0
	DefaultPrecondtime = 5.0
)

// WatchConfig is one watch-list entry as written in the configuration.
type WatchConfig struct {
	Condition    string       `yaml:"condition" json:"condition"`
	Message      string       `yaml:"message" json:"message"`
	Setup        string       `yaml:"setup,omitempty" json:"setup,omitempty"`
	Gracetime    *float64     `yaml:"gracetime,omitempty" json:"gracetime,omitempty"` // seconds, default 5
	Precondition string       `yaml:"precondition,omitempty" json:"precondition,omitempty"`
	Precondtime  *float64     `yaml:"precondtime,omitempty" json:"precondtime,omitempty"` // seconds, default 5
	ScriptAction ScriptAction `yaml:"scriptaction,omitempty" json:"scriptaction,omitempty"`
	Action       string       `yaml:"action,omitempty" json:"action,omitempty"`
	Type         string       `yaml:"type,omitempty" json:"type,omitempty"`
	OKMessage    string       `yaml:"okmessage,omitempty" json:"okmessage,omitempty"`
	OKAction     string       `yaml:"okaction,omitempty" json:"okaction,omitempty"`
	Enabled      *bool        `yaml:"enabled,omitempty" json:"enabled,omitempty"`
}

// GraceDuration returns the debounce delay of the main condition.
func (w WatchConfig) GraceDuration() time.Duration {
	return seconds(w.Gracetime, DefaultGracetime)
}

// PrecondDuration returns the debounce delay of the precondition.
func (w WatchConfig) PrecondDuration() time.Duration {
	return seconds(w.Precondtime, DefaultPrecondtime)
}

// IsEnabled reports whether the entry is enabled; entries are enabled unless set otherwise.
func (w WatchConfig) IsEnabled() bool {
	return w.Enabled == nil || *w.Enabled
}

func seconds(v *float64, def float64) time.Duration {
	s := def
	if v != nil {
		s = *v
	}
	if s <= 0 {
		return 0
	}
	return time.Duration(s * float64(time.Second))
}

// NotifierConfig declares one named notifier sink.
type NotifierConfig struct {
	Name        string       `yaml:"name" json:"name"`
	Type        NotifierType `yaml:"type" json:"type"`
	MinInterval string       `yaml:"minInterval,omitempty" json:"minInterval,omitempty"` // e.g. "60s"; "0s" disables limiting
	Subject     string       `yaml:"subject,omitempty" json:"subject,omitempty"`         // subject prefix
	Path        string       `yaml:"path,omitempty" json:"path,omitempty"`
	URL         string       `yaml:"url,omitempty" json:"url,omitempty"`
	Channel     string       `yaml:"channel,omitempty" json:"channel,omitempty"`
	Username    string       `yaml:"username,omitempty" json:"username,omitempty"`
	Token       string       `yaml:"token,omitempty" json:"token,omitempty"`
	ChatID      string       `yaml:"chatId,omitempty" json:"chatId,omitempty"`
	Receivers   []string     `yaml:"receivers,omitempty" json:"receivers,omitempty"`
	Sender      string       `yaml:"sender,omitempty" json:"sender,omitempty"`
	Host        string       `yaml:"host,omitempty" json:"host,omitempty"`
	Port        int          `yaml:"port,omitempty" json:"port,omitempty"`
	Password    string       `yaml:"password,omitempty" json:"password,omitempty"`
	LogGroup    string       `yaml:"logGroup,omitempty" json:"logGroup,omitempty"`
	LogStream   string       `yaml:"logStream,omitempty" json:"logStream,omitempty"`
}

// SourceConfig selects and configures the telemetry source.
type SourceConfig struct {
	Type           SourceType `yaml:"type" json:"type"`
	Addr           string     `yaml:"addr,omitempty" json:"addr,omitempty"`     // cache server host[:port]
	Broker         string     `yaml:"broker,omitempty" json:"broker,omitempty"` // mqtt broker URL
	ClientID       string     `yaml:"clientId,omitempty" json:"clientId,omitempty"`
	Topic          string     `yaml:"topic,omitempty" json:"topic,omitempty"`
	QueueURL       string     `yaml:"queueUrl,omitempty" json:"queueUrl,omitempty"`
	WaitSeconds    int32      `yaml:"waitSeconds,omitempty" json:"waitSeconds,omitempty"`
	ReconnectDelay string     `yaml:"reconnectDelay,omitempty" json:"reconnectDelay,omitempty"`
}

// PublisherConfig declares one outbound message publisher.
type PublisherConfig struct {
	Type         PublisherType `yaml:"type" json:"type"`
	EventBusName string        `yaml:"eventBusName,omitempty" json:"eventBusName,omitempty"`
	EventSource  string        `yaml:"eventSource,omitempty" json:"eventSource,omitempty"`
	QueueSize    int           `yaml:"queueSize,omitempty" json:"queueSize,omitempty"`
}

// ActionConfig configures how warning actions are spawned.
type ActionConfig struct {
	Script  string `yaml:"script,omitempty" json:"script,omitempty"`
	AppName string `yaml:"appName,omitempty" json:"appName,omitempty"`
	Timeout int    `yaml:"timeout,omitempty" json:"timeout,omitempty"` // seconds, enforced by the script runner
}

// JournalConfig configures the audit journal.
type JournalConfig struct {
	Type      JournalType `yaml:"type,omitempty" json:"type,omitempty"`
	TableName string      `yaml:"tableName,omitempty" json:"tableName,omitempty"`
	Capacity  int         `yaml:"capacity,omitempty" json:"capacity,omitempty"`
	TTLDays   int         `yaml:"ttlDays,omitempty" json:"ttlDays,omitempty"`
}

// ServerConfig holds HTTP status server settings.
type ServerConfig struct {
	Addr   string `yaml:"addr" json:"addr"`
	APIKey string `yaml:"apiKey,omitempty" json:"-"` // literal, env: or secretsmanager: reference
}

// ObservabilityConfig enables OTLP export of traces and metrics.
type ObservabilityConfig struct {
	Endpoint    string `yaml:"endpoint" json:"endpoint"`
	ServiceName string `yaml:"serviceName,omitempty" json:"serviceName,omitempty"`
	Insecure    bool   `yaml:"insecure,omitempty" json:"insecure,omitempty"`
}

// AWSConfig overrides the default AWS client configuration.
type AWSConfig struct {
	Region   string `yaml:"region,omitempty" json:"region,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"` // e.g. localstack
}

// ProjectConfig represents the top-level tripwire.yaml configuration.
type ProjectConfig struct {
	Name            string               `yaml:"name,omitempty"`
	LogLevel        string               `yaml:"logLevel,omitempty"`
	KeyPrefix       string               `yaml:"keyPrefix,omitempty"`
	SetupKey        string               `yaml:"setupKey,omitempty"`
	MailReceiverKey string               `yaml:"mailReceiverKey,omitempty"`
	TickInterval    string               `yaml:"tickInterval,omitempty"`
	Source          SourceConfig         `yaml:"source"`
	Publishers      []PublisherConfig    `yaml:"publishers,omitempty"`
	Notifiers       []NotifierConfig     `yaml:"notifiers,omitempty"`
	Channels        map[string][]string  `yaml:"channels,omitempty"`
	Watch           []WatchConfig        `yaml:"watch,omitempty"`
	WatchFiles      []string             `yaml:"watchFiles,omitempty"`
	Action          ActionConfig         `yaml:"action,omitempty"`
	Journal         JournalConfig        `yaml:"journal,omitempty"`
	Server          *ServerConfig        `yaml:"server,omitempty"`
	Observability   *ObservabilityConfig `yaml:"observability,omitempty"`
	AWS             *AWSConfig           `yaml:"aws,omitempty"`
}
