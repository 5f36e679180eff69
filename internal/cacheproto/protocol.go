// Package cacheproto speaks the line-based key-value cache protocol:
// message parsing, the literal value codec and a subscribing TCP client.
package cacheproto

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dwsmith1983/tripwire/pkg/types"
)

// DefaultPort is the cache server's TCP port.
const DefaultPort = 14869

// Protocol operators.
const (
	OpTell      = "="
	OpAsk       = "?"
	OpWildcard  = "*"
	OpSubscribe = ":"
	OpTellOld   = "!"
	OpLock      = "$"
	OpRewrite   = "~"
)

// Markers sent by the server at the end of query replies.
const (
	EndMarker  = "###"
	SyncMarker = "#sync#"
)

var msgPattern = regexp.MustCompile(`^(?:\s*(?P<time>\d+\.?\d*)?\s*(?P<ttlop>[+-]?)\s*(?P<ttl>\d+\.?\d*(?:[eE][+-]?\d+)?)?\s*(?P<tsop>@))?\s*(?P<key>[^=!?:*$~]*?)\s*(?P<op>[=!?:*$~])\s*(?P<value>[^\r\n]*?)\s*$`)

// Line is one parsed protocol message.
type Line struct {
	Time    time.Time // zero when the message carries no timestamp
	TTL     time.Duration
	Stamped bool // an '@' time marker was present
	Key     string
	Op      string
	Value   string
}

// ParseLine parses a protocol message without its line terminator.
func ParseLine(s string) (Line, error) {
	m := msgPattern.FindStringSubmatch(s)
	if m == nil {
		return Line{}, fmt.Errorf("malformed cache message %q", s)
	}
	get := func(name string) string { return m[msgPattern.SubexpIndex(name)] }

	l := Line{
		Stamped: get("tsop") != "",
		Key:     get("key"),
		Op:      get("op"),
		Value:   get("value"),
	}
	if ts := get("time"); ts != "" {
		secs, err := strconv.ParseFloat(ts, 64)
		if err != nil {
			return Line{}, fmt.Errorf("bad timestamp in %q: %w", s, err)
		}
		l.Time = FromUnix(secs)
	}
	if ttl := get("ttl"); ttl != "" {
		secs, err := strconv.ParseFloat(ttl, 64)
		if err != nil {
			return Line{}, fmt.Errorf("bad ttl in %q: %w", s, err)
		}
		if get("ttlop") == "-" && !l.Time.IsZero() {
			// time-expiry form: ttl is the absolute expiration time
			l.TTL = FromUnix(secs).Sub(l.Time)
		} else {
			l.TTL = time.Duration(secs * float64(time.Second))
		}
	}
	return l, nil
}

// Update converts a tell or tell-old line into a telemetry update.
// Lines without a timestamp are stamped with now.
func (l Line) Update(now time.Time) (types.Update, bool) {
	var op types.Op
	switch l.Op {
	case OpTell:
		op = types.OpTell
	case OpTellOld:
		op = types.OpTellOld
	default:
		return types.Update{}, false
	}
	t := l.Time
	if t.IsZero() {
		t = now
	}
	return types.Update{Time: t, Key: l.Key, Op: op, Value: l.Value}, true
}

// FormatTell renders a timestamped tell message, including the newline.
func FormatTell(t time.Time, key, value string) string {
	return fmt.Sprintf("%s@%s%s%s\n", unixString(t), key, OpTell, value)
}

// FormatQuery renders a timestamped request for every key containing prefix.
func FormatQuery(prefix string) string {
	return "@" + prefix + OpWildcard + "\n"
}

// FormatSubscribe renders a timestamped subscription for every key containing prefix.
func FormatSubscribe(prefix string) string {
	return "@" + prefix + OpSubscribe + "\n"
}

// FromUnix converts fractional epoch seconds.
func FromUnix(secs float64) time.Time {
	whole := int64(secs)
	frac := secs - float64(whole)
	return time.Unix(whole, int64(frac*1e9))
}

func unixString(t time.Time) string {
	secs := float64(t.UnixNano()) / 1e9
	return strconv.FormatFloat(secs, 'f', 6, 64)
}

// IsMarker reports whether s is a server end or sync marker line.
func IsMarker(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, EndMarker) || strings.Contains(s, SyncMarker)
}
