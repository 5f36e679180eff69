package notify

import (
	"context"
	"fmt"

	"github.com/dwsmith1983/tripwire/pkg/types"
)

// smsMaxLength is the length of a single SMS.
const smsMaxLength = 160

// SMSNotifier sends short texts through an HTTP SMS gateway.
type SMSNotifier struct {
	name      string
	url       string
	receivers []string
	poster    *httpPoster
}

type smsPayload struct {
	To   []string `json:"to"`
	Text string   `json:"text"`
}

// NewSMSNotifier creates an SMS notifier.
func NewSMSNotifier(name, url string, receivers []string) (*SMSNotifier, error) {
	if url == "" {
		return nil, fmt.Errorf("sms gateway URL required")
	}
	if len(receivers) == 0 {
		return nil, fmt.Errorf("sms receivers required")
	}
	if name == "" {
		name = "sms"
	}
	return &SMSNotifier{name: name, url: url, receivers: receivers, poster: newHTTPPoster(name)}, nil
}

// Name returns the notifier identifier.
func (s *SMSNotifier) Name() string { return s.name }

// Send texts the short form of the notification, falling back to the subject.
func (s *SMSNotifier) Send(ctx context.Context, n types.Notification) error {
	text := n.Short
	if text == "" {
		text = n.Subject
	}
	if len(text) > smsMaxLength {
		text = text[:smsMaxLength]
	}
	if err := s.poster.postJSON(ctx, s.url, smsPayload{To: s.receivers, Text: text}); err != nil {
		return fmt.Errorf("sms: %w", err)
	}
	return nil
}
