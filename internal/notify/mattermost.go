package notify

import (
	"context"
	"fmt"

	"github.com/dwsmith1983/tripwire/pkg/types"
)

// MattermostNotifier posts to a Mattermost incoming webhook.
type MattermostNotifier struct {
	name     string
	url      string
	channel  string
	username string
	poster   *httpPoster
}

type mattermostPayload struct {
	Text     string `json:"text"`
	Channel  string `json:"channel,omitempty"`
	Username string `json:"username,omitempty"`
}

// NewMattermostNotifier creates a Mattermost notifier.
func NewMattermostNotifier(name, url, channel, username string) (*MattermostNotifier, error) {
	if url == "" {
		return nil, fmt.Errorf("mattermost webhook URL required")
	}
	if name == "" {
		name = "mattermost"
	}
	return &MattermostNotifier{
		name:     name,
		url:      url,
		channel:  channel,
		username: username,
		poster:   newHTTPPoster(name),
	}, nil
}

// Name returns the notifier identifier.
func (m *MattermostNotifier) Name() string { return m.name }

// Send posts the notification; important ones mention the whole channel.
func (m *MattermostNotifier) Send(ctx context.Context, n types.Notification) error {
	text := fmt.Sprintf("**%s**\n%s", n.Subject, n.Body)
	if n.Important {
		text = "@channel " + text
	}
	if err := m.poster.postJSON(ctx, m.url, mattermostPayload{
		Text:     text,
		Channel:  m.channel,
		Username: m.username,
	}); err != nil {
		return fmt.Errorf("mattermost: %w", err)
	}
	return nil
}
