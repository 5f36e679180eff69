package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"sync"

	"github.com/dwsmith1983/tripwire/pkg/types"
)

const defaultSMTPPort = 25

// SendMailFunc matches smtp.SendMail.
type SendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// MailNotifier sends plain-text email over SMTP. Its receiver list can be
// replaced at runtime.
type MailNotifier struct {
	name     string
	addr     string
	host     string
	sender   string
	username string
	password string
	prefix   string
	send     SendMailFunc

	mu        sync.Mutex
	receivers []string
}

// NewMailNotifier creates an SMTP notifier. prefix is prepended to every
// subject line.
func NewMailNotifier(name, host string, port int, sender, username, password, prefix string, receivers []string) (*MailNotifier, error) {
	if host == "" {
		return nil, fmt.Errorf("mailer host required")
	}
	if sender == "" {
		return nil, fmt.Errorf("mailer sender required")
	}
	if port == 0 {
		port = defaultSMTPPort
	}
	if name == "" {
		name = "mailer"
	}
	return &MailNotifier{
		name:      name,
		addr:      net.JoinHostPort(host, strconv.Itoa(port)),
		host:      host,
		sender:    sender,
		username:  username,
		password:  password,
		prefix:    prefix,
		send:      smtp.SendMail,
		receivers: append([]string(nil), receivers...),
	}, nil
}

// Name returns the notifier identifier.
func (m *MailNotifier) Name() string { return m.name }

// SetReceivers replaces the receiver list.
func (m *MailNotifier) SetReceivers(receivers []string) {
	m.mu.Lock()
	m.receivers = append([]string(nil), receivers...)
	m.mu.Unlock()
}

// Receivers returns a copy of the current receiver list.
func (m *MailNotifier) Receivers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.receivers...)
}

// Send mails n to all receivers. With no receivers it does nothing.
func (m *MailNotifier) Send(ctx context.Context, n types.Notification) error {
	to := m.Receivers()
	if len(to) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}
	if err := m.send(m.addr, auth, m.sender, to, m.message(to, n)); err != nil {
		return fmt.Errorf("mailer: %w", err)
	}
	return nil
}

func (m *MailNotifier) message(to []string, n types.Notification) []byte {
	subject := n.Subject
	if m.prefix != "" {
		subject = m.prefix + " " + subject
	}
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.sender)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	if n.Important {
		b.WriteString("X-Priority: 1\r\n")
	}
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(n.Body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}
