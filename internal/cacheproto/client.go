package cacheproto

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/dwsmith1983/tripwire/internal/schedule"
	"github.com/dwsmith1983/tripwire/pkg/types"
)

const defaultQueueSize = 256

// DialFunc opens a connection to the cache server.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Client subscribes to every key under a prefix and streams the updates.
// It also carries outbound tell messages queued with Put.
type Client struct {
	addr   string
	prefix string
	policy schedule.ReconnectPolicy
	dial   DialFunc
	queue  chan string
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithReconnectPolicy overrides the reconnect backoff.
func WithReconnectPolicy(p schedule.ReconnectPolicy) Option {
	return func(c *Client) { c.policy = p }
}

// WithDialer overrides how connections are opened.
func WithDialer(d DialFunc) Option {
	return func(c *Client) { c.dial = d }
}

// WithQueueSize sets the outbound queue capacity.
func WithQueueSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.queue = make(chan string, n)
		}
	}
}

// WithClock overrides the time source used for unstamped lines.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient creates a cache client for addr ("host" or "host:port").
func NewClient(addr, prefix string, opts ...Option) *Client {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, strconv.Itoa(DefaultPort))
	}
	var d net.Dialer
	c := &Client{
		addr:   addr,
		prefix: prefix,
		policy: schedule.DefaultReconnectPolicy(),
		dial:   d.DialContext,
		queue:  make(chan string, defaultQueueSize),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Addr returns the server address.
func (c *Client) Addr() string { return c.addr }

// Put queues a tell of key stamped with the current time. It never blocks;
// when the queue is full the message is dropped and Put returns false.
func (c *Client) Put(key, value string) bool {
	return c.PutAt(c.now(), key, value)
}

// PutAt is Put with an explicit timestamp.
func (c *Client) PutAt(t time.Time, key, value string) bool {
	select {
	case c.queue <- FormatTell(t, key, value):
		return true
	default:
		c.logger.Warn("watchdog: cache outbound queue full, dropping message", "key", key)
		return false
	}
}

// Run streams updates into out until ctx is cancelled, reconnecting with
// backoff whenever the connection drops.
func (c *Client) Run(ctx context.Context, out chan<- types.Update) error {
	attempt := 0
	for {
		connected, err := c.session(ctx, out)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			attempt = 0
		}
		attempt++
		c.logger.Warn("watchdog: cache connection lost",
			"addr", c.addr, "attempt", attempt, "error", err)
		if !schedule.Sleep(ctx, c.policy, attempt) {
			return nil
		}
	}
}

// session runs one connection. The boolean reports whether it connected.
func (c *Client) session(ctx context.Context, out chan<- types.Update) (bool, error) {
	conn, err := c.dial(ctx, "tcp", c.addr)
	if err != nil {
		return false, fmt.Errorf("connecting to cache %s: %w", c.addr, err)
	}
	defer func() { _ = conn.Close() }()
	c.logger.Info("watchdog: connected to cache", "addr", c.addr, "prefix", c.prefix)

	if _, err := conn.Write([]byte(FormatQuery(c.prefix) + FormatSubscribe(c.prefix))); err != nil {
		return true, fmt.Errorf("subscribing: %w", err)
	}

	readErr := make(chan error, 1)
	go func() { readErr <- c.read(ctx, conn, out) }()

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close()
			<-readErr
			return true, ctx.Err()
		case err := <-readErr:
			return true, err
		case line := <-c.queue:
			if _, err := conn.Write([]byte(line)); err != nil {
				_ = conn.Close()
				<-readErr
				return true, fmt.Errorf("writing to cache: %w", err)
			}
		}
	}
}

func (c *Client) read(ctx context.Context, conn net.Conn, out chan<- types.Update) error {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		text := scanner.Text()
		if text == "" || IsMarker(text) {
			continue
		}
		line, err := ParseLine(text)
		if err != nil {
			c.logger.Debug("watchdog: ignoring cache line", "line", text, "error", err)
			continue
		}
		upd, ok := line.Update(c.now())
		if !ok {
			continue
		}
		select {
		case out <- upd:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return fmt.Errorf("connection closed by server")
}
