package notify

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dwsmith1983/tripwire/internal/secrets"
	"github.com/dwsmith1983/tripwire/pkg/types"
)

func testNotification() types.Notification {
	return types.Notification{
		Subject:   "New warning",
		Body:      "2026-01-02 10:00 -- cryostat too warm",
		What:      "cryostat too warm",
		Short:     "cryostat too warm",
		Important: true,
	}
}

type recordingNotifier struct {
	name string
	err  error

	mu   sync.Mutex
	sent []types.Notification
}

func (r *recordingNotifier) Name() string { return r.name }

func (r *recordingNotifier) Send(_ context.Context, n types.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return r.err
}

func (r *recordingNotifier) Sent() []types.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.Notification(nil), r.sent...)
}

type receiverNotifier struct {
	recordingNotifier
	receivers []string
}

func (r *receiverNotifier) SetReceivers(rs []string) { r.receivers = rs }

func TestDispatcher_RoutesByChannel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	mail := &recordingNotifier{name: "mail"}
	chat := &recordingNotifier{name: "chat"}

	d, err := NewDispatcher([]Notifier{mail, chat}, map[string][]string{
		"":     {"mail"},
		"cryo": {"mail", "chat"},
	})
	require.NoError(t, err)

	d.Dispatch("", testNotification())
	d.Dispatch("cryo", testNotification())
	d.Dispatch("unknown", testNotification())
	require.NoError(t, d.Wait(context.Background()))

	assert.Len(t, mail.Sent(), 2)
	assert.Len(t, chat.Sent(), 1)
	assert.True(t, d.HasChannel("cryo"))
	assert.False(t, d.HasChannel("unknown"))
	assert.Equal(t, []string{"", "cryo"}, d.Channels())
}

func TestDispatcher_DefaultChannelAlwaysExists(t *testing.T) {
	d, err := NewDispatcher(nil, nil)
	require.NoError(t, err)
	assert.True(t, d.HasChannel(""))
	d.Dispatch("", testNotification())
	require.NoError(t, d.Wait(context.Background()))
}

func TestDispatcher_FailureDoesNotPropagate(t *testing.T) {
	bad := &recordingNotifier{name: "bad", err: errors.New("boom")}
	good := &recordingNotifier{name: "good"}
	d, err := NewDispatcher([]Notifier{bad, good}, map[string][]string{"": {"bad", "good"}})
	require.NoError(t, err)

	d.Dispatch("", testNotification())
	require.NoError(t, d.Wait(context.Background()))
	assert.Len(t, bad.Sent(), 1)
	assert.Len(t, good.Sent(), 1)
}

func TestNewDispatcher_Errors(t *testing.T) {
	a := &recordingNotifier{name: "a"}

	_, err := NewDispatcher([]Notifier{a, &recordingNotifier{name: "a"}}, nil)
	assert.ErrorContains(t, err, "duplicate")

	_, err = NewDispatcher([]Notifier{a}, map[string][]string{"x": {"b"}})
	assert.ErrorContains(t, err, "unknown notifier")
}

func TestDispatcher_UpdateReceivers(t *testing.T) {
	rn := &receiverNotifier{recordingNotifier: recordingNotifier{name: "mail"}}
	limited := NewRateLimited(rn, time.Minute, nil)
	plain := &recordingNotifier{name: "plain"}

	d, err := NewDispatcher([]Notifier{limited, plain}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, d.UpdateReceivers([]string{"ops@example.org"}))
	assert.Equal(t, []string{"ops@example.org"}, rn.receivers)
}

func TestRateLimited_DropsWithinInterval(t *testing.T) {
	inner := &recordingNotifier{name: "inner"}
	n := NewRateLimited(inner, time.Hour, nil)

	require.NoError(t, n.Send(context.Background(), testNotification()))
	require.NoError(t, n.Send(context.Background(), testNotification()))
	assert.Len(t, inner.Sent(), 1)
	assert.Equal(t, "inner", n.Name())
	assert.Same(t, inner, Unwrap(n))
}

func TestRateLimited_ZeroIntervalIsPassthrough(t *testing.T) {
	inner := &recordingNotifier{name: "inner"}
	assert.Same(t, inner, NewRateLimited(inner, 0, nil))
}

func TestConsoleNotifier_Send(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleNotifier("")
	c.out = &buf
	assert.Equal(t, "console", c.Name())

	require.NoError(t, c.Send(context.Background(), testNotification()))
	assert.Contains(t, buf.String(), "[ALERT]")
	assert.Contains(t, buf.String(), "cryostat too warm")

	buf.Reset()
	n := testNotification()
	n.Important = false
	require.NoError(t, c.Send(context.Background(), n))
	assert.Contains(t, buf.String(), "[WARN]")
}

func TestFileNotifier_Send(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warnings.jsonl")
	f, err := NewFileNotifier("log", path)
	require.NoError(t, err)
	f.now = func() time.Time { return time.Unix(1700000000, 0).UTC() }

	require.NoError(t, f.Send(context.Background(), testNotification()))
	require.NoError(t, f.Send(context.Background(), testNotification()))

	fh, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = fh.Close() }()

	lines := 0
	sc := bufio.NewScanner(fh)
	for sc.Scan() {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		assert.Equal(t, "New warning", rec["subject"])
		assert.Equal(t, "2023-11-14T22:13:20Z", rec["timestamp"])
		lines++
	}
	assert.Equal(t, 2, lines)
}

func TestFileNotifier_BadPath(t *testing.T) {
	_, err := NewFileNotifier("log", filepath.Join(t.TempDir(), "missing", "x.jsonl"))
	assert.Error(t, err)
}

func TestMattermostNotifier_Send(t *testing.T) {
	var got mattermostPayload
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	m, err := NewMattermostNotifier("mm", ts.URL, "ops", "watchdog")
	require.NoError(t, err)
	require.NoError(t, m.Send(context.Background(), testNotification()))

	assert.Equal(t, "ops", got.Channel)
	assert.Equal(t, "watchdog", got.Username)
	assert.Contains(t, got.Text, "@channel **New warning**")
}

func TestMattermostNotifier_BreakerOpens(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	m, err := NewMattermostNotifier("mm", ts.URL, "", "")
	require.NoError(t, err)

	for i := 0; i < breakerTripThreshold; i++ {
		err := m.Send(context.Background(), testNotification())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "500")
	}
	err = m.Send(context.Background(), testNotification())
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(breakerTripThreshold), hits.Load())
}

func TestNewMattermostNotifier_RequiresURL(t *testing.T) {
	_, err := NewMattermostNotifier("mm", "", "", "")
	assert.Error(t, err)
}

func TestTelegramNotifier_Send(t *testing.T) {
	var (
		path string
		got  telegramPayload
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer ts.Close()

	tg, err := NewTelegramNotifier("tg", ts.URL+"/", "TOKEN", "42")
	require.NoError(t, err)

	n := testNotification()
	n.Important = false
	require.NoError(t, tg.Send(context.Background(), n))

	assert.Equal(t, "/botTOKEN/sendMessage", path)
	assert.Equal(t, "42", got.ChatID)
	assert.True(t, got.DisableNotification)
	assert.Equal(t, "New warning\n\n"+n.Body, got.Text)
}

func TestTelegramNotifier_ErrorHidesToken(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	tg, err := NewTelegramNotifier("tg", ts.URL, "SECRET", "42")
	require.NoError(t, err)
	err = tg.Send(context.Background(), testNotification())
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SECRET")
}

func TestSMSNotifier_SendsShortText(t *testing.T) {
	var got smsPayload
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer ts.Close()

	s, err := NewSMSNotifier("sms", ts.URL, []string{"+4900"})
	require.NoError(t, err)

	require.NoError(t, s.Send(context.Background(), testNotification()))
	assert.Equal(t, "cryostat too warm", got.Text)
	assert.Equal(t, []string{"+4900"}, got.To)

	n := testNotification()
	n.Short = ""
	require.NoError(t, s.Send(context.Background(), n))
	assert.Equal(t, "New warning", got.Text)
}

func TestMailNotifier_Send(t *testing.T) {
	m, err := NewMailNotifier("mail", "smtp.example.org", 0, "watchdog@example.org", "", "", "[tripwire]",
		[]string{"a@example.org"})
	require.NoError(t, err)

	var (
		addr string
		to   []string
		msg  string
	)
	m.send = func(a string, _ smtp.Auth, _ string, rcpt []string, body []byte) error {
		addr, to, msg = a, rcpt, string(body)
		return nil
	}

	require.NoError(t, m.Send(context.Background(), testNotification()))
	assert.Equal(t, "smtp.example.org:25", addr)
	assert.Equal(t, []string{"a@example.org"}, to)
	assert.Contains(t, msg, "Subject: [tripwire] New warning\r\n")
	assert.Contains(t, msg, "X-Priority: 1")

	m.SetReceivers([]string{"b@example.org", "c@example.org"})
	require.NoError(t, m.Send(context.Background(), testNotification()))
	assert.Equal(t, []string{"b@example.org", "c@example.org"}, to)
}

func TestMailNotifier_NoReceiversIsNoop(t *testing.T) {
	m, err := NewMailNotifier("mail", "smtp", 25, "w@x", "", "", "", nil)
	require.NoError(t, err)
	called := false
	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		called = true
		return nil
	}
	require.NoError(t, m.Send(context.Background(), testNotification()))
	assert.False(t, called)
}

type mockCloudWatch struct {
	createErr error
	creates   int
	events    []cwtypes.InputLogEvent
}

func (m *mockCloudWatch) CreateLogStream(_ context.Context, _ *cloudwatchlogs.CreateLogStreamInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogStreamOutput, error) {
	m.creates++
	return &cloudwatchlogs.CreateLogStreamOutput{}, m.createErr
}

func (m *mockCloudWatch) PutLogEvents(_ context.Context, in *cloudwatchlogs.PutLogEventsInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error) {
	m.events = append(m.events, in.LogEvents...)
	return &cloudwatchlogs.PutLogEventsOutput{}, nil
}

func TestCloudWatchNotifier_Send(t *testing.T) {
	cw := &mockCloudWatch{createErr: &cwtypes.ResourceAlreadyExistsException{}}
	n, err := NewCloudWatchNotifier("cw", cw, "/tripwire", "warnings")
	require.NoError(t, err)
	n.now = func() time.Time { return time.UnixMilli(1700000000123) }

	require.NoError(t, n.Send(context.Background(), testNotification()))
	require.NoError(t, n.Send(context.Background(), testNotification()))

	assert.Equal(t, 1, cw.creates)
	require.Len(t, cw.events, 2)
	assert.Equal(t, int64(1700000000123), *cw.events[0].Timestamp)
	assert.Contains(t, *cw.events[0].Message, "New warning")
}

func TestCloudWatchNotifier_CreateFails(t *testing.T) {
	cw := &mockCloudWatch{createErr: errors.New("AccessDenied")}
	n, err := NewCloudWatchNotifier("cw", cw, "/tripwire", "warnings")
	require.NoError(t, err)
	assert.Error(t, n.Send(context.Background(), testNotification()))
	assert.Empty(t, cw.events)
}

func TestNew_BuildsAndWraps(t *testing.T) {
	t.Setenv("TRIPWIRE_TG_TOKEN", "tok")
	deps := Deps{Secrets: secrets.NewResolver(nil), CloudWatch: &mockCloudWatch{}}

	n, err := New(context.Background(), types.NotifierConfig{
		Name: "tg", Type: types.NotifierTelegram, Token: "env:TRIPWIRE_TG_TOKEN", ChatID: "1",
	}, deps)
	require.NoError(t, err)
	_, limited := n.(*RateLimited)
	assert.True(t, limited)
	tg, ok := Unwrap(n).(*TelegramNotifier)
	require.True(t, ok)
	assert.Equal(t, "tok", tg.token)

	n, err = New(context.Background(), types.NotifierConfig{
		Name: "c", Type: types.NotifierConsole, MinInterval: "0s",
	}, deps)
	require.NoError(t, err)
	_, plain := n.(*ConsoleNotifier)
	assert.True(t, plain)

	n, err = New(context.Background(), types.NotifierConfig{
		Name: "cw", Type: types.NotifierCloudWatch, LogGroup: "g", LogStream: "s",
	}, deps)
	require.NoError(t, err)
	assert.Equal(t, "cw", n.Name())
}

func TestNew_Errors(t *testing.T) {
	deps := Deps{}
	tests := []types.NotifierConfig{
		{Name: "x", Type: "pager"},
		{Name: "f", Type: types.NotifierFile},
		{Name: "tg", Type: types.NotifierTelegram, Token: "env:TRIPWIRE_UNSET_FOR_TEST", ChatID: "1"},
		{Name: "c", Type: types.NotifierConsole, MinInterval: "often"},
		{Name: "m", Type: types.NotifierMailer},
		{Name: "cw", Type: types.NotifierCloudWatch, LogGroup: "g", LogStream: "s"},
	}
	for _, cfg := range tests {
		t.Run(cfg.Name, func(t *testing.T) {
			_, err := New(context.Background(), cfg, deps)
			assert.Error(t, err)
		})
	}
}
