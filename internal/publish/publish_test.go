package publish

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/tripwire/internal/metrics"
	"github.com/dwsmith1983/tripwire/pkg/types"
)

type put struct {
	t     time.Time
	key   string
	value string
}

type fakePutter struct {
	full bool
	puts []put
}

func (f *fakePutter) Put(key, value string) bool {
	return f.PutAt(time.Time{}, key, value)
}

func (f *fakePutter) PutAt(t time.Time, key, value string) bool {
	if f.full {
		return false
	}
	f.puts = append(f.puts, put{t, key, value})
	return true
}

func TestCache_Publish(t *testing.T) {
	fp := &fakePutter{}
	c := NewCache(fp, "nicos/", nil)
	ts := time.Unix(1700000000, 0)

	c.Publish(types.Message{Type: types.MessageWarnings, Payload: "a\nb"})
	c.Publish(types.Message{Type: types.MessageScriptAction, Payload: []any{"stop", "too hot"}, Time: ts})

	require.Len(t, fp.puts, 2)
	assert.Equal(t, put{time.Time{}, "nicos/watchdog/warnings", `'a\nb'`}, fp.puts[0])
	assert.Equal(t, put{ts, "nicos/watchdog/scriptaction", "['stop','too hot',]"}, fp.puts[1])
}

func TestCache_PublishFailures(t *testing.T) {
	fp := &fakePutter{full: true}
	c := NewCache(fp, "nicos/", nil)

	before := metrics.MessagesDropped.Value()
	c.Publish(types.Message{Type: types.MessageWarning, Payload: "x"})
	c.Publish(types.Message{Type: types.MessageWarning, Payload: struct{}{}})
	assert.Equal(t, before+2, metrics.MessagesDropped.Value())
}

func TestMulti_FansOut(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	Multi{a, b}.Publish(types.Message{Type: types.MessagePauseCount, Payload: "x"})
	assert.Len(t, a.Messages(), 1)
	assert.Len(t, b.Messages(), 1)
}

func TestRecorder_Last(t *testing.T) {
	r := &Recorder{}
	r.Publish(types.Message{Type: types.MessageWarnings, Payload: "1"})
	r.Publish(types.Message{Type: types.MessageWarning, Payload: "w"})
	r.Publish(types.Message{Type: types.MessageWarnings, Payload: "2"})

	m, ok := r.Last(types.MessageWarnings)
	require.True(t, ok)
	assert.Equal(t, "2", m.Payload)
	_, ok = r.Last(types.MessageAction)
	assert.False(t, ok)
}

type blockingPublisher struct {
	release chan struct{}
	rec     Recorder
}

func (b *blockingPublisher) Publish(msg types.Message) {
	<-b.release
	b.rec.Publish(msg)
}

func TestQueue_DropsWhenFull(t *testing.T) {
	bp := &blockingPublisher{release: make(chan struct{})}
	q := NewQueue(bp, 1, nil)

	before := metrics.MessagesDropped.Value()
	for i := 0; i < 5; i++ {
		q.Publish(types.Message{Type: types.MessageWarning, Payload: "x"})
	}
	close(bp.release)
	q.Close()

	delivered := int64(len(bp.rec.Messages()))
	dropped := metrics.MessagesDropped.Value() - before
	assert.Equal(t, int64(5), delivered+dropped)
	assert.GreaterOrEqual(t, dropped, int64(3))
}

type mockEventBridge struct {
	mu    sync.Mutex
	err   error
	input []*eventbridge.PutEventsInput
}

func (m *mockEventBridge) PutEvents(_ context.Context, in *eventbridge.PutEventsInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.input = append(m.input, in)
	if m.err != nil {
		return nil, m.err
	}
	return &eventbridge.PutEventsOutput{}, nil
}

func TestEventBridge_Publish(t *testing.T) {
	eb := &mockEventBridge{}
	p := NewEventBridge(eb, "watchdog-bus", "", nil)
	ts := time.Unix(1700000000, 0).UTC()

	p.Publish(types.Message{Type: types.MessageWarning, Payload: "too warm", Time: ts})

	require.Len(t, eb.input, 1)
	entry := eb.input[0].Entries[0]
	assert.Equal(t, "warning", *entry.DetailType)
	assert.Equal(t, DefaultEventSource, *entry.Source)
	assert.Equal(t, "watchdog-bus", *entry.EventBusName)
	assert.Equal(t, ts, *entry.Time)

	var detail map[string]any
	require.NoError(t, json.Unmarshal([]byte(*entry.Detail), &detail))
	assert.Equal(t, "too warm", detail["payload"])
}

func TestEventBridge_ErrorIsCounted(t *testing.T) {
	p := NewEventBridge(&mockEventBridge{err: errors.New("throttled")}, "", "src", nil)
	before := metrics.MessagesDropped.Value()
	p.Publish(types.Message{Type: types.MessageWarnings, Payload: ""})
	assert.Equal(t, before+1, metrics.MessagesDropped.Value())
}

func TestBuild(t *testing.T) {
	hub := NewHub(nil)
	out, closeFn, err := Build([]types.PublisherConfig{
		{Type: types.PublisherCache},
		{Type: types.PublisherEventBridge},
		{Type: types.PublisherHub},
	}, Deps{Cache: &fakePutter{}, KeyPrefix: "nicos/", EventBridge: &mockEventBridge{}, Hub: hub})
	require.NoError(t, err)
	assert.Len(t, out, 3)
	closeFn()

	_, _, err = Build([]types.PublisherConfig{{Type: types.PublisherCache}}, Deps{})
	assert.Error(t, err)
	_, _, err = Build([]types.PublisherConfig{{Type: "kafka"}}, Deps{})
	assert.Error(t, err)
}

func TestHub_BroadcastsToSubscribers(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Publish(types.Message{Type: types.MessageWarnings, Payload: "cryo too warm"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got types.Message
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, types.MessageWarnings, got.Type)
	assert.Equal(t, "cryo too warm", got.Payload)
}
