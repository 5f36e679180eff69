package engine

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dwsmith1983/tripwire/internal/condition"
	"github.com/dwsmith1983/tripwire/internal/journal"
	"github.com/dwsmith1983/tripwire/internal/metrics"
	"github.com/dwsmith1983/tripwire/internal/publish"
	"github.com/dwsmith1983/tripwire/internal/testutil"
	"github.com/dwsmith1983/tripwire/pkg/types"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

type harness struct {
	eng      *Engine
	notifier *testutil.MockNotifier
	runner   *testutil.MockRunner
	rec      *publish.Recorder
	journal  *journal.Memory
	clock    *testutil.Clock
}

func newHarness(t *testing.T, watch []types.WatchConfig, channels ...string) *harness {
	t.Helper()
	h := &harness{
		notifier: &testutil.MockNotifier{Channels: channels},
		runner:   &testutil.MockRunner{},
		rec:      &publish.Recorder{},
		journal:  journal.NewMemory(50),
		clock:    testutil.NewClock(t0),
	}
	h.eng = New(watch, Options{
		MailReceiverKey: "watchdog/mailreceivers",
		Notifier:        h.notifier,
		Publisher:       h.rec,
		Runner:          h.runner,
		Journal:         h.journal,
		Logger:          testutil.DiscardLogger(),
		Clock:           h.clock.Now,
	})
	return h
}

func (h *harness) tell(at time.Time, key, value string) {
	h.eng.HandleUpdate(types.Update{Time: at, Key: "nicos/" + key, Op: types.OpTell, Value: value})
}

func (h *harness) expire(at time.Time, key string) {
	h.eng.HandleUpdate(types.Update{Time: at, Key: "nicos/" + key, Op: types.OpTellOld})
}

func immediate(cond, msg string) types.WatchConfig {
	return types.WatchConfig{Condition: cond, Message: msg, Gracetime: ptr(0.0)}
}

func TestNew_RejectsInvalidEntries(t *testing.T) {
	before := metrics.EntriesRejected.Value()
	h := newHarness(t, []types.WatchConfig{
		{Message: "no condition"},
		{Condition: "t_value > 5"},
		{Condition: "t_value >", Message: "syntax"},
		{Condition: "t_value > 5", Message: "unknown channel", Type: "pager"},
		{Condition: "t_value > 5", Message: "ok", Type: "ops"},
		{Condition: "t_value > 5", Message: "duplicate"},
		{Condition: "p_value < 1", Message: "bad script action", ScriptAction: "explode"},
	}, "ops")

	rejected := h.eng.Rejected()
	require.Len(t, rejected, 5)
	assert.Equal(t, 0, rejected[0].Index)
	assert.Equal(t, "missing condition", rejected[0].Reason)
	assert.Equal(t, "missing message", rejected[1].Reason)
	assert.Equal(t, 2, rejected[2].Index)
	assert.Contains(t, rejected[3].Reason, "unknown notifier type pager")
	assert.Equal(t, "duplicate entry", rejected[4].Reason)
	assert.Equal(t, int64(5), metrics.EntriesRejected.Value()-before)

	entries := h.eng.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "ops", entries[0].Type)
	assert.Equal(t, []string{"t_value"}, entries[0].Keys)
	assert.Equal(t, "p_value < 1", entries[1].Condition)
	assert.True(t, entries[1].Enabled)
	assert.Equal(t, types.ScriptActionNone, entries[1].ScriptAction)
	assert.Equal(t, []string{"p_value", "t_value"}, h.eng.Keys())

	// the entry with the invalid scriptaction warns without any script action
	h.tell(t0, "p/value", "0")
	h.eng.Tick(t0.Add(6 * time.Second))
	warnings := h.eng.Warnings()
	require.Len(t, warnings, 1)
	assert.NotContains(t, warnings[0].Description, "counting paused")
	_, found := h.rec.Last(types.MessageScriptAction)
	assert.False(t, found)
	_, found = h.rec.Last(types.MessagePauseCount)
	assert.False(t, found)
}

func TestNew_DuplicateLoggedAsError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	e := New([]types.WatchConfig{
		{Condition: "t_value > 5", Message: "first"},
		{Condition: "t_value > 5", Message: "second"},
	}, Options{Logger: logger})
	require.Len(t, e.Rejected(), 1)
	assert.Equal(t, "first", e.Entries()[0].Message)

	var levels []string
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		if line["reason"] == "duplicate entry" {
			levels = append(levels, line["level"].(string))
		}
	}
	assert.Equal(t, []string{"ERROR"}, levels)
}

func TestNew_DefaultNotifierOnlyKnowsDefaultChannel(t *testing.T) {
	e := New([]types.WatchConfig{
		{Condition: "a > 1", Message: "x", Type: "ops"},
		{Condition: "a > 1", Message: "x"},
	}, Options{Logger: testutil.DiscardLogger()})
	assert.Len(t, e.Rejected(), 1)
	assert.Len(t, e.Entries(), 1)
}

func TestEntryID(t *testing.T) {
	a := types.WatchConfig{Condition: "t_value > 5", Message: "one"}
	b := types.WatchConfig{Condition: "t_value > 5", Message: "two"}
	c := types.WatchConfig{Condition: "t_value > 5", Setup: "cryo"}

	assert.Equal(t, EntryID(a), EntryID(b))
	assert.NotEqual(t, EntryID(a), EntryID(c))
	assert.Len(t, EntryID(a), 16)
}

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "t_value", NormalizeKey("nicos/", "nicos/T/Value"))
	assert.Equal(t, "session_mastersetup", NormalizeKey("nicos/", "session/mastersetup"))
	assert.Equal(t, "other_x", NormalizeKey("nicos/", "other/x"))
}

func TestDecodeStrings(t *testing.T) {
	got, err := decodeStrings("['a', 'b']")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)

	got, err = decodeStrings("('a',)")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, got)

	got, err = decodeStrings("'single'")
	require.NoError(t, err)
	assert.Equal(t, []string{"single"}, got)

	got, err = decodeStrings("{'b': None, 'a': None}")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)

	_, err = decodeStrings("[1, 2]")
	assert.Error(t, err)
	_, err = decodeStrings("5")
	assert.Error(t, err)
}

func TestWarning_RaiseIsIdempotentAndClears(t *testing.T) {
	h := newHarness(t, []types.WatchConfig{immediate("t_value > 5", "too hot")})

	h.tell(t0, "t/value", "6")
	h.tell(t0.Add(time.Second), "t/value", "7")
	h.eng.Tick(t0.Add(2 * time.Second))

	dispatches := h.notifier.Dispatches()
	require.Len(t, dispatches, 1)
	assert.Equal(t, "", dispatches[0].Channel)
	assert.Equal(t, SubjectWarning, dispatches[0].Notification.Subject)
	assert.Equal(t, "2026-03-01 12:00 -- too hot", dispatches[0].Notification.Body)
	assert.True(t, dispatches[0].Notification.Important)

	warnings := h.eng.Warnings()
	require.Len(t, warnings, 1)
	assert.True(t, warnings[0].Real)

	msg, ok := h.rec.Last(types.MessageWarning)
	require.True(t, ok)
	assert.Equal(t, "too hot", msg.Payload)
	assert.Equal(t, t0, msg.Time)
	agg, ok := h.rec.Last(types.MessageWarnings)
	require.True(t, ok)
	assert.Equal(t, "2026-03-01 12:00 -- too hot", agg.Payload)
	assert.False(t, agg.Timestamped())

	h.tell(t0.Add(3*time.Second), "t/value", "4")
	assert.Empty(t, h.eng.Warnings())
	agg, _ = h.rec.Last(types.MessageWarnings)
	assert.Equal(t, "", agg.Payload)
	// no okmessage configured
	assert.Len(t, h.notifier.Dispatches(), 1)
}

func TestWarning_Debounce(t *testing.T) {
	h := newHarness(t, []types.WatchConfig{{Condition: "t_value > 5", Message: "too hot"}})

	h.tell(t0, "t/value", "6")
	assert.Empty(t, h.eng.Warnings())

	h.eng.Tick(t0.Add(4 * time.Second))
	assert.Empty(t, h.eng.Warnings())

	h.eng.Tick(t0.Add(5 * time.Second))
	require.Len(t, h.eng.Warnings(), 1)
	assert.Len(t, h.notifier.Dispatches(), 1)
}

func TestWarning_DebounceAbandonedWhenConditionDrops(t *testing.T) {
	h := newHarness(t, []types.WatchConfig{{Condition: "t_value > 5", Message: "too hot"}})

	h.tell(t0, "t/value", "6")
	h.tell(t0.Add(2*time.Second), "t/value", "4")
	h.eng.Tick(t0.Add(10 * time.Second))

	assert.Empty(t, h.eng.Warnings())
	assert.Empty(t, h.notifier.Dispatches())
}

func TestWarning_ExpiryTakesPrecedence(t *testing.T) {
	h := newHarness(t, []types.WatchConfig{immediate("t_value > 5", "too hot")})

	h.tell(t0, "t/value", "6")
	require.Len(t, h.eng.Warnings(), 1)

	h.expire(t0.Add(time.Second), "t/value")
	h.eng.Tick(t0.Add(time.Second + condition.MissingDataGrace - time.Millisecond))
	require.Len(t, h.eng.Warnings(), 1)
	assert.True(t, h.eng.Warnings()[0].Real)

	h.eng.Tick(t0.Add(time.Second + condition.MissingDataGrace + time.Millisecond))
	warnings := h.eng.Warnings()
	require.Len(t, warnings, 1)
	assert.False(t, warnings[0].Real)
	assert.Contains(t, warnings[0].Description,
		"current value missing for condition 't_value > 5', cannot check watchdog condition")

	// the default channel does not receive expiry notices
	assert.Len(t, h.notifier.Dispatches(), 1)

	// value returns and is still bad: real warning again
	h.tell(t0.Add(20*time.Second), "t/value", "9")
	warnings = h.eng.Warnings()
	require.Len(t, warnings, 1)
	assert.True(t, warnings[0].Real)
	assert.Len(t, h.notifier.Dispatches(), 2)
}

func TestWarning_ExpiredStateIsIdempotent(t *testing.T) {
	w := immediate("t_value > 5", "too hot")
	w.Type = "ops"
	w.ScriptAction = types.ScriptActionPauseCount
	h := newHarness(t, []types.WatchConfig{w}, "ops")

	h.tell(t0, "t/value", "garbage(")
	h.eng.Tick(t0.Add(condition.MissingDataGrace + time.Second))
	require.Len(t, h.eng.Warnings(), 1)
	require.False(t, h.eng.Warnings()[0].Real)

	published := len(h.rec.Messages())
	dispatches := len(h.notifier.Dispatches())
	for i := 2; i <= 14; i++ {
		h.eng.Tick(t0.Add(condition.MissingDataGrace + time.Duration(i)*time.Second))
	}

	assert.Len(t, h.rec.Messages(), published, "no new warnings or pausecount publishes")
	assert.Len(t, h.notifier.Dispatches(), dispatches)
	assert.Len(t, h.eng.Warnings(), 1)
	assert.Empty(t, h.eng.PauseCount(), "an expired warning never pauses counting")
}

func TestWarning_ExpiredNotifiesTypedChannel(t *testing.T) {
	w := immediate("t_value > 5", "too hot")
	w.Type = "ops"
	w.OKMessage = "all good"
	h := newHarness(t, []types.WatchConfig{w}, "ops")

	h.tell(t0, "t/value", "garbage(")
	h.eng.Tick(t0.Add(condition.MissingDataGrace + time.Second))

	dispatches := h.notifier.Dispatches()
	require.Len(t, dispatches, 1)
	assert.Equal(t, "ops", dispatches[0].Channel)
	assert.Equal(t, SubjectExpired, dispatches[0].Notification.Subject)
	assert.False(t, dispatches[0].Notification.Important)

	// clearing an expired warning sends no ok message
	h.tell(t0.Add(10*time.Second), "t/value", "1")
	assert.Empty(t, h.eng.Warnings())
	assert.Len(t, h.notifier.Dispatches(), 1)
}

func TestHandleUpdate_CorruptValueIsMissing(t *testing.T) {
	before := metrics.UpdatesCorrupt.Value()
	h := newHarness(t, []types.WatchConfig{immediate("t_value > 5", "too hot")})

	h.tell(t0, "t/value", "6")
	require.Len(t, h.eng.Warnings(), 1)

	h.tell(t0.Add(time.Second), "t/value", "os.system('x')")
	assert.Equal(t, int64(1), metrics.UpdatesCorrupt.Value()-before)
	h.eng.Tick(t0.Add(time.Second + condition.MissingDataGrace + time.Second))
	require.Len(t, h.eng.Warnings(), 1)
	assert.False(t, h.eng.Warnings()[0].Real)
}

func TestHandleUpdate_IgnoresUnwatchedKeys(t *testing.T) {
	h := newHarness(t, []types.WatchConfig{immediate("t_value > 5", "too hot")})
	h.tell(t0, "other/value", "100")
	assert.Empty(t, h.eng.Warnings())
	assert.Empty(t, h.rec.Messages())
}

func TestHandleUpdate_StatusConstants(t *testing.T) {
	h := newHarness(t, []types.WatchConfig{immediate("t_status[0] == error", "device failed")})
	h.tell(t0, "t/status", "(240, 'broken')")
	require.Len(t, h.eng.Warnings(), 1)
	h.tell(t0, "t/status", "(200, 'idle')")
	assert.Empty(t, h.eng.Warnings())
}

func TestOKMessageAndOKAction(t *testing.T) {
	w := immediate("t_value > 5", "too hot")
	w.Type = "ops"
	w.OKMessage = "cooled down"
	w.OKAction = "resume()"
	h := newHarness(t, []types.WatchConfig{w}, "ops")

	h.tell(t0, "t/value", "6")
	h.tell(t0.Add(time.Second), "t/value", "2")

	dispatches := h.notifier.Dispatches()
	require.Len(t, dispatches, 2)
	ok := dispatches[1]
	assert.Equal(t, "ops", ok.Channel)
	assert.Equal(t, SubjectResolved, ok.Notification.Subject)
	assert.Equal(t, "cooled down\n\nThe original warning was: too hot", ok.Notification.Body)

	spawns := h.runner.Spawns()
	require.Len(t, spawns, 1)
	assert.Equal(t, "resume()", spawns[0].Code)

	msg, found := h.rec.Last(types.MessageAction)
	require.True(t, found)
	assert.Equal(t, "resume()", msg.Payload)
}

func TestActionSpawnedWithSetups(t *testing.T) {
	w := immediate("t_value > 5", "too hot")
	w.Action = "maw.stop()"
	h := newHarness(t, []types.WatchConfig{w})

	h.tell(t0, "session/mastersetup", "['system', 'cryo']")
	h.tell(t0, "t/value", "6")

	warnings := h.eng.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, "2026-03-01 12:00 -- too hot -- executing 'maw.stop()'", warnings[0].Description)

	spawns := h.runner.Spawns()
	require.Len(t, spawns, 1)
	assert.Equal(t, "maw.stop()", spawns[0].Code)
	assert.Equal(t, []string{"system", "cryo"}, spawns[0].Setups)
}

func TestScriptAction_PauseCount(t *testing.T) {
	w1 := immediate("t_value > 5", "too hot")
	w1.ScriptAction = types.ScriptActionPauseCount
	w2 := immediate("p_value < 1", "vacuum lost")
	w2.ScriptAction = types.ScriptActionPauseCount
	h := newHarness(t, []types.WatchConfig{w1, w2})

	h.tell(t0, "t/value", "6")
	h.tell(t0, "p/value", "0")

	assert.Equal(t, []string{"too hot", "vacuum lost"}, h.eng.PauseCount())
	msg, ok := h.rec.Last(types.MessagePauseCount)
	require.True(t, ok)
	assert.Equal(t, "too hot, vacuum lost", msg.Payload)
	assert.Contains(t, h.eng.Warnings()[0].Description, " -- counting paused")

	h.tell(t0.Add(time.Second), "t/value", "1")
	assert.Equal(t, []string{"vacuum lost"}, h.eng.PauseCount())
	msg, _ = h.rec.Last(types.MessagePauseCount)
	assert.Equal(t, "vacuum lost", msg.Payload)
}

func TestScriptAction_Stop(t *testing.T) {
	w := immediate("t_value > 5", "too hot")
	w.ScriptAction = types.ScriptActionStop
	h := newHarness(t, []types.WatchConfig{w})

	h.tell(t0, "t/value", "6")

	msg, ok := h.rec.Last(types.MessageScriptAction)
	require.True(t, ok)
	assert.Equal(t, []any{"stop", "too hot"}, msg.Payload)
	assert.Empty(t, h.eng.PauseCount())
}

func TestSetupScoping(t *testing.T) {
	w := immediate("t_value > 5", "too hot")
	w.Setup = "cryo and not magnet"
	h := newHarness(t, []types.WatchConfig{w})

	h.tell(t0, "t/value", "6")
	assert.Empty(t, h.eng.Warnings(), "scoped entry stays silent before setups are known")

	h.tell(t0.Add(time.Second), "session/mastersetup", "['cryo']")
	assert.Equal(t, []string{"cryo"}, h.eng.Setups())
	require.Len(t, h.eng.Warnings(), 1)

	h.tell(t0.Add(2*time.Second), "session/mastersetup", "['cryo', 'magnet']")
	assert.Empty(t, h.eng.Warnings())

	// an expired setup key leaves the setups alone
	h.expire(t0.Add(3*time.Second), "session/mastersetup")
	assert.Equal(t, []string{"cryo", "magnet"}, h.eng.Setups())
}

func TestPrecondition(t *testing.T) {
	w := immediate("t_value > 5", "too hot while pumping")
	w.Precondition = "pump_value == 1"
	w.Precondtime = ptr(0.0)
	h := newHarness(t, []types.WatchConfig{w})

	h.tell(t0, "t/value", "4")
	h.tell(t0, "pump/value", "0")
	h.tell(t0, "t/value", "6")
	assert.Empty(t, h.eng.Warnings())

	h.tell(t0, "t/value", "4")
	h.tell(t0, "pump/value", "1")
	h.tell(t0, "t/value", "6")
	require.Len(t, h.eng.Warnings(), 1)

	// the latch survives the precondition dropping
	h.tell(t0, "pump/value", "0")
	assert.Len(t, h.eng.Warnings(), 1)

	h.tell(t0, "t/value", "4")
	assert.Empty(t, h.eng.Warnings())
}

func TestDisabledEntryNeverWarns(t *testing.T) {
	w := immediate("t_value > 5", "too hot")
	w.Enabled = ptr(false)
	h := newHarness(t, []types.WatchConfig{w})

	h.tell(t0, "t/value", "6")
	assert.Empty(t, h.eng.Warnings())
	assert.False(t, h.eng.Entries()[0].Enabled)
}

func TestMailReceivers(t *testing.T) {
	h := newHarness(t, nil)
	h.tell(t0, "watchdog/mailreceivers", "['a@example.org', 'b@example.org']")
	h.tell(t0, "watchdog/mailreceivers", "[1]")
	assert.Equal(t, [][]string{{"a@example.org", "b@example.org"}}, h.notifier.Receivers())
}

func TestJournalRecordsTransitions(t *testing.T) {
	w := immediate("t_value > 5", "too hot")
	w.Action = "stop()"
	h := newHarness(t, []types.WatchConfig{w})

	h.tell(t0, "session/mastersetup", "['base']")
	h.tell(t0, "t/value", "6")
	h.tell(t0, "t/value", "1")

	events, err := h.journal.Recent(context.Background(), 0)
	require.NoError(t, err)
	kinds := make([]types.EventKind, 0, len(events))
	for _, ev := range events {
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []types.EventKind{
		types.EventCleared, types.EventAction, types.EventWarning, types.EventSetupChange,
	}, kinds)
	assert.Equal(t, "base", events[3].Message)
	assert.Equal(t, "base", events[1].Detail)
}

func TestRun_ProcessesUpdatesUntilCancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := newHarness(t, []types.WatchConfig{{Condition: "t_value > 5", Message: "too hot", Gracetime: ptr(0.05)}})
	ctx, cancel := context.WithCancel(context.Background())
	updates := make(chan types.Update)
	done := make(chan error, 1)
	go func() { done <- h.eng.Run(ctx, updates, 5*time.Millisecond) }()

	updates <- types.Update{Time: t0, Key: "nicos/t/value", Op: types.OpTell, Value: "6"}
	h.clock.Set(t0.Add(time.Second))

	testutil.WaitFor(t, 2*time.Second, func() bool { return len(h.eng.Warnings()) == 1 },
		"debounced warning raised by tick")

	cancel()
	require.NoError(t, <-done)
}

func TestRun_StopsWhenUpdatesClosed(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := newHarness(t, nil)
	updates := make(chan types.Update)
	close(updates)
	assert.NoError(t, h.eng.Run(context.Background(), updates, time.Hour))
}
