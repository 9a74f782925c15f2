package feed

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sissm-go/pioverride/internal/lifecycle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRunPublishesEvents(t *testing.T) {
	input := strings.Join([]string{
		"# warmup",
		"map_change Farmhouse",
		"",
		"game_start",
		"halftime",
		"Round-Start",
		"counterattack_start",
		"counterattack_stop",
	}, "\n")

	bus := lifecycle.NewBus()
	var got []lifecycle.Event
	bus.Subscribe(func(ctx context.Context, e lifecycle.Event) {
		got = append(got, e)
	})
	core, logs := observer.New(zapcore.WarnLevel)

	n, err := Run(context.Background(), strings.NewReader(input), bus, zap.New(core))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	require.Len(t, got, 5)
	assert.Equal(t, lifecycle.EventMapChange, got[0].Type)
	assert.Equal(t, "Farmhouse", got[0].Payload)
	assert.Equal(t, lifecycle.EventGameStart, got[1].Type)
	assert.Equal(t, lifecycle.EventRoundStart, got[2].Type)
	assert.Equal(t, lifecycle.EventCounterAttackStart, got[3].Type)
	assert.Equal(t, lifecycle.EventCounterAttackStop, got[4].Type)

	assert.Equal(t, 1, logs.FilterMessage("skipping unknown event").Len())
}

func TestRunStopsOnCancel(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()

	bus := lifecycle.NewBus()
	published := make(chan struct{}, 1)
	bus.Subscribe(func(ctx context.Context, e lifecycle.Event) {
		published <- struct{}{}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := Run(ctx, r, bus, nil)
		done <- err
	}()

	_, err := io.WriteString(w, "game_start\n")
	require.NoError(t, err)
	select {
	case <-published:
	case <-time.After(2 * time.Second):
		t.Fatal("event was not published")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestParseLine(t *testing.T) {
	event, ok := ParseLine("  client_add  Player One ")
	require.True(t, ok)
	assert.Equal(t, lifecycle.EventClientAdd, event.Type)
	assert.Equal(t, "Player One", event.Payload)

	_, ok = ParseLine("# comment")
	assert.False(t, ok)
	_, ok = ParseLine("   ")
	assert.False(t, ok)
	_, ok = ParseLine("not_an_event")
	assert.False(t, ok)
}

func followFeed(t *testing.T, path string, opts FollowOptions) (<-chan lifecycle.Event, context.CancelFunc, <-chan error) {
	t.Helper()
	bus := lifecycle.NewBus()
	events := make(chan lifecycle.Event, 16)
	bus.Subscribe(func(ctx context.Context, e lifecycle.Event) {
		events <- e
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := Follow(ctx, path, opts, bus, nil)
		done <- err
	}()
	return events, cancel, done
}

func nextEvent(t *testing.T, events <-chan lifecycle.Event) lifecycle.Event {
	t.Helper()
	select {
	case e := <-events:
		return e
	case <-time.After(5 * time.Second):
		t.Fatal("no event published")
		return lifecycle.Event{}
	}
}

func appendLine(t *testing.T, path, line string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString(line + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestFollowPublishesAppendedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	require.NoError(t, os.WriteFile(path, []byte("game_start\n"), 0o600))

	events, cancel, done := followFeed(t, path, FollowOptions{Poll: true})
	defer cancel()

	assert.Equal(t, lifecycle.EventGameStart, nextEvent(t, events).Type)

	appendLine(t, path, "counterattack_start")
	assert.Equal(t, lifecycle.EventCounterAttackStart, nextEvent(t, events).Type)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Follow did not return after cancel")
	}
}

func TestFollowFromEndSkipsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	require.NoError(t, os.WriteFile(path, []byte("game_start\nround_start\n"), 0o600))

	events, cancel, _ := followFeed(t, path, FollowOptions{FromEnd: true, Poll: true})
	defer cancel()

	// Give the tailer time to open the file and seek before appending.
	time.Sleep(500 * time.Millisecond)
	appendLine(t, path, "round_end")
	assert.Equal(t, lifecycle.EventRoundEnd, nextEvent(t, events).Type)
}

func TestFollowMissingFile(t *testing.T) {
	_, err := Follow(context.Background(), filepath.Join(t.TempDir(), "missing.log"), FollowOptions{}, lifecycle.NewBus(), nil)
	assert.Error(t, err)
}
