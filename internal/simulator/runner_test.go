package simulator

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchsim/dispatchsim/internal/models"
)

// captureOutput records every published message in memory.
type captureOutput struct {
	messages []capturedMessage
}

type capturedMessage struct {
	topic   string
	payload []byte
}

func (c *captureOutput) WriteMessage(topic string, msg []byte) error {
	c.messages = append(c.messages, capturedMessage{
		topic:   topic,
		payload: append([]byte(nil), msg...),
	})
	return nil
}

func (c *captureOutput) Close() error { return nil }

func TestRunnerStepOncePublishesSnapshot(t *testing.T) {
	w, err := NewWorldFromLayout(testConfig(1), lineLayout(1, 1))
	require.NoError(t, err)
	out := &captureOutput{}
	r := NewRunner(w, out, nil, time.Millisecond)

	r.StepOnce()
	r.StepOnce()

	assert.Equal(t, 2, w.CurrentTick())
	require.Len(t, out.messages, 2)
	assert.Equal(t, models.TopicSnapshots, out.messages[0].topic)

	var snap models.Snapshot
	require.NoError(t, json.Unmarshal(out.messages[1].payload, &snap))
	assert.Equal(t, 2, snap.Tick)
	assert.Equal(t, w.RunID(), snap.RunID)
}

func TestRunnerPublishesOrderEvents(t *testing.T) {
	w, err := NewWorldFromLayout(testConfig(1), lineLayout(1, 1))
	require.NoError(t, err)
	_, err = w.InjectOrder(0, 1)
	require.NoError(t, err)

	out := &captureOutput{}
	r := NewRunner(w, out, GreedyPolicy{}, time.Millisecond)
	r.StepOnce()

	var events []models.OrderEvent
	for _, m := range out.messages {
		if m.topic != models.TopicOrderEvents {
			continue
		}
		var ev models.OrderEvent
		require.NoError(t, json.Unmarshal(m.payload, &ev))
		events = append(events, ev)
	}

	// the driver starts at the pickup, so the weight-1 hop picks up and
	// delivers within the first tick
	require.Len(t, events, 3)
	assert.Equal(t, models.OrderPending, events[0].Status)
	assert.Equal(t, 0, events[0].Tick)
	assert.Equal(t, models.OrderPickedUp, events[1].Status)
	assert.Equal(t, models.OrderDelivered, events[2].Status)
	assert.Equal(t, 1, events[2].Tick)
	for _, ev := range events {
		assert.Equal(t, 0, ev.OrderID)
		assert.Equal(t, w.RunID(), ev.RunID)
	}
}

func TestRunnerStepOnceAppliesPolicy(t *testing.T) {
	w, err := NewWorldFromLayout(testConfig(1), lineLayout(1, 1))
	require.NoError(t, err)
	_, err = w.InjectOrder(0, 2)
	require.NoError(t, err)

	r := NewRunner(w, nil, GreedyPolicy{}, time.Millisecond)
	r.StepOnce()

	// policy assigned before the tick, so the driver picked up and moved
	snap := w.Snapshot()
	assert.Equal(t, models.OrderPickedUp, snap.Orders[0].Status)
	assert.Equal(t, 1, snap.Drivers[0].Node)
}

func TestRunnerStopsOnContextCancel(t *testing.T) {
	w, err := NewWorldFromLayout(testConfig(0), lineLayout(1))
	require.NoError(t, err)
	r := NewRunner(w, nil, nil, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Start(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runner did not stop after context cancellation")
	}
	assert.Positive(t, w.CurrentTick())
}

func TestRunnerStop(t *testing.T) {
	w, err := NewWorldFromLayout(testConfig(0), lineLayout(1))
	require.NoError(t, err)
	r := NewRunner(w, nil, nil, time.Millisecond)

	done := make(chan struct{})
	go func() {
		r.Start(context.Background())
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	r.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runner did not stop")
	}

	assert.NotPanics(t, r.Stop, "repeated Stop must be a no-op")
}

func TestRunnerPauseHaltsTicking(t *testing.T) {
	w, err := NewWorldFromLayout(testConfig(0), lineLayout(1))
	require.NoError(t, err)
	r := NewRunner(w, nil, nil, time.Millisecond)

	done := make(chan struct{})
	go func() {
		r.Start(context.Background())
		close(done)
	}()

	r.Pause()
	frozen := w.CurrentTick()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, frozen, w.CurrentTick(), "no ticks while paused")

	r.Resume()
	time.Sleep(20 * time.Millisecond)
	assert.Greater(t, w.CurrentTick(), frozen, "ticking resumes")

	r.Stop()
	<-done
}
