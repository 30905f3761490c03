package simulator

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dispatchsim/dispatchsim/internal/models"
)

// Runner drives a world at a fixed interval from its own goroutine and
// publishes a snapshot after every tick. Pause and stop are observed
// between ticks only; a tick in progress always completes.
type Runner struct {
	world    *World
	out      OutputDestination
	policy   AssignmentPolicy
	interval time.Duration

	pauseCh  chan bool
	done     chan struct{}
	stopOnce sync.Once
	paused   bool
}

func NewRunner(world *World, out OutputDestination, policy AssignmentPolicy, interval time.Duration) *Runner {
	return &Runner{
		world:    world,
		out:      out,
		policy:   policy,
		interval: interval,
		pauseCh:  make(chan bool),
		done:     make(chan struct{}),
	}
}

// StepOnce applies the policy (if any), advances the world one tick and
// publishes the resulting snapshot. Used by the loop and by fixed-length
// synchronous runs.
func (r *Runner) StepOnce() {
	if r.policy != nil {
		r.policy.Step(r.world)
	}
	r.world.Tick()
	r.publish()
}

// Start runs the tick loop until the context is cancelled or Stop is
// called. It returns once the loop goroutine has exited.
func (r *Runner) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	logrus.WithFields(logrus.Fields{
		"run_id":   r.world.RunID(),
		"interval": r.interval,
	}).Info("simulation loop started")

	for {
		select {
		case <-ctx.Done():
			logrus.Info("simulation loop cancelled")
			return
		case <-r.done:
			logrus.Info("simulation loop stopped")
			return
		case p := <-r.pauseCh:
			r.paused = p
		case <-ticker.C:
			if r.paused {
				continue
			}
			r.StepOnce()
		}
	}
}

// Pause suspends ticking after the current tick completes.
func (r *Runner) Pause() { r.pauseCh <- true }

// Resume continues a paused loop.
func (r *Runner) Resume() { r.pauseCh <- false }

// Stop terminates the loop. Safe to call any number of times.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() { close(r.done) })
}

func (r *Runner) publish() {
	// drain even without a sink so the event buffer cannot grow unbounded
	events := r.world.DrainEvents()
	if r.out == nil {
		return
	}

	snap := r.world.Snapshot()
	msg, err := json.Marshal(snap)
	if err != nil {
		logrus.WithError(err).Error("marshalling snapshot")
		return
	}
	if err := r.out.WriteMessage(models.TopicSnapshots, msg); err != nil {
		logrus.WithError(err).Error("publishing snapshot")
	}

	for _, ev := range events {
		msg, err := json.Marshal(ev)
		if err != nil {
			logrus.WithError(err).Error("marshalling order event")
			continue
		}
		if err := r.out.WriteMessage(models.TopicOrderEvents, msg); err != nil {
			logrus.WithError(err).Error("publishing order event")
		}
	}
}
