package simulator

import (
	"errors"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/dispatchsim/dispatchsim/internal/models"
)

// AssignmentPolicy proposes order-to-driver assignments between ticks.
// Policies go through the same Assign path as manual input, so a policy
// can never do anything a human operator could not.
type AssignmentPolicy interface {
	Step(w *World)
}

// GreedyPolicy assigns each unassigned pending order to the idle driver
// with the shortest precomputed distance to its pickup node. It is the
// reference baseline for external optimizers.
type GreedyPolicy struct{}

func (GreedyPolicy) Step(w *World) {
	idle := w.IdleDrivers()
	if len(idle) == 0 {
		return
	}
	taken := make(map[int]bool, len(idle))

	for _, order := range w.UnassignedPending() {
		best := -1
		bestDist := math.Inf(1)
		for _, d := range idle {
			if taken[d.ID] {
				continue
			}
			dist, err := w.Distance(d.Node, order.Pickup)
			if err != nil {
				continue
			}
			if dist < bestDist {
				bestDist = dist
				best = d.ID
			}
		}
		if best < 0 {
			return // every idle driver is spoken for
		}
		if err := w.Assign(order.ID, best); err != nil {
			// a manual assignment may have slipped in between reads
			if !errors.Is(err, models.ErrConflict) {
				logrus.WithError(err).Warn("greedy assignment failed")
			}
			continue
		}
		taken[best] = true
	}
}
