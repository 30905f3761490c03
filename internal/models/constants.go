package models

import "time"

const (
	DistributionUniform = "uniform"
	DistributionMixture = "mixture"

	// MaxPendingPerNode caps how many not-yet-picked-up orders a single
	// node may accumulate before arrivals there are suppressed.
	MaxPendingPerNode = 3

	DefaultOrderRateMin  = 0.01
	DefaultOrderRateMax  = 0.05
	DefaultMaxPendingObs = 10
	DefaultTickInterval  = 100 * time.Millisecond

	// WeightScale converts euclidean distance in the unit square to an
	// integer edge weight in ticks.
	WeightScale = 10.0
)

const (
	TopicSnapshots   = "simulation_snapshots"
	TopicOrderEvents = "order_events"
)
