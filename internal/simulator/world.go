// Package simulator owns the mutable simulation state: the world of nodes,
// drivers and orders advancing tick by tick over an immutable spatial graph.
//
// Every operation on a World — Tick, Assign, snapshot and observation reads —
// is serialized under one mutex, so a caller never observes a half-applied
// tick. Worlds are fully independent: ids are allocated per world and no
// state is shared between instances.
package simulator

import (
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/lucsky/cuid"
	"github.com/sirupsen/logrus"

	"github.com/dispatchsim/dispatchsim/internal/factories"
	"github.com/dispatchsim/dispatchsim/internal/geometry"
	"github.com/dispatchsim/dispatchsim/internal/models"
	"github.com/dispatchsim/dispatchsim/internal/routing"
)

type World struct {
	mu sync.Mutex

	cfg    *models.Config
	runID  string
	layout *geometry.Layout
	index  *routing.Index

	nodes   []models.Node
	drivers []models.Driver
	orders  []models.Order
	pending []int // per-node count of not-yet-picked-up orders
	events  []models.OrderEvent

	tick        int
	nextOrderID int

	delivered     int
	deliveryTicks int

	rng *rand.Rand // order arrivals
}

// NewWorld synthesizes the graph, builds the shortest-path index and
// populates the initial state. Construction is the expensive part of the
// lifecycle and happens before the world is ever shared, so it needs no
// locking; recreating a simulation means building a fresh World.
func NewWorld(cfg *models.Config) (*World, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	layout, err := geometry.Synthesize(geometry.Params{
		NodeCount:    cfg.NumNodes,
		EdgeCount:    cfg.NumEdges,
		Seed:         cfg.Seed,
		Distribution: cfg.Distribution,
	})
	if err != nil {
		return nil, fmt.Errorf("synthesizing geometry: %w", err)
	}
	return NewWorldFromLayout(cfg, layout)
}

// NewWorldFromLayout builds a world over a pre-built layout. Used for
// externally supplied topologies and tests; NewWorld is the normal path.
func NewWorldFromLayout(cfg *models.Config, layout *geometry.Layout) (*World, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	n := layout.NodeCount()

	w := &World{
		cfg:     cfg,
		runID:   cuid.New(),
		layout:  layout,
		index:   routing.Build(layout.Weights),
		nodes:   make([]models.Node, n),
		pending: make([]int, n),
		rng:     rand.New(rand.NewSource(derivedSeed(cfg.Seed, subsystemArrivals))),
	}

	rateRng := rand.New(rand.NewSource(derivedSeed(cfg.Seed, subsystemRates)))
	for i := range w.nodes {
		w.nodes[i] = models.Node{
			ID:       i,
			Position: layout.Positions[i],
			Rate:     cfg.OrderRateMin + rateRng.Float64()*(cfg.OrderRateMax-cfg.OrderRateMin),
		}
	}

	// drivers are placed round-robin over the nodes; a world without
	// nodes has nowhere to put them
	if n > 0 {
		driverFactory := factories.NewDriverFactory(derivedSeed(cfg.Seed, subsystemNames))
		w.drivers = make([]models.Driver, cfg.NumDrivers)
		for i := range w.drivers {
			w.drivers[i] = driverFactory.CreateDriver(i, i%n)
		}
	} else if cfg.NumDrivers > 0 {
		logrus.Warnf("world has no nodes, dropping %d configured drivers", cfg.NumDrivers)
	}

	return w, nil
}

func (w *World) RunID() string { return w.runID }

// CurrentTick returns the number of completed ticks.
func (w *World) CurrentTick() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tick
}

// Tick advances the world one discrete step: stochastic order arrivals,
// then every driver's lifecycle step, then the tick counter. Atomic under
// the world mutex.
func (w *World) Tick() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.spawnOrders()
	for i := range w.drivers {
		w.stepDriver(i)
	}
	w.tick++
}

// spawnOrders draws one uniform value per node each tick. A node below
// its arrival rate with fewer than MaxPendingPerNode waiting orders gets
// a new order with a uniformly random distinct dropoff.
func (w *World) spawnOrders() {
	if len(w.nodes) < 2 {
		return
	}
	for i := range w.nodes {
		r := w.rng.Float64()
		if r >= w.nodes[i].Rate || w.pending[i] >= models.MaxPendingPerNode {
			continue
		}
		dropoff := w.rng.Intn(len(w.nodes) - 1)
		if dropoff >= i {
			dropoff++
		}
		w.createOrder(i, dropoff)
	}
}

func (w *World) createOrder(pickup, dropoff int) int {
	id := w.nextOrderID
	w.nextOrderID++
	w.orders = append(w.orders, models.Order{
		ID:            id,
		Pickup:        pickup,
		Dropoff:       dropoff,
		CreatedTick:   w.tick,
		DeliveredTick: models.NeverDelivered,
		Status:        models.OrderPending,
	})
	w.pending[pickup]++
	w.recordEvent(id, models.OrderPending, w.tick)
	return id
}

func (w *World) recordEvent(orderID int, status models.OrderStatus, tick int) {
	w.events = append(w.events, models.OrderEvent{
		RunID:   w.runID,
		Tick:    tick,
		OrderID: orderID,
		Status:  status,
	})
}

// DrainEvents returns the order lifecycle events accumulated since the
// last drain and clears the buffer.
func (w *World) DrainEvents() []models.OrderEvent {
	w.mu.Lock()
	defer w.mu.Unlock()
	events := w.events
	w.events = nil
	return events
}

// InjectOrder creates an order outside the stochastic trigger, subject to
// the same invariants: distinct valid endpoints and the per-node pending
// cap. Returns the new order id.
func (w *World) InjectOrder(pickup, dropoff int) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if pickup < 0 || pickup >= len(w.nodes) || dropoff < 0 || dropoff >= len(w.nodes) {
		return 0, fmt.Errorf("%w: node out of range", models.ErrValidation)
	}
	if pickup == dropoff {
		return 0, fmt.Errorf("%w: pickup and dropoff must differ", models.ErrValidation)
	}
	if w.pending[pickup] >= models.MaxPendingPerNode {
		return 0, fmt.Errorf("%w: node %d already has %d pending orders", models.ErrConflict, pickup, w.pending[pickup])
	}
	return w.createOrder(pickup, dropoff), nil
}

// Assign attaches an order to a driver. This is the sole mutation path
// for assignments, shared by manual input and automated policies, so both
// get identical semantics. The driver does not move until the next Tick.
// On failure nothing is mutated.
func (w *World) Assign(orderID, driverID int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.assignLocked(orderID, driverID)
}

func (w *World) assignLocked(orderID, driverID int) error {
	if orderID < 0 || orderID >= len(w.orders) {
		return fmt.Errorf("%w: order %d", models.ErrNotFound, orderID)
	}
	if driverID < 0 || driverID >= len(w.drivers) {
		return fmt.Errorf("%w: driver %d", models.ErrNotFound, driverID)
	}
	order := &w.orders[orderID]
	driver := &w.drivers[driverID]

	if order.Status == models.OrderDelivered {
		return fmt.Errorf("%w: order %d already delivered", models.ErrConflict, orderID)
	}
	if driver.Order != models.NoOrder {
		return fmt.Errorf("%w: driver %d already has order %d", models.ErrConflict, driverID, driver.Order)
	}
	for i := range w.drivers {
		if w.drivers[i].Order == orderID {
			return fmt.Errorf("%w: order %d already held by driver %d", models.ErrConflict, orderID, i)
		}
	}

	driver.Order = orderID
	return nil
}

// AssignPending resolves the legacy positional addressing form: an index
// into the current pending-order list rather than a stable order id. The
// index is only meaningful at call time — the pending list shifts as
// orders arrive and get picked up, so positions are not stable across
// ticks.
func (w *World) AssignPending(pendingIndex, driverID int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	pending := w.pendingLocked()
	if pendingIndex < 0 || pendingIndex >= len(pending) {
		return fmt.Errorf("%w: pending index %d", models.ErrNotFound, pendingIndex)
	}
	return w.assignLocked(pending[pendingIndex], driverID)
}

// pendingLocked returns the ids of not-yet-picked-up orders in creation
// order. Order ids are issued sequentially, so an id doubles as an index
// into the order list.
func (w *World) pendingLocked() []int {
	var ids []int
	for i := range w.orders {
		if w.orders[i].Status == models.OrderPending {
			ids = append(ids, w.orders[i].ID)
		}
	}
	return ids
}

// PendingOrders returns copies of the not-yet-picked-up orders in
// creation order.
func (w *World) PendingOrders() []models.Order {
	w.mu.Lock()
	defer w.mu.Unlock()

	var out []models.Order
	for _, id := range w.pendingLocked() {
		out = append(out, w.orders[id])
	}
	return out
}

// UnassignedPending returns copies of pending orders no driver holds yet,
// the candidates an assignment policy chooses from.
func (w *World) UnassignedPending() []models.Order {
	w.mu.Lock()
	defer w.mu.Unlock()

	held := make(map[int]bool, len(w.drivers))
	for i := range w.drivers {
		if w.drivers[i].Order != models.NoOrder {
			held[w.drivers[i].Order] = true
		}
	}
	var out []models.Order
	for _, id := range w.pendingLocked() {
		if !held[id] {
			out = append(out, w.orders[id])
		}
	}
	return out
}

// IdleDrivers returns copies of drivers without an active order.
func (w *World) IdleDrivers() []models.Driver {
	w.mu.Lock()
	defer w.mu.Unlock()

	var out []models.Driver
	for i := range w.drivers {
		if w.drivers[i].Order == models.NoOrder {
			out = append(out, w.drivers[i])
		}
	}
	return out
}

// Distance returns the precomputed shortest-path distance between two
// nodes in weight units.
func (w *World) Distance(from, to int) (float64, error) {
	if from < 0 || from >= len(w.nodes) || to < 0 || to >= len(w.nodes) {
		return 0, fmt.Errorf("%w: node out of range", models.ErrNotFound)
	}
	return w.index.Distance(from, to), nil
}

// ComputePath answers the on-demand path query: the node sequence a
// driver would follow from its current node to the target, derived by
// walking the first-hop matrix.
func (w *World) ComputePath(driverID, target int) ([]int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if driverID < 0 || driverID >= len(w.drivers) {
		return nil, fmt.Errorf("%w: driver %d", models.ErrNotFound, driverID)
	}
	if target < 0 || target >= len(w.nodes) {
		return nil, fmt.Errorf("%w: node %d", models.ErrNotFound, target)
	}
	path := w.index.Path(w.drivers[driverID].Node, target)
	if path == nil {
		return nil, fmt.Errorf("%w: no path from node %d to node %d", models.ErrNotFound, w.drivers[driverID].Node, target)
	}
	return path, nil
}

// Snapshot captures a consistent point-in-time view for rendering and
// transport. The matrices never travel with it.
func (w *World) Snapshot() models.Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	snap := models.Snapshot{
		RunID:   w.runID,
		Tick:    w.tick,
		Nodes:   append([]models.Node(nil), w.nodes...),
		Orders:  append([]models.Order(nil), w.orders...),
		Drivers: make([]models.DriverView, len(w.drivers)),
		Edges:   make([]models.EdgeView, 0, len(w.layout.Edges)),
	}
	for _, e := range w.layout.Edges {
		snap.Edges = append(snap.Edges, models.EdgeView{U: e.U, V: e.V, Weight: e.Weight})
	}
	for i := range w.drivers {
		snap.Drivers[i] = w.driverView(i)
	}
	snap.Stats = models.Stats{Delivered: w.delivered}
	if w.delivered > 0 {
		snap.Stats.AvgDeliveryTime = float64(w.deliveryTicks) / float64(w.delivered)
	}
	return snap
}

func (w *World) driverView(i int) models.DriverView {
	d := w.drivers[i]
	view := models.DriverView{
		ID:       d.ID,
		Name:     d.Name,
		Node:     d.Node,
		PrevNode: d.PrevNode,
		Delay:    d.Delay,
		Status:   models.DriverIdle,
		Progress: 1.0,
	}
	if d.Delay > 0 {
		// mid-hop: interpolate over the committed edge
		if weight := w.layout.Weight(d.PrevNode, d.Node); weight > 0 {
			view.Progress = float64(weight-d.Delay) / float64(weight)
		}
	}
	if d.Order == models.NoOrder {
		return view
	}
	order := w.orders[d.Order]
	orderID := order.ID
	view.Order = &orderID
	target := order.Pickup
	view.Status = models.DriverToPickup
	if order.Status == models.OrderPickedUp {
		target = order.Dropoff
		view.Status = models.DriverToDropoff
	}
	view.Target = &target
	return view
}

// History returns a copy of the full append-only order list. The list
// grows without bound by design; long-running deployments archive it via
// the parquet/postgres sinks and recreate the world.
func (w *World) History() []models.Order {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]models.Order(nil), w.orders...)
}

// Stats returns the cumulative delivery tallies.
func (w *World) Stats() models.Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := models.Stats{Delivered: w.delivered}
	if w.delivered > 0 {
		s.AvgDeliveryTime = float64(w.deliveryTicks) / float64(w.delivered)
	}
	return s
}

// Fixed normalization constants keep the observation layout stable
// without scanning for true maxima each tick.
const (
	delayNorm    = 100.0
	createdNorm  = 10000.0
	waitingNorm  = 100.0
	distanceNorm = 1000.0
)

// Observation exports the flat feature vector consumed by assignment
// optimizers: per-driver features, pending-order features padded to a
// fixed width, then the flattened normalized distance matrix.
func (w *World) Observation() []float64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	n := float64(len(w.nodes))
	obs := make([]float64, 0, len(w.drivers)*5+w.cfg.MaxPendingObs*4+len(w.nodes)*len(w.nodes))

	for i := range w.drivers {
		d := w.drivers[i]
		obs = append(obs, float64(d.Node)/n)
		if d.Order != models.NoOrder {
			order := w.orders[d.Order]
			obs = append(obs, 1.0,
				float64(d.Delay)/delayNorm,
				float64(order.Pickup)/n,
				float64(order.Dropoff)/n)
		} else {
			obs = append(obs, 0, float64(d.Delay)/delayNorm, 0, 0)
		}
	}

	pending := w.pendingLocked()
	for i := 0; i < w.cfg.MaxPendingObs; i++ {
		if i < len(pending) {
			order := w.orders[pending[i]]
			obs = append(obs,
				float64(order.Pickup)/n,
				float64(order.Dropoff)/n,
				float64(order.CreatedTick)/createdNorm,
				float64(w.tick-order.CreatedTick)/waitingNorm)
		} else {
			obs = append(obs, 0, 0, 0, 0)
		}
	}

	for i := range w.nodes {
		for j := range w.nodes {
			d := w.index.Distance(i, j)
			if math.IsInf(d, 1) {
				d = 0
			}
			obs = append(obs, d/distanceNorm)
		}
	}
	return obs
}
