package simulator

import (
	"github.com/sirupsen/logrus"

	"github.com/dispatchsim/dispatchsim/internal/models"
	"github.com/dispatchsim/dispatchsim/internal/routing"
)

// stepDriver advances one driver by one tick.
//
// A hop over an edge of weight w costs exactly w ticks: the tick that
// commits the hop plus w-1 delay ticks. The driver's node moves to the
// hop destination immediately, but pickup and delivery only commit on
// the tick the remaining delay reaches zero, which keeps total delivery
// time equal to the summed edge weights of the precomputed path.
func (w *World) stepDriver(i int) {
	d := &w.drivers[i]

	if d.Delay > 0 {
		d.Delay--
		if d.Delay == 0 {
			w.resolveArrival(d)
		}
		return
	}

	if d.Order == models.NoOrder {
		return
	}

	// covers a driver assigned an order while standing at its pickup
	w.resolveArrival(d)
	if d.Order == models.NoOrder {
		return
	}

	order := &w.orders[d.Order]
	target := order.Pickup
	if order.Status == models.OrderPickedUp {
		target = order.Dropoff
	}
	if d.Node == target {
		return
	}

	next := w.index.NextHop(d.Node, target)
	if next == routing.Unreachable || next == d.Node {
		// the connectivity invariant makes this unreachable in a
		// correctly constructed world; hold position rather than abort
		logrus.WithFields(logrus.Fields{
			"driver": d.ID,
			"node":   d.Node,
			"target": target,
		}).Error("invariant violation: no next hop toward target")
		return
	}

	d.PrevNode = d.Node
	d.Delay = w.layout.Weight(d.Node, next) - 1
	d.Node = next
	if d.Delay == 0 {
		w.resolveArrival(d)
	}
}

// resolveArrival applies the state transitions due at the driver's
// current node: picking up a waiting order or delivering a carried one.
// Status only ever moves forward: pending → picked up → delivered.
func (w *World) resolveArrival(d *models.Driver) {
	if d.Order == models.NoOrder {
		return
	}
	order := &w.orders[d.Order]

	switch {
	case order.Status == models.OrderPending && d.Node == order.Pickup:
		order.Status = models.OrderPickedUp
		w.pending[order.Pickup]--
		w.recordEvent(order.ID, models.OrderPickedUp, w.tick+1)
	case order.Status == models.OrderPickedUp && d.Node == order.Dropoff:
		order.Status = models.OrderDelivered
		order.DeliveredTick = w.tick + 1 // this tick completes after the counter increments
		w.delivered++
		w.deliveryTicks += order.DeliveredTick - order.CreatedTick
		d.Order = models.NoOrder
		w.recordEvent(order.ID, models.OrderDelivered, order.DeliveredTick)
	}
}
