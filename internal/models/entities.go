package models

// Position is a point in the simulated [0,1]² area.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a fixed location in the simulated area. Immutable after
// construction; the pending-order counter lives on the World, not here.
type Node struct {
	ID       int      `json:"id"`
	Position Position `json:"position"`
	Rate     float64  `json:"rate"` // order arrival probability per tick
}

// NoOrder marks a driver without an active order.
const NoOrder = -1

// Driver is a mobile agent fulfilling at most one order at a time.
// Order is an index into the owning World's order list, NoOrder when
// idle. Node updates to the hop destination as soon as a hop is
// committed; PrevNode keeps the node it departed so renderers can
// interpolate while Delay runs down.
type Driver struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Node     int    `json:"node"`
	PrevNode int    `json:"prev_node"`
	Delay    int    `json:"delay"`
	Order    int    `json:"order"`
}

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPickedUp  OrderStatus = "picked_up"
	OrderDelivered OrderStatus = "delivered"
)

// NeverDelivered marks an order that has not reached its dropoff yet.
const NeverDelivered = -1

// Order is a pickup→dropoff delivery request. Orders are append-only:
// delivered orders stay in the World's history.
type Order struct {
	ID            int         `json:"id"`
	Pickup        int         `json:"pickup"`
	Dropoff       int         `json:"dropoff"`
	CreatedTick   int         `json:"created_tick"`
	DeliveredTick int         `json:"delivered_tick"`
	Status        OrderStatus `json:"status"`
}

// DriverStatus is derived from (order, order.status), never stored.
type DriverStatus string

const (
	DriverIdle      DriverStatus = "idle"
	DriverToPickup  DriverStatus = "en_route_to_pickup"
	DriverToDropoff DriverStatus = "en_route_to_dropoff"
)
