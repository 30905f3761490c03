package models

// EdgeView is one undirected edge of the rendered graph.
type EdgeView struct {
	U      int `json:"u"`
	V      int `json:"v"`
	Weight int `json:"weight"`
}

// DriverView augments the raw driver record with derived fields for
// animation: the committed hop, the current target node and how far
// along the hop the driver is.
type DriverView struct {
	ID       int          `json:"id"`
	Name     string       `json:"name"`
	Node     int          `json:"node"`
	PrevNode int          `json:"prev_node"`
	Delay    int          `json:"delay"`
	Status   DriverStatus `json:"status"`
	Order    *int         `json:"order,omitempty"`
	Target   *int         `json:"target,omitempty"`
	Progress float64      `json:"progress"`
}

// OrderEvent records one order lifecycle transition for the event
// stream: created, picked up or delivered.
type OrderEvent struct {
	RunID   string      `json:"run_id"`
	Tick    int         `json:"tick"`
	OrderID int         `json:"order_id"`
	Status  OrderStatus `json:"status"`
}

// Stats are cumulative per-world delivery tallies.
type Stats struct {
	Delivered       int     `json:"delivered"`
	AvgDeliveryTime float64 `json:"avg_delivery_time"`
}

// Snapshot is the consistent point-in-time view consumed by rendering
// and transport layers. Distance and next-hop matrices are deliberately
// excluded; path questions go through the on-demand path query instead.
type Snapshot struct {
	RunID   string       `json:"run_id"`
	Tick    int          `json:"tick"`
	Nodes   []Node       `json:"nodes"`
	Edges   []EdgeView   `json:"edges"`
	Drivers []DriverView `json:"drivers"`
	Orders  []Order      `json:"orders"`
	Stats   Stats        `json:"stats"`
}
