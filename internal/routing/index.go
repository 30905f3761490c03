// Package routing precomputes all-pairs shortest paths for the immutable
// simulation graph: a distance matrix and a first-hop matrix, one Dijkstra
// run per source node. The graph never changes after construction, so the
// index is built exactly once.
package routing

import (
	"container/heap"
	"math"
)

// Unreachable is the next-hop sentinel for node pairs with no path.
const Unreachable = -1

// Index holds the precomputed matrices. Distance is +Inf for unreachable
// pairs; NextHop is the first node on a shortest path, the source itself
// on the diagonal, and Unreachable where no path exists. Ties between
// equal-length paths are broken by Dijkstra settling order, which is
// deterministic for a fixed adjacency but not claimed to be unique.
type Index struct {
	n        int
	distance [][]float64
	nextHop  [][]int
}

// Build computes the index from a symmetric weight matrix where 0 means
// no edge and positive integers are travel times in ticks.
func Build(weights [][]int) *Index {
	n := len(weights)
	ix := &Index{
		n:        n,
		distance: make([][]float64, n),
		nextHop:  make([][]int, n),
	}
	for s := 0; s < n; s++ {
		ix.distance[s], ix.nextHop[s] = dijkstra(weights, s)
	}
	return ix
}

func (ix *Index) NodeCount() int { return ix.n }

// Distance returns the shortest-path length from i to j in weight units,
// +Inf if j is unreachable from i.
func (ix *Index) Distance(i, j int) float64 {
	return ix.distance[i][j]
}

// NextHop returns the first node to visit on a shortest path from i to j.
func (ix *Index) NextHop(i, j int) int {
	return ix.nextHop[i][j]
}

// Path walks the first-hop matrix from one node to another and returns
// the full node sequence including both endpoints. Returns nil if the
// target is unreachable.
func (ix *Index) Path(from, to int) []int {
	if ix.nextHop[from][to] == Unreachable {
		return nil
	}
	path := []int{from}
	for from != to {
		from = ix.nextHop[from][to]
		path = append(path, from)
	}
	return path
}

type queueItem struct {
	node int
	dist float64
}

type priorityQueue []queueItem

func (pq priorityQueue) Len() int            { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool  { return pq[i].dist < pq[j].dist }
func (pq priorityQueue) Swap(i, j int)       { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x interface{}) { *pq = append(*pq, x.(queueItem)) }
func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	item := old[len(old)-1]
	*pq = old[:len(old)-1]
	return item
}

// dijkstra computes single-source distances plus the first hop of a
// shortest path toward every settled node. The first hop of a neighbour
// of the source is the neighbour itself; every other node inherits the
// first hop of the node it was relaxed through.
func dijkstra(weights [][]int, source int) ([]float64, []int) {
	n := len(weights)
	dist := make([]float64, n)
	first := make([]int, n)
	settled := make([]bool, n)
	for i := range dist {
		dist[i] = math.Inf(1)
		first[i] = Unreachable
	}
	dist[source] = 0
	first[source] = source

	pq := &priorityQueue{{node: source, dist: 0}}
	for pq.Len() > 0 {
		item := heap.Pop(pq).(queueItem)
		u := item.node
		if settled[u] {
			continue
		}
		settled[u] = true
		for v := 0; v < n; v++ {
			w := weights[u][v]
			if w == 0 || settled[v] {
				continue
			}
			if d := dist[u] + float64(w); d < dist[v] {
				dist[v] = d
				if u == source {
					first[v] = v
				} else {
					first[v] = first[u]
				}
				heap.Push(pq, queueItem{node: v, dist: d})
			}
		}
	}
	return dist, first
}
