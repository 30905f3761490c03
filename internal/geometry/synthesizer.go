// Package geometry builds the spatial graph the simulation runs on: node
// positions in the unit square plus a connected, symmetric, integer-weighted
// adjacency. Synthesis is fully deterministic for a given parameter set.
package geometry

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/dispatchsim/dispatchsim/internal/models"
)

const (
	densityGridSize = 32
	thinningRatio   = 0.35
	longRangeRatio  = 0.10
)

type Params struct {
	NodeCount    int
	EdgeCount    int
	Seed         int64
	Distribution string // models.DistributionUniform or models.DistributionMixture
}

type Edge struct {
	U      int `json:"u"`
	V      int `json:"v"`
	Weight int `json:"weight"`
}

// Layout is the synthesized graph. Weights is a full symmetric matrix
// where 0 means no edge; Edges lists each undirected edge once with U < V.
type Layout struct {
	Positions []models.Position
	Weights   [][]int
	Edges     []Edge
}

// Weight returns the edge weight between u and v, 0 if not adjacent.
func (l *Layout) Weight(u, v int) int {
	return l.Weights[u][v]
}

func (l *Layout) NodeCount() int { return len(l.Positions) }

// Synthesize builds a connected layout from the given parameters. Identical
// parameters always produce identical output. An edge target below the
// connectivity minimum is repaired, never rejected.
func Synthesize(p Params) (*Layout, error) {
	if p.NodeCount < 0 {
		return nil, fmt.Errorf("%w: node count must not be negative, got %d", models.ErrValidation, p.NodeCount)
	}

	rng := rand.New(rand.NewSource(p.Seed))

	positions := samplePositions(rng, p)

	var edges []edgePair
	if p.NodeCount >= 2 && p.EdgeCount > 0 {
		edges = nearestNeighbourEdges(rng, positions)
		edges = thinEdges(rng, edges)
		edges = addLongRangeEdges(rng, edges, p.NodeCount)
	}
	if p.NodeCount >= 2 {
		edges = repairConnectivity(edges, positions)
	}

	return materialize(positions, edges), nil
}

type edgePair struct {
	u, v int // u < v
}

func samplePositions(rng *rand.Rand, p Params) []models.Position {
	positions := make([]models.Position, p.NodeCount)
	if p.Distribution == models.DistributionMixture && p.NodeCount > 0 {
		field := buildDensityField(rng, p.NodeCount)
		for i := range positions {
			positions[i] = field.sample(rng)
		}
		return positions
	}
	for i := range positions {
		positions[i] = models.Position{X: rng.Float64(), Y: rng.Float64()}
	}
	return positions
}

// densityField is a normalized discretized density over the unit square,
// built as a sum of randomly parameterized Gaussian blobs.
type densityField struct {
	cumulative []float64 // row-major CDF over densityGridSize² cells
}

func buildDensityField(rng *rand.Rand, nodeCount int) *densityField {
	blobCount := nodeCount/10 + 2
	type blob struct {
		cx, cy, sigma, weight float64
	}
	blobs := make([]blob, blobCount)
	for i := range blobs {
		blobs[i] = blob{
			cx:     rng.Float64(),
			cy:     rng.Float64(),
			sigma:  0.05 + 0.15*rng.Float64(),
			weight: 0.5 + rng.Float64(),
		}
	}

	cells := make([]float64, densityGridSize*densityGridSize)
	var total float64
	for row := 0; row < densityGridSize; row++ {
		cy := (float64(row) + 0.5) / densityGridSize
		for col := 0; col < densityGridSize; col++ {
			cx := (float64(col) + 0.5) / densityGridSize
			var d float64
			for _, b := range blobs {
				dx, dy := cx-b.cx, cy-b.cy
				d += b.weight * math.Exp(-(dx*dx+dy*dy)/(2*b.sigma*b.sigma))
			}
			cells[row*densityGridSize+col] = d
			total += d
		}
	}

	cumulative := make([]float64, len(cells))
	var running float64
	for i, d := range cells {
		running += d / total
		cumulative[i] = running
	}
	// guard against float drift at the tail
	cumulative[len(cumulative)-1] = 1.0

	return &densityField{cumulative: cumulative}
}

// sample picks a cell proportionally to density and jitters within it.
func (f *densityField) sample(rng *rand.Rand) models.Position {
	r := rng.Float64()
	idx := sort.SearchFloat64s(f.cumulative, r)
	if idx >= len(f.cumulative) {
		idx = len(f.cumulative) - 1
	}
	row := idx / densityGridSize
	col := idx % densityGridSize
	return models.Position{
		X: (float64(col) + rng.Float64()) / densityGridSize,
		Y: (float64(row) + rng.Float64()) / densityGridSize,
	}
}

func euclidean(a, b models.Position) float64 {
	dx, dy := a.X-b.X, a.Y-b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// nearestNeighbourEdges connects every node to a random number of its
// nearest neighbours, k ∈ [2, ⌈√N⌉+1], deduplicated as undirected pairs.
func nearestNeighbourEdges(rng *rand.Rand, positions []models.Position) []edgePair {
	n := len(positions)
	kMax := int(math.Ceil(math.Sqrt(float64(n)))) + 1

	var edges []edgePair
	seen := make(map[edgePair]bool)

	for i := 0; i < n; i++ {
		k := 2
		if kMax > 2 {
			k += rng.Intn(kMax - 1) // uniform over [2, kMax]
		}
		if k > n-1 {
			k = n - 1
		}

		neighbours := make([]int, 0, n-1)
		for j := 0; j < n; j++ {
			if j != i {
				neighbours = append(neighbours, j)
			}
		}
		sort.Slice(neighbours, func(a, b int) bool {
			da := euclidean(positions[i], positions[neighbours[a]])
			db := euclidean(positions[i], positions[neighbours[b]])
			if da != db {
				return da < db
			}
			return neighbours[a] < neighbours[b]
		})

		for _, j := range neighbours[:k] {
			e := orderedPair(i, j)
			if !seen[e] {
				seen[e] = true
				edges = append(edges, e)
			}
		}
	}
	return edges
}

func orderedPair(a, b int) edgePair {
	if a < b {
		return edgePair{a, b}
	}
	return edgePair{b, a}
}

// thinEdges discards a fixed share of the candidate set, sampled
// uniformly without replacement.
func thinEdges(rng *rand.Rand, edges []edgePair) []edgePair {
	drop := int(float64(len(edges)) * thinningRatio)
	if drop == 0 {
		return edges
	}
	dropped := make(map[int]bool, drop)
	for _, idx := range rng.Perm(len(edges))[:drop] {
		dropped[idx] = true
	}
	kept := make([]edgePair, 0, len(edges)-drop)
	for i, e := range edges {
		if !dropped[i] {
			kept = append(kept, e)
		}
	}
	return kept
}

// addLongRangeEdges adds random node pairs equal to a share of the
// current edge count, skipping self-loops and existing edges.
func addLongRangeEdges(rng *rand.Rand, edges []edgePair, n int) []edgePair {
	seen := make(map[edgePair]bool, len(edges))
	for _, e := range edges {
		seen[e] = true
	}
	want := int(float64(len(edges)) * longRangeRatio)
	// a dense graph can run out of fresh pairs; bound the attempts
	for attempts := 0; want > 0 && attempts < 20*(want+1); attempts++ {
		u, v := rng.Intn(n), rng.Intn(n)
		if u == v {
			continue
		}
		e := orderedPair(u, v)
		if seen[e] {
			continue
		}
		seen[e] = true
		edges = append(edges, e)
		want--
	}
	return edges
}

// repairConnectivity merges components until one remains, always joining
// the two lowest-indexed components with the cheapest cross edge.
func repairConnectivity(edges []edgePair, positions []models.Position) []edgePair {
	n := len(positions)
	for {
		comps := components(edges, n)
		if len(comps) <= 1 {
			return edges
		}
		a, b := comps[0], comps[1]
		best := edgePair{-1, -1}
		bestDist := math.Inf(1)
		for _, u := range a {
			for _, v := range b {
				if d := euclidean(positions[u], positions[v]); d < bestDist {
					bestDist = d
					best = orderedPair(u, v)
				}
			}
		}
		edges = append(edges, best)
	}
}

// components returns the connected components as sorted node lists,
// ordered by their lowest member.
func components(edges []edgePair, n int) [][]int {
	adj := make([][]int, n)
	for _, e := range edges {
		adj[e.u] = append(adj[e.u], e.v)
		adj[e.v] = append(adj[e.v], e.u)
	}
	visited := make([]bool, n)
	var comps [][]int
	for start := 0; start < n; start++ {
		if visited[start] {
			continue
		}
		var comp []int
		queue := []int{start}
		visited[start] = true
		for len(queue) > 0 {
			u := queue[0]
			queue = queue[1:]
			comp = append(comp, u)
			for _, v := range adj[u] {
				if !visited[v] {
					visited[v] = true
					queue = append(queue, v)
				}
			}
		}
		sort.Ints(comp)
		comps = append(comps, comp)
	}
	return comps
}

func materialize(positions []models.Position, pairs []edgePair) *Layout {
	n := len(positions)
	weights := make([][]int, n)
	for i := range weights {
		weights[i] = make([]int, n)
	}
	edges := make([]Edge, 0, len(pairs))
	for _, e := range pairs {
		w := int(math.Round(euclidean(positions[e.u], positions[e.v]) * models.WeightScale))
		if w < 1 {
			w = 1
		}
		weights[e.u][e.v] = w
		weights[e.v][e.u] = w
		edges = append(edges, Edge{U: e.u, V: e.v, Weight: w})
	}
	return &Layout{Positions: positions, Weights: weights, Edges: edges}
}
