package geometry

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchsim/dispatchsim/internal/models"
)

// componentCount runs a BFS over the materialized edges.
func componentCount(l *Layout) int {
	n := l.NodeCount()
	if n == 0 {
		return 0
	}
	adj := make([][]int, n)
	for _, e := range l.Edges {
		adj[e.U] = append(adj[e.U], e.V)
		adj[e.V] = append(adj[e.V], e.U)
	}
	visited := make([]bool, n)
	count := 0
	for start := 0; start < n; start++ {
		if visited[start] {
			continue
		}
		count++
		queue := []int{start}
		visited[start] = true
		for len(queue) > 0 {
			u := queue[0]
			queue = queue[1:]
			for _, v := range adj[u] {
				if !visited[v] {
					visited[v] = true
					queue = append(queue, v)
				}
			}
		}
	}
	return count
}

func TestSynthesizeProducesConnectedGraph(t *testing.T) {
	cases := []Params{
		{NodeCount: 2, EdgeCount: 1, Seed: 1, Distribution: models.DistributionUniform},
		{NodeCount: 10, EdgeCount: 15, Seed: 42, Distribution: models.DistributionUniform},
		{NodeCount: 30, EdgeCount: 60, Seed: 7, Distribution: models.DistributionMixture},
		{NodeCount: 50, EdgeCount: 5, Seed: 99, Distribution: models.DistributionUniform}, // target below connectivity minimum
		{NodeCount: 25, EdgeCount: 0, Seed: 3, Distribution: models.DistributionMixture},  // repair supplies all edges
	}
	for _, p := range cases {
		t.Run(fmt.Sprintf("n%d_e%d_seed%d_%s", p.NodeCount, p.EdgeCount, p.Seed, p.Distribution), func(t *testing.T) {
			layout, err := Synthesize(p)
			require.NoError(t, err)
			require.Equal(t, p.NodeCount, layout.NodeCount())
			assert.Equal(t, 1, componentCount(layout), "graph must be a single connected component")
		})
	}
}

func TestSynthesizeDeterminism(t *testing.T) {
	p := Params{NodeCount: 40, EdgeCount: 80, Seed: 1234, Distribution: models.DistributionMixture}

	a, err := Synthesize(p)
	require.NoError(t, err)
	b, err := Synthesize(p)
	require.NoError(t, err)

	assert.Equal(t, a.Positions, b.Positions)
	assert.Equal(t, a.Edges, b.Edges)
	assert.Equal(t, a.Weights, b.Weights)
}

func TestSynthesizeDifferentSeedsDiffer(t *testing.T) {
	a, err := Synthesize(Params{NodeCount: 20, EdgeCount: 30, Seed: 1, Distribution: models.DistributionUniform})
	require.NoError(t, err)
	b, err := Synthesize(Params{NodeCount: 20, EdgeCount: 30, Seed: 2, Distribution: models.DistributionUniform})
	require.NoError(t, err)

	assert.NotEqual(t, a.Positions, b.Positions)
}

func TestSynthesizeWeightMatrix(t *testing.T) {
	layout, err := Synthesize(Params{NodeCount: 20, EdgeCount: 40, Seed: 5, Distribution: models.DistributionUniform})
	require.NoError(t, err)

	n := layout.NodeCount()
	for i := 0; i < n; i++ {
		assert.Zero(t, layout.Weights[i][i], "no self loops")
		for j := 0; j < n; j++ {
			assert.Equal(t, layout.Weights[i][j], layout.Weights[j][i], "adjacency must be symmetric")
			if layout.Weights[i][j] != 0 {
				assert.GreaterOrEqual(t, layout.Weights[i][j], 1)
			}
		}
	}
	for _, e := range layout.Edges {
		assert.Less(t, e.U, e.V, "edges listed once with U < V")
		assert.Equal(t, e.Weight, layout.Weights[e.U][e.V])
		assert.GreaterOrEqual(t, e.Weight, 1, "weights are at least one tick")
	}
}

func TestSynthesizePositionsInUnitSquare(t *testing.T) {
	for _, dist := range []string{models.DistributionUniform, models.DistributionMixture} {
		layout, err := Synthesize(Params{NodeCount: 60, EdgeCount: 100, Seed: 11, Distribution: dist})
		require.NoError(t, err)
		for _, pos := range layout.Positions {
			assert.GreaterOrEqual(t, pos.X, 0.0)
			assert.Less(t, pos.X, 1.0+1e-9)
			assert.GreaterOrEqual(t, pos.Y, 0.0)
			assert.Less(t, pos.Y, 1.0+1e-9)
		}
	}
}

func TestSynthesizeSmallWorlds(t *testing.T) {
	empty, err := Synthesize(Params{NodeCount: 0, EdgeCount: 10, Seed: 1, Distribution: models.DistributionUniform})
	require.NoError(t, err)
	assert.Zero(t, empty.NodeCount())
	assert.Empty(t, empty.Edges)

	single, err := Synthesize(Params{NodeCount: 1, EdgeCount: 10, Seed: 1, Distribution: models.DistributionUniform})
	require.NoError(t, err)
	assert.Equal(t, 1, single.NodeCount())
	assert.Empty(t, single.Edges)
}

func TestSynthesizeRejectsNegativeNodeCount(t *testing.T) {
	_, err := Synthesize(Params{NodeCount: -1, EdgeCount: 10, Seed: 1, Distribution: models.DistributionUniform})
	require.ErrorIs(t, err, models.ErrValidation)
}
