package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistanceOracleOnUndirectedMapIsSymmetric(t *testing.T) {
	m := NewMap(5, 1)
	for x := 0; x < 4; x++ {
		m.AddEdgeBothWays(Position{x, 0}, Position{x + 1, 0})
	}

	a, b := Position{0, 0}, Position{4, 0}
	oracle := NewDistanceOracle(m, []Position{a, b})
	require.NoError(t, oracle.Precompute(NoDeadline()))

	dab, err1 := oracle.Distance(a, b)
	dba, err2 := oracle.Distance(b, a)
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, dab, dba, "undirected map: distances should be symmetric")
	assert.Equal(t, 4, dab)
}

func TestDistanceOracleOnDirectedMapUsesReversedGraph(t *testing.T) {
	// A one-way corridor 0->1->2: only the reverse graph lets 0 and 1
	// reach endpoint 2; endpoint 0 is unreachable from 1 or 2.
	m := NewMap(3, 1)
	m.AddEdge(Position{0, 0}, Position{1, 0})
	m.AddEdge(Position{1, 0}, Position{2, 0})

	oracle := NewDistanceOracle(m, []Position{{2, 0}})
	require.NoError(t, oracle.Precompute(NoDeadline()))

	d, err := oracle.Distance(Position{0, 0}, Position{2, 0})
	require.NoError(t, err)
	assert.Equal(t, 2, d)

	_, err = oracle.Distance(Position{2, 0}, Position{2, 0})
	assert.NoError(t, err, "an endpoint's distance to itself should be 0, resolvable")
}

func TestDistanceOracleUnreachableFromIsUnsolvableNotTableMiss(t *testing.T) {
	// endpoint 0 is registered but unreachable from 2 in this one-way
	// corridor's reversed graph: this must surface as ErrUnsolvable, a
	// locally-recoverable outcome, never ErrDistanceTableMiss.
	m := NewMap(3, 1)
	m.AddEdge(Position{0, 0}, Position{1, 0})
	m.AddEdge(Position{1, 0}, Position{2, 0})

	oracle := NewDistanceOracle(m, []Position{{0, 0}})
	require.NoError(t, oracle.Precompute(NoDeadline()))

	_, err := oracle.Distance(Position{2, 0}, Position{0, 0})
	assert.ErrorIs(t, err, ErrUnsolvable)
}

func TestDistanceOracleMissOnUnregisteredEndpoint(t *testing.T) {
	m := NewMap(2, 1)
	m.AddEdgeBothWays(Position{0, 0}, Position{1, 0})
	oracle := NewDistanceOracle(m, []Position{{0, 0}})
	require.NoError(t, oracle.Precompute(NoDeadline()))

	_, err := oracle.Distance(Position{1, 0}, Position{1, 0})
	assert.ErrorIs(t, err, ErrDistanceTableMiss, "querying a non-endpoint cell is a wiring defect, never masked")
}
