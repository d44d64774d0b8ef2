package metabolic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/antimet/pkg/errors"
)

// toyModel builds a four-reaction chain: glucose uptake, transport into the
// cytosol, conversion to pyruvate, and a biomass sink on pyruvate.
func toyModel(t *testing.T) *Model {
	t.Helper()
	m := NewModel("toy")
	mets := []*Metabolite{
		{ID: "glc_e", Compartment: "e", Elements: map[string]int{"C": 6}},
		{ID: "glc_c", Compartment: "c", Elements: map[string]int{"C": 6}},
		{ID: "pyr_c", Compartment: "c", Elements: map[string]int{"C": 3}},
	}
	for _, met := range mets {
		require.NoError(t, m.AddMetabolite(met))
	}
	reactions := []*Reaction{
		{ID: "EX_glc_e", LowerBound: -10, UpperBound: 0,
			Metabolites: map[string]float64{"glc_e": -1}},
		{ID: "GLCt", LowerBound: 0, UpperBound: 10,
			Metabolites: map[string]float64{"glc_e": -1, "glc_c": 1}},
		{ID: "PYK", LowerBound: 0, UpperBound: 10,
			Metabolites: map[string]float64{"glc_c": -1, "pyr_c": 2}},
		{ID: "BIOMASS", LowerBound: 0, UpperBound: 20,
			Metabolites: map[string]float64{"pyr_c": -1}},
	}
	for _, r := range reactions {
		require.NoError(t, m.AddReaction(r))
	}
	m.Objective = "BIOMASS"
	return m
}

func toyReference() map[string]float64 {
	return map[string]float64{"EX_glc_e": -5, "GLCt": 5, "PYK": 5, "BIOMASS": 10}
}

func TestMetabolite_SpeciesID(t *testing.T) {
	met := &Metabolite{ID: "atp_c", Compartment: "c"}
	assert.Equal(t, "atp", met.SpeciesID())

	// No compartment suffix, identifier passes through.
	bare := &Metabolite{ID: "atp", Compartment: ""}
	assert.Equal(t, "atp", bare.SpeciesID())
}

func TestModel_SearchMetabolites(t *testing.T) {
	m := toyModel(t)

	mets, err := m.SearchMetabolites("glc")
	require.NoError(t, err)
	require.Len(t, mets, 2)
	assert.Equal(t, "glc_e", mets[0].ID)
	assert.Equal(t, "glc_c", mets[1].ID)

	_, err = m.SearchMetabolites("unknown")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeSpeciesUnresolved))
}

func TestModel_TopologyHelpers(t *testing.T) {
	m := toyModel(t)

	ex, _ := m.Reaction("EX_glc_e")
	transport, _ := m.Reaction("GLCt")
	pyk, _ := m.Reaction("PYK")

	assert.True(t, ex.IsExchange())
	assert.False(t, transport.IsExchange())
	assert.True(t, m.IsTransport(transport))
	assert.False(t, m.IsTransport(pyk))

	assert.Equal(t, 2, m.Degree("glc_c"))
	assert.Equal(t, 1, m.ProducingDegree("glc_c"))
	assert.Equal(t, 1, m.ConsumingDegree("glc_c"))

	assert.False(t, pyk.Reversibility())
	rev := &Reaction{LowerBound: -5, UpperBound: 5}
	assert.True(t, rev.Reversibility())
	assert.True(t, pyk.Consumes("glc_c"))
	assert.False(t, pyk.Consumes("pyr_c"))
}

func TestTransaction_RestoresBounds(t *testing.T) {
	m := toyModel(t)
	pyk, _ := m.Reaction("PYK")

	tx := Begin(m, nil)
	tx.SetBounds(pyk, 0, 0)
	tx.SetUpperBound(pyk, 2) // second touch must not overwrite the record
	assert.Equal(t, 2.0, pyk.UpperBound)
	tx.Close()

	assert.Equal(t, 0.0, pyk.LowerBound)
	assert.Equal(t, 10.0, pyk.UpperBound)

	// Close is idempotent.
	tx.Close()
	assert.Equal(t, 10.0, pyk.UpperBound)
}

func TestTransaction_RemovesAddedEntities(t *testing.T) {
	m := toyModel(t)
	program := NewConstraintProgram()

	tx := Begin(m, program)
	require.NoError(t, tx.AddReaction(&Reaction{ID: "EX_pyr_e", LowerBound: 0, UpperBound: 1000,
		Metabolites: map[string]float64{"pyr_c": -1}}))
	require.NoError(t, tx.AddVariable(&Variable{Key: ArenaKey{"PYK", "indicator"}, Kind: VarBinary, UB: 1}))
	require.NoError(t, tx.AddConstraint(&Constraint{Key: ArenaKey{"PYK", "ind_u"},
		Terms: []Term{FluxTerm(1, "PYK")}, LB: -Unbounded, UB: 0}))

	_, ok := m.Reaction("EX_pyr_e")
	assert.True(t, ok)

	tx.Close()
	_, ok = m.Reaction("EX_pyr_e")
	assert.False(t, ok)
	_, ok = program.Variable(ArenaKey{"PYK", "indicator"})
	assert.False(t, ok)
	assert.Empty(t, program.Constraints())
}

func TestTransaction_RollbackOnErrorPath(t *testing.T) {
	m := toyModel(t)
	pyk, _ := m.Reaction("PYK")

	func() {
		tx := Begin(m, nil)
		defer tx.Close()
		tx.SetBounds(pyk, 0, 0)
		// Simulated failure: return early without explicit cleanup.
	}()

	assert.Equal(t, 10.0, pyk.UpperBound)
}

func TestConstraintProgram_Deduplication(t *testing.T) {
	p := NewConstraintProgram()
	key := ArenaKey{ReactionID: "PYK", Role: "aux"}

	first := p.EnsureVariable(&Variable{Key: key, UB: 1000})
	second := p.EnsureVariable(&Variable{Key: key, UB: 5})
	assert.Same(t, first, second)
	assert.Len(t, p.Variables(), 1)

	require.NoError(t, p.AddConstraint(&Constraint{Key: key}))
	err := p.AddConstraint(&Constraint{Key: key})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvariant))
}

func TestReferenceSimulator(t *testing.T) {
	m := toyModel(t)
	sim := NewReferenceSimulator(toyReference())
	ctx := context.Background()

	dist, err := sim.Solve(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, 10.0, dist.Objective)
	assert.Equal(t, 5.0, dist.Flux("PYK"))

	// Shutting the upstream reaction down starves pyruvate and zeroes the
	// biomass objective.
	pyk, _ := m.Reaction("PYK")
	tx := Begin(m, nil)
	tx.SetBounds(pyk, 0, 0)
	dist, err = sim.Solve(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, 0.0, dist.Objective)
	tx.Close()

	// After rollback the wild-type solution is back.
	dist, err = sim.Solve(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, 10.0, dist.Objective)
}

func TestReferenceSimulator_Infeasible(t *testing.T) {
	m := toyModel(t)
	pyk, _ := m.Reaction("PYK")
	tx := Begin(m, nil)
	defer tx.Close()
	tx.SetLowerBound(pyk, 15) // above the upper bound

	_, err := NewReferenceSimulator(toyReference()).Solve(context.Background(), m)
	require.Error(t, err)
	assert.True(t, errors.IsInfeasible(err))
}

func TestReferenceSimulator_FluxRange(t *testing.T) {
	m := toyModel(t)
	sim := NewReferenceSimulator(toyReference())

	lo, hi, err := sim.FluxRange(context.Background(), m, "PYK")
	require.NoError(t, err)
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 10.0, hi)

	_, _, err = sim.FluxRange(context.Background(), m, "NOPE")
	assert.Error(t, err)
}
