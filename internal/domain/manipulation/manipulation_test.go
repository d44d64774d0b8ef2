package manipulation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/antimet/internal/domain/metabolic"
	"github.com/turtacn/antimet/pkg/errors"
)

// testModel wires a small network around the species "a": boundary
// exchange, reversible transport, an irreversible consumer, an irreversible
// producer and a reversible isomerization.
func testModel(t *testing.T) *metabolic.Model {
	t.Helper()
	m := metabolic.NewModel("test")
	for _, met := range []*metabolic.Metabolite{
		{ID: "a_e", Compartment: "e", Elements: map[string]int{"C": 3}},
		{ID: "a_c", Compartment: "c", Elements: map[string]int{"C": 3}},
		{ID: "b_c", Compartment: "c", Elements: map[string]int{"C": 3}},
		{ID: "c_c", Compartment: "c", Elements: map[string]int{"C": 3}},
	} {
		require.NoError(t, m.AddMetabolite(met))
	}
	for _, r := range []*metabolic.Reaction{
		{ID: "EX_a_e", LowerBound: -10, UpperBound: 0,
			Metabolites: map[string]float64{"a_e": -1}},
		{ID: "T1", LowerBound: -10, UpperBound: 10,
			Metabolites: map[string]float64{"a_e": -1, "a_c": 1}},
		{ID: "R1", LowerBound: 0, UpperBound: 10,
			Metabolites: map[string]float64{"a_c": -1, "b_c": 1}},
		{ID: "R2", LowerBound: 0, UpperBound: 10,
			Metabolites: map[string]float64{"b_c": -1, "a_c": 1}},
		{ID: "R3", LowerBound: -10, UpperBound: 10,
			Metabolites: map[string]float64{"a_c": -1, "c_c": 1}},
	} {
		require.NoError(t, m.AddReaction(r))
	}
	return m
}

func met(t *testing.T, m *metabolic.Model, id string) *metabolic.Metabolite {
	t.Helper()
	met, ok := m.Metabolite(id)
	require.True(t, ok)
	return met
}

func reaction(t *testing.T, m *metabolic.Model, id string) *metabolic.Reaction {
	t.Helper()
	r, ok := m.Reaction(id)
	require.True(t, ok)
	return r
}

func TestKnockout(t *testing.T) {
	m := testModel(t)
	tx := metabolic.Begin(m, nil)
	defer tx.Close()

	_, err := Knockout(tx, met(t, m, "a_c"), Options{})
	require.NoError(t, err)

	// Reversible reactions are pinned in both directions.
	assert.Equal(t, [2]float64{0, 0}, boundsOf(reaction(t, m, "T1")))
	assert.Equal(t, [2]float64{0, 0}, boundsOf(reaction(t, m, "R3")))
	// The irreversible consumer loses forward capacity.
	assert.Equal(t, [2]float64{0, 0}, boundsOf(reaction(t, m, "R1")))
	// The irreversible producer keeps its bounds.
	assert.Equal(t, [2]float64{0, 10}, boundsOf(reaction(t, m, "R2")))
}

func TestKnockout_RollsBackWithTransaction(t *testing.T) {
	m := testModel(t)
	tx := metabolic.Begin(m, nil)
	_, err := Knockout(tx, met(t, m, "a_c"), Options{})
	require.NoError(t, err)
	tx.Close()

	assert.Equal(t, [2]float64{-10, 10}, boundsOf(reaction(t, m, "T1")))
	assert.Equal(t, [2]float64{0, 10}, boundsOf(reaction(t, m, "R1")))
	assert.Equal(t, [2]float64{-10, 10}, boundsOf(reaction(t, m, "R3")))
}

func TestKnockout_SkipsExchangesAndTransports(t *testing.T) {
	m := testModel(t)
	tx := metabolic.Begin(m, nil)
	defer tx.Close()

	_, err := Knockout(tx, met(t, m, "a_e"), Options{IgnoreTransport: true})
	require.NoError(t, err)

	assert.Equal(t, [2]float64{-10, 0}, boundsOf(reaction(t, m, "EX_a_e")))
	assert.Equal(t, [2]float64{-10, 10}, boundsOf(reaction(t, m, "T1")))
}

func TestKnockout_AllowAccumulation(t *testing.T) {
	m := testModel(t)
	tx := metabolic.Begin(m, nil)

	// The species "a" already has a boundary exchange; it is reused.
	exchange, err := Knockout(tx, met(t, m, "a_c"), Options{AllowAccumulation: true})
	require.NoError(t, err)
	assert.Equal(t, "EX_a_e", exchange)

	// The species "b" has none; one is created and rolled back on Close.
	exchange, err = Knockout(tx, met(t, m, "b_c"), Options{AllowAccumulation: true})
	require.NoError(t, err)
	assert.Equal(t, "EX_b_e", exchange)
	created := reaction(t, m, "EX_b_e")
	assert.Equal(t, [2]float64{0, 1000}, boundsOf(created))
	assert.True(t, created.IsExchange())

	tx.Close()
	_, ok := m.Reaction("EX_b_e")
	assert.False(t, ok)
}

func TestInhibit(t *testing.T) {
	m := testModel(t)
	reference := &metabolic.FluxDistribution{Fluxes: map[string]float64{
		"T1": -4, "R1": 10, "R2": 0, "R3": 0,
	}}

	tx := metabolic.Begin(m, nil)
	defer tx.Close()
	_, err := Inhibit(tx, met(t, m, "a_c"), reference, Options{Fraction: 0.5})
	require.NoError(t, err)

	// Positive reference: upper bound tightens to ref*fraction.
	assert.Equal(t, [2]float64{0, 5}, boundsOf(reaction(t, m, "R1")))
	// Negative reference: lower bound rises toward zero, never reverses.
	assert.Equal(t, [2]float64{-2, 10}, boundsOf(reaction(t, m, "T1")))
	// Zero reference pins the reaction.
	assert.Equal(t, [2]float64{0, 0}, boundsOf(reaction(t, m, "R3")))
	assert.Equal(t, [2]float64{0, 0}, boundsOf(reaction(t, m, "R2")))
}

func TestInhibit_TurnoverShrinksAfterResolve(t *testing.T) {
	m := testModel(t)
	referenceFluxes := map[string]float64{"EX_a_e": -10, "T1": 10, "R1": 10}
	reference := &metabolic.FluxDistribution{Fluxes: referenceFluxes}

	target := met(t, m, "a_c")
	before := ReferenceTurnover(m, target, reference)
	require.Equal(t, 10.0, before)

	tx := metabolic.Begin(m, nil)
	defer tx.Close()
	_, err := Inhibit(tx, target, reference, Options{Fraction: 0.5})
	require.NoError(t, err)

	// Solving under the tightened bounds must yield a turnover at most
	// (1-fraction) of the reference, and strictly below it.
	dist, err := metabolic.NewReferenceSimulator(referenceFluxes).Solve(context.Background(), m)
	require.NoError(t, err)

	after := ReferenceTurnover(m, target, dist)
	assert.LessOrEqual(t, after, before*0.5+1e-9)
	assert.Less(t, after, before)
}

func TestInhibit_OnlyTightens(t *testing.T) {
	m := testModel(t)
	// Reference above the current bound: the bound must not widen.
	reference := &metabolic.FluxDistribution{Fluxes: map[string]float64{
		"R1": 100, "T1": 1, "R2": 1, "R3": 1,
	}}

	tx := metabolic.Begin(m, nil)
	defer tx.Close()
	_, err := Inhibit(tx, met(t, m, "a_c"), reference, Options{Fraction: 0.5})
	require.NoError(t, err)
	assert.Equal(t, [2]float64{0, 10}, boundsOf(reaction(t, m, "R1")))
}

func TestInhibit_FractionCoverage(t *testing.T) {
	m := testModel(t)
	reference := &metabolic.FluxDistribution{Fluxes: map[string]float64{"R1": 10}}

	tx := metabolic.Begin(m, nil)
	defer tx.Close()
	_, err := Inhibit(tx, met(t, m, "a_c"), reference, Options{
		Fractions: map[string]float64{"R1": 0.5}, // T1, R2, R3 missing
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeFractionCoverage))

	// The gap is detected before any bound changes.
	assert.Equal(t, [2]float64{0, 10}, boundsOf(reaction(t, m, "R1")))
}

func TestCompete(t *testing.T) {
	m := testModel(t)
	reference := &metabolic.FluxDistribution{Fluxes: map[string]float64{
		"T1": -4, "R1": 5, "R2": 0, "R3": 0,
	}}

	tx := metabolic.Begin(m, nil)
	defer tx.Close()
	_, err := Compete(tx, met(t, m, "a_c"), reference, Options{Fraction: 0.5})
	require.NoError(t, err)

	// Positive reference: the lower bound is forced past ref*(1+f).
	assert.Equal(t, [2]float64{7.5, 10}, boundsOf(reaction(t, m, "R1")))
	// Negative reference: the upper bound is forced symmetrically.
	assert.Equal(t, [2]float64{-10, -6}, boundsOf(reaction(t, m, "T1")))
	// Zero reference is skipped.
	assert.Equal(t, [2]float64{0, 10}, boundsOf(reaction(t, m, "R2")))
	assert.Equal(t, [2]float64{-10, 10}, boundsOf(reaction(t, m, "R3")))
}

func TestApplyAntiMetabolite(t *testing.T) {
	m := testModel(t)
	reference := &metabolic.FluxDistribution{Fluxes: map[string]float64{"R1": 10}}
	mets, err := m.SearchMetabolites("a")
	require.NoError(t, err)

	tx := metabolic.Begin(m, nil)
	action, _, err := ApplyAntiMetabolite(tx, mets, false, reference, Options{Fraction: 0.5})
	require.NoError(t, err)
	assert.Equal(t, ActionInhibit, action)
	assert.Equal(t, 5.0, reaction(t, m, "R1").UpperBound)
	tx.Close()

	tx = metabolic.Begin(m, nil)
	defer tx.Close()
	action, _, err = ApplyAntiMetabolite(tx, mets, true, reference, Options{Fraction: 0.5})
	require.NoError(t, err)
	assert.Equal(t, ActionCompete, action)
	assert.Equal(t, 15.0, reaction(t, m, "R1").LowerBound)
}

func boundsOf(r *metabolic.Reaction) [2]float64 {
	return [2]float64{r.LowerBound, r.UpperBound}
}
