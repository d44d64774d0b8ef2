package design

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/antimet/internal/domain/design"
	"github.com/turtacn/antimet/internal/domain/manipulation"
	"github.com/turtacn/antimet/internal/domain/metabolic"
	"github.com/turtacn/antimet/pkg/errors"
)

// branchedModel splits substrate between the product branch RP and the
// wasteful branch RB, with an isolated isomerization as noise.
func branchedModel(t *testing.T) *metabolic.Model {
	t.Helper()
	m := metabolic.NewModel("branched")
	for _, met := range []*metabolic.Metabolite{
		{ID: "s_c", Compartment: "c", Elements: map[string]int{"C": 6}},
		{ID: "p_c", Compartment: "c", Elements: map[string]int{"C": 3}},
		{ID: "b_c", Compartment: "c", Elements: map[string]int{"C": 3}},
		{ID: "w1_c", Compartment: "c", Elements: map[string]int{"C": 3}},
		{ID: "w2_c", Compartment: "c", Elements: map[string]int{"C": 3}},
	} {
		require.NoError(t, m.AddMetabolite(met))
	}
	for _, r := range []*metabolic.Reaction{
		{ID: "UPTAKE", LowerBound: 0, UpperBound: 10,
			Metabolites: map[string]float64{"s_c": 1}},
		{ID: "RP", LowerBound: 0, UpperBound: 10,
			Metabolites: map[string]float64{"s_c": -1, "p_c": 1}},
		{ID: "RB", LowerBound: -10, UpperBound: 10,
			Metabolites: map[string]float64{"s_c": -1, "b_c": 1}},
		{ID: "I1", LowerBound: -10, UpperBound: 10,
			Metabolites: map[string]float64{"w1_c": -1, "w2_c": 1}},
	} {
		require.NoError(t, m.AddReaction(r))
	}
	m.Objective = "RP"
	return m
}

type splitSimulator struct{}

func (splitSimulator) Solve(_ context.Context, m *metabolic.Model) (*metabolic.FluxDistribution, error) {
	up, _ := m.Reaction("UPTAKE")
	rp, _ := m.Reaction("RP")
	rb, _ := m.Reaction("RB")
	for _, r := range m.Reactions() {
		if r.LowerBound > r.UpperBound {
			return nil, errors.Infeasible("crossed reaction bounds").WithDetail(r.ID)
		}
	}
	capP := math.Max(0, rp.UpperBound)
	capB := math.Max(0, rb.UpperBound)
	total := math.Min(10, up.UpperBound)
	var fP, fB float64
	if capP+capB > 0 {
		fP = math.Min(capP, total*capP/(capP+capB))
		fB = math.Min(capB, total*capB/(capP+capB))
	}
	fluxes := map[string]float64{"UPTAKE": fP + fB, "RP": fP, "RB": fB, "I1": 0}
	return &metabolic.FluxDistribution{Fluxes: fluxes, Objective: fP}, nil
}

func (splitSimulator) FluxRange(_ context.Context, m *metabolic.Model, reactionID string) (float64, float64, error) {
	r, ok := m.Reaction(reactionID)
	if !ok {
		return 0, 0, errors.NotFound("reaction not found").WithDetail(reactionID)
	}
	return r.LowerBound, r.UpperBound, nil
}

func newTestService(t *testing.T, m *metabolic.Model) *Service {
	t.Helper()
	reference := &metabolic.FluxDistribution{
		Fluxes:    map[string]float64{"UPTAKE": 10, "RP": 5, "RB": 5, "I1": 0},
		Objective: 5,
	}
	return NewService(m, splitSimulator{}, splitSimulator{}, reference,
		design.ProductYield{Product: "RP", Substrate: "UPTAKE"},
		nil, manipulation.Options{Fraction: 0}, nil)
}

func TestRunKnockoutSearch(t *testing.T) {
	m := branchedModel(t)
	svc := newTestService(t, m)

	report, err := svc.RunKnockoutSearch(context.Background(), SearchRequest{
		Target:       "RP",
		Substrate:    "UPTAKE",
		MinCarbons:   2,
		Compartments: []string{"c"},
		Exclude:      map[string]bool{"s": true, "p": true},
		Search: design.SearchConfig{
			PopulationSize: 10,
			MaxEvaluations: 200,
			MaxTargets:     2,
			Seed:           1,
			StopFitness:    0.99,
		},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.InDelta(t, 0.5, report.Baseline, 1e-9)
	require.NotEmpty(t, report.Solutions)

	// The best solution minimizes to the byproduct species alone, and the
	// reported metrics reflect the rerouted flux.
	best := report.Solutions[0]
	assert.Equal(t, []string{"b"}, best.Species)
	assert.InDelta(t, 10.0, best.TargetFlux, 1e-9)
	assert.InDelta(t, 1.0, best.TargetYield, 1e-9)
	assert.Equal(t, 10.0, best.FVAMax)

	// Minimized duplicates are reported once.
	seen := map[string]bool{}
	for _, sol := range report.Solutions {
		key := design.Solution{Species: sol.Species}.Key()
		assert.False(t, seen[key])
		seen[key] = true
	}

	// The run left the model pristine.
	rb, _ := m.Reaction("RB")
	assert.Equal(t, 10.0, rb.UpperBound)
}

func TestRunKnockoutSearch_Validation(t *testing.T) {
	m := branchedModel(t)
	svc := newTestService(t, m)

	_, err := svc.RunKnockoutSearch(context.Background(), SearchRequest{})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidParam))

	_, err = svc.RunKnockoutSearch(context.Background(), SearchRequest{Target: "NOPE"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotFound))
}
