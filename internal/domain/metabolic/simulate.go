package metabolic

import (
	"context"

	"github.com/turtacn/antimet/pkg/errors"
)

// FluxDistribution is one simulation outcome: per-reaction fluxes plus the
// objective value.
type FluxDistribution struct {
	Fluxes    map[string]float64
	Objective float64
}

// Flux returns the flux through a reaction, zero when absent.
func (d *FluxDistribution) Flux(reactionID string) float64 {
	return d.Fluxes[reactionID]
}

// Simulator is the boundary to an external constraint-based solver.
// Implementations must return the distinguished infeasibility error
// (errors.IsInfeasible) when the model admits no solution, so evaluators
// can score the candidate zero instead of failing the search.
type Simulator interface {
	Solve(ctx context.Context, model *Model) (*FluxDistribution, error)
}

// VariabilityAnalyzer reports the attainable flux range of a reaction under
// the current bounds, used by result post-processing.
type VariabilityAnalyzer interface {
	FluxRange(ctx context.Context, model *Model, reactionID string) (min, max float64, err error)
}

// ReferenceSimulator is a lightweight stand-in for an external flux solver,
// used by tests and the demo command.  It clamps a reference flux
// distribution into the model's current bounds, reports infeasibility when
// any reaction has crossed bounds, and propagates total shutdowns into the
// objective: the objective reaction's flux drops to zero when any reaction
// carrying reference flux toward it is pinned to zero.  It makes knockout
// and inhibition effects observable without a real LP solver and is not a
// substitute for one.
type ReferenceSimulator struct {
	// Reference is the wild-type flux distribution to clamp.
	Reference map[string]float64
}

// NewReferenceSimulator copies the reference fluxes.
func NewReferenceSimulator(reference map[string]float64) *ReferenceSimulator {
	ref := make(map[string]float64, len(reference))
	for k, v := range reference {
		ref[k] = v
	}
	return &ReferenceSimulator{Reference: ref}
}

// Solve implements Simulator.
func (s *ReferenceSimulator) Solve(ctx context.Context, model *Model) (*FluxDistribution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fluxes := make(map[string]float64, len(model.Reactions()))
	pinned := map[string]bool{}
	for _, r := range model.Reactions() {
		if r.LowerBound > r.UpperBound {
			return nil, errors.Infeasible("crossed reaction bounds").WithDetail(r.ID)
		}
		v := clamp(s.Reference[r.ID], r.LowerBound, r.UpperBound)
		fluxes[r.ID] = v
		if v == 0 && s.Reference[r.ID] != 0 {
			pinned[r.ID] = true
		}
	}

	// A pinned reaction starves every metabolite it used to feed; any
	// reaction consuming one of those metabolites shuts down too.  One
	// propagation sweep is enough for the acyclic toy networks this
	// simulator is meant for.
	if len(pinned) > 0 {
		starved := map[string]bool{}
		for id := range pinned {
			r, _ := model.Reaction(id)
			for metID, coef := range r.Metabolites {
				if coef > 0 {
					starved[metID] = true
				}
			}
		}
		for _, r := range model.Reactions() {
			if fluxes[r.ID] == 0 {
				continue
			}
			for metID, coef := range r.Metabolites {
				if coef < 0 && starved[metID] && model.ProducingDegree(metID) <= 1 {
					fluxes[r.ID] = clamp(0, r.LowerBound, r.UpperBound)
				}
			}
		}
	}

	return &FluxDistribution{Fluxes: fluxes, Objective: fluxes[model.Objective]}, nil
}

// FluxRange implements VariabilityAnalyzer by probing the reaction's bounds
// against the clamped reference.
func (s *ReferenceSimulator) FluxRange(ctx context.Context, model *Model, reactionID string) (float64, float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	r, ok := model.Reaction(reactionID)
	if !ok {
		return 0, 0, errors.NotFound("reaction not found").WithDetail(reactionID)
	}
	if r.LowerBound > r.UpperBound {
		return 0, 0, errors.Infeasible("crossed reaction bounds").WithDetail(reactionID)
	}
	return r.LowerBound, r.UpperBound, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
