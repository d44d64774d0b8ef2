package design

import (
	"context"

	"github.com/turtacn/antimet/internal/domain/manipulation"
	"github.com/turtacn/antimet/internal/domain/metabolic"
)

// fitnessTolerance is the slack when comparing fitnesses during
// minimization: dropping a species must not cost more than this.
const fitnessTolerance = 1e-9

// MinimizeSolution greedily removes species that do not pay their way: each
// species, in the given order, is dropped if the remaining set scores at
// least as well.  The result is the surviving subset in the original order.
// The scan order is explicit input, so callers decide (and tests fix) which
// of several minimal subsets wins.
func MinimizeSolution(ctx context.Context, evaluator *Evaluator, species []string) []string {
	current := append([]string(nil), species...)
	fitness := evaluator.Evaluate(ctx, current)

	for i := 0; i < len(current); {
		if len(current) == 1 {
			break
		}
		trial := make([]string, 0, len(current)-1)
		trial = append(trial, current[:i]...)
		trial = append(trial, current[i+1:]...)

		trialFitness := evaluator.Evaluate(ctx, trial)
		if trialFitness >= fitness-fitnessTolerance {
			current = trial
			fitness = trialFitness
			continue // same position now holds the next species
		}
		i++
	}
	return current
}

// SolutionMetrics is the per-solution result row reported after a search:
// the flux variability range and operating point of the product reaction,
// the growth rate, the yield and the search fitness.
type SolutionMetrics struct {
	Species     []string
	FVAMin      float64
	FVAMax      float64
	TargetFlux  float64
	GrowthRate  float64
	TargetYield float64
	Fitness     float64
}

// Reporter computes SolutionMetrics for archived solutions.
type Reporter struct {
	model     *metabolic.Model
	simulator metabolic.Simulator
	analyzer  metabolic.VariabilityAnalyzer
	reference *metabolic.FluxDistribution
	essential map[string]bool
	opts      manipulation.Options

	// Target and Substrate name the product reaction and the substrate
	// exchange used for the yield column.
	Target    string
	Substrate string
}

// NewReporter wires a reporter over the same model the search ran on.
func NewReporter(model *metabolic.Model, simulator metabolic.Simulator,
	analyzer metabolic.VariabilityAnalyzer, reference *metabolic.FluxDistribution,
	essential map[string]bool, opts manipulation.Options, target, substrate string) *Reporter {
	return &Reporter{
		model: model, simulator: simulator, analyzer: analyzer,
		reference: reference, essential: essential, opts: opts,
		Target: target, Substrate: substrate,
	}
}

// Report computes metrics for one solution.  The solution's manipulations
// are applied inside a scoped transaction, measured, and rolled back.
func (r *Reporter) Report(ctx context.Context, sol Solution) (SolutionMetrics, error) {
	tx := metabolic.Begin(r.model, nil)
	defer tx.Close()

	for _, s := range sol.Species {
		mets, err := r.model.SearchMetabolites(s)
		if err != nil {
			continue // skipped during evaluation too
		}
		if _, _, err := manipulation.ApplyAntiMetabolite(tx, mets,
			r.essential[s], r.reference, r.opts); err != nil {
			return SolutionMetrics{}, err
		}
	}

	metrics := SolutionMetrics{Species: sol.Species, Fitness: sol.Fitness}

	dist, err := r.simulator.Solve(ctx, r.model)
	if err != nil {
		return SolutionMetrics{}, err
	}
	metrics.TargetFlux = dist.Flux(r.Target)
	metrics.GrowthRate = dist.Objective
	if uptake := dist.Flux(r.Substrate); uptake != 0 {
		metrics.TargetYield = metrics.TargetFlux / abs(uptake)
	}

	if r.analyzer != nil {
		lo, hi, err := r.analyzer.FluxRange(ctx, r.model, r.Target)
		if err != nil {
			return SolutionMetrics{}, err
		}
		metrics.FVAMin, metrics.FVAMax = lo, hi
	}
	return metrics, nil
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
