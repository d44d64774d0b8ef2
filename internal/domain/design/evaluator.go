package design

import (
	"context"

	"github.com/turtacn/antimet/internal/domain/manipulation"
	"github.com/turtacn/antimet/internal/domain/metabolic"
	"github.com/turtacn/antimet/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/antimet/pkg/errors"
)

// Evaluator scores candidate species sets.  Every evaluation runs inside a
// scoped transaction that is closed unconditionally, so no candidate can
// leak bound changes into the next one.  Evaluations never propagate
// solver errors: infeasibility and unexpected failures both score zero,
// keeping the search loop alive.
//
// An Evaluator mutates its model during evaluation and is therefore not
// safe for concurrent use.
type Evaluator struct {
	model     *metabolic.Model
	simulator metabolic.Simulator
	reference *metabolic.FluxDistribution
	objective ObjectiveFunction

	// essential marks species whose anti-metabolite competes rather than
	// inhibits.
	essential map[string]bool

	opts manipulation.Options
	log  logging.Logger
}

// NewEvaluator wires an evaluator.  essential may be nil.
func NewEvaluator(model *metabolic.Model, simulator metabolic.Simulator,
	reference *metabolic.FluxDistribution, objective ObjectiveFunction,
	essential map[string]bool, opts manipulation.Options, log logging.Logger) *Evaluator {

	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Evaluator{
		model:     model,
		simulator: simulator,
		reference: reference,
		objective: objective,
		essential: essential,
		opts:      opts,
		log:       log.Named("design.evaluator"),
	}
}

// Evaluate scores one candidate: the anti-metabolite effect of every
// species in the set, applied together.  Species absent from the model are
// skipped with a warning; a candidate whose constraints admit no solution
// scores zero.
func (e *Evaluator) Evaluate(ctx context.Context, species []string) float64 {
	tx := metabolic.Begin(e.model, nil)
	defer tx.Close()

	for _, s := range species {
		mets, err := e.model.SearchMetabolites(s)
		if err != nil {
			e.log.Warn("species not in model, skipped",
				logging.String("species", s), logging.Err(err))
			continue
		}
		if _, _, err := manipulation.ApplyAntiMetabolite(tx, mets,
			e.essential[s], e.reference, e.opts); err != nil {
			e.log.Error("manipulation failed",
				logging.String("species", s), logging.Err(err))
			return 0
		}
	}

	dist, err := e.simulator.Solve(ctx, e.model)
	if err != nil {
		if errors.IsInfeasible(err) {
			return 0
		}
		e.log.Error("simulation failed", logging.Err(err))
		return 0
	}
	return e.objective.Score(e.model, dist)
}

// Baseline scores the untouched model, used by post-processing to compare
// designs against the wild type.
func (e *Evaluator) Baseline(ctx context.Context) float64 {
	return e.Evaluate(ctx, nil)
}
