// Package manipulation translates a metabolite-level perturbation into flux
// bound changes on a metabolic model: knockout removes the metabolite's
// turnover, inhibition tightens bounds toward a fraction of the reference
// flux, and competition forces bounds beyond it.  All changes go through a
// metabolic.Transaction so they roll back with the enclosing evaluation.
package manipulation

import (
	"math"

	"github.com/turtacn/antimet/internal/domain/metabolic"
	"github.com/turtacn/antimet/pkg/errors"
)

// Action tags the manipulation applied to a metabolite.
type Action string

const (
	ActionKnockout Action = "knockout"
	ActionInhibit  Action = "inhibit"
	ActionCompete  Action = "compete"
)

// zeroFluxEpsilon is the magnitude below which a reference flux counts as
// zero and inhibition pins the reaction instead of scaling it.
const zeroFluxEpsilon = 1e-6

// Options tunes how a manipulation is applied.
type Options struct {
	// Fraction scales the reference flux: inhibition tightens toward
	// ref*Fraction, competition forces past ref*(1+Fraction).
	Fraction float64

	// Fractions overrides Fraction per reaction.  When set, it must cover
	// every affected reaction; a gap is a configuration error reported
	// before any bound is touched.
	Fractions map[string]float64

	// IgnoreTransport leaves transport reactions untouched.
	IgnoreTransport bool

	// AllowAccumulation adds a boundary exchange for the species so that
	// blocking its consumers cannot make the model trivially infeasible.
	AllowAccumulation bool
}

func (o Options) fractionFor(reactionID string) (float64, error) {
	if o.Fractions == nil {
		return o.Fraction, nil
	}
	f, ok := o.Fractions[reactionID]
	if !ok {
		return 0, errors.New(errors.ErrCodeFractionCoverage,
			"fraction map does not cover affected reaction").WithDetail(reactionID)
	}
	return f, nil
}

// affectedReactions lists the metabolite's reactions a manipulation touches,
// excluding exchanges and, optionally, transports.
func affectedReactions(model *metabolic.Model, met *metabolic.Metabolite, opts Options) []*metabolic.Reaction {
	var out []*metabolic.Reaction
	for _, r := range model.MetaboliteReactions(met.ID) {
		if r.IsExchange() {
			continue
		}
		if opts.IgnoreTransport && model.IsTransport(r) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// checkCoverage validates the per-reaction fraction map up front, so a
// coverage gap never leaves a half-applied manipulation behind.
func checkCoverage(reactions []*metabolic.Reaction, opts Options) error {
	if opts.Fractions == nil {
		return nil
	}
	for _, r := range reactions {
		if _, ok := opts.Fractions[r.ID]; !ok {
			return errors.New(errors.ErrCodeFractionCoverage,
				"fraction map does not cover affected reaction").WithDetail(r.ID)
		}
	}
	return nil
}

// ensureExchange finds or creates the species boundary exchange
// EX_<species>_e and returns its identifier.  Created exchanges allow
// secretion only (bounds 0..1000) and are rolled back with the transaction.
func ensureExchange(tx *metabolic.Transaction, met *metabolic.Metabolite) (string, error) {
	id := metabolic.ExchangeReactionID(met.SpeciesID())
	if _, ok := tx.Model().Reaction(id); ok {
		return id, nil
	}
	err := tx.AddReaction(&metabolic.Reaction{
		ID:          id,
		LowerBound:  0,
		UpperBound:  1000,
		Metabolites: map[string]float64{met.ID: -1},
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// Knockout removes the metabolite's turnover: reversible reactions are
// pinned to zero in both directions, irreversible consumers lose their
// forward capacity.  Returns the identifier of the accumulation exchange
// when one was ensured.
func Knockout(tx *metabolic.Transaction, met *metabolic.Metabolite, opts Options) (string, error) {
	model := tx.Model()
	for _, r := range affectedReactions(model, met, opts) {
		switch {
		case r.Reversibility():
			tx.SetBounds(r, 0, 0)
		case r.Consumes(met.ID):
			tx.SetUpperBound(r, 0)
		}
	}
	if opts.AllowAccumulation {
		return ensureExchange(tx, met)
	}
	return "", nil
}

// Inhibit tightens every affected reaction toward Fraction of its reference
// flux.  Bounds only shrink, never reverse: a positive reference lowers the
// upper bound, a negative reference raises the lower bound, and a reference
// of zero pins the reaction.  Reactions already tighter than the target are
// left alone.
func Inhibit(tx *metabolic.Transaction, met *metabolic.Metabolite,
	reference *metabolic.FluxDistribution, opts Options) (string, error) {

	model := tx.Model()
	reactions := affectedReactions(model, met, opts)
	if err := checkCoverage(reactions, opts); err != nil {
		return "", err
	}

	for _, r := range reactions {
		fraction, err := opts.fractionFor(r.ID)
		if err != nil {
			return "", err
		}
		ref := reference.Flux(r.ID)
		switch {
		case math.Abs(ref) < zeroFluxEpsilon:
			lb, ub := r.LowerBound, r.UpperBound
			if ub > 0 {
				ub = 0
			}
			if lb < 0 {
				lb = 0
			}
			tx.SetBounds(r, lb, ub)
		case ref > 0:
			if target := ref * fraction; target < r.UpperBound {
				tx.SetUpperBound(r, target)
			}
		default:
			if target := ref * fraction; target > r.LowerBound {
				tx.SetLowerBound(r, target)
			}
		}
	}
	if opts.AllowAccumulation {
		return ensureExchange(tx, met)
	}
	return "", nil
}

// Compete forces every affected reaction to carry more than its reference
// flux, modeling a competing species that raises the metabolite's turnover:
// a positive reference raises the lower bound to ref*(1+Fraction), a
// negative reference lowers the upper bound symmetrically.  Reactions with
// zero reference flux are skipped.  The resulting bounds may be jointly
// unsatisfiable; the simulator reports that as infeasibility and the
// evaluator scores the candidate zero.
func Compete(tx *metabolic.Transaction, met *metabolic.Metabolite,
	reference *metabolic.FluxDistribution, opts Options) (string, error) {

	model := tx.Model()
	reactions := affectedReactions(model, met, opts)
	if err := checkCoverage(reactions, opts); err != nil {
		return "", err
	}

	for _, r := range reactions {
		fraction, err := opts.fractionFor(r.ID)
		if err != nil {
			return "", err
		}
		ref := reference.Flux(r.ID)
		switch {
		case math.Abs(ref) < zeroFluxEpsilon:
			continue
		case ref > 0:
			if target := ref * (1 + fraction); target > r.LowerBound {
				tx.SetLowerBound(r, target)
			}
		default:
			if target := ref * (1 + fraction); target < r.UpperBound {
				tx.SetUpperBound(r, target)
			}
		}
	}
	if opts.AllowAccumulation {
		return ensureExchange(tx, met)
	}
	return "", nil
}

// ApplyAntiMetabolite applies the anti-metabolite effect to every
// compartment instance of a species: competition when the species is
// essential (the anti-metabolite displaces an obligatory compound),
// inhibition otherwise.  Returns the action taken and any exchanges added.
func ApplyAntiMetabolite(tx *metabolic.Transaction, mets []*metabolic.Metabolite,
	essential bool, reference *metabolic.FluxDistribution, opts Options) (Action, []string, error) {

	action := ActionInhibit
	if essential {
		action = ActionCompete
	}

	var exchanges []string
	for _, met := range mets {
		var exchange string
		var err error
		if essential {
			exchange, err = Compete(tx, met, reference, opts)
		} else {
			exchange, err = Inhibit(tx, met, reference, opts)
		}
		if err != nil {
			return action, nil, err
		}
		if exchange != "" {
			exchanges = append(exchanges, exchange)
		}
	}
	return action, exchanges, nil
}
