package design

import (
	"context"
	"sort"

	"github.com/turtacn/antimet/internal/domain/manipulation"
	"github.com/turtacn/antimet/internal/domain/metabolic"
	"github.com/turtacn/antimet/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/antimet/pkg/errors"
)

// SpeciesTarget is a metabolite-level perturbation derived from a reaction
// target.  Fraction zero is the degenerate knockout case.
type SpeciesTarget struct {
	SpeciesID         string
	Fraction          float64
	IgnoreTransport   bool
	AllowAccumulation bool
}

// Apply translates the target into bound changes inside the transaction.
func (t SpeciesTarget) Apply(tx *metabolic.Transaction, reference *metabolic.FluxDistribution,
	essential map[string]bool) error {

	mets, err := tx.Model().SearchMetabolites(t.SpeciesID)
	if err != nil {
		return err
	}
	opts := manipulation.Options{
		Fraction:          t.Fraction,
		IgnoreTransport:   t.IgnoreTransport,
		AllowAccumulation: t.AllowAccumulation,
	}
	if t.Fraction == 0 {
		for _, met := range mets {
			if _, err := manipulation.Knockout(tx, met, opts); err != nil {
				return err
			}
		}
		return nil
	}
	_, _, err = manipulation.ApplyAntiMetabolite(tx, mets, essential[t.SpeciesID], reference, opts)
	return err
}

// FoldChangeFraction converts a reaction flux fold change into the
// perturbation fraction of the substituting anti-metabolite: 1-foldChange
// for down-regulation, and a steeper link for up-regulation.
func FoldChangeFraction(foldChange float64) float64 {
	if foldChange > 1 {
		return 10 * (1 - foldChange) / (1 + (1 - foldChange))
	}
	return 1 - foldChange
}

// substrateSpecies selects the species a reaction target can be replaced
// through: metabolites on the flux-carrying side when the reference
// direction is known, every metabolite of a reversible reaction otherwise,
// and products only for irreversible reactions.  Species in the ignore set
// (currency metabolites) are excluded.
func substrateSpecies(r *metabolic.Reaction, model *metabolic.Model,
	refFlux float64, ignore map[string]bool) []string {

	var species []string
	seen := map[string]bool{}
	for metID, coef := range r.Metabolites {
		met, ok := model.Metabolite(metID)
		if !ok {
			continue
		}
		s := met.SpeciesID()
		if ignore[s] || seen[s] {
			continue
		}
		switch {
		case refFlux != 0:
			if coef*refFlux <= 0 {
				continue
			}
		case !r.Reversibility():
			if coef <= 0 {
				continue
			}
		}
		seen[s] = true
		species = append(species, s)
	}
	sort.Strings(species)
	return species
}

// FindAntiMetaboliteKnockouts derives the metabolite knockout substitutes
// for one reaction, keyed by species.
func FindAntiMetaboliteKnockouts(model *metabolic.Model, r *metabolic.Reaction,
	refFlux float64, ignore map[string]bool, ignoreTransport, allowAccumulation bool) map[string]SpeciesTarget {

	out := map[string]SpeciesTarget{}
	for _, s := range substrateSpecies(r, model, refFlux, ignore) {
		out[s] = SpeciesTarget{
			SpeciesID:         s,
			Fraction:          0,
			IgnoreTransport:   ignoreTransport,
			AllowAccumulation: allowAccumulation,
		}
	}
	return out
}

// FindAntiMetaboliteModulation derives modulation substitutes for one
// reaction.  Up-regulation (fold change above 1) additionally excludes
// essential species, since competing a species the cell cannot spare is the
// only remaining lever there.
func FindAntiMetaboliteModulation(model *metabolic.Model, r *metabolic.Reaction,
	foldChange, refFlux float64, ignore, essential map[string]bool,
	ignoreTransport, allowAccumulation bool) map[string]SpeciesTarget {

	excluded := ignore
	if foldChange > 1 {
		excluded = map[string]bool{}
		for s := range ignore {
			excluded[s] = true
		}
		for s := range essential {
			excluded[s] = true
		}
	}

	fraction := FoldChangeFraction(foldChange)
	out := map[string]SpeciesTarget{}
	for _, s := range substrateSpecies(r, model, refFlux, excluded) {
		out[s] = SpeciesTarget{
			SpeciesID:         s,
			Fraction:          fraction,
			IgnoreTransport:   ignoreTransport,
			AllowAccumulation: allowAccumulation,
		}
	}
	return out
}

// Replacement records one accepted reaction-to-metabolite substitution.
type Replacement struct {
	ReactionID  string
	Species     []string
	BaseFitness float64
	Fitness     float64
	Loss        float64
}

// Replacer substitutes reaction knockouts in a finished design with
// anti-metabolite targets.
type Replacer struct {
	model     *metabolic.Model
	simulator metabolic.Simulator
	objective ObjectiveFunction
	reference *metabolic.FluxDistribution
	essential map[string]bool

	// Ignore lists species never used as substitutes, typically currency
	// metabolites (atp, nadh, ...).
	Ignore map[string]bool

	// MaxLoss is the tolerated relative fitness loss of a substitute
	// (default 0.2).
	MaxLoss float64

	IgnoreTransport   bool
	AllowAccumulation bool

	log logging.Logger
}

// NewReplacer wires a replacer with the default loss tolerance.
func NewReplacer(model *metabolic.Model, simulator metabolic.Simulator,
	objective ObjectiveFunction, reference *metabolic.FluxDistribution,
	essential map[string]bool, log logging.Logger) *Replacer {

	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Replacer{
		model:             model,
		simulator:         simulator,
		objective:         objective,
		reference:         reference,
		essential:         essential,
		MaxLoss:           0.2,
		IgnoreTransport:   true,
		AllowAccumulation: true,
		log:               log.Named("design.replace"),
	}
}

// ReplaceKnockouts tries to substitute every reaction knockout in a design
// with a metabolite knockout.  Each pending target is tested against the
// baseline of "all other pending targets applied, this one removed": a
// substitute is accepted when its fitness loss relative to the design stays
// under MaxLoss and it still improves over that baseline.  A target with no
// acceptable substitute returns to the pool; the pass ends once every
// target has been substituted or retried without success.
func (rp *Replacer) ReplaceKnockouts(ctx context.Context, reactionIDs []string,
	designFitness float64) ([]Replacement, error) {

	if designFitness <= 0 {
		return nil, errors.InvalidParam("design fitness must be positive")
	}
	for _, id := range reactionIDs {
		if _, ok := rp.model.Reaction(id); !ok {
			return nil, errors.NotFound("design reaction not in model").WithDetail(id)
		}
	}

	pool := append([]string(nil), reactionIDs...)
	tested := map[string]int{}
	var out []Replacement

	allRetried := func() bool {
		for _, id := range pool {
			if tested[id] == 0 {
				return false
			}
		}
		return true
	}

	for len(pool) > 0 && !allRetried() {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		test := pool[0]
		pool = pool[1:]
		tested[test]++

		replacement, found, err := rp.testTarget(ctx, test, pool, designFitness)
		if err != nil {
			return out, err
		}
		if !found {
			pool = append(pool, test)
			rp.log.Debug("no replacement found, target returned to pool",
				logging.String("reaction", test))
			continue
		}
		out = append(out, replacement)
	}
	return out, nil
}

// testTarget evaluates every substitute for one reaction while the
// remaining pool is knocked out, returning the best acceptable one.
func (rp *Replacer) testTarget(ctx context.Context, test string, pending []string,
	designFitness float64) (Replacement, bool, error) {

	tx := metabolic.Begin(rp.model, nil)
	defer tx.Close()

	reaction, _ := rp.model.Reaction(test)
	for _, id := range pending {
		if r, ok := rp.model.Reaction(id); ok {
			tx.SetBounds(r, 0, 0)
		}
	}

	baseFitness := rp.solveFitness(ctx)

	substitutes := FindAntiMetaboliteKnockouts(rp.model, reaction,
		rp.reference.Flux(test), rp.Ignore, rp.IgnoreTransport, rp.AllowAccumulation)

	bestFitness := 0.0
	var bestSpecies []string
	for species, target := range substitutes {
		inner := metabolic.Begin(rp.model, nil)
		if err := target.Apply(inner, rp.reference, rp.essential); err != nil {
			inner.Close()
			if errors.IsCode(err, errors.ErrCodeSpeciesUnresolved) {
				continue
			}
			return Replacement{}, false, err
		}
		fitness := rp.solveFitness(ctx)
		inner.Close()

		if !rp.acceptable(fitness, baseFitness, designFitness) {
			continue
		}
		switch {
		case fitness > bestFitness:
			bestFitness = fitness
			bestSpecies = []string{species}
		case fitness == bestFitness:
			bestSpecies = append(bestSpecies, species)
		}
	}

	if len(bestSpecies) == 0 {
		return Replacement{}, false, nil
	}
	sort.Strings(bestSpecies)
	return Replacement{
		ReactionID:  test,
		Species:     bestSpecies,
		BaseFitness: baseFitness,
		Fitness:     bestFitness,
		Loss:        designFitness - bestFitness,
	}, true, nil
}

// solveFitness scores the model under its current bounds, with solver
// failures scored zero like the evaluator does.
func (rp *Replacer) solveFitness(ctx context.Context) float64 {
	dist, err := rp.simulator.Solve(ctx, rp.model)
	if err != nil {
		return 0
	}
	return rp.objective.Score(rp.model, dist)
}

func (rp *Replacer) acceptable(fitness, baseFitness, designFitness float64) bool {
	loss := (designFitness - fitness) / designFitness
	return loss < rp.MaxLoss && fitness-baseFitness > 1e-6
}
