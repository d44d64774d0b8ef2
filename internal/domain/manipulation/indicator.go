package manipulation

import (
	"math"

	"github.com/turtacn/antimet/internal/domain/metabolic"
	"github.com/turtacn/antimet/pkg/errors"
)

// bigM bounds auxiliary variables in the indicator formulation.  Flux
// bounds in the models this operates on stay within ±1000.
const bigM = 1000.0

// Turnover-formulation roles.  Auxiliary entities are keyed by
// (reaction, role) so two metabolites sharing a reaction share one set of
// auxiliaries instead of colliding on rendered names.
const (
	roleAbsFlux   = "abs_flux"
	roleDirection = "direction"
	roleIndUpper  = "ind_u"
	roleIndLower  = "ind_l"
	roleAuxA      = "aux_a"
	roleAuxB      = "aux_b"
	roleAuxC      = "aux_c"
	roleAuxD      = "aux_d"
	roleAbsEq     = "abs_eq"
	roleTurnover  = "turnover"
)

// ReferenceTurnover computes the metabolite's turnover under a reference
// flux distribution: half the sum of |stoichiometry|*|flux| over its
// reactions.
func ReferenceTurnover(model *metabolic.Model, met *metabolic.Metabolite,
	reference *metabolic.FluxDistribution) float64 {

	turnover := 0.0
	for _, r := range model.MetaboliteReactions(met.ID) {
		coef := r.Metabolites[met.ID]
		turnover += math.Abs(coef) * math.Abs(reference.Flux(r.ID))
	}
	return turnover / 2
}

// ensureAbsFlux attaches an auxiliary variable u >= 0 equal to |v| for the
// reaction, returning its key.  Irreversible reactions get a direct
// equality; reversible reactions need a binary direction indicator y and
// the four big-M constraints that pin u to |v| in either direction.
// Auxiliaries already present (added for another metabolite in the same
// transaction) are reused as-is.
func ensureAbsFlux(tx *metabolic.Transaction, r *metabolic.Reaction) (metabolic.ArenaKey, error) {
	program := tx.Program()
	if program == nil {
		return metabolic.ArenaKey{}, errors.Invariant(
			"turnover formulation requires a constraint program")
	}

	uKey := metabolic.ArenaKey{ReactionID: r.ID, Role: roleAbsFlux}
	if _, ok := program.Variable(uKey); ok {
		return uKey, nil
	}
	if err := tx.AddVariable(&metabolic.Variable{Key: uKey, Kind: metabolic.VarContinuous, LB: 0, UB: bigM}); err != nil {
		return metabolic.ArenaKey{}, err
	}

	if !r.Reversibility() {
		// u = v for forward-only reactions, u = -v for reverse-only.
		sign := -1.0
		if r.UpperBound <= 0 {
			sign = 1.0
		}
		err := tx.AddConstraint(&metabolic.Constraint{
			Key:   metabolic.ArenaKey{ReactionID: r.ID, Role: roleAbsEq},
			Terms: []metabolic.Term{metabolic.VarTerm(1, uKey), metabolic.FluxTerm(sign, r.ID)},
			LB:    0,
			UB:    0,
		})
		if err != nil {
			return metabolic.ArenaKey{}, err
		}
		return uKey, nil
	}

	yKey := metabolic.ArenaKey{ReactionID: r.ID, Role: roleDirection}
	if err := tx.AddVariable(&metabolic.Variable{Key: yKey, Kind: metabolic.VarBinary, LB: 0, UB: 1}); err != nil {
		return metabolic.ArenaKey{}, err
	}

	// y = 1 forces v >= 0, y = 0 forces v <= 0:
	//   v - M*y <= 0
	//   v - M*y >= -M
	// u = |v| in either direction:
	//   u - v >= 0
	//   u + v >= 0
	//   u - v + 2M*y <= 2M
	//   u + v - 2M*y <= 0
	cons := []*metabolic.Constraint{
		{
			Key:   metabolic.ArenaKey{ReactionID: r.ID, Role: roleIndUpper},
			Terms: []metabolic.Term{metabolic.FluxTerm(1, r.ID), metabolic.VarTerm(-bigM, yKey)},
			LB:    -metabolic.Unbounded, UB: 0,
		},
		{
			Key:   metabolic.ArenaKey{ReactionID: r.ID, Role: roleIndLower},
			Terms: []metabolic.Term{metabolic.FluxTerm(1, r.ID), metabolic.VarTerm(-bigM, yKey)},
			LB:    -bigM, UB: metabolic.Unbounded,
		},
		{
			Key:   metabolic.ArenaKey{ReactionID: r.ID, Role: roleAuxA},
			Terms: []metabolic.Term{metabolic.VarTerm(1, uKey), metabolic.FluxTerm(-1, r.ID)},
			LB:    0, UB: metabolic.Unbounded,
		},
		{
			Key:   metabolic.ArenaKey{ReactionID: r.ID, Role: roleAuxB},
			Terms: []metabolic.Term{metabolic.VarTerm(1, uKey), metabolic.FluxTerm(1, r.ID)},
			LB:    0, UB: metabolic.Unbounded,
		},
		{
			Key: metabolic.ArenaKey{ReactionID: r.ID, Role: roleAuxC},
			Terms: []metabolic.Term{metabolic.VarTerm(1, uKey), metabolic.FluxTerm(-1, r.ID),
				metabolic.VarTerm(2*bigM, yKey)},
			LB: -metabolic.Unbounded, UB: 2 * bigM,
		},
		{
			Key: metabolic.ArenaKey{ReactionID: r.ID, Role: roleAuxD},
			Terms: []metabolic.Term{metabolic.VarTerm(1, uKey), metabolic.FluxTerm(1, r.ID),
				metabolic.VarTerm(-2*bigM, yKey)},
			LB: -metabolic.Unbounded, UB: 0,
		},
	}
	for _, c := range cons {
		if err := tx.AddConstraint(c); err != nil {
			return metabolic.ArenaKey{}, err
		}
	}
	return uKey, nil
}

// applyTurnover attaches the turnover constraint for one metabolite:
// sum(|stoich|/2 * u_r) bounded relative to the reference turnover.  Used
// when reference flux directions are unknown (reversible reactions), where
// plain bound tightening cannot express "less total turnover".
func applyTurnover(tx *metabolic.Transaction, met *metabolic.Metabolite,
	lb, ub float64, opts Options) error {

	model := tx.Model()
	reactions := affectedReactions(model, met, opts)
	if len(reactions) == 0 {
		return errors.New(errors.ErrCodeSpeciesUnresolved,
			"metabolite has no affected reactions").WithDetail(met.ID)
	}

	terms := make([]metabolic.Term, 0, len(reactions))
	for _, r := range reactions {
		uKey, err := ensureAbsFlux(tx, r)
		if err != nil {
			return err
		}
		coef := math.Abs(r.Metabolites[met.ID]) / 2
		terms = append(terms, metabolic.VarTerm(coef, uKey))
	}

	return tx.AddConstraint(&metabolic.Constraint{
		Key:   metabolic.ArenaKey{ReactionID: met.ID, Role: roleTurnover},
		Terms: terms,
		LB:    lb,
		UB:    ub,
	})
}

// InhibitTurnover caps the metabolite's total turnover at (1-Fraction) of
// its reference value.
func InhibitTurnover(tx *metabolic.Transaction, met *metabolic.Metabolite,
	reference *metabolic.FluxDistribution, opts Options) error {

	t := ReferenceTurnover(tx.Model(), met, reference)
	return applyTurnover(tx, met, -metabolic.Unbounded, (1-opts.Fraction)*t, opts)
}

// CompeteTurnover forces the metabolite's total turnover past (1+Fraction)
// of its reference value.
func CompeteTurnover(tx *metabolic.Transaction, met *metabolic.Metabolite,
	reference *metabolic.FluxDistribution, opts Options) error {

	t := ReferenceTurnover(tx.Model(), met, reference)
	return applyTurnover(tx, met, (1+opts.Fraction)*t, metabolic.Unbounded, opts)
}
