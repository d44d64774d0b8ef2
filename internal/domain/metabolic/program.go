package metabolic

import (
	"fmt"

	"github.com/turtacn/antimet/pkg/errors"
)

// VarKind distinguishes auxiliary variable types in the constraint program.
type VarKind int

const (
	VarContinuous VarKind = iota
	VarBinary
)

// ArenaKey identifies a variable or constraint by the reaction it belongs
// to and its role within the formulation.  De-duplication works on this
// structured key, never on rendered names, so two manipulations touching
// the same reaction share auxiliaries instead of colliding.
type ArenaKey struct {
	ReactionID string
	Role       string
}

func (k ArenaKey) String() string { return k.ReactionID + "/" + k.Role }

// Term is one linear term: Coefficient times either a reaction flux
// (Flux set) or an auxiliary variable (Var set).
type Term struct {
	Coefficient float64
	Flux        string
	Var         ArenaKey
}

// FluxTerm and VarTerm construct terms.
func FluxTerm(coef float64, reactionID string) Term {
	return Term{Coefficient: coef, Flux: reactionID}
}

func VarTerm(coef float64, key ArenaKey) Term {
	return Term{Coefficient: coef, Var: key}
}

// Variable is an auxiliary solver variable.
type Variable struct {
	Key  ArenaKey
	Kind VarKind
	LB   float64
	UB   float64
}

// Constraint is a linear constraint LB <= sum(terms) <= UB.  Use
// Unbounded for a missing side.
type Constraint struct {
	Key   ArenaKey
	Terms []Term
	LB    float64
	UB    float64
}

// Unbounded marks a constraint side as absent.
const Unbounded = 1e30

// ConstraintProgram is the arena of auxiliary variables and constraints a
// manipulation attaches to a model.  It keeps insertion order for
// deterministic rendering and rejects duplicate keys.
type ConstraintProgram struct {
	variables     []*Variable
	variableByKey map[ArenaKey]*Variable

	constraints     []*Constraint
	constraintByKey map[ArenaKey]*Constraint
}

// NewConstraintProgram creates an empty arena.
func NewConstraintProgram() *ConstraintProgram {
	return &ConstraintProgram{
		variableByKey:   map[ArenaKey]*Variable{},
		constraintByKey: map[ArenaKey]*Constraint{},
	}
}

// AddVariable registers an auxiliary variable.
func (p *ConstraintProgram) AddVariable(v *Variable) error {
	if _, ok := p.variableByKey[v.Key]; ok {
		return errors.Invariant("duplicate program variable").WithDetail(v.Key.String())
	}
	p.variables = append(p.variables, v)
	p.variableByKey[v.Key] = v
	return nil
}

// EnsureVariable returns the existing variable for the key or registers the
// supplied one.
func (p *ConstraintProgram) EnsureVariable(v *Variable) *Variable {
	if existing, ok := p.variableByKey[v.Key]; ok {
		return existing
	}
	p.variables = append(p.variables, v)
	p.variableByKey[v.Key] = v
	return v
}

// AddConstraint registers a constraint.
func (p *ConstraintProgram) AddConstraint(c *Constraint) error {
	if _, ok := p.constraintByKey[c.Key]; ok {
		return errors.Invariant("duplicate program constraint").WithDetail(c.Key.String())
	}
	p.constraints = append(p.constraints, c)
	p.constraintByKey[c.Key] = c
	return nil
}

// Variable and Constraint look entries up by key.
func (p *ConstraintProgram) Variable(key ArenaKey) (*Variable, bool) {
	v, ok := p.variableByKey[key]
	return v, ok
}

func (p *ConstraintProgram) Constraint(key ArenaKey) (*Constraint, bool) {
	c, ok := p.constraintByKey[key]
	return c, ok
}

// Variables and Constraints return entries in insertion order.
func (p *ConstraintProgram) Variables() []*Variable     { return p.variables }
func (p *ConstraintProgram) Constraints() []*Constraint { return p.constraints }

// RemoveVariable and RemoveConstraint drop entries, used by transaction
// rollback.
func (p *ConstraintProgram) RemoveVariable(key ArenaKey) {
	if _, ok := p.variableByKey[key]; !ok {
		return
	}
	delete(p.variableByKey, key)
	for i, v := range p.variables {
		if v.Key == key {
			p.variables = append(p.variables[:i], p.variables[i+1:]...)
			break
		}
	}
}

func (p *ConstraintProgram) RemoveConstraint(key ArenaKey) {
	if _, ok := p.constraintByKey[key]; !ok {
		return
	}
	delete(p.constraintByKey, key)
	for i, c := range p.constraints {
		if c.Key == key {
			p.constraints = append(p.constraints[:i], p.constraints[i+1:]...)
			break
		}
	}
}

// Render returns a human-readable form of a constraint, used in debug logs.
func (p *ConstraintProgram) Render(c *Constraint) string {
	s := ""
	for i, t := range c.Terms {
		if i > 0 {
			s += " + "
		}
		if t.Flux != "" {
			s += fmt.Sprintf("%g*v[%s]", t.Coefficient, t.Flux)
		} else {
			s += fmt.Sprintf("%g*%s", t.Coefficient, t.Var)
		}
	}
	return fmt.Sprintf("%g <= %s <= %g", c.LB, s, c.UB)
}
