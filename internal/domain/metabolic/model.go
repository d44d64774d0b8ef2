// Package metabolic models constraint-based metabolic networks: metabolites
// and reactions with flux bounds, species resolution across compartments,
// scoped bound transactions with guaranteed rollback, and the simulation
// boundary the knockout search evaluates candidates through.
package metabolic

import (
	"fmt"
	"strings"

	"github.com/turtacn/antimet/pkg/errors"
)

// Metabolite is one species instance in one compartment.  The identifier
// convention is "<species>_<compartment>", e.g. "atp_c".
type Metabolite struct {
	ID          string
	Name        string
	Compartment string

	// Elements is the chemical formula as element -> count.
	Elements map[string]int
}

// SpeciesID strips the compartment suffix from the identifier, so that
// "atp_c" and "atp_e" resolve to the same species "atp".
func (m *Metabolite) SpeciesID() string {
	suffix := "_" + m.Compartment
	if m.Compartment != "" && strings.HasSuffix(m.ID, suffix) {
		return m.ID[:len(m.ID)-len(suffix)]
	}
	return m.ID
}

// NumCarbons returns the carbon count from the formula.
func (m *Metabolite) NumCarbons() int { return m.Elements["C"] }

// Reaction is one network reaction with flux bounds.  Metabolites maps
// metabolite ID to its stoichiometric coefficient: negative consumes,
// positive produces.
type Reaction struct {
	ID          string
	Name        string
	LowerBound  float64
	UpperBound  float64
	Metabolites map[string]float64
}

// Reversibility reports whether flux can run in both directions.
func (r *Reaction) Reversibility() bool {
	return r.LowerBound < 0 && r.UpperBound > 0
}

// Consumes reports whether the reaction consumes the metabolite in the
// forward direction.
func (r *Reaction) Consumes(metID string) bool {
	return r.Metabolites[metID] < 0
}

// IsExchange reports whether the reaction is a boundary exchange: a single
// metabolite crossing the system boundary.
func (r *Reaction) IsExchange() bool {
	return len(r.Metabolites) == 1
}

// exchangePrefix is the conventional identifier prefix of boundary
// exchange reactions.
const exchangePrefix = "EX_"

// Model is an ordered collection of metabolites and reactions.  Reaction
// order is insertion order, which keeps simulation output and search
// iteration deterministic.
type Model struct {
	ID string

	// Objective names the reaction whose flux is maximized, typically
	// biomass.
	Objective string

	reactions      []*Reaction
	reactionByID   map[string]*Reaction
	metabolites    []*Metabolite
	metaboliteByID map[string]*Metabolite
}

// NewModel creates an empty model.
func NewModel(id string) *Model {
	return &Model{
		ID:             id,
		reactionByID:   map[string]*Reaction{},
		metaboliteByID: map[string]*Metabolite{},
	}
}

// AddMetabolite registers a metabolite.  Duplicate identifiers are invariant
// violations.
func (m *Model) AddMetabolite(met *Metabolite) error {
	if _, ok := m.metaboliteByID[met.ID]; ok {
		return errors.Invariant("duplicate metabolite").WithDetail(met.ID)
	}
	m.metabolites = append(m.metabolites, met)
	m.metaboliteByID[met.ID] = met
	return nil
}

// AddReaction registers a reaction.  Every referenced metabolite must
// already exist.
func (m *Model) AddReaction(r *Reaction) error {
	if _, ok := m.reactionByID[r.ID]; ok {
		return errors.Invariant("duplicate reaction").WithDetail(r.ID)
	}
	for metID := range r.Metabolites {
		if _, ok := m.metaboliteByID[metID]; !ok {
			return errors.Invariant("reaction references unknown metabolite").
				WithDetailf("reaction %s, metabolite %s", r.ID, metID)
		}
	}
	m.reactions = append(m.reactions, r)
	m.reactionByID[r.ID] = r
	return nil
}

// RemoveReaction drops a reaction, used by transaction rollback.
func (m *Model) RemoveReaction(id string) {
	if _, ok := m.reactionByID[id]; !ok {
		return
	}
	delete(m.reactionByID, id)
	for i, r := range m.reactions {
		if r.ID == id {
			m.reactions = append(m.reactions[:i], m.reactions[i+1:]...)
			break
		}
	}
}

// Reaction looks a reaction up by identifier.
func (m *Model) Reaction(id string) (*Reaction, bool) {
	r, ok := m.reactionByID[id]
	return r, ok
}

// Metabolite looks a metabolite up by identifier.
func (m *Model) Metabolite(id string) (*Metabolite, bool) {
	met, ok := m.metaboliteByID[id]
	return met, ok
}

// Reactions returns the reactions in insertion order.  The slice is shared;
// callers must not mutate it.
func (m *Model) Reactions() []*Reaction { return m.reactions }

// Metabolites returns the metabolites in insertion order.
func (m *Model) Metabolites() []*Metabolite { return m.metabolites }

// MetaboliteReactions returns every reaction the metabolite participates in,
// in model order.
func (m *Model) MetaboliteReactions(metID string) []*Reaction {
	var out []*Reaction
	for _, r := range m.reactions {
		if _, ok := r.Metabolites[metID]; ok {
			out = append(out, r)
		}
	}
	return out
}

// Degree returns the number of reactions the metabolite participates in.
func (m *Model) Degree(metID string) int { return len(m.MetaboliteReactions(metID)) }

// ProducingDegree and ConsumingDegree split Degree by the sign of the
// stoichiometric coefficient.
func (m *Model) ProducingDegree(metID string) int {
	n := 0
	for _, r := range m.MetaboliteReactions(metID) {
		if r.Metabolites[metID] > 0 {
			n++
		}
	}
	return n
}

func (m *Model) ConsumingDegree(metID string) int {
	n := 0
	for _, r := range m.MetaboliteReactions(metID) {
		if r.Metabolites[metID] < 0 {
			n++
		}
	}
	return n
}

// IsTransport reports whether the reaction moves one species between
// compartments: the same species appears on both sides in different
// compartments.
func (m *Model) IsTransport(r *Reaction) bool {
	species := map[string][]string{}
	for metID := range r.Metabolites {
		met, ok := m.metaboliteByID[metID]
		if !ok {
			continue
		}
		species[met.SpeciesID()] = append(species[met.SpeciesID()], met.Compartment)
	}
	for _, compartments := range species {
		if len(compartments) > 1 {
			for _, c := range compartments[1:] {
				if c != compartments[0] {
					return true
				}
			}
		}
	}
	return false
}

// SearchMetabolites resolves a species identifier to its compartment
// instances, in model order.  An unknown species yields a data error the
// evaluator treats as skip-and-continue.
func (m *Model) SearchMetabolites(speciesID string) ([]*Metabolite, error) {
	var out []*Metabolite
	for _, met := range m.metabolites {
		if met.SpeciesID() == speciesID {
			out = append(out, met)
		}
	}
	if len(out) == 0 {
		return nil, errors.New(errors.ErrCodeSpeciesUnresolved,
			"species not present in model").WithDetail(speciesID)
	}
	return out, nil
}

// ExchangeReactionID names the boundary exchange for a species.
func ExchangeReactionID(speciesID string) string {
	return fmt.Sprintf("%s%s_e", exchangePrefix, speciesID)
}
