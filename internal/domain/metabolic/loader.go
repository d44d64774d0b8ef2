package metabolic

import (
	"encoding/json"
	"os"

	"github.com/turtacn/antimet/pkg/errors"
)

// modelDocument is the JSON form a model is shipped in.  Besides the
// stoichiometry it may carry the wild-type reference flux distribution and
// the essential-species list the design search needs.
type modelDocument struct {
	ID          string               `json:"id"`
	Objective   string               `json:"objective"`
	Metabolites []metaboliteDocument `json:"metabolites"`
	Reactions   []reactionDocument   `json:"reactions"`
	Reference   map[string]float64   `json:"reference,omitempty"`
	Essential   []string             `json:"essential,omitempty"`
}

type metaboliteDocument struct {
	ID          string         `json:"id"`
	Name        string         `json:"name,omitempty"`
	Compartment string         `json:"compartment"`
	Elements    map[string]int `json:"elements,omitempty"`
}

type reactionDocument struct {
	ID          string             `json:"id"`
	Name        string             `json:"name,omitempty"`
	LowerBound  float64            `json:"lower_bound"`
	UpperBound  float64            `json:"upper_bound"`
	Metabolites map[string]float64 `json:"metabolites"`
}

// ModelBundle is a loaded model with its optional annotations.
type ModelBundle struct {
	Model *Model

	// Reference is the wild-type flux distribution, nil when the document
	// carries none.
	Reference *FluxDistribution

	// Essential marks species the organism cannot grow without.
	Essential map[string]bool
}

// LoadModelFile reads a model document from a JSON file.  Reaction order in
// the document is preserved, so downstream runs are reproducible.
func LoadModelFile(path string) (*ModelBundle, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSourceUnavailable,
			"cannot read model file").WithDetail(path)
	}
	var doc modelDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization,
			"cannot parse model file").WithDetail(path)
	}

	m := NewModel(doc.ID)
	m.Objective = doc.Objective
	for _, md := range doc.Metabolites {
		err := m.AddMetabolite(&Metabolite{
			ID:          md.ID,
			Name:        md.Name,
			Compartment: md.Compartment,
			Elements:    md.Elements,
		})
		if err != nil {
			return nil, err
		}
	}
	for _, rd := range doc.Reactions {
		err := m.AddReaction(&Reaction{
			ID:          rd.ID,
			Name:        rd.Name,
			LowerBound:  rd.LowerBound,
			UpperBound:  rd.UpperBound,
			Metabolites: rd.Metabolites,
		})
		if err != nil {
			return nil, err
		}
	}
	if doc.Objective != "" {
		if _, ok := m.Reaction(doc.Objective); !ok {
			return nil, errors.New(errors.ErrCodeValidation, "objective reaction not in model").
				WithDetail(doc.Objective)
		}
	}

	bundle := &ModelBundle{Model: m}
	if len(doc.Reference) > 0 {
		bundle.Reference = &FluxDistribution{
			Fluxes:    doc.Reference,
			Objective: doc.Reference[doc.Objective],
		}
	}
	if len(doc.Essential) > 0 {
		bundle.Essential = make(map[string]bool, len(doc.Essential))
		for _, s := range doc.Essential {
			bundle.Essential[s] = true
		}
	}
	return bundle, nil
}
