// Package chemistry defines the chemistry-toolkit boundary consumed by the
// similarity search engine and the candidate filter pipeline: molecular
// structures, fingerprint computation, maximum-common-substructure matching
// and Monte Carlo volume estimation.  A production deployment plugs a full
// cheminformatics toolkit in behind the Toolkit interface; the built-in
// SimpleToolkit in this package implements the same contract with
// deliberately simplified algorithms.
package chemistry

import (
	"strings"

	"github.com/turtacn/antimet/pkg/errors"
)

// Atom is a single atom in a molecular graph.
type Atom struct {
	// Symbol is the element symbol, e.g. "C", "N", "Cl".
	Symbol string

	// InRing marks ring membership, used by ring-constrained MCS matching.
	InRing bool
}

// Bond connects two atoms by index.
type Bond struct {
	A, B  int
	Order int
}

// Molecule is a parsed molecular structure.  Coords is populated only when
// 3D input was supplied; volume estimation requires it.
type Molecule struct {
	ID     string
	Atoms  []Atom
	Bonds  []Bond
	Coords [][3]float64
}

// NumAtoms returns the atom count.
func (m *Molecule) NumAtoms() int { return len(m.Atoms) }

// NumBonds returns the bond count.
func (m *Molecule) NumBonds() int { return len(m.Bonds) }

// NumRingAtoms returns the number of atoms marked as ring members.
func (m *Molecule) NumRingAtoms() int {
	n := 0
	for _, a := range m.Atoms {
		if a.InRing {
			n++
		}
	}
	return n
}

// Has3D reports whether 3D coordinates are available for every atom.
func (m *Molecule) Has3D() bool {
	return len(m.Coords) > 0 && len(m.Coords) == len(m.Atoms)
}

// twoLetter lists element symbols that occupy two characters in a SMILES
// string and must be consumed greedily.
var twoLetter = []string{"Cl", "Br", "Si", "Se"}

// ParseSMILES builds a Molecule from a SMILES string using a simplified
// reading: atoms are extracted in order, consecutive atoms are bonded, and
// ring-closure digits mark the atoms they enclose as ring members.  This is
// not a full SMILES parser; it preserves atom and bond counts and ring
// membership well enough for delta filters and simplified MCS matching.
func ParseSMILES(smiles string) (*Molecule, error) {
	if smiles == "" {
		return nil, errors.New(errors.ErrCodeStructureParse, "empty SMILES string")
	}

	mol := &Molecule{ID: smiles}
	ringOpen := map[byte][]int{} // ring-closure digit -> atom indices
	prev := -1

	i := 0
	for i < len(smiles) {
		c := smiles[i]
		switch {
		case c >= '0' && c <= '9':
			ringOpen[c] = append(ringOpen[c], len(mol.Atoms)-1)
			if len(ringOpen[c]) == 2 {
				markRing(mol, ringOpen[c][0], ringOpen[c][1])
				delete(ringOpen, c)
			}
			i++
		case c == '[' || c == ']' || c == '(' || c == ')' || c == '-' ||
			c == '=' || c == '#' || c == '/' || c == '\\' || c == '+' || c == '@' || c == 'H':
			i++
		case c >= 'A' && c <= 'Z':
			symbol := string(c)
			for _, tl := range twoLetter {
				if strings.HasPrefix(smiles[i:], tl) {
					symbol = tl
					break
				}
			}
			addAtom(mol, symbol, false, &prev)
			i += len(symbol)
		case c >= 'a' && c <= 'z':
			// Aromatic atoms are ring members by definition.
			addAtom(mol, strings.ToUpper(string(c)), true, &prev)
			i++
		default:
			i++
		}
	}

	if len(mol.Atoms) == 0 {
		return nil, errors.New(errors.ErrCodeStructureParse, "no atoms found in SMILES").
			WithDetail(smiles)
	}
	return mol, nil
}

func addAtom(mol *Molecule, symbol string, inRing bool, prev *int) {
	mol.Atoms = append(mol.Atoms, Atom{Symbol: symbol, InRing: inRing})
	idx := len(mol.Atoms) - 1
	if *prev >= 0 {
		mol.Bonds = append(mol.Bonds, Bond{A: *prev, B: idx, Order: 1})
	}
	*prev = idx
}

// markRing flags the atoms between two ring-closure positions (inclusive)
// and closes the ring with one extra bond.
func markRing(mol *Molecule, from, to int) {
	if from < 0 || to < 0 {
		return
	}
	if from > to {
		from, to = to, from
	}
	for i := from; i <= to && i < len(mol.Atoms); i++ {
		mol.Atoms[i].InRing = true
	}
	mol.Bonds = append(mol.Bonds, Bond{A: to, B: from, Order: 1})
}
