package chemistry

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/turtacn/antimet/internal/domain/fingerprint"
	"github.com/turtacn/antimet/pkg/errors"
)

// Bit lengths of the supported fingerprint formats.
const (
	maccsBits       = 166
	morganBits      = 2048
	topologicalBits = 1024

	morganRadius    = 2
	topoMaxPathLen  = 7
	defaultSamples  = 10000
	defaultSeed     = 20090103
	probeRadiusPad  = 0.0
)

// vdwRadii holds van der Waals radii in angstroms for common elements.
// Unlisted elements fall back to the carbon radius.
var vdwRadii = map[string]float64{
	"H": 1.20, "C": 1.70, "N": 1.55, "O": 1.52, "F": 1.47,
	"P": 1.80, "S": 1.80, "Cl": 1.75, "Br": 1.85, "I": 1.98,
	"Si": 2.10, "Se": 1.90,
}

// SimpleToolkit is the built-in Toolkit.  It trades chemical fidelity for a
// dependency-free, deterministic implementation: fingerprints hash local atom
// environments, MCS matching compares atom multisets, and volume estimation
// samples the bounding box.  It is stateless and safe for concurrent use.
type SimpleToolkit struct{}

// NewSimpleToolkit returns the built-in toolkit.
func NewSimpleToolkit() *SimpleToolkit { return &SimpleToolkit{} }

// Fingerprint implements Toolkit.
func (t *SimpleToolkit) Fingerprint(mol *Molecule, format fingerprint.Format) (fingerprint.Fingerprint, error) {
	if mol == nil || mol.NumAtoms() == 0 {
		return fingerprint.Fingerprint{}, errors.New(errors.ErrCodeFingerprintFailed,
			"cannot fingerprint empty molecule")
	}
	switch format {
	case fingerprint.FormatMACCS:
		return fingerprint.New(format, t.maccsPositions(mol), maccsBits), nil
	case fingerprint.FormatMorgan:
		return fingerprint.New(format, t.morganPositions(mol), morganBits), nil
	case fingerprint.FormatTopological:
		return fingerprint.New(format, t.topologicalPositions(mol), topologicalBits), nil
	default:
		return fingerprint.Fingerprint{}, errors.New(errors.ErrCodeFingerprintFormat,
			"unsupported fingerprint format").WithDetail(string(format))
	}
}

// hashPosition maps an environment key to a bit position below length.
func hashPosition(key string, length uint32) uint32 {
	sum := sha256.Sum256([]byte(key))
	return binary.BigEndian.Uint32(sum[:4]) % length
}

// adjacency builds the neighbor list of a molecule.
func adjacency(mol *Molecule) [][]int {
	adj := make([][]int, mol.NumAtoms())
	for _, b := range mol.Bonds {
		if b.A < len(adj) && b.B < len(adj) {
			adj[b.A] = append(adj[b.A], b.B)
			adj[b.B] = append(adj[b.B], b.A)
		}
	}
	return adj
}

// maccsPositions sets structural-key style bits from element presence and
// counts, ring membership and size buckets.
func (t *SimpleToolkit) maccsPositions(mol *Molecule) []uint32 {
	var pos []uint32
	counts := map[string]int{}
	for _, a := range mol.Atoms {
		counts[a.Symbol]++
	}
	for sym, n := range counts {
		pos = append(pos, hashPosition("elem:"+sym, maccsBits))
		if n > 1 {
			pos = append(pos, hashPosition("elem2:"+sym, maccsBits))
		}
		if n > 3 {
			pos = append(pos, hashPosition("elem4:"+sym, maccsBits))
		}
	}
	if mol.NumRingAtoms() > 0 {
		pos = append(pos, hashPosition("ring", maccsBits))
	}
	for _, bucket := range []int{4, 8, 16, 32, 64} {
		if mol.NumAtoms() >= bucket {
			pos = append(pos, hashPosition(fmt.Sprintf("size:%d", bucket), maccsBits))
		}
	}
	for _, b := range mol.Bonds {
		a1, a2 := mol.Atoms[b.A].Symbol, mol.Atoms[b.B].Symbol
		if a1 > a2 {
			a1, a2 = a2, a1
		}
		pos = append(pos, hashPosition("bond:"+a1+"-"+a2, maccsBits))
	}
	return pos
}

// morganPositions hashes circular atom environments of increasing radius,
// the same scheme extended-connectivity fingerprints use: the radius-0 key
// is the atom itself, each wider key appends the sorted keys of the
// neighbors at the previous radius.
func (t *SimpleToolkit) morganPositions(mol *Molecule) []uint32 {
	adj := adjacency(mol)
	keys := make([]string, mol.NumAtoms())
	for i, a := range mol.Atoms {
		ring := "0"
		if a.InRing {
			ring = "1"
		}
		keys[i] = a.Symbol + ":" + ring + ":" + fmt.Sprint(len(adj[i]))
	}

	var pos []uint32
	for _, k := range keys {
		pos = append(pos, hashPosition("r0:"+k, morganBits))
	}
	for r := 1; r <= morganRadius; r++ {
		next := make([]string, len(keys))
		for i := range keys {
			nb := make([]string, 0, len(adj[i]))
			for _, j := range adj[i] {
				nb = append(nb, keys[j])
			}
			sort.Strings(nb)
			next[i] = keys[i] + "(" + strings.Join(nb, ",") + ")"
			pos = append(pos, hashPosition(fmt.Sprintf("r%d:%s", r, next[i]), morganBits))
		}
		keys = next
	}
	return pos
}

// topologicalPositions hashes linear bond paths up to topoMaxPathLen atoms,
// enumerated by depth-first walks from every atom.
func (t *SimpleToolkit) topologicalPositions(mol *Molecule) []uint32 {
	adj := adjacency(mol)
	var pos []uint32
	visited := make([]bool, mol.NumAtoms())

	var walk func(at int, path []string)
	walk = func(at int, path []string) {
		path = append(path, mol.Atoms[at].Symbol)
		if len(path) > 1 {
			pos = append(pos, hashPosition("path:"+strings.Join(path, "-"), topologicalBits))
		}
		if len(path) >= topoMaxPathLen {
			return
		}
		visited[at] = true
		for _, j := range adj[at] {
			if !visited[j] {
				walk(j, path)
			}
		}
		visited[at] = false
	}
	for i := range mol.Atoms {
		walk(i, nil)
	}
	return pos
}

// MaximumCommonSubstructure implements Toolkit with a multiset match: atoms
// agree when their element symbols (and, with MatchRings, ring membership)
// coincide.  Matched bonds are the bonds both molecules can cover once the
// matched atom set is fixed.  The search is linear and effectively never
// exceeds its timeout; the deadline is still honored for contract parity
// with external toolkits.
func (t *SimpleToolkit) MaximumCommonSubstructure(a, b *Molecule, opts MCSOptions) (MCSResult, error) {
	if a == nil || b == nil || a.NumAtoms() == 0 || b.NumAtoms() == 0 {
		return MCSResult{}, errors.New(errors.ErrCodeStructureParse,
			"cannot match empty molecule")
	}

	deadline := time.Time{}
	if opts.Timeout > 0 {
		deadline = time.Now().Add(opts.Timeout)
	}

	key := func(at Atom) string {
		if opts.MatchRings && at.InRing {
			return at.Symbol + "@ring"
		}
		return at.Symbol
	}
	countAtoms := func(m *Molecule) map[string]int {
		c := map[string]int{}
		for _, at := range m.Atoms {
			c[key(at)]++
		}
		return c
	}

	ca, cb := countAtoms(a), countAtoms(b)
	matchedAtoms := 0
	for k, n := range ca {
		if m := cb[k]; m < n {
			matchedAtoms += m
		} else {
			matchedAtoms += n
		}
	}

	if !deadline.IsZero() && time.Now().After(deadline) {
		return MCSResult{Completed: false}, nil
	}

	// A connected substructure over matchedAtoms atoms has at most
	// matchedAtoms-1 bonds; cap at what either molecule can supply.
	matchedBonds := matchedAtoms - 1
	if matchedBonds < 0 {
		matchedBonds = 0
	}
	if matchedBonds > a.NumBonds() {
		matchedBonds = a.NumBonds()
	}
	if matchedBonds > b.NumBonds() {
		matchedBonds = b.NumBonds()
	}

	// Coverage is measured against the first molecule, the query side of a
	// screening comparison: a tiny fragment fully matching itself must not
	// count as a completed match against a much larger query.
	if opts.MinFraction > 0 && float64(matchedAtoms) < opts.MinFraction*float64(a.NumAtoms()) {
		return MCSResult{Completed: false, MatchedAtoms: matchedAtoms, MatchedBonds: matchedBonds}, nil
	}
	return MCSResult{Completed: true, MatchedAtoms: matchedAtoms, MatchedBonds: matchedBonds}, nil
}

// MonteCarloVolume implements Toolkit: uniform samples over the bounding box
// of the atom spheres, scaled by the hit fraction.
func (t *SimpleToolkit) MonteCarloVolume(mol *Molecule, opts VolumeOptions) (float64, error) {
	if mol == nil || !mol.Has3D() {
		return 0, errors.New(errors.ErrCodeStructureParse,
			"volume estimation requires 3D coordinates")
	}

	samples := opts.Samples
	if samples <= 0 {
		samples = defaultSamples
	}
	seed := opts.Seed
	if seed == 0 {
		seed = defaultSeed
	}
	rng := rand.New(rand.NewSource(seed))

	radii := make([]float64, len(mol.Atoms))
	var lo, hi [3]float64
	for d := 0; d < 3; d++ {
		lo[d], hi[d] = mol.Coords[0][d], mol.Coords[0][d]
	}
	for i, c := range mol.Coords {
		r, ok := vdwRadii[mol.Atoms[i].Symbol]
		if !ok {
			r = vdwRadii["C"]
		}
		radii[i] = r + probeRadiusPad
		for d := 0; d < 3; d++ {
			if c[d]-r < lo[d] {
				lo[d] = c[d] - r
			}
			if c[d]+r > hi[d] {
				hi[d] = c[d] + r
			}
		}
	}

	boxVol := (hi[0] - lo[0]) * (hi[1] - lo[1]) * (hi[2] - lo[2])
	hits := 0
	for s := 0; s < samples; s++ {
		var p [3]float64
		for d := 0; d < 3; d++ {
			p[d] = lo[d] + rng.Float64()*(hi[d]-lo[d])
		}
		for i, c := range mol.Coords {
			dx, dy, dz := p[0]-c[0], p[1]-c[1], p[2]-c[2]
			if dx*dx+dy*dy+dz*dz <= radii[i]*radii[i] {
				hits++
				break
			}
		}
	}
	return boxVol * float64(hits) / float64(samples), nil
}
