// Package screening implements the candidate filter pipeline that turns raw
// fingerprint search hits into a ranked candidate table: radius query, atom
// and bond count deltas, maximum-common-substructure similarity, and an
// optional Monte Carlo volume comparison for structures with 3D coordinates.
package screening

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/antimet/internal/domain/chemistry"
	"github.com/turtacn/antimet/internal/domain/compound"
	"github.com/turtacn/antimet/internal/domain/index"
	"github.com/turtacn/antimet/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/antimet/pkg/errors"
)

// Options tunes the pipeline stages.  Zero values select the defaults.
type Options struct {
	// FpCut is the maximum Tanimoto distance for the radius query
	// (default 0.5).
	FpCut float64

	// AtomsDiff and BondsDiff bound the absolute atom / bond count
	// difference between query and candidate (default 5 each).
	AtomsDiff int
	BondsDiff int

	// SimilarityCut is the minimum structural similarity from MCS
	// matching (default 0.6).
	SimilarityCut float64

	// MatchFraction is the minimum fraction of the query's atoms the
	// common substructure must cover; a match below it does not complete
	// and the candidate scores similarity zero (default 0.6).
	MatchFraction float64

	// MCSTimeout bounds each substructure search; an expired search
	// scores zero and the candidate is dropped by SimilarityCut
	// (default 60s).
	MCSTimeout time.Duration

	// CompareVolume enables the volume stage for queries with 3D
	// coordinates.  Candidates without coordinates pass unfiltered.
	CompareVolume bool

	// VolumeCut is the maximum relative volume difference
	// |vq - vc| / vq when the volume stage runs (default 0.5).
	VolumeCut float64

	// Workers bounds per-candidate parallelism (default 8).
	Workers int
}

func (o *Options) defaults() {
	if o.FpCut <= 0 {
		o.FpCut = 0.5
	}
	if o.AtomsDiff <= 0 {
		o.AtomsDiff = 5
	}
	if o.BondsDiff <= 0 {
		o.BondsDiff = 5
	}
	if o.SimilarityCut <= 0 {
		o.SimilarityCut = 0.6
	}
	if o.MatchFraction <= 0 {
		o.MatchFraction = 0.6
	}
	if o.MCSTimeout <= 0 {
		o.MCSTimeout = 60 * time.Second
	}
	if o.VolumeCut <= 0 {
		o.VolumeCut = 0.5
	}
	if o.Workers <= 0 {
		o.Workers = 8
	}
}

// Candidate is one surviving row of the screening output.
type Candidate struct {
	InChIKey             string
	Name                 string
	TanimotoSimilarity   float64
	StructuralSimilarity float64
	AtomsDiff            int
	BondsDiff            int

	// VolumeDiff is the relative volume difference, present only when the
	// volume stage ran for this candidate.
	VolumeDiff *float64
}

// Pipeline screens fingerprint search hits against a query structure.
type Pipeline struct {
	index   *index.ShardedIndex
	catalog compound.Catalog
	toolkit chemistry.Toolkit
	log     logging.Logger
}

// NewPipeline wires a pipeline over a built index.
func NewPipeline(ix *index.ShardedIndex, catalog compound.Catalog,
	toolkit chemistry.Toolkit, log logging.Logger) *Pipeline {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Pipeline{index: ix, catalog: catalog, toolkit: toolkit,
		log: log.Named("screening")}
}

// Screen runs the full pipeline for one query structure.  A query that
// cannot be featurized is a fatal error; a candidate that fails any stage is
// skipped, with data errors logged at warn level.  Rows come back sorted by
// descending Tanimoto similarity, ties broken by identifier.
func (p *Pipeline) Screen(ctx context.Context, query *chemistry.Molecule, opts Options) ([]Candidate, error) {
	opts.defaults()

	queryFP, err := p.toolkit.Fingerprint(query, p.index.Format())
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeFingerprintFailed,
			"cannot featurize query structure")
	}

	hits, err := p.index.RadiusNeighbors(ctx, queryFP, opts.FpCut)
	if err != nil {
		return nil, err
	}
	p.log.Debug("radius query finished",
		logging.Int("hits", len(hits)), logging.Float64("fp_cut", opts.FpCut))

	var queryVolume float64
	compareVolume := opts.CompareVolume && query.Has3D()
	if compareVolume {
		queryVolume, err = p.toolkit.MonteCarloVolume(query, chemistry.VolumeOptions{})
		if err != nil {
			return nil, err
		}
	}

	var out []Candidate
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for id, distance := range hits {
		id, distance := id, distance
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			row, ok := p.screenCandidate(gctx, query, queryVolume, compareVolume, id, distance, opts)
			if ok {
				mu.Lock()
				out = append(out, row)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].TanimotoSimilarity != out[j].TanimotoSimilarity {
			return out[i].TanimotoSimilarity > out[j].TanimotoSimilarity
		}
		return out[i].InChIKey < out[j].InChIKey
	})
	return out, nil
}

// screenCandidate runs the delta, MCS and volume stages for one hit.  The
// bool result reports whether the candidate survived; failures are logged,
// never propagated.
func (p *Pipeline) screenCandidate(ctx context.Context, query *chemistry.Molecule,
	queryVolume float64, compareVolume bool,
	id string, distance float64, opts Options) (Candidate, bool) {

	record, err := p.catalog.Get(ctx, id)
	if err != nil {
		p.log.Warn("candidate lookup failed", logging.String("compound", id), logging.Err(err))
		return Candidate{}, false
	}
	mol, err := chemistry.ParseSMILES(record.SMILES)
	if err != nil {
		p.log.Warn("candidate structure unparsable", logging.String("compound", id), logging.Err(err))
		return Candidate{}, false
	}

	atomsDiff := absInt(query.NumAtoms() - mol.NumAtoms())
	bondsDiff := absInt(query.NumBonds() - mol.NumBonds())
	if atomsDiff > opts.AtomsDiff || bondsDiff > opts.BondsDiff {
		return Candidate{}, false
	}

	mcs, err := p.toolkit.MaximumCommonSubstructure(query, mol, chemistry.MCSOptions{
		MatchRings:  true,
		MinFraction: opts.MatchFraction,
		Timeout:     opts.MCSTimeout,
	})
	if err != nil {
		p.log.Warn("substructure match failed", logging.String("compound", id), logging.Err(err))
		return Candidate{}, false
	}
	similarity := chemistry.StructuralSimilarity(mcs, query, mol)
	if similarity < opts.SimilarityCut {
		return Candidate{}, false
	}

	row := Candidate{
		InChIKey:             id,
		Name:                 record.DisplayName(),
		TanimotoSimilarity:   1.0 - distance,
		StructuralSimilarity: similarity,
		AtomsDiff:            atomsDiff,
		BondsDiff:            bondsDiff,
	}

	if compareVolume && mol.Has3D() && queryVolume > 0 {
		vol, err := p.toolkit.MonteCarloVolume(mol, chemistry.VolumeOptions{})
		if err != nil {
			p.log.Warn("volume estimation failed", logging.String("compound", id), logging.Err(err))
			return Candidate{}, false
		}
		dv := absFloat(queryVolume-vol) / queryVolume
		if dv > opts.VolumeCut {
			return Candidate{}, false
		}
		row.VolumeDiff = &dv
	}
	return row, true
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
