// Package compound defines the compound database records the fingerprint
// index is built from, and the Source abstraction that feeds the chunked
// index builder.  Sources expose stable ordering so that chunk ranges are
// reproducible across builds.
package compound

import (
	"context"
	"encoding/json"
	"os"

	"github.com/turtacn/antimet/pkg/errors"
)

// Record is a single compound row: identifier, structure and the physical
// annotations the screening filters consume.
type Record struct {
	// InChIKey is the primary identifier of the compound.
	InChIKey string `json:"inchi_key"`

	// Names lists synonyms, first entry preferred for display.
	Names []string `json:"names,omitempty"`

	// SMILES is the structure string the toolkit parses.
	SMILES string `json:"smiles"`

	// Solubility is the aqueous solubility as logS (mol/L).
	Solubility float64 `json:"solubility"`

	// NumAtoms and NumBonds are precomputed sizes used by the delta
	// filters; zero values mean "derive from the structure".
	NumAtoms int `json:"num_atoms,omitempty"`
	NumBonds int `json:"num_bonds,omitempty"`
}

// DisplayName returns the preferred synonym, falling back to the InChIKey.
func (r Record) DisplayName() string {
	if len(r.Names) > 0 {
		return r.Names[0]
	}
	return r.InChIKey
}

// Source is a read-only, stably ordered compound collection.  The index
// builder partitions [0, Count) into chunks and reads each with Slice, so
// two Slice calls over the same range must return the same rows.
type Source interface {
	// Count returns the total number of records.
	Count(ctx context.Context) (int, error)

	// Slice returns records in positions [start, end), clamped to the
	// collection size.  start > end is a caller bug and yields an error.
	Slice(ctx context.Context, start, end int) ([]Record, error)
}

// Catalog resolves individual compounds by identifier, used by the
// screening pipeline to hydrate search hits into full records.
type Catalog interface {
	// Get returns the record for an InChIKey, or an error with code
	// DAT_004 when the compound is unknown.
	Get(ctx context.Context, inchiKey string) (Record, error)
}

// MemorySource is an in-memory Source, used by tests and by small curated
// collections loaded at startup.
type MemorySource struct {
	records []Record
}

// NewMemorySource copies records into an immutable Source.
func NewMemorySource(records []Record) *MemorySource {
	out := make([]Record, len(records))
	copy(out, records)
	return &MemorySource{records: out}
}

// Count implements Source.
func (s *MemorySource) Count(_ context.Context) (int, error) {
	return len(s.records), nil
}

// Get implements Catalog.
func (s *MemorySource) Get(_ context.Context, inchiKey string) (Record, error) {
	for _, r := range s.records {
		if r.InChIKey == inchiKey {
			return r, nil
		}
	}
	return Record{}, errors.New(errors.ErrCodeCompoundNotFound, "compound not found").
		WithDetail(inchiKey)
}

// Slice implements Source.
func (s *MemorySource) Slice(_ context.Context, start, end int) ([]Record, error) {
	if start < 0 || start > end {
		return nil, errors.InvalidParam("invalid slice range").
			WithDetailf("start=%d end=%d", start, end)
	}
	if start > len(s.records) {
		start = len(s.records)
	}
	if end > len(s.records) {
		end = len(s.records)
	}
	return s.records[start:end], nil
}

// FileSource reads a JSON array of records from disk once and serves it from
// memory.  Intended for curated exports; large databases use the postgres
// source instead.
type FileSource struct {
	*MemorySource
	Path string
}

// NewFileSource loads the JSON file at path.
func NewFileSource(path string) (*FileSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSourceUnavailable,
			"cannot read compound file").WithDetail(path)
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSourceUnavailable,
			"cannot parse compound file").WithDetail(path)
	}
	return &FileSource{MemorySource: NewMemorySource(records), Path: path}, nil
}
