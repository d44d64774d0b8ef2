// Package screening exposes the anti-metabolite candidate search as an
// application service: parse the query structure, run the filter pipeline
// over the fingerprint index and return the ranked candidate rows.
package screening

import (
	"context"
	"time"

	"github.com/turtacn/antimet/internal/domain/chemistry"
	"github.com/turtacn/antimet/internal/domain/screening"
	"github.com/turtacn/antimet/internal/infrastructure/monitoring/logging"
)

// QueryObserver receives per-query timings for metrics export.
type QueryObserver interface {
	ObserveQuery(kind string, neighbors int, elapsed time.Duration)
}

// Service runs candidate searches with a fixed pipeline configuration.
type Service struct {
	pipeline *screening.Pipeline
	opts     screening.Options
	observer QueryObserver
	log      logging.Logger
}

// NewService wires the service.  observer may be nil.
func NewService(pipeline *screening.Pipeline, opts screening.Options,
	observer QueryObserver, log logging.Logger) *Service {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Service{pipeline: pipeline, opts: opts, observer: observer,
		log: log.Named("screening.service")}
}

// SearchClosestCompounds parses the query structure and returns the
// candidates passing every filter, best first.
func (s *Service) SearchClosestCompounds(ctx context.Context, smiles string) ([]screening.Candidate, error) {
	query, err := chemistry.ParseSMILES(smiles)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	candidates, err := s.pipeline.Screen(ctx, query, s.opts)
	if err != nil {
		return nil, err
	}
	if s.observer != nil {
		s.observer.ObserveQuery("screen", len(candidates), time.Since(start))
	}
	s.log.Info("candidate search finished",
		logging.Int("candidates", len(candidates)),
		logging.Duration("elapsed", time.Since(start)))
	return candidates, nil
}
