// Package design exposes the anti-metabolite knockout search as an
// application service: build the candidate universe, run the genetic
// search, minimize the archived solutions and report their metrics.
package design

import (
	"context"
	"time"

	"github.com/turtacn/antimet/internal/domain/design"
	"github.com/turtacn/antimet/internal/domain/manipulation"
	"github.com/turtacn/antimet/internal/domain/metabolic"
	"github.com/turtacn/antimet/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/antimet/pkg/errors"
)

// SearchRequest describes one knockout search run.
type SearchRequest struct {
	// Target and Substrate name the product reaction and the substrate
	// exchange used for the reported yield.
	Target    string
	Substrate string

	// Universe selection.
	MinCarbons   int
	Compartments []string
	Exclude      map[string]bool

	// TopN bounds the archived solutions that are minimized and reported
	// (default 10).
	TopN int

	Search design.SearchConfig
}

// SearchReport is the result of one run: the baseline fitness of the
// unperturbed model plus the minimized, measured solutions, best first.
type SearchReport struct {
	RunID       string
	Baseline    float64
	Evaluations int
	Elapsed     time.Duration
	Solutions   []design.SolutionMetrics
}

// Service runs knockout searches over one metabolic model.
type Service struct {
	model     *metabolic.Model
	simulator metabolic.Simulator
	analyzer  metabolic.VariabilityAnalyzer
	reference *metabolic.FluxDistribution
	objective design.ObjectiveFunction
	essential map[string]bool
	opts      manipulation.Options
	log       logging.Logger
}

// NewService wires the service.  analyzer may be nil to skip the flux
// variability columns.
func NewService(model *metabolic.Model, simulator metabolic.Simulator,
	analyzer metabolic.VariabilityAnalyzer, reference *metabolic.FluxDistribution,
	objective design.ObjectiveFunction, essential map[string]bool,
	opts manipulation.Options, log logging.Logger) *Service {

	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Service{
		model:     model,
		simulator: simulator,
		analyzer:  analyzer,
		reference: reference,
		objective: objective,
		essential: essential,
		opts:      opts,
		log:       log.Named("design.service"),
	}
}

// RunKnockoutSearch executes the full run.  Archived solutions are
// minimized before reporting; duplicates that minimize to the same species
// set are reported once.
func (s *Service) RunKnockoutSearch(ctx context.Context, req SearchRequest) (*SearchReport, error) {
	if req.Target == "" {
		return nil, errors.InvalidParam("target reaction is required")
	}
	if _, ok := s.model.Reaction(req.Target); !ok {
		return nil, errors.NotFound("target reaction not in model").WithDetail(req.Target)
	}
	if req.TopN <= 0 {
		req.TopN = 10
	}

	universe := design.CandidateUniverse(s.model, req.MinCarbons, req.Compartments, req.Exclude)
	evaluator := design.NewEvaluator(s.model, s.simulator, s.reference,
		s.objective, s.essential, s.opts, s.log)
	searcher := design.NewSearcher(evaluator, universe, s.log)

	baseline := evaluator.Baseline(ctx)

	result, err := searcher.Run(ctx, req.Search)
	if err != nil {
		return nil, err
	}

	reporter := design.NewReporter(s.model, s.simulator, s.analyzer,
		s.reference, s.essential, s.opts, req.Target, req.Substrate)

	report := &SearchReport{
		RunID:       result.RunID,
		Baseline:    baseline,
		Evaluations: result.Evaluations,
		Elapsed:     result.Elapsed,
	}
	seen := map[string]bool{}
	for _, sol := range result.Solutions {
		if len(report.Solutions) >= req.TopN {
			break
		}
		if sol.Fitness <= baseline {
			continue // no better than doing nothing
		}
		minimized := design.Solution{
			Species: design.MinimizeSolution(ctx, evaluator, sol.Species),
			Fitness: sol.Fitness,
		}
		if seen[minimized.Key()] {
			continue
		}
		seen[minimized.Key()] = true

		metrics, err := reporter.Report(ctx, minimized)
		if err != nil {
			s.log.Warn("solution could not be measured, dropped",
				logging.String("species", minimized.Key()), logging.Err(err))
			continue
		}
		report.Solutions = append(report.Solutions, metrics)
	}

	s.log.Info("knockout search finished",
		logging.String("run_id", report.RunID),
		logging.Int("evaluations", report.Evaluations),
		logging.Int("solutions", len(report.Solutions)),
		logging.Float64("baseline", baseline))
	return report, nil
}
