package design

import (
	"context"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/antimet/internal/domain/metabolic"
	"github.com/turtacn/antimet/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/antimet/pkg/errors"
)

// CandidateUniverse selects the species the search may target: every
// species with at least minCarbons carbon atoms in one of the given
// compartments, minus the excluded set.  The result is sorted, so a fixed
// seed yields a fully reproducible search.
func CandidateUniverse(model *metabolic.Model, minCarbons int,
	compartments []string, exclude map[string]bool) []string {

	wanted := map[string]bool{}
	for _, c := range compartments {
		wanted[c] = true
	}
	seen := map[string]bool{}
	for _, met := range model.Metabolites() {
		if len(wanted) > 0 && !wanted[met.Compartment] {
			continue
		}
		if met.NumCarbons() < minCarbons {
			continue
		}
		species := met.SpeciesID()
		if exclude[species] {
			continue
		}
		seen[species] = true
	}
	universe := make([]string, 0, len(seen))
	for s := range seen {
		universe = append(universe, s)
	}
	sort.Strings(universe)
	return universe
}

// Solution is one archived candidate with its fitness.
type Solution struct {
	Species []string
	Fitness float64
}

// Key is the canonical identity of the species set, independent of order.
func (s Solution) Key() string {
	sorted := append([]string(nil), s.Species...)
	sort.Strings(sorted)
	return strings.Join(sorted, "+")
}

// SearchConfig tunes the genetic search.  Zero values select defaults.
type SearchConfig struct {
	PopulationSize int     // default 50
	MaxEvaluations int     // default 2000
	MaxTargets     int     // max species per candidate, default 5
	MutationRate   float64 // default 0.3
	CrossoverRate  float64 // default 0.7
	TournamentSize int     // default 2
	ArchiveSize    int     // default 100
	Seed           int64   // 0 selects a time-based seed

	// StopFitness terminates early once a solution reaches it; zero
	// disables the predicate.
	StopFitness float64
}

func (c *SearchConfig) defaults() {
	if c.PopulationSize <= 0 {
		c.PopulationSize = 50
	}
	if c.MaxEvaluations <= 0 {
		c.MaxEvaluations = 2000
	}
	if c.MaxTargets <= 0 {
		c.MaxTargets = 5
	}
	if c.MutationRate <= 0 {
		c.MutationRate = 0.3
	}
	if c.CrossoverRate <= 0 {
		c.CrossoverRate = 0.7
	}
	if c.TournamentSize <= 0 {
		c.TournamentSize = 2
	}
	if c.ArchiveSize <= 0 {
		c.ArchiveSize = 100
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
}

// SearchResult carries the archive and run bookkeeping.
type SearchResult struct {
	RunID       string
	Solutions   []Solution
	Evaluations int
	Elapsed     time.Duration
}

// Best returns the top archived solution.
func (r *SearchResult) Best() (Solution, bool) {
	if len(r.Solutions) == 0 {
		return Solution{}, false
	}
	return r.Solutions[0], true
}

// Searcher runs the genetic knockout search over a species universe.
type Searcher struct {
	evaluator *Evaluator
	universe  []string
	log       logging.Logger
}

// NewSearcher wires a searcher.
func NewSearcher(evaluator *Evaluator, universe []string, log logging.Logger) *Searcher {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Searcher{evaluator: evaluator, universe: universe, log: log.Named("design.search")}
}

// archive is a bounded, de-duplicated, fitness-sorted solution store.
type archive struct {
	limit int
	seen  map[string]bool
	items []Solution
}

func newArchive(limit int) *archive {
	return &archive{limit: limit, seen: map[string]bool{}}
}

func (a *archive) add(s Solution) {
	key := s.Key()
	if a.seen[key] {
		return
	}
	a.seen[key] = true
	a.items = append(a.items, s)
	sort.SliceStable(a.items, func(i, j int) bool {
		if a.items[i].Fitness != a.items[j].Fitness {
			return a.items[i].Fitness > a.items[j].Fitness
		}
		// Prefer smaller sets at equal fitness.
		return len(a.items[i].Species) < len(a.items[j].Species)
	})
	if len(a.items) > a.limit {
		dropped := a.items[len(a.items)-1]
		delete(a.seen, dropped.Key())
		a.items = a.items[:len(a.items)-1]
	}
}

// Run executes the search until the evaluation budget is spent, the stop
// fitness is reached, or the context is cancelled.
func (s *Searcher) Run(ctx context.Context, cfg SearchConfig) (*SearchResult, error) {
	cfg.defaults()
	if len(s.universe) == 0 {
		return nil, errors.InvalidParam("empty candidate universe")
	}

	start := time.Now()
	runID := uuid.NewString()
	rng := rand.New(rand.NewSource(cfg.Seed))
	arch := newArchive(cfg.ArchiveSize)
	log := s.log.With(logging.String("run_id", runID))
	log.Info("search started",
		logging.Int("universe", len(s.universe)),
		logging.Int("population", cfg.PopulationSize),
		logging.Int("max_evaluations", cfg.MaxEvaluations))

	evaluations := 0
	evaluate := func(species []string) (Solution, bool) {
		if err := ctx.Err(); err != nil {
			return Solution{}, false
		}
		sol := Solution{Species: species, Fitness: s.evaluator.Evaluate(ctx, species)}
		evaluations++
		arch.add(sol)
		return sol, true
	}
	stop := func() bool {
		if ctx.Err() != nil || evaluations >= cfg.MaxEvaluations {
			return true
		}
		if cfg.StopFitness > 0 && len(arch.items) > 0 &&
			arch.items[0].Fitness >= cfg.StopFitness {
			return true
		}
		return false
	}

	population := make([]Solution, 0, cfg.PopulationSize)
	for i := 0; i < cfg.PopulationSize && !stop(); i++ {
		sol, ok := evaluate(s.randomCandidate(rng, cfg.MaxTargets))
		if !ok {
			break
		}
		population = append(population, sol)
	}

	for !stop() {
		next := make([]Solution, 0, cfg.PopulationSize)
		// Elitism: the best archived solution survives unchanged.
		if len(arch.items) > 0 {
			next = append(next, arch.items[0])
		}
		for len(next) < cfg.PopulationSize && !stop() {
			parentA := s.tournament(rng, population, cfg.TournamentSize)
			parentB := s.tournament(rng, population, cfg.TournamentSize)

			child := append([]string(nil), parentA.Species...)
			if rng.Float64() < cfg.CrossoverRate {
				child = s.crossover(rng, parentA.Species, parentB.Species, cfg.MaxTargets)
			}
			if rng.Float64() < cfg.MutationRate {
				child = s.mutate(rng, child, cfg.MaxTargets)
			}
			sol, ok := evaluate(child)
			if !ok {
				break
			}
			next = append(next, sol)
		}
		if len(next) == 0 {
			break
		}
		population = next
	}

	result := &SearchResult{
		RunID:       runID,
		Solutions:   arch.items,
		Evaluations: evaluations,
		Elapsed:     time.Since(start),
	}
	best, _ := result.Best()
	log.Info("search finished",
		logging.Int("evaluations", result.Evaluations),
		logging.Int("archived", len(result.Solutions)),
		logging.Float64("best_fitness", best.Fitness),
		logging.Duration("elapsed", result.Elapsed))
	return result, nil
}

// randomCandidate draws a set of 1..maxTargets distinct species.
func (s *Searcher) randomCandidate(rng *rand.Rand, maxTargets int) []string {
	size := 1 + rng.Intn(maxTargets)
	if size > len(s.universe) {
		size = len(s.universe)
	}
	picked := map[int]bool{}
	out := make([]string, 0, size)
	for len(out) < size {
		i := rng.Intn(len(s.universe))
		if !picked[i] {
			picked[i] = true
			out = append(out, s.universe[i])
		}
	}
	sort.Strings(out)
	return out
}

// tournament returns the fittest of k randomly drawn individuals.
func (s *Searcher) tournament(rng *rand.Rand, population []Solution, k int) Solution {
	best := population[rng.Intn(len(population))]
	for i := 1; i < k; i++ {
		challenger := population[rng.Intn(len(population))]
		if challenger.Fitness > best.Fitness {
			best = challenger
		}
	}
	return best
}

// crossover unions the parents and samples a child set from it.
func (s *Searcher) crossover(rng *rand.Rand, a, b []string, maxTargets int) []string {
	union := map[string]bool{}
	for _, sp := range a {
		union[sp] = true
	}
	for _, sp := range b {
		union[sp] = true
	}
	pool := make([]string, 0, len(union))
	for sp := range union {
		pool = append(pool, sp)
	}
	sort.Strings(pool)
	rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	size := 1 + rng.Intn(maxTargets)
	if size > len(pool) {
		size = len(pool)
	}
	child := append([]string(nil), pool[:size]...)
	sort.Strings(child)
	return child
}

// mutate adds, removes or swaps one species.
func (s *Searcher) mutate(rng *rand.Rand, species []string, maxTargets int) []string {
	out := append([]string(nil), species...)
	switch op := rng.Intn(3); {
	case op == 0 && len(out) < maxTargets: // add
		out = append(out, s.universe[rng.Intn(len(s.universe))])
	case op == 1 && len(out) > 1: // remove
		i := rng.Intn(len(out))
		out = append(out[:i], out[i+1:]...)
	default: // swap
		i := rng.Intn(len(out))
		out[i] = s.universe[rng.Intn(len(s.universe))]
	}
	// Re-canonicalize: sort and drop duplicates from add/swap.
	sort.Strings(out)
	dedup := out[:0]
	for i, sp := range out {
		if i == 0 || sp != out[i-1] {
			dedup = append(dedup, sp)
		}
	}
	return dedup
}
