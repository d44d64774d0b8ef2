package cli

import (
	"context"
	"fmt"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	appindexing "github.com/turtacn/antimet/internal/application/indexing"
	appscreening "github.com/turtacn/antimet/internal/application/screening"
	"github.com/turtacn/antimet/internal/domain/chemistry"
	"github.com/turtacn/antimet/internal/domain/compound"
	"github.com/turtacn/antimet/internal/domain/index"
	"github.com/turtacn/antimet/internal/domain/screening"
	cacheredis "github.com/turtacn/antimet/internal/infrastructure/cache/redis"
	"github.com/turtacn/antimet/internal/infrastructure/database/postgres"
	"github.com/turtacn/antimet/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/antimet/internal/infrastructure/monitoring/prometheus"
	storageminio "github.com/turtacn/antimet/internal/infrastructure/storage/minio"
)

var (
	indexInput       string
	indexMetricsAddr string

	searchQuery      string
	searchMaxResults int
)

// NewIndexCmd creates the index command with its build and search
// subcommands.
func NewIndexCmd() *cobra.Command {
	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Build and query the compound fingerprint index",
	}

	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "Build the fingerprint index and write its snapshot",
		RunE:  runIndexBuild,
	}
	buildCmd.Flags().StringVar(&indexInput, "input", "", "compound JSON file (default: postgres source)")
	buildCmd.Flags().StringVar(&indexMetricsAddr, "metrics-addr", "", "expose prometheus metrics on this address during the build")

	searchCmd := &cobra.Command{
		Use:   "search",
		Short: "Search the index for close analogs of a query structure",
		RunE:  runIndexSearch,
	}
	searchCmd.Flags().StringVar(&indexInput, "input", "", "compound JSON file (default: postgres source)")
	searchCmd.Flags().StringVar(&searchQuery, "query", "", "query structure as SMILES (required)")
	searchCmd.Flags().IntVar(&searchMaxResults, "max-results", 20, "maximum candidates to print")
	searchCmd.MarkFlagRequired("query")

	indexCmd.AddCommand(buildCmd, searchCmd)
	return indexCmd
}

// indexDeps is the wired dependency set of the index commands.
type indexDeps struct {
	service  *appindexing.Service
	catalog  compound.Catalog
	toolkit  chemistry.Toolkit
	metrics  *prometheus.Metrics
	registry *promclient.Registry
	close    func()
}

// wireIndexDeps builds source, cache, store and builder from configuration.
// A JSON input file takes the place of the postgres source when given.
func wireIndexDeps(ctx context.Context, cliCtx *CLIContext) (*indexDeps, error) {
	cfg := cliCtx.Config
	log := cliCtx.Logger
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var source compound.Source
	var catalog compound.Catalog
	if indexInput != "" {
		fs, err := compound.NewFileSource(indexInput)
		if err != nil {
			return nil, err
		}
		source, catalog = fs, fs
	} else {
		pool, err := postgres.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		closers = append(closers, pool.Close)
		repo := postgres.NewCompoundRepository(pool)
		source, catalog = repo, repo
	}

	var cache index.FingerprintCache
	if cfg.Redis.Enabled {
		client, err := cacheredis.Connect(ctx, cfg.Redis)
		if err != nil {
			closeAll()
			return nil, err
		}
		closers = append(closers, func() { _ = client.Close() })
		cache = cacheredis.NewFingerprintCache(client, cfg.Redis.TTL)
	}

	var store index.SnapshotStore
	if cfg.MinIO.Enabled {
		client, err := storageminio.Connect(ctx, cfg.MinIO)
		if err != nil {
			closeAll()
			return nil, err
		}
		store = storageminio.NewSnapshotStore(client, cfg.MinIO.Bucket)
	} else {
		fsStore, err := index.NewFileSnapshotStore(cfg.Index.SnapshotDir)
		if err != nil {
			closeAll()
			return nil, err
		}
		store = fsStore
	}

	registry := promclient.NewRegistry()
	metrics := prometheus.New(registry)
	toolkit := chemistry.NewSimpleToolkit()
	builder := index.NewBuilder(source, toolkit, cache, metrics, log)
	service := appindexing.NewService(builder, store, index.BuilderOptions{
		ChunkSize: cfg.Index.ChunkSize,
		ShardSize: cfg.Index.ShardSize,
		Workers:   cfg.Index.Workers,
	}, log)

	return &indexDeps{
		service:  service,
		catalog:  catalog,
		toolkit:  toolkit,
		metrics:  metrics,
		registry: registry,
		close:    closeAll,
	}, nil
}

func runIndexBuild(cmd *cobra.Command, _ []string) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	deps, err := wireIndexDeps(ctx, cliCtx)
	if err != nil {
		return err
	}
	defer deps.close()

	if indexMetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(deps.registry, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(indexMetricsAddr, mux); err != nil {
				cliCtx.Logger.Warn("metrics listener stopped", logging.Err(err))
			}
		}()
	}

	cfg := cliCtx.Config
	_, report, err := deps.service.BuildIndex(ctx, cfg.IndexFormat(), cfg.IndexBucket())
	if err != nil {
		return err
	}

	if cliCtx.Output == "json" {
		return printJSON(cmd, report)
	}
	fmt.Fprintf(cmd.OutOrStdout(),
		"build %s: indexed %d of %d compounds (%d filtered, %d skipped) into %d shards in %s\n",
		report.BuildID, report.Indexed, report.Total, report.Filtered, report.Skipped,
		report.Shards, report.Elapsed.Round(time.Millisecond))
	return nil
}

func runIndexSearch(cmd *cobra.Command, _ []string) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	deps, err := wireIndexDeps(ctx, cliCtx)
	if err != nil {
		return err
	}
	defer deps.close()

	cfg := cliCtx.Config
	ix, err := deps.service.LoadOrBuildIndex(ctx, cfg.IndexFormat(), cfg.IndexBucket())
	if err != nil {
		return err
	}

	pipeline := screening.NewPipeline(ix, deps.catalog, deps.toolkit, cliCtx.Logger)
	svc := appscreening.NewService(pipeline, screening.Options{
		FpCut:         cfg.Screening.FpCut,
		AtomsDiff:     cfg.Screening.AtomsDiff,
		BondsDiff:     cfg.Screening.BondsDiff,
		SimilarityCut: cfg.Screening.SimilarityCut,
		MatchFraction: cfg.Screening.MatchFraction,
		MCSTimeout:    cfg.Screening.MCSTimeout,
		CompareVolume: cfg.Screening.CompareVolume,
		VolumeCut:     cfg.Screening.VolumeCut,
		Workers:       cfg.Screening.Workers,
	}, deps.metrics, cliCtx.Logger)

	candidates, err := svc.SearchClosestCompounds(ctx, searchQuery)
	if err != nil {
		return err
	}
	if len(candidates) > searchMaxResults {
		candidates = candidates[:searchMaxResults]
	}
	if len(candidates) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no candidates passed the filters")
		return nil
	}

	if cliCtx.Output == "json" {
		return printJSON(cmd, candidates)
	}
	rows := make([][]string, 0, len(candidates))
	for i, c := range candidates {
		volume := "-"
		if c.VolumeDiff != nil {
			volume = fmt.Sprintf("%.3f", *c.VolumeDiff)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			c.InChIKey,
			truncate(c.Name, 30),
			fmt.Sprintf("%.3f", c.TanimotoSimilarity),
			fmt.Sprintf("%.3f", c.StructuralSimilarity),
			fmt.Sprintf("%d", c.AtomsDiff),
			fmt.Sprintf("%d", c.BondsDiff),
			volume,
		})
	}
	fmt.Fprint(cmd.OutOrStdout(), FormatTable(
		[]string{"Rank", "InChIKey", "Name", "Tanimoto", "Structural", "dAtoms", "dBonds", "dVolume"},
		rows))
	return nil
}
