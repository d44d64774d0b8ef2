package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	appdesign "github.com/turtacn/antimet/internal/application/design"
	"github.com/turtacn/antimet/internal/domain/design"
	"github.com/turtacn/antimet/internal/domain/manipulation"
	"github.com/turtacn/antimet/internal/domain/metabolic"
	"github.com/turtacn/antimet/pkg/errors"
)

var (
	designModelPath string
	designTarget    string
	designSubstrate string
	designExclude   []string
	designTopN      int
)

// NewDesignCmd creates the design command.
func NewDesignCmd() *cobra.Command {
	designCmd := &cobra.Command{
		Use:   "design",
		Short: "Search a metabolic model for anti-metabolite targets",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the knockout search and report the best solutions",
		RunE:  runDesign,
	}
	runCmd.Flags().StringVar(&designModelPath, "model", "", "metabolic model JSON file (required)")
	runCmd.Flags().StringVar(&designTarget, "target", "", "product reaction ID (required)")
	runCmd.Flags().StringVar(&designSubstrate, "substrate", "", "substrate exchange reaction ID (required)")
	runCmd.Flags().StringSliceVar(&designExclude, "exclude", nil, "species excluded from the candidate universe")
	runCmd.Flags().IntVar(&designTopN, "top", 10, "solutions to minimize and report")
	runCmd.MarkFlagRequired("model")
	runCmd.MarkFlagRequired("target")
	runCmd.MarkFlagRequired("substrate")

	designCmd.AddCommand(runCmd)
	return designCmd
}

func runDesign(cmd *cobra.Command, _ []string) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	cfg := cliCtx.Config

	bundle, err := metabolic.LoadModelFile(designModelPath)
	if err != nil {
		return err
	}
	if bundle.Reference == nil {
		return errors.New(errors.ErrCodeValidation,
			"model file carries no reference flux distribution").WithDetail(designModelPath)
	}

	simulator := metabolic.NewReferenceSimulator(bundle.Reference.Fluxes)
	svc := appdesign.NewService(bundle.Model, simulator, simulator, bundle.Reference,
		design.BiomassProductCoupledYield{
			Biomass: bundle.Model.Objective, Product: designTarget, Substrate: designSubstrate,
		},
		bundle.Essential,
		manipulation.Options{
			Fraction:          cfg.Design.Fraction,
			IgnoreTransport:   cfg.Design.IgnoreTransport,
			AllowAccumulation: cfg.Design.AllowAccumulation,
		},
		cliCtx.Logger)

	exclude := map[string]bool{}
	for _, s := range designExclude {
		exclude[s] = true
	}

	report, err := svc.RunKnockoutSearch(cmd.Context(), appdesign.SearchRequest{
		Target:       designTarget,
		Substrate:    designSubstrate,
		MinCarbons:   cfg.Design.MinCarbons,
		Compartments: cfg.Design.Compartments,
		Exclude:      exclude,
		TopN:         designTopN,
		Search: design.SearchConfig{
			PopulationSize: cfg.Design.PopulationSize,
			MaxEvaluations: cfg.Design.MaxEvaluations,
			MaxTargets:     cfg.Design.MaxTargets,
			ArchiveSize:    cfg.Design.ArchiveSize,
			Seed:           cfg.Design.Seed,
		},
	})
	if err != nil {
		return err
	}

	if cliCtx.Output == "json" {
		return printJSON(cmd, report)
	}
	fmt.Fprintf(cmd.OutOrStdout(),
		"run %s: %d evaluations in %s, baseline fitness %.4f\n",
		report.RunID, report.Evaluations, report.Elapsed.Round(time.Millisecond), report.Baseline)
	if len(report.Solutions) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no solution improved on the baseline")
		return nil
	}
	rows := make([][]string, 0, len(report.Solutions))
	for i, sol := range report.Solutions {
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			strings.Join(sol.Species, ", "),
			fmt.Sprintf("%.4f", sol.Fitness),
			fmt.Sprintf("%.4f", sol.TargetFlux),
			fmt.Sprintf("%.4f", sol.TargetYield),
			fmt.Sprintf("%.4f", sol.GrowthRate),
			fmt.Sprintf("[%.3f, %.3f]", sol.FVAMin, sol.FVAMax),
		})
	}
	fmt.Fprint(cmd.OutOrStdout(), FormatTable(
		[]string{"Rank", "Species", "Fitness", "Target flux", "Yield", "Growth", "FVA"},
		rows))
	return nil
}
