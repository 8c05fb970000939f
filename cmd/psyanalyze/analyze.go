package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/soaringjerry/psymetrics/internal/services"
	"github.com/soaringjerry/psymetrics/internal/utils"
)

var (
	anOutputJSON bool
	anWorkers    int
	anLang       string
)

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().BoolVar(&anOutputJSON, "json", false, "Output results as JSON")
	analyzeCmd.Flags().IntVar(&anWorkers, "workers", 0, "Files analysed concurrently (defaults to analysis.workers)")
	analyzeCmd.Flags().StringVar(&anLang, "lang", "en", "Locale for interpretation labels (en, zh)")
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze FILE...",
	Short: "Analyse one or more raw-data files",
	Long: `Analyse raw-data JSON Lines files. Several files are analysed concurrently;
results are printed in the order the files were given.

Examples:
  # Text summary
  psyanalyze analyze survey.jsonl

  # JSON output for two waves, Chinese labels
  psyanalyze analyze --json --lang zh wave1.jsonl wave2.jsonl

  # Questions 3 and 5 are reverse-keyed on a 1-7 scale
  psyanalyze analyze --reverse 3,5 --scale 1-7 survey.jsonl`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

type fileResult struct {
	Path           string                   `json:"path"`
	Elapsed        time.Duration            `json:"-"`
	Result         *services.AnalysisResult `json:"result"`
	Interpretation *services.Interpretation `json:"interpretation"`
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	workers := anWorkers
	if workers <= 0 {
		workers = cfg.Analysis.Workers
	}
	locale := utils.DetermineLocale(anLang, "", utils.SupportedLocales, "en")
	keys, err := reverseKeys()
	if err != nil {
		return err
	}

	results, err := analyzeFiles(cmd.Context(), args, workers, locale, keys, logger)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if anOutputJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	for i, r := range results {
		if i > 0 {
			fmt.Fprintln(out)
		}
		renderSummary(out, r, locale)
	}
	return nil
}

// analyzeFiles runs one analysis per path with at most workers in flight.
// A failed analysis is reported in its result, not as an error.
func analyzeFiles(ctx context.Context, paths []string, workers int, locale string, reverse map[int]services.ScaleRange, logger *zap.Logger) ([]fileResult, error) {
	results := make([]fileResult, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fileLogger := logger.With(zap.String("file", path))
			start := time.Now()
			svc := services.NewAnalysisService(fileLogger, services.WithReverseKeyed(reverse))
			res := svc.Run(services.FileSource{Path: path, Logger: fileLogger})
			results[i] = fileResult{
				Path:           path,
				Elapsed:        time.Since(start),
				Result:         res,
				Interpretation: services.Interpret(res, locale),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func renderSummary(w io.Writer, fr fileResult, locale string) {
	r := fr.Result
	fmt.Fprintf(w, "== %s\n", fr.Path)
	if r.Error != "" {
		fmt.Fprintf(w, "error: %s\n", r.Error)
		return
	}
	in := fr.Interpretation

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "samples\t%d\n", r.SampleCount)
	fmt.Fprintf(tw, "items\t%d\n", r.ItemCount)
	fmt.Fprintf(tw, "cronbach alpha\t%s\t%s\n", optional(r.CronbachAlpha, 3), bandLabel(in.AlphaBand))
	fmt.Fprintf(tw, "kmo\t%s\t%s\n", optional(r.KMOValue, 3), bandLabel(in.KMOBand))
	bartlett := "n/a"
	if r.BartlettChi2 != nil && r.BartlettDF != nil {
		bartlett = fmt.Sprintf("chi2=%s df=%d p=%s", optional(r.BartlettChi2, 2), *r.BartlettDF, optional(r.BartlettP, 4))
	}
	fmt.Fprintf(tw, "bartlett\t%s\t%s\n", bartlett, bandLabel(in.BartlettBand))
	_ = tw.Flush()

	if r.EFAPerformed && r.NFactors != nil {
		fmt.Fprintf(w, "factors: %d (%.1f%% of variance)\n", *r.NFactors, deref(r.TotalVarianceExplained))
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "  id\tname\titems\talpha\teigenvalue\tvariance %")
		for _, f := range r.Factors {
			fmt.Fprintf(tw, "  %d\t%s\t%s\t%s\t%.3f\t%.1f\n",
				f.FactorID, f.FactorName, strings.Join(f.Items, ","), optional(f.CronbachAlpha, 3), f.Eigenvalue, f.VarianceExplained)
		}
		_ = tw.Flush()
	}
	for _, n := range in.Notes {
		fmt.Fprintf(w, "note: %s\n", n)
	}
}

func optional(v *float64, prec int) string {
	if v == nil {
		return "n/a"
	}
	return strconv.FormatFloat(*v, 'f', prec, 64)
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func bandLabel(b *services.Band) string {
	if b == nil {
		return ""
	}
	return b.Label
}
