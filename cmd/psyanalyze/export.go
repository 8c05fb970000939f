package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/soaringjerry/psymetrics/internal/services"
)

var (
	exFormat string
	exOut    string
)

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVar(&exFormat, "format", "factors", "Export format: factors, loadings, eigenvalues or wide")
	exportCmd.Flags().StringVarP(&exOut, "out", "o", "", "Write CSV to this file instead of stdout")
}

var exportCmd = &cobra.Command{
	Use:   "export FILE",
	Short: "Export analysis tables as CSV",
	Long: `Analyse a raw-data file and export one table as CSV.

Formats:
  factors      one row per factor with members, alpha and variance share
  loadings     rotated loadings per item column
  eigenvalues  scree table with cumulative variance and Kaiser retention
  wide         the score matrix itself, one sample per row`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	_, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	keys, err := reverseKeys()
	if err != nil {
		return err
	}
	svc := services.NewAnalysisService(logger, services.WithReverseKeyed(keys))

	b, err := exportFile(args[0], exFormat, keys, svc)
	if err != nil {
		return err
	}
	if exOut == "" {
		_, err = cmd.OutOrStdout().Write(b)
		return err
	}
	return os.WriteFile(exOut, b, 0o644)
}

func exportFile(path, format string, reverse map[int]services.ScaleRange, svc *services.AnalysisService) ([]byte, error) {
	source := services.FileSource{Path: path}
	if format == "wide" {
		records, err := source.LoadRecords()
		if err != nil {
			return nil, err
		}
		m := services.BuildScoreMatrix(records, nil)
		if len(reverse) > 0 {
			m = m.ReverseKeyed(reverse)
		}
		return services.ExportWideCSV(m)
	}

	result := svc.Run(source)
	if result.Error != "" {
		return nil, fmt.Errorf("analyse %s: %s", path, result.Error)
	}
	switch format {
	case "factors":
		return services.ExportFactorsCSV(result)
	case "loadings":
		return services.ExportLoadingsCSV(result)
	case "eigenvalues":
		return services.ExportEigenvaluesCSV(result)
	}
	return nil, fmt.Errorf("unsupported format %q", format)
}
