package services

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
)

// AnalysisResult is the value returned by one analysis run. When Error is set
// no other field is meaningful. Nil pointers mark unavailable metrics.
type AnalysisResult struct {
	CronbachAlpha *float64 `json:"cronbach_alpha"`
	KMOValue      *float64 `json:"kmo_value"`
	BartlettChi2  *float64 `json:"bartlett_chi2"`
	BartlettP     *float64 `json:"bartlett_p"`
	BartlettDF    *int     `json:"bartlett_df,omitempty"`
	SampleCount   int      `json:"sample_count"`
	ItemCount     int      `json:"item_count"`
	ItemColumns   []int    `json:"item_columns"`
	Error         string   `json:"error,omitempty"`

	EFAPerformed           bool         `json:"efa_performed"`
	NFactors               *int         `json:"n_factors"`
	Factors                []FactorInfo `json:"factors"`
	Eigenvalues            []float64    `json:"eigenvalues"`
	LoadingsMatrix         [][]float64  `json:"loadings_matrix"`
	LoadingItems           []string     `json:"loading_items"`
	TotalVarianceExplained *float64     `json:"total_variance_explained"`
}

// AnalysisService sequences matrix construction, reliability, validity and
// factor analysis. It holds no state between runs.
type AnalysisService struct {
	logger  *zap.Logger
	reverse map[int]ScaleRange
}

// Option configures an AnalysisService.
type Option func(*AnalysisService)

// WithReverseKeyed reverse-scores the given questions before any metric is
// computed.
func WithReverseKeyed(keys map[int]ScaleRange) Option {
	return func(s *AnalysisService) { s.reverse = keys }
}

// NewAnalysisService constructs the service; a nil logger discards output.
func NewAnalysisService(logger *zap.Logger, opts ...Option) *AnalysisService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AnalysisService{logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunAnalysis is shorthand for NewAnalysisService(logger).Run(source).
func RunAnalysis(source RecordSource, logger *zap.Logger) *AnalysisResult {
	return NewAnalysisService(logger).Run(source)
}

// Run analyses a finished record source. It never panics and never returns
// nil: terminal problems are reported through AnalysisResult.Error and
// degenerate metrics are left nil.
func (s *AnalysisService) Run(source RecordSource) (result *AnalysisResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("analysis aborted", zap.Any("panic", r))
			result = &AnalysisResult{Error: fmt.Sprintf("analysis failed: %v", r)}
		}
	}()

	if source == nil {
		return failed(fmt.Errorf("no raw data source: %w", ErrInputUnavailable))
	}
	records, err := source.LoadRecords()
	if err != nil {
		s.logger.Warn("raw data unavailable", zap.Error(err))
		return failed(err)
	}

	matrix := BuildScoreMatrix(records, s.logger)
	if matrix.Items() == 0 {
		return failed(fmt.Errorf("no eligible question types in %d records: %w", len(records), ErrInputUnavailable))
	}
	if len(s.reverse) > 0 {
		matrix = matrix.ReverseKeyed(s.reverse)
		s.logger.Debug("reverse-keyed questions applied", zap.Int("questions", len(s.reverse)))
	}

	complete := matrix.CompleteCases()
	result = &AnalysisResult{
		SampleCount: complete.Samples(),
		ItemCount:   complete.Items(),
		ItemColumns: matrix.ItemColumns,
	}
	if complete.Samples() < MinSamples {
		return failed(fmt.Errorf("%d complete samples, at least %d required: %w", complete.Samples(), MinSamples, ErrInsufficientData))
	}
	if complete.Items() < MinItems {
		return failed(fmt.Errorf("%d item columns, at least %d required: %w", complete.Items(), MinItems, ErrInsufficientData))
	}
	s.logger.Info("analysing score matrix",
		zap.Int("records", len(records)),
		zap.Int("samples", complete.Samples()),
		zap.Int("items", complete.Items()))

	s.stage("cronbach_alpha", func() error {
		alpha, err := CronbachAlpha(complete.Rows)
		if err != nil {
			return err
		}
		result.CronbachAlpha = finite(alpha)
		return nil
	})

	input, dropped, err := PrepareValidityInput(complete)
	if len(dropped) > 0 {
		s.logger.Warn("excluding zero-variance columns", zap.Strings("columns", dropped))
	}
	if err != nil {
		s.logger.Warn("validity and factor analysis unavailable", zap.Error(err))
		return result
	}

	s.stage("kmo", func() error {
		kmo, err := KMO(input)
		if err != nil {
			return err
		}
		s.logger.Debug("per-item kmo", zap.Strings("columns", input.Columns), zap.Float64s("kmo", kmo.PerItem))
		result.KMOValue = finite(kmo.Overall)
		return nil
	})

	s.stage("bartlett", func() error {
		b, err := Bartlett(input)
		if err != nil {
			return err
		}
		result.BartlettChi2 = finite(b.ChiSquare)
		result.BartlettP = finite(b.PValue)
		df := b.DF
		result.BartlettDF = &df
		return nil
	})

	s.stage("efa", func() error {
		// Factor alphas delete listwise over their own columns only.
		return s.factorAnalysis(input, matrix.Subset(input.Columns), result)
	})

	return result
}

func (s *AnalysisService) factorAnalysis(input, observed *ScoreMatrix, result *AnalysisResult) error {
	ext, err := ExtractFactors(input)
	if ext != nil {
		result.Eigenvalues = ext.Eigenvalues
	}
	if err != nil {
		return err
	}
	if !ext.Performed() {
		s.logger.Info("single-factor structure, skipping rotation", zap.Int("kaiser_factors", ext.NFactors))
		return nil
	}
	if !ext.Rotation.Converged {
		s.logger.Warn("varimax did not converge", zap.Int("iterations", ext.Rotation.Iterations))
	}

	assignment, err := AssignFactors(observed, ext, s.logger)
	if err != nil {
		return err
	}

	rotated := ext.Rotation.Rotated
	p, k := rotated.Dims()
	loadings := make([][]float64, p)
	for i := 0; i < p; i++ {
		loadings[i] = make([]float64, k)
		for f := 0; f < k; f++ {
			loadings[i][f] = rotated.At(i, f)
		}
	}

	nFactors := ext.NFactors
	result.EFAPerformed = true
	result.NFactors = &nFactors
	result.Factors = assignment.Factors
	result.LoadingsMatrix = loadings
	result.LoadingItems = append([]string(nil), input.Columns...)
	result.TotalVarianceExplained = finite(assignment.TotalVarianceExplained)
	return nil
}

// stage runs one metric in isolation: errors and panics are logged at warn
// and never reach sibling stages.
func (s *AnalysisService) stage(name string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("analysis stage panicked", zap.String("stage", name), zap.Any("panic", r))
		}
	}()
	if err := fn(); err != nil {
		if errors.Is(err, ErrMetricUnavailable) {
			s.logger.Warn("metric unavailable", zap.String("stage", name), zap.Error(err))
			return
		}
		s.logger.Warn("analysis stage failed", zap.String("stage", name), zap.Error(err))
	}
}

func failed(err error) *AnalysisResult {
	return &AnalysisResult{Error: err.Error()}
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
