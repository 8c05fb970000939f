package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlphaBand(t *testing.T) {
	cases := []struct {
		alpha float64
		key   string
		sev   Severity
	}{
		{0.95, "alpha.excellent", SeveritySuccess},
		{0.9, "alpha.excellent", SeveritySuccess},
		{0.85, "alpha.good", SeveritySuccess},
		{0.7, "alpha.acceptable", SeverityInfo},
		{0.65, "alpha.marginal", SeverityWarning},
		{0.2, "alpha.poor", SeverityDanger},
		{-8, "alpha.poor", SeverityDanger},
	}
	for _, c := range cases {
		b := AlphaBand(c.alpha, "en")
		assert.Equal(t, c.key, b.Key, "alpha %v", c.alpha)
		assert.Equal(t, c.sev, b.Severity, "alpha %v", c.alpha)
		assert.NotEqual(t, c.key, b.Label, "label must be translated")
	}
}

func TestKMOBand(t *testing.T) {
	assert.Equal(t, "kmo.very_suitable", KMOBand(0.93, "en").Key)
	assert.Equal(t, "kmo.suitable", KMOBand(0.8, "en").Key)
	assert.Equal(t, "kmo.moderate", KMOBand(0.75, "en").Key)
	assert.Equal(t, "kmo.marginal", KMOBand(0.6, "en").Key)
	assert.Equal(t, "kmo.unsuitable", KMOBand(0.5, "en").Key)
}

func TestBartlettBand(t *testing.T) {
	assert.Equal(t, "bartlett.p001", BartlettBand(0.0001, "en").Key)
	assert.Equal(t, "bartlett.p01", BartlettBand(0.005, "en").Key)
	assert.Equal(t, "bartlett.p05", BartlettBand(0.03, "en").Key)
	ns := BartlettBand(0.11, "zh")
	assert.Equal(t, "bartlett.ns", ns.Key)
	assert.Equal(t, SeverityDanger, ns.Severity)
	assert.Contains(t, ns.Label, "不显著")
}

func TestInterpret(t *testing.T) {
	alpha, kmo, p := 0.82, 0.5, 0.0004
	falpha := 0.95
	r := &AnalysisResult{
		CronbachAlpha: &alpha,
		KMOValue:      &kmo,
		BartlettP:     &p,
		EFAPerformed:  true,
		Factors: []FactorInfo{
			{FactorID: 1, FactorName: "Q1-Q2", CronbachAlpha: &falpha},
			{FactorID: 2, FactorName: "Q3"},
		},
	}
	in := Interpret(r, "en")
	require.NotNil(t, in.AlphaBand)
	assert.Equal(t, "alpha.good", in.AlphaBand.Key)
	assert.Equal(t, "kmo.unsuitable", in.KMOBand.Key)
	assert.Equal(t, "bartlett.p001", in.BartlettBand.Key)
	assert.Empty(t, in.Notes)
	require.Len(t, in.Factors, 2)
	assert.Equal(t, "alpha.excellent", in.Factors[0].AlphaBand.Key)
	assert.Nil(t, in.Factors[1].AlphaBand)
}

func TestInterpret_UnavailableMetrics(t *testing.T) {
	in := Interpret(&AnalysisResult{SampleCount: 5, ItemCount: 3}, "zh")
	assert.Equal(t, "zh", in.Locale)
	assert.Nil(t, in.AlphaBand)
	assert.Nil(t, in.KMOBand)
	assert.Len(t, in.Notes, 3)

	failed := Interpret(&AnalysisResult{Error: "no records"}, "en")
	assert.Nil(t, failed.AlphaBand)
	assert.Empty(t, failed.Notes)
}
