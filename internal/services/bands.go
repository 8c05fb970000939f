package services

import "github.com/soaringjerry/psymetrics/internal/utils"

// Severity is the display weight attached to an interpretation band.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityDanger  Severity = "danger"
)

// Band is a fixed textual interpretation of a scalar statistic.
type Band struct {
	Key      string   `json:"key"`
	Label    string   `json:"label"`
	Severity Severity `json:"severity"`
}

type threshold struct {
	min      float64
	key      string
	severity Severity
}

var alphaBands = []threshold{
	{0.9, "alpha.excellent", SeveritySuccess},
	{0.8, "alpha.good", SeveritySuccess},
	{0.7, "alpha.acceptable", SeverityInfo},
	{0.6, "alpha.marginal", SeverityWarning},
}

var kmoBands = []threshold{
	{0.9, "kmo.very_suitable", SeveritySuccess},
	{0.8, "kmo.suitable", SeveritySuccess},
	{0.7, "kmo.moderate", SeverityInfo},
	{0.6, "kmo.marginal", SeverityWarning},
}

// AlphaBand classifies Cronbach's alpha: >=0.9 excellent, >=0.8 good,
// >=0.7 acceptable, >=0.6 marginal, else poor.
func AlphaBand(alpha float64, locale string) Band {
	return pick(alpha, alphaBands, "alpha.poor", locale)
}

// KMOBand classifies a KMO value: >=0.9 very suitable, >=0.8 suitable,
// >=0.7 moderate, >=0.6 marginal, else unsuitable.
func KMOBand(kmo float64, locale string) Band {
	return pick(kmo, kmoBands, "kmo.unsuitable", locale)
}

// BartlettBand classifies the sphericity p-value at 0.001, 0.01 and 0.05.
func BartlettBand(p float64, locale string) Band {
	var key string
	var sev Severity
	switch {
	case p < 0.001:
		key, sev = "bartlett.p001", SeveritySuccess
	case p < 0.01:
		key, sev = "bartlett.p01", SeveritySuccess
	case p < 0.05:
		key, sev = "bartlett.p05", SeverityInfo
	default:
		key, sev = "bartlett.ns", SeverityDanger
	}
	return Band{Key: key, Label: utils.T(locale, key), Severity: sev}
}

func pick(v float64, bands []threshold, fallback, locale string) Band {
	for _, b := range bands {
		if v >= b.min {
			return Band{Key: b.key, Label: utils.T(locale, b.key), Severity: b.severity}
		}
	}
	return Band{Key: fallback, Label: utils.T(locale, fallback), Severity: SeverityDanger}
}

// FactorView pairs a factor with the band of its alpha.
type FactorView struct {
	FactorInfo
	AlphaBand *Band `json:"alpha_band,omitempty"`
}

// Interpretation is the presentation view of a result in one locale.
type Interpretation struct {
	Locale       string       `json:"locale"`
	AlphaBand    *Band        `json:"alpha_band,omitempty"`
	KMOBand      *Band        `json:"kmo_band,omitempty"`
	BartlettBand *Band        `json:"bartlett_band,omitempty"`
	Factors      []FactorView `json:"factors,omitempty"`
	Notes        []string     `json:"notes,omitempty"`
}

// Interpret applies the display bands to every available scalar of r.
func Interpret(r *AnalysisResult, locale string) *Interpretation {
	out := &Interpretation{Locale: locale}
	if r == nil || r.Error != "" {
		return out
	}
	if r.CronbachAlpha != nil {
		b := AlphaBand(*r.CronbachAlpha, locale)
		out.AlphaBand = &b
	} else {
		out.Notes = append(out.Notes, utils.T(locale, "note.alpha_unavailable"))
	}
	if r.KMOValue != nil {
		b := KMOBand(*r.KMOValue, locale)
		out.KMOBand = &b
	}
	if r.BartlettP != nil {
		b := BartlettBand(*r.BartlettP, locale)
		out.BartlettBand = &b
	}
	if r.KMOValue == nil || r.BartlettP == nil {
		out.Notes = append(out.Notes, utils.T(locale, "note.validity_unavailable"))
	}
	if !r.EFAPerformed {
		out.Notes = append(out.Notes, utils.T(locale, "note.single_factor"))
	}
	for _, f := range r.Factors {
		v := FactorView{FactorInfo: f}
		if f.CronbachAlpha != nil {
			b := AlphaBand(*f.CronbachAlpha, locale)
			v.AlphaBand = &b
		}
		out.Factors = append(out.Factors, v)
	}
	return out
}
