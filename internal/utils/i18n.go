package utils

// Minimal server-side i18n for fixed keys: health text and the
// interpretation bands attached to analysis results.

var translations = map[string]map[string]string{
	"en": {
		"health.ok": "ok",

		"alpha.excellent":  "Excellent reliability",
		"alpha.good":       "Good reliability",
		"alpha.acceptable": "Acceptable reliability",
		"alpha.marginal":   "Marginal reliability",
		"alpha.poor":       "Poor reliability",

		"kmo.very_suitable": "Very suitable for factor analysis",
		"kmo.suitable":      "Suitable for factor analysis",
		"kmo.moderate":      "Moderately suitable for factor analysis",
		"kmo.marginal":      "Marginally suitable for factor analysis",
		"kmo.unsuitable":    "Unsuitable for factor analysis",

		"bartlett.p001": "Highly significant (p < 0.001), correlations suit factor analysis",
		"bartlett.p01":  "Very significant (p < 0.01), correlations suit factor analysis",
		"bartlett.p05":  "Significant (p < 0.05), correlations suit factor analysis",
		"bartlett.ns":   "Not significant, the correlation matrix may be an identity matrix",

		"note.alpha_unavailable":    "Cronbach's alpha could not be computed (zero-variance items or too few samples)",
		"note.validity_unavailable": "KMO or Bartlett's test could not be computed for this data",
		"note.single_factor":        "No multi-factor structure found; only whole-scale reliability is reported",
	},
	"zh": {
		"health.ok": "好的",

		"alpha.excellent":  "信度极佳",
		"alpha.good":       "信度良好",
		"alpha.acceptable": "信度可接受",
		"alpha.marginal":   "信度勉强",
		"alpha.poor":       "信度较差",

		"kmo.very_suitable": "非常适合因子分析",
		"kmo.suitable":      "适合因子分析",
		"kmo.moderate":      "一般适合因子分析",
		"kmo.marginal":      "勉强适合因子分析",
		"kmo.unsuitable":    "不适合因子分析",

		"bartlett.p001": "极其显著 (p < 0.001)，适合因子分析",
		"bartlett.p01":  "非常显著 (p < 0.01)，适合因子分析",
		"bartlett.p05":  "显著 (p < 0.05)，适合因子分析",
		"bartlett.ns":   "不显著，相关矩阵可能为单位矩阵",

		"note.alpha_unavailable":    "无法计算克隆巴赫 α 系数（存在零方差题目或样本过少）",
		"note.validity_unavailable": "无法计算 KMO 或巴特利特球形检验",
		"note.single_factor":        "未发现多因子结构，仅报告整体信度",
	},
}

// SupportedLocales lists the locales with translations.
var SupportedLocales = []string{"en", "zh"}

// T returns the translated string for key in locale; falls back to English.
func T(locale, key string) string {
	if m, ok := translations[locale]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	if m, ok := translations["en"]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	return key
}
