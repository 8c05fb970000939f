package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetermineLocale(t *testing.T) {
	supported := []string{"en", "zh"}
	cases := []struct {
		name   string
		query  string
		accept string
		want   string
	}{
		{"query param wins", "zh-CN", "en-US,en;q=0.9,zh;q=0.8", "zh"},
		{"accept-language order", "", "en-US,en;q=0.9,zh;q=0.8", "en"},
		{"higher q wins", "", "zh;q=0.9,en;q=0.8", "zh"},
		{"three digit q", "", "en;q=0.455,zh;q=0.456", "zh"},
		{"q zero excluded", "", "zh;q=0,en;q=0.1", "en"},
		{"underscore region", "zh_TW", "", "zh"},
		{"unsupported query falls through", "fr", "zh", "zh"},
		{"default fallback", "", "fr-FR,es;q=0.9", "en"},
		{"malformed q skipped", "", "zh;q=abc", "en"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, DetermineLocale(c.query, c.accept, supported, "en"))
		})
	}
}

func TestDetermineLocale_UnsupportedDefault(t *testing.T) {
	assert.Equal(t, "zh", DetermineLocale("", "", []string{"zh", "en"}, "fr"))
}
