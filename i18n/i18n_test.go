package i18n_test

import (
	"MultiView/i18n"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatch(t *testing.T) {
	for loc, want := range map[string]string{
		"fr-FR": "fr",
		"pt_BR": "pt",
		"es":    "es",
		"ru-RU": "ru",
		"de-DE": "en",
		"":      "en",
	} {
		assert.Equal(t, want, i18n.Match(loc), loc)
	}
}

func TestTranslate(t *testing.T) {
	prev := i18n.GetLang()
	t.Cleanup(func() { i18n.SetLang(prev) })

	i18n.SetLang("fr")
	assert.Equal(t, "Plein écran", i18n.T("Fullscreen"))
	assert.Equal(t, "unknown label", i18n.T("unknown label"))

	i18n.SetLang("en")
	assert.Equal(t, "Fullscreen", i18n.T("Fullscreen"))
}
