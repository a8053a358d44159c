package i18n

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCatalogTranslatesKnownStrings(t *testing.T) {
	c := New("fr")
	assert.Equal(t, "fr", c.Lang())
	assert.Equal(t, "Mort-né", c.T("Stillborn"))
	assert.Equal(t, "Unlisted", c.T("Unlisted"))
}

func TestCatalogNormalizesRegionalCodes(t *testing.T) {
	c := New(" PT-br ")
	assert.Equal(t, "pt", c.Lang())
	assert.Equal(t, "Natimorto", c.T("Stillborn"))
}

func TestZeroCatalogIsIdentity(t *testing.T) {
	var c Catalog
	assert.Equal(t, "en", c.Lang())
	assert.Equal(t, "Stillborn", c.T("Stillborn"))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "French", DisplayName("fr"))
	assert.Equal(t, "English", DisplayName("en"))
	assert.Equal(t, "German", DisplayName("de-AT"))
	assert.Equal(t, "English", DisplayName("not a language!"))
}

func TestSupportedHaveCatalogs(t *testing.T) {
	for _, code := range Supported() {
		assert.NotEmpty(t, builtinCatalogs[code], code)
	}
}

func TestCatalogsTranslateProgressMessages(t *testing.T) {
	for _, code := range Supported() {
		c := New(code)
		for _, msg := range []string{MsgSeeds, MsgAncestors, MsgDescendants, MsgSpouses} {
			got := c.T(msg)
			assert.NotEqual(t, msg, got, "%s: %s", code, msg)
			assert.Equal(t, strings.Count(msg, "%d"), strings.Count(got, "%d"), "%s: %s", code, msg)
		}
	}
}
