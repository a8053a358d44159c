// Package i18n translates the few user-facing strings that end up in the
// GEDCOM output or on stderr, keyed by the account's preferred language.
package i18n

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

const fallbackLanguage = "en"

// Catalog translates strings into one language. The zero value translates
// nothing.
type Catalog struct {
	lang     string
	messages map[string]string
}

// New returns the catalog for a preferred-language code such as "fr" or
// "pt-BR". Unknown languages fall back to the identity translation.
func New(lang string) Catalog {
	id := canonicalLanguageID(lang)
	return Catalog{
		lang:     id,
		messages: builtinCatalogs[id],
	}
}

// Lang returns the canonical two-letter language code of the catalog.
func (c Catalog) Lang() string {
	if c.lang == "" {
		return fallbackLanguage
	}
	return c.lang
}

// T returns the translation of s, or s itself.
func (c Catalog) T(s string) string {
	if out, ok := c.messages[s]; ok {
		return out
	}
	return s
}

// DisplayName returns the English name of a language code, e.g. "French"
// for "fr". An unparsable code yields "English".
func DisplayName(code string) string {
	tag, err := language.Parse(strings.TrimSpace(code))
	if err != nil {
		tag = language.English
	}
	base, _ := tag.Base()
	name := display.English.Languages().Name(base)
	if name == "" {
		return "English"
	}
	return name
}

func canonicalLanguageID(id string) string {
	normalized := strings.ToLower(strings.TrimSpace(id))
	if i := strings.IndexAny(normalized, "-_"); i >= 0 {
		normalized = normalized[:i]
	}
	return normalized
}

// Supported returns the codes with a built-in catalog.
func Supported() []string {
	return []string{"de", "es", "fr", "it", "pt"}
}

// Progress messages, in English. They double as catalog keys.
const (
	MsgSeeds       = "Downloading starting individuals..."
	MsgAncestors   = "Downloading %d. generation of ancestors..."
	MsgDescendants = "Downloading %d. generation of descendants..."
	MsgSpouses     = "Downloading spouses and marriage information..."
)

var builtinCatalogs = map[string]map[string]string{
	"de": {
		"Stillborn":               "Totgeburt",
		"Affiliation":             "Zugehörigkeit",
		"Clan Name":               "Clanname",
		"National Identification": "Nationale Kennung",
		"Race":                    "Ethnische Zugehörigkeit",
		"Tribe Name":              "Stammesname",
		MsgSeeds:                  "Ausgangspersonen werden heruntergeladen...",
		MsgAncestors:              "%d. Generation der Vorfahren wird heruntergeladen...",
		MsgDescendants:            "%d. Generation der Nachkommen wird heruntergeladen...",
		MsgSpouses:                "Ehepartner und Heiratsdaten werden heruntergeladen...",
	},
	"es": {
		"Stillborn":               "Nacido muerto",
		"Affiliation":             "Afiliación",
		"Clan Name":               "Nombre del clan",
		"National Identification": "Identificación nacional",
		"Race":                    "Raza",
		"Tribe Name":              "Nombre de la tribu",
		MsgSeeds:                  "Descargando las personas iniciales...",
		MsgAncestors:              "Descargando la %d.ª generación de antepasados...",
		MsgDescendants:            "Descargando la %d.ª generación de descendientes...",
		MsgSpouses:                "Descargando cónyuges e información de matrimonio...",
	},
	"fr": {
		"Stillborn":               "Mort-né",
		"Affiliation":             "Affiliation",
		"Clan Name":               "Nom du clan",
		"National Identification": "Identifiant national",
		"Race":                    "Ethnie",
		"Tribe Name":              "Nom de la tribu",
		MsgSeeds:                  "Téléchargement des personnes de départ...",
		MsgAncestors:              "Téléchargement de la %de génération d'ancêtres...",
		MsgDescendants:            "Téléchargement de la %de génération de descendants...",
		MsgSpouses:                "Téléchargement des conjoints et des mariages...",
	},
	"it": {
		"Stillborn":               "Nato morto",
		"Affiliation":             "Affiliazione",
		"Clan Name":               "Nome del clan",
		"National Identification": "Identificativo nazionale",
		"Race":                    "Etnia",
		"Tribe Name":              "Nome della tribù",
		MsgSeeds:                  "Download delle persone iniziali...",
		MsgAncestors:              "Download della %d° generazione di antenati...",
		MsgDescendants:            "Download della %d° generazione di discendenti...",
		MsgSpouses:                "Download di coniugi e matrimoni...",
	},
	"pt": {
		"Stillborn":               "Natimorto",
		"Affiliation":             "Afiliação",
		"Clan Name":               "Nome do clã",
		"National Identification": "Identificação nacional",
		"Race":                    "Raça",
		"Tribe Name":              "Nome da tribo",
		MsgSeeds:                  "Baixando as pessoas iniciais...",
		MsgAncestors:              "Baixando a %dª geração de antepassados...",
		MsgDescendants:            "Baixando a %dª geração de descendentes...",
		MsgSpouses:                "Baixando cônjuges e informações de casamento...",
	},
}
