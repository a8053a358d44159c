package tree

import (
	"net/url"
	"strings"

	"github.com/AllTales-Labs/getmyancestors/internal/gedcom"
	"github.com/AllTales-Labs/getmyancestors/internal/gedcomx"
)

// Translator translates user-facing labels.
type Translator interface {
	T(s string) string
}

// Coordinates is a place position. The zero value means unknown.
type Coordinates struct {
	Latitude  string
	Longitude string
}

// IsZero reports whether no position is known.
func (c Coordinates) IsZero() bool {
	return c.Latitude == "" && c.Longitude == ""
}

// Fact is a dated, placed event attached to a person or a family.
type Fact struct {
	Type  string
	Value string
	Date  string
	Place string
	Map   Coordinates
}

// FactParser turns fact records into Facts. Places is consulted for
// coordinates and may be nil.
type FactParser struct {
	Translator Translator
	Places     map[string]Coordinates
}

// Parse normalizes a fact record. Generic events get a translated label,
// data URIs are unescaped into a freeform type and unrecognized type URIs
// are dropped.
func (fp FactParser) Parse(rec gedcomx.Fact) Fact {
	f := Fact{Type: rec.Type, Value: rec.Value}
	if rec.Type != "" {
		if label, ok := gedcomx.GenericEvents[rec.Type]; ok {
			f.Type = fp.translate(label)
		} else if custom, ok := strings.CutPrefix(rec.Type, gedcomx.CustomTypePrefix); ok {
			if decoded, err := url.PathUnescape(custom); err == nil {
				custom = decoded
			}
			f.Type = custom
		} else if _, ok := gedcomx.FactTags[rec.Type]; !ok {
			f.Type = ""
		}
	}
	if rec.Date != nil {
		f.Date = rec.Date.Original
	}
	if rec.Place != nil {
		f.Place = rec.Place.Original
		if fp.Places != nil {
			f.Map = fp.Places[rec.Place.PlaceID()]
		}
	}
	if rec.Type == gedcomx.FactDeath && f.Date == "" && f.Place == "" {
		f.Value = "Y"
	}
	return f
}

func (fp FactParser) translate(s string) string {
	if fp.Translator == nil {
		return s
	}
	return fp.Translator.T(s)
}

// Write emits the fact block at level 1. Facts with no type are skipped.
func (f Fact) Write(w *gedcom.Writer) {
	if tag, ok := gedcomx.FactTags[f.Type]; ok {
		line := "1 " + tag
		if f.Value != "" {
			line += " " + f.Value
		}
		w.Line(line)
	} else if f.Type != "" {
		w.Plainf("1 EVEN")
		w.Line("2 TYPE " + f.Type)
		if f.Value != "" {
			w.Line("2 NOTE Description: " + f.Value)
		}
	} else {
		return
	}
	if f.Date != "" {
		w.Line("2 DATE " + f.Date)
	}
	if f.Place != "" {
		w.Line("2 PLAC " + f.Place)
		if !f.Map.IsZero() {
			w.Plainf("3 MAP")
			w.Plainf("4 LATI %s", f.Map.Latitude)
			w.Plainf("4 LONG %s", f.Map.Longitude)
		}
	}
}

// ParseFact parses a fact record without place coordinates.
func ParseFact(rec gedcomx.Fact, tr Translator) Fact {
	return FactParser{Translator: tr}.Parse(rec)
}
