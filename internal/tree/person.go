package tree

import (
	"strings"

	"github.com/AllTales-Labs/getmyancestors/internal/gedcom"
	"github.com/AllTales-Labs/getmyancestors/internal/gedcomx"
)

// Gender of a person. GenderAbsent means the record carried none.
type Gender int

const (
	GenderAbsent Gender = iota
	GenderMale
	GenderFemale
	GenderUnknown
)

// Code returns the GEDCOM SEX value, or "" when absent.
func (g Gender) Code() string {
	switch g {
	case GenderMale:
		return "M"
	case GenderFemale:
		return "F"
	case GenderUnknown:
		return "U"
	}
	return ""
}

func parseGender(g *gedcomx.Gender) Gender {
	if g == nil {
		return GenderAbsent
	}
	switch g.Type {
	case gedcomx.GenderMale:
		return GenderMale
	case gedcomx.GenderFemale:
		return GenderFemale
	case gedcomx.GenderUnknown:
		return GenderUnknown
	}
	return GenderAbsent
}

// Name is a preferred name split into its parts.
type Name struct {
	Given   string
	Surname string
	Prefix  string
	Suffix  string
}

// ParseName reads the parts of the first name form. Parts are trimmed and
// unknown part types are ignored.
func ParseName(rec gedcomx.Name) Name {
	var n Name
	if len(rec.NameForms) == 0 {
		return n
	}
	for _, part := range rec.NameForms[0].Parts {
		value := strings.TrimSpace(part.Value)
		switch part.Type {
		case gedcomx.TypeGiven:
			n.Given = value
		case gedcomx.TypeSurname:
			n.Surname = value
		case gedcomx.TypePrefix:
			n.Prefix = value
		case gedcomx.TypeSuffix:
			n.Suffix = value
		}
	}
	return n
}

// Write emits the NAME line and its optional NPFX subline.
func (n Name) Write(w *gedcom.Writer) {
	line := "1 NAME " + n.Given + " /" + n.Surname + "/"
	if n.Suffix != "" {
		line += " " + n.Suffix
	}
	w.Line(line)
	if n.Prefix != "" {
		w.Plainf("2 NPFX %s", n.Prefix)
	}
}

// Person is one individual of the tree. Identity is ID. Edge sets are filled
// by the tree as batches arrive and stay unresolved until an expansion step
// turns them into families.
type Person struct {
	ID      string
	Ordinal int
	Name    *Name
	Gender  Gender
	Living  bool
	Facts   []Fact

	ParentPairs Set[ParentPair]
	ChildEdges  Set[ChildEdge]
	SpouseEdges Set[SpouseEdge]
	Unions      Set[FamilyKey]
	ChildOf     Set[FamilyKey]

	famsOrdinals []int
	famcOrdinals []int
}

// NewPerson returns a bare person with only its identifier set.
func NewPerson(id string) *Person {
	return &Person{ID: id}
}

// AddData fills name, gender, living flag and birth and death facts from a
// person record. Only the first preferred name is kept and duplicate facts
// collapse.
func (p *Person) AddData(rec gedcomx.Person, parser FactParser) {
	p.Living = rec.Living
	for _, n := range rec.Names {
		if n.Preferred {
			name := ParseName(n)
			p.Name = &name
			break
		}
	}
	p.Gender = parseGender(rec.Gender)
	for _, f := range rec.Facts {
		if f.Type != gedcomx.FactBirth && f.Type != gedcomx.FactDeath {
			continue
		}
		p.addFact(parser.Parse(f))
	}
}

func (p *Person) addFact(f Fact) {
	for _, have := range p.Facts {
		if have == f {
			return
		}
	}
	p.Facts = append(p.Facts, f)
}

// Serialize writes the INDI record. Ordinals must already be assigned.
func (p *Person) Serialize(w *gedcom.Writer) {
	w.Plainf("0 %s INDI", gedcom.IndiRef(p.Ordinal))
	if p.Name != nil {
		p.Name.Write(w)
	}
	if code := p.Gender.Code(); code != "" {
		w.Plainf("1 SEX %s", code)
	}
	for _, f := range p.Facts {
		f.Write(w)
	}
	for _, n := range p.famsOrdinals {
		w.Plainf("1 FAMS %s", gedcom.FamRef(n))
	}
	for _, n := range p.famcOrdinals {
		w.Plainf("1 FAMC %s", gedcom.FamRef(n))
	}
	w.Plainf("1 _FSFTID %s", p.ID)
}
