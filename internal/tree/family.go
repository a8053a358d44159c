package tree

import (
	"context"
	"fmt"

	"github.com/AllTales-Labs/getmyancestors/internal/gedcom"
	"github.com/AllTales-Labs/getmyancestors/internal/gedcomx"
)

// CoupleSource fetches couple relationship details.
type CoupleSource interface {
	FetchCoupleRelationship(ctx context.Context, id string) (*gedcomx.RelationshipsPage, error)
}

// Family is a (father, mother) pair with its children and marriage facts.
// Either side of the key may be empty.
type Family struct {
	Key            FamilyKey
	Ordinal        int
	RelationshipID string
	MarriageFacts  []Fact
	Children       Set[string]

	husbandOrdinal int
	wifeOrdinal    int
	childOrdinals  []int
}

// NewFamily returns an empty family for key.
func NewFamily(key FamilyKey) *Family {
	return &Family{Key: key}
}

// AddChild records a child id and reports whether it was new.
func (f *Family) AddChild(id string) bool {
	if id == "" {
		return false
	}
	return f.Children.Add(id)
}

// ResolveMarriage fetches the couple relationship once and keeps its
// marriage facts. Later calls are no-ops, whatever the relationship id. A
// failed or empty fetch leaves the family without marriage facts; the
// returned error only reports why.
func (f *Family) ResolveMarriage(ctx context.Context, relID string, src CoupleSource, parser FactParser) error {
	if f.RelationshipID != "" || relID == "" {
		return nil
	}
	f.RelationshipID = relID

	page, err := src.FetchCoupleRelationship(ctx, relID)
	if err != nil {
		return fmt.Errorf("fetch couple relationship %s: %w", relID, err)
	}
	if page == nil || len(page.Relationships) == 0 {
		return nil
	}
	for _, rec := range page.Relationships[0].Facts {
		if rec.Type != gedcomx.FactMarriage {
			continue
		}
		fact := parser.Parse(rec)
		if !containsFact(f.MarriageFacts, fact) {
			f.MarriageFacts = append(f.MarriageFacts, fact)
		}
	}
	return nil
}

func containsFact(facts []Fact, f Fact) bool {
	for _, have := range facts {
		if have == f {
			return true
		}
	}
	return false
}

// Serialize writes the FAM record. Ordinals must already be assigned.
func (f *Family) Serialize(w *gedcom.Writer) {
	w.Plainf("0 %s FAM", gedcom.FamRef(f.Ordinal))
	if f.husbandOrdinal > 0 {
		w.Plainf("1 HUSB %s", gedcom.IndiRef(f.husbandOrdinal))
	}
	if f.wifeOrdinal > 0 {
		w.Plainf("1 WIFE %s", gedcom.IndiRef(f.wifeOrdinal))
	}
	for _, n := range f.childOrdinals {
		w.Plainf("1 CHIL %s", gedcom.IndiRef(n))
	}
	for _, fact := range f.MarriageFacts {
		fact.Write(w)
	}
	if f.RelationshipID != "" {
		w.Plainf("1 _FSFTID %s", f.RelationshipID)
	}
}
