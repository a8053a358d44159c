// Package gedcomx defines the subset of the GEDCOM X JSON schema returned by
// the FamilySearch tree API. Every field is optional: an absent key decodes
// to its zero value (or nil for nested objects) and callers treat that as
// "not provided".
package gedcomx

import "encoding/json"

// PersonsPage is the body of a /platform/tree/persons?pids=... response.
type PersonsPage struct {
	Persons                      []Person                      `json:"persons,omitempty"`
	Places                       []PlaceDescription            `json:"places,omitempty"`
	ChildAndParentsRelationships []ChildAndParentsRelationship `json:"childAndParentsRelationships,omitempty"`
	Relationships                []Relationship                `json:"relationships,omitempty"`
}

// RelationshipsPage is the body of a couple-relationship detail response.
type RelationshipsPage struct {
	Relationships []Relationship `json:"relationships,omitempty"`
}

// UsersPage is the body of /platform/users/current.
type UsersPage struct {
	Users []User `json:"users,omitempty"`
}

// User is the logged-in account.
type User struct {
	PersonID          string `json:"personId,omitempty"`
	PreferredLanguage string `json:"preferredLanguage,omitempty"`
	DisplayName       string `json:"displayName,omitempty"`
}

// Person is one tree person record.
type Person struct {
	ID     string  `json:"id"`
	Living bool    `json:"living,omitempty"`
	Names  []Name  `json:"names,omitempty"`
	Gender *Gender `json:"gender,omitempty"`
	Facts  []Fact  `json:"facts,omitempty"`
}

// Name is one of a person's names; only the preferred one is used.
type Name struct {
	Type      string     `json:"type,omitempty"`
	Preferred bool       `json:"preferred,omitempty"`
	NameForms []NameForm `json:"nameForms,omitempty"`
}

// NameForm is a rendering of a name split into typed parts.
type NameForm struct {
	FullText string     `json:"fullText,omitempty"`
	Parts    []NamePart `json:"parts,omitempty"`
}

// NamePart is a typed piece of a name form.
type NamePart struct {
	Type  string `json:"type,omitempty"`
	Value string `json:"value,omitempty"`
}

// Gender carries a gender type URI.
type Gender struct {
	Type string `json:"type,omitempty"`
}

// Fact is a dated, placed event or characteristic.
type Fact struct {
	Type  string          `json:"type,omitempty"`
	Value string          `json:"value,omitempty"`
	Date  *Date           `json:"date,omitempty"`
	Place *PlaceReference `json:"place,omitempty"`
}

// Date keeps the date as entered by the contributor.
type Date struct {
	Original string `json:"original,omitempty"`
}

// PlaceReference points from a fact to a place description.
type PlaceReference struct {
	Original    string `json:"original,omitempty"`
	Description string `json:"description,omitempty"` // "#<place id>"
}

// PlaceID returns the referenced place description id without its '#'.
func (p *PlaceReference) PlaceID() string {
	if p == nil || len(p.Description) < 2 {
		return ""
	}
	return p.Description[1:]
}

// PlaceDescription carries coordinates for a place id. Coordinates are kept
// as the decimal text of the payload.
type PlaceDescription struct {
	ID        string      `json:"id"`
	Latitude  json.Number `json:"latitude,omitempty"`
	Longitude json.Number `json:"longitude,omitempty"`
}

// ResourceReference points at another resource by id.
type ResourceReference struct {
	ResourceID string `json:"resourceId,omitempty"`
}

// ID returns the referenced id, or "" for a nil reference.
func (r *ResourceReference) ID() string {
	if r == nil {
		return ""
	}
	return r.ResourceID
}

// ChildAndParentsRelationship links a child to up to two parents.
type ChildAndParentsRelationship struct {
	ID      string             `json:"id,omitempty"`
	Parent1 *ResourceReference `json:"parent1,omitempty"`
	Parent2 *ResourceReference `json:"parent2,omitempty"`
	Child   *ResourceReference `json:"child,omitempty"`
}

// Relationship is a typed link between two persons.
type Relationship struct {
	ID      string             `json:"id,omitempty"`
	Type    string             `json:"type,omitempty"`
	Person1 *ResourceReference `json:"person1,omitempty"`
	Person2 *ResourceReference `json:"person2,omitempty"`
	Facts   []Fact             `json:"facts,omitempty"`
}
