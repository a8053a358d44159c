package gedcomx

// Type URIs used by the tree API.
const (
	TypeGiven   = "http://gedcomx.org/Given"
	TypeSurname = "http://gedcomx.org/Surname"
	TypePrefix  = "http://gedcomx.org/Prefix"
	TypeSuffix  = "http://gedcomx.org/Suffix"

	GenderMale    = "http://gedcomx.org/Male"
	GenderFemale  = "http://gedcomx.org/Female"
	GenderUnknown = "http://gedcomx.org/Unknown"

	FactBirth    = "http://gedcomx.org/Birth"
	FactDeath    = "http://gedcomx.org/Death"
	FactMarriage = "http://gedcomx.org/Marriage"

	RelationshipCouple = "http://gedcomx.org/Couple"

	// CustomTypePrefix marks a freeform fact type carried as a data URI.
	CustomTypePrefix = "data:,"
)

// MaxPersons bounds the number of ids the persons endpoint accepts per call.
const MaxPersons = 200

// FactTags maps fact type URIs onto GEDCOM tags.
var FactTags = map[string]string{
	"http://gedcomx.org/Birth":                   "BIRT",
	"http://gedcomx.org/Christening":             "CHR",
	"http://gedcomx.org/Death":                   "DEAT",
	"http://gedcomx.org/Burial":                  "BURI",
	"http://gedcomx.org/PhysicalDescription":     "DSCR",
	"http://gedcomx.org/Occupation":              "OCCU",
	"http://gedcomx.org/MilitaryService":         "_MILT",
	"http://gedcomx.org/Marriage":                "MARR",
	"http://gedcomx.org/Divorce":                 "DIV",
	"http://gedcomx.org/Annulment":               "ANUL",
	"http://gedcomx.org/CommonLawMarriage":       "_COML",
	"http://gedcomx.org/BarMitzvah":              "BARM",
	"http://gedcomx.org/BatMitzvah":              "BASM",
	"http://gedcomx.org/Naturalization":          "NATU",
	"http://gedcomx.org/Residence":               "RESI",
	"http://gedcomx.org/Religion":                "RELI",
	"http://familysearch.org/v1/TitleOfNobility": "TITL",
	"http://gedcomx.org/Cremation":               "CREM",
	"http://gedcomx.org/Caste":                   "CAST",
	"http://gedcomx.org/Nationality":             "NATI",
}

// GenericEvents maps fact types without a GEDCOM tag onto the label used in
// an EVEN/TYPE block.
var GenericEvents = map[string]string{
	"http://gedcomx.org/Stillbirth":          "Stillborn",
	"http://familysearch.org/v1/Affiliation": "Affiliation",
	"http://gedcomx.org/Clan":                "Clan Name",
	"http://gedcomx.org/NationalId":          "National Identification",
	"http://gedcomx.org/Ethnicity":           "Race",
	"http://familysearch.org/v1/TribeName":   "Tribe Name",
}
