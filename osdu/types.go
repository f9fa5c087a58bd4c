package osdu

import "encoding/json"

// SchemaIdentity identifies a schema within the Schema service
type SchemaIdentity struct {
	Authority  string `json:"authority"`
	Source     string `json:"source"`
	EntityType string `json:"entityType"`
	Major      int    `json:"schemaVersionMajor"`
	Minor      int    `json:"schemaVersionMinor"`
	Patch      int    `json:"schemaVersionPatch"`
	ID         string `json:"id"`
}

// Schema is a Schema service entry. Deployments differ in whether they
// return a nested identity or a flat id; both are carried and the ID field
// is normalized after decoding.
type Schema struct {
	Identity   *SchemaIdentity `json:"schemaIdentity,omitempty"`
	ID         string          `json:"id,omitempty"`
	Authority  string          `json:"authority,omitempty"`
	Source     string          `json:"source,omitempty"`
	EntityType string          `json:"entityType,omitempty"`
	Status     string          `json:"status,omitempty"`
	Scope      string          `json:"scope,omitempty"`
	CreatedBy  string          `json:"createdBy,omitempty"`
	Definition json.RawMessage `json:"schema,omitempty"`
}

// normalize fills the flat fields from the nested identity when present
func (s *Schema) normalize() {
	if s.Identity == nil {
		return
	}
	if s.ID == "" {
		s.ID = s.Identity.ID
	}
	if s.Authority == "" {
		s.Authority = s.Identity.Authority
	}
	if s.Source == "" {
		s.Source = s.Identity.Source
	}
	if s.EntityType == "" {
		s.EntityType = s.Identity.EntityType
	}
}

// SchemaFilter narrows a schema listing
type SchemaFilter struct {
	Authority  string
	Source     string
	EntityType string
	Limit      int
}

// LegalTagProperties are the compliance attributes of a legal tag
type LegalTagProperties struct {
	CountryOfOrigin        []string `json:"countryOfOrigin,omitempty"`
	ContractID             string   `json:"contractId,omitempty"`
	ExpirationDate         string   `json:"expirationDate,omitempty"`
	Originator             string   `json:"originator,omitempty"`
	DataType               string   `json:"dataType,omitempty"`
	SecurityClassification string   `json:"securityClassification,omitempty"`
	PersonalData           string   `json:"personalData,omitempty"`
	ExportClassification   string   `json:"exportClassification,omitempty"`
}

// LegalTag is a Legal service entry
type LegalTag struct {
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Properties  *LegalTagProperties `json:"properties,omitempty"`
}

// CountryCode is an allowed country entry from the Legal service
type CountryCode struct {
	Name          string `json:"name"`
	Alpha2        string `json:"alpha2"`
	ResidencyRisk string `json:"residencyRisk,omitempty"`
}

// Group is an Entitlements service group
type Group struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Description string `json:"description,omitempty"`
}

// Member is a member of an entitlements group
type Member struct {
	Email      string `json:"email"`
	Role       string `json:"role,omitempty"`
	MemberType string `json:"memberType,omitempty"`
}

// SearchRequest is a Search service query
type SearchRequest struct {
	Kind          string
	Query         string
	Limit         int
	Cursor        string
	SpatialFilter json.RawMessage
}

// SearchHit is one normalized search result
type SearchHit struct {
	ID     string          `json:"id"`
	Kind   string          `json:"kind"`
	Source string          `json:"source,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// SearchResult is a page of search hits with cursor pagination
type SearchResult struct {
	TotalCount int         `json:"totalCount"`
	Cursor     string      `json:"cursor,omitempty"`
	Results    []SearchHit `json:"results"`
}

// ACL carries record access control lists
type ACL struct {
	Viewers []string `json:"viewers"`
	Owners  []string `json:"owners"`
}

// Legal carries a record's compliance references
type Legal struct {
	LegalTags                  []string `json:"legaltags"`
	OtherRelevantDataCountries []string `json:"otherRelevantDataCountries,omitempty"`
}

// Record is a Storage service record
type Record struct {
	ID      string          `json:"id"`
	Kind    string          `json:"kind"`
	Version int64           `json:"version,omitempty"`
	ACL     *ACL            `json:"acl,omitempty"`
	Legal   *Legal          `json:"legal,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// RecordVersions lists the stored versions of a record
type RecordVersions struct {
	RecordID string  `json:"recordId"`
	Versions []int64 `json:"versions"`
}
