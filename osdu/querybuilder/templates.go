package querybuilder

import (
	"fmt"

	"github.com/c360/osdugate/errors"
)

// Shape is one concrete GraphQL document for an operation. Operations carry
// several shapes because OSDU deployments differ in which root fields their
// GraphQL facades expose; the transport tries shapes in order.
type Shape struct {
	Name     string // shape identifier for logging and metrics
	Document string
}

// Operation is a named operation with its ordered fallback shapes. Args
// declare the operation's variables so a replacement shape can be built
// from an introspected schema when every hand-written shape fails.
type Operation struct {
	Name   string
	Args   []Argument
	Shapes []Shape
}

// Well-known operation names
const (
	OpListSchemas      = "listSchemas"
	OpGetSchema        = "getSchema"
	OpListLegalTags    = "listLegalTags"
	OpGetLegalTag      = "getLegalTag"
	OpCreateLegalTag   = "createLegalTag"
	OpListCountryCodes = "listCountryCodes"
	OpMyGroups         = "myGroups"
	OpGroupMembers     = "groupMembers"
	OpAddMember        = "addMember"
	OpRemoveMember     = "removeMember"
	OpSearch           = "search"
	OpGetRecord        = "getRecord"
	OpRecordVersions   = "recordVersions"
)

// templates maps service -> operation name -> operation. The documents are
// hand-written: deployments vary in root field naming, so most operations
// carry an alternate shape using the older field names.
var templates = map[string]map[string]Operation{
	"schema": {
		OpListSchemas: {
			Name: OpListSchemas,
			Args: []Argument{
				{Name: "authority", Type: "String"},
				{Name: "source", Type: "String"},
				{Name: "entityType", Type: "String"},
				{Name: "limit", Type: "Int"},
			},
			Shapes: []Shape{
				{Name: "schemas", Document: `query listSchemas($authority: String, $source: String, $entityType: String, $limit: Int) {
  schemas(authority: $authority, source: $source, entityType: $entityType, limit: $limit) {
    schemaIdentity {
      authority
      source
      entityType
      schemaVersionMajor
      schemaVersionMinor
      schemaVersionPatch
      id
    }
    status
    scope
    createdBy
  }
}
`},
				{Name: "listSchemas", Document: `query listSchemas($authority: String, $source: String, $entityType: String, $limit: Int) {
  listSchemas(authority: $authority, source: $source, entityType: $entityType, limit: $limit) {
    id
    authority
    source
    entityType
    status
    scope
  }
}
`},
			},
		},
		OpGetSchema: {
			Name: OpGetSchema,
			Args: []Argument{{Name: "id", Type: "String!"}},
			Shapes: []Shape{
				{Name: "schema", Document: `query getSchema($id: String!) {
  schema(id: $id) {
    schemaIdentity {
      authority
      source
      entityType
      schemaVersionMajor
      schemaVersionMinor
      schemaVersionPatch
      id
    }
    status
    scope
    createdBy
    schema
  }
}
`},
				{Name: "getSchema", Document: `query getSchema($id: String!) {
  getSchema(id: $id) {
    id
    status
    scope
    schema
  }
}
`},
			},
		},
	},
	"legal": {
		OpListLegalTags: {
			Name: OpListLegalTags,
			Args: []Argument{{Name: "valid", Type: "Boolean"}},
			Shapes: []Shape{
				{Name: "legalTags", Document: `query listLegalTags($valid: Boolean) {
  legalTags(valid: $valid) {
    name
    description
    properties {
      countryOfOrigin
      contractId
      expirationDate
      originator
      dataType
      securityClassification
      personalData
      exportClassification
    }
  }
}
`},
				{Name: "listLegalTags", Document: `query listLegalTags($valid: Boolean) {
  listLegalTags(valid: $valid) {
    name
    description
  }
}
`},
			},
		},
		OpGetLegalTag: {
			Name: OpGetLegalTag,
			Args: []Argument{{Name: "name", Type: "String!"}},
			Shapes: []Shape{
				{Name: "legalTag", Document: `query getLegalTag($name: String!) {
  legalTag(name: $name) {
    name
    description
    properties {
      countryOfOrigin
      contractId
      expirationDate
      originator
      dataType
      securityClassification
      personalData
      exportClassification
    }
  }
}
`},
			},
		},
		OpCreateLegalTag: {
			Name: OpCreateLegalTag,
			Args: []Argument{{Name: "input", Type: "LegalTagInput!"}},
			Shapes: []Shape{
				{Name: "createLegalTag", Document: `mutation createLegalTag($input: LegalTagInput!) {
  createLegalTag(input: $input) {
    name
    description
  }
}
`},
			},
		},
		OpListCountryCodes: {
			Name: OpListCountryCodes,
			Shapes: []Shape{
				{Name: "countryCodes", Document: `query listCountryCodes {
  countryCodes {
    name
    alpha2
    residencyRisk
  }
}
`},
				{Name: "legalTagCountries", Document: `query listCountryCodes {
  legalTagCountries {
    name
    alpha2
  }
}
`},
			},
		},
	},
	"entitlements": {
		OpMyGroups: {
			Name: OpMyGroups,
			Shapes: []Shape{
				{Name: "groups", Document: `query myGroups {
  groups {
    name
    email
    description
  }
}
`},
				{Name: "myGroups", Document: `query myGroups {
  myGroups {
    name
    email
  }
}
`},
			},
		},
		OpGroupMembers: {
			Name: OpGroupMembers,
			Args: []Argument{{Name: "groupEmail", Type: "String!"}},
			Shapes: []Shape{
				{Name: "members", Document: `query groupMembers($groupEmail: String!) {
  members(groupEmail: $groupEmail) {
    email
    role
    memberType
  }
}
`},
			},
		},
		OpAddMember: {
			Name: OpAddMember,
			Args: []Argument{
				{Name: "groupEmail", Type: "String!"},
				{Name: "email", Type: "String!"},
				{Name: "role", Type: "String!"},
			},
			Shapes: []Shape{
				{Name: "addMember", Document: `mutation addMember($groupEmail: String!, $email: String!, $role: String!) {
  addMember(groupEmail: $groupEmail, email: $email, role: $role) {
    email
    role
  }
}
`},
			},
		},
		OpRemoveMember: {
			Name: OpRemoveMember,
			Args: []Argument{
				{Name: "groupEmail", Type: "String!"},
				{Name: "email", Type: "String!"},
			},
			Shapes: []Shape{
				{Name: "removeMember", Document: `mutation removeMember($groupEmail: String!, $email: String!) {
  removeMember(groupEmail: $groupEmail, email: $email)
}
`},
			},
		},
	},
	"search": {
		OpSearch: {
			Name: OpSearch,
			Args: []Argument{
				{Name: "kind", Type: "String!"},
				{Name: "query", Type: "String"},
				{Name: "limit", Type: "Int"},
				{Name: "cursor", Type: "String"},
				{Name: "spatialFilter", Type: "SpatialFilterInput"},
			},
			Shapes: []Shape{
				{Name: "search", Document: `query search($kind: String!, $query: String, $limit: Int, $cursor: String, $spatialFilter: SpatialFilterInput) {
  search(kind: $kind, query: $query, limit: $limit, cursor: $cursor, spatialFilter: $spatialFilter) {
    totalCount
    cursor
    results {
      id
      kind
      source
      data
    }
  }
}
`},
				{Name: "query", Document: `query search($kind: String!, $query: String, $limit: Int, $cursor: String) {
  query(kind: $kind, query: $query, limit: $limit, cursor: $cursor) {
    totalCount
    cursor
    results {
      id
      kind
      data
    }
  }
}
`},
			},
		},
	},
	"storage": {
		OpGetRecord: {
			Name: OpGetRecord,
			Args: []Argument{{Name: "id", Type: "String!"}},
			Shapes: []Shape{
				{Name: "record", Document: `query getRecord($id: String!) {
  record(id: $id) {
    id
    kind
    version
    acl {
      viewers
      owners
    }
    legal {
      legaltags
      otherRelevantDataCountries
    }
    data
  }
}
`},
				{Name: "getRecord", Document: `query getRecord($id: String!) {
  getRecord(id: $id) {
    id
    kind
    version
    data
  }
}
`},
			},
		},
		OpRecordVersions: {
			Name: OpRecordVersions,
			Args: []Argument{{Name: "id", Type: "String!"}},
			Shapes: []Shape{
				{Name: "recordVersions", Document: `query recordVersions($id: String!) {
  recordVersions(id: $id) {
    recordId
    versions
  }
}
`},
			},
		},
	},
}

// Lookup returns the template operation for a service. Unknown services or
// operations are invalid, not transient, so callers fail fast.
func Lookup(service, operation string) (Operation, error) {
	ops, ok := templates[service]
	if !ok {
		return Operation{}, errors.WrapInvalid(
			fmt.Errorf("no templates for service %q", service),
			"querybuilder", "Lookup", "resolve service")
	}
	op, ok := ops[operation]
	if !ok {
		return Operation{}, errors.WrapInvalid(
			fmt.Errorf("operation %q not defined for service %q", operation, service),
			"querybuilder", "Lookup", "resolve operation")
	}
	return op, nil
}

// Services lists the services with template coverage
func Services() []string {
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	return names
}

// Operations lists the operation names defined for a service
func Operations(service string) []string {
	ops, ok := templates[service]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(ops))
	for name := range ops {
		names = append(names, name)
	}
	return names
}
