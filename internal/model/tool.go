package model

import (
	"encoding/json"
	"fmt"
)

// ToolRecord is a tool/service entry in the SSHOC Open Marketplace vocabulary.
// Unset fields are omitted when marshaled, never sent as null or empty.
type ToolRecord struct {
	Label        string        `json:"label,omitempty"`
	Description  string        `json:"description,omitempty"`
	ExternalIDs  []ExternalID  `json:"externalIds,omitempty"`
	AccessibleAt []AccessPoint `json:"accessibleAt,omitempty"`
	Thumbnail    string        `json:"thumbnail,omitempty"`
	Contributors []Contributor `json:"contributors,omitempty"`
	Properties   []Property    `json:"properties,omitempty"`
}

// ExternalID identifies the tool (or an actor) in an external service
type ExternalID struct {
	IdentifierService IdentifierService `json:"identifierService"`
	Identifier        string            `json:"identifier"`
}

// IdentifierService describes a service that issues identifiers
type IdentifierService struct {
	Code        string `json:"code"`
	Label       string `json:"label,omitempty"`
	URLTemplate string `json:"urlTemplate,omitempty"` // e.g. "https://orcid.org/{source-item-id}"
}

// AccessType tags how an access point is reached
type AccessType string

const (
	AccessSourceCode AccessType = "source-code" // Source repository
	AccessService    AccessType = "service"     // Live, running service
)

// AccessPoint is a URL where the tool can be accessed.
// The Marketplace API takes plain URL strings, so only the URL is marshaled;
// Type stays available to Go callers and conversion reports.
type AccessPoint struct {
	URL  string
	Type AccessType
}

// MarshalJSON encodes the access point as its URL
func (a AccessPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.URL)
}

// UnmarshalJSON decodes a URL string; the access type is unknown on the wire
func (a *AccessPoint) UnmarshalJSON(data []byte) error {
	var url string
	if err := json.Unmarshal(data, &url); err != nil {
		return fmt.Errorf("access point: %w", err)
	}
	a.URL = url
	a.Type = ""
	return nil
}

// Contributor links an actor to the tool with a role
type Contributor struct {
	Actor Actor `json:"actor"`
	Role  Role  `json:"role"`
}

// Actor is a person or organisation
type Actor struct {
	Name        string       `json:"name,omitempty"`
	ExternalIDs []ExternalID `json:"externalIds,omitempty"`
	Website     string       `json:"website,omitempty"`
}

// Role is the contributor role with its display position (1-based)
type Role struct {
	Code  string `json:"code"`
	Label string `json:"label"`
	Ord   int    `json:"ord"`
}

// Property is a typed property with either a vocabulary concept or a free value
type Property struct {
	Type    PropertyType `json:"type"`
	Concept *Concept     `json:"concept,omitempty"`
	Value   string       `json:"value,omitempty"`
}

// PropertyType names the property kind
type PropertyType struct {
	Code string `json:"code"`
}

// Concept is a term from a controlled vocabulary
type Concept struct {
	Code  string `json:"code"`
	URI   string `json:"uri,omitempty"`
	Label string `json:"label,omitempty"`
}

// Property type codes used by the Marketplace
const (
	PropertyLicense        = "license"
	PropertyActivity       = "activity"
	PropertyModeOfUse      = "mode-of-use"
	PropertyLifeCycle      = "life-cycle-status"
	PropertyReadinessLevel = "technology-readiness-level"
	PropertyKeyword        = "keyword"
	PropertyVersion        = "version"
	PropertyUserManual     = "user-manual-url"
	PropertyLanguage       = "language"
)

// PropertiesOf returns all properties with the given type code
func (r *ToolRecord) PropertiesOf(code string) []Property {
	var out []Property
	for _, p := range r.Properties {
		if p.Type.Code == code {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks the fields the Marketplace requires before a record can be submitted
func (r *ToolRecord) Validate() error {
	if r.Label == "" {
		return &MappingError{Rule: "submission", Field: "label", Reason: "a name is required to submit a tool"}
	}
	if r.Description == "" {
		return &MappingError{Rule: "submission", Field: "description", Reason: "a description is required to submit a tool"}
	}
	return nil
}
