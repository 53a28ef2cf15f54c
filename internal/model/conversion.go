package model

// Conversion is the result of mapping one CodeMeta node
type Conversion struct {
	SourceID string      `json:"source_id,omitempty"` // @id of the converted node, if any
	Record   *ToolRecord `json:"record"`
	Warnings []Warning   `json:"warnings,omitempty"`
}

// Warning is a non-fatal coverage gap found during conversion
type Warning struct {
	Code    WarningCode `json:"code"`
	Field   string      `json:"field"`
	Message string      `json:"message"`
}

// WarningCode classifies a conversion warning
type WarningCode string

const (
	WarnUnmappedField       WarningCode = "unmapped-field"        // Source field has no mapping rule
	WarnNoEquivalent        WarningCode = "no-equivalent"         // Value is outside the destination vocabulary
	WarnUnknownStatus       WarningCode = "unknown-status"        // developmentStatus value not recognised
	WarnUnknownSoftwareType WarningCode = "unknown-software-type" // targetProduct type has no invocation type
	WarnIgnoredValue        WarningCode = "ignored-value"         // Extra value dropped in favour of another
	WarnUnreachableURL      WarningCode = "unreachable-url"       // A mapped URL did not answer (--check-links)
)
