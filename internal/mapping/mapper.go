// Package mapping converts CodeMeta software descriptions into SSHOC Open
// Marketplace tool records.
//
// The field mapping is the Rules table; value-space crosswalks live in
// vocab.go. Both are constant data, evaluated once per record in order.
package mapping

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ppiankov/codemeta2mp/internal/jsonld"
	"github.com/ppiankov/codemeta2mp/internal/model"
)

// Rule maps one or more source properties into the destination record
type Rule struct {
	Name    string
	Sources []string // Source properties the rule consumes
	Apply   func(s *state) error
}

// Rules is the mapping table, in evaluation (and output) order
var Rules = []Rule{
	{Name: "label", Sources: []string{"name"}, Apply: mapLabel},
	{Name: "description", Sources: []string{"description"}, Apply: mapDescription},
	{Name: "contributors", Sources: []string{"maintainer", "author", "contributor"}, Apply: mapContributors},
	{Name: "license", Sources: []string{"license"}, Apply: mapLicense},
	{Name: "activity", Sources: []string{"applicationCategory"}, Apply: mapActivity},
	{Name: "identifiers", Sources: []string{"identifier", "codeRepository"}, Apply: mapIdentifiers},
	{Name: "access", Sources: []string{"targetProduct", "codeRepository"}, Apply: mapAccess},
	{Name: "mode-of-use", Sources: []string{"targetProduct"}, Apply: mapModeOfUse},
	{Name: "life-cycle", Sources: []string{"developmentStatus", "readinessLevel"}, Apply: mapLifeCycle},
	{Name: "keywords", Sources: []string{"keywords"}, Apply: mapKeywords},
	{Name: "version", Sources: []string{"version", "softwareVersion"}, Apply: mapVersion},
	{Name: "user-manual", Sources: []string{"softwareHelp"}, Apply: mapUserManual},
	{Name: "languages", Sources: []string{"inLanguage"}, Apply: mapLanguages},
	{Name: "thumbnail", Sources: []string{"thumbnailUrl"}, Apply: mapThumbnail},
}

// state is the per-conversion scratch space; nothing in it outlives Convert
type state struct {
	node     *jsonld.Node
	record   *model.ToolRecord
	warnings []model.Warning
}

func (s *state) warn(code model.WarningCode, field, format string, args ...any) {
	s.warnings = append(s.warnings, model.Warning{
		Code:    code,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	})
}

func (s *state) addConcept(typeCode string, c model.Concept) {
	s.record.Properties = append(s.record.Properties, model.Property{
		Type:    model.PropertyType{Code: typeCode},
		Concept: &c,
	})
}

func (s *state) addValue(typeCode, value string) {
	s.record.Properties = append(s.record.Properties, model.Property{
		Type:  model.PropertyType{Code: typeCode},
		Value: value,
	})
}

// Convert maps a single CodeMeta node to a Marketplace tool record.
// Source fields without a rule are dropped and reported as warnings.
func Convert(node *jsonld.Node) (*model.Conversion, error) {
	if node == nil {
		return nil, &model.MappingError{Reason: "no source node"}
	}

	s := &state{node: node, record: &model.ToolRecord{}}
	consumed := make(map[string]bool)

	for _, rule := range Rules {
		for _, src := range rule.Sources {
			consumed[src] = true
		}
		if err := rule.Apply(s); err != nil {
			var mErr *model.MappingError
			if errors.As(err, &mErr) && mErr.Rule == "" {
				mErr.Rule = rule.Name
			}
			return nil, err
		}
	}

	for _, key := range node.Keys() {
		if consumed[key] || strings.HasPrefix(key, "@") {
			continue
		}
		s.warn(model.WarnUnmappedField, key, "no Marketplace equivalent for %q; dropped", key)
	}

	return &model.Conversion{
		SourceID: node.ID,
		Record:   s.record,
		Warnings: s.warnings,
	}, nil
}

// ConvertDocument converts every software node of a document, in document order
func ConvertDocument(doc *jsonld.Document) ([]*model.Conversion, error) {
	nodes, err := doc.SoftwareNodes()
	if err != nil {
		return nil, err
	}

	out := make([]*model.Conversion, 0, len(nodes))
	for _, n := range nodes {
		conv, err := Convert(n)
		if err != nil {
			if n.ID != "" {
				return nil, fmt.Errorf("%s: %w", n.ID, err)
			}
			return nil, err
		}
		out = append(out, conv)
	}
	return out, nil
}

func mapLabel(s *state) error {
	s.record.Label = firstText(s, "name", "label")
	return nil
}

func mapDescription(s *state) error {
	text, err := toMarkdown(firstText(s, "description", "description"))
	if err != nil {
		return &model.MappingError{Rule: "description", Field: "description", Reason: "unreadable HTML markup", Err: err}
	}
	s.record.Description = text
	return nil
}

func mapThumbnail(s *state) error {
	s.record.Thumbnail = firstText(s, "thumbnailUrl", "thumbnail")
	return nil
}

func mapVersion(s *state) error {
	v := s.node.Text("version")
	if v == "" {
		v = s.node.Text("softwareVersion")
	}
	if v != "" {
		s.addValue(model.PropertyVersion, v)
	}
	return nil
}

// firstText takes the first non-empty literal of a property, warning about the rest
func firstText(s *state, key, target string) string {
	var chosen string
	for _, v := range s.node.Get(key) {
		t := v.Text()
		if t == "" {
			continue
		}
		if chosen == "" {
			chosen = t
			continue
		}
		if t != chosen {
			s.warn(model.WarnIgnoredValue, key, "only one %s is kept; dropped %q", target, t)
		}
	}
	return chosen
}

func mapLicense(s *state) error {
	for _, v := range s.node.Get("license") {
		uri := v.Text()
		if v.IsNode() && !v.IsIRI() {
			uri = v.Node().Text("url")
		}
		if !strings.HasPrefix(uri, "http") {
			s.warn(model.WarnNoEquivalent, "license", "license %q is not an IRI; dropped", uri)
			continue
		}
		s.addConcept(model.PropertyLicense, model.Concept{Code: lastSegment(uri), URI: uri})
	}
	return nil
}

func mapActivity(s *state) error {
	for _, v := range s.node.Get("applicationCategory") {
		uri := v.Text()
		if !strings.HasPrefix(uri, NamespaceTaDiRAH) {
			s.warn(model.WarnNoEquivalent, "applicationCategory", "category %q is not a TaDiRAH activity; dropped", uri)
			continue
		}
		s.addConcept(model.PropertyActivity, model.Concept{Code: lastSegment(uri), URI: uri})
	}
	return nil
}

func mapKeywords(s *state) error {
	for _, v := range s.node.Get("keywords") {
		var label string
		switch {
		case v.IsLiteral():
			label = v.Text()
		case v.IsNode():
			label = v.Node().Text("name")
		}
		if label == "" {
			continue
		}
		s.addConcept(model.PropertyKeyword, model.Concept{
			Code:  strings.ReplaceAll(strings.ToLower(label), " ", "+"),
			Label: label,
		})
	}
	return nil
}

func mapUserManual(s *state) error {
	for _, v := range s.node.Get("softwareHelp") {
		var url string
		switch {
		case v.IsLiteral() && v.IsIRI():
			url = v.Text()
		case v.IsNode():
			url = v.Node().Text("url")
		case v.IsIRI():
			url = v.Text()
		}
		if strings.HasPrefix(url, "http") {
			s.addValue(model.PropertyUserManual, url)
		}
	}
	return nil
}

// lastSegment returns the final path segment of an IRI, ignoring a trailing slash
func lastSegment(uri string) string {
	trimmed := strings.Trim(uri, "/")
	if i := strings.LastIndexAny(trimmed, "/#"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}
