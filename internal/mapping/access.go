package mapping

import (
	"sort"
	"strings"

	"github.com/ppiankov/codemeta2mp/internal/jsonld"
	"github.com/ppiankov/codemeta2mp/internal/model"
)

// mapAccess expands the live services (targetProduct urls) and the source
// repository into separate, tagged access points. Services come first.
func mapAccess(s *state) error {
	seen := make(map[string]bool)
	add := func(url string, typ model.AccessType) {
		if url == "" || seen[url] {
			return
		}
		seen[url] = true
		s.record.AccessibleAt = append(s.record.AccessibleAt, model.AccessPoint{URL: url, Type: typ})
	}

	for _, v := range s.node.Get("targetProduct") {
		switch {
		case v.IsNode():
			add(v.Node().Text("url"), model.AccessService)
		case v.IsLiteral() && v.IsIRI():
			add(v.Text(), model.AccessService)
		}
	}

	for _, v := range s.node.Get("codeRepository") {
		if v.IsIRI() {
			add(v.Text(), model.AccessSourceCode)
		}
	}
	return nil
}

// mapModeOfUse derives invocation types from the targetProduct types
func mapModeOfUse(s *state) error {
	modes := make(map[string]bool)
	for _, v := range s.node.Get("targetProduct") {
		n := v.Node()
		if n == nil {
			continue
		}
		for _, typ := range n.Types {
			if code, ok := strings.CutPrefix(typ, NamespaceInvocationType); ok {
				modes[code] = true
				continue
			}
			if code, ok := SoftwareTypes[typ]; ok {
				modes[code] = true
				continue
			}
			s.warn(model.WarnUnknownSoftwareType, "targetProduct", "software type %q has no invocation type; dropped", typ)
		}
	}

	codes := make([]string, 0, len(modes))
	for code := range modes {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	for _, code := range codes {
		s.addConcept(model.PropertyModeOfUse, model.Concept{Code: code, URI: NamespaceInvocationType + code})
	}
	return nil
}

// mapLanguages collects ISO 639-3 languages from inLanguage anywhere in the
// description; they usually sit on consumesData/producesData
func mapLanguages(s *state) error {
	langs := make(map[string]bool)
	s.node.Walk(func(n *jsonld.Node) {
		for _, v := range n.Get("inLanguage") {
			if code := iso6393(v.Text()); code != "" {
				langs[code] = true
				continue
			}
			if v.IsNode() {
				if code := iso6393(v.Node().Text("identifier")); code != "" {
					langs[code] = true
					continue
				}
			}
			s.warn(model.WarnNoEquivalent, "inLanguage", "language %q is not an ISO 639-3 IRI; dropped", v.Text())
		}
	})

	codes := make([]string, 0, len(langs))
	for code := range langs {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	for _, code := range codes {
		s.addConcept(model.PropertyLanguage, model.Concept{Code: code, URI: NamespaceISO6393 + code})
	}
	return nil
}

func iso6393(iri string) string {
	for _, ns := range []string{NamespaceISO6393, NamespaceSIL6393} {
		if code, ok := strings.CutPrefix(iri, ns); ok {
			return strings.Trim(code, "/")
		}
	}
	return ""
}
