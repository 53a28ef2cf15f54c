package mapping

import (
	"regexp"
	"strings"

	"github.com/ppiankov/codemeta2mp/internal/model"
)

var doiPattern = regexp.MustCompile(`^10\.\d{4,9}/\S+$`)

// mapIdentifiers collects external identifiers: the CLARIAH tool id, a DOI,
// and the repository on a known code host
func mapIdentifiers(s *state) error {
	if id, ok := strings.CutPrefix(s.node.ID, clariahPrefix); ok && id != "" {
		s.record.ExternalIDs = append(s.record.ExternalIDs, model.ExternalID{
			IdentifierService: ServiceClariah,
			Identifier:        id,
		})
	}

	if doi := findDOI(s); doi != "" {
		s.record.ExternalIDs = append(s.record.ExternalIDs, model.ExternalID{
			IdentifierService: ServiceDOI,
			Identifier:        doi,
		})
	}

	repo := s.node.Text("codeRepository")
	for _, rs := range RepositoryServices {
		if id, ok := strings.CutPrefix(repo, rs.Prefix); ok && id != "" {
			s.record.ExternalIDs = append(s.record.ExternalIDs, model.ExternalID{
				IdentifierService: rs.Service,
				Identifier:        strings.TrimSuffix(strings.TrimSuffix(id, "/"), ".git"),
			})
			break
		}
	}
	return nil
}

// findDOI returns the first DOI among the node id and its identifiers
func findDOI(s *state) string {
	candidates := []string{s.node.ID}
	for _, v := range s.node.Get("identifier") {
		if v.IsNode() {
			pv := v.Node()
			if strings.EqualFold(pv.Text("propertyID"), "doi") {
				candidates = append(candidates, pv.Text("value"))
				continue
			}
			candidates = append(candidates, pv.Text("value"), pv.Text("url"))
			if v.ID() != "" {
				candidates = append(candidates, v.ID())
			}
			continue
		}
		candidates = append(candidates, v.Text())
	}

	for _, c := range candidates {
		if doi := NormalizeDOI(c); doi != "" {
			return doi
		}
	}
	return ""
}

// NormalizeDOI extracts the bare DOI ("10.xxxx/yyy") from a DOI IRI, a
// "doi:" CURIE or a bare DOI. Anything else yields "".
func NormalizeDOI(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "http://dx.doi.org/", "doi:"} {
		if rest, ok := strings.CutPrefix(s, prefix); ok {
			s = rest
			break
		}
	}
	if doiPattern.MatchString(s) {
		return s
	}
	return ""
}
