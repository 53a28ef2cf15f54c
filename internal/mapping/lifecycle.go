package mapping

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ppiankov/codemeta2mp/internal/jsonld"
	"github.com/ppiankov/codemeta2mp/internal/model"
)

// RescaleReadiness maps a 0–9 readiness level onto the Marketplace 1–9 scale:
// 0 and 1 become 1, 2–9 pass through. Anything else is an error.
func RescaleReadiness(level int) (int, error) {
	if level < 0 || level > 9 {
		return 0, fmt.Errorf("readiness level %d outside 0-9", level)
	}
	if level <= 1 {
		return 1, nil
	}
	return level, nil
}

// LookupLifecycle returns the lifecycle code for the given statuses and
// rescaled level (0 = unknown), or "" when no row matches
func LookupLifecycle(statuses []string, level int) string {
	for _, row := range LifecycleTable {
		if !row.Levels.Contains(level) {
			continue
		}
		if row.Status == AnyStatus {
			return row.LifeCycle
		}
		for _, st := range statuses {
			if st == row.Status {
				return row.LifeCycle
			}
		}
	}
	return ""
}

// devStatus is developmentStatus split by vocabulary
type devStatus struct {
	statuses  []string // repostatus tokens and TRL stage names
	level     int      // TRL level from the TRL vocabulary, -1 if absent
	lifecycle string   // EOSC lifecycle IRI given verbatim
	trl       string   // EOSC TRL IRI given verbatim
}

// mapLifeCycle derives the life-cycle-status and technology-readiness-level
// properties from developmentStatus combined with readinessLevel
func mapLifeCycle(s *state) error {
	ds, err := parseDevelopmentStatus(s)
	if err != nil {
		return err
	}

	level := ds.level
	explicit, found, err := readinessLevel(s.node)
	if err != nil {
		return err
	}
	if found {
		if level >= 0 && level != explicit {
			s.warn(model.WarnIgnoredValue, "developmentStatus", "readinessLevel %d overrides TRL level %d", explicit, level)
		}
		level = explicit
	}

	rescaled := 0
	if level >= 0 {
		rescaled, err = RescaleReadiness(level)
		if err != nil {
			return &model.MappingError{Field: "readinessLevel", Reason: err.Error()}
		}
	}

	lifecycle := ""
	if ds.lifecycle != "" && !contains(ds.statuses, StatusAbandoned) {
		lifecycle = ds.lifecycle
	} else if code := LookupLifecycle(ds.statuses, rescaled); code != "" {
		lifecycle = NamespaceLifeCycle + code
	}
	if lifecycle != "" {
		s.addConcept(model.PropertyLifeCycle, model.Concept{Code: lastSegment(lifecycle), URI: lifecycle})
	}

	trl := ds.trl
	if rescaled > 0 {
		trl = NamespaceReadinessLevel + "trl-" + strconv.Itoa(rescaled)
	}
	if trl != "" {
		s.addConcept(model.PropertyReadinessLevel, model.Concept{Code: lastSegment(trl), URI: trl})
	}
	return nil
}

func parseDevelopmentStatus(s *state) (devStatus, error) {
	ds := devStatus{level: -1}
	for _, v := range s.node.Get("developmentStatus") {
		if _, isString := v.AsString(); !isString && v.ID() == "" {
			return ds, &model.MappingError{
				Field:  "developmentStatus",
				Reason: fmt.Sprintf("expected a status term or IRI, got %v", describe(v)),
			}
		}
		raw := v.Text()

		switch {
		case strings.HasPrefix(raw, NamespaceLifeCycle):
			ds.lifecycle = raw
			continue
		case strings.HasPrefix(raw, NamespaceReadinessLevel):
			ds.trl = raw
			continue
		}

		term := statusTerm(raw)
		if lvl, ok := readinessLevels[term]; ok {
			ds.level = lvl
			continue
		}
		if readinessStages[term] || repoStatuses[term] {
			ds.statuses = append(ds.statuses, term)
			continue
		}
		s.warn(model.WarnUnknownStatus, "developmentStatus", "development status %q not recognised", raw)
	}
	return ds, nil
}

// statusTerm reduces a repostatus or TRL IRI, CURIE or bare term to its local name
func statusTerm(raw string) string {
	for _, prefix := range []string{
		NamespaceRepoStatus, "http://www.repostatus.org/#", "https://repostatus.org/#", "repostatus:",
		NamespaceTRL, "trl:",
	} {
		if rest, ok := strings.CutPrefix(raw, prefix); ok {
			return rest
		}
	}
	term := jsonld.Term(raw)
	if repoStatuses[strings.ToLower(term)] {
		return strings.ToLower(term)
	}
	return term
}

// readinessLevel reads the numeric readinessLevel field. Numeric strings are
// accepted; fractions, booleans and other text are mapping errors.
func readinessLevel(n *jsonld.Node) (int, bool, error) {
	v, ok := n.First("readinessLevel")
	if !ok {
		return 0, false, nil
	}

	var f float64
	switch {
	case v.IsLiteral():
		var text string
		if num, isNum := v.Number(); isNum {
			text = num.String()
		} else if str, isStr := v.AsString(); isStr {
			text = strings.TrimSpace(str)
		} else {
			return 0, false, readinessError(v)
		}
		parsed, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return 0, false, readinessError(v)
		}
		f = parsed
	default:
		return 0, false, readinessError(v)
	}

	if f != math.Trunc(f) {
		return 0, false, readinessError(v)
	}
	if f < 0 || f > 9 {
		return 0, false, &model.MappingError{
			Field:  "readinessLevel",
			Reason: fmt.Sprintf("readiness level %v outside 0-9", f),
		}
	}
	return int(f), true, nil
}

func readinessError(v jsonld.Value) error {
	return &model.MappingError{
		Field:  "readinessLevel",
		Reason: fmt.Sprintf("expected an integer 0-9, got %s", describe(v)),
	}
}

func describe(v jsonld.Value) string {
	switch {
	case v.IsLiteral():
		return fmt.Sprintf("%q", fmt.Sprint(v.Literal()))
	case v.Node() != nil:
		return "an object"
	default:
		return "an empty value"
	}
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
