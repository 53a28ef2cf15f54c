package mapping

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ppiankov/codemeta2mp/internal/jsonld"
	"github.com/ppiankov/codemeta2mp/internal/model"
)

// mapContributors lists maintainers, then authors, then contributors,
// numbering them consecutively from 1
func mapContributors(s *state) error {
	ord := 0
	for _, r := range actorRoles {
		for _, v := range s.node.Get(r.Property) {
			actor, err := toActor(v)
			if err != nil {
				return &model.MappingError{Field: r.Property, Reason: err.Error()}
			}
			ord++
			role := r.Role
			role.Ord = ord
			s.record.Contributors = append(s.record.Contributors, model.Contributor{Actor: actor, Role: role})
		}
	}
	return nil
}

func toActor(v jsonld.Value) (model.Actor, error) {
	if v.IsLiteral() {
		name := v.Text()
		if name == "" {
			return model.Actor{}, errors.New("actor name is empty")
		}
		return model.Actor{Name: name}, nil
	}

	n := v.Node()
	var actor model.Actor

	orcid := ""
	if strings.HasPrefix(v.ID(), orcidPrefix) {
		orcid = v.ID()
	} else if n != nil {
		for _, same := range n.Get("sameAs") {
			if strings.HasPrefix(same.Text(), orcidPrefix) {
				orcid = same.Text()
				break
			}
		}
	}
	if orcid != "" {
		actor.ExternalIDs = []model.ExternalID{{
			IdentifierService: ServiceORCID,
			Identifier:        strings.TrimSuffix(strings.TrimPrefix(orcid, orcidPrefix), "/"),
		}}
	}

	if n != nil {
		actor.Name = n.Text("name")
		if actor.Name == "" {
			given, family := n.Text("givenName"), n.Text("familyName")
			actor.Name = strings.TrimSpace(given + " " + family)
		}
		actor.Website = n.Text("url")
	}

	if actor.Name == "" {
		id := v.ID()
		if id == "" {
			id = "anonymous actor"
		}
		return model.Actor{}, fmt.Errorf("no name, givenName or familyName for %s", id)
	}
	return actor, nil
}
