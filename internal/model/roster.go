package model

import "strings"

// Roster is the statically configured staff list. Config is the source of truth:
// session start rewrites a stored role whenever it disagrees with the roster.
type Roster struct {
	Admins map[string]struct{}
	Agents map[string]struct{}
}

// NewRoster builds a roster from id lists, ignoring blanks.
func NewRoster(admins, agents []string) Roster {
	return Roster{Admins: toSet(admins), Agents: toSet(agents)}
}

// Target returns the role an id must hold: admin over agent over client.
func (r Roster) Target(id string) Role {
	if _, ok := r.Admins[id]; ok {
		return RoleAdmin
	}
	if _, ok := r.Agents[id]; ok {
		return RoleAgent
	}
	return RoleClient
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			set[id] = struct{}{}
		}
	}
	return set
}
