package models

import "chatcache/pkg/clock"

// Group is a named member set discussions can belong to.
type Group struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Members  []string    `json:"members,omitempty"`
	IsPublic bool        `json:"is_public,omitempty"`
	Clock    clock.Clock `json:"clock"`
}

func (g Group) EntityClock() clock.Clock { return g.Clock }

// HasMember reports membership by user id.
func (g Group) HasMember(userID string) bool {
	for _, m := range g.Members {
		if m == userID {
			return true
		}
	}
	return false
}
