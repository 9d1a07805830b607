// Package source provides dialogue source material: the scenes, role
// pairs, and settings that seed a practice session.
package source

import "context"

// Material is one dialogue scene a session can be started from. Roles
// always come in complementary pairs; the learner plays whichever role
// the counterpart does not.
type Material struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	TargetLanguage string   `json:"targetLanguage"`
	Setting        string   `json:"setting"`
	Roles          []string `json:"roles"`
}

// Complement returns the role opposite the given one, or "" if role is
// not part of this scene.
func (m *Material) Complement(role string) string {
	for i, r := range m.Roles {
		if r == role {
			return m.Roles[(i+1)%len(m.Roles)]
		}
	}
	return ""
}

// HasRole reports whether role belongs to this scene.
func (m *Material) HasRole(role string) bool {
	for _, r := range m.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Lookup resolves source material ids. Implementations: the SQLite
// store, the in-memory store, and the caching wrapper.
type Lookup interface {
	// Get returns the material with the given id, or
	// domain.ErrSourceNotFound.
	Get(ctx context.Context, id string) (*Material, error)

	// List returns all materials, ordered by id.
	List(ctx context.Context) ([]*Material, error)
}
