package source

import (
	"context"
	"sort"
	"sync"

	"github.com/Peleke/colloquium/internal/domain"
)

// MemoryLookup is an in-memory Lookup, used by tests and as a fallback
// when no database is configured.
type MemoryLookup struct {
	mu        sync.RWMutex
	materials map[string]*Material
}

// NewMemoryLookup creates a MemoryLookup seeded with the given materials.
func NewMemoryLookup(materials ...*Material) *MemoryLookup {
	m := &MemoryLookup{materials: make(map[string]*Material, len(materials))}
	for _, mat := range materials {
		m.materials[mat.ID] = mat
	}
	return m
}

// Put adds or replaces a material.
func (l *MemoryLookup) Put(m *Material) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.materials[m.ID] = m
}

func (l *MemoryLookup) Get(ctx context.Context, id string) (*Material, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	m, ok := l.materials[id]
	if !ok {
		return nil, domain.ErrSourceNotFound
	}
	cp := *m
	cp.Roles = append([]string(nil), m.Roles...)
	return &cp, nil
}

func (l *MemoryLookup) List(ctx context.Context) ([]*Material, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Material, 0, len(l.materials))
	for _, m := range l.materials {
		cp := *m
		cp.Roles = append([]string(nil), m.Roles...)
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Seed returns the built-in scenes used when the database has no
// materials yet. Scenes are colloquium-style Latin dialogues.
func Seed() []*Material {
	return []*Material{
		{
			ID:             "taberna",
			Title:          "In taberna",
			TargetLanguage: "la",
			Setting:        "A customer haggles with a shopkeeper over bread and wine.",
			Roles:          []string{"tabernarius", "emptor"},
		},
		{
			ID:             "ludus",
			Title:          "In ludo",
			TargetLanguage: "la",
			Setting:        "A pupil arrives late and explains himself to the schoolmaster.",
			Roles:          []string{"magister", "discipulus"},
		},
		{
			ID:             "thermae",
			Title:          "In thermis",
			TargetLanguage: "la",
			Setting:        "Two friends meet at the baths and trade news of the town.",
			Roles:          []string{"amicus", "hospes"},
		},
	}
}
