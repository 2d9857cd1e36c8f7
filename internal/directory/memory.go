package directory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"pts.app/internal/ids"
)

// MemoryStore is an in-process Store used by tests and the smoke client.
type MemoryStore struct {
	mu          sync.RWMutex
	people      map[string]*Person
	byAuthRef   map[string]string
	projects    map[string]*Project
	companies   map[string]*Company
	departments map[string]*Department
	assignments map[string]*Assignment
}

// NewMemoryStore returns an empty in-memory directory.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		people:      make(map[string]*Person),
		byAuthRef:   make(map[string]string),
		projects:    make(map[string]*Project),
		companies:   make(map[string]*Company),
		departments: make(map[string]*Department),
		assignments: make(map[string]*Assignment),
	}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) CreatePerson(_ context.Context, p *Person) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = ids.New()
	}
	if p.AuthRef != "" {
		if _, exists := m.byAuthRef[p.AuthRef]; exists {
			return ErrConflict
		}
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	clone := *p
	m.people[p.ID] = &clone
	if p.AuthRef != "" {
		m.byAuthRef[p.AuthRef] = p.ID
	}
	return nil
}

func (m *MemoryStore) FindPerson(_ context.Context, id string) (*Person, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.people[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func (m *MemoryStore) FindPersonByAuthRef(_ context.Context, ref string) (*Person, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byAuthRef[strings.TrimSpace(ref)]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *m.people[id]
	return &clone, nil
}

func (m *MemoryStore) CreateProject(_ context.Context, p *Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = ids.New()
	}
	for _, existing := range m.projects {
		if existing.Code == p.Code {
			return ErrConflict
		}
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	clone := *p
	m.projects[p.ID] = &clone
	return nil
}

func (m *MemoryStore) FindProject(_ context.Context, id string) (*Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func (m *MemoryStore) ListProjects(_ context.Context) ([]*Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Project, 0, len(m.projects))
	for _, p := range m.projects {
		clone := *p
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *MemoryStore) CreateCompany(_ context.Context, c *Company) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		c.ID = ids.New()
	}
	c.CreatedAt = time.Now().UTC()
	clone := *c
	m.companies[c.ID] = &clone
	return nil
}

func (m *MemoryStore) CreateDepartment(_ context.Context, d *Department) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.ID == "" {
		d.ID = ids.New()
	}
	d.CreatedAt = time.Now().UTC()
	clone := *d
	m.departments[d.ID] = &clone
	return nil
}

func (m *MemoryStore) CreateAssignment(_ context.Context, a *Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.people[a.PersonID]; !ok {
		return ErrNotFound
	}
	if _, ok := m.projects[a.ProjectID]; !ok {
		return ErrNotFound
	}
	for _, existing := range m.assignments {
		if existing.Active && existing.PersonID == a.PersonID && existing.ProjectID == a.ProjectID {
			return ErrConflict
		}
	}
	if a.ID == "" {
		a.ID = ids.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	a.Active = true
	clone := *a
	clone.Project, clone.Company, clone.Department = nil, nil, nil
	m.assignments[a.ID] = &clone
	return nil
}

func (m *MemoryStore) DeactivateAssignment(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assignments[id]
	if !ok {
		return ErrNotFound
	}
	a.Active = false
	return nil
}

func (m *MemoryStore) ListActiveAssignments(_ context.Context, personID string) ([]Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Assignment
	for _, a := range m.assignments {
		if !a.Active || a.PersonID != personID {
			continue
		}
		joined := *a
		if p, ok := m.projects[a.ProjectID]; ok {
			clone := *p
			joined.Project = &clone
		}
		if c, ok := m.companies[a.CompanyID]; ok {
			clone := *c
			joined.Company = &clone
		}
		if d, ok := m.departments[a.DepartmentID]; ok {
			clone := *d
			joined.Department = &clone
		}
		out = append(out, joined)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}
