package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Service provides validated directory operations on top of a Store.
type Service struct {
	store Store
}

// NewService constructs a Service.
func NewService(store Store) (*Service, error) {
	if store == nil {
		return nil, errors.New("directory store is required")
	}
	return &Service{store: store}, nil
}

// NewPerson describes a person to be registered.
type NewPerson struct {
	AuthRef   string
	FirstName string
	LastName  string
	Email     string
}

func (s *Service) CreatePerson(ctx context.Context, np NewPerson) (*Person, error) {
	first := strings.TrimSpace(np.FirstName)
	last := strings.TrimSpace(np.LastName)
	if first == "" || last == "" {
		return nil, fmt.Errorf("%w: first and last name are required", ErrInvalidInput)
	}
	p := &Person{
		AuthRef:   strings.TrimSpace(np.AuthRef),
		FirstName: first,
		LastName:  last,
		Email:     strings.TrimSpace(strings.ToLower(np.Email)),
	}
	if err := s.store.CreatePerson(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) FindPerson(ctx context.Context, id string) (*Person, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: person_id is required", ErrInvalidInput)
	}
	return s.store.FindPerson(ctx, id)
}

func (s *Service) FindPersonByAuthRef(ctx context.Context, ref string) (*Person, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("%w: auth ref is required", ErrInvalidInput)
	}
	return s.store.FindPersonByAuthRef(ctx, ref)
}

func (s *Service) CreateProject(ctx context.Context, name, code string) (*Project, error) {
	name = strings.TrimSpace(name)
	code = strings.TrimSpace(strings.ToUpper(code))
	if name == "" || code == "" {
		return nil, fmt.Errorf("%w: project name and code are required", ErrInvalidInput)
	}
	p := &Project{Name: name, Code: code}
	if err := s.store.CreateProject(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) FindProject(ctx context.Context, id string) (*Project, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: project_id is required", ErrInvalidInput)
	}
	return s.store.FindProject(ctx, id)
}

func (s *Service) ListProjects(ctx context.Context) ([]*Project, error) {
	return s.store.ListProjects(ctx)
}

func (s *Service) CreateCompany(ctx context.Context, name string) (*Company, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: company name is required", ErrInvalidInput)
	}
	c := &Company{Name: name}
	if err := s.store.CreateCompany(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) CreateDepartment(ctx context.Context, name string) (*Department, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: department name is required", ErrInvalidInput)
	}
	d := &Department{Name: name}
	if err := s.store.CreateDepartment(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// NewAssignment describes a role binding to be created.
type NewAssignment struct {
	PersonID     string
	ProjectID    string
	Role         string
	CompanyID    string
	DepartmentID string
}

func (s *Service) CreateAssignment(ctx context.Context, na NewAssignment) (*Assignment, error) {
	personID := strings.TrimSpace(na.PersonID)
	projectID := strings.TrimSpace(na.ProjectID)
	if personID == "" || projectID == "" {
		return nil, fmt.Errorf("%w: person_id and project_id are required", ErrInvalidInput)
	}
	role, err := ParseRole(na.Role)
	if err != nil {
		return nil, err
	}
	a := &Assignment{
		PersonID:     personID,
		ProjectID:    projectID,
		Role:         role,
		CompanyID:    strings.TrimSpace(na.CompanyID),
		DepartmentID: strings.TrimSpace(na.DepartmentID),
		Active:       true,
	}
	if err := s.store.CreateAssignment(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) DeactivateAssignment(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: assignment_id is required", ErrInvalidInput)
	}
	return s.store.DeactivateAssignment(ctx, id)
}

func (s *Service) ListActiveAssignments(ctx context.Context, personID string) ([]Assignment, error) {
	personID = strings.TrimSpace(personID)
	if personID == "" {
		return nil, fmt.Errorf("%w: person_id is required", ErrInvalidInput)
	}
	return s.store.ListActiveAssignments(ctx, personID)
}
