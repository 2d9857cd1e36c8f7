package directory

import "context"

// Store describes persistence operations for the workforce directory.
type Store interface {
	CreatePerson(ctx context.Context, p *Person) error
	FindPerson(ctx context.Context, id string) (*Person, error)
	FindPersonByAuthRef(ctx context.Context, ref string) (*Person, error)

	CreateProject(ctx context.Context, p *Project) error
	FindProject(ctx context.Context, id string) (*Project, error)
	ListProjects(ctx context.Context) ([]*Project, error)

	CreateCompany(ctx context.Context, c *Company) error
	CreateDepartment(ctx context.Context, d *Department) error

	// CreateAssignment fails with ErrConflict when the person already holds an
	// active assignment on the same project.
	CreateAssignment(ctx context.Context, a *Assignment) error
	DeactivateAssignment(ctx context.Context, id string) error

	// ListActiveAssignments returns active assignments only, most recently
	// created first, each joined with project/company/department summaries.
	ListActiveAssignments(ctx context.Context, personID string) ([]Assignment, error)
}
