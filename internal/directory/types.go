package directory

import "time"

// Person is a workforce identity record. People are never hard-deleted;
// removing someone from a project deactivates their assignment instead.
type Person struct {
	ID        string    `json:"id"`
	AuthRef   string    `json:"auth_ref,omitempty"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Project is a construction site / commessa. Read-only from the session
// core's perspective.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Company is a contractor (ditta) working on one or more projects.
type Company struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Department is an organizational unit within a project.
type Department struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Assignment binds a person to a project with a role, optionally scoped to a
// company and department. At most one active assignment may exist per
// person+project pair. The Project/Company/Department pointers are
// denormalized snapshots fetched once per load.
type Assignment struct {
	ID           string    `json:"id"`
	PersonID     string    `json:"person_id"`
	ProjectID    string    `json:"project_id"`
	Role         Role      `json:"role"`
	CompanyID    string    `json:"company_id,omitempty"`
	DepartmentID string    `json:"department_id,omitempty"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`

	Project    *Project    `json:"project,omitempty"`
	Company    *Company    `json:"company,omitempty"`
	Department *Department `json:"department,omitempty"`
}
