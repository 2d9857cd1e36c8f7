package pg

import (
	"context"
	"database/sql"
	"errors"

	"pts.app/internal/directory"
	"pts.app/internal/ids"
)

var _ directory.Store = (*DirectoryStore)(nil)

// DirectoryStore implements directory.Store on PostgreSQL. At most one active
// assignment per person+project pair is enforced by a partial unique index,
// surfaced here as ErrConflict.
type DirectoryStore struct {
	db *sql.DB
}

func NewDirectoryStore(db *sql.DB) *DirectoryStore {
	return &DirectoryStore{db: db}
}

func (s *DirectoryStore) CreatePerson(ctx context.Context, p *directory.Person) error {
	if p.ID == "" {
		p.ID = ids.New()
	}
	err := s.db.QueryRowContext(ctx, `
		insert into people(id, auth_ref, first_name, last_name, email)
		values ($1, nullif($2,''), $3, $4, nullif($5,''))
		returning created_at, updated_at
	`, p.ID, p.AuthRef, p.FirstName, p.LastName, p.Email).Scan(&p.CreatedAt, &p.UpdatedAt)
	if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
		return directory.ErrConflict
	}
	return err
}

func (s *DirectoryStore) FindPerson(ctx context.Context, id string) (*directory.Person, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, coalesce(auth_ref,''), first_name, last_name, coalesce(email,''), created_at, updated_at
		from people where id=$1
	`, id)
	return scanPerson(row)
}

func (s *DirectoryStore) FindPersonByAuthRef(ctx context.Context, ref string) (*directory.Person, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, coalesce(auth_ref,''), first_name, last_name, coalesce(email,''), created_at, updated_at
		from people where auth_ref=$1
	`, ref)
	return scanPerson(row)
}

func scanPerson(row *sql.Row) (*directory.Person, error) {
	var p directory.Person
	err := row.Scan(&p.ID, &p.AuthRef, &p.FirstName, &p.LastName, &p.Email, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, directory.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *DirectoryStore) CreateProject(ctx context.Context, p *directory.Project) error {
	if p.ID == "" {
		p.ID = ids.New()
	}
	err := s.db.QueryRowContext(ctx, `
		insert into projects(id, name, code)
		values ($1, $2, $3)
		returning created_at, updated_at
	`, p.ID, p.Name, p.Code).Scan(&p.CreatedAt, &p.UpdatedAt)
	if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
		return directory.ErrConflict
	}
	return err
}

func (s *DirectoryStore) FindProject(ctx context.Context, id string) (*directory.Project, error) {
	var p directory.Project
	err := s.db.QueryRowContext(ctx, `
		select id, name, code, created_at, updated_at from projects where id=$1
	`, id).Scan(&p.ID, &p.Name, &p.Code, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, directory.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *DirectoryStore) ListProjects(ctx context.Context) ([]*directory.Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, name, code, created_at, updated_at from projects order by name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*directory.Project
	for rows.Next() {
		var p directory.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Code, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, &p)
	}
	return result, rows.Err()
}

func (s *DirectoryStore) CreateCompany(ctx context.Context, c *directory.Company) error {
	if c.ID == "" {
		c.ID = ids.New()
	}
	err := s.db.QueryRowContext(ctx, `
		insert into companies(id, name) values ($1, $2) returning created_at
	`, c.ID, c.Name).Scan(&c.CreatedAt)
	if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
		return directory.ErrConflict
	}
	return err
}

func (s *DirectoryStore) CreateDepartment(ctx context.Context, d *directory.Department) error {
	if d.ID == "" {
		d.ID = ids.New()
	}
	err := s.db.QueryRowContext(ctx, `
		insert into departments(id, name) values ($1, $2) returning created_at
	`, d.ID, d.Name).Scan(&d.CreatedAt)
	if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
		return directory.ErrConflict
	}
	return err
}

func (s *DirectoryStore) CreateAssignment(ctx context.Context, a *directory.Assignment) error {
	if a.ID == "" {
		a.ID = ids.New()
	}
	err := s.db.QueryRowContext(ctx, `
		insert into assignments(id, person_id, project_id, role, company_id, department_id, active)
		values ($1, $2, $3, $4, $5, $6, $7)
		returning created_at
	`, a.ID, a.PersonID, a.ProjectID, string(a.Role),
		nullIfEmpty(a.CompanyID), nullIfEmpty(a.DepartmentID), a.Active,
	).Scan(&a.CreatedAt)
	if pgErr, ok := maybePgError(err); ok {
		switch pgErr.Code {
		case pgErrUniqueViolation:
			return directory.ErrConflict
		case pgErrForeignKeyViolation:
			return directory.ErrInvalidInput
		}
	}
	return err
}

func (s *DirectoryStore) DeactivateAssignment(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		update assignments set active=false where id=$1
	`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return directory.ErrNotFound
	}
	return nil
}

func (s *DirectoryStore) ListActiveAssignments(ctx context.Context, personID string) ([]directory.Assignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		select a.id, a.person_id, a.project_id, a.role,
		       coalesce(a.company_id,''), coalesce(a.department_id,''), a.active, a.created_at,
		       p.id, p.name, p.code, p.created_at, p.updated_at,
		       c.id, c.name, c.created_at,
		       d.id, d.name, d.created_at
		from assignments a
		join projects p on p.id = a.project_id
		left join companies c on c.id = a.company_id
		left join departments d on d.id = a.department_id
		where a.person_id = $1 and a.active
		order by a.created_at desc, a.id desc
	`, personID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []directory.Assignment
	for rows.Next() {
		var (
			a           directory.Assignment
			role        string
			proj        directory.Project
			compID      sql.NullString
			compName    sql.NullString
			compCreated sql.NullTime
			deptID      sql.NullString
			deptName    sql.NullString
			deptCreated sql.NullTime
		)
		if err := rows.Scan(
			&a.ID, &a.PersonID, &a.ProjectID, &role,
			&a.CompanyID, &a.DepartmentID, &a.Active, &a.CreatedAt,
			&proj.ID, &proj.Name, &proj.Code, &proj.CreatedAt, &proj.UpdatedAt,
			&compID, &compName, &compCreated,
			&deptID, &deptName, &deptCreated,
		); err != nil {
			return nil, err
		}
		a.Role = directory.Role(role)
		a.Project = &proj
		if compID.Valid {
			a.Company = &directory.Company{ID: compID.String, Name: compName.String, CreatedAt: compCreated.Time}
		}
		if deptID.Valid {
			a.Department = &directory.Department{ID: deptID.String, Name: deptName.String, CreatedAt: deptCreated.Time}
		}
		result = append(result, a)
	}
	return result, rows.Err()
}
