package directory

import (
	"context"
	"errors"
	"testing"
	"time"
)

func seedPersonAndProjects(t *testing.T, store *MemoryStore) (*Person, *Project, *Project) {
	t.Helper()
	ctx := context.Background()

	person := &Person{FirstName: "Mario", LastName: "Rossi", AuthRef: "auth-1"}
	if err := store.CreatePerson(ctx, person); err != nil {
		t.Fatalf("CreatePerson: %v", err)
	}
	alpha := &Project{Name: "Alpha Plant", Code: "ALP"}
	if err := store.CreateProject(ctx, alpha); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	beta := &Project{Name: "Beta Terminal", Code: "BET"}
	if err := store.CreateProject(ctx, beta); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	return person, alpha, beta
}

func TestCreateAssignmentRejectsSecondActiveOnSameProject(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	person, alpha, _ := seedPersonAndProjects(t, store)

	first := &Assignment{PersonID: person.ID, ProjectID: alpha.ID, Role: RoleForeman}
	if err := store.CreateAssignment(ctx, first); err != nil {
		t.Fatalf("CreateAssignment: %v", err)
	}
	dup := &Assignment{PersonID: person.ID, ProjectID: alpha.ID, Role: RoleHelper}
	if err := store.CreateAssignment(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	// Deactivating the first frees the slot.
	if err := store.DeactivateAssignment(ctx, first.ID); err != nil {
		t.Fatalf("DeactivateAssignment: %v", err)
	}
	if err := store.CreateAssignment(ctx, dup); err != nil {
		t.Fatalf("CreateAssignment after deactivation: %v", err)
	}
}

func TestListActiveAssignmentsOrderAndJoins(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	person, alpha, beta := seedPersonAndProjects(t, store)

	dept := &Department{Name: "Warehouse"}
	if err := store.CreateDepartment(ctx, dept); err != nil {
		t.Fatalf("CreateDepartment: %v", err)
	}

	older := &Assignment{
		PersonID:  person.ID,
		ProjectID: alpha.ID,
		Role:      RoleForeman,
		CreatedAt: time.Now().UTC().Add(-time.Hour),
	}
	if err := store.CreateAssignment(ctx, older); err != nil {
		t.Fatalf("CreateAssignment: %v", err)
	}
	newer := &Assignment{
		PersonID:     person.ID,
		ProjectID:    beta.ID,
		Role:         RoleOffice,
		DepartmentID: dept.ID,
	}
	if err := store.CreateAssignment(ctx, newer); err != nil {
		t.Fatalf("CreateAssignment: %v", err)
	}

	assigns, err := store.ListActiveAssignments(ctx, person.ID)
	if err != nil {
		t.Fatalf("ListActiveAssignments: %v", err)
	}
	if len(assigns) != 2 {
		t.Fatalf("expected 2 assignments, got %d", len(assigns))
	}
	if assigns[0].ProjectID != beta.ID {
		t.Fatalf("expected most recent assignment first, got project %s", assigns[0].ProjectID)
	}
	if assigns[0].Project == nil || assigns[0].Project.Code != "BET" {
		t.Fatalf("expected joined project, got %+v", assigns[0].Project)
	}
	if assigns[0].Department == nil || assigns[0].Department.Name != "Warehouse" {
		t.Fatalf("expected joined department, got %+v", assigns[0].Department)
	}

	// Deactivated assignments disappear from the resolver output.
	if err := store.DeactivateAssignment(ctx, older.ID); err != nil {
		t.Fatalf("DeactivateAssignment: %v", err)
	}
	assigns, err = store.ListActiveAssignments(ctx, person.ID)
	if err != nil {
		t.Fatalf("ListActiveAssignments: %v", err)
	}
	if len(assigns) != 1 || assigns[0].ProjectID != beta.ID {
		t.Fatalf("unexpected assignments after deactivation: %+v", assigns)
	}
}

func TestFindPersonByAuthRef(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	person, _, _ := seedPersonAndProjects(t, store)

	found, err := store.FindPersonByAuthRef(ctx, "auth-1")
	if err != nil {
		t.Fatalf("FindPersonByAuthRef: %v", err)
	}
	if found.ID != person.ID {
		t.Fatalf("unexpected person: %s", found.ID)
	}
	if _, err := store.FindPersonByAuthRef(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestServiceValidation(t *testing.T) {
	svc, err := NewService(NewMemoryStore())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	ctx := context.Background()

	if _, err := svc.CreatePerson(ctx, NewPerson{FirstName: " ", LastName: "Rossi"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.CreateProject(ctx, "", "ALP"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	person, err := svc.CreatePerson(ctx, NewPerson{FirstName: "Anna", LastName: "Bianchi"})
	if err != nil {
		t.Fatalf("CreatePerson: %v", err)
	}
	project, err := svc.CreateProject(ctx, "Gamma Yard", "gam")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if project.Code != "GAM" {
		t.Fatalf("expected upper-cased code, got %s", project.Code)
	}
	if _, err := svc.CreateAssignment(ctx, NewAssignment{
		PersonID:  person.ID,
		ProjectID: project.ID,
		Role:      "big_boss",
	}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown role, got %v", err)
	}
	a, err := svc.CreateAssignment(ctx, NewAssignment{
		PersonID:  person.ID,
		ProjectID: project.ID,
		Role:      "PM",
	})
	if err != nil {
		t.Fatalf("CreateAssignment: %v", err)
	}
	if a.Role != RolePM {
		t.Fatalf("unexpected role: %s", a.Role)
	}
}
