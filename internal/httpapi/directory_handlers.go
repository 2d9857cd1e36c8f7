package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"pts.app/internal/auth"
	"pts.app/internal/directory"
)

type createPersonRequest struct {
	AuthRef   string `json:"auth_ref"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

type createProjectRequest struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

type createNamedRequest struct {
	Name string `json:"name"`
}

type createAssignmentRequest struct {
	ProjectID    string `json:"project_id"`
	Role         string `json:"role"`
	CompanyID    string `json:"company_id"`
	DepartmentID string `json:"department_id"`
}

type sessionResponse struct {
	Person      *directory.Person      `json:"person"`
	Assignments []directory.Assignment `json:"assignments"`
}

// handleSession returns the caller's person record and active assignments.
// This is what session clients load after sign-in and on refresh.
func (a *API) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok || actor.PersonID == "" {
		writeError(w, r, http.StatusUnauthorized, "not authenticated")
		return
	}
	person, err := a.directory.FindPerson(r.Context(), actor.PersonID)
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	assigns, err := a.directory.ListActiveAssignments(r.Context(), person.ID)
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Person: person, Assignments: assigns})
}

func (a *API) handlePeopleCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		if !a.ensureRole(w, r, directory.RoleAdmin) {
			return
		}
		var req createPersonRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		person, err := a.directory.CreatePerson(r.Context(), directory.NewPerson{
			AuthRef:   req.AuthRef,
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Email:     req.Email,
		})
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		a.audit(r.Context(), "directory.person.create", "person", person.ID, map[string]string{
			"email": person.Email,
		})
		w.Header().Set("Location", fmt.Sprintf("/v1/people/%s", person.ID))
		writeJSON(w, http.StatusCreated, person)
	case http.MethodGet:
		ref := strings.TrimSpace(r.URL.Query().Get("auth_ref"))
		if ref == "" {
			writeError(w, r, http.StatusBadRequest, "auth_ref query parameter is required")
			return
		}
		person, err := a.directory.FindPersonByAuthRef(r.Context(), ref)
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, person)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handlePersonResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/people/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	personID := parts[0]

	switch {
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		person, err := a.directory.FindPerson(r.Context(), personID)
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, person)
	case len(parts) == 2 && parts[1] == "assignments":
		switch r.Method {
		case http.MethodGet:
			assigns, err := a.directory.ListActiveAssignments(r.Context(), personID)
			if err != nil {
				handleDirectoryError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"items": assigns})
		case http.MethodPost:
			if !a.ensureRole(w, r, directory.RolePM) {
				return
			}
			var req createAssignmentRequest
			if err := decodeJSON(w, r, &req); err != nil {
				writeError(w, r, http.StatusBadRequest, err.Error())
				return
			}
			assign, err := a.directory.CreateAssignment(r.Context(), directory.NewAssignment{
				PersonID:     personID,
				ProjectID:    req.ProjectID,
				Role:         req.Role,
				CompanyID:    req.CompanyID,
				DepartmentID: req.DepartmentID,
			})
			if err != nil {
				handleDirectoryError(w, r, err)
				return
			}
			a.audit(r.Context(), "directory.assignment.create", "assignment", assign.ID, map[string]string{
				"person_id":  personID,
				"project_id": assign.ProjectID,
				"role":       string(assign.Role),
			})
			writeJSON(w, http.StatusCreated, assign)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
		}
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleProjectsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		projects, err := a.directory.ListProjects(r.Context())
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": projects})
	case http.MethodPost:
		if !a.ensureRole(w, r, directory.RolePM) {
			return
		}
		var req createProjectRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		project, err := a.directory.CreateProject(r.Context(), req.Name, req.Code)
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		a.audit(r.Context(), "directory.project.create", "project", project.ID, map[string]string{
			"code": project.Code,
		})
		w.Header().Set("Location", fmt.Sprintf("/v1/projects/%s", project.ID))
		writeJSON(w, http.StatusCreated, project)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleProjectResource(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/projects/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	project, err := a.directory.FindProject(r.Context(), id)
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (a *API) handleCompanies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.ensureRole(w, r, directory.RolePM) {
		return
	}
	var req createNamedRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	company, err := a.directory.CreateCompany(r.Context(), req.Name)
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	a.audit(r.Context(), "directory.company.create", "company", company.ID, nil)
	writeJSON(w, http.StatusCreated, company)
}

func (a *API) handleDepartments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.ensureRole(w, r, directory.RolePM) {
		return
	}
	var req createNamedRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	dept, err := a.directory.CreateDepartment(r.Context(), req.Name)
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	a.audit(r.Context(), "directory.department.create", "department", dept.ID, nil)
	writeJSON(w, http.StatusCreated, dept)
}

func (a *API) handleAssignmentResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/assignments/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[1] != "deactivate" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.ensureRole(w, r, directory.RolePM) {
		return
	}
	if err := a.directory.DeactivateAssignment(r.Context(), parts[0]); err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	a.audit(r.Context(), "directory.assignment.deactivate", "assignment", parts[0], nil)
	writeJSON(w, http.StatusOK, map[string]any{"status": "deactivated"})
}
