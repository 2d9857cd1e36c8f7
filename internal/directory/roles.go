package directory

import (
	"fmt"
	"strings"
)

// Role is a seniority level within a project assignment.
type Role string

const (
	RoleHelper      Role = "helper"
	RoleOffice      Role = "office"
	RoleForeman     Role = "foreman"
	RoleDeptManager Role = "dept_manager"
	RoleSupervisor  Role = "supervisor"
	RoleCM          Role = "cm"
	RolePM          Role = "pm"
	RoleAdmin       Role = "admin"
)

// Hierarchy is the canonical ascending seniority order. Every "at least this
// role" comparison goes through the index map derived from this slice; no call
// site carries its own copy of the ordering.
var Hierarchy = []Role{
	RoleHelper,
	RoleOffice,
	RoleForeman,
	RoleDeptManager,
	RoleSupervisor,
	RoleCM,
	RolePM,
	RoleAdmin,
}

var roleIndex = func() map[Role]int {
	m := make(map[Role]int, len(Hierarchy))
	for i, r := range Hierarchy {
		m[r] = i
	}
	return m
}()

// Known reports whether the role appears in the hierarchy. Typos and
// unmigrated data yield unknown roles, which fail every seniority check.
func (r Role) Known() bool {
	_, ok := roleIndex[r]
	return ok
}

// AtLeast reports whether r sits at or above min in the hierarchy. Either side
// being unknown yields false.
func (r Role) AtLeast(min Role) bool {
	ri, ok := roleIndex[r]
	if !ok {
		return false
	}
	mi, ok := roleIndex[min]
	if !ok {
		return false
	}
	return ri >= mi
}

// CanApproveDirectly reports whether the role may approve cross-project
// transfers without the multi-step workflow required of lower roles.
func (r Role) CanApproveDirectly() bool {
	switch r {
	case RoleCM, RolePM, RoleAdmin:
		return true
	}
	return false
}

// Area is a coarse UI-routing classifier, not a security boundary.
type Area string

const (
	AreaOffice Area = "office"
	AreaSite   Area = "site"
)

// Area classifies the role's working context: office staff and department
// managers land in the office area, everyone else on site.
func (r Role) Area() Area {
	if r == RoleOffice || r == RoleDeptManager {
		return AreaOffice
	}
	return AreaSite
}

// ParseRole validates an externally supplied role string.
func ParseRole(s string) (Role, error) {
	r := Role(strings.TrimSpace(strings.ToLower(s)))
	if !r.Known() {
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, s)
	}
	return r, nil
}
