package session

import (
	"strings"

	"pts.app/internal/directory"
)

// Capability names a screen or feature whose visibility needs more than a
// bare seniority threshold. The set is closed: adding a capability without a
// rule below is caught by the exhaustiveness test, and an unmapped value
// denies access.
type Capability int

const (
	CapabilityWarehouse Capability = iota
	CapabilityPlanning
	CapabilityTeams
	CapabilityImports
	CapabilityReports
	capabilityCount // sentinel, keep last
)

func (c Capability) String() string {
	switch c {
	case CapabilityWarehouse:
		return "warehouse"
	case CapabilityPlanning:
		return "planning"
	case CapabilityTeams:
		return "teams"
	case CapabilityImports:
		return "imports"
	case CapabilityReports:
		return "reports"
	}
	return "unknown"
}

type capabilityRule struct {
	minRole directory.Role
	// predicate, when set, replaces the minimum-role check entirely.
	predicate func(role directory.Role, active *directory.Assignment) bool
}

var capabilityRules = map[Capability]capabilityRule{
	// Warehouse staff get their screen through department scope; everyone
	// else needs supervisor seniority.
	CapabilityWarehouse: {predicate: func(role directory.Role, active *directory.Assignment) bool {
		if active != nil && active.Department != nil &&
			strings.EqualFold(active.Department.Name, "warehouse") {
			return role.AtLeast(directory.RoleOffice)
		}
		return role.AtLeast(directory.RoleSupervisor)
	}},
	CapabilityPlanning: {minRole: directory.RoleDeptManager},
	CapabilityTeams:    {minRole: directory.RoleForeman},
	CapabilityImports:  {minRole: directory.RoleCM},
	CapabilityReports:  {minRole: directory.RoleDeptManager},
}

func evaluateCapability(c Capability, role directory.Role, active *directory.Assignment) bool {
	rule, ok := capabilityRules[c]
	if !ok {
		return false
	}
	if rule.predicate != nil {
		return rule.predicate(role, active)
	}
	return role.AtLeast(rule.minRole)
}
