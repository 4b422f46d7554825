package kpi

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var roleAliases = map[string]Role{
	"employee":        RoleEmployee,
	"supervisor":      RoleSupervisor,
	"department head": RoleDeptHead,
	"department_head": RoleDeptHead,
	"dept_head":       RoleDeptHead,
	"admin":           RoleAdmin,
	"administrator":   RoleAdmin,
	"executive":       RoleExecutive,
}

// Roles lists every role from the highest to the lowest access level.
func Roles() []Role {
	return []Role{RoleExecutive, RoleAdmin, RoleDeptHead, RoleSupervisor, RoleEmployee}
}

func ParseRole(value string) (Role, error) {
	if role, ok := roleAliases[strings.ToLower(strings.TrimSpace(value))]; ok {
		return role, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, value)
}

func (r Role) Valid() bool {
	switch r {
	case RoleEmployee, RoleSupervisor, RoleDeptHead, RoleAdmin, RoleExecutive:
		return true
	}
	return false
}

var userNamespace = uuid.MustParse("6f1c2a8e-4b7d-5e3a-9c10-2a2001aa2001")

// UserID derives a stable identifier from a display name so that records
// survive across sessions of the same person.
func UserID(name string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(name), " "))
	return uuid.NewSHA1(userNamespace, []byte(normalized)).String()
}

// Email builds the console address for a display name.
func Email(name string) string {
	local := strings.ToLower(strings.Join(strings.Fields(name), ""))
	return local + "@aa2001.com"
}
