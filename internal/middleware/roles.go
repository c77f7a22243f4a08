package middleware

import (
	"fmt"
	"strings"
)

// Canonical roles carried in the user_role local.
const (
	RoleStudent       = "student"
	RoleProfessor     = "professor"
	RoleAdministrator = "administrator"
)

var roleAliases = map[string]string{
	"teacher":    RoleProfessor,
	"instructor": RoleProfessor,
	"admin":      RoleAdministrator,
}

// CanonicalRole lowercases a role claim and folds known aliases onto the canonical names.
func CanonicalRole(value interface{}) string {
	var role string
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		role = v
	case fmt.Stringer:
		role = v.String()
	default:
		role = fmt.Sprintf("%v", value)
	}

	role = strings.ToLower(strings.TrimSpace(role))
	if alias, ok := roleAliases[role]; ok {
		return alias
	}
	return role
}
