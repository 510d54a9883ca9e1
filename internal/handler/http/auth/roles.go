package auth

// Role constants define the available caller roles.
// These roles are used in JWT claims and permission checks.
const (
	// RoleAdmin has full access to the sync surface, including writes,
	// backups, and unsanitized secret fields
	RoleAdmin = "admin"
	// RolePublic can only read the sanitized public projection
	RolePublic = "public"
)

// Permission defines the allowed operations for a role on the sync surface.
// The surface dispatches on HTTP method plus an action query parameter, so
// permissions are expressed as method+action pairs rather than path patterns.
type Permission struct {
	// AllowedOps lists "METHOD action" pairs the role can perform.
	// An empty action is written as "METHOD" alone.
	AllowedOps []string
}

// RolePermissions maps each role to its allowed permissions.
//
// Security Model:
// - Admin: full access including document writes, backup lifecycle, and restore
// - Public: read-only access to the sanitized document and own auth status
var RolePermissions = map[string]Permission{
	RoleAdmin: {
		AllowedOps: []string{
			"GET", "GET auth", "GET backup", "GET backups",
			"POST", "POST login", "POST backup", "POST restore",
			"DELETE backup",
		},
	},
	RolePublic: {
		AllowedOps: []string{
			"GET", "GET auth",
			"POST login",
		},
	},
}

// CheckPermission checks if a role may perform the given method+action pair.
// Returns false for empty or unknown roles.
func CheckPermission(role, method, action string) bool {
	if role == "" {
		return false
	}

	perm, exists := RolePermissions[role]
	if !exists {
		return false
	}

	op := method
	if action != "" {
		op = method + " " + action
	}

	for _, allowed := range perm.AllowedOps {
		if allowed == op {
			return true
		}
	}
	return false
}

// Permissions returns the list of allowed operations for a role.
// Used by the auth-status endpoint to report caller capabilities.
func Permissions(role string) []string {
	perm, exists := RolePermissions[role]
	if !exists {
		return nil
	}
	out := make([]string, len(perm.AllowedOps))
	copy(out, perm.AllowedOps)
	return out
}
