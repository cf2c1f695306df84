package model

// Role is one of the fixed account roles known to the backend.
type Role string

const (
	RoleSuperadmin     Role = "SUPERADMIN"
	RoleDeveloper      Role = "DEVELOPER"
	RoleContentCreator Role = "CONTENT_CREATOR"
	RoleUser           Role = "USER"
)

// Roles lists every valid role in display order.
var Roles = []Role{RoleSuperadmin, RoleDeveloper, RoleContentCreator, RoleUser}

func (r Role) IsValid() bool {
	switch r {
	case RoleSuperadmin, RoleDeveloper, RoleContentCreator, RoleUser:
		return true
	default:
		return false
	}
}

func (r Role) Label() string {
	switch r {
	case RoleSuperadmin:
		return "Super Admin"
	case RoleDeveloper:
		return "Developer"
	case RoleContentCreator:
		return "Content Creator"
	case RoleUser:
		return "Regular User"
	default:
		return string(r)
	}
}

// CanManageUsers reports whether the role may change other users' role or
// active status.
func (r Role) CanManageUsers() bool {
	return r == RoleSuperadmin
}

// Deactivatable reports whether an account holding the role may be
// deactivated. Superadmins are exempt.
func (r Role) Deactivatable() bool {
	return r != RoleSuperadmin
}

type User struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Mobile    string `json:"mobile"`
	Address   string `json:"address"`
	IsActive  bool   `json:"is_active"`
}

func (u User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Username
	}
}
