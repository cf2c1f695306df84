package model

// Snapshot is a read-only copy of the console's authentication state.
type Snapshot struct {
	User            *User
	Credential      string
	IsAuthenticated bool
	IsLoading       bool
	Err             error
	// Version increases by one on every state transition.
	Version uint64
}

// Role returns the current user's role, or the empty role when anonymous.
func (s Snapshot) Role() Role {
	if s.User == nil {
		return ""
	}
	return s.User.Role
}

// HasRole reports whether the current user holds one of roles.
// A missing user or empty role never matches.
func (s Snapshot) HasRole(roles ...Role) bool {
	r := s.Role()
	if r == "" {
		return false
	}
	for _, want := range roles {
		if r == want {
			return true
		}
	}
	return false
}
