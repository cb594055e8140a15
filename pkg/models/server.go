package models

// Role is a named permission bundle on a server.
type Role struct {
	Name        string             `json:"name"`
	Permissions PermissionOverride `json:"permissions"`
	Colour      string             `json:"colour,omitempty"`
	Hoist       bool               `json:"hoist,omitempty"`
	// Rank orders role application; lower rank wins later (applied last).
	Rank int `json:"rank"`
}

// Server is the minimal server record: ownership, roles and the baseline
// permission set.
type Server struct {
	ID                 string          `json:"_id"`
	Owner              string          `json:"owner"`
	Name               string          `json:"name"`
	Roles              map[string]Role `json:"roles,omitempty"`
	DefaultPermissions uint64          `json:"default_permissions"`
}

// HasRole reports whether the role id exists on this server.
func (s *Server) HasRole(roleID string) bool {
	_, ok := s.Roles[roleID]
	return ok
}

// MemberID is the composite key of a server membership.
type MemberID struct {
	Server string `json:"server"`
	User   string `json:"user"`
}

// Member records a user's membership of a server.
type Member struct {
	ID       MemberID `json:"_id"`
	Nickname string   `json:"nickname,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}
