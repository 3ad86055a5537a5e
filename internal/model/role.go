package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role is a member's rank inside a group. The zero value is not a valid role.
type Role string

const (
	RoleMember    Role = "member"
	RoleModerator Role = "moderator"
	RoleOwner     Role = "owner"
)

// Roles lists the valid roles in ascending rank.
var Roles = []Role{RoleMember, RoleModerator, RoleOwner}

// Rank orders roles: member=1, moderator=2, owner=3. Unknown roles rank 0.
func (r Role) Rank() int {
	switch r {
	case RoleMember:
		return 1
	case RoleModerator:
		return 2
	case RoleOwner:
		return 3
	default:
		return 0
	}
}

func (r Role) Valid() bool {
	return r.Rank() > 0
}

func (r Role) String() string {
	return string(r)
}

// HasMinimumRole reports whether actual ranks at least as high as required.
func HasMinimumRole(actual, required Role) bool {
	return actual.Valid() && actual.Rank() >= required.Rank()
}

// ParseRole accepts exactly one of the three role names (case-insensitive).
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("invalid role %q: must be one of member, moderator, owner", s)
	}
	return r, nil
}

// UnmarshalJSON rejects unknown role names while decoding request bodies.
func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("role must be a string")
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// NormalizeRole maps a stored role value to a Role. Installations that predate
// the role column store nothing; the group's creator is then treated as owner
// and everybody else as member.
func NormalizeRole(stored string, isCreator bool) Role {
	r := Role(strings.ToLower(strings.TrimSpace(stored)))
	if r.Valid() {
		return r
	}
	if isCreator {
		return RoleOwner
	}
	return RoleMember
}
