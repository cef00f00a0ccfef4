package model

import "fmt"

// Role is a member's rank inside a clan.
type Role int32

const (
	RoleMember Role = iota
	RoleOfficer
	RoleCoLeader
	RoleLeader
)

// String returns the storage/wire name of the role.
func (r Role) String() string {
	switch r {
	case RoleMember:
		return "MEMBER"
	case RoleOfficer:
		return "OFFICER"
	case RoleCoLeader:
		return "CO_LEADER"
	case RoleLeader:
		return "LEADER"
	default:
		return fmt.Sprintf("Role(%d)", int32(r))
	}
}

// ParseRole converts a storage name back into a Role.
func ParseRole(s string) (Role, error) {
	switch s {
	case "MEMBER":
		return RoleMember, nil
	case "OFFICER":
		return RoleOfficer, nil
	case "CO_LEADER":
		return RoleCoLeader, nil
	case "LEADER":
		return RoleLeader, nil
	default:
		return 0, fmt.Errorf("unknown role %q", s)
	}
}

// CanManageTerritory reports whether the role may claim, abandon or
// fight for territory (officer and above).
func (r Role) CanManageTerritory() bool {
	return r >= RoleOfficer
}

// Member is a clan member as this core sees it: identity plus rank.
// Full member records live in the clan subsystem.
type Member struct {
	CharacterID int64
	ClanID      int32
	Role        Role
}
