package models

import "time"

// WorkspaceRole is a member's role within a workspace
type WorkspaceRole string

const (
	RoleOwner  WorkspaceRole = "owner"
	RoleAdmin  WorkspaceRole = "admin"
	RoleMember WorkspaceRole = "member"
	RoleViewer WorkspaceRole = "viewer"
)

var roleRank = map[WorkspaceRole]int{
	RoleViewer: 1,
	RoleMember: 2,
	RoleAdmin:  3,
	RoleOwner:  4,
}

// Valid reports whether r is a known role
func (r WorkspaceRole) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether r grants every permission of min
func (r WorkspaceRole) AtLeast(min WorkspaceRole) bool {
	return roleRank[r] >= roleRank[min] && roleRank[r] > 0
}

type Workspace struct {
	ID          string
	Name        string
	Description string
	Color       string
	OwnerID     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type WorkspaceMember struct {
	WorkspaceID string
	UserID      string
	Name        string // joined from users
	Email       string // joined from users
	Role        WorkspaceRole
	JoinedAt    time.Time
}
