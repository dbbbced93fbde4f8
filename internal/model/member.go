package model

import "time"

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleParent Role = "parent"
	RoleEnfant Role = "enfant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleParent, RoleEnfant:
		return true
	}
	return false
}

// CanManage reports whether the role may run destructive or
// catalog-changing operations.
func (r Role) CanManage() bool {
	return r == RoleAdmin || r == RoleParent
}

type Member struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	Color     string    `json:"color"`
	Avatar    string    `json:"avatar"`
	HasPIN    bool      `json:"has_pin"`
	SortOrder int       `json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Session struct {
	ID        int64     `json:"id"`
	Token     string    `json:"token"`
	MemberID  int64     `json:"member_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
