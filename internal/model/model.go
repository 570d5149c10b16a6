package model

import "time"

type Role string

const (
	RoleUser         Role = "user"
	RolePractitioner Role = "practitioner"
	RoleSupervisor   Role = "supervisor"
	RoleAdmin        Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RolePractitioner, RoleSupervisor, RoleAdmin:
		return true
	}
	return false
}

// DashboardRoute is the post-login navigation target for the role.
func (r Role) DashboardRoute() string {
	return "/" + string(r) + "-dashboard"
}

// Identity is the authenticated view of a user. It never carries
// credential material.
type Identity struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
	Avatar string `json:"avatar,omitempty"`
}

// User is the durable account record held by the repository.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	Role         Role
	Avatar       *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (u User) Identity() Identity {
	id := Identity{
		ID:    u.ID,
		Email: u.Email,
		Name:  u.Name,
		Role:  u.Role,
	}
	if u.Avatar != nil {
		id.Avatar = *u.Avatar
	}
	return id
}

// Consent is the durable record of the consents captured at registration.
type Consent struct {
	UserID            string
	Service           bool
	Evaluation        bool
	Survey            bool
	CollaborativeCare bool
	CapturedAt        time.Time
}
