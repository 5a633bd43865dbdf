package models

import (
	"time"
)

// Role is the authorization role of a user.
type Role string

const (
	RolePatient    Role = "PATIENT"
	RoleDoctor     Role = "DOCTOR"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	switch r {
	case RolePatient, RoleDoctor, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// UserStatus is the account status of a user.
type UserStatus string

const (
	UserStatusActive  UserStatus = "ACTIVE"
	UserStatusBlocked UserStatus = "BLOCKED"
	UserStatusDeleted UserStatus = "DELETED"
)

// IsValid reports whether s is one of the known statuses.
func (s UserStatus) IsValid() bool {
	switch s {
	case UserStatusActive, UserStatusBlocked, UserStatusDeleted:
		return true
	}
	return false
}

type User struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	Email              string     `json:"email"`
	PasswordHash       string     `json:"-"` // empty for OAuth-only users
	Image              *string    `json:"image"`
	Role               Role       `json:"role"`
	Status             UserStatus `json:"status"`
	EmailVerified      bool       `json:"emailVerified"`
	NeedPasswordChange bool       `json:"needPasswordChange"`
	IsDeleted          bool       `json:"isDeleted"`
	DeletedAt          *time.Time `json:"deletedAt"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// IsGone reports whether the account is soft-deleted or marked DELETED.
func (u *User) IsGone() bool {
	return u.IsDeleted || u.Status == UserStatusDeleted
}

// CanAuthenticate reports whether the account may pass any entry point.
func (u *User) CanAuthenticate() bool {
	return u.Status == UserStatusActive && !u.IsDeleted
}

// OAuthAccount links an external identity provider subject to a user.
type OAuthAccount struct {
	ID                string
	UserID            string
	Provider          string
	ProviderAccountID string
	CreatedAt         time.Time
}

// OAuthProfile is the identity returned by an OAuth provider after a successful exchange.
type OAuthProfile struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}
