package models

import (
	"time"

	"github.com/google/uuid"
)

// Role represents user role in the platform.
type Role string

const (
	RoleVolunteer Role = "volunteer"
	RoleOrg       Role = "org"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleVolunteer, RoleOrg, RoleAdmin:
		return true
	}
	return false
}

// User represents a platform account.
type User struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Password      string    `json:"-"`
	Role          Role      `json:"role"`
	Bio           string    `json:"bio"`
	Skills        []string  `json:"skills"`
	Experience    string    `json:"experience"`
	Location      string    `json:"location"`
	Phone         string    `json:"phone"`
	Avatar        string    `json:"avatar"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// UserPublic is User without sensitive fields for API responses.
type UserPublic struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Role       Role      `json:"role"`
	Bio        string    `json:"bio,omitempty"`
	Skills     []string  `json:"skills,omitempty"`
	Experience string    `json:"experience,omitempty"`
	Location   string    `json:"location,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	Avatar     string    `json:"avatar,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ToPublic converts User to UserPublic.
func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		Role:       u.Role,
		Bio:        u.Bio,
		Skills:     u.Skills,
		Experience: u.Experience,
		Location:   u.Location,
		Phone:      u.Phone,
		Avatar:     u.Avatar,
		CreatedAt:  u.CreatedAt,
	}
}

// Principal is the authenticated identity attached to a request.
type Principal struct {
	ID   uuid.UUID
	Role Role
}

// IsZero reports whether p carries no identity.
func (p Principal) IsZero() bool { return p.ID == uuid.Nil }
