// Package user contains the authoritative user identity model. Exactly one
// component (the identity store) owns a User value at runtime; everything
// else references it by ID.
package user

import (
	"strings"

	"github.com/wellnest-app/wellnest-dashboard/internal/domain/shared"
)

// Role represents the user role, matching the user_role enum on the server.
type Role string

const (
	RoleStudent   Role = "STUDENT"
	RoleCounselor Role = "COUNSELOR"
	RoleAdmin     Role = "ADMIN"
)

// IsValid reports whether the role is a known role.
func (r Role) IsValid() bool {
	switch r {
	case RoleStudent, RoleCounselor, RoleAdmin:
		return true
	}
	return false
}

// User is the authenticated dashboard user (typically a counselor).
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      Role   `json:"role"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// Validate checks structural invariants of the user.
func (u User) Validate() error {
	if strings.TrimSpace(u.ID) == "" {
		return shared.NewDomainError("user", "Validate", shared.ErrInvalidID, "user ID is empty")
	}
	if strings.TrimSpace(u.Email) == "" {
		return shared.NewDomainError("user", "Validate", shared.ErrEmptyValue, "email is empty")
	}
	if !strings.Contains(u.Email, "@") {
		return shared.NewDomainError("user", "Validate", shared.ErrInvalidFormat, "email is malformed")
	}
	if u.Role != "" && !u.Role.IsValid() {
		return shared.NewDomainError("user", "Validate", shared.ErrInvalidInput, "unknown role")
	}
	return nil
}

// Credentials are the login inputs. Remember asks the client to keep the
// email around for the next sign-in form.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Remember bool   `json:"remember,omitempty"`
}

// Validate checks that credentials are usable before hitting the network.
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Email) == "" {
		return shared.NewDomainError("user", "Login", shared.ErrValidation, "email is required")
	}
	if c.Password == "" {
		return shared.NewDomainError("user", "Login", shared.ErrValidation, "password is required")
	}
	return nil
}
