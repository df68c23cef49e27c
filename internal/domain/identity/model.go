package identity

import (
	"strings"
	"time"

	"github.com/ehr/hospital/pkg/validation"
)

// Role selects which dashboard a user sees and which collections are warmed
// after sign-in.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleDoctor       Role = "doctor"
	RoleNurse        Role = "nurse"
	RoleReceptionist Role = "receptionist"
)

// Roles lists every known role in display order.
var Roles = []Role{RoleAdmin, RoleDoctor, RoleNurse, RoleReceptionist}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// User is a hospital account. Staff management works on the same resource.
type User struct {
	ID             int64      `json:"id,omitempty"`
	Username       string     `json:"username" validate:"required"`
	Email          string     `json:"email,omitempty" validate:"omitempty,email"`
	FirstName      string     `json:"first_name,omitempty"`
	LastName       string     `json:"last_name,omitempty"`
	Role           Role       `json:"role" validate:"required,oneof=admin doctor nurse receptionist"`
	Department     string     `json:"department,omitempty"`
	Phone          string     `json:"phone,omitempty" validate:"omitempty,phone"`
	Specialization string     `json:"specialization,omitempty"`
	Experience     string     `json:"experience,omitempty"`
	Status         string     `json:"status,omitempty" validate:"omitempty,oneof=active inactive on_leave"`
	Password       string     `json:"password,omitempty" validate:"omitempty,min=8"`
	CreatedAt      *time.Time `json:"created_at,omitempty"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
}

// StaffMember is a User managed through the staff screens.
type StaffMember = User

// EntityID returns the server-assigned id.
func (u User) EntityID() int64 { return u.ID }

// DisplayName is "First Last" when a name is set, the username otherwise.
func (u User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// Validate checks the fields a staff form must provide.
func (u User) Validate() error {
	return validation.Struct(u)
}

// PasswordResetRequest starts the forgotten-password flow.
type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (r PasswordResetRequest) Validate() error {
	return validation.Struct(r)
}

// PasswordResetConfirm completes the flow with the emailed token.
type PasswordResetConfirm struct {
	Token           string `json:"token" validate:"required"`
	UIDB64          string `json:"uidb64" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=NewPassword"`
}

func (r PasswordResetConfirm) Validate() error {
	return validation.Struct(r)
}
