// Package users owns the User resource: persistence in MariaDB, password
// hashing on every write, and the admin-only CRUD endpoints. The auth plugin
// reads users through the narrow store interface it declares.
package users

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Role is an authorization label. The numeric values are what the users
// table stores; JSON uses the names.
type Role int

const (
	RoleUser  Role = 1
	RoleAdmin Role = 2
)

// String returns "User" or "Admin".
func (r Role) String() string {
	switch r {
	case RoleUser:
		return "User"
	case RoleAdmin:
		return "Admin"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// MarshalJSON encodes the role by name.
func (r Role) MarshalJSON() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("unknown role %d", int(r))
	}
	return json.Marshal(r.String())
}

// UnmarshalJSON accepts either the role name (case-insensitive) or its
// numeric value.
func (r *Role) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		if !Role(n).Valid() {
			return fmt.Errorf("unknown role %d", n)
		}
		*r = Role(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("role must be a name or number: %w", err)
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseRole maps "User"/"Admin" to a Role.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user":
		return RoleUser, nil
	case "admin":
		return RoleAdmin, nil
	default:
		return 0, fmt.Errorf("unknown role %q", s)
	}
}

// User is a registered account. Password holds the encoded hash and is
// never serialized.
type User struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Password  string     `json:"-"`
	BirthAt   *time.Time `json:"birthAt,omitempty"`
	Role      Role       `json:"role"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// HasRole reports whether the user holds any of roles.
func (u *User) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

// --- Request DTOs (bound from HTTP requests) ---

// CreateUserRequest is the body of POST /users and POST /auth/register.
type CreateUserRequest struct {
	Name     string  `json:"name" validate:"required,max=100"`
	Email    string  `json:"email" validate:"required,email,max=255"`
	Password string  `json:"password" validate:"required,strongpassword,max=128"`
	BirthAt  *string `json:"birthAt" validate:"omitempty,isodate"`
	Role     *Role   `json:"role" validate:"omitempty,oneof=1 2"`
}

// UpdatePutRequest is the body of PUT /users/:id. Every field except role
// and birth date is required; the record is replaced.
type UpdatePutRequest struct {
	Name     string  `json:"name" validate:"required,max=100"`
	Email    string  `json:"email" validate:"required,email,max=255"`
	Password string  `json:"password" validate:"required,strongpassword,max=128"`
	BirthAt  *string `json:"birthAt" validate:"omitempty,isodate"`
	Role     *Role   `json:"role" validate:"omitempty,oneof=1 2"`
}

// UpdatePatchRequest is the body of PATCH /users/:id. Only fields present
// in the body are changed.
type UpdatePatchRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=100"`
	Email    *string `json:"email" validate:"omitempty,email,max=255"`
	Password *string `json:"password" validate:"omitempty,strongpassword,max=128"`
	BirthAt  *string `json:"birthAt" validate:"omitempty,isodate"`
	Role     *Role   `json:"role" validate:"omitempty,oneof=1 2"`
}

// --- Service Input DTOs (passed from handler to service) ---

// CreateInput is the input for creating a user. Password is plaintext; the
// service hashes it before anything is persisted.
type CreateInput struct {
	Name     string  `json:"name" validate:"required,max=100"`
	Email    string  `json:"email" validate:"required,email,max=255"`
	Password string  `json:"password" validate:"required,strongpassword,max=128"`
	BirthAt  *string `json:"birthAt" validate:"omitempty,isodate"`
	Role     Role    `json:"role" validate:"omitempty,oneof=1 2"`
}

// ToInput converts the request body to a service input. A missing role
// defaults to RoleUser in the service.
func (r CreateUserRequest) ToInput() CreateInput {
	in := CreateInput{Name: r.Name, Email: r.Email, Password: r.Password, BirthAt: r.BirthAt}
	if r.Role != nil {
		in.Role = *r.Role
	}
	return in
}

// PatchInput carries the optional fields of a partial update. PUT requests
// are converted to a PatchInput with every field set.
type PatchInput struct {
	Name     *string
	Email    *string
	Password *string
	BirthAt  *string
	Role     *Role
}

// ToInput converts a PUT body to a PatchInput that replaces every field.
// An omitted role resets the user to RoleUser and an omitted birth date
// clears it.
func (r UpdatePutRequest) ToInput() PatchInput {
	role := RoleUser
	if r.Role != nil {
		role = *r.Role
	}
	birth := ""
	if r.BirthAt != nil {
		birth = *r.BirthAt
	}
	return PatchInput{
		Name:     &r.Name,
		Email:    &r.Email,
		Password: &r.Password,
		BirthAt:  &birth,
		Role:     &role,
	}
}

// ToInput converts a PATCH body to a PatchInput.
func (r UpdatePatchRequest) ToInput() PatchInput {
	return PatchInput{
		Name:     r.Name,
		Email:    r.Email,
		Password: r.Password,
		BirthAt:  r.BirthAt,
		Role:     r.Role,
	}
}

// NormalizeEmail lower-cases and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
