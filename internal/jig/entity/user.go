package entity

import "time"

// Role is an application role.
type Role string

const (
	RoleAdministrator Role = "Administrator"
	RoleUser          Role = "User"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdministrator || r == RoleUser
}

// User is a signed-in operator. The inventory only ever reads the display
// name, for attribution in transfer entries.
type User struct {
	Username     string    `json:"username"`
	DisplayName  string    `json:"displayName"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}
