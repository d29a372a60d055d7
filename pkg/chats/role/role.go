// Package role defines who authored a chat message.
package role

import (
	"fmt"
	"strings"
)

// Role is the author of a message. Vendors that lack a role, such as Gemini
// for system, map it in their adapter.
type Role string

const (
	System    Role = "system"
	User      Role = "user"
	Assistant Role = "assistant"
)

// Parse converts a wire value such as " User " into a Role.
func Parse(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("role: unknown role %q", s)
	}
	return r, nil
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == System || r == User || r == Assistant
}

func (r Role) String() string {
	return string(r)
}
