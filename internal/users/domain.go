package users

import "time"

// User is a tenant member as listed on the admin surface.
type User struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenant_id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	IsActive   bool      `json:"is_active"`
	AdminLevel string    `json:"admin_level,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
