package rbac

// Level is a platform capability level held by a user within a tenant.
type Level string

const (
	// LevelPlatformAdmin grants access to the administrative surfaces.
	LevelPlatformAdmin Level = "platform_admin"
	// LevelSuperAdmin additionally grants the most sensitive routes.
	LevelSuperAdmin Level = "super_admin"
)

// Valid reports whether l is a known level.
func (l Level) Valid() bool {
	return l == LevelPlatformAdmin || l == LevelSuperAdmin
}
