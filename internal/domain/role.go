package domain

import "strings"

// Role es la categoría que controla el acceso a dashboards.
type Role uint8

const (
	RoleUnknown Role = iota
	RoleAdmin
	RoleArtist
	RoleGallery
	RoleBuyer
)

var roleNames = map[Role]string{
	RoleAdmin:   "admin",
	RoleArtist:  "artist",
	RoleGallery: "gallery",
	RoleBuyer:   "buyer",
}

// ParseRole convierte un string en Role. Valores desconocidos devuelven RoleUnknown.
func ParseRole(s string) Role {
	s = strings.ToLower(strings.TrimSpace(s))
	for role, name := range roleNames {
		if name == s {
			return role
		}
	}
	return RoleUnknown
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "unknown"
}

// Valid indica si el rol pertenece a la enumeración fija.
func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText nunca falla: un rol no reconocido cae en RoleUnknown.
func (r *Role) UnmarshalText(text []byte) error {
	*r = ParseRole(string(text))
	return nil
}

// ContainsRole reporta si role está en roles.
func ContainsRole(roles []Role, role Role) bool {
	for _, candidate := range roles {
		if candidate == role {
			return true
		}
	}
	return false
}
