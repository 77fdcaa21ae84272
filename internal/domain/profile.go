package domain

import (
	"errors"
	"time"
)

// ErrProfileNotFound indica que no existe fila de perfil para la identidad.
var ErrProfileNotFound = errors.New("profile not found")

// Profile es el registro de aplicación asociado 1:1 a una Identity.
type Profile struct {
	ID        string    `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	Telephone string    `json:"telephone,omitempty"`
	Country   string    `json:"country,omitempty"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FullName concatena nombre y apellido.
func (p Profile) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	default:
		return p.FirstName + " " + p.LastName
	}
}
