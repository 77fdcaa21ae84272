package domain

import "time"

// Identity es el usuario autenticado emitido por el proveedor de auth.
type Identity struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
