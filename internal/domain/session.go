package domain

// Session es la foto del estado de autenticación que mantiene el Session Store.
type Session struct {
	Identity *Identity `json:"identity,omitempty"`
	Profile  *Profile  `json:"profile,omitempty"`
	Loading  bool      `json:"loading"`
	Err      error     `json:"-"`
}

// Authenticated indica si hay una identidad presente.
func (s Session) Authenticated() bool {
	return s.Identity != nil
}

// AuthEventType enumera los cambios de sesión que emite el proveedor.
type AuthEventType string

const (
	AuthEventInitialSession AuthEventType = "INITIAL_SESSION"
	AuthEventSignedIn       AuthEventType = "SIGNED_IN"
	AuthEventSignedOut      AuthEventType = "SIGNED_OUT"
	AuthEventTokenRefreshed AuthEventType = "TOKEN_REFRESHED"
)

// AuthEvent es un cambio de sesión. Identity es nil en logout o expiración.
type AuthEvent struct {
	Type     AuthEventType
	Identity *Identity
}
