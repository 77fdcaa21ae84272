package routing

import (
	"net/url"
	"strings"

	"artmarket/internal/domain"
)

const (
	LandingPath   = "/"
	HomePath      = "/home"
	ExplorePath   = "/explore"
	LoginPath     = "/login"
	SignupPath    = "/signup"
	DashboardPath = "/dashboard"

	redirectParam = "redirect"
)

// destinations es la única tabla rol -> raíz de dashboard.
// buyer y cualquier rol desconocido caen en HomePath.
var destinations = map[domain.Role]string{
	domain.RoleAdmin:   DashboardPath + "/admin",
	domain.RoleArtist:  DashboardPath + "/artist",
	domain.RoleGallery: DashboardPath + "/gallery",
	domain.RoleBuyer:   HomePath,
}

// DefaultPublicPaths son las rutas visibles sin chequeo de rol.
var DefaultPublicPaths = []string{LandingPath, ExplorePath, LoginPath, SignupPath}

// Destination devuelve la ruta de inicio del rol.
func Destination(role domain.Role) string {
	if path, ok := destinations[role]; ok {
		return path
	}
	return HomePath
}

// IsDashboardPath reporta si path está bajo el namespace de dashboards.
func IsDashboardPath(path string) bool {
	return path == DashboardPath || strings.HasPrefix(path, DashboardPath+"/")
}

// LoginRedirect arma la ruta de login preservando la ruta intentada.
func LoginRedirect(attempted string) string {
	attempted = ReturnPath(attempted)
	if attempted == "" || attempted == LoginPath {
		return LoginPath
	}
	return LoginPath + "?" + url.Values{redirectParam: {attempted}}.Encode()
}

// AttemptedPath extrae la ruta de retorno de la query de login.
func AttemptedPath(query url.Values) string {
	return ReturnPath(query.Get(redirectParam))
}

// ReturnPath acepta solo rutas relativas al sitio; cualquier otra cosa devuelve "".
func ReturnPath(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.Contains(raw, `\`) {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.IsAbs() || u.Host != "" {
		return ""
	}
	return raw
}
