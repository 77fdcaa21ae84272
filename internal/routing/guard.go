package routing

import (
	"strings"

	"artmarket/internal/domain"
)

// DecisionKind es el estado observable del guard.
type DecisionKind int

const (
	DecisionLoading DecisionKind = iota
	DecisionRender
	DecisionRedirect
	DecisionProfileUnavailable
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionLoading:
		return "loading"
	case DecisionRender:
		return "render"
	case DecisionRedirect:
		return "redirect"
	case DecisionProfileUnavailable:
		return "profile_unavailable"
	default:
		return "unknown"
	}
}

// Decision es el resultado de evaluar una ruta protegida.
type Decision struct {
	Kind    DecisionKind
	Target  string
	Replace bool
}

// Guard decide si renderizar, redirigir o esperar para una ruta protegida.
type Guard struct {
	publicPaths map[string]struct{}
}

// NewGuard crea un Guard. Si publicPaths es vacío usa DefaultPublicPaths.
func NewGuard(publicPaths []string) *Guard {
	if len(publicPaths) == 0 {
		publicPaths = DefaultPublicPaths
	}
	set := make(map[string]struct{}, len(publicPaths))
	for _, p := range publicPaths {
		p = normalizePath(p)
		if p != "" {
			set[p] = struct{}{}
		}
	}
	return &Guard{publicPaths: set}
}

// IsPublic reporta si path está en la lista de rutas públicas (comparación literal).
func (g *Guard) IsPublic(path string) bool {
	_, ok := g.publicPaths[normalizePath(path)]
	return ok
}

// Evaluate aplica la máquina de estados sobre la sesión actual.
func (g *Guard) Evaluate(sess domain.Session, path string, allowed []domain.Role) Decision {
	if sess.Loading {
		return Decision{Kind: DecisionLoading}
	}
	if g.IsPublic(path) {
		return Decision{Kind: DecisionRender}
	}
	if sess.Identity == nil {
		return Decision{Kind: DecisionRedirect, Target: LoginRedirect(path), Replace: true}
	}
	if sess.Profile == nil {
		return Decision{Kind: DecisionProfileUnavailable}
	}
	if domain.ContainsRole(allowed, sess.Profile.Role) {
		return Decision{Kind: DecisionRender}
	}
	if IsDashboardPath(normalizePath(path)) {
		return Decision{Kind: DecisionRedirect, Target: Destination(sess.Profile.Role), Replace: true}
	}
	return Decision{Kind: DecisionRedirect, Target: ExplorePath, Replace: true}
}

func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return path
}
