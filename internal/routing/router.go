package routing

import "artmarket/internal/domain"

// Navigator ejecuta la navegación. replace indica semántica de reemplazo del historial.
type Navigator interface {
	Navigate(path string, replace bool)
}

// NavigatorFunc adapta una función a Navigator.
type NavigatorFunc func(path string, replace bool)

func (f NavigatorFunc) Navigate(path string, replace bool) {
	f(path, replace)
}

// Redirect navega a la raíz del rol. Llama a nav exactamente una vez;
// evitar llamadas redundantes es responsabilidad de quien lo invoca.
func Redirect(role domain.Role, nav Navigator) {
	if nav == nil {
		return
	}
	nav.Navigate(Destination(role), true)
}
