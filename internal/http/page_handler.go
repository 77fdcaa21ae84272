package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"artmarket/internal/routing"
)

// PageHandler responde las páginas como JSON para el cliente.
type PageHandler struct{}

func NewPageHandler() *PageHandler {
	return &PageHandler{}
}

func (h *PageHandler) Render(c *gin.Context) {
	sess := PageSession(c)
	c.JSON(http.StatusOK, gin.H{
		"page":    c.Request.URL.Path,
		"session": sess,
	})
}

// Login incluye la ruta de retorno saneada.
func (h *PageHandler) Login(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"page":     routing.LoginPath,
		"redirect": routing.AttemptedPath(c.Request.URL.Query()),
		"session":  PageSession(c),
	})
}
