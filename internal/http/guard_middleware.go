package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"artmarket/internal/domain"
	"artmarket/internal/routing"
)

const sessionKey = "page_session"

// ProfileResolver resuelve el perfil de una identidad autenticada.
type ProfileResolver interface {
	Fetch(ctx context.Context, id string) (domain.Profile, error)
}

// DecisionRecorder recibe cada decisión del guard.
type DecisionRecorder interface {
	RecordGuardDecision(decision string)
}

// PageGuard aplica routing.Guard a las páginas servidas por HTTP.
type PageGuard struct {
	logger   *zap.Logger
	guard    *routing.Guard
	profiles ProfileResolver
	recorder DecisionRecorder
}

func NewPageGuard(logger *zap.Logger, guard *routing.Guard, profiles ProfileResolver, recorder DecisionRecorder) *PageGuard {
	return &PageGuard{logger: logger, guard: guard, profiles: profiles, recorder: recorder}
}

// RequireRoles deja pasar solo a los roles indicados. Sin roles, solo las rutas públicas renderizan.
func (g *PageGuard) RequireRoles(roles ...domain.Role) gin.HandlerFunc {
	allowed := append([]domain.Role(nil), roles...)
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		sess := g.sessionFor(c, path)
		decision := g.guard.Evaluate(sess, path, allowed)
		if g.recorder != nil {
			g.recorder.RecordGuardDecision(decision.Kind.String())
		}

		switch decision.Kind {
		case routing.DecisionRender:
			c.Set(sessionKey, sess)
			c.Next()
		case routing.DecisionRedirect:
			c.Redirect(http.StatusFound, decision.Target)
			c.Abort()
		case routing.DecisionProfileUnavailable:
			writeError(c, http.StatusServiceUnavailable, "profile unavailable")
		default:
			writeError(c, http.StatusServiceUnavailable, "session loading")
		}
	}
}

// sessionFor arma la sesión del request. En el servidor nunca está en loading.
func (g *PageGuard) sessionFor(c *gin.Context, path string) domain.Session {
	claims, ok := GetAuthClaims(c)
	if !ok {
		return domain.Session{}
	}
	identity := claims.Identity()
	sess := domain.Session{Identity: &identity}
	if g.guard.IsPublic(path) {
		return sess
	}

	profile, err := g.profiles.Fetch(c.Request.Context(), identity.ID)
	if err != nil {
		if !errors.Is(err, domain.ErrProfileNotFound) {
			g.logger.Warn("profile resolution failed", zap.String("identity_id", identity.ID), zap.Error(err))
		}
		sess.Err = err
		return sess
	}
	sess.Profile = &profile
	return sess
}

// PageSession devuelve la sesión que el guard adjuntó al contexto.
func PageSession(c *gin.Context) domain.Session {
	val, ok := c.Get(sessionKey)
	if !ok {
		return domain.Session{}
	}
	sess, _ := val.(domain.Session)
	return sess
}
