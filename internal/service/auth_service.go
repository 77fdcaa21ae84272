package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"artmarket/internal/domain"
	"artmarket/internal/email"
	"artmarket/internal/repository"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrWeakPassword       = errors.New("password too short")
	ErrRateLimited        = errors.New("rate limited")
	ErrIdentityNotFound   = errors.New("identity not found")
)

const (
	minPasswordLength = 8
	welcomeTimeout    = 5 * time.Second
)

// AuthObserver recibe el resultado de cada operación de auth.
type AuthObserver interface {
	ObserveAuth(operation, outcome string)
}

// AuthSession es lo que el backend devuelve tras autenticar.
type AuthSession struct {
	Identity domain.Identity `json:"identity"`
	Tokens   TokenPair       `json:"tokens"`
}

// AuthService es el proveedor de identidades del marketplace.
type AuthService struct {
	logger     *zap.Logger
	identities repository.IdentityRepository
	tokens     *JWTService
	limiter    SignInLimiter
	mailer     email.Sender
	observer   AuthObserver
}

func NewAuthService(logger *zap.Logger, identities repository.IdentityRepository, tokens *JWTService, limiter SignInLimiter, mailer email.Sender) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limiter == nil {
		limiter = NewMemorySignInLimiter(10*time.Minute, 5)
	}
	return &AuthService{
		logger:     logger,
		identities: identities,
		tokens:     tokens,
		limiter:    limiter,
		mailer:     mailer,
	}
}

// WithObserver registra un observador de resultados.
func (s *AuthService) WithObserver(obs AuthObserver) *AuthService {
	s.observer = obs
	return s
}

func (s *AuthService) SignUp(ctx context.Context, emailAddr, password string) (sess AuthSession, err error) {
	defer func() { s.observe("signup", err) }()

	emailAddr, err = validateEmail(emailAddr)
	if err != nil {
		return AuthSession{}, err
	}
	if len(password) < minPasswordLength {
		return AuthSession{}, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return AuthSession{}, err
	}

	identity := domain.Identity{
		ID:           uuid.NewString(),
		Email:        emailAddr,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.identities.Create(ctx, identity); err != nil {
		return AuthSession{}, err
	}
	s.logger.Info("identity created", zap.String("identity_id", identity.ID))

	s.sendWelcome(ctx, identity.Email)
	return s.issue(identity)
}

func (s *AuthService) SignIn(ctx context.Context, emailAddr, password string) (sess AuthSession, err error) {
	defer func() { s.observe("signin", err) }()

	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" || password == "" {
		return AuthSession{}, ErrInvalidCredentials
	}
	if !s.limiter.Allow(emailAddr) {
		return AuthSession{}, ErrRateLimited
	}

	identity, err := s.identities.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AuthSession{}, ErrInvalidCredentials
		}
		return AuthSession{}, err
	}
	if identity.PasswordHash == "" {
		return AuthSession{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(password)); err != nil {
		return AuthSession{}, ErrInvalidCredentials
	}
	return s.issue(identity)
}

// Refresh rota el par de tokens.
func (s *AuthService) Refresh(_ context.Context, refreshToken string) (sess AuthSession, err error) {
	defer func() { s.observe("refresh", err) }()

	pair, identity, err := s.tokens.RefreshPair(refreshToken)
	if err != nil {
		return AuthSession{}, err
	}
	return AuthSession{Identity: identity, Tokens: pair}, nil
}

// SignOut revoca el refresh token. Un token ya inválido no es error.
func (s *AuthService) SignOut(_ context.Context, refreshToken string) (err error) {
	defer func() { s.observe("signout", err) }()

	if strings.TrimSpace(refreshToken) == "" {
		return nil
	}
	err = s.tokens.RevokeRefresh(refreshToken)
	if errors.Is(err, ErrJWTInvalid) || errors.Is(err, ErrJWTExpired) {
		return nil
	}
	return err
}

// Identity carga la identidad vigente a partir del id del token.
func (s *AuthService) Identity(ctx context.Context, id string) (domain.Identity, error) {
	identity, err := s.identities.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Identity{}, ErrIdentityNotFound
	}
	return identity, err
}

func (s *AuthService) issue(identity domain.Identity) (AuthSession, error) {
	pair, err := s.tokens.GeneratePair(identity)
	if err != nil {
		return AuthSession{}, err
	}
	identity.PasswordHash = ""
	return AuthSession{Identity: identity, Tokens: pair}, nil
}

func (s *AuthService) sendWelcome(ctx context.Context, to string) {
	if s.mailer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), welcomeTimeout)
	defer cancel()
	err := s.mailer.SendWelcome(ctx, to)
	switch {
	case err == nil:
	case errors.Is(err, email.ErrSenderDisabled):
		s.logger.Debug("welcome email skipped", zap.Error(err))
	default:
		s.logger.Warn("send welcome email failed", zap.Error(err))
	}
}

func (s *AuthService) observe(operation string, err error) {
	if s.observer == nil {
		return
	}
	s.observer.ObserveAuth(operation, authOutcome(err))
}

func authOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrJWTInvalid), errors.Is(err, ErrJWTExpired):
		return "rejected"
	case errors.Is(err, ErrInvalidEmail), errors.Is(err, ErrWeakPassword), errors.Is(err, repository.ErrEmailTaken):
		return "invalid"
	default:
		return "error"
	}
}

func validateEmail(raw string) (string, error) {
	addr := normalizeEmail(raw)
	if addr == "" {
		return "", ErrInvalidEmail
	}
	parsed, err := mail.ParseAddress(addr)
	if err != nil || parsed.Address != addr {
		return "", ErrInvalidEmail
	}
	return addr, nil
}
