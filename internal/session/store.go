package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"artmarket/internal/domain"
	"artmarket/internal/routing"
)

var (
	ErrStoreNotStarted    = errors.New("session store not started")
	ErrSessionSuperseded  = errors.New("session changed during operation")
	ErrProfileCreate      = errors.New("could not create profile")
	ErrInvalidSignUpInput = errors.New("invalid sign up input")
)

// AuthProvider es la frontera con el proveedor externo de autenticación.
type AuthProvider interface {
	SignIn(ctx context.Context, email, password string) (domain.Identity, error)
	SignUp(ctx context.Context, email, password string) (domain.Identity, error)
	SignOut(ctx context.Context) error
	CurrentIdentity(ctx context.Context) (*domain.Identity, error)
	Subscribe(fn func(domain.AuthEvent)) (unsubscribe func())
}

// ProfileSource agrega la escritura de perfiles a la búsqueda puntual.
type ProfileSource interface {
	ProfileLookup
	UpsertProfile(ctx context.Context, profile domain.Profile) (domain.Profile, error)
}

// SignUpInput son las credenciales más los campos iniciales del perfil.
type SignUpInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      domain.Role
	Telephone string
	Country   string
}

// Options ajusta tiempos del Store.
type Options struct {
	// SettleDelay es la espera entre el alta de identidad y el upsert del perfil.
	SettleDelay time.Duration
	Sleep       Sleeper
}

// Store es la única fuente de verdad de quién está logueado y con qué rol.
type Store struct {
	logger   *zap.Logger
	provider AuthProvider
	profiles ProfileSource
	fetcher  *ProfileFetcher
	nav      routing.Navigator
	settle   time.Duration
	sleep    Sleeper

	mu          sync.Mutex
	identity    *domain.Identity
	profile     *domain.Profile
	loading     bool
	err         error
	seq         uint64
	changed     chan struct{}
	listeners   map[int]func(domain.Session)
	nextID      int
	// explicit cuenta los SignIn/SignUp en curso; mientras sea > 0 los eventos
	// del proveedor fijan la identidad pero no buscan el perfil.
	explicit    int
	outbox      []domain.Session
	dispatching bool
	started     bool
	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()
	wg          sync.WaitGroup
}

func NewStore(
	logger *zap.Logger,
	provider AuthProvider,
	profiles ProfileSource,
	fetcher *ProfileFetcher,
	nav routing.Navigator,
	opts Options,
) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Sleep == nil {
		opts.Sleep = SleepContext
	}
	return &Store{
		logger:    logger,
		provider:  provider,
		profiles:  profiles,
		fetcher:   fetcher,
		nav:       nav,
		settle:    opts.SettleDelay,
		sleep:     opts.Sleep,
		loading:   true,
		changed:   make(chan struct{}),
		listeners: make(map[int]func(domain.Session)),
	}
}

// Start se suscribe a los cambios de auth y chequea una vez la sesión existente.
func (s *Store) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	seq := s.seq
	s.wg.Add(1)
	s.mu.Unlock()

	unsubscribe := s.provider.Subscribe(s.handleEvent)
	s.mu.Lock()
	s.unsubscribe = unsubscribe
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		ident, err := s.provider.CurrentIdentity(s.ctx)
		if err != nil {
			s.logger.Warn("initial session check failed", zap.Error(err))
			s.update(func() bool {
				if seq != s.seq {
					return false
				}
				s.resetLocked(err)
				return true
			})
			return
		}
		// Si un evento más nuevo ya fijó la identidad, el chequeo inicial no pisa nada.
		if ident == nil {
			s.update(func() bool {
				if seq != s.seq {
					return false
				}
				s.resetLocked(nil)
				return true
			})
			return
		}
		s.startResolution(*ident, &seq)
	}()
}

// Close desuscribe el listener de auth y espera las resoluciones en curso.
func (s *Store) Close() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	cancel := s.cancel
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// Snapshot devuelve el estado actual de la sesión.
func (s *Store) Snapshot() domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registra un listener que recibe cada cambio de estado.
func (s *Store) Subscribe(fn func(domain.Session)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// WaitReady bloquea hasta que loading sea false o ctx se cancele.
func (s *Store) WaitReady(ctx context.Context) (domain.Session, error) {
	for {
		s.mu.Lock()
		if !s.started {
			s.mu.Unlock()
			return domain.Session{}, ErrStoreNotStarted
		}
		if !s.loading {
			snap := s.snapshotLocked()
			s.mu.Unlock()
			return snap, nil
		}
		changed := s.changed
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return s.Snapshot(), ctx.Err()
		case <-changed:
		}
	}
}

// SignIn delega en el proveedor, resuelve el perfil y navega según el rol.
func (s *Store) SignIn(ctx context.Context, email, password string) (domain.Profile, error) {
	s.beginExplicit()
	defer s.endExplicit()
	ident, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		s.clear(err)
		return domain.Profile{}, err
	}
	return s.resolveAndNavigate(ctx, ident)
}

// SignUp crea la identidad, espera el settle delay y hace upsert del perfil.
// Si el perfil falla, cierra la sesión recién creada como compensación.
func (s *Store) SignUp(ctx context.Context, input SignUpInput) (domain.Profile, error) {
	if strings.TrimSpace(input.Email) == "" || input.Password == "" {
		return domain.Profile{}, ErrInvalidSignUpInput
	}
	s.beginExplicit()
	defer s.endExplicit()
	ident, err := s.provider.SignUp(ctx, input.Email, input.Password)
	if err != nil {
		s.clear(err)
		return domain.Profile{}, err
	}

	if err := s.sleep(ctx, s.settle); err != nil {
		s.compensate(ident)
		s.clear(err)
		return domain.Profile{}, err
	}

	now := time.Now().UTC()
	_, err = s.profiles.UpsertProfile(ctx, domain.Profile{
		ID:        ident.ID,
		FirstName: strings.TrimSpace(input.FirstName),
		LastName:  strings.TrimSpace(input.LastName),
		Email:     ident.Email,
		Role:      input.Role,
		Telephone: strings.TrimSpace(input.Telephone),
		Country:   strings.TrimSpace(input.Country),
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		s.compensate(ident)
		wrapped := fmt.Errorf("%w: %w", ErrProfileCreate, err)
		s.clear(wrapped)
		return domain.Profile{}, wrapped
	}
	return s.resolveAndNavigate(ctx, ident)
}

// SignOut delega en el proveedor, limpia el estado local y navega al landing.
// El estado local se limpia aunque el proveedor falle.
func (s *Store) SignOut(ctx context.Context) error {
	err := s.provider.SignOut(ctx)
	if err != nil {
		s.logger.Warn("provider sign out failed", zap.Error(err))
	}
	s.clear(nil)
	if s.nav != nil {
		s.nav.Navigate(routing.LandingPath, true)
	}
	return err
}

func (s *Store) handleEvent(ev domain.AuthEvent) {
	s.logger.Debug("auth event", zap.String("type", string(ev.Type)))
	s.applyIdentity(ev.Identity)
}

// applyIdentity actualiza la identidad y lanza la resolución asíncrona del perfil.
func (s *Store) applyIdentity(ident *domain.Identity) {
	if ident == nil {
		s.clear(nil)
		return
	}
	s.startResolution(*ident, nil)
}

// startResolution resuelve el perfil en background. Con expected != nil solo
// arranca si la secuencia no cambió desde entonces.
func (s *Store) startResolution(ident domain.Identity, expected *uint64) {
	var (
		seq   uint64
		fetch bool
		ctx   context.Context
	)
	s.update(func() bool {
		if expected != nil && *expected != s.seq {
			return false
		}
		var ok bool
		seq, ok = s.beginLocked(ident)
		if ok && s.explicit == 0 {
			fetch = true
			ctx = s.ctx
			s.wg.Add(1)
		}
		return ok
	})
	if !fetch {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		defer s.wg.Done()
		profile, err := s.fetcher.Fetch(ctx, ident.ID)
		s.finish(seq, ident.ID, profile, err)
	}()
}

func (s *Store) resolveAndNavigate(ctx context.Context, ident domain.Identity) (domain.Profile, error) {
	profile, err := s.resolve(ctx, ident)
	if err != nil {
		return domain.Profile{}, err
	}
	if !s.isCurrent(ident.ID) {
		return domain.Profile{}, ErrSessionSuperseded
	}
	routing.Redirect(profile.Role, s.nav)
	return profile, nil
}

// resolve busca el perfil en línea y lo aplica si la identidad sigue vigente.
func (s *Store) resolve(ctx context.Context, ident domain.Identity) (domain.Profile, error) {
	var (
		seq      uint64
		ok       bool
		resolved domain.Profile
	)
	s.update(func() bool {
		seq, ok = s.beginLocked(ident)
		if !ok && s.profile != nil {
			resolved = *s.profile
		}
		return ok
	})
	if !ok {
		return resolved, nil
	}
	profile, err := s.fetcher.Fetch(ctx, ident.ID)
	s.finish(seq, ident.ID, profile, err)
	return profile, err
}

// beginLocked registra una nueva resolución. Devuelve false si el perfil de
// esa identidad ya está resuelto.
func (s *Store) beginLocked(ident domain.Identity) (uint64, bool) {
	if s.identity != nil && s.identity.ID == ident.ID && s.profile != nil && !s.loading {
		return 0, false
	}
	s.seq++
	copied := ident
	s.identity = &copied
	s.profile = nil
	s.loading = true
	s.err = nil
	return s.seq, true
}

// finish descarta el resultado si la identidad o la secuencia ya cambiaron.
func (s *Store) finish(seq uint64, identityID string, profile domain.Profile, err error) {
	s.update(func() bool {
		if seq != s.seq || s.identity == nil || s.identity.ID != identityID {
			s.logger.Debug("discarding stale profile resolution", zap.String("identity_id", identityID))
			return false
		}
		if err != nil {
			s.logger.Warn("profile resolution failed", zap.String("identity_id", identityID), zap.Error(err))
			s.profile = nil
			s.err = err
		} else {
			copied := profile
			s.profile = &copied
			s.err = nil
		}
		s.loading = false
		return true
	})
}

func (s *Store) compensate(ident domain.Identity) {
	if err := s.provider.SignOut(context.Background()); err != nil {
		s.logger.Error("compensating sign out failed",
			zap.String("identity_id", ident.ID),
			zap.Error(err),
		)
	}
}

func (s *Store) isCurrent(identityID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity != nil && s.identity.ID == identityID
}

func (s *Store) beginExplicit() {
	s.update(func() bool {
		s.explicit++
		s.loading = true
		s.err = nil
		return true
	})
}

// endExplicit retoma la resolución que un evento dejó pendiente si la
// operación explícita no llegó a resolver esa identidad.
func (s *Store) endExplicit() {
	var pending *domain.Identity
	s.mu.Lock()
	s.explicit--
	if s.explicit == 0 && s.identity != nil && s.profile == nil && s.loading {
		ident := *s.identity
		pending = &ident
	}
	s.mu.Unlock()
	if pending != nil {
		s.startResolution(*pending, nil)
	}
}

func (s *Store) clear(err error) {
	s.update(func() bool {
		s.resetLocked(err)
		return true
	})
}

func (s *Store) resetLocked(err error) {
	s.seq++
	s.identity = nil
	s.profile = nil
	s.loading = false
	s.err = err
}

func (s *Store) snapshotLocked() domain.Session {
	snap := domain.Session{Loading: s.loading, Err: s.err}
	if s.identity != nil {
		ident := *s.identity
		snap.Identity = &ident
	}
	if s.profile != nil {
		profile := *s.profile
		snap.Profile = &profile
	}
	return snap
}

// update aplica fn bajo el lock y, si hubo cambio, despierta a WaitReady y
// encola la foto. Un solo goroutine a la vez vacía la cola fuera del lock,
// así los listeners reciben las fotos en el orden en que se produjeron.
func (s *Store) update(fn func() bool) {
	s.mu.Lock()
	if !fn() {
		s.mu.Unlock()
		return
	}
	close(s.changed)
	s.changed = make(chan struct{})
	s.outbox = append(s.outbox, s.snapshotLocked())
	if s.dispatching {
		s.mu.Unlock()
		return
	}
	s.dispatching = true
	for len(s.outbox) > 0 {
		snap := s.outbox[0]
		s.outbox = s.outbox[1:]
		listeners := make([]func(domain.Session), 0, len(s.listeners))
		for _, l := range s.listeners {
			listeners = append(listeners, l)
		}
		s.mu.Unlock()

		for _, l := range listeners {
			l(snap)
		}
		s.mu.Lock()
	}
	s.outbox = nil
	s.dispatching = false
	s.mu.Unlock()
}
