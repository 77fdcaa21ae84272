package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"artmarket/internal/domain"
)

type mockProvider struct {
	mu        sync.Mutex
	current   *domain.Identity
	currentFn func(ctx context.Context) (*domain.Identity, error)
	signIn    domain.Identity
	signInErr error
	signUp    domain.Identity
	signUpErr error
	signOutErr error

	signOutCalls int
	listeners    map[int]func(domain.AuthEvent)
	nextID       int
	emitOnSignIn bool
}

func newMockProvider() *mockProvider {
	return &mockProvider{listeners: make(map[int]func(domain.AuthEvent))}
}

func (m *mockProvider) SignIn(_ context.Context, _, _ string) (domain.Identity, error) {
	if m.signInErr != nil {
		return domain.Identity{}, m.signInErr
	}
	m.mu.Lock()
	ident := m.signIn
	m.current = &ident
	m.mu.Unlock()
	if m.emitOnSignIn {
		m.emit(domain.AuthEvent{Type: domain.AuthEventSignedIn, Identity: &ident})
	}
	return ident, nil
}

func (m *mockProvider) SignUp(_ context.Context, _, _ string) (domain.Identity, error) {
	if m.signUpErr != nil {
		return domain.Identity{}, m.signUpErr
	}
	m.mu.Lock()
	ident := m.signUp
	m.current = &ident
	m.mu.Unlock()
	m.emit(domain.AuthEvent{Type: domain.AuthEventSignedIn, Identity: &ident})
	return ident, nil
}

func (m *mockProvider) SignOut(_ context.Context) error {
	m.mu.Lock()
	m.signOutCalls++
	m.current = nil
	err := m.signOutErr
	m.mu.Unlock()
	return err
}

func (m *mockProvider) CurrentIdentity(ctx context.Context) (*domain.Identity, error) {
	if m.currentFn != nil {
		return m.currentFn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil, nil
	}
	ident := *m.current
	return &ident, nil
}

func (m *mockProvider) Subscribe(fn func(domain.AuthEvent)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

func (m *mockProvider) emit(ev domain.AuthEvent) {
	m.mu.Lock()
	fns := make([]func(domain.AuthEvent), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (m *mockProvider) listenerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners)
}

func (m *mockProvider) signOuts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.signOutCalls
}

type mockProfiles struct {
	mu        sync.Mutex
	profiles  map[string]domain.Profile
	getErr    error
	upsertErr error
	// missesLeft hace que las primeras N búsquedas devuelvan not found.
	missesLeft int
	gets       int
	upserts    int
	block      map[string]chan struct{}
}

func newMockProfiles() *mockProfiles {
	return &mockProfiles{
		profiles: make(map[string]domain.Profile),
		block:    make(map[string]chan struct{}),
	}
}

func (m *mockProfiles) GetProfile(ctx context.Context, id string) (domain.Profile, error) {
	m.mu.Lock()
	m.gets++
	wait := m.block[id]
	m.mu.Unlock()
	if wait != nil {
		select {
		case <-wait:
		case <-ctx.Done():
			return domain.Profile{}, ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return domain.Profile{}, m.getErr
	}
	if m.missesLeft > 0 {
		m.missesLeft--
		return domain.Profile{}, domain.ErrProfileNotFound
	}
	p, ok := m.profiles[id]
	if !ok {
		return domain.Profile{}, domain.ErrProfileNotFound
	}
	return p, nil
}

func (m *mockProfiles) UpsertProfile(_ context.Context, p domain.Profile) (domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	if m.upsertErr != nil {
		return domain.Profile{}, m.upsertErr
	}
	m.profiles[p.ID] = p
	return p, nil
}

func (m *mockProfiles) put(p domain.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.ID] = p
}

func (m *mockProfiles) getCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gets
}

type recordingNavigator struct {
	mu    sync.Mutex
	paths []string
}

func (n *recordingNavigator) Navigate(path string, _ bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, path)
}

func (n *recordingNavigator) calls() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.paths...)
}

type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
	err    error
}

func (r *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return r.err
}

func (r *recordingSleeper) calls() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

func noSleep(context.Context, time.Duration) error { return nil }

var errBoom = errors.New("boom")
