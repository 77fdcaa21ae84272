package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"artmarket/internal/domain"
	"artmarket/internal/repository"
	"artmarket/internal/routing"
	"artmarket/internal/service"
	"artmarket/internal/session"
	"artmarket/internal/storage"
)

type mockIdentityRepo struct {
	mu      sync.Mutex
	byID    map[string]domain.Identity
	byEmail map[string]string
}

func newMockIdentityRepo() *mockIdentityRepo {
	return &mockIdentityRepo{byID: make(map[string]domain.Identity), byEmail: make(map[string]string)}
}

func (m *mockIdentityRepo) Create(_ context.Context, identity domain.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[identity.Email]; ok {
		return repository.ErrEmailTaken
	}
	m.byID[identity.ID] = identity
	m.byEmail[identity.Email] = identity.ID
	return nil
}

func (m *mockIdentityRepo) GetByID(_ context.Context, id string) (domain.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	identity, ok := m.byID[id]
	if !ok {
		return domain.Identity{}, pgx.ErrNoRows
	}
	return identity, nil
}

func (m *mockIdentityRepo) GetByEmail(ctx context.Context, email string) (domain.Identity, error) {
	m.mu.Lock()
	id, ok := m.byEmail[email]
	m.mu.Unlock()
	if !ok {
		return domain.Identity{}, pgx.ErrNoRows
	}
	return m.GetByID(ctx, id)
}

type mockProfileRepo struct {
	mu       sync.Mutex
	profiles map[string]domain.Profile
}

func newMockProfileRepo() *mockProfileRepo {
	return &mockProfileRepo{profiles: make(map[string]domain.Profile)}
}

func (m *mockProfileRepo) GetProfile(_ context.Context, id string) (domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return domain.Profile{}, domain.ErrProfileNotFound
	}
	return p, nil
}

func (m *mockProfileRepo) UpsertProfile(_ context.Context, p domain.Profile) (domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.ID] = p
	return p, nil
}

func (m *mockProfileRepo) UpdateProfile(_ context.Context, p domain.Profile) (domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[p.ID]; !ok {
		return domain.Profile{}, domain.ErrProfileNotFound
	}
	m.profiles[p.ID] = p
	return p, nil
}

func (m *mockProfileRepo) put(p domain.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.ID] = p
}

type recordingDecisions struct {
	mu        sync.Mutex
	decisions []string
}

func (r *recordingDecisions) RecordGuardDecision(decision string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decisions = append(r.decisions, decision)
}

func (r *recordingDecisions) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.decisions) == 0 {
		return ""
	}
	return r.decisions[len(r.decisions)-1]
}

type testServer struct {
	router     *gin.Engine
	jwt        *service.JWTService
	identities *mockIdentityRepo
	profiles   *mockProfileRepo
	objects    *storage.MemoryStorage
	decisions  *recordingDecisions
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	ts := &testServer{
		jwt:        service.NewJWTServiceWithStore("secret", 15*time.Minute, time.Hour, service.NewMemoryRefreshTokenStore()),
		identities: newMockIdentityRepo(),
		profiles:   newMockProfileRepo(),
		objects:    storage.NewMemoryStorage("http://cdn.local"),
		decisions:  &recordingDecisions{},
	}

	authSvc := service.NewAuthService(logger, ts.identities, ts.jwt, service.NewMemorySignInLimiter(time.Minute, 3), nil)
	profileSvc := service.NewProfileService(logger, ts.profiles)
	fetcher := session.NewProfileFetcher(logger, ts.profiles, session.NoRetryPolicy(), nil)
	store := storage.NewStorage(ts.objects, []string{"avatars", "artworks"})

	ts.router = NewRouter(logger, RouterDeps{
		JWT:      ts.jwt,
		Auth:     NewAuthHandler(logger, authSvc),
		Profiles: NewProfileHandler(logger, profileSvc),
		Uploads:  NewUploadHandler(logger, store, 16, nil),
		Pages:    NewPageHandler(),
		Guard:    NewPageGuard(logger, routing.NewGuard(nil), fetcher, ts.decisions),
		Health:   NewHealthHandler(logger, map[string]func(context.Context) error{"db": func(context.Context) error { return nil }}),
	})
	return ts
}

// tokenFor emite un access token para una identidad con el perfil dado.
func (ts *testServer) tokenFor(t *testing.T, id string, role domain.Role) string {
	t.Helper()
	ts.profiles.put(domain.Profile{ID: id, Role: role, Email: id + "@example.com"})
	return ts.tokenWithoutProfile(t, id)
}

func (ts *testServer) tokenWithoutProfile(t *testing.T, id string) string {
	t.Helper()
	pair, err := ts.jwt.GeneratePair(domain.Identity{ID: id, Email: id + "@example.com"})
	if err != nil {
		t.Fatalf("generate pair: %v", err)
	}
	return pair.AccessToken
}

func (ts *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
}
