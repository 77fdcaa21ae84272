package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"artmarket/internal/domain"
)

// fakeAPI imita la API del marketplace con tokens opacos.
type fakeAPI struct {
	mu         sync.Mutex
	issued     int
	access     map[string]string
	refresh    map[string]string
	identities map[string]domain.Identity
	profiles   map[string]domain.Profile
	signouts   int
	signoutErr bool
	refreshes  int
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	api := &fakeAPI{
		access:     make(map[string]string),
		refresh:    make(map[string]string),
		identities: map[string]domain.Identity{"ana@example.com": {ID: "u1", Email: "ana@example.com"}},
		profiles:   make(map[string]domain.Profile),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/signin", api.signIn)
	mux.HandleFunc("POST /auth/signup", api.signIn)
	mux.HandleFunc("POST /auth/refresh", api.rotate)
	mux.HandleFunc("POST /auth/signout", api.signOut)
	mux.HandleFunc("GET /auth/session", api.session)
	mux.HandleFunc("GET /profiles/{id}", api.getProfile)
	mux.HandleFunc("PUT /profiles/{id}", api.putProfile)
	mux.HandleFunc("GET /dashboard/admin", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := api.identityFor(r); !ok {
			http.Redirect(w, r, "/login?redirect=%2Fdashboard%2Fadmin", http.StatusFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"page": "/dashboard/admin"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return api, srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *fakeAPI) issueLocked(identity domain.Identity) map[string]any {
	a.issued++
	access := fmt.Sprintf("access-%d", a.issued)
	refresh := fmt.Sprintf("refresh-%d", a.issued)
	a.access[access] = identity.Email
	a.refresh[refresh] = identity.Email
	return map[string]any{
		"identity": identity,
		"tokens":   map[string]string{"access_token": access, "refresh_token": refresh},
	}
}

func (a *fakeAPI) signIn(w http.ResponseWriter, r *http.Request) {
	var req struct{ Email, Password string }
	_ = json.NewDecoder(r.Body).Decode(&req)
	a.mu.Lock()
	defer a.mu.Unlock()
	identity, ok := a.identities[req.Email]
	if !ok || req.Password != "secret-pw" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}
	writeJSON(w, http.StatusOK, a.issueLocked(identity))
}

func (a *fakeAPI) rotate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.refreshes++
	email, ok := a.refresh[req.RefreshToken]
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
		return
	}
	delete(a.refresh, req.RefreshToken)
	writeJSON(w, http.StatusOK, a.issueLocked(a.identities[email]))
}

func (a *fakeAPI) signOut(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.signouts++
	if a.signoutErr {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "boom"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *fakeAPI) identityFor(r *http.Request) (domain.Identity, bool) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	a.mu.Lock()
	defer a.mu.Unlock()
	email, ok := a.access[token]
	if !ok {
		return domain.Identity{}, false
	}
	return a.identities[email], true
}

func (a *fakeAPI) session(w http.ResponseWriter, r *http.Request) {
	identity, ok := a.identityFor(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"identity": identity})
}

func (a *fakeAPI) getProfile(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.identityFor(r); !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
		return
	}
	a.mu.Lock()
	p, ok := a.profiles[r.PathValue("id")]
	a.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "profile not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profile": p})
}

func (a *fakeAPI) putProfile(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.identityFor(r); !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
		return
	}
	var p domain.Profile
	_ = json.NewDecoder(r.Body).Decode(&p)
	p.ID = r.PathValue("id")
	a.mu.Lock()
	a.profiles[p.ID] = p
	a.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"profile": p})
}

// expireAccess invalida todos los access tokens emitidos.
func (a *fakeAPI) expireAccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.access = make(map[string]string)
}

// revokeAll invalida access y refresh tokens.
func (a *fakeAPI) revokeAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.access = make(map[string]string)
	a.refresh = make(map[string]string)
}

type eventLog struct {
	mu     sync.Mutex
	events []domain.AuthEventType
}

func (l *eventLog) record(ev domain.AuthEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev.Type)
}

func (l *eventLog) types() []domain.AuthEventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.AuthEventType(nil), l.events...)
}

func (a *fakeAPI) lastIssued() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return fmt.Sprintf("access-%d", a.issued)
}

func (a *fakeAPI) setProfile(p domain.Profile) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.profiles[p.ID] = p
}

func (a *fakeAPI) failSignOut() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.signoutErr = true
}

func (a *fakeAPI) counts() (refreshes, signouts int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.refreshes, a.signouts
}
