// Package client implementa el proveedor de auth y la fuente de perfiles sobre la API HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"artmarket/internal/domain"
	"artmarket/internal/storage"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrRateLimited  = errors.New("rate limited")
	ErrNotSignedIn  = errors.New("not signed in")
)

// APIError es una respuesta de error de la API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return nil
	}
}

// Client habla con la API del marketplace y emite eventos de auth.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenStore
	logger  *zap.Logger

	refreshMu sync.Mutex

	mu        sync.Mutex
	listeners map[int]func(domain.AuthEvent)
	nextID    int
}

func New(baseURL string, timeout time.Duration, tokens TokenStore, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tokens == nil {
		tokens = NewMemoryTokenStore()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		tokens:    tokens,
		logger:    logger,
		listeners: make(map[int]func(domain.AuthEvent)),
	}
}

type authResponse struct {
	Identity domain.Identity `json:"identity"`
	Tokens   struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	} `json:"tokens"`
}

func (c *Client) SignIn(ctx context.Context, email, password string) (domain.Identity, error) {
	return c.authenticate(ctx, "/auth/signin", email, password)
}

func (c *Client) SignUp(ctx context.Context, email, password string) (domain.Identity, error) {
	return c.authenticate(ctx, "/auth/signup", email, password)
}

func (c *Client) authenticate(ctx context.Context, path, email, password string) (domain.Identity, error) {
	var resp authResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.doJSON(ctx, http.MethodPost, path, body, false, &resp); err != nil {
		return domain.Identity{}, err
	}
	if err := c.saveSession(resp); err != nil {
		return domain.Identity{}, err
	}
	identity := resp.Identity
	c.emit(domain.AuthEvent{Type: domain.AuthEventSignedIn, Identity: &identity})
	return identity, nil
}

// SignOut revoca el refresh token remoto y borra la sesión local aunque falle.
func (c *Client) SignOut(ctx context.Context) error {
	tokens, ok, err := c.tokens.Load()
	var remoteErr error
	if err == nil && ok && tokens.RefreshToken != "" {
		remoteErr = c.doJSON(ctx, http.MethodPost, "/auth/signout", map[string]string{"refresh_token": tokens.RefreshToken}, false, nil)
	}
	if clearErr := c.tokens.Clear(); clearErr != nil {
		c.logger.Warn("clear local session failed", zap.Error(clearErr))
	}
	c.emit(domain.AuthEvent{Type: domain.AuthEventSignedOut})
	if err != nil {
		return err
	}
	return remoteErr
}

// CurrentIdentity valida la sesión guardada contra la API. Sin sesión devuelve nil.
func (c *Client) CurrentIdentity(ctx context.Context) (*domain.Identity, error) {
	if _, ok, err := c.tokens.Load(); err != nil || !ok {
		return nil, err
	}
	var resp struct {
		Identity domain.Identity `json:"identity"`
	}
	err := c.doJSON(ctx, http.MethodGet, "/auth/session", nil, true, &resp)
	if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrNotSignedIn) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &resp.Identity, nil
}

// Subscribe registra fn para cada evento de auth.
func (c *Client) Subscribe(fn func(domain.AuthEvent)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// GetProfile devuelve domain.ErrProfileNotFound ante un 404.
func (c *Client) GetProfile(ctx context.Context, id string) (domain.Profile, error) {
	var resp struct {
		Profile domain.Profile `json:"profile"`
	}
	err := c.doJSON(ctx, http.MethodGet, "/profiles/"+url.PathEscape(id), nil, true, &resp)
	if errors.Is(err, ErrNotFound) {
		return domain.Profile{}, domain.ErrProfileNotFound
	}
	if err != nil {
		return domain.Profile{}, err
	}
	return resp.Profile, nil
}

func (c *Client) UpsertProfile(ctx context.Context, p domain.Profile) (domain.Profile, error) {
	var resp struct {
		Profile domain.Profile `json:"profile"`
	}
	body := map[string]string{
		"first_name": p.FirstName,
		"last_name":  p.LastName,
		"email":      p.Email,
		"role":       p.Role.String(),
		"telephone":  p.Telephone,
		"country":    p.Country,
		"avatar_url": p.AvatarURL,
	}
	if err := c.doJSON(ctx, http.MethodPut, "/profiles/"+url.PathEscape(p.ID), body, true, &resp); err != nil {
		return domain.Profile{}, err
	}
	return resp.Profile, nil
}

// UpdateProfile envía solo los campos presentes en patch.
func (c *Client) UpdateProfile(ctx context.Context, id string, patch map[string]string) (domain.Profile, error) {
	var resp struct {
		Profile domain.Profile `json:"profile"`
	}
	if err := c.doJSON(ctx, http.MethodPatch, "/profiles/"+url.PathEscape(id), patch, true, &resp); err != nil {
		return domain.Profile{}, err
	}
	return resp.Profile, nil
}

// Upload sube un archivo al bucket indicado.
func (c *Client) Upload(ctx context.Context, bucket, filename, contentType string, r io.Reader) (storage.Object, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(filename)))
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		return storage.Object{}, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return storage.Object{}, err
	}
	if err := w.Close(); err != nil {
		return storage.Object{}, err
	}

	var resp struct {
		Object storage.Object `json:"object"`
	}
	if err := c.do(ctx, http.MethodPost, "/storage/"+url.PathEscape(bucket), w.FormDataContentType(), buf.Bytes(), true, &resp); err != nil {
		return storage.Object{}, err
	}
	return resp.Object, nil
}

// PageResult es la respuesta del servidor a una página protegida.
type PageResult struct {
	Status   int
	Location string
	Page     string
}

// Page pide path sin seguir redirecciones.
func (c *Client) Page(ctx context.Context, path string) (PageResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return PageResult{}, fmt.Errorf("create request: %w", err)
	}
	if tokens, ok, _ := c.tokens.Load(); ok {
		req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return PageResult{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	result := PageResult{Status: resp.StatusCode, Location: resp.Header.Get("Location")}
	if resp.StatusCode == http.StatusOK {
		var body struct {
			Page string `json:"page"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
			result.Page = body.Page
		}
	}
	return result, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, auth bool, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}
	return c.do(ctx, method, path, "application/json", payload, auth, out)
}

// do ejecuta el request; con auth reintenta una vez tras refrescar ante un 401.
func (c *Client) do(ctx context.Context, method, path, contentType string, payload []byte, auth bool, out any) error {
	err := c.send(ctx, method, path, contentType, payload, auth, out)
	if !auth || !errors.Is(err, ErrUnauthorized) {
		return err
	}
	if refreshErr := c.refresh(ctx); refreshErr != nil {
		return refreshErr
	}
	return c.send(ctx, method, path, contentType, payload, auth, out)
}

func (c *Client) send(ctx context.Context, method, path, contentType string, payload []byte, auth bool, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", contentType)
	}
	if auth {
		tokens, ok, err := c.tokens.Load()
		if err != nil {
			return err
		}
		if !ok || tokens.AccessToken == "" {
			return ErrNotSignedIn
		}
		req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(respBody, &apiErr)
		c.logger.Debug("api error", zap.String("path", path), zap.Int("status", resp.StatusCode), zap.String("error", apiErr.Error))
		return &APIError{Status: resp.StatusCode, Message: apiErr.Error}
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// refresh rota los tokens. Si el refresh token ya no sirve, la sesión termina.
func (c *Client) refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	tokens, ok, err := c.tokens.Load()
	if err != nil {
		return err
	}
	if !ok || tokens.RefreshToken == "" {
		return ErrNotSignedIn
	}

	var resp authResponse
	err = c.send(ctx, http.MethodPost, "/auth/refresh", "application/json",
		mustJSON(map[string]string{"refresh_token": tokens.RefreshToken}), false, &resp)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			if clearErr := c.tokens.Clear(); clearErr != nil {
				c.logger.Warn("clear local session failed", zap.Error(clearErr))
			}
			c.emit(domain.AuthEvent{Type: domain.AuthEventSignedOut})
		}
		return err
	}
	if err := c.saveSession(resp); err != nil {
		return err
	}
	identity := resp.Identity
	c.emit(domain.AuthEvent{Type: domain.AuthEventTokenRefreshed, Identity: &identity})
	return nil
}

func (c *Client) saveSession(resp authResponse) error {
	return c.tokens.Save(Tokens{
		AccessToken:  resp.Tokens.AccessToken,
		RefreshToken: resp.Tokens.RefreshToken,
		Identity:     resp.Identity,
	})
}

func (c *Client) emit(ev domain.AuthEvent) {
	c.mu.Lock()
	fns := make([]func(domain.AuthEvent), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func mustJSON(v any) []byte {
	data, _ := json.Marshal(v)
	return data
}
