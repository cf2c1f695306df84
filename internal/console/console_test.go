package console

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ghaggin/accountconsole/internal/account"
	"github.com/ghaggin/accountconsole/internal/config"
	"github.com/ghaggin/accountconsole/internal/gateway"
	"github.com/ghaggin/accountconsole/internal/guard"
	"github.com/ghaggin/accountconsole/internal/middleware"
	"github.com/ghaggin/accountconsole/internal/model"
	"github.com/ghaggin/accountconsole/internal/repository"
	"github.com/ghaggin/accountconsole/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
)

type backend struct {
	mu        sync.Mutex
	users     []model.User
	passwords map[string]string
	calls     map[string]int
	override  map[string]int
}

func newBackend() *backend {
	return &backend{
		users: []model.User{
			{ID: 1, Username: "alice", Email: "alice@example.com", Role: model.RoleUser, IsActive: true},
			{ID: 2, Username: "root", Email: "root@example.com", Role: model.RoleSuperadmin, IsActive: true},
		},
		passwords: map[string]string{},
		calls:     map[string]int{},
		override:  map[string]int{},
	}
}

func (b *backend) count(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[path]
}

func (b *backend) fail(path string, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.override[path] = status
}

func (b *backend) userFor(r *http.Request) *model.User {
	switch r.Header.Get("Authorization") {
	case "Bearer tok1":
		return &b.users[0]
	case "Bearer tok2":
		return &b.users[1]
	}
	return nil
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/api/")
	b.calls[path]++
	w.Header().Set("Content-Type", "application/json")

	if status, ok := b.override[path]; ok {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"detail":"nope"}`))
		return
	}

	switch {
	case path == "auth/login/":
		var form model.LoginForm
		_ = json.NewDecoder(r.Body).Decode(&form)
		for i, u := range b.users {
			if u.Username == form.Username && (form.Password == "x" || b.passwords[u.Username] == form.Password) {
				_ = json.NewEncoder(w).Encode(map[string]any{"user": u, "token": "tok" + string(rune('1'+i))})
				return
			}
		}
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"Invalid Credentials"}`))
	case path == "auth/register/":
		var form model.RegisterForm
		_ = json.NewDecoder(r.Body).Decode(&form)
		u := model.User{ID: len(b.users) + 1, Username: form.Username, Email: form.Email, Role: model.RoleUser, IsActive: true}
		b.users = append(b.users, u)
		b.passwords[u.Username] = form.Password
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"user": u, "message": "User Created Successfully"})
	case path == "auth/logout/":
		_, _ = w.Write([]byte(`{"message":"Logged out successfully"}`))
	case path == "auth/profile/":
		u := b.userFor(r)
		if u == nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(u)
	case path == "auth/users/":
		_ = json.NewEncoder(w).Encode(b.users)
	case strings.HasSuffix(path, "/toggle-active/"):
		_ = json.NewEncoder(w).Encode(b.users[0])
	default:
		http.NotFound(w, r)
	}
}

type fixture struct {
	backend *backend
	console *Console
	store   *session.Store
	creds   repository.CredentialStore
	server  *httptest.Server
	browser *http.Client
}

func newFixture(t *testing.T, opts ...func(*config.Config)) *fixture {
	t.Helper()

	b := newBackend()
	api := httptest.NewServer(b)
	t.Cleanup(api.Close)

	c := config.Default()
	c.Backend.BaseURL = api.URL + "/api/"
	c.Storage.Path = filepath.Join(t.TempDir(), "credential.json")
	c.Console.PendingWait = 20 * time.Millisecond
	for _, opt := range opts {
		opt(c)
	}

	log := zap.NewNop()
	creds, err := repository.NewJSON(repository.Params{LC: fxtest.NewLifecycle(t), Config: c, Log: log})
	require.NoError(t, err)

	store := session.New(session.Params{Log: log, Creds: creds})
	nav := guard.NewNavigation()
	gw, err := gateway.New(gateway.Params{Log: log, Config: c, Creds: creds, Session: store, Navigator: nav})
	require.NoError(t, err)
	client := account.New(account.Params{Log: log, Config: c, Gateway: gw, Session: store})

	browserSession, err := middleware.NewSessionManager(c)
	require.NoError(t, err)

	con, err := New(Params{
		Log:        log,
		Config:     c,
		Store:      store,
		Client:     client,
		Navigation: nav,
		Browser:    browserSession,
	})
	require.NoError(t, err)

	srv := httptest.NewServer(con.Routes())
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &fixture{
		backend: b,
		console: con,
		store:   store,
		creds:   creds,
		server:  srv,
		browser: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (f *fixture) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := f.browser.Get(f.server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(b)
}

func (f *fixture) post(t *testing.T, path string, form url.Values) *http.Response {
	t.Helper()
	resp, err := f.browser.PostForm(f.server.URL+path, form)
	require.NoError(t, err)
	resp.Body.Close()
	return resp
}

func (f *fixture) bootstrap(t *testing.T) {
	t.Helper()
	_ = f.store.Bootstrap(context.Background(), f.console.client)
}

func (f *fixture) login(t *testing.T, username string) {
	t.Helper()
	resp := f.post(t, "/login", url.Values{"username": {username}, "password": {"x"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
}

func Test_ProtectedViewPendingDuringBootstrap(t *testing.T) {
	f := newFixture(t)

	resp, body := f.get(t, "/dashboard")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("Refresh"))
	assert.Contains(t, body, "Loading session")

	f.bootstrap(t)
	resp, _ = f.get(t, "/dashboard")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}

func Test_ProtectedViewWaitsForBootstrap(t *testing.T) {
	f := newFixture(t, func(c *config.Config) {
		c.Console.PendingWait = 5 * time.Second
	})
	require.NoError(t, f.creds.Save(context.Background(), "tok1"))

	go f.bootstrap(t)

	resp, body := f.get(t, "/dashboard")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("Refresh"))
	assert.NotContains(t, body, "Loading session")
	assert.True(t, f.store.Snapshot().IsAuthenticated)
}

func Test_RegisterShowsLogin(t *testing.T) {
	f := newFixture(t)
	f.bootstrap(t)

	resp := f.post(t, "/register", url.Values{
		"username": {"carol"},
		"email":    {"carol@example.com"},
		"password": {"correct horse"},
	})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
	assert.False(t, f.store.Snapshot().IsAuthenticated)
	assert.Equal(t, 0, f.backend.count("auth/login/"))
}

func Test_RegisterSignsInWhenConfigured(t *testing.T) {
	f := newFixture(t, func(c *config.Config) {
		c.Console.SignInAfterRegister = true
	})
	f.bootstrap(t)

	resp := f.post(t, "/register", url.Values{
		"username": {"carol"},
		"email":    {"carol@example.com"},
		"password": {"password1"},
	})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/dashboard", resp.Header.Get("Location"))
	assert.Equal(t, 1, f.backend.count("auth/login/"))

	snap := f.store.Snapshot()
	require.True(t, snap.IsAuthenticated)
	assert.Equal(t, "carol", snap.User.Username)
}

func Test_LoginReturnsToRequestedLocation(t *testing.T) {
	f := newFixture(t)
	f.bootstrap(t)

	resp, _ := f.get(t, "/profile")
	require.Equal(t, "/login", resp.Header.Get("Location"))

	resp = f.post(t, "/login", url.Values{"username": {"alice"}, "password": {"x"}})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/profile", resp.Header.Get("Location"))

	resp, body := f.get(t, "/dashboard")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "alice@example.com")
	assert.Contains(t, body, "Logged in successfully")
	assert.NotContains(t, body, "Admin Panel")

	stored, err := f.creds.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok1", stored)
}

func Test_LoginFailureShowsBackendMessage(t *testing.T) {
	f := newFixture(t)
	f.bootstrap(t)

	resp := f.post(t, "/login", url.Values{"username": {"alice"}, "password": {"bad"}})
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	_, body := f.get(t, "/login")
	assert.Contains(t, body, "Invalid Credentials")
	assert.False(t, f.store.Snapshot().IsAuthenticated)
}

func Test_AdminRequiresSuperadmin(t *testing.T) {
	f := newFixture(t)
	f.bootstrap(t)
	f.login(t, "alice")

	resp, _ := f.get(t, "/admin")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/unauthorized", resp.Header.Get("Location"))
	assert.Equal(t, 0, f.backend.count("auth/users/"))
}

func Test_AdminListsUsers(t *testing.T) {
	f := newFixture(t)
	f.bootstrap(t)
	f.login(t, "root")

	resp, body := f.get(t, "/admin")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "alice@example.com")
	assert.Contains(t, body, "/admin/users/1/toggle-active")
	assert.NotContains(t, body, "/admin/users/2/toggle-active")
}

func Test_ToggleSuperadminRejectedBeforeNetwork(t *testing.T) {
	f := newFixture(t)
	f.bootstrap(t)
	f.login(t, "root")

	resp := f.post(t, "/admin/users/2/toggle-active", nil)
	assert.Equal(t, "/admin", resp.Header.Get("Location"))
	assert.Equal(t, 0, f.backend.count("auth/users/2/toggle-active/"))

	_, body := f.get(t, "/admin")
	assert.Contains(t, body, account.ErrSuperadminExempt.Error())
}

func Test_ToggleActive(t *testing.T) {
	f := newFixture(t)
	f.bootstrap(t)
	f.login(t, "root")

	resp := f.post(t, "/admin/users/1/toggle-active", nil)
	assert.Equal(t, "/admin", resp.Header.Get("Location"))
	assert.Equal(t, 1, f.backend.count("auth/users/1/toggle-active/"))
}

func Test_BackendRejectionForcesLogin(t *testing.T) {
	f := newFixture(t)
	f.bootstrap(t)
	f.login(t, "alice")

	f.backend.fail("auth/profile/update/", http.StatusUnauthorized)
	resp := f.post(t, "/profile", url.Values{"email": {"alice@example.com"}})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
	assert.False(t, f.store.Snapshot().IsAuthenticated)

	_, body := f.get(t, "/login")
	assert.Contains(t, body, "Your session has ended")
}

func Test_Logout(t *testing.T) {
	f := newFixture(t)
	f.bootstrap(t)
	f.login(t, "alice")

	resp := f.post(t, "/logout", nil)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
	assert.False(t, f.store.Snapshot().IsAuthenticated)
	assert.Equal(t, 1, f.backend.count("auth/logout/"))
}

func Test_RootRedirectsToDashboard(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.get(t, "/")
	assert.Equal(t, "/dashboard", resp.Header.Get("Location"))
}
