package account

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ghaggin/accountconsole/internal/config"
	"github.com/ghaggin/accountconsole/internal/gateway"
	"github.com/ghaggin/accountconsole/internal/model"
	"github.com/ghaggin/accountconsole/internal/session"
	"github.com/go-playground/validator/v10"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Backend paths, relative to the configured base url.
const (
	pathLogin         = "auth/login/"
	pathLogout        = "auth/logout/"
	pathRegister      = "auth/register/"
	pathProfile       = "auth/profile/"
	pathProfileUpdate = "auth/profile/update/"
	pathUsers         = "auth/users/"
)

// CookieSession stands in for the credential when the backend tracks the
// session in a cookie and hands out no token.
const CookieSession = "cookie-session"

var (
	ErrNotAuthenticated = errors.New("not signed in")
	ErrForbidden        = errors.New("only a superadmin may manage users")
	ErrInvalidRole      = errors.New("invalid role")
	ErrSuperadminExempt = errors.New("superadmin accounts cannot be deactivated")
	errNoToken          = errors.New("login response carried no token")
	errIncompleteUser   = errors.New("response carried no user record")
)

// Client performs the console's account operations against the backend and
// feeds their outcomes into the session store.
type Client struct {
	log      *zap.Logger
	gw       *gateway.Gateway
	session  *session.Store
	validate *validator.Validate
}

type Params struct {
	fx.In

	Log     *zap.Logger
	Config  *config.Config
	Gateway *gateway.Gateway
	Session *session.Store
}

func New(p Params) *Client {
	return &Client{
		log:      p.Log,
		gw:       p.Gateway,
		session:  p.Session,
		validate: newValidator(p.Config.Console.PhoneRegion),
	}
}

// Login authenticates and establishes the session. Validation and transport
// failures leave the session untouched; a 401 ends it like any other call.
func (c *Client) Login(ctx context.Context, form model.LoginForm) (*model.User, error) {
	if err := c.check(pathLogin, form); err != nil {
		return nil, err
	}

	var resp model.LoginResponse
	if err := c.gw.Do(ctx, http.MethodPost, pathLogin, form, &resp); err != nil {
		return nil, err
	}

	if err := checkUser(http.MethodPost, pathLogin, &resp.User); err != nil {
		return nil, err
	}

	credential := resp.Token
	if c.gw.Transport() == config.TransportCookie {
		credential = CookieSession
	}
	if credential == "" {
		return nil, &gateway.Error{
			Kind:   gateway.TransportFailed,
			Method: http.MethodPost,
			Path:   pathLogin,
			Err:    errNoToken,
		}
	}

	if err := c.session.Establish(ctx, &resp.User, credential); err != nil {
		return nil, err
	}

	c.log.Info("logged in", zap.String("username", resp.User.Username))
	return &resp.User, nil
}

// Register creates an account. It does not sign the new user in.
func (c *Client) Register(ctx context.Context, form model.RegisterForm) (*model.User, error) {
	if err := c.check(pathRegister, form); err != nil {
		return nil, err
	}

	var resp model.RegisterResponse
	if err := c.gw.Do(ctx, http.MethodPost, pathRegister, form, &resp); err != nil {
		return nil, err
	}

	c.log.Info("registered", zap.String("username", resp.User.Username))
	return &resp.User, nil
}

// RegisterAndLogin registers and then signs in with the same credentials.
func (c *Client) RegisterAndLogin(ctx context.Context, form model.RegisterForm) (*model.User, error) {
	if _, err := c.Register(ctx, form); err != nil {
		return nil, err
	}
	return c.Login(ctx, model.LoginForm{Username: form.Username, Password: form.Password})
}

// Logout ends the session locally whatever the backend answers. The
// backend's error, if any, is still returned.
func (c *Client) Logout(ctx context.Context) error {
	callErr := c.gw.Do(ctx, http.MethodPost, pathLogout, nil, nil)
	clearErr := c.session.Clear(ctx)

	if callErr != nil {
		c.log.Warn("backend logout failed, session cleared anyway", zap.Error(callErr))
		return callErr
	}
	return clearErr
}

// Profile fetches the signed-in user's record.
func (c *Client) Profile(ctx context.Context) (*model.User, error) {
	var u model.User
	if err := c.gw.Do(ctx, http.MethodGet, pathProfile, nil, &u); err != nil {
		return nil, err
	}
	if err := checkUser(http.MethodGet, pathProfile, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateProfile saves the form and re-establishes the session with the
// updated record and the existing credential.
func (c *Client) UpdateProfile(ctx context.Context, form model.ProfileForm) (*model.User, error) {
	snap := c.session.Snapshot()
	if !snap.IsAuthenticated {
		return nil, ErrNotAuthenticated
	}

	if err := c.check(pathProfileUpdate, form); err != nil {
		return nil, err
	}

	var u model.User
	err := c.gw.Do(ctx, http.MethodPut, pathProfileUpdate, form, &u)
	if err == nil {
		err = checkUser(http.MethodPut, pathProfileUpdate, &u)
	}
	if err != nil {
		if !errors.Is(err, gateway.ErrAuthRejected) {
			c.session.Fail(err)
		}
		return nil, err
	}

	if err := c.session.Establish(ctx, &u, snap.Credential); err != nil {
		return nil, err
	}
	return &u, nil
}

// ListUsers returns every account. Superadmin only.
func (c *Client) ListUsers(ctx context.Context) ([]model.User, error) {
	if err := c.requireManager(); err != nil {
		return nil, err
	}

	var users []model.User
	if err := c.gw.Do(ctx, http.MethodGet, pathUsers, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// ChangeRole assigns role to user id. Superadmin only.
func (c *Client) ChangeRole(ctx context.Context, id int, role model.Role) (*model.User, error) {
	if err := c.requireManager(); err != nil {
		return nil, err
	}
	if !role.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	body := struct {
		Role model.Role `json:"role"`
	}{role}

	var u model.User
	if err := c.gw.Do(ctx, http.MethodPatch, fmt.Sprintf("auth/users/%d/role/", id), body, &u); err != nil {
		return nil, err
	}

	c.log.Info("changed user role", zap.Int("user_id", id), zap.String("role", string(role)))
	return &u, nil
}

// ToggleActive flips target's active status. Superadmin only, and never
// for a superadmin target.
func (c *Client) ToggleActive(ctx context.Context, target model.User) (*model.User, error) {
	if err := c.requireManager(); err != nil {
		return nil, err
	}
	if !target.Role.Deactivatable() {
		return nil, ErrSuperadminExempt
	}

	body := struct {
		IsActive bool `json:"is_active"`
	}{!target.IsActive}

	var u model.User
	if err := c.gw.Do(ctx, http.MethodPatch, fmt.Sprintf("auth/users/%d/toggle-active/", target.ID), body, &u); err != nil {
		return nil, err
	}

	c.log.Info("toggled user status", zap.Int("user_id", target.ID), zap.Bool("active", body.IsActive))
	return &u, nil
}

// checkUser rejects a user record the backend never filled in.
func checkUser(method, path string, u *model.User) error {
	if u.ID != 0 {
		return nil
	}
	return &gateway.Error{
		Kind:   gateway.TransportFailed,
		Method: method,
		Path:   path,
		Err:    errIncompleteUser,
	}
}

func (c *Client) requireManager() error {
	snap := c.session.Snapshot()
	if !snap.IsAuthenticated {
		return ErrNotAuthenticated
	}
	if !snap.Role().CanManageUsers() {
		return ErrForbidden
	}
	return nil
}
