package console

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ghaggin/accountconsole/internal/account"
	"github.com/ghaggin/accountconsole/internal/gateway"
	"github.com/ghaggin/accountconsole/internal/guard"
	"github.com/ghaggin/accountconsole/internal/model"
	"github.com/ghaggin/accountconsole/internal/template"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	flashSuccess = "success"
	flashError   = "error"
)

func (c *Console) render(w http.ResponseWriter, r *http.Request, tmpl string, td *template.Data) {
	td.User = c.store.Snapshot().User
	td.Flashes = c.browser.Flashes(r.Context())

	if err := template.Render(w, r, tmpl, td); err != nil {
		c.log.Error("render failed", zap.String("template", tmpl), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// fail reports err to the operator. If the backend ended the session while
// handling the request, the forced navigation wins over back.
func (c *Console) fail(w http.ResponseWriter, r *http.Request, err error, fallback, back string) {
	c.log.Info("request failed", zap.String("path", r.URL.Path), zap.Error(err))

	if target, ok := c.nav.Take(); ok {
		c.browser.Flash(r.Context(), flashError, "Your session has ended, please sign in again.")
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}

	c.browser.Flash(r.Context(), flashError, message(err, fallback))
	http.Redirect(w, r, back, http.StatusSeeOther)
}

func message(err error, fallback string) string {
	switch {
	case errors.Is(err, account.ErrSuperadminExempt),
		errors.Is(err, account.ErrInvalidRole),
		errors.Is(err, account.ErrForbidden):
		return err.Error()
	default:
		return gateway.Message(err, fallback)
	}
}

func (c *Console) pending(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Refresh", "1")
	c.render(w, r, "pending.html", &template.Data{PageTitle: "loading"})
}

func (c *Console) loginPage(w http.ResponseWriter, r *http.Request) {
	if c.store.Snapshot().IsAuthenticated {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}

	// already where a forced navigation would send us
	c.nav.Take()
	c.render(w, r, "login.html", &template.Data{PageTitle: "login"})
}

func (c *Console) login(w http.ResponseWriter, r *http.Request) {
	form := model.LoginForm{
		Username:   r.PostFormValue("username"),
		Password:   r.PostFormValue("password"),
		RememberMe: r.PostFormValue("remember_me") != "",
	}

	if _, err := c.client.Login(r.Context(), form); err != nil {
		c.nav.Take()
		c.browser.Flash(r.Context(), flashError, message(err, "Login failed"))
		http.Redirect(w, r, guard.LoginPath, http.StatusSeeOther)
		return
	}

	c.nav.Take()
	c.browser.Flash(r.Context(), flashSuccess, "Logged in successfully")
	http.Redirect(w, r, c.browser.TakeLocation(r.Context(), "/dashboard"), http.StatusSeeOther)
}

func (c *Console) registerPage(w http.ResponseWriter, r *http.Request) {
	c.render(w, r, "register.html", &template.Data{PageTitle: "register"})
}

func (c *Console) register(w http.ResponseWriter, r *http.Request) {
	form := model.RegisterForm{
		Username:  r.PostFormValue("username"),
		Email:     r.PostFormValue("email"),
		Password:  r.PostFormValue("password"),
		FirstName: r.PostFormValue("first_name"),
		LastName:  r.PostFormValue("last_name"),
		Mobile:    r.PostFormValue("mobile"),
		Address:   r.PostFormValue("address"),
	}

	if c.signInAfterRegister {
		if _, err := c.client.RegisterAndLogin(r.Context(), form); err != nil {
			c.fail(w, r, err, "Registration failed", "/register")
			return
		}
		c.nav.Take()
		c.browser.Flash(r.Context(), flashSuccess, "Registration successful!")
		http.Redirect(w, r, c.browser.TakeLocation(r.Context(), "/dashboard"), http.StatusSeeOther)
		return
	}

	if _, err := c.client.Register(r.Context(), form); err != nil {
		c.fail(w, r, err, "Registration failed", "/register")
		return
	}

	c.browser.Flash(r.Context(), flashSuccess, "Registration successful! Please login.")
	http.Redirect(w, r, guard.LoginPath, http.StatusSeeOther)
}

func (c *Console) logout(w http.ResponseWriter, r *http.Request) {
	if err := c.client.Logout(r.Context()); err != nil {
		c.log.Warn("logout failed", zap.Error(err))
		c.browser.Flash(r.Context(), flashError, "Failed to logout cleanly, local session ended")
	} else {
		c.browser.Flash(r.Context(), flashSuccess, "Logged out successfully")
	}

	c.nav.Take()
	http.Redirect(w, r, guard.LoginPath, http.StatusSeeOther)
}

func (c *Console) dashboard(w http.ResponseWriter, r *http.Request) {
	c.render(w, r, "dashboard.html", &template.Data{PageTitle: "dashboard"})
}

func (c *Console) profile(w http.ResponseWriter, r *http.Request) {
	td := &template.Data{
		PageTitle: "profile",
		Editing:   r.URL.Query().Get("edit") != "",
	}
	if u := c.store.Snapshot().User; u != nil {
		td.Profile = model.ProfileFormFrom(*u)
	}
	c.render(w, r, "profile.html", td)
}

func (c *Console) updateProfile(w http.ResponseWriter, r *http.Request) {
	form := model.ProfileForm{
		FirstName: r.PostFormValue("first_name"),
		LastName:  r.PostFormValue("last_name"),
		Email:     r.PostFormValue("email"),
		Mobile:    r.PostFormValue("mobile"),
		Address:   r.PostFormValue("address"),
	}

	if _, err := c.client.UpdateProfile(r.Context(), form); err != nil {
		c.fail(w, r, err, "Failed to update profile", "/profile?edit=1")
		return
	}

	c.browser.Flash(r.Context(), flashSuccess, "Profile updated successfully")
	http.Redirect(w, r, "/profile", http.StatusSeeOther)
}

func (c *Console) admin(w http.ResponseWriter, r *http.Request) {
	users, err := c.client.ListUsers(r.Context())
	if err != nil {
		if target, ok := c.nav.Take(); ok {
			http.Redirect(w, r, target, http.StatusSeeOther)
			return
		}
		c.browser.Flash(r.Context(), flashError, "Failed to fetch users")
	}

	c.render(w, r, "admin.html", &template.Data{
		PageTitle: "admin",
		Users:     users,
		Roles:     model.Roles,
	})
}

func (c *Console) changeRole(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}

	role := model.Role(r.PostFormValue("role"))
	if _, err := c.client.ChangeRole(r.Context(), id, role); err != nil {
		c.fail(w, r, err, "Failed to update user role", "/admin")
		return
	}

	c.browser.Flash(r.Context(), flashSuccess, "User role updated successfully")
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

func (c *Console) toggleActive(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}

	// the policy check needs the target's current role and status
	users, err := c.client.ListUsers(r.Context())
	if err != nil {
		c.fail(w, r, err, "Failed to update user status", "/admin")
		return
	}

	var target *model.User
	for i := range users {
		if users[i].ID == id {
			target = &users[i]
			break
		}
	}
	if target == nil {
		c.browser.Flash(r.Context(), flashError, "User not found")
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
		return
	}

	if _, err := c.client.ToggleActive(r.Context(), *target); err != nil {
		c.fail(w, r, err, "Failed to update user status", "/admin")
		return
	}

	c.browser.Flash(r.Context(), flashSuccess, "User status updated successfully")
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

func (c *Console) unauthorized(w http.ResponseWriter, r *http.Request) {
	c.render(w, r, "unauthorized.html", &template.Data{PageTitle: "unauthorized"})
}
