package console

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ghaggin/accountconsole/internal/account"
	"github.com/ghaggin/accountconsole/internal/config"
	"github.com/ghaggin/accountconsole/internal/guard"
	"github.com/ghaggin/accountconsole/internal/middleware"
	"github.com/ghaggin/accountconsole/internal/model"
	"github.com/ghaggin/accountconsole/internal/session"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// bootstrapTimeout bounds the initial profile fetch.
const bootstrapTimeout = 30 * time.Second

type Console struct {
	log     *zap.Logger
	server  *http.Server
	store   *session.Store
	client  *account.Client
	nav     *guard.Navigation
	browser *middleware.SessionManager
	guard   *guard.Guard

	signInAfterRegister bool
}

type Params struct {
	fx.In

	Log        *zap.Logger
	Config     *config.Config
	Store      *session.Store
	Client     *account.Client
	Navigation *guard.Navigation
	Browser    *middleware.SessionManager
}

func New(p Params) (*Console, error) {
	c := &Console{
		log:     p.Log,
		store:   p.Store,
		client:  p.Client,
		nav:     p.Navigation,
		browser: p.Browser,

		signInAfterRegister: p.Config.Console.SignInAfterRegister,
	}

	c.guard = guard.New(guard.Options{
		Log:        p.Log,
		Source:     p.Store,
		Navigation: p.Navigation,
		Recorder:   p.Browser,
		Pending:    http.HandlerFunc(c.pending),
		Wait:       p.Config.Console.PendingWait,
	})

	c.server = &http.Server{
		Addr:    fmt.Sprintf("localhost:%d", p.Config.Console.Port),
		Handler: c.Routes(),
	}

	return c, nil
}

func (c *Console) Routes() http.Handler {
	root := chi.NewRouter()
	root.Use(chimw.RequestID)
	root.Use(chimw.Recoverer)
	root.Use(c.browser.Wrap)

	// Auth
	root.Group(func(r chi.Router) {
		r.Use(c.guard.Require())
		r.Get("/dashboard", c.dashboard)
		r.Get("/profile", c.profile)
		r.Post("/profile", c.updateProfile)
		r.Post("/logout", c.logout)
	})

	root.Group(func(r chi.Router) {
		r.Use(c.guard.Require(model.RoleSuperadmin))
		r.Get("/admin", c.admin)
		r.Post("/admin/users/{id}/role", c.changeRole)
		r.Post("/admin/users/{id}/toggle-active", c.toggleActive)
	})

	// No Auth
	root.Group(func(r chi.Router) {
		r.Get("/login", c.loginPage)
		r.Post("/login", c.login)
		r.Get("/register", c.registerPage)
		r.Post("/register", c.register)
		r.Get("/unauthorized", c.unauthorized)
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		})
	})

	return root
}

// RegisterHooks should be invoked by fx
func RegisterHooks(lc fx.Lifecycle, c *Console) {
	lc.Append(fx.Hook{
		OnStart: c.Start,
		OnStop:  c.server.Shutdown,
	})
}

// Start serves the console and bootstraps the session in the background.
// Protected views show a placeholder until bootstrap settles.
func (c *Console) Start(_ context.Context) error {
	go func() {
		err := c.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.log.Error("error starting server", zap.Error(err))
		}
	}()

	go c.bootstrap()

	c.log.Info("console listening", zap.String("addr", c.server.Addr))
	return nil
}

func (c *Console) bootstrap() {
	ctx, cancel := context.WithTimeout(context.Background(), bootstrapTimeout)
	defer cancel()

	if err := c.store.Bootstrap(ctx, c.client); err != nil {
		c.log.Warn("session bootstrap ended anonymous", zap.Error(err))
		return
	}

	snap := c.store.Snapshot()
	c.log.Info("session bootstrap complete", zap.Bool("authenticated", snap.IsAuthenticated))
}
