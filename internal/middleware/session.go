package middleware

import (
	"context"
	"encoding/gob"
	"net/http"
	"strings"

	"github.com/alexedwards/scs/v2"
	"github.com/ghaggin/accountconsole/internal/config"
	"github.com/ghaggin/accountconsole/internal/template"
)

const (
	flashKey    = "flashes"
	returnToKey = "return_to"
)

// SessionManager keeps per-browser state that is not authentication: queued
// notifications and the location to return to after login.
type SessionManager struct {
	impl *scs.SessionManager
}

func NewSessionManager(c *config.Config) (*SessionManager, error) {
	gob.Register([]template.Flash{})

	sm := &SessionManager{}
	sm.impl = scs.New()
	sm.impl.Lifetime = c.Console.SessionLifetime
	sm.impl.Cookie.Name = "console_session"
	sm.impl.Cookie.HttpOnly = true
	sm.impl.Cookie.SameSite = http.SameSiteLaxMode

	return sm, nil
}

func (s *SessionManager) Wrap(next http.Handler) http.Handler {
	return s.impl.LoadAndSave(next)
}

// Flash queues a notification for the next rendered page.
func (s *SessionManager) Flash(ctx context.Context, kind, message string) {
	flashes, _ := s.impl.Get(ctx, flashKey).([]template.Flash)
	flashes = append(flashes, template.Flash{Kind: kind, Message: message})
	s.impl.Put(ctx, flashKey, flashes)
}

// Flashes returns and clears the queued notifications.
func (s *SessionManager) Flashes(ctx context.Context) []template.Flash {
	flashes, _ := s.impl.Pop(ctx, flashKey).([]template.Flash)
	return flashes
}

func (s *SessionManager) RememberLocation(r *http.Request, location string) {
	s.impl.Put(r.Context(), returnToKey, location)
}

// TakeLocation returns the remembered location, or def when there is none
// or it does not point back into the console.
func (s *SessionManager) TakeLocation(ctx context.Context, def string) string {
	loc := s.impl.PopString(ctx, returnToKey)
	if !strings.HasPrefix(loc, "/") || strings.HasPrefix(loc, "//") {
		return def
	}
	return loc
}
