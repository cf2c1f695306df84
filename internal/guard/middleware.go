package guard

import (
	"context"
	"net/http"
	"time"

	"github.com/ghaggin/accountconsole/internal/model"
	"go.uber.org/zap"
)

// LocationRecorder remembers where the operator was headed before being
// sent to login.
type LocationRecorder interface {
	RememberLocation(r *http.Request, location string)
}

type Guard struct {
	log      *zap.Logger
	src      Source
	nav      *Navigation
	recorder LocationRecorder
	pending  http.Handler
	wait     time.Duration
}

type Options struct {
	Log        *zap.Logger
	Source     Source
	Navigation *Navigation
	Recorder   LocationRecorder
	// Pending renders the placeholder shown while the session bootstraps.
	Pending http.Handler
	// Wait holds a pending request up to this long for bootstrap to settle.
	// Zero shows the placeholder at once.
	Wait time.Duration
}

func New(o Options) *Guard {
	g := &Guard{
		log:      o.Log,
		src:      o.Source,
		nav:      o.Navigation,
		recorder: o.Recorder,
		pending:  o.Pending,
		wait:     o.Wait,
	}
	if g.pending == nil {
		g.pending = http.HandlerFunc(defaultPending)
	}
	return g
}

// Require admits a request only when Decide allows it for roles. A forced
// navigation left by the request gateway takes precedence.
func (g *Guard) Require(roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			location := r.URL.RequestURI()

			var d Decision
			if target, ok := g.nav.Take(); ok {
				d = Decision{Kind: Redirect, Target: target}
				if target == LoginPath {
					d.From = location
				}
			} else {
				d = Decide(g.src.Snapshot(), roles, location)
			}

			if d.Kind == Pending && g.wait > 0 {
				ctx, cancel := context.WithTimeout(r.Context(), g.wait)
				d, _ = Await(ctx, g.src, roles, location)
				cancel()
			}

			switch d.Kind {
			case Pending:
				g.pending.ServeHTTP(w, r)
			case Redirect:
				g.log.Debug("guard redirect",
					zap.String("location", location),
					zap.String("target", d.Target),
				)
				if d.From != "" && g.recorder != nil {
					g.recorder.RememberLocation(r, d.From)
				}
				http.Redirect(w, r, d.Target, http.StatusSeeOther)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

func defaultPending(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Refresh", "1")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("loading session..."))
}
