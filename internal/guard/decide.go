package guard

import (
	"context"

	"github.com/ghaggin/accountconsole/internal/model"
)

// Views the guard redirects to.
const (
	LoginPath        = "/login"
	UnauthorizedPath = "/unauthorized"
)

type Kind int

const (
	// Pending means the session is still bootstrapping. Show a placeholder
	// and decide again once the session changes.
	Pending Kind = iota
	Allow
	Redirect
)

func (k Kind) String() string {
	switch k {
	case Pending:
		return "pending"
	case Allow:
		return "allow"
	case Redirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Decision is the outcome of one navigation attempt to a protected view.
type Decision struct {
	Kind Kind
	// Target is set for Redirect.
	Target string
	// From is the requested location, set when redirecting to login so the
	// operator can be returned there afterwards.
	From string
}

// Decide gates a navigation to location. An empty required set admits any
// authenticated role; a user without a role never satisfies a non-empty
// set.
func Decide(s model.Snapshot, required []model.Role, location string) Decision {
	switch {
	case s.IsLoading:
		return Decision{Kind: Pending}
	case !s.IsAuthenticated || s.User == nil:
		return Decision{Kind: Redirect, Target: LoginPath, From: location}
	case len(required) > 0 && !s.HasRole(required...):
		return Decision{Kind: Redirect, Target: UnauthorizedPath}
	default:
		return Decision{Kind: Allow}
	}
}

// Source is the session state the guard reads.
type Source interface {
	Snapshot() model.Snapshot
	Changed() <-chan struct{}
}

// Await re-evaluates the decision every time the session changes until it
// is no longer Pending or ctx is done, in which case the last Pending
// decision is returned along with ctx's error.
func Await(ctx context.Context, src Source, required []model.Role, location string) (Decision, error) {
	for {
		// take the channel before the snapshot so a transition between the
		// two is not missed
		changed := src.Changed()
		d := Decide(src.Snapshot(), required, location)
		if d.Kind != Pending {
			return d, nil
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return d, ctx.Err()
		}
	}
}
