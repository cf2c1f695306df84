package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/ghaggin/accountconsole/internal/config"
	"github.com/ghaggin/accountconsole/internal/repository"
	"github.com/ghaggin/accountconsole/internal/session"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// LoginPath is where the operator is sent after the backend rejects the
// session.
const LoginPath = "/login"

// Navigator forces the front-end to a different view.
type Navigator interface {
	Navigate(target string)
}

// Gateway is the only way the console talks to the backend.
type Gateway struct {
	log       *zap.Logger
	base      *url.URL
	client    *http.Client
	transport config.Transport
	strategy  Strategy
	session   *session.Store
	nav       Navigator
}

type Params struct {
	fx.In

	Log       *zap.Logger
	Config    *config.Config
	Creds     repository.CredentialStore
	Session   *session.Store
	Navigator Navigator
	// Client overrides the default http client, mostly for tests.
	Client *http.Client `optional:"true"`
}

func New(p Params) (*Gateway, error) {
	base, err := url.Parse(p.Config.Backend.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("backend base url: %w", err)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: p.Config.Backend.Timeout}
	}

	g := &Gateway{
		log:       p.Log,
		base:      base,
		client:    client,
		transport: p.Config.Backend.Transport,
		session:   p.Session,
		nav:       p.Navigator,
	}

	switch p.Config.Backend.Transport {
	case config.TransportBearer:
		g.strategy = &bearerStrategy{
			creds:  p.Creds,
			scheme: p.Config.Backend.AuthScheme,
		}
	case config.TransportCookie:
		if client.Jar == nil {
			jar, err := cookiejar.New(nil)
			if err != nil {
				return nil, err
			}
			client.Jar = jar
		}
		g.strategy = &csrfStrategy{
			client: client,
			base:   base,
			cookie: p.Config.Backend.CSRFCookie,
			header: p.Config.Backend.CSRFHeader,
			log:    p.Log,
		}
	default:
		return nil, fmt.Errorf("backend transport %q", p.Config.Backend.Transport)
	}

	p.Log.Info("request gateway ready",
		zap.String("base_url", base.String()),
		zap.String("transport", string(g.transport)),
	)
	return g, nil
}

// Transport reports the active authentication strategy.
func (g *Gateway) Transport() config.Transport {
	return g.transport
}

// Do sends body as JSON to path, relative to the backend base url, and
// decodes a successful response into out when out is non-nil, in which case
// an empty or null body is a TransportFailed error. Failures are always
// *Error. A 401 or 403 from any call clears the session and forces
// navigation to the login view before Do returns.
func (g *Gateway) Do(ctx context.Context, method, path string, body, out any) error {
	fail := func(kind Kind, status int, err error) error {
		return &Error{Kind: kind, Method: method, Path: path, Status: status, Err: err}
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fail(TransportFailed, 0, err)
		}
		reader = bytes.NewReader(b)
	}

	u := g.base.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fail(TransportFailed, 0, err)
	}

	rid := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("X-Request-ID", rid)

	if err := g.strategy.Prepare(ctx, req); err != nil {
		return fail(TransportFailed, 0, err)
	}

	log := g.log.With(
		zap.String("method", method),
		zap.String("path", path),
		zap.String("request_id", rid),
	)

	resp, err := g.client.Do(req)
	if err != nil {
		log.Debug("backend call failed", zap.Error(err))
		return fail(TransportFailed, 0, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fail(TransportFailed, resp.StatusCode, err)
	}

	log.Debug("backend call", zap.Int("status", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		gerr := &Error{
			Kind:   kindForStatus(resp.StatusCode),
			Method: method,
			Path:   path,
			Status: resp.StatusCode,
		}
		decodeErrorBody(respBody, gerr)

		if gerr.Kind == AuthRejected {
			g.reject(ctx, log, gerr)
		}
		return gerr
	}

	if out == nil {
		return nil
	}

	trimmed := bytes.TrimSpace(respBody)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return fail(TransportFailed, resp.StatusCode, errEmptyResponse)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fail(TransportFailed, resp.StatusCode, fmt.Errorf("malformed response: %w", err))
	}
	return nil
}

// reject is the global reaction to an authorization failure: whatever call
// produced it, the session ends and the operator is sent to login.
func (g *Gateway) reject(ctx context.Context, log *zap.Logger, gerr *Error) {
	log.Warn("backend rejected credentials, ending session",
		zap.Int("status", gerr.Status),
		zap.String("message", gerr.Summary()),
	)

	if err := g.session.Clear(context.WithoutCancel(ctx)); err != nil {
		log.Error("failed clearing session", zap.Error(err))
	}
	if g.nav != nil {
		g.nav.Navigate(LoginPath)
	}
}
