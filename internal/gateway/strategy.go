package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/ghaggin/accountconsole/internal/repository"
	"go.uber.org/zap"
)

// CSRFPath is the backend endpoint that sets the anti-forgery cookie.
const CSRFPath = "auth/csrf/"

// Strategy attaches proof of identity to an outbound request. Exactly one
// strategy is active per process.
type Strategy interface {
	Prepare(ctx context.Context, req *http.Request) error
}

// bearerStrategy reads the persisted credential on every request.
type bearerStrategy struct {
	creds  repository.CredentialStore
	scheme string
}

func (b *bearerStrategy) Prepare(ctx context.Context, req *http.Request) error {
	credential, err := b.creds.Load(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading credential: %w", err)
	}

	req.Header.Set("Authorization", b.scheme+" "+credential)
	return nil
}

// csrfStrategy relies on the client's cookie jar for the session and
// fetches a fresh anti-forgery token before every mutating request.
type csrfStrategy struct {
	client *http.Client
	base   *url.URL
	cookie string
	header string
	log    *zap.Logger
}

func (c *csrfStrategy) Prepare(ctx context.Context, req *http.Request) error {
	if safeMethod(req.Method) {
		return nil
	}

	token, err := c.fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetching csrf token: %w", err)
	}

	req.Header.Set(c.header, token)
	return nil
}

func (c *csrfStrategy) fetch(ctx context.Context) (string, error) {
	u := c.base.ResolveReference(&url.URL{Path: CSRFPath})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("csrf endpoint returned %d", resp.StatusCode)
	}

	for _, ck := range resp.Cookies() {
		if ck.Name == c.cookie && ck.Value != "" {
			return ck.Value, nil
		}
	}

	// the cookie may have been set earlier and not repeated
	if c.client.Jar != nil {
		for _, ck := range c.client.Jar.Cookies(u) {
			if ck.Name == c.cookie && ck.Value != "" {
				return ck.Value, nil
			}
		}
	}

	c.log.Debug("csrf endpoint set no token cookie", zap.String("cookie", c.cookie))
	return "", fmt.Errorf("no %s cookie", c.cookie)
}

func safeMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}
