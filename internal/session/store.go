package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ghaggin/accountconsole/internal/model"
	"github.com/ghaggin/accountconsole/internal/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	errNoUser       = errors.New("establish requires a user")
	errNoCredential = errors.New("establish requires a credential")
	errSuperseded   = errors.New("bootstrap superseded by a newer transition")
)

// ProfileFetcher loads the profile of whoever the persisted credential
// belongs to.
type ProfileFetcher interface {
	Profile(ctx context.Context) (*model.User, error)
}

// Store holds the console's authentication state. State only changes through
// Establish, Clear and Fail; everything else reads Snapshot.
type Store struct {
	log   *zap.Logger
	creds repository.CredentialStore

	// writeMu serializes transitions including their persistence; mu only
	// guards the in-memory state so readers never wait on storage.
	writeMu sync.Mutex
	mu      sync.RWMutex
	state   model.Snapshot
	changed chan struct{}

	once sync.Once
}

type Params struct {
	fx.In

	Log   *zap.Logger
	Creds repository.CredentialStore
}

func New(p Params) *Store {
	return &Store{
		log:     p.Log,
		creds:   p.Creds,
		state:   model.Snapshot{IsLoading: true},
		changed: make(chan struct{}),
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() model.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.state
	if snap.User != nil {
		u := *snap.User
		snap.User = &u
	}
	return snap
}

// Changed returns a channel closed by the next transition.
func (s *Store) Changed() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.changed
}

// Establish records an authenticated user and persists the credential.
// If persisting fails the session is left as it was and the failure is
// recorded as the last error.
func (s *Store) Establish(ctx context.Context, user *model.User, credential string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.establish(ctx, user, credential)
}

func (s *Store) establish(ctx context.Context, user *model.User, credential string) error {
	if user == nil {
		return errNoUser
	}
	if credential == "" {
		return errNoCredential
	}

	if err := s.creds.Save(ctx, credential); err != nil {
		err = fmt.Errorf("persisting credential: %w", err)
		s.fail(err)
		return err
	}

	u := *user
	s.commit(model.Snapshot{
		User:            &u,
		Credential:      credential,
		IsAuthenticated: true,
	})

	s.log.Info("session established",
		zap.Int("user_id", u.ID),
		zap.String("role", string(u.Role)),
	)
	return nil
}

// Clear resets the session to anonymous and removes the persisted
// credential. The in-memory reset happens even if the removal fails.
func (s *Store) Clear(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.clear(ctx)
}

func (s *Store) clear(ctx context.Context) error {
	err := s.creds.Delete(ctx)
	s.commit(model.Snapshot{})

	if err != nil {
		s.log.Warn("failed removing persisted credential", zap.Error(err))
		return fmt.Errorf("removing credential: %w", err)
	}
	s.log.Info("session cleared")
	return nil
}

// Fail records reason without touching the user or credential.
func (s *Store) Fail(reason error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.fail(reason)
}

func (s *Store) fail(reason error) {
	s.mu.RLock()
	next := s.state
	s.mu.RUnlock()

	next.Err = reason
	next.IsLoading = false
	s.commit(next)
}

// commit swaps in next, bumps the version and wakes waiters.
func (s *Store) commit(next model.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next.Version = s.state.Version + 1
	s.state = next
	close(s.changed)
	s.changed = make(chan struct{})
}

func (s *Store) version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Version
}

// Bootstrap resolves the initial loading state once per process. With no
// persisted credential it settles as anonymous without calling fetcher;
// otherwise it fetches the profile exactly once and establishes or clears.
// The returned error explains why the session ended up anonymous.
//
// The outcome is applied only if no other transition happened while the
// profile was in flight, so a slow bootstrap cannot undo a newer login.
func (s *Store) Bootstrap(ctx context.Context, fetcher ProfileFetcher) error {
	var err error
	s.once.Do(func() {
		err = s.bootstrap(ctx, fetcher)
	})
	return err
}

func (s *Store) bootstrap(ctx context.Context, fetcher ProfileFetcher) error {
	start := s.version()

	credential, err := s.creds.Load(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		s.settle(ctx, start, nil, "")
		return nil
	}
	if err != nil {
		err = fmt.Errorf("loading credential: %w", err)
		s.settle(ctx, start, nil, "")
		return err
	}

	user, err := fetcher.Profile(ctx)
	if err == nil && user == nil {
		err = errors.New("empty profile")
	}
	if err != nil {
		// a rejected credential may already have been cleared by the
		// gateway, in which case settle is a no-op
		s.settle(ctx, start, nil, "")
		return fmt.Errorf("fetching profile: %w", err)
	}

	if !s.settle(ctx, start, user, credential) {
		return errSuperseded
	}
	return nil
}

// settle applies the bootstrap outcome if the state is still at version
// start. A nil user clears the session.
func (s *Store) settle(ctx context.Context, start uint64, user *model.User, credential string) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.version() != start {
		s.log.Info("bootstrap outcome dropped, session changed meanwhile")
		return false
	}

	if user == nil {
		_ = s.clear(ctx)
		return true
	}

	if err := s.establish(ctx, user, credential); err != nil {
		s.log.Warn("bootstrap could not establish session", zap.Error(err))
		_ = s.clear(ctx)
	}
	return true
}
