package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/ghaggin/accountconsole/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	ErrNotFound = errors.New("not found")
)

// CredentialStore persists the console's single credential so it survives a
// restart. Delete of an absent credential is not an error.
type CredentialStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, credential string) error
	Delete(ctx context.Context) error
}

type Params struct {
	fx.In

	LC     fx.Lifecycle
	Config *config.Config
	Log    *zap.Logger
}

// New returns the store selected by config.Storage.Driver.
func New(p Params) (CredentialStore, error) {
	switch p.Config.Storage.Driver {
	case config.StorageFile:
		return NewJSON(p)
	case config.StorageRedis:
		return NewRedis(p)
	default:
		return nil, fmt.Errorf("storage driver %q", p.Config.Storage.Driver)
	}
}
