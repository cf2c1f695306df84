package repository

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

var (
	errTableFileIsDir = errors.New("table file is dir")
)

type jsonRepo struct {
	path string
	key  string
	log  *zap.Logger

	mu   sync.Mutex
	data map[string]string
}

func NewJSON(p Params) (CredentialStore, error) {
	r := &jsonRepo{
		path: p.Config.Storage.Path,
		key:  p.Config.Storage.Key,
		log:  p.Log,
		data: map[string]string{},
	}

	err := r.readfile()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		if errors.Is(err, errTableFileIsDir) {
			return nil, err
		}
		// only log, the store starts empty and the next write replaces
		// the unreadable file
		r.log.Warn("failed reading credential file", zap.String("path", r.path), zap.Error(err))
	}

	return r, nil
}

func (r *jsonRepo) readfile() error {
	finfo, err := os.Stat(r.path)
	if err != nil {
		return err
	}

	if finfo.IsDir() {
		return errTableFileIsDir
	}

	f, err := os.Open(r.path)
	if err != nil {
		return err
	}
	defer f.Close()

	return json.NewDecoder(f).Decode(&r.data)
}

// writefile replaces the file atomically with data so a crash never leaves
// a half-written credential behind.
func (r *jsonRepo) writefile(data map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o700); err != nil {
		return err
	}

	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}

	return os.Rename(tmp, r.path)
}

// next returns a copy of the current data for a write. The copy replaces
// r.data only once it is on disk.
func (r *jsonRepo) next() map[string]string {
	data := make(map[string]string, len(r.data)+1)
	for k, v := range r.data {
		data[k] = v
	}
	return data
}

func (r *jsonRepo) Load(_ context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.data[r.key]
	if !ok || v == "" {
		return "", ErrNotFound
	}
	return v, nil
}

func (r *jsonRepo) Save(_ context.Context, credential string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := r.next()
	data[r.key] = credential
	if err := r.writefile(data); err != nil {
		return err
	}
	r.data = data
	return nil
}

func (r *jsonRepo) Delete(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.data[r.key]; !ok {
		return nil
	}

	data := r.next()
	delete(data, r.key)
	if err := r.writefile(data); err != nil {
		return err
	}
	r.data = data
	return nil
}
