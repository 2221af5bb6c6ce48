package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"github.com/mpapenbr/docflow-session-go/log"
	"github.com/mpapenbr/docflow-session-go/pkg/storage"
	"github.com/mpapenbr/docflow-session-go/pkg/storage/factory"
)

var StorageTypeFile factory.StorageType = "file"

type (
	Option     func(*fileConfig)
	fileConfig struct {
		fs  afero.Fs
		dir string
	}

	// Storage persists all entries of a namespace as a single JSON document.
	// The document is re-read on every access so several processes sharing
	// the directory see each others writes.
	Storage struct {
		cfg  *storage.Config
		own  *fileConfig
		path string
		mu   sync.Mutex
		log  *log.Logger
	}
)

var _ storage.Storage = (*Storage)(nil)

func WithFs(fs afero.Fs) Option {
	return func(c *fileConfig) {
		c.fs = fs
	}
}

func WithDir(dir string) Option {
	return func(c *fileConfig) {
		c.dir = dir
	}
}

func New(common []storage.Option, specific []Option) (storage.Storage, error) {
	return NewStorage(common, specific...)
}

func NewStorage(common []storage.Option, specific ...Option) (*Storage, error) {
	own := &fileConfig{fs: afero.NewOsFs()}
	for _, o := range specific {
		o(own)
	}
	if own.dir == "" {
		dir, err := defaultDir()
		if err != nil {
			return nil, err
		}
		own.dir = dir
	}
	if err := own.fs.MkdirAll(own.dir, 0o700); err != nil {
		return nil, fmt.Errorf("create storage dir %s: %w", own.dir, err)
	}
	cfg := storage.NewConfig(common...)
	return &Storage{
		cfg:  cfg,
		own:  own,
		path: filepath.Join(own.dir, cfg.Namespace+".json"),
		log:  log.Default().Named("storage.file"),
	}, nil
}

func defaultDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "dfs"), nil
}

func (s *Storage) Path() string {
	return s.path
}

func (s *Storage) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.read()
	if err != nil {
		return "", err
	}
	if v, ok := entries[key]; ok {
		return v, nil
	}
	return "", storage.ErrNotFound
}

func (s *Storage) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.read()
	if err != nil {
		return err
	}
	entries[key] = value
	return s.write(entries)
}

func (s *Storage) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := entries[key]; !ok {
		return nil
	}
	delete(entries, key)
	return s.write(entries)
}

// a corrupt document is treated as empty, it will be replaced on next write
func (s *Storage) read() (map[string]string, error) {
	data, err := afero.ReadFile(s.own.fs, s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	ret := map[string]string{}
	if err := json.Unmarshal(data, &ret); err != nil {
		s.log.Warn("ignoring unreadable storage file",
			log.String("path", s.path),
			log.ErrorField(err))
		return map[string]string{}, nil
	}
	return ret, nil
}

func (s *Storage) write(entries map[string]string) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.own.fs, tmp, data, 0o600); err != nil {
		return err
	}
	return s.own.fs.Rename(tmp, s.path)
}

func init() {
	factory.Register(StorageTypeFile, New)
}
