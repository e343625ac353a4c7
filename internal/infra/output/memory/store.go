// Package memory keeps generated units in process memory. It backs dry runs
// and tests.
package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"eavcore/internal/output/sink"
)

type unit struct {
	info    sink.Info
	content []byte
}

// Store is a mutex-guarded map of units.
type Store struct {
	mu    sync.RWMutex
	units map[string]unit
	now   func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{units: make(map[string]unit), now: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) Driver() sink.Driver { return sink.DriverMemory }

func (s *Store) Write(ctx context.Context, key string, content []byte, opts sink.WriteOptions) (sink.Info, error) {
	if err := ctx.Err(); err != nil {
		return sink.Info{}, sink.NewWriteError(sink.DriverMemory, key, err)
	}
	if strings.TrimSpace(key) == "" {
		return sink.Info{}, sink.NewWriteError(sink.DriverMemory, key, errors.New("empty key"))
	}
	sum := sha256.Sum256(content)
	info := sink.Info{
		Key:          key,
		Size:         int64(len(content)),
		ContentType:  opts.ContentType,
		ETag:         hex.EncodeToString(sum[:]),
		LastModified: s.now(),
	}
	s.mu.Lock()
	s.units[key] = unit{info: info, content: append([]byte(nil), content...)}
	s.mu.Unlock()
	return info, nil
}

func (s *Store) Read(ctx context.Context, key string) (sink.Info, []byte, error) {
	if err := ctx.Err(); err != nil {
		return sink.Info{}, nil, err
	}
	s.mu.RLock()
	u, ok := s.units[key]
	s.mu.RUnlock()
	if !ok {
		return sink.Info{}, nil, errors.Wrapf(sink.ErrNotFound, "key %s", key)
	}
	return u.info, append([]byte(nil), u.content...), nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]sink.Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]sink.Info, 0, len(s.units))
	for k, u := range s.units {
		if prefix == "" || strings.HasPrefix(k, prefix) {
			out = append(out, u.info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
