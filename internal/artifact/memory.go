package artifact

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// Memory keeps artifacts in process memory. Intended for tests.
type Memory struct {
	mu   sync.RWMutex
	objs map[string][]byte
	puts int
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory { return &Memory{objs: make(map[string][]byte)} }

func (s *Memory) Driver() Driver { return DriverMemory }

func (s *Memory) Put(_ context.Context, key string, r io.Reader, opts PutOptions) (Info, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return Info{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, replaced := s.objs[key]
	if replaced && !opts.Overwrite {
		return Info{}, fmt.Errorf("%s: %w", key, ErrExists)
	}
	s.objs[key] = b
	s.puts++
	return Info{
		Key:          key,
		Size:         int64(len(b)),
		ContentType:  opts.ContentType,
		Location:     "memory://" + key,
		Replaced:     replaced,
		LastModified: time.Now().UTC(),
	}, nil
}

func (s *Memory) Get(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.RLock()
	b, ok := s.objs[key]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(append([]byte(nil), b...))), nil
}

// Bytes returns a copy of the stored artifact, or nil.
func (s *Memory) Bytes(key string) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.objs[key]
	if !ok {
		return nil
	}
	return append([]byte(nil), b...)
}

// Puts reports how many successful Put calls the store has seen.
func (s *Memory) Puts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.puts
}
