package object

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"
)

// MemoryStore is an in-process object store for tests and local runs.
type MemoryStore struct {
	mu            sync.RWMutex
	objects       map[string][]byte
	bucket        string
	publicBaseURL string
}

func NewMemoryStore(bucket, publicBaseURL string) *MemoryStore {
	return &MemoryStore{objects: map[string][]byte{}, bucket: bucket, publicBaseURL: publicBaseURL}
}

func (s *MemoryStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) (ObjectInfo, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("put object %s: %w", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = body
	return ObjectInfo{Key: key, Size: int64(len(body))}, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	body, ok := s.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return ErrObjectNotFound
	}
	delete(s.objects, key)
	return nil
}

func (s *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[key]
	return ok, nil
}

func (s *MemoryStore) PresignGet(_ context.Context, key string, ttl time.Duration) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.objects[key]; !ok {
		return "", ErrObjectNotFound
	}
	return fmt.Sprintf("%s?expires=%d", s.PublicURL(key), int(ttl.Seconds())), nil
}

func (s *MemoryStore) PublicURL(key string) string {
	return publicURL(s.publicBaseURL, s.bucket, key)
}

// Keys lists stored keys in sorted order.
func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
