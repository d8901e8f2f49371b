package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore keeps objects in a map. Fail, when set, is consulted before
// every operation and can inject errors.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	baseURL string

	Fail func(op, bucket, key string) error
}

func NewMemoryStore(baseURL string) *MemoryStore {
	if baseURL == "" {
		baseURL = "memory://local"
	}
	return &MemoryStore{objects: make(map[string][]byte), baseURL: baseURL}
}

func (s *MemoryStore) fail(op, bucket, key string) error {
	if s.Fail == nil {
		return nil
	}
	return s.Fail(op, bucket, key)
}

func (s *MemoryStore) Upload(ctx context.Context, bucket, prefix, filename string, data []byte) (string, error) {
	key := Key(prefix, filename)
	if err := s.fail("upload", bucket, key); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	s.objects[bucket+"/"+key] = append([]byte(nil), data...)
	s.mu.Unlock()
	return s.URL(bucket, prefix, filename), nil
}

func (s *MemoryStore) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	if err := s.fail("list", bucket, prefix); err != nil {
		return nil, err
	}
	want := bucket + "/" + strings.Trim(prefix, "/") + "/"
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k := range s.objects {
		if strings.HasPrefix(k, want) {
			keys = append(keys, strings.TrimPrefix(k, bucket+"/"))
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *MemoryStore) Delete(ctx context.Context, bucket, prefix, filename string) error {
	key := Key(prefix, filename)
	if err := s.fail("delete", bucket, key); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.objects, bucket+"/"+key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) URL(bucket, prefix, filename string) string {
	return publicURL(s.baseURL, bucket, prefix, filename)
}

// Get returns the stored bytes for bucket/key.
func (s *MemoryStore) Get(bucket, key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[bucket+"/"+key]
	return b, ok
}

// Len is the total number of stored objects.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
