// Package memstore is an in-memory store.ObjectStore for tests.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/maraichr/docpipe/internal/store"
)

// ErrNoBucket is returned for operations on a bucket that was never created.
var ErrNoBucket = errors.New("memstore: no such bucket")

// Store is an in-memory implementation of store.ObjectStore.
type Store struct {
	mu      sync.RWMutex
	buckets map[string]map[string]object
	failOn  map[string]error
}

type object struct {
	data        []byte
	contentType string
}

var _ store.ObjectStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		buckets: make(map[string]map[string]object),
		failOn:  make(map[string]error),
	}
}

// WithBucket creates bucket and returns s, for test setup chains.
func (s *Store) WithBucket(bucket string) *Store {
	_ = s.CreateBucket(context.Background(), bucket)
	return s
}

// FailOn makes every read or write of key return err until cleared with a nil err.
func (s *Store) FailOn(key string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failOn, key)
		return
	}
	s.failOn[key] = err
}

// Keys returns every key in bucket, sorted.
func (s *Store) Keys(bucket string) []string {
	keys, _ := s.ListKeys(context.Background(), bucket, "")
	return keys
}

func (s *Store) BucketExists(_ context.Context, bucket string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.buckets[bucket]
	return ok, nil
}

func (s *Store) CreateBucket(_ context.Context, bucket string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.buckets[bucket]; !ok {
		s.buckets[bucket] = make(map[string]object)
	}
	return nil
}

func (s *Store) ObjectExists(_ context.Context, bucket, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	objs, err := s.bucket(bucket)
	if err != nil {
		return false, err
	}
	_, ok := objs[key]
	return ok, nil
}

func (s *Store) ListKeys(_ context.Context, bucket, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	objs, err := s.bucket(bucket)
	if err != nil {
		return nil, err
	}
	var keys []string
	for k := range objs {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) ReadBytes(_ context.Context, bucket, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failOn[key]; err != nil {
		return nil, err
	}
	objs, err := s.bucket(bucket)
	if err != nil {
		return nil, err
	}
	obj, ok := objs[key]
	if !ok {
		return nil, fmt.Errorf("read %s: %w", key, store.ErrNotFound)
	}
	return append([]byte(nil), obj.data...), nil
}

func (s *Store) WriteBytes(_ context.Context, bucket, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failOn[key]; err != nil {
		return err
	}
	objs, err := s.bucket(bucket)
	if err != nil {
		return err
	}
	objs[key] = object{data: append([]byte(nil), data...), contentType: contentType}
	return nil
}

func (s *Store) CopyObject(_ context.Context, bucket, srcKey, dstKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	objs, err := s.bucket(bucket)
	if err != nil {
		return err
	}
	obj, ok := objs[srcKey]
	if !ok {
		return fmt.Errorf("copy %s: %w", srcKey, store.ErrNotFound)
	}
	objs[dstKey] = obj
	return nil
}

func (s *Store) DeleteObject(_ context.Context, bucket, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	objs, err := s.bucket(bucket)
	if err != nil {
		return err
	}
	delete(objs, key)
	return nil
}

// ContentType returns the content type key was written with.
func (s *Store) ContentType(bucket, key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buckets[bucket][key].contentType
}

func (s *Store) bucket(name string) (map[string]object, error) {
	objs, ok := s.buckets[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrNoBucket)
	}
	return objs, nil
}
