// Package store defines the object store gateway shared by every pipeline stage
// and the bucket layout the stages agree on.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned when reading a key that does not exist.
var ErrNotFound = errors.New("object not found")

// ObjectStore is the bucket/key CRUD surface the pipeline needs. ListKeys pages
// through the backend transparently.
type ObjectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	CreateBucket(ctx context.Context, bucket string) error
	ObjectExists(ctx context.Context, bucket, key string) (bool, error)
	ListKeys(ctx context.Context, bucket, prefix string) ([]string, error)
	ReadBytes(ctx context.Context, bucket, key string) ([]byte, error)
	WriteBytes(ctx context.Context, bucket, key string, data []byte, contentType string) error
	CopyObject(ctx context.Context, bucket, srcKey, dstKey string) error
	DeleteObject(ctx context.Context, bucket, key string) error
}

const contentTypeJSON = "application/json"

// Bucket binds an ObjectStore to one bucket.
type Bucket struct {
	store ObjectStore
	name  string
}

func NewBucket(s ObjectStore, name string) *Bucket {
	return &Bucket{store: s, name: name}
}

func (b *Bucket) Name() string { return b.name }

// URI returns the s3:// address of key.
func (b *Bucket) URI(key string) string {
	return "s3://" + b.name + "/" + key
}

// Ready fails when the bucket is unreachable or missing.
func (b *Bucket) Ready(ctx context.Context) error {
	ok, err := b.store.BucketExists(ctx, b.name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("bucket %s does not exist", b.name)
	}
	return nil
}

func (b *Bucket) Exists(ctx context.Context, key string) (bool, error) {
	return b.store.ObjectExists(ctx, b.name, key)
}

func (b *Bucket) List(ctx context.Context, prefix string) ([]string, error) {
	return b.store.ListKeys(ctx, b.name, prefix)
}

func (b *Bucket) Read(ctx context.Context, key string) ([]byte, error) {
	return b.store.ReadBytes(ctx, b.name, key)
}

func (b *Bucket) Write(ctx context.Context, key string, data []byte, contentType string) error {
	return b.store.WriteBytes(ctx, b.name, key, data, contentType)
}

func (b *Bucket) Copy(ctx context.Context, srcKey, dstKey string) error {
	return b.store.CopyObject(ctx, b.name, srcKey, dstKey)
}

func (b *Bucket) Delete(ctx context.Context, key string) error {
	return b.store.DeleteObject(ctx, b.name, key)
}

// ReadJSON decodes the object at key into v.
func (b *Bucket) ReadJSON(ctx context.Context, key string, v any) error {
	data, err := b.Read(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// WriteJSON stores v as indented JSON at key.
func (b *Bucket) WriteJSON(ctx context.Context, key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return b.Write(ctx, key, data, contentTypeJSON)
}
