package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrUnknownBucket = errors.New("unknown bucket")
	ErrInvalidPath   = errors.New("invalid object path")
	ErrObjectMissing = errors.New("object not found")
)

// ObjectStorage es la operación común entre backends de objetos.
type ObjectStorage interface {
	EnsureBuckets(ctx context.Context, buckets []string) error
	Put(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, bucket, key string) error
	PublicURL(bucket, key string) string
}

// Object describe un archivo subido.
type Object struct {
	Bucket string `json:"bucket"`
	Path   string `json:"path"`
	URL    string `json:"url"`
}

// Storage restringe el backend a los buckets conocidos y arma las claves.
type Storage struct {
	backend ObjectStorage
	buckets map[string]struct{}
	newID   func() string
}

func NewStorage(backend ObjectStorage, buckets []string) *Storage {
	allowed := make(map[string]struct{}, len(buckets))
	for _, b := range buckets {
		if b = strings.TrimSpace(b); b != "" {
			allowed[b] = struct{}{}
		}
	}
	return &Storage{backend: backend, buckets: allowed, newID: uuid.NewString}
}

// Buckets devuelve los buckets habilitados.
func (s *Storage) Buckets() []string {
	out := make([]string, 0, len(s.buckets))
	for b := range s.buckets {
		out = append(out, b)
	}
	return out
}

func (s *Storage) EnsureBuckets(ctx context.Context) error {
	return s.backend.EnsureBuckets(ctx, s.Buckets())
}

// Upload guarda el archivo bajo <owner>/<uuid><ext>.
func (s *Storage) Upload(ctx context.Context, bucket, ownerID, filename string, r io.Reader, size int64, contentType string) (Object, error) {
	if _, ok := s.buckets[bucket]; !ok {
		return Object{}, ErrUnknownBucket
	}
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" || strings.ContainsAny(ownerID, "/\\") {
		return Object{}, ErrInvalidPath
	}
	key := ownerID + "/" + s.newID() + strings.ToLower(path.Ext(filename))
	if err := s.backend.Put(ctx, bucket, key, r, size, contentType); err != nil {
		return Object{}, fmt.Errorf("put %s/%s: %w", bucket, key, err)
	}
	return Object{Bucket: bucket, Path: key, URL: s.backend.PublicURL(bucket, key)}, nil
}

// URL resuelve la URL pública de un objeto ya guardado.
func (s *Storage) URL(bucket, key string) (string, error) {
	if _, ok := s.buckets[bucket]; !ok {
		return "", ErrUnknownBucket
	}
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return s.backend.PublicURL(bucket, key), nil
}

// Delete borra un objeto que pertenezca a ownerID.
func (s *Storage) Delete(ctx context.Context, bucket, ownerID, key string) error {
	if _, ok := s.buckets[bucket]; !ok {
		return ErrUnknownBucket
	}
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(key, ownerID+"/") {
		return ErrInvalidPath
	}
	return s.backend.Delete(ctx, bucket, key)
}

func cleanKey(key string) (string, error) {
	key = strings.TrimPrefix(strings.TrimSpace(key), "/")
	if key == "" || strings.Contains(key, "\\") {
		return "", ErrInvalidPath
	}
	if cleaned := path.Clean(key); cleaned != key || strings.HasPrefix(cleaned, "..") {
		return "", ErrInvalidPath
	}
	return key, nil
}
