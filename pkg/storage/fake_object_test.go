package storage

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"tcgsync/pkg/models"
)

// fakeObjects is an in-memory objectAPI with S3 style ETags
type fakeObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	etags   map[string]string
	failPut map[string]bool
	failGet map[string]bool
	down    bool
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{
		objects: make(map[string][]byte),
		etags:   make(map[string]string),
		failPut: make(map[string]bool),
		failGet: make(map[string]bool),
	}
}

var errFakeDown = errors.New("connection refused")

func (f *fakeObjects) Put(ctx context.Context, name string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down || f.failPut[name] {
		return errFakeDown
	}
	f.objects[name] = append([]byte(nil), data...)
	f.etags[name] = `"` + models.ContentHash(data) + `"`
	return nil
}

func (f *fakeObjects) ETag(ctx context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return "", errFakeDown
	}
	etag, ok := f.etags[name]
	if !ok {
		return "", ErrNotFound
	}
	return etag, nil
}

func (f *fakeObjects) Get(ctx context.Context, name string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down || f.failGet[name] {
		return nil, errFakeDown
	}
	data, ok := f.objects[name]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (f *fakeObjects) ListNames(ctx context.Context, prefix string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, errFakeDown
	}
	var names []string
	for name := range f.objects {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// setMultipart gives name a multipart style ETag
func (f *fakeObjects) setMultipart(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.etags[name] = `"0123456789abcdef0123456789abcdef-2"`
}
