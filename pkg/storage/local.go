package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	errs "tcgsync/pkg/errors"
	"tcgsync/pkg/logger"
)

// LocalBackend stores documents as files in a single directory
type LocalBackend struct {
	root string
	log  logger.Logger
}

// NewLocalBackend creates root if needed
func NewLocalBackend(root string) (*LocalBackend, error) {
	if root == "" {
		return nil, errs.New(errs.ErrorTypeValidation, "local storage path is required")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, errs.NewStorageError("mkdir", root, err)
	}
	return &LocalBackend{root: root}, nil
}

func (l *LocalBackend) Root() string { return l.root }

// SetLogger sets the logger bulk copies from this backend report to
func (l *LocalBackend) SetLogger(log logger.Logger) { l.log = log }

func (l *LocalBackend) String() string { return "local:" + l.root }

func (l *LocalBackend) path(key string) (string, error) {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return "", errs.New(errs.ErrorTypeValidation, fmt.Sprintf("invalid storage key %q", key))
	}
	return filepath.Join(l.root, key), nil
}

func (l *LocalBackend) Exists(ctx context.Context, key string) (bool, error) {
	p, err := l.path(key)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(p)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errs.NewStorageError("stat", key, err)
	}
	return info.Mode().IsRegular(), nil
}

func (l *LocalBackend) HashOf(ctx context.Context, key string) (string, error) {
	p, err := l.path(key)
	if err != nil {
		return "", err
	}
	f, err := os.Open(p)
	if os.IsNotExist(err) {
		return "", notFound(key)
	}
	if err != nil {
		return "", errs.NewStorageError("open", key, err)
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", errs.NewStorageError("read", key, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (l *LocalBackend) Read(ctx context.Context, key string) ([]byte, error) {
	p, err := l.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return nil, notFound(key)
	}
	if err != nil {
		return nil, errs.NewStorageError("read", key, err)
	}
	return data, nil
}

// Write goes through a temp file in the same directory, so readers see
// either the previous content or the new one.
func (l *LocalBackend) Write(ctx context.Context, key string, data []byte) error {
	p, err := l.path(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(l.root, "."+key+".*.tmp")
	if err != nil {
		return errs.NewStorageError("create temp", key, err)
	}
	tmpName := tmp.Name()

	fail := func(op string, err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return errs.NewStorageError(op, key, err)
	}

	if _, err := tmp.Write(data); err != nil {
		return fail("write", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("sync", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errs.NewStorageError("close", key, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return errs.NewStorageError("chmod", key, err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		os.Remove(tmpName)
		return errs.NewStorageError("rename", key, err)
	}
	return nil
}

// List returns the *.json files of the directory; temp files are hidden
func (l *LocalBackend) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		return nil, errs.NewStorageError("list", l.root, err)
	}

	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ".json" {
			continue
		}
		keys = append(keys, name)
	}
	sort.Strings(keys)
	return keys, nil
}

func (l *LocalBackend) CopyToLocal(ctx context.Context, basePath string) (*CopyReport, error) {
	dst, err := NewLocalBackend(basePath)
	if err != nil {
		return nil, err
	}
	dst.SetLogger(l.log)
	return Copy(ctx, l, dst, l.log)
}
