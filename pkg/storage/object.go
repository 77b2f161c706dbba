package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"tcgsync/pkg/config"
	errs "tcgsync/pkg/errors"
	"tcgsync/pkg/logger"
	"tcgsync/pkg/models"
)

const defaultS3Endpoint = "s3.amazonaws.com"

// objectAPI is the slice of an S3 client the backend needs. Implementations
// return ErrNotFound for missing objects.
type objectAPI interface {
	Put(ctx context.Context, name string, data []byte) error
	ETag(ctx context.Context, name string) (string, error)
	Get(ctx context.Context, name string) ([]byte, error)
	ListNames(ctx context.Context, prefix string) ([]string, error)
}

// ObjectBackend stores documents in an S3 compatible bucket
type ObjectBackend struct {
	api    objectAPI
	bucket string
	prefix string
	log    logger.Logger
}

// NewObjectBackend connects to the bucket described by cfg and checks that it
// exists. Credentials fall back to the standard AWS environment variables.
func NewObjectBackend(ctx context.Context, cfg config.StorageConfig) (*ObjectBackend, error) {
	if cfg.Bucket == "" {
		return nil, errs.New(errs.ErrorTypeValidation, "storage bucket is required")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultS3Endpoint
	}

	creds := credentials.NewEnvAWS()
	if cfg.AccessKey != "" {
		creds = credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  creds,
		Secure: cfg.UseSSL || cfg.Endpoint == "",
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errs.NewStorageError("connect", endpoint, err)
	}

	ok, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, errs.NewStorageError("bucket exists", cfg.Bucket, err)
	}
	if !ok {
		return nil, errs.NewStorageError("bucket exists", cfg.Bucket, fmt.Errorf("bucket %s does not exist", cfg.Bucket))
	}

	return newObjectBackend(&minioAPI{client: client, bucket: cfg.Bucket}, cfg.Bucket, cfg.Prefix), nil
}

func newObjectBackend(api objectAPI, bucket, prefix string) *ObjectBackend {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &ObjectBackend{api: api, bucket: bucket, prefix: prefix}
}

// SetLogger sets the logger bulk copies from this backend report to
func (o *ObjectBackend) SetLogger(log logger.Logger) { o.log = log }

func (o *ObjectBackend) String() string {
	return "s3://" + path.Join(o.bucket, o.prefix)
}

func (o *ObjectBackend) name(key string) string { return o.prefix + key }

func (o *ObjectBackend) Exists(ctx context.Context, key string) (bool, error) {
	_, err := o.api.ETag(ctx, o.name(key))
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errs.NewStorageError("stat", key, err)
	}
	return true, nil
}

// HashOf returns the object's ETag, which is the content MD5 for objects
// written with a single PUT. Multipart ETags are recomputed from the content.
func (o *ObjectBackend) HashOf(ctx context.Context, key string) (string, error) {
	etag, err := o.api.ETag(ctx, o.name(key))
	if errors.Is(err, ErrNotFound) {
		return "", notFound(key)
	}
	if err != nil {
		return "", errs.NewStorageError("stat", key, err)
	}
	etag = strings.Trim(etag, `"`)
	if strings.Contains(etag, "-") {
		data, err := o.Read(ctx, key)
		if err != nil {
			return "", err
		}
		return models.ContentHash(data), nil
	}
	return strings.ToLower(etag), nil
}

func (o *ObjectBackend) Read(ctx context.Context, key string) ([]byte, error) {
	data, err := o.api.Get(ctx, o.name(key))
	if errors.Is(err, ErrNotFound) {
		return nil, notFound(key)
	}
	if err != nil {
		return nil, errs.NewStorageError("get", key, err)
	}
	return data, nil
}

// Write uploads data in a single PutObject call
func (o *ObjectBackend) Write(ctx context.Context, key string, data []byte) error {
	if err := o.api.Put(ctx, o.name(key), data); err != nil {
		return errs.NewStorageError("put", key, err)
	}
	return nil
}

// List returns the keys of all *.json objects under the prefix
func (o *ObjectBackend) List(ctx context.Context) ([]string, error) {
	names, err := o.api.ListNames(ctx, o.prefix)
	if err != nil {
		return nil, errs.NewStorageError("list", o.String(), err)
	}

	keys := make([]string, 0, len(names))
	for _, n := range names {
		key := strings.TrimPrefix(n, o.prefix)
		if key == "" || strings.Contains(key, "/") || path.Ext(key) != ".json" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (o *ObjectBackend) CopyToLocal(ctx context.Context, basePath string) (*CopyReport, error) {
	dst, err := NewLocalBackend(basePath)
	if err != nil {
		return nil, err
	}
	dst.SetLogger(o.log)
	return Copy(ctx, o, dst, o.log)
}

// minioAPI adapts *minio.Client to objectAPI for one bucket
type minioAPI struct {
	client *minio.Client
	bucket string
}

func isNoSuchKey(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}

func (m *minioAPI) Put(ctx context.Context, name string, data []byte) error {
	_, err := m.client.PutObject(ctx, m.bucket, name, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	return err
}

func (m *minioAPI) ETag(ctx context.Context, name string) (string, error) {
	info, err := m.client.StatObject(ctx, m.bucket, name, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return "", ErrNotFound
		}
		return "", err
	}
	return info.ETag, nil
}

func (m *minioAPI) Get(ctx context.Context, name string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (m *minioAPI) ListNames(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	for obj := range m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		names = append(names, obj.Key)
	}
	return names, nil
}
