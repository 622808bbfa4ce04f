package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStoreOptions configures the S3-compatible backend.
type ObjectStoreOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	// PublicURL is the prefix clients use to fetch objects. Defaults to
	// the endpoint path-style URL of the bucket.
	PublicURL string
}

// ObjectStore persists images in a MinIO/S3 bucket.
type ObjectStore struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// PublicPrefix is the key prefix that anonymous clients may read. Enhanced
// results live under it; originals stay private.
const PublicPrefix = "enhanced/"

// NewObjectStore connects to the endpoint, makes sure the bucket exists and
// grants anonymous read on PublicPrefix so result URLs are fetchable.
func NewObjectStore(ctx context.Context, opts ObjectStoreOptions) (*ObjectStore, error) {
	if opts.Endpoint == "" || opts.Bucket == "" {
		return nil, errors.New("storage: object store endpoint and bucket are required")
	}
	if opts.AccessKey == "" || opts.SecretKey == "" {
		return nil, errors.New("storage: object store credentials are required")
	}
	region := strings.TrimSpace(opts.Region)
	if region == "" {
		region = "us-east-1"
	}
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: create object store client: %w", err)
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("storage: check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			return nil, fmt.Errorf("storage: create bucket: %w", err)
		}
	}
	policy, err := publicReadPolicy(opts.Bucket)
	if err != nil {
		return nil, err
	}
	if err := client.SetBucketPolicy(ctx, opts.Bucket, policy); err != nil {
		return nil, fmt.Errorf("storage: set bucket policy: %w", err)
	}

	return &ObjectStore{
		client:    client,
		bucket:    opts.Bucket,
		publicURL: publicPrefix(opts),
	}, nil
}

func (s *ObjectStore) Backend() string { return "object" }

// Put uploads data and returns the public URL of the object.
func (s *ObjectStore) Put(ctx context.Context, data []byte, suggestedName, contentType string) (string, error) {
	key, err := sanitizeKey(suggestedName)
	if err != nil {
		return "", writeFailed(err)
	}
	if contentType == "" {
		contentType = MIMEForName(key)
	}
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", writeFailed(fmt.Errorf("storage: put object: %w", err))
	}
	return s.publicURL + "/" + key, nil
}

// Get downloads the object addressed by location.
func (s *ObjectStore) Get(ctx context.Context, location string) ([]byte, error) {
	key, ok := s.ObjectKey(location)
	if !ok {
		return nil, readFailed(fmt.Errorf("storage: location %q is outside bucket %s", location, s.bucket))
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, readFailed(fmt.Errorf("storage: get object: %w", err))
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, readFailed(fmt.Errorf("storage: read object: %w", err))
	}
	return data, nil
}

// Exists stats the object and reports whether it is present and non-empty.
func (s *ObjectStore) Exists(ctx context.Context, location string) (bool, error) {
	key, ok := s.ObjectKey(location)
	if !ok {
		return false, nil
	}
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, err
	}
	return info.Size > 0, nil
}

// ObjectKey extracts the bucket key from a public URL or bare key.
func (s *ObjectStore) ObjectKey(location string) (string, bool) {
	return objectKey(s.publicURL, s.bucket, location)
}

func objectKey(publicURL, bucket, location string) (string, bool) {
	location = strings.TrimSpace(location)
	if location == "" {
		return "", false
	}
	if strings.HasPrefix(location, publicURL+"/") {
		location = strings.TrimPrefix(location, publicURL+"/")
	} else if isRemote(location) {
		return "", false
	} else {
		location = strings.TrimPrefix(strings.TrimLeft(location, "/"), bucket+"/")
	}
	key, err := sanitizeKey(location)
	if err != nil {
		return "", false
	}
	return key, true
}

type policyStatement struct {
	Effect    string              `json:"Effect"`
	Principal map[string][]string `json:"Principal"`
	Action    []string            `json:"Action"`
	Resource  []string            `json:"Resource"`
}

type bucketPolicy struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

// publicReadPolicy allows anonymous GetObject on PublicPrefix only.
func publicReadPolicy(bucket string) (string, error) {
	doc := bucketPolicy{
		Version: "2012-10-17",
		Statement: []policyStatement{{
			Effect:    "Allow",
			Principal: map[string][]string{"AWS": {"*"}},
			Action:    []string{"s3:GetObject"},
			Resource:  []string{"arn:aws:s3:::" + bucket + "/" + PublicPrefix + "*"},
		}},
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("storage: encode bucket policy: %w", err)
	}
	return string(raw), nil
}

func publicPrefix(opts ObjectStoreOptions) string {
	if prefix := strings.TrimRight(strings.TrimSpace(opts.PublicURL), "/"); prefix != "" {
		return prefix
	}
	scheme := "http"
	if opts.UseSSL {
		scheme = "https"
	}
	u := url.URL{Scheme: scheme, Host: opts.Endpoint, Path: "/" + opts.Bucket}
	return u.String()
}

var _ Adapter = (*ObjectStore)(nil)
