package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Config struct {
	Endpoint string
	Region   string
	Access   string
	Secret   string
	Bucket   string
	UseSSL   bool
	// PublicBaseURL overrides the base used for object URLs handed back to
	// browsers, e.g. a CDN in front of the bucket.
	PublicBaseURL string
}

type Client struct {
	minio         *minio.Client
	bucket        string
	publicBaseURL string
	// virtualHosts are the hosts that address the bucket directly.
	virtualHosts []string
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Access) == "" || strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("storage credentials are not configured")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Access, cfg.Secret, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &Client{
		minio:         mc,
		bucket:        cfg.Bucket,
		publicBaseURL: strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/"),
		virtualHosts:  virtualHosts(cfg.Bucket, cfg.Region, mc.EndpointURL().Host),
	}, nil
}

func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.minio.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("check bucket existence: %w", err)
	}
	if exists {
		return nil
	}

	if err := c.minio.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
		exists, checkErr := c.minio.BucketExists(ctx, c.bucket)
		if checkErr == nil && exists {
			return nil
		}
		return fmt.Errorf("create bucket %s: %w", c.bucket, err)
	}

	return nil
}

// PostPolicy describes one presigned browser upload.
type PostPolicy struct {
	ObjectKey   string
	ContentType string
	MaxBytes    int64
	Expiry      time.Duration
}

type PresignedPost struct {
	URL     string            `json:"url"`
	Fields  map[string]string `json:"fields"`
	Key     string            `json:"key"`
	FileURL string            `json:"fileUrl"`
}

// PresignedPost issues a form-upload policy restricted to one key, one content
// type and a size range of [0, MaxBytes].
func (c *Client) PresignedPost(ctx context.Context, p PostPolicy) (PresignedPost, error) {
	policy := minio.NewPostPolicy()
	if err := policy.SetBucket(c.bucket); err != nil {
		return PresignedPost{}, fmt.Errorf("set policy bucket: %w", err)
	}
	if err := policy.SetKey(p.ObjectKey); err != nil {
		return PresignedPost{}, fmt.Errorf("set policy key: %w", err)
	}
	if err := policy.SetExpires(time.Now().UTC().Add(p.Expiry)); err != nil {
		return PresignedPost{}, fmt.Errorf("set policy expiry: %w", err)
	}
	if err := policy.SetContentType(p.ContentType); err != nil {
		return PresignedPost{}, fmt.Errorf("set policy content type: %w", err)
	}
	if err := policy.SetContentLengthRange(0, p.MaxBytes); err != nil {
		return PresignedPost{}, fmt.Errorf("set policy content length: %w", err)
	}

	u, fields, err := c.minio.PresignedPostPolicy(ctx, policy)
	if err != nil {
		return PresignedPost{}, fmt.Errorf("presign post policy: %w", err)
	}

	return PresignedPost{
		URL:     u.String(),
		Fields:  fields,
		Key:     p.ObjectKey,
		FileURL: c.objectURL(u, p.ObjectKey),
	}, nil
}

func (c *Client) objectURL(uploadURL *url.URL, objectKey string) string {
	if c.publicBaseURL != "" {
		return c.publicBaseURL + "/" + objectKey
	}
	return strings.TrimRight(uploadURL.String(), "/") + "/" + objectKey
}

// KeyFromURL returns the object key referenced by rawURL when the URL points
// into this client's bucket.
func (c *Client) KeyFromURL(rawURL string) (string, bool) {
	if c.publicBaseURL != "" && strings.HasPrefix(rawURL, c.publicBaseURL+"/") {
		return strings.TrimPrefix(rawURL, c.publicBaseURL+"/"), true
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", false
	}

	endpoint := c.minio.EndpointURL()
	objectPath := strings.TrimPrefix(path.Clean(u.Path), "/")
	switch {
	case u.Host == endpoint.Host && strings.HasPrefix(objectPath, c.bucket+"/"):
		return strings.TrimPrefix(objectPath, c.bucket+"/"), true
	case slices.Contains(c.virtualHosts, strings.ToLower(u.Host)):
		return objectPath, objectPath != "" && objectPath != "."
	default:
		return "", false
	}
}

func virtualHosts(bucket, region, endpointHost string) []string {
	endpointHost = strings.ToLower(endpointHost)
	hosts := []string{bucket + "." + endpointHost}
	if strings.HasSuffix(endpointHost, ".amazonaws.com") && region != "" {
		hosts = append(hosts, fmt.Sprintf("%s.s3.%s.amazonaws.com", bucket, region))
	}
	return hosts
}

func (c *Client) ObjectExists(ctx context.Context, objectKey string) (bool, error) {
	_, err := c.minio.StatObject(ctx, c.bucket, objectKey, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}

	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.Code == "NoSuchObject" {
		return false, nil
	}
	return false, fmt.Errorf("stat object %s: %w", objectKey, err)
}
