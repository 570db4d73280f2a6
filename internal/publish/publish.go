package publish

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"framecut/internal/filesystem"
	"framecut/internal/logging"
	"framecut/internal/mediatypes"
	"framecut/internal/metrics"

	"github.com/tencentyun/cos-go-sdk-v5"
)

// Default upload attempts per object.
const defaultAttempts = 3

// ErrNoBucket is returned by New when no bucket URL is configured.
var ErrNoBucket = errors.New("no bucket URL configured")

// Config describes the destination bucket.
type Config struct {
	BucketURL string
	SecretID  string
	SecretKey string
	// Prefix is prepended to every object key.
	Prefix   string
	Attempts int
	Timeout  time.Duration
}

// COSPublisher uploads committed outputs to a Tencent COS bucket.
type COSPublisher struct {
	client   *cos.Client
	prefix   string
	attempts int
}

// New creates a publisher for cfg.BucketURL.
func New(cfg Config) (*COSPublisher, error) {
	if cfg.BucketURL == "" {
		return nil, ErrNoBucket
	}
	u, err := url.Parse(cfg.BucketURL)
	if err != nil {
		return nil, fmt.Errorf("invalid bucket URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid bucket URL %q", cfg.BucketURL)
	}

	attempts := cfg.Attempts
	if attempts <= 0 {
		attempts = defaultAttempts
	}

	client := cos.NewClient(&cos.BaseURL{BucketURL: u}, &http.Client{
		Timeout: cfg.Timeout,
		Transport: &cos.AuthorizationTransport{
			SecretID:  cfg.SecretID,
			SecretKey: cfg.SecretKey,
		},
	})

	return &COSPublisher{
		client:   client,
		prefix:   strings.Trim(cfg.Prefix, "/"),
		attempts: attempts,
	}, nil
}

// Key returns the object key a local file is uploaded under.
func (p *COSPublisher) Key(localPath string) string {
	name := filepath.Base(localPath)
	if p.prefix == "" {
		return name
	}
	return path.Join(p.prefix, name)
}

// Publish uploads localPath, retrying failed attempts. The file is reopened
// for every attempt.
func (p *COSPublisher) Publish(ctx context.Context, localPath string) error {
	key := p.Key(localPath)

	var err error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
			break
		}
		var n int64
		n, err = p.put(ctx, localPath, key)
		if err == nil {
			metrics.PublishUploadsTotal.WithLabelValues("success").Inc()
			metrics.PublishUploadBytes.Add(float64(n))
			logging.Debug("uploaded %s to %s (%d bytes)", filepath.Base(localPath), key, n)
			return nil
		}
		logging.Debug("upload of %s failed (attempt %d/%d): %v", key, attempt, p.attempts, err)
	}

	metrics.PublishUploadsTotal.WithLabelValues("error").Inc()
	return fmt.Errorf("failed to upload %s: %w", key, err)
}

func (p *COSPublisher) put(ctx context.Context, localPath, key string) (int64, error) {
	f, err := filesystem.OpenWithRetry(localPath, filesystem.DefaultRetryConfig())
	if err != nil {
		return 0, err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			logging.Warn("failed to close %s: %v", localPath, closeErr)
		}
	}()

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}

	opt := &cos.ObjectPutOptions{
		ObjectPutHeaderOptions: &cos.ObjectPutHeaderOptions{
			ContentType: mediatypes.GetMimeType(filepath.Ext(localPath)),
		},
	}
	if _, err := p.client.Object.Put(ctx, key, f, opt); err != nil {
		return 0, err
	}
	return info.Size(), nil
}
