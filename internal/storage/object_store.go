package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ayush-jadaun/livekitagent/internal/config"
)

// ObjectStore keeps the webhook dead-letter archive: payloads whose
// application failed internally are retained for manual reconciliation.
type ObjectStore struct {
	client *minio.Client
	cfg    config.StorageConfig
}

func NewObjectStore(cfg config.StorageConfig) (*ObjectStore, error) {
	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL

	if strings.HasPrefix(endpoint, "http") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse endpoint: %w", err)
		}
		endpoint = u.Host
		useSSL = u.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}

	return &ObjectStore{
		client: client,
		cfg:    cfg,
	}, nil
}

func (s *ObjectStore) EnsureBuckets(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.cfg.BucketWebhook)
	if err != nil {
		return fmt.Errorf("bucket exists %s: %w", s.cfg.BucketWebhook, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.cfg.BucketWebhook, minio.MakeBucketOptions{Region: s.cfg.Region}); err != nil {
			return fmt.Errorf("create bucket %s: %w", s.cfg.BucketWebhook, err)
		}
	}
	return nil
}

// ArchiveWebhook stores a raw webhook payload under the event name and
// timestamp so failed applications can be replayed by hand.
func (s *ObjectStore) ArchiveWebhook(ctx context.Context, event string, eventID string, payload []byte) error {
	if event == "" {
		event = "unknown"
	}
	key := fmt.Sprintf("%s/%s/%s.json", event, time.Now().UTC().Format("2006-01-02"), eventID)

	_, err := s.client.PutObject(ctx, s.cfg.BucketWebhook, key,
		bytes.NewReader(payload), int64(len(payload)),
		minio.PutObjectOptions{ContentType: "application/json"},
	)
	if err != nil {
		return fmt.Errorf("archive webhook %s: %w", key, err)
	}
	return nil
}
