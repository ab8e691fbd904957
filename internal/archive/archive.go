// archive сохраняет сырые ответы провайдеров в S3/MinIO для разбора инцидентов
// и повторной нормализации.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	mclient "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ewangclarkson/news-aggregator-app/internal/config"
	"github.com/ewangclarkson/news-aggregator-app/internal/models"
	"github.com/ewangclarkson/news-aggregator-app/internal/providers"
)

type Store struct {
	client *mclient.Client
	bucket string
	now    func() time.Time
}

// New подключается к MinIO и проверяет, что бакет существует.
// Схема в endpoint определяет Secure.
func New(ctx context.Context, cfg config.ArchiveConfig) (*Store, error) {
	const op = "archive.New"

	endpoint := cfg.Endpoint
	secure := strings.HasPrefix(endpoint, "https://")
	if u, err := url.Parse(endpoint); err == nil && u.Scheme != "" {
		endpoint = u.Host
		secure = u.Scheme == "https"
	}

	client, err := mclient.New(endpoint, &mclient.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		return nil, fmt.Errorf("%s: bucket %q does not exist", op, cfg.Bucket)
	}

	return &Store{client: client, bucket: cfg.Bucket, now: time.Now}, nil
}

// ObjectKey строит ключ вида raw/<source>/<yyyy>/<mm>/<dd>/<unixnano>.json.
func ObjectKey(source models.Source, at time.Time) string {
	at = at.UTC()
	return path.Join(
		"raw",
		string(source),
		at.Format("2006"),
		at.Format("01"),
		at.Format("02"),
		fmt.Sprintf("%d.json", at.UnixNano()),
	)
}

func (s *Store) Archive(ctx context.Context, source models.Source, body []byte) error {
	key := ObjectKey(source, s.now())
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(body), int64(len(body)), mclient.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("archive.Archive %s: %w", key, err)
	}
	return nil
}

var _ providers.Archiver = (*Store)(nil)
