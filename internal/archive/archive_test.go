package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	mclient "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ewangclarkson/news-aggregator-app/internal/config"
	"github.com/ewangclarkson/news-aggregator-app/internal/models"
)

func TestObjectKey(t *testing.T) {
	at := time.Date(2024, 3, 7, 23, 30, 0, 5, time.FixedZone("UTC+2", 2*3600))

	got := ObjectKey(models.SourceNYT, at)
	require.Equal(t, fmt.Sprintf("raw/NEW_YORK_TIME_NEWS/2024/03/07/%d.json", at.UnixNano()), got)
}

func TestObjectKey_UsesUTCDate(t *testing.T) {
	at := time.Date(2024, 3, 8, 1, 0, 0, 0, time.FixedZone("UTC+3", 3*3600))
	require.Contains(t, ObjectKey(models.SourceGuardian, at), "raw/GUARDIAN_NEWS/2024/03/07/")
}

// Запуск: GO_TEST_INTEGRATION=1 go test ./internal/archive -v -count=1
func startMinio(t *testing.T) config.ArchiveConfig {
	t.Helper()
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		t.Skip("integration tests are disabled (set GO_TEST_INTEGRATION=1)")
	}

	ctx := context.Background()
	const (
		rootUser     = "root"
		rootPassword = "rootpass"
		bucket       = "news-raw"
	)
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image: "docker.io/minio/minio:latest",
			Env: map[string]string{
				"MINIO_ROOT_USER":     rootUser,
				"MINIO_ROOT_PASSWORD": rootPassword,
			},
			Cmd:          []string{"server", "/data"},
			ExposedPorts: []string{"9000/tcp"},
			WaitingFor:   wait.ForListeningPort("9000/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "9000/tcp")
	require.NoError(t, err)

	admin, err := mclient.New(host+":"+port.Port(), &mclient.Options{
		Creds: credentials.NewStaticV4(rootUser, rootPassword, ""),
	})
	require.NoError(t, err)
	require.NoError(t, admin.MakeBucket(ctx, bucket, mclient.MakeBucketOptions{Region: "us-east-1"}))

	return config.ArchiveConfig{
		Enabled:   true,
		Endpoint:  fmt.Sprintf("http://%s:%s", host, port.Port()),
		AccessKey: rootUser,
		SecretKey: rootPassword,
		Bucket:    bucket,
	}
}

func TestIntegration_Archive(t *testing.T) {
	cfg := startMinio(t)
	ctx := context.Background()

	st, err := New(ctx, cfg)
	require.NoError(t, err)
	fixed := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	st.now = func() time.Time { return fixed }

	body := []byte(`{"status":"ok","articles":[]}`)
	require.NoError(t, st.Archive(ctx, models.SourceNewsAPI, body))

	obj, err := st.client.GetObject(ctx, cfg.Bucket, ObjectKey(models.SourceNewsAPI, fixed), mclient.GetObjectOptions{})
	require.NoError(t, err)
	defer obj.Close()

	got, err := io.ReadAll(obj)
	require.NoError(t, err)
	require.Equal(t, body, got)
}

func TestIntegration_New_BucketMustExist(t *testing.T) {
	cfg := startMinio(t)
	cfg.Bucket = "missing"

	_, err := New(context.Background(), cfg)
	require.Error(t, err)
}
