//go:build integration

package upload

import (
	"context"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// localstackEndpoint starts a Localstack container, or reuses the one named by
// LOCALSTACK_ENDPOINT.
func localstackEndpoint(t *testing.T) string {
	t.Helper()
	if endpoint := os.Getenv("LOCALSTACK_ENDPOINT"); endpoint != "" {
		return endpoint
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "localstack/localstack:3.0",
			ExposedPorts: []string{"4566/tcp"},
			Env: map[string]string{
				"SERVICES":              "s3",
				"DEFAULT_REGION":        "us-east-1",
				"EAGER_SERVICE_LOADING": "1",
			},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("4566/tcp"),
				wait.ForHTTP("/_localstack/health").
					WithPort("4566/tcp").
					WithStartupTimeout(60*time.Second),
			),
		},
		Started: true,
	})
	require.NoError(t, err, "start localstack")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "4566")
	require.NoError(t, err)
	return fmt.Sprintf("http://%s:%s", host, port.Port())
}

func TestUploadLocalstack(t *testing.T) {
	ctx := context.Background()
	endpoint := localstackEndpoint(t)

	u := newUploader(t, endpoint, "dagpilot-sessions")
	_, err := u.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String("dagpilot-sessions")})
	require.NoError(t, err)
	require.NoError(t, u.Healthcheck(ctx))

	video, tel := writeArtifact(t, "run_001")
	up, err := u.Upload(ctx, "run_001", video, tel)
	require.NoError(t, err)

	obj, err := u.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(up.Bucket),
		Key:    aws.String(up.TelemetryKey),
	})
	require.NoError(t, err)
	defer obj.Body.Close()

	body, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	assert.Equal(t, "{\"gear\":1}\n", string(body))
	assert.Equal(t, contentTypeTelemetry, aws.ToString(obj.ContentType))
}
