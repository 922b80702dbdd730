// Package upload copies finished session artifacts to an S3 bucket.
package upload

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/dagpilot/internal/logger"
	"github.com/marmos91/dagpilot/internal/telemetry"
	"github.com/marmos91/dagpilot/pkg/catalog"
)

const (
	contentTypeVideo     = "video/x-msvideo"
	contentTypeTelemetry = "application/x-ndjson"
)

// Config holds configuration for the artifact uploader.
type Config struct {
	// Bucket is the destination S3 bucket.
	Bucket string

	// Prefix is prepended to every key (e.g., "sessions/").
	Prefix string

	// Region is the AWS region (optional, uses SDK default if empty).
	Region string

	// Endpoint is the S3 endpoint URL (optional, for MinIO or Localstack).
	Endpoint string

	// ForcePathStyle forces path-style addressing.
	ForcePathStyle bool

	// AccessKeyID and SecretAccessKey select static credentials when both are set.
	AccessKeyID     string
	SecretAccessKey string

	// Timeout bounds one artifact upload. Zero means no limit.
	Timeout time.Duration

	// Now is the clock used to stamp uploads. Defaults to time.Now.
	Now func() time.Time
}

// Uploader puts session artifacts into S3.
type Uploader struct {
	client *s3.Client
	cfg    Config
}

// New creates an uploader around an existing client.
func New(client *s3.Client, cfg Config) *Uploader {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Uploader{client: client, cfg: cfg}
}

// NewFromConfig builds the S3 client from cfg and returns an uploader.
func NewFromConfig(ctx context.Context, cfg Config) (*Uploader, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("upload requires a bucket")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return New(s3.NewFromConfig(awsCfg, s3Opts...), cfg), nil
}

// Key returns the object key for a file belonging to the named session.
func (u *Uploader) Key(session, file string) string {
	return u.cfg.Prefix + path.Join(session, filepath.Base(file))
}

// Upload copies the video and telemetry files of a session and returns where
// they landed.
func (u *Uploader) Upload(ctx context.Context, name, videoPath, telemetryPath string) (*catalog.Upload, error) {
	if u.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.cfg.Timeout)
		defer cancel()
	}

	videoKey := u.Key(name, videoPath)
	if err := u.put(ctx, videoKey, videoPath, contentTypeVideo); err != nil {
		return nil, err
	}

	telemetryKey := u.Key(name, telemetryPath)
	if err := u.put(ctx, telemetryKey, telemetryPath, contentTypeTelemetry); err != nil {
		return nil, err
	}

	logger.InfoCtx(ctx, "Session uploaded",
		logger.KeyBucket, u.cfg.Bucket,
		logger.KeyName, name)

	return &catalog.Upload{
		Bucket:       u.cfg.Bucket,
		VideoKey:     videoKey,
		TelemetryKey: telemetryKey,
		UploadedAt:   u.cfg.Now(),
	}, nil
}

func (u *Uploader) put(ctx context.Context, key, file, contentType string) error {
	ctx, span := telemetry.StartUploadSpan(ctx, u.cfg.Bucket, key)
	defer span.End()

	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("open %s: %w", file, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", file, err)
	}

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.cfg.Bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		telemetry.RecordError(ctx, err)
		return fmt.Errorf("s3 put object %s: %w", key, err)
	}
	return nil
}

// Healthcheck verifies the bucket is reachable.
func (u *Uploader) Healthcheck(ctx context.Context) error {
	_, err := u.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(u.cfg.Bucket),
	})
	if err != nil {
		return fmt.Errorf("S3 health check failed: %w", err)
	}
	return nil
}
