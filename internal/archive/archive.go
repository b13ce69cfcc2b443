// Package archive copies completed recordings to S3-compatible object storage.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"dvr/internal/config"
	"dvr/internal/logging"
	"dvr/internal/store"
)

const (
	contentType = "video/mp2t"
	partSize    = 16 * 1024 * 1024
)

// Uploader is the part of manager.Uploader the archiver uses.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// Archiver uploads recordings under a key prefix.
type Archiver struct {
	uploader Uploader
	bucket   string
	prefix   string
	logger   *slog.Logger
}

// New builds an archiver from config. It returns nil, nil when archiving is
// disabled.
func New(ctx context.Context, cfg config.Archive, logger *slog.Logger) (*Archiver, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = partSize
	})
	return NewWithUploader(uploader, cfg.Bucket, cfg.Prefix, logger), nil
}

// NewWithUploader builds an archiver around an existing uploader.
func NewWithUploader(uploader Uploader, bucket, prefix string, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Archiver{
		uploader: uploader,
		bucket:   bucket,
		prefix:   strings.Trim(prefix, "/"),
		logger:   logging.NewComponentLogger(logger, "archive"),
	}
}

// Key returns the object key for rec: <prefix>/<yyyy>/<mm>/<filename>.
func (a *Archiver) Key(rec *store.Recording) string {
	start := rec.ScheduledStart.UTC()
	return path.Join(a.prefix, start.Format("2006"), start.Format("01"), rec.Filename)
}

// Name identifies the processor in logs.
func (a *Archiver) Name() string { return "archive" }

// Process uploads a completed recording. Partial and failed captures are
// skipped.
func (a *Archiver) Process(ctx context.Context, rec *store.Recording) error {
	if rec.Status != store.RecordingCompleted {
		return nil
	}
	f, err := os.Open(rec.FilePath)
	if err != nil {
		return fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()

	key := a.Key(rec)
	_, err = a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"channel": rec.ChannelName,
			"program": rec.ProgramTitle,
		},
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	a.logger.Info("recording archived",
		logging.Int64(logging.FieldRecordingID, rec.ID),
		logging.String("bucket", a.bucket),
		logging.String("key", key),
	)
	return nil
}
