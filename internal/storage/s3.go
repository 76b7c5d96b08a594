package storage

import (
	"context"
	"fmt"
	"meetscribe/pkg/model"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// ObjectPutter is the part of the S3 client the mirror needs
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Options struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
}

// S3Storage mirrors the artifacts written during a run to a bucket.
// Only files completed in the run are uploaded.
type S3Storage struct {
	client ObjectPutter
	bucket string
	prefix string
	dir    string
	log    *zap.Logger
}

// NewS3Storage creates an S3 client. An empty endpoint uses AWS; any other
// value selects an S3-compatible service with path-style addressing.
func NewS3Storage(ctx context.Context, opts S3Options, artifactDir string, log *zap.Logger) (*S3Storage, error) {
	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(opts.Region),
	}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	if log == nil {
		log = zap.NewNop()
	}
	log.Info("S3 storage initialized",
		zap.String("bucket", opts.Bucket),
		zap.String("prefix", opts.Prefix))

	return NewS3StorageWithClient(client, opts.Bucket, opts.Prefix, artifactDir, log), nil
}

func NewS3StorageWithClient(client ObjectPutter, bucket, prefix, artifactDir string, log *zap.Logger) *S3Storage {
	if log == nil {
		log = zap.NewNop()
	}
	return &S3Storage{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		dir:    artifactDir,
		log:    log,
	}
}

func (s *S3Storage) Name() string {
	return "s3"
}

// Publish uploads the artifacts of every recording completed in this run.
// Already complete recordings and failed ones are not mirrored.
func (s *S3Storage) Publish(ctx context.Context, report *model.BatchReport) error {
	var lastErr error
	uploaded := 0

	for _, o := range report.Outcomes {
		if !o.Succeeded() || o.AlreadyDone {
			continue
		}
		for _, name := range o.Written {
			key := s.GenerateKey(o.Recording.BaseName, name)
			if err := s.uploadArtifact(ctx, key, name); err != nil {
				s.log.Warn("Failed to mirror artifact",
					zap.String("artifact", name),
					zap.String("key", key),
					zap.Error(err))
				lastErr = err
				continue
			}
			uploaded++
		}
	}

	s.log.Info("Artifacts mirrored",
		zap.String("run_id", report.RunID),
		zap.Int("uploaded", uploaded))

	return lastErr
}

func (s *S3Storage) uploadArtifact(ctx context.Context, key, name string) error {
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		return fmt.Errorf("failed to open artifact: %w", err)
	}
	defer f.Close()

	return s.UploadFile(ctx, key, f, ContentType(name))
}

// UploadFile uploads one object
func (s *S3Storage) UploadFile(ctx context.Context, key string, body *os.File, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	}
	if info, err := body.Stat(); err == nil {
		input.ContentLength = aws.Int64(info.Size())
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to upload file: %w", err)
	}

	s.log.Debug("File uploaded to S3", zap.String("key", key))
	return nil
}

// GenerateKey places every artifact of a recording under one folder
func (s *S3Storage) GenerateKey(baseName, artifactName string) string {
	if s.prefix == "" {
		return path.Join(baseName, artifactName)
	}
	return path.Join(s.prefix, baseName, artifactName)
}

// ContentType returns the MIME type of an artifact by extension
func ContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return "application/pdf"
	case ".txt":
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
