package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	apperrors "github.com/socialchef/recipe-gantt/internal/errors"
)

const TSVContentType = "text/tab-separated-values"

var ErrInvalidDestination = errors.New("invalid output destination")

// Sink stores the raw model output.
type Sink interface {
	Write(ctx context.Context, dest string, data []byte) error
}

// IsS3 reports whether dest is an s3://bucket/key URL.
func IsS3(dest string) bool {
	return strings.HasPrefix(dest, "s3://")
}

// NewSink returns an S3Sink for s3:// destinations and a FileSink otherwise.
func NewSink(ctx context.Context, dest, awsRegion string) (Sink, error) {
	if !IsS3(dest) {
		return FileSink{}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(awsRegion))
	if err != nil {
		return nil, apperrors.NewStorageError("failed to load AWS config", "S3_CONFIG_ERROR", err)
	}
	return NewS3Sink(s3.NewFromConfig(awsCfg)), nil
}

func HashContent(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// FileSink writes to the local filesystem through a temp file and rename,
// so a reader never sees a half-written file.
type FileSink struct{}

func (FileSink) Write(ctx context.Context, dest string, data []byte) error {
	if dest == "" {
		return apperrors.NewStorageError("no output path given", "OUTPUT_PATH_MISSING", ErrInvalidDestination)
	}

	dir := filepath.Dir(dest)
	tmp, err := os.CreateTemp(dir, ".recipe-gantt-*.tmp")
	if err != nil {
		return apperrors.NewStorageError("failed to create output file", "OUTPUT_WRITE_ERROR", err)
	}
	tmpName := tmp.Name()

	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return apperrors.NewStorageError("failed to write output file", "OUTPUT_WRITE_ERROR", err)
	}
	if err := tmp.Close(); err != nil {
		return apperrors.NewStorageError("failed to write output file", "OUTPUT_WRITE_ERROR", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return apperrors.NewStorageError("failed to write output file", "OUTPUT_WRITE_ERROR", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return apperrors.NewStorageError("failed to move output file into place", "OUTPUT_WRITE_ERROR", err)
	}

	return nil
}

// PutObjectAPI is the part of the S3 client used by S3Sink.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Sink struct {
	client PutObjectAPI
}

func NewS3Sink(client PutObjectAPI) *S3Sink {
	return &S3Sink{client: client}
}

// ParseS3URL splits s3://bucket/key into its parts.
func ParseS3URL(dest string) (bucket, key string, err error) {
	u, err := url.Parse(dest)
	if err != nil || u.Scheme != "s3" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidDestination, dest)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidDestination, dest)
	}
	return u.Host, key, nil
}

func (s *S3Sink) Write(ctx context.Context, dest string, data []byte) error {
	bucket, key, err := ParseS3URL(dest)
	if err != nil {
		return apperrors.NewStorageError("invalid S3 destination", "S3_DESTINATION_ERROR", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(TSVContentType),
		Metadata:    map[string]string{"sha256": HashContent(data)},
	})
	if err != nil {
		return apperrors.NewStorageError("failed to upload to S3", "S3_UPLOAD_ERROR", err)
	}

	return nil
}
