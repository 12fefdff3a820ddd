package stats

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Archive uploads a run's persisted output files to a bucket once
// the run completes, for deployments that don't retain local disk
// between simulation processes.
type S3Archive struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Archive builds an archiver against bucket using the default
// AWS credential chain (environment, shared config, instance role).
func NewS3Archive(ctx context.Context, bucket, prefix string) (*S3Archive, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats: loading aws config: %w", err)
	}
	return &S3Archive{client: s3.NewFromConfig(cfg), bucket: bucket, prefix: prefix}, nil
}

// UploadDir uploads every regular file directly under dir to
// s3://bucket/prefix/<filename>.
func (a *S3Archive) UploadDir(ctx context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("stats: reading output dir for upload: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := a.uploadFile(ctx, filepath.Join(dir, e.Name()), e.Name()); err != nil {
			return err
		}
	}
	return nil
}

func (a *S3Archive) uploadFile(ctx context.Context, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("stats: opening %s for upload: %w", path, err)
	}
	defer f.Close()

	key := name
	if a.prefix != "" {
		key = a.prefix + "/" + name
	}
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("stats: uploading %s to s3: %w", key, err)
	}
	return nil
}
