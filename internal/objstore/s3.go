// Package objstore lists remote object storage. The offload verifier uses it
// to confirm that every audio attachment referenced by a quest's content
// links is durably stored before the local copy may be deleted.
package objstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Object is one stored object, as returned by a folder listing.
type Object struct {
	Name string
	Size int64
}

// Lister lists the objects directly under a folder.
type Lister interface {
	List(ctx context.Context, folder string) ([]Object, error)
}

// Config carries the S3 settings for the attachment bucket.
type Config struct {
	Region       string
	BaseEndpoint string // non-empty for MinIO or other S3-compatible stores
	Bucket       string
	AccessKey    string
	SecretKey    string
}

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// S3Lister lists an S3 (or S3-compatible) bucket.
type S3Lister struct {
	client s3.ListObjectsV2APIClient
	bucket string
}

// NewS3Lister builds an S3Lister from static credentials, overriding the
// endpoint when one is configured (MINIO_* style deployments).
func NewS3Lister(ctx context.Context, cfg Config) (*S3Lister, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("failed to load s3 config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
		}
		o.UsePathStyle = cfg.BaseEndpoint != ""
	})

	return &S3Lister{client: client, bucket: cfg.Bucket}, nil
}

// List returns the objects under folder (non-recursive), names relative to
// the folder.
func (l *S3Lister) List(ctx context.Context, folder string) ([]Object, error) {
	prefix := strings.TrimSuffix(folder, "/") + "/"

	var out []Object
	paginator := s3.NewListObjectsV2Paginator(l.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(l.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if name == "" {
				continue
			}
			out = append(out, Object{Name: name, Size: aws.ToInt64(obj.Size)})
		}
	}
	return out, nil
}
