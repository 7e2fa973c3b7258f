package media

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"autoblog/internal/clock"
	"autoblog/pkg/host"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Uploader is the part of the S3 upload manager the library uses.
type Uploader interface {
	Upload(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Config configures the S3 library.
type S3Config struct {
	Region         string `mapstructure:"region"`
	Bucket         string `mapstructure:"bucket"`
	Prefix         string `mapstructure:"prefix"`
	Endpoint       string `mapstructure:"endpoint"`
	ForcePathStyle bool   `mapstructure:"force_path_style"`

	// PublicURL is the base URL objects are served from. When empty the
	// upload location returned by S3 is used.
	PublicURL string `mapstructure:"public_url"`
}

// S3 stores uploads in a bucket.
type S3 struct {
	uploader Uploader
	cfg      S3Config
	clock    clock.Clock
}

var _ host.MediaLibrary = (*S3)(nil)

// NewS3 creates a library that uploads through uploader.
func NewS3(uploader Uploader, cfg S3Config, c clock.Clock) *S3 {
	if c == nil {
		c = clock.NewReal()
	}
	return &S3{uploader: uploader, cfg: cfg, clock: c}
}

// NewS3FromConfig loads AWS credentials the default way and creates a library.
func NewS3FromConfig(ctx context.Context, cfg S3Config, c clock.Clock) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})
	return NewS3(manager.NewUploader(client), cfg, c), nil
}

func (s *S3) Upload(ctx context.Context, name, contentType string, r io.Reader) (host.Attachment, error) {
	key := objectKey(s.clock.Now(), name)
	if s.cfg.Prefix != "" {
		key = s.cfg.Prefix + "/" + key
	}

	// Buffer so the size is known; featured images are small.
	data, err := io.ReadAll(r)
	if err != nil {
		return host.Attachment{}, fmt.Errorf("failed to read upload: %w", err)
	}

	out, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return host.Attachment{}, fmt.Errorf("failed to upload %s to s3: %w", key, err)
	}

	url := out.Location
	if s.cfg.PublicURL != "" {
		url = joinURL(s.cfg.PublicURL, key)
	}
	return host.Attachment{
		Key:         key,
		URL:         url,
		ContentType: contentType,
		Size:        int64(len(data)),
	}, nil
}
