package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ArchiveConfig holds configuration for S3-compatible payload storage
type ArchiveConfig struct {
	Bucket          string
	Region          string
	Endpoint        string // Optional: for DO Spaces, R2, etc.
	KeyPrefix       string
	AccessKeyID     string
	SecretAccessKey string
}

// PayloadArchiver ships raw listing payloads to S3-compatible storage so the
// hot rows can eventually be trimmed without losing the original snapshots.
type PayloadArchiver struct {
	client *s3.Client
	cfg    ArchiveConfig
}

func NewPayloadArchiver(ctx context.Context, cfg ArchiveConfig) (*PayloadArchiver, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var client *s3.Client
	if cfg.Endpoint != "" {
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	} else {
		client = s3.NewFromConfig(awsCfg)
	}

	return &PayloadArchiver{
		client: client,
		cfg:    cfg,
	}, nil
}

// ArchivePayload writes one source's raw payload and returns the object key.
func (a *PayloadArchiver) ArchivePayload(ctx context.Context, platform string, sourceID int64, scrapedAt time.Time, payload []byte) (string, error) {
	key := a.payloadKey(platform, sourceID, scrapedAt)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return key, nil
}

func (a *PayloadArchiver) payloadKey(platform string, sourceID int64, scrapedAt time.Time) string {
	prefix := strings.Trim(a.cfg.KeyPrefix, "/")
	if prefix == "" {
		prefix = "payloads"
	}
	return fmt.Sprintf("%s/%s/%s/%d.json", prefix, platform, scrapedAt.UTC().Format("2006/01/02"), sourceID)
}

// ObjectURL returns the public URL for an archived key
func (a *PayloadArchiver) ObjectURL(key string) string {
	if a.cfg.Endpoint != "" && strings.Contains(a.cfg.Endpoint, "digitaloceanspaces.com") {
		// DO Spaces: https://{bucket}.{region}.digitaloceanspaces.com/{key}
		host := strings.TrimPrefix(a.cfg.Endpoint, "https://")
		return fmt.Sprintf("https://%s.%s/%s", a.cfg.Bucket, host, key)
	}
	// AWS S3: https://{bucket}.s3.{region}.amazonaws.com/{key}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", a.cfg.Bucket, a.cfg.Region, key)
}
