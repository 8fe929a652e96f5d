package store

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3 stores init segments, media segments, and playlist text as
// objects in a single bucket, one prefix per stream.
type S3 struct {
	client *s3.Client
	bucket string
}

// NewS3 loads the default AWS SDK config (region from AWS_REGION, or
// us-east-1) and returns an S3 store writing to bucket.
func NewS3(ctx context.Context, bucket string) (*S3, error) {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-1"
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	log.Printf("store: S3 client ready, region=%s bucket=%s", region, bucket)
	return &S3{client: s3.NewFromConfig(cfg), bucket: bucket}, nil
}

func (s *S3) StoreInitSegment(streamID int64, data []byte) error {
	return s.putObject(initKey(streamID), data, "video/mp4")
}

func (s *S3) StoreSegment(streamID int64, name string, data []byte) error {
	return s.putObject(segmentKey(streamID, name), data, "video/mp4")
}

func (s *S3) UpdatePlaylist(streamID int64, text string) error {
	return s.putObject(playlistKey(streamID), []byte(text), "application/vnd.apple.mpegurl")
}

func (s *S3) putObject(key string, data []byte, contentType string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}
