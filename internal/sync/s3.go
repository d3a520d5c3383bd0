package sync

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	gosync "sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// snapshotDigestKey is the object metadata key holding the SHA-256 of the
// uploaded snapshot.
const snapshotDigestKey = "snapshot-sha256"

// S3Destination uploads registry snapshots to an S3-compatible bucket.
// Uploads whose content matches the last successful upload are skipped.
type S3Destination struct {
	client *s3.Client
	bucket string
	key    string

	mu         gosync.Mutex
	lastDigest string
}

// NewS3Destination creates an S3 destination. A non-empty endpoint selects
// path-style addressing (MinIO and similar).
func NewS3Destination(ctx context.Context, bucket, key, region, endpoint string) (*S3Destination, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Destination{client: client, bucket: bucket, key: key}, nil
}

// String names the destination in log output.
func (d *S3Destination) String() string {
	return "s3://" + d.bucket + "/" + d.key
}

// Write uploads the snapshot unless its records are unchanged since the
// last upload.
func (d *S3Destination) Write(ctx context.Context, data []byte) error {
	sum := sha256.Sum256(snapshotRecords(data))
	digest := hex.EncodeToString(sum[:])

	d.mu.Lock()
	defer d.mu.Unlock()
	if digest == d.lastDigest {
		return nil
	}

	_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(d.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(snapshotContentType),
		Metadata:    map[string]string{snapshotDigestKey: digest},
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", d, err)
	}
	d.lastDigest = digest
	return nil
}
