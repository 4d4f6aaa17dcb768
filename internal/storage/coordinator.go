package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/tpepels/tidal-ui-sub001/internal/download"
)

// hashMetadataKey is the S3 user-metadata key carrying the object's
// content hash. The SDK lowercases user metadata keys on the wire.
const hashMetadataKey = "content-hash"

// Coordinator implements transactional saves against S3-compatible
// storage: it owns the decision whether an existing object is replaced,
// based on the requested conflict policy and the stored content hash.
type Coordinator struct {
	client *s3.Client
	bucket string
}

// CoordinatorConfig holds the S3 connection settings.
type CoordinatorConfig struct {
	Endpoint     string
	Region       string
	AccessKey    string
	SecretKey    string
	Bucket       string
	UsePathStyle bool
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(cfg *CoordinatorConfig) *Coordinator {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  awscreds.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: cfg.UsePathStyle, // Required for MinIO
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}

	return &Coordinator{
		client: s3.New(opts),
		bucket: cfg.Bucket,
	}
}

// Save stores the object under key unless the conflict policy decides the
// existing object already satisfies the request. The returned outcome
// reports whether bytes were written and, if not, why the save was elided.
func (c *Coordinator) Save(ctx context.Context, key string, r io.Reader, size int64, policy download.ConflictPolicy, meta download.ObjectMeta, progress func(uploaded, total int64)) (*download.SaveOutcome, error) {
	exists, existingHash, err := c.head(ctx, key)
	if err != nil {
		return nil, err
	}

	write, reason := resolveConflict(policy, exists, existingHash, meta.ContentHash)
	if !write {
		return &download.SaveOutcome{Written: false, Reason: reason}, nil
	}

	body := r
	if progress != nil {
		body = &countingReader{r: r, total: size, report: progress}
	}

	contentType := meta.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
		Metadata:      map[string]string{hashMetadataKey: meta.ContentHash},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload %s: %w", key, err)
	}

	if err := c.putMetadata(ctx, key, meta); err != nil {
		return nil, err
	}

	return &download.SaveOutcome{Written: true}, nil
}

// head reports whether key exists and its stored content hash.
func (c *Coordinator) head(ctx context.Context, key string) (bool, string, error) {
	out, err := c.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFoundError(err) {
			return false, "", nil
		}
		return false, "", fmt.Errorf("failed to check existence of %s: %w", key, err)
	}
	return true, out.Metadata[hashMetadataKey], nil
}

// putMetadata uploads a JSON sidecar describing the object, so the
// library remains browsable without parsing audio files.
func (c *Coordinator) putMetadata(ctx context.Context, key string, meta download.ObjectMeta) error {
	doc, err := json.Marshal(map[string]string{
		"title":        meta.Title,
		"artist":       meta.Artist,
		"album":        meta.Album,
		"content_hash": meta.ContentHash,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	_, err = c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(metadataKeyFor(key)),
		Body:        strings.NewReader(string(doc)),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload metadata for %s: %w", key, err)
	}
	return nil
}

// metadataKeyFor returns the sidecar key for an object key.
func metadataKeyFor(key string) string {
	return key + ".meta.json"
}

// resolveConflict decides whether an existing object is replaced.
func resolveConflict(policy download.ConflictPolicy, exists bool, existingHash, newHash string) (write bool, reason string) {
	if !exists {
		return true, ""
	}

	switch policy {
	case download.ConflictSkip:
		return false, "object exists"
	case download.ConflictIfChanged:
		// An existing object without a recorded hash is unverifiable and
		// gets replaced.
		if existingHash != "" && existingHash == newHash {
			return false, "content unchanged"
		}
		return true, ""
	default:
		return true, ""
	}
}

// isNotFoundError checks if the error indicates the object was not found.
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "NotFound") ||
		strings.Contains(err.Error(), "not found") ||
		strings.Contains(err.Error(), "NoSuchKey") ||
		strings.Contains(err.Error(), "404")
}
