// Package s3 provides an S3-compatible content store. Tiers map to key
// prefixes inside a single bucket, so moving a document between tiers is a
// server-side copy.
package s3

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/hashicorp/go-hclog"

	"github.com/papermill-forge/papermill/pkg/store"
)

// Config contains S3 content store configuration.
type Config struct {
	Endpoint  string `hcl:"endpoint,optional"`
	Region    string `hcl:"region"`
	Bucket    string `hcl:"bucket"`
	Prefix    string `hcl:"prefix,optional"`
	AccessKey string `hcl:"access_key,optional"`
	SecretKey string `hcl:"secret_key,optional"`

	// DefaultTier receives new writes. Defaults to 1.
	DefaultTier int `hcl:"default_tier,optional"`
}

// Validate validates the S3 configuration.
func (c *Config) Validate() error {
	if c.Region == "" {
		return fmt.Errorf("region is required")
	}
	if c.Bucket == "" {
		return fmt.Errorf("bucket is required")
	}
	return nil
}

// Adapter implements store.Store on an S3 bucket. A resource of document N
// in tier T lives at <prefix>t<T>/<N>/<resource>.
type Adapter struct {
	client      *s3.Client
	cfg         *Config
	defaultTier int
	logger      hclog.Logger
}

// NewAdapter creates a new S3 content store adapter.
func NewAdapter(ctx context.Context, cfg *Config, logger hclog.Logger) (*Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid S3 configuration: %w", err)
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			// Path-style addressing for MinIO and friends.
			o.UsePathStyle = true
		}
	})

	tier := cfg.DefaultTier
	if tier == 0 {
		tier = 1
	}

	a := &Adapter{
		client:      client,
		cfg:         cfg,
		defaultTier: tier,
		logger:      logger.Named("s3-store"),
	}

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.Bucket)}); err != nil {
		return nil, fmt.Errorf("bucket %s is not accessible: %w", cfg.Bucket, err)
	}

	a.logger.Info("s3 content store initialized", "bucket", cfg.Bucket, "prefix", cfg.Prefix)
	return a, nil
}

func (a *Adapter) key(tier int, docID uint64, resource string) string {
	return fmt.Sprintf("%st%d/%s/%s", a.cfg.Prefix, tier, store.DocKey(docID), resource)
}

func (a *Adapter) docPrefix(tier int, docID uint64) string {
	return fmt.Sprintf("%st%d/%s/", a.cfg.Prefix, tier, store.DocKey(docID))
}

// listKeys lists object keys of a document in one tier.
func (a *Adapter) listKeys(ctx context.Context, tier int, docID uint64) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(a.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(a.cfg.Bucket),
		Prefix: aws.String(a.docPrefix(tier, docID)),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list resources of document %d: %w", docID, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

// knownTiers returns the tiers that may hold data. Without per-tier
// configuration the adapter probes the default tier plus tiers 1-3.
func (a *Adapter) knownTiers() []int {
	tiers := map[int]bool{a.defaultTier: true, 1: true, 2: true, 3: true}
	out := make([]int, 0, len(tiers))
	for t := range tiers {
		out = append(out, t)
	}
	sort.Ints(out)
	return out
}

// Store writes a resource into the default tier.
func (a *Adapter) Store(ctx context.Context, docID uint64, resource string, r io.Reader) error {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.cfg.Bucket),
		Key:    aws.String(a.key(a.defaultTier, docID, resource)),
		Body:   r,
	})
	if err != nil {
		return fmt.Errorf("failed to store resource %s of document %d: %w", resource, docID, err)
	}
	return nil
}

// GetStream opens a resource, searching all known tiers.
func (a *Adapter) GetStream(ctx context.Context, docID uint64, resource string) (io.ReadCloser, error) {
	var lastErr error
	for _, tier := range a.knownTiers() {
		out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(a.cfg.Bucket),
			Key:    aws.String(a.key(tier, docID, resource)),
		})
		if err == nil {
			return out.Body, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("resource %s of document %d not found: %w", resource, docID, lastErr)
}

// Delete removes the named resources of a document wherever they live.
func (a *Adapter) Delete(ctx context.Context, docID uint64, resources ...string) error {
	for _, resource := range resources {
		for _, tier := range a.knownTiers() {
			_, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(a.cfg.Bucket),
				Key:    aws.String(a.key(tier, docID, resource)),
			})
			if err != nil {
				return fmt.Errorf("failed to delete resource %s of document %d: %w", resource, docID, err)
			}
		}
	}
	return nil
}

// DeleteAll removes every resource of a document across all tiers.
func (a *Adapter) DeleteAll(ctx context.Context, docID uint64) error {
	for _, tier := range a.knownTiers() {
		keys, err := a.listKeys(ctx, tier, docID)
		if err != nil {
			return err
		}
		for _, key := range keys {
			_, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(a.cfg.Bucket),
				Key:    aws.String(key),
			})
			if err != nil {
				return fmt.Errorf("failed to delete %s: %w", key, err)
			}
		}
	}
	return nil
}

// ListResources lists resource names across tiers, deduplicated and sorted.
func (a *Adapter) ListResources(ctx context.Context, docID uint64, fileVersion string) ([]string, error) {
	seen := map[string]bool{}
	for _, tier := range a.knownTiers() {
		keys, err := a.listKeys(ctx, tier, docID)
		if err != nil {
			return nil, err
		}
		prefix := a.docPrefix(tier, docID)
		for _, key := range keys {
			name := strings.TrimPrefix(key, prefix)
			if fileVersion != "" && !store.BelongsToFileVersion(name, fileVersion) {
				continue
			}
			seen[name] = true
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// MoveResourcesToStore moves every resource of a document into the target
// tier via server-side copy.
func (a *Adapter) MoveResourcesToStore(ctx context.Context, docID uint64, tier int) (int, error) {
	moved := 0
	for _, sourceTier := range a.knownTiers() {
		if sourceTier == tier {
			continue
		}
		keys, err := a.listKeys(ctx, sourceTier, docID)
		if err != nil {
			return moved, err
		}
		sourcePrefix := a.docPrefix(sourceTier, docID)
		for _, key := range keys {
			name := strings.TrimPrefix(key, sourcePrefix)
			_, err := a.client.CopyObject(ctx, &s3.CopyObjectInput{
				Bucket:     aws.String(a.cfg.Bucket),
				CopySource: aws.String(a.cfg.Bucket + "/" + key),
				Key:        aws.String(a.key(tier, docID, name)),
			})
			if err != nil {
				return moved, fmt.Errorf("failed to copy %s to tier %d: %w", name, tier, err)
			}
			_, err = a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(a.cfg.Bucket),
				Key:    aws.String(key),
			})
			if err != nil {
				return moved, fmt.Errorf("failed to delete %s after copy: %w", key, err)
			}
			moved++
		}
	}
	return moved, nil
}

// Size returns the byte size of a resource.
func (a *Adapter) Size(ctx context.Context, docID uint64, resource string) (int64, error) {
	var lastErr error
	for _, tier := range a.knownTiers() {
		out, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(a.cfg.Bucket),
			Key:    aws.String(a.key(tier, docID, resource)),
		})
		if err == nil {
			return aws.ToInt64(out.ContentLength), nil
		}
		lastErr = err
	}
	return 0, fmt.Errorf("resource %s of document %d not found: %w", resource, docID, lastErr)
}
