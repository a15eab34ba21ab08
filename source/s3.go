package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/pithecene-io/sift/iox"
	"github.com/pithecene-io/sift/types"
)

// S3Config holds configuration for the S3 asset source.
type S3Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string
	// Prefix is the key prefix within the bucket (optional).
	Prefix string
	// Region is the AWS region (optional, uses default chain if empty).
	Region string
	// Endpoint is a custom S3 endpoint URL for S3-compatible providers
	// (e.g. Cloudflare R2, MinIO). Empty uses the default AWS endpoint.
	Endpoint string
	// UsePathStyle forces path-style addressing (bucket in path, not
	// subdomain). Required by most S3-compatible providers.
	UsePathStyle bool
}

// Validate checks that required S3 configuration is present.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("S3 bucket is required")
	}
	return nil
}

// objectAPI is the slice of the S3 client the source uses.
// Narrowed for testability.
type objectAPI interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3 enumerates media objects from an S3(-compatible) bucket. Asset
// IDs are object keys; creation time is the object's last-modified
// time; dimensions are unknown (0) since listings carry no pixel data.
type S3 struct {
	cfg    S3Config
	client objectAPI
}

// NewS3 creates an S3 source using the AWS SDK default credential
// chain (env vars, shared config, IAM role).
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return &S3{cfg: cfg, client: s3.NewFromConfig(awsCfg, s3Opts...)}, nil
}

// newS3WithClient wires a fake client for tests.
func newS3WithClient(cfg S3Config, client objectAPI) *S3 {
	return &S3{cfg: cfg, client: client}
}

// Fetch lists the bucket (paginated) and returns media objects as
// asset refs, newest first. A listing failure is classified as
// ErrSourceUnavailable so the feed treats it as retryable.
func (s *S3) Fetch(ctx context.Context, q types.Query) ([]types.AssetRef, error) {
	prefix := s.cfg.Prefix
	if q.Library != "" {
		if prefix != "" {
			prefix += "/"
		}
		prefix += q.Library
	}

	var refs []types.AssetRef
	var continuation *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            &s.cfg.Bucket,
			Prefix:            &prefix,
			ContinuationToken: continuation,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: list s3://%s/%s: %v",
				types.ErrSourceUnavailable, s.cfg.Bucket, prefix, err)
		}

		for _, obj := range out.Contents {
			if obj.Key == nil {
				continue
			}
			kind, ok := KindForPath(*obj.Key)
			if !ok {
				continue
			}
			ref := types.AssetRef{ID: *obj.Key, Kind: kind}
			if obj.LastModified != nil {
				ref.CreatedAt = *obj.LastModified
			}
			if obj.Size != nil {
				ref.SizeBytes = *obj.Size
			}
			refs = append(refs, ref)
		}

		if out.IsTruncated == nil || !*out.IsTruncated {
			break
		}
		continuation = out.NextContinuationToken
	}

	sort.Slice(refs, func(i, j int) bool {
		if !refs[i].CreatedAt.Equal(refs[j].CreatedAt) {
			return refs[i].CreatedAt.After(refs[j].CreatedAt)
		}
		return refs[i].ID < refs[j].ID
	})
	return applyQuery(refs, q), nil
}

// FetchMedia downloads the object's bytes. The bucket holds a single
// rendition per key, so every tier resolves to the same object.
// Failures carry a FetchError classified as timeout or network.
func (s *S3) FetchMedia(ctx context.Context, ref types.AssetRef, tier types.Tier) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.cfg.Bucket,
		Key:    &ref.ID,
	})
	if err != nil {
		return nil, types.NewFetchError(classifyFetch(err), ref.ID, tier, err)
	}
	defer iox.DiscardClose(out.Body)

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, types.NewFetchError(classifyFetch(err), ref.ID, tier, err)
	}
	return data, nil
}

func classifyFetch(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return types.ErrTimeout
	}
	return types.ErrNetwork
}
