package blob

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3GetObjectAPI is the slice of the S3 client the resolver uses.
type S3GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Resolver reads s3://bucket/key references.
type S3Resolver struct {
	client  S3GetObjectAPI
	maxSize int64
}

// NewS3Resolver creates an S3 resolver from the default AWS credential
// chain. If endpoint is non-empty, path-style addressing is enabled (for
// MinIO and similar).
func NewS3Resolver(ctx context.Context, region, endpoint string) (*S3Resolver, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3opts []func(*s3.Options)
	if endpoint != "" {
		s3opts = append(s3opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}

	return NewS3ResolverWithClient(s3.NewFromConfig(cfg, s3opts...)), nil
}

// NewS3ResolverWithClient wraps an existing client.
func NewS3ResolverWithClient(client S3GetObjectAPI) *S3Resolver {
	return &S3Resolver{client: client, maxSize: DefaultMaxSize}
}

// Fetch implements Resolver.
func (r *S3Resolver) Fetch(ctx context.Context, ref Ref) ([]byte, error) {
	if ref.Scheme != "s3" {
		return nil, fmt.Errorf("%w: s3 resolver cannot fetch %q", ErrUnsupportedScheme, ref.Raw)
	}

	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(ref.Bucket()),
		Key:    aws.String(ref.Key()),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref.Raw)
		}
		return nil, fmt.Errorf("s3 get object %s: %w", ref.Raw, err)
	}
	defer out.Body.Close()

	return readLimited(out.Body, r.maxSize, ref)
}

// readLimited reads at most max bytes, failing if the body is larger.
func readLimited(body io.Reader, max int64, ref Ref) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(body, max+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ref.Raw, err)
	}
	if int64(len(data)) > max {
		return nil, fmt.Errorf("%w: %s is larger than %d bytes", ErrTooLarge, ref.Raw, max)
	}
	return data, nil
}
