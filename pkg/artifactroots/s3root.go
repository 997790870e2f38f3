// Package artifactroots provides Root implementations for the
// Artifact Resolver (spec.md §4.2 step 3, "known-location roots") that
// reach beyond the local filesystem. No example repo in the retrieval
// pack constructs an S3 client directly, so this file follows the
// standard aws-sdk-go-v2 idiom (config.LoadDefaultConfig,
// s3.NewFromConfig, a context-scoped API call) rather than a specific
// teacher file; see DESIGN.md for the out-of-pack grounding note.
package artifactroots

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/graphforge/nodemeta/pkg/artifactresolve"
)

// HeadObjectAPI is the subset of the S3 client S3Root depends on, so
// tests can substitute a fake without a real AWS endpoint.
type HeadObjectAPI interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3Root is a Root backed by one bucket/prefix in object storage,
// letting a shared checkpoint or LoRA store live in S3 behind the same
// resolution contract as a local directory (spec.md §4.2 step 3).
type S3Root struct {
	Bucket  string
	Prefix  string
	Client  HeadObjectAPI
	Timeout time.Duration
}

// NewS3Root builds an S3Root using the default AWS credential chain
// (environment, shared config, EC2/ECS role), matching the
// config.LoadDefaultConfig + NewFromConfig idiom used throughout the
// aws-sdk-go-v2 ecosystem.
func NewS3Root(ctx context.Context, bucket, prefix string) (*S3Root, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &S3Root{
		Bucket:  bucket,
		Prefix:  prefix,
		Client:  s3.NewFromConfig(cfg),
		Timeout: 5 * time.Second,
	}, nil
}

// Find reports whether an object named prefix/candidate exists in the
// bucket, returning an s3:// URI as the "absolute path" the rest of
// the pipeline treats opaquely (it is only ever displayed, or handed
// back to an S3-aware hash source — the Hash Cache's local-file
// streaming path does not apply to it).
func (r *S3Root) Find(_ artifactresolve.Family, candidate string) (string, bool) {
	if r.Client == nil {
		return "", false
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout())
	defer cancel()

	key := candidate
	if r.Prefix != "" {
		key = r.Prefix + "/" + candidate
	}

	_, err := r.Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(r.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		// Any failure (missing key, auth, network) reports as "not
		// found" to the resolver — an S3 outage must not abort the
		// save (spec.md §7, ArtifactResolutionError posture).
		return "", false
	}
	return fmt.Sprintf("s3://%s/%s", r.Bucket, key), true
}

func (r *S3Root) timeout() time.Duration {
	if r.Timeout <= 0 {
		return 5 * time.Second
	}
	return r.Timeout
}
