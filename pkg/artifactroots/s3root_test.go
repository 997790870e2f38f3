package artifactroots

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"

	"github.com/graphforge/nodemeta/pkg/artifactresolve"
)

type fakeHeadObjectAPI struct {
	existingKeys map[string]bool
}

func (f *fakeHeadObjectAPI) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if f.existingKeys[*in.Key] {
		return &s3.HeadObjectOutput{}, nil
	}
	return nil, errors.New("NotFound: key does not exist")
}

func TestS3Root_FindExisting(t *testing.T) {
	root := &S3Root{
		Bucket: "models",
		Prefix: "checkpoints",
		Client: &fakeHeadObjectAPI{existingKeys: map[string]bool{"checkpoints/cyber_v33.safetensors": true}},
	}

	path, ok := root.Find(artifactresolve.FamilyCheckpoint, "cyber_v33.safetensors")
	assert.True(t, ok)
	assert.Equal(t, "s3://models/checkpoints/cyber_v33.safetensors", path)
}

func TestS3Root_FindMissing(t *testing.T) {
	root := &S3Root{
		Bucket: "models",
		Client: &fakeHeadObjectAPI{existingKeys: map[string]bool{}},
	}

	_, ok := root.Find(artifactresolve.FamilyCheckpoint, "missing.safetensors")
	assert.False(t, ok)
}

func TestS3Root_NilClientIsNotFound(t *testing.T) {
	root := &S3Root{Bucket: "models"}
	_, ok := root.Find(artifactresolve.FamilyVAE, "anything.safetensors")
	assert.False(t, ok)
}
