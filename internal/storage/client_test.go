package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolateAWSConfig(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(dir, "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(dir, "credentials"))
	t.Setenv("AWS_PROFILE", "")
}

func TestNewS3Client_CustomEndpointUsesPathStyle(t *testing.T) {
	isolateAWSConfig(t)

	client, err := NewS3Client(context.Background(), ClientOptions{Region: "eu-west-1", Endpoint: "http://localhost:9000"})
	require.NoError(t, err)

	opts := client.Options()
	assert.Equal(t, "eu-west-1", opts.Region)
	assert.Equal(t, "http://localhost:9000", aws.ToString(opts.BaseEndpoint))
	assert.True(t, opts.UsePathStyle)
}

func TestNewS3Client_DefaultEndpoint(t *testing.T) {
	isolateAWSConfig(t)

	client, err := NewS3Client(context.Background(), ClientOptions{Region: "us-east-1"})
	require.NoError(t, err)

	opts := client.Options()
	assert.Nil(t, opts.BaseEndpoint)
	assert.False(t, opts.UsePathStyle)
}

func TestNewS3Client_UnknownProfile(t *testing.T) {
	isolateAWSConfig(t)

	_, err := NewS3Client(context.Background(), ClientOptions{Region: "us-east-1", Profile: "does-not-exist"})
	assert.Error(t, err)
}
