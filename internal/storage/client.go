package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ClientOptions selects the S3 account and endpoint used for collection snapshots.
type ClientOptions struct {
	Region  string
	Profile string
	// Endpoint targets an S3-compatible server (MinIO, localstack) with path-style addressing.
	Endpoint string
}

// NewS3Client loads the default AWS credential chain and applies opts.
func NewS3Client(ctx context.Context, opts ClientOptions) (*s3.Client, error) {
	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(opts.Region),
	}
	if opts.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(opts.Profile))
	}

	cfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}
