package s3

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/gobeaver/netfs"
)

// API is the subset of the S3 client the backend uses. *s3.Client
// satisfies it.
type API interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	CopyObject(ctx context.Context, in *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

var _ API = (*s3.Client)(nil)

// clientOptions are the effective connection options for one URI.
type clientOptions struct {
	region    string
	endpoint  string
	accessKey string
	secretKey string
	pathStyle bool
}

// resolveOptions merges settings with the URI. URI user info supplies the
// access key and secret; the region and endpoint query parameters override
// the settings.
func resolveOptions(settings *netfs.Settings, uri *netfs.URI) clientOptions {
	opts := clientOptions{
		region:    settings.S3Region,
		endpoint:  settings.S3Endpoint,
		accessKey: settings.S3AccessKeyID,
		secretKey: settings.S3SecretAccessKey,
		pathStyle: settings.S3ForcePathStyle,
	}
	if uri.User != "" && uri.HasPassword {
		opts.accessKey, opts.secretKey = uri.User, uri.Password
	}
	if v := uri.Query.Get("region"); v != "" {
		opts.region = v
	}
	if v := uri.Query.Get("endpoint"); v != "" {
		opts.endpoint = v
		opts.pathStyle = true
	}
	return opts
}

// createS3Client creates an S3 client from the resolved options
func createS3Client(ctx context.Context, opts clientOptions) (*s3.Client, error) {
	// Create AWS config
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(opts.region),
	)
	if err != nil {
		return nil, err
	}

	// Override with explicit credentials if provided
	if opts.accessKey != "" && opts.secretKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentialsProvider(
			opts.accessKey,
			opts.secretKey,
			"",
		)
	}

	s3Options := func(o *s3.Options) {
		if opts.endpoint != "" {
			o.BaseEndpoint = aws.String(opts.endpoint)
		}
		if opts.pathStyle {
			o.UsePathStyle = true
		}
	}

	return s3.NewFromConfig(awsCfg, s3Options), nil
}
