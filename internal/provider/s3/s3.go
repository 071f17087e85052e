// Package s3 implements the provider.Provider capability surface against
// any S3-compatible object store.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/kipbackup/kip/internal/config"
	"github.com/kipbackup/kip/internal/kerrors"
	"github.com/kipbackup/kip/internal/provider"
)

// Backend implements provider.Provider against an S3-like bucket.
type Backend struct {
	client *s3.Client
	bucket string
}

// New creates a Backend from a job's S3 provider configuration. When
// AccessKey/SecretKey are empty, the default AWS credential chain is
// used instead of static credentials.
func New(ctx context.Context, cfg config.ProviderConfig, accessKey, secretKey string) (*Backend, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3Region),
	}
	if accessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, kerrors.New(kerrors.KindConfig, "s3.New", fmt.Errorf("load aws config: %w", err))
	}

	var s3Opts []func(*s3.Options)
	if cfg.S3Endpoint != "" && cfg.S3Provider != "aws" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		})
	}

	return &Backend{
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		bucket: cfg.S3Bucket,
	}, nil
}

func (b *Backend) Kind() string { return "s3" }

func (b *Backend) Upload(ctx context.Context, key string, src io.Reader, size int64) error {
	body, err := io.ReadAll(src)
	if err != nil {
		return kerrors.New(kerrors.KindIO, "s3.Upload", err)
	}
	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return kerrors.New(kerrors.KindProvider, "s3.Upload", fmt.Errorf("put %s/%s: %w", b.bucket, key, err))
	}
	return nil
}

func (b *Backend) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, kerrors.New(kerrors.KindProvider, "s3.Download", fmt.Errorf("get %s/%s: %w", b.bucket, key, err))
	}
	return out.Body, nil
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return kerrors.New(kerrors.KindProvider, "s3.Delete", fmt.Errorf("delete %s/%s: %w", b.bucket, key, err))
	}
	return nil
}

func (b *Backend) Contains(ctx context.Context, key string) (bool, error) {
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, kerrors.New(kerrors.KindProvider, "s3.Contains", fmt.Errorf("head %s/%s: %w", b.bucket, key, err))
	}
	return true, nil
}

func (b *Backend) ListAll(ctx context.Context, prefix string) ([]provider.ObjectInfo, error) {
	var objects []provider.ObjectInfo
	var token *string
	for {
		out, err := b.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(b.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, kerrors.New(kerrors.KindProvider, "s3.ListAll", fmt.Errorf("list %s/%s: %w", b.bucket, prefix, err))
		}
		for _, obj := range out.Contents {
			objects = append(objects, provider.ObjectInfo{
				Key:  aws.ToString(obj.Key),
				Size: aws.ToInt64(obj.Size),
			})
		}
		if out.IsTruncated == nil || !*out.IsTruncated {
			break
		}
		token = out.NextContinuationToken
	}
	return objects, nil
}

// apiError is implemented by smithy's generated AWS error types; S3
// reports missing objects/buckets as "NotFound" on HeadObject.
type apiError interface {
	ErrorCode() string
}

func isNotFound(err error) bool {
	var ae apiError
	if errors.As(err, &ae) {
		switch ae.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
