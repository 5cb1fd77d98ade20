package offers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	awss3 "github.com/aws/aws-sdk-go/service/s3"
	"github.com/philippgille/gokv/encoding"
	"github.com/philippgille/gokv/util"
)

type S3Options struct {
	// The bucket is created when it does not exist yet.
	Bucket string
	// Optional, read from the shared config file or AWS_REGION when empty.
	// Self-hosted servers (Minio) still need some value.
	Region string
	// Optional, e.g. "http://localhost:9000" for Minio.
	Endpoint string
	// Both or neither. Empty uses the shared credentials file or environment.
	AccessKey string
	SecretKey string
	// Self-hosted servers usually need path-style addressing.
	PathStyle bool
	Timeout   time.Duration
	Codec     encoding.Codec
}

// S3Store is a gokv.Store keeping one object per key in an S3 bucket.
type S3Store struct {
	c       *awss3.S3
	bucket  string
	timeout time.Duration
	codec   encoding.Codec
}

func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	if opts.Bucket == "" {
		return nil, errors.New("s3 bucket must not be empty")
	}
	if (opts.AccessKey == "") != (opts.SecretKey == "") {
		return nil, errors.New("s3 access_key and secret_key must be set together")
	}
	if opts.Codec == nil {
		opts.Codec = encoding.JSON
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	config := aws.NewConfig()
	if opts.Region != "" {
		config = config.WithRegion(opts.Region)
	}
	if opts.AccessKey != "" {
		config = config.WithCredentials(credentials.NewStaticCredentials(opts.AccessKey, opts.SecretKey, ""))
	}
	if opts.Endpoint != "" {
		config = config.WithEndpoint(opts.Endpoint)
	}
	if opts.PathStyle {
		config = config.WithS3ForcePathStyle(true)
	}
	sessionOpts := session.Options{
		SharedConfigState: session.SharedConfigEnable,
	}
	sessionOpts.Config.MergeIn(config)
	sess, err := session.NewSessionWithOptions(sessionOpts)
	if err != nil {
		return nil, err
	}

	s := &S3Store{
		c:       awss3.New(sess),
		bucket:  opts.Bucket,
		timeout: opts.Timeout,
		codec:   opts.Codec,
	}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *S3Store) ensureBucket(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.c.HeadBucketWithContext(ctx, &awss3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}
	_, err = s.c.CreateBucketWithContext(ctx, &awss3.CreateBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && aerr.Code() == awss3.ErrCodeBucketAlreadyOwnedByYou {
			return nil
		}
		return err
	}
	return nil
}

func (s *S3Store) Set(k string, v interface{}) error {
	if err := util.CheckKeyAndValue(k, v); err != nil {
		return err
	}
	data, err := s.codec.Marshal(v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	_, err = s.c.PutObjectWithContext(ctx, &awss3.PutObjectInput{
		Body:   bytes.NewReader(data),
		Bucket: aws.String(s.bucket),
		Key:    aws.String(k),
	})
	return err
}

func (s *S3Store) Get(k string, v interface{}) (found bool, err error) {
	if err := util.CheckKeyAndValue(k, v); err != nil {
		return false, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	out, err := s.c.GetObjectWithContext(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(k),
	})
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && aerr.Code() == awss3.ErrCodeNoSuchKey {
			return false, nil
		}
		return false, err
	}
	if out.Body == nil {
		return false, nil
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return true, err
	}
	return true, s.codec.Unmarshal(data, v)
}

// Delete of a missing key is not an error.
func (s *S3Store) Delete(k string) error {
	if err := util.CheckKey(k); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	_, err := s.c.DeleteObjectWithContext(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(k),
	})
	return err
}

func (s *S3Store) Close() error {
	return nil
}
