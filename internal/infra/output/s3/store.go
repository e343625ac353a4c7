// Package s3 writes generated units to an S3-compatible bucket.
package s3

import (
	"bytes"
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/cockroachdb/errors"

	"eavcore/internal/output/sink"
)

const defaultRegion = "us-east-1"

// Config holds construction parameters. Empty credentials fall back to the
// default AWS credential chain.
type Config struct {
	Region          string
	Bucket          string
	Endpoint        string // optional, e.g. a MinIO URL
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	PathStyle       bool
}

// Store maps keys directly to object keys in a single bucket.
type Store struct {
	client *s3.Client
	bucket string
	now    func() time.Time
}

// New creates a store from cfg.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = defaultRegion
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &Store{client: client, bucket: cfg.Bucket, now: utcNow}, nil
}

func utcNow() time.Time { return time.Now().UTC() }

// Bucket returns the target bucket name.
func (s *Store) Bucket() string { return s.bucket }

func (s *Store) Driver() sink.Driver { return sink.DriverS3 }

// Write issues a PutObject, replacing any existing object.
func (s *Store) Write(ctx context.Context, key string, content []byte, opts sink.WriteOptions) (sink.Info, error) {
	if strings.TrimSpace(key) == "" {
		return sink.Info{}, sink.NewWriteError(sink.DriverS3, key, errors.New("empty key"))
	}
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(content),
		ContentLength: aws.Int64(int64(len(content))),
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	out, err := s.client.PutObject(ctx, input)
	if err != nil {
		return sink.Info{}, sink.NewWriteError(sink.DriverS3, key, err)
	}
	return sink.Info{
		Key:          key,
		Size:         int64(len(content)),
		ContentType:  opts.ContentType,
		ETag:         strings.Trim(aws.ToString(out.ETag), `"`),
		LastModified: s.now(),
	}, nil
}

func (s *Store) Read(ctx context.Context, key string) (sink.Info, []byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err != nil {
		if isNotFound(err) {
			return sink.Info{}, nil, errors.Wrapf(sink.ErrNotFound, "key %s", key)
		}
		return sink.Info{}, nil, errors.Wrapf(err, "get %s", key)
	}
	defer func() { _ = out.Body.Close() }()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(out.Body); err != nil {
		return sink.Info{}, nil, errors.Wrapf(err, "read %s", key)
	}
	info := sink.Info{
		Key:          key,
		Size:         int64(buf.Len()),
		ContentType:  aws.ToString(out.ContentType),
		ETag:         strings.Trim(aws.ToString(out.ETag), `"`),
		LastModified: s.now(),
	}
	if out.LastModified != nil {
		info.LastModified = out.LastModified.UTC()
	}
	return info, buf.Bytes(), nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]sink.Info, error) {
	var infos []sink.Info
	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "list %s", prefix)
		}
		for _, obj := range out.Contents {
			infos = append(infos, sink.Info{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				ETag:         strings.Trim(aws.ToString(obj.ETag), `"`),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
		if !aws.ToBool(out.IsTruncated) || out.NextContinuationToken == nil {
			break
		}
		token = out.NextContinuationToken
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var re *awshttp.ResponseError
	return errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound
}
