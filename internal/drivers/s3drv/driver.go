// Package s3drv is the s3 resource driver. URIs name a bucket and key
// (s3://bucket/key); the option document selects the operation and carries
// credentials, which are passed to the SDK as a static provider so the
// runtime never consults ambient credential chains on the guest's behalf.
package s3drv

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/thedevsaddam/gojsonq/v2"

	"github.com/blocklessnetwork/runtime/internal/drivers"
)

// api is the slice of the S3 client the driver calls. The SDK client
// satisfies it; tests substitute a fake.
type api interface {
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, opts ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type clientConfig struct {
	accessKey string
	secretKey string
	region    string
	endpoint  string
}

// Driver implements drivers.Driver for the s3 scheme.
type Driver struct {
	newClient func(ctx context.Context, cfg clientConfig) (api, error)
}

// New returns a driver backed by the real SDK client.
func New() *Driver {
	return &Driver{newClient: newSDKClient}
}

func newSDKClient(ctx context.Context, cfg clientConfig) (api, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.accessKey, cfg.secretKey, "",
		)),
	)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// Name implements drivers.Driver.
func (*Driver) Name() string { return "s3" }

// Open dispatches on the "command" field of the option document:
// create, list, get, put. The returned file serves the operation's result
// bytes (object content for get, a JSON key listing for list, nothing for
// create/put).
func (d *Driver) Open(ctx context.Context, uri string, opts string) (drivers.HostFile, error) {
	u, err := url.Parse(uri)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("s3: bad uri %q: %w", uri, drivers.KindDriverBadParams)
	}
	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")

	cfg := clientConfig{
		accessKey: strOpt(opts, "access_key"),
		secretKey: strOpt(opts, "secret_key"),
		region:    strOpt(opts, "region"),
		endpoint:  strOpt(opts, "endpoint"),
	}
	if cfg.accessKey == "" || cfg.secretKey == "" || cfg.region == "" {
		return nil, fmt.Errorf("s3: access_key, secret_key and region are required: %w", drivers.KindDriverBadParams)
	}
	client, err := d.newClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("s3: client: %w", drivers.KindDriverBadOpen)
	}

	switch command := strOpt(opts, "command"); command {
	case "create":
		return d.create(ctx, client, bucket)
	case "list":
		return d.list(ctx, client, bucket, strOpt(opts, "prefix"))
	case "get":
		return d.get(ctx, client, bucket, key)
	case "put":
		return d.put(ctx, client, bucket, key, strOpt(opts, "content"))
	default:
		return nil, fmt.Errorf("s3: unknown command %q: %w", command, drivers.KindDriverBadParams)
	}
}

func (*Driver) create(ctx context.Context, client api, bucket string) (drivers.HostFile, error) {
	_, err := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)})
	if err != nil {
		return nil, fmt.Errorf("s3: create bucket %s: %w", bucket, drivers.KindDriverBadOpen)
	}
	return emptyFile{}, nil
}

func (*Driver) list(ctx context.Context, client api, bucket, prefix string) (drivers.HostFile, error) {
	in := &s3.ListObjectsV2Input{Bucket: aws.String(bucket)}
	if prefix != "" {
		in.Prefix = aws.String(prefix)
	}
	out, err := client.ListObjectsV2(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("s3: list %s: %w", bucket, drivers.KindDriverBadOpen)
	}
	keys := make([]string, 0, len(out.Contents))
	for _, obj := range out.Contents {
		keys = append(keys, aws.ToString(obj.Key))
	}
	listing, err := json.Marshal(keys)
	if err != nil {
		return nil, fmt.Errorf("s3: encode listing: %w", drivers.KindUnknown)
	}
	return &readerFile{reader: bytes.NewReader(listing)}, nil
}

func (*Driver) get(ctx context.Context, client api, bucket, key string) (drivers.HostFile, error) {
	if key == "" {
		return nil, fmt.Errorf("s3: get needs a key: %w", drivers.KindDriverBadParams)
	}
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("s3: get %s/%s: %w", bucket, key, drivers.KindDriverBadOpen)
	}
	return &bodyFile{body: out.Body}, nil
}

func (*Driver) put(ctx context.Context, client api, bucket, key, content string) (drivers.HostFile, error) {
	if key == "" {
		return nil, fmt.Errorf("s3: put needs a key: %w", drivers.KindDriverBadParams)
	}
	_, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   strings.NewReader(content),
	})
	if err != nil {
		return nil, fmt.Errorf("s3: put %s/%s: %w", bucket, key, drivers.KindDriverBadOpen)
	}
	return emptyFile{}, nil
}

// strOpt pulls one string field out of the option document; absent or
// non-string fields read as empty.
func strOpt(opts, name string) string {
	if opts == "" {
		return ""
	}
	v := gojsonq.New().FromString(opts).Find(name)
	s, _ := v.(string)
	return s
}

type emptyFile struct{}

func (emptyFile) Read([]byte) (int, error) { return 0, io.EOF }
func (emptyFile) Write(p []byte) (int, error) {
	return 0, fmt.Errorf("s3 result is read-only: %w", drivers.KindDriverBadParams)
}
func (emptyFile) Close() error { return nil }

type readerFile struct {
	reader *bytes.Reader
}

func (f *readerFile) Read(p []byte) (int, error) { return f.reader.Read(p) }
func (f *readerFile) Write(p []byte) (int, error) {
	return 0, fmt.Errorf("s3 result is read-only: %w", drivers.KindDriverBadParams)
}
func (f *readerFile) Close() error { return nil }

type bodyFile struct {
	body io.ReadCloser
}

func (f *bodyFile) Read(p []byte) (int, error) { return f.body.Read(p) }
func (f *bodyFile) Write(p []byte) (int, error) {
	return 0, fmt.Errorf("s3 result is read-only: %w", drivers.KindDriverBadParams)
}
func (f *bodyFile) Close() error { return f.body.Close() }
