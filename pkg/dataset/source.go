package dataset

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

//go:embed data/penguins_sample.csv
var sampleCSV []byte

// Source loads the dataset. It is called once at startup.
type Source interface {
	Load(ctx context.Context) (*Table, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) (*Table, error)

// Load calls f(ctx).
func (f SourceFunc) Load(ctx context.Context) (*Table, error) { return f(ctx) }

// EmbeddedSource returns a source backed by the bundled sample of the
// Palmer Penguins dataset.
func EmbeddedSource() Source {
	return SourceFunc(func(ctx context.Context) (*Table, error) {
		return ReadCSV(bytes.NewReader(sampleCSV))
	})
}

// FileSource loads a CSV file from disk.
type FileSource struct {
	Path string
}

// Load reads and parses the file.
func (s FileSource) Load(ctx context.Context) (*Table, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer f.Close()

	t, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Path, err)
	}
	return t, nil
}

// S3GetObjectAPI is the subset of the S3 client used by S3Source.
type S3GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source loads a CSV object from S3.
type S3Source struct {
	Client S3GetObjectAPI
	Bucket string
	Key    string
}

// Load fetches and parses the object.
func (s S3Source) Load(ctx context.Context) (*Table, error) {
	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: s3://%s/%s: %v", ErrSourceUnavailable, s.Bucket, s.Key, err)
	}
	defer out.Body.Close()

	t, err := ReadCSV(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3://%s/%s: %w", s.Bucket, s.Key, err)
	}
	return t, nil
}

// S3Options configures the client SourceFor builds for s3:// URIs.
type S3Options struct {
	Region string

	// Endpoint overrides the S3 endpoint, e.g. for MinIO. Path-style
	// addressing is used when it is set.
	Endpoint string
}

// NewS3Client builds an S3 client. Static credentials are taken from
// AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY and AWS_SESSION_TOKEN when set;
// otherwise requests are anonymous, which suits public buckets.
func NewS3Client(opts S3Options) *s3.Client {
	region := opts.Region
	if region == "" {
		region = "us-east-1"
	}

	var creds aws.CredentialsProvider = aws.AnonymousCredentials{}
	if id, secret := os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY"); id != "" && secret != "" {
		token := os.Getenv("AWS_SESSION_TOKEN")
		creds = aws.NewCredentialsCache(aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{
				AccessKeyID:     id,
				SecretAccessKey: secret,
				SessionToken:    token,
				Source:          "Environment",
			}, nil
		}))
	}

	return s3.New(s3.Options{
		Region:      region,
		Credentials: creds,
	}, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
}

// SourceFor picks a source from a URI:
//
//	""  or "embedded:"   the bundled sample
//	"s3://bucket/key"    an S3 object
//	anything else        a local file path
func SourceFor(uri string, opts S3Options) (Source, error) {
	switch {
	case uri == "" || uri == "embedded:":
		return EmbeddedSource(), nil

	case strings.HasPrefix(uri, "s3://"):
		bucket, key, ok := strings.Cut(strings.TrimPrefix(uri, "s3://"), "/")
		if !ok || bucket == "" || key == "" {
			return nil, fmt.Errorf("%w: invalid S3 URI %q", ErrSourceUnavailable, uri)
		}
		return S3Source{Client: NewS3Client(opts), Bucket: bucket, Key: key}, nil

	default:
		return FileSource{Path: uri}, nil
	}
}
