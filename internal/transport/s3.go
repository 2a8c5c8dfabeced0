package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"tt-go/internal/tt"
)

const (
	metaFileName = "file-name"
	metaCaption  = "caption"
)

// S3Options configures an S3Transport.
type S3Options struct {
	Name            string
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string // optional, for S3-compatible services
	AccessKeyID     string // optional, static credentials
	SecretAccessKey string
}

// S3Transport keeps every destination under its own key prefix of one bucket:
//
//	<prefix>/<destination>/<message ID>
//
// The file name and caption travel as object metadata.
type S3Transport struct {
	name     string
	bucket   string
	prefix   string
	client   *s3.Client
	uploader *manager.Uploader

	mu     sync.Mutex
	lastID int64
}

// NewS3Transport creates an S3 transport using the default AWS credential
// chain unless static credentials are given.
func NewS3Transport(ctx context.Context, opts S3Options) (*S3Transport, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 transport requires s3_bucket to be set")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Transport{
		name:     opts.Name,
		bucket:   opts.Bucket,
		prefix:   opts.Prefix,
		client:   client,
		uploader: manager.NewUploader(client),
	}, nil
}

func (s *S3Transport) Name() string {
	return s.name
}

func (s *S3Transport) key(destination, id int64) string {
	return objectKey(s.prefix, destination, id)
}

func objectKey(prefix string, destination, id int64) string {
	return path.Join(prefix, strconv.FormatInt(destination, 10), strconv.FormatInt(id, 10))
}

// newID returns a strictly increasing message ID.
func (s *S3Transport) newID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := time.Now().UnixNano()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return id
}

func (s *S3Transport) link(destination, id int64) string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, s.key(destination, id))
}

func (s *S3Transport) ref(destination, id, size int64, metadata map[string]string) *tt.RemoteRef {
	name, caption := decodeMetadata(metadata)
	return &tt.RemoteRef{
		MessageID:     id,
		DestinationID: destination,
		SenderName:    s.name,
		FileName:      name,
		FileSize:      size,
		Caption:       caption,
		Link:          s.link(destination, id),
	}
}

func encodeMetadata(name, caption string) map[string]string {
	return map[string]string{
		metaFileName: url.QueryEscape(name),
		metaCaption:  url.QueryEscape(caption),
	}
}

func decodeMetadata(metadata map[string]string) (name, caption string) {
	name, _ = url.QueryUnescape(metadata[metaFileName])
	caption, _ = url.QueryUnescape(metadata[metaCaption])
	return name, caption
}

// SendDocument uploads the document as a new object.
func (s *S3Transport) SendDocument(ctx context.Context, destination int64, r io.Reader, size int64, name, caption string) (*tt.RemoteRef, error) {
	id := s.newID()
	counter := &countingReader{r: r}
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(s.key(destination, id)),
		Body:     counter,
		Metadata: encodeMetadata(name, caption),
	})
	if err != nil {
		return nil, fmt.Errorf("uploading %s: %w", name, err)
	}
	if counter.n != size {
		s.DeleteMessages(ctx, destination, []int64{id})
		return nil, fmt.Errorf("size mismatch: expected %d bytes, got %d", size, counter.n)
	}
	return &tt.RemoteRef{
		MessageID:     id,
		DestinationID: destination,
		SenderName:    s.name,
		FileName:      name,
		FileSize:      size,
		Caption:       caption,
		Link:          s.link(destination, id),
	}, nil
}

// ForwardMessages copies objects server-side from one destination prefix to another.
func (s *S3Transport) ForwardMessages(ctx context.Context, destination, from int64, messageIDs []int64) ([]*tt.RemoteRef, error) {
	refs := make([]*tt.RemoteRef, 0, len(messageIDs))
	for _, srcID := range messageIDs {
		head, err := s.head(ctx, from, srcID)
		if err != nil {
			return nil, err
		}
		if head == nil {
			return nil, fmt.Errorf("message %d not found in %d", srcID, from)
		}

		id := s.newID()
		_, err = s.client.CopyObject(ctx, &s3.CopyObjectInput{
			Bucket:     aws.String(s.bucket),
			Key:        aws.String(s.key(destination, id)),
			CopySource: aws.String(url.PathEscape(s.bucket + "/" + s.key(from, srcID))),
		})
		if err != nil {
			return nil, fmt.Errorf("copying message %d: %w", srcID, err)
		}
		refs = append(refs, s.ref(destination, id, aws.ToInt64(head.ContentLength), head.Metadata))
	}
	return refs, nil
}

func (s *S3Transport) head(ctx context.Context, destination, id int64) (*s3.HeadObjectOutput, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(destination, id)),
	})
	if err != nil {
		var notFound *types.NotFound
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
			return nil, nil
		}
		return nil, fmt.Errorf("head message %d: %w", id, err)
	}
	return out, nil
}

// GetMessages returns the requested messages, nil for the missing ones.
func (s *S3Transport) GetMessages(ctx context.Context, destination int64, messageIDs []int64) ([]*tt.RemoteRef, error) {
	refs := make([]*tt.RemoteRef, len(messageIDs))
	for i, id := range messageIDs {
		head, err := s.head(ctx, destination, id)
		if err != nil {
			return nil, err
		}
		if head != nil {
			refs[i] = s.ref(destination, id, aws.ToInt64(head.ContentLength), head.Metadata)
		}
	}
	return refs, nil
}

// DeleteMessages removes objects. Missing objects are ignored by S3.
func (s *S3Transport) DeleteMessages(ctx context.Context, destination int64, messageIDs []int64) error {
	if len(messageIDs) == 0 {
		return nil
	}
	objects := make([]types.ObjectIdentifier, 0, len(messageIDs))
	for _, id := range messageIDs {
		objects = append(objects, types.ObjectIdentifier{Key: aws.String(s.key(destination, id))})
	}
	_, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(s.bucket),
		Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
	})
	if err != nil {
		return fmt.Errorf("deleting messages: %w", err)
	}
	return nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// Compile-time check that S3Transport implements tt.Transport interface
var _ tt.Transport = (*S3Transport)(nil)
