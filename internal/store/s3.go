package store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/casyncd/casyncd/internal/cdcerr"
	"github.com/casyncd/casyncd/internal/chunkid"
)

// S3Config mirrors the teacher's backend.S3Config.
type S3Config struct {
	Bucket       string
	Region       string
	Endpoint     string // for S3-compatible services (MinIO, Backblaze B2)
	AccessKey    string
	SecretKey    string
	Prefix       string // optional key prefix under which chunks are stored
	MaxBandwidth int64  // bytes/sec per Put, 0 = unlimited
}

// S3Store backs a ChunkStore with an S3-compatible object store, one
// object per chunk, keyed by chunkid.ShardedPath the same way LocalStore
// keys its files.
type S3Store struct {
	client       *s3.Client
	bucket       string
	prefix       string
	maxBandwidth int64
}

// NewS3Store builds an S3Store from cfg, adapting the teacher's
// NewS3Backend (same aws-sdk-go-v2 config/credentials wiring, same
// path-style endpoint override for MinIO-compatible services).
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	const op = "store.NewS3Store"

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey, cfg.SecretKey, "",
		)),
	)
	if err != nil {
		return nil, cdcerr.New(cdcerr.ConfigError, op, err)
	}

	var client *s3.Client
	if cfg.Endpoint != "" {
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	} else {
		client = s3.NewFromConfig(awsCfg)
	}

	return &S3Store{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix, maxBandwidth: cfg.MaxBandwidth}, nil
}

func (s *S3Store) key(id [32]byte) string {
	k := chunkid.ShardedPath(id)
	if s.prefix == "" {
		return k
	}
	return s.prefix + "/" + k
}

func (s *S3Store) Put(ctx context.Context, id [32]byte, frame []byte) error {
	const op = "store.S3Store.Put"

	var body io.Reader = bytes.NewReader(frame)
	if s.maxBandwidth > 0 {
		body = newThrottledReader(bytes.NewReader(frame), s.maxBandwidth)
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key(id)),
		Body:          body,
		ContentLength: aws.Int64(int64(len(frame))),
	})
	if err != nil {
		return cdcerr.WithChunk(cdcerr.BackendError, op, chunkid.Hex(id), -1, err)
	}
	return nil
}

func (s *S3Store) Get(ctx context.Context, id [32]byte) ([]byte, error) {
	const op = "store.S3Store.Get"
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, cdcerr.WithChunk(cdcerr.NotFound, op, chunkid.Hex(id), -1, err)
		}
		return nil, cdcerr.WithChunk(cdcerr.BackendError, op, chunkid.Hex(id), -1, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, cdcerr.New(cdcerr.IoError, op, err)
	}
	return data, nil
}

func (s *S3Store) GetReader(ctx context.Context, id [32]byte) (io.ReadCloser, error) {
	const op = "store.S3Store.GetReader"
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, cdcerr.WithChunk(cdcerr.NotFound, op, chunkid.Hex(id), -1, err)
		}
		return nil, cdcerr.WithChunk(cdcerr.BackendError, op, chunkid.Hex(id), -1, err)
	}
	return resp.Body, nil
}

func (s *S3Store) Exists(ctx context.Context, id [32]byte) (bool, error) {
	const op = "store.S3Store.Exists"
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, cdcerr.WithChunk(cdcerr.BackendError, op, chunkid.Hex(id), -1, err)
	}
	return true, nil
}

func (s *S3Store) Delete(ctx context.Context, id [32]byte) error {
	const op = "store.S3Store.Delete"
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil && !isNotFound(err) {
		return cdcerr.WithChunk(cdcerr.BackendError, op, chunkid.Hex(id), -1, err)
	}
	return nil
}

func (s *S3Store) List(ctx context.Context) ([][32]byte, error) {
	const op = "store.S3Store.List"
	var ids [][32]byte

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, cdcerr.New(cdcerr.BackendError, op, err)
		}
		for _, obj := range page.Contents {
			key := strings.TrimSuffix(*obj.Key, ".cacnk")
			hex := key[strings.LastIndex(key, "/")+1:]
			id, err := chunkid.Parse(hex)
			if err != nil {
				continue
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *S3Store) Stats(ctx context.Context) (Stats, error) {
	const op = "store.S3Store.Stats"
	var st Stats

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return Stats{}, cdcerr.New(cdcerr.BackendError, op, err)
		}
		for _, obj := range page.Contents {
			st.ChunkCount++
			st.TotalBytes += aws.ToInt64(obj.Size)
		}
	}
	return st, nil
}

// isNotFound mirrors the teacher's S3Backend.Exists string-matching
// fallback, refined to also check smithy's typed API error when present.
func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return strings.Contains(err.Error(), "NotFound") || strings.Contains(err.Error(), "404")
}

// throttledReader reproduces the teacher's backend.throttledReader:
// sleeps between reads so the long-run average rate stays at or below
// bytesPerSec.
type throttledReader struct {
	reader      io.Reader
	bytesPerSec int64
	start       time.Time
	bytesRead   int64
}

func newThrottledReader(r io.Reader, bytesPerSec int64) *throttledReader {
	return &throttledReader{reader: r, bytesPerSec: bytesPerSec, start: time.Now()}
}

func (t *throttledReader) Read(p []byte) (int, error) {
	elapsed := time.Since(t.start)
	expected := time.Duration(float64(t.bytesRead) / float64(t.bytesPerSec) * float64(time.Second))
	if expected > elapsed {
		time.Sleep(expected - elapsed)
	}

	n, err := t.reader.Read(p)
	t.bytesRead += int64(n)
	return n, err
}
