package objectsink

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/emuformat/emu-go/pkg/hostiface"
)

// ErrNotSeekable is returned by Stream's Read and Seek: a multipart
// upload is write-once and sequential, so neither is supported.
var ErrNotSeekable = errors.New("objectsink: object-store write stream does not support read or seek")

// sink adapts an asynchronous, reader-driven upload (S3's
// manager.Uploader wants an io.Reader, not something it writes into) to
// the sequential io.WriteCloser the container's Create path expects, the
// same way a download manager is adapted behind a plain io.ReadCloser
// for the opposite direction.
type sink struct {
	pw   *io.PipeWriter
	done <-chan error
}

func (s *sink) Write(p []byte) (int, error) {
	return s.pw.Write(p)
}

// Close signals end-of-stream to the uploader and waits for the upload
// to finish, surfacing its error if any.
func (s *sink) Close() error {
	closeErr := s.pw.Close()
	uploadErr := <-s.done
	if uploadErr != nil {
		return fmt.Errorf("objectsink: upload: %w", uploadErr)
	}
	return closeErr
}

// newPipeSink starts upload in a goroutine fed by the read side of a
// fresh io.Pipe, and returns the write side wrapped as an io.WriteCloser.
func newPipeSink(upload func(r io.Reader) error) io.WriteCloser {
	pr, pw := io.Pipe()
	done := make(chan error, 1)

	go func() {
		err := upload(pr)
		pr.CloseWithError(err)
		done <- err
	}()

	return &sink{pw: pw, done: done}
}

// Stream wraps a sequential upload sink with a monotonic write cursor so
// it satisfies hostiface.ByteStream: Container.Create's footer-writing
// path only ever calls Tell to record an offset it has already written
// past, never Seek or Read, since object-store Create is single-pass.
type Stream struct {
	w      io.WriteCloser
	offset int64
}

func (s *Stream) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	s.offset += int64(n)
	return n, err
}

func (s *Stream) Read([]byte) (int, error) {
	return 0, fmt.Errorf("%w: Read", ErrNotSeekable)
}

func (s *Stream) Seek(int64, int) (int64, error) {
	return 0, fmt.Errorf("%w: Seek", ErrNotSeekable)
}

func (s *Stream) Tell() (int64, error) {
	return s.offset, nil
}

func (s *Stream) Close() error {
	return s.w.Close()
}

// NewMultipartSink returns a hostiface.ByteStream that uploads everything
// written to it to s3://bucket/key as a multipart upload, sized per
// PartSize(expectedFileSize). Container.Create uses this as its write
// target whenever the destination is an object-store URI, treating it
// exactly like an ordinary file handle.
func NewMultipartSink(ctx context.Context, bucket, key string, expectedFileSize int64) (hostiface.ByteStream, error) {
	partSize, err := PartSize(expectedFileSize)
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("objectsink: load AWS config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = partSize
	})

	w := newPipeSink(func(r io.Reader) error {
		_, err := uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
			Body:   r,
		})
		return err
	})
	return &Stream{w: w}, nil
}
