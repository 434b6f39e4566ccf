package container

import (
	"context"
	"strings"

	"github.com/emuformat/emu-go/pkg/hostiface"
	"github.com/emuformat/emu-go/pkg/objectsink"
)

const s3Scheme = "s3://"

// OpenWriteTarget resolves dest into a hostiface.ByteStream for Create:
// an "s3://bucket/key" URI is opened as a multipart upload sink sized
// per expectedFileSize, any other dest is treated as a local file path
// that never touches the AWS SDK.
func OpenWriteTarget(ctx context.Context, dest string, expectedFileSize int64) (hostiface.ByteStream, error) {
	if bucket, key, ok := parseS3URI(dest); ok {
		return objectsink.NewMultipartSink(ctx, bucket, key, expectedFileSize)
	}
	return hostiface.CreateOSFile(dest)
}

func parseS3URI(dest string) (bucket, key string, ok bool) {
	if !strings.HasPrefix(dest, s3Scheme) {
		return "", "", false
	}
	rest := strings.TrimPrefix(dest, s3Scheme)
	bucket, key, found := strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}
