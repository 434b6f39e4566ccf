// Package hostiface declares the narrow surface the container needs from
// its host raster library: a projection object, a geotransform, a
// cancellable progress callback, and a seekable byte stream. The host
// library's own dataset/band abstractions, resampling algorithms, and
// driver registration are deliberately outside this package — the
// container only ever sees these four shapes.
package hostiface

import "io"

// Projection carries a coordinate reference system as WKT text. The
// container stores only the WKT string; it never parses or validates it.
type Projection interface {
	WKT() string
	FromWKT(wkt string) error
}

// GeoTransform maps pixel/line coordinates to georeferenced space using
// the standard six-coefficient affine transform:
// Xgeo = GT[0] + col*GT[1] + row*GT[2]
// Ygeo = GT[3] + col*GT[4] + row*GT[5]
type GeoTransform [6]float64

// ProgressFunc reports fractional completion and an optional message.
// Returning false requests cancellation of the in-progress operation.
type ProgressFunc func(fraction float64, message string) (shouldContinue bool)

// ByteStream is the minimal seekable, tellable I/O surface the container
// writes to and reads from. A plain *os.File satisfies it once wrapped by
// OSFile; pkg/objectsink's multipart upload sink satisfies it too, with
// Seek and Read unsupported-erroring since an object-store write target
// is always sequential and single-pass.
type ByteStream interface {
	io.Reader
	io.Writer
	io.Seeker
	io.Closer
	Tell() (int64, error)
}
