package hostiface

// WKTProjection is a minimal string-backed Projection, sufficient for the
// container's own purposes (it round-trips WKT text verbatim, never
// parsing it) and for exercising Projection in tests without a real
// coordinate-reference-system library.
type WKTProjection struct {
	wkt string
}

// NewWKTProjection wraps an existing WKT string.
func NewWKTProjection(wkt string) *WKTProjection {
	return &WKTProjection{wkt: wkt}
}

func (p *WKTProjection) WKT() string {
	return p.wkt
}

func (p *WKTProjection) FromWKT(wkt string) error {
	p.wkt = wkt
	return nil
}
