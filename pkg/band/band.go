// Package band implements BandState: per-band metadata (data type,
// no-data, statistics, thematic flag), the band's overview hierarchy, and
// its owned raster attribute table.
package band

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/emuformat/emu-go/pkg/codec"
	"github.com/emuformat/emu-go/pkg/hostiface"
	"github.com/emuformat/emu-go/pkg/rat"
)

// ErrOverviewsAlreadySet is returned by either overview-creation flavour
// once overviews have already been created for this band.
var ErrOverviewsAlreadySet = errors.New("band: overviews already set")

// Overview describes one pyramid level's geometry. It is immutable once
// created.
type Overview struct {
	Level    int
	XSize    uint64
	YSize    uint64
	TileSize uint64
}

// State is one band's structural metadata. Every field other than the
// metadata map and owned RAT store is fixed at band-creation time or
// written exactly once (statistics, no-data, overviews).
type State struct {
	DataType hostiface.DataType

	XSize    uint64
	YSize    uint64
	TileSize uint64

	NoDataSet bool
	NoData    int64

	Min    float64
	Max    float64
	Mean   float64
	StdDev float64

	Thematic bool

	Overviews []Overview

	// Metadata holds free-form KEY=VALUE pairs not routed to one of the
	// structural fields above.
	Metadata map[string]string

	RAT *rat.Store
}

// New creates an empty band with NaN statistics and an empty RAT store;
// statistics stay NaN until explicitly set.
func New(dataType hostiface.DataType, xSize, ySize, tileSize uint64) *State {
	return &State{
		DataType: dataType,
		XSize:    xSize,
		YSize:    ySize,
		TileSize: tileSize,
		Min:      math.NaN(),
		Max:      math.NaN(),
		Mean:     math.NaN(),
		StdDev:   math.NaN(),
		Metadata: make(map[string]string),
		RAT:      rat.NewStore(),
	}
}

// SetNoData records a no-data value and marks it as set.
func (s *State) SetNoData(v int64) {
	s.NoDataSet = true
	s.NoData = v
}

// ClearNoData removes any no-data value.
func (s *State) ClearNoData() {
	s.NoDataSet = false
	s.NoData = 0
}

// SetMetadata assigns kv to the band's metadata. If key is one of the
// reserved statistics keys, the corresponding structural field is
// updated instead of the free-form map. Non-numeric values for a
// reserved key return an error.
func (s *State) SetMetadata(key, value string) error {
	if !codec.IsReservedKey(key) {
		s.Metadata[key] = value
		return nil
	}

	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("band: parse %s: %w", key, err)
	}
	switch key {
	case "STATISTICS_MINIMUM":
		s.Min = f
	case "STATISTICS_MAXIMUM":
		s.Max = f
	case "STATISTICS_MEAN":
		s.Mean = f
	case "STATISTICS_STDDEV":
		s.StdDev = f
	}
	return nil
}

// CreateOverviewsByFactor creates one overview per decimation factor in
// factors, sized as floor(parentSize/factor), floor(parentTileSize/factor).
// This is a one-shot operation: a second call (by either flavour) returns
// ErrOverviewsAlreadySet.
func (s *State) CreateOverviewsByFactor(factors []int) error {
	if len(s.Overviews) > 0 {
		return ErrOverviewsAlreadySet
	}
	overviews := make([]Overview, len(factors))
	for i, f := range factors {
		if f <= 0 {
			return errors.New("band: overview decimation factor must be positive")
		}
		overviews[i] = Overview{
			Level:    i,
			XSize:    s.XSize / uint64(f),
			YSize:    s.YSize / uint64(f),
			TileSize: s.TileSize / uint64(f),
		}
	}
	s.Overviews = overviews
	return nil
}

// CreateOverviewsExplicit creates overviews from explicit geometry
// triples, used by CreateCopy to mirror a source hierarchy exactly.
func (s *State) CreateOverviewsExplicit(descs []Overview) error {
	if len(s.Overviews) > 0 {
		return ErrOverviewsAlreadySet
	}
	overviews := make([]Overview, len(descs))
	for i, d := range descs {
		d.Level = i
		overviews[i] = d
	}
	s.Overviews = overviews
	return nil
}
