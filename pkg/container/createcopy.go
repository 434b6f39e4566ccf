package container

import (
	"fmt"
	"time"

	"github.com/emuformat/emu-go/pkg/band"
	"github.com/emuformat/emu-go/pkg/hostiface"
	"github.com/emuformat/emu-go/pkg/logging"
	"github.com/emuformat/emu-go/pkg/membudget"
	"github.com/emuformat/emu-go/pkg/rat"
)

// CreateCopy builds a cloud-optimised copy of src into dst: coarsest
// overview tiles first, descending to the finest overview, then each
// band's RAT, then full-resolution tiles, then metadata. src must be
// open for reading; the returned Container has already been Closed.
//
// progress, if non-nil, is polled once per tile; a false return aborts
// the copy with ErrCancelled. Cancelling does not roll back the
// partially-written destination stream.
func CreateCopy(dst hostiface.ByteStream, src *Container, budget *membudget.Budget, progress hostiface.ProgressFunc) (*Container, error) {
	if src.mode != modeRead {
		return nil, fmt.Errorf("%w: CreateCopy source must be open for reading", ErrUnsupported)
	}
	if err := validateUniformBlockSize(src); err != nil {
		return nil, err
	}
	start := time.Now()
	log := logging.WithPhase("createcopy")

	dstContainer, err := Create(dst, CreateOptions{
		DataType:       src.dataType,
		BandCount:      len(src.bands),
		RasterWidth:    src.rasterW,
		RasterHeight:   src.rasterH,
		TileSize:       src.tileSize,
		CloudOptimised: true,
		Budget:         budget,
	})
	if err != nil {
		return nil, fmt.Errorf("container: create copy destination: %w", err)
	}

	maxLevels := 1
	for i, b := range src.bands {
		dstBand, err := dstContainer.Band(i)
		if err != nil {
			return nil, err
		}
		if len(b.Overviews) > 0 {
			if err := dstBand.CreateOverviewsExplicit(b.Overviews); err != nil {
				return nil, fmt.Errorf("container: mirror overviews for band %d: %w", i, err)
			}
		}
		if len(b.Overviews)+1 > maxLevels {
			maxLevels = len(b.Overviews) + 1
		}
	}

	totalBlocks := countTotalBlocks(src, maxLevels)
	var copied int

	report := func() error {
		copied++
		if progress == nil {
			return nil
		}
		fraction := float64(copied) / float64(totalBlocks)
		if !progress(fraction, "copying tiles") {
			return ErrCancelled
		}
		return nil
	}

	for level := maxLevels - 1; level >= 1; level-- {
		levelStart := time.Now()
		if err := copyLevel(dstContainer, src, level, report); err != nil {
			return nil, err
		}
		logging.ChunkComplete(log, "createcopy", time.Since(levelStart)).
			Int("level", level).
			Log("overview_built")
	}

	for i, b := range src.bands {
		dstBand, err := dstContainer.Band(i)
		if err != nil {
			return nil, err
		}
		if err := copyRAT(dstBand, b); err != nil {
			return nil, fmt.Errorf("container: copy RAT for band %d: %w", i, err)
		}
	}

	if err := copyLevel(dstContainer, src, 0, report); err != nil {
		return nil, err
	}

	for i, b := range src.bands {
		dstBand, err := dstContainer.Band(i)
		if err != nil {
			return nil, err
		}
		copyBandScalars(dstBand, b)
		for k, v := range b.Metadata {
			if err := dstBand.SetMetadata(k, v); err != nil {
				return nil, fmt.Errorf("container: copy band %d metadata: %w", i, err)
			}
		}
	}
	for k, v := range src.metadata {
		dstContainer.SetMetadata(k, v)
	}
	dstContainer.SetGeoTransform(src.geoTransform)
	if src.projection != nil {
		dstContainer.SetProjection(hostiface.NewWKTProjection(src.projection.WKT()))
	}

	if err := dstContainer.Close(); err != nil {
		return nil, fmt.Errorf("container: close copy destination: %w", err)
	}

	logging.NewCompletionEvent(log, "copy_completed", "createcopy", time.Since(start)).
		Int("band_count", len(src.bands)).
		Int("max_levels", maxLevels).
		Count("tiles_copied", int64(copied)).
		Log("copy_completed")

	return dstContainer, nil
}

func validateUniformBlockSize(src *Container) error {
	for i, b := range src.bands {
		if b.TileSize != src.tileSize {
			return fmt.Errorf("%w: band %d full-resolution tile size %d differs from container tile size %d",
				ErrUnsupported, i, b.TileSize, src.tileSize)
		}
		for j, ov := range b.Overviews {
			if j < len(src.bands[0].Overviews) && ov.TileSize != src.bands[0].Overviews[j].TileSize {
				return fmt.Errorf("%w: band %d overview %d tile size %d differs from band 0 overview %d tile size %d",
					ErrUnsupported, i, j, ov.TileSize, j, src.bands[0].Overviews[j].TileSize)
			}
		}
	}
	for i := 1; i < len(src.bands); i++ {
		if len(src.bands[i].Overviews) != len(src.bands[0].Overviews) {
			return fmt.Errorf("%w: band %d has %d overview levels, band 0 has %d",
				ErrUnsupported, i, len(src.bands[i].Overviews), len(src.bands[0].Overviews))
		}
	}
	return nil
}

func countTotalBlocks(src *Container, maxLevels int) int {
	total := 0
	for level := 0; level < maxLevels; level++ {
		for _, b := range src.bands {
			w, h, tileSize, err := src.levelGeometry(b, level)
			if err != nil {
				continue
			}
			if tileSize == 0 {
				continue
			}
			tilesX := (w + tileSize - 1) / tileSize
			tilesY := (h + tileSize - 1) / tileSize
			total += int(tilesX * tilesY)
		}
	}
	if total == 0 {
		total = 1
	}
	return total
}

// copyLevel copies every band's tiles at one overview level (or level 0
// for full resolution) in row-major order.
func copyLevel(dstContainer, src *Container, level int, report func() error) error {
	for bi, b := range src.bands {
		w, h, tileSize, err := src.levelGeometry(b, level)
		if err != nil {
			// Band has fewer overview levels than maxLevels; nothing to
			// copy at this level for this band.
			continue
		}
		if tileSize == 0 {
			continue
		}
		elemSize, err := src.dataType.ElementSize()
		if err != nil {
			return fmt.Errorf("container: element size: %w", err)
		}

		tilesX := int((w + tileSize - 1) / tileSize)
		tilesY := int((h + tileSize - 1) / tileSize)
		buf := make([]byte, int(tileSize)*int(tileSize)*elemSize)

		for ty := 0; ty < tilesY; ty++ {
			for tx := 0; tx < tilesX; tx++ {
				if err := src.ReadBlock(level, bi, tx, ty, buf); err != nil {
					return fmt.Errorf("container: read source tile level=%d band=%d (%d,%d): %w", level, bi, tx, ty, err)
				}
				if err := dstContainer.WriteBlock(level, bi, tx, ty, buf); err != nil {
					return fmt.Errorf("container: write destination tile level=%d band=%d (%d,%d): %w", level, bi, tx, ty, err)
				}
				if err := report(); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func copyBandScalars(dst, src *band.State) {
	if src.NoDataSet {
		dst.SetNoData(src.NoData)
	}
	dst.Min = src.Min
	dst.Max = src.Max
	dst.Mean = src.Mean
	dst.StdDev = src.StdDev
	dst.Thematic = src.Thematic
}

func copyRAT(dst, src *band.State) error {
	rowCount := src.RAT.RowCount()
	dst.RAT.SetRowCount(rowCount)

	for i := 0; i < src.RAT.ColumnCount(); i++ {
		col, err := src.RAT.Column(i)
		if err != nil {
			return err
		}
		dstCol, err := dst.RAT.AddColumn(col.Name, col.Type)
		if err != nil {
			return err
		}
		if rowCount == 0 {
			continue
		}
		switch col.Type {
		case rat.Integer:
			buf := make([]int64, rowCount)
			if err := src.RAT.ValuesIO(rat.Read, i, 0, rowCount, buf); err != nil {
				return err
			}
			if err := dst.RAT.ValuesIO(rat.Write, dstCol, 0, rowCount, buf); err != nil {
				return err
			}
		case rat.Real:
			buf := make([]float64, rowCount)
			if err := src.RAT.ValuesIO(rat.Read, i, 0, rowCount, buf); err != nil {
				return err
			}
			if err := dst.RAT.ValuesIO(rat.Write, dstCol, 0, rowCount, buf); err != nil {
				return err
			}
		case rat.String:
			buf := make([]string, rowCount)
			if err := src.RAT.ValuesIO(rat.Read, i, 0, rowCount, buf); err != nil {
				return err
			}
			if err := dst.RAT.ValuesIO(rat.Write, dstCol, 0, rowCount, buf); err != nil {
				return err
			}
		}
	}
	return nil
}
