// Package cli implements the command-line interface shared by emuinfo
// and emucopy.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/emuformat/emu-go/pkg/container"
	"github.com/emuformat/emu-go/pkg/hostiface"
	"github.com/emuformat/emu-go/pkg/logging"
	"github.com/emuformat/emu-go/pkg/membudget"
	"github.com/emuformat/emu-go/pkg/objectsink"
	"github.com/emuformat/emu-go/pkg/sysmem"
)

// RunInfo implements emuinfo: open a container read-only and print a
// header/footer/tile-index/RAT summary to w.
func RunInfo(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("emuinfo", flag.ContinueOnError)
	debug := fs.Bool("debug", false, "enable debug logging")
	human := fs.Bool("human", false, "human-readable log output")
	useMmap := fs.Bool("mmap", false, "open via mmap instead of a regular file read")
	exportRAT := fs.String("export-rat", "", "export band -export-rat-band's raster attribute table to this Parquet file")
	exportRATBand := fs.Int("export-rat-band", 0, "band index the -export-rat table is read from")

	if err := fs.Parse(args); err != nil {
		return err
	}
	logging.Init(*debug, *human)

	paths := fs.Args()
	if len(paths) != 1 {
		return errors.New("usage: emuinfo [-mmap] [-export-rat <out.parquet> [-export-rat-band N]] <file.emu>")
	}
	path := paths[0]

	var (
		c   *container.Container
		err error
	)
	if *useMmap {
		c, err = container.OpenMmap(path, container.OpenOptions{})
		if err == nil {
			defer c.Release()
		}
	} else {
		var f *hostiface.OSFile
		f, err = hostiface.OpenOSFile(path)
		if err == nil {
			c, err = container.Open(f, container.OpenOptions{})
		}
	}
	if err != nil {
		return fmt.Errorf("emuinfo: open %s: %w", path, err)
	}

	if *exportRAT != "" {
		b, err := c.Band(*exportRATBand)
		if err != nil {
			return fmt.Errorf("emuinfo: export-rat: %w", err)
		}
		if b.RAT == nil {
			return fmt.Errorf("emuinfo: export-rat: band %d has no raster attribute table", *exportRATBand)
		}
		if err := b.RAT.ExportParquet(*exportRAT); err != nil {
			return fmt.Errorf("emuinfo: export-rat: %w", err)
		}
	}

	return printSummary(w, c)
}

func printSummary(w io.Writer, c *container.Container) error {
	width, height := c.RasterSize()
	fmt.Fprintf(w, "raster: %dx%d, tile %d, bands %d\n", width, height, c.TileSize(), c.BandCount())
	gt := c.GeoTransform()
	fmt.Fprintf(w, "geotransform: %v\n", gt)
	if p := c.Projection(); p != nil {
		fmt.Fprintf(w, "projection: %s\n", p.WKT())
	}

	for i := 0; i < c.BandCount(); i++ {
		b, err := c.Band(i)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "band %d: min=%g max=%g mean=%g stddev=%g nodata=%v overviews=%d rat_rows=%d rat_cols=%d\n",
			i, b.Min, b.Max, b.Mean, b.StdDev, b.NoDataSet, len(b.Overviews), b.RAT.RowCount(), b.RAT.ColumnCount())
		for j, ov := range b.Overviews {
			fmt.Fprintf(w, "  overview %d: %dx%d tile %d\n", j, ov.XSize, ov.YSize, ov.TileSize)
		}
	}
	return nil
}

// RunCopy implements emucopy: CreateCopy a source container into a
// destination path, reporting progress to w.
func RunCopy(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("emucopy", flag.ContinueOnError)
	debug := fs.Bool("debug", false, "enable debug logging")
	human := fs.Bool("human", false, "human-readable log output")
	budgetFrac := fs.Float64("budget-frac", 0, "fraction of system RAM to budget for tile/chunk buffers (0 disables the budget)")

	if err := fs.Parse(args); err != nil {
		return err
	}
	logging.Init(*debug, *human)

	paths := fs.Args()
	if len(paths) != 2 {
		return errors.New("usage: emucopy <src.emu> <dst.emu>")
	}
	srcPath, dstPath := paths[0], paths[1]

	srcFile, err := hostiface.OpenOSFile(srcPath)
	if err != nil {
		return fmt.Errorf("emucopy: open source %s: %w", srcPath, err)
	}
	src, err := container.Open(srcFile, container.OpenOptions{})
	if err != nil {
		return fmt.Errorf("emucopy: %w", err)
	}

	width, height := src.RasterSize()
	firstBand, err := src.Band(0)
	if err != nil {
		return fmt.Errorf("emucopy: %w", err)
	}
	elemSize, err := firstBand.DataType.ElementSize()
	if err != nil {
		return fmt.Errorf("emucopy: %w", err)
	}
	expectedSize := objectsink.ExpectedFileSize(width, height, uint64(src.BandCount()), elemSize)

	dstStream, err := container.OpenWriteTarget(context.Background(), dstPath, expectedSize)
	if err != nil {
		return fmt.Errorf("emucopy: open destination %s: %w", dstPath, err)
	}

	var budget *membudget.Budget
	if *budgetFrac > 0 {
		if result := sysmem.Total(); result.Reliable {
			budget = membudget.New(membudget.Config{
				TotalBytes: uint64(float64(result.TotalBytes) * *budgetFrac),
				Source:     membudget.BudgetSourceCLI,
			})
		}
	}

	progress := func(frac float64, stage string) bool {
		fmt.Fprintf(w, "\r%s: %5.1f%%", stage, frac*100)
		return true
	}

	if _, err := container.CreateCopy(dstStream, src, budget, progress); err != nil {
		return fmt.Errorf("emucopy: %w", err)
	}
	fmt.Fprintln(w)
	return nil
}

// Run dispatches to a subcommand; it exists so both cmd/emuinfo and
// cmd/emucopy can share a single-binary entry point if one is built.
func Run(args []string, w io.Writer) error {
	if len(args) == 0 {
		return errors.New("usage: emu <info|copy> [options]")
	}
	switch args[0] {
	case "info":
		return RunInfo(args[1:], w)
	case "copy":
		return RunCopy(args[1:], w)
	default:
		return fmt.Errorf("unknown command: %s", args[0])
	}
}
