package band

import (
	"math"
	"testing"

	"github.com/emuformat/emu-go/pkg/hostiface"
)

func TestNewBandStatsAreNaN(t *testing.T) {
	b := New(hostiface.Byte, 100, 100, 16)
	for name, v := range map[string]float64{"Min": b.Min, "Max": b.Max, "Mean": b.Mean, "StdDev": b.StdDev} {
		if !math.IsNaN(v) {
			t.Errorf("%s = %v, want NaN", name, v)
		}
	}
	if b.NoDataSet {
		t.Error("NoDataSet = true, want false")
	}
}

func TestSetMetadataReservedRoutesToStats(t *testing.T) {
	b := New(hostiface.Byte, 100, 100, 16)
	if err := b.SetMetadata("STATISTICS_MINIMUM", "1.5"); err != nil {
		t.Fatalf("SetMetadata failed: %v", err)
	}
	if b.Min != 1.5 {
		t.Errorf("Min = %v, want 1.5", b.Min)
	}
	if _, ok := b.Metadata["STATISTICS_MINIMUM"]; ok {
		t.Error("reserved key leaked into free-form metadata")
	}
}

func TestSetMetadataFreeForm(t *testing.T) {
	b := New(hostiface.Byte, 100, 100, 16)
	if err := b.SetMetadata("SENSOR", "Landsat8"); err != nil {
		t.Fatalf("SetMetadata failed: %v", err)
	}
	if b.Metadata["SENSOR"] != "Landsat8" {
		t.Errorf("Metadata[SENSOR] = %q, want Landsat8", b.Metadata["SENSOR"])
	}
}

func TestCreateOverviewsByFactor(t *testing.T) {
	b := New(hostiface.UInt16, 1024, 1024, 512)
	if err := b.CreateOverviewsByFactor([]int{2, 4}); err != nil {
		t.Fatalf("CreateOverviewsByFactor failed: %v", err)
	}
	if len(b.Overviews) != 2 {
		t.Fatalf("got %d overviews, want 2", len(b.Overviews))
	}
	if b.Overviews[0].XSize != 512 || b.Overviews[0].TileSize != 256 {
		t.Errorf("overview 0 = %+v, want XSize 512 TileSize 256", b.Overviews[0])
	}
	if b.Overviews[1].XSize != 256 || b.Overviews[1].TileSize != 128 {
		t.Errorf("overview 1 = %+v, want XSize 256 TileSize 128", b.Overviews[1])
	}
}

func TestCreateOverviewsAlreadySet(t *testing.T) {
	b := New(hostiface.Byte, 100, 100, 16)
	if err := b.CreateOverviewsByFactor([]int{2}); err != nil {
		t.Fatalf("CreateOverviewsByFactor failed: %v", err)
	}
	if err := b.CreateOverviewsByFactor([]int{2}); err != ErrOverviewsAlreadySet {
		t.Errorf("got %v, want ErrOverviewsAlreadySet", err)
	}
	if err := b.CreateOverviewsExplicit([]Overview{{XSize: 1, YSize: 1, TileSize: 1}}); err != ErrOverviewsAlreadySet {
		t.Errorf("got %v, want ErrOverviewsAlreadySet", err)
	}
}

func TestCreateOverviewsExplicit(t *testing.T) {
	b := New(hostiface.Byte, 100, 100, 16)
	descs := []Overview{
		{XSize: 50, YSize: 50, TileSize: 8},
		{XSize: 25, YSize: 25, TileSize: 4},
	}
	if err := b.CreateOverviewsExplicit(descs); err != nil {
		t.Fatalf("CreateOverviewsExplicit failed: %v", err)
	}
	if b.Overviews[0].Level != 0 || b.Overviews[1].Level != 1 {
		t.Errorf("levels not assigned in order: %+v", b.Overviews)
	}
}
