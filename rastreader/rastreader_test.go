package rastreader

import (
	"encoding/binary"
	"strconv"
	"testing"

	"github.com/rs/zerolog"
	"golang.org/x/net/context"

	perr "github.com/prl900/dc_wms/errors"
	"github.com/prl900/dc_wms/geobox"
	"github.com/prl900/dc_wms/tile"
)

func testArchive(t *testing.T, root string, recs ...Record) *Archive {
	t.Helper()
	idx, err := NewIndex(recs)
	if err != nil {
		t.Fatal(err)
	}
	return NewArchive(idx, DirStore{Root: root}, zerolog.Nop())
}

func TestSearch(t *testing.T) {
	a := testArchive(t, t.TempDir(),
		record("in-late", "p", day(3), 0, 0, 10, 10),
		record("in-early", "p", day(1), 5, 5, 20, 20),
		record("far", "p", day(2), 100, 100, 110, 110),
		record("too-late", "p", day(9), 0, 0, 10, 10),
		record("other", "q", day(2), 0, 0, 10, 10),
	)
	window := geobox.Rect(2, 2, 8, 8)

	got, err := a.Search(context.Background(), "p", window, geobox.WebMerc, day(1), day(9))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "in-early" || got[1].ID != "in-late" {
		t.Fatalf("search = %v", got)
	}
	if got[0].Product != "p" || !got[0].Time.Equal(day(1)) || len(got[0].Footprint) != 1 {
		t.Errorf("dataset = %+v", got[0])
	}

	// end is exclusive
	got, _ = a.Search(context.Background(), "p", window, geobox.WebMerc, day(1), day(3))
	if len(got) != 1 || got[0].ID != "in-early" {
		t.Errorf("search before day 3 = %v", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := a.Search(ctx, "p", window, geobox.WebMerc, day(1), day(9)); err != context.Canceled {
		t.Errorf("cancelled search err = %v", err)
	}
}

func TestSearchFootprint(t *testing.T) {
	r := record("diag", "p", day(1), 0, 0, 10, 10)
	r.Footprint = [][2]float64{{6, 6}, {10, 6}, {10, 10}, {6, 10}}
	a := testArchive(t, t.TempDir(), r)

	got, _ := a.Search(context.Background(), "p", geobox.Rect(0, 0, 4, 4), geobox.WebMerc, day(1), day(2))
	if len(got) != 0 {
		t.Errorf("footprint outside window matched: %v", got)
	}
	got, _ = a.Search(context.Background(), "p", geobox.Rect(7, 7, 8, 8), geobox.WebMerc, day(1), day(2))
	if len(got) != 1 {
		t.Errorf("footprint inside window missed: %v", got)
	}
}

func TestLoadFailures(t *testing.T) {
	root := t.TempDir()
	a := testArchive(t, root, record("a", "p", day(1), 0, 0, 10, 10))
	gb, err := geobox.New(4, 4, geobox.Affine{0, 2.5, 0, 10, 0, -2.5}, geobox.WebMerc)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	ds := func(id string) []tile.Dataset { return []tile.Dataset{{ID: id, Time: day(1)}} }

	tests := []struct {
		name  string
		setup func()
		ds    []tile.Dataset
		bands []string
	}{
		{"unknown dataset", func() {}, ds("nope"), []string{"red"}},
		{"missing band", func() {}, ds("a"), []string{"nir"}},
		{"missing object", func() {}, ds("a"), []string{"red"}},
		{"short object", func() { writeObject(t, root, "a/red.bin", []byte{1, 2, 3}) }, ds("a"), []string{"red"}},
	}
	for _, tt := range tests {
		tt.setup()
		if _, err := a.Load(ctx, tt.ds, gb, tt.bands); !perr.IsCode(err, perr.ErrorCodeLoadFailure) {
			t.Errorf("%s: got %v, want load failure", tt.name, err)
		}
	}
}

func TestLoadNoDatasets(t *testing.T) {
	a := testArchive(t, t.TempDir(), record("a", "p", day(1), 0, 0, 10, 10))
	gb, _ := geobox.New(3, 2, geobox.Affine{0, 1, 0, 2, 0, -1}, geobox.WebMerc)

	img, err := a.Load(context.Background(), nil, gb, []string{"red"})
	if err != nil {
		t.Fatal(err)
	}
	band := img.Bands["red"]
	if img.Width != 3 || img.Height != 2 || len(band.Pix) != 6 {
		t.Fatalf("image %dx%d with %d pixels", img.Width, img.Height, len(band.Pix))
	}
	for _, v := range band.Pix {
		if v != band.NoData {
			t.Fatalf("pixel %v, want nodata", v)
		}
	}
}

func TestLoadMosaic(t *testing.T) {
	root := t.TempDir()

	// a spans x 0..4 and holds 1..16 row major, with nodata at (2, 0).
	a := record("a", "p", day(1), 0, 0, 4, 4)
	pa := make([]byte, 16)
	for i := range pa {
		pa[i] = byte(i + 1)
	}
	pa[2] = 255
	writeObject(t, root, "a/red.bin", pa)

	// b spans x 2..6 as int16 100+i, with nodata -1 at (3, 1) and (5, 1).
	b := record("b", "p", day(2), 2, 0, 6, 4)
	b.Bands = map[string]BandInfo{"red": {Object: "b/red.bin", DType: DTypeInt16, NoData: -1}}
	pb := make([]byte, 32)
	for i := 0; i < 16; i++ {
		v := int16(100 + i)
		if i == 5 || i == 7 {
			v = -1
		}
		binary.LittleEndian.PutUint16(pb[2*i:], uint16(v))
	}
	writeObject(t, root, "b/red.bin", pb)

	arch := testArchive(t, root, a, b)
	gb, err := geobox.New(6, 4, geobox.Affine{0, 1, 0, 4, 0, -1}, geobox.WebMerc)
	if err != nil {
		t.Fatal(err)
	}

	img, err := arch.Load(context.Background(), []tile.Dataset{{ID: "a"}, {ID: "b"}}, gb, []string{"red"})
	if err != nil {
		t.Fatal(err)
	}
	band := img.Bands["red"]
	if band.NoData != 255 {
		t.Fatalf("nodata = %v, want the first dataset's 255", band.NoData)
	}
	want := []float32{
		1, 2, 100, 4, 102, 103,
		5, 6, 7, 8, 106, 255,
		9, 10, 11, 12, 110, 111,
		13, 14, 15, 16, 114, 115,
	}
	for i, v := range band.Pix {
		if v != want[i] {
			t.Fatalf("pix = %v\nwant  %v", band.Pix, want)
		}
	}

	// b first takes the overlap and its nodata
	img, err = arch.Load(context.Background(), []tile.Dataset{{ID: "b"}, {ID: "a"}}, gb, []string{"red"})
	if err != nil {
		t.Fatal(err)
	}
	band = img.Bands["red"]
	want = []float32{
		1, 2, 100, 101, 102, 103,
		5, 6, 104, 8, 106, -1,
		9, 10, 108, 109, 110, 111,
		13, 14, 112, 113, 114, 115,
	}
	if band.NoData != -1 {
		t.Fatalf("nodata = %v, want b's -1", band.NoData)
	}
	for i, v := range band.Pix {
		if v != want[i] {
			t.Fatalf("pix = %v\nwant  %v", band.Pix, want)
		}
	}
}

func TestLoadWarpFailure(t *testing.T) {
	root := t.TempDir()
	r := record("bad", "p", day(1), 0, 0, 4, 4)
	r.Proj4 = "+proj=nonsense +units=m"
	writeObject(t, root, "bad/red.bin", make([]byte, 16))

	// bypass NewIndex, which refuses the proj4
	idx := &Index{records: map[string]*Record{"bad": &r}, byProduct: map[string][]*Record{"p": {&r}}}
	a := NewArchive(idx, DirStore{Root: root}, zerolog.Nop())
	gb, _ := geobox.New(4, 4, geobox.Affine{0, 1, 0, 4, 0, -1}, geobox.WebMerc)

	img, err := a.Load(context.Background(), []tile.Dataset{{ID: "bad"}}, gb, []string{"red"})
	if !perr.IsCode(err, perr.ErrorCodeLoadFailure) {
		t.Fatalf("Load = %v, %v, want load failure", img, err)
	}
}

func TestSearchBadCRS(t *testing.T) {
	a := testArchive(t, t.TempDir(), record("a", "p", day(1), 0, 0, 10, 10))
	got, err := a.Search(context.Background(), "p", geobox.Rect(0, 0, 1, 1), "+proj=nonsense +units=m", day(1), day(2))
	if !perr.IsCode(err, perr.ErrorCodeInvalidGeometry) {
		t.Fatalf("Search = %v, %v, want InvalidGeometry", got, err)
	}
}

func TestLoadManyDatasets(t *testing.T) {
	root := t.TempDir()
	var recs []Record
	var ds []tile.Dataset
	for i := 0; i < 3*maxParallelWarps; i++ {
		id := "d" + strconv.Itoa(i)
		recs = append(recs, record(id, "p", day(1), 0, 0, 4, 4))
		pix := make([]byte, 16)
		for j := range pix {
			pix[j] = 255
		}
		pix[i] = byte(i)
		writeObject(t, root, id+"/red.bin", pix)
		ds = append(ds, tile.Dataset{ID: id})
	}
	a := testArchive(t, root, recs...)
	gb, _ := geobox.New(4, 4, geobox.Affine{0, 1, 0, 4, 0, -1}, geobox.WebMerc)

	img, err := a.Load(context.Background(), ds, gb, []string{"red"})
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range img.Bands["red"].Pix {
		want := float32(255)
		if i < len(ds) {
			want = float32(i)
		}
		if v != want {
			t.Fatalf("pixel %d = %v, want %v", i, v, want)
		}
	}
}
