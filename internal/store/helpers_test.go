package store

import (
	"bytes"
	"context"
	"database/sql"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/erazemk/foodmap/internal/media"
	"github.com/erazemk/foodmap/internal/model"
)

func testImages(t *testing.T) *media.Dir {
	t.Helper()
	d, err := media.NewDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewDir: %v", err)
	}
	return d
}

func testUpload(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for x := 0; x < 16; x++ {
		for y := 0; y < 16; y++ {
			img.Set(x, y, color.RGBA{200, 120, 0, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// storedFiles counts the files written under the offerings prefix.
func storedFiles(t *testing.T, d *media.Dir) int {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(d.Root(), media.OfferingsDir))
	if err != nil {
		t.Fatalf("reading media dir: %v", err)
	}
	return len(entries)
}

func testLocation(t *testing.T, database *sql.DB, name string) *model.Location {
	t.Helper()
	l, err := CreateLocation(context.Background(), database, name, 40.34, -74.65)
	if err != nil {
		t.Fatalf("CreateLocation: %v", err)
	}
	return l
}

func countRows(t *testing.T, database *sql.DB, table string) int {
	t.Helper()
	var n int
	if err := database.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n); err != nil {
		t.Fatalf("counting %s: %v", table, err)
	}
	return n
}

func ptr[T any](v T) *T { return &v }
