package weightfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
)

func TestLoadGzippedNetwork(t *testing.T) {
	plain := syntheticNetwork(t)
	data, err := os.ReadFile(plain)
	if err != nil {
		t.Fatal(err)
	}

	gzPath := filepath.Join(t.TempDir(), "net.txt.gz")
	f, err := os.Create(gzPath)
	if err != nil {
		t.Fatal(err)
	}
	gw := gzip.NewWriter(f)
	if _, err := gw.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := gw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	w, err := Load(gzPath)
	if err != nil {
		t.Fatalf("Load() on gzipped file error = %v", err)
	}
	if w.Channels != 2 {
		t.Errorf("Channels = %d, want 2", w.Channels)
	}
}
