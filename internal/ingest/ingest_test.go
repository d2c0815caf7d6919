package ingest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// memHandle is an in-memory Handle for tests.
type memHandle struct {
	name    string
	mime    string
	data    []byte
	size    int64 // overrides len(data) when non-zero
	openErr error
	readErr error
}

func (h memHandle) Name() string { return h.name }
func (h memHandle) MIME() string { return h.mime }

func (h memHandle) Size() int64 {
	if h.size != 0 {
		return h.size
	}
	return int64(len(h.data))
}

func (h memHandle) Open() (io.ReadCloser, error) {
	if h.openErr != nil {
		return nil, h.openErr
	}
	if h.readErr != nil {
		return io.NopCloser(errReader{h.readErr}), nil
	}
	return io.NopCloser(bytes.NewReader(h.data)), nil
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

func one(t *testing.T, h Handle) PendingFile {
	t.Helper()
	results := Process(context.Background(), []Handle{h})
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	return results[0]
}

func TestDecodeText(t *testing.T) {
	t.Run("by extension", func(t *testing.T) {
		f := one(t, memHandle{name: "notes.txt", data: []byte("alpha\nbeta")})
		if !f.OK() {
			t.Fatalf("Err = %q", f.Err)
		}
		if f.Class != ClassText || f.Text != "alpha\nbeta" {
			t.Errorf("got class %q text %q", f.Class, f.Text)
		}
		if f.ID == "" {
			t.Error("ID not assigned")
		}
	})

	t.Run("by declared mime", func(t *testing.T) {
		f := one(t, memHandle{name: "README", mime: "text/plain", data: []byte("hello")})
		if f.Class != ClassText {
			t.Errorf("class = %q, want text, err %q", f.Class, f.Err)
		}
	})

	t.Run("by sniffing", func(t *testing.T) {
		f := one(t, memHandle{name: "NOTES", data: []byte("plain prose with no extension")})
		if f.Class != ClassText {
			t.Errorf("class = %q, want text, err %q", f.Class, f.Err)
		}
	})

	t.Run("invalid utf8", func(t *testing.T) {
		f := one(t, memHandle{name: "bad.txt", data: []byte{0xff, 0xfe, 0xfd}})
		if f.OK() || !strings.Contains(f.Err, "UTF-8") {
			t.Errorf("Err = %q, want UTF-8 rejection", f.Err)
		}
	})

	t.Run("oversize rejected before read", func(t *testing.T) {
		f := one(t, memHandle{name: "big.txt", size: MaxTextBytes + 1, openErr: errors.New("must not open")})
		if f.OK() || !strings.Contains(f.Err, "too large") {
			t.Errorf("Err = %q, want size rejection", f.Err)
		}
	})
}

func TestDecodeImage(t *testing.T) {
	// Minimal valid PNG header so content sniffing agrees.
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	t.Run("declared mime", func(t *testing.T) {
		f := one(t, memHandle{name: "pic.png", mime: "image/png", data: png})
		if !f.OK() {
			t.Fatalf("Err = %q", f.Err)
		}
		if f.Class != ClassImage {
			t.Errorf("class = %q, want image", f.Class)
		}
		if !strings.HasPrefix(f.DataURI, "data:image/png;base64,") {
			t.Errorf("DataURI = %q", f.DataURI)
		}
	})

	t.Run("sniffed without declared mime", func(t *testing.T) {
		f := one(t, memHandle{name: "pic", data: png})
		if f.Class != ClassImage {
			t.Errorf("class = %q, want image, err %q", f.Class, f.Err)
		}
	})

	t.Run("oversize rejected", func(t *testing.T) {
		f := one(t, memHandle{name: "huge.png", mime: "image/png", size: MaxImageBytes + 1})
		if f.OK() || !strings.Contains(f.Err, "too large") {
			t.Errorf("Err = %q, want size rejection", f.Err)
		}
	})
}

func TestDecodeFailures(t *testing.T) {
	t.Run("unsupported type", func(t *testing.T) {
		f := one(t, memHandle{name: "app.exe", data: []byte{0x4d, 0x5a, 0x90, 0x00, 0x03, 0x00}})
		if f.OK() || !strings.Contains(f.Err, "unsupported") {
			t.Errorf("Err = %q, want unsupported", f.Err)
		}
	})

	t.Run("open error", func(t *testing.T) {
		f := one(t, memHandle{name: "gone.txt", openErr: errors.New("no such file")})
		if f.OK() || !strings.Contains(f.Err, "could not read file") {
			t.Errorf("Err = %q", f.Err)
		}
	})

	t.Run("read error", func(t *testing.T) {
		f := one(t, memHandle{name: "flaky.txt", readErr: errors.New("i/o timeout")})
		if f.OK() || !strings.Contains(f.Err, "could not read file") {
			t.Errorf("Err = %q", f.Err)
		}
	})

	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		results := Process(ctx, []Handle{memHandle{name: "a.txt", data: []byte("x")}})
		if results[0].OK() || !strings.Contains(results[0].Err, "canceled") {
			t.Errorf("Err = %q, want cancellation", results[0].Err)
		}
	})
}

func TestProcessFanOut(t *testing.T) {
	handles := []Handle{
		memHandle{name: "a.txt", data: []byte("first")},
		memHandle{name: "b.bin", data: []byte{0x00, 0x01, 0x02, 0x03}},
		memHandle{name: "c.md", data: []byte("# third")},
	}
	results := Process(context.Background(), handles)

	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	// Order follows selection order regardless of worker scheduling.
	for i, want := range []string{"a.txt", "b.bin", "c.md"} {
		if results[i].Name != want {
			t.Errorf("results[%d].Name = %q, want %q", i, results[i].Name, want)
		}
	}
	if !results[0].OK() || !results[2].OK() {
		t.Errorf("text files failed: %q / %q", results[0].Err, results[2].Err)
	}
	// The middle failure does not abort its siblings.
	if results[1].OK() {
		t.Error("binary file unexpectedly decoded")
	}
}

func TestPathHandle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("on disk"), 0644); err != nil {
		t.Fatal(err)
	}

	h := PathHandle(path)
	if h.Name() != "notes.txt" {
		t.Errorf("Name = %q", h.Name())
	}
	if h.MIME() != "" {
		t.Errorf("MIME = %q, want empty", h.MIME())
	}
	if h.Size() != int64(len("on disk")) {
		t.Errorf("Size = %d", h.Size())
	}

	f := one(t, h)
	if !f.OK() || f.Text != "on disk" {
		t.Errorf("got text %q err %q", f.Text, f.Err)
	}

	missing := PathHandle(filepath.Join(t.TempDir(), "nope.txt"))
	if missing.Size() != -1 {
		t.Errorf("Size of missing file = %d, want -1", missing.Size())
	}
	f = one(t, missing)
	if f.OK() {
		t.Error("missing file unexpectedly decoded")
	}
}
