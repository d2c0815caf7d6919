// Package ingest turns raw file selections into decoded payloads or
// per-file errors. Every file resolves to an outcome value; a failing
// file never aborts its siblings.
package ingest

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/youruser/parley/internal/logging"
)

var log = logging.Get()

// Size limits enforced before decoding. Image payloads travel base64-inline,
// so the backend transport limit caps them lower than text.
const (
	MaxTextBytes  = 5 * 1024 * 1024
	MaxImageBytes = 4 * 1024 * 1024
)

// Class is the validated kind of a selected file.
type Class string

const (
	ClassText        Class = "text"
	ClassImage       Class = "image"
	ClassUnsupported Class = "unsupported"
)

var textExtensions = map[string]bool{
	".md": true, ".py": true, ".js": true, ".ts": true, ".html": true,
	".css": true, ".json": true, ".yaml": true, ".yml": true, ".csv": true,
	".txt": true, ".go": true,
}

var imageMIMETypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// Handle is an opaque reference to a raw selected file. MIME may be empty,
// in which case content sniffing decides.
type Handle interface {
	Name() string
	MIME() string
	Size() int64
	Open() (io.ReadCloser, error)
}

// PathHandle adapts a filesystem path to a Handle.
type PathHandle string

func (p PathHandle) Name() string { return filepath.Base(string(p)) }

// MIME is always empty for path handles; classification falls back to the
// extension allow-list and content sniffing.
func (p PathHandle) MIME() string { return "" }

func (p PathHandle) Size() int64 {
	info, err := os.Stat(string(p))
	if err != nil {
		return -1
	}
	return info.Size()
}

func (p PathHandle) Open() (io.ReadCloser, error) { return os.Open(string(p)) }

// PendingFile is the outcome of ingesting one file. Exactly one of the
// payload fields is set on success; Err is set on failure and the entry is
// terminal. Never mutated once produced.
type PendingFile struct {
	ID      string
	Name    string
	Class   Class
	Text    string // decoded UTF-8 content (ClassText)
	DataURI string // base64 data URI (ClassImage)
	Size    int64
	Err     string
}

// OK reports whether the file decoded successfully.
func (f PendingFile) OK() bool { return f.Err == "" }

// Process decodes all handles concurrently and returns one outcome per
// handle, in selection order.
func Process(ctx context.Context, handles []Handle) []PendingFile {
	results := make([]PendingFile, len(handles))

	g, gctx := errgroup.WithContext(ctx)
	for i, h := range handles {
		i, h := i, h
		g.Go(func() error {
			results[i] = decode(gctx, h)
			return nil // outcomes carry their own errors
		})
	}
	g.Wait()

	return results
}

// decode validates and reads one file. All failure modes resolve to an
// outcome with Err set.
func decode(ctx context.Context, h Handle) PendingFile {
	out := PendingFile{
		ID:   uuid.NewString(),
		Name: h.Name(),
		Size: h.Size(),
	}

	if err := ctx.Err(); err != nil {
		out.Class = ClassUnsupported
		out.Err = fmt.Sprintf("ingestion canceled: %v", err)
		return out
	}

	declared := h.MIME()
	ext := strings.ToLower(filepath.Ext(h.Name()))
	isText := strings.HasPrefix(declared, "text/") || textExtensions[ext]
	isImage := imageMIMETypes[declared]

	// Oversize and unsupported files fail before any read.
	switch {
	case isImage && out.Size > MaxImageBytes:
		out.Class = ClassUnsupported
		out.Err = fmt.Sprintf("image file too large (%.1f MiB, limit %d MiB)", mib(out.Size), MaxImageBytes/1024/1024)
		return out
	case isText && out.Size > MaxTextBytes:
		out.Class = ClassUnsupported
		out.Err = fmt.Sprintf("text file too large (%.1f MiB, limit %d MiB)", mib(out.Size), MaxTextBytes/1024/1024)
		return out
	case !isText && !isImage && out.Size > MaxTextBytes:
		out.Class = ClassUnsupported
		out.Err = "unsupported file type"
		return out
	}

	rc, err := h.Open()
	if err != nil {
		out.Class = ClassUnsupported
		out.Err = fmt.Sprintf("could not read file: %v", err)
		return out
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, MaxTextBytes+1))
	if err != nil {
		out.Class = ClassUnsupported
		out.Err = fmt.Sprintf("could not read file: %v", err)
		return out
	}
	if int64(len(data)) > MaxTextBytes {
		out.Class = ClassUnsupported
		out.Err = fmt.Sprintf("file too large (limit %d MiB)", MaxTextBytes/1024/1024)
		return out
	}

	sniffed := declared
	if !isText && !isImage {
		// No usable declared type; sniff the content.
		sniffed = mimetype.Detect(data).String()
		if i := strings.Index(sniffed, ";"); i >= 0 {
			sniffed = sniffed[:i]
		}
		isText = strings.HasPrefix(sniffed, "text/")
		isImage = imageMIMETypes[sniffed]
		log.Debug("sniffed %s as %s", h.Name(), sniffed)
	}

	switch {
	case isImage:
		if int64(len(data)) > MaxImageBytes {
			out.Class = ClassUnsupported
			out.Err = fmt.Sprintf("image file too large (%.1f MiB, limit %d MiB)", mib(int64(len(data))), MaxImageBytes/1024/1024)
			return out
		}
		imageMIME := declared
		if !imageMIMETypes[imageMIME] {
			imageMIME = sniffed
		}
		out.Class = ClassImage
		out.DataURI = "data:" + imageMIME + ";base64," + base64.StdEncoding.EncodeToString(data)
	case isText:
		if !utf8.Valid(data) {
			out.Class = ClassUnsupported
			out.Err = "file is not valid UTF-8 text"
			return out
		}
		out.Class = ClassText
		out.Text = string(data)
	default:
		out.Class = ClassUnsupported
		out.Err = fmt.Sprintf("unsupported file type (%s)", orUnknown(sniffed))
	}

	return out
}

func mib(n int64) float64 { return float64(n) / 1024 / 1024 }

func orUnknown(mime string) string {
	if mime == "" {
		return "unknown"
	}
	return mime
}
