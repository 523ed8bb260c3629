package pagefold

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/klauspost/compress/flate"
)

// archive wraps a parsed ZIP central directory with the entry index and the
// limits under which it was opened. It holds no chapter-sized state between
// reads; the only retained buffer is the fixed decompression chunk.
type archive struct {
	zr    *zip.Reader
	exact map[string]*zip.File // exact-match entry index
	lower map[string]*zip.File // lowercase entry index
	chunk []byte               // reusable decompression chunk
}

// openArchive parses the central directory of a zip-format container and
// validates it against limits before any entry is opened. Structural
// inconsistencies wrap ErrMalformedArchive; breached limits surface as
// LimitError with kind LimitEntries or LimitTotalBytes.
func openArchive(r io.ReaderAt, size int64, limits ZipLimits, chunkSize int) (*archive, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("pagefold: parse central directory: %v: %w", err, ErrMalformedArchive)
	}

	if len(zr.File) > limits.MaxEntries {
		return nil, limitErr(LimitEntries, len(zr.File), limits.MaxEntries)
	}

	// Declared sizes are advisory only, but an archive that already admits
	// to exceeding the total budget is rejected before any decompression.
	var declared int64
	for _, f := range zr.File {
		declared += int64(f.UncompressedSize64)
		if declared > limits.MaxTotalBytes || declared < 0 {
			return nil, limitErr(LimitTotalBytes, int(f.UncompressedSize64), int(limits.MaxTotalBytes))
		}
	}

	// Swap in the klauspost inflater for all DEFLATE entries.
	zr.RegisterDecompressor(zip.Deflate, func(r io.Reader) io.ReadCloser {
		return flate.NewReader(r)
	})

	a := &archive{
		zr:    zr,
		exact: make(map[string]*zip.File, len(zr.File)),
		lower: make(map[string]*zip.File, len(zr.File)),
		chunk: make([]byte, chunkSize),
	}
	for _, f := range zr.File {
		if _, ok := a.exact[f.Name]; !ok {
			a.exact[f.Name] = f // first match wins
		}
		l := strings.ToLower(f.Name)
		if _, ok := a.lower[l]; !ok {
			a.lower[l] = f
		}
	}
	return a, nil
}

// entry looks up a ZIP entry by path: exact match first, then
// case-insensitive, then with a leading slash stripped.
func (a *archive) entry(name string) *zip.File {
	if f, ok := a.exact[name]; ok {
		return f
	}
	if f, ok := a.lower[strings.ToLower(name)]; ok {
		return f
	}
	if strings.HasPrefix(name, "/") {
		return a.entry(name[1:])
	}
	return nil
}

// readEntryInto decompresses the named entry into dst in bounded chunks.
// The cumulative produced-byte count is checked against hardCap at every
// chunk boundary; the entry's declared uncompressed size is never trusted.
// dst is appended to; callers reset it for reuse. Returns the number of
// bytes produced.
func (a *archive) readEntryInto(name string, dst *bytes.Buffer, hardCap int) (int, error) {
	rc, err := a.openEntry(name, hardCap)
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	produced := 0
	for {
		n, err := rc.Read(a.chunk)
		if n > 0 {
			dst.Write(a.chunk[:n])
			produced += n
		}
		if err == io.EOF {
			return produced, nil
		}
		if err != nil {
			return produced, err
		}
	}
}

// openEntry opens the named entry for streaming reads. The returned reader
// enforces hardCap on produced bytes incrementally, and maps corrupt-stream
// errors to ErrDecompressionFailed.
func (a *archive) openEntry(name string, hardCap int) (io.ReadCloser, error) {
	f := a.entry(name)
	if f == nil {
		return nil, fmt.Errorf("pagefold: entry %q: %w", name, ErrNotFound)
	}
	if !isSafePath(f.Name) {
		return nil, fmt.Errorf("pagefold: unsafe entry path %q: %w", f.Name, ErrMalformedArchive)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("pagefold: open entry %q: %v: %w", name, err, ErrMalformedArchive)
	}
	return &cappedReader{rc: rc, name: name, cap: hardCap, chunk: len(a.chunk)}, nil
}

// cappedReader counts actually-produced bytes and aborts with a LimitError
// once they exceed the hard cap, regardless of declared sizes. Reads are
// narrowed to the chunk width so a breach is detected within one chunk.
type cappedReader struct {
	rc       io.ReadCloser
	name     string
	cap      int
	chunk    int
	produced int
}

func (c *cappedReader) Read(p []byte) (int, error) {
	if len(p) > c.chunk {
		p = p[:c.chunk]
	}
	n, err := c.rc.Read(p)
	c.produced += n
	if c.produced > c.cap {
		return n, limitErr(LimitEntryBytes, c.produced, c.cap)
	}
	if err != nil && err != io.EOF {
		if errors.Is(err, zip.ErrChecksum) || errors.Is(err, zip.ErrFormat) {
			return n, fmt.Errorf("pagefold: entry %q: %v: %w", c.name, err, ErrDecompressionFailed)
		}
		var corrupt flate.CorruptInputError
		if errors.As(err, &corrupt) {
			return n, fmt.Errorf("pagefold: entry %q: %v: %w", c.name, err, ErrDecompressionFailed)
		}
		return n, fmt.Errorf("pagefold: read entry %q: %v: %w", c.name, err, ErrDecompressionFailed)
	}
	return n, err
}

func (c *cappedReader) Close() error { return c.rc.Close() }

// isSafePath reports whether p is a ZIP-internal path that does not escape
// the archive root via traversal.
func isSafePath(p string) bool {
	cleaned := path.Clean(p)
	if strings.HasPrefix(cleaned, "/") {
		return false
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return false
	}
	return true
}

// resolveRelativePath resolves href relative to the directory of basePath.
// Both are ZIP-internal, forward-slash paths. Unsafe results resolve to "".
func resolveRelativePath(basePath, href string) string {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "/") {
		return ""
	}
	if decoded, err := url.PathUnescape(href); err == nil {
		href = decoded
	}
	cleaned := path.Clean(path.Join(path.Dir(basePath), href))
	if !isSafePath(cleaned) {
		return ""
	}
	return cleaned
}

// stripBOM removes a leading UTF-8 BOM from data, if present.
func stripBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}

// hrefWithoutFragment returns href with any #fragment removed.
func hrefWithoutFragment(href string) string {
	if i := strings.IndexByte(href, '#'); i >= 0 {
		return href[:i]
	}
	return href
}
