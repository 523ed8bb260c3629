package pagefold

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"
)

// Book is an open EPUB container. It owns the archive index, the lazily
// resolved navigation table and the per-book scratch buffers. A Book is
// not safe for concurrent use; independent Books backed by independent
// sources may be used in parallel.
type Book struct {
	arc     *archive
	closer  io.Closer
	opts    Options
	scratch *Scratch

	opfPath        string
	opfDir         string
	opf            *opfPackage
	manifestByID   map[string]*manifestItem
	manifestByHref map[string]*manifestItem
	spine          []spineItem

	navState navState
	nav      []ChapterRef

	cascade     *Cascade
	cascadeDone bool

	warnings []string
}

// Open opens the EPUB file at path with default options.
func Open(name string) (*Book, error) {
	return OpenWithOptions(name, Options{})
}

// OpenWithOptions opens the EPUB file at path. The file stays open for the
// life of the Book and is released by Close.
func OpenWithOptions(name string, opts Options) (*Book, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("pagefold: open %s: %w", name, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("pagefold: stat %s: %w", name, err)
	}
	b, err := OpenReaderWithOptions(f, fi.Size(), opts)
	if err != nil {
		f.Close()
		return nil, err
	}
	b.closer = f
	return b, nil
}

// OpenReader opens an EPUB from any random-access byte source with
// default options.
func OpenReader(r io.ReaderAt, size int64) (*Book, error) {
	return OpenReaderWithOptions(r, size, Options{})
}

// OpenReaderWithOptions opens an EPUB from a random-access byte source.
// The archive directory is parsed under opts.ZipLimits before any entry
// is decompressed; the package document is read under the navigation byte
// budget. Navigation resolution itself is eager unless opts.LazyNav is
// set.
func OpenReaderWithOptions(r io.ReaderAt, size int64, opts Options) (*Book, error) {
	opts = opts.withDefaults()

	arc, err := openArchive(r, size, opts.ZipLimits, opts.ChunkSize)
	if err != nil {
		return nil, err
	}

	b := &Book{
		arc:     arc,
		opts:    opts,
		scratch: NewScratch(0),
	}

	opfPath, err := parseContainer(arc, opts.Memory.MaxNavBytes)
	if err != nil {
		return nil, err
	}
	b.opfPath = opfPath
	b.opfDir = path.Dir(opfPath)

	var buf bytes.Buffer
	if _, err := arc.readEntryInto(opfPath, &buf, opts.Memory.MaxNavBytes); err != nil {
		return nil, remapEntryCap(err, LimitNavBytes)
	}
	pkg, err := parseOPF(buf.Bytes())
	if err != nil {
		return nil, err
	}
	b.opf = pkg
	b.manifestByID, b.manifestByHref = buildManifestMaps(pkg.Manifest)
	b.spine = buildSpine(pkg.Spine, b.manifestByID)

	if !opts.LazyNav {
		if err := b.resolveNav(); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Close releases the underlying byte source. The Book is unusable
// afterwards.
func (b *Book) Close() error {
	b.arc = nil
	if b.closer == nil {
		return nil
	}
	c := b.closer
	b.closer = nil
	return c.Close()
}

// Version reports the EPUB package version, "2.0" when undeclared.
func (b *Book) Version() string { return b.opf.Version }

// Title reports the first declared package title, empty when absent.
func (b *Book) Title() string {
	if len(b.opf.Metadata.Titles) == 0 {
		return ""
	}
	return strings.TrimSpace(b.opf.Metadata.Titles[0])
}

// Language reports the first declared package language, empty when absent.
func (b *Book) Language() string {
	if len(b.opf.Metadata.Languages) == 0 {
		return ""
	}
	return strings.TrimSpace(b.opf.Metadata.Languages[0])
}

// Warnings returns the recoverable anomalies observed so far: dropped
// navigation entries, unparseable navigation documents, missing
// stylesheets. The library records them here instead of logging.
func (b *Book) Warnings() []string {
	out := make([]string, len(b.warnings))
	copy(out, b.warnings)
	return out
}

func (b *Book) warn(format string, args ...any) {
	b.warnings = append(b.warnings, fmt.Sprintf(format, args...))
}

// ChapterCount returns the number of chapters in the navigation table,
// resolving navigation first if it was deferred.
func (b *Book) ChapterCount() (int, error) {
	if err := b.resolveNav(); err != nil {
		return 0, err
	}
	return len(b.nav), nil
}

// Chapters returns the navigation table in reading order.
func (b *Book) Chapters() ([]ChapterRef, error) {
	if err := b.resolveNav(); err != nil {
		return nil, err
	}
	out := make([]ChapterRef, len(b.nav))
	copy(out, b.nav)
	return out, nil
}

// Chapter returns the descriptor of the chapter at index.
func (b *Book) Chapter(index int) (ChapterRef, error) {
	if err := b.resolveNav(); err != nil {
		return ChapterRef{}, err
	}
	if index < 0 || index >= len(b.nav) {
		return ChapterRef{}, &ChapterOutOfBoundsError{Index: index, Count: len(b.nav)}
	}
	return b.nav[index], nil
}

// ReadResourceInto streams the named archive entry into dst in bounded
// chunks under the per-entry byte budget. dst is appended to; the return
// value is the number of decompressed bytes produced.
func (b *Book) ReadResourceInto(name string, dst *bytes.Buffer) (int, error) {
	if !b.opts.IncludeFonts && b.isFontResource(name) {
		return 0, fmt.Errorf("pagefold: font resource %q excluded, set Options.IncludeFonts to read it: %w", name, ErrNotFound)
	}
	return b.arc.readEntryInto(name, dst, b.opts.Memory.MaxEntryBytes)
}

func (b *Book) isFontResource(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".ttf", ".otf", ".woff", ".woff2":
		return true
	}
	for _, mi := range b.manifestByHref {
		if b.resolveOPFPath(mi.Href) != name {
			continue
		}
		mt := strings.ToLower(mi.MediaType)
		return strings.HasPrefix(mt, "font/") ||
			strings.HasPrefix(mt, "application/font-") ||
			mt == "application/vnd.ms-opentype"
	}
	return false
}

// ReadChapterRaw streams the chapter's raw markup bytes into dst.
func (b *Book) ReadChapterRaw(index int, dst *bytes.Buffer) (int, error) {
	ref, err := b.Chapter(index)
	if err != nil {
		return 0, err
	}
	return b.arc.readEntryInto(ref.Href, dst, b.opts.Memory.MaxEntryBytes)
}

// openChapter opens a bounded decompression stream over the chapter's
// entry. A navigation href whose entry disappeared since the table was
// built surfaces as ErrNotFound here, where the chapter text is essential.
func (b *Book) openChapter(index int) (io.ReadCloser, error) {
	ref, err := b.Chapter(index)
	if err != nil {
		return nil, err
	}
	return b.arc.openEntry(ref.Href, b.opts.Memory.MaxEntryBytes)
}

// stylesheetCascade builds (once) the book-wide cascade from every
// stylesheet in the manifest, each read under the stylesheet byte budget.
// A stylesheet missing from the archive is skipped with a warning.
func (b *Book) stylesheetCascade() (*Cascade, error) {
	if b.cascadeDone {
		return b.cascade, nil
	}
	c := &Cascade{}
	for _, raw := range b.opf.Manifest.Items {
		mi := b.manifestByID[raw.ID]
		if mi == nil || !strings.EqualFold(mi.MediaType, "text/css") {
			continue
		}
		name := b.resolveOPFPath(mi.Href)
		if b.arc.entry(name) == nil {
			b.warn("stylesheet %q not present in archive; skipped", name)
			continue
		}
		var buf bytes.Buffer
		if _, err := b.arc.readEntryInto(name, &buf, b.opts.Memory.MaxCSSBytes); err != nil {
			return nil, remapEntryCap(err, LimitCSSBytes)
		}
		if err := c.appendStylesheet(buf.Bytes(), b.opts.Memory.MaxCSSBytes); err != nil {
			return nil, err
		}
	}
	b.cascade = c
	b.cascadeDone = true
	return c, nil
}

// ChapterText streams the chapter and assembles its resolved text with
// one newline per block boundary. Deterministic for identical input.
func (b *Book) ChapterText(index int) (string, error) {
	var sb strings.Builder
	var last byte
	err := b.streamChapter(index, 0, func(ev Event) error {
		switch ev.Kind {
		case EventRun:
			sb.Write(ev.Text)
			if len(ev.Text) > 0 {
				last = ev.Text[len(ev.Text)-1]
			}
		case EventElementStart, EventElementEnd:
			if isBlockTag(ev.Tag) && sb.Len() > 0 && last != '\n' {
				sb.WriteByte('\n')
				last = '\n'
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}

// resolveOPFPath turns a manifest or navigation href into a ZIP-internal
// path: fragment stripped, percent-escapes decoded, joined onto the OPF
// directory.
func (b *Book) resolveOPFPath(href string) string {
	href = hrefWithoutFragment(href)
	if unescaped, err := url.PathUnescape(href); err == nil {
		href = unescaped
	}
	if b.opfDir == "." || b.opfDir == "" {
		return href
	}
	return path.Clean(path.Join(b.opfDir, href))
}
