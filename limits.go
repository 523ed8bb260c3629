package pagefold

// Default budgets. The zero value of every config struct means "use these";
// callers shrink them for embedded targets or raise them for desktop use.
const (
	defaultMaxEntries    = 1024
	defaultMaxTotalBytes = 128 << 20 // declared uncompressed total

	defaultMaxEntryBytes       = 4 << 20
	defaultMaxCSSBytes         = 256 << 10
	defaultMaxNavBytes         = 512 << 10
	defaultMaxInlineStyleBytes = 4 << 10
	defaultMaxPagesInMemory    = 8

	defaultChunkSize = 8 << 10
)

// ZipLimits bounds archive-wide parsing before any per-entry budget applies.
type ZipLimits struct {
	// MaxTotalBytes caps the sum of declared uncompressed entry sizes.
	// Declared sizes are untrusted; this check only rejects archives that
	// admit to being oversized before any decompression begins. Actual
	// produced bytes are capped separately per read.
	MaxTotalBytes int64

	// MaxEntries caps the number of central directory entries.
	MaxEntries int
}

func (l ZipLimits) withDefaults() ZipLimits {
	if l.MaxTotalBytes == 0 {
		l.MaxTotalBytes = defaultMaxTotalBytes
	}
	if l.MaxEntries == 0 {
		l.MaxEntries = defaultMaxEntries
	}
	return l
}

// MemoryBudget bounds per-resource work performed while reading a book.
// Every breach surfaces as a LimitError carrying the matching LimitKind.
type MemoryBudget struct {
	// MaxEntryBytes caps the decompressed size of a single resource read.
	MaxEntryBytes int

	// MaxCSSBytes caps the size of a single stylesheet.
	MaxCSSBytes int

	// MaxNavBytes caps each navigation-related read (container.xml, OPF,
	// nav document, NCX).
	MaxNavBytes int

	// MaxInlineStyleBytes caps a single style="" attribute value.
	MaxInlineStyleBytes int

	// MaxPagesInMemory caps the resident page cache of a render session.
	MaxPagesInMemory int
}

func (m MemoryBudget) withDefaults() MemoryBudget {
	if m.MaxEntryBytes == 0 {
		m.MaxEntryBytes = defaultMaxEntryBytes
	}
	if m.MaxCSSBytes == 0 {
		m.MaxCSSBytes = defaultMaxCSSBytes
	}
	if m.MaxNavBytes == 0 {
		m.MaxNavBytes = defaultMaxNavBytes
	}
	if m.MaxInlineStyleBytes == 0 {
		m.MaxInlineStyleBytes = defaultMaxInlineStyleBytes
	}
	if m.MaxPagesInMemory == 0 {
		m.MaxPagesInMemory = defaultMaxPagesInMemory
	}
	return m
}

// Options configures a Book handle at open time.
type Options struct {
	// ZipLimits bounds central-directory parsing.
	ZipLimits ZipLimits

	// Memory bounds per-resource and per-session work.
	Memory MemoryBudget

	// LazyNav defers navigation resolution until the first call that needs
	// it. Resolution happens exactly once either way.
	LazyNav bool

	// IncludeFonts causes embedded font resources to be visible through
	// resource reads. They are never fetched by the pagination pipeline.
	IncludeFonts bool

	// ChunkSize is the decompression chunk width. The per-read hard cap is
	// checked at every chunk boundary, so overshoot past a cap is bounded
	// by one chunk. Small values suit embedded targets.
	ChunkSize int
}

func (o Options) withDefaults() Options {
	o.ZipLimits = o.ZipLimits.withDefaults()
	o.Memory = o.Memory.withDefaults()
	if o.ChunkSize == 0 {
		o.ChunkSize = defaultChunkSize
	}
	return o
}
