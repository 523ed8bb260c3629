package pagefold

import "unicode/utf8"

// Geometry is the target display's content region in abstract content
// units. The engine treats it as opaque configuration supplied by the
// host's display backend.
type Geometry struct {
	Width  int
	Height int
}

func (g Geometry) withDefaults() Geometry {
	if g.Width == 0 {
		g.Width = 600
	}
	if g.Height == 0 {
		g.Height = 800
	}
	return g
}

// StyledRun is a laid-out text span with its resolved style. Unlike event
// runs, a StyledRun owns its text; pages outlive the streaming buffers.
type StyledRun struct {
	Text  string
	Style StyleSnapshot
}

// Page is one bounded content unit sized to the target geometry. Pages are
// the only entity cached across calls.
type Page struct {
	// Chapter is the source chapter index.
	Chapter int

	// Index is the page's position within the chapter.
	Index int

	// Runs are the page's styled runs in document order.
	Runs []StyledRun

	// ByteOffset is the collapsed-text byte offset of the page's first
	// run within the chapter, an approximate progress marker.
	ByteOffset int
}

// Per-size fixed glyph advance and line height, in content units. A
// display backend draws real glyphs; pagination only needs a monotone
// width model.
var sizeAdvance = [...]int{
	SizeSmall:   6,
	SizeNormal:  8,
	SizeLarge:   10,
	SizeXLarge:  12,
	SizeXXLarge: 14,
}

func advanceFor(s StyleSnapshot) int {
	adv := sizeAdvance[s.Size]
	if s.Weight == WeightBold {
		adv++
	}
	return adv
}

func lineHeightFor(s StyleSnapshot) int {
	return sizeAdvance[s.Size] * 2
}

// runHeight is the vertical extent a run occupies when wrapped into lines
// of the given width. Every run occupies whole lines of its own.
func runHeight(text []byte, style StyleSnapshot, width int) int {
	n := utf8.RuneCount(text)
	if n == 0 {
		return 0
	}
	adv := advanceFor(style)
	lines := (n*adv + width - 1) / width
	if lines < 1 {
		lines = 1
	}
	return lines * lineHeightFor(style)
}

// layouter places runs onto pages in document order. A run that would
// overflow the page forces a break before it unless it is the first run
// on the page, in which case it is placed regardless and allowed to
// overflow so pagination always makes progress. Runs never split.
type layouter struct {
	geom    Geometry
	chapter int

	pageIndex  int
	runs       []StyledRun
	pageOffset int // chapter byte offset of the current page's first run
	nextOffset int // cumulative bytes placed so far
	usedHeight int

	onPage func(Page) error
}

func newLayouter(geom Geometry, chapter, startPage, startOffset int, onPage func(Page) error) *layouter {
	return &layouter{
		geom:       geom,
		chapter:    chapter,
		pageIndex:  startPage,
		pageOffset: startOffset,
		nextOffset: startOffset,
		onPage:     onPage,
	}
}

// place appends one run, breaking the page first when the run does not
// fit and the page already holds content.
func (l *layouter) place(text []byte, style StyleSnapshot) error {
	h := runHeight(text, style, l.geom.Width)
	if h == 0 {
		return nil
	}
	if len(l.runs) > 0 && l.usedHeight+h > l.geom.Height {
		if err := l.emit(); err != nil {
			return err
		}
	}
	l.runs = append(l.runs, StyledRun{Text: string(text), Style: style})
	l.usedHeight += h
	l.nextOffset += len(text)
	return nil
}

// flush emits the final partial-height page at end of chapter. A page is
// complete once no further run can join it; chapter end completes the
// last one.
func (l *layouter) flush() error {
	if len(l.runs) == 0 {
		return nil
	}
	return l.emit()
}

func (l *layouter) emit() error {
	page := Page{
		Chapter:    l.chapter,
		Index:      l.pageIndex,
		Runs:       l.runs,
		ByteOffset: l.pageOffset,
	}
	l.pageIndex++
	l.runs = nil
	l.pageOffset = l.nextOffset
	l.usedHeight = 0
	return l.onPage(page)
}
