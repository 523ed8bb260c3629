package pagefold

import (
	"errors"
	"fmt"
)

// EngineState is the per-chapter pagination state machine.
type EngineState uint8

const (
	EngineIdle EngineState = iota
	EnginePreparing
	EngineReady
	EngineFailed
)

// errStopPagination aborts a replay once the requested pages are laid out.
var errStopPagination = errors.New("pagefold: pagination stopped")

// pageMark is a pagination checkpoint: the run ordinal and chapter byte
// offset at which a page starts. Replaying from a mark skips tokenized
// runs without laying them out, bounding recomputation cost.
type pageMark struct {
	run    int
	offset int
}

// Engine paginates one chapter of a Book at a time against a fixed
// display geometry. It keeps a checkpoint per discovered page and a
// bounded resident-page cache; switching chapters resets both.
//
// An Engine is single-threaded, like the Book it wraps.
type Engine struct {
	book  *Book
	geom  Geometry
	state EngineState

	chapter int
	marks   []pageMark
	total   int // page count, -1 until chapter end observed
	cache   *pageCache
}

// NewEngine creates a pagination engine over book for the given geometry.
// Zero geometry fields take defaults.
func NewEngine(book *Book, geom Geometry) *Engine {
	return &Engine{
		book:    book,
		geom:    geom.withDefaults(),
		chapter: -1,
		total:   -1,
		cache:   newPageCache(book.opts.Memory.MaxPagesInMemory, EvictFarthest),
	}
}

// State reports the engine's current state.
func (e *Engine) State() EngineState { return e.state }

// reset switches the engine to a chapter, dropping the previous chapter's
// checkpoints and resident pages.
func (e *Engine) reset(chapter int) {
	e.chapter = chapter
	e.marks = e.marks[:0]
	e.marks = append(e.marks, pageMark{})
	e.total = -1
	e.cache.clear()
	e.state = EngineIdle
}

func (e *Engine) ensureChapter(chapter int) {
	if chapter != e.chapter || e.state == EngineFailed {
		e.reset(chapter)
	}
}

// Prepare streams the whole chapter through layout, invoking onPage once
// per completed page as soon as it is laid out. No partial page is ever
// delivered: on error the pending page is discarded and the engine
// transitions to Failed for this chapter.
func (e *Engine) Prepare(chapter int, onPage func(Page) error) error {
	e.ensureChapter(chapter)
	e.state = EnginePreparing
	err := e.replay(0, -1, func(p Page) error {
		e.cache.put(p, p.Index)
		return onPage(p)
	})
	if err != nil {
		e.state = EngineFailed
		return err
	}
	e.state = EngineReady
	return nil
}

// PageRange returns exactly the pages [from, to). Resident pages are
// served from cache; the rest are computed by replaying from the nearest
// checkpoint at or before the first missing page. A range wider than the
// resident-page budget is a LimitError of kind LimitPageCache.
func (e *Engine) PageRange(chapter, from, to int) ([]Page, error) {
	if from < 0 || to < from {
		return nil, fmt.Errorf("pagefold: invalid page range [%d, %d)", from, to)
	}
	if n := to - from; n > e.cache.max {
		return nil, limitErr(LimitPageCache, n, e.cache.max)
	}
	e.ensureChapter(chapter)

	out := make([]Page, 0, to-from)
	firstMissing := to
	for i := from; i < to; i++ {
		p, ok := e.cache.get(i)
		if !ok {
			firstMissing = i
			break
		}
		out = append(out, p)
	}
	if firstMissing == to {
		return out, nil
	}

	err := e.replay(firstMissing, to, func(p Page) error {
		e.cache.put(p, p.Index)
		if p.Index >= firstMissing && p.Index < to {
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		e.state = EngineFailed
		return nil, err
	}
	e.state = EngineReady
	if len(out) != to-from {
		return nil, fmt.Errorf("pagefold: page %d past end of chapter %d (%d pages): %w",
			from+len(out), chapter, e.total, ErrNotFound)
	}
	return out, nil
}

// PageCount paginates to the chapter end if needed and returns the total
// page count.
func (e *Engine) PageCount(chapter int) (int, error) {
	e.ensureChapter(chapter)
	if e.total >= 0 {
		return e.total, nil
	}
	err := e.replay(len(e.marks)-1, -1, func(p Page) error {
		e.cache.put(p, p.Index)
		return nil
	})
	if err != nil {
		e.state = EngineFailed
		return 0, err
	}
	e.state = EngineReady
	return e.total, nil
}

// pageAt returns one page, serving it from cache or replaying from the
// nearest checkpoint. cursor biases cache eviction toward keeping pages
// near the caller's position.
func (e *Engine) pageAt(chapter, index, cursor int) (Page, error) {
	if index < 0 {
		return Page{}, fmt.Errorf("pagefold: invalid page index %d", index)
	}
	e.ensureChapter(chapter)
	if p, ok := e.cache.get(index); ok {
		return p, nil
	}
	var got *Page
	err := e.replay(index, index+1, func(p Page) error {
		e.cache.put(p, cursor)
		if p.Index == index {
			got = &p
		}
		return nil
	})
	if err != nil {
		e.state = EngineFailed
		return Page{}, err
	}
	e.state = EngineReady
	if got == nil {
		return Page{}, fmt.Errorf("pagefold: page %d past end of chapter %d (%d pages): %w",
			index, chapter, e.total, ErrNotFound)
	}
	return *got, nil
}

// replay streams the chapter through layout starting from the nearest
// checkpoint at or before fromPage, emitting every page it lays out from
// that checkpoint on. stopBefore bounds the replay: layout stops once the
// page before stopBefore is complete; stopBefore < 0 means run to chapter
// end and record the total.
func (e *Engine) replay(fromPage, stopBefore int, emit func(Page) error) error {
	markPage := fromPage
	if markPage >= len(e.marks) {
		markPage = len(e.marks) - 1
	}
	mark := e.marks[markPage]

	stopped := false
	lay := newLayouter(e.geom, e.chapter, markPage, mark.offset, func(p Page) error {
		e.noteMark(p)
		if err := emit(p); err != nil {
			return err
		}
		if stopBefore >= 0 && p.Index+1 >= stopBefore {
			stopped = true
			return errStopPagination
		}
		return nil
	})

	ordinal := 0
	err := e.book.streamChapter(e.chapter, 0, func(ev Event) error {
		if ev.Kind != EventRun {
			return nil
		}
		ord := ordinal
		ordinal++
		if ord < mark.run {
			return nil
		}
		return lay.place(ev.Text, ev.Style)
	})
	if errors.Is(err, errStopPagination) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := lay.flush(); err != nil {
		if errors.Is(err, errStopPagination) {
			return nil
		}
		return err
	}
	if !stopped {
		e.total = lay.pageIndex
	}
	return nil
}

// noteMark records the checkpoint of the page following p, derived from
// p's own mark plus its run count and text bytes. Marks never change for
// a fixed chapter and geometry, so replays only ever extend the slice.
func (e *Engine) noteMark(p Page) {
	next := p.Index + 1
	if next < len(e.marks) {
		return
	}
	// Pages arrive in order, so p's own mark always exists.
	base := e.marks[p.Index]
	bytes := 0
	for _, r := range p.Runs {
		bytes += len(r.Text)
	}
	e.marks = append(e.marks, pageMark{
		run:    base.run + len(p.Runs),
		offset: base.offset + bytes,
	})
}
