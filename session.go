package pagefold

import "fmt"

// EvictionPolicy picks which resident page index to evict when the cache
// is full. resident is non-empty and unordered; cursor is the session's
// current page position. The returned index must be one of resident.
type EvictionPolicy func(resident []int, cursor int) int

// EvictFarthest evicts the resident page farthest from the cursor. Access
// is overwhelmingly sequential, so distance from the cursor approximates
// recency well enough without per-access bookkeeping.
func EvictFarthest(resident []int, cursor int) int {
	best := resident[0]
	bestDist := absInt(best - cursor)
	for _, idx := range resident[1:] {
		if d := absInt(idx - cursor); d > bestDist {
			best = idx
			bestDist = d
		}
	}
	return best
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// pageCache is the bounded resident-page store. It never holds more than
// max pages; insertion at capacity evicts per the configured policy.
type pageCache struct {
	max      int
	pages    map[int]Page
	evict    EvictionPolicy
	resident []int // scratch for the policy call
}

func newPageCache(max int, evict EvictionPolicy) *pageCache {
	if max <= 0 {
		max = defaultMaxPagesInMemory
	}
	if evict == nil {
		evict = EvictFarthest
	}
	return &pageCache{
		max:   max,
		pages: make(map[int]Page, max),
		evict: evict,
	}
}

func (c *pageCache) get(index int) (Page, bool) {
	p, ok := c.pages[index]
	return p, ok
}

func (c *pageCache) put(p Page, cursor int) {
	if _, ok := c.pages[p.Index]; !ok {
		for len(c.pages) >= c.max {
			c.resident = c.resident[:0]
			for idx := range c.pages {
				c.resident = append(c.resident, idx)
			}
			delete(c.pages, c.evict(c.resident, cursor))
		}
	}
	c.pages[p.Index] = p
}

func (c *pageCache) clear() {
	for idx := range c.pages {
		delete(c.pages, idx)
	}
}

func (c *pageCache) len() int { return len(c.pages) }

// SessionConfig configures a render session.
type SessionConfig struct {
	// MaxPagesInMemory overrides the book's resident-page budget for this
	// session; zero keeps the book's value.
	MaxPagesInMemory int

	// Evict overrides the eviction policy; nil keeps EvictFarthest.
	Evict EvictionPolicy
}

// Session is a stateful cursor over one chapter's pages. Next and Prev
// move the cursor one page at a time; pages come from the resident cache
// or are recomputed from the nearest checkpoint. A Session is bound to
// its Engine and is single-threaded like it.
type Session struct {
	engine  *Engine
	chapter int
	cursor  int
	failed  bool
}

// BeginSession starts a session over the chapter. The engine switches to
// that chapter, dropping any other chapter's resident pages, and installs
// the session's cache configuration.
func (e *Engine) BeginSession(chapter int, cfg SessionConfig) (*Session, error) {
	if _, err := e.book.Chapter(chapter); err != nil {
		return nil, err
	}
	max := cfg.MaxPagesInMemory
	if max == 0 {
		max = e.book.opts.Memory.MaxPagesInMemory
	}
	e.reset(chapter)
	e.cache = newPageCache(max, cfg.Evict)
	return &Session{engine: e, chapter: chapter, cursor: -1}, nil
}

// Next advances to and returns the next page. After the last page it
// returns ErrNotFound and the cursor does not move.
func (s *Session) Next() (Page, error) {
	return s.moveTo(s.cursor + 1)
}

// Prev steps back to and returns the previous page. Before the first page
// it returns ErrNotFound and the cursor does not move.
func (s *Session) Prev() (Page, error) {
	if s.cursor <= 0 {
		return Page{}, fmt.Errorf("pagefold: no page before page 0: %w", ErrNotFound)
	}
	return s.moveTo(s.cursor - 1)
}

// Current returns the page under the cursor. Before the first Next the
// session has no current page.
func (s *Session) Current() (Page, error) {
	if s.cursor < 0 {
		return Page{}, fmt.Errorf("pagefold: session has no current page: %w", ErrNotFound)
	}
	return s.engine.pageAt(s.chapter, s.cursor, s.cursor)
}

// Cursor reports the current page index, -1 before the first Next.
func (s *Session) Cursor() int { return s.cursor }

func (s *Session) moveTo(index int) (Page, error) {
	if s.failed {
		return Page{}, fmt.Errorf("pagefold: session failed for chapter %d: %w", s.chapter, ErrSessionFailed)
	}
	p, err := s.engine.pageAt(s.chapter, index, index)
	if err != nil {
		if isLimitError(err) || s.engine.State() == EngineFailed {
			s.failed = true
		}
		return Page{}, err
	}
	s.cursor = index
	return p, nil
}
