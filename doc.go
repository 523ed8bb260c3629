// Package pagefold decodes EPUB containers and paginates their content
// for memory-constrained displays.
//
// The package never materializes a full chapter, stylesheet or archive
// index beyond configured budgets: archive entries stream through bounded
// chunked decompression with produced-byte caps, chapters stream through
// a push tokenizer into reusable scratch buffers, and pages are the only
// values cached across calls, bounded by MemoryBudget.MaxPagesInMemory.
//
// Open a book, then either consume styled runs directly:
//
//	book, err := pagefold.Open("novel.epub")
//	if err != nil { ... }
//	defer book.Close()
//	err = book.ChapterEvents(0, pagefold.EventOptions{}, func(ev pagefold.Event) error {
//		if ev.Kind == pagefold.EventRun {
//			speak(ev.Text, ev.Style)
//		}
//		return nil
//	})
//
// or paginate against a display geometry:
//
//	engine := pagefold.NewEngine(book, pagefold.Geometry{Width: 600, Height: 800})
//	session, err := engine.BeginSession(0, pagefold.SessionConfig{})
//	if err != nil { ... }
//	page, err := session.Next()
//
// Every budget breach is a recoverable *LimitError wrapping
// ErrLimitExceeded; corrupt input surfaces as ErrMalformedArchive,
// ErrMalformedMarkup, ErrInvalidEncoding or ErrDecompressionFailed, all
// recoverable at the granularity of one chapter or entry.
//
// A Book and everything derived from it is not safe for concurrent use.
// Independent Books over independent sources may run in parallel.
package pagefold
