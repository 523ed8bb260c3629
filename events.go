package pagefold

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// EventKind discriminates chapter event variants.
type EventKind uint8

const (
	// EventElementStart marks the opening of a structural element.
	EventElementStart EventKind = iota
	// EventElementEnd marks the close of a structural element.
	EventElementEnd
	// EventRun delivers one finalized styled text run.
	EventRun
)

// Event is one item of a chapter event stream. Text is a non-owning view
// into an engine-owned buffer and is valid only for the duration of the
// callback; callers that retain run text must copy it.
type Event struct {
	Kind  EventKind
	Tag   string
	Text  []byte
	Style StyleSnapshot
}

// EventOptions configures a chapter event stream.
type EventOptions struct {
	// MaxItems bounds the number of delivered events; zero means
	// unbounded. Breaching it fails with a LimitError of kind
	// LimitTokenBuffer.
	MaxItems int
}

// blockTags are elements whose boundaries separate text runs and force
// paragraph breaks during layout.
var blockTags = map[string]bool{
	"p": true, "div": true, "section": true, "article": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"ul": true, "ol": true, "li": true, "dl": true, "dt": true, "dd": true,
	"blockquote": true, "pre": true, "figure": true, "figcaption": true,
	"table": true, "tr": true, "td": true, "th": true,
	"header": true, "footer": true, "aside": true, "nav": true,
	"hr": true, "br": true,
}

func isBlockTag(tag string) bool { return blockTags[tag] }

// nonContentTags hold no reader-visible text; runs inside them are
// dropped.
var nonContentTags = map[string]bool{
	"head": true, "title": true, "template": true,
}

// ChapterEvents streams structural events and finalized styled runs for
// the chapter at index, in document order, without materializing the
// chapter. The callback follows the Event ownership contract; returning a
// non-nil error aborts the stream and propagates the error.
func (b *Book) ChapterEvents(index int, opts EventOptions, emit func(Event) error) error {
	return b.streamChapter(index, opts.MaxItems, emit)
}

// streamChapter is the shared chapter pipeline: bounded entry read,
// tokenization, style resolution, whitespace collapsing. Both the event
// surface and the paginator sit on top of it.
func (b *Book) streamChapter(index int, maxItems int, emit func(Event) error) error {
	rc, err := b.openChapter(index)
	if err != nil {
		return err
	}
	defer rc.Close()

	cascade, err := b.stylesheetCascade()
	if err != nil {
		return err
	}

	st := &styleStack{
		cascade:      cascade,
		inlineBudget: b.opts.Memory.MaxInlineStyleBytes,
	}
	delivered := 0
	deliver := func(ev Event) error {
		delivered++
		if maxItems > 0 && delivered > maxItems {
			return limitErr(LimitTokenBuffer, delivered, maxItems)
		}
		return emit(ev)
	}

	runBuf := b.scratch.runBuf[:0]
	atBreak := true // suppress leading whitespace at block boundaries

	flushRun := func() error {
		if len(runBuf) == 0 {
			return nil
		}
		ev := Event{Kind: EventRun, Text: runBuf, Style: st.current()}
		runBuf = runBuf[:0]
		return deliver(ev)
	}

	err = tokenizeChapter(rc, b.scratch, func(t *Token) error {
		switch t.Kind {
		case TokenStartElement, TokenSelfClosing:
			// Any element boundary finalizes the pending run so that
			// every run carries exactly one style snapshot.
			if err := flushRun(); err != nil {
				return err
			}
			if isBlockTag(t.Tag) {
				atBreak = true
			}
			if t.Kind == TokenStartElement {
				if err := st.push(t.Tag, t.Attr); err != nil {
					return err
				}
			}
			return deliver(Event{Kind: EventElementStart, Tag: t.Tag})
		case TokenEndElement:
			if err := flushRun(); err != nil {
				return err
			}
			if isBlockTag(t.Tag) {
				atBreak = true
			}
			st.pop()
			return deliver(Event{Kind: EventElementEnd, Tag: t.Tag})
		case TokenText:
			if st.inNonContent() {
				return nil
			}
			text := b.scratch.TextSlice(t.Text)
			runBuf, atBreak = appendCollapsed(runBuf, text, atBreak)
			return nil
		}
		return nil
	})
	if err != nil {
		b.scratch.runBuf = runBuf[:0]
		return err
	}
	if err := flushRun(); err != nil {
		b.scratch.runBuf = runBuf[:0]
		return err
	}
	b.scratch.runBuf = runBuf[:0]
	return nil
}

// appendCollapsed appends text with runs of whitespace collapsed to one
// space. atBreak suppresses the space entirely at block boundaries.
func appendCollapsed(dst, text []byte, atBreak bool) ([]byte, bool) {
	i := 0
	for i < len(text) {
		r, size := utf8.DecodeRune(text[i:])
		if unicode.IsSpace(r) {
			if !atBreak {
				dst = append(dst, ' ')
				atBreak = true
			}
		} else {
			dst = append(dst, text[i:i+size]...)
			atBreak = false
		}
		i += size
	}
	return dst, atBreak
}

// styleStack tracks the open-element path and resolves the effective
// style of the innermost element lazily, re-resolving only when the path
// changes.
type styleStack struct {
	cascade      *Cascade
	inlineBudget int
	path         []ElementRef
	inline       []Declarations
	nonContent   int // open nonContentTags elements
	cur          StyleSnapshot
	dirty        bool
	resolved     bool
}

func (s *styleStack) push(tag string, attrs []Attribute) error {
	ref := ElementRef{Tag: tag}
	var inline Declarations
	for _, a := range attrs {
		switch a.Key {
		case "id":
			ref.ID = a.Val
		case "class":
			ref.Classes = splitClasses(a.Val)
		case "style":
			decls, err := parseInlineStyle([]byte(a.Val), s.inlineBudget)
			if err != nil {
				return err
			}
			inline = decls
		}
	}
	s.path = append(s.path, ref)
	s.inline = append(s.inline, inline)
	if nonContentTags[tag] {
		s.nonContent++
	}
	s.dirty = true
	return nil
}

func (s *styleStack) pop() {
	if len(s.path) == 0 {
		return
	}
	if nonContentTags[s.path[len(s.path)-1].Tag] {
		s.nonContent--
	}
	s.path = s.path[:len(s.path)-1]
	s.inline = s.inline[:len(s.inline)-1]
	s.dirty = true
}

func (s *styleStack) inNonContent() bool { return s.nonContent > 0 }

// current returns the resolved snapshot for the innermost element,
// merging the inline declarations of every open element outside in.
func (s *styleStack) current() StyleSnapshot {
	if s.resolved && !s.dirty {
		return s.cur
	}
	snap := DefaultStyle()
	for i := range s.path {
		applyTagDefaults(&snap, s.path[i].Tag)
		s.cascade.applyMatching(s.path[:i+1], &snap)
		for _, d := range s.inline[i] {
			applyDeclaration(&snap, d)
		}
	}
	s.cur = snap
	s.dirty = false
	s.resolved = true
	return snap
}

func splitClasses(v string) []string {
	fields := strings.Fields(v)
	if len(fields) == 0 {
		return nil
	}
	for i, f := range fields {
		fields[i] = strings.ToLower(f)
	}
	return fields
}
