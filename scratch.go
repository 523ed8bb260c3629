package pagefold

// defaultMaxTextBytes caps a single accumulated text run in the scratch
// buffer. One run larger than this indicates adversarial input.
const defaultMaxTextBytes = 256 << 10

// Scratch holds the reusable per-operation buffers of the tokenizer
// pipeline: the text accumulation buffer and the element-nesting stack.
// Buffers are length-reset between operations; capacity is retained so
// steady-state tokenization performs no allocation.
//
// A Scratch is owned by exactly one tokenization at a time.
type Scratch struct {
	// text accumulates the bytes of the current text run. Tokens reference
	// ranges of this buffer; the ranges are invalidated by the next run.
	text []byte

	// maxText bounds a single run's accumulated bytes.
	maxText int

	// stack holds the open-element tags, innermost last. It backs the
	// tokenizer's depth bound and balance checking.
	stack []string

	// runBuf accumulates whitespace-collapsed run text for the event
	// stream. Events reference it; the reference dies with the callback.
	runBuf []byte
}

// NewScratch returns a Scratch with pre-sized buffers. maxTextBytes bounds
// a single text run; zero means the default.
func NewScratch(maxTextBytes int) *Scratch {
	if maxTextBytes == 0 {
		maxTextBytes = defaultMaxTextBytes
	}
	return &Scratch{
		text:    make([]byte, 0, 4<<10),
		maxText: maxTextBytes,
		stack:   make([]string, 0, maxElementDepth),
		runBuf:  make([]byte, 0, 1<<10),
	}
}

// Reset clears the scratch for a new tokenization, retaining capacity.
func (s *Scratch) Reset() {
	s.text = s.text[:0]
	s.stack = s.stack[:0]
	s.runBuf = s.runBuf[:0]
}

// beginRun drops the previous run's bytes. Any outstanding ByteRange views
// become invalid here.
func (s *Scratch) beginRun() {
	s.text = s.text[:0]
}

// appendRun adds chunk bytes to the current run, enforcing the run cap.
func (s *Scratch) appendRun(chunk []byte) error {
	if len(s.text)+len(chunk) > s.maxText {
		return limitErr(LimitTokenBuffer, len(s.text)+len(chunk), s.maxText)
	}
	s.text = append(s.text, chunk...)
	return nil
}

// ByteRange is a non-owning view into a scratch buffer: an (offset, length)
// pair, never a copy. Its validity is scoped to the producing buffer's
// current run; consumers must use it before the next token is produced.
type ByteRange struct {
	Off int
	Len int
}

// TextSlice resolves a ByteRange against the scratch text buffer.
func (s *Scratch) TextSlice(r ByteRange) []byte {
	return s.text[r.Off : r.Off+r.Len]
}
