package pagefold

import (
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// maxElementDepth bounds the element-nesting stack. Legitimate XHTML stays
// well under this; deeper nesting indicates malformed or adversarial input.
const maxElementDepth = 64

// TokenKind discriminates the token variants emitted by tokenizeChapter.
type TokenKind uint8

const (
	// TokenStartElement is an opening tag.
	TokenStartElement TokenKind = iota + 1
	// TokenEndElement is a closing tag.
	TokenEndElement
	// TokenSelfClosing is a self-closing or void element.
	TokenSelfClosing
	// TokenText is a finalized text run referencing the scratch buffer.
	TokenText
)

// Attribute is a single tag attribute.
type Attribute struct {
	Key string
	Val string
}

// Token is one structural or text token of a chapter stream. The token and
// its Attr slice are reused between emissions; Text is a non-owning view
// into the Scratch and is invalidated when the next text run begins.
// Consumers must use a token fully within the emit callback.
type Token struct {
	Kind  TokenKind
	Tag   string
	Attr  []Attribute
	Text  ByteRange
	Depth int
}

// voidElements is the closed table of elements that never take content.
// Void elements are emitted as self-closing regardless of markup spelling.
var voidElements = map[atom.Atom]bool{
	atom.Area: true, atom.Base: true, atom.Br: true, atom.Col: true,
	atom.Embed: true, atom.Hr: true, atom.Img: true, atom.Input: true,
	atom.Link: true, atom.Meta: true, atom.Param: true, atom.Source: true,
	atom.Track: true, atom.Wbr: true,
}

// skipTags is the set of elements whose content is never part of the run
// stream.
var skipTags = map[atom.Atom]bool{
	atom.Script: true,
	atom.Style:  true,
}

// tokenizeChapter streams chapter markup through a push tokenizer. Input
// arrives from r in bounded chunks (the archive layer's capped reader);
// tokens are emitted into caller-owned storage as soon as each is
// structurally complete. A text run spanning chunk boundaries accumulates
// in the scratch text buffer and is finalized only when a structural
// boundary is observed.
//
// The element-nesting stack is bounded by maxElementDepth; exceeding it is
// a LimitError. Unbalanced tags produce a MarkupError with a best-effort
// byte offset. Text that is not valid UTF-8 fails with ErrInvalidEncoding.
func tokenizeChapter(r io.Reader, scratch *Scratch, emit func(*Token) error) error {
	cr := &countingReader{r: r}
	z := html.NewTokenizer(cr)
	scratch.Reset()

	var tok Token
	pending := false
	skipDepth := 0

	flushText := func() error {
		if !pending {
			return nil
		}
		pending = false
		if len(scratch.text) == 0 {
			return nil
		}
		if !utf8.Valid(scratch.text) {
			return fmt.Errorf("pagefold: text at byte %d: %w", cr.n, ErrInvalidEncoding)
		}
		tok.Kind = TokenText
		tok.Tag = ""
		tok.Attr = tok.Attr[:0]
		tok.Text = ByteRange{Off: 0, Len: len(scratch.text)}
		tok.Depth = len(scratch.stack)
		return emit(&tok)
	}

	emitStructural := func(kind TokenKind, tag string) error {
		tok.Kind = kind
		tok.Tag = tag
		tok.Text = ByteRange{}
		tok.Depth = len(scratch.stack)
		return emit(&tok)
	}

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			err := z.Err()
			if errors.Is(err, io.EOF) {
				if ferr := flushText(); ferr != nil {
					return ferr
				}
				if n := len(scratch.stack); n > 0 {
					return &MarkupError{
						Offset: cr.n,
						Reason: fmt.Sprintf("unclosed element <%s>", scratch.stack[n-1]),
					}
				}
				return nil
			}
			// Budget and corruption errors from the capped entry reader
			// propagate unchanged.
			if isLimitError(err) || errors.Is(err, ErrDecompressionFailed) {
				return err
			}
			return &MarkupError{Offset: cr.n, Reason: err.Error()}

		case html.StartTagToken:
			if err := flushText(); err != nil {
				return err
			}
			name, hasAttr := z.TagName()
			a := atom.Lookup(name)
			tag := tagString(a, name)
			collectAttrs(z, &tok, hasAttr)

			if skipTags[a] {
				skipDepth++
				continue
			}
			if skipDepth > 0 {
				continue
			}
			if voidElements[a] {
				if err := emitStructural(TokenSelfClosing, tag); err != nil {
					return err
				}
				continue
			}
			if len(scratch.stack) >= maxElementDepth {
				return limitErr(LimitElementDepth, len(scratch.stack)+1, maxElementDepth)
			}
			scratch.stack = append(scratch.stack, tag)
			if err := emitStructural(TokenStartElement, tag); err != nil {
				return err
			}

		case html.SelfClosingTagToken:
			if err := flushText(); err != nil {
				return err
			}
			name, hasAttr := z.TagName()
			a := atom.Lookup(name)
			if skipTags[a] || skipDepth > 0 {
				continue
			}
			tag := tagString(a, name)
			collectAttrs(z, &tok, hasAttr)
			if err := emitStructural(TokenSelfClosing, tag); err != nil {
				return err
			}

		case html.EndTagToken:
			if err := flushText(); err != nil {
				return err
			}
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if skipTags[a] {
				if skipDepth > 0 {
					skipDepth--
				}
				continue
			}
			if skipDepth > 0 {
				continue
			}
			if voidElements[a] {
				// Stray </br> and friends are tolerated and dropped.
				continue
			}
			tag := tagString(a, name)
			match := -1
			for i := len(scratch.stack) - 1; i >= 0; i-- {
				if scratch.stack[i] == tag {
					match = i
					break
				}
			}
			if match < 0 {
				return &MarkupError{
					Offset: cr.n,
					Reason: fmt.Sprintf("unexpected end tag </%s>", tag),
				}
			}
			tok.Attr = tok.Attr[:0]
			// Implied closes for elements left open above the match.
			for i := len(scratch.stack) - 1; i >= match; i-- {
				closed := scratch.stack[i]
				scratch.stack = scratch.stack[:i]
				if err := emitStructural(TokenEndElement, closed); err != nil {
					return err
				}
			}

		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			if !pending {
				scratch.beginRun()
				pending = true
			}
			if err := scratch.appendRun(z.Text()); err != nil {
				return err
			}

		case html.CommentToken, html.DoctypeToken:
			// Structurally inert; text accumulation continues across them.
		}
	}
}

// tagString returns the canonical tag name without allocating for known
// atoms.
func tagString(a atom.Atom, name []byte) string {
	if a != 0 {
		return a.String()
	}
	return string(name)
}

// collectAttrs fills the token's reused attribute slice from the tokenizer.
func collectAttrs(z *html.Tokenizer, tok *Token, hasAttr bool) {
	tok.Attr = tok.Attr[:0]
	for hasAttr {
		key, val, more := z.TagAttr()
		tok.Attr = append(tok.Attr, Attribute{Key: string(key), Val: string(val)})
		hasAttr = more
	}
}

// attrValue returns the value of the named attribute, or "".
func attrValue(attrs []Attribute, key string) string {
	for _, a := range attrs {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// countingReader tracks the byte offset consumed from the underlying
// stream, giving markup errors a best-effort position.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
