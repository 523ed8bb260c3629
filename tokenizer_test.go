package pagefold

import (
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"
)

// chunkReader delivers at most n bytes per Read, exercising chunked input.
type chunkReader struct {
	data []byte
	n    int
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(c.data) == 0 {
		return 0, io.EOF
	}
	n := c.n
	if n > len(c.data) {
		n = len(c.data)
	}
	if n > len(p) {
		n = len(p)
	}
	copy(p, c.data[:n])
	c.data = c.data[n:]
	return n, nil
}

// tokenStrings tokenizes src and renders each token to a comparable string.
// chunk > 0 feeds the input in chunks of that size.
func tokenStrings(t *testing.T, src string, chunk int) []string {
	t.Helper()
	out, err := tokenStringsErr(src, chunk)
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	return out
}

func tokenStringsErr(src string, chunk int) ([]string, error) {
	var r io.Reader = strings.NewReader(src)
	if chunk > 0 {
		r = &chunkReader{data: []byte(src), n: chunk}
	}
	sc := NewScratch(0)
	var out []string
	err := tokenizeChapter(r, sc, func(tok *Token) error {
		switch tok.Kind {
		case TokenStartElement:
			out = append(out, "<"+tok.Tag+">")
		case TokenEndElement:
			out = append(out, "</"+tok.Tag+">")
		case TokenSelfClosing:
			out = append(out, "<"+tok.Tag+"/>")
		case TokenText:
			out = append(out, "text:"+string(sc.TextSlice(tok.Text)))
		}
		return nil
	})
	return out, err
}

func TestTokenizeBasic(t *testing.T) {
	got := tokenStrings(t, "<p>Hello <b>world</b>!</p>", 0)
	want := []string{
		"<p>", "text:Hello ", "<b>", "text:world", "</b>", "text:!", "</p>",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("tokens = %q, want %q", got, want)
	}
}

func TestTokenizeChunkingTransparency(t *testing.T) {
	// The same bytes through one buffer or through arbitrary chunkings
	// produce an identical token sequence.
	whole := tokenStrings(t, fixtureChap1, 0)
	for _, chunk := range []int{1, 3, 7, 64, 1024} {
		chunked := tokenStrings(t, fixtureChap1, chunk)
		if !reflect.DeepEqual(whole, chunked) {
			t.Fatalf("chunk=%d diverges:\nwhole:   %q\nchunked: %q", chunk, whole, chunked)
		}
	}
}

func TestTokenizeTextSpansComments(t *testing.T) {
	got := tokenStrings(t, "<p>alpha<!-- note -->beta</p>", 0)
	want := []string{"<p>", "text:alphabeta", "</p>"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("tokens = %q, want %q", got, want)
	}
}

func TestTokenizeVoidElements(t *testing.T) {
	got := tokenStrings(t, `<p>a<br>b<img src="pic.png"/>c</p>`, 0)
	want := []string{
		"<p>", "text:a", "<br/>", "text:b", "<img/>", "text:c", "</p>",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("tokens = %q, want %q", got, want)
	}

	// A closed spelling of a void element is tolerated and dropped.
	got = tokenStrings(t, "<p>a<br></br>b</p>", 0)
	want = []string{"<p>", "text:a", "<br/>", "text:b", "</p>"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("tokens = %q, want %q", got, want)
	}
}

func TestTokenizeImpliedCloses(t *testing.T) {
	got := tokenStrings(t, "<div><span>x</div>", 0)
	want := []string{"<div>", "<span>", "text:x", "</span>", "</div>"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("tokens = %q, want %q", got, want)
	}
}

func TestTokenizeSkipsScriptAndStyle(t *testing.T) {
	src := `<p>a</p><script>var x = "<b>no</b>";</script><style>p { color: red }</style><p>b</p>`
	got := tokenStrings(t, src, 0)
	want := []string{"<p>", "text:a", "</p>", "<p>", "text:b", "</p>"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("tokens = %q, want %q", got, want)
	}
}

func TestTokenizeDepthLimit(t *testing.T) {
	var sb strings.Builder
	for i := 0; i <= maxElementDepth; i++ {
		sb.WriteString("<div>")
	}
	_, err := tokenStringsErr(sb.String(), 0)
	var le *LimitError
	if !errors.As(err, &le) {
		t.Fatalf("want LimitError, got %v", err)
	}
	if le.Kind != LimitElementDepth {
		t.Fatalf("kind = %s, want %s", le.Kind, LimitElementDepth)
	}
}

func TestTokenizeStrayEndTag(t *testing.T) {
	_, err := tokenStringsErr("<p>hello</i></p>", 0)
	var me *MarkupError
	if !errors.As(err, &me) {
		t.Fatalf("want MarkupError, got %v", err)
	}
	if !errors.Is(err, ErrMalformedMarkup) {
		t.Error("MarkupError does not unwrap to ErrMalformedMarkup")
	}
}

func TestTokenizeUnclosedElement(t *testing.T) {
	_, err := tokenStringsErr("<div><p>dangling", 0)
	if !errors.Is(err, ErrMalformedMarkup) {
		t.Fatalf("want ErrMalformedMarkup, got %v", err)
	}
}

func TestTokenizeInvalidUTF8(t *testing.T) {
	_, err := tokenStringsErr("<p>bad \xff\xfe bytes</p>", 0)
	if !errors.Is(err, ErrInvalidEncoding) {
		t.Fatalf("want ErrInvalidEncoding, got %v", err)
	}
}

func TestTokenizeAttributes(t *testing.T) {
	sc := NewScratch(0)
	var got []Attribute
	err := tokenizeChapter(strings.NewReader(`<p id="lead" class="Open Big">x</p>`), sc, func(tok *Token) error {
		if tok.Kind == TokenStartElement && tok.Tag == "p" {
			got = append([]Attribute(nil), tok.Attr...)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	if attrValue(got, "id") != "lead" {
		t.Errorf("id = %q, want lead", attrValue(got, "id"))
	}
	if attrValue(got, "class") != "Open Big" {
		t.Errorf("class = %q", attrValue(got, "class"))
	}
	if attrValue(got, "missing") != "" {
		t.Error("absent attribute returned a value")
	}
}
