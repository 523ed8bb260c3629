package pagefold

import (
	"archive/zip"
	"bytes"
	"testing"
)

// fixtureFile is one entry of an in-memory test archive.
type fixtureFile struct {
	name  string
	body  string
	store bool // STORE instead of DEFLATE
}

// buildZip assembles an in-memory ZIP from the given entries.
func buildZip(t *testing.T, files []fixtureFile) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		hdr := &zip.FileHeader{Name: f.name, Method: zip.Deflate}
		if f.store {
			hdr.Method = zip.Store
		}
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			t.Fatalf("create %s: %v", f.name, err)
		}
		if _, err := w.Write([]byte(f.body)); err != nil {
			t.Fatalf("write %s: %v", f.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

// openFixture opens an in-memory archive as a Book.
func openFixture(t *testing.T, data []byte, opts Options) *Book {
	t.Helper()
	b, err := OpenReaderWithOptions(bytes.NewReader(data), int64(len(data)), opts)
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	return b
}

const fixtureOPF = `<?xml version="1.0" encoding="utf-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="uid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Fixture Book</dc:title>
    <dc:language>en</dc:language>
  </metadata>
  <manifest>
    <item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>
    <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>
    <item id="css" href="style.css" media-type="text/css"/>
    <item id="c1" href="chap1.xhtml" media-type="application/xhtml+xml"/>
    <item id="c2" href="chap2.xhtml" media-type="application/xhtml+xml"/>
    <item id="c3" href="chap3.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine toc="ncx">
    <itemref idref="c1"/>
    <itemref idref="c2"/>
    <itemref idref="c3"/>
  </spine>
</package>`

const fixtureNav = `<?xml version="1.0" encoding="utf-8"?>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">
<head><title>Contents</title></head>
<body>
  <nav epub:type="toc">
    <ol>
      <li><a href="chap1.xhtml">Chapter One</a></li>
      <li><a href="chap2.xhtml">Chapter Two</a></li>
      <li><a href="chap3.xhtml">Chapter Three</a></li>
    </ol>
  </nav>
</body>
</html>`

const fixtureNCX = `<?xml version="1.0" encoding="utf-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
  <navMap>
    <navPoint id="n1" playOrder="1">
      <navLabel><text>One (NCX)</text></navLabel>
      <content src="chap1.xhtml"/>
    </navPoint>
    <navPoint id="n2" playOrder="2">
      <navLabel><text>Two (NCX)</text></navLabel>
      <content src="chap2.xhtml"/>
    </navPoint>
    <navPoint id="n3" playOrder="3">
      <navLabel><text>Three (NCX)</text></navLabel>
      <content src="chap3.xhtml"/>
    </navPoint>
  </navMap>
</ncx>`

const fixtureCSS = `/* fixture stylesheet */
p { text-align: justify; }
.opening { color: #ff0000; }
#lead { font-style: italic; }`

const fixtureChap1 = `<?xml version="1.0" encoding="utf-8"?>
<html xmlns="http://www.w3.org/1999/xhtml">
<head><title>Chapter One</title></head>
<body>
<h1 id="lead">Chapter One</h1>
<p class="opening">It was a bright cold day in April.</p>
<p>The clocks were striking thirteen.</p>
</body>
</html>`

const fixtureChap2 = `<?xml version="1.0" encoding="utf-8"?>
<html xmlns="http://www.w3.org/1999/xhtml">
<head><title>Chapter Two</title></head>
<body>
<h1>Chapter Two</h1>
<p>Winston kept his back turned to the telescreen.</p>
</body>
</html>`

const fixtureChap3 = `<?xml version="1.0" encoding="utf-8"?>
<html xmlns="http://www.w3.org/1999/xhtml">
<head><title>Chapter Three</title></head>
<body>
<h1>Chapter Three</h1>
<p>It was <b>safer</b>, though there was no way of knowing.</p>
</body>
</html>`

// fixtureEPUB is a well-formed minimal three-chapter book.
func fixtureEPUB(t *testing.T) []byte {
	t.Helper()
	return buildZip(t, []fixtureFile{
		{name: "mimetype", body: "application/epub+zip", store: true},
		{name: "META-INF/container.xml", body: `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`},
		{name: "OEBPS/content.opf", body: fixtureOPF},
		{name: "OEBPS/nav.xhtml", body: fixtureNav},
		{name: "OEBPS/toc.ncx", body: fixtureNCX},
		{name: "OEBPS/style.css", body: fixtureCSS},
		{name: "OEBPS/chap1.xhtml", body: fixtureChap1},
		{name: "OEBPS/chap2.xhtml", body: fixtureChap2},
		{name: "OEBPS/chap3.xhtml", body: fixtureChap3},
	})
}

// openFixtureBook opens the canonical three-chapter fixture.
func openFixtureBook(t *testing.T) *Book {
	t.Helper()
	return openFixture(t, fixtureEPUB(t), Options{})
}
