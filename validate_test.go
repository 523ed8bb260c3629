package pagefold

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateCleanBook(t *testing.T) {
	b := openFixtureBook(t)
	defer b.Close()

	anomalies, err := b.Validate(false)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(anomalies) != 0 {
		t.Fatalf("unexpected anomalies: %v", anomalies)
	}

	// A clean book passes strict mode too.
	if _, err := b.Validate(true); err != nil {
		t.Fatalf("strict validate: %v", err)
	}
}

func TestValidateMissingMimetype(t *testing.T) {
	files := []fixtureFile{
		{name: "META-INF/container.xml", body: `<container xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles><rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/></rootfiles>
</container>`},
		{name: "OEBPS/content.opf", body: fixtureOPF},
		{name: "OEBPS/nav.xhtml", body: fixtureNav},
		{name: "OEBPS/toc.ncx", body: fixtureNCX},
		{name: "OEBPS/style.css", body: fixtureCSS},
		{name: "OEBPS/chap1.xhtml", body: fixtureChap1},
		{name: "OEBPS/chap2.xhtml", body: fixtureChap2},
		{name: "OEBPS/chap3.xhtml", body: fixtureChap3},
	}
	b := openFixture(t, buildZip(t, files), Options{})
	defer b.Close()

	anomalies, err := b.Validate(false)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(anomalies) != 1 || !strings.Contains(anomalies[0], "mimetype") {
		t.Fatalf("anomalies = %v, want one mimetype anomaly", anomalies)
	}

	// Strict mode turns the anomaly into an error.
	if _, err := b.Validate(true); !errors.Is(err, ErrValidation) {
		t.Fatalf("strict: want ErrValidation, got %v", err)
	}
}

func TestValidateWrongMimetype(t *testing.T) {
	data := buildZip(t, []fixtureFile{
		{name: "mimetype", body: "application/zip", store: true},
		{name: "META-INF/container.xml", body: `<container xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles><rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/></rootfiles>
</container>`},
		{name: "OEBPS/content.opf", body: fixtureOPF},
		{name: "OEBPS/nav.xhtml", body: fixtureNav},
		{name: "OEBPS/toc.ncx", body: fixtureNCX},
		{name: "OEBPS/style.css", body: fixtureCSS},
		{name: "OEBPS/chap1.xhtml", body: fixtureChap1},
		{name: "OEBPS/chap2.xhtml", body: fixtureChap2},
		{name: "OEBPS/chap3.xhtml", body: fixtureChap3},
	})
	b := openFixture(t, data, Options{})
	defer b.Close()

	anomalies, err := b.Validate(false)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	found := false
	for _, a := range anomalies {
		if strings.Contains(a, "application/zip") {
			found = true
		}
	}
	if !found {
		t.Fatalf("anomalies = %v, want wrong-mimetype report", anomalies)
	}
}

func TestValidateEncryptionAnomaly(t *testing.T) {
	data := buildZip(t, []fixtureFile{
		{name: "mimetype", body: "application/epub+zip", store: true},
		{name: "META-INF/container.xml", body: `<container xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles><rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/></rootfiles>
</container>`},
		{name: "META-INF/encryption.xml", body: `<encryption/>`},
		{name: "OEBPS/content.opf", body: fixtureOPF},
		{name: "OEBPS/nav.xhtml", body: fixtureNav},
		{name: "OEBPS/toc.ncx", body: fixtureNCX},
		{name: "OEBPS/style.css", body: fixtureCSS},
		{name: "OEBPS/chap1.xhtml", body: fixtureChap1},
		{name: "OEBPS/chap2.xhtml", body: fixtureChap2},
		{name: "OEBPS/chap3.xhtml", body: fixtureChap3},
	})
	b := openFixture(t, data, Options{})
	defer b.Close()

	anomalies, err := b.Validate(false)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	found := false
	for _, a := range anomalies {
		if strings.Contains(a, "encryption") {
			found = true
		}
	}
	if !found {
		t.Fatalf("anomalies = %v, want encryption report", anomalies)
	}
}

func TestValidateEmptySpine(t *testing.T) {
	data := buildZip(t, []fixtureFile{
		{name: "mimetype", body: "application/epub+zip", store: true},
		{name: "META-INF/container.xml", body: `<container xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles><rootfile full-path="book.opf" media-type="application/oebps-package+xml"/></rootfiles>
</container>`},
		{name: "book.opf", body: `<package xmlns="http://www.idpf.org/2007/opf" version="2.0">
  <manifest/><spine/>
</package>`},
	})
	b := openFixture(t, data, Options{})
	defer b.Close()

	// An empty spine is a hard failure in both modes.
	if _, err := b.Validate(false); !errors.Is(err, ErrValidation) {
		t.Fatalf("want ErrValidation, got %v", err)
	}
}

func TestValidateDroppedChapterStrict(t *testing.T) {
	data := buildZip(t, []fixtureFile{
		{name: "mimetype", body: "application/epub+zip", store: true},
		{name: "META-INF/container.xml", body: `<container xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles><rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/></rootfiles>
</container>`},
		{name: "OEBPS/content.opf", body: fixtureOPF},
		{name: "OEBPS/nav.xhtml", body: fixtureNav},
		{name: "OEBPS/toc.ncx", body: fixtureNCX},
		{name: "OEBPS/style.css", body: fixtureCSS},
		{name: "OEBPS/chap1.xhtml", body: fixtureChap1},
		{name: "OEBPS/chap3.xhtml", body: fixtureChap3},
	})
	b := openFixture(t, data, Options{})
	defer b.Close()

	anomalies, err := b.Validate(false)
	if err != nil {
		t.Fatalf("lenient validate: %v", err)
	}
	if len(anomalies) == 0 {
		t.Fatal("dropped chapter not reported")
	}
	if _, err := b.Validate(true); !errors.Is(err, ErrValidation) {
		t.Fatalf("strict: want ErrValidation, got %v", err)
	}
}
