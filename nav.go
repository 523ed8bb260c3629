package pagefold

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ChapterRef describes one chapter of the navigation table: its
// ZIP-internal href, its title (empty when the book's navigation document
// does not name it), and its position in the spine reading order.
type ChapterRef struct {
	Href       string
	Title      string
	SpineIndex int
}

// navState is the tri-state guard for lazy navigation resolution.
type navState uint8

const (
	navUnresolved navState = iota
	navResolving
	navResolved
)

// resolveNav populates the navigation table exactly once. Repeated calls
// after the first success return the cached table without re-parsing.
func (b *Book) resolveNav() error {
	switch b.navState {
	case navResolved:
		return nil
	case navResolving:
		return fmt.Errorf("pagefold: recursive navigation resolution: %w", ErrMalformedArchive)
	}
	b.navState = navResolving

	table, err := b.buildNavTable()
	if err != nil {
		b.navState = navUnresolved
		return err
	}
	b.nav = table
	b.navState = navResolved
	return nil
}

// buildNavTable assembles ChapterRefs in spine order, attaching titles from
// the navigation document. A spine item whose href has no matching archive
// entry is dropped with a warning rather than failing the open; a chapter
// that is missing when its text is actually requested is an error there.
func (b *Book) buildNavTable() ([]ChapterRef, error) {
	titles, err := b.navTitles()
	if err != nil {
		return nil, err
	}

	table := make([]ChapterRef, 0, len(b.spine))
	for i, si := range b.spine {
		if si.Href == "" {
			b.warn("spine itemref %q has no manifest item; dropped", si.IDRef)
			continue
		}
		href := b.resolveOPFPath(si.Href)
		if b.arc.entry(href) == nil {
			b.warn("chapter %q not present in archive; dropped from navigation", href)
			continue
		}
		table = append(table, ChapterRef{
			Href:       href,
			Title:      titles[href],
			SpineIndex: i,
		})
	}
	return table, nil
}

// navTitles extracts a href→title map from the first navigation source
// that parses: the EPUB 3 nav document, then the NCX. Each read is bounded
// by the navigation byte budget; parse failures of one format fall through
// to the next with a warning.
func (b *Book) navTitles() (map[string]string, error) {
	if navPath := b.navDocumentPath(); navPath != "" {
		data, err := b.readNavResource(navPath)
		if err != nil {
			if isLimitError(err) {
				return nil, err
			}
			b.warn("nav document %q unreadable: %v", navPath, err)
		} else {
			titles, perr := parseNavDocumentTitles(data, navPath)
			if perr == nil {
				return titles, nil
			}
			b.warn("nav document %q unparseable: %v", navPath, perr)
		}
	}

	if ncxPath := b.ncxPath(); ncxPath != "" {
		data, err := b.readNavResource(ncxPath)
		if err != nil {
			if isLimitError(err) {
				return nil, err
			}
			b.warn("NCX %q unreadable: %v", ncxPath, err)
		} else {
			titles, perr := parseNCXTitles(data, ncxPath)
			if perr == nil {
				return titles, nil
			}
			b.warn("NCX %q unparseable: %v", ncxPath, perr)
		}
	}

	// No navigation document at all: chapters keep empty titles.
	return map[string]string{}, nil
}

// navDocumentPath locates the EPUB 3 nav document via the manifest "nav"
// property, resolved to a ZIP-internal path. Empty when absent.
func (b *Book) navDocumentPath() string {
	for _, raw := range b.opf.Manifest.Items {
		mi := b.manifestByID[raw.ID]
		if mi != nil && manifestProperty(mi, "nav") {
			return b.resolveOPFPath(mi.Href)
		}
	}
	return ""
}

// ncxPath locates the NCX via the spine toc attribute. Empty when absent.
func (b *Book) ncxPath() string {
	if b.opf.Spine.Toc == "" {
		return ""
	}
	mi, ok := b.manifestByID[b.opf.Spine.Toc]
	if !ok {
		return ""
	}
	return b.resolveOPFPath(mi.Href)
}

// readNavResource reads a navigation-related entry under MaxNavBytes.
func (b *Book) readNavResource(name string) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := b.arc.readEntryInto(name, &buf, b.opts.Memory.MaxNavBytes); err != nil {
		return nil, remapEntryCap(err, LimitNavBytes)
	}
	return buf.Bytes(), nil
}

// parseNavDocumentTitles extracts href→title pairs from an EPUB 3 nav
// document. It uses the toc nav element's anchor list; hrefs are resolved
// relative to the nav document and stripped of fragments, so a chapter file
// referenced by several anchors keeps the first title.
func parseNavDocumentTitles(data []byte, basePath string) (map[string]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("pagefold: parse nav document: %w", err)
	}

	titles := make(map[string]string)
	doc.Find("nav").EachWithBreak(func(_ int, nav *goquery.Selection) bool {
		if !navTypeIs(nav, "toc") {
			return true
		}
		nav.Find("a").Each(func(_ int, a *goquery.Selection) {
			href, ok := a.Attr("href")
			if !ok {
				return
			}
			resolved := resolveRelativePath(basePath, hrefWithoutFragment(href))
			if resolved == "" {
				return
			}
			title := strings.TrimSpace(a.Text())
			if title == "" {
				return
			}
			if _, exists := titles[resolved]; !exists {
				titles[resolved] = title
			}
		})
		return false // first toc nav wins
	})
	return titles, nil
}

// navTypeIs reports whether a nav element's epub:type tokens contain name.
func navTypeIs(nav *goquery.Selection, name string) bool {
	val, ok := nav.Attr("epub:type")
	if !ok {
		// Some books omit epub:type on their only nav element; landmark
		// and page-list navs always carry one.
		return name == "toc"
	}
	for _, t := range strings.Fields(val) {
		if t == name {
			return true
		}
	}
	return false
}

// --- NCX (legacy table of contents) ---

type ncxDocument struct {
	XMLName xml.Name  `xml:"ncx"`
	NavMap  ncxNavMap `xml:"navMap"`
}

type ncxNavMap struct {
	NavPoints []ncxNavPoint `xml:"navPoint"`
}

type ncxNavPoint struct {
	Label    ncxLabel      `xml:"navLabel"`
	Content  ncxContent    `xml:"content"`
	Children []ncxNavPoint `xml:"navPoint"`
}

type ncxLabel struct {
	Text string `xml:"text"`
}

type ncxContent struct {
	Src string `xml:"src,attr"`
}

// parseNCXTitles extracts href→title pairs from NCX bytes.
func parseNCXTitles(data []byte, ncxPath string) (map[string]string, error) {
	data = preprocessHTMLEntities(data)
	data = stripBOM(data)

	var doc ncxDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("pagefold: parse NCX: %w", err)
	}

	titles := make(map[string]string)
	collectNCXTitles(doc.NavMap.NavPoints, ncxPath, titles)
	return titles, nil
}

func collectNCXTitles(points []ncxNavPoint, ncxPath string, titles map[string]string) {
	for _, np := range points {
		src := strings.TrimSpace(np.Content.Src)
		if src != "" {
			resolved := resolveRelativePath(ncxPath, hrefWithoutFragment(src))
			title := strings.TrimSpace(np.Label.Text)
			if resolved != "" && title != "" {
				if _, exists := titles[resolved]; !exists {
					titles[resolved] = title
				}
			}
		}
		collectNCXTitles(np.Children, ncxPath, titles)
	}
}
