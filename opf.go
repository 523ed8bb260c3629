package pagefold

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"
)

// opfPackage represents the root <package> element of an OPF file.
type opfPackage struct {
	XMLName  xml.Name    `xml:"package"`
	Version  string      `xml:"version,attr"`
	Metadata opfMetadata `xml:"metadata"`
	Manifest opfManifest `xml:"manifest"`
	Spine    opfSpine    `xml:"spine"`
}

// opfMetadata carries the metadata slice the pagination core surfaces:
// title and language, for CLI labeling. The rest of the Dublin Core set is
// outside this library's contract.
type opfMetadata struct {
	Titles    []string `xml:"http://purl.org/dc/elements/1.1/ title"`
	Languages []string `xml:"http://purl.org/dc/elements/1.1/ language"`
}

// opfManifest wraps the <manifest> element.
type opfManifest struct {
	Items []opfManifestItem `xml:"item"`
}

// opfManifestItem represents a single <item> in the manifest.
type opfManifestItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr"`
}

// opfSpine wraps the <spine> element.
type opfSpine struct {
	Toc      string            `xml:"toc,attr"`
	ItemRefs []opfSpineItemRef `xml:"itemref"`
}

// opfSpineItemRef represents a single <itemref> in the spine.
type opfSpineItemRef struct {
	IDRef  string `xml:"idref,attr"`
	Linear string `xml:"linear,attr"`
}

// manifestItem is the processed representation of a manifest entry.
type manifestItem struct {
	ID         string
	Href       string
	MediaType  string
	Properties string
}

// spineItem is the processed representation of a spine entry, carrying the
// resolved manifest href. Spine order is the reading order.
type spineItem struct {
	IDRef     string
	Href      string
	MediaType string
	Linear    bool
}

// entityNameToNumeric maps the HTML named entities that commonly leak into
// OPF/NCX files to numeric character references encoding/xml understands.
var entityNameToNumeric = map[string][]byte{
	"nbsp": []byte("&#160;"), "mdash": []byte("&#8212;"), "ndash": []byte("&#8211;"),
	"hellip": []byte("&#8230;"),
	"lsquo": []byte("&#8216;"), "rsquo": []byte("&#8217;"),
	"ldquo": []byte("&#8220;"), "rdquo": []byte("&#8221;"),
	"copy": []byte("&#169;"), "reg": []byte("&#174;"),
	"eacute": []byte("&#233;"), "egrave": []byte("&#232;"),
	"auml": []byte("&#228;"), "ouml": []byte("&#246;"), "uuml": []byte("&#252;"),
	"ntilde": []byte("&#241;"), "ccedil": []byte("&#231;"),
	"laquo": []byte("&#171;"), "raquo": []byte("&#187;"),
}

var htmlEntityPattern = regexp.MustCompile(
	`(?i)&(nbsp|mdash|ndash|hellip|lsquo|rsquo|ldquo|rdquo|copy|reg|` +
		`eacute|egrave|auml|ouml|uuml|ntilde|ccedil|laquo|raquo);`)

// preprocessHTMLEntities replaces HTML named entities with numeric
// references so encoding/xml can parse real-world OPF and NCX files.
func preprocessHTMLEntities(data []byte) []byte {
	return htmlEntityPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		name := strings.ToLower(string(match[1 : len(match)-1]))
		if replacement, ok := entityNameToNumeric[name]; ok {
			return replacement
		}
		return match
	})
}

// parseOPF parses OPF bytes into the package structure.
func parseOPF(data []byte) (*opfPackage, error) {
	data = preprocessHTMLEntities(data)
	data = stripBOM(data)

	var pkg opfPackage
	if err := xml.Unmarshal(data, &pkg); err != nil {
		return nil, fmt.Errorf("pagefold: parse OPF: %v: %w", err, ErrMalformedArchive)
	}
	if pkg.Version == "" {
		pkg.Version = "2.0"
	}
	return &pkg, nil
}

// buildManifestMaps creates ID and href lookup maps from the manifest.
func buildManifestMaps(manifest opfManifest) (byID, byHref map[string]*manifestItem) {
	byID = make(map[string]*manifestItem, len(manifest.Items))
	byHref = make(map[string]*manifestItem, len(manifest.Items))
	for _, item := range manifest.Items {
		mi := &manifestItem{
			ID:         item.ID,
			Href:       item.Href,
			MediaType:  item.MediaType,
			Properties: item.Properties,
		}
		byID[item.ID] = mi
		byHref[item.Href] = mi
	}
	return byID, byHref
}

// buildSpine resolves spine itemrefs against the manifest. Itemrefs whose
// idref has no manifest item keep an empty href; the navigation resolver
// drops them with a warning.
func buildSpine(spine opfSpine, manifestByID map[string]*manifestItem) []spineItem {
	items := make([]spineItem, 0, len(spine.ItemRefs))
	for _, ref := range spine.ItemRefs {
		si := spineItem{
			IDRef:  ref.IDRef,
			Linear: ref.Linear != "no",
		}
		if mi, ok := manifestByID[ref.IDRef]; ok {
			si.Href = mi.Href
			si.MediaType = mi.MediaType
		}
		items = append(items, si)
	}
	return items
}

// manifestProperty reports whether a manifest item's space-separated
// properties value contains the given token.
func manifestProperty(mi *manifestItem, prop string) bool {
	for _, p := range strings.Fields(mi.Properties) {
		if p == prop {
			return true
		}
	}
	return false
}
