package pagefold

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
)

// containerXML models META-INF/container.xml, used to locate the OPF.
type containerXML struct {
	XMLName   xml.Name   `xml:"container"`
	RootFiles []rootFile `xml:"rootfiles>rootfile"`
}

type rootFile struct {
	FullPath  string `xml:"full-path,attr"`
	MediaType string `xml:"media-type,attr"`
}

// containerPath is the well-known location of container.xml in the archive.
const containerPath = "META-INF/container.xml"

const opfMediaType = "application/oebps-package+xml"

// parseContainer locates the OPF path, reading container.xml under the
// navigation byte budget. If container.xml is missing it falls back to
// scanning the index for a ".opf" entry.
func parseContainer(a *archive, navBudget int) (string, error) {
	if a.entry(containerPath) == nil {
		return fallbackFindOPF(a)
	}

	var buf bytes.Buffer
	if _, err := a.readEntryInto(containerPath, &buf, navBudget); err != nil {
		return "", remapEntryCap(err, LimitNavBytes)
	}
	return parseContainerXML(buf.Bytes())
}

// parseContainerXML decodes container.xml bytes, returning the full-path of
// the first package rootfile.
func parseContainerXML(data []byte) (string, error) {
	data = stripBOM(data)

	var c containerXML
	if err := xml.Unmarshal(data, &c); err != nil {
		return "", fmt.Errorf("pagefold: parse container.xml: %v: %w", err, ErrMalformedArchive)
	}

	var fallback string
	for _, rf := range c.RootFiles {
		fullPath := strings.TrimSpace(rf.FullPath)
		if fullPath == "" {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(rf.MediaType), opfMediaType) {
			return fullPath, nil
		}
		if fallback == "" {
			fallback = fullPath
		}
	}
	if fallback == "" {
		return "", fmt.Errorf("pagefold: container.xml has no usable rootfile: %w", ErrMalformedArchive)
	}
	return fallback, nil
}

// fallbackFindOPF scans the entry index for the first ".opf" file.
func fallbackFindOPF(a *archive) (string, error) {
	for _, f := range a.zr.File {
		if strings.HasSuffix(strings.ToLower(f.Name), ".opf") {
			return f.Name, nil
		}
	}
	return "", fmt.Errorf("pagefold: no OPF file found: %w", ErrMalformedArchive)
}

// remapEntryCap rewrites an entry-bytes LimitError to the budget kind of
// the operation that performed the read, so navigation and stylesheet reads
// report their own limit kinds.
func remapEntryCap(err error, kind LimitKind) error {
	var le *LimitError
	if errors.As(err, &le) && le.Kind == LimitEntryBytes {
		return limitErr(kind, le.Actual, le.Limit)
	}
	return err
}
