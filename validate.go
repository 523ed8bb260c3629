package pagefold

import (
	"bytes"
	"fmt"
	"strings"
)

const (
	mimetypePath   = "mimetype"
	epubMimetype   = "application/epub+zip"
	encryptionPath = "META-INF/encryption.xml"
)

// Validate checks the open book for structural well-formedness and
// returns the recoverable anomalies it finds: wrong or missing mimetype,
// missing navigation, dropped chapters, encrypted resources. Structural
// failures that make the book unreadable (an empty spine, an empty
// navigation table) are errors regardless of mode. In strict mode any
// anomaly is also an error, wrapping ErrValidation.
func (b *Book) Validate(strict bool) ([]string, error) {
	var anomalies []string

	if f := b.arc.entry(mimetypePath); f == nil {
		anomalies = append(anomalies, "mimetype entry missing")
	} else {
		var buf bytes.Buffer
		if _, err := b.arc.readEntryInto(mimetypePath, &buf, 256); err != nil {
			anomalies = append(anomalies, fmt.Sprintf("mimetype entry unreadable: %v", err))
		} else if got := strings.TrimSpace(buf.String()); got != epubMimetype {
			anomalies = append(anomalies, fmt.Sprintf("mimetype is %q, want %q", got, epubMimetype))
		}
	}

	if b.arc.entry(containerPath) == nil {
		anomalies = append(anomalies, "META-INF/container.xml missing; package located by scan")
	}

	if len(b.spine) == 0 {
		return anomalies, fmt.Errorf("pagefold: spine is empty: %w", ErrValidation)
	}

	if err := b.resolveNav(); err != nil {
		return anomalies, err
	}
	if len(b.nav) == 0 {
		return anomalies, fmt.Errorf("pagefold: no spine chapter resolves to an archive entry: %w", ErrValidation)
	}
	if b.navDocumentPath() == "" && b.ncxPath() == "" {
		anomalies = append(anomalies, "no navigation document or NCX declared")
	}

	if b.arc.entry(encryptionPath) != nil {
		anomalies = append(anomalies, "META-INF/encryption.xml present; resources may be encrypted (DRM)")
	}

	// Anomalies recorded while opening and resolving navigation count too:
	// dropped chapters, unparseable navigation, missing stylesheets.
	anomalies = append(anomalies, b.Warnings()...)

	if strict && len(anomalies) > 0 {
		return anomalies, fmt.Errorf("pagefold: %d anomalies in strict mode: %w", len(anomalies), ErrValidation)
	}
	return anomalies, nil
}
