package segment

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/tonewheel/studiorag/internal/corpus"
)

// splitPages isolates each page of the PDF at path into its own
// single-page document and returns the page bytes in order. The split
// happens in a temp directory that is removed before returning.
func splitPages(path string) ([][]byte, error) {
	pageCount, err := api.PageCountFile(path)
	if err != nil {
		return nil, fmt.Errorf("counting pages: %w", err)
	}

	tempDir, err := os.MkdirTemp("", "studiorag-segment-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	// Span 1 writes one file per page named <base>_<n>.pdf.
	if err := api.SplitFile(path, tempDir, 1, nil); err != nil {
		return nil, fmt.Errorf("splitting PDF: %w", err)
	}

	name := filepath.Base(path)
	base := strings.TrimSuffix(name, filepath.Ext(name))

	pages := make([][]byte, 0, pageCount)
	for n := 1; n <= pageCount; n++ {
		pagePath := filepath.Join(tempDir, fmt.Sprintf("%s_%d.pdf", base, n))
		data, err := os.ReadFile(pagePath)
		if err != nil {
			return nil, fmt.Errorf("reading split page %d: %w", n, err)
		}
		pages = append(pages, data)
	}
	return pages, nil
}

func writeAudit(path string, audit corpus.DocumentAudit) error {
	data, err := json.MarshalIndent(audit, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding audit: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing audit: %w", err)
	}
	return nil
}
