// -----------------------------------------------------------------------
// PDF Inspector - reads page counts from uploaded PDF attachments
// Uses pdfcpu for Go-native PDF processing
// -----------------------------------------------------------------------

package pdf

import (
	"fmt"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/marketsignal/internal/interfaces"
)

// Inspector implements interfaces.PDFInspector using pdfcpu
type Inspector struct {
	logger  arbor.ILogger
	tempDir string
}

var _ interfaces.PDFInspector = (*Inspector)(nil)

// NewInspector creates a PDF inspector that stages documents under the OS temp dir
func NewInspector(logger arbor.ILogger) *Inspector {
	return &Inspector{
		logger:  logger,
		tempDir: os.TempDir(),
	}
}

// PageCount returns the number of pages in data
func (i *Inspector) PageCount(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("empty PDF document")
	}

	// pdfcpu reads from disk, so stage the attachment in a temp file
	tmp, err := os.CreateTemp(i.tempDir, "marketsignal-*.pdf")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp PDF file: %w", err)
	}
	tempFile := tmp.Name()
	defer os.Remove(tempFile)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("failed to write temp PDF file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("failed to close temp PDF file: %w", err)
	}

	pdfCtx, err := api.ReadContextFile(tempFile)
	if err != nil {
		return 0, fmt.Errorf("failed to read PDF context: %w", err)
	}

	if i.logger != nil {
		i.logger.Debug().Int("pages", pdfCtx.PageCount).Int("size", len(data)).Msg("Inspected PDF attachment")
	}
	return pdfCtx.PageCount, nil
}
