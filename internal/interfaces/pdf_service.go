package interfaces

// PDFService handles PDF generation from markdown reports
type PDFService interface {
	// ConvertMarkdownToPDF converts markdown content to a PDF byte slice
	ConvertMarkdownToPDF(markdown, title string) ([]byte, error)
}

// PDFInspector reads basic facts from PDF documents
type PDFInspector interface {
	// PageCount returns the number of pages in the PDF
	PageCount(data []byte) (int, error)
}
