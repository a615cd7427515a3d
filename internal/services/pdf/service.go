package pdf

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/ternarybob/marketsignal/internal/interfaces"
	"github.com/ternarybob/marketsignal/internal/models"
)

const (
	pageWidth  = 190.0
	baseFont   = "Arial"
	baseSize   = 10.0
	lineHeight = 5.0
)

// Service implements interfaces.PDFService
type Service struct {
	logger arbor.ILogger
}

var _ interfaces.PDFService = (*Service)(nil)

// NewService creates a new PDF service
func NewService(logger arbor.ILogger) *Service {
	if logger == nil {
		logger = arbor.NewLogger()
	}
	return &Service{
		logger: logger,
	}
}

// RenderAnalysis exports a finished analysis as a PDF: the report body,
// followed by the frequency table and the web sources when present.
func (s *Service) RenderAnalysis(req *models.AnalysisRequest, result *models.AnalysisResult) ([]byte, error) {
	if result == nil {
		return nil, fmt.Errorf("no analysis result to export")
	}

	title := "Market Signal Report"
	if req != nil && req.Industry != "" {
		title = fmt.Sprintf("Market Signal Report: %s", req.Industry)
		if req.Geography != "" {
			title += " in " + req.Geography
		}
	}

	return s.ConvertMarkdownToPDF(AnalysisMarkdown(title, result), title)
}

// AnalysisMarkdown assembles the markdown document used for PDF export
func AnalysisMarkdown(title string, result *models.AnalysisResult) string {
	var b strings.Builder
	b.WriteString("# " + title + "\n\n")
	b.WriteString(strings.TrimSpace(result.ReportText))
	b.WriteString("\n\n")

	if len(result.ChartData) > 0 {
		b.WriteString("## Problem Frequency\n\n")
		b.WriteString("| Problem | Frequency | Segment |\n|---|---|---|\n")
		for _, p := range result.ChartData {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", escapeCell(p.Problem), frequencyLabel(p.Frequency), escapeCell(p.Segment))
		}
		b.WriteString("\n")
	}

	if len(result.GroundingSources) > 0 {
		b.WriteString("## Sources\n\n")
		for _, src := range result.GroundingSources {
			fmt.Fprintf(&b, "- %s (%s)\n", src.Title, src.URI)
		}
	}

	return b.String()
}

// ConvertMarkdownToPDF converts markdown content to a PDF byte slice
func (s *Service) ConvertMarkdownToPDF(markdown, title string) ([]byte, error) {
	s.logger.Debug().
		Int("markdown_len", len(markdown)).
		Str("title", title).
		Msg("Converting markdown to PDF")

	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetTitle(title, true)
	doc.SetCreator("MarketSignal", true)
	doc.SetMargins(10, 10, 10)
	doc.SetAutoPageBreak(true, 10)
	doc.AddPage()
	doc.SetFont(baseFont, "", baseSize)

	md := goldmark.New(goldmark.WithExtensions(extension.Table, extension.Strikethrough))
	source := []byte(markdown)
	root := md.Parser().Parse(text.NewReader(source))

	r := &renderer{
		pdf:    doc,
		source: source,
		// Core fonts are cp1252; model output routinely carries smart quotes and dashes
		tr: doc.UnicodeTranslatorFromDescriptor(""),
	}
	if err := ast.Walk(root, r.walk); err != nil {
		s.logger.Error().Err(err).Msg("Failed to render PDF")
		return nil, fmt.Errorf("failed to render PDF: %w", err)
	}
	if err := doc.Error(); err != nil {
		return nil, fmt.Errorf("failed to render PDF: %w", err)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate PDF output")
		return nil, fmt.Errorf("failed to generate PDF output: %w", err)
	}

	s.logger.Debug().Int("pdf_size", buf.Len()).Msg("PDF generated successfully")
	return buf.Bytes(), nil
}

type renderer struct {
	pdf       *fpdf.Fpdf
	source    []byte
	tr        func(string) string
	bold      bool
	italic    bool
	listLevel int
}

func (r *renderer) setFont() {
	style := ""
	if r.bold {
		style += "B"
	}
	if r.italic {
		style += "I"
	}
	r.pdf.SetFont(baseFont, style, baseSize)
}

func (r *renderer) write(s string) {
	r.pdf.Write(lineHeight, r.tr(s))
}

func (r *renderer) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := n.(type) {
	case *ast.Heading:
		if entering {
			r.pdf.Ln(4)
			sizes := map[int]float64{1: 15, 2: 13, 3: 11}
			size, ok := sizes[node.Level]
			if !ok {
				size = baseSize
			}
			r.pdf.SetFont(baseFont, "B", size)
		} else {
			r.pdf.Ln(7)
			r.setFont()
		}

	case *ast.Paragraph:
		if !entering && r.listLevel == 0 {
			r.pdf.Ln(7)
		}

	case *ast.TextBlock:
		// tight list items

	case *ast.Text:
		if entering {
			r.write(string(node.Segment.Value(r.source)))
			if node.SoftLineBreak() || node.HardLineBreak() {
				r.write(" ")
			}
		}

	case *ast.String:
		if entering {
			r.write(string(node.Value))
		}

	case *ast.Emphasis:
		if node.Level == 2 {
			r.bold = entering
		} else {
			r.italic = entering
		}
		r.setFont()

	case *ast.CodeSpan:
		if entering {
			r.pdf.SetFont("Courier", "", baseSize)
			r.write(string(node.Text(r.source)))
			r.setFont()
		}
		return ast.WalkSkipChildren, nil

	case *ast.FencedCodeBlock, *ast.CodeBlock:
		if entering {
			r.codeBlock(n.Lines())
		}
		return ast.WalkSkipChildren, nil

	case *ast.List:
		if entering {
			r.listLevel++
		} else {
			r.listLevel--
			if r.listLevel == 0 {
				r.pdf.Ln(7)
			}
		}

	case *ast.ListItem:
		if entering {
			r.pdf.Ln(lineHeight)
			r.pdf.SetX(10 + float64(r.listLevel)*5)
			r.write("- ")
		}

	case *ast.ThematicBreak:
		if entering {
			r.pdf.Ln(2)
			r.pdf.Line(10, r.pdf.GetY(), 10+pageWidth, r.pdf.GetY())
			r.pdf.Ln(2)
		}

	case *extast.Table:
		if entering {
			r.table(node)
		}
		return ast.WalkSkipChildren, nil
	}

	return ast.WalkContinue, nil
}

func (r *renderer) codeBlock(lines *text.Segments) {
	r.pdf.SetFont("Courier", "", 9)
	r.pdf.SetFillColor(245, 245, 245)
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		r.pdf.MultiCell(0, 4.5, r.tr(strings.TrimRight(string(seg.Value(r.source)), "\n")), "", "L", true)
	}
	r.pdf.SetFillColor(255, 255, 255)
	r.setFont()
	r.pdf.Ln(3)
}

func (r *renderer) table(n *extast.Table) {
	var rows [][]string
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		switch row := child.(type) {
		case *extast.TableHeader:
			rows = append(rows, r.cells(row))
		case *extast.TableRow:
			rows = append(rows, r.cells(row))
		}
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return
	}

	cols := len(rows[0])
	width := pageWidth / float64(cols)

	r.pdf.Ln(2)
	for i, row := range rows {
		if i == 0 {
			r.pdf.SetFont(baseFont, "B", 9)
			r.pdf.SetFillColor(230, 230, 230)
		} else {
			r.pdf.SetFont(baseFont, "", 9)
			r.pdf.SetFillColor(255, 255, 255)
		}

		// Tallest cell decides the row height
		height := lineHeight
		for _, cell := range row {
			lines := len(r.pdf.SplitText(r.tr(cell), width-2))
			if h := float64(lines) * lineHeight; h > height {
				height = h
			}
		}

		_, pageHeight := r.pdf.GetPageSize()
		_, _, _, bottom := r.pdf.GetMargins()
		if r.pdf.GetY()+height > pageHeight-bottom {
			r.pdf.AddPage()
		}

		x, y := r.pdf.GetX(), r.pdf.GetY()
		for j := 0; j < cols; j++ {
			cell := ""
			if j < len(row) {
				cell = row[j]
			}
			cx := x + float64(j)*width
			r.pdf.Rect(cx, y, width, height, "FD")
			r.pdf.SetXY(cx, y)
			r.pdf.MultiCell(width, lineHeight, r.tr(cell), "", "L", false)
		}
		r.pdf.SetXY(x, y+height)
	}

	r.pdf.Ln(4)
	r.setFont()
}

func (r *renderer) cells(row ast.Node) []string {
	var out []string
	for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
		if _, ok := cell.(*extast.TableCell); ok {
			out = append(out, strings.TrimSpace(string(cell.Text(r.source))))
		}
	}
	return out
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "/")
}

func frequencyLabel(f int) string {
	switch f {
	case models.FrequencyHigh:
		return "High"
	case models.FrequencyMedium:
		return "Medium"
	default:
		return "Low"
	}
}
