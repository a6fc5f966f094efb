package parser

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"pdf-rag/internal/models"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	gtext "github.com/yuin/goldmark/text"
)

// Document is a page-structured source. Pages are indexed from 0.
type Document interface {
	NumPages() int
	PageText(i int) (string, error)
	Close() error
}

// Opener opens the file at path as a Document
type Opener func(path string) (Document, error)

const pageSeparator = "\f"

var (
	docxTextRe  = regexp.MustCompile(`<w:t(?:\s[^>]*)?>([^<]*)</w:t>`)
	docxParaRe  = regexp.MustCompile(`</w:p>`)
	pptxTextRe  = regexp.MustCompile(`<a:t>([^<]*)</a:t>`)
	pptxSlideRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
)

// Open picks a document source by file extension. Every failure, including an
// unsupported extension, is reported as models.ErrDocumentOpen.
func Open(filePath string) (Document, error) {
	var (
		doc Document
		err error
	)
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".pdf":
		doc, err = openPDF(filePath)
	case ".docx":
		doc, err = openDOCX(filePath)
	case ".pptx":
		doc, err = openPPTX(filePath)
	case ".xlsx":
		doc, err = openXLSX(filePath)
	case ".xlsm", ".xltx":
		doc, err = openExcelize(filePath)
	case ".md", ".markdown":
		doc, err = openMarkdown(filePath)
	case ".txt":
		doc, err = openText(filePath)
	default:
		err = fmt.Errorf("unsupported file format: %s", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", models.ErrDocumentOpen, filePath, err)
	}
	return doc, nil
}

// pdfDocument keeps the file open so pages are read lazily
type pdfDocument struct {
	f      *os.File
	reader *pdf.Reader
}

func openPDF(filePath string) (Document, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}

	// Get file size for reader initialization
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	reader, err := newPDFReader(f, stat.Size())
	if err != nil {
		f.Close()
		return nil, err
	}
	return &pdfDocument{f: f, reader: reader}, nil
}

// pdf.NewReader panics on some malformed inputs
func newPDFReader(f *os.File, size int64) (r *pdf.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("malformed pdf: %v", rec)
		}
	}()
	return pdf.NewReader(f, size)
}

func (d *pdfDocument) NumPages() int {
	return d.reader.NumPage()
}

func (d *pdfDocument) PageText(i int) (text string, err error) {
	page := d.reader.Page(i + 1)
	if page.V.IsNull() {
		return "", nil
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("failed to read page %d: %v", i, rec)
		}
	}()
	return page.GetPlainText(nil)
}

func (d *pdfDocument) Close() error {
	return d.f.Close()
}

// pagedText is an in-memory document, used by every non-PDF source
type pagedText []string

func (p pagedText) NumPages() int { return len(p) }

func (p pagedText) PageText(i int) (string, error) {
	if i < 0 || i >= len(p) {
		return "", fmt.Errorf("page %d out of range [0, %d)", i, len(p))
	}
	return p[i], nil
}

func (p pagedText) Close() error { return nil }

// NewTextDocument builds a Document from page texts already in memory.
func NewTextDocument(pages ...string) Document {
	return pagedText(pages)
}

func openDOCX(filePath string) (Document, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	// DOCX has no page numbers, the whole body is one page
	content := docxParaRe.ReplaceAllString(r.Editable().GetContent(), "\n</w:p>")
	var body strings.Builder
	for _, line := range strings.Split(content, "\n") {
		for _, m := range docxTextRe.FindAllStringSubmatch(line, -1) {
			body.WriteString(m[1])
		}
		body.WriteString("\n")
	}
	return pagedText{body.String()}, nil
}

func openPPTX(filePath string) (Document, error) {
	f, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	type slide struct {
		num  int
		text string
	}
	var slides []slide
	for _, file := range f.File {
		m := pptxSlideRe.FindStringSubmatch(file.Name)
		if m == nil {
			continue
		}
		num, _ := strconv.Atoi(m[1])
		rc, err := file.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		slides = append(slides, slide{num: num, text: extractTextFromXML(string(data))})
	}
	// zip order is arbitrary, slide10 must come after slide9
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	pages := make(pagedText, len(slides))
	for i, s := range slides {
		pages[i] = s.text
	}
	return pages, nil
}

func openXLSX(filePath string) (Document, error) {
	f, err := xlsx.OpenFile(filePath)
	if err != nil {
		return nil, err
	}

	pages := make(pagedText, 0, len(f.Sheets))
	for _, sheet := range f.Sheets {
		var text strings.Builder
		text.WriteString(sheet.Name + "\n")
		for _, row := range sheet.Rows {
			for _, cell := range row.Cells {
				text.WriteString(cell.String() + "\t")
			}
			text.WriteString("\n")
		}
		pages = append(pages, text.String())
	}
	return pages, nil
}

func openExcelize(filePath string) (Document, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	pages := make(pagedText, 0, len(sheets))
	for _, sheetName := range sheets {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", sheetName, err)
		}
		var text strings.Builder
		text.WriteString(sheetName + "\n")
		for _, row := range rows {
			for _, cell := range row {
				text.WriteString(cell + "\t")
			}
			text.WriteString("\n")
		}
		pages = append(pages, text.String())
	}
	return pages, nil
}

func openMarkdown(filePath string) (Document, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return pagedText{markdownText(data)}, nil
}

// markdownText drops the markdown syntax and keeps the readable text
func markdownText(source []byte) string {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	root := md.Parser().Parse(gtext.NewReader(source))

	var out strings.Builder
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock {
				out.WriteString("\n")
			}
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Text:
			out.Write(node.Segment.Value(source))
			if node.SoftLineBreak() || node.HardLineBreak() {
				out.WriteString(" ")
			}
		case *ast.String:
			out.Write(node.Value)
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				out.Write(seg.Value(source))
			}
		}
		return ast.WalkContinue, nil
	})
	return out.String()
}

// Plain text pages are separated by form feeds, the way pdftotext writes them
func openText(filePath string) (Document, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return pagedText(strings.Split(string(data), pageSeparator)), nil
}

func extractTextFromXML(xmlContent string) string {
	var text strings.Builder
	for _, m := range pptxTextRe.FindAllStringSubmatch(xmlContent, -1) {
		text.WriteString(m[1] + " ")
	}
	return text.String()
}
