// Package docx writes minimal Office Open XML word-processing packages.
//
// A package holds one section per converted page, each page's text split into
// paragraphs and pages separated by hard page breaks. Entries are streamed into
// the zip, so pages can be appended one at a time while the caller reports
// progress.
package docx

import (
	"archive/zip"
	"bufio"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// Properties populate docProps/core.xml.
type Properties struct {
	Title    string
	Subject  string
	Creator  string
	Created  time.Time
	Keywords string
}

// Page is one source page rendered into the document body.
type Page struct {
	// Number is the one-based source page number.
	Number     int
	Paragraphs []string
}

// ErrClosed is returned when pages are added after Close.
var ErrClosed = errors.New("docx: writer closed")

// Writer streams a DOCX package to an io.Writer.
type Writer struct {
	zw     *zip.Writer
	body   *bufio.Writer
	pages  int
	closed bool
}

// NewWriter writes the package preamble and opens the document body.
func NewWriter(w io.Writer, props Properties) (*Writer, error) {
	zw := zip.NewWriter(w)
	static := []struct {
		name    string
		content string
	}{
		{"[Content_Types].xml", contentTypes},
		{"_rels/.rels", packageRels},
		{"word/_rels/document.xml.rels", documentRels},
		{"word/styles.xml", styles},
		{"docProps/core.xml", coreProps(props)},
	}
	for _, entry := range static {
		f, err := zw.Create(entry.name)
		if err != nil {
			return nil, fmt.Errorf("docx: create %s: %w", entry.name, err)
		}
		if _, err := io.WriteString(f, entry.content); err != nil {
			return nil, fmt.Errorf("docx: write %s: %w", entry.name, err)
		}
	}
	f, err := zw.Create("word/document.xml")
	if err != nil {
		return nil, fmt.Errorf("docx: create document: %w", err)
	}
	body := bufio.NewWriter(f)
	if _, err := body.WriteString(documentHead); err != nil {
		return nil, fmt.Errorf("docx: write document head: %w", err)
	}
	return &Writer{zw: zw, body: body}, nil
}

// AddPage appends page to the body, preceded by a page break unless it is the first.
func (w *Writer) AddPage(page Page) error {
	if w.closed {
		return ErrClosed
	}
	if w.pages > 0 {
		if _, err := w.body.WriteString(pageBreak); err != nil {
			return fmt.Errorf("docx: write page break: %w", err)
		}
	}
	if len(page.Paragraphs) == 0 {
		if _, err := w.body.WriteString(`<w:p/>`); err != nil {
			return fmt.Errorf("docx: write page %d: %w", page.Number, err)
		}
	}
	for _, para := range page.Paragraphs {
		if err := w.paragraph(para); err != nil {
			return fmt.Errorf("docx: write page %d: %w", page.Number, err)
		}
	}
	w.pages++
	return nil
}

// Pages reports how many pages have been added.
func (w *Writer) Pages() int {
	return w.pages
}

// Close finishes the body and the zip. It does not close the underlying writer.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if _, err := w.body.WriteString(documentTail); err != nil {
		return fmt.Errorf("docx: write document tail: %w", err)
	}
	if err := w.body.Flush(); err != nil {
		return fmt.Errorf("docx: flush document: %w", err)
	}
	if err := w.zw.Close(); err != nil {
		return fmt.Errorf("docx: close package: %w", err)
	}
	return nil
}

func (w *Writer) paragraph(text string) error {
	if _, err := w.body.WriteString(`<w:p><w:r><w:t xml:space="preserve">`); err != nil {
		return err
	}
	if err := xml.EscapeText(w.body, []byte(clean(text))); err != nil {
		return err
	}
	_, err := w.body.WriteString(`</w:t></w:r></w:p>`)
	return err
}

// Paragraphs splits extracted page text on blank lines. Single line breaks
// inside a block are joined with spaces.
func Paragraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, block := range strings.Split(text, "\n\n") {
		lines := strings.Fields(strings.ReplaceAll(block, "\n", " "))
		if len(lines) == 0 {
			continue
		}
		out = append(out, strings.Join(lines, " "))
	}
	return out
}

// clean drops characters XML 1.0 cannot carry.
func clean(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			return ' '
		case r < 0x20, r == 0xFFFE, r == 0xFFFF:
			return -1
		case r >= 0xD800 && r <= 0xDFFF:
			return -1
		}
		return r
	}, s)
}

func coreProps(p Properties) string {
	created := p.Created
	if created.IsZero() {
		created = time.Now()
	}
	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString(`<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" ` +
		`xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/" ` +
		`xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">`)
	element(&b, "dc:title", p.Title)
	element(&b, "dc:subject", p.Subject)
	element(&b, "dc:creator", p.Creator)
	element(&b, "cp:keywords", p.Keywords)
	b.WriteString(`<dcterms:created xsi:type="dcterms:W3CDTF">`)
	b.WriteString(created.UTC().Format(time.RFC3339))
	b.WriteString(`</dcterms:created></cp:coreProperties>`)
	return b.String()
}

func element(b *strings.Builder, name, value string) {
	if value == "" {
		return
	}
	b.WriteString("<" + name + ">")
	_ = xml.EscapeText(b, []byte(clean(value)))
	b.WriteString("</" + name + ">")
}

const (
	contentTypes = xml.Header +
		`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
		`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
		`<Default Extension="xml" ContentType="application/xml"/>` +
		`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
		`<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>` +
		`<Override PartName="/docProps/core.xml" ContentType="application/vnd.openxmlformats-package.core-properties+xml"/>` +
		`</Types>`

	packageRels = xml.Header +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
		`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties" Target="docProps/core.xml"/>` +
		`</Relationships>`

	documentRels = xml.Header +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>` +
		`</Relationships>`

	styles = xml.Header +
		`<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
		`<w:docDefaults><w:rPrDefault><w:rPr><w:sz w:val="22"/></w:rPr></w:rPrDefault>` +
		`<w:pPrDefault><w:pPr><w:spacing w:after="160"/></w:pPr></w:pPrDefault></w:docDefaults>` +
		`</w:styles>`

	documentHead = xml.Header +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`

	documentTail = `<w:sectPr><w:pgSz w:w="12240" w:h="15840"/>` +
		`<w:pgMar w:top="1440" w:right="1440" w:bottom="1440" w:left="1440" w:header="720" w:footer="720" w:gutter="0"/>` +
		`</w:sectPr></w:body></w:document>`

	pageBreak = `<w:p><w:r><w:br w:type="page"/></w:r></w:p>`
)

// ContentType is the MIME type of a DOCX package.
const ContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
