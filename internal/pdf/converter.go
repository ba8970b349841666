package pdf

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/docbridge/internal/conversion"
	"github.com/JakeFAU/docbridge/internal/pdf/docx"
)

// Converter turns PDF text into a DOCX package in two logged passes: every
// selected page is parsed, then every parsed page is written. Each page logs
// one "(i/n) Parsing Page p" and one "(i/n) Creating Page p" line.
type Converter struct {
	open OpenFunc
	now  func() time.Time
}

// NewConverter returns a Converter backed by open, or go-fitz when nil.
func NewConverter(open OpenFunc) *Converter {
	if open == nil {
		open = OpenFitz
	}
	return &Converter{open: open, now: time.Now}
}

// Convert implements conversion.Converter.
func (c *Converter) Convert(ctx context.Context, job conversion.Job, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	start := c.now()
	logger.Info("Start to convert", zap.String("input", job.InputPath))

	logger.Info("[1/4] Opening document...")
	doc, err := c.open(job.InputPath)
	if errors.Is(err, ErrNeedsPassword) {
		return conversion.AuthenticationRequired(job.InputPath)
	}
	if err != nil {
		return err
	}
	defer func() { _ = doc.Close() }()

	logger.Info("[2/4] Analyzing document...")
	units, err := conversion.ResolveUnits(job.Pages, doc.NumPage())
	if err != nil {
		return err
	}
	meta := doc.Metadata()

	logger.Info("[3/4] Parsing pages...")
	pages := make([]docx.Page, 0, len(units))
	for i, idx := range units {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("parse pages: %w", err)
		}
		logger.Info(fmt.Sprintf("(%d/%d) Parsing Page %d", i+1, len(units), idx+1))
		text, err := doc.Text(idx)
		if err != nil {
			return fmt.Errorf("extract text from page %d: %w", idx+1, err)
		}
		pages = append(pages, docx.Page{Number: idx + 1, Paragraphs: docx.Paragraphs(text)})
	}

	logger.Info("[4/4] Creating pages...")
	if err := c.write(ctx, job.OutputPath, meta, pages, logger); err != nil {
		return err
	}
	logger.Info(fmt.Sprintf("Terminated in %.2fs.", c.now().Sub(start).Seconds()))
	return nil
}

// write streams pages into a temp file next to dst and renames it into place,
// so a failed run never leaves a truncated document behind.
func (c *Converter) write(
	ctx context.Context,
	dst string,
	meta map[string]string,
	pages []docx.Page,
	logger *zap.Logger,
) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".docbridge-*.docx")
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	w, err := docx.NewWriter(tmp, docx.Properties{
		Title:    meta["title"],
		Subject:  meta["subject"],
		Creator:  meta["author"],
		Keywords: meta["keywords"],
		Created:  c.now(),
	})
	if err != nil {
		return err
	}
	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("create pages: %w", err)
		}
		logger.Info(fmt.Sprintf("(%d/%d) Creating Page %d", i+1, len(pages), page.Number))
		if err := w.AddPage(page); err != nil {
			return err
		}
	}
	if err := w.Close(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("move output into place: %w", err)
	}
	return nil
}
