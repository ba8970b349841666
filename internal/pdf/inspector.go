package pdf

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/JakeFAU/docbridge/internal/conversion"
)

// Inspector reports page count, protection and metadata.
type Inspector struct {
	open OpenFunc
}

// NewInspector returns an Inspector backed by open, or go-fitz when nil.
func NewInspector(open OpenFunc) *Inspector {
	if open == nil {
		open = OpenFitz
	}
	return &Inspector{open: open}
}

// Inspect never fails on a protected document; it reports Protected with a
// zero page count and empty descriptor, since neither is readable without the
// password.
func (i *Inspector) Inspect(ctx context.Context, path string) (conversion.Info, error) {
	if err := ctx.Err(); err != nil {
		return conversion.Info{}, err
	}
	st, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return conversion.Info{}, conversion.NotFound(path)
		}
		return conversion.Info{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if st.IsDir() {
		return conversion.Info{}, conversion.InvalidArgument(fmt.Sprintf("%s is a directory", path), nil)
	}
	info := conversion.Info{Path: path, SizeBytes: st.Size()}

	doc, err := i.open(path)
	if errors.Is(err, ErrNeedsPassword) {
		info.Protected = true
		return info, nil
	}
	if err != nil {
		return conversion.Info{}, conversion.ConversionFailure(err)
	}
	defer func() { _ = doc.Close() }()

	info.PageCount = doc.NumPage()
	info.Descriptor = describe(doc.Metadata())
	return info, nil
}

func describe(meta map[string]string) conversion.Descriptor {
	return conversion.Descriptor{
		Title:    meta["title"],
		Author:   meta["author"],
		Subject:  meta["subject"],
		Creator:  meta["creator"],
		Producer: meta["producer"],
	}
}
