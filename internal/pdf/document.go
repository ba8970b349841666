package pdf

import (
	"errors"
	"fmt"

	"github.com/gen2brain/go-fitz"
)

// ErrNeedsPassword is returned by an OpenFunc when the document is encrypted
// with a user password.
var ErrNeedsPassword = errors.New("pdf: document needs a password")

// Document is the read-only view of an open PDF.
type Document interface {
	NumPage() int
	Text(page int) (string, error)
	Metadata() map[string]string
	Close() error
}

// OpenFunc opens the PDF at path.
type OpenFunc func(path string) (Document, error)

// OpenFitz opens path with MuPDF through go-fitz.
func OpenFitz(path string) (Document, error) {
	doc, err := fitz.New(path)
	if err != nil {
		if errors.Is(err, fitz.ErrNeedsPassword) {
			if doc != nil {
				_ = doc.Close()
			}
			return nil, ErrNeedsPassword
		}
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	return doc, nil
}
