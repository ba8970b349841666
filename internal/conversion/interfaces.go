package conversion

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"
)

// Converter performs the blocking PDF to DOCX conversion. Progress is only
// observable through the lines it writes to logger.
type Converter interface {
	Convert(ctx context.Context, job Job, logger *zap.Logger) error
}

// Inspector reads page count, protection state, and metadata from a PDF.
type Inspector interface {
	Inspect(ctx context.Context, path string) (Info, error)
}

// Unlocker produces a decrypted copy of a protected PDF. The returned cleanup
// removes the copy and is safe to call more than once.
type Unlocker interface {
	Unlock(ctx context.Context, path, password string) (string, func(), error)
}

// BlobStore writes artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher digests artifact bytes.
type Hasher interface {
	Hash(r io.Reader) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs and execution tags.
type IDGenerator interface {
	NewID() (string, error)
}
